// Package config holds the tunable values of the movement and sync core.
// Defaults live in code; a YAML file can override any subset of them.
package config

// AvatarConfig contains avatar body and locomotion values.
type AvatarConfig struct {
	// Capsule dimensions. The avatar position is the feet point; the capsule
	// center sits HalfHeight+Radius above it.
	Radius     float64 `yaml:"radius"`
	HalfHeight float64 `yaml:"halfHeight"`
	Mass       float64 `yaml:"mass"`

	// Locomotion
	WalkSpeed  float64 `yaml:"walkSpeed"`
	RunSpeed   float64 `yaml:"runSpeed"`
	FlySpeed   float64 `yaml:"flySpeed"`
	TurnRate   float64 `yaml:"turnRate"`   // radians per second toward the move direction
	JumpHeight float64 `yaml:"jumpHeight"` // desired apex height in units

	// Click-to-move arrival
	ArriveDistance     float64 `yaml:"arriveDistance"`     // horizontal distance considered arrived
	ArriveSlowDistance float64 `yaml:"arriveSlowDistance"` // start decelerating inside this radius
}

// PhysicsConfig contains world physics values.
type PhysicsConfig struct {
	Gravity      float64 `yaml:"gravity"` // positive magnitude, applied downward
	MaxFallSpeed float64 `yaml:"maxFallSpeed"`

	// Ground probe
	ProbeStartHeight float64 `yaml:"probeStartHeight"` // sweep origin above the feet
	ProbeDistance    float64 `yaml:"probeDistance"`    // sweep length downward
	ProbeRadius      float64 `yaml:"probeRadius"`
	GroundEpsilon    float64 `yaml:"groundEpsilon"` // max gap between feet and hit to count as grounded

	// Slopes
	SlopeLimitDeg float64 `yaml:"slopeLimitDeg"` // steeper ground starts slipping
	SlipDrag      float64 `yaml:"slipDrag"`      // per-second decay of in-plane velocity while slipping

	// Platform riding
	RideLedgeBias float64 `yaml:"rideLedgeBias"` // extra probe reach when standing on a moving platform

	LedgeDropBias float64 `yaml:"ledgeDropBias"` // downward speed injected when walking off an edge
}

// ReconcileConfig contains prediction reconciliation values.
type ReconcileConfig struct {
	SnapDistance   float64 `yaml:"snapDistance"`   // error beyond this teleports the avatar
	BlendThreshold float64 `yaml:"blendThreshold"` // error below this trusts the prediction
	MaxBlendRate   float64 `yaml:"maxBlendRate"`   // per-second blend rate at snapDistance error
	HoverEaseTime  float64 `yaml:"hoverEaseTime"`  // seconds to ease down from an above-ground correction
}

// NetworkConfig contains sync queue and transport values.
type NetworkConfig struct {
	PendingDeltaCap   int     `yaml:"pendingDeltaCap"` // buffered deltas per unknown entity
	PositionEpsilon   float64 `yaml:"positionEpsilon"` // outbound diff threshold per axis
	OrientationEps    float64 `yaml:"orientationEps"`  // outbound diff threshold per quat component
	LogThrottlePerSec float64 `yaml:"logThrottlePerSec"`
}

// ServerConfig contains server runtime values.
type ServerConfig struct {
	Name     string `yaml:"name"`
	Port     int    `yaml:"port"`
	TickRate int    `yaml:"tickRate"`
	World    string `yaml:"world"`
}

// Config is the full tree a YAML file may override.
type Config struct {
	Avatar    AvatarConfig    `yaml:"avatar"`
	Physics   PhysicsConfig   `yaml:"physics"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Network   NetworkConfig   `yaml:"network"`
	Server    ServerConfig    `yaml:"server"`
}

// Global configuration instances
var (
	Avatar    AvatarConfig
	Physics   PhysicsConfig
	Reconcile ReconcileConfig
	Network   NetworkConfig
	Server    ServerConfig
)

// Default returns the built-in configuration tree.
func Default() Config {
	return Config{
		Avatar: AvatarConfig{
			Radius:     0.4,
			HalfHeight: 0.6,
			Mass:       70.0,

			WalkSpeed:  3.2,
			RunSpeed:   6.5,
			FlySpeed:   8.0,
			TurnRate:   12.0,
			JumpHeight: 1.4,

			ArriveDistance:     0.3,
			ArriveSlowDistance: 1.0,
		},
		Physics: PhysicsConfig{
			Gravity:      9.81,
			MaxFallSpeed: 40.0,

			ProbeStartHeight: 0.5,
			ProbeDistance:    1.5,
			ProbeRadius:      0.3,
			GroundEpsilon:    0.08,

			SlopeLimitDeg: 60.0,
			SlipDrag:      4.0,

			RideLedgeBias: 0.4,

			LedgeDropBias: 1.5,
		},
		Reconcile: ReconcileConfig{
			SnapDistance:   5.0,
			BlendThreshold: 0.1,
			MaxBlendRate:   12.0,
			HoverEaseTime:  0.35,
		},
		Network: NetworkConfig{
			PendingDeltaCap:   50,
			PositionEpsilon:   0.001,
			OrientationEps:    0.0005,
			LogThrottlePerSec: 1.0,
		},
		Server: ServerConfig{
			Name:     "everglen",
			Port:     7791,
			TickRate: 20,
			World:    "meadow",
		},
	}
}

// Apply installs a tree into the package-level instances.
func Apply(c Config) {
	Avatar = c.Avatar
	Physics = c.Physics
	Reconcile = c.Reconcile
	Network = c.Network
	Server = c.Server
}

func init() {
	Apply(Default())
}
