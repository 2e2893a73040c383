package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML file over the defaults and installs the result. A missing
// path keeps the defaults.
func Load(path string) (Config, error) {
	c := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return c, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &c); err != nil {
			return c, fmt.Errorf("parse config %s: %w", path, err)
		}
		if err := c.validate(); err != nil {
			return c, fmt.Errorf("config %s: %w", path, err)
		}
	}
	Apply(c)
	return c, nil
}

func (c Config) validate() error {
	if c.Avatar.Radius <= 0 || c.Avatar.HalfHeight < 0 {
		return fmt.Errorf("avatar capsule needs a positive radius")
	}
	if c.Avatar.Mass <= 0 {
		return fmt.Errorf("avatar mass must be positive")
	}
	if c.Physics.Gravity <= 0 {
		return fmt.Errorf("gravity must be a positive magnitude")
	}
	if c.Physics.SlopeLimitDeg <= 0 || c.Physics.SlopeLimitDeg >= 90 {
		return fmt.Errorf("slope limit must be between 0 and 90 degrees")
	}
	if c.Reconcile.SnapDistance <= c.Reconcile.BlendThreshold {
		return fmt.Errorf("snap distance must exceed the blend threshold")
	}
	if c.Network.PendingDeltaCap <= 0 {
		return fmt.Errorf("pending delta cap must be positive")
	}
	if c.Server.TickRate <= 0 {
		return fmt.Errorf("tick rate must be positive")
	}
	return nil
}
