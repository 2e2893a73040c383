// Command everglen is a headless client: it joins a server, runs the
// predicted simulation against the authoritative stream, and can wander the
// world on its own. Useful for soak-testing a server and as the integration
// point for a renderer.
package main

import (
	"context"
	"flag"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/everglen/everglen/config"
	"github.com/everglen/everglen/network"
	"github.com/everglen/everglen/physics"
	"github.com/everglen/everglen/physics/native"
	"github.com/everglen/everglen/shared/netconfig"
	"github.com/everglen/everglen/shared/protocol"
	"github.com/everglen/everglen/sim"
	"github.com/everglen/everglen/world"
)

func main() {
	server := flag.String("server", "localhost:7791", "server address")
	playerName := flag.String("name", "wanderer", "player name")
	configPath := flag.String("config", "", "path to a yaml config overlay")
	wander := flag.Bool("wander", false, "pick random move targets instead of idling")
	debug := flag.Bool("debug", false, "verbose logging")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	config.Apply(cfg)

	if err := protocol.RegisterComponents(); err != nil {
		log.Fatal().Err(err).Msg("component registration failed")
	}

	def, err := world.Build(config.Server.World)
	if err != nil {
		log.Fatal().Err(err).Msg("world build failed")
	}

	layers := physics.DefaultLayers(false)
	lifecycle := physics.NewLifecycle(native.NewLoader(
		native.WithTerrain(def.Terrain, layers.FilterFor(physics.LayerEnvironment)),
		native.WithGravity(mgl64.Vec3{0, -config.Physics.Gravity, 0}),
	))

	simulation := sim.New(lifecycle, layers, def.Terrain)
	simulation.SetPlatforms(def.Platforms)
	client := network.NewClient(simulation.Inbox(), simulation.Handlers())
	simulation.AttachClient(client)

	// The backend loads in the background; the simulation no-ops movement
	// until it is up. Static obstacles go in as soon as it lands.
	go func() {
		backend, err := lifecycle.Load(context.Background())
		if err != nil {
			log.Error().Err(err).Msg("physics backend failed to load")
			return
		}
		if _, _, err := def.PopulateStatics(backend, layers); err != nil {
			log.Error().Err(err).Msg("world statics failed to build")
		}
	}()

	client.Connect(*server, netconfig.ProtocolVersion, *playerName)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	const frameDt = 1.0 / 60
	ticker := time.NewTicker(time.Second / 60)
	defer ticker.Stop()
	nextWander := time.Now().Add(2 * time.Second)

	for {
		select {
		case <-sigCh:
			log.Info().Msg("disconnecting")
			client.Disconnect()
			return
		case <-ticker.C:
			simulation.Update(frameDt)

			if client.State() == network.StateError {
				log.Fatal().Err(client.LastError()).Msg("connection lost")
			}
			if *wander && time.Now().After(nextWander) && simulation.Controller() != nil {
				wanderStep(simulation, def)
				nextWander = time.Now().Add(time.Duration(2+rand.Intn(5)) * time.Second)
			}
		}
	}
}

// wanderStep picks a nearby reachable point and walks or runs there,
// sometimes jumping on the way.
func wanderStep(s *sim.Simulation, def *world.Definition) {
	pos := s.Controller().Position()
	target := mgl64.Vec3{
		pos.X() + (rand.Float64()-0.5)*24,
		0,
		pos.Z() + (rand.Float64()-0.5)*24,
	}
	h := def.Terrain.HeightAt(target.X(), target.Z())
	if math.IsNaN(h) {
		// Outside the heightfield, try again next time.
		return
	}
	target[1] = h
	s.ClickMove(target, rand.Float64() < 0.3)
	if rand.Float64() < 0.15 {
		s.Jump()
	}
}
