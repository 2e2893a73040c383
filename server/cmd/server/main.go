package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/everglen/everglen/config"
	"github.com/everglen/everglen/server/core"
	"github.com/everglen/everglen/shared/protocol"
)

func main() {
	configPath := flag.String("config", "", "path to a yaml config overlay")
	port := flag.Int("port", 0, "listen port (overrides config)")
	tickRate := flag.Int("tickrate", 0, "server ticks per second (overrides config)")
	name := flag.String("name", "", "server name (overrides config)")
	world := flag.String("world", "", "world to load (overrides config)")
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
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *tickRate != 0 {
		cfg.Server.TickRate = *tickRate
	}
	if *name != "" {
		cfg.Server.Name = *name
	}
	if *world != "" {
		cfg.Server.World = *world
	}
	config.Apply(cfg)

	if err := protocol.RegisterComponents(); err != nil {
		log.Fatal().Err(err).Msg("component registration failed")
	}

	server, err := core.NewServer()
	if err != nil {
		log.Fatal().Err(err).Msg("server setup failed")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("shutting down")
		server.Stop()
		os.Exit(0)
	}()

	if err := server.Start(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
