package main

import (
	"flag"
	"fmt"
	"os"

	"bf16lut/pkg/api"
	"bf16lut/pkg/config"
	"bf16lut/pkg/core"
	"bf16lut/pkg/emit"
	"bf16lut/pkg/logger"
)

// main starts the HTTP service. The configured run is generated (or loaded
// from the archive) before the listener opens so /api/eval answers at once.
func main() {
	configPath := flag.String("config", "", "config file (default: configs/lutgen.yaml)")
	addr := flag.String("addr", "", "listen address (default: server.addr)")
	warm := flag.Bool("warm", true, "generate the configured table at startup")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.Log, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	engine, err := core.NewEngine(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("engine init failed")
	}
	defer engine.Close()

	if *warm {
		if _, _, err := engine.Generate(engine.DefaultRequest(), nil); err != nil {
			log.WithError(err).Warn("startup generation failed, serving without a table")
		}
	}

	fixed := emit.FixedFormat{IntBits: cfg.Emit.CoeffIntBits, FracBits: cfg.Emit.CoeffFracBits}
	srv := api.NewServer(engine, log, fixed)
	if err := srv.Start(cfg.Server.Addr); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}
