package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"gemini-adapter-go/internal/config"
	"gemini-adapter-go/internal/logging"
	"gemini-adapter-go/internal/monitoring/tracing"
	"gemini-adapter-go/internal/server"
	"gemini-adapter-go/internal/version"
	log "github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	debug := flag.Bool("debug", false, "enable debug logging")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		os.Stdout.WriteString(version.Version + "\n")
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	if *debug {
		cfg.Security.Debug = true
	}

	if err := logging.Setup(cfg.Security.Debug, cfg.Security.LogFile); err != nil {
		log.WithError(err).Fatal("failed to configure logging")
	}
	log.WithFields(log.Fields{
		"version":     version.Version,
		"credentials": len(cfg.Pool.Credentials),
	}).Info("starting gemini adapter")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx)
	if err != nil {
		log.WithError(err).Warn("tracing disabled")
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.WithError(err).Warn("tracing shutdown failed")
		}
	}()

	manager := config.NewManager(cfg, *configPath)
	manager.OnReload(func(c *config.Config) {
		if err := logging.Setup(c.Security.Debug, c.Security.LogFile); err != nil {
			log.WithError(err).Warn("logging reconfiguration failed")
		}
	})
	if err := manager.Watch(ctx); err != nil {
		log.WithError(err).Warn("config hot reload unavailable")
	}

	srv, err := server.New(manager)
	if err != nil {
		log.WithError(err).Fatal("failed to build server")
	}
	if err := srv.Run(ctx); err != nil {
		log.WithError(err).Fatal("server exited with error")
	}
}
