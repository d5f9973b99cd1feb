package main

import (
	"flag"
	"log"
	"medicine_importer/internal/app"
	"medicine_importer/internal/config"
	"medicine_importer/internal/logger"
	"os"

	"go.uber.org/zap"
)

func main() {
	cfgPath := flag.String("config", envOr("MEDICINE_IMPORTER_CONFIG", "config.yaml"), "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	l, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer l.Sync()

	a, err := app.New(cfg, l)
	if err != nil {
		l.Fatal("failed to initialise app", zap.Error(err))
	}

	if err := a.Run(); err != nil {
		l.Fatal("server stopped with error", zap.Error(err))
	}
	l.Info("server stopped")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
