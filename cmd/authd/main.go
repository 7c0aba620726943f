package main

import (
	"log"

	"github.com/freenoai/authd/internal/app"
	"github.com/freenoai/authd/pkg/slogx"
)

func main() {
	cfg := app.LoadConfig()

	logger := slogx.New(slogx.Config{
		Service: "authd",
		Version: app.BuildVersion,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})

	application, err := app.New(cfg, logger)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}
