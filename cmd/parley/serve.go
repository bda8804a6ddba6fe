package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/econexus/parley/internal/auth"
	"github.com/econexus/parley/internal/db"
	"github.com/econexus/parley/internal/engine"
	"github.com/econexus/parley/internal/janitor"
	"github.com/econexus/parley/internal/llm"
	"github.com/econexus/parley/internal/notify"
	"github.com/econexus/parley/internal/server"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Parley API server",
		Long:  "Starts the HTTP API, the negotiation engine, and the background thread janitor. Shuts down gracefully on SIGINT/SIGTERM.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, cmd.Flags().Changed("config"))
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "parley.yaml", "path to Parley config file")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, explicit bool) error {
	out := cmd.OutOrStdout()

	// Environment overrides from .env, if present.
	_ = godotenv.Load()

	cfg, err := loadConfig(configPath, explicit)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	secret := os.Getenv("PARLEY_JWT_SECRET")
	if secret == "" {
		return fmt.Errorf("PARLEY_JWT_SECRET is not set")
	}
	tokens, err := auth.NewTokens(secret, time.Duration(cfg.Auth.TokenTTLMinutes)*time.Minute)
	if err != nil {
		return err
	}

	gormDB, err := connectDB(cfg)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Connected to %s:%d/%s\n", cfg.DB.Host, cfg.DB.Port, cfg.DB.Database)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	apiKey, err := llmAPIKey(cfg.LLM.Provider)
	if err != nil {
		return err
	}
	generator, err := llm.FromConfig(ctx, cfg.LLM, apiKey)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Negotiation agents using %s (%s)\n", cfg.LLM.Provider, cfg.LLM.Model)

	notifier, err := notify.FromConfig(cfg.Notify)
	if err != nil {
		return err
	}

	eng := engine.New(engine.Deps{
		DB:        gormDB,
		Generator: generator,
		Notifier:  notifier,
		Timeout:   time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
		MaxRounds: cfg.Negotiation.MaxRounds,
		TurnDelay: time.Duration(cfg.Negotiation.TurnDelayMS) * time.Millisecond,
		Out:       out,
	})

	j, err := janitor.New(janitor.Opts{
		DB:      gormDB,
		MaxIdle: time.Duration(cfg.Negotiation.MaxIdleMinutes) * time.Minute,
		Out:     out,
	})
	if err != nil {
		return err
	}
	go j.Start(ctx)

	return server.Start(ctx, server.StartOpts{
		DB:     gormDB,
		Engine: eng,
		Tokens: tokens,
		Port:   cfg.Server.Port,
		Out:    out,
	})
}
