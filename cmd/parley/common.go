package main

import (
	"errors"
	"fmt"
	"os"

	"gorm.io/gorm"

	"github.com/econexus/parley/internal/config"
	"github.com/econexus/parley/internal/db"
)

// loadConfig reads the config file. When the default path does not exist the
// built-in defaults are used; an explicitly given path must exist.
func loadConfig(path string, explicit bool) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return config.Default(), nil
		}
		return nil, err
	}
	return cfg, nil
}

// connectDB opens the configured MySQL database.
func connectDB(cfg *config.Config) (*gorm.DB, error) {
	return db.Connect(cfg.DB.User, cfg.DB.Password, cfg.DB.Host, cfg.DB.Port, cfg.DB.Database)
}

// llmAPIKey resolves the API key for the configured provider.
func llmAPIKey(provider string) (string, error) {
	switch provider {
	case "openrouter":
		key := os.Getenv("OPENROUTER_API_KEY")
		if key == "" {
			return "", fmt.Errorf("OPENROUTER_API_KEY is not set")
		}
		return key, nil
	case "gemini":
		key := os.Getenv("GEMINI_API_KEY")
		if key == "" {
			return "", fmt.Errorf("GEMINI_API_KEY is not set")
		}
		return key, nil
	default:
		return "", nil
	}
}
