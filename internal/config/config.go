// Package config reads process configuration from the environment.
package config

import (
	"fmt"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
)

type Config struct {
	OpenAIAPIKey  string `env:"MANAFORGE_OPENAI_API_KEY"`
	OpenAIBaseURL string `env:"MANAFORGE_OPENAI_BASE_URL"`
	TextModel     string `env:"MANAFORGE_TEXT_MODEL" envDefault:"gpt-4o-mini"`
	ImageModel    string `env:"MANAFORGE_IMAGE_MODEL" envDefault:"dall-e-3"`

	DataDir string `env:"MANAFORGE_DATA_DIR" envDefault:"./data"`
	Store   string `env:"MANAFORGE_STORE" envDefault:"file"`
	Seed    uint64 `env:"MANAFORGE_SEED"`

	EnableAdminHTTP bool `env:"MANAFORGE_ENABLE_ADMIN_HTTP" envDefault:"true"`
	EnablePprof     bool `env:"MANAFORGE_ENABLE_PPROF"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses Config from the environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.Store {
	case StoreFile, StoreSQLite:
	default:
		return fmt.Errorf("MANAFORGE_STORE must be %q or %q, got %q", StoreFile, StoreSQLite, c.Store)
	}
	if c.DataDir == "" {
		return fmt.Errorf("MANAFORGE_DATA_DIR is empty")
	}
	return nil
}

// StorePath is the directory (file store) or database file (sqlite store)
// documents live in.
func (c Config) StorePath() string {
	if c.Store == StoreSQLite {
		return filepath.Join(c.DataDir, "manaforge.sqlite")
	}
	return filepath.Join(c.DataDir, "documents")
}
