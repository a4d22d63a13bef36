// Package config содержит логику чтения конфигурации POS-клиента.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации POS-клиента.
type Config struct {
	RunAddress   string `env:"RUN_ADDRESS"`
	StoreDSN     string `env:"STORE_DSN"`
	ClientIDFile string `env:"CLIENT_ID_FILE"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envStoreDSN := cfg.StoreDSN
	envClientIDFile := cfg.ClientIDFile

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.StoreDSN, "d", "", "shared store DSN (redis:// or postgres://, empty for in-memory)")
	flag.StringVar(&cfg.ClientIDFile, "i", "client_id", "path to the persisted client identifier")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envStoreDSN != "" {
		cfg.StoreDSN = envStoreDSN
	}
	if envClientIDFile != "" {
		cfg.ClientIDFile = envClientIDFile
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.ClientIDFile == "" {
		cfg.ClientIDFile = "client_id"
	}

	return cfg, nil
}
