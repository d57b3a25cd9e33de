package config

import (
	"fmt"
	"os"
)

// Config holds the configuration for the certen-node ABCI application.
type Config struct {
	// DataDir is the base directory for the record/program/spent stores,
	// the validator snapshot and the height file.
	DataDir string

	// ListenAddr is copied into CometBFT's proxy_app setting (e.g.
	// "tcp://0.0.0.0:26658"). cmd/certen-node connects the application
	// through an in-process local client, so no ABCI socket is opened on it.
	ListenAddr string

	// MetricsAddr serves the prometheus registry.
	MetricsAddr string

	// Ed25519KeyPath points at this validator's consensus private key.
	Ed25519KeyPath string

	// ChainID is the CometBFT chain id this application expects InitChain
	// to be called with.
	ChainID string

	// LogLevel is read from the environment but not consumed by any
	// package: every package here uses stdlib *log.Logger, which has no
	// levels.
	LogLevel string
}

// Load reads configuration from environment variables. Every field has a
// safe local-development default; there are no required secrets because
// this application holds no private keys of its own beyond the consensus
// key path, which CometBFT manages.
func Load() (*Config, error) {
	return &Config{
		DataDir:        getEnv("CERTEN_DATA_DIR", "./data"),
		ListenAddr:     getEnv("CERTEN_ABCI_ADDR", "tcp://0.0.0.0:26658"),
		MetricsAddr:    getEnv("CERTEN_METRICS_ADDR", "0.0.0.0:9090"),
		Ed25519KeyPath: getEnv("CERTEN_ED25519_KEY_PATH", ""),
		ChainID:        getEnv("CERTEN_CHAIN_ID", "certen-zkvm"),
		LogLevel:       getEnv("CERTEN_LOG_LEVEL", "info"),
	}, nil
}

// Validate checks the fields required to actually start serving.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("config: CERTEN_DATA_DIR must not be empty")
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("config: CERTEN_ABCI_ADDR must not be empty")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

