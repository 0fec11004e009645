// config.go - Configuration management for the resource-machine node
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents the node configuration
type Config struct {
	// Identity and network
	NodeID     string            `json:"node_id"`
	ListenAddr string            `json:"listen_addr"`
	AdminAddr  string            `json:"admin_addr"`
	Peers      map[string]string `json:"peers"`

	// File paths
	LedgerPath string `json:"ledger_path"`
	KeyDir     string `json:"key_dir"`

	// Protocol
	NullifierScheme string `json:"nullifier_scheme"` // "hash" or "curve"
	TransparentMode bool   `json:"transparent_mode"` // skip proof verification

	// Logging
	LogLevel string `json:"log_level"`
	LogFile  string `json:"log_file"`

	// Persistence interval
	TimeoutSeconds int `json:"timeout_seconds"`

	// Submission rate limiting
	RateLimitTokens int `json:"rate_limit_tokens"`
	RateLimitRefill int `json:"rate_limit_refill_per_sec"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		NodeID:          "node1",
		ListenAddr:      "localhost:8460",
		AdminAddr:       "localhost:8461",
		Peers:           map[string]string{},
		LedgerPath:      "ledger.json",
		KeyDir:          "keys",
		NullifierScheme: "hash",
		LogLevel:        "info",
		LogFile:         "rmnode.log",
		TimeoutSeconds:  30,
		RateLimitTokens: 20,
		RateLimitRefill: 5,
	}
}

// LoadConfig loads configuration from file or creates default
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); err == nil {
		file, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer file.Close()

		var config Config
		if err := json.NewDecoder(file).Decode(&config); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
		return &config, nil
	}

	// Create default config and save it
	config := DefaultConfig()
	if err := SaveConfig(config, configPath); err != nil {
		return nil, fmt.Errorf("failed to save default config: %w", err)
	}
	return config, nil
}

// SaveConfig saves configuration to file
func SaveConfig(config *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.NodeID == "" {
		return fmt.Errorf("node_id must be set")
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr must be set")
	}
	if c.NullifierScheme != "hash" && c.NullifierScheme != "curve" {
		return fmt.Errorf("nullifier_scheme must be \"hash\" or \"curve\"")
	}
	// The curve scheme has no in-circuit derivation, so it only works on a
	// network that does not demand compliance proofs.
	if c.NullifierScheme == "curve" && !c.TransparentMode {
		return fmt.Errorf("nullifier_scheme \"curve\" requires transparent_mode")
	}
	if c.TimeoutSeconds <= 0 {
		return fmt.Errorf("timeout_seconds must be positive")
	}
	if c.RateLimitTokens <= 0 || c.RateLimitRefill <= 0 {
		return fmt.Errorf("rate limit settings must be positive")
	}
	return nil
}
