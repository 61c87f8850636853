package cluster

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config is the shared cluster configuration file. Every process loads the
// same file and picks out the part it needs.
type Config struct {
	// Backs lists all configured backend addresses (host:port). Backend
	// index == position in this list, everywhere in the system.
	Backs []string `json:"backs"`
	// Keeper is the keeper's bind address (serves /metrics).
	Keeper string `json:"keeper"`
	// Front is the front-end server's bind address.
	Front string `json:"front"`
}

// LoadConfig reads and validates a cluster config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if len(config.Backs) == 0 {
		return nil, fmt.Errorf("config %s: no backends listed", path)
	}
	return &config, nil
}
