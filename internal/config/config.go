package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"nutriledger/internal/agent"
)

// Config holds all application configuration
type Config struct {
	Server struct {
		Port  string `json:"port"`
		Debug bool   `json:"debug"`
	} `json:"server"`

	Storage struct {
		DataDir        string `json:"data_dir"`
		HistoryMaxDays int    `json:"history_max_days"`
	} `json:"storage"`

	LLM agent.Config `json:"llm"`
}

// LoadConfig loads configuration from a JSON file
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Handle missing values
	if config.Server.Port == "" {
		// Fail if port is not set
		return nil, fmt.Errorf("server port is not set in config file")
	}
	if config.Storage.DataDir == "" {
		config.Storage.DataDir = "data"
	}
	if config.Storage.HistoryMaxDays == 0 {
		config.Storage.HistoryMaxDays = 60
	}
	if config.LLM.ProjectID == "" {
		config.LLM.ProjectID = os.Getenv("GOOGLE_PROJECT_ID")
	}
	if config.LLM.Location == "" {
		config.LLM.Location = os.Getenv("GOOGLE_LOCATION")
	}
	if config.LLM.CredentialsFile == "" {
		config.LLM.CredentialsFile = os.Getenv("GOOGLE_CREDENTIALS_FILE")
	}

	return &config, nil
}

// GetConfigPath returns the path to the configuration file
func GetConfigPath() string {
	// First try environment variable
	if path := os.Getenv("NUTRILEDGER_CONFIG"); path != "" {
		return path
	}

	// Then try config directory
	configDir := "config"
	if _, err := os.Stat(configDir); err == nil {
		return filepath.Join(configDir, "config.json")
	}

	// Finally, try current directory
	return "config.json"
}
