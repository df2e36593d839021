package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port    string `yaml:"port"`
		HostKey string `yaml:"host_key"`
	} `yaml:"server"`
	NATS struct {
		URL string `yaml:"url"` // empty: run with the in-process bus
	} `yaml:"nats"`
	SchoolDirectory struct {
		BaseURL string `yaml:"base_url"` // empty: roster reconciliation disabled
		APIKey  string `yaml:"api_key"`
	} `yaml:"school_directory"`
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// loadConfig reads the yaml config and applies env overrides. A missing
// file is fine; everything has a default or an env fallback.
func loadConfig(path string) (*Config, error) {
	var config Config

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config.Server.Port = getEnv("PORT", defaultString(config.Server.Port, "8080"))
	config.Server.HostKey = getEnv("HOST_API_KEY", config.Server.HostKey)
	config.NATS.URL = getEnv("NATS_URL", config.NATS.URL)
	config.SchoolDirectory.BaseURL = getEnv("SCHOOL_API_URL", config.SchoolDirectory.BaseURL)
	config.SchoolDirectory.APIKey = getEnv("SCHOOL_API_KEY", config.SchoolDirectory.APIKey)

	return &config, nil
}

func defaultString(val, fallback string) string {
	if val == "" {
		return fallback
	}
	return val
}
