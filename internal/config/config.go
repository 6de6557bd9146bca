// Package config handles configuration loading and validation for folioserve.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// AdminConfig holds the bootstrap admin account, seeded on first start when
// the user collection is empty.
type AdminConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Config holds server configuration.
type Config struct {
	Listen    string      `yaml:"listen"`
	DataDir   string      `yaml:"data_dir"`
	JWTSecret string      `yaml:"jwt_secret"`
	LogLevel  string      `yaml:"log_level"`
	Admin     AdminConfig `yaml:"admin"`
}

// Load reads configuration from a YAML file and applies defaults. A missing
// file yields a default configuration.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = ":3000"
	}
	if c.DataDir == "" {
		c.DataDir = "./data"
	}
	if strings.HasPrefix(c.DataDir, "~/") {
		if homeDir, err := os.UserHomeDir(); err == nil {
			c.DataDir = filepath.Join(homeDir, c.DataDir[2:])
		}
	}
	// The secret can come from the environment so it never has to live in
	// the config file.
	if env := os.Getenv("FOLIOSERVE_JWT_SECRET"); env != "" {
		c.JWTSecret = env
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// ObjectsDir returns the objects root directory.
func (c *Config) ObjectsDir() string {
	return filepath.Join(c.DataDir, "objects")
}

// UsersFile returns the path of the user collection file.
func (c *Config) UsersFile() string {
	return filepath.Join(c.DataDir, "config", "users.yaml")
}

// TagsFile returns the path of the tag registry file.
func (c *Config) TagsFile() string {
	return filepath.Join(c.DataDir, "config", "tags.yaml")
}

// PinnedFile returns the path of the pinned-id sequence file.
func (c *Config) PinnedFile() string {
	return filepath.Join(c.DataDir, "config", "pinned.yaml")
}

// Validate checks that required settings are present.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is required (or set FOLIOSERVE_JWT_SECRET)")
	}
	return nil
}
