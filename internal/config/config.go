package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"go.yaml.in/yaml/v4"
)

// Config is the top-level application configuration.
type Config struct {
	LogLevel  string    `yaml:"log_level"`
	Server    Server    `yaml:"server"`
	Account   Account   `yaml:"account"`
	Search    Search    `yaml:"search"`
	Extractor Extractor `yaml:"extractor"`
	Timeouts  Timeouts  `yaml:"timeouts"`
}

// Server holds the HTTP listener configuration.
type Server struct {
	Port         int `yaml:"port"`
	PortAttempts int `yaml:"port_attempts"`
}

// Account is the default mailbox identity used when a client supplies no
// credentials, and by every fetch-verification call.
type Account struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// Search tunes the recency-phase fallback window.
type Search struct {
	RecencyWindowMinutes int `yaml:"recency_window_minutes"`
}

// Extractor tunes the code extraction cascade.
type Extractor struct {
	BareNumberFallback bool `yaml:"bare_number_fallback"`
}

// Timeouts bounds the IMAP operations.
type Timeouts struct {
	ConnectSeconds int `yaml:"connect_seconds"`
	FetchSeconds   int `yaml:"fetch_seconds"`
}

// GetPortAttempts returns how many successive ports to try, defaulting to 10.
func (s *Server) GetPortAttempts() int {
	if s.PortAttempts <= 0 {
		return 10
	}
	return s.PortAttempts
}

// HasCredentials reports whether a default identity is configured.
func (a *Account) HasCredentials() bool {
	return a.Email != "" && a.Password != ""
}

// RecencyWindow returns the recency-phase window as a time.Duration.
func (s *Search) RecencyWindow() time.Duration {
	if s.RecencyWindowMinutes <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(s.RecencyWindowMinutes) * time.Minute
}

// ConnectTimeout returns the bound on connect-email, defaulting to 30s.
func (t *Timeouts) ConnectTimeout() time.Duration {
	if t.ConnectSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(t.ConnectSeconds) * time.Second
}

// FetchTimeout returns the bound on fetch-verification, defaulting to 60s.
func (t *Timeouts) FetchTimeout() time.Duration {
	if t.FetchSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(t.FetchSeconds) * time.Second
}

// Load reads and parses a YAML configuration file, then applies
// environment overrides (EMAIL_USER, EMAIL_PASSWORD, PORT). A missing
// file is not an error: the server can run entirely from environment
// variables and defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{
		LogLevel: "info",
		Server: Server{
			Port: 3000,
		},
		Extractor: Extractor{
			BareNumberFallback: true,
		},
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("EMAIL_USER"); v != "" {
		c.Account.Email = v
	}
	if v := os.Getenv("EMAIL_PASSWORD"); v != "" {
		c.Account.Password = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Search.RecencyWindowMinutes < 0 {
		return fmt.Errorf("search.recency_window_minutes must not be negative")
	}
	return nil
}
