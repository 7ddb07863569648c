// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jeremyhahn/go-passkey/pkg/passkey"
	"gopkg.in/yaml.v3"
)

// Config represents the complete server configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	WebAuthn WebAuthnConfig `yaml:"webauthn"`
	Ceremony CeremonyConfig `yaml:"ceremony"`
	Logging  LoggingConfig  `yaml:"logging"`
	TLS      TLSConfig      `yaml:"tls"`
	CORS     CORSConfig     `yaml:"cors"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Health   HealthConfig   `yaml:"health"`
}

// ServerConfig contains server-level settings
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// WebAuthnConfig contains relying party settings
type WebAuthnConfig struct {
	RPID             string        `yaml:"rp_id"`
	RPDisplayName    string        `yaml:"rp_display_name"`
	RPOrigin         string        `yaml:"rp_origin"`
	Timeout          time.Duration `yaml:"timeout"`
	UserVerification string        `yaml:"user_verification"` // required, preferred, discouraged
	Attestation      string        `yaml:"attestation"`       // none, indirect, direct
}

// CeremonyConfig controls pending ceremony lifetimes
type CeremonyConfig struct {
	TTL             time.Duration `yaml:"ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TLSConfig controls TLS/SSL settings
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// CORSConfig controls cross-origin request handling.
// When AllowedOrigins is empty the relying party origin is used.
type CORSConfig struct {
	Enabled        bool     `yaml:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"`
}

// MetricsConfig controls metrics endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// HealthConfig controls health check endpoint
type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Defaults returns a configuration populated with sane defaults for
// local development.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "localhost",
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		WebAuthn: WebAuthnConfig{
			RPID:             "localhost",
			RPDisplayName:    "Passkey Server",
			RPOrigin:         "http://localhost:8080",
			Timeout:          60 * time.Second,
			UserVerification: "preferred",
			Attestation:      "none",
		},
		Ceremony: CeremonyConfig{
			TTL:             2 * time.Minute,
			CleanupInterval: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		CORS: CORSConfig{
			Enabled: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Health: HealthConfig{
			Enabled: true,
			Path:    "/health",
		},
	}
}

// Load reads configuration from a YAML file and applies environment variable overrides
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		// #nosec G304 - Config file path is provided by admin/user
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration
func applyEnvOverrides(cfg *Config) {
	// Server settings
	if host := os.Getenv("PASSKEY_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if restPort := os.Getenv("PASSKEY_PORT"); restPort != "" {
		port, err := strconv.Atoi(restPort)
		if err != nil {
			log.Printf("Warning: invalid PASSKEY_PORT value %q, using default %d: %v",
				restPort, cfg.Server.Port, err)
		} else if port < 1 || port > 65535 {
			log.Printf("Warning: invalid PASSKEY_PORT value %q (out of range 1-65535), using default %d",
				restPort, cfg.Server.Port)
		} else {
			cfg.Server.Port = port
		}
	}

	// Relying party settings
	if rpID := os.Getenv("PASSKEY_RP_ID"); rpID != "" {
		cfg.WebAuthn.RPID = rpID
	}
	if rpName := os.Getenv("PASSKEY_RP_DISPLAY_NAME"); rpName != "" {
		cfg.WebAuthn.RPDisplayName = rpName
	}
	if rpOrigin := os.Getenv("PASSKEY_RP_ORIGIN"); rpOrigin != "" {
		cfg.WebAuthn.RPOrigin = rpOrigin
	}

	// Ceremony settings
	if ttl := os.Getenv("PASSKEY_CEREMONY_TTL"); ttl != "" {
		d, err := time.ParseDuration(ttl)
		if err != nil {
			log.Printf("Warning: invalid PASSKEY_CEREMONY_TTL value %q, using default %s: %v",
				ttl, cfg.Ceremony.TTL, err)
		} else {
			cfg.Ceremony.TTL = d
		}
	}

	// Logging
	if level := os.Getenv("PASSKEY_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if format := os.Getenv("PASSKEY_LOG_FORMAT"); format != "" {
		cfg.Logging.Format = format
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server port
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	// Validate relying party settings
	if err := c.PasskeyConfig().Validate(); err != nil {
		return err
	}

	// Validate ceremony settings
	if c.Ceremony.TTL < 0 {
		return fmt.Errorf("ceremony ttl must not be negative")
	}
	if c.Ceremony.CleanupInterval < 0 {
		return fmt.Errorf("ceremony cleanup_interval must not be negative")
	}

	// Validate logging level
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, error, or fatal)", c.Logging.Level)
	}

	// Validate logging format
	validFormats := map[string]bool{
		"json": true, "text": true, "console": true,
	}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s (must be json, text, or console)", c.Logging.Format)
	}

	// Validate TLS settings
	if c.TLS.Enabled {
		if c.TLS.CertFile == "" {
			return fmt.Errorf("TLS cert_file is required when TLS is enabled")
		}
		if c.TLS.KeyFile == "" {
			return fmt.Errorf("TLS key_file is required when TLS is enabled")
		}
	}

	return nil
}

// PasskeyConfig maps the relying party and ceremony sections into the
// ceremony service configuration.
func (c *Config) PasskeyConfig() *passkey.Config {
	pc := &passkey.Config{
		RPID:                  c.WebAuthn.RPID,
		RPDisplayName:         c.WebAuthn.RPDisplayName,
		RPOrigin:              c.WebAuthn.RPOrigin,
		Timeout:               c.WebAuthn.Timeout,
		CeremonyTTL:           c.Ceremony.TTL,
		UserVerification:      c.WebAuthn.UserVerification,
		AttestationPreference: c.WebAuthn.Attestation,
		Debug:                 strings.EqualFold(c.Logging.Level, "debug"),
	}
	pc.SetDefaults()
	return pc
}

// AllowedOrigins returns the CORS origin allowlist, falling back to the
// relying party origin when none is configured.
func (c *Config) AllowedOrigins() []string {
	if len(c.CORS.AllowedOrigins) > 0 {
		return c.CORS.AllowedOrigins
	}
	return []string{c.WebAuthn.RPOrigin}
}

// ListenAddress returns the host:port the server binds to.
func (c *Config) ListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
