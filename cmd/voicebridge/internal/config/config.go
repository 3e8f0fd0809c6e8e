// Package config loads the voicebridge server configuration.
//
// Configuration comes from a YAML file, with secrets overridable from
// the environment so they can stay out of the file:
//
//	VOICEBRIDGE_SHARED_SECRET     carrier shared secret
//	VOICEBRIDGE_PROVIDER_API_KEY  upstream provider API key
//	VOICEBRIDGE_ENVIRONMENT       deployment environment tag
//	VOICEBRIDGE_LISTEN            HTTP listen address
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/veridian-labs/voicebridge/pkg/provider"
)

// Config is the top-level server configuration.
type Config struct {
	// Listen is the HTTP listen address, e.g. ":8080".
	Listen string `yaml:"listen"`

	// Environment tags this deployment; calls for other environments
	// are refused.
	Environment string `yaml:"environment"`

	// SharedSecret is the token the carrier must present.
	SharedSecret string `yaml:"shared_secret"`

	// MaxSessions caps concurrent calls.
	MaxSessions int `yaml:"max_sessions"`

	// PreConnectFrames sizes the per-call buffer for audio that
	// arrives before the provider is ready.
	PreConnectFrames int `yaml:"pre_connect_frames"`

	Provider Provider `yaml:"provider"`
	Actions  Actions  `yaml:"actions"`
}

// Provider selects and configures the upstream backend. The variant is
// fixed at startup; there is no per-call routing.
type Provider struct {
	// Variant is "realtime" or "evi".
	Variant string `yaml:"variant"`

	APIKey       string `yaml:"api_key"`
	Model        string `yaml:"model"`
	Voice        string `yaml:"voice"`
	Instructions string `yaml:"instructions"`

	// BaseURL overrides the provider endpoint.
	BaseURL string `yaml:"base_url"`

	ConnectTimeout time.Duration          `yaml:"connect_timeout"`
	TurnDetection  provider.TurnDetection `yaml:"turn_detection"`
}

// Actions configures the built-in business actions.
type Actions struct {
	// PortalURL is the self-service link sent by send_portal_link.
	PortalURL string `yaml:"portal_url"`

	// Customers seeds the in-memory directory backend.
	Customers []CustomerSeed `yaml:"customers"`
}

// CustomerSeed is one directory entry in the config file.
type CustomerSeed struct {
	Phone        string            `yaml:"phone"`
	ID           string            `yaml:"id"`
	Name         string            `yaml:"name"`
	Requirements []RequirementSeed `yaml:"requirements"`
}

// RequirementSeed is one open requirement attached to a customer id.
type RequirementSeed struct {
	Code        string `yaml:"code"`
	Description string `yaml:"description"`
	DueDate     string `yaml:"due_date"`
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes config YAML, applies environment overrides and
// defaults, and validates.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("VOICEBRIDGE_SHARED_SECRET"); v != "" {
		c.SharedSecret = v
	}
	if v := os.Getenv("VOICEBRIDGE_PROVIDER_API_KEY"); v != "" {
		c.Provider.APIKey = v
	}
	if v := os.Getenv("VOICEBRIDGE_ENVIRONMENT"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("VOICEBRIDGE_LISTEN"); v != "" {
		c.Listen = v
	}
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = ":8080"
	}
	if c.MaxSessions <= 0 {
		c.MaxSessions = 20
	}
	if c.PreConnectFrames <= 0 {
		c.PreConnectFrames = 500
	}
	if c.Provider.Variant == "" {
		c.Provider.Variant = string(provider.VariantRealtime)
	}
	if c.Provider.ConnectTimeout <= 0 {
		c.Provider.ConnectTimeout = 10 * time.Second
	}
}

func (c *Config) validate() error {
	switch provider.Variant(c.Provider.Variant) {
	case provider.VariantRealtime, provider.VariantEmpathic:
	default:
		return fmt.Errorf("config: unknown provider variant %q (want %q or %q)",
			c.Provider.Variant, provider.VariantRealtime, provider.VariantEmpathic)
	}
	if c.Environment == "" {
		return fmt.Errorf("config: environment is required")
	}
	if c.SharedSecret == "" {
		return fmt.Errorf("config: shared_secret is required (file or VOICEBRIDGE_SHARED_SECRET)")
	}
	if c.Provider.APIKey == "" {
		return fmt.Errorf("config: provider.api_key is required (file or VOICEBRIDGE_PROVIDER_API_KEY)")
	}
	return nil
}

// ProviderConfig translates the file section into the adapter
// configuration shared by both variants.
func (c *Config) ProviderConfig() provider.Config {
	return provider.Config{
		APIKey:         c.Provider.APIKey,
		Model:          c.Provider.Model,
		Voice:          c.Provider.Voice,
		Instructions:   c.Provider.Instructions,
		BaseURL:        c.Provider.BaseURL,
		ConnectTimeout: c.Provider.ConnectTimeout,
		TurnDetection:  c.Provider.TurnDetection,
	}
}
