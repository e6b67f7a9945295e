package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Server
	Port        int    `envconfig:"PORT" default:"3000"`
	Environment string `envconfig:"ENV" default:"development"`

	// Database
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// Creation provider (the embedded avatar builder)
	ProviderDomains string `envconfig:"PROVIDER_DOMAINS" default:"readyplayer.me,iranverse.io"`
	MorphTargets    string `envconfig:"MORPH_TARGETS" default:"ARKit,Oculus Visemes,mouthOpen,mouthSmile"`

	// Session
	SessionTimeout time.Duration `envconfig:"SESSION_TIMEOUT" default:"30s"`

	// Upstream profile backend
	BackendURL   string `envconfig:"BACKEND_URL" default:"http://localhost:8080"`
	BackendToken string `envconfig:"BACKEND_TOKEN" required:"true"`

	// Fallback avatars
	FallbackMaleURL      string `envconfig:"FALLBACK_MALE_URL" default:"https://assets.iranverse.io/avatars/default_male.glb"`
	FallbackFemaleURL    string `envconfig:"FALLBACK_FEMALE_URL" default:"https://assets.iranverse.io/avatars/default_female.glb"`
	FallbackNonBinaryURL string `envconfig:"FALLBACK_NONBINARY_URL" default:"https://assets.iranverse.io/avatars/default_nonbinary.glb"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// ProviderDomainList splits the comma-separated allow-list of creation
// provider domains.
func (c *Config) ProviderDomainList() []string {
	parts := strings.Split(c.ProviderDomains, ",")
	domains := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			domains = append(domains, p)
		}
	}
	return domains
}

// MorphTargetList splits the comma-separated morph-target capability set
// appended to resolved model URLs.
func (c *Config) MorphTargetList() []string {
	parts := strings.Split(c.MorphTargets, ",")
	targets := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			targets = append(targets, p)
		}
	}
	return targets
}
