package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvironmentConfig describes one deployment environment and how its
// identity system is reached. ProductionLike environments are gated: their
// scopes need an approved access request.
type EnvironmentConfig struct {
	ID              string `yaml:"id"`
	Rank            int    `yaml:"rank"`
	ProductionLike  bool   `yaml:"productionLike"`
	IdentityBaseURL string `yaml:"identityBaseUrl"`
	IdentityAPIKey  string `yaml:"identityApiKey"`
}

type catalogueFile struct {
	Environments []EnvironmentConfig `yaml:"environments"`
}

// DefaultEnvironments is used when no catalogue file is configured.
func DefaultEnvironments() []EnvironmentConfig {
	return []EnvironmentConfig{
		{ID: "test", Rank: 1, IdentityBaseURL: "http://localhost:8180/admin/realms/test"},
		{ID: "production", Rank: 2, ProductionLike: true, IdentityBaseURL: "http://localhost:8180/admin/realms/production"},
	}
}

// LoadEnvironments reads the catalogue at path. API keys may reference an
// environment variable as "${NAME}".
func LoadEnvironments(path string) ([]EnvironmentConfig, error) {
	if path == "" {
		return DefaultEnvironments(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read environments file: %w", err)
	}
	return ParseEnvironments(raw)
}

func ParseEnvironments(raw []byte) ([]EnvironmentConfig, error) {
	var file catalogueFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse environments file: %w", err)
	}
	if len(file.Environments) == 0 {
		return nil, errors.New("environments file lists no environments")
	}
	seen := make(map[string]bool, len(file.Environments))
	for i, env := range file.Environments {
		env.ID = strings.TrimSpace(env.ID)
		if env.ID == "" {
			return nil, fmt.Errorf("environment %d has no id", i)
		}
		if seen[env.ID] {
			return nil, fmt.Errorf("environment %s is listed twice", env.ID)
		}
		seen[env.ID] = true
		env.IdentityAPIKey = os.ExpandEnv(env.IdentityAPIKey)
		file.Environments[i] = env
	}
	return file.Environments, nil
}
