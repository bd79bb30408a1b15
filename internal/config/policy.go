package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// PolicyFile is the on-disk form of rate limit policies:
//
//	policies:
//	  post_creation:
//	    max_actions: 10
//	    window: 10m
//	    key: posts
type PolicyFile struct {
	Policies map[string]PolicyFileEntry `yaml:"policies"`
}

// PolicyFileEntry is one action's entry. Window is a Go duration string.
type PolicyFileEntry struct {
	MaxActions int    `yaml:"max_actions"`
	Window     string `yaml:"window"`
	Key        string `yaml:"key"`
}

// LoadPolicyFile reads and validates a policy file.
func LoadPolicyFile(path string) (map[string]PolicyConfig, error) {
	// #nosec G304 -- path comes from operator configuration
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return ParsePolicies(data)
}

// ParsePolicies decodes and validates policy YAML.
func ParsePolicies(data []byte) (map[string]PolicyConfig, error) {
	var file PolicyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}

	policies := make(map[string]PolicyConfig, len(file.Policies))
	for name, entry := range file.Policies {
		action := strings.ToLower(strings.TrimSpace(name))
		if action == "" {
			return nil, fmt.Errorf("policy name is required")
		}
		if entry.MaxActions < 0 {
			return nil, fmt.Errorf("policy %s: max_actions must be positive", action)
		}

		var window time.Duration
		if raw := strings.TrimSpace(entry.Window); raw != "" {
			parsed, err := time.ParseDuration(raw)
			if err != nil || parsed <= 0 {
				return nil, fmt.Errorf("policy %s: invalid window %q", action, entry.Window)
			}
			window = parsed
		}

		policies[action] = PolicyConfig{
			MaxActions: entry.MaxActions,
			Window:     window,
			Key:        strings.TrimSpace(entry.Key),
		}
	}
	return policies, nil
}
