package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"storefront/internal/cache"
	apperrors "storefront/internal/common/errors"
)

// PolicyFile is the YAML layout of CACHE_POLICY_FILE:
//
//	categories:
//	  products: { remote: 3600s, local: 300s }
//	default: { remote: 3600s, local: 300s }
type PolicyFile struct {
	Categories map[string]cache.TTL `yaml:"categories"`
	Default    *cache.TTL           `yaml:"default"`
}

// LoadPolicy returns the default TTL policy with the overrides from path
// applied. An empty path returns the defaults unchanged.
func LoadPolicy(path string) (cache.Policy, error) {
	policy := cache.DefaultPolicy()
	if path == "" {
		return policy, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return policy, apperrors.ConfigError(fmt.Sprintf("cannot read cache policy file %s: %v", path, err))
	}
	return ParsePolicy(data)
}

// ParsePolicy applies YAML overrides to the default policy. Unknown
// categories and non-positive remote TTLs are rejected.
func ParsePolicy(data []byte) (cache.Policy, error) {
	policy := cache.DefaultPolicy()

	var file PolicyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return policy, apperrors.ConfigError(fmt.Sprintf("invalid cache policy file: %v", err))
	}

	names := make([]string, 0, len(file.Categories))
	for name := range file.Categories {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		category, ok := cache.ParseCategory(name)
		if !ok {
			return policy, apperrors.ValidationError(fmt.Sprintf("unknown cache category %q in policy file", name))
		}
		ttl := file.Categories[name]
		if ttl.Remote <= 0 {
			return policy, apperrors.ValidationError(fmt.Sprintf("remote TTL for %q must be positive", name))
		}
		policy = policy.With(category, ttl)
	}

	if file.Default != nil {
		if file.Default.Remote <= 0 {
			return policy, apperrors.ValidationError("default remote TTL must be positive")
		}
		policy = policy.WithFallback(*file.Default)
	}

	return policy, nil
}
