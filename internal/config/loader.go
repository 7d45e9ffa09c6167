package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads and parses configuration from a file.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	if _, err := os.Stat(absPath); err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	// Apply environment variable interpolation before parsing.
	interpolated := interpolateEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(interpolated), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyDefaults merges default values into cfg where not explicitly set.
func applyDefaults(cfg *Config) {
	defaults := Defaults()

	if cfg.Service.Name == "" {
		cfg.Service.Name = defaults.Service.Name
	}
	if cfg.Service.Listen == "" {
		cfg.Service.Listen = defaults.Service.Listen
	}
	if cfg.Service.LogLevel == "" {
		cfg.Service.LogLevel = defaults.Service.LogLevel
	}
	if cfg.Service.MaxUploadBytes == 0 {
		cfg.Service.MaxUploadBytes = defaults.Service.MaxUploadBytes
	}

	if cfg.State.Path == "" {
		cfg.State.Path = defaults.State.Path
	}

	if cfg.Storage.URLTTL == 0 {
		cfg.Storage.URLTTL = defaults.Storage.URLTTL
	}
	if cfg.Storage.DeleteAfter == 0 {
		cfg.Storage.DeleteAfter = defaults.Storage.DeleteAfter
	}

	if len(cfg.ImageAPI.Scopes) == 0 {
		cfg.ImageAPI.Scopes = defaults.ImageAPI.Scopes
	}
	if cfg.ImageAPI.PollInterval == 0 {
		cfg.ImageAPI.PollInterval = defaults.ImageAPI.PollInterval
	}
	if cfg.ImageAPI.PollAttempts == 0 {
		cfg.ImageAPI.PollAttempts = defaults.ImageAPI.PollAttempts
	}

	if cfg.Translation.CallDelay == 0 {
		cfg.Translation.CallDelay = defaults.Translation.CallDelay
	}
	if cfg.Translation.TargetLang == "" {
		cfg.Translation.TargetLang = defaults.Translation.TargetLang
	}
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Undefined variables are left as-is (caught later by validation).
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}

// validate performs basic validation on the configuration.
func validate(cfg *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Service.LogLevel] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}

	if cfg.State.Path == "" {
		return fmt.Errorf("state.path is required")
	}

	required := []struct {
		name  string
		value string
	}{
		{"storage.endpoint", cfg.Storage.Endpoint},
		{"storage.access_key", cfg.Storage.AccessKey},
		{"storage.secret_key", cfg.Storage.SecretKey},
		{"storage.bucket", cfg.Storage.Bucket},
		{"image_api.base_url", cfg.ImageAPI.BaseURL},
		{"image_api.token_url", cfg.ImageAPI.TokenURL},
		{"image_api.client_id", cfg.ImageAPI.ClientID},
		{"image_api.client_secret", cfg.ImageAPI.ClientSecret},
		{"translation.base_url", cfg.Translation.BaseURL},
		{"translation.auth_key", cfg.Translation.AuthKey},
	}
	for _, field := range required {
		if field.value == "" {
			return fmt.Errorf("%s is required", field.name)
		}
		// Check for unresolved env vars (security: no placeholder secrets at runtime).
		if envVarPattern.MatchString(field.value) {
			matches := envVarPattern.FindStringSubmatch(field.value)
			if len(matches) > 1 {
				return fmt.Errorf("%s: environment variable ${%s} is not set", field.name, matches[1])
			}
			return fmt.Errorf("%s: unresolved environment variable", field.name)
		}
	}

	if cfg.Storage.URLTTL <= 0 {
		return fmt.Errorf("storage.url_ttl must be positive")
	}
	if cfg.ImageAPI.PollInterval <= 0 {
		return fmt.Errorf("image_api.poll_interval must be positive")
	}
	if cfg.ImageAPI.PollAttempts <= 0 {
		return fmt.Errorf("image_api.poll_attempts must be positive")
	}
	if cfg.Translation.CallDelay < 0 {
		return fmt.Errorf("translation.call_delay must not be negative")
	}

	return nil
}
