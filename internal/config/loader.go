package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads a YAML configuration file. ${VAR} references are replaced with
// environment values before parsing; secrets that still reference an unset
// variable are rejected.
func Load(configPath string) (*File, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}

	var cfg File
	if err := yaml.Unmarshal([]byte(interpolateEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", absPath, err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Relative key paths are relative to the config file.
	if p := cfg.GitHub.PrivateKeyPath; p != "" && !filepath.IsAbs(p) {
		cfg.GitHub.PrivateKeyPath = filepath.Join(filepath.Dir(absPath), p)
	}
	return &cfg, nil
}

func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		// Left in place so validate can name it.
		return match
	})
}

func validate(cfg *File) error {
	secrets := map[string]string{
		"github.app_id":         cfg.GitHub.AppID,
		"github.private_key":    cfg.GitHub.PrivateKey,
		"github.webhook_secret": cfg.GitHub.WebhookSecret,
	}
	for field, value := range secrets {
		if m := envVarPattern.FindStringSubmatch(value); m != nil {
			return fmt.Errorf("%s references unset environment variable %s", field, m[1])
		}
	}

	if cfg.Server.MaxBodySize != "" {
		if _, err := ParseSize(cfg.Server.MaxBodySize); err != nil {
			return fmt.Errorf("server.max_body_size %q: %w", cfg.Server.MaxBodySize, err)
		}
	}
	if cfg.Workflow.MaxSteps < 0 {
		return fmt.Errorf("workflow.max_steps must not be negative")
	}

	validLogLevels := map[string]bool{"": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(cfg.Log.Level)] {
		return fmt.Errorf("log.level must be one of: debug, info, warn, error (got %q)", cfg.Log.Level)
	}
	return nil
}

// ParseSize parses size strings like "1MB", "512KB" or "2048576" to bytes.
func ParseSize(size string) (int64, error) {
	upper := strings.ToUpper(strings.TrimSpace(size))
	multiplier := int64(1)

	for _, unit := range []struct {
		suffix string
		factor int64
	}{
		{"KB", 1 << 10},
		{"MB", 1 << 20},
		{"GB", 1 << 30},
	} {
		if strings.HasSuffix(upper, unit.suffix) {
			multiplier = unit.factor
			upper = strings.TrimSuffix(upper, unit.suffix)
			break
		}
	}

	value, err := strconv.ParseInt(strings.TrimSpace(upper), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size value: %w", err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("size must be positive")
	}

	result := value * multiplier
	if result/multiplier != value {
		return 0, fmt.Errorf("size too large")
	}
	return result, nil
}
