package config

import (
	"os"
	"strings"

	"github.com/mattjoyce/octox/internal/github"
)

// LookupFunc reads an environment variable.
type LookupFunc func(key string) (string, bool)

// Resolver turns explicit values and the environment into Settings.
// Every setting is resolved in the same order: explicit value, environment
// variable, file path (private key only), then a ConfigurationError.
type Resolver struct {
	explicit File
	lookup   LookupFunc
	readFile func(string) ([]byte, error)
}

// NewResolver creates a Resolver. A nil lookup reads the process environment.
func NewResolver(explicit File, lookup LookupFunc) *Resolver {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return &Resolver{explicit: explicit, lookup: lookup, readFile: os.ReadFile}
}

func (r *Resolver) env(key string) (string, bool) {
	v, ok := r.lookup(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

func (r *Resolver) first(explicit, envKey string) (string, bool) {
	if explicit != "" {
		return explicit, true
	}
	return r.env(envKey)
}

// Host returns the GitHub API base URL, defaulting to api.github.com.
func (r *Resolver) Host() github.Host {
	if v, ok := r.first(r.explicit.GitHub.Host, EnvGitHubHost); ok {
		return github.Host(strings.TrimRight(v, "/"))
	}
	return github.DefaultHost
}

// AppID returns the numeric app id.
func (r *Resolver) AppID() (github.AppID, error) {
	raw, ok := r.first(r.explicit.GitHub.AppID, EnvAppID)
	if !ok {
		return 0, &ConfigurationError{
			Setting: "app_id",
			Message: "app id must be set either manually or as an environment variable",
		}
	}
	id, err := github.ParseAppID(strings.TrimSpace(raw))
	if err != nil {
		return 0, &ConfigurationError{Setting: "app_id", Message: "app id must be a number"}
	}
	return id, nil
}

// PrivateKey returns the app's PEM key from, in order: the explicit value,
// the explicit key path, $OCTOX_PRIVATE_KEY, the file at
// $OCTOX_PRIVATE_KEY_PATH.
func (r *Resolver) PrivateKey() (github.PrivateKey, error) {
	if v := r.explicit.GitHub.PrivateKey; v != "" {
		return github.NewPrivateKey(v), nil
	}
	if p := r.explicit.GitHub.PrivateKeyPath; p != "" {
		return r.readKey(p)
	}
	if v, ok := r.env(EnvPrivateKey); ok {
		return github.NewPrivateKey(v), nil
	}
	if p, ok := r.env(EnvPrivateKeyPath); ok {
		return r.readKey(p)
	}
	return github.PrivateKey{}, &ConfigurationError{
		Setting: "private_key",
		Message: "private key must be set either manually or as an environment variable",
	}
}

func (r *Resolver) readKey(path string) (github.PrivateKey, error) {
	data, err := r.readFile(path)
	if err != nil {
		return github.PrivateKey{}, &ConfigurationError{
			Setting: "private_key_path",
			Message: "failed to read private key from " + path,
			Err:     err,
		}
	}
	return github.NewPrivateKey(string(data)), nil
}

// WebhookSecret returns the shared webhook secret.
func (r *Resolver) WebhookSecret() (github.WebhookSecret, error) {
	v, ok := r.first(r.explicit.GitHub.WebhookSecret, EnvWebhookSecret)
	if !ok {
		return github.WebhookSecret{}, &ConfigurationError{
			Setting: "webhook_secret",
			Message: "webhook secret must be set either manually or as an environment variable",
		}
	}
	return github.NewWebhookSecret(v), nil
}

// DBPath returns the delivery log path, or "" when the log is disabled.
func (r *Resolver) DBPath() string {
	v, _ := r.first(r.explicit.State.Path, EnvDB)
	return v
}

// AppCredentials resolves only what is needed to authenticate as the app.
func (r *Resolver) AppCredentials() (github.Host, github.AppID, github.PrivateKey, error) {
	id, err := r.AppID()
	if err != nil {
		return "", 0, github.PrivateKey{}, err
	}
	key, err := r.PrivateKey()
	if err != nil {
		return "", 0, github.PrivateKey{}, err
	}
	return r.Host(), id, key, nil
}

// Resolve resolves every setting the server needs.
func (r *Resolver) Resolve() (*Settings, error) {
	host, id, key, err := r.AppCredentials()
	if err != nil {
		return nil, err
	}
	secret, err := r.WebhookSecret()
	if err != nil {
		return nil, err
	}

	s := &Settings{
		Host:          host,
		AppID:         id,
		PrivateKey:    key,
		WebhookSecret: secret,
		Listen:        DefaultListen,
		LogLevel:      DefaultLogLevel,
		LogFormat:     DefaultLogFormat,
		MaxBodySize:   DefaultMaxBodySize,
		MaxSteps:      r.explicit.Workflow.MaxSteps,
	}
	if v, ok := r.first(r.explicit.Server.Listen, EnvAddress); ok {
		s.Listen = v
	}
	if v, ok := r.first(r.explicit.Log.Level, EnvLogLevel); ok {
		s.LogLevel = strings.ToLower(v)
	}
	if v := r.explicit.Log.Format; v != "" {
		s.LogFormat = strings.ToLower(v)
	}
	s.DBPath = r.DBPath()
	if v := r.explicit.Server.MaxBodySize; v != "" {
		size, err := ParseSize(v)
		if err != nil {
			return nil, &ConfigurationError{Setting: "max_body_size", Message: "invalid max body size " + v, Err: err}
		}
		s.MaxBodySize = size
	}
	if s.MaxSteps < 0 {
		return nil, &ConfigurationError{Setting: "max_steps", Message: "max steps must not be negative"}
	}
	return s, nil
}
