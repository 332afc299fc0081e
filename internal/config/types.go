package config

import (
	"net"

	"github.com/mattjoyce/octox/internal/github"
)

// File is the on-disk configuration, and also the shape of explicitly set
// values (flags merged over the file). Empty fields are unset.
type File struct {
	GitHub   GitHubConfig   `yaml:"github"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	State    StateConfig    `yaml:"state"`
	Workflow WorkflowConfig `yaml:"workflow"`
}

// GitHubConfig holds the app credentials.
type GitHubConfig struct {
	Host           string `yaml:"host"`
	AppID          string `yaml:"app_id"`
	PrivateKey     string `yaml:"private_key"`
	PrivateKeyPath string `yaml:"private_key_path"`
	WebhookSecret  string `yaml:"webhook_secret"`
}

// ServerConfig defines HTTP listener settings.
type ServerConfig struct {
	Listen      string `yaml:"listen"`
	MaxBodySize string `yaml:"max_body_size"` // e.g. "1MB", "524288"
}

// LogConfig defines logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// StateConfig defines where the delivery log lives. Empty disables it.
type StateConfig struct {
	Path string `yaml:"path"`
}

// WorkflowConfig defines engine safeguards.
type WorkflowConfig struct {
	MaxSteps int `yaml:"max_steps"`
}

// Settings is the fully resolved configuration the server runs with.
type Settings struct {
	Host          github.Host
	AppID         github.AppID
	PrivateKey    github.PrivateKey
	WebhookSecret github.WebhookSecret

	Listen string
	// Listener, when set, is used instead of binding Listen.
	Listener net.Listener

	LogLevel    string
	LogFormat   string
	MaxBodySize int64
	MaxSteps    int
	DBPath      string
}

// Environment variable names.
const (
	EnvGitHubHost     = "OCTOX_GITHUB_HOST"
	EnvAppID          = "OCTOX_APP_ID"
	EnvPrivateKey     = "OCTOX_PRIVATE_KEY"
	EnvPrivateKeyPath = "OCTOX_PRIVATE_KEY_PATH"
	EnvWebhookSecret  = "OCTOX_WEBHOOK_SECRET"
	EnvAddress        = "OCTOX_ADDRESS"
	EnvLogLevel       = "OCTOX_LOG_LEVEL"
	EnvDB             = "OCTOX_DB"
)

// Defaults.
const (
	DefaultListen      = "127.0.0.1:3000"
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "json"
	DefaultMaxBodySize = 1 << 20 // 1 MiB
)

// Merge returns f with every non-empty field of over applied on top.
func (f File) Merge(over File) File {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&f.GitHub.Host, over.GitHub.Host)
	set(&f.GitHub.AppID, over.GitHub.AppID)
	set(&f.GitHub.PrivateKey, over.GitHub.PrivateKey)
	set(&f.GitHub.PrivateKeyPath, over.GitHub.PrivateKeyPath)
	set(&f.GitHub.WebhookSecret, over.GitHub.WebhookSecret)
	set(&f.Server.Listen, over.Server.Listen)
	set(&f.Server.MaxBodySize, over.Server.MaxBodySize)
	set(&f.Log.Level, over.Log.Level)
	set(&f.Log.Format, over.Log.Format)
	set(&f.State.Path, over.State.Path)
	if over.Workflow.MaxSteps != 0 {
		f.Workflow.MaxSteps = over.Workflow.MaxSteps
	}
	return f
}
