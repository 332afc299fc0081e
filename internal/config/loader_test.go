package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "octox.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("TEST_OCTOX_SECRET", "from-env")

	path := writeConfig(t, `
github:
  host: https://ghe.example.com/api/v3
  app_id: "42"
  private_key_path: keys/app.pem
  webhook_secret: ${TEST_OCTOX_SECRET}
server:
  listen: 0.0.0.0:8080
  max_body_size: 512KB
log:
  level: debug
  format: text
state:
  path: ./data/deliveries.db
workflow:
  max_steps: 50
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://ghe.example.com/api/v3", cfg.GitHub.Host)
	assert.Equal(t, "42", cfg.GitHub.AppID)
	assert.Equal(t, "from-env", cfg.GitHub.WebhookSecret)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "keys", "app.pem"), cfg.GitHub.PrivateKeyPath)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Listen)
	assert.Equal(t, "512KB", cfg.Server.MaxBodySize)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 50, cfg.Workflow.MaxSteps)
}

func TestLoadRejectsUnresolvedSecret(t *testing.T) {
	path := writeConfig(t, `
github:
  webhook_secret: ${TEST_OCTOX_UNSET_SECRET_VAR}
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TEST_OCTOX_UNSET_SECRET_VAR")
}

func TestLoadValidation(t *testing.T) {
	tests := map[string]string{
		"bad size":       "server:\n  max_body_size: lots\n",
		"negative steps": "workflow:\n  max_steps: -1\n",
		"bad log level":  "log:\n  level: chatty\n",
		"bad yaml":       "github: [\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: "1048576", want: 1048576},
		{in: "1MB", want: 1 << 20},
		{in: "512kb", want: 512 << 10},
		{in: "2GB", want: 2 << 30},
		{in: " 4 KB ", want: 4 << 10},
		{in: "0", wantErr: true},
		{in: "-5MB", wantErr: true},
		{in: "big", wantErr: true},
		{in: "9223372036854775807GB", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSize(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
