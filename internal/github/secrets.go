package github

import (
	"log/slog"
	"strconv"
)

// DefaultHost is the public GitHub REST API endpoint.
const DefaultHost Host = "https://api.github.com"

const redacted = "[REDACTED]"

// Host is the base URL of the GitHub API the app talks to.
type Host string

func (h Host) String() string { return string(h) }

// AppID is the numeric identifier GitHub assigns to an app.
type AppID uint64

// ParseAppID parses a decimal app id.
func ParseAppID(s string) (AppID, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return AppID(id), nil
}

func (id AppID) String() string { return strconv.FormatUint(uint64(id), 10) }

// PrivateKey holds the PEM encoded RSA key of the app. Printing it through
// fmt or slog never reveals the key material.
type PrivateKey struct {
	pem string
}

func NewPrivateKey(pem string) PrivateKey { return PrivateKey{pem: pem} }

// Expose returns the PEM text.
func (k PrivateKey) Expose() string { return k.pem }

func (k PrivateKey) IsZero() bool { return k.pem == "" }

func (k PrivateKey) String() string       { return redacted }
func (k PrivateKey) GoString() string     { return "github.PrivateKey(" + redacted + ")" }
func (k PrivateKey) LogValue() slog.Value { return slog.StringValue(redacted) }

// WebhookSecret is the shared secret GitHub uses to sign webhook payloads.
type WebhookSecret struct {
	secret string
}

func NewWebhookSecret(secret string) WebhookSecret { return WebhookSecret{secret: secret} }

// Expose returns the raw secret.
func (s WebhookSecret) Expose() string { return s.secret }

func (s WebhookSecret) IsZero() bool { return s.secret == "" }

func (s WebhookSecret) String() string       { return redacted }
func (s WebhookSecret) GoString() string     { return "github.WebhookSecret(" + redacted + ")" }
func (s WebhookSecret) LogValue() slog.Value { return slog.StringValue(redacted) }
