// Package credential mints and caches the short-lived JWTs a GitHub App uses
// to authenticate as itself.
package credential

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mattjoyce/octox/internal/github"
)

const (
	// ClockSkew is subtracted from the issued-at claim to tolerate clock drift
	// between this host and GitHub.
	ClockSkew = 60 * time.Second
	// Validity is how long a minted token stays valid. GitHub caps app JWTs at
	// ten minutes.
	Validity = 10 * time.Minute
)

var (
	// ErrConfiguration means the private key cannot be used. Retrying with the
	// same store will fail the same way.
	ErrConfiguration = errors.New("invalid app credentials")
	// ErrSigning means the token could not be signed.
	ErrSigning = errors.New("failed to create JWT")
)

// Token is a signed app JWT and the instant it stops being valid.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// Expired reports whether the token is no longer usable at now.
func (t Token) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Store hands out app tokens, minting a new one only when the cached token
// is missing or expired. It is safe for concurrent use.
type Store struct {
	host  github.Host
	appID github.AppID
	pem   github.PrivateKey
	now   func() time.Time

	mu     sync.Mutex
	key    *rsa.PrivateKey
	keyErr error
	cached *Token
	minted int
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore creates a Store for the given app.
func NewStore(host github.Host, appID github.AppID, key github.PrivateKey, opts ...Option) *Store {
	s := &Store{
		host:  host,
		appID: appID,
		pem:   key,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Host() github.Host   { return s.host }
func (s *Store) AppID() github.AppID { return s.appID }

// CurrentToken returns the cached token if it is still valid at the current
// time, otherwise it mints and caches a new one. The lock covers only the
// check, the signing and the cache swap.
func (s *Store) CurrentToken() (Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.cached != nil && !s.cached.Expired(now) {
		return *s.cached, nil
	}

	token, err := s.mintLocked(now)
	if err != nil {
		return Token{}, err
	}
	s.cached = &token
	s.minted++
	return token, nil
}

// Minted reports how many tokens the store has signed.
func (s *Store) Minted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.minted
}

func (s *Store) mintLocked(now time.Time) (Token, error) {
	key, err := s.signingKeyLocked()
	if err != nil {
		return Token{}, err
	}

	expiresAt := now.Add(Validity)
	claims := jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now.Add(-ClockSkew)),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		Issuer:    s.appID.String(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		return Token{}, fmt.Errorf("%w: %w", ErrSigning, err)
	}
	return Token{Value: signed, ExpiresAt: expiresAt}, nil
}

// signingKeyLocked parses the PEM once. A parse failure is remembered so a
// misconfigured store fails fast on every call.
func (s *Store) signingKeyLocked() (*rsa.PrivateKey, error) {
	if s.key != nil {
		return s.key, nil
	}
	if s.keyErr != nil {
		return nil, s.keyErr
	}
	if s.pem.IsZero() {
		s.keyErr = fmt.Errorf("%w: private key is empty", ErrConfiguration)
		return nil, s.keyErr
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(s.pem.Expose()))
	if err != nil {
		s.keyErr = fmt.Errorf("%w: parse private key: %w", ErrConfiguration, err)
		return nil, s.keyErr
	}
	s.key = key
	return key, nil
}

// AppToken returns the current token string. It satisfies github.TokenSource.
func (s *Store) AppToken() (string, error) {
	token, err := s.CurrentToken()
	if err != nil {
		return "", err
	}
	return token.Value, nil
}
