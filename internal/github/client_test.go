package github

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticToken struct {
	token string
	err   error
}

func (s staticToken) AppToken() (string, error) { return s.token, s.err }

func TestClientApp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/app", r.URL.Path)
		assert.Equal(t, "Bearer jwt-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/vnd.github.v3+json", r.Header.Get("Accept"))
		assert.Equal(t, "octox", r.Header.Get("User-Agent"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":42,"slug":"octox-dev","name":"Octox Dev"}`))
	}))
	defer srv.Close()

	client := NewClient(Host(srv.URL+"/"), staticToken{token: "jwt-token"})

	app, err := client.App(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), app.ID)
	assert.Equal(t, "octox-dev", app.Slug)
	assert.NoError(t, client.CheckApp(context.Background()))
}

func TestClientAppErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"A JSON web token could not be decoded"}`))
	}))
	defer srv.Close()

	err := NewClient(Host(srv.URL), staticToken{token: "bad"}).CheckApp(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Contains(t, err.Error(), "A JSON web token could not be decoded")
}

func TestClientTokenError(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	tokenErr := errors.New("invalid app credentials")
	err := NewClient(Host(srv.URL), staticToken{err: tokenErr}).CheckApp(context.Background())
	assert.ErrorIs(t, err, tokenErr)
	assert.False(t, called)
}

func TestClientUserAgentOption(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "custom-bot", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	err := NewClient(Host(srv.URL), staticToken{token: "t"}, WithUserAgent("custom-bot")).CheckApp(context.Background())
	assert.NoError(t, err)
}

func TestClientAppDecodesWithoutJSONContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(`{"id":1234,"slug":"octo-bot","name":"Octo Bot"}`))
	}))
	defer srv.Close()

	app, err := NewClient(Host(srv.URL), staticToken{token: "t"}).App(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1234), app.ID)
	assert.Equal(t, "octo-bot", app.Slug)
	assert.Equal(t, "Octo Bot", app.Name)
}

func TestClientAppRejectsUndecodableBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer srv.Close()

	_, err := NewClient(Host(srv.URL), staticToken{token: "t"}).App(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode")
}

func TestAPIErrorMessage(t *testing.T) {
	assert.Equal(t, "github api returned status 502", (&APIError{StatusCode: 502}).Error())
}
