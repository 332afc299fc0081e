package webhook

import (
	"errors"
	"fmt"
	"net/http"
)

// Authentication failures. The messages are part of the HTTP contract.
var (
	ErrWrongSignatureFormat = errors.New("X-Hub-Signature-256 header must start with sha256=")
	ErrDecodeSignature      = errors.New("failed to decode the X-Hub-Signature-256 header")
	ErrInvalidSignature     = errors.New("X-Hub-Signature-256 header is invalid")
	ErrUnexpectedPayload    = errors.New("failed to deserialize the body based on the X-GitHub-Event header")
)

// MissingHeaderError reports a required request header that was not sent.
type MissingHeaderError struct {
	Header string
}

func (e *MissingHeaderError) Error() string {
	return fmt.Sprintf("missing %s header", e.Header)
}

// authStatus maps an authentication failure to its HTTP status.
func authStatus(err error) int {
	var missing *MissingHeaderError
	switch {
	case errors.As(err, &missing),
		errors.Is(err, ErrWrongSignatureFormat),
		errors.Is(err, ErrDecodeSignature),
		errors.Is(err, ErrUnexpectedPayload):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidSignature):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
