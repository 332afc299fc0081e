package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/mattjoyce/octox/internal/github"
)

// SignatureHeader carries the HMAC-SHA256 of the body, as "sha256=<hex>".
const SignatureHeader = "X-Hub-Signature-256"

// VerifySignature checks header against the HMAC-SHA256 of body keyed with
// secret. The digest comparison is constant time. A missing header is the
// caller's concern; pass only headers that were present.
func VerifySignature(body []byte, header string, secret github.WebhookSecret) error {
	idx := strings.LastIndexByte(header, '=')
	if idx < 0 {
		return ErrWrongSignatureFormat
	}

	provided, err := hex.DecodeString(header[idx+1:])
	if err != nil {
		return ErrDecodeSignature
	}

	if !hmac.Equal(provided, computeSignature(body, secret)) {
		return ErrInvalidSignature
	}
	return nil
}

func computeSignature(body []byte, secret github.WebhookSecret) []byte {
	mac := hmac.New(sha256.New, []byte(secret.Expose()))
	mac.Write(body)
	return mac.Sum(nil)
}

// Sign returns the X-Hub-Signature-256 value GitHub would send for body.
func Sign(body []byte, secret github.WebhookSecret) string {
	return "sha256=" + hex.EncodeToString(computeSignature(body, secret))
}
