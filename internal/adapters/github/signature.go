package github

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	perr "nitpick/internal/platform/errors"
)

const signaturePrefix = "sha256="

// VerifySignature checks the webhook HMAC-SHA256 over the exact raw body
// against the X-Hub-Signature-256 header value, in constant time.
// The caller must pass the bytes it read, not a re-serialized payload
func VerifySignature(body []byte, header, secret string) error {
	if secret == "" {
		return perr.Unauthorizedf("webhook secret not configured")
	}
	if !strings.HasPrefix(header, signaturePrefix) {
		return perr.Unauthorizedf("missing or malformed signature header")
	}
	got, err := hex.DecodeString(strings.TrimPrefix(header, signaturePrefix))
	if err != nil {
		return perr.Unauthorizedf("malformed signature hex")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	want := mac.Sum(nil)

	if !hmac.Equal(got, want) {
		return perr.Unauthorizedf("signature mismatch")
	}
	return nil
}

// Sign computes the header value for a body, used by tests and local tooling
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}
