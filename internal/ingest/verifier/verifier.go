// Package verifier authenticates inbound webhook requests before any payload
// is trusted. It supports HMAC-SHA256 signatures (GitHub-style
// "sha256=<hex>" headers) and exact bearer tokens. All checks use
// constant-time comparison.
package verifier

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
)

const signaturePrefix = "sha256="

// VerifySignature checks an HMAC-SHA256 signature header against the raw
// request body. The header must have the form "sha256=<hex>". It returns
// false (never an error) on a missing header, wrong algorithm prefix,
// malformed hex, or digest mismatch.
func VerifySignature(body []byte, signatureHeader, secret string) bool {
	if signatureHeader == "" || secret == "" {
		return false
	}

	if !strings.HasPrefix(signatureHeader, signaturePrefix) {
		return false
	}

	provided, err := hex.DecodeString(strings.TrimPrefix(signatureHeader, signaturePrefix))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := mac.Sum(nil)

	// hmac.Equal is constant-time; a plain bytes.Equal would leak how much
	// of the digest prefix matched.
	return hmac.Equal(provided, expected)
}

// VerifyBearerToken checks an Authorization header of the exact form
// "Bearer <token>" against the expected token.
func VerifyBearerToken(authHeader, expected string) bool {
	if authHeader == "" || expected == "" {
		return false
	}

	token, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(token), []byte(expected)) == 1
}

// Signature computes the signature header value for a body, byte-identical
// to what VerifySignature expects. Used by test fixtures and by clients that
// originate signed requests.
func Signature(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// GenerateSecret produces a cryptographically random 256-bit secret,
// hex-encoded (64 characters), for provisioning new webhook sources.
func GenerateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
