package verifier

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"repository":{"name":"repo"}}`)
	secret := "webhook-secret"

	tests := []struct {
		name   string
		body   []byte
		header string
		secret string
		want   bool
	}{
		{
			name:   "valid signature round-trips",
			body:   body,
			header: Signature(body, secret),
			secret: secret,
			want:   true,
		},
		{
			name:   "signature from different secret",
			body:   body,
			header: Signature(body, "other-secret"),
			secret: secret,
			want:   false,
		},
		{
			name:   "signature over different body",
			body:   body,
			header: Signature([]byte(`{"tampered":true}`), secret),
			secret: secret,
			want:   false,
		},
		{
			name:   "missing header",
			body:   body,
			header: "",
			secret: secret,
			want:   false,
		},
		{
			name:   "wrong algorithm prefix",
			body:   body,
			header: "sha1=deadbeef",
			secret: secret,
			want:   false,
		},
		{
			name:   "malformed hex digest",
			body:   body,
			header: "sha256=not-hex-at-all",
			secret: secret,
			want:   false,
		},
		{
			name:   "empty secret",
			body:   body,
			header: Signature(body, secret),
			secret: "",
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, VerifySignature(tt.body, tt.header, tt.secret))
		})
	}
}

func TestVerifyBearerToken(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		expected string
		want     bool
	}{
		{name: "exact match", header: "Bearer secret", expected: "secret", want: true},
		{name: "missing header", header: "", expected: "secret", want: false},
		{name: "wrong token", header: "Bearer other", expected: "secret", want: false},
		{name: "missing Bearer prefix", header: "secret", expected: "secret", want: false},
		{name: "lowercase scheme", header: "bearer secret", expected: "secret", want: false},
		{name: "token is a prefix of expected", header: "Bearer secr", expected: "secret", want: false},
		{name: "empty expected token", header: "Bearer secret", expected: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, VerifyBearerToken(tt.header, tt.expected))
		})
	}
}

func TestSignatureFormat(t *testing.T) {
	sig := Signature([]byte("body"), "secret")

	require.Len(t, sig, len("sha256=")+64)
	assert.Contains(t, sig, "sha256=")

	_, err := hex.DecodeString(sig[len("sha256="):])
	assert.NoError(t, err)
}

func TestGenerateSecret(t *testing.T) {
	first, err := GenerateSecret()
	require.NoError(t, err)

	second, err := GenerateSecret()
	require.NoError(t, err)

	assert.Len(t, first, 64)
	assert.NotEqual(t, first, second)

	_, err = hex.DecodeString(first)
	assert.NoError(t, err)
}
