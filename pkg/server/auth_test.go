package server

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-jose/go-jose/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/idtoken"
)

const testIssuer = "https://issuer.example.com"

func signToken(t *testing.T, key *rsa.PrivateKey, claims map[string]any) string {
	t.Helper()
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.RS256, Key: key}, nil)
	require.NoError(t, err)
	payload, err := json.Marshal(claims)
	require.NoError(t, err)
	jws, err := signer.Sign(payload)
	require.NoError(t, err)
	raw, err := jws.CompactSerialize()
	require.NoError(t, err)
	return raw
}

func TestOIDCVerifier(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	keySet := &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&key.PublicKey}}
	verify := oidcVerifier(oidc.NewVerifier(testIssuer, keySet, &oidc.Config{ClientID: "glowmeter"}).Verify)

	claims := func(aud string, exp time.Time) map[string]any {
		return map[string]any{
			"iss":   testIssuer,
			"aud":   aud,
			"sub":   "user-1",
			"email": "user@example.com",
			"iat":   time.Now().Add(-time.Minute).Unix(),
			"exp":   exp.Unix(),
		}
	}

	t.Run("valid", func(t *testing.T) {
		id, err := verify(context.Background(), signToken(t, key, claims("glowmeter", time.Now().Add(time.Hour))))
		require.NoError(t, err)
		assert.Equal(t, identity{Subject: "user-1", Email: "user@example.com"}, id)
	})

	t.Run("wrong audience", func(t *testing.T) {
		_, err := verify(context.Background(), signToken(t, key, claims("someone-else", time.Now().Add(time.Hour))))
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		_, err := verify(context.Background(), signToken(t, key, claims("glowmeter", time.Now().Add(-time.Hour))))
		assert.Error(t, err)
	})

	t.Run("wrong key", func(t *testing.T) {
		other, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)
		_, err = verify(context.Background(), signToken(t, other, claims("glowmeter", time.Now().Add(time.Hour))))
		assert.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := verify(context.Background(), "not-a-jwt")
		assert.Error(t, err)
	})
}

func TestGoogleVerifier(t *testing.T) {
	validate := func(ctx context.Context, token string, audience string) (*idtoken.Payload, error) {
		if token != "valid-token" || audience != "google-aud" {
			return nil, assert.AnError
		}
		return &idtoken.Payload{
			Subject: "google-user",
			Claims:  map[string]interface{}{"email": "user@example.com"},
			Expires: time.Now().Add(time.Hour).Unix(),
		}, nil
	}

	id, err := googleVerifier("google-aud", validate)(context.Background(), "valid-token")
	require.NoError(t, err)
	assert.Equal(t, identity{Subject: "google-user", Email: "user@example.com"}, id)

	_, err = googleVerifier("google-aud", validate)(context.Background(), "bad-token")
	assert.ErrorIs(t, err, assert.AnError)

	_, err = googleVerifier("other-aud", validate)(context.Background(), "valid-token")
	assert.Error(t, err)
}

func TestAuthMiddleware(t *testing.T) {
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	verifiers := map[string]tokenVerifier{
		"oidc": func(ctx context.Context, raw string) (identity, error) {
			if raw == "oidc-token" {
				return identity{Subject: "oidc-user"}, nil
			}
			return identity{}, errors.New("bad oidc token")
		},
		"google": func(ctx context.Context, raw string) (identity, error) {
			if raw == "google-token" {
				return identity{Subject: "google-user"}, nil
			}
			return identity{}, errors.New("bad google token")
		},
	}

	tests := []struct {
		name      string
		verifiers map[string]tokenVerifier
		header    string
		want      int
	}{
		{name: "open without verifiers", want: http.StatusOK},
		{name: "open ignores header", header: "Bearer whatever", want: http.StatusOK},
		{name: "missing header", verifiers: verifiers, want: http.StatusUnauthorized},
		{name: "wrong scheme", verifiers: verifiers, header: "Basic user:pass", want: http.StatusBadRequest},
		{name: "invalid token", verifiers: verifiers, header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "oidc token", verifiers: verifiers, header: "Bearer oidc-token", want: http.StatusOK},
		{name: "google token", verifiers: verifiers, header: "Bearer google-token", want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := &Server{verifiers: tt.verifiers}
			req := httptest.NewRequest("GET", "/api/sensors", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			srv.authMiddleware(okHandler).ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestAuthenticateTokenJoinsErrors(t *testing.T) {
	srv := &Server{verifiers: map[string]tokenVerifier{
		"a": func(context.Context, string) (identity, error) { return identity{}, errors.New("a failed") },
		"b": func(context.Context, string) (identity, error) { return identity{}, errors.New("b failed") },
	}}
	_, err := srv.authenticateToken(context.Background(), "token")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a verifier failed: a failed")
	assert.Contains(t, err.Error(), "b verifier failed: b failed")

	_, err = (&Server{}).authenticateToken(context.Background(), "token")
	assert.EqualError(t, err, "no verifiers configured")
}

func TestAPIRequiresAuthWhenConfigured(t *testing.T) {
	srv := newTestServer(testPlatform())
	srv.verifiers = map[string]tokenVerifier{
		"oidc": func(context.Context, string) (identity, error) { return identity{}, errors.New("nope") },
	}
	handler := srv.setupHandler()

	req := httptest.NewRequest("GET", "/api/sensors", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// health and metrics stay open
	req = httptest.NewRequest("GET", "/healthz", nil)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
