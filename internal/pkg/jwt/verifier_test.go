package jwt_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	appjwt "fleetdesk-service/internal/pkg/jwt"
	"fleetdesk-service/internal/pkg/jwt/jwttest"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const (
	testSecret   = "test-secret-with-enough-entropy-0123456789"
	testIssuer   = "https://auth.example.com/auth/v1"
	testAudience = "authenticated"
)

func TestVerifier_hmacRoundTrip(t *testing.T) {
	gen := jwttest.NewHMACGenerator([]byte(testSecret), testIssuer, testAudience, time.Hour)
	v := appjwt.NewHMACVerifier([]byte(testSecret), testIssuer, testAudience)

	token, expiresAt, err := gen.GenerateAccessToken("user-1", "driver@example.com", "sess-1")
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := v.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.Subject)
	require.Equal(t, "driver@example.com", claims.Email)
	require.Equal(t, "sess-1", claims.SessionID)
}

func TestVerifier_expired(t *testing.T) {
	gen := jwttest.NewHMACGenerator([]byte(testSecret), testIssuer, testAudience, time.Hour)
	v := appjwt.NewHMACVerifier([]byte(testSecret), testIssuer, testAudience)

	token, _, err := gen.GenerateExpiredAccessToken("user-1", "", "")
	require.NoError(t, err)

	_, err = v.Verify(token)
	require.Error(t, err)
	require.True(t, appjwt.IsExpired(err))
}

func TestVerifier_rejects(t *testing.T) {
	v := appjwt.NewHMACVerifier([]byte(testSecret), testIssuer, testAudience)

	tests := []struct {
		name string
		gen  *jwttest.Generator
	}{
		{name: "wrong secret", gen: jwttest.NewHMACGenerator([]byte("another-secret"), testIssuer, testAudience, time.Hour)},
		{name: "wrong issuer", gen: jwttest.NewHMACGenerator([]byte(testSecret), "https://evil.example.com", testAudience, time.Hour)},
		{name: "wrong audience", gen: jwttest.NewHMACGenerator([]byte(testSecret), testIssuer, "anon", time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, _, err := tt.gen.GenerateAccessToken("user-1", "", "")
			require.NoError(t, err)

			_, err = v.Verify(token)
			require.Error(t, err)
			require.False(t, appjwt.IsExpired(err))
		})
	}

	_, err := v.Verify("not-a-token")
	require.Error(t, err)
}

func TestVerifier_rsa(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	require.NoError(t, err)
	pub, err := appjwt.ParseRSAPublicKey(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
	require.NoError(t, err)

	gen := jwttest.NewGenerator(jwt.SigningMethodRS256, priv, testIssuer, testAudience, time.Hour)
	token, _, err := gen.GenerateAccessToken("user-2", "", "")
	require.NoError(t, err)

	claims, err := appjwt.NewRSAVerifier(pub, testIssuer, testAudience).Verify(token)
	require.NoError(t, err)
	require.Equal(t, "user-2", claims.Subject)

	// an RSA-only verifier must not accept HMAC tokens
	hmacToken, _, err := jwttest.NewHMACGenerator([]byte(testSecret), testIssuer, testAudience, time.Hour).GenerateAccessToken("user-2", "", "")
	require.NoError(t, err)
	_, err = appjwt.NewRSAVerifier(pub, testIssuer, testAudience).Verify(hmacToken)
	require.Error(t, err)
}

func TestLoadVerifier_requiresKey(t *testing.T) {
	_, err := appjwt.LoadVerifier(appjwt.Config{})
	require.Error(t, err)

	v, err := appjwt.LoadVerifier(appjwt.Config{Secret: testSecret})
	require.NoError(t, err)
	require.NotNil(t, v)
}
