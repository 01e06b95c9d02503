package providers

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef"

func TestJWTAuthProvider_RoundTrip(t *testing.T) {
	p, err := NewJWTAuthProvider(NewJWTAuthProviderOptions{Secret: testSecret})
	require.NoError(t, err)

	token, err := p.IssueToken("p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", token.LocalID)
	assert.Equal(t, int64(DefaultTokenTTL/time.Second), token.ExpiresIn)

	claims, err := p.VerifyToken(context.Background(), token.IDToken)
	require.NoError(t, err)
	assert.Equal(t, "p1", claims.UID)
}

func TestJWTAuthProvider_Rejects(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	p, err := NewJWTAuthProvider(NewJWTAuthProviderOptions{
		Secret: testSecret,
		TTL:    time.Minute,
		Now:    func() time.Time { return now },
	})
	require.NoError(t, err)
	valid, err := p.IssueToken("p1")
	require.NoError(t, err)

	otherSecret, err := NewJWTAuthProvider(NewJWTAuthProviderOptions{Secret: "fedcba9876543210", Now: p.now})
	require.NoError(t, err)
	forged, err := otherSecret.IssueToken("p1")
	require.NoError(t, err)

	otherIssuer, err := NewJWTAuthProvider(NewJWTAuthProviderOptions{Secret: testSecret, Issuer: "someone-else", Now: p.now})
	require.NoError(t, err)
	wrongIssuer, err := otherIssuer.IssueToken("p1")
	require.NoError(t, err)

	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Issuer:    DefaultIssuer,
		Subject:   "p1",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		at    time.Time
	}{
		{name: "garbage", token: "not-a-token", at: now},
		{name: "wrong secret", token: forged.IDToken, at: now},
		{name: "wrong issuer", token: wrongIssuer.IDToken, at: now},
		{name: "none algorithm", token: noneAlg, at: now},
		{name: "expired", token: valid.IDToken, at: now.Add(2 * time.Minute)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			at := tt.at
			p.now = func() time.Time { return at }
			_, err := p.VerifyToken(context.Background(), tt.token)
			assert.Error(t, err)
		})
	}
}

func TestNewJWTAuthProvider_RequiresSecret(t *testing.T) {
	_, err := NewJWTAuthProvider(NewJWTAuthProviderOptions{})
	assert.Error(t, err)
}
