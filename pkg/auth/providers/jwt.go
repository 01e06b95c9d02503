package providers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	DefaultTokenTTL = 24 * time.Hour
	DefaultIssuer   = "progsync"
)

var (
	_ AuthProvider = &JWTAuthProvider{}
	_ TokenIssuer  = &JWTAuthProvider{}
)

// JWTAuthProvider issues and verifies HS256 tokens signed with a shared secret.
type JWTAuthProvider struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

type NewJWTAuthProviderOptions struct {
	Secret string
	Issuer string
	TTL    time.Duration
	// Now is used for issuing and validating tokens. Defaults to time.Now.
	Now func() time.Time
}

func NewJWTAuthProvider(opts NewJWTAuthProviderOptions) (*JWTAuthProvider, error) {
	if opts.Secret == "" {
		return nil, errors.New("secret is required")
	}
	if opts.Issuer == "" {
		opts.Issuer = DefaultIssuer
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTokenTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &JWTAuthProvider{
		secret: []byte(opts.Secret),
		issuer: opts.Issuer,
		ttl:    opts.TTL,
		now:    opts.Now,
	}, nil
}

// IssueToken signs a token whose subject is player.
func (p *JWTAuthProvider) IssueToken(player string) (*IssuedToken, error) {
	if player == "" {
		return nil, errors.New("player is required")
	}
	now := p.now()
	claims := jwt.RegisteredClaims{
		Issuer:    p.issuer,
		Subject:   player,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(p.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %v", err)
	}
	return &IssuedToken{
		IDToken:   signed,
		ExpiresIn: int64(p.ttl / time.Second),
		LocalID:   player,
	}, nil
}

// VerifyToken checks the signature, issuer and expiry of idToken.
func (p *JWTAuthProvider) VerifyToken(ctx context.Context, idToken string) (*TokenClaims, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(idToken, &claims, func(token *jwt.Token) (any, error) {
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(p.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return nil, fmt.Errorf("error verifying token: %v", err)
	}
	if claims.Subject == "" {
		return nil, errors.New("error verifying token: missing subject")
	}
	return &TokenClaims{
		UID: claims.Subject,
	}, nil
}
