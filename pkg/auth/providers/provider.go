package providers

import "context"

type AuthProvider interface {
	VerifyToken(ctx context.Context, idToken string) (*TokenClaims, error)
}

// TokenIssuer is implemented by providers that mint their own tokens.
type TokenIssuer interface {
	IssueToken(player string) (*IssuedToken, error)
}

type TokenClaims struct {
	// UID is the player the token was issued for.
	UID string `json:"uid"`
}

type IssuedToken struct {
	IDToken   string `json:"idToken"`
	ExpiresIn int64  `json:"expiresIn"`
	LocalID   string `json:"localId"`
}
