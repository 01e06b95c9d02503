package handlers

import (
	"encoding/json"
	"net/http"

	authproviders "github.com/cbodonnell/progsync/pkg/auth/providers"
	"github.com/cbodonnell/progsync/pkg/log"
	"github.com/go-playground/validator/v10"
)

var _ AuthHandler = &TokenAuthHandler{}

// Provider both mints and verifies tokens.
type Provider interface {
	authproviders.AuthProvider
	authproviders.TokenIssuer
}

// TokenAuthHandler implements AuthHandler by issuing tokens locally. A player
// is identified by name only; there is no account store.
type TokenAuthHandler struct {
	provider Provider
	validate *validator.Validate
}

// NewTokenAuthHandler creates a new instance of TokenAuthHandler
func NewTokenAuthHandler(provider Provider) *TokenAuthHandler {
	return &TokenAuthHandler{
		provider: provider,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// LoginRequest is the form accepted by the login endpoint
type LoginRequest struct {
	Player string `validate:"required,alphanum,max=32"`
}

// HandleLogin issues a token for the player named in the form.
func (s *TokenAuthHandler) HandleLogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		req := LoginRequest{Player: r.FormValue("player")}
		if err := s.validate.Struct(req); err != nil {
			http.Error(w, "Player must be 1 to 32 letters or digits", http.StatusBadRequest)
			return
		}
		s.issue(w, req.Player)
	}
}

// HandleRefresh exchanges a still valid token for a fresh one.
func (s *TokenAuthHandler) HandleRefresh() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		idToken := r.FormValue("idToken")
		if idToken == "" {
			http.Error(w, "Missing idToken", http.StatusBadRequest)
			return
		}
		claims, err := s.provider.VerifyToken(r.Context(), idToken)
		if err != nil {
			log.Debug("failed to verify token on refresh: %v", err)
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}
		s.issue(w, claims.UID)
	}
}

func (s *TokenAuthHandler) issue(w http.ResponseWriter, player string) {
	token, err := s.provider.IssueToken(player)
	if err != nil {
		log.Error("failed to issue token: %v", err)
		http.Error(w, "Failed to issue token", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(token); err != nil {
		log.Error("failed to encode token: %v", err)
		return
	}
}
