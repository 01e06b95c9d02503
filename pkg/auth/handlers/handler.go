package handlers

import "net/http"

// AuthHandler issues player tokens. Login trades a player name for a token;
// refresh trades a still valid token for a fresh one.
type AuthHandler interface {
	HandleLogin() http.HandlerFunc
	HandleRefresh() http.HandlerFunc
}
