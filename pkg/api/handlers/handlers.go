package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cbodonnell/progsync/pkg/api/middleware"
	"github.com/cbodonnell/progsync/pkg/authority"
	"github.com/cbodonnell/progsync/pkg/log"
	"github.com/cbodonnell/progsync/pkg/progression"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// Authority is the part of the progression authority served over HTTP.
type Authority interface {
	Catalog() progression.Catalog
	CreditCurrency(ctx context.Context, player string, amount int64) (progression.Snapshot, error)
	Purchase(ctx context.Context, req progression.PurchaseRequest) (progression.PurchaseResult, error)
	RequestSnapshot(ctx context.Context, player string) (progression.Snapshot, error)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// SnapshotResponse is the JSON form of a snapshot.
type SnapshotResponse struct {
	Player   string                    `json:"player"`
	Epoch    int64                     `json:"epoch"`
	Version  uint64                    `json:"version"`
	Currency int64                     `json:"currency"`
	Levels   map[progression.Key]int64 `json:"levels"`
}

func NewSnapshotResponse(s progression.Snapshot) *SnapshotResponse {
	return &SnapshotResponse{
		Player:   s.Player(),
		Epoch:    s.Epoch(),
		Version:  s.Version(),
		Currency: s.Currency(),
		Levels:   s.Levels(),
	}
}

type PurchaseRequestBody struct {
	Key  string `json:"key" validate:"required"`
	Cost int64  `json:"cost" validate:"gt=0"`
}

type PurchaseResponse struct {
	Accepted bool                     `json:"accepted"`
	Reason   progression.RejectReason `json:"reason,omitempty"`
	Snapshot *SnapshotResponse        `json:"snapshot"`
}

type CreditRequestBody struct {
	Amount int64 `json:"amount" validate:"gt=0,lte=1000000"`
}

func HandleHealthz() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	}
}

func HandleGetCatalog(a Authority) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		catalog := a.Catalog()
		upgrades := []progression.Upgrade{}
		if catalog != nil {
			upgrades = catalog.List()
		}
		writeJSON(w, http.StatusOK, upgrades)
	}
}

func HandleGetSnapshot(a Authority) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		player := mux.Vars(r)["player"]
		snapshot, err := a.RequestSnapshot(r.Context(), player)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, NewSnapshotResponse(snapshot))
	}
}

func HandlePurchase(a Authority) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		player, ok := authorizedPlayer(w, r)
		if !ok {
			return
		}
		body := &PurchaseRequestBody{}
		if !decodeBody(w, r, body) {
			return
		}

		result, err := a.Purchase(r.Context(), progression.PurchaseRequest{
			ID:     uuid.NewString(),
			Player: player,
			Key:    progression.Key(body.Key),
			Cost:   body.Cost,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, &PurchaseResponse{
			Accepted: result.Accepted,
			Reason:   result.Reason,
			Snapshot: NewSnapshotResponse(result.Snapshot),
		})
	}
}

func HandleCredit(a Authority) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		player, ok := authorizedPlayer(w, r)
		if !ok {
			return
		}
		body := &CreditRequestBody{}
		if !decodeBody(w, r, body) {
			return
		}

		snapshot, err := a.CreditCurrency(r.Context(), player, body.Amount)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, NewSnapshotResponse(snapshot))
	}
}

// authorizedPlayer returns the path player if it matches the token's player.
func authorizedPlayer(w http.ResponseWriter, r *http.Request) (string, bool) {
	player := mux.Vars(r)["player"]
	authenticated, ok := middleware.PlayerFromContext(r.Context())
	if !ok {
		log.Error("failed to get player from context")
		http.Error(w, "Failed to get player from context", http.StatusInternalServerError)
		return "", false
	}
	if authenticated != player {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return "", false
	}
	return player, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(v); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	if err := validate.Struct(v); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, authority.ErrPlayerNotReady):
		http.Error(w, "Player not ready", http.StatusServiceUnavailable)
	case errors.Is(err, authority.ErrInvalidAmount), authority.IsInvalidRequest(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		log.Error("request failed: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to encode response: %v", err)
	}
}
