package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cbodonnell/progsync/pkg/api/handlers"
	authproviders "github.com/cbodonnell/progsync/pkg/auth/providers"
	"github.com/cbodonnell/progsync/pkg/authority"
	"github.com/cbodonnell/progsync/pkg/bus"
	"github.com/cbodonnell/progsync/pkg/progression"
	"github.com/cbodonnell/progsync/pkg/repositories"
	"github.com/cbodonnell/progsync/pkg/workers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiFixture struct {
	handler   http.Handler
	authority *authority.Authority
	token     string
}

func newFixture(t *testing.T) *apiFixture {
	t.Helper()
	b := bus.New()
	t.Cleanup(b.Close)
	repo := repositories.NewMemoryRepository()
	a := authority.NewAuthority(authority.NewAuthorityOptions{
		Repository: repo,
		Saver:      workers.NewSaveWorker(workers.NewSaveWorkerOptions{Repository: repo}),
		Publisher:  b,
		Catalog:    progression.DefaultCatalog(),
	})
	provider, err := authproviders.NewJWTAuthProvider(authproviders.NewJWTAuthProviderOptions{Secret: "0123456789abcdef"})
	require.NoError(t, err)
	token, err := provider.IssueToken("p1")
	require.NoError(t, err)

	return &apiFixture{
		handler:   NewRouter(NewAPIServerOptions{AuthProvider: provider, Authority: a}),
		authority: a,
		token:     token.IDToken,
	}
}

func (f *apiFixture) do(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestAPI_Catalog(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/catalog", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var upgrades []progression.Upgrade
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&upgrades))
	require.Len(t, upgrades, 5)
	assert.Equal(t, progression.KeySpeed, upgrades[0].Key)
	assert.Equal(t, int64(10), upgrades[0].Cost)
}

func TestAPI_SnapshotNotReady(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/players/p1/snapshot", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAPI_CreditAndPurchase(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.authority.OnPlayerJoin(context.Background(), "p1"))

	rec := f.do(http.MethodPost, "/players/p1/credits", `{"amount":20}`, f.token)
	require.Equal(t, http.StatusOK, rec.Code)
	var credited handlers.SnapshotResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&credited))
	assert.Equal(t, int64(20), credited.Currency)

	rec = f.do(http.MethodPost, "/players/p1/purchases", `{"key":"Lives","cost":20}`, f.token)
	require.Equal(t, http.StatusOK, rec.Code)
	var purchase handlers.PurchaseResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&purchase))
	assert.True(t, purchase.Accepted)
	assert.Equal(t, int64(0), purchase.Snapshot.Currency)
	assert.Equal(t, int64(1), purchase.Snapshot.Levels[progression.KeyLives])

	rec = f.do(http.MethodPost, "/players/p1/purchases", `{"key":"Speed","cost":10}`, f.token)
	require.Equal(t, http.StatusOK, rec.Code)
	purchase = handlers.PurchaseResponse{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&purchase))
	assert.False(t, purchase.Accepted)
	assert.Equal(t, progression.ReasonInsufficientFunds, purchase.Reason)

	rec = f.do(http.MethodGet, "/players/p1/snapshot", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var snapshot handlers.SnapshotResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&snapshot))
	assert.Equal(t, "p1", snapshot.Player)
	assert.Equal(t, int64(1), snapshot.Levels[progression.KeyLives])
}

func TestAPI_Errors(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.authority.OnPlayerJoin(context.Background(), "p1"))

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		token  string
		code   int
	}{
		{name: "missing token", method: http.MethodPost, path: "/players/p1/credits", body: `{"amount":1}`, code: http.StatusUnauthorized},
		{name: "bad token", method: http.MethodPost, path: "/players/p1/credits", body: `{"amount":1}`, token: "nope", code: http.StatusUnauthorized},
		{name: "other player", method: http.MethodPost, path: "/players/p2/credits", body: `{"amount":1}`, token: f.token, code: http.StatusForbidden},
		{name: "zero amount", method: http.MethodPost, path: "/players/p1/credits", body: `{"amount":0}`, token: f.token, code: http.StatusBadRequest},
		{name: "bad json", method: http.MethodPost, path: "/players/p1/purchases", body: `{`, token: f.token, code: http.StatusBadRequest},
		{name: "missing key", method: http.MethodPost, path: "/players/p1/purchases", body: `{"cost":10}`, token: f.token, code: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(tt.method, tt.path, tt.body, tt.token)
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestAPI_HealthAndMetrics(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/healthz", "", "").Code)

	rec := f.do(http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "progsync_http_requests_total")
}
