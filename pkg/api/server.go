package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/cbodonnell/progsync/pkg/api/handlers"
	"github.com/cbodonnell/progsync/pkg/api/middleware"
	authproviders "github.com/cbodonnell/progsync/pkg/auth/providers"
	"github.com/cbodonnell/progsync/pkg/log"
	"github.com/cbodonnell/progsync/pkg/metrics"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type APIServer struct {
	server *http.Server
	tls    *TLSConfig
}

type TLSConfig struct {
	CertFile string
	KeyFile  string
}

type NewAPIServerOptions struct {
	Port         int
	TLS          *TLSConfig
	AuthProvider authproviders.AuthProvider
	Authority    handlers.Authority
}

// NewRouter builds the API routes.
func NewRouter(opts NewAPIServerOptions) *mux.Router {
	authMiddleware := middleware.NewAuthMiddleware(opts.AuthProvider)

	r := mux.NewRouter()
	r.Use(metrics.Middleware)
	r.Handle("/healthz", handlers.HandleHealthz()).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.Handle("/catalog", handlers.HandleGetCatalog(opts.Authority)).Methods(http.MethodGet)
	r.Handle("/players/{player}/snapshot", handlers.HandleGetSnapshot(opts.Authority)).Methods(http.MethodGet)

	authed := r.PathPrefix("/players/{player}").Subrouter()
	authed.Use(authMiddleware)
	authed.Handle("/purchases", handlers.HandlePurchase(opts.Authority)).Methods(http.MethodPost)
	authed.Handle("/credits", handlers.HandleCredit(opts.Authority)).Methods(http.MethodPost)
	return r
}

// NewAPIServer creates a new http.Server for handling API requests
func NewAPIServer(opts NewAPIServerOptions) *APIServer {
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: NewRouter(opts),
	}
	return &APIServer{
		server: server,
		tls:    opts.TLS,
	}
}

// Start starts the APIServer
func (s *APIServer) Start() {
	var listenAndServe func() error
	if s.tls != nil {
		log.Info("API server listening on %s with TLS", s.server.Addr)
		listenAndServe = func() error {
			return s.server.ListenAndServeTLS(s.tls.CertFile, s.tls.KeyFile)
		}
	} else {
		log.Info("API server listening on %s", s.server.Addr)
		listenAndServe = s.server.ListenAndServe
	}
	if err := listenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			log.Info("API server closed")
			return
		}
		log.Error("API server error: %v", err)
	}
}

// Stop stops the APIServer
func (s *APIServer) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
