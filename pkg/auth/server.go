package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cbodonnell/progsync/pkg/auth/handlers"
	"github.com/cbodonnell/progsync/pkg/log"
	"github.com/cbodonnell/progsync/pkg/metrics"
	"github.com/gorilla/mux"
)

const DefaultReadHeaderTimeout = 5 * time.Second

type AuthServer struct {
	server *http.Server
	tls    *TLSConfig
	logger *log.Logger
}

type TLSConfig struct {
	CertFile string
	KeyFile  string
}

type NewAuthServerOptions struct {
	Port    int
	Handler handlers.AuthHandler
	TLS     *TLSConfig
}

// NewRouter serves the token endpoints. Requests are counted by the same
// metrics middleware as the API.
func NewRouter(h handlers.AuthHandler) *mux.Router {
	r := mux.NewRouter()
	r.Use(metrics.Middleware)
	r.Handle("/login", h.HandleLogin()).Methods(http.MethodPost)
	r.Handle("/refresh", h.HandleRefresh()).Methods(http.MethodPost)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	return r
}

// NewAuthServer creates the token server. It listens once Start is called.
func NewAuthServer(opts NewAuthServerOptions) *AuthServer {
	return &AuthServer{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", opts.Port),
			Handler:           NewRouter(opts.Handler),
			ReadHeaderTimeout: DefaultReadHeaderTimeout,
		},
		tls:    opts.TLS,
		logger: log.With("component", "auth"),
	}
}

// Start serves until Stop is called.
func (s *AuthServer) Start() {
	var err error
	if s.tls != nil {
		s.logger.Info("Auth server listening on %s with TLS", s.server.Addr)
		err = s.server.ListenAndServeTLS(s.tls.CertFile, s.tls.KeyFile)
	} else {
		s.logger.Info("Auth server listening on %s", s.server.Addr)
		err = s.server.ListenAndServe()
	}
	switch {
	case errors.Is(err, http.ErrServerClosed):
		s.logger.Info("Auth server closed")
	case err != nil:
		s.logger.Error("Auth server error: %v", err)
	}
}

// Stop waits for in-flight requests until ctx is done.
func (s *AuthServer) Stop(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down auth server: %v", err)
	}
	return nil
}
