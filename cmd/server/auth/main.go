package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cbodonnell/progsync/pkg/auth"
	authhandlers "github.com/cbodonnell/progsync/pkg/auth/handlers"
	authproviders "github.com/cbodonnell/progsync/pkg/auth/providers"
	"github.com/cbodonnell/progsync/pkg/config"
	"github.com/cbodonnell/progsync/pkg/log"
	"github.com/cbodonnell/progsync/pkg/version"
)

// Runs only the token issuer, for deployments that keep it apart from the
// progression server. Both must share PROGRESSION_JWT_SECRET.
func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	parsedLogLevel, err := log.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse log level: %v", err))
	}

	logger := log.New(os.Stdout, "", log.DefaultLoggerFlag, parsedLogLevel)
	log.SetDefaultLogger(logger)
	log.Info("Log level set to %s", parsedLogLevel)

	log.Info("Starting auth server version %s", version.Get())
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := authproviders.NewJWTAuthProvider(authproviders.NewJWTAuthProviderOptions{
		Secret: cfg.JWTSecret,
		TTL:    cfg.TokenTTL,
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to create auth provider: %v", err))
	}

	authServerOpts := auth.NewAuthServerOptions{
		Port:    cfg.AuthPort,
		Handler: authhandlers.NewTokenAuthHandler(provider),
	}
	if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
		authServerOpts.TLS = &auth.TLSConfig{
			CertFile: cfg.TLSCertFile,
			KeyFile:  cfg.TLSKeyFile,
		}
	}
	server := auth.NewAuthServer(authServerOpts)
	go server.Start()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Error("Failed to stop server: %v", err)
	}
}
