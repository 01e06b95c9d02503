package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/cbodonnell/progsync/pkg/api"
	"github.com/cbodonnell/progsync/pkg/auth"
	authhandlers "github.com/cbodonnell/progsync/pkg/auth/handlers"
	authproviders "github.com/cbodonnell/progsync/pkg/auth/providers"
	"github.com/cbodonnell/progsync/pkg/authority"
	"github.com/cbodonnell/progsync/pkg/bus"
	"github.com/cbodonnell/progsync/pkg/config"
	"github.com/cbodonnell/progsync/pkg/log"
	"github.com/cbodonnell/progsync/pkg/network"
	"github.com/cbodonnell/progsync/pkg/progression"
	"github.com/cbodonnell/progsync/pkg/repositories"
	"github.com/cbodonnell/progsync/pkg/version"
	"github.com/cbodonnell/progsync/pkg/workers"
)

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

	log.Info("Starting progression server version %s", version.Get())
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repository, err := repositories.Open(ctx, repositories.OpenOptions{
		URL:           cfg.DatabaseURL,
		MigrationsDir: cfg.MigrationsDir,
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to open repository: %v", err))
	}

	wg := &sync.WaitGroup{}

	// The save worker outlives the servers so writes from requests still in
	// flight at shutdown are flushed too.
	saveCtx, stopSaving := context.WithCancel(context.Background())
	defer stopSaving()
	saveWorker := workers.NewSaveWorker(workers.NewSaveWorkerOptions{
		Repository: repository,
		Interval:   cfg.SaveInterval,
	})
	wg.Add(1)
	go func() {
		defer wg.Done()
		saveWorker.Start(saveCtx)
	}()

	snapshotBus := bus.New()
	progressionAuthority := authority.NewAuthority(authority.NewAuthorityOptions{
		Repository: repository,
		Saver:      saveWorker,
		Publisher:  snapshotBus,
		Catalog:    progression.DefaultCatalog(),
	})

	authProvider, err := authproviders.NewJWTAuthProvider(authproviders.NewJWTAuthProviderOptions{
		Secret: cfg.JWTSecret,
		TTL:    cfg.TokenTTL,
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to create auth provider: %v", err))
	}

	authServerOpts := auth.NewAuthServerOptions{
		Port:    cfg.AuthPort,
		Handler: authhandlers.NewTokenAuthHandler(authProvider),
	}
	apiServerOpts := api.NewAPIServerOptions{
		Port:         cfg.APIPort,
		AuthProvider: authProvider,
		Authority:    progressionAuthority,
	}
	var wsTLS *network.TLSConfig
	if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
		authServerOpts.TLS = &auth.TLSConfig{CertFile: cfg.TLSCertFile, KeyFile: cfg.TLSKeyFile}
		apiServerOpts.TLS = &api.TLSConfig{CertFile: cfg.TLSCertFile, KeyFile: cfg.TLSKeyFile}
		wsTLS = &network.TLSConfig{CertFile: cfg.TLSCertFile, KeyFile: cfg.TLSKeyFile}
	}

	authServer := auth.NewAuthServer(authServerOpts)
	go authServer.Start()
	apiServer := api.NewAPIServer(apiServerOpts)
	go apiServer.Start()

	clientManager := network.NewClientManager()
	connectionEventWorker := workers.NewConnectionEventWorker(workers.NewConnectionEventWorkerOptions{
		ConnectionEventChan: clientManager.GetConnectionEventChan(),
		Sessions:            progressionAuthority,
		Connections:         clientManager,
	})
	go connectionEventWorker.Start(ctx)

	networkManager := network.NewNetworkManager(network.NewNetworkManagerOptions{
		AuthProvider:    authProvider,
		ClientManager:   clientManager,
		Authority:       progressionAuthority,
		Subscriber:      snapshotBus,
		WSPort:          cfg.WSPort,
		WSServerTLS:     wsTLS,
		CoinPickupValue: cfg.CoinPickupValue,
	})
	// blocks until ctx is cancelled
	networkManager.Start(ctx)

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	shutdown(shutdownCtx, []namedServer{
		{name: "API", server: apiServer},
		{name: "auth", server: authServer},
	}, progressionAuthority, snapshotBus, stopSaving, wg)

	if err := repository.Close(shutdownCtx); err != nil {
		log.Error("Failed to close repository: %v", err)
	}
}

type stopper interface {
	Stop(ctx context.Context) error
}

type namedServer struct {
	name   string
	server stopper
}

// shutdown stops the servers, evicts every player and only then stops the
// save worker and waits for its final flush.
func shutdown(ctx context.Context, servers []namedServer, a *authority.Authority, b *bus.Bus, stopSaving context.CancelFunc, saving *sync.WaitGroup) {
	for _, s := range servers {
		if err := s.server.Stop(ctx); err != nil {
			log.Error("Failed to stop %s server: %v", s.name, err)
		}
	}
	for _, player := range a.Players() {
		a.OnPlayerLeave(player)
	}
	b.Close()

	stopSaving()
	saving.Wait()
}
