package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/ajkula/GoAccessGate/adapter/inbound/grpc"
	"github.com/ajkula/GoAccessGate/adapter/inbound/rest"
	"github.com/ajkula/GoAccessGate/adapter/inbound/websocket"
	"github.com/ajkula/GoAccessGate/adapter/outbound/cache"
	"github.com/ajkula/GoAccessGate/adapter/outbound/clock"
	"github.com/ajkula/GoAccessGate/adapter/outbound/credentials"
	"github.com/ajkula/GoAccessGate/adapter/outbound/crypto"
	"github.com/ajkula/GoAccessGate/adapter/outbound/filewatcher"
	"github.com/ajkula/GoAccessGate/adapter/outbound/logging"
	"github.com/ajkula/GoAccessGate/adapter/outbound/machineid"
	"github.com/ajkula/GoAccessGate/adapter/outbound/storage"
	"github.com/ajkula/GoAccessGate/adapter/outbound/storage/memory"
	"github.com/ajkula/GoAccessGate/adapter/outbound/storage/sqlite"
	"github.com/ajkula/GoAccessGate/adapter/outbound/storeclient"
	"github.com/ajkula/GoAccessGate/config"
	"github.com/ajkula/GoAccessGate/domain/model"
	"github.com/ajkula/GoAccessGate/domain/port/inbound"
	"github.com/ajkula/GoAccessGate/domain/port/outbound"
	"github.com/ajkula/GoAccessGate/domain/service"
)

const version = "1.0.0"

func main() {
	var configPath string
	var generateConfig bool
	var showVersion bool

	flag.StringVar(&configPath, "config", "config.yaml", "Path to configuration file")
	flag.BoolVar(&generateConfig, "generate-config", false, "Generate default configuration file")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.Parse()

	if showVersion {
		fmt.Printf("GoAccessGate Version %s\n", version)
		os.Exit(0)
	}

	if generateConfig {
		if err := config.SaveConfig(config.DefaultConfig(), configPath); err != nil {
			fmt.Printf("Error generating config file: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Default configuration file generated at: %s\n", configPath)
		os.Exit(0)
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewSlogAdapter(cfg)
	if err != nil {
		fmt.Printf("Error setting up logging: %v\n", err)
		os.Exit(1)
	}
	defer logger.Shutdown()

	if err := run(cfg, configPath, logger); err != nil {
		logger.Error("GoAccessGate stopped with an error", "error", err)
		logger.Shutdown()
		os.Exit(1)
	}
}

func run(cfg *config.Config, configPath string, logger *logging.SlogAdapter) error {
	logger.Info("Starting GoAccessGate...", "nodeID", cfg.General.NodeID, "dataDir", cfg.General.DataDir)

	if err := os.MkdirAll(cfg.General.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	sysClock := clock.NewSystemClock()
	if err := config.CheckTLSCertificate(cfg, sysClock.Now(), logger); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	authService := service.NewAuthService(logger, cfg.HTTP.JWT.Secret, cfg.HTTP.JWT.ExpirationMinutes)

	// access request store: in-process review service or a remote store
	var store outbound.AccessRequestStore
	var reviewService inbound.ReviewService
	if cfg.Store.Embedded {
		repo, closeRepo, err := openRepository(cfg, logger)
		if err != nil {
			return err
		}
		defer closeRepo()

		reviewService = service.NewReviewService(repo, sysClock, logger)
		store = storeclient.NewEmbedded(reviewService, authService, logger)
		logger.Info("Using embedded access request store", "engine", cfg.Store.Engine)
	} else {
		store = storeclient.NewClient(cfg.Store.BaseURL, cfg.Store.RequestsPath, cfg.StoreTimeout(), logger)
		logger.Info("Using remote access request store", "baseURL", cfg.Store.BaseURL)
	}

	var source outbound.CredentialSource
	if cfg.Credentials.FilePath != "" {
		source = credentials.NewFileSource(cfg.Credentials.FilePath)
	} else {
		source = credentials.NewStaticSource(cfg.Credentials.Token)
	}

	grantCache, closeCache, err := openGrantCache(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	hub := websocket.NewHub(logger)

	accessService := service.NewAccessService(store, source, hub, sysClock, logger, service.AccessServiceOptions{
		Modules:        moduleAccess(cfg),
		PollInterval:   cfg.PollInterval(),
		StoreTimeout:   cfg.StoreTimeout(),
		Cache:          grantCache,
		CacheFreshness: cfg.CacheFreshness(),
	})
	if err := accessService.Start(ctx); err != nil {
		return fmt.Errorf("failed to start access service: %w", err)
	}
	defer accessService.Stop()

	if cfg.Credentials.Watch && cfg.Credentials.FilePath != "" {
		watcher, err := filewatcher.NewFSWatcher(filewatcher.DefaultDebounce)
		if err != nil {
			return fmt.Errorf("failed to create credentials watcher: %w", err)
		}
		credentialWatch := service.NewCredentialWatchService(watcher, accessService, sysClock, logger)
		if err := credentialWatch.Start(ctx, cfg.Credentials.FilePath); err != nil {
			return fmt.Errorf("failed to watch credentials: %w", err)
		}
		defer credentialWatch.Stop()
	}

	if cfg.GRPC.Enabled {
		healthServer := grpc.NewHealthServer(ctx, accessService, logger, 0)
		if err := healthServer.Start(fmt.Sprintf("%s:%d", cfg.GRPC.Address, cfg.GRPC.Port)); err != nil {
			return fmt.Errorf("failed to start gRPC server: %w", err)
		}
		defer healthServer.Stop()
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.HTTP.Enabled {
		wsHandler := websocket.NewHandler(ctx, accessService, hub, logger, cfg.HTTP.CORS.AllowedOrigins)
		defer wsHandler.Cleanup()

		handlers := []rest.RouteSetter{
			rest.NewSettingsHandler(cfg, configPath, accessService, logger),
			rest.NewAccessHandler(accessService, logger),
			rest.RouteFunc(func(router *mux.Router) {
				router.HandleFunc("/ws/access", wsHandler.HandleConnection)
			}),
		}
		if reviewService != nil {
			middleware := rest.NewAuthMiddleware(authService, logger)
			handlers = append(handlers, rest.NewStoreHandler(reviewService, middleware, logger))
		}
		if cfg.General.Development {
			handlers = append(handlers, rest.NewAuthHandler(authService, sysClock, logger))
		}

		var origins []string
		if cfg.HTTP.CORS.Enabled {
			origins = cfg.HTTP.CORS.AllowedOrigins
		}

		server := &http.Server{
			Addr:        fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port),
			Handler:     rest.NewRouter(logger, origins, handlers...),
			ReadTimeout: 5 * time.Second,
			// no WriteTimeout: websocket connections stay open
		}

		g.Go(func() error {
			logger.Info("HTTP server listening", "address", server.Addr, "tls", cfg.HTTP.TLS)
			var err error
			if cfg.HTTP.TLS {
				err = server.ListenAndServeTLS(cfg.HTTP.CertFile, cfg.HTTP.KeyFile)
			} else {
				err = server.ListenAndServe()
			}
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	logger.Info("GoAccessGate started successfully", "modules", len(cfg.Modules))

	g.Go(func() error {
		<-gctx.Done()
		return nil
	})
	err = g.Wait()

	logger.Info("Shutting down gracefully...")
	return err
}

func moduleAccess(cfg *config.Config) []service.ModuleAccess {
	modules := make([]service.ModuleAccess, 0, len(cfg.Modules))
	for _, m := range cfg.Modules {
		access := service.ModuleAccess{Module: model.Module(m.Name)}
		for _, rt := range m.RequestTypes {
			access.RequestTypes = append(access.RequestTypes, model.RequestType(rt))
		}
		modules = append(modules, access)
	}
	return modules
}

func openRepository(cfg *config.Config, logger outbound.Logger) (outbound.AccessRequestRepository, func(), error) {
	switch cfg.Store.Engine {
	case "file":
		repo, err := storage.NewSecureAccessRequestRepository(
			cfg.Store.Path,
			crypto.NewAESCryptoService(),
			machineid.NewHardwareMachineID(cfg.Store.MachineID),
			logger,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open access request file: %w", err)
		}
		return repo, func() {}, nil

	case "sqlite":
		db, err := sqlite.Open(cfg.Store.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open access request database: %w", err)
		}
		closeDB := func() {
			if sqlDB, err := db.DB(); err == nil {
				sqlDB.Close()
			}
		}
		return sqlite.NewAccessRequestRepository(db), closeDB, nil

	default:
		return memory.NewAccessRequestRepository(), func() {}, nil
	}
}

func openGrantCache(ctx context.Context, cfg *config.Config, logger outbound.Logger) (outbound.GrantCache, func(), error) {
	switch cfg.Cache.Engine {
	case "memory":
		return cache.NewMemoryGrantCache(), func() {}, nil

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.Redis.Address,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		logger.Info("Grant cache connected to redis", "address", cfg.Cache.Redis.Address)
		return cache.NewRedisGrantCache(client, cfg.CacheFreshness()), func() { client.Close() }, nil

	default:
		return nil, func() {}, nil
	}
}
