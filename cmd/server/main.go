package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	connectapi "github.com/adsight-labs/adsight-core/api/echo"
	"github.com/adsight-labs/adsight-core/cache"
	cacheredis "github.com/adsight-labs/adsight-core/cache/redis"
	"github.com/adsight-labs/adsight-core/config"
	"github.com/adsight-labs/adsight-core/domain"
	"github.com/adsight-labs/adsight-core/internal/auth"
	"github.com/adsight-labs/adsight-core/internal/crypto"
	"github.com/adsight-labs/adsight-core/internal/googleads"
	"github.com/adsight-labs/adsight-core/internal/metaads"
	"github.com/adsight-labs/adsight-core/internal/providers"
	"github.com/adsight-labs/adsight-core/internal/ratelimit"
	"github.com/adsight-labs/adsight-core/internal/server"
	"github.com/adsight-labs/adsight-core/log"
	"github.com/adsight-labs/adsight-core/mongodb"
	"github.com/adsight-labs/adsight-core/services"
	"github.com/adsight-labs/adsight-core/tracing"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		bootLogger := zerolog.New(os.Stderr).With().Timestamp().Logger()
		bootLogger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log.Setup(cfg.LogLevel, cfg.LogPretty)
	logLevel, parseErr := zerolog.ParseLevel(cfg.LogLevel)
	if parseErr != nil {
		logLevel = zerolog.InfoLevel
	}
	appLogger := log.NewZerologAdapter(logLevel, cfg.LogPretty)

	ctx := context.Background()
	appLogger.Info(ctx, "Starting adsight-core server", map[string]interface{}{
		"http_port":     cfg.HTTPPort,
		"mongo_db_name": cfg.MongoDBName,
		"log_level":     cfg.LogLevel,
		"otel_service":  cfg.OtelServiceName,
	})

	if err := cfg.Validate(); err != nil {
		appLogger.Fatal(ctx, "Invalid configuration", err)
	}

	tracerProvider, err := tracing.InitTracerProvider(cfg.OtelServiceName)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize TracerProvider", err)
	}

	mongoClient, db, err := mongodb.Connect(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to connect to MongoDB", err)
	}

	// Repositories
	stateRepo, err := mongodb.NewStateRepository(ctx, db)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize state repository", err)
	}
	credentialRepo, err := mongodb.NewCredentialRepository(ctx, db)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize credential repository", err)
	}
	adAccountRepo, err := mongodb.NewAdAccountRepository(ctx, db)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize ad account repository", err)
	}
	leadRepo, err := mongodb.NewLeadRepository(ctx, db)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize lead repository", err)
	}
	rateLimitRepo := mongodb.NewRateLimitRepository(db)

	// Session cache: redis when configured, in-process otherwise.
	var sessions cache.SessionCache
	var memorySessions *cache.MemorySessionCache
	if cfg.RedisURI != "" {
		opts, err := goredis.ParseURL(cfg.RedisURI)
		if err != nil {
			appLogger.Fatal(ctx, "Invalid REDIS_URI", err)
		}
		sessions = cacheredis.NewSessionCache(goredis.NewClient(opts), "adsight")
	} else {
		memorySessions = cache.NewMemorySessionCache(5 * time.Minute)
		sessions = memorySessions
	}

	cipher, err := crypto.NewTokenCipher(cfg.EncryptionKey)
	if err != nil {
		appLogger.Fatal(ctx, "Invalid ENCRYPTION_KEY", err)
	}

	verifier, err := auth.NewVerifier(cfg.JWTSecretKey, sessions)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize identity verifier", err)
	}

	// Provider adapters and discoverers, wired per configured provider so a
	// single-provider deployment just omits the other's credentials.
	adapters := make(map[domain.Provider]providers.Adapter)
	discoverers := make(map[domain.Provider]services.AccountDiscoverer)
	if cfg.GoogleClientID != "" && cfg.GoogleClientSecret != "" {
		creds := providers.Credentials{ClientID: cfg.GoogleClientID, ClientSecret: cfg.GoogleClientSecret}
		adapters[domain.ProviderGoogle] = providers.NewGoogleAdapter(creds)
		discoverers[domain.ProviderGoogle] = googleads.NewDiscoverer(googleads.Config{
			Credentials:    creds,
			DeveloperToken: cfg.GoogleDeveloperToken,
		}, adAccountRepo)
	}
	if cfg.MetaClientID != "" && cfg.MetaClientSecret != "" {
		creds := providers.Credentials{ClientID: cfg.MetaClientID, ClientSecret: cfg.MetaClientSecret}
		adapters[domain.ProviderMeta] = providers.NewMetaAdapter(creds)
		discoverers[domain.ProviderMeta] = metaads.NewClient(credentialRepo, adAccountRepo, cipher)
	}
	if len(adapters) == 0 {
		appLogger.Fatal(ctx, "No provider credentials configured", nil)
	}

	connectService := services.NewConnectService(services.ConnectServiceParams{
		Verifier:    verifier,
		Limiter:     ratelimit.NewLimiter(rateLimitRepo),
		States:      services.NewStateService(stateRepo),
		Credentials: credentialRepo,
		Adapters:    adapters,
		Cipher:      cipher,
		Discoverers: discoverers,
	})

	api := connectapi.NewConnectAPI(connectService, leadRepo, cfg.AppBaseURL)
	httpServer := server.NewHTTPServer(cfg, appLogger, api)

	go func() {
		appLogger.Info(ctx, fmt.Sprintf("HTTP server listening on port %s", cfg.HTTPPort))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal(ctx, "Failed to start HTTP server", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	receivedSignal := <-quit

	appLogger.Info(ctx, fmt.Sprintf("Received signal: %v. Shutting down server...", receivedSignal))

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(shutdownCtx, "HTTP server shutdown error", err)
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(shutdownCtx, "TracerProvider shutdown error", err)
	}
	if memorySessions != nil {
		memorySessions.Stop()
	}
	mongodb.Disconnect(shutdownCtx, mongoClient)

	appLogger.Info(shutdownCtx, "Server gracefully stopped")
}
