package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/olynsn15/fruitopia-store/internal/auth"
	c "github.com/olynsn15/fruitopia-store/internal/cache"
	"github.com/olynsn15/fruitopia-store/internal/cart"
	"github.com/olynsn15/fruitopia-store/internal/catalog"
	"github.com/olynsn15/fruitopia-store/internal/config"
	"github.com/olynsn15/fruitopia-store/internal/discount"
	"github.com/olynsn15/fruitopia-store/internal/events"
	h "github.com/olynsn15/fruitopia-store/internal/http"
	"github.com/olynsn15/fruitopia-store/internal/logger"
	"github.com/olynsn15/fruitopia-store/internal/repository"
	"github.com/olynsn15/fruitopia-store/internal/session"
	"github.com/olynsn15/fruitopia-store/internal/testimonial"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if err := run(cfg, zl); err != nil {
		zl.Fatal("storefront stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, zl *zap.Logger) error {
	ctx := context.Background()

	// MongoDB: cart records and accounts
	mongoDB, err := repository.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		return err
	}
	defer func() { _ = mongoDB.Client().Disconnect(context.Background()) }()
	zl.Info("connected to MongoDB", zap.String("database", cfg.MongoDatabase))

	repo := repository.NewMongoRepository(mongoDB)
	if err := repository.EnsureIndexes(ctx, repo); err != nil {
		return err
	}

	// Redis: cart read cache, token revocation, testimonial snapshot
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	zl.Info("redis ping succeeded", zap.String("addr", cfg.RedisAddr))

	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	provider := auth.NewMongoProvider(mongoDB, tokens, c.NewRevocationList(redisClient))
	if err := provider.CreateIndexes(ctx); err != nil {
		return err
	}

	// SQLite: product catalog
	products, err := catalog.NewRepository(cfg.CatalogDBPath)
	if err != nil {
		return err
	}
	defer products.Close()
	if err := products.RunMigrations(cfg.CatalogMigrationsPath); err != nil {
		return fmt.Errorf("catalog migrations: %w", err)
	}

	// Postgres: testimonials
	creds := &testimonial.Credentials{
		Host:              cfg.PostgresHost,
		Port:              cfg.PostgresPort,
		User:              cfg.PostgresUser,
		Password:          cfg.PostgresPassword,
		DBName:            cfg.PostgresDB,
		MigrationsDirPath: cfg.TestimonialMigrationsPath,
	}
	testimonials, err := testimonial.NewPostgresRepository(creds)
	if err != nil {
		return err
	}
	defer testimonials.Close()
	if err := testimonials.RunMigrations(creds); err != nil {
		return fmt.Errorf("testimonial migrations: %w", err)
	}
	board := testimonial.NewService(testimonials, c.NewSnapshotStore(redisClient), zl, testimonial.DefaultBreakerSettings)

	// Kafka: checkout events, disabled without brokers
	var publisher events.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.CheckoutTopic, cfg.KafkaBrokers...)
		zl.Info("publishing checkout events", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.CheckoutTopic))
	}
	defer publisher.Close()

	records := cart.NewRecordService(repo, c.NewCartRecordCache(redisClient), zl)
	registry := session.NewRegistry(provider, records, publisher, zl, session.Config{
		IdleTTL:         cfg.SessionIdleTTL,
		CleanupInterval: cfg.SessionCleanupInterval,
	})

	router := h.NewRouter(h.Deps{
		Registry:           registry,
		Catalog:            products,
		Testimonials:       board,
		Promotions:         discount.NewPromotions(discount.DefaultPromotions...),
		Logger:             zl,
		RequestTimeout:     cfg.RequestTimeout,
		MaxRequestBodySize: cfg.MaxRequestBodySize,
		SecureCookie:       cfg.CookieSecure,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, "storefront"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// gRPC: health and reflection for probes and grpcurl
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)

	serveErr := make(chan error, 2)
	go func() {
		zl.Info("storefront HTTP listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		zl.Info("storefront gRPC listening", zap.String("port", cfg.GRPCPort))
		if err := grpcServer.Serve(lis); err != nil {
			serveErr <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case <-quit:
	case runErr = <-serveErr:
	}

	zl.Info("shutting down storefront")
	healthServer.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("http server forced to shutdown", zap.Error(err))
	}
	grpcServer.GracefulStop()

	// flush pending cart writes before the stores close
	if err := registry.Close(shutdownCtx); err != nil {
		zl.Warn("pending cart writes abandoned", zap.Error(err))
	}

	zl.Info("storefront stopped")
	return runErr
}
