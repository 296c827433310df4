package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	_ "github.com/sbilibin2017/gw-book-platform/internal/docs"
	"github.com/sbilibin2017/gw-book-platform/internal/handlers"
	"github.com/sbilibin2017/gw-book-platform/internal/jwt"
	"github.com/sbilibin2017/gw-book-platform/internal/logger"
	"github.com/sbilibin2017/gw-book-platform/internal/middlewares"
	"github.com/sbilibin2017/gw-book-platform/internal/migrations"
	"github.com/sbilibin2017/gw-book-platform/internal/repositories"
	"github.com/sbilibin2017/gw-book-platform/internal/services"
	"github.com/sbilibin2017/gw-book-platform/internal/storage"
	"github.com/sbilibin2017/gw-book-platform/internal/uploads"
)

// Build info variables, set via ldflags at build time.
var (
	buildVersion = "N/A" // Version of the service
	buildDate    = "N/A" // Build date
	buildCommit  = "N/A" // Git commit hash
)

// @title gw-book-platform API
// @version 1.0.0
// @description Book publishing platform: catalogue API behind the session cookie
// @host localhost:8080
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey SessionCookie
// @in cookie
// @name session
func main() {
	printBuildInfo()
	configPath := parseFlags()

	cfg, err := parseConfig(configPath)
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}

	if err := run(context.Background(), cfg); err != nil {
		log.Fatalf("application stopped with error: %v", err)
	}
}

// printBuildInfo prints the build version, commit hash, and build date.
func printBuildInfo() {
	fmt.Printf("Version: %s\nCommit: %s\nBuild: %s\n", buildVersion, buildCommit, buildDate)
}

// parseFlags parses command-line flags and returns the config file path.
func parseFlags() string {
	c := flag.String("c", "config.env", "Path to configuration file")
	flag.Parse()
	return *c
}

// newStorage builds the upload backend selected by UPLOAD_STORAGE.
func newStorage(ctx context.Context, cfg Config) (storage.Storage, error) {
	switch cfg.UploadStorage {
	case "local":
		return storage.NewLocal(cfg.UploadDir), nil
	case "s3":
		client, err := storage.NewS3Client(ctx, storage.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			return nil, err
		}
		return storage.NewS3(client, cfg.S3Bucket), nil
	default:
		return nil, fmt.Errorf("unknown upload storage %q", cfg.UploadStorage)
	}
}

// newEventWriter returns an asynchronous Kafka writer, or nil when no brokers are configured.
// Delivery failures are reported through Completion.
func newEventWriter(cfg Config) *kafka.Writer {
	if len(cfg.KafkaBrokers) == 0 {
		return nil
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		Async:                  true,
		AllowAutoTopicCreation: true,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				logger.Log.Errorw("Failed to deliver book events to Kafka", "count", len(msgs), "error", err)
			}
		},
	}
}

// run initializes the logger, database, Redis, storage, Kafka writer and HTTP server.
// It sets up routes and handles graceful shutdown.
func run(ctx context.Context, cfg Config) error {
	// Initialize logger
	if err := logger.Initialize(cfg.LogLevel); err != nil {
		fmt.Println("failed to initialize logger:", err)
		return err
	}
	defer logger.Sync()
	log := logger.Log
	log.Infof("Logger initialized with level %s", cfg.LogLevel)

	// Connect to PostgreSQL
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.PGUser, cfg.PGPassword, cfg.PGHost, cfg.PGPort, cfg.PGDB)
	log.Infof("Connecting to PostgreSQL at %s:%d/%s", cfg.PGHost, cfg.PGPort, cfg.PGDB)

	db, err := sqlx.ConnectContext(ctx, "pgx", dsn)
	if err != nil {
		return fmt.Errorf("postgres connection: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.PGMaxOpenConns)
	db.SetMaxIdleConns(cfg.PGMaxIdleConns)

	if err := migrations.Up(ctx, db.DB); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	// Connect to Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.RedisHost, cfg.RedisPort),
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		PoolSize:     cfg.RedisPoolSize,
		MinIdleConns: cfg.RedisMinIdleConns,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection: %w", err)
	}
	defer rdb.Close()

	// Upload storage
	store, err := newStorage(ctx, cfg)
	if err != nil {
		return fmt.Errorf("upload storage: %w", err)
	}
	if err := uploads.Bootstrap(ctx, store); err != nil {
		return fmt.Errorf("upload placeholders: %w", err)
	}

	// Book events
	var events services.KafkaWriter
	if w := newEventWriter(cfg); w != nil {
		defer w.Close()
		events = w
		log.Infof("Publishing book events to %v topic %s", cfg.KafkaBrokers, cfg.KafkaTopic)
	} else {
		log.Warn("KAFKA_BROKERS not set, book events are disabled")
	}

	// Session cookie codec
	sessionExp := time.Duration(cfg.SessionExpSecond) * time.Second
	tokens := jwt.New(
		jwt.WithSecretKey(cfg.SessionSecretKey),
		jwt.WithExpiration(sessionExp),
		jwt.WithSecureCookie(cfg.SessionCookieSecure),
	)

	// Initialize repositories
	userReadRepo := repositories.NewUserReadRepository(db, middlewares.GetTxFromContext)
	userWriteRepo := repositories.NewUserWriteRepository(db, middlewares.GetTxFromContext)
	bookReadRepo := repositories.NewBookReadRepository(db, middlewares.GetTxFromContext)
	bookWriteRepo := repositories.NewBookWriteRepository(db, middlewares.GetTxFromContext)
	sessionRepo := repositories.NewSessionRepository(rdb)

	// Initialize services
	authService := services.NewAuthService(userReadRepo, userWriteRepo)
	profileService := services.NewProfileService(userReadRepo, userWriteRepo)
	sessionService := services.NewSessionService(sessionRepo, tokens, sessionExp)
	bookService := services.NewBookService(bookReadRepo, bookWriteRepo, userReadRepo, services.NewKafkaEventPublisher(events)).
		WithAfterCommit(middlewares.AfterCommit)

	rd, err := handlers.NewRenderer()
	if err != nil {
		return fmt.Errorf("templates: %w", err)
	}

	// Setup router
	r := handlers.NewRouter(handlers.RouterConfig{
		Log:       log,
		Renderer:  rd,
		Validator: handlers.NewValidator(),
		Auth:      authService,
		Books:     bookService,
		Profiles:  profileService,
		Uploads:   uploads.NewUploader(store),
		Files:     store,
		Sessions:  sessionService,
		Users:     userReadRepo,
		Cookies:   tokens,
		DB:        db,
		Health: map[string]handlers.HealthCheck{
			"postgres": db.PingContext,
			"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		},
		SwaggerURL: fmt.Sprintf("http://%s:%s/swagger/doc.json", cfg.AppHost, cfg.AppPort),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.AppHost, cfg.AppPort),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	errChan := make(chan error, 1)
	ctxShutdown, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	go func() {
		log.Infof("HTTP server listening on %s:%s", cfg.AppHost, cfg.AppPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	select {
	case <-ctxShutdown.Done():
		log.Info("Shutdown signal received, stopping HTTP server...")
	case serveErr := <-errChan:
		return serveErr
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("HTTP server shutdown error", "error", err)
	}

	log.Info("HTTP server stopped gracefully")
	return nil
}
