package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maneesh/filevault/internal/config"
	"github.com/maneesh/filevault/internal/handlers"
	"github.com/maneesh/filevault/internal/service"
	"github.com/maneesh/filevault/internal/session"
	"github.com/maneesh/filevault/internal/storage"
	"github.com/maneesh/filevault/internal/tracing"
)

func main() {
	log.Println("Starting FileVault service...")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("Service: %s, Port: %s", cfg.ServiceName, cfg.ServicePort)

	// Initialize OpenTelemetry tracing
	shutdownTracer, err := tracing.InitTracer(cfg.ServiceName, cfg.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	var closers []io.Closer

	// Initialize metadata store
	var metadataStore storage.MetadataStore
	switch cfg.MetadataBackend {
	case "mysql":
		log.Println("Connecting to MySQL...")
		mysqlStore, err := storage.NewMySQLStore(cfg.GetDSN())
		if err != nil {
			log.Fatalf("Failed to initialize MySQL store: %v", err)
		}
		closers = append(closers, mysqlStore)
		metadataStore = mysqlStore
		log.Println("MySQL store initialized")
	default:
		metadataStore = storage.NewJSONStore(cfg.UsersFile)
		log.Printf("JSON metadata store initialized at %s", cfg.UsersFile)
	}

	// Initialize blob store
	var blobStore storage.BlobStore
	switch cfg.BlobBackend {
	case "minio":
		log.Println("Connecting to MinIO...")
		minioStore, err := storage.NewMinioStore(
			cfg.MinIOEndpoint,
			cfg.MinIOAccessKey,
			cfg.MinIOSecretKey,
			cfg.MinIOBucketName,
			cfg.MinIOUseSSL,
		)
		if err != nil {
			log.Fatalf("Failed to initialize MinIO store: %v", err)
		}
		blobStore = minioStore
		log.Println("MinIO store initialized")
	default:
		fsStore, err := storage.NewFilesystemStore(cfg.UploadsDir)
		if err != nil {
			log.Fatalf("Failed to initialize filesystem store: %v", err)
		}
		blobStore = fsStore
		log.Printf("Filesystem blob store initialized at %s", cfg.UploadsDir)
	}

	// Initialize session store
	sessionTTL := time.Duration(cfg.SessionTTLMin) * time.Minute
	var sessionStore session.Store
	switch cfg.SessionBackend {
	case "redis":
		log.Println("Connecting to Redis...")
		redisStore, err := session.NewRedisStore(cfg.GetRedisAddr(), cfg.RedisPassword, cfg.RedisDB, sessionTTL)
		if err != nil {
			log.Fatalf("Failed to initialize Redis session store: %v", err)
		}
		closers = append(closers, redisStore)
		sessionStore = redisStore
		log.Println("Redis session store initialized")
	default:
		sessionStore = session.NewMemoryStore(sessionTTL)
	}

	defer func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				log.Printf("Error closing store: %v", err)
			}
		}
	}()

	// Initialize service and handlers
	svc := service.New(metadataStore, blobStore, sessionStore)
	handler := handlers.New(svc)
	router := handlers.NewRouter(handler)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.ServicePort,
		Handler:      handlers.CORSMiddleware(handlers.LoggingMiddleware(router)),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server listening on port %s", cfg.ServicePort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
