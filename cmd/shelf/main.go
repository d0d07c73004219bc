package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"shelf/internal/shelf"
	"shelf/internal/storage"
)

func Run(ctx context.Context) error {

	listen := flag.String("listen", "8080", "HTTP listen port")
	dataDir := flag.String("data-dir", "./data", "directory for the metadata database")
	backend := flag.String("backend", "", "pin all writes to one backend: kv or d1 (default: hybrid routing)")
	threshold := flag.Int64("hybrid-threshold", 0, "size in bytes at or above which hybrid routing uses the kv backend")
	kvDriver := flag.String("kv-driver", shelf.KVDriverMemory, "kv transport: memory, minio, or nats")
	minioEndpoint := flag.String("minio-endpoint", "", "MinIO endpoint for the kv backend")
	minioAccessKey := flag.String("minio-access-key", "", "MinIO access key")
	minioSecretKey := flag.String("minio-secret-key", "", "MinIO secret key")
	minioBucket := flag.String("minio-bucket", "shelf-chunks", "MinIO bucket for chunk storage")
	natsURL := flag.String("nats-url", "", "NATS server URL for the kv backend")
	natsBucket := flag.String("nats-bucket", "shelf-chunks", "JetStream KV bucket for chunk storage")
	authToken := flag.String("auth-token", "", "bearer token required on API requests (empty disables auth)")

	flag.Parse()

	handler := log.NewWithOptions(os.Stdout, log.Options{
		Level:           log.DebugLevel,
		TimeFormat:      time.RFC3339,
		ReportTimestamp: true,
		TimeFunction:    log.NowUTC,
		ReportCaller:    true,
	})

	slog.SetDefault(slog.New(handler))

	absDataDir, err := filepath.Abs(*dataDir)
	if err != nil {
		return fmt.Errorf("failed to resolve data directory: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := shelf.NewConfig(
		shelf.WithDBPath(filepath.Join(absDataDir, "shelf.sqlite")),
		shelf.WithBackend(*backend),
		shelf.WithHybridThreshold(*threshold),
		shelf.WithKVDriver(*kvDriver),
		shelf.WithMinio(storage.MinioConfig{
			Endpoint:  *minioEndpoint,
			AccessKey: *minioAccessKey,
			SecretKey: *minioSecretKey,
			Bucket:    *minioBucket,
		}),
		shelf.WithNats(storage.NatsConfig{
			URL:    *natsURL,
			Bucket: *natsBucket,
		}),
		shelf.WithAuthToken(*authToken),
	)

	server, err := shelf.NewServer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create shelf server: %w", err)
	}

	defer server.Close()

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", *listen),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 20 * time.Second,
		ReadTimeout:       20 * time.Second,
		WriteTimeout:      20 * time.Second,
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	eg.Go(func() error {
		slog.Info("Starting Shelf HTTP server", "port", *listen)
		err := httpServer.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	slog.Info("Shelf Started")
	return eg.Wait()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := Run(ctx); err != nil {
		slog.Error("Shelf exited with error", "error", err)
	}
}
