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

	"github.com/gin-gonic/gin"

	"github.com/ToasterTechHelp/Yoink-Core/config"
	"github.com/ToasterTechHelp/Yoink-Core/pkg/logger"
	"github.com/ToasterTechHelp/Yoink-Core/pkg/storage"
	"github.com/ToasterTechHelp/Yoink-Core/pkg/storage/local"
	"github.com/ToasterTechHelp/Yoink-Core/pkg/storage/minio"
	"github.com/ToasterTechHelp/Yoink-Core/pkg/storage/s3"

	"github.com/ToasterTechHelp/Yoink-Core/internal/detect"
	"github.com/ToasterTechHelp/Yoink-Core/internal/engine"

	"github.com/ToasterTechHelp/Yoink-Core/api/handlers"
	"github.com/ToasterTechHelp/Yoink-Core/api/routes"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "configuration error:", err)
		os.Exit(1)
	}

	outputs := []string{"stdout"}
	if cfg.Logging.File != "" {
		outputs = append(outputs, cfg.Logging.File)
	}
	log, err := logger.NewLogger(
		logger.WithLevel(cfg.Logging.Level),
		logger.WithEncoding(cfg.Logging.Encoding),
		logger.WithOutputPaths(outputs),
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger error:", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := context.Background()

	ephemeral, err := storage.NewStore(storeConfig(cfg.Storage.Ephemeral, cfg.Storage), log)
	if err != nil {
		log.Fatal("ephemeral storage init failed", logger.Error(err))
	}
	durable, err := storage.NewStore(storeConfig(cfg.Storage.Durable, cfg.Storage), log)
	if err != nil {
		log.Fatal("durable storage init failed", logger.Error(err))
	}
	tiers := storage.Tiers{Ephemeral: ephemeral, Durable: durable}

	detector, err := detect.New(ctx, detectorConfig(cfg.Detector), log)
	if err != nil {
		log.Fatal("detector init failed", logger.Error(err))
	}

	eng := engine.New(engine.Config{
		Workers:            cfg.Engine.Workers,
		QueueSize:          cfg.Engine.QueueSize,
		DPI:                cfg.Engine.DPI,
		Threshold:          cfg.Engine.Threshold,
		MaxUploadBytes:     cfg.Server.MaxUploadBytes(),
		Staleness:          cfg.Engine.Staleness.Std(),
		ReaperInterval:     cfg.Engine.ReaperInterval.Std(),
		GuestRetention:     cfg.Engine.GuestRetention.Std(),
		GuestSweepInterval: cfg.Engine.GuestSweepInterval.Std(),
		OwnerQuota:         cfg.Engine.OwnerQuota,
	}, tiers, detector, log)

	if err := eng.Restore(ctx); err != nil {
		log.Fatal("job table restore failed", logger.Error(err))
	}
	eng.Start()

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	routes.Setup(r, handlers.NewHandlers(eng, cfg.Server.MaxUploadBytes(), log), cfg.Server.CORSOrigins)

	srv := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server starting", logger.String("listen", cfg.Server.Listen))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", logger.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shut down", logger.Error(err))
	}
	if err := eng.Stop(shutdownCtx); err != nil {
		log.Error("engine did not drain in time", logger.Error(err))
	}
	if err := detector.Close(); err != nil {
		log.Error("detector close failed", logger.Error(err))
	}
}

func storeConfig(tier config.TierConfig, shared config.StorageConfig) storage.Config {
	return storage.Config{
		Kind:  storage.Kind(tier.Kind),
		Local: local.Config{Root: tier.Root},
		Minio: minio.Config{
			Endpoint:   shared.Minio.Endpoint,
			AccessKey:  shared.Minio.AccessKey,
			SecretKey:  shared.Minio.SecretKey,
			BucketName: shared.Minio.BucketName,
			Region:     shared.Minio.Region,
			UseSSL:     shared.Minio.UseSSL,
		},
		S3: s3.Config{
			Region:     shared.S3.Region,
			AccessKey:  shared.S3.AccessKey,
			SecretKey:  shared.S3.SecretKey,
			BucketName: shared.S3.BucketName,
			Endpoint:   shared.S3.Endpoint,
		},
	}
}

func detectorConfig(cfg config.DetectorConfig) detect.Config {
	return detect.Config{
		Kind: detect.Kind(cfg.Kind),
		Remote: detect.RemoteConfig{
			Endpoint:       cfg.Remote.Endpoint,
			Model:          cfg.Remote.Model,
			RequestTimeout: cfg.Remote.RequestTimeout.Std(),
			PoolSize:       cfg.Remote.PoolSize,
			AcquireTimeout: cfg.Remote.AcquireTimeout.Std(),
		},
		Textract: detect.TextractConfig{
			Region:    cfg.Textract.Region,
			AccessKey: cfg.Textract.AccessKey,
			SecretKey: cfg.Textract.SecretKey,
		},
	}
}
