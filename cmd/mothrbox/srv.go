package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/georgegoldman/mothrbox-walrus-layer/internal/config"
	"github.com/georgegoldman/mothrbox-walrus-layer/internal/index"
	"github.com/georgegoldman/mothrbox-walrus-layer/internal/server"
	"github.com/georgegoldman/mothrbox-walrus-layer/internal/telemetry"
	"github.com/georgegoldman/mothrbox-walrus-layer/internal/upload"
)

func newSrvCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "srv",
		Short: "Run the mothrbox API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg == nil {
				return fmt.Errorf("config not initialized")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg, slog.Default())
		},
	}
}

func runServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	addr, err := server.ListenAddr(cfg.Server.ListenHost, cfg.Server.Port)
	if err != nil {
		return err
	}

	shutdownTelemetry, err := telemetry.Setup(ctx, telemetry.Config{Endpoint: cfg.OTelEndpoint, Version: version})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("telemetry shutdown", "error", err)
		}
	}()

	minter, err := newMinter(cfg, logger)
	if err != nil {
		return err
	}
	store, storeName, err := openBlobStore(cfg)
	if err != nil {
		return err
	}
	logger.Info("blob store ready", "backend", storeName)

	idx := index.New(cfg.IndexURL, logger)
	defer idx.Close()
	if !idx.Configured() {
		logger.Warn("MOTHRBOX_INDEX_URL not set; owner listings are disabled")
	}

	orch := upload.New(store, minter, idx, upload.Options{
		DefaultEpochs: cfg.BlobStore.DefaultEpochs,
		Deletable:     cfg.BlobStore.Deletable,
		Logger:        logger,
	})

	srv := server.New(addr, server.Deps{
		Uploads:       orch,
		Costs:         newEstimator(cfg, store, logger),
		Files:         idx,
		Blobs:         store,
		BlobStoreName: storeName,
	}, server.Options{
		CORSOrigin:         cfg.Server.CORSOrigin,
		APIToken:           cfg.Server.APIToken,
		MaxUploadBytes:     cfg.Server.MaxUploadBytes,
		MaxMultipartMemory: cfg.Server.MultipartMaxMemory,
		UploadRate:         cfg.Server.UploadRatePerMinute,
		UploadBurst:        cfg.Server.UploadBurst,
	}, logger)
	return srv.ListenAndServe(ctx)
}
