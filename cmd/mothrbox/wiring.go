package main

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/georgegoldman/mothrbox-walrus-layer/internal/blobstore"
	"github.com/georgegoldman/mothrbox-walrus-layer/internal/config"
	"github.com/georgegoldman/mothrbox-walrus-layer/internal/ledger"
	"github.com/georgegoldman/mothrbox-walrus-layer/internal/pricing"
)

func storePricing(cfg *config.Config) blobstore.Pricing {
	p := blobstore.DefaultPricing()
	if cfg.Pricing.ShardCount > 0 {
		p.ShardCount = cfg.Pricing.ShardCount
	}
	if cfg.Pricing.StoragePricePerUnit > 0 {
		p.StoragePricePerUnit = cfg.Pricing.StoragePricePerUnit
	}
	if cfg.Pricing.WritePricePerUnit > 0 {
		p.WritePricePerUnit = cfg.Pricing.WritePricePerUnit
	}
	return p
}

// openBlobStore returns the configured backend and its name.
func openBlobStore(cfg *config.Config) (blobstore.BlobStore, string, error) {
	switch strings.ToLower(cfg.BlobStore.Backend) {
	case "local":
		store, err := blobstore.NewLocalCAS(cfg.BlobStore.LocalDir, storePricing(cfg))
		if err != nil {
			return nil, "", err
		}
		return store, "local", nil
	case "", "walrus":
		store, err := blobstore.NewWalrusClient(blobstore.WalrusConfig{
			PublisherURL:  cfg.BlobStore.PublisherURL,
			AggregatorURL: cfg.BlobStore.AggregatorURL,
			Pricing:       storePricing(cfg),
			Timeout:       time.Duration(cfg.BlobStore.TimeoutSeconds) * time.Second,
		})
		if err != nil {
			return nil, "", err
		}
		return store, "walrus", nil
	default:
		return nil, "", fmt.Errorf("unknown blob store backend %q", cfg.BlobStore.Backend)
	}
}

func newEstimator(cfg *config.Config, costs pricing.CostSource, logger *slog.Logger) *pricing.Estimator {
	if cfg.Pricing.OracleDisabled {
		return pricing.NewEstimator(costs, pricing.FixedRate(cfg.Pricing.FallbackRate))
	}
	oracle := pricing.NewOracle(pricing.OracleConfig{
		URL:          cfg.Pricing.OracleURL,
		CoinID:       cfg.Pricing.CoinID,
		Currency:     cfg.Pricing.Currency,
		FallbackRate: cfg.Pricing.FallbackRate,
		TTL:          time.Duration(cfg.Pricing.CacheTTLSeconds) * time.Second,
		Logger:       logger,
	})
	return pricing.NewEstimator(costs, oracle)
}

// newMinter fails fast when the custodial key is missing or malformed.
func newMinter(cfg *config.Config, logger *slog.Logger) (*ledger.Minter, error) {
	if strings.TrimSpace(cfg.Ledger.SecretKey) == "" {
		return nil, fmt.Errorf("%w: SUI_SECRET_KEY is not set", ledger.ErrSignerMisconfigured)
	}
	signer, err := ledger.ParseSecretKey(cfg.Ledger.SecretKey)
	if err != nil {
		return nil, err
	}

	rpcURL := cfg.Ledger.RPCURL
	if rpcURL == "" {
		rpcURL, err = ledger.FullnodeURL(cfg.Ledger.Network)
		if err != nil {
			return nil, err
		}
	}
	minter, err := ledger.NewMinter(ledger.Config{
		RPCURL:    rpcURL,
		PackageID: cfg.Ledger.PackageID,
		Module:    cfg.Ledger.Module,
		Function:  cfg.Ledger.Function,
		GasBudget: cfg.Ledger.GasBudget,
		Logger:    logger,
	}, signer)
	if err != nil {
		return nil, err
	}
	logger.Info("custodial signer loaded", "address", signer.Address(), "network", cfg.Ledger.Network)
	return minter, nil
}
