package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/georgegoldman/mothrbox-walrus-layer/internal/blobstore"
	"github.com/georgegoldman/mothrbox-walrus-layer/internal/models"
)

// ErrInvalidSize reports a non-positive payload size.
var ErrInvalidSize = errors.New("invalid size")

// CostSource computes native storage cost for a size and retention period.
type CostSource interface {
	StorageCost(ctx context.Context, sizeBytes int64, epochs int) (blobstore.StorageCost, error)
}

// Estimator produces storage quotes in native units and fiat.
type Estimator struct {
	costs CostSource
	rates RateSource
}

// NewEstimator wires a cost formula to a rate source. A nil rate source
// uses the fallback rate.
func NewEstimator(costs CostSource, rates RateSource) *Estimator {
	if rates == nil {
		rates = FixedRate(DefaultFallbackRate)
	}
	return &Estimator{costs: costs, rates: rates}
}

// Estimate quotes sizeBytes for epochs. Zero epochs means the default.
func (e *Estimator) Estimate(ctx context.Context, sizeBytes int64, epochs int) (models.CostQuote, error) {
	if sizeBytes <= 0 {
		return models.CostQuote{}, fmt.Errorf("%w: size must be > 0, got %d", ErrInvalidSize, sizeBytes)
	}
	if epochs == 0 {
		epochs = models.DefaultEpochs
	}
	if epochs < 0 || epochs > models.MaxEpochs {
		return models.CostQuote{}, fmt.Errorf("%w: got %d, want 1..%d", blobstore.ErrEpochsOutOfRange, epochs, models.MaxEpochs)
	}

	cost, err := e.costs.StorageCost(ctx, sizeBytes, epochs)
	if err != nil {
		return models.CostQuote{}, fmt.Errorf("storage cost: %w", err)
	}
	rate := e.rates.Rate(ctx)
	inSui := float64(cost.TotalCost) / models.MistPerSui

	return models.CostQuote{
		SizeBytes:       sizeBytes,
		Epochs:          epochs,
		NativeUnitsCost: cost.TotalCost,
		CostInSui:       inSui,
		CostInFiat:      inSui * rate,
		FiatRate:        rate,
	}, nil
}
