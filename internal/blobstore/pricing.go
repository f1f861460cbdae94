package blobstore

import (
	"context"
	"fmt"
	"math"
	"math/bits"

	"github.com/georgegoldman/mothrbox-walrus-layer/internal/models"
)

const (
	digestLen = 32
	blobIDLen = 32

	DefaultShardCount          = 1000
	DefaultStoragePricePerUnit = 100_000
	DefaultWritePricePerUnit   = 20_000
	DefaultStorageUnitSize     = 1 << 20

	// maxSymbolSize is the largest even symbol size a two-byte length allows.
	maxSymbolSize = 65534
)

// Pricing holds the store's system parameters used by the cost formula.
// Prices are in the store's smallest native unit.
type Pricing struct {
	ShardCount          int    `toml:"shard_count"`
	StoragePricePerUnit uint64 `toml:"storage_price_per_unit"`
	WritePricePerUnit   uint64 `toml:"write_price_per_unit"`
	UnitSize            int64  `toml:"unit_size"`
}

// StorageCost is the breakdown of one cost computation.
type StorageCost struct {
	EncodedSize  int64  `json:"encodedSize"`
	StorageUnits uint64 `json:"storageUnits"`
	StorageCost  uint64 `json:"storageCost"`
	WriteCost    uint64 `json:"writeCost"`
	TotalCost    uint64 `json:"totalCost"`
}

// DefaultPricing returns testnet-like system parameters.
func DefaultPricing() Pricing {
	return Pricing{
		ShardCount:          DefaultShardCount,
		StoragePricePerUnit: DefaultStoragePricePerUnit,
		WritePricePerUnit:   DefaultWritePricePerUnit,
		UnitSize:            DefaultStorageUnitSize,
	}
}

func (p Pricing) normalized() Pricing {
	defaults := DefaultPricing()
	if p.ShardCount <= 0 {
		p.ShardCount = defaults.ShardCount
	}
	if p.UnitSize <= 0 {
		p.UnitSize = defaults.UnitSize
	}
	return p
}

// sourceSymbols returns the primary and secondary source symbol counts for
// the two-dimensional encoding over n shards.
func sourceSymbols(n int) (int64, int64) {
	f := (n - 1) / 3
	return int64(n - 2*f), int64(n - f)
}

// EncodedLength returns the number of bytes the store keeps for an
// unencoded payload of size bytes, metadata included.
func (p Pricing) EncodedLength(size int64) (int64, error) {
	p = p.normalized()
	if size < 1 {
		size = 1
	}
	if limit := p.MaxBlobSize(); size > limit {
		return 0, fmt.Errorf("%w: %d bytes exceeds the maximum of %d", ErrBlobTooLarge, size, limit)
	}
	n := uint64(p.ShardCount)
	primary, secondary := sourceSymbols(p.ShardCount)

	symbols, ok := mulUint64(uint64(primary), uint64(secondary))
	if !ok {
		return 0, fmt.Errorf("%w: source symbols for %d shards", ErrCostOverflow, n)
	}
	symbolSize := uint64(size-1)/symbols + 1
	if symbolSize%2 == 1 {
		symbolSize++
	}
	sliverPairs, ok := mulUint64(n, uint64(primary+secondary), symbolSize)
	if !ok {
		return 0, fmt.Errorf("%w: encoded length of %d bytes", ErrCostOverflow, size)
	}
	metadata, ok := mulUint64(n, n, digestLen*2)
	if !ok {
		return 0, fmt.Errorf("%w: metadata for %d shards", ErrCostOverflow, n)
	}
	total, ok := addUint64(sliverPairs, metadata, n*blobIDLen)
	if !ok || total > math.MaxInt64 {
		return 0, fmt.Errorf("%w: encoded length of %d bytes", ErrCostOverflow, size)
	}
	return int64(total), nil
}

// MaxBlobSize is the largest unencoded payload the encoding can hold: every
// source symbol at the maximum symbol size.
func (p Pricing) MaxBlobSize() int64 {
	p = p.normalized()
	primary, secondary := sourceSymbols(p.ShardCount)
	limit, ok := mulUint64(uint64(primary), uint64(secondary), maxSymbolSize)
	if !ok || limit > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(limit)
}

// Cost computes the price of storing size bytes for epochs.
func (p Pricing) Cost(size int64, epochs int) (StorageCost, error) {
	if size < 0 {
		return StorageCost{}, fmt.Errorf("size must be >= 0")
	}
	if epochs <= 0 || epochs > models.MaxEpochs {
		return StorageCost{}, fmt.Errorf("%w: got %d, want 1..%d", ErrEpochsOutOfRange, epochs, models.MaxEpochs)
	}
	p = p.normalized()

	encoded, err := p.EncodedLength(size)
	if err != nil {
		return StorageCost{}, err
	}
	unit := uint64(p.UnitSize)
	units := uint64(encoded)/unit + 1
	if uint64(encoded)%unit == 0 {
		units--
	}
	storage, ok := mulUint64(units, p.StoragePricePerUnit, uint64(epochs))
	if !ok {
		return StorageCost{}, fmt.Errorf("%w: storage cost for %d units over %d epochs", ErrCostOverflow, units, epochs)
	}
	write, ok := mulUint64(units, p.WritePricePerUnit)
	if !ok {
		return StorageCost{}, fmt.Errorf("%w: write cost for %d units", ErrCostOverflow, units)
	}
	total, ok := addUint64(storage, write)
	if !ok {
		return StorageCost{}, fmt.Errorf("%w: total cost", ErrCostOverflow)
	}
	return StorageCost{
		EncodedSize:  encoded,
		StorageUnits: units,
		StorageCost:  storage,
		WriteCost:    write,
		TotalCost:    total,
	}, nil
}

func mulUint64(factors ...uint64) (uint64, bool) {
	out := uint64(1)
	for _, f := range factors {
		hi, lo := bits.Mul64(out, f)
		if hi != 0 {
			return 0, false
		}
		out = lo
	}
	return out, true
}

func addUint64(terms ...uint64) (uint64, bool) {
	var out uint64
	for _, t := range terms {
		var carry uint64
		out, carry = bits.Add64(out, t, 0)
		if carry != 0 {
			return 0, false
		}
	}
	return out, true
}

// StorageCost lets a bare Pricing quote costs without a store connection.
func (p Pricing) StorageCost(_ context.Context, sizeBytes int64, epochs int) (StorageCost, error) {
	return p.Cost(sizeBytes, epochs)
}
