package ledger

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/georgegoldman/mothrbox-walrus-layer/internal/models"
)

const (
	DefaultModule       = "receipt"
	DefaultFunction     = "mint_and_transfer"
	DefaultGasBudget    = 10_000_000
	DefaultPollInterval = 500 * time.Millisecond
	DefaultPollTimeout  = 60 * time.Second

	statusSuccess = "success"
	statusFailure = "failure"
)

// MintRejectedError reports a transaction that did not reach a successful
// terminal state.
type MintRejectedError struct {
	Digest string
	Reason string
}

func (e *MintRejectedError) Error() string {
	if e.Digest == "" {
		return "mint rejected: " + e.Reason
	}
	return fmt.Sprintf("mint rejected (%s): %s", e.Digest, e.Reason)
}

// Config wires a Minter to a fullnode and a receipt package.
type Config struct {
	RPCURL       string
	PackageID    string
	Module       string
	Function     string
	GasBudget    uint64
	PollInterval time.Duration
	PollTimeout  time.Duration
	RPCTimeout   time.Duration
	Transport    http.RoundTripper
	Logger       *slog.Logger
}

// Minter mints ownership receipts for stored blobs.
type Minter struct {
	rpc      *rpcClient
	signer   *Signer
	pkg      string
	module   string
	function string
	gas      uint64
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger

	// submitMu orders submissions from the custodial account. Finality
	// polling does not hold it.
	submitMu sync.Mutex
}

// NewMinter validates cfg and binds it to signer.
func NewMinter(cfg Config, signer *Signer) (*Minter, error) {
	if signer == nil {
		return nil, fmt.Errorf("%w: no signing key", ErrSignerMisconfigured)
	}
	if strings.TrimSpace(cfg.RPCURL) == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	pkg := strings.TrimSpace(cfg.PackageID)
	if !models.IsValidAddress(pkg) {
		return nil, fmt.Errorf("invalid receipt package id %q", cfg.PackageID)
	}

	m := &Minter{
		rpc:      newRPCClient(cfg.RPCURL, cfg.Transport, cfg.RPCTimeout),
		signer:   signer,
		pkg:      pkg,
		module:   valueOr(cfg.Module, DefaultModule),
		function: valueOr(cfg.Function, DefaultFunction),
		gas:      cfg.GasBudget,
		interval: cfg.PollInterval,
		timeout:  cfg.PollTimeout,
		logger:   cfg.Logger,
	}
	if m.gas == 0 {
		m.gas = DefaultGasBudget
	}
	if m.interval <= 0 {
		m.interval = DefaultPollInterval
	}
	if m.timeout <= 0 {
		m.timeout = DefaultPollTimeout
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	m.logger = m.logger.With("component", "ledger")
	return m, nil
}

func valueOr(v, fallback string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return fallback
	}
	return v
}

// Signer returns the custodial signer.
func (m *Minter) Signer() *Signer {
	return m.signer
}

type moveCallResult struct {
	TxBytes string `json:"txBytes"`
}

type executionStatus struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

type transactionEffects struct {
	Status executionStatus `json:"status"`
}

type transactionResponse struct {
	Digest  string              `json:"digest"`
	Effects *transactionEffects `json:"effects"`
}

// Mint builds, signs and submits the receipt call, then waits for a
// terminal effect status.
func (m *Minter) Mint(ctx context.Context, blobID, mediaType, owner string) (models.Receipt, error) {
	var zero models.Receipt
	blobID = strings.TrimSpace(blobID)
	owner = strings.TrimSpace(owner)
	if blobID == "" {
		return zero, fmt.Errorf("blob id is required")
	}
	if !models.IsValidAddress(owner) {
		return zero, fmt.Errorf("invalid owner address %q", owner)
	}
	if strings.TrimSpace(mediaType) == "" {
		mediaType = models.DefaultMediaType
	}

	submitted, err := m.submit(ctx, blobID, mediaType, owner)
	if err != nil {
		return zero, err
	}

	effects := submitted.Effects
	if effects == nil || effects.Status.Status == "" {
		effects, err = m.waitForEffects(ctx, submitted.Digest)
		if err != nil {
			return zero, err
		}
	}

	switch effects.Status.Status {
	case statusSuccess:
	case statusFailure:
		return zero, &MintRejectedError{Digest: submitted.Digest, Reason: effects.Status.Error}
	default:
		return zero, &MintRejectedError{Digest: submitted.Digest, Reason: "unknown status " + strconv.Quote(effects.Status.Status)}
	}

	m.logger.Info("receipt minted", "digest", submitted.Digest, "blob_id", blobID, "owner", owner)
	return models.Receipt{
		TxID:      submitted.Digest,
		BlobID:    blobID,
		MediaType: mediaType,
		Owner:     owner,
	}, nil
}

func (m *Minter) submit(ctx context.Context, blobID, mediaType, owner string) (transactionResponse, error) {
	m.submitMu.Lock()
	defer m.submitMu.Unlock()

	var built moveCallResult
	err := m.rpc.call(ctx, "unsafe_moveCall", []any{
		m.signer.Address(),
		m.pkg,
		m.module,
		m.function,
		[]string{},
		[]any{blobID, mediaType, owner},
		nil,
		strconv.FormatUint(m.gas, 10),
	}, &built)
	if err != nil {
		return transactionResponse{}, rejectedOr(err)
	}

	txBytes, err := base64.StdEncoding.DecodeString(built.TxBytes)
	if err != nil || len(txBytes) == 0 {
		return transactionResponse{}, fmt.Errorf("unsafe_moveCall: invalid txBytes")
	}

	var executed transactionResponse
	err = m.rpc.call(ctx, "sui_executeTransactionBlock", []any{
		built.TxBytes,
		[]string{m.signer.SignTransaction(txBytes)},
		map[string]bool{"showEffects": true},
		"WaitForEffectsCert",
	}, &executed)
	if err != nil {
		return transactionResponse{}, rejectedOr(err)
	}
	if strings.TrimSpace(executed.Digest) == "" {
		return transactionResponse{}, fmt.Errorf("sui_executeTransactionBlock: missing digest")
	}
	m.logger.Debug("transaction submitted", "digest", executed.Digest)
	return executed, nil
}

func (m *Minter) waitForEffects(ctx context.Context, digest string) (*transactionEffects, error) {
	effects, err := backoff.Retry(ctx, func() (*transactionEffects, error) {
		var tx transactionResponse
		err := m.rpc.call(ctx, "sui_getTransactionBlock", []any{
			digest,
			map[string]bool{"showEffects": true},
		}, &tx)
		if err != nil {
			var rpcErr *RPCError
			if errors.As(err, &rpcErr) {
				// not yet indexed by this fullnode
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		if tx.Effects == nil || tx.Effects.Status.Status == "" {
			return nil, fmt.Errorf("effects for %s not available", digest)
		}
		return tx.Effects, nil
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(m.interval)),
		backoff.WithMaxElapsedTime(m.timeout),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, ErrLedgerUnavailable) {
			return nil, err
		}
		return nil, &MintRejectedError{Digest: digest, Reason: "finality not observed: " + err.Error()}
	}
	return effects, nil
}

// rejectedOr converts a fullnode rejection into MintRejectedError and leaves
// transport failures as they are.
func rejectedOr(err error) error {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return &MintRejectedError{Reason: rpcErr.Message}
	}
	return err
}
