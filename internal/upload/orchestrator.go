package upload

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/georgegoldman/mothrbox-walrus-layer/internal/blobstore"
	"github.com/georgegoldman/mothrbox-walrus-layer/internal/index"
	"github.com/georgegoldman/mothrbox-walrus-layer/internal/models"
)

const (
	tracerName        = "github.com/georgegoldman/mothrbox-walrus-layer/internal/upload"
	defaultIdentifier = "untitled"
)

// Options tunes an Orchestrator.
type Options struct {
	DefaultEpochs  int
	Deletable      bool
	Logger         *slog.Logger
	TracerProvider trace.TracerProvider
	Now            func() time.Time
}

// Orchestrator drives store, mint and index for one payload at a time.
// It holds no per-request state and is safe for concurrent use.
type Orchestrator struct {
	store   BlobUploader
	minter  ReceiptMinter
	records RecordWriter

	epochs    int
	deletable bool
	logger    *slog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// New builds an Orchestrator. records may be nil, which disables indexing.
func New(store BlobUploader, minter ReceiptMinter, records RecordWriter, opts Options) *Orchestrator {
	o := &Orchestrator{
		store:     store,
		minter:    minter,
		records:   records,
		epochs:    opts.DefaultEpochs,
		deletable: opts.Deletable,
		logger:    opts.Logger,
		now:       opts.Now,
	}
	if o.epochs <= 0 {
		o.epochs = models.DefaultEpochs
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	o.logger = o.logger.With("component", "upload")
	tp := opts.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	o.tracer = tp.Tracer(tracerName)
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

type run struct {
	transitions []State
	logger      *slog.Logger
}

func (r *run) enter(s State) {
	r.transitions = append(r.transitions, s)
	r.logger.Debug("upload state", "state", s.String())
}

func (r *run) abort(kind ErrorKind, err error) (Result, error) {
	from := r.transitions[len(r.transitions)-1]
	r.enter(StateAborted)
	level := slog.LevelError
	if kind == ValidationError {
		level = slog.LevelDebug
	}
	r.logger.Log(context.Background(), level, "upload aborted", "state", from.String(), "kind", kind.String(), "error", err)
	return Result{}, &Error{Kind: kind, State: from, Err: err}
}

// Upload runs the pipeline for req. The returned error is always *Error.
// An index failure is reported in Result.Index and does not fail the call.
func (o *Orchestrator) Upload(ctx context.Context, req Request) (Result, error) {
	r := &run{logger: o.logger}
	r.enter(StateReceived)

	prepared, err := o.validate(req)
	if err != nil {
		return r.abort(ValidationError, err)
	}
	req = prepared
	r.logger = r.logger.With("owner", req.Owner, "file_name", req.FileName)

	payload, err := nonEmpty(req.Payload)
	if err != nil {
		if errors.Is(err, ErrEmptyPayload) {
			return r.abort(ValidationError, err)
		}
		return r.abort(UploadFailed, err)
	}

	r.enter(StateUploading)
	blob, err := o.storeBlob(ctx, payload, req)
	if err != nil {
		return r.abort(UploadFailed, err)
	}
	r.enter(StateUploaded)
	r.logger = r.logger.With("blob_id", blob.BlobID)

	r.enter(StateMinting)
	receipt, err := o.mint(ctx, blob, req)
	if err != nil {
		return r.abort(MintFailed, err)
	}
	r.enter(StateMinted)

	rec := models.FileRecord{
		Owner:         req.Owner,
		FileName:      req.FileName,
		FileSizeBytes: blob.SizeBytes,
		Algorithm:     req.Algorithm,
		BlobID:        blob.BlobID,
		TxID:          receipt.TxID,
		Status:        models.StatusForAlgorithm(req.Algorithm),
		UploadedAt:    o.now().UTC(),
		MimeType:      req.MediaType,
	}

	r.enter(StateIndexing)
	outcome := o.index(ctx, rec)
	switch {
	case outcome.OK():
	case !outcome.Attempted:
		r.logger.Debug("index skipped", "reason", "unconfigured")
	default:
		r.logger.Warn("index write failed, upload kept", "tx_id", receipt.TxID, "error", outcome.Err)
	}
	r.enter(StateDone)

	r.logger.Info("upload complete", "tx_id", receipt.TxID, "size_bytes", blob.SizeBytes)
	return Result{
		Blob:        blob,
		Receipt:     receipt,
		Record:      rec,
		Index:       outcome,
		Transitions: r.transitions,
	}, nil
}

func (o *Orchestrator) validate(req Request) (Request, error) {
	if req.Payload == nil {
		return req, ErrNoPayload
	}
	req.Owner = strings.TrimSpace(req.Owner)
	if req.Owner == "" {
		return req, ErrOwnerRequired
	}
	owner, err := models.NormalizeAddress(req.Owner)
	if err != nil {
		return req, fmt.Errorf("%w: %q", ErrInvalidOwner, req.Owner)
	}
	req.Owner = owner
	if req.Epochs < 0 || req.Epochs > models.MaxEpochs {
		return req, fmt.Errorf("%w: got %d", ErrInvalidEpochs, req.Epochs)
	}
	if req.Epochs == 0 {
		req.Epochs = o.epochs
	}
	req.FileName = strings.TrimSpace(req.FileName)
	if req.FileName == "" {
		req.FileName = defaultIdentifier
	}
	req.Algorithm = strings.TrimSpace(req.Algorithm)
	req.MediaType = strings.TrimSpace(req.MediaType)
	if req.MediaType == "" {
		req.MediaType = models.DefaultMediaType
	}
	return req, nil
}

// nonEmpty rejects empty payloads without consuming a stream: a stream of
// unknown length is peeked through a buffered reader that replaces it.
func nonEmpty(p blobstore.Payload) (blobstore.Payload, error) {
	switch v := p.(type) {
	case blobstore.BufferPayload:
		if v.Size() == 0 {
			return nil, ErrEmptyPayload
		}
		return v, nil
	case blobstore.StreamPayload:
		if v.Size() == 0 {
			return nil, ErrEmptyPayload
		}
		br := bufio.NewReader(v.Reader())
		if _, err := br.Peek(1); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, ErrEmptyPayload
			}
			return nil, fmt.Errorf("read payload: %w", err)
		}
		return blobstore.NewStreamPayload(br, v.Size()), nil
	default:
		return nil, fmt.Errorf("unsupported payload %T", p)
	}
}

func (o *Orchestrator) storeBlob(ctx context.Context, payload blobstore.Payload, req Request) (models.BlobHandle, error) {
	ctx, span := o.tracer.Start(ctx, "upload.store", trace.WithAttributes(
		attribute.String("upload.file_name", req.FileName),
		attribute.Int("upload.epochs", req.Epochs),
		attribute.Bool("upload.streamed", payload.Streamed()),
	))
	defer span.End()

	blob, err := o.store.Upload(ctx, payload, blobstore.UploadOptions{
		Identifier: req.FileName,
		Epochs:     req.Epochs,
		Deletable:  o.deletable,
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return models.BlobHandle{}, err
	}
	span.SetAttributes(
		attribute.String("blob.id", blob.BlobID),
		attribute.Int64("blob.size_bytes", blob.SizeBytes),
	)
	return blob, nil
}

func (o *Orchestrator) mint(ctx context.Context, blob models.BlobHandle, req Request) (models.Receipt, error) {
	ctx, span := o.tracer.Start(ctx, "upload.mint", trace.WithAttributes(
		attribute.String("blob.id", blob.BlobID),
	))
	defer span.End()

	receipt, err := o.minter.Mint(ctx, blob.BlobID, req.MediaType, req.Owner)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return models.Receipt{}, err
	}
	span.SetAttributes(attribute.String("ledger.tx_id", receipt.TxID))
	return receipt, nil
}

func (o *Orchestrator) index(ctx context.Context, rec models.FileRecord) IndexOutcome {
	if o.records == nil {
		return IndexOutcome{}
	}
	ctx, span := o.tracer.Start(ctx, "upload.index", trace.WithAttributes(
		attribute.String("blob.id", rec.BlobID),
	))
	defer span.End()

	if err := o.records.Record(ctx, rec); err != nil {
		if errors.Is(err, index.ErrIndexUnconfigured) {
			return IndexOutcome{}
		}
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return IndexOutcome{Attempted: true, Err: err}
	}
	return IndexOutcome{Attempted: true}
}
