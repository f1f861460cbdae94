package blobstore

import (
	"context"
	"errors"

	"github.com/georgegoldman/mothrbox-walrus-layer/internal/models"
)

var (
	// ErrStoreUnavailable reports a transport failure or a store-side outage.
	ErrStoreUnavailable = errors.New("blob store unavailable")
	// ErrStoreRejected reports a request the store refused to accept.
	ErrStoreRejected = errors.New("blob store rejected request")
	// ErrMalformedStoreResponse reports an upload reply without a recognizable blob id.
	ErrMalformedStoreResponse = errors.New("malformed blob store response")
	ErrBlobNotFound           = errors.New("blob not found")
	ErrEmptyBlob              = errors.New("blob contains no files")
	ErrMultipleFiles          = errors.New("blob contains more than one file")
	ErrBlobTooLarge           = errors.New("blob exceeds maximum size")
	ErrEpochsOutOfRange       = errors.New("epochs out of range")
	ErrCostOverflow           = errors.New("storage cost overflows native units")
)

// UploadOptions controls naming and retention of one stored payload.
type UploadOptions struct {
	Identifier string
	Epochs     int
	Deletable  bool
}

// BlobStore is the content-addressed storage surface used by the upload pipeline.
type BlobStore interface {
	Upload(ctx context.Context, payload Payload, opts UploadOptions) (models.BlobHandle, error)
	Download(ctx context.Context, blobID string) ([]byte, error)
	StorageCost(ctx context.Context, sizeBytes int64, epochs int) (StorageCost, error)
}
