package upload

import (
	"context"
	"errors"
	"fmt"

	"github.com/georgegoldman/mothrbox-walrus-layer/internal/blobstore"
	"github.com/georgegoldman/mothrbox-walrus-layer/internal/models"
)

// State is a step of the upload pipeline.
type State int

const (
	StateReceived State = iota
	StateUploading
	StateUploaded
	StateMinting
	StateMinted
	StateIndexing
	StateDone
	StateAborted
)

var stateNames = [...]string{
	StateReceived:  "received",
	StateUploading: "uploading",
	StateUploaded:  "uploaded",
	StateMinting:   "minting",
	StateMinted:    "minted",
	StateIndexing:  "indexing",
	StateDone:      "done",
	StateAborted:   "aborted",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// ErrorKind classifies a fatal pipeline failure.
type ErrorKind int

const (
	ValidationError ErrorKind = iota + 1
	UploadFailed
	MintFailed
)

func (k ErrorKind) String() string {
	switch k {
	case ValidationError:
		return "validation error"
	case UploadFailed:
		return "upload failed"
	case MintFailed:
		return "mint failed"
	default:
		return "unknown"
	}
}

// Error is returned when the pipeline aborts. State is the state the
// pipeline was in when it aborted.
type Error struct {
	Kind  ErrorKind
	State State
	Err   error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

var (
	ErrNoPayload     = errors.New("no file uploaded")
	ErrEmptyPayload  = errors.New("payload is empty")
	ErrOwnerRequired = errors.New("owner address is required")
	ErrInvalidOwner  = errors.New("invalid owner address")
	ErrInvalidEpochs = errors.New("epochs must be between 1 and 53")
)

// BlobUploader stores a payload and returns its handle.
type BlobUploader interface {
	Upload(ctx context.Context, payload blobstore.Payload, opts blobstore.UploadOptions) (models.BlobHandle, error)
}

// ReceiptMinter anchors an ownership receipt for a stored blob.
type ReceiptMinter interface {
	Mint(ctx context.Context, blobID, mediaType, owner string) (models.Receipt, error)
}

// RecordWriter writes the owner listing entry.
type RecordWriter interface {
	Record(ctx context.Context, rec models.FileRecord) error
}

// Request is one upload. Payload may be a stream or a buffer.
type Request struct {
	Payload   blobstore.Payload
	Owner     string
	FileName  string
	Algorithm string
	MediaType string
	// Epochs of zero selects the orchestrator default.
	Epochs int
}

// IndexOutcome reports the best-effort index write. It never turns a
// successful upload into a failure.
type IndexOutcome struct {
	Attempted bool
	Err       error
}

// OK reports whether the record was written.
func (o IndexOutcome) OK() bool {
	return o.Attempted && o.Err == nil
}

// Result is a successful upload.
type Result struct {
	Blob        models.BlobHandle
	Receipt     models.Receipt
	Record      models.FileRecord
	Index       IndexOutcome
	Transitions []State
}
