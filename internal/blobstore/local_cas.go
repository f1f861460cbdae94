package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/georgegoldman/mothrbox-walrus-layer/internal/models"
)

const (
	casAlgorithmPrefix = "sha256"
	defaultIdentifier  = "untitled"
)

// LocalCAS stores blob envelopes in a local content-addressed tree.
type LocalCAS struct {
	root    string
	pricing Pricing
}

var _ BlobStore = (*LocalCAS)(nil)

// NewLocalCAS creates a local CAS rooted at root.
func NewLocalCAS(root string, pricing Pricing) (*LocalCAS, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("local cas root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(abs, "tmp"), 0o755); err != nil {
		return nil, err
	}
	return &LocalCAS{root: abs, pricing: pricing.normalized()}, nil
}

// Upload spools the payload to disk, wraps it in an envelope, and stores the
// envelope by digest. Memory use does not grow with payload size.
func (c *LocalCAS) Upload(ctx context.Context, payload Payload, opts UploadOptions) (models.BlobHandle, error) {
	var zero models.BlobHandle
	if c == nil {
		return zero, fmt.Errorf("%w: blob store is not configured", ErrStoreUnavailable)
	}
	if payload == nil {
		return zero, fmt.Errorf("%w: payload is required", ErrStoreRejected)
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	identifier := normalizeIdentifier(opts.Identifier)
	if len(identifier) > maxIdentifierLen {
		return zero, fmt.Errorf("%w: identifier too long", ErrStoreRejected)
	}
	epochs := opts.Epochs
	if epochs <= 0 {
		epochs = models.DefaultEpochs
	}

	tmpDir := filepath.Join(c.root, "tmp")
	content, err := os.CreateTemp(tmpDir, "content-*")
	if err != nil {
		return zero, err
	}
	defer func() {
		_ = content.Close()
		_ = os.Remove(content.Name())
	}()

	counter := &countingReader{r: payload.Reader()}
	if _, err := io.Copy(content, counter); err != nil {
		return zero, fmt.Errorf("read payload: %w", err)
	}
	if _, err := content.Seek(0, io.SeekStart); err != nil {
		return zero, err
	}

	tmp, err := os.CreateTemp(tmpDir, "put-*")
	if err != nil {
		return zero, err
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	h := sha256.New()
	w := io.MultiWriter(tmp, h)
	if err := writeEnvelopeHeader(w, 1); err != nil {
		cleanup()
		return zero, err
	}
	if err := writeEnvelopeEntryHeader(w, identifier, uint64(counter.n)); err != nil {
		cleanup()
		return zero, err
	}
	if _, err := io.Copy(w, content); err != nil {
		cleanup()
		return zero, err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return zero, err
	}

	sum := h.Sum(nil)
	handle := models.BlobHandle{
		BlobID:    base64.RawURLEncoding.EncodeToString(sum),
		SizeBytes: counter.n,
		Epochs:    epochs,
		Deletable: opts.Deletable,
	}
	dst := filepath.Join(c.root, filepath.FromSlash(casKeyFromDigest(hex.EncodeToString(sum))))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		cleanup()
		return zero, err
	}

	if _, err := os.Stat(dst); err == nil {
		_ = os.Remove(tmpPath)
		return handle, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		cleanup()
		return zero, err
	}

	if err := os.Rename(tmpPath, dst); err != nil {
		if _, statErr := os.Stat(dst); statErr == nil {
			_ = os.Remove(tmpPath)
			return handle, nil
		}
		cleanup()
		return zero, err
	}

	return handle, nil
}

// Download decodes the stored envelope and returns its single file body.
func (c *LocalCAS) Download(ctx context.Context, blobID string) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: blob store is not configured", ErrStoreUnavailable)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := c.pathFromBlobID(blobID)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, blobID)
		}
		return nil, err
	}
	defer f.Close()

	files, err := readEnvelope(f)
	if err != nil {
		return nil, err
	}
	if err := requireSingleFile(blobID, len(files)); err != nil {
		return nil, err
	}
	return files[0].Data, nil
}

// StorageCost applies the configured pricing to size and epochs.
func (c *LocalCAS) StorageCost(_ context.Context, sizeBytes int64, epochs int) (StorageCost, error) {
	if c == nil {
		return StorageCost{}, fmt.Errorf("%w: blob store is not configured", ErrStoreUnavailable)
	}
	return c.pricing.Cost(sizeBytes, epochs)
}

func casKeyFromDigest(digest string) string {
	return fmt.Sprintf("%s/%s/%s/%s", casAlgorithmPrefix, digest[0:2], digest[2:4], digest)
}

func (c *LocalCAS) pathFromBlobID(blobID string) (string, error) {
	blobID = strings.TrimSpace(blobID)
	if blobID == "" {
		return "", fmt.Errorf("blob id is required")
	}
	sum, err := base64.RawURLEncoding.DecodeString(blobID)
	if err != nil || len(sum) != sha256.Size {
		return "", fmt.Errorf("%w: invalid blob id %q", ErrBlobNotFound, blobID)
	}
	return filepath.Join(c.root, filepath.FromSlash(casKeyFromDigest(hex.EncodeToString(sum)))), nil
}

func normalizeIdentifier(identifier string) string {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return defaultIdentifier
	}
	return identifier
}
