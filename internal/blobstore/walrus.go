package blobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/georgegoldman/mothrbox-walrus-layer/internal/models"
)

const (
	defaultWalrusTimeout = 10 * time.Minute
	maxErrorBodyBytes    = 4 << 10
)

// WalrusConfig configures the HTTP publisher and aggregator endpoints.
type WalrusConfig struct {
	PublisherURL  string
	AggregatorURL string
	Pricing       Pricing
	Timeout       time.Duration
	// Transport overrides the HTTP transport. Nil uses http.DefaultTransport.
	Transport http.RoundTripper
}

// WalrusClient stores payloads as single-file quilts through a publisher
// and reads them back through an aggregator.
type WalrusClient struct {
	publisher  string
	aggregator string
	pricing    Pricing
	timeout    time.Duration
	transport  http.RoundTripper

	once sync.Once
	http *http.Client
}

var _ BlobStore = (*WalrusClient)(nil)

// NewWalrusClient validates cfg. The HTTP client is created on first use.
func NewWalrusClient(cfg WalrusConfig) (*WalrusClient, error) {
	publisher, err := normalizeBaseURL(cfg.PublisherURL)
	if err != nil {
		return nil, fmt.Errorf("publisher url: %w", err)
	}
	aggregator, err := normalizeBaseURL(cfg.AggregatorURL)
	if err != nil {
		return nil, fmt.Errorf("aggregator url: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultWalrusTimeout
	}
	return &WalrusClient{
		publisher:  publisher,
		aggregator: aggregator,
		pricing:    cfg.Pricing.normalized(),
		timeout:    timeout,
		transport:  cfg.Transport,
	}, nil
}

func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("host is required")
	}
	return strings.TrimRight(u.String(), "/"), nil
}

func (c *WalrusClient) client() *http.Client {
	c.once.Do(func() {
		c.http = &http.Client{Timeout: c.timeout, Transport: c.transport}
	})
	return c.http
}

// Upload sends payload as a one-file quilt. Stream payloads are piped into
// the multipart body as they are read.
func (c *WalrusClient) Upload(ctx context.Context, payload Payload, opts UploadOptions) (models.BlobHandle, error) {
	var zero models.BlobHandle
	if payload == nil {
		return zero, fmt.Errorf("%w: payload is required", ErrStoreRejected)
	}
	identifier := normalizeIdentifier(opts.Identifier)
	epochs := opts.Epochs
	if epochs <= 0 {
		epochs = models.DefaultEpochs
	}

	q := url.Values{}
	q.Set("epochs", strconv.Itoa(epochs))
	if opts.Deletable {
		q.Set("deletable", "true")
	} else {
		q.Set("permanent", "true")
	}
	endpoint := c.publisher + "/v1/quilts?" + q.Encode()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	counter := &countingReader{r: payload.Reader()}
	copyDone := make(chan error, 1)
	go func() {
		err := writeQuiltBody(mw, identifier, counter)
		_ = pw.CloseWithError(err)
		copyDone <- err
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, pr)
	if err != nil {
		_ = pr.CloseWithError(err)
		<-copyDone
		return zero, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.client().Do(req)
	_ = pr.Close()
	copyErr := <-copyDone
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, ctxErr
		}
		if copyErr != nil && !errors.Is(copyErr, io.ErrClosedPipe) {
			return zero, fmt.Errorf("read payload: %w", copyErr)
		}
		return zero, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer resp.Body.Close()

	if err := statusError(resp); err != nil {
		return zero, err
	}
	if copyErr != nil && !errors.Is(copyErr, io.ErrClosedPipe) {
		return zero, fmt.Errorf("read payload: %w", copyErr)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return zero, fmt.Errorf("%w: read response: %v", ErrStoreUnavailable, err)
	}
	blobID, err := parseUploadResponse(body)
	if err != nil {
		return zero, err
	}
	return models.BlobHandle{
		BlobID:    blobID,
		SizeBytes: counter.n,
		Epochs:    epochs,
		Deletable: opts.Deletable,
	}, nil
}

func writeQuiltBody(mw *multipart.Writer, identifier string, r io.Reader) error {
	part, err := mw.CreateFormFile(identifier, identifier)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, r); err != nil {
		return err
	}
	return mw.Close()
}

type quiltPatch struct {
	Identifier string            `json:"identifier"`
	PatchID    string            `json:"patch_id"`
	Tags       map[string]string `json:"tags"`
}

// Download lists the quilt's patches and fetches the only one.
func (c *WalrusClient) Download(ctx context.Context, blobID string) ([]byte, error) {
	blobID = strings.TrimSpace(blobID)
	if blobID == "" {
		return nil, fmt.Errorf("blob id is required")
	}

	var patches []quiltPatch
	listURL := c.aggregator + "/v1/quilts/" + url.PathEscape(blobID) + "/patches"
	body, err := c.get(ctx, listURL, blobID)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(body, &patches); err != nil {
		return nil, fmt.Errorf("%w: decode patches: %v", ErrMalformedStoreResponse, err)
	}
	if err := requireSingleFile(blobID, len(patches)); err != nil {
		return nil, err
	}
	if strings.TrimSpace(patches[0].PatchID) == "" {
		return nil, fmt.Errorf("%w: patch id missing", ErrMalformedStoreResponse)
	}

	return c.get(ctx, c.aggregator+"/v1/blobs/by-quilt-patch-id/"+url.PathEscape(patches[0].PatchID), blobID)
}

func (c *WalrusClient) get(ctx context.Context, endpoint, blobID string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client().Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, blobID)
	}
	if err := statusError(resp); err != nil {
		return nil, err
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrStoreUnavailable, err)
	}
	return body, nil
}

// StorageCost applies the configured system pricing. It does not contact
// the publisher.
func (c *WalrusClient) StorageCost(_ context.Context, sizeBytes int64, epochs int) (StorageCost, error) {
	return c.pricing.Cost(sizeBytes, epochs)
}

func statusError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	detail := strings.TrimSpace(string(msg))
	if detail == "" {
		detail = http.StatusText(resp.StatusCode)
	}
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return fmt.Errorf("%w: status %d: %s", ErrStoreRejected, resp.StatusCode, detail)
	}
	return fmt.Errorf("%w: status %d: %s", ErrStoreUnavailable, resp.StatusCode, detail)
}
