package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	httpTimeoutEnvKey  = "MOTHRBOX_HTTP_TIMEOUT"
	apiTokenEnvKey     = "MOTHRBOX_API_TOKEN"

	HeaderOwnerAddress = "X-Owner-Address"
	HeaderFileName     = "X-File-Name"
	HeaderAlgorithm    = "X-Algorithm"
	HeaderEpochs       = "X-Epochs"
	HeaderRequestID    = "X-Request-ID"
)

// Client is a simple HTTP client for the mothrbox API.
type Client struct {
	baseURL   string
	http      *http.Client
	transfer  *http.Client
	authToken string
}

// NewClient creates a new API client. Uploads and downloads are bounded by
// the caller's context only.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{Timeout: httpTimeoutFromEnv()},
		transfer:  &http.Client{},
		authToken: strings.TrimSpace(os.Getenv(apiTokenEnvKey)),
	}
}

// Ping checks whether the API server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// Health returns the server's health report.
func (c *Client) Health(ctx context.Context) (HealthResponse, error) {
	var resp HealthResponse
	err := c.do(ctx, http.MethodGet, "/health", nil, &resp)
	return resp, err
}

// UploadStream sends body as a raw streamed upload.
func (c *Client) UploadStream(ctx context.Context, body io.Reader, size int64, params UploadParams) (UploadResponse, error) {
	var resp UploadResponse
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", body)
	if err != nil {
		return resp, err
	}
	if size >= 0 {
		req.ContentLength = size
	}
	contentType := params.MediaType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(HeaderOwnerAddress, params.Owner)
	if params.FileName != "" {
		req.Header.Set(HeaderFileName, params.FileName)
	}
	if params.Algorithm != "" {
		req.Header.Set(HeaderAlgorithm, params.Algorithm)
	}
	if params.Epochs > 0 {
		req.Header.Set(HeaderEpochs, strconv.Itoa(params.Epochs))
	}
	c.setAuthHeader(req)

	httpResp, err := c.transfer.Do(req)
	if err != nil {
		return resp, err
	}
	defer httpResp.Body.Close()
	if httpResp.StatusCode >= 400 {
		return resp, decodeError(httpResp)
	}
	err = json.NewDecoder(httpResp.Body).Decode(&resp)
	return resp, err
}

// StorageCost quotes sizeBytes for epochs. Zero epochs lets the server pick.
func (c *Client) StorageCost(ctx context.Context, sizeBytes int64, epochs int) (StorageCostResponse, error) {
	var resp StorageCostResponse
	query := url.Values{}
	query.Set("fileSize", strconv.FormatInt(sizeBytes, 10))
	if epochs > 0 {
		query.Set("epochs", strconv.Itoa(epochs))
	}
	err := c.do(ctx, http.MethodGet, "/storage-cost?"+query.Encode(), nil, &resp)
	return resp, err
}

// ListFiles returns owner's indexed files, newest first.
func (c *Client) ListFiles(ctx context.Context, owner string) (FileListResponse, error) {
	var resp FileListResponse
	err := c.do(ctx, http.MethodGet, "/owners/"+url.PathEscape(owner)+"/files", nil, &resp)
	return resp, err
}

// DownloadBlob copies a blob's decoded content to w.
func (c *Client) DownloadBlob(ctx context.Context, blobID string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/blobs/"+url.PathEscape(blobID), nil)
	if err != nil {
		return 0, err
	}
	c.setAuthHeader(req)
	resp, err := c.transfer.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return 0, decodeError(resp)
	}
	return io.Copy(w, resp.Body)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	c.setAuthHeader(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	var errResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
		return &APIError{
			Status:    resp.StatusCode,
			Code:      errResp.Code,
			ErrorCode: errResp.ErrorCode,
			Message:   errResp.Error,
			RequestID: resp.Header.Get(HeaderRequestID),
		}
	}
	return &APIError{
		Status:    resp.StatusCode,
		Message:   fmt.Sprintf("api error: %s", resp.Status),
		RequestID: resp.Header.Get(HeaderRequestID),
	}
}

func (c *Client) setAuthHeader(req *http.Request) {
	if c.authToken == "" || req == nil {
		return
	}
	req.Header.Set("Authorization", "Bearer "+c.authToken)
}

func httpTimeoutFromEnv() time.Duration {
	value := strings.TrimSpace(os.Getenv(httpTimeoutEnvKey))
	if value == "" {
		return defaultHTTPTimeout
	}

	if duration, err := time.ParseDuration(value); err == nil && duration > 0 {
		return duration
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	return defaultHTTPTimeout
}
