package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/georgegoldman/mothrbox-walrus-layer/internal/models"
	"github.com/georgegoldman/mothrbox-walrus-layer/internal/upload"
)

const (
	readHeaderTimeout = 5 * time.Second
	idleTimeout       = 60 * time.Second
	shutdownTimeout   = 15 * time.Second

	defaultTransferTimeout    = 15 * time.Minute
	defaultMaxMultipartMemory = 32 << 20 // 32 MiB
	defaultUploadRate         = 30       // per minute per client
	defaultUploadBurst        = 5
)

var timeNow = time.Now

// Uploader runs the upload pipeline.
type Uploader interface {
	Upload(ctx context.Context, req upload.Request) (upload.Result, error)
}

// CostEstimator quotes storage prices.
type CostEstimator interface {
	Estimate(ctx context.Context, sizeBytes int64, epochs int) (models.CostQuote, error)
}

// FileLister serves owner listings.
type FileLister interface {
	ListByOwner(ctx context.Context, owner string) ([]models.FileRecord, error)
	Configured() bool
}

// BlobReader returns decoded blob content.
type BlobReader interface {
	Download(ctx context.Context, blobID string) ([]byte, error)
}

// Deps are the components behind the HTTP surface.
type Deps struct {
	Uploads       Uploader
	Costs         CostEstimator
	Files         FileLister
	Blobs         BlobReader
	BlobStoreName string
}

// Options tunes the HTTP surface.
type Options struct {
	CORSOrigin string
	APIToken   string
	// MaxUploadBytes bounds request bodies on /upload. Zero means unbounded.
	MaxUploadBytes     int64
	MaxMultipartMemory int64
	UploadRate         int
	UploadBurst        int
	TransferTimeout    time.Duration
}

// Server wraps HTTP handlers for the mothrbox API.
type Server struct {
	addr          string
	deps          Deps
	opts          Options
	logger        *slog.Logger
	uploadLimiter *ipRateLimiter
}

// New creates a new server instance.
func New(addr string, deps Deps, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxMultipartMemory <= 0 {
		opts.MaxMultipartMemory = defaultMaxMultipartMemory
	}
	if opts.UploadRate == 0 {
		opts.UploadRate = defaultUploadRate
	}
	if opts.UploadBurst <= 0 {
		opts.UploadBurst = defaultUploadBurst
	}
	if opts.TransferTimeout <= 0 {
		opts.TransferTimeout = defaultTransferTimeout
	}
	opts.APIToken = strings.TrimSpace(opts.APIToken)
	opts.CORSOrigin = strings.TrimSpace(opts.CORSOrigin)

	return &Server{
		addr:          addr,
		deps:          deps,
		opts:          opts,
		logger:        logger.With("component", "server"),
		uploadLimiter: newIPRateLimiter(opts.UploadRate, opts.UploadBurst),
	}
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.routes()
	h = s.withAuth(h)
	h = s.withCORS(h)
	h = s.withAccessLog(h)
	h = s.withRequestID(h)
	return otelhttp.NewHandler(h, "mothrbox",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			if r.Pattern != "" {
				return r.Pattern
			}
			return r.Method + " " + r.URL.Path
		}),
	)
}

// ListenAndServe starts the HTTP server and shuts it down when ctx ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.log().Info("starting server", "addr", s.addr)
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       s.opts.TransferTimeout,
		WriteTimeout:      s.opts.TransferTimeout,
		IdleTimeout:       idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.log().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// ListenAddr builds a listen address from a host and port.
func ListenAddr(host string, port int) (string, error) {
	if port <= 0 || port > 65535 {
		return "", fmt.Errorf("invalid port %d", port)
	}
	return net.JoinHostPort(strings.TrimSpace(host), strconv.Itoa(port)), nil
}

func (s *Server) log() *slog.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return slog.Default()
}
