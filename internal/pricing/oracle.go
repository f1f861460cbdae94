package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const (
	DefaultOracleURL    = "https://api.coingecko.com/api/v3/simple/price"
	DefaultCoinID       = "sui"
	DefaultCurrency     = "usd"
	DefaultFallbackRate = 2.5
	DefaultRateTTL      = time.Minute

	defaultOracleTimeout = 5 * time.Second
	defaultMinInterval   = 2 * time.Second
)

// RateSource returns a fiat rate for the ledger's native token. It never
// fails: an unreachable source yields a fallback value.
type RateSource interface {
	Rate(ctx context.Context) float64
}

// OracleConfig configures a CoinGecko-style simple price endpoint.
type OracleConfig struct {
	URL          string
	CoinID       string
	Currency     string
	FallbackRate float64
	TTL          time.Duration
	Timeout      time.Duration
	// MinInterval bounds how often the upstream is contacted after a
	// cache miss.
	MinInterval time.Duration
	Transport   http.RoundTripper
	Logger      *slog.Logger
}

// Oracle fetches and caches the native token price.
type Oracle struct {
	endpoint string
	coin     string
	currency string
	fallback float64

	http    *http.Client
	cache   *expirable.LRU[string, float64]
	group   singleflight.Group
	limiter *rate.Limiter
	last    atomic.Uint64
	logger  *slog.Logger
}

var _ RateSource = (*Oracle)(nil)

// NewOracle builds an Oracle from cfg, filling defaults.
func NewOracle(cfg OracleConfig) *Oracle {
	coin := strings.ToLower(strings.TrimSpace(cfg.CoinID))
	if coin == "" {
		coin = DefaultCoinID
	}
	currency := strings.ToLower(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = DefaultCurrency
	}
	endpoint := strings.TrimSpace(cfg.URL)
	if endpoint == "" {
		endpoint = DefaultOracleURL
	}
	fallback := cfg.FallbackRate
	if fallback <= 0 {
		fallback = DefaultFallbackRate
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultRateTTL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultOracleTimeout
	}
	interval := cfg.MinInterval
	if interval <= 0 {
		interval = defaultMinInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	o := &Oracle{
		endpoint: endpoint,
		coin:     coin,
		currency: currency,
		fallback: fallback,
		http:     &http.Client{Timeout: timeout, Transport: cfg.Transport},
		cache:    expirable.NewLRU[string, float64](8, nil, ttl),
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
		logger:   logger.With("component", "pricing"),
	}
	o.last.Store(math.Float64bits(fallback))
	return o
}

// Rate returns the cached rate, a freshly fetched one, or the fallback.
func (o *Oracle) Rate(ctx context.Context) float64 {
	key := o.coin + "/" + o.currency
	if v, ok := o.cache.Get(key); ok {
		return v
	}
	if !o.limiter.Allow() {
		return math.Float64frombits(o.last.Load())
	}

	// the fetch is shared by every waiter on key, so one caller's
	// cancellation must not end it; the client timeout bounds it instead
	shared := context.WithoutCancel(ctx)
	v, err, _ := o.group.Do(key, func() (any, error) {
		return o.fetch(shared)
	})
	if err != nil {
		o.logger.Warn("price oracle unavailable, using fallback", "error", err, "fallback", o.fallback)
		return o.fallback
	}
	price := v.(float64)
	o.cache.Add(key, price)
	o.last.Store(math.Float64bits(price))
	return price
}

func (o *Oracle) fetch(ctx context.Context) (float64, error) {
	q := url.Values{}
	q.Set("ids", o.coin)
	q.Set("vs_currencies", o.currency)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := o.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("status %d", resp.StatusCode)
	}

	var body map[string]map[string]float64
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&body); err != nil {
		return 0, fmt.Errorf("decode price: %w", err)
	}
	price, ok := body[o.coin][o.currency]
	if !ok || price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return 0, fmt.Errorf("price for %s/%s missing", o.coin, o.currency)
	}
	return price, nil
}

// FixedRate is a RateSource that always returns the same value.
type FixedRate float64

func (r FixedRate) Rate(context.Context) float64 { return float64(r) }
