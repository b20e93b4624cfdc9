package fundamentals

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"FactorLab/internal/domain/models"
	domservice "FactorLab/internal/domain/service"
	"FactorLab/internal/services/strategy"
	"FactorLab/pkg/cache"
	xhttp "FactorLab/pkg/http"
	"FactorLab/pkg/logger"
	"FactorLab/pkg/util"
)

// HTTPProvider fetches valuation and profitability factors from a remote service and caches
// them per (stock, date).
type HTTPProvider struct {
	client     *client
	clientOpts []xhttp.ClientOption
	cache      cache.Service
	ttl        time.Duration
	attempts   int
	log        *logger.Logger
}

var _ domservice.FundamentalsProvider = (*HTTPProvider)(nil)

type Option func(*HTTPProvider)

// WithCache stores decoded snapshots for ttl.
func WithCache(c cache.Service, ttl time.Duration) Option {
	return func(p *HTTPProvider) {
		p.cache = c
		p.ttl = ttl
	}
}

func WithAttempts(n int) Option {
	return func(p *HTTPProvider) { p.attempts = n }
}

func WithLogger(l *logger.Logger) Option {
	return func(p *HTTPProvider) {
		if l != nil {
			p.log = l
		}
	}
}

// WithClientOptions passes options to the underlying HTTP client.
func WithClientOptions(opts ...xhttp.ClientOption) Option {
	return func(p *HTTPProvider) { p.clientOpts = append(p.clientOpts, opts...) }
}

func NewHTTPProvider(baseURL, apiKey string, timeout time.Duration, opts ...Option) *HTTPProvider {
	register()
	p := &HTTPProvider{attempts: 2, log: logger.Nop()}
	for _, opt := range opts {
		opt(p)
	}
	p.client = newClient(baseURL, apiKey, timeout, p.clientOpts...)
	return p
}

// response is the wire shape of GET /fundamentals/{stock_id}?date=YYYY-MM-DD.
type response struct {
	StockID string                 `json:"stock_id"`
	Date    string                 `json:"date"`
	Values  map[string]interface{} `json:"values"`
}

// Fundamentals returns the latest fundamentals known on date. Non-numeric values are
// dropped. A 404 yields an empty snapshot rather than an error.
func (p *HTTPProvider) Fundamentals(ctx context.Context, entityID string, date time.Time) (models.FactorSnapshot, error) {
	day := util.FormatDate(date)
	key := cache.Key("fundamentals", entityID, day)
	if p.cache != nil {
		var snap models.FactorSnapshot
		if err := p.cache.Get(ctx, key, &snap); err == nil {
			lookups.WithLabelValues("hit").Inc()
			return snap, nil
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			p.log.Warn("fundamentals cache read failed", logger.String("key", key), logger.Error(err))
		}
	}

	start := time.Now()
	var resp response
	err := p.client.getJSONWithRetry(ctx, "/fundamentals/"+url.PathEscape(entityID),
		map[string][]string{"date": {day}}, &resp, p.attempts)
	fetchLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		var se *xhttp.StatusError
		if errors.As(err, &se) && se.StatusCode == 404 {
			lookups.WithLabelValues("miss").Inc()
			return models.FactorSnapshot{}, nil
		}
		lookups.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("fundamentals %s: %w", entityID, err)
	}
	lookups.WithLabelValues("miss").Inc()

	snap := strategy.CoerceValues(resp.Values)
	if p.cache != nil {
		if err := p.cache.Set(ctx, key, snap, p.ttl); err != nil {
			p.log.Warn("fundamentals cache write failed", logger.String("key", key), logger.Error(err))
		}
	}
	return snap, nil
}
