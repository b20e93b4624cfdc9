package fundamentals

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FactorLab/internal/domain/models"
	"FactorLab/pkg/cache"
)

var tradeDate = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func TestHTTPProvider_FetchesAndCaches(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/fundamentals/2330", r.URL.Path)
		assert.Equal(t, "2024-03-01", r.URL.Query().Get("date"))
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"stock_id":"2330","date":"2024-02-29","values":{"pe_ratio":14.5,"roe":"22.1","sector":"semis"}}`))
	}))
	defer srv.Close()

	mc := cache.NewMemoryCache()
	p := NewHTTPProvider(srv.URL, "secret", time.Second, WithCache(mc, time.Hour))
	ctx := context.Background()

	snap, err := p.Fundamentals(ctx, "2330", tradeDate)
	require.NoError(t, err)
	assert.Equal(t, models.FactorSnapshot{"pe_ratio": 14.5, "roe": 22.1}, snap)

	again, err := p.Fundamentals(ctx, "2330", tradeDate)
	require.NoError(t, err)
	assert.Equal(t, snap, again)
	assert.Equal(t, int32(1), hits.Load())
}

func TestHTTPProvider_NotFoundIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unknown stock", http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, "", time.Second)
	snap, err := p.Fundamentals(context.Background(), "0000", tradeDate)
	require.NoError(t, err)
	assert.Empty(t, snap)
}

func TestHTTPProvider_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"values":{"pb_ratio":2}}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, "", time.Second, WithAttempts(3))
	snap, err := p.Fundamentals(context.Background(), "2317", tradeDate)
	require.NoError(t, err)
	assert.Equal(t, 2.0, snap["pb_ratio"])
	assert.Equal(t, int32(2), hits.Load())
}

func TestHTTPProvider_ClientErrorsAreNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, "", time.Second, WithAttempts(3))
	_, err := p.Fundamentals(context.Background(), "2317", tradeDate)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Equal(t, int32(1), hits.Load())
}
