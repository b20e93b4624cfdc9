package server

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FactorLab/internal/service/ratelimit"
	"FactorLab/pkg/config"
	xhttp "FactorLab/pkg/http"
	"FactorLab/pkg/scheduler"
)

func TestApp_RunAndShutdownOrder(t *testing.T) {
	cfg, err := config.Parse([]byte("environment: test\nserver:\n  shutdown_timeout: 2s\n"))
	require.NoError(t, err)

	srv := xhttp.NewServer(nil, nil, xhttp.WithHost("127.0.0.1"), xhttp.WithPort(0), xhttp.WithMetrics(false, ""))
	sched, err := scheduler.New()
	require.NoError(t, err)

	var order []string
	app := New(cfg, nil, srv,
		WithScheduler(sched),
		WithLimiter(ratelimit.New(5, 1)),
		WithCloser("clickhouse", func() error { order = append(order, "clickhouse"); return nil }),
		WithCloser("producer", func() error { order = append(order, "producer"); return errors.New("flush failed") }),
		WithCloser("nil", nil),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "flush failed")
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
	assert.Equal(t, []string{"producer", "clickhouse"}, order)
}

func TestApp_ConsumerWithoutHandlerIsIgnored(t *testing.T) {
	cfg, err := config.Parse([]byte("environment: test\n"))
	require.NoError(t, err)
	app := New(cfg, nil, xhttp.NewServer(nil, nil), WithConsumer(nil, nil))
	assert.Nil(t, app.consumer)
}
