package server

import (
	"context"
	"errors"
	"time"

	"FactorLab/internal/service/ratelimit"
	"FactorLab/pkg/config"
	xhttp "FactorLab/pkg/http"
	pkgkafka "FactorLab/pkg/kafka"
	applogger "FactorLab/pkg/logger"
	"FactorLab/pkg/queue"
	"FactorLab/pkg/scheduler"
)

const sweepInterval = time.Minute

type closer struct {
	name string
	fn   func() error
}

// App owns every long-running component and their shutdown order.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	httpServer *xhttp.Server
	consumer   *pkgkafka.Consumer
	jobQueue   *queue.RedisQueue
	scheduler  *scheduler.Scheduler
	limiter    *ratelimit.Limiter
	closers    []closer
}

type Option func(*App)

// WithConsumer registers h on the consumer and runs it with the app.
func WithConsumer(c *pkgkafka.Consumer, h pkgkafka.MessageHandler) Option {
	return func(a *App) {
		if c == nil || h == nil {
			return
		}
		c.RegisterHandler(h)
		a.consumer = c
	}
}

// WithJobQueue runs a Redis job queue with the app. Handlers must already be registered.
func WithJobQueue(q *queue.RedisQueue) Option {
	return func(a *App) { a.jobQueue = q }
}

func WithScheduler(s *scheduler.Scheduler) Option {
	return func(a *App) { a.scheduler = s }
}

// WithLimiter sweeps idle rate-limit buckets while the app runs.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(a *App) { a.limiter = l }
}

// WithCloser adds a resource closed after every component stopped. Closers run in
// reverse registration order.
func WithCloser(name string, fn func() error) Option {
	return func(a *App) {
		if fn != nil {
			a.closers = append(a.closers, closer{name: name, fn: fn})
		}
	}
}

func New(cfg *config.Config, l *applogger.Logger, httpServer *xhttp.Server, opts ...Option) *App {
	if l == nil {
		l = applogger.Nop()
	}
	a := &App{cfg: cfg, log: l, httpServer: httpServer}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run starts all components and blocks until ctx is cancelled or the HTTP server fails.
func (a *App) Run(ctx context.Context) error {
	if a.consumer != nil {
		if err := a.consumer.Start(ctx); err != nil {
			return a.abort(err, "kafka consumer start failed")
		}
	}
	if a.jobQueue != nil {
		if err := a.jobQueue.Start(ctx); err != nil {
			return a.abort(err, "job queue start failed")
		}
	}
	if a.scheduler != nil {
		a.scheduler.Start()
		a.log.Info("scheduler started")
	}
	if a.limiter != nil {
		go a.sweep(ctx)
	}
	if err := a.httpServer.Start(); err != nil {
		return a.abort(err, "http server start failed")
	}
	a.log.Info("factorlab started",
		applogger.String("env", a.cfg.Environment),
		applogger.String("addr", a.httpServer.Addr()),
	)

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
	case err := <-a.httpServer.Errors():
		a.log.Error("http server failed", applogger.Error(err))
		runErr = err
	}
	return errors.Join(runErr, a.Shutdown())
}

func (a *App) abort(err error, msg string) error {
	a.log.Error(msg, applogger.Error(err))
	return errors.Join(err, a.Shutdown())
}

func (a *App) sweep(ctx context.Context) {
	t := time.NewTicker(sweepInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := a.limiter.Sweep(); n > 0 {
				a.log.Debug("rate limit buckets evicted", applogger.Int("evicted", n))
			}
		}
	}
}

// Shutdown stops intake first, then drains workers, then closes infrastructure.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
		errs = append(errs, err)
	}
	if a.scheduler != nil {
		if err := a.scheduler.Stop(ctx); err != nil {
			a.log.Warn("scheduler stop error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	if a.jobQueue != nil {
		if err := a.jobQueue.Stop(ctx); err != nil {
			a.log.Warn("job queue stop error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(); err != nil {
			a.log.Warn("close error", applogger.String("resource", c.name), applogger.Error(err))
			errs = append(errs, err)
		}
	}
	a.log.Info("shutdown complete")
	a.log.Close()
	return errors.Join(errs...)
}
