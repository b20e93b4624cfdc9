package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"FactorLab/pkg/logger"
)

// store is the subset of the Redis client the queue needs.
type store interface {
	Ping(ctx context.Context) *redis.StatusCmd
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	BRPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
	ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd
	ZRangeByScore(ctx context.Context, key string, opt *redis.ZRangeBy) *redis.StringSliceCmd
	ZRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
}

// RedisQueue is a list-backed work queue with delayed retries and a dead-letter list.
//
//	<prefix>:messages  pending messages (LPUSH / BRPOP)
//	<prefix>:retry     sorted set scored by retry time
//	<prefix>:dlq       messages that exhausted their retries
type RedisQueue struct {
	log       *logger.Logger
	cfg       Config
	client    store
	keyPrefix string
	now       func() time.Time
	newID     func() string

	mu       sync.RWMutex
	handlers map[string]Handler
	running  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

type Option func(*RedisQueue)

func WithKeyPrefix(prefix string) Option {
	return func(r *RedisQueue) {
		if prefix != "" {
			r.keyPrefix = prefix
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *RedisQueue) { r.now = now }
}

func NewRedisQueue(l *logger.Logger, cfg Config, client *redis.Client, opts ...Option) *RedisQueue {
	return newRedisQueue(l, cfg, client, opts...)
}

func newRedisQueue(l *logger.Logger, cfg Config, client store, opts ...Option) *RedisQueue {
	if l == nil {
		l = logger.Nop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 10 * time.Second
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = time.Second
	}
	r := &RedisQueue{
		log:       l,
		cfg:       cfg,
		client:    client,
		keyPrefix: "factorlab:queue",
		now:       time.Now,
		newID:     uuid.NewString,
		handlers:  make(map[string]Handler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register binds a handler to a message type. Register before Start.
func (r *RedisQueue) Register(msgType string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[msgType]; exists {
		r.log.Warn("queue handler already registered", logger.String("type", msgType))
		return
	}
	r.handlers[msgType] = h
}

// Enqueue pushes a message and returns its id. Producers need not Start the queue.
func (r *RedisQueue) Enqueue(ctx context.Context, msgType string, payload interface{}) (string, error) {
	msg, err := newMessage(r.newID(), msgType, payload, r.now())
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("marshal message: %w", err)
	}
	if err := r.client.LPush(ctx, r.queueKey(), b).Err(); err != nil {
		return "", fmt.Errorf("lpush: %w", err)
	}
	return msg.ID, nil
}

// Start pings Redis and launches the workers and the retry mover.
func (r *RedisQueue) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return errors.New("queue already running")
	}
	if len(r.handlers) == 0 {
		return errors.New("no queue handlers registered")
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := r.client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	ctx, r.cancel = context.WithCancel(ctx)
	r.running = true
	for i := 0; i < r.cfg.Workers; i++ {
		r.wg.Add(1)
		go r.worker(ctx)
	}
	r.wg.Add(1)
	go r.retryLoop(ctx)
	r.log.Info("redis queue started",
		logger.Int("workers", r.cfg.Workers),
		logger.String("key", r.queueKey()),
	)
	return nil
}

// Stop cancels polling and waits for in-flight messages until ctx expires.
func (r *RedisQueue) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	r.cancel()
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		r.log.Info("redis queue stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timeout waiting for queue workers: %w", ctx.Err())
	}
}

func (r *RedisQueue) worker(ctx context.Context) {
	defer r.wg.Done()
	for ctx.Err() == nil {
		r.pollOnce(ctx)
	}
}

// pollOnce pops and processes at most one message.
func (r *RedisQueue) pollOnce(ctx context.Context) {
	res, err := r.client.BRPop(ctx, r.cfg.PollTimeout, r.queueKey()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || ctx.Err() != nil {
			return
		}
		r.log.Error("queue pop failed", logger.Error(err))
		sleepCtx(ctx, time.Second)
		return
	}
	if len(res) < 2 {
		return
	}
	var msg Message
	if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
		r.log.Error("queue message undecodable", logger.Error(err))
		r.deadLetter(context.WithoutCancel(ctx), []byte(res[1]))
		return
	}
	// handlers finish even when Stop cancels polling
	r.process(context.WithoutCancel(ctx), msg)
}

func (r *RedisQueue) process(ctx context.Context, msg Message) {
	r.mu.RLock()
	h, ok := r.handlers[msg.Type]
	r.mu.RUnlock()
	if !ok {
		r.log.Error("no queue handler", logger.String("type", msg.Type), logger.String("id", msg.ID))
		msg.LastError = "no handler for " + msg.Type
		r.deadLetterMessage(ctx, msg)
		return
	}

	start := time.Now()
	err := safeHandle(ctx, h, msg.Payload)
	if err == nil {
		r.log.Debug("queue message handled",
			logger.String("id", msg.ID),
			logger.String("type", msg.Type),
			logger.Duration("elapsed_ms", time.Since(start)),
		)
		return
	}

	msg.LastError = err.Error()
	r.log.Error("queue message failed",
		logger.String("id", msg.ID),
		logger.String("type", msg.Type),
		logger.Int("attempt", msg.Attempts+1),
		logger.Error(err),
	)
	if msg.Attempts >= r.cfg.RetryLimit {
		r.deadLetterMessage(ctx, msg)
		return
	}
	msg.Attempts++
	r.scheduleRetry(ctx, msg, r.now().Add(r.cfg.RetryDelay))
}

func safeHandle(ctx context.Context, h Handler, payload []byte) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()
	return h.Handle(ctx, payload)
}

func (r *RedisQueue) scheduleRetry(ctx context.Context, msg Message, at time.Time) {
	b, err := json.Marshal(msg)
	if err != nil {
		r.log.Error("marshal retry", logger.Error(err))
		return
	}
	if err := r.client.ZAdd(ctx, r.retryKey(), redis.Z{Score: float64(at.Unix()), Member: b}).Err(); err != nil {
		r.log.Error("schedule retry failed", logger.String("id", msg.ID), logger.Error(err))
	}
}

func (r *RedisQueue) deadLetterMessage(ctx context.Context, msg Message) {
	b, err := json.Marshal(msg)
	if err != nil {
		r.log.Error("marshal dlq", logger.Error(err))
		return
	}
	r.deadLetter(ctx, b)
}

func (r *RedisQueue) deadLetter(ctx context.Context, b []byte) {
	if err := r.client.LPush(ctx, r.deadLetterKey(), b).Err(); err != nil {
		r.log.Error("dead letter failed", logger.Error(err))
	}
}

func (r *RedisQueue) retryLoop(ctx context.Context) {
	defer r.wg.Done()
	interval := r.cfg.RetryDelay / 2
	if interval > 5*time.Second || interval <= 0 {
		interval = 5 * time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.moveDueRetries(ctx)
		}
	}
}

// moveDueRetries requeues retries whose time has come. ZREM decides ownership, so two
// replicas never requeue the same message.
func (r *RedisQueue) moveDueRetries(ctx context.Context) int {
	due, err := r.client.ZRangeByScore(ctx, r.retryKey(), &redis.ZRangeBy{
		Min: "0",
		Max: strconv.FormatInt(r.now().Unix(), 10),
	}).Result()
	if err != nil {
		if ctx.Err() == nil {
			r.log.Error("fetch retries failed", logger.Error(err))
		}
		return 0
	}
	moved := 0
	for _, m := range due {
		n, err := r.client.ZRem(ctx, r.retryKey(), m).Result()
		if err != nil || n == 0 {
			continue
		}
		if err := r.client.LPush(ctx, r.queueKey(), m).Err(); err != nil {
			r.log.Error("requeue retry failed", logger.Error(err))
			continue
		}
		moved++
	}
	return moved
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (r *RedisQueue) queueKey() string      { return r.keyPrefix + ":messages" }
func (r *RedisQueue) retryKey() string      { return r.keyPrefix + ":retry" }
func (r *RedisQueue) deadLetterKey() string { return r.keyPrefix + ":dlq" }
