package di

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	domrepo "FactorLab/internal/domain/repository"
	domservice "FactorLab/internal/domain/service"
	"FactorLab/internal/handler/api"
	internalrepo "FactorLab/internal/repository"
	"FactorLab/internal/service/ratelimit"
	"FactorLab/internal/services/calculators"
	"FactorLab/internal/services/factor"
	"FactorLab/internal/services/fundamentals"
	"FactorLab/internal/services/strategy"
	"FactorLab/internal/usecase"
	"FactorLab/pkg/cache"
	pkgch "FactorLab/pkg/clickhouse"
	"FactorLab/pkg/config"
	xhttp "FactorLab/pkg/http"
	pkgkafka "FactorLab/pkg/kafka"
	"FactorLab/pkg/logger"
	"FactorLab/pkg/metrics"
	"FactorLab/pkg/queue"
	"FactorLab/pkg/scheduler"
	"FactorLab/pkg/server"
	"FactorLab/pkg/util"
)

const (
	schemaTimeout   = 10 * time.Second
	limiterIdleTTL  = 10 * time.Minute
	scheduledJob    = "run-active-strategies"
	schedulerPrefix = "factorlab:cron"
)

// ProvideKafkaProducer creates the producer shared by signal publishing and the log digest.
// Returns nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.Linger),
		pkgkafka.WithWriteTimeout(cfg.Kafka.Producer.WriteTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideLogger builds the application logger. Warn and error lines are digested to Kafka
// when enabled.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*logger.Logger, error) {
	l, err := logger.New(&logger.Config{
		Level:  cfg.Logger.Level,
		Format: cfg.Logger.Format,
		Output: cfg.Logger.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if cfg.Logger.Digest.Enabled && producer != nil {
		l.AttachDigest(&logger.DigestConfig{
			FlushInterval: cfg.Logger.Digest.FlushInterval,
			MaxEntries:    cfg.Logger.Digest.MaxEntries,
			Topic:         cfg.Logger.Digest.Topic,
			Publisher:     producer,
		})
	}
	return l.With(logger.String("service", "factorlab"), logger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideRedisCache connects to Redis. Returns nil when Redis is disabled.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.PoolSize/2),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, nil
}

// ProvideCache layers an in-process LRU over Redis, or serves from memory alone.
func ProvideCache(cfg *config.Config, rc *cache.RedisCache) cache.Service {
	if rc == nil {
		return cache.NewMemoryCache(
			cache.WithMemoryMaxSize(cfg.Redis.MemorySize),
			cache.WithMemoryDefaultTTL(cfg.Redis.MemoryTTL),
		)
	}
	return cache.NewLayeredCache(rc, cfg.Redis.MemorySize, cfg.Redis.MemoryTTL)
}

// ProvideClickHouseClient connects and applies the schema. Returns nil when disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), schemaTimeout)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.Schema(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

func ProvideSeriesProvider(ch *pkgch.Client, l *logger.Logger) domrepo.SeriesProvider {
	if ch == nil {
		return internalrepo.NewMemorySeriesProvider()
	}
	return internalrepo.NewCHSeriesProvider(ch, l)
}

func ProvideResultStore(ch *pkgch.Client, l *logger.Logger) domrepo.ResultStore {
	if ch == nil {
		return internalrepo.NewMemoryResultStore()
	}
	return internalrepo.NewCHResultStore(ch, l)
}

// ProvideSignalStore returns nil when signal persistence is off.
func ProvideSignalStore(cfg *config.Config, ch *pkgch.Client, l *logger.Logger) domrepo.SignalStore {
	switch {
	case !cfg.Signal.Persist:
		return nil
	case ch == nil:
		return internalrepo.NewMemorySignalStore()
	default:
		return internalrepo.NewCHSignalStore(ch, l)
	}
}

// ProvideSignalPublisher returns nil without a producer.
func ProvideSignalPublisher(cfg *config.Config, producer *pkgkafka.Producer) domrepo.SignalPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaSignalPublisher(producer, cfg.Signal.Topic)
}

// ProvideStrategyStore loads authored strategies. A missing file yields an empty store.
func ProvideStrategyStore(cfg *config.Config, l *logger.Logger) (*internalrepo.StrategyStore, error) {
	store, err := internalrepo.LoadStrategyFile(cfg.Strategies.File)
	if errors.Is(err, os.ErrNotExist) {
		l.Warn("strategy file not found, starting with no strategies", logger.String("path", cfg.Strategies.File))
		return internalrepo.NewStrategyStore(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("strategies: %w", err)
	}
	return store, nil
}

// ProvideFundamentals returns nil when the fundamentals API is disabled.
func ProvideFundamentals(cfg *config.Config, c cache.Service, l *logger.Logger) domservice.FundamentalsProvider {
	if !cfg.Fundamentals.Enabled {
		return nil
	}
	return fundamentals.NewHTTPProvider(
		cfg.Fundamentals.BaseURL,
		cfg.Fundamentals.APIKey,
		cfg.Fundamentals.Timeout,
		fundamentals.WithCache(c, cfg.Fundamentals.TTL),
		fundamentals.WithLogger(l),
	)
}

func ProvideEngine(cfg *config.Config, m domrepo.Metrics, l *logger.Logger) *factor.Engine {
	return factor.NewEngine(
		calculators.NewRegistry(),
		factor.WithWorkers(cfg.Engine.Workers),
		factor.WithMetrics(m),
		factor.WithLogger(l),
	)
}

func ProvideComputeUseCase(
	cfg *config.Config,
	engine *factor.Engine,
	series domrepo.SeriesProvider,
	results domrepo.ResultStore,
	c cache.Service,
	m domrepo.Metrics,
	l *logger.Logger,
) *usecase.ComputeFactorsUseCase {
	return usecase.NewComputeFactorsUseCase(engine, series,
		usecase.WithResultStore(results),
		usecase.WithResultCache(c, cfg.Engine.CacheTTL),
		usecase.WithLoadLimits(cfg.Engine.LoadParallel, cfg.Engine.LoadTimeout),
		usecase.WithMinLookback(cfg.Engine.LookbackDays),
		usecase.WithComputeMetrics(m),
		usecase.WithComputeLogger(l),
	)
}

func ProvideEvaluateUseCase(
	cfg *config.Config,
	compute *usecase.ComputeFactorsUseCase,
	fp domservice.FundamentalsProvider,
	signals domrepo.SignalStore,
	pub domrepo.SignalPublisher,
	strategies *internalrepo.StrategyStore,
	m domrepo.Metrics,
	l *logger.Logger,
) *usecase.EvaluateStrategyUseCase {
	opts := []usecase.EvaluateOption{
		usecase.WithSignalSinks(signals, pub),
		usecase.WithStrategies(strategies),
		usecase.WithUniverse(cfg.Scheduler.Universe),
		usecase.WithEvaluateMetrics(m),
		usecase.WithEvaluateLogger(l),
	}
	if fp != nil {
		opts = append(opts, usecase.WithFundamentals(fp))
	}
	return usecase.NewEvaluateStrategyUseCase(
		compute,
		strategy.NewConditionEvaluator(l),
		strategy.NewConfidenceCalculator(),
		strategy.NewSignalGenerator(),
		opts...,
	)
}

func ProvideJobHandler(cfg *config.Config, compute *usecase.ComputeFactorsUseCase, evaluate *usecase.EvaluateStrategyUseCase, l *logger.Logger) *usecase.JobHandler {
	return usecase.NewJobHandler(cfg.Kafka.Consumer.Topic, compute, evaluate, l)
}

// ProvideKafkaConsumer returns nil unless the job consumer is enabled.
func ProvideKafkaConsumer(cfg *config.Config, l *logger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(l,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideJobQueue returns nil unless the Redis job queue is enabled.
func ProvideJobQueue(cfg *config.Config, rc *cache.RedisCache, jobs *usecase.JobHandler, l *logger.Logger) (*queue.RedisQueue, error) {
	if !cfg.Queue.Enabled {
		return nil, nil
	}
	if rc == nil {
		return nil, errors.New("job queue requires redis")
	}
	q := queue.NewRedisQueue(l, queue.Config{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
	}, rc.Client(), queue.WithKeyPrefix(cfg.Queue.Prefix))
	q.Register(usecase.JobMessageType, jobs)
	return q, nil
}

// ProvideRateLimiter returns nil when rate limiting is off.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	if !cfg.Server.RateLimit.Enabled {
		return nil
	}
	return ratelimit.New(cfg.Server.RateLimit.Burst, cfg.Server.RateLimit.PerSecond,
		ratelimit.WithIdleEviction(limiterIdleTTL))
}

func ProvideAPIHandler(
	l *logger.Logger,
	compute *usecase.ComputeFactorsUseCase,
	evaluate *usecase.EvaluateStrategyUseCase,
	results domrepo.ResultStore,
	signals domrepo.SignalStore,
	q *queue.RedisQueue,
) *api.Handler {
	opts := []api.Option{api.WithResultReader(results)}
	if signals != nil {
		opts = append(opts, api.WithSignalReader(signals))
	}
	if q != nil {
		opts = append(opts, api.WithJobQueue(q))
	}
	return api.NewHandler(l, compute, evaluate, opts...)
}

func ProvideHTTPServer(cfg *config.Config, h *api.Handler, limiter *ratelimit.Limiter, l *logger.Logger) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithSlowRequest(cfg.Server.SlowRequest),
		xhttp.WithMetrics(cfg.Metrics.Enabled, cfg.Metrics.Path),
		xhttp.WithCORS(true),
	}
	if limiter != nil {
		opts = append(opts, xhttp.WithRateLimit(limiter))
	}
	return xhttp.NewServer(h, l, opts...)
}

// ProvideScheduler runs every active strategy on the configured cron spec. The cache lock
// keeps replicas from running the same tick twice. Returns nil when disabled.
func ProvideScheduler(cfg *config.Config, evaluate *usecase.EvaluateStrategyUseCase, c cache.Service, l *logger.Logger) (*scheduler.Scheduler, error) {
	if !cfg.Scheduler.Enabled {
		return nil, nil
	}
	s, err := scheduler.New(
		scheduler.WithTimezone(cfg.Scheduler.Timezone),
		scheduler.WithLocker(c, cfg.Scheduler.LockTTL),
		scheduler.WithLockPrefix(schedulerPrefix),
		scheduler.WithJobTimeout(cfg.Scheduler.LockTTL),
		scheduler.WithLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}
	err = s.Add(scheduledJob, cfg.Scheduler.Spec, func(ctx context.Context, now time.Time) error {
		reports, err := evaluate.RunActiveStrategies(ctx, util.LocalDay(now))
		if err != nil {
			return err
		}
		l.Info("scheduled strategies evaluated", logger.Int("strategies", len(reports)))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}
	return s, nil
}

// ProvideApp assembles the application and its shutdown order.
func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	httpServer *xhttp.Server,
	consumer *pkgkafka.Consumer,
	jobs *usecase.JobHandler,
	q *queue.RedisQueue,
	sched *scheduler.Scheduler,
	limiter *ratelimit.Limiter,
	producer *pkgkafka.Producer,
	ch *pkgch.Client,
	c cache.Service,
) *server.App {
	opts := []server.Option{server.WithCloser("cache", c.Close)}
	if ch != nil {
		opts = append(opts, server.WithCloser("clickhouse", ch.Close))
	}
	if producer != nil {
		opts = append(opts, server.WithCloser("kafka-producer", producer.Close))
	}
	if consumer != nil {
		opts = append(opts, server.WithConsumer(consumer, jobs))
	}
	if q != nil {
		opts = append(opts, server.WithJobQueue(q))
	}
	if sched != nil {
		opts = append(opts, server.WithScheduler(sched))
	}
	if limiter != nil {
		opts = append(opts, server.WithLimiter(limiter))
	}
	return server.New(cfg, l, httpServer, opts...)
}
