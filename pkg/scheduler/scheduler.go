package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"FactorLab/pkg/logger"
)

// ErrUnknownJob is returned by RunNow for names that were never added.
var ErrUnknownJob = errors.New("unknown job")

// Job is one scheduled unit of work. now is the fire time in the scheduler's location.
type Job func(ctx context.Context, now time.Time) error

// Locker guards a job across replicas. pkg/cache services satisfy it.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// Scheduler runs named jobs on standard five-field cron specs.
type Scheduler struct {
	cron     *cron.Cron
	loc      *time.Location
	locker   Locker
	lockTTL  time.Duration
	timeout  time.Duration
	prefix   string
	log      *logger.Logger
	now      func() time.Time
	base     context.Context
	cancel   context.CancelFunc
	mu       sync.Mutex
	jobs     map[string]Job
	entries  map[string]cron.EntryID
	inFlight sync.WaitGroup
}

type Option func(*Scheduler) error

// WithTimezone evaluates specs in the named IANA location.
func WithTimezone(name string) Option {
	return func(s *Scheduler) error {
		if name == "" {
			return nil
		}
		loc, err := time.LoadLocation(name)
		if err != nil {
			return fmt.Errorf("scheduler timezone: %w", err)
		}
		s.loc = loc
		return nil
	}
}

// WithLocker makes each run take a lock named "<prefix>:<job>" for ttl.
func WithLocker(l Locker, ttl time.Duration) Option {
	return func(s *Scheduler) error {
		s.locker = l
		if ttl > 0 {
			s.lockTTL = ttl
		}
		return nil
	}
}

func WithLockPrefix(prefix string) Option {
	return func(s *Scheduler) error {
		if prefix != "" {
			s.prefix = prefix
		}
		return nil
	}
}

// WithJobTimeout bounds a single run.
func WithJobTimeout(d time.Duration) Option {
	return func(s *Scheduler) error {
		s.timeout = d
		return nil
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(s *Scheduler) error {
		if l != nil {
			s.log = l
		}
		return nil
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) error {
		s.now = now
		return nil
	}
}

func New(opts ...Option) (*Scheduler, error) {
	s := &Scheduler{
		loc:     time.Local,
		lockTTL: 10 * time.Minute,
		prefix:  "scheduler",
		log:     logger.Nop(),
		now:     time.Now,
		jobs:    make(map[string]Job),
		entries: make(map[string]cron.EntryID),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.base, s.cancel = context.WithCancel(context.Background())
	cl := cronLogger{s.log}
	s.cron = cron.New(
		cron.WithLocation(s.loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	return s, nil
}

// Add registers job under name. spec is a standard cron line or a descriptor such as
// "@daily" or "@every 1h".
func (s *Scheduler) Add(name, spec string, job Job) error {
	if name == "" || job == nil {
		return errors.New("scheduler: name and job are required")
	}
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return fmt.Errorf("scheduler: job %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.jobs[name]; dup {
		return fmt.Errorf("scheduler: job %s already added", name)
	}
	s.jobs[name] = job
	s.entries[name] = s.cron.Schedule(sched, cron.FuncJob(func() {
		_ = s.run(s.base, name, job)
	}))
	s.log.Info("job scheduled", logger.String("job", name), logger.String("spec", spec), logger.String("tz", s.loc.String()))
	return nil
}

// Next returns the next fire time of a job, zero before Start.
func (s *Scheduler) Next(name string) time.Time {
	s.mu.Lock()
	id, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}
	}
	return s.cron.Entry(id).Next
}

// RunNow runs a job immediately, honouring the lock.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.run(ctx, name, job)
}

func (s *Scheduler) run(ctx context.Context, name string, job Job) (err error) {
	s.inFlight.Add(1)
	defer s.inFlight.Done()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	if s.locker != nil {
		key := s.prefix + ":" + name
		ok, lerr := s.locker.TryLock(ctx, key, s.lockTTL)
		if lerr != nil {
			s.log.Warn("job lock failed", logger.String("job", name), logger.Error(lerr))
			return lerr
		}
		if !ok {
			s.log.Info("job skipped, lock held elsewhere", logger.String("job", name))
			return nil
		}
		defer func() {
			if uerr := s.locker.Unlock(context.WithoutCancel(ctx), key); uerr != nil {
				s.log.Warn("job unlock failed", logger.String("job", name), logger.Error(uerr))
			}
		}()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", name, r)
			s.log.Error("job panicked", logger.String("job", name), logger.Any("panic", r))
		}
	}()

	start := s.now()
	err = job(ctx, start.In(s.loc))
	fields := []logger.Field{logger.String("job", name), logger.Duration("elapsed_ms", s.now().Sub(start))}
	if err != nil {
		s.log.Error("job failed", append(fields, logger.Error(err))...)
		return err
	}
	s.log.Info("job finished", fields...)
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs until ctx expires. Running jobs see
// their context cancelled only when ctx expires first.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	wait := make(chan struct{})
	go func() {
		<-done.Done()
		s.inFlight.Wait()
		close(wait)
	}()
	select {
	case <-wait:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		return ctx.Err()
	}
}

// cronLogger adapts the application logger to cron.Logger.
type cronLogger struct{ l *logger.Logger }

func (c cronLogger) Info(msg string, kv ...interface{}) {
	c.l.Debug("cron: "+msg, pairs(kv)...)
}

func (c cronLogger) Error(err error, msg string, kv ...interface{}) {
	c.l.Error("cron: "+msg, append(pairs(kv), logger.Error(err))...)
}

func pairs(kv []interface{}) []logger.Field {
	out := make([]logger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, logger.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return out
}
