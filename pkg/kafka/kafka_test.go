package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FactorLab/pkg/logger"
)

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []kafka.Message
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		m := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error { return nil }

func (r *fakeReader) commits() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.committed)
}

type funcHandler struct {
	topic string
	fn    func([]byte) error
}

func (h funcHandler) Topic() string { return h.topic }
func (h funcHandler) Handle(_ context.Context, b []byte) error { return h.fn(b) }

func TestProducer_PublishBatchEncodes(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w)

	err := p.PublishBatch(context.Background(), "signals", []Message{
		{Key: []byte("2330"), Value: map[string]string{"signal_id": "STG_SIG_20240102_000001"}},
		{Key: []byte("2317"), Value: []byte(`{"raw":true}`)},
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 2)
	assert.Equal(t, "signals", w.msgs[0].Topic)
	assert.Equal(t, []byte("2330"), w.msgs[0].Key)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, "STG_SIG_20240102_000001", decoded["signal_id"])
	assert.Equal(t, `{"raw":true}`, string(w.msgs[1].Value))

	require.NoError(t, p.PublishMessage(context.Background(), "log-digest", []byte("x")))
	assert.Len(t, w.msgs, 3)
}

func TestProducer_WriteError(t *testing.T) {
	p := newProducer(&fakeWriter{err: errors.New("broker down")})
	err := p.Publish(context.Background(), "signals", nil, "x")
	assert.ErrorContains(t, err, "broker down")
}

func TestConsumer_RetriesThenParksOnDLQ(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{
		{Topic: "factor-jobs", Value: []byte("ok")},
		{Topic: "factor-jobs", Value: []byte("bad")},
	}}
	dlq := &fakeWriter{}

	c, err := NewConsumer(logger.Nop(),
		WithConsumerBrokers([]string{"localhost:9092"}),
		WithConsumerRetry(2, time.Millisecond, 2*time.Millisecond),
		WithConsumerDLQ("factor-jobs-dlq"),
	)
	require.NoError(t, err)
	c.newReader = func(string) messageReader { return reader }
	c.dlq = dlq

	var mu sync.Mutex
	calls := map[string]int{}
	c.RegisterHandler(funcHandler{topic: "factor-jobs", fn: func(b []byte) error {
		mu.Lock()
		defer mu.Unlock()
		calls[string(b)]++
		if string(b) == "bad" {
			return errors.New("cannot decode")
		}
		return nil
	}})

	require.NoError(t, c.Start(context.Background()))
	require.Eventually(t, func() bool { return reader.commits() == 2 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, c.Stop(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls["ok"])
	assert.Equal(t, 3, calls["bad"])
	require.Len(t, dlq.msgs, 1)
	assert.Equal(t, "factor-jobs-dlq", dlq.msgs[0].Topic)
	assert.Equal(t, "bad", string(dlq.msgs[0].Value))
}

func TestConsumer_StartWithoutHandlers(t *testing.T) {
	c, err := NewConsumer(nil, WithConsumerBrokers([]string{"localhost:9092"}))
	require.NoError(t, err)
	assert.Error(t, c.Start(context.Background()))
}

func TestBackoffWithJitter(t *testing.T) {
	for attempt := 1; attempt < 10; attempt++ {
		d := backoffWithJitter(10*time.Millisecond, 80*time.Millisecond, attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 80*time.Millisecond)
	}
}
