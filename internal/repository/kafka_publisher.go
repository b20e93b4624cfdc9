package repository

import (
	"context"

	"FactorLab/internal/domain/models"
	domrepo "FactorLab/internal/domain/repository"
	pkgkafka "FactorLab/pkg/kafka"
)

type batchProducer interface {
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
	Close() error
}

// KafkaSignalPublisher writes signals to one topic keyed by stock id, so all signals for a
// stock land on the same partition.
type KafkaSignalPublisher struct {
	producer batchProducer
	topic    string
}

var _ domrepo.SignalPublisher = (*KafkaSignalPublisher)(nil)

func NewKafkaSignalPublisher(producer *pkgkafka.Producer, topic string) *KafkaSignalPublisher {
	return newKafkaSignalPublisher(producer, topic)
}

func newKafkaSignalPublisher(p batchProducer, topic string) *KafkaSignalPublisher {
	return &KafkaSignalPublisher{producer: p, topic: topic}
}

func (p *KafkaSignalPublisher) PublishSignals(ctx context.Context, signals []*models.Signal) error {
	msgs := make([]pkgkafka.Message, 0, len(signals))
	for _, s := range signals {
		if s == nil {
			continue
		}
		msgs = append(msgs, pkgkafka.Message{Key: []byte(s.StockID), Value: s})
	}
	if len(msgs) == 0 {
		return nil
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaSignalPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
