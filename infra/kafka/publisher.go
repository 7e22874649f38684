// Package kafka publishes change events to Kafka. Two clients are
// supported behind Publisher: segmentio/kafka-go and IBM/sarama.
package kafka

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	kafkago "github.com/segmentio/kafka-go"

	"conctree/infra/config"
)

// Publisher delivers one message synchronously. A nil error means the
// broker acknowledged it.
type Publisher interface {
	Publish(ctx context.Context, key, value []byte) error
	Close() error
}

// NewPublisher builds the client selected by cfg.Client.
func NewPublisher(cfg config.KafkaConfig) (Publisher, error) {
	switch cfg.Client {
	case config.ClientKafkaGo, "":
		return NewWriterPublisher(cfg.Brokers, cfg.Topic), nil
	case config.ClientSarama:
		p, err := DialSarama(cfg.Brokers, cfg.Topic)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	return nil, errors.Newf("kafka: unknown client %q", cfg.Client)
}

// WriterPublisher is the kafka-go client. Messages with the same key land
// on the same partition, so events for one tree key stay ordered.
type WriterPublisher struct {
	w *kafkago.Writer
}

func NewWriterPublisher(brokers []string, topic string) *WriterPublisher {
	return &WriterPublisher{w: &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		MaxAttempts:  5,
		BatchSize:    1,
		WriteTimeout: 5 * time.Second,
	}}
}

func (p *WriterPublisher) Publish(ctx context.Context, key, value []byte) error {
	msg := kafkago.Message{Key: key, Value: value}
	return errors.Wrapf(p.w.WriteMessages(ctx, msg), "kafka-go publish to %s", p.w.Topic)
}

func (p *WriterPublisher) Close() error {
	return p.w.Close()
}
