// Package broadcaster drains the change-event outbox into Kafka.
package broadcaster

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"conctree/api/events"
	"conctree/infra/kafka"
	"conctree/infra/logutil"
	"conctree/infra/outbox"
)

// Outbox is the part of outbox.Outbox the broadcaster needs.
type Outbox interface {
	ScanPending(limit int, fn func(*outbox.Record) error) error
	MarkSent(*outbox.Record) error
	MarkFailed(*outbox.Record) error
	MarkAcked(seq uint64) error
}

type Broadcaster struct {
	box      Outbox
	pub      kafka.Publisher
	interval time.Duration
	batch    int
	logger   *zap.Logger

	published prometheus.Counter
	failed    prometheus.Counter
}

func New(box Outbox, pub kafka.Publisher, interval time.Duration, batch int, reg prometheus.Registerer, logger *zap.Logger) *Broadcaster {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	if batch <= 0 {
		batch = 128
	}
	f := promauto.With(reg)
	return &Broadcaster{
		box:      box,
		pub:      pub,
		interval: interval,
		batch:    batch,
		logger:   logutil.Adjust(logger, "broadcaster"),
		published: f.NewCounter(prometheus.CounterOpts{
			Namespace: "conctree",
			Subsystem: "broadcaster",
			Name:      "published_total",
			Help:      "Events acknowledged by the broker.",
		}),
		failed: f.NewCounter(prometheus.CounterOpts{
			Namespace: "conctree",
			Subsystem: "broadcaster",
			Name:      "failed_total",
			Help:      "Publish attempts that failed and will be retried.",
		}),
	}
}

// ------------------------------------------------
// LOOP
// ------------------------------------------------

// Run flushes the outbox every interval until ctx is done.
func (b *Broadcaster) Run(ctx context.Context) {
	b.logger.Info("broadcaster started", zap.Duration("interval", b.interval))
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("broadcaster stopped")
			return
		case <-ticker.C:
			if _, err := b.Flush(ctx); err != nil {
				b.logger.Warn("flush failed", zap.Error(err))
			}
		}
	}
}

// ------------------------------------------------
// FLUSH
// ------------------------------------------------

// Flush publishes pending events in sequence order and returns how many
// were acknowledged. It stops at the first failure so later events are
// never published ahead of an earlier one.
func (b *Broadcaster) Flush(ctx context.Context) (int, error) {
	sent := 0
	var pubErr error
	err := b.box.ScanPending(b.batch, func(rec *outbox.Record) error {
		if pubErr != nil {
			return nil
		}
		if err := b.box.MarkSent(rec); err != nil {
			return err
		}

		var key []byte
		if ev, err := events.Decode(rec.Payload); err == nil {
			key = events.PartitionKey(ev.Key)
		} else {
			b.logger.Warn("undecodable event", zap.Uint64("seq", rec.Seq), zap.Error(err))
		}

		if err := b.pub.Publish(ctx, key, rec.Payload); err != nil {
			b.failed.Inc()
			pubErr = err
			b.logger.Debug("publish failed", zap.Uint64("seq", rec.Seq), zap.Uint32("retries", rec.Retries), zap.Error(err))
			return b.box.MarkFailed(rec)
		}
		if err := b.box.MarkAcked(rec.Seq); err != nil {
			return err
		}
		b.published.Inc()
		sent++
		return nil
	})
	if err != nil {
		return sent, err
	}
	return sent, pubErr
}

// ------------------------------------------------
// SHUTDOWN
// ------------------------------------------------

func (b *Broadcaster) Close() error {
	return b.pub.Close()
}
