package outbox

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// KafkaProducer publishes activity events, keeping one synchronous writer per topic.
// Records are hash-balanced on the partition key, so one user's log stays on a
// single partition and the ledger sees it in order.
type KafkaProducer struct {
	brokers      []string
	batchTimeout time.Duration
	logger       *logrus.Entry

	mu      sync.Mutex
	writers map[string]*kafka.Writer
}

// NewKafkaProducer creates a KafkaProducer. A nil logger falls back to the standard logrus logger.
func NewKafkaProducer(brokers []string, logger *logrus.Entry) *KafkaProducer {
	if logger == nil {
		logger = logrus.WithField("component", "kafka-producer")
	}
	return &KafkaProducer{
		brokers:      brokers,
		batchTimeout: 50 * time.Millisecond,
		logger:       logger,
		writers:      make(map[string]*kafka.Writer),
	}
}

// WriteMessages writes msgs to topic and waits for every in-sync replica.
func (p *KafkaProducer) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	return p.writer(topic).WriteMessages(ctx, msgs...)
}

func (p *KafkaProducer) writer(topic string) *kafka.Writer {
	p.mu.Lock()
	defer p.mu.Unlock()

	if w, ok := p.writers[topic]; ok {
		return w
	}
	log := p.logger.WithField("topic", topic)
	w := &kafka.Writer{
		Addr:         kafka.TCP(p.brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Snappy,
		BatchTimeout: p.batchTimeout,
		ErrorLogger:  kafka.LoggerFunc(log.Errorf),
	}
	p.writers[topic] = w
	log.Debug("kafka writer opened")
	return w
}

// Close flushes and releases every writer.
func (p *KafkaProducer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for topic, w := range p.writers {
		if err := w.Close(); err != nil {
			p.logger.WithError(err).WithField("topic", topic).Warn("close kafka writer")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	p.writers = make(map[string]*kafka.Writer)
	return firstErr
}
