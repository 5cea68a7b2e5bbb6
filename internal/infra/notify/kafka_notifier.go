package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"shop/internal/domain/model"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

// KafkaNotifier hands the invoice to an external mailer through a topic.
// Messages are keyed by order id so all events of one order stay in one partition.
type KafkaNotifier struct {
	producer sarama.SyncProducer
	topic    string
	logger   *log.Entry
	now      func() time.Time
}

// NewKafkaNotifier dials the brokers with a synchronous producer.
func NewKafkaNotifier(brokers []string, topic string, logger *log.Entry) (*KafkaNotifier, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Producer.Compression = sarama.CompressionSnappy

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return newKafkaNotifier(producer, topic, logger), nil
}

func newKafkaNotifier(producer sarama.SyncProducer, topic string, logger *log.Entry) *KafkaNotifier {
	if logger == nil {
		logger = log.WithField("component", "invoice-kafka")
	}
	return &KafkaNotifier{
		producer: producer,
		topic:    topic,
		logger:   logger,
		now:      time.Now,
	}
}

func (n *KafkaNotifier) SendInvoice(ctx context.Context, order model.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(NewInvoiceEvent(order, n.now()))
	if err != nil {
		return fmt.Errorf("failed to marshal invoice event: %w", err)
	}

	key := strconv.FormatInt(order.ID, 10)
	msg := &sarama.ProducerMessage{
		Topic:     n.topic,
		Key:       sarama.StringEncoder(key),
		Value:     sarama.ByteEncoder(payload),
		Timestamp: n.now(),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(EventInvoiceRequested)},
		},
	}

	partition, offset, err := n.producer.SendMessage(msg)
	if err != nil {
		n.logger.WithError(err).WithFields(log.Fields{
			"topic":    n.topic,
			"order_id": order.ID,
		}).Error("failed to publish invoice request")
		return fmt.Errorf("failed to publish invoice request: %w", err)
	}

	n.logger.WithFields(log.Fields{
		"topic":     n.topic,
		"order_id":  order.ID,
		"partition": partition,
		"offset":    offset,
	}).Debug("invoice request published")
	return nil
}

func (n *KafkaNotifier) Close() error {
	if err := n.producer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka producer: %w", err)
	}
	return nil
}
