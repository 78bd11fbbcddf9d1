// Package audit forwards committed movement entries to Kafka as an
// append-only audit trail. Publishing is best-effort and asynchronous;
// the mutation path never waits on a broker.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"

	"github.com/quangtdn/storeledger/internal/core/domain"
	"github.com/quangtdn/storeledger/internal/logging"
)

type movementRecord struct {
	ID            string    `json:"id"`
	StoreID       string    `json:"storeId"`
	ProductID     string    `json:"productId"`
	Delta         int       `json:"delta"`
	Kind          string    `json:"kind"`
	ReferenceID   string    `json:"referenceId,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	CorrelationID string    `json:"correlationId,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// KafkaPublisher writes movement entries to one topic, keyed by the
// (store, product) pair so per-key order survives partitioning.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.Hash{},
			Async:    true,
			Completion: func(messages []kafka.Message, err error) {
				if err != nil {
					logging.Warn().Err(err).Int("messages", len(messages)).Msg("kafka audit delivery failed")
				}
			},
		},
	}
}

func (p *KafkaPublisher) PublishMovement(ctx context.Context, entry domain.MovementEntry) error {
	value, err := json.Marshal(movementRecord{
		ID:            entry.ID,
		StoreID:       entry.StoreID,
		ProductID:     entry.ProductID,
		Delta:         entry.Delta,
		Kind:          string(entry.Kind),
		ReferenceID:   entry.ReferenceID,
		Notes:         entry.Notes,
		CorrelationID: entry.CorrelationID,
		Timestamp:     entry.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("marshal movement: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(entry.StoreID + ":" + entry.ProductID),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("write movement: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
