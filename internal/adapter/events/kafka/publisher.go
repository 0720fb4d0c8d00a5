package kafka

import (
	"context"
	"encoding/json"
	"time"

	"casino-backend/internal/core/domain"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

// TransactionCompletedEvent is the wire shape published after a money
// transaction reaches a final processed state.
type TransactionCompletedEvent struct {
	TransactionID string          `json:"transaction_id"`
	PlayerID      string          `json:"player_id"`
	Type          string          `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Status        string          `json:"status"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// Publisher implements ports.EventPublisher on top of a kafka writer.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher creates a publisher for the given brokers and topic.
func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

// PublishTransactionCompleted emits the event keyed by player so all
// events for one player stay ordered within a partition.
func (p *Publisher) PublishTransactionCompleted(ctx context.Context, t *domain.Transaction) error {
	evt := TransactionCompletedEvent{
		TransactionID: t.ID.String(),
		PlayerID:      t.PlayerID.String(),
		Type:          string(t.TransactionType),
		Amount:        t.Amount,
		Currency:      t.Currency,
		Status:        string(t.Status),
		OccurredAt:    time.Now().UTC(),
	}

	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(evt.PlayerID),
		Value: data,
	})
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
