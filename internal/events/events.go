// Package events publishes import lifecycle events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/cleared-dev/envelopes/internal/model"
)

// TypeImportCompleted is the event type emitted after every ledger append.
const TypeImportCompleted = "import.completed"

// Counts mirrors the ledger entry's imported counts.
type Counts struct {
	Accounts     int `json:"accounts"`
	Transactions int `json:"transactions"`
	Categories   int `json:"categories"`
}

// ImportCompleted is the payload of an import.completed event.
type ImportCompleted struct {
	Type      string             `json:"type"`
	LogID     string             `json:"logId"`
	OwnerID   string             `json:"ownerId"`
	Source    model.ImportSource `json:"source"`
	Status    model.ImportStatus `json:"status"`
	Counts    Counts             `json:"counts"`
	CreatedAt time.Time          `json:"createdAt"`
}

// NewImportCompleted builds the event for a ledger entry.
func NewImportCompleted(e model.ImportLog) ImportCompleted {
	return ImportCompleted{
		Type:    TypeImportCompleted,
		LogID:   e.ID,
		OwnerID: e.OwnerID,
		Source:  e.Source,
		Status:  e.Status,
		Counts: Counts{
			Accounts:     e.AccountsImported,
			Transactions: e.TransactionsImported,
			Categories:   e.CategoriesImported,
		},
		CreatedAt: e.CreatedAt,
	}
}

// Publisher delivers import events.
type Publisher interface {
	PublishImportCompleted(ctx context.Context, e model.ImportLog) error
	Close() error
}

// Nop discards events. It is used when no brokers are configured.
type Nop struct{}

func (Nop) PublishImportCompleted(context.Context, model.ImportLog) error { return nil }
func (Nop) Close() error { return nil }

// Config holds Kafka connection parameters.
type Config struct {
	Brokers []string
	Topic   string
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Kafka publishes events to a single topic, keyed by owner so one owner's
// events stay ordered within a partition.
type Kafka struct {
	topic string
	w     messageWriter
}

// NewKafka creates a Kafka publisher. With no brokers it returns Nop.
func NewKafka(cfg Config) Publisher {
	if len(cfg.Brokers) == 0 {
		return Nop{}
	}
	return &Kafka{
		topic: cfg.Topic,
		w: &kafkago.Writer{
			Addr:         kafkago.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafkago.Hash{},
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: kafkago.RequireAll,
			WriteTimeout: 5 * time.Second,
		},
	}
}

func (k *Kafka) PublishImportCompleted(ctx context.Context, e model.ImportLog) error {
	value, err := json.Marshal(NewImportCompleted(e))
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", TypeImportCompleted, err)
	}
	msg := kafkago.Message{
		Key:   []byte(e.OwnerID),
		Value: value,
		Headers: []kafkago.Header{
			{Key: "content-type", Value: []byte("application/json")},
			{Key: "event-type", Value: []byte(TypeImportCompleted)},
		},
	}
	if err := k.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka publish to %s: %w", k.topic, err)
	}
	return nil
}

func (k *Kafka) Close() error {
	if err := k.w.Close(); err != nil {
		return fmt.Errorf("closing kafka writer for topic %s: %w", k.topic, err)
	}
	return nil
}
