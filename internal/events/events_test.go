package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/envelopes/internal/model"
)

type fakeWriter struct {
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestNewKafka_NoBrokers(t *testing.T) {
	p := NewKafka(Config{Topic: "imports"})
	assert.IsType(t, Nop{}, p)
	assert.NoError(t, p.PublishImportCompleted(context.Background(), model.ImportLog{}))
	assert.NoError(t, p.Close())
}

func TestNewKafka_WithBrokers(t *testing.T) {
	p := NewKafka(Config{Brokers: []string{"localhost:9092"}, Topic: "imports"})
	k, ok := p.(*Kafka)
	require.True(t, ok)
	assert.Equal(t, "imports", k.topic)
}

func TestKafka_PublishImportCompleted(t *testing.T) {
	w := &fakeWriter{}
	k := &Kafka{topic: "imports", w: w}

	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	entry := model.ImportLog{
		ID: "log-1", OwnerID: "u1", Source: model.SourceSimpleFIN, Status: model.ImportSuccess,
		AccountsImported: 2, TransactionsImported: 7, CreatedAt: created,
	}
	require.NoError(t, k.PublishImportCompleted(context.Background(), entry))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "u1", string(w.msgs[0].Key))

	var got ImportCompleted
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, TypeImportCompleted, got.Type)
	assert.Equal(t, "log-1", got.LogID)
	assert.Equal(t, model.SourceSimpleFIN, got.Source)
	assert.Equal(t, Counts{Accounts: 2, Transactions: 7}, got.Counts)
	assert.True(t, got.CreatedAt.Equal(created))

	require.NoError(t, k.Close())
	assert.True(t, w.closed)
}

func TestKafka_PublishError(t *testing.T) {
	k := &Kafka{topic: "imports", w: &fakeWriter{err: errors.New("broker down")}}
	err := k.PublishImportCompleted(context.Background(), model.ImportLog{OwnerID: "u1"})
	assert.ErrorContains(t, err, "kafka publish to imports")
	assert.ErrorContains(t, err, "broker down")
}
