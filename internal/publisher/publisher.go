// Package publisher emits normalized change events for program
// mutations onto the durable log topic. Messages are keyed by program
// id so the broker's partition hashing preserves per-program ordering,
// which the consumer relies on for upsert-then-delete sequences.
package publisher

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/sawtmedia/discovery/internal/models"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Publisher writes ChangeEvents to the change topic. Publish failures
// are logged and swallowed: the relational store remains the source of
// truth and a missed event only means the index lags until replay.
type Publisher struct {
	writer messageWriter
	log    *slog.Logger
}

// New creates a Publisher for the given brokers and topic.
func New(brokers []string, topic string, logger *slog.Logger) *Publisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
	}
	return &Publisher{writer: w, log: logger}
}

// ProgramSaved emits one upsert event with a full field snapshot.
// created distinguishes the legacy "upsert"/"update" op spellings.
func (p *Publisher) ProgramSaved(ctx context.Context, program models.Program, created bool) {
	op := models.OpUpdate
	if created {
		op = models.OpUpsert
	}
	p.publish(ctx, models.ChangeEvent{
		Op:        op,
		ProgramID: program.ID,
		Payload:   program.Snapshot(),
	})
}

// ProgramDeleted emits one delete event with an empty payload.
func (p *Publisher) ProgramDeleted(ctx context.Context, id int64) {
	p.publish(ctx, models.ChangeEvent{
		Op:        models.OpDelete,
		ProgramID: id,
		Payload:   map[string]any{},
	})
}

func (p *Publisher) publish(ctx context.Context, event models.ChangeEvent) {
	value, err := json.Marshal(event)
	if err != nil {
		p.log.Error("marshal change event",
			slog.Any("err", err),
			slog.Int64("program_id", event.ProgramID),
		)
		return
	}

	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(event.ProgramID, 10)),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(uuid.NewString())},
			{Key: "emitted_at", Value: []byte(time.Now().UTC().Format(time.RFC3339))},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Error("publish change event",
			slog.Any("err", err),
			slog.String("op", event.Op),
			slog.Int64("program_id", event.ProgramID),
		)
		return
	}

	p.log.Info("published change event",
		slog.String("op", event.Op),
		slog.Int64("program_id", event.ProgramID),
	)
}

// Close flushes pending writes and closes the underlying writer.
func (p *Publisher) Close() error {
	if w, ok := p.writer.(*kafka.Writer); ok {
		return w.Close()
	}
	return nil
}
