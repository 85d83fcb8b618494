package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"MacroPull/internal/domain/models"
	"MacroPull/internal/domain/repository"
	pkgkafka "MacroPull/pkg/kafka"
	applogger "MacroPull/pkg/logger"
)

const fetchEventColumns = "ts, event_id, provider, dataset, country, source_used, outcome, points, attempts, duration_ms, error"

// FetchEventSchema creates the fetch journal table.
func FetchEventSchema(table string) []string {
	return []string{fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            ts          DateTime64(3, 'UTC'),
            event_id    String,
            provider    LowCardinality(String),
            dataset     String,
            country     LowCardinality(String),
            source_used LowCardinality(String),
            outcome     LowCardinality(String),
            points      UInt32,
            attempts    UInt8,
            duration_ms UInt32,
            error       String
        ) ENGINE = MergeTree
        PARTITION BY toYYYYMM(ts)
        ORDER BY (provider, dataset, ts)
        TTL toDateTime(ts) + INTERVAL 90 DAY`, table)}
}

// ClickHouseEventStorage journals fetch events to ClickHouse.
type ClickHouseEventStorage struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewClickHouseEventStorage(db *sql.DB, table string, l *applogger.Logger) repository.EventStorage {
	if l == nil {
		l = applogger.NewNop()
	}
	return &ClickHouseEventStorage{db: db, table: table, l: l}
}

func (s *ClickHouseEventStorage) Init(ctx context.Context) error {
	for _, stmt := range FetchEventSchema(s.table) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init %s: %w", s.table, err)
		}
	}
	return nil
}

func (s *ClickHouseEventStorage) Store(ctx context.Context, e *models.FetchEvent) error {
	return s.StoreBatch(ctx, []*models.FetchEvent{e})
}

func (s *ClickHouseEventStorage) StoreBatch(ctx context.Context, events []*models.FetchEvent) error {
	const chunkSize = 1000
	for start := 0; start < len(events); start += chunkSize {
		end := min(start+chunkSize, len(events))
		q, args := insertEvents(s.table, events[start:end])
		if len(args) == 0 {
			continue
		}
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.l.Error("clickhouse insert fetch events",
				applogger.String("table", s.table),
				applogger.Int("rows", end-start),
				applogger.Error(err))
			return fmt.Errorf("insert fetch events: %w", err)
		}
	}
	return nil
}

// insertEvents builds a multi-row INSERT, skipping nil or unidentified events.
func insertEvents(table string, events []*models.FetchEvent) (string, []interface{}) {
	values := make([]string, 0, len(events))
	args := make([]interface{}, 0, len(events)*11)
	for _, e := range events {
		if e == nil || e.ID == "" {
			continue
		}
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			e.Timestamp.UTC(),
			e.ID,
			e.Provider,
			e.Dataset,
			e.Country,
			e.SourceUsed,
			e.Outcome,
			uint32(e.Points),
			uint8(e.Attempts),
			uint32(e.DurationMs),
			e.Error,
		)
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", table, fetchEventColumns, strings.Join(values, ","))
	return q, args
}

func (s *ClickHouseEventStorage) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op; the pool belongs to pkg/clickhouse.Client.
func (s *ClickHouseEventStorage) Close() error { return nil }

// BatchProducer is what KafkaEventPublisher needs from pkg/kafka.Producer.
type BatchProducer interface {
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
	Close() error
}

// KafkaEventPublisher publishes fetch events keyed by provider.
type KafkaEventPublisher struct {
	producer BatchProducer
	topic    string
}

func NewKafkaEventPublisher(producer BatchProducer, topic string) repository.EventPublisher {
	return &KafkaEventPublisher{producer: producer, topic: topic}
}

func (p *KafkaEventPublisher) Publish(ctx context.Context, e *models.FetchEvent) error {
	return p.PublishBatch(ctx, []*models.FetchEvent{e})
}

func (p *KafkaEventPublisher) PublishBatch(ctx context.Context, events []*models.FetchEvent) error {
	msgs := make([]pkgkafka.Message, 0, len(events))
	for _, e := range events {
		if e == nil {
			continue
		}
		msgs = append(msgs, pkgkafka.Message{Key: []byte(e.Provider), Value: e})
	}
	if len(msgs) == 0 {
		return nil
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaEventPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
