package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// IngestTask is one raw webhook payload waiting to be ingested. The payload
// travels opaque through the queue; normalization happens in the worker.
type IngestTask struct {
	Payload []byte
	TraceID string
	Attempt int
}

type Producer interface {
	Enqueue(ctx context.Context, task IngestTask) error
	Close() error
}

type redisProducer struct {
	client *redis.Client
	stream string
	logger *slog.Logger
}

func NewRedisProducer(client *redis.Client, stream string, logger *slog.Logger) Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &redisProducer{
		client: client,
		stream: stream,
		logger: logger,
	}
}

func (p *redisProducer) Enqueue(ctx context.Context, task IngestTask) error {
	attempt := task.Attempt
	if attempt <= 0 {
		attempt = 1
	}

	fields := map[string]any{
		"payload": string(task.Payload),
		"attempt": attempt,
	}
	if task.TraceID != "" {
		fields["trace_id"] = task.TraceID
	}

	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: fields,
	}).Err(); err != nil {
		return fmt.Errorf("enqueue ingest task: %w", err)
	}

	p.logger.DebugContext(ctx, "enqueued ingest task",
		"stream", p.stream,
		"payload_bytes", len(task.Payload),
		"attempt", attempt)
	return nil
}

func (p *redisProducer) Close() error {
	return p.client.Close()
}
