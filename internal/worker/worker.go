package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/icagency/secretary/common/logger"
	"github.com/icagency/secretary/internal/event"
	"github.com/icagency/secretary/internal/ingest"
	"github.com/icagency/secretary/internal/queue"
)

// Ingestor runs the ingestion pipeline over one raw payload.
type Ingestor interface {
	Ingest(ctx context.Context, payload []byte) (ingest.Outcome, error)
}

// Worker consumes the ingest stream and drives the pipeline. Malformed
// payloads are acked without retry; transient failures are requeued with
// attempt counting and dead-lettered past the attempt cap.
type Worker struct {
	consumer *queue.RedisConsumer
	ingestor Ingestor

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func New(consumer *queue.RedisConsumer, ingestor Ingestor) *Worker {
	return &Worker{
		consumer:  consumer,
		ingestor:  ingestor,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

func (w *Worker) Run(ctx context.Context) error {
	defer close(w.stoppedCh)

	slog.InfoContext(ctx, "worker started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			slog.InfoContext(ctx, "worker stopping")
			return nil
		default:
			if err := w.processOneBatch(ctx); err != nil {
				slog.ErrorContext(ctx, "batch processing error", "error", err)
				// Brief backoff on error
				time.Sleep(time.Second)
			}
		}
	}
}

func (w *Worker) Stop() {
	close(w.stopCh)
	<-w.stoppedCh
}

func (w *Worker) processOneBatch(ctx context.Context) error {
	messages, err := w.consumer.Read(ctx)
	if err != nil {
		return fmt.Errorf("reading from stream: %w", err)
	}

	for _, msg := range messages {
		if err := w.processMessageSafe(ctx, msg); err != nil {
			slog.ErrorContext(ctx, "message processing failed",
				"error", err,
				"message_id", msg.ID,
				"attempt", msg.Attempt)
			w.handleFailedMessage(ctx, msg, err)
		}
	}

	return nil
}

func (w *Worker) processMessageSafe(ctx context.Context, msg queue.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic recovered in message processing",
				"panic", r,
				"message_id", msg.ID)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.ProcessMessage(ctx, msg)
}

// ProcessMessage runs the pipeline for one delivered task. Exported so it can
// be reused by a pending-message reclaimer.
func (w *Worker) ProcessMessage(ctx context.Context, msg queue.Message) error {
	sc := logger.StartSpanFromTraceID(ctx, msg.TraceID, "worker.process_message",
		trace.WithSpanKind(trace.SpanKindConsumer))
	defer sc.End()
	ctx = sc.Context()

	slog.InfoContext(ctx, "processing ingest task",
		"message_id", msg.ID,
		"attempt", msg.Attempt)

	outcome, err := w.ingestor.Ingest(ctx, msg.Payload)
	if err != nil {
		// A malformed payload will never succeed on redelivery; ack it and
		// move on. Provider-side redelivery is the only retry it gets.
		if errors.Is(err, event.ErrMalformedEvent) {
			slog.WarnContext(ctx, "dropping malformed payload", "error", err)
			return w.consumer.Ack(ctx, msg)
		}
		sc.RecordError(err)
		return err
	}

	slog.InfoContext(ctx, "ingest task done", "outcome", string(outcome))
	return w.consumer.Ack(ctx, msg)
}

func (w *Worker) handleFailedMessage(ctx context.Context, msg queue.Message, procErr error) {
	if msg.Attempt >= w.consumer.MaxAttempts() {
		if err := w.consumer.SendDLQ(ctx, msg, procErr.Error()); err != nil {
			slog.ErrorContext(ctx, "failed to dead-letter message",
				"error", err,
				"message_id", msg.ID)
		}
		return
	}

	if err := w.consumer.Requeue(ctx, msg, procErr.Error()); err != nil {
		slog.ErrorContext(ctx, "failed to requeue message",
			"error", err,
			"message_id", msg.ID)
	}
}
