package webhook

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"github.com/icagency/secretary/internal/queue"
)

// UnipileWebhookHandler accepts Unipile message events and enqueues the raw
// payload for the ingest worker.
//
// The response is always HTTP 200: the provider disables webhooks that answer
// with errors, so every internal failure is swallowed at this boundary and
// observable only through logs.
type UnipileWebhookHandler struct {
	producer queue.Producer
}

func NewUnipileWebhookHandler(producer queue.Producer) *UnipileWebhookHandler {
	return &UnipileWebhookHandler{producer: producer}
}

func (h *UnipileWebhookHandler) HandleEvent(c *gin.Context) {
	ctx := c.Request.Context()

	body, err := io.ReadAll(c.Request.Body)
	if err != nil || len(body) == 0 {
		slog.WarnContext(ctx, "webhook body unreadable or empty", "error", err)
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	task := queue.IngestTask{Payload: body}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		task.TraceID = sc.TraceID().String()
	}

	if err := h.producer.Enqueue(ctx, task); err != nil {
		slog.ErrorContext(ctx, "failed to enqueue webhook payload",
			"error", err,
			"payload_bytes", len(body))
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	slog.InfoContext(ctx, "webhook payload enqueued", "payload_bytes", len(body))
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
