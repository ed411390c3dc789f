package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/icagency/secretary/common/logger"
	"github.com/icagency/secretary/internal/event"
	"github.com/icagency/secretary/internal/model"
	"github.com/icagency/secretary/internal/store"
)

// Outcome reports what the pipeline did with a payload.
type Outcome string

const (
	OutcomeStored    Outcome = "stored"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeSkipped   Outcome = "skipped"
)

// messageEvents are the provider event kinds that carry a chat message. All
// other kinds (read receipts, delivery updates, reactions) are skipped.
var messageEvents = map[string]bool{
	"message_received": true,
	"message_created":  true,
}

// Rehoster copies attachments to durable storage, best-effort.
type Rehoster interface {
	Rehost(ctx context.Context, chatID, messageID string, atts []model.Attachment) []model.Attachment
}

type Config struct {
	// AccountID, when set, drops events from any other provider account.
	AccountID string
}

// Service is the ingestion pipeline: normalize, filter, rehost attachments,
// persist message + conversation atomically.
type Service struct {
	store    store.ConversationStore
	rehoster Rehoster
	cfg      Config
}

func NewService(st store.ConversationStore, rehoster Rehoster, cfg Config) *Service {
	return &Service{
		store:    st,
		rehoster: rehoster,
		cfg:      cfg,
	}
}

// Ingest processes one raw webhook payload. Malformed payloads return
// event.ErrMalformedEvent wrapped; callers must not retry those.
func (s *Service) Ingest(ctx context.Context, payload []byte) (Outcome, error) {
	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		return OutcomeSkipped, fmt.Errorf("%w: %v", event.ErrMalformedEvent, err)
	}

	evt, err := event.Normalize(raw)
	if err != nil {
		return OutcomeSkipped, err
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		ChatID:    logger.Ptr(evt.ChatID),
		MessageID: logger.Ptr(evt.MessageID),
		SenderID:  logger.Ptr(evt.Sender.AttendeeID),
		EventType: logger.Ptr(evt.Event),
		Component: "secretary.ingest",
	})

	if !messageEvents[evt.Event] {
		slog.DebugContext(ctx, "skipping non-message event")
		return OutcomeSkipped, nil
	}

	if s.cfg.AccountID != "" && evt.AccountID != s.cfg.AccountID {
		slog.DebugContext(ctx, "skipping event for foreign account",
			"event_account_id", evt.AccountID)
		return OutcomeSkipped, nil
	}

	attachments := evt.Attachments
	if s.rehoster != nil && len(attachments) > 0 {
		attachments = s.rehoster.Rehost(ctx, evt.ChatID, evt.MessageID, attachments)
	}

	msg := &model.Message{
		MessageID:         evt.MessageID,
		ChatID:            evt.ChatID,
		AccountID:         evt.AccountID,
		Text:              evt.Text,
		Attachments:       attachments,
		SenderID:          evt.Sender.AttendeeID,
		SenderName:        evt.Sender.AttendeeName,
		IsOwnAccount:      evt.IsSender,
		ChatName:          evt.ChatName,
		ProviderTimestamp: evt.Timestamp,
	}

	created, err := s.store.SaveMessage(ctx, msg, conversationUpdate(evt))
	if err != nil {
		return OutcomeSkipped, fmt.Errorf("saving message: %w", err)
	}
	if !created {
		slog.InfoContext(ctx, "duplicate message, ignored")
		return OutcomeDuplicate, nil
	}

	slog.InfoContext(ctx, "message ingested",
		"attachments", len(attachments),
		"is_group", isGroupChat(evt))
	return OutcomeStored, nil
}

func conversationUpdate(evt *event.MessageEvent) store.ConversationUpdate {
	ids := evt.AttendeeIDs()
	if evt.Sender.AttendeeID != "" {
		ids = append(ids, evt.Sender.AttendeeID)
	}

	names := make([]string, 0, len(evt.Attendees)+1)
	for _, a := range evt.Attendees {
		if a.AttendeeName != "" {
			names = append(names, a.AttendeeName)
		}
	}
	if evt.Sender.AttendeeName != "" && evt.Sender.AttendeeName != event.UnknownSender {
		names = append(names, evt.Sender.AttendeeName)
	}

	return store.ConversationUpdate{
		ChatName:           evt.ChatName,
		IsGroup:            isGroupChat(evt),
		ParticipantIDs:     ids,
		ParticipantNames:   names,
		LastMessagePreview: store.Preview(evt.Text),
		LastActivity:       evt.Timestamp,
	}
}

// isGroupChat detects WhatsApp groups: group chat ids start with "-", and any
// chat with more than two attendees is a group regardless of id shape.
func isGroupChat(evt *event.MessageEvent) bool {
	return strings.HasPrefix(evt.ChatID, "-") || len(evt.Attendees) > 2
}
