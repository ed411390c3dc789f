package history

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/icagency/secretary/internal/model"
	"github.com/icagency/secretary/internal/store"
)

// Tracker computes, per conversation, the boundary between already-analyzed
// and new messages. Reading never moves the watermark; MarkAnalyzed is the
// only operation that advances it.
//
// The watermark comparison is by stored_at value with a strict cut: a message
// whose stored_at equals the watermark counts as analyzed. A message inserted
// out of order below the current watermark therefore stays excluded.
type Tracker struct {
	store store.ConversationStore
	now   func() time.Time
}

func NewTracker(s store.ConversationStore) *Tracker {
	return &Tracker{store: s, now: time.Now}
}

// UnanalyzedText returns the conversation's messages past the watermark as
// "[date] sender: text" lines, oldest first. An empty string means nothing to
// do, not an error.
func (t *Tracker) UnanalyzedText(ctx context.Context, chatID string) (string, error) {
	conv, err := t.store.GetConversation(ctx, chatID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("fetching conversation: %w", err)
	}

	var messages []model.Message
	if conv.LastAnalyzedAt == nil {
		messages, err = t.store.ListMessages(ctx, chatID)
	} else {
		messages, err = t.store.ListMessagesAfter(ctx, chatID, *conv.LastAnalyzedAt)
	}
	if err != nil {
		return "", fmt.Errorf("listing messages: %w", err)
	}

	return FormatTranscript(messages), nil
}

// WindowText returns messages from the rolling lookback window, ignoring the
// watermark entirely.
func (t *Tracker) WindowText(ctx context.Context, chatID string, since time.Duration) (string, error) {
	messages, err := t.store.ListMessagesSince(ctx, chatID, t.now().UTC().Add(-since))
	if err != nil {
		return "", fmt.Errorf("listing window messages: %w", err)
	}
	return FormatTranscript(messages), nil
}

// MarkAnalyzed advances the watermark to the max stored_at currently in the
// conversation (now, when the conversation is empty) and clears the
// needs_analysis flag.
func (t *Tracker) MarkAnalyzed(ctx context.Context, chatID string) error {
	messages, err := t.store.ListMessages(ctx, chatID)
	if err != nil {
		return fmt.Errorf("listing messages: %w", err)
	}

	cut := t.now().UTC()
	if len(messages) > 0 {
		cut = messages[len(messages)-1].StoredAt
	}

	if err := t.store.MarkAnalyzed(ctx, chatID, cut); err != nil {
		return fmt.Errorf("advancing watermark: %w", err)
	}
	return nil
}

// FormatTranscript renders messages as "[date] sender: text" lines, one per
// message, preserving the given (stored_at) order.
func FormatTranscript(messages []model.Message) string {
	if len(messages) == 0 {
		return ""
	}

	var b strings.Builder
	for i, msg := range messages {
		if i > 0 {
			b.WriteByte('\n')
		}
		date := msg.ProviderTimestamp
		if date == "" {
			date = msg.StoredAt.UTC().Format(time.RFC3339)
		}
		sender := msg.SenderName
		if sender == "" {
			sender = msg.SenderID
		}
		fmt.Fprintf(&b, "[%s] %s: %s", date, sender, msg.Text)
	}
	return b.String()
}
