package store

import (
	"context"
	"errors"
	"time"

	"github.com/icagency/secretary/internal/model"
)

// ErrNotFound is returned when a conversation does not exist.
var ErrNotFound = errors.New("not found")

// PreviewLimit caps last_message_preview length.
const PreviewLimit = 100

// MediaPreview substitutes for an empty text when a message carries only media.
const MediaPreview = "[media]"

// ConversationUpdate carries the merge-only conversation fields applied
// alongside a message write. Participant slices are applied with set-union
// semantics; scalar fields are last-write-wins. Empty ChatName never clears
// an existing name, and IsGroup never transitions back to false.
type ConversationUpdate struct {
	ChatName           string
	IsGroup            bool
	ParticipantIDs     []string
	ParticipantNames   []string
	LastMessagePreview string
	LastActivity       string
}

// ConversationStore owns the Message and Conversation lifecycles. SaveMessage
// applies the message insert and the conversation merge as a single atomic
// unit; partial application is a correctness violation for the watermark
// tracker downstream.
//
// StoredAt is assigned by the store at write time, never by the caller.
type ConversationStore interface {
	// SaveMessage stores msg and merges update into its conversation,
	// flagging the conversation for analysis. A duplicate
	// (chat_id, message_id) is a no-op and returns created=false.
	SaveMessage(ctx context.Context, msg *model.Message, update ConversationUpdate) (created bool, err error)

	GetConversation(ctx context.Context, chatID string) (*model.Conversation, error)

	// ListMessages returns the full history in non-decreasing stored_at order.
	ListMessages(ctx context.Context, chatID string) ([]model.Message, error)

	// ListMessagesAfter returns messages with stored_at strictly greater than
	// after, in non-decreasing stored_at order.
	ListMessagesAfter(ctx context.Context, chatID string, after time.Time) ([]model.Message, error)

	// ListMessagesSince returns messages with stored_at >= since, ignoring the
	// watermark, in non-decreasing stored_at order.
	ListMessagesSince(ctx context.Context, chatID string, since time.Time) ([]model.Message, error)

	// ListNeedingAnalysis returns every conversation whose needs_analysis flag
	// is set.
	ListNeedingAnalysis(ctx context.Context) ([]model.Conversation, error)

	// MarkAnalyzed advances the watermark to the given cut and clears the
	// needs_analysis flag.
	MarkAnalyzed(ctx context.Context, chatID string, watermark time.Time) error
}

// Preview derives the truncated last_message_preview for a message text.
func Preview(text string) string {
	if text == "" {
		return MediaPreview
	}
	runes := []rune(text)
	if len(runes) > PreviewLimit {
		return string(runes[:PreviewLimit])
	}
	return text
}
