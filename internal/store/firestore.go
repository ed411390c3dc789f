package store

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/icagency/secretary/internal/model"
)

const (
	chatsCollection    = "chats"
	messagesCollection = "messages"
)

// FirestoreStore persists conversations in a `chats` collection with a nested
// `messages` sub-collection per chat. The Firestore transaction is the sole
// consistency mechanism: no application-level locks are taken.
type FirestoreStore struct {
	client *firestore.Client
}

func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

func (s *FirestoreStore) chatRef(chatID string) *firestore.DocumentRef {
	return s.client.Collection(chatsCollection).Doc(chatID)
}

func (s *FirestoreStore) messageRef(chatID, messageID string) *firestore.DocumentRef {
	return s.chatRef(chatID).Collection(messagesCollection).Doc(messageID)
}

// SaveMessage runs a transaction: read the message ref, no-op when it already
// exists, otherwise create it and merge the conversation update. stored_at is
// the server's timestamp, so ordering is robust to provider clock skew.
func (s *FirestoreStore) SaveMessage(ctx context.Context, msg *model.Message, update ConversationUpdate) (bool, error) {
	created := false

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		msgRef := s.messageRef(msg.ChatID, msg.MessageID)

		snap, err := tx.Get(msgRef)
		if err != nil && status.Code(err) != codes.NotFound {
			return fmt.Errorf("reading message: %w", err)
		}
		if snap != nil && snap.Exists() {
			// Upstream redelivery; the first write is authoritative.
			return nil
		}

		msgDoc := map[string]any{
			"message_id":         msg.MessageID,
			"chat_id":            msg.ChatID,
			"account_id":         msg.AccountID,
			"text":               msg.Text,
			"attachments":        msg.Attachments,
			"sender_id":          msg.SenderID,
			"sender_name":        msg.SenderName,
			"is_own_account":     msg.IsOwnAccount,
			"chat_name":          msg.ChatName,
			"provider_timestamp": msg.ProviderTimestamp,
			"stored_at":          firestore.ServerTimestamp,
		}
		if err := tx.Create(msgRef, msgDoc); err != nil {
			return fmt.Errorf("creating message: %w", err)
		}

		chatDoc := map[string]any{
			"chat_id":              msg.ChatID,
			"last_message_preview": update.LastMessagePreview,
			"last_activity":        update.LastActivity,
			"participant_ids":      firestore.ArrayUnion(toAnySlice(update.ParticipantIDs)...),
			"participant_names":    firestore.ArrayUnion(toAnySlice(update.ParticipantNames)...),
			"needs_analysis":       true,
			"updated_at":           firestore.ServerTimestamp,
		}
		if update.ChatName != "" {
			chatDoc["chat_name"] = update.ChatName
		}
		if update.IsGroup {
			chatDoc["is_group"] = true
		}
		// MergeAll keeps fields not touched by this write (watermark, flags
		// from other writers) intact.
		if err := tx.Set(s.chatRef(msg.ChatID), chatDoc, firestore.MergeAll); err != nil {
			return fmt.Errorf("merging conversation: %w", err)
		}

		created = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

func (s *FirestoreStore) GetConversation(ctx context.Context, chatID string) (*model.Conversation, error) {
	snap, err := s.chatRef(chatID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting conversation: %w", err)
	}

	var conv model.Conversation
	if err := snap.DataTo(&conv); err != nil {
		return nil, fmt.Errorf("decoding conversation: %w", err)
	}
	conv.ChatID = chatID
	return &conv, nil
}

func (s *FirestoreStore) ListMessages(ctx context.Context, chatID string) ([]model.Message, error) {
	query := s.chatRef(chatID).Collection(messagesCollection).
		OrderBy("stored_at", firestore.Asc)
	return s.collectMessages(ctx, query)
}

func (s *FirestoreStore) ListMessagesAfter(ctx context.Context, chatID string, after time.Time) ([]model.Message, error) {
	query := s.chatRef(chatID).Collection(messagesCollection).
		Where("stored_at", ">", after).
		OrderBy("stored_at", firestore.Asc)
	return s.collectMessages(ctx, query)
}

func (s *FirestoreStore) ListMessagesSince(ctx context.Context, chatID string, since time.Time) ([]model.Message, error) {
	query := s.chatRef(chatID).Collection(messagesCollection).
		Where("stored_at", ">=", since).
		OrderBy("stored_at", firestore.Asc)
	return s.collectMessages(ctx, query)
}

func (s *FirestoreStore) collectMessages(ctx context.Context, query firestore.Query) ([]model.Message, error) {
	snaps, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}

	messages := make([]model.Message, 0, len(snaps))
	for _, snap := range snaps {
		var msg model.Message
		if err := snap.DataTo(&msg); err != nil {
			return nil, fmt.Errorf("decoding message %s: %w", snap.Ref.ID, err)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (s *FirestoreStore) ListNeedingAnalysis(ctx context.Context) ([]model.Conversation, error) {
	snaps, err := s.client.Collection(chatsCollection).
		Where("needs_analysis", "==", true).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("listing flagged conversations: %w", err)
	}

	conversations := make([]model.Conversation, 0, len(snaps))
	for _, snap := range snaps {
		var conv model.Conversation
		if err := snap.DataTo(&conv); err != nil {
			return nil, fmt.Errorf("decoding conversation %s: %w", snap.Ref.ID, err)
		}
		conv.ChatID = snap.Ref.ID
		conversations = append(conversations, conv)
	}
	return conversations, nil
}

func (s *FirestoreStore) MarkAnalyzed(ctx context.Context, chatID string, watermark time.Time) error {
	_, err := s.chatRef(chatID).Set(ctx, map[string]any{
		"needs_analysis":   false,
		"last_analyzed_at": watermark,
		"updated_at":       firestore.ServerTimestamp,
	}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("marking conversation analyzed: %w", err)
	}
	return nil
}

func toAnySlice(values []string) []any {
	result := make([]any, 0, len(values))
	for _, v := range values {
		if v != "" {
			result = append(result, v)
		}
	}
	return result
}
