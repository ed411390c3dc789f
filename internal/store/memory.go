package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/icagency/secretary/internal/model"
)

// MemoryStore is an in-process ConversationStore with the same semantics as
// the Firestore implementation. It backs tests and local development runs.
type MemoryStore struct {
	mu            sync.Mutex
	conversations map[string]*model.Conversation
	messages      map[string]map[string]model.Message // chatID -> messageID -> message
	lastStoredAt  time.Time

	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]*model.Conversation),
		messages:      make(map[string]map[string]model.Message),
		now:           time.Now,
	}
}

// SetClock overrides the stored_at clock. Test hook.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// nextStoredAt assigns a strictly increasing server timestamp per store.
func (s *MemoryStore) nextStoredAt() time.Time {
	t := s.now().UTC()
	if !t.After(s.lastStoredAt) {
		t = s.lastStoredAt.Add(time.Nanosecond)
	}
	s.lastStoredAt = t
	return t
}

func (s *MemoryStore) SaveMessage(_ context.Context, msg *model.Message, update ConversationUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chatMessages, ok := s.messages[msg.ChatID]
	if !ok {
		chatMessages = make(map[string]model.Message)
		s.messages[msg.ChatID] = chatMessages
	}
	if _, exists := chatMessages[msg.MessageID]; exists {
		return false, nil
	}

	stored := *msg
	stored.StoredAt = s.nextStoredAt()
	chatMessages[msg.MessageID] = stored

	conv, ok := s.conversations[msg.ChatID]
	if !ok {
		conv = &model.Conversation{ChatID: msg.ChatID}
		s.conversations[msg.ChatID] = conv
	}
	if update.ChatName != "" {
		conv.ChatName = update.ChatName
	}
	if update.IsGroup {
		conv.IsGroup = true
	}
	conv.ParticipantIDs = union(conv.ParticipantIDs, update.ParticipantIDs)
	conv.ParticipantNames = union(conv.ParticipantNames, update.ParticipantNames)
	conv.LastMessagePreview = update.LastMessagePreview
	conv.LastActivity = update.LastActivity
	conv.NeedsAnalysis = true
	conv.UpdatedAt = stored.StoredAt

	return true, nil
}

func (s *MemoryStore) GetConversation(_ context.Context, chatID string) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[chatID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *conv
	copied.ParticipantIDs = append([]string(nil), conv.ParticipantIDs...)
	copied.ParticipantNames = append([]string(nil), conv.ParticipantNames...)
	if conv.LastAnalyzedAt != nil {
		at := *conv.LastAnalyzedAt
		copied.LastAnalyzedAt = &at
	}
	return &copied, nil
}

func (s *MemoryStore) ListMessages(ctx context.Context, chatID string) ([]model.Message, error) {
	return s.list(chatID, func(model.Message) bool { return true }), nil
}

func (s *MemoryStore) ListMessagesAfter(_ context.Context, chatID string, after time.Time) ([]model.Message, error) {
	return s.list(chatID, func(m model.Message) bool { return m.StoredAt.After(after) }), nil
}

func (s *MemoryStore) ListMessagesSince(_ context.Context, chatID string, since time.Time) ([]model.Message, error) {
	return s.list(chatID, func(m model.Message) bool { return !m.StoredAt.Before(since) }), nil
}

func (s *MemoryStore) list(chatID string, keep func(model.Message) bool) []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages := make([]model.Message, 0, len(s.messages[chatID]))
	for _, msg := range s.messages[chatID] {
		if keep(msg) {
			messages = append(messages, msg)
		}
	}
	sort.Slice(messages, func(i, j int) bool {
		return messages[i].StoredAt.Before(messages[j].StoredAt)
	})
	return messages
}

func (s *MemoryStore) ListNeedingAnalysis(_ context.Context) ([]model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var flagged []model.Conversation
	for _, conv := range s.conversations {
		if conv.NeedsAnalysis {
			flagged = append(flagged, *conv)
		}
	}
	sort.Slice(flagged, func(i, j int) bool { return flagged[i].ChatID < flagged[j].ChatID })
	return flagged, nil
}

func (s *MemoryStore) MarkAnalyzed(_ context.Context, chatID string, watermark time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[chatID]
	if !ok {
		return ErrNotFound
	}
	at := watermark
	conv.LastAnalyzedAt = &at
	conv.NeedsAnalysis = false
	return nil
}

// InsertMessageAt writes a message with an explicit stored_at, bypassing the
// server clock. Test hook for out-of-order arrival scenarios.
func (s *MemoryStore) InsertMessageAt(msg model.Message, storedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chatMessages, ok := s.messages[msg.ChatID]
	if !ok {
		chatMessages = make(map[string]model.Message)
		s.messages[msg.ChatID] = chatMessages
	}
	msg.StoredAt = storedAt
	chatMessages[msg.MessageID] = msg

	if _, ok := s.conversations[msg.ChatID]; !ok {
		s.conversations[msg.ChatID] = &model.Conversation{ChatID: msg.ChatID, NeedsAnalysis: true}
	}
}

func union(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing))
	result := existing
	for _, v := range existing {
		seen[v] = struct{}{}
	}
	for _, v := range incoming {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			result = append(result, v)
		}
	}
	return result
}
