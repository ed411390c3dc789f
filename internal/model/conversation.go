package model

import "time"

// Conversation is the single mutable record per chat thread. All fields grow
// monotonically (set-union) or are last-write-wins; nothing is accumulated
// arithmetically, which is what makes concurrent merge updates safe.
type Conversation struct {
	ChatID           string   `firestore:"chat_id" json:"chat_id"`
	ChatName         string   `firestore:"chat_name" json:"chat_name"`
	IsGroup          bool     `firestore:"is_group" json:"is_group"`
	ParticipantIDs   []string `firestore:"participant_ids" json:"participant_ids"`
	ParticipantNames []string `firestore:"participant_names" json:"participant_names"`

	LastMessagePreview string `firestore:"last_message_preview" json:"last_message_preview"`
	LastActivity       string `firestore:"last_activity" json:"last_activity"`

	// NeedsAnalysis is set by every successful message write and cleared only
	// by a completed analysis cycle. LastAnalyzedAt is the watermark: messages
	// with stored_at <= LastAnalyzedAt have been analyzed.
	NeedsAnalysis  bool       `firestore:"needs_analysis" json:"needs_analysis"`
	LastAnalyzedAt *time.Time `firestore:"last_analyzed_at" json:"last_analyzed_at"`

	UpdatedAt time.Time `firestore:"updated_at,serverTimestamp" json:"updated_at"`
}
