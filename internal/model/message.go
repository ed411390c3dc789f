package model

import "time"

// Attachment is one file carried by a message. URL points at durable storage
// once rehosting succeeds, otherwise at the provider's (possibly ephemeral) URL.
type Attachment struct {
	ID       string `firestore:"id" json:"id"`
	Kind     string `firestore:"kind" json:"kind"`
	URL      string `firestore:"url" json:"url"`
	MimeType string `firestore:"mimetype" json:"mimetype"`
	Filename string `firestore:"filename" json:"filename"`
	Size     int64  `firestore:"size" json:"size"`
}

// Message is one inbound or outbound chat item. Messages are append-only:
// created once by the ingestion pipeline, never mutated, never deleted.
//
// StoredAt is assigned by the store at write time and is the authoritative
// ordering for watermarking. ProviderTimestamp comes from the provider's own
// clock and is kept for display only.
type Message struct {
	MessageID         string       `firestore:"message_id" json:"message_id"`
	ChatID            string       `firestore:"chat_id" json:"chat_id"`
	AccountID         string       `firestore:"account_id" json:"account_id"`
	Text              string       `firestore:"text" json:"text"`
	Attachments       []Attachment `firestore:"attachments" json:"attachments"`
	SenderID          string       `firestore:"sender_id" json:"sender_id"`
	SenderName        string       `firestore:"sender_name" json:"sender_name"`
	IsOwnAccount      bool         `firestore:"is_own_account" json:"is_own_account"`
	ChatName          string       `firestore:"chat_name" json:"chat_name"`
	ProviderTimestamp string       `firestore:"provider_timestamp" json:"provider_timestamp"`
	StoredAt          time.Time    `firestore:"stored_at,serverTimestamp" json:"stored_at"`
}
