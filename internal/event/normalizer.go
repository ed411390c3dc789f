package event

import (
	"errors"
	"fmt"
	"time"

	"github.com/icagency/secretary/internal/model"
)

// ErrMalformedEvent marks a payload missing required identity fields. Events
// failing with it are dropped; webhook re-delivery from the provider is the
// only retry mechanism for them.
var ErrMalformedEvent = errors.New("malformed event payload")

// textFields is the ordered priority list of field names that may carry the
// message body across provider versions. First non-empty wins.
var textFields = []string{"text", "body", "message", "content"}

// UnknownSender is the display name used when the provider omits sender info.
const UnknownSender = "Unknown"

// Sender is the normalized identity of the message author. AttendeeID may be
// empty when the provider omits it.
type Sender struct {
	AttendeeID   string `json:"attendee_id"`
	AttendeeName string `json:"attendee_name"`
}

// Attendee is one conversation participant. Provider versions send attendees
// either as flat id strings or as structured objects; both normalize to this.
type Attendee struct {
	AttendeeID   string `json:"attendee_id"`
	AttendeeName string `json:"attendee_name"`
}

// MessageEvent is the single canonical shape every raw webhook payload
// normalizes into.
type MessageEvent struct {
	Event     string `json:"event"`
	AccountID string `json:"account_id"`
	MessageID string `json:"message_id"`
	ChatID    string `json:"chat_id"`

	Timestamp string `json:"timestamp"`
	Text      string `json:"text"`

	Sender   Sender `json:"sender"`
	IsSender bool   `json:"is_sender"`

	ChatName  string     `json:"chat_name"`
	Attendees []Attendee `json:"attendees"`

	Attachments []model.Attachment `json:"attachments"`
}

// AttendeeIDs returns just the participant identifiers, skipping empties.
func (e *MessageEvent) AttendeeIDs() []string {
	ids := make([]string, 0, len(e.Attendees))
	for _, a := range e.Attendees {
		if a.AttendeeID != "" {
			ids = append(ids, a.AttendeeID)
		}
	}
	return ids
}

// Normalize converts a raw heterogeneous payload into one canonical
// MessageEvent. Unknown fields are ignored so new provider fields never break
// normalization. It fails only when identity fields are absent.
func Normalize(raw map[string]any) (*MessageEvent, error) {
	evt := &MessageEvent{
		Event:     stringField(raw, "event"),
		AccountID: stringField(raw, "account_id"),
		ChatID:    stringField(raw, "chat_id"),
		ChatName:  stringField(raw, "chat_name"),
	}

	// The provider sends "id"; some payloads spell it out.
	evt.MessageID = stringField(raw, "id")
	if evt.MessageID == "" {
		evt.MessageID = stringField(raw, "message_id")
	}

	if evt.Event == "" || evt.AccountID == "" || evt.MessageID == "" || evt.ChatID == "" {
		return nil, fmt.Errorf("%w: event=%q account_id=%q message_id=%q chat_id=%q",
			ErrMalformedEvent, evt.Event, evt.AccountID, evt.MessageID, evt.ChatID)
	}

	for _, field := range textFields {
		if v := stringField(raw, field); v != "" {
			evt.Text = v
			break
		}
	}

	// Timestamp is the only field allowed to default to "now": a message with
	// no provider clock still needs a displayable time.
	evt.Timestamp = stringField(raw, "timestamp")
	if evt.Timestamp == "" {
		evt.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	evt.Sender = normalizeSender(raw["sender"])
	evt.IsSender = boolField(raw, "is_sender")
	evt.Attendees = normalizeAttendees(raw["attendees"])
	evt.Attachments = normalizeAttachments(raw["attachments"])

	return evt, nil
}

func normalizeSender(v any) Sender {
	sender := Sender{AttendeeName: UnknownSender}
	m, ok := v.(map[string]any)
	if !ok {
		return sender
	}
	sender.AttendeeID = stringField(m, "attendee_id")
	if name := stringField(m, "attendee_name"); name != "" {
		sender.AttendeeName = name
	}
	return sender
}

func normalizeAttendees(v any) []Attendee {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	attendees := make([]Attendee, 0, len(list))
	for _, item := range list {
		switch a := item.(type) {
		case string:
			if a != "" {
				attendees = append(attendees, Attendee{AttendeeID: a})
			}
		case map[string]any:
			attendee := Attendee{
				AttendeeID:   stringField(a, "attendee_id"),
				AttendeeName: stringField(a, "attendee_name"),
			}
			if attendee.AttendeeID == "" {
				attendee.AttendeeID = stringField(a, "id")
			}
			if attendee.AttendeeID != "" || attendee.AttendeeName != "" {
				attendees = append(attendees, attendee)
			}
		}
	}
	return attendees
}

func normalizeAttachments(v any) []model.Attachment {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	attachments := make([]model.Attachment, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		att := model.Attachment{
			ID:       stringField(m, "id"),
			Kind:     stringField(m, "type"),
			URL:      stringField(m, "url"),
			MimeType: stringField(m, "mimetype"),
			Filename: stringField(m, "filename"),
			Size:     int64Field(m, "size"),
		}
		if att.Kind == "" {
			att.Kind = "unknown"
		}
		attachments = append(attachments, att)
	}
	return attachments
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func boolField(m map[string]any, key string) bool {
	v, _ := m[key].(bool)
	return v
}

func int64Field(m map[string]any, key string) int64 {
	switch v := m[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}
