package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within
// a context. Fields flow through context enrichment so business context
// (chat_id, message_id, etc.) is included in every log statement without
// repeating it at each call site.
type LogFields struct {
	ChatID    *string // conversation identifier
	MessageID *string // provider message id or queue message id
	SenderID  *string // sender identifier
	EventType *string // provider event kind (e.g. "message_received")
	Strategy  *string // analysis strategy name
	Component string  // component name (e.g. "secretary.ingest")
}

// WithLogFields enriches context with structured log fields. Multiple calls
// merge fields, with newer non-nil/non-empty values taking precedence.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context. Returns empty LogFields if
// none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, next LogFields) LogFields {
	result := existing

	if next.ChatID != nil {
		result.ChatID = next.ChatID
	}
	if next.MessageID != nil {
		result.MessageID = next.MessageID
	}
	if next.SenderID != nil {
		result.SenderID = next.SenderID
	}
	if next.EventType != nil {
		result.EventType = next.EventType
	}
	if next.Strategy != nil {
		result.Strategy = next.Strategy
	}
	if next.Component != "" {
		result.Component = next.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value, for setting LogFields
// inline.
func Ptr[T any](v T) *T {
	return &v
}

// Truncate truncates a string to maxLen characters, appending "..." if
// truncated. Useful for logging potentially long message bodies.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
