package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path"
	"strings"

	"github.com/icagency/secretary/common/id"
	"github.com/icagency/secretary/common/logger"
	"github.com/icagency/secretary/internal/model"
)

// Source fetches attachment bytes from the messaging provider, either from
// the ephemeral URL the webhook carried or through the provider API.
type Source interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, string, error)
	FetchAttachment(ctx context.Context, messageID, attachmentID string) (io.ReadCloser, string, error)
}

// Rehoster copies provider attachments into durable storage and swaps the
// ephemeral URLs for permanent ones. Every attachment is best-effort: a
// failed rehost keeps the original URL and never blocks the message write.
type Rehoster struct {
	store  ObjectStore
	source Source
}

func NewRehoster(store ObjectStore, source Source) *Rehoster {
	return &Rehoster{store: store, source: source}
}

// Rehost returns a copy of atts with durable URLs substituted where rehosting
// succeeded. The input slice is not modified; order is preserved.
func (r *Rehoster) Rehost(ctx context.Context, chatID, messageID string, atts []model.Attachment) []model.Attachment {
	if len(atts) == 0 {
		return atts
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		ChatID:    logger.Ptr(chatID),
		MessageID: logger.Ptr(messageID),
		Component: "secretary.media.rehoster",
	})

	out := make([]model.Attachment, len(atts))
	copy(out, atts)

	for i := range out {
		durable, err := r.rehostOne(ctx, chatID, messageID, out[i])
		if err != nil {
			slog.WarnContext(ctx, "attachment rehost failed, keeping provider url",
				"attachment_id", out[i].ID,
				"kind", out[i].Kind,
				"error", err)
			continue
		}
		out[i].URL = durable
	}

	return out
}

func (r *Rehoster) rehostOne(ctx context.Context, chatID, messageID string, att model.Attachment) (string, error) {
	body, contentType, err := r.fetch(ctx, messageID, att)
	if err != nil {
		return "", err
	}
	defer body.Close()

	if contentType == "" {
		contentType = att.MimeType
	}

	key := objectKey(chatID, messageID, att, contentType)
	if err := r.store.Upload(ctx, key, contentType, body); err != nil {
		return "", err
	}

	url := r.store.PublicURL(key)
	slog.DebugContext(ctx, "attachment rehosted",
		"attachment_id", att.ID,
		"key", key)
	return url, nil
}

func (r *Rehoster) fetch(ctx context.Context, messageID string, att model.Attachment) (io.ReadCloser, string, error) {
	if att.URL != "" {
		return r.source.Fetch(ctx, att.URL)
	}
	if att.ID == "" {
		return nil, "", fmt.Errorf("attachment has neither url nor id")
	}
	return r.source.FetchAttachment(ctx, messageID, att.ID)
}

// objectKey builds the storage key chats/{chat_id}/{message_id}/{attachment_id}.{ext}.
func objectKey(chatID, messageID string, att model.Attachment, contentType string) string {
	attID := att.ID
	if attID == "" {
		attID = id.NewString()
	}
	return fmt.Sprintf("chats/%s/%s/%s.%s", chatID, messageID, attID, extension(att, contentType))
}

func extension(att model.Attachment, contentType string) string {
	if ext := strings.TrimPrefix(path.Ext(att.Filename), "."); ext != "" {
		return strings.ToLower(ext)
	}

	ct := contentType
	if ct == "" {
		ct = att.MimeType
	}
	if ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err == nil {
			if ext, ok := wellKnownExts[mt]; ok {
				return ext
			}
			if exts, err := mime.ExtensionsByType(mt); err == nil && len(exts) > 0 {
				return strings.TrimPrefix(exts[0], ".")
			}
		}
	}

	return "bin"
}

// mime.ExtensionsByType is OS-table dependent; pin the common chat media
// types so keys stay stable across deployments.
var wellKnownExts = map[string]string{
	"image/jpeg":      "jpg",
	"image/png":       "png",
	"image/webp":      "webp",
	"image/gif":       "gif",
	"video/mp4":       "mp4",
	"audio/ogg":       "ogg",
	"audio/mpeg":      "mp3",
	"application/pdf": "pdf",
}
