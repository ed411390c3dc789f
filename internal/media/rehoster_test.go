package media_test

import (
	"context"
	"fmt"
	"io"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/icagency/secretary/internal/media"
	"github.com/icagency/secretary/internal/model"
)

type fakeSource struct {
	fetchFunc           func(ctx context.Context, url string) (io.ReadCloser, string, error)
	fetchAttachmentFunc func(ctx context.Context, messageID, attachmentID string) (io.ReadCloser, string, error)
}

func (f *fakeSource) Fetch(ctx context.Context, url string) (io.ReadCloser, string, error) {
	return f.fetchFunc(ctx, url)
}

func (f *fakeSource) FetchAttachment(ctx context.Context, messageID, attachmentID string) (io.ReadCloser, string, error) {
	return f.fetchAttachmentFunc(ctx, messageID, attachmentID)
}

type fakeStore struct {
	uploadFunc func(ctx context.Context, key, contentType string, r io.Reader) error
	uploaded   []string
}

func (f *fakeStore) Upload(ctx context.Context, key, contentType string, r io.Reader) error {
	if f.uploadFunc != nil {
		if err := f.uploadFunc(ctx, key, contentType, r); err != nil {
			return err
		}
	}
	f.uploaded = append(f.uploaded, key)
	return nil
}

func (f *fakeStore) PublicURL(key string) string {
	return "https://storage.googleapis.com/bucket/" + key
}

func body(s string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(s))
}

var _ = Describe("Rehoster", func() {
	var (
		ctx    context.Context
		source *fakeSource
		store  *fakeStore
	)

	BeforeEach(func() {
		ctx = context.Background()
		source = &fakeSource{
			fetchFunc: func(context.Context, string) (io.ReadCloser, string, error) {
				return body("bytes"), "image/jpeg", nil
			},
			fetchAttachmentFunc: func(context.Context, string, string) (io.ReadCloser, string, error) {
				return body("bytes"), "image/jpeg", nil
			},
		}
		store = &fakeStore{}
	})

	It("rehosts attachments under chats/{chat}/{message}/{attachment}.{ext}", func() {
		rehoster := media.NewRehoster(store, source)

		out := rehoster.Rehost(ctx, "chat_1", "msg_1", []model.Attachment{
			{ID: "att_1", Kind: "image", URL: "https://ephemeral/att_1", Filename: "photo.jpg"},
		})

		Expect(store.uploaded).To(Equal([]string{"chats/chat_1/msg_1/att_1.jpg"}))
		Expect(out[0].URL).To(Equal("https://storage.googleapis.com/bucket/chats/chat_1/msg_1/att_1.jpg"))
	})

	It("derives the extension from the content type when there is no filename", func() {
		rehoster := media.NewRehoster(store, source)

		rehoster.Rehost(ctx, "c", "m", []model.Attachment{
			{ID: "a", URL: "https://ephemeral/a"},
		})

		Expect(store.uploaded).To(Equal([]string{"chats/c/m/a.jpg"}))
	})

	It("fetches through the provider API when the attachment has no url", func() {
		var fetchedMessage, fetchedAttachment string
		source.fetchAttachmentFunc = func(_ context.Context, messageID, attachmentID string) (io.ReadCloser, string, error) {
			fetchedMessage = messageID
			fetchedAttachment = attachmentID
			return body("bytes"), "application/pdf", nil
		}
		rehoster := media.NewRehoster(store, source)

		rehoster.Rehost(ctx, "c", "m", []model.Attachment{{ID: "a"}})

		Expect(fetchedMessage).To(Equal("m"))
		Expect(fetchedAttachment).To(Equal("a"))
		Expect(store.uploaded).To(Equal([]string{"chats/c/m/a.pdf"}))
	})

	It("keeps the provider url when fetching fails", func() {
		source.fetchFunc = func(context.Context, string) (io.ReadCloser, string, error) {
			return nil, "", fmt.Errorf("provider down")
		}
		rehoster := media.NewRehoster(store, source)

		out := rehoster.Rehost(ctx, "c", "m", []model.Attachment{
			{ID: "a", URL: "https://ephemeral/a"},
		})

		Expect(out[0].URL).To(Equal("https://ephemeral/a"))
		Expect(store.uploaded).To(BeEmpty())
	})

	It("keeps the provider url when uploading fails", func() {
		store.uploadFunc = func(context.Context, string, string, io.Reader) error {
			return fmt.Errorf("bucket unavailable")
		}
		rehoster := media.NewRehoster(store, source)

		out := rehoster.Rehost(ctx, "c", "m", []model.Attachment{
			{ID: "a", URL: "https://ephemeral/a"},
		})

		Expect(out[0].URL).To(Equal("https://ephemeral/a"))
	})

	It("handles each attachment independently", func() {
		source.fetchFunc = func(_ context.Context, url string) (io.ReadCloser, string, error) {
			if strings.Contains(url, "bad") {
				return nil, "", fmt.Errorf("gone")
			}
			return body("bytes"), "image/png", nil
		}
		rehoster := media.NewRehoster(store, source)

		out := rehoster.Rehost(ctx, "c", "m", []model.Attachment{
			{ID: "bad", URL: "https://ephemeral/bad"},
			{ID: "good", URL: "https://ephemeral/good"},
		})

		Expect(out[0].URL).To(Equal("https://ephemeral/bad"))
		Expect(out[1].URL).To(Equal("https://storage.googleapis.com/bucket/chats/c/m/good.png"))
	})

	It("does not mutate the input slice", func() {
		rehoster := media.NewRehoster(store, source)
		in := []model.Attachment{{ID: "a", URL: "https://ephemeral/a"}}

		rehoster.Rehost(ctx, "c", "m", in)

		Expect(in[0].URL).To(Equal("https://ephemeral/a"))
	})
})
