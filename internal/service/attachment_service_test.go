package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bybench/internal/storage"
)

type fakeUploader struct {
	uploads []storage.Upload
	bodies  [][]byte
	err     error
}

func (u *fakeUploader) UploadImages(_ context.Context, files []storage.Upload) ([]string, error) {
	if u.err != nil {
		return nil, u.err
	}
	urls := make([]string, 0, len(files))
	for _, f := range files {
		body, err := io.ReadAll(f.Body)
		if err != nil {
			return nil, err
		}
		u.uploads = append(u.uploads, f)
		u.bodies = append(u.bodies, body)
		urls = append(urls, "https://cdn.example.com/chat/file"+f.Extension)
	}
	return urls, nil
}

func pngBytes(size int) []byte {
	head := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	return append(head, bytes.Repeat([]byte{0}, size-len(head))...)
}

func TestAttachmentUpload(t *testing.T) {
	uploader := &fakeUploader{}
	svc := NewAttachmentService(uploader, 1024, zerolog.Nop())
	ctx := context.Background()

	data := pngBytes(512)
	att, err := svc.Upload(ctx, AttachmentInput{Filename: "a.png", Size: int64(len(data)), Body: bytes.NewReader(data)})
	require.NoError(t, err)
	assert.Equal(t, "image/png", att.MIMEType)
	assert.Equal(t, "https://cdn.example.com/chat/file.png", att.URL)
	require.Len(t, uploader.bodies, 1)
	assert.Equal(t, data, uploader.bodies[0])
	assert.Equal(t, int64(512), uploader.uploads[0].Size)
}

func TestAttachmentRejections(t *testing.T) {
	uploader := &fakeUploader{}
	svc := NewAttachmentService(uploader, 1024, zerolog.Nop())
	ctx := context.Background()

	_, err := svc.Upload(ctx, AttachmentInput{Filename: "a.pdf", Size: 8, Body: strings.NewReader("%PDF-1.7")})
	assert.ErrorIs(t, err, ErrUnsupportedAttachment)

	big := pngBytes(2048)
	_, err = svc.Upload(ctx, AttachmentInput{Filename: "big.png", Size: int64(len(big)), Body: bytes.NewReader(big)})
	assert.ErrorIs(t, err, ErrAttachmentTooLarge)

	_, err = svc.Upload(ctx, AttachmentInput{Filename: "liar.png", Size: 10, Body: bytes.NewReader(big)})
	assert.ErrorIs(t, err, ErrAttachmentTooLarge)

	_, err = svc.Upload(ctx, AttachmentInput{Filename: "none"})
	assert.ErrorIs(t, err, ErrUnsupportedAttachment)

	assert.Empty(t, uploader.uploads)
}

func TestAttachmentSanitizesSVG(t *testing.T) {
	uploader := &fakeUploader{}
	svc := NewAttachmentService(uploader, 0, zerolog.Nop())

	doc := `<svg xmlns="http://www.w3.org/2000/svg" onload="alert(1)"><script>alert(2)</script><rect width="1"/></svg>`
	att, err := svc.Upload(context.Background(), AttachmentInput{Filename: "x.svg", Size: int64(len(doc)), Body: strings.NewReader(doc)})
	require.NoError(t, err)
	assert.Equal(t, "image/svg+xml", att.MIMEType)

	require.Len(t, uploader.bodies, 1)
	stored := string(uploader.bodies[0])
	assert.NotContains(t, stored, "<script")
	assert.NotContains(t, stored, "onload")
	assert.Contains(t, stored, "<rect")
}

func TestAttachmentStoreFailure(t *testing.T) {
	svc := NewAttachmentService(&fakeUploader{err: errors.New("bucket gone")}, 0, zerolog.Nop())
	data := pngBytes(64)

	_, err := svc.Upload(context.Background(), AttachmentInput{Filename: "a.png", Size: 64, Body: bytes.NewReader(data)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket gone")
}
