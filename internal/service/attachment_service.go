package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"bybench/internal/media/sniffer"
	"bybench/internal/media/svg"
	"bybench/internal/storage"
)

type AttachmentInput struct {
	Filename string
	Size     int64
	Body     io.Reader
}

type Attachment struct {
	URL      string
	MIMEType string
}

// AttachmentService vets chat images and hands them to the image host.
type AttachmentService struct {
	store    ImageUploader
	maxBytes int64
	log      zerolog.Logger
}

const defaultMaxAttachmentBytes = 5 << 20

func NewAttachmentService(store ImageUploader, maxBytes int64, log zerolog.Logger) *AttachmentService {
	if maxBytes <= 0 {
		maxBytes = defaultMaxAttachmentBytes
	}
	return &AttachmentService{store: store, maxBytes: maxBytes, log: log}
}

func (s *AttachmentService) Upload(ctx context.Context, input AttachmentInput) (Attachment, error) {
	if input.Body == nil {
		return Attachment{}, ErrUnsupportedAttachment
	}
	if input.Size > s.maxBytes {
		return Attachment{}, ErrAttachmentTooLarge
	}

	kind, body, err := sniffer.Sniff(input.Body)
	if err != nil {
		if errors.Is(err, sniffer.ErrUnknownType) {
			return Attachment{}, ErrUnsupportedAttachment
		}
		return Attachment{}, fmt.Errorf("sniff attachment: %w", err)
	}

	// Read one byte past the limit so oversize bodies with a lying header are caught.
	data, err := io.ReadAll(io.LimitReader(body, s.maxBytes+1))
	if err != nil {
		return Attachment{}, fmt.Errorf("read attachment: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return Attachment{}, ErrAttachmentTooLarge
	}

	if kind.Type == sniffer.TypeSVG {
		data, err = svg.Sanitize(data)
		if err != nil {
			return Attachment{}, ErrUnsupportedAttachment
		}
	}

	urls, err := s.store.UploadImages(ctx, []storage.Upload{{
		Extension:   kind.Extension,
		ContentType: kind.MIME,
		Size:        int64(len(data)),
		Body:        bytes.NewReader(data),
	}})
	if err != nil {
		return Attachment{}, fmt.Errorf("upload attachment: %w", err)
	}
	if len(urls) != 1 {
		return Attachment{}, fmt.Errorf("upload attachment: expected 1 url, got %d", len(urls))
	}

	s.log.Debug().Str("file", input.Filename).Str("mime", kind.MIME).Int("bytes", len(data)).Msg("attachment stored")
	return Attachment{URL: urls[0], MIMEType: kind.MIME}, nil
}
