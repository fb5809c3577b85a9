// Package extract turns uploaded medical documents into model input. Text
// documents become prompt text; images are passed through as attachments.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"unicode/utf8"

	"healthassist/internal/models"

	"github.com/ledongthuc/pdf"
)

// Supported MIME types.
const (
	MIMETypePDF  = "application/pdf"
	MIMETypeText = "text/plain"
)

var (
	// ErrUnsupportedType is returned for uploads that are neither PDF, plain
	// text nor an image.
	ErrUnsupportedType = errors.New("unsupported file type")
	// ErrEmptyFile is returned for zero-length uploads.
	ErrEmptyFile = errors.New("file is empty")
)

// Kind classifies extracted content.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

// Content is the result of extraction. Exactly one of Text or Attachment is
// meaningful, depending on Kind.
type Content struct {
	Kind       Kind
	Text       string
	Attachment *models.Attachment
}

// FromBytes extracts content from an in-memory upload. An empty or generic
// MIME type is replaced by the sniffed type of the data.
func FromBytes(data []byte, mimeType string) (*Content, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}

	mediaType := normalizeMIME(mimeType)
	if mediaType == "" || mediaType == "application/octet-stream" {
		mediaType = normalizeMIME(http.DetectContentType(data))
	}

	switch {
	case mediaType == MIMETypePDF:
		text, err := pdfText(data)
		if err != nil {
			return nil, fmt.Errorf("failed to read PDF: %w", err)
		}
		return &Content{Kind: KindText, Text: text}, nil

	case mediaType == MIMETypeText:
		if !utf8.Valid(data) {
			return nil, fmt.Errorf("text file is not valid UTF-8")
		}
		return &Content{Kind: KindText, Text: string(data)}, nil

	case strings.HasPrefix(mediaType, "image/"):
		return &Content{
			Kind:       KindImage,
			Attachment: &models.Attachment{MIMEType: mediaType, Data: data},
		}, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, mediaType)
}

func normalizeMIME(mimeType string) string {
	if mimeType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(mimeType))
	}
	return mediaType
}

func pdfText(data []byte) (text string, err error) {
	// The PDF reader panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

// CombineInput merges user-typed symptoms with extracted content into the
// text sent to the model.
func CombineInput(symptoms string, content *Content) string {
	var section string
	switch content.Kind {
	case KindText:
		section = "File content:\n" + content.Text
	case KindImage:
		section = "Medical image/report uploaded for analysis."
	}
	if symptoms == "" {
		return section
	}
	if section == "" {
		return symptoms
	}
	return symptoms + "\n\n" + section
}
