// Package document validates uploaded documents before they reach the
// pipeline: base64 page images and, for PDFs, the original file.
package document

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/BerylCAtieno/invoice-chat-api/internal/models"
)

const (
	TypeImage = "image"
	TypePDF   = "pdf"
)

var (
	ErrNoImages        = errors.New("no images provided")
	ErrUnsupportedType = errors.New("unsupported document type")
)

var dataURLPrefix = regexp.MustCompile(`^data:(image/[a-z]+);base64,`)

// InvalidImageError reports which page failed base64 validation.
type InvalidImageError struct {
	Index int
}

func (e *InvalidImageError) Error() string {
	return fmt.Sprintf("image %d is not valid base64 image data", e.Index+1)
}

func ValidateType(docType string) error {
	switch docType {
	case TypeImage, TypePDF:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedType, docType)
	}
}

// DecodePages validates and decodes base64 page images, optionally prefixed
// with a data URL header. A page is valid only if it is non-empty and its
// decoded bytes re-encode to the same base64 text.
func DecodePages(images []string) ([]models.Page, error) {
	if len(images) == 0 {
		return nil, ErrNoImages
	}

	pages := make([]models.Page, 0, len(images))
	for i, img := range images {
		page, ok := decodePage(img)
		if !ok {
			return nil, &InvalidImageError{Index: i}
		}
		pages = append(pages, page)
	}
	return pages, nil
}

func decodePage(img string) (models.Page, bool) {
	mimeType := ""
	if m := dataURLPrefix.FindStringSubmatch(img); m != nil {
		mimeType = m[1]
		img = img[len(m[0]):]
	}
	img = strings.TrimSpace(img)
	if img == "" {
		return models.Page{}, false
	}

	data, err := base64.StdEncoding.DecodeString(img)
	if err != nil || len(data) == 0 {
		return models.Page{}, false
	}
	if base64.StdEncoding.EncodeToString(data) != img {
		return models.Page{}, false
	}

	if mimeType == "" {
		mimeType = sniffImageType(data)
	}
	return models.Page{MIMEType: mimeType, Data: data}, true
}

func sniffImageType(data []byte) string {
	if ct := http.DetectContentType(data); strings.HasPrefix(ct, "image/") {
		return ct
	}
	return "image/png"
}

// PageWord returns "page" or "pages" for n.
func PageWord(n int) string {
	if n == 1 {
		return "page"
	}
	return "pages"
}
