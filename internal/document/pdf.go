package document

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

type PDFInfo struct {
	PageCount int
	// HasText is false for scanned PDFs with no text layer.
	HasText bool
}

// InspectPDF parses an original PDF upload and reports its page count.
func InspectPDF(data []byte) (*PDFInfo, error) {
	reader := bytes.NewReader(data)

	pdfReader, err := pdf.NewReader(reader, int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to create PDF reader: %w", err)
	}

	info := &PDFInfo{PageCount: pdfReader.NumPage()}
	if info.PageCount == 0 {
		return nil, fmt.Errorf("PDF has no pages")
	}

	for i := 1; i <= info.PageCount; i++ {
		page := pdfReader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if strings.TrimSpace(text) != "" {
			info.HasText = true
			break
		}
	}

	return info, nil
}
