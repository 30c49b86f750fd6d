package loader

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFExtractor extracts plain text from PDF documents page by page using
// ledongthuc/pdf (pure Go, no CGO). Unreadable pages are skipped rather
// than failing the whole document.
type PDFExtractor struct{}

var _ Extractor = (*PDFExtractor)(nil)

func (PDFExtractor) Extract(content []byte) (Extracted, error) {
	if len(content) == 0 {
		return Extracted{}, fmt.Errorf("empty PDF content")
	}

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return Extracted{}, fmt.Errorf("open pdf: %w", err)
	}

	var text strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue // skip unreadable pages
		}
		pageText = strings.TrimSpace(pageText)
		if pageText == "" {
			continue
		}
		if text.Len() > 0 {
			text.WriteString("\n\n")
		}
		text.WriteString(pageText)
	}

	return Extracted{
		Text:       strings.TrimSpace(text.String()),
		TotalPages: r.NumPage(),
	}, nil
}
