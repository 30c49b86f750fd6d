// Package loader converts raw document files into corpus.SourceInput:
// plain text, Markdown, HTML, and PDF extraction with structural hints the
// chunker can use for sectioning.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	corpus "github.com/solumlabs/corpus"
)

// Extractor converts raw content of one format into text plus metadata.
type Extractor interface {
	Extract(content []byte) (Extracted, error)
}

// Extracted is the format-independent result of extraction. Text keeps
// paragraph breaks (blank lines) and heading lines prefixed with '#' so the
// downstream chunker can see document structure.
type Extracted struct {
	Text       string
	TotalPages int
	Headings   []string
}

// ContentType identifies the MIME type of content for extraction.
type ContentType string

const (
	TypePlainText ContentType = "text/plain"
	TypeMarkdown  ContentType = "text/markdown"
	TypeHTML      ContentType = "text/html"
	TypePDF       ContentType = "application/pdf"
)

// ContentTypeFromExtension maps file extensions to content types.
func ContentTypeFromExtension(ext string) ContentType {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "md", "markdown":
		return TypeMarkdown
	case "html", "htm":
		return TypeHTML
	case "pdf":
		return TypePDF
	default:
		return TypePlainText
	}
}

// ExtractorFor returns the built-in extractor for a content type.
func ExtractorFor(t ContentType) Extractor {
	switch t {
	case TypeMarkdown:
		return MarkdownExtractor{}
	case TypeHTML:
		return HTMLExtractor{}
	case TypePDF:
		return PDFExtractor{}
	default:
		return PlainTextExtractor{}
	}
}

// Load reads a file, extracts it by extension, and returns a SourceInput
// ready for ingestion.
func Load(path, sourceID string) (corpus.SourceInput, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return corpus.SourceInput{}, fmt.Errorf("read source file: %w", err)
	}
	t := ContentTypeFromExtension(filepath.Ext(path))
	ex, err := ExtractorFor(t).Extract(content)
	if err != nil {
		return corpus.SourceInput{}, fmt.Errorf("extract %s: %w", t, err)
	}
	return corpus.SourceInput{
		SourceID: sourceID,
		Text:     ex.Text,
		Metadata: corpus.SourceMetadata{
			Filename:        filepath.Base(path),
			TotalPages:      ex.TotalPages,
			StructuralHints: ex.Headings,
		},
	}, nil
}

// PlainTextExtractor returns content as-is.
type PlainTextExtractor struct{}

func (PlainTextExtractor) Extract(content []byte) (Extracted, error) {
	return Extracted{Text: string(content)}, nil
}
