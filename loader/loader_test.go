package loader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestContentTypeFromExtension(t *testing.T) {
	tests := []struct {
		ext  string
		want ContentType
	}{
		{".md", TypeMarkdown},
		{"markdown", TypeMarkdown},
		{".HTML", TypeHTML},
		{".htm", TypeHTML},
		{".pdf", TypePDF},
		{".txt", TypePlainText},
		{"", TypePlainText},
	}
	for _, tt := range tests {
		if got := ContentTypeFromExtension(tt.ext); got != tt.want {
			t.Errorf("ContentTypeFromExtension(%q) = %s, want %s", tt.ext, got, tt.want)
		}
	}
}

func TestMarkdownExtractor(t *testing.T) {
	src := `# Title

Intro paragraph with some text.

## Usage

- first item
- second item

` + "```go\nfunc main() {}\n```" + `

Closing paragraph.`

	ex, err := MarkdownExtractor{}.Extract([]byte(src))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(ex.Headings) != 2 || ex.Headings[0] != "Title" || ex.Headings[1] != "Usage" {
		t.Errorf("headings = %v, want [Title Usage]", ex.Headings)
	}
	for _, want := range []string{"# Title", "## Usage", "Intro paragraph", "- first item", "func main() {}", "Closing paragraph."} {
		if !strings.Contains(ex.Text, want) {
			t.Errorf("text missing %q:\n%s", want, ex.Text)
		}
	}
	// Blocks stay blank-line separated for the chunker.
	if !strings.Contains(ex.Text, "# Title\n\n") {
		t.Error("heading not separated from the following paragraph")
	}
}

func TestMarkdownExtractorOrderedList(t *testing.T) {
	ex, err := MarkdownExtractor{}.Extract([]byte("1. alpha\n2. beta\n"))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.Contains(ex.Text, "1. alpha") || !strings.Contains(ex.Text, "2. beta") {
		t.Errorf("ordered list lost its numbering:\n%s", ex.Text)
	}
}

func TestHTMLExtractor(t *testing.T) {
	src := `<!DOCTYPE html>
<html><head><title>Release Notes</title><script>ignore()</script></head>
<body>
<h1>Release Notes</h1>
<p>The first paragraph of the release notes carries enough text to look like an article body, including several full sentences about what changed in this version and why readers should care about the upgrade path. It keeps going with concrete notes on the storage engine rewrite, the new retention policy defaults, the removal of the legacy compaction flag, and the performance numbers measured on the standard benchmark suite before and after the change.</p>
<p>A second paragraph continues with yet more detail about the changes, deprecations, and the migration steps users are expected to follow before upgrading production systems. It spells out the order of operations for rolling upgrades, the configuration keys that must be set before the first restart, the observability counters worth watching during the rollout, and the rollback procedure if error rates climb past the alerting threshold.</p>
</body></html>`

	ex, err := HTMLExtractor{}.Extract([]byte(src))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.Contains(ex.Text, "first paragraph of the release notes") {
		t.Errorf("body text missing:\n%s", ex.Text)
	}
	if strings.Contains(ex.Text, "ignore()") {
		t.Error("script content leaked into the extracted text")
	}
	if !strings.Contains(ex.Text, "# ") {
		t.Errorf("no heading line in extracted text:\n%s", ex.Text)
	}
}

func TestHTMLExtractorFallbackStripsChrome(t *testing.T) {
	// Too little content for article extraction; the tag-stripping
	// fallback must still skip nav and footer.
	src := `<html><body>
<nav>Home | About</nav>
<h2>Short Note</h2>
<p>Tiny body.</p>
<footer>copyright</footer>
</body></html>`

	ex, err := HTMLExtractor{}.Extract([]byte(src))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.Contains(ex.Text, "Tiny body.") {
		t.Errorf("paragraph text missing:\n%s", ex.Text)
	}
	for _, banned := range []string{"Home | About", "copyright"} {
		if strings.Contains(ex.Text, banned) {
			t.Errorf("chrome %q leaked into extracted text:\n%s", banned, ex.Text)
		}
	}
}

func TestPlainTextExtractor(t *testing.T) {
	ex, err := PlainTextExtractor{}.Extract([]byte("as is\n\nverbatim"))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if ex.Text != "as is\n\nverbatim" {
		t.Errorf("Text = %q, want content unchanged", ex.Text)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.md")
	content := "# Notes\n\nA body paragraph for the loader test.\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	in, err := Load(path, "src1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if in.SourceID != "src1" {
		t.Errorf("SourceID = %q, want src1", in.SourceID)
	}
	if in.Metadata.Filename != "notes.md" {
		t.Errorf("Filename = %q, want notes.md", in.Metadata.Filename)
	}
	if len(in.Metadata.StructuralHints) != 1 || in.Metadata.StructuralHints[0] != "Notes" {
		t.Errorf("StructuralHints = %v, want [Notes]", in.Metadata.StructuralHints)
	}
	if !strings.Contains(in.Text, "# Notes") || !strings.Contains(in.Text, "body paragraph") {
		t.Errorf("Text = %q, want extracted heading and body", in.Text)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.txt"), "src1"); err == nil {
		t.Fatal("Load of a missing file did not error")
	}
}
