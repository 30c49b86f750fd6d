package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	corpus "github.com/solumlabs/corpus"
)

// sentence builds an n-word sentence with a distinct word prefix.
func sentence(prefix string, n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return strings.Join(words, " ") + "."
}

func chunksAtScale(chunks []corpus.Chunk, scale corpus.ScaleType) []corpus.Chunk {
	var out []corpus.Chunk
	for _, c := range chunks {
		if c.Scale == scale {
			out = append(out, c)
		}
	}
	return out
}

func TestChunkEmptyDocument(t *testing.T) {
	c := NewChunker()
	for _, text := range []string{"", "   ", "\n\n\t\n"} {
		chunks, err := c.Chunk(context.Background(), corpus.SourceInput{SourceID: "src1", Text: text})
		if err != nil {
			t.Fatalf("Chunk(%q): %v", text, err)
		}
		if len(chunks) != 0 {
			t.Errorf("Chunk(%q) = %d chunks, want 0", text, len(chunks))
		}
	}
}

func TestChunkShortDocumentCapsQuality(t *testing.T) {
	c := NewChunker(WithMinTokens(32))
	in := corpus.SourceInput{SourceID: "src1", Text: sentence("tiny", 6)}

	chunks, err := c.Chunk(context.Background(), in)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(chunks) == 0 {
		t.Fatal("short document produced no chunks")
	}
	for _, ch := range chunks {
		if ch.QualityScore > 0.5 {
			t.Errorf("chunk %s quality = %v, want capped at 0.5 for a too-short document", ch.ID, ch.QualityScore)
		}
	}
	if got := chunksAtScale(chunks, corpus.ScaleParagraph); len(got) != 1 {
		t.Errorf("paragraph chunks = %d, want 1", len(got))
	}
}

func TestChunkParagraphStrategyWithOverlap(t *testing.T) {
	paras := []string{
		sentence("alpha", 12) + " " + sentence("beta", 12),
		sentence("gamma", 12) + " " + sentence("delta", 12),
		sentence("epsilon", 12) + " " + sentence("zeta", 12),
	}
	in := corpus.SourceInput{SourceID: "src1", Text: strings.Join(paras, "\n\n")}

	c := NewChunker(
		WithStrategy(StrategyParagraph),
		WithMaxTokens(100),
		WithMinTokens(20),
		WithOverlapTokens(5),
	)
	chunks, err := c.Chunk(context.Background(), in)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}

	pchunks := chunksAtScale(chunks, corpus.ScaleParagraph)
	if len(pchunks) != 3 {
		t.Fatalf("paragraph chunks = %d, want 3 (one per paragraph)", len(pchunks))
	}

	// Each chunk after the first leads with the previous chunk's tail.
	for i := 1; i < len(pchunks); i++ {
		prevFields := strings.Fields(pchunks[i-1].Content)
		tail := strings.Join(prevFields[len(prevFields)-5:], " ")
		if !strings.HasPrefix(pchunks[i].Content, tail) {
			t.Errorf("chunk %d does not lead with the previous tail %q:\n%q", i, tail, pchunks[i].Content)
		}
	}

	if v := corpus.ValidateForest(chunks); len(v) != 0 {
		t.Errorf("forest inconsistent: %v", v)
	}
}

func TestChunkHeadingSections(t *testing.T) {
	text := "# Introduction\n\n" + sentence("intro", 15) + "\n\n" +
		"## Details\n\n" + sentence("detail", 15) + " " + sentence("more", 15)
	in := corpus.SourceInput{SourceID: "src1", Text: text}

	c := NewChunker(WithStrategy(StrategySection), WithMinTokens(4))
	chunks, err := c.Chunk(context.Background(), in)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}

	docs := chunksAtScale(chunks, corpus.ScaleDocument)
	if len(docs) != 1 {
		t.Fatalf("document chunks = %d, want 1", len(docs))
	}
	sections := chunksAtScale(chunks, corpus.ScaleSection)
	if len(sections) != 2 {
		t.Fatalf("section chunks = %d, want one per heading", len(sections))
	}
	for _, s := range sections {
		if s.ParentID != docs[0].ID {
			t.Errorf("section %s parent = %s, want the document chunk", s.ID, s.ParentID)
		}
	}
	for _, p := range chunksAtScale(chunks, corpus.ScaleParagraph) {
		if p.ParentID != sections[0].ID && p.ParentID != sections[1].ID {
			t.Errorf("paragraph %s parent = %s, want a section chunk", p.ID, p.ParentID)
		}
	}
	if v := corpus.ValidateForest(chunks); len(v) != 0 {
		t.Errorf("forest inconsistent: %v", v)
	}
}

func TestChunkSentenceScale(t *testing.T) {
	text := sentence("first", 10) + " " + sentence("second", 10) + "\n\n" + sentence("third", 10)
	in := corpus.SourceInput{SourceID: "src1", Text: text}

	c := NewChunker(WithStrategy(StrategyParagraph), WithMinTokens(4), WithSentenceScale())
	chunks, err := c.Chunk(context.Background(), in)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}

	sentences := chunksAtScale(chunks, corpus.ScaleSentence)
	if len(sentences) != 3 {
		t.Fatalf("sentence chunks = %d, want 3", len(sentences))
	}
	paraIDs := make(map[string]bool)
	for _, p := range chunksAtScale(chunks, corpus.ScaleParagraph) {
		paraIDs[p.ID] = true
	}
	for _, s := range sentences {
		if !paraIDs[s.ParentID] {
			t.Errorf("sentence %s parent = %q, want a paragraph chunk", s.ID, s.ParentID)
		}
	}
	if v := corpus.ValidateForest(chunks); len(v) != 0 {
		t.Errorf("forest inconsistent: %v", v)
	}
}

func TestChunkIdempotentIDs(t *testing.T) {
	in := corpus.SourceInput{
		SourceID: "src1",
		Text:     sentence("stable", 20) + "\n\n" + sentence("repeat", 20),
	}
	c := NewChunker(WithStrategy(StrategyParagraph), WithMinTokens(8))

	first, err := c.Chunk(context.Background(), in)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	second, err := c.Chunk(context.Background(), in)
	if err != nil {
		t.Fatalf("Chunk (again): %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("chunk counts differ: %d then %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("chunk %d ID changed: %s then %s", i, first[i].ID, second[i].ID)
		}
	}
}

func TestChunkSemanticDegradesOnEmbedFailure(t *testing.T) {
	in := corpus.SourceInput{
		SourceID: "src1",
		Text:     sentence("resilient", 15) + "\n\n" + sentence("pipeline", 15),
	}
	failing := func(context.Context, []string) ([][]float32, error) {
		return nil, errors.New("provider down")
	}
	c := NewChunker(WithStrategy(StrategySemantic), WithMinTokens(8), WithEmbed(failing))

	chunks, err := c.Chunk(context.Background(), in)
	if err != nil {
		t.Fatalf("chunking must degrade to lexical similarity, got %v", err)
	}
	if len(chunks) == 0 {
		t.Fatal("no chunks produced")
	}
}

func TestChunkScoresWithinBounds(t *testing.T) {
	text := "# Heading\n\n" + sentence("body", 25) + "\n\n" + sentence("tail", 25)
	c := NewChunker(WithMinTokens(8))
	chunks, err := c.Chunk(context.Background(), corpus.SourceInput{SourceID: "src1", Text: text})
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	for _, ch := range chunks {
		if ch.QualityScore < 0 || ch.QualityScore > 1 {
			t.Errorf("chunk %s quality = %v, out of [0,1]", ch.ID, ch.QualityScore)
		}
		if ch.CoherenceScore < 0 || ch.CoherenceScore > 1 {
			t.Errorf("chunk %s coherence = %v, out of [0,1]", ch.ID, ch.CoherenceScore)
		}
		if ch.ContentHash != corpus.HashContent(ch.Content) {
			t.Errorf("chunk %s content hash does not match its content", ch.ID)
		}
		if ch.HierarchyLevel != ch.Scale.Level() {
			t.Errorf("chunk %s level = %d, want %d", ch.ID, ch.HierarchyLevel, ch.Scale.Level())
		}
	}
}

func TestSegmentUnits(t *testing.T) {
	text := "# Title\n\nFirst sentence here. Second sentence too.\n\nNew paragraph."
	units := segmentUnits(text)
	if len(units) != 4 {
		t.Fatalf("units = %d, want heading + 3 sentences", len(units))
	}
	if !units[0].heading {
		t.Error("hash line not detected as heading")
	}
	if !units[1].paraStart || units[2].paraStart {
		t.Error("paragraph start flags wrong within the first paragraph")
	}
	if !units[3].paraStart {
		t.Error("second paragraph start not flagged")
	}
	for _, u := range units {
		if text[u.start:u.end] != u.text {
			t.Errorf("unit offsets wrong: text[%d:%d] = %q, want %q", u.start, u.end, text[u.start:u.end], u.text)
		}
	}
}

func TestSentenceBoundaries(t *testing.T) {
	tests := []struct {
		text string
		want int // sentence count
	}{
		{"One sentence only.", 1},
		{"First one. Second one.", 2},
		{"Dr. Smith approved it. Then we shipped.", 2},
		{"Pi is 3.14 exactly. Next fact.", 2},
		{"E.g. this stays whole.", 1},
		{"日本語の文。次の文。", 2},
	}
	for _, tt := range tests {
		units := splitSentenceUnits(tt.text, 0)
		if len(units) != tt.want {
			got := make([]string, len(units))
			for i, u := range units {
				got[i] = u.text
			}
			t.Errorf("splitSentenceUnits(%q) = %d units %q, want %d", tt.text, len(units), got, tt.want)
		}
	}
}

func TestLastTokens(t *testing.T) {
	tests := []struct {
		text string
		n    int
		want string
	}{
		{"a b c d e", 2, "d e"},
		{"a b", 5, "a b"},
		{"a b c", 0, ""},
		{"", 3, ""},
	}
	for _, tt := range tests {
		if got := lastTokens(tt.text, tt.n); got != tt.want {
			t.Errorf("lastTokens(%q, %d) = %q, want %q", tt.text, tt.n, got, tt.want)
		}
	}
}
