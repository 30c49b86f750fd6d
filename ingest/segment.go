package ingest

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// unit is one atomic span of source text: a sentence, or a heading line.
// Offsets are byte positions into the original document text.
type unit struct {
	text      string
	start     int
	end       int
	tokens    int
	heading   bool // markdown-style heading line
	paraStart bool // first unit of a paragraph
}

// countTokens approximates the token count of s as its whitespace-separated
// word count.
func countTokens(s string) int {
	return len(strings.Fields(s))
}

// segmentUnits splits document text into sentence units with byte offsets,
// paragraph-start flags, and heading detection. Paragraphs are blocks
// separated by blank lines.
func segmentUnits(text string) []unit {
	var units []unit
	offset := 0
	for _, block := range strings.Split(text, "\n\n") {
		blockStart := offset
		offset += len(block) + 2 // account for the consumed separator

		trimmed := strings.TrimSpace(block)
		if trimmed == "" {
			continue
		}
		base := blockStart + strings.Index(block, trimmed)

		first := true
		if isHeadingLine(trimmed) {
			units = append(units, unit{
				text:      trimmed,
				start:     base,
				end:       base + len(trimmed),
				tokens:    countTokens(trimmed),
				heading:   true,
				paraStart: true,
			})
			continue
		}

		for _, u := range splitSentenceUnits(trimmed, base) {
			u.paraStart = first
			first = false
			units = append(units, u)
		}
	}
	return units
}

// isHeadingLine reports whether a paragraph block is a single heading line:
// a markdown hash heading, or a short line without terminal punctuation.
func isHeadingLine(block string) bool {
	if strings.ContainsRune(block, '\n') {
		return false
	}
	if strings.HasPrefix(block, "#") {
		return true
	}
	words := strings.Fields(block)
	if len(words) == 0 || len(words) > 8 {
		return false
	}
	last, _ := utf8.DecodeLastRuneInString(block)
	return !strings.ContainsRune(".!?。！？:;,", last)
}

// splitSentenceUnits splits one paragraph into sentence units; base is the
// paragraph's byte offset into the whole document.
func splitSentenceUnits(text string, base int) []unit {
	var units []unit
	start := 0
	emit := func(end int) {
		seg := text[start:end]
		trimmed := strings.TrimSpace(seg)
		if trimmed == "" {
			start = end
			return
		}
		lead := strings.Index(seg, trimmed)
		units = append(units, unit{
			text:   trimmed,
			start:  base + start + lead,
			end:    base + start + lead + len(trimmed),
			tokens: countTokens(trimmed),
		})
		start = end
	}
	for _, b := range sentenceBoundaries(text) {
		emit(b)
	}
	emit(len(text))
	return units
}

// abbreviations that should NOT be treated as sentence boundaries.
var abbreviations = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true,
	"prof": true, "sr": true, "jr": true,
	"vs": true, "etc": true, "inc": true, "ltd": true,
	"e.g": true, "i.e": true, "viz": true, "al": true,
	"approx": true, "dept": true, "est": true,
	"fig": true, "no": true, "vol": true,
}

// sentenceBoundaries returns byte positions where text may be split into
// sentences. ASCII terminators (.!?) are boundary candidates unless they end
// an abbreviation or sit inside a decimal number; CJK terminators (。！？)
// always bound.
func sentenceBoundaries(text string) []int {
	var boundaries []int
	runes := []rune(text)
	n := len(runes)

	byteOffsets := make([]int, n+1)
	off := 0
	for i, r := range runes {
		byteOffsets[i] = off
		off += utf8.RuneLen(r)
	}
	byteOffsets[n] = off

	for i := 0; i < n; i++ {
		r := runes[i]

		if r == '。' || r == '！' || r == '？' {
			boundaries = append(boundaries, byteOffsets[i+1])
			continue
		}
		if r != '.' && r != '!' && r != '?' {
			continue
		}

		pos := byteOffsets[i]
		if r == '.' && (isDecimalDot(text, pos) || endsAbbreviation(text, pos)) {
			continue
		}

		// A boundary needs whitespace after the terminator.
		if i+1 < n && (runes[i+1] == ' ' || runes[i+1] == '\n') {
			boundaries = append(boundaries, byteOffsets[i+1])
		}
	}
	return boundaries
}

// endsAbbreviation checks whether the word ending at the dot is a common
// abbreviation like Mr. or e.g.
func endsAbbreviation(text string, dotPos int) bool {
	start := dotPos
	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(text[:start])
		if !unicode.IsLetter(r) && r != '.' {
			break
		}
		start -= size
	}
	return abbreviations[strings.ToLower(text[start:dotPos])]
}

// isDecimalDot checks whether the dot sits inside a number like 3.14.
func isDecimalDot(text string, dotPos int) bool {
	if dotPos == 0 || dotPos+1 >= len(text) {
		return false
	}
	prev, next := text[dotPos-1], text[dotPos+1]
	return prev >= '0' && prev <= '9' && next >= '0' && next <= '9'
}

// lastTokens returns the trailing n whitespace-separated tokens of text,
// re-joined with single spaces.
func lastTokens(text string, n int) string {
	if n <= 0 {
		return ""
	}
	fields := strings.Fields(text)
	if len(fields) <= n {
		return strings.Join(fields, " ")
	}
	return strings.Join(fields[len(fields)-n:], " ")
}
