// Package text splits normalized legal document text into bounded,
// overlapping chunks and extracts human-readable section locators.
package text

import (
	"regexp"
	"strings"
)

type Chunk struct {
	Text       string
	Index      int
	SectionRef string
}

// sectionRe matches locators like "Article 15", "Section 3A", "Rule 8",
// "Part 2", "Schedule 1". The locator nearest before (or inside) a chunk
// becomes its SectionRef.
var sectionRe = regexp.MustCompile(`(?i)\b(Article|Section|Rule|Part|Chapter|Clause|Schedule|Regulation)\s+(\d+[A-Za-z]?)\b`)

var whitespaceRe = regexp.MustCompile(`[ \t]+`)

// Normalize collapses runs of spaces/tabs and normalizes line endings so
// chunk boundaries are stable across re-ingestion of the same source.
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Split cuts text into chunks of at most size characters with the given
// overlap between consecutive chunks. Cuts prefer the last whitespace
// inside the window so words stay intact. Chunk indexes are contiguous
// from zero. Overlap must be smaller than size; callers validate via
// config, but a bad pair degrades to no overlap rather than looping.
func Split(raw string, size, overlap int) []Chunk {
	text := Normalize(raw)
	if text == "" {
		return nil
	}
	if size <= 0 {
		size = 800
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	sections := sectionLocators(text)

	var chunks []Chunk
	start := 0
	for start < len(text) {
		end := start + size
		if end >= len(text) {
			end = len(text)
		} else {
			// Cut on whitespace where possible; keep at least half the
			// window so pathological unbroken text still advances.
			if idx := strings.LastIndexAny(text[start:end], " \n"); idx > size/2 {
				end = start + idx
			}
		}

		piece := strings.TrimSpace(text[start:end])
		if piece != "" {
			chunks = append(chunks, Chunk{
				Text:       piece,
				Index:      len(chunks),
				SectionRef: sectionBefore(sections, start),
			})
		}

		if end == len(text) {
			break
		}
		next := end - overlap
		if next <= start {
			// Guarantee forward progress when overlap eats the whole window.
			next = end
		}
		// Realign to a word boundary so overlap never restarts mid-word.
		if sp := strings.LastIndexAny(text[start:next], " \n"); sp >= 0 && start+sp+1 > start {
			next = start + sp + 1
		}
		start = next
		for start < len(text) && (text[start] == ' ' || text[start] == '\n') {
			start++
		}
	}

	return chunks
}

type locator struct {
	offset int
	ref    string
}

func sectionLocators(text string) []locator {
	matches := sectionRe.FindAllStringSubmatchIndex(text, -1)
	locs := make([]locator, 0, len(matches))
	for _, m := range matches {
		ref := text[m[0]:m[1]]
		// Normalize the keyword casing ("ARTICLE 15" -> "Article 15").
		parts := strings.Fields(ref)
		parts[0] = strings.ToUpper(parts[0][:1]) + strings.ToLower(parts[0][1:])
		locs = append(locs, locator{offset: m[0], ref: strings.Join(parts, " ")})
	}
	return locs
}

// sectionBefore returns the last locator at or before the given offset,
// falling back to the first locator inside the window when the chunk
// starts ahead of any heading.
func sectionBefore(locs []locator, offset int) string {
	ref := ""
	for _, l := range locs {
		if l.offset > offset {
			if ref == "" {
				// No heading seen yet; the first upcoming one names this span.
				return l.ref
			}
			break
		}
		ref = l.ref
	}
	return ref
}
