// Package segment splits document pages into overlapping retrievable chunks.
package segment

import (
	"strings"

	"github.com/maane-ai/maane/internal/apperr"
	"github.com/maane-ai/maane/internal/models"
)

// pageSeparator joins consecutive pages into one text stream. Two newlines so
// the page boundary doubles as a paragraph break.
const pageSeparator = "\n\n"

// Segmenter produces overlapping character-window chunks with positional
// metadata. Offsets are rune offsets into the page-joined text.
//
// Each chunk nominally spans chunkSize runes; the window end may snap back to
// the nearest paragraph break, sentence end, or space found in the tail of the
// window (never shrinking the chunk below half its nominal size). The next
// chunk always starts exactly overlap runes before the previous chunk's end,
// so consecutive chunks overlap by exactly overlap runes regardless of
// snapping, and start offsets are strictly increasing.
type Segmenter struct {
	chunkSize int
	overlap   int
}

// New creates a segmenter. chunkSize must be positive and overlap must be in
// [0, chunkSize); violations are configuration errors rejected here, before
// any text is processed.
func New(chunkSize, overlap int) (*Segmenter, error) {
	if chunkSize <= 0 {
		return nil, apperr.Newf(apperr.CategoryConfiguration, "invalid segmentation settings",
			"chunk size must be positive, got %d", chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, apperr.Newf(apperr.CategoryConfiguration, "invalid segmentation settings",
			"overlap must be in [0, chunk size), got overlap=%d chunk size=%d", overlap, chunkSize)
	}
	return &Segmenter{chunkSize: chunkSize, overlap: overlap}, nil
}

// Segment splits the pages into chunks. Empty pages contribute no text;
// entirely empty input yields zero chunks, not an error.
func (s *Segmenter) Segment(pages []models.Page) []models.Chunk {
	text, pageStarts, pageNumbers := joinPages(pages)
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	minLen := s.chunkSize / 2
	if minLen <= s.overlap {
		minLen = s.overlap + 1
	}

	var chunks []models.Chunk
	start := 0
	for start < len(runes) {
		end := start + s.chunkSize
		last := false
		if end >= len(runes) {
			end = len(runes)
			last = true
		} else if cut := snapToBreak(runes, start+minLen, end); cut > 0 {
			end = cut
		}
		chunkText := strings.TrimSpace(string(runes[start:end]))
		if chunkText != "" {
			chunks = append(chunks, models.Chunk{
				Index: len(chunks),
				Page:  attributePage(start, end, pageStarts, pageNumbers),
				Start: start,
				End:   end,
				Text:  chunkText,
			})
		}
		if last {
			break
		}
		start = end - s.overlap
	}
	return chunks
}

// joinPages concatenates page texts and records, for each page with content,
// its start offset (in runes) in the joined text and its page number.
func joinPages(pages []models.Page) (string, []int, []int) {
	var b strings.Builder
	var starts, numbers []int
	offset := 0
	for _, p := range pages {
		t := strings.TrimSpace(p.Text)
		if t == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(pageSeparator)
			offset += len([]rune(pageSeparator))
		}
		starts = append(starts, offset)
		numbers = append(numbers, p.Number)
		b.WriteString(t)
		offset += len([]rune(t))
	}
	return b.String(), starts, numbers
}

// snapToBreak returns the best cut position in (lo, hi], preferring a
// paragraph break, then a sentence end, then any whitespace. Returns 0 when
// no break exists in the window.
func snapToBreak(runes []rune, lo, hi int) int {
	sentence := 0
	space := 0
	for i := hi - 1; i > lo; i-- {
		r := runes[i]
		if r == '\n' {
			if i > 0 && runes[i-1] == '\n' {
				return i // paragraph break
			}
			if space == 0 {
				space = i
			}
			continue
		}
		if sentence == 0 && (r == '.' || r == '!' || r == '?' || r == ':') && i+1 < len(runes) && isSpace(runes[i+1]) {
			sentence = i + 1
		}
		if space == 0 && isSpace(r) {
			space = i
		}
	}
	if sentence > lo {
		return sentence
	}
	return space
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t'
}

// attributePage returns the number of the page containing the majority of the
// span [start, end). Chunks spanning a page boundary go to whichever side
// holds more of their characters.
func attributePage(start, end int, pageStarts, pageNumbers []int) int {
	if len(pageStarts) == 0 {
		return 0
	}
	best := pageNumbers[0]
	bestCover := 0
	for i, ps := range pageStarts {
		pe := 1 << 30
		if i+1 < len(pageStarts) {
			pe = pageStarts[i+1]
		}
		cover := min(end, pe) - max(start, ps)
		if cover > bestCover {
			bestCover = cover
			best = pageNumbers[i]
		}
	}
	return best
}
