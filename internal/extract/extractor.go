// Package extract turns raw document bytes into per-page text.
package extract

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/maane-ai/maane/internal/models"
)

// Extractor produces page text from raw document bytes. The PDF implementation
// is the only one shipped; tests substitute their own.
type Extractor interface {
	Extract(content []byte) ([]models.Page, error)
}

var multiBlank = regexp.MustCompile(`\n{3,}`)

// CleanText normalizes extracted page text: NFC normalization (Hebrew combining
// marks arrive decomposed from some producers), trimmed lines, and at most one
// blank line between paragraphs.
func CleanText(text string) string {
	text = norm.NFC.String(text)
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			kept = append(kept, line)
		}
	}
	cleaned := strings.Join(kept, "\n")
	return multiBlank.ReplaceAllString(cleaned, "\n\n")
}

// HasText reports whether any page carries non-whitespace content.
func HasText(pages []models.Page) bool {
	for _, p := range pages {
		if strings.TrimSpace(p.Text) != "" {
			return true
		}
	}
	return false
}
