package extract

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"

	"github.com/maane-ai/maane/internal/apperr"
	"github.com/maane-ai/maane/internal/models"
)

// PDFExtractor extracts per-page text from PDF bytes.
type PDFExtractor struct{}

// NewPDFExtractor returns the PDF page extractor.
func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// Extract reads content as a PDF and returns one Page per document page.
// Pages without extractable text are returned with empty text rather than
// dropped so page numbering stays aligned with the source.
func (e *PDFExtractor) Extract(content []byte) ([]models.Page, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, apperr.Wrap(apperr.CategoryExtraction, "unsupported or corrupt document", err)
	}
	numPages := r.NumPage()
	pages := make([]models.Page, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			pages = append(pages, models.Page{Number: i})
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, apperr.Wrap(apperr.CategoryExtraction,
				fmt.Sprintf("failed to extract text from page %d", i), err)
		}
		pages = append(pages, models.Page{Number: i, Text: CleanText(text)})
	}
	if !HasText(pages) {
		return nil, apperr.New(apperr.CategoryExtraction,
			"no text could be extracted from the document; it might be a scanned image")
	}
	return pages, nil
}
