package extract

import (
	"fmt"

	"github.com/gen2brain/go-fitz"
)

// pdfPages extracts the native text layer, one entry per source page. Pages
// without a text layer come back empty; OCR fills them later.
func pdfPages(data []byte) ([]string, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	pages := make([]string, 0, doc.NumPage())
	for n := 0; n < doc.NumPage(); n++ {
		text, err := doc.Text(n)
		if err != nil {
			return nil, fmt.Errorf("page %d text: %w", n+1, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}
