// Package extract turns an uploaded binary into page text. Each supported
// format has a native reader; everything else goes through Tika.
package extract

import (
	"context"
	"fmt"
	"strings"
	"unicode"
)

// DefaultSyntheticPageChars bounds re-paginated page length.
const DefaultSyntheticPageChars = 4000

// pdfMinChars and pdfMinAlphaRatio decide when a PDF's native text layer is
// too thin to trust and OCR should run.
const (
	pdfMinChars      = 500
	pdfMinAlphaRatio = 0.20
)

// TextExtractor is the fallback path for formats without a native reader.
type TextExtractor interface {
	ExtractText(ctx context.Context, data []byte, contentType string) (string, error)
}

// Result is the outcome of extraction: page texts plus the text-layer verdict.
type Result struct {
	Kind         Kind
	Pages        []string
	HasTextLayer bool
	NeedsOCR     bool
	TotalChars   int64
}

// Extractor dispatches a blob to the right reader.
type Extractor struct {
	Fallback           TextExtractor
	SyntheticPageChars int
}

// New builds an Extractor with the given Tika fallback.
func New(fallback TextExtractor, syntheticPageChars int) *Extractor {
	if syntheticPageChars <= 0 {
		syntheticPageChars = DefaultSyntheticPageChars
	}
	return &Extractor{Fallback: fallback, SyntheticPageChars: syntheticPageChars}
}

// Extract reads the blob and produces page text. Images yield one empty page
// and defer their text to OCR.
func (e *Extractor) Extract(ctx context.Context, data []byte, mimeType, filename string) (*Result, error) {
	kind := DetectKind(mimeType, filename, data)

	var pages []string
	switch kind {
	case KindPDF:
		var err error
		pages, err = pdfPages(data)
		if err != nil {
			return nil, fmt.Errorf("extract pdf: %w", err)
		}
	case KindDOCX:
		text, err := docxText(data)
		if err != nil {
			return nil, fmt.Errorf("extract docx: %w", err)
		}
		pages = Repaginate(text, e.SyntheticPageChars)
	case KindTXT:
		pages = Repaginate(txtText(data), e.SyntheticPageChars)
	case KindImage:
		pages = []string{""}
	default: // KindRTF and KindOther go through Tika
		text, err := e.Fallback.ExtractText(ctx, data, mimeType)
		if err != nil {
			return nil, fmt.Errorf("extract via tika: %w", err)
		}
		pages = Repaginate(text, e.SyntheticPageChars)
	}
	if len(pages) == 0 {
		pages = []string{""}
	}

	res := &Result{Kind: kind, Pages: pages}
	var total int64
	var alpha int64
	for _, p := range pages {
		for _, r := range p {
			total++
			if unicode.IsLetter(r) {
				alpha++
			}
		}
	}
	res.TotalChars = total

	switch kind {
	case KindImage:
		res.HasTextLayer = false
		res.NeedsOCR = true
	case KindPDF:
		res.HasTextLayer = total > 0
		ratio := 0.0
		if total > 0 {
			ratio = float64(alpha) / float64(total)
		}
		res.NeedsOCR = total < pdfMinChars || ratio < pdfMinAlphaRatio
	case KindDOCX, KindTXT, KindRTF:
		res.HasTextLayer = true
		res.NeedsOCR = false
	default:
		res.HasTextLayer = total > 0
		res.NeedsOCR = false
	}
	return res, nil
}

// txtText decodes bytes as UTF-8, substituting the replacement rune for
// invalid sequences.
func txtText(data []byte) string {
	return strings.ToValidUTF8(string(data), "�")
}
