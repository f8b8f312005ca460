package chunker

import "strings"

// Page is one source page feeding the chunker.
type Page struct {
	Num           int
	Text          string
	OCRUsed       bool
	OCRConfidence *float64
}

// PageOffset locates one page's text within the concatenation, in rune
// offsets. End is exclusive.
type PageOffset struct {
	PageNum int
	Start   int
	End     int
}

// Concat joins page texts with single newlines and records where each page
// landed in the joined text.
func Concat(pages []Page) (string, []PageOffset) {
	var b strings.Builder
	var total int
	offsets := make([]PageOffset, 0, len(pages))
	for i, p := range pages {
		if i > 0 {
			b.WriteByte('\n')
			total++
		}
		n := len([]rune(p.Text))
		offsets = append(offsets, PageOffset{PageNum: p.Num, Start: total, End: total + n})
		total += n
		b.WriteString(p.Text)
	}
	return b.String(), offsets
}

// PageRange maps a [start,end) rune span onto the pages it touches. A span
// falling entirely on a separator maps to the nearest page.
func PageRange(offsets []PageOffset, start, end int) (int, int) {
	if len(offsets) == 0 {
		return 0, 0
	}
	first, last := offsets[0].PageNum, offsets[len(offsets)-1].PageNum
	for _, o := range offsets {
		if o.End > start {
			first = o.PageNum
			break
		}
	}
	for i := len(offsets) - 1; i >= 0; i-- {
		if offsets[i].Start < end {
			last = offsets[i].PageNum
			break
		}
	}
	if last < first {
		last = first
	}
	return first, last
}

// AggregateOCR reports whether any page in [pageStart,pageEnd] used OCR and
// the mean confidence over pages that have one.
func AggregateOCR(pages []Page, pageStart, pageEnd int) (bool, *float64) {
	var used bool
	var sum float64
	var n int
	for _, p := range pages {
		if p.Num < pageStart || p.Num > pageEnd {
			continue
		}
		if p.OCRUsed {
			used = true
		}
		if p.OCRConfidence != nil {
			sum += *p.OCRConfidence
			n++
		}
	}
	if n == 0 {
		return used, nil
	}
	mean := sum / float64(n)
	return used, &mean
}
