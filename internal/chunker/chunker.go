// Package chunker cuts a version's concatenated page text into overlapping
// search windows, preferring natural boundaries over hard cuts.
package chunker

import "strings"

// Window sizing defaults; overridable through config.
const (
	DefaultTargetChars  = 1000
	DefaultOverlapChars = 150
)

// Window is one chunk-to-be: its text and rune offsets in the concatenated
// page text.
type Window struct {
	Num       int
	Text      string
	CharStart int
	CharEnd   int
}

// SplitText cuts text into windows of roughly target runes with the given
// overlap. Boundary preference within a window, always past its midpoint:
// paragraph break, then sentence terminator followed by whitespace, then
// space, then a hard cut. Whitespace-only windows are dropped; numbering is
// contiguous over the kept windows.
func SplitText(text string, target, overlap int) []Window {
	if target <= 0 {
		target = DefaultTargetChars
	}
	if overlap < 0 || overlap >= target {
		overlap = DefaultOverlapChars
	}
	runes := []rune(text)

	var out []Window
	start := 0
	for start < len(runes) {
		end := start + target
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = start + cutPoint(runes[start:end])
		}

		w := string(runes[start:end])
		if strings.TrimSpace(w) != "" {
			out = append(out, Window{
				Num:       len(out),
				Text:      w,
				CharStart: start,
				CharEnd:   end,
			})
		}

		if end >= len(runes) {
			break
		}
		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

// cutPoint picks the end of a full-size window, as a rune offset into it.
func cutPoint(window []rune) int {
	mid := len(window) / 2

	if i := lastParagraphBreak(window); i > mid {
		return i
	}
	if i := lastSentenceEnd(window); i > mid {
		return i
	}
	if i := lastSpace(window); i > mid {
		return i
	}
	return len(window)
}

func lastParagraphBreak(window []rune) int {
	for i := len(window) - 1; i > 0; i-- {
		if window[i] == '\n' && window[i-1] == '\n' {
			return i + 1
		}
	}
	return -1
}

func lastSentenceEnd(window []rune) int {
	for i := len(window) - 1; i > 0; i-- {
		if isSpace(window[i]) && isSentenceTerminator(window[i-1]) {
			return i + 1
		}
	}
	return -1
}

func lastSpace(window []rune) int {
	for i := len(window) - 1; i >= 0; i-- {
		if isSpace(window[i]) {
			return i + 1
		}
	}
	return -1
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

func isSentenceTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
