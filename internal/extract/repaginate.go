package extract

import "strings"

// Repaginate splits continuous text into synthetic pages of at most maxChars.
// Within each window it prefers breaking at a paragraph boundary past the
// midpoint, then at a single newline, and hard-cuts only as a last resort.
func Repaginate(text string, maxChars int) []string {
	if maxChars <= 0 {
		maxChars = DefaultSyntheticPageChars
	}
	runes := []rune(text)
	if len(runes) <= maxChars {
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return []string{text}
	}

	var pages []string
	for len(runes) > 0 {
		if len(runes) <= maxChars {
			if strings.TrimSpace(string(runes)) != "" {
				pages = append(pages, string(runes))
			}
			break
		}
		window := runes[:maxChars]
		mid := maxChars / 2

		// break offsets are rune indexes so multibyte text measures the
		// same as the window itself
		cut := -1
		if i := lastParagraphBreak(window); i >= mid {
			cut = i
		} else if i := lastNewline(window); i >= mid {
			cut = i
		}

		var page string
		if cut >= 0 {
			page = string(window[:cut])
			runes = runes[cut:]
			// consume the break itself so the next page starts on content
			for len(runes) > 0 && runes[0] == '\n' {
				runes = runes[1:]
			}
		} else {
			page = string(window)
			runes = runes[maxChars:]
		}
		if strings.TrimSpace(page) != "" {
			pages = append(pages, page)
		}
	}
	return pages
}

// lastParagraphBreak returns the rune offset of the first newline of the
// last "\n\n" pair in the window, or -1.
func lastParagraphBreak(window []rune) int {
	for i := len(window) - 1; i > 0; i-- {
		if window[i] == '\n' && window[i-1] == '\n' {
			return i - 1
		}
	}
	return -1
}

func lastNewline(window []rune) int {
	for i := len(window) - 1; i >= 0; i-- {
		if window[i] == '\n' {
			return i
		}
	}
	return -1
}
