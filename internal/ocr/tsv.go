package ocr

import (
	"strconv"
	"strings"
)

// tsv column layout emitted by `tesseract ... tsv`.
const (
	colLevel   = 0
	colBlock   = 2
	colPar     = 3
	colLine    = 4
	colConf    = 10
	colText    = 11
	wordLevel  = 5
	tsvColumns = 12
)

// parseTSV reconstructs recognized text from tesseract's TSV output and
// returns it with the average per-word confidence. Words tesseract marks
// with negative confidence (layout artifacts) are excluded from the average
// but kept in the text.
func parseTSV(out string) (string, float64) {
	var text strings.Builder
	var confSum float64
	var confCount int
	lastLine := ""

	for i, line := range strings.Split(out, "\n") {
		if i == 0 || strings.TrimSpace(line) == "" {
			continue // header
		}
		fields := strings.Split(line, "\t")
		if len(fields) < tsvColumns {
			continue
		}
		if fields[colLevel] != strconv.Itoa(wordLevel) {
			continue
		}
		word := fields[colText]
		if strings.TrimSpace(word) == "" {
			continue
		}

		lineKey := fields[colBlock] + "/" + fields[colPar] + "/" + fields[colLine]
		if text.Len() > 0 {
			if lineKey != lastLine {
				text.WriteByte('\n')
			} else {
				text.WriteByte(' ')
			}
		}
		text.WriteString(word)
		lastLine = lineKey

		if conf, err := strconv.ParseFloat(fields[colConf], 64); err == nil && conf >= 0 {
			confSum += conf
			confCount++
		}
	}

	avg := 0.0
	if confCount > 0 {
		avg = confSum / float64(confCount)
	}
	return text.String(), avg
}
