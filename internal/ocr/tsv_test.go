package ocr

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const tsvHeader = "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext"

func tsvRow(level, block, par, line int, conf, text string) string {
	return strings.Join([]string{
		itoa(level), "1", itoa(block), itoa(par), itoa(line), "1",
		"0", "0", "10", "10", conf, text,
	}, "\t")
}

func itoa(n int) string {
	return string(rune('0' + n))
}

func TestParseTSVJoinsWordsAndLines(t *testing.T) {
	out := strings.Join([]string{
		tsvHeader,
		tsvRow(5, 1, 1, 1, "91.5", "Hello"),
		tsvRow(5, 1, 1, 1, "88.5", "world"),
		tsvRow(5, 1, 1, 2, "70.0", "again"),
	}, "\n")

	text, conf := parseTSV(out)
	assert.Equal(t, "Hello world\nagain", text)
	assert.InDelta(t, 83.33, conf, 0.01)
}

func TestParseTSVIgnoresNegativeConfidence(t *testing.T) {
	out := strings.Join([]string{
		tsvHeader,
		tsvRow(5, 1, 1, 1, "-1", "ghost"),
		tsvRow(5, 1, 1, 1, "80", "real"),
	}, "\n")

	text, conf := parseTSV(out)
	assert.Equal(t, "ghost real", text)
	assert.Equal(t, 80.0, conf)
}

func TestParseTSVSkipsNonWordLevels(t *testing.T) {
	out := strings.Join([]string{
		tsvHeader,
		tsvRow(4, 1, 1, 1, "-1", ""),
		tsvRow(5, 1, 1, 1, "95", "word"),
	}, "\n")

	text, conf := parseTSV(out)
	assert.Equal(t, "word", text)
	assert.Equal(t, 95.0, conf)
}

func TestParseTSVEmptyOutput(t *testing.T) {
	text, conf := parseTSV(tsvHeader + "\n")
	assert.Empty(t, text)
	assert.Zero(t, conf)
}
