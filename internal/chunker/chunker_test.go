package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitTextShort(t *testing.T) {
	ws := SplitText("just a little text", 1000, 150)
	require.Len(t, ws, 1)
	assert.Equal(t, 0, ws[0].Num)
	assert.Equal(t, "just a little text", ws[0].Text)
	assert.Equal(t, 0, ws[0].CharStart)
	assert.Equal(t, 18, ws[0].CharEnd)
}

func TestSplitTextWhitespaceOnly(t *testing.T) {
	assert.Nil(t, SplitText("  \n\n \t ", 1000, 150))
}

func TestSplitTextPrefersParagraphBreak(t *testing.T) {
	text := strings.Repeat("a", 70) + "\n\n" + strings.Repeat("b", 300)
	ws := SplitText(text, 100, 10)
	require.True(t, len(ws) >= 2)
	// first window ends right after the paragraph break, not at the hard limit
	assert.Equal(t, 72, ws[0].CharEnd)
	assert.True(t, strings.HasSuffix(ws[0].Text, "\n\n"))
}

func TestSplitTextPrefersSentenceBoundary(t *testing.T) {
	text := strings.Repeat("a", 70) + ". " + strings.Repeat("b", 300)
	ws := SplitText(text, 100, 10)
	require.True(t, len(ws) >= 2)
	assert.Equal(t, 72, ws[0].CharEnd)
	assert.True(t, strings.HasSuffix(ws[0].Text, ". "))
}

func TestSplitTextFallsBackToSpace(t *testing.T) {
	text := strings.Repeat("a", 70) + " " + strings.Repeat("b", 300)
	ws := SplitText(text, 100, 10)
	require.True(t, len(ws) >= 2)
	assert.Equal(t, 71, ws[0].CharEnd)
}

func TestSplitTextHardCut(t *testing.T) {
	text := strings.Repeat("x", 250)
	ws := SplitText(text, 100, 10)
	require.True(t, len(ws) >= 2)
	assert.Equal(t, 100, ws[0].CharEnd)
}

func TestSplitTextOverlap(t *testing.T) {
	text := strings.Repeat("x", 300)
	ws := SplitText(text, 100, 30)
	require.True(t, len(ws) >= 2)
	assert.Equal(t, ws[0].CharEnd-30, ws[1].CharStart)
}

func TestSplitTextNumbersAreContiguous(t *testing.T) {
	text := strings.Repeat("word and more text. ", 200)
	ws := SplitText(text, 100, 20)
	for i, w := range ws {
		assert.Equal(t, i, w.Num)
	}
}

func TestSplitTextIgnoresBoundaryBeforeMidpoint(t *testing.T) {
	// only boundary is early in the window, so the cut is hard
	text := "ab cd" + strings.Repeat("x", 300)
	ws := SplitText(text, 100, 10)
	require.NotEmpty(t, ws)
	assert.Equal(t, 100, ws[0].CharEnd)
}

func TestConcatOffsets(t *testing.T) {
	joined, offsets := Concat([]Page{
		{Num: 1, Text: "abc"},
		{Num: 2, Text: "defgh"},
		{Num: 3, Text: "ij"},
	})
	assert.Equal(t, "abc\ndefgh\nij", joined)
	require.Len(t, offsets, 3)
	assert.Equal(t, PageOffset{PageNum: 1, Start: 0, End: 3}, offsets[0])
	assert.Equal(t, PageOffset{PageNum: 2, Start: 4, End: 9}, offsets[1])
	assert.Equal(t, PageOffset{PageNum: 3, Start: 10, End: 12}, offsets[2])
}

func TestPageRange(t *testing.T) {
	_, offsets := Concat([]Page{
		{Num: 1, Text: "abc"},
		{Num: 2, Text: "defgh"},
		{Num: 3, Text: "ij"},
	})

	first, last := PageRange(offsets, 0, 3)
	assert.Equal(t, 1, first)
	assert.Equal(t, 1, last)

	first, last = PageRange(offsets, 2, 11)
	assert.Equal(t, 1, first)
	assert.Equal(t, 3, last)

	first, last = PageRange(offsets, 5, 8)
	assert.Equal(t, 2, first)
	assert.Equal(t, 2, last)
}

func TestAggregateOCR(t *testing.T) {
	conf := func(v float64) *float64 { return &v }
	pages := []Page{
		{Num: 1, OCRUsed: true, OCRConfidence: conf(80)},
		{Num: 2, OCRUsed: false},
		{Num: 3, OCRUsed: true, OCRConfidence: conf(60)},
	}

	used, mean := AggregateOCR(pages, 1, 3)
	assert.True(t, used)
	require.NotNil(t, mean)
	assert.Equal(t, 70.0, *mean)

	used, mean = AggregateOCR(pages, 2, 2)
	assert.False(t, used)
	assert.Nil(t, mean)
}

func TestDetectLanguageDefaultsToEnglish(t *testing.T) {
	assert.Equal(t, LangEnglish, DetectLanguage("short"))
	assert.Equal(t, LangEnglish, DetectLanguage("The quick brown fox jumps over the lazy dog near the river bank."))
}

func TestDetectLanguageFrench(t *testing.T) {
	text := "Les documents sont traités par une chaîne d'ingestion qui extrait le texte, " +
		"découpe les pages en fragments et calcule les vecteurs pour la recherche sémantique."
	assert.Equal(t, LangFrench, DetectLanguage(text))
}
