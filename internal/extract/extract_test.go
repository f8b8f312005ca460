package extract

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTika struct {
	text string
	err  error
}

func (f *fakeTika) ExtractText(_ context.Context, _ []byte, _ string) (string, error) {
	return f.text, f.err
}

func TestDetectKind(t *testing.T) {
	cases := []struct {
		mime, name string
		data       []byte
		want       Kind
	}{
		{"application/pdf", "x.bin", nil, KindPDF},
		{"application/pdf; charset=binary", "x.bin", nil, KindPDF},
		{"text/plain", "notes.txt", nil, KindTXT},
		{"", "notes.txt", nil, KindTXT},
		{"", "report.PDF", nil, KindPDF},
		{"", "memo.docx", nil, KindDOCX},
		{"image/png", "scan", nil, KindImage},
		{"", "scan.tiff", nil, KindImage},
		{"application/octet-stream", "mystery.bin", nil, KindOther},
		{"text/rtf", "doc.rtf", nil, KindRTF},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, DetectKind(c.mime, c.name, c.data), "%s %s", c.mime, c.name)
	}
}

func TestDetectKindRTFSniffOverridesMime(t *testing.T) {
	data := []byte(`{\rtf1\ansi hello}`)
	assert.Equal(t, KindRTF, DetectKind("text/plain", "mislabeled.txt", data))
	assert.Equal(t, KindRTF, DetectKind("application/pdf", "mislabeled.pdf", data))
}

func TestExtractTXT(t *testing.T) {
	e := New(&fakeTika{}, 0)
	res, err := e.Extract(context.Background(), []byte("hello world"), "text/plain", "a.txt")
	require.NoError(t, err)
	assert.Equal(t, KindTXT, res.Kind)
	require.Len(t, res.Pages, 1)
	assert.Equal(t, "hello world", res.Pages[0])
	assert.True(t, res.HasTextLayer)
	assert.False(t, res.NeedsOCR)
	assert.Equal(t, int64(11), res.TotalChars)
}

func TestExtractTXTInvalidUTF8(t *testing.T) {
	e := New(&fakeTika{}, 0)
	res, err := e.Extract(context.Background(), []byte{'h', 'i', 0xff, '!'}, "text/plain", "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "hi�!", res.Pages[0])
}

func TestExtractImage(t *testing.T) {
	e := New(&fakeTika{}, 0)
	res, err := e.Extract(context.Background(), []byte{0x89, 'P', 'N', 'G'}, "image/png", "scan.png")
	require.NoError(t, err)
	assert.Equal(t, KindImage, res.Kind)
	require.Len(t, res.Pages, 1)
	assert.Empty(t, res.Pages[0])
	assert.False(t, res.HasTextLayer)
	assert.True(t, res.NeedsOCR)
}

func TestExtractRTFUsesFallback(t *testing.T) {
	e := New(&fakeTika{text: "rtf body text"}, 0)
	res, err := e.Extract(context.Background(), []byte(`{\rtf1 body}`), "text/plain", "x.txt")
	require.NoError(t, err)
	assert.Equal(t, KindRTF, res.Kind)
	assert.Equal(t, "rtf body text", res.Pages[0])
	assert.True(t, res.HasTextLayer)
	assert.False(t, res.NeedsOCR)
}

func TestRepaginateShortText(t *testing.T) {
	pages := Repaginate("short", 100)
	require.Equal(t, []string{"short"}, pages)
}

func TestRepaginateWhitespaceOnly(t *testing.T) {
	assert.Nil(t, Repaginate("   \n\n  ", 100))
}

func TestRepaginatePrefersParagraphBreak(t *testing.T) {
	text := strings.Repeat("a", 60) + "\n\n" + strings.Repeat("b", 60)
	pages := Repaginate(text, 100)
	require.Len(t, pages, 2)
	assert.Equal(t, strings.Repeat("a", 60), pages[0])
	assert.Equal(t, strings.Repeat("b", 60), pages[1])
}

func TestRepaginateFallsBackToNewline(t *testing.T) {
	text := strings.Repeat("a", 60) + "\n" + strings.Repeat("b", 60)
	pages := Repaginate(text, 100)
	require.Len(t, pages, 2)
	assert.Equal(t, strings.Repeat("a", 60), pages[0])
}

func TestRepaginateHardCut(t *testing.T) {
	text := strings.Repeat("a", 250)
	pages := Repaginate(text, 100)
	require.Len(t, pages, 3)
	assert.Equal(t, 100, len(pages[0]))
	assert.Equal(t, 100, len(pages[1]))
	assert.Equal(t, 50, len(pages[2]))
}

func TestRepaginateMultibyteBoundaries(t *testing.T) {
	// rune offsets, not byte offsets, decide whether a break clears the
	// midpoint
	text := strings.Repeat("é", 45) + "\n\n" + strings.Repeat("b", 200)
	pages := Repaginate(text, 100)
	require.NotEmpty(t, pages)
	assert.Equal(t, 100, len([]rune(pages[0])), "break at rune 45 is before the midpoint")

	text = strings.Repeat("é", 60) + "\n\n" + strings.Repeat("b", 60)
	pages = Repaginate(text, 100)
	require.Len(t, pages, 2)
	assert.Equal(t, strings.Repeat("é", 60), pages[0])
	assert.Equal(t, strings.Repeat("b", 60), pages[1])
}

func TestRepaginateIgnoresBreakBeforeMidpoint(t *testing.T) {
	// the only paragraph break sits before the midpoint, so a hard cut wins
	text := strings.Repeat("a", 10) + "\n\n" + strings.Repeat("b", 200)
	pages := Repaginate(text, 100)
	require.NotEmpty(t, pages)
	assert.Equal(t, 100, len([]rune(pages[0])))
}
