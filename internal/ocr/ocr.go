// Package ocr recognizes text in scans by shelling out to the tesseract
// binary. PDFs are rasterized page by page before recognition.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/gen2brain/go-fitz"
)

// Defaults for the engine; overridable through config.
const (
	DefaultBinary    = "tesseract"
	DefaultLanguages = "eng+fra"
	DefaultDPI       = 300
)

// Engine runs tesseract against images and rasterized PDF pages.
type Engine struct {
	Binary    string
	Languages string
	DPI       int
}

// New builds an Engine, filling zero fields with defaults.
func New(binary, languages string, dpi int) *Engine {
	if binary == "" {
		binary = DefaultBinary
	}
	if languages == "" {
		languages = DefaultLanguages
	}
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	return &Engine{Binary: binary, Languages: languages, DPI: dpi}
}

// run recognizes a single image file and returns its text with the average
// word confidence.
func (e *Engine) run(ctx context.Context, imagePath string) (string, float64, error) {
	cmd := exec.CommandContext(ctx, e.Binary, imagePath, "stdout", "-l", e.Languages, "tsv")
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", 0, fmt.Errorf("tesseract: %w: %s", err, stderr.String())
	}
	text, conf := parseTSV(out.String())
	return text, conf, nil
}

// RecognizeImage OCRs a standalone image blob.
func (e *Engine) RecognizeImage(ctx context.Context, data []byte) (string, float64, error) {
	dir, err := os.MkdirTemp("", "carrel-ocr-")
	if err != nil {
		return "", 0, fmt.Errorf("temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "input")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", 0, fmt.Errorf("write image: %w", err)
	}
	return e.run(ctx, path)
}

// PageResult is one recognized PDF page.
type PageResult struct {
	PageNum    int // 1-based
	Text       string
	Confidence float64
}

// RecognizePDF rasterizes each PDF page and OCRs it, invoking fn after every
// page so the caller can record progress. Stops on the first error.
func (e *Engine) RecognizePDF(ctx context.Context, data []byte, fn func(page PageResult, total int) error) error {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	dir, err := os.MkdirTemp("", "carrel-ocr-")
	if err != nil {
		return fmt.Errorf("temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	total := doc.NumPage()
	for n := 0; n < total; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		img, err := doc.ImageDPI(n, float64(e.DPI))
		if err != nil {
			return fmt.Errorf("rasterize page %d: %w", n+1, err)
		}
		path := filepath.Join(dir, fmt.Sprintf("page-%d.png", n+1))
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create page image: %w", err)
		}
		if err := png.Encode(f, img); err != nil {
			f.Close()
			return fmt.Errorf("encode page %d: %w", n+1, err)
		}
		f.Close()

		text, conf, err := e.run(ctx, path)
		if err != nil {
			return fmt.Errorf("ocr page %d: %w", n+1, err)
		}
		if err := fn(PageResult{PageNum: n + 1, Text: text, Confidence: conf}, total); err != nil {
			return err
		}
		os.Remove(path)
	}
	return nil
}
