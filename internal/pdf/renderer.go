// Package pdf converts rendered HTML into PDF documents.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	wkhtmltopdf "github.com/SebastiaanKlippert/go-wkhtmltopdf"
)

// ErrUnavailable means no PDF backend could be started, typically because
// the wkhtmltopdf binary is missing.
var ErrUnavailable = errors.New("pdf renderer unavailable")

// Renderer turns a complete HTML document into PDF bytes.
type Renderer interface {
	Render(ctx context.Context, html []byte) ([]byte, error)
}

// Options controls page layout.
type Options struct {
	// BinaryPath overrides the wkhtmltopdf lookup in PATH and the
	// WKHTMLTOPDF_PATH environment variable.
	BinaryPath string
	PageSize   string
	Dpi        uint
	Margin     uint
	Title      string
}

func DefaultOptions() Options {
	return Options{
		PageSize: wkhtmltopdf.PageSizeA4,
		Dpi:      150,
		Margin:   10,
		Title:    "Expense report",
	}
}

// Wkhtmltopdf renders through the wkhtmltopdf command line tool.
type Wkhtmltopdf struct {
	opts Options
}

var setPathOnce sync.Once

func NewWkhtmltopdf(opts Options) *Wkhtmltopdf {
	if opts.BinaryPath != "" {
		// The library keeps the binary path in a package variable.
		setPathOnce.Do(func() { wkhtmltopdf.SetPath(opts.BinaryPath) })
	}
	if opts.PageSize == "" {
		opts.PageSize = wkhtmltopdf.PageSizeA4
	}
	return &Wkhtmltopdf{opts: opts}
}

// Available reports whether the wkhtmltopdf binary can be located.
func (w *Wkhtmltopdf) Available() error {
	if _, err := wkhtmltopdf.NewPDFGenerator(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (w *Wkhtmltopdf) Render(ctx context.Context, html []byte) ([]byte, error) {
	gen, err := wkhtmltopdf.NewPDFGenerator()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	gen.PageSize.Set(w.opts.PageSize)
	gen.Orientation.Set(wkhtmltopdf.OrientationPortrait)
	if w.opts.Dpi > 0 {
		gen.Dpi.Set(w.opts.Dpi)
	}
	if w.opts.Title != "" {
		gen.Title.Set(w.opts.Title)
	}
	gen.MarginTop.Set(w.opts.Margin)
	gen.MarginBottom.Set(w.opts.Margin)
	gen.MarginLeft.Set(w.opts.Margin)
	gen.MarginRight.Set(w.opts.Margin)

	page := wkhtmltopdf.NewPageReader(bytes.NewReader(html))
	page.Encoding.Set("UTF-8")
	page.DisableExternalLinks.Set(true)
	gen.AddPage(page)

	if err := gen.CreateContext(ctx); err != nil {
		return nil, fmt.Errorf("create pdf: %w", err)
	}
	return gen.Bytes(), nil
}

// Func adapts a function to Renderer.
type Func func(ctx context.Context, html []byte) ([]byte, error)

func (f Func) Render(ctx context.Context, html []byte) ([]byte, error) {
	return f(ctx, html)
}
