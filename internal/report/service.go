// Package report builds expense summaries and renders them as HTML, JSON
// data or PDF.
package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"expenses/internal/cache"
	"expenses/internal/core"
	"expenses/internal/log"
	"expenses/internal/pdf"
)

const (
	TemplateHTML = "report.html"
	TemplatePDF  = "report_pdf.html"

	// GeneratedAtLayout formats the generation timestamp, e.g. 15.01.2024 14:30.
	GeneratedAtLayout = "02.01.2006 15:04"

	summaryKey = "summary"
	pdfKey     = "pdf"

	// Shared work outlives the request that started it, bounded by these.
	summaryTimeout = 30 * time.Second
	renderTimeout  = 2 * time.Minute
)

var ErrNoRenderer = errors.New("no pdf renderer configured")

//go:generate mockgen -destination=store_mock.go -package=report . Store
type Store interface {
	Totals(ctx context.Context) (core.Stat, error)
	SumByMonth(ctx context.Context) ([]core.MonthStat, error)
	SumByCategory(ctx context.Context) ([]core.CategoryStat, error)
	SumByMonthCategory(ctx context.Context) ([]core.MonthCategoryStat, error)
	ListByMonthPrefix(ctx context.Context, prefix string) ([]core.Expense, error)
}

// View is the data handed to the report templates.
type View struct {
	Summary     core.Summary
	Month       string
	Records     []core.Expense
	GeneratedAt string
	CurrentYear int
}

type Service struct {
	store     Store
	templates *template.Template
	renderer  pdf.Renderer
	cache     *cache.LRUCache[cachedSummary]
	flight    singleflight.Group
	mu        sync.Mutex // orders Invalidate against cache writes
	gen       atomic.Uint64
	logger    *log.Logger
	now       func() time.Time
}

type Option func(*Service)

func WithRenderer(r pdf.Renderer) Option {
	return func(s *Service) { s.renderer = r }
}

// WithCacheTTL sets how long a computed summary is reused. Zero disables
// caching.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Service) { s.cache = cache.NewLRUCache[cachedSummary](1, ttl) }
}

func WithLogger(l *log.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store Store, templates *template.Template, opts ...Option) *Service {
	s := &Service{
		store:     store,
		templates: templates,
		cache:     cache.NewLRUCache[cachedSummary](1, 5*time.Minute),
		logger:    log.Discard(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent(log.ComponentReport)
	return s
}

// Cache exposes the summary cache so it can be swept by a cache.Manager.
func (s *Service) Cache() cache.Cleaner {
	return s.cache
}

// Invalidate drops the cached summary. Call it after new data is stored.
func (s *Service) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen.Add(1)
	s.cache.Purge()
}

// cachedSummary remembers the generation a summary was computed under. An
// entry from an older generation is a miss.
type cachedSummary struct {
	gen uint64
	sum core.Summary
}

// Summary returns the aggregate statistics over all stored expenses.
func (s *Service) Summary(ctx context.Context) (core.Summary, error) {
	gen := s.gen.Load()
	if c, ok := s.cache.Get(summaryKey); ok && c.gen == gen {
		s.logger.DebugContext(ctx, "Summary cache hit", log.FieldCacheHit, true)
		return c.sum, nil
	}

	// The flight key carries the generation: a result computed before an
	// Invalidate is neither shared with later callers nor cached.
	v, err, _ := s.flight.Do(summaryKey+"-"+strconv.FormatUint(gen, 10), func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), summaryTimeout)
		defer cancel()
		return s.aggregate(fctx)
	})
	if err != nil {
		return core.Summary{}, err
	}
	sum := v.(core.Summary)
	s.remember(gen, sum)
	return sum, nil
}

func (s *Service) remember(gen uint64, sum core.Summary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen.Load() == gen {
		s.cache.Set(summaryKey, cachedSummary{gen: gen, sum: sum})
	}
}

func (s *Service) aggregate(ctx context.Context) (core.Summary, error) {
	var (
		totals          core.Stat
		byMonth         []core.MonthStat
		byCategory      []core.CategoryStat
		byMonthCategory []core.MonthCategoryStat
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		totals, err = s.store.Totals(gctx)
		return err
	})
	g.Go(func() (err error) {
		byMonth, err = s.store.SumByMonth(gctx)
		return err
	})
	g.Go(func() (err error) {
		byCategory, err = s.store.SumByCategory(gctx)
		return err
	})
	g.Go(func() (err error) {
		byMonthCategory, err = s.store.SumByMonthCategory(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.Summary{}, fmt.Errorf("aggregate expenses: %w", err)
	}

	sum := core.Summary{
		Total:           totals.Sum,
		Average:         totals.Average,
		Count:           totals.Count,
		ByMonth:         nonNil(byMonth),
		ByCategory:      nonNil(byCategory),
		ByMonthCategory: nonNil(byMonthCategory),
	}
	s.logger.DebugContext(ctx, "Summary computed", log.FieldRecords, sum.Count)
	return sum, nil
}

// MonthRecords lists the expenses whose date starts with prefix.
func (s *Service) MonthRecords(ctx context.Context, prefix string) ([]core.Expense, error) {
	records, err := s.store.ListByMonthPrefix(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list expenses for %q: %w", prefix, err)
	}
	return records, nil
}

// View assembles the template data. A non-empty month adds that month's
// records.
func (s *Service) View(ctx context.Context, month string) (View, error) {
	sum, err := s.Summary(ctx)
	if err != nil {
		return View{}, err
	}
	now := s.now()
	v := View{
		Summary:     sum,
		Month:       month,
		GeneratedAt: now.Format(GeneratedAtLayout),
		CurrentYear: now.Year(),
	}
	if month != "" {
		if v.Records, err = s.MonthRecords(ctx, month); err != nil {
			return View{}, err
		}
	}
	return v, nil
}

// RenderHTML writes the HTML report to w. It renders into a buffer first so
// a template error never leaves a half-written page.
func (s *Service) RenderHTML(ctx context.Context, w io.Writer, month string) error {
	v, err := s.View(ctx, month)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := s.execute(&buf, TemplateHTML, v); err != nil {
		return err
	}
	_, err = buf.WriteTo(w)
	return err
}

// RenderPDF produces the PDF report. Concurrent callers share one render.
func (s *Service) RenderPDF(ctx context.Context) ([]byte, error) {
	if s.renderer == nil {
		return nil, ErrNoRenderer
	}

	v, err, shared := s.flight.Do(pdfKey, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), renderTimeout)
		defer cancel()

		view, err := s.View(ctx, "")
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		if err := s.execute(&buf, TemplatePDF, view); err != nil {
			return nil, err
		}
		start := s.now()
		out, err := s.renderer.Render(ctx, buf.Bytes())
		if err != nil {
			return nil, fmt.Errorf("render pdf: %w", err)
		}
		s.logger.InfoContext(ctx, "PDF report rendered",
			log.FieldBytes, len(out), log.FieldDuration, s.now().Sub(start).Milliseconds())
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.DebugContext(ctx, "PDF render shared with concurrent request")
	}
	return v.([]byte), nil
}

// WriteSnapshot renders the PDF report and atomically replaces the file at
// path.
func (s *Service) WriteSnapshot(ctx context.Context, path string) error {
	out, err := s.RenderPDF(ctx)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".report-*.pdf")
	if err != nil {
		return fmt.Errorf("create temp report: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		return fmt.Errorf("write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close report: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace report: %w", err)
	}
	return nil
}

// PDFReady reports whether PDF reports can be produced. It does not affect
// Ready: the HTML report and uploads work without a renderer.
func (s *Service) PDFReady() error {
	if s.renderer == nil {
		return ErrNoRenderer
	}
	if a, ok := s.renderer.(interface{ Available() error }); ok {
		return a.Available()
	}
	return nil
}

// Ready checks that both report templates are present.
func (s *Service) Ready() error {
	if s.templates == nil {
		return errors.New("templates not loaded")
	}
	for _, name := range []string{TemplateHTML, TemplatePDF} {
		if s.templates.Lookup(name) == nil {
			return fmt.Errorf("template %s missing", name)
		}
	}
	return nil
}

func (s *Service) execute(w io.Writer, name string, data any) error {
	if err := s.Ready(); err != nil {
		return err
	}
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		return fmt.Errorf("execute %s: %w", name, err)
	}
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
