package report_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"expenses/internal/core"
	"expenses/internal/pdf"
	"expenses/internal/report"
	"expenses/internal/storage"
	"expenses/web"
)

var fixedNow = time.Date(2024, 3, 10, 14, 30, 0, 0, time.UTC)

func sampleRecords() []core.Expense {
	return []core.Expense{
		{Date: "2024-01-15", Category: "Food", Amount: 500, Comment: core.StringPtr("Groceries")},
		{Date: "2024-01-20", Category: "Transport", Amount: 200, Comment: core.StringPtr("Metro")},
		{Date: "2024-02-10", Category: "Food", Amount: 800, Comment: core.StringPtr("Restaurant")},
		{Date: "2024-02-15", Category: "Fun", Amount: 1500, Comment: core.StringPtr("Movie")},
		{Date: "2024-03-05", Category: "Food", Amount: 600},
	}
}

func expectAggregates(m *report.MockStore, times int) {
	sum := core.Aggregate(sampleRecords())
	m.EXPECT().Totals(gomock.Any()).Times(times).
		Return(core.Stat{Sum: sum.Total, Average: sum.Average, Count: sum.Count}, nil)
	m.EXPECT().SumByMonth(gomock.Any()).Times(times).Return(sum.ByMonth, nil)
	m.EXPECT().SumByCategory(gomock.Any()).Times(times).Return(sum.ByCategory, nil)
	m.EXPECT().SumByMonthCategory(gomock.Any()).Times(times).Return(sum.ByMonthCategory, nil)
}

func newService(t *testing.T, store report.Store, opts ...report.Option) *report.Service {
	t.Helper()
	tmpl, err := web.ParseTemplates()
	require.NoError(t, err)
	opts = append([]report.Option{report.WithClock(func() time.Time { return fixedNow })}, opts...)
	return report.NewService(store, tmpl, opts...)
}

func TestService_SummaryIsCached(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := report.NewMockStore(ctrl)
	expectAggregates(store, 2)

	svc := newService(t, store, report.WithCacheTTL(time.Minute))
	ctx := context.Background()

	first, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3600.0, first.Total)
	assert.Equal(t, 720.0, first.Average)

	second, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	svc.Invalidate()
	_, err = svc.Summary(ctx)
	require.NoError(t, err)
}

func TestService_InvalidateDuringAggregation(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := report.NewMockStore(ctrl)
	sum := core.Aggregate(sampleRecords())

	var svc *report.Service
	first := true
	store.EXPECT().Totals(gomock.Any()).Times(2).
		Return(core.Stat{Sum: sum.Total, Average: sum.Average, Count: sum.Count}, nil)
	store.EXPECT().SumByMonth(gomock.Any()).Times(2).Return(sum.ByMonth, nil)
	store.EXPECT().SumByCategory(gomock.Any()).Times(2).Return(sum.ByCategory, nil)
	store.EXPECT().SumByMonthCategory(gomock.Any()).Times(2).
		DoAndReturn(func(context.Context) ([]core.MonthCategoryStat, error) {
			if first {
				first = false
				svc.Invalidate()
			}
			return sum.ByMonthCategory, nil
		})

	svc = newService(t, store, report.WithCacheTTL(time.Minute))
	for i := 0; i < 2; i++ {
		_, err := svc.Summary(context.Background())
		require.NoError(t, err)
	}
}

func TestService_SummarySurvivesCanceledCaller(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := report.NewMockStore(ctrl)
	live := func(ctx context.Context) error { return ctx.Err() }
	store.EXPECT().Totals(gomock.Any()).DoAndReturn(func(ctx context.Context) (core.Stat, error) {
		return core.Stat{Sum: 5, Average: 5, Count: 1}, live(ctx)
	})
	store.EXPECT().SumByMonth(gomock.Any()).DoAndReturn(func(ctx context.Context) ([]core.MonthStat, error) {
		return nil, live(ctx)
	})
	store.EXPECT().SumByCategory(gomock.Any()).DoAndReturn(func(ctx context.Context) ([]core.CategoryStat, error) {
		return nil, live(ctx)
	})
	store.EXPECT().SumByMonthCategory(gomock.Any()).DoAndReturn(func(ctx context.Context) ([]core.MonthCategoryStat, error) {
		return nil, live(ctx)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := newService(t, store)
	sum, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5.0, sum.Total)
}

func TestService_SummaryWithoutCache(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := report.NewMockStore(ctrl)
	expectAggregates(store, 2)

	svc := newService(t, store, report.WithCacheTTL(0))
	for i := 0; i < 2; i++ {
		_, err := svc.Summary(context.Background())
		require.NoError(t, err)
	}
}

func TestService_SummaryStoreError(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := report.NewMockStore(ctrl)
	store.EXPECT().Totals(gomock.Any()).Return(core.Stat{}, errors.New("disk I/O error")).AnyTimes()
	store.EXPECT().SumByMonth(gomock.Any()).Return(nil, nil).AnyTimes()
	store.EXPECT().SumByCategory(gomock.Any()).Return(nil, nil).AnyTimes()
	store.EXPECT().SumByMonthCategory(gomock.Any()).Return(nil, nil).AnyTimes()

	svc := newService(t, store)
	_, err := svc.Summary(context.Background())
	assert.ErrorContains(t, err, "disk I/O error")
}

func TestService_EmptyStore(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := report.NewMockStore(ctrl)
	store.EXPECT().Totals(gomock.Any()).Return(core.Stat{}, nil)
	store.EXPECT().SumByMonth(gomock.Any()).Return(nil, nil)
	store.EXPECT().SumByCategory(gomock.Any()).Return(nil, nil)
	store.EXPECT().SumByMonthCategory(gomock.Any()).Return(nil, nil)

	svc := newService(t, store)
	sum, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.True(t, sum.IsEmpty())
	assert.NotNil(t, sum.ByMonth)
	assert.NotNil(t, sum.ByCategory)
	assert.NotNil(t, sum.ByMonthCategory)

	var buf bytes.Buffer
	require.NoError(t, svc.RenderHTML(context.Background(), &buf, ""))
	assert.Contains(t, buf.String(), "No data.")
	assert.Contains(t, buf.String(), "0.00")
}

func TestService_RenderHTML(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := report.NewMockStore(ctrl)
	expectAggregates(store, 1)
	store.EXPECT().ListByMonthPrefix(gomock.Any(), "2024-01").Return(sampleRecords()[:2], nil)

	svc := newService(t, store)
	var buf bytes.Buffer
	require.NoError(t, svc.RenderHTML(context.Background(), &buf, "2024-01"))

	html := buf.String()
	assert.Contains(t, html, "3600.00")
	assert.Contains(t, html, "720.00")
	assert.Contains(t, html, "1900.00")
	assert.Contains(t, html, "Records for 2024-01")
	assert.Contains(t, html, "Groceries")
	assert.Contains(t, html, "10.03.2024 14:30")
	assert.Less(t, strings.Index(html, ">Food<"), strings.Index(html, ">Fun<"))
	assert.Less(t, strings.Index(html, ">Fun<"), strings.Index(html, ">Transport<"))
}

func TestService_RenderHTMLEscapes(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := report.NewMockStore(ctrl)
	store.EXPECT().Totals(gomock.Any()).Return(core.Stat{Sum: 1, Average: 1, Count: 1}, nil)
	store.EXPECT().SumByMonth(gomock.Any()).Return([]core.MonthStat{{Month: "2024-01", Stat: core.Stat{Sum: 1, Average: 1, Count: 1}}}, nil)
	store.EXPECT().SumByCategory(gomock.Any()).Return([]core.CategoryStat{{Category: "<script>", Stat: core.Stat{Sum: 1, Average: 1, Count: 1}}}, nil)
	store.EXPECT().SumByMonthCategory(gomock.Any()).Return(nil, nil)

	svc := newService(t, store)
	var buf bytes.Buffer
	require.NoError(t, svc.RenderHTML(context.Background(), &buf, ""))
	assert.NotContains(t, buf.String(), "<script>")
	assert.Contains(t, buf.String(), "&lt;script&gt;")
}

func TestService_RenderPDF(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := report.NewMockStore(ctrl)
	expectAggregates(store, 1)

	var seen string
	renderer := pdf.Func(func(_ context.Context, html []byte) ([]byte, error) {
		seen = string(html)
		return []byte("%PDF-1.4 fake"), nil
	})

	svc := newService(t, store, report.WithRenderer(renderer))
	out, err := svc.RenderPDF(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 fake", string(out))
	assert.Contains(t, seen, "Generated 10.03.2024 14:30")
	assert.Contains(t, seen, "&copy; 2024")
	assert.Contains(t, seen, "3600.00")
}

func TestService_RenderPDFWithoutRenderer(t *testing.T) {
	svc := newService(t, report.NewMockStore(gomock.NewController(t)))
	_, err := svc.RenderPDF(context.Background())
	assert.ErrorIs(t, err, report.ErrNoRenderer)
}

func TestService_RenderPDFRendererError(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := report.NewMockStore(ctrl)
	expectAggregates(store, 1)

	renderer := pdf.Func(func(context.Context, []byte) ([]byte, error) {
		return nil, pdf.ErrUnavailable
	})
	svc := newService(t, store, report.WithRenderer(renderer))
	_, err := svc.RenderPDF(context.Background())
	assert.ErrorIs(t, err, pdf.ErrUnavailable)
}

func TestService_RenderPDFConcurrent(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := report.NewMockStore(ctrl)
	store.EXPECT().Totals(gomock.Any()).Return(core.Stat{}, nil).AnyTimes()
	store.EXPECT().SumByMonth(gomock.Any()).Return(nil, nil).AnyTimes()
	store.EXPECT().SumByCategory(gomock.Any()).Return(nil, nil).AnyTimes()
	store.EXPECT().SumByMonthCategory(gomock.Any()).Return(nil, nil).AnyTimes()

	var calls atomic.Int32
	renderer := pdf.Func(func(context.Context, []byte) ([]byte, error) {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond)
		return []byte("%PDF"), nil
	})
	svc := newService(t, store, report.WithRenderer(renderer))

	const n = 8
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := svc.RenderPDF(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "%PDF", string(out))
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, int(calls.Load()), n)
	assert.GreaterOrEqual(t, int(calls.Load()), 1)
}

func TestService_RenderPDFSurvivesCanceledCaller(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := report.NewMockStore(ctrl)
	expectAggregates(store, 1)

	renderer := pdf.Func(func(ctx context.Context, _ []byte) ([]byte, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return []byte("%PDF"), nil
	})
	svc := newService(t, store, report.WithRenderer(renderer))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out, err := svc.RenderPDF(ctx)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(out))
}

type missingBinary struct{ pdf.Func }

func (missingBinary) Available() error { return pdf.ErrUnavailable }

func TestService_PDFReady(t *testing.T) {
	store := report.NewMockStore(gomock.NewController(t))

	assert.ErrorIs(t, newService(t, store).PDFReady(), report.ErrNoRenderer)
	assert.NoError(t, newService(t, store, report.WithRenderer(fakeRenderer())).PDFReady())
	assert.ErrorIs(t, newService(t, store, report.WithRenderer(missingBinary{})).PDFReady(), pdf.ErrUnavailable)
}

func fakeRenderer() pdf.Func {
	return func(context.Context, []byte) ([]byte, error) { return []byte("%PDF"), nil }
}

func TestService_WriteSnapshot(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := report.NewMockStore(ctrl)
	expectAggregates(store, 1)

	renderer := pdf.Func(func(context.Context, []byte) ([]byte, error) {
		return []byte("%PDF-snapshot"), nil
	})
	svc := newService(t, store, report.WithRenderer(renderer))

	path := filepath.Join(t.TempDir(), "out", "report.pdf")
	require.NoError(t, svc.WriteSnapshot(context.Background(), path))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-snapshot", string(got))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file should be gone")
}

func TestService_Ready(t *testing.T) {
	svc := newService(t, report.NewMockStore(gomock.NewController(t)))
	assert.NoError(t, svc.Ready())

	bare := report.NewService(nil, nil)
	assert.Error(t, bare.Ready())
}

func TestService_SQLiteMatchesInMemoryAggregate(t *testing.T) {
	ctx := context.Background()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "expenses.db"))
	require.NoError(t, err)
	defer repo.Close()

	records := append(sampleRecords(),
		core.Expense{Date: "15.01.2024", Category: "food", Amount: 12.5},
		core.Expense{Date: "2024-01-31", Category: "Food", Amount: 0.25},
	)
	for i := range records {
		require.NoError(t, repo.Create(ctx, &records[i]))
	}

	svc := newService(t, repo)
	got, err := svc.Summary(ctx)
	require.NoError(t, err)

	stored, err := repo.List(ctx)
	require.NoError(t, err)
	want := core.Aggregate(stored)

	assert.InDelta(t, want.Total, got.Total, 1e-9)
	assert.InDelta(t, want.Average, got.Average, 1e-9)
	assert.Equal(t, want.Count, got.Count)
	require.Len(t, got.ByMonth, len(want.ByMonth))
	for i := range want.ByMonth {
		assert.Equal(t, want.ByMonth[i].Month, got.ByMonth[i].Month)
		assert.InDelta(t, want.ByMonth[i].Sum, got.ByMonth[i].Sum, 1e-9)
	}
	require.Len(t, got.ByCategory, len(want.ByCategory))
	for i := range want.ByCategory {
		assert.Equal(t, want.ByCategory[i].Category, got.ByCategory[i].Category)
		assert.InDelta(t, want.ByCategory[i].Average, got.ByCategory[i].Average, 1e-9)
	}
	require.Len(t, got.ByMonthCategory, len(want.ByMonthCategory))
}
