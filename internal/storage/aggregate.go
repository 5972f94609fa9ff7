package storage

import (
	"context"
	"fmt"

	"expenses/internal/core"
)

// Grouping happens on the raw date prefix and ordering uses byte-wise
// comparison, so results line up with core.Aggregate.
const (
	totalsSQL = `SELECT COALESCE(SUM(amount), 0), COALESCE(AVG(amount), 0), COUNT(*) FROM expenses`

	byMonthSQL = `SELECT substr(date, 1, 7) AS month, SUM(amount), AVG(amount), COUNT(*)
FROM expenses
GROUP BY month
ORDER BY month COLLATE BINARY`

	byCategorySQL = `SELECT category, SUM(amount), AVG(amount), COUNT(*)
FROM expenses
GROUP BY category
ORDER BY category COLLATE BINARY`

	byMonthCategorySQL = `SELECT substr(date, 1, 7) AS month, category, SUM(amount), AVG(amount), COUNT(*)
FROM expenses
GROUP BY month, category
ORDER BY month COLLATE BINARY, category COLLATE BINARY`
)

// Totals returns the sum, average and count over all expenses. An empty
// table yields zeros.
func (r *SQLiteRepository) Totals(ctx context.Context) (core.Stat, error) {
	var st core.Stat
	if err := r.db.QueryRowContext(ctx, totalsSQL).Scan(&st.Sum, &st.Average, &st.Count); err != nil {
		return core.Stat{}, fmt.Errorf("query totals: %w", err)
	}
	return st, nil
}

func (r *SQLiteRepository) SumByMonth(ctx context.Context) ([]core.MonthStat, error) {
	rows, err := r.db.QueryContext(ctx, byMonthSQL)
	if err != nil {
		return nil, fmt.Errorf("query sums by month: %w", err)
	}
	defer rows.Close()

	out := []core.MonthStat{}
	for rows.Next() {
		var m core.MonthStat
		if err := rows.Scan(&m.Month, &m.Sum, &m.Average, &m.Count); err != nil {
			return nil, fmt.Errorf("scan month sum: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) SumByCategory(ctx context.Context) ([]core.CategoryStat, error) {
	rows, err := r.db.QueryContext(ctx, byCategorySQL)
	if err != nil {
		return nil, fmt.Errorf("query sums by category: %w", err)
	}
	defer rows.Close()

	out := []core.CategoryStat{}
	for rows.Next() {
		var c core.CategoryStat
		if err := rows.Scan(&c.Category, &c.Sum, &c.Average, &c.Count); err != nil {
			return nil, fmt.Errorf("scan category sum: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) SumByMonthCategory(ctx context.Context) ([]core.MonthCategoryStat, error) {
	rows, err := r.db.QueryContext(ctx, byMonthCategorySQL)
	if err != nil {
		return nil, fmt.Errorf("query sums by month and category: %w", err)
	}
	defer rows.Close()

	out := []core.MonthCategoryStat{}
	for rows.Next() {
		var mc core.MonthCategoryStat
		if err := rows.Scan(&mc.Month, &mc.Category, &mc.Sum, &mc.Average, &mc.Count); err != nil {
			return nil, fmt.Errorf("scan month/category sum: %w", err)
		}
		out = append(out, mc)
	}
	return out, rows.Err()
}
