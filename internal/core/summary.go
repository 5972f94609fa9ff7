package core

import "sort"

// Stat carries the sum, average and row count of a group of expenses.
type Stat struct {
	Sum     float64 `json:"sum"`
	Average float64 `json:"average"`
	Count   int64   `json:"count"`
}

// MonthStat is a per-month-prefix breakdown entry.
type MonthStat struct {
	Month string `json:"month"`
	Stat
}

// CategoryStat is a per-category breakdown entry.
type CategoryStat struct {
	Category string `json:"category"`
	Stat
}

// MonthCategoryStat is a per-(month-prefix, category) breakdown entry.
type MonthCategoryStat struct {
	Month    string `json:"month"`
	Category string `json:"category"`
	Stat
}

// Summary is the data bag handed to the HTML and PDF report templates.
type Summary struct {
	Total           float64             `json:"total"`
	Average         float64             `json:"average"`
	Count           int64               `json:"count"`
	ByMonth         []MonthStat         `json:"by_month"`
	ByCategory      []CategoryStat      `json:"by_category"`
	ByMonthCategory []MonthCategoryStat `json:"by_month_category"`
}

// IsEmpty reports whether the summary was computed over zero records.
func (s Summary) IsEmpty() bool {
	return s.Count == 0
}

type accumulator struct {
	sum   float64
	count int64
}

func (a *accumulator) add(v float64) {
	a.sum += v
	a.count++
}

func (a accumulator) stat() Stat {
	st := Stat{Sum: a.sum, Count: a.count}
	if a.count > 0 {
		st.Average = a.sum / float64(a.count)
	}
	return st
}

type monthCategoryKey struct {
	month    string
	category string
}

// Aggregate computes the report summary over records. The result does not
// depend on the order of records: every breakdown is sorted by its key.
func Aggregate(records []Expense) Summary {
	var all accumulator
	byMonth := make(map[string]*accumulator)
	byCategory := make(map[string]*accumulator)
	byMonthCategory := make(map[monthCategoryKey]*accumulator)

	for _, e := range records {
		month := MonthPrefix(e.Date)
		mck := monthCategoryKey{month: month, category: e.Category}

		all.add(e.Amount)
		bucket(byMonth, month).add(e.Amount)
		bucket(byCategory, e.Category).add(e.Amount)
		bucket(byMonthCategory, mck).add(e.Amount)
	}

	total := all.stat()
	s := Summary{
		Total:           total.Sum,
		Average:         total.Average,
		Count:           total.Count,
		ByMonth:         make([]MonthStat, 0, len(byMonth)),
		ByCategory:      make([]CategoryStat, 0, len(byCategory)),
		ByMonthCategory: make([]MonthCategoryStat, 0, len(byMonthCategory)),
	}

	for month, acc := range byMonth {
		s.ByMonth = append(s.ByMonth, MonthStat{Month: month, Stat: acc.stat()})
	}
	for category, acc := range byCategory {
		s.ByCategory = append(s.ByCategory, CategoryStat{Category: category, Stat: acc.stat()})
	}
	for k, acc := range byMonthCategory {
		s.ByMonthCategory = append(s.ByMonthCategory, MonthCategoryStat{Month: k.month, Category: k.category, Stat: acc.stat()})
	}

	sort.Slice(s.ByMonth, func(i, j int) bool { return s.ByMonth[i].Month < s.ByMonth[j].Month })
	sort.Slice(s.ByCategory, func(i, j int) bool { return s.ByCategory[i].Category < s.ByCategory[j].Category })
	sort.Slice(s.ByMonthCategory, func(i, j int) bool {
		a, b := s.ByMonthCategory[i], s.ByMonthCategory[j]
		if a.Month != b.Month {
			return a.Month < b.Month
		}
		return a.Category < b.Category
	})

	return s
}

func bucket[K comparable](m map[K]*accumulator, k K) *accumulator {
	acc, ok := m[k]
	if !ok {
		acc = &accumulator{}
		m[k] = acc
	}
	return acc
}
