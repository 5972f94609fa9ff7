package core

import (
	"errors"
	"time"
)

const (
	// ISODateLayout is the primary accepted date format (YYYY-MM-DD).
	ISODateLayout = "2006-01-02"
	// DottedDateLayout is the alternative accepted date format (DD.MM.YYYY).
	DottedDateLayout = "02.01.2006"

	// Month and day may also be written without a leading zero. These
	// layouts take one or two digits.
	isoDateLayoutLoose    = "2006-1-2"
	dottedDateLayoutLoose = "2.1.2006"

	// MonthPrefixLen is the number of leading date characters used as a month key.
	MonthPrefixLen = 7
)

type (
	// Expense is a single stored expense record. Date is kept exactly as it
	// was received, so both accepted layouts can coexist in storage.
	Expense struct {
		ID       int64
		Date     string
		Category string
		Amount   float64
		Comment  *string
	}
)

var (
	ErrInsufficientFields = errors.New("insufficient fields")
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidAmount      = errors.New("invalid amount")
)

var dateLayouts = []string{isoDateLayoutLoose, dottedDateLayoutLoose}

// ParseDate reports the calendar date for s, trying YYYY-MM-DD first and
// DD.MM.YYYY second. Single-digit months and days are accepted; the date
// must exist in the calendar.
func ParseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrInvalidDate
}

// ValidDate reports whether s is in one of the accepted date layouts.
func ValidDate(s string) bool {
	_, err := ParseDate(s)
	return err == nil
}

// MonthPrefix returns the first seven characters of a stored date. This is a
// plain string prefix: it is only a "YYYY-MM" month for ISO dates.
func MonthPrefix(date string) string {
	if len(date) <= MonthPrefixLen {
		return date
	}
	return date[:MonthPrefixLen]
}

// HasComment reports whether the expense carries a comment.
func (e Expense) HasComment() bool {
	return e.Comment != nil
}

// CommentText returns the comment or an empty string.
func (e Expense) CommentText() string {
	if e.Comment == nil {
		return ""
	}
	return *e.Comment
}

// Validate checks the date and amount rules. The category is free text and
// is stored verbatim.
func (e Expense) Validate() error {
	if !ValidDate(e.Date) {
		return ErrInvalidDate
	}
	return ValidateAmount(e.Amount)
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
