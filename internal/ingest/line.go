package ingest

import (
	"strings"
	"unicode/utf8"

	"expenses/internal/core"
)

const (
	fieldSeparator = ";"
	minFields      = 3
)

// LineError is a rejected upload line. Error renders the message shown to
// the user, for example "invalid date: 2024/01/01;Food;5".
type LineError struct {
	Line int    // 1-based physical line number
	Text string // the line with surrounding whitespace trimmed
	Kind error  // one of the core.Err* sentinels
}

func (e *LineError) Error() string {
	return e.Kind.Error() + ": " + e.Text
}

func (e *LineError) Unwrap() error {
	return e.Kind
}

// LineResult is the outcome of one non-blank line.
type LineResult struct {
	Line    int
	Expense core.Expense
	Err     *LineError
}

func (r LineResult) OK() bool {
	return r.Err == nil
}

// ParseLine validates a single raw line. skip is true for blank lines, which
// produce neither a record nor an error.
func ParseLine(n int, raw string) (res LineResult, skip bool) {
	line := strings.TrimSpace(raw)
	if line == "" {
		return LineResult{}, true
	}

	res.Line = n
	fail := func(kind error) (LineResult, bool) {
		res.Err = &LineError{Line: n, Text: line, Kind: kind}
		return res, false
	}

	fields := strings.Split(line, fieldSeparator)
	if len(fields) < minFields {
		return fail(core.ErrInsufficientFields)
	}

	date := fields[0]
	if !core.ValidDate(date) {
		return fail(core.ErrInvalidDate)
	}

	amount, err := core.ParseAmount(fields[2])
	if err != nil {
		return fail(core.ErrInvalidAmount)
	}

	res.Expense = core.Expense{
		Date:     date,
		Category: fields[1],
		Amount:   amount,
	}
	if len(fields) > minFields {
		res.Expense.Comment = core.StringPtr(fields[3])
	}
	return res, false
}

// SplitLines breaks text into lines. A line ends at \n, \r\n or a lone \r,
// and also at \v, \f, the file, group and record separators (0x1C-0x1E),
// NEL (U+0085) and the Unicode line and paragraph separators.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	var lines []string
	start := 0
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if !isLineBreak(r) {
			i += size
			continue
		}
		lines = append(lines, text[start:i])
		i += size
		if r == '\r' && i < len(text) && text[i] == '\n' {
			i++
		}
		start = i
	}
	return append(lines, text[start:])
}

func isLineBreak(r rune) bool {
	switch r {
	case '\n', '\r', '\v', '\f', 0x1C, 0x1D, 0x1E, 0x85, 0x2028, 0x2029:
		return true
	}
	return false
}
