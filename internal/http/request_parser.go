package http

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"unicode"

	"expenses/internal/core"
)

const (
	uploadField = "file"
	// multipartMemory is how much of a multipart body is held in memory
	// before spilling to temp files.
	multipartMemory = 1 << 20
	maxMonthLen     = len(core.ISODateLayout)
)

var (
	errMissingFile  = errors.New("no file was uploaded")
	errBodyTooLarge = errors.New("upload too large")
	errBadMonth     = errors.New("invalid month filter")
)

// openUpload limits the request body to maxBytes and returns the uploaded
// file. Callers close it.
func openUpload(w http.ResponseWriter, r *http.Request, maxBytes int64) (multipart.File, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if isTooLarge(err) {
			return nil, errBodyTooLarge
		}
		return nil, fmt.Errorf("parse upload: %w", err)
	}

	file, _, err := r.FormFile(uploadField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, errMissingFile
		}
		return nil, fmt.Errorf("open upload: %w", err)
	}
	return file, nil
}

func isTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return true
	}
	return strings.Contains(err.Error(), "request body too large")
}

// parseMonth reads the optional month filter. It is matched as a raw date
// prefix, so any short printable string is accepted.
func parseMonth(r *http.Request) (string, error) {
	month := strings.TrimSpace(r.URL.Query().Get("month"))
	if len(month) > maxMonthLen {
		return "", fmt.Errorf("%w: at most %d characters", errBadMonth, maxMonthLen)
	}
	if strings.IndexFunc(month, func(r rune) bool { return !unicode.IsPrint(r) }) >= 0 {
		return "", fmt.Errorf("%w: unprintable characters", errBadMonth)
	}
	return month, nil
}
