package http

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"expenses/internal/log"
	"expenses/internal/pdf"
	"expenses/internal/report"
)

type uploadPage struct {
	Submitted bool
	Inserted  int
	Errors    []string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, http.StatusOK, "index.html", nil)
}

func (s *Server) handleDocs(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, http.StatusOK, "docs.html", nil)
}

func (s *Server) handleUploadForm(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, http.StatusOK, "upload.html", uploadPage{})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	file, err := openUpload(w, r, s.maxUpload)
	switch {
	case errors.Is(err, errBodyTooLarge):
		s.renderError(w, r, http.StatusRequestEntityTooLarge,
			"The file is larger than "+strconv.FormatInt(s.maxUpload, 10)+" bytes.")
		return
	case errors.Is(err, errMissingFile):
		s.renderError(w, r, http.StatusBadRequest, "Choose a file to upload.")
		return
	case err != nil:
		log.FromContext(ctx).WarnContext(ctx, "Malformed upload", log.FieldError, err.Error())
		s.renderError(w, r, http.StatusBadRequest, "The upload could not be read.")
		return
	}
	defer file.Close()

	res, err := s.ingest.Ingest(ctx, file)
	if err != nil {
		log.LogError(ctx, "Upload failed", err, log.ComponentIngest, log.OpUpload,
			log.NewFields().WithErrorType(log.ErrorTypeDatabase))
		s.renderError(w, r, http.StatusInternalServerError, "The expenses could not be saved. Nothing was stored.")
		return
	}
	if res.Inserted > 0 {
		s.report.Invalidate()
	}

	log.FromContext(ctx).InfoContext(ctx, "Upload processed",
		log.NewFields().WithUpload(res.BatchID, res.Inserted, len(res.Errors)).ToSlice()...)
	s.renderPage(w, r, http.StatusOK, "upload.html", uploadPage{
		Submitted: true,
		Inserted:  res.Inserted,
		Errors:    res.Errors,
	})
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ClientIP(r),
		log.FieldPath, r.URL.Path)
	s.renderError(w, r, http.StatusTooManyRequests, "Too many uploads. Please try again in a minute.")
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	month, err := parseMonth(r)
	if err != nil {
		s.renderError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	var buf bytes.Buffer
	if err := s.report.RenderHTML(ctx, &buf, month); err != nil {
		log.LogError(ctx, "Report rendering failed", err, log.ComponentReport, log.OpRender,
			log.NewFields().WithErrorType(log.ErrorTypeRender))
		s.renderError(w, r, http.StatusInternalServerError, "The report could not be generated.")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleReportPDF(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	out, err := s.report.RenderPDF(ctx)
	if err != nil {
		status := http.StatusInternalServerError
		msg := "The PDF report could not be generated."
		if errors.Is(err, report.ErrNoRenderer) || errors.Is(err, pdf.ErrUnavailable) {
			status = http.StatusServiceUnavailable
			msg = "PDF export is not available on this server."
		}
		log.LogError(ctx, "PDF report failed", err, log.ComponentPDF, log.OpRender,
			log.NewFields().WithErrorType(log.ErrorTypeRender))
		s.renderError(w, r, status, msg)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="report.pdf"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(out)))
	_, _ = w.Write(out)
}

func (s *Server) handleReportJSON(w http.ResponseWriter, r *http.Request) {
	sum, err := s.report.Summary(r.Context())
	if err != nil {
		log.LogError(r.Context(), "Report data failed", err, log.ComponentReport, log.OpAggregate,
			log.NewFields().WithErrorType(log.ErrorTypeDatabase))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "report unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady checks the database and the templates.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	status, code := "ready", http.StatusOK
	checks := map[string]string{}
	fail := func(name string, err error) {
		checks[name] = "failed: " + err.Error()
		status, code = "not_ready", http.StatusServiceUnavailable
	}

	if s.db == nil {
		fail("database", errors.New("not configured"))
	} else if err := s.db.Ping(ctx); err != nil {
		fail("database", err)
	} else {
		checks["database"] = "ok"
	}

	if err := s.report.Ready(); err != nil {
		fail("templates", err)
	} else {
		checks["templates"] = "ok"
	}

	// PDF export is optional: a missing renderer is reported, not fatal.
	if err := s.report.PDFReady(); err != nil {
		checks["pdf"] = "unavailable: " + err.Error()
	} else {
		checks["pdf"] = "ok"
	}

	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.renderError(w, r, http.StatusNotFound, "There is nothing at "+r.URL.Path+".")
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.renderError(w, r, http.StatusMethodNotAllowed, r.Method+" is not supported here.")
}
