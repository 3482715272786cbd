package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/JonMunkholm/bowlhouse/internal/catalog"
	"github.com/JonMunkholm/bowlhouse/internal/logging"
	"github.com/go-chi/chi/v5"
)

// handleHealth runs every registered check with a short deadline.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			logging.FromContext(ctx).Warn("health check failed", "check", name, "error", err)
			checks[name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	limiter := s.service.LimiterStatus()
	writeJSON(w, status, map[string]any{
		"status":          http.StatusText(status),
		"checks":          checks,
		"pending_batches": s.service.PendingBatches(),
		"active_imports":  limiter.Active,
		"import_slots":    limiter.MaxConcurrent,
	})
}

// handleListProducts serves GET /api/products[?include_inactive=true].
func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	includeInactive, _ := strconv.ParseBool(r.URL.Query().Get("include_inactive"))

	products, err := s.service.ListProducts(r.Context(), catalog.ListOptions{IncludeInactive: includeInactive})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

// handleTemplate serves the blank import template as a download.
func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	setAttachment(w, catalog.TemplateFilename)
	if err := catalog.WriteTemplate(w); err != nil {
		logging.FromContext(r.Context()).Warn("write template", "error", err)
	}
}

// handleExport downloads every product, inactive ones included, as CSV.
// The body is built before any header is sent so a failed query still gets
// a proper error response.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	products, err := s.service.ListProducts(r.Context(), catalog.ListOptions{IncludeInactive: true})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := catalog.WriteExport(&buf, products); err != nil {
		s.respondError(w, r, err)
		return
	}

	setAttachment(w, catalog.ExportFilename(time.Now()))
	_, _ = buf.WriteTo(w)
}

// handlePreview parses an uploaded file and stores it as a pending batch.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	fileName, data, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	preview, err := s.service.Preview(r.Context(), fileName, data)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := PreviewTable(preview).Render(r.Context(), w); err != nil {
			logging.FromContext(r.Context()).Warn("render preview", "error", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

// handleGetBatch returns a pending preview again, e.g. after a page reload.
func (s *Server) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	preview, err := s.service.Batch(chi.URLParam(r, "batchID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

// handleSubmit imports the valid rows of a pending batch.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Upload.Timeout)
	defer cancel()

	outcome, err := s.service.Submit(ctx, chi.URLParam(r, "batchID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := OutcomeSummary(outcome).Render(r.Context(), w); err != nil {
			logging.FromContext(r.Context()).Warn("render outcome", "error", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

// handleDiscard drops a pending batch.
func (s *Server) handleDiscard(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Discard(chi.URLParam(r, "batchID")); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// readUpload reads the multipart "file" field within the configured size limit.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+1<<20)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", nil, fmt.Errorf("file too large: %w", err)
		}
		return "", nil, fmt.Errorf("%w: %v", errNoFile, err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, errNoFile
	}
	defer file.Close()

	if header.Size > maxSize {
		return "", nil, fmt.Errorf("file too large: %d bytes (limit %d)", header.Size, maxSize)
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return "", nil, fmt.Errorf("read upload: %w", err)
	}
	return header.Filename, data, nil
}

func setAttachment(w http.ResponseWriter, fileName string) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
}
