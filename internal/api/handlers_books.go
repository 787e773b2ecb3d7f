package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"bookgloss/internal/jobs"
	"bookgloss/internal/parser"
)

// handleSubmit accepts a multipart upload with the book file, the
// reader's name, and optional image assets. Parsing happens
// synchronously, so malformed books are rejected here; annotation runs
// in the background and the response carries a poll URL.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	// Limit total request size, with headroom for form overhead.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	readerName := strings.TrimSpace(r.FormValue("reader_name"))
	if readerName == "" {
		jsonError(w, "reader_name is required", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("book")
	if err != nil {
		jsonError(w, "book file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !parser.IsSupportedExtension(filename) {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read book file", http.StatusInternalServerError)
		return
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("book exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}

	assets, err := readAssets(r, s.cfg.MaxUploadBytes)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	id, err := s.manager.Submit(data, filename, readerName, assets)
	if err != nil {
		jsonError(w, err.Error(), submitErrorStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"job_id":   id,
		"state":    jobs.StatePending,
		"poll_url": fmt.Sprintf("/api/books/%s/status", id),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	snap, err := s.manager.Status(jobID)
	if errors.Is(err, jobs.ErrJobNotFound) {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snap)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	art, err := s.manager.Result(jobID)
	switch {
	case errors.Is(err, jobs.ErrJobNotFound):
		jsonError(w, "job not found", http.StatusNotFound)
		return
	case errors.Is(err, jobs.ErrJobNotReady):
		jsonError(w, "job not completed", http.StatusConflict)
		return
	case err != nil:
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", art.Filename))
	w.Write(art.Data)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if err := s.manager.Cancel(jobID); errors.Is(err, jobs.ErrJobNotFound) {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}

	snap, err := s.manager.Status(jobID)
	if err != nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(snap)
}

// readAssets collects the optional image asset parts keyed by their
// sanitized filenames.
func readAssets(r *http.Request, maxBytes int64) (map[string][]byte, error) {
	files := r.MultipartForm.File["assets"]
	if len(files) == 0 {
		return nil, nil
	}
	assets := make(map[string][]byte, len(files))
	for _, fh := range files {
		name := sanitizeFilename(fh.Filename)
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open asset %s", name)
		}
		data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
		f.Close()
		if err != nil || int64(len(data)) > maxBytes {
			return nil, fmt.Errorf("asset %s too large or unreadable", name)
		}
		assets[name] = data
	}
	return assets, nil
}

// submitErrorStatus maps submission failures onto HTTP status codes.
func submitErrorStatus(err error) int {
	var merr *parser.MalformedInputError
	switch {
	case errors.As(err, &merr):
		return http.StatusBadRequest
	case errors.Is(err, jobs.ErrUploadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, jobs.ErrQueueFull):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
