package httpapi

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/secureentry/secureentry/internal/secureentry/service"
)

func (s *Server) handleListWorkers(w http.ResponseWriter, r *http.Request) {
	workers, err := s.directory.List(r.Context())
	if err != nil {
		s.writeServiceError(w, r, "list workers", err)
		return
	}
	writeJSON(w, http.StatusOK, workers)
}

func (s *Server) handleCreateWorker(w http.ResponseWriter, r *http.Request) {
	form, ok := s.parseWorkerForm(w, r)
	if !ok {
		return
	}

	in := service.CreateWorkerInput{Credential: form.credential}
	if form.name != nil {
		in.Name = *form.name
	}
	if form.expiresAt != nil {
		in.ExpiresAt = *form.expiresAt
	}

	worker, err := s.directory.Create(r.Context(), in)
	if err != nil {
		s.writeServiceError(w, r, "create worker", err)
		return
	}
	writeJSON(w, http.StatusCreated, worker)
}

func (s *Server) handleUpdateWorker(w http.ResponseWriter, r *http.Request) {
	id, ok := workerID(w, r)
	if !ok {
		return
	}
	form, ok := s.parseWorkerForm(w, r)
	if !ok {
		return
	}

	worker, err := s.directory.Update(r.Context(), id, service.UpdateWorkerInput{
		Name:       form.name,
		ExpiresAt:  form.expiresAt,
		Credential: form.credential,
	})
	if err != nil {
		s.writeServiceError(w, r, "update worker", err)
		return
	}
	writeJSON(w, http.StatusOK, worker)
}

func (s *Server) handleRevokeWorker(w http.ResponseWriter, r *http.Request) {
	id, ok := workerID(w, r)
	if !ok {
		return
	}

	worker, err := s.directory.Revoke(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, "revoke worker", err)
		return
	}
	writeJSON(w, http.StatusOK, worker)
}

func workerID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_id", "worker id must be a positive integer")
		return 0, false
	}
	return id, true
}

// workerForm holds the fields present in the request; absent fields are nil.
type workerForm struct {
	name       *string
	expiresAt  *time.Time
	credential *service.Credential
}

func (s *Server) parseWorkerForm(w http.ResponseWriter, r *http.Request) (workerForm, bool) {
	var form workerForm
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
			writeBodyError(w, err)
			return form, false
		}
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			writeBodyError(w, err)
			return form, false
		}
	case "":
		// No body: nothing supplied.
		return form, true
	default:
		writeError(w, http.StatusUnsupportedMediaType, "unsupported_media_type", "expected multipart/form-data")
		return form, false
	}

	if v, ok := r.Form["name"]; ok && len(v) > 0 {
		name := v[0]
		form.name = &name
	}

	if v, ok := r.Form["expiration_date"]; ok && len(v) > 0 {
		raw := strings.TrimSpace(v[0])
		if raw == "" {
			form.expiresAt = &time.Time{}
		} else {
			t, err := service.ParseInstant(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "validation_error", "expiration_date: expected RFC3339 or YYYY-MM-DD")
				return form, false
			}
			form.expiresAt = &t
		}
	}

	if r.MultipartForm != nil {
		f, hdr, err := r.FormFile("file")
		switch {
		case errors.Is(err, http.ErrMissingFile):
		case err != nil:
			writeBodyError(w, err)
			return form, false
		default:
			defer f.Close()
			data, err := io.ReadAll(f)
			if err != nil {
				writeBodyError(w, err)
				return form, false
			}
			ct := hdr.Header.Get("Content-Type")
			if ct == "" || ct == "application/octet-stream" {
				ct = http.DetectContentType(data)
			}
			form.credential = &service.Credential{Data: data, ContentType: ct}
		}
	}

	return form, true
}
