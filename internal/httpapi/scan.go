package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/secureentry/secureentry/internal/secureentry/types"
)

const kioskHeader = "X-Kiosk-ID"

// handleScan accepts either {"image","timestamp"} JSON or a multipart
// upload with a "file" part. The decision is always 200 with a body; only
// malformed requests and server faults get an error status.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	var req types.VerifyRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
			writeBodyError(w, err)
			return
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "missing_file", "file is required")
			return
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			writeBodyError(w, err)
			return
		}
		req.Image = base64.StdEncoding.EncodeToString(data)
		req.Timestamp = r.FormValue("timestamp")
		req.KioskID = r.FormValue("kiosk_id")
	} else {
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeBodyError(w, err)
			return
		}
	}

	if id := strings.TrimSpace(r.Header.Get(kioskHeader)); id != "" {
		req.KioskID = id
	}

	resp, err := s.verification.Decide(r.Context(), req)
	if err != nil {
		s.log.Error(r.Context(), "scan failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeBodyError(w http.ResponseWriter, err error) {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		writeError(w, http.StatusRequestEntityTooLarge, "too_large", "request body too large")
		return
	}
	writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
}
