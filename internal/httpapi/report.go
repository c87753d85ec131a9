package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/secureentry/secureentry/internal/secureentry/service"
)

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	rq := service.ReportQuery{
		DateFrom: strings.TrimSpace(q.Get("date_from")),
		DateTo:   strings.TrimSpace(q.Get("date_to")),
		Valid:    flag(q, "valid"),
		Invalid:  flag(q, "invalid"),
	}

	if raw := strings.TrimSpace(q.Get("worker_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_error", "worker_id must be an integer")
			return
		}
		rq.WorkerID = &id
	}

	report, err := s.reports.Report(r.Context(), rq)
	if err != nil {
		s.writeServiceError(w, r, "report", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// flag treats a bare "?valid" as true.
func flag(q map[string][]string, key string) bool {
	v, ok := q[key]
	if !ok {
		return false
	}
	if len(v) == 0 || v[0] == "" {
		return true
	}
	b, err := strconv.ParseBool(v[0])
	return err == nil && b
}
