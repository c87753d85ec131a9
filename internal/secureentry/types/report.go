package types

// ReportFilters echoes the filters applied to a report.
type ReportFilters struct {
	DateFrom string `json:"date_from,omitempty"`
	DateTo   string `json:"date_to,omitempty"`
	WorkerID *int64 `json:"worker_id,omitempty"`
	Valid    bool   `json:"valid"`
	Invalid  bool   `json:"invalid"`
}

type ReportEntry struct {
	ID         int64  `json:"id"`
	Date       string `json:"date"`
	Code       int    `json:"code"`
	Message    string `json:"message"`
	WorkerID   *int64 `json:"worker_id"`
	WorkerName string `json:"worker_name,omitempty"`
	KioskID    string `json:"kiosk_id,omitempty"`
	FaceImage  string `json:"face_image,omitempty"` // base64
}

type Report struct {
	Count   int           `json:"count"`
	Filters ReportFilters `json:"filters"`
	Data    []ReportEntry `json:"data"`
}
