package types

// VerifyRequest is what a kiosk submits for one scan. Image is a data URI
// or bare base64.
type VerifyRequest struct {
	Image     string `json:"image"`
	Timestamp string `json:"timestamp,omitempty"` // kiosk-reported capture time
	KioskID   string `json:"kiosk_id,omitempty"`
}

type VerifyResponse struct {
	Granted    bool   `json:"granted"`
	Code       int    `json:"code"`
	Message    string `json:"message"`
	ServerTime string `json:"server_time"`
}

// Entry codes. Zero is the only granting code.
const (
	CodeGranted       = 0
	CodeNoMatch       = 1
	CodeWorkerExpired = 2
	CodeInvalidImage  = 3
	CodeUnknownKiosk  = 4
	CodeMatcherError  = 5
)

// CodeMessage returns the entry message recorded for code.
func CodeMessage(code int) string {
	switch code {
	case CodeGranted:
		return "access granted"
	case CodeNoMatch:
		return "no matching worker"
	case CodeWorkerExpired:
		return "worker authorization expired"
	case CodeInvalidImage:
		return "invalid image"
	case CodeUnknownKiosk:
		return "unknown kiosk"
	case CodeMatcherError:
		return "matcher error"
	default:
		return "denied"
	}
}
