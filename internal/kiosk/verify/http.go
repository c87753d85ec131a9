package verify

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/secureentry/secureentry/internal/secureentry/types"
)

const (
	verifyPath       = "/api/skan"
	maxResponseBytes = 1 << 20
)

// HTTPClient posts frames as JSON to the server's scan endpoint.
type HTTPClient struct {
	baseURL string
	kioskID string
	client  *http.Client
}

func NewHTTPClient(baseURL, kioskID string, client *http.Client) *HTTPClient {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		kioskID: kioskID,
		client:  client,
	}
}

func (c *HTTPClient) Verify(ctx context.Context, image []byte, takenAt time.Time) (Decision, error) {
	body, err := json.Marshal(types.VerifyRequest{
		Image:     DataURI(image),
		Timestamp: takenAt.UTC().Format(time.RFC3339),
		KioskID:   c.kioskID,
	})
	if err != nil {
		return Decision{}, &TransportError{Op: "encode", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+verifyPath, bytes.NewReader(body))
	if err != nil {
		return Decision{}, &TransportError{Op: "request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.kioskID != "" {
		req.Header.Set("X-Kiosk-ID", c.kioskID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Decision{}, &TransportError{Op: "post", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Decision{}, &TransportError{Op: "read", StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Decision{}, &TransportError{Op: "post", StatusCode: resp.StatusCode}
	}

	return decodeDecision(raw)
}

func decodeDecision(raw []byte) (Decision, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Decision{}, &MalformedResponseError{Reason: "body is not a JSON object"}
	}
	g, ok := fields["granted"]
	if !ok {
		return Decision{}, &MalformedResponseError{Reason: "granted is missing"}
	}
	var granted *bool
	if err := json.Unmarshal(g, &granted); err != nil || granted == nil {
		return Decision{}, &MalformedResponseError{Reason: fmt.Sprintf("granted is not a boolean: %s", g)}
	}
	return Decision{Granted: *granted}, nil
}

// DataURI encodes image as a base64 data URI, sniffing its media type.
func DataURI(image []byte) string {
	ct := http.DetectContentType(image)
	if !strings.HasPrefix(ct, "image/") {
		ct = "image/jpeg"
	}
	return "data:" + ct + ";base64," + base64.StdEncoding.EncodeToString(image)
}
