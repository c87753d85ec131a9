// Package directoryclient talks to the worker directory endpoints of
// secureentry-server. The admin CLI is its only caller.
package directoryclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/secureentry/secureentry/internal/secureentry/types"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("worker not found")
)

// APIError is a 4xx answer decoded from the server's {error, message}
// body. It unwraps to ErrValidation or ErrNotFound where one applies.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s (status %d)", e.Code, e.StatusCode)
}

func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return ErrValidation
	case http.StatusNotFound:
		return ErrNotFound
	}
	return nil
}

// TransportError covers network failures and 5xx answers. Err carries the
// decoded APIError when the server sent one.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

// Credential is a face image to upload.
type Credential struct {
	Filename    string
	ContentType string
	Data        []byte
}

type CreateParams struct {
	Name       string
	ExpiresAt  time.Time
	Credential Credential
}

// UpdateParams sends only the non-nil fields.
type UpdateParams struct {
	Name       *string
	ExpiresAt  *time.Time
	Credential *Credential
}

func (c *Client) List(ctx context.Context) ([]types.Worker, error) {
	var out []types.Worker
	if err := c.do(ctx, "list workers", http.MethodGet, "/api/workers", nil, "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Create(ctx context.Context, p CreateParams) (types.Worker, error) {
	fields := map[string]string{
		"name":            p.Name,
		"expiration_date": formatInstant(p.ExpiresAt),
	}
	var cred *Credential
	if len(p.Credential.Data) > 0 {
		cred = &p.Credential
	}
	body, ct, err := multipartBody(fields, cred)
	if err != nil {
		return types.Worker{}, err
	}

	var out types.Worker
	err = c.do(ctx, "create worker", http.MethodPost, "/api/workers", body, ct, &out)
	return out, err
}

func (c *Client) Update(ctx context.Context, id int64, p UpdateParams) (types.Worker, error) {
	fields := map[string]string{}
	if p.Name != nil {
		fields["name"] = *p.Name
	}
	if p.ExpiresAt != nil {
		fields["expiration_date"] = formatInstant(*p.ExpiresAt)
	}
	body, ct, err := multipartBody(fields, p.Credential)
	if err != nil {
		return types.Worker{}, err
	}

	var out types.Worker
	err = c.do(ctx, "update worker", http.MethodPut, "/api/workers/"+strconv.FormatInt(id, 10), body, ct, &out)
	return out, err
}

func (c *Client) Revoke(ctx context.Context, id int64) (types.Worker, error) {
	var out types.Worker
	err := c.do(ctx, "revoke worker", http.MethodPut, "/api/workers/invalidate/"+strconv.FormatInt(id, 10), nil, "", &out)
	return out, err
}

func (c *Client) do(ctx context.Context, op, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return &TransportError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if err := json.Unmarshal(raw, out); err != nil {
			return &TransportError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
		}
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return decodeAPIError(resp.StatusCode, raw)
	default:
		return &TransportError{Op: op, StatusCode: resp.StatusCode, Err: decodeAPIError(resp.StatusCode, raw)}
	}
}

func decodeAPIError(status int, raw []byte) *APIError {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || body.Error == "" {
		return &APIError{StatusCode: status, Code: strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))}
	}
	return &APIError{StatusCode: status, Code: body.Error, Message: body.Message}
}

// formatInstant sends the zero time as an empty value, which the server
// rejects as a missing expiration.
func formatInstant(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func multipartBody(fields map[string]string, cred *Credential) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}

	if cred != nil {
		name := cred.Filename
		if name == "" {
			name = "face.jpg"
		}
		ct := cred.ContentType
		if ct == "" {
			ct = http.DetectContentType(cred.Data)
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
		h.Set("Content-Type", ct)
		part, err := mw.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(cred.Data); err != nil {
			return nil, "", err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}
