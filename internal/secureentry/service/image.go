package service

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
)

var ErrInvalidImage = errors.New("invalid image")

// DecodeImage accepts a data URI ("data:image/jpeg;base64,...") or bare
// base64 and returns the bytes if they sniff as an image.
func DecodeImage(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrInvalidImage
	}

	if strings.HasPrefix(s, "data:") {
		meta, payload, ok := strings.Cut(s, ",")
		if !ok || !strings.HasSuffix(meta, ";base64") {
			return nil, ErrInvalidImage
		}
		s = payload
	}

	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		if b, err = base64.RawStdEncoding.DecodeString(s); err != nil {
			return nil, ErrInvalidImage
		}
	}
	if !IsImage(b) {
		return nil, ErrInvalidImage
	}
	return b, nil
}

// IsImage reports whether b sniffs as an image/* content type.
func IsImage(b []byte) bool {
	return len(b) > 0 && strings.HasPrefix(http.DetectContentType(b), "image/")
}
