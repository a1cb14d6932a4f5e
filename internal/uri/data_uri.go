package uri

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// ErrInvalidDataURI is returned for strings that do not follow RFC 2397
var ErrInvalidDataURI = errors.New("invalid data URI")

// DataURI is a decoded RFC 2397 data URI
type DataURI struct {
	MimeType string
	Data     []byte
}

// IsDataURI reports whether the string uses the data: scheme
func IsDataURI(s string) bool {
	return len(s) >= 5 && strings.EqualFold(s[:5], "data:")
}

// ParseDataURI decodes data:[<mediatype>][;base64],<data>
func ParseDataURI(s string) (*DataURI, error) {
	if !IsDataURI(s) {
		return nil, ErrInvalidDataURI
	}

	header, payload, ok := strings.Cut(s[5:], ",")
	if !ok {
		return nil, fmt.Errorf("%w: missing comma", ErrInvalidDataURI)
	}

	params := strings.Split(header, ";")
	mimeType := strings.TrimSpace(params[0])
	if mimeType == "" {
		mimeType = "text/plain"
	}

	isBase64 := false
	for _, p := range params[1:] {
		if strings.EqualFold(strings.TrimSpace(p), "base64") {
			isBase64 = true
		}
	}

	var data []byte
	if isBase64 {
		decoded, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			// Unpadded payloads show up in the wild
			decoded, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidDataURI, err)
			}
		}
		data = decoded
	} else {
		unescaped, err := url.PathUnescape(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDataURI, err)
		}
		data = []byte(unescaped)
	}

	return &DataURI{MimeType: strings.ToLower(mimeType), Data: data}, nil
}

// IsImageDataURI reports whether a data URI carries a non-empty image whose
// content matches the declared image type
func IsImageDataURI(s string) bool {
	parsed, err := ParseDataURI(s)
	if err != nil || len(parsed.Data) == 0 {
		return false
	}
	if !strings.HasPrefix(parsed.MimeType, "image/") {
		return false
	}

	detected := mimetype.Detect(parsed.Data)
	return mimeTypesMatch(parsed.MimeType, detected.String())
}

// mimeTypesMatch compares base types, treating image/svg and image/svg+xml as equal
func mimeTypesMatch(declared, detected string) bool {
	declared = strings.TrimSpace(strings.Split(strings.ToLower(declared), ";")[0])
	detected = strings.TrimSpace(strings.Split(strings.ToLower(detected), ";")[0])

	if declared == detected {
		return true
	}

	return (declared == "image/svg" && detected == "image/svg+xml") ||
		(declared == "image/svg+xml" && detected == "image/svg")
}
