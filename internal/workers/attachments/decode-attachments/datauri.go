package decodeattachments

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	ErrNotDataURI       = errors.New("not a data URI")
	ErrMalformedDataURI = errors.New("malformed data URI")
)

// ParseDataURI splits a data URI into its media type and decoded payload.
// Base64 and percent-encoded payloads are supported.
func ParseDataURI(uri string) (string, []byte, error) {
	if !strings.HasPrefix(strings.ToLower(uri), "data:") {
		return "", nil, ErrNotDataURI
	}

	header, payload, ok := strings.Cut(uri[len("data:"):], ",")
	if !ok {
		return "", nil, fmt.Errorf("%w: missing comma", ErrMalformedDataURI)
	}

	params := strings.Split(header, ";")
	mediaType := strings.ToLower(strings.TrimSpace(params[0]))
	isBase64 := false
	for _, p := range params[1:] {
		if strings.EqualFold(strings.TrimSpace(p), "base64") {
			isBase64 = true
		}
	}

	if !isBase64 {
		decoded, err := url.PathUnescape(payload)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %v", ErrMalformedDataURI, err)
		}
		return mediaType, []byte(decoded), nil
	}

	payload = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == ' ' || r == '\t' {
			return -1
		}
		return r
	}, payload)

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// Some producers drop the padding.
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return "", nil, fmt.Errorf("%w: %v", ErrMalformedDataURI, err)
		}
	}
	return mediaType, data, nil
}
