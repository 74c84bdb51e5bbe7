package sink

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/poiesic/datajobs/core"
)

// EncodeJSONLines encodes payloads as newline-delimited JSON.
// An unencodable payload is a user error.
func EncodeJSONLines(payloads []core.Payload) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i, p := range payloads {
		if err := enc.Encode(p); err != nil {
			return nil, core.UserError(fmt.Errorf("encoding payload %d: %w", i, err))
		}
	}
	return buf.Bytes(), nil
}

// EncodeEach encodes every payload to its own JSON document.
func EncodeEach(payloads []core.Payload) ([][]byte, error) {
	out := make([][]byte, len(payloads))
	for i, p := range payloads {
		b, err := json.Marshal(p)
		if err != nil {
			return nil, core.UserError(fmt.Errorf("encoding payload %d: %w", i, err))
		}
		out[i] = b
	}
	return out, nil
}

var segmentReplacer = strings.NewReplacer("/", "_", "\\", "_", "|", "_", ":", "_", " ", "_", "..", "_")

// SanitizeSegment makes s safe for use as one path, key or subject segment.
// Empty values become fallback.
func SanitizeSegment(s, fallback string) string {
	s = segmentReplacer.Replace(strings.TrimSpace(s))
	if s == "" || s == "." {
		return fallback
	}
	return s
}
