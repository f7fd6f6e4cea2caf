package meta

import (
	"encoding/base64"
	"unicode"
	"unicode/utf8"
)

// Classify decides whether b is printable text small enough to show
// inline. It returns the decoded string and true only when b is wholly
// valid UTF-8, contains no control bytes other than tab/newline/CR, and
// is below the display threshold. Large legitimate text still classifies
// as binary so it keeps a full-value path. The check scans every byte;
// identical input always yields identical classification.
func (l Limits) Classify(b []byte) (string, bool) {
	if len(b) >= l.DisplayThreshold {
		return "", false
	}
	if !utf8.Valid(b) {
		return "", false
	}
	s := string(b)
	for _, r := range s {
		if r == '\t' || r == '\n' || r == '\r' {
			continue
		}
		if r == utf8.RuneError || !unicode.IsGraphic(r) {
			return "", false
		}
	}
	return s, true
}

// EncodeBinary renders raw bytes as reversible ASCII-safe text.
func EncodeBinary(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// DecodeBinary reverses EncodeBinary.
func DecodeBinary(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}
