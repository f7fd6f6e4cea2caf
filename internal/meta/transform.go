package meta

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"ggufscope/internal/gguf"
)

// Markers used in display values that defer to a full value.
const (
	// BinaryDisplayMarker is shown for byte payloads that failed text
	// classification; the full value holds their base64 form.
	BinaryDisplayMarker = "<binary> (long)"
)

// Transformer maps one raw record to a MetadataEntry. It is pure and
// total: malformed variants degrade to a debug rendering instead of
// failing, so a single unreadable field never aborts a load.
type Transformer struct {
	limits Limits
}

// NewTransformer returns a transformer using the given thresholds.
// Zero limits fall back to the defaults.
func NewTransformer(l Limits) *Transformer {
	if l.DisplayThreshold <= 0 || l.ArrayPreview <= 0 || l.ArrayFullThreshold <= 0 {
		l = DefaultLimits()
	}
	return &Transformer{limits: l}
}

// Transform converts one raw record into its display/full representation.
// Rules apply in priority order: special key, scalar, string, array, bytes.
func (t *Transformer) Transform(key string, v gguf.Value) MetadataEntry {
	if IsSpecialKey(key) {
		full := renderValue(v)
		return MetadataEntry{Key: key, DisplayValue: SpecialDisplayMarker, FullValue: &full}
	}

	switch v.Kind {
	case gguf.KindBool, gguf.KindInt, gguf.KindUint, gguf.KindFloat:
		return MetadataEntry{Key: key, DisplayValue: scalarString(v)}

	case gguf.KindString:
		return t.stringEntry(key, v.Str)

	case gguf.KindBytes:
		if s, ok := t.limits.Classify(v.Bytes); ok {
			return MetadataEntry{Key: key, DisplayValue: s}
		}
		full := EncodeBinary(v.Bytes)
		return MetadataEntry{Key: key, DisplayValue: BinaryDisplayMarker, FullValue: &full}

	case gguf.KindArray:
		return t.arrayEntry(key, v.Array)

	default:
		// Degrade arm: unexpected variants render as a debug string.
		return MetadataEntry{Key: key, DisplayValue: debugString(v)}
	}
}

func (t *Transformer) stringEntry(key, s string) MetadataEntry {
	if len(s) < t.limits.DisplayThreshold {
		return MetadataEntry{Key: key, DisplayValue: s}
	}
	display := fmt.Sprintf("<string> (%d chars)", utf8.RuneCountInString(s))
	full := s
	return MetadataEntry{Key: key, DisplayValue: display, FullValue: &full}
}

func (t *Transformer) arrayEntry(key string, elems []gguf.Value) MetadataEntry {
	n := len(elems)
	if n == 0 {
		return MetadataEntry{Key: key, DisplayValue: "<array> (0 items)"}
	}

	if n <= t.limits.ArrayFullThreshold {
		// Small arrays render completely inline so the display value
		// stays the full content.
		display := fmt.Sprintf("<array> (%d items): %s", n, joinValues(elems))
		return MetadataEntry{Key: key, DisplayValue: display}
	}

	// The preview length never exceeds the array itself; settings may
	// legally pair a large preview with a small full threshold.
	p := t.limits.ArrayPreview
	if p > n {
		p = n
	}
	preview := joinValues(elems[:p])
	display := fmt.Sprintf("<array> (%d items): %s, …", n, preview)
	full := joinValues(elems)
	return MetadataEntry{Key: key, DisplayValue: display, FullValue: &full}
}

// renderValue produces the complete lossless textual form of a value.
// Byte payloads decode as UTF-8 when valid, otherwise base64. Nested
// arrays are bracketed; top-level arrays join flat.
func renderValue(v gguf.Value) string {
	switch v.Kind {
	case gguf.KindBool, gguf.KindInt, gguf.KindUint, gguf.KindFloat:
		return scalarString(v)
	case gguf.KindString:
		return v.Str
	case gguf.KindBytes:
		if utf8.Valid(v.Bytes) {
			return string(v.Bytes)
		}
		return EncodeBinary(v.Bytes)
	case gguf.KindArray:
		return joinValues(v.Array)
	default:
		return debugString(v)
	}
}

func joinValues(elems []gguf.Value) string {
	parts := make([]string, len(elems))
	for i, e := range elems {
		s := renderValue(e)
		if e.Kind == gguf.KindArray {
			s = "[" + s + "]"
		}
		parts[i] = s
	}
	return strings.Join(parts, ", ")
}

func scalarString(v gguf.Value) string {
	switch v.Kind {
	case gguf.KindBool:
		return strconv.FormatBool(v.Bool)
	case gguf.KindInt:
		return strconv.FormatInt(v.Int, 10)
	case gguf.KindUint:
		return strconv.FormatUint(v.Uint, 10)
	case gguf.KindFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	default:
		return debugString(v)
	}
}

func debugString(v gguf.Value) string {
	return fmt.Sprintf("<unreadable value: kind %s>", v.Kind)
}
