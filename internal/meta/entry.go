// Package meta turns raw GGUF metadata records into a two-tier
// display/full representation that is safe to render inline.
package meta

// MetadataEntry is the pipeline's output unit.
//
// DisplayValue is always bounded and safe to render inline. FullValue is
// present only when the value exceeded a size threshold, was classified
// as binary, or its key is special; it then holds the complete lossless
// rendering and DisplayValue is only a summary pointer to it. When
// FullValue is nil, DisplayValue already is the complete content.
type MetadataEntry struct {
	Key          string  `json:"key"`
	DisplayValue string  `json:"display_value"`
	FullValue    *string `json:"full_value,omitempty"`
}

// Limits holds the display-size thresholds applied by the transformer.
type Limits struct {
	// DisplayThreshold is the maximum string/byte length shown inline.
	DisplayThreshold int
	// ArrayPreview is the number of leading elements shown for large arrays.
	ArrayPreview int
	// ArrayFullThreshold is the largest array rendered completely inline.
	ArrayFullThreshold int
}

// DefaultLimits returns the thresholds used when no settings override them.
func DefaultLimits() Limits {
	return Limits{
		DisplayThreshold:   256,
		ArrayPreview:       4,
		ArrayFullThreshold: 8,
	}
}
