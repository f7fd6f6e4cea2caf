package testutil

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
)

// GGUF wire type tags, duplicated here so the builder does not depend on
// the package under test.
const (
	ggufTypeUint8   = 0
	ggufTypeUint32  = 4
	ggufTypeFloat32 = 6
	ggufTypeBool    = 7
	ggufTypeString  = 8
	ggufTypeArray   = 9
	ggufTypeUint64  = 10
	ggufTypeInt64   = 11
)

// GGUFBuilder assembles a minimal GGUF byte image: header plus metadata
// records, no tensor data.
type GGUFBuilder struct {
	version     uint32
	tensorCount uint64
	kvs         []ggufKV
}

type ggufKV struct {
	key  string
	data []byte // type tag + encoded value
}

// NewGGUF returns a builder producing a version 3 container.
func NewGGUF() *GGUFBuilder {
	return &GGUFBuilder{version: 3}
}

// Version overrides the header version.
func (b *GGUFBuilder) Version(v uint32) *GGUFBuilder {
	b.version = v
	return b
}

// TensorCount overrides the header tensor count.
func (b *GGUFBuilder) TensorCount(n uint64) *GGUFBuilder {
	b.tensorCount = n
	return b
}

// String appends a string record.
func (b *GGUFBuilder) String(key, val string) *GGUFBuilder {
	var buf bytes.Buffer
	writeLE(&buf, uint32(ggufTypeString))
	writeGGUFString(&buf, val)
	return b.add(key, buf.Bytes())
}

// Uint32 appends a uint32 record.
func (b *GGUFBuilder) Uint32(key string, val uint32) *GGUFBuilder {
	var buf bytes.Buffer
	writeLE(&buf, uint32(ggufTypeUint32))
	writeLE(&buf, val)
	return b.add(key, buf.Bytes())
}

// Int64 appends an int64 record.
func (b *GGUFBuilder) Int64(key string, val int64) *GGUFBuilder {
	var buf bytes.Buffer
	writeLE(&buf, uint32(ggufTypeInt64))
	writeLE(&buf, val)
	return b.add(key, buf.Bytes())
}

// Float32 appends a float32 record.
func (b *GGUFBuilder) Float32(key string, val float32) *GGUFBuilder {
	var buf bytes.Buffer
	writeLE(&buf, uint32(ggufTypeFloat32))
	writeLE(&buf, math.Float32bits(val))
	return b.add(key, buf.Bytes())
}

// Bool appends a bool record.
func (b *GGUFBuilder) Bool(key string, val bool) *GGUFBuilder {
	var buf bytes.Buffer
	writeLE(&buf, uint32(ggufTypeBool))
	var by uint8
	if val {
		by = 1
	}
	writeLE(&buf, by)
	return b.add(key, buf.Bytes())
}

// Bytes appends a uint8-array record (a raw byte payload).
func (b *GGUFBuilder) Bytes(key string, val []byte) *GGUFBuilder {
	var buf bytes.Buffer
	writeLE(&buf, uint32(ggufTypeArray))
	writeLE(&buf, uint32(ggufTypeUint8))
	writeLE(&buf, uint64(len(val)))
	buf.Write(val)
	return b.add(key, buf.Bytes())
}

// Strings appends a string-array record.
func (b *GGUFBuilder) Strings(key string, vals []string) *GGUFBuilder {
	var buf bytes.Buffer
	writeLE(&buf, uint32(ggufTypeArray))
	writeLE(&buf, uint32(ggufTypeString))
	writeLE(&buf, uint64(len(vals)))
	for _, v := range vals {
		writeGGUFString(&buf, v)
	}
	return b.add(key, buf.Bytes())
}

// Uint64s appends a uint64-array record.
func (b *GGUFBuilder) Uint64s(key string, vals []uint64) *GGUFBuilder {
	var buf bytes.Buffer
	writeLE(&buf, uint32(ggufTypeArray))
	writeLE(&buf, uint32(ggufTypeUint64))
	writeLE(&buf, uint64(len(vals)))
	for _, v := range vals {
		writeLE(&buf, v)
	}
	return b.add(key, buf.Bytes())
}

// Build returns the assembled byte image.
func (b *GGUFBuilder) Build() []byte {
	var buf bytes.Buffer
	buf.WriteString("GGUF")
	writeLE(&buf, b.version)
	writeLE(&buf, b.tensorCount)
	writeLE(&buf, uint64(len(b.kvs)))
	for _, kv := range b.kvs {
		writeGGUFString(&buf, kv.key)
		buf.Write(kv.data)
	}
	return buf.Bytes()
}

// WriteFile writes the image into dir and returns the file path.
func (b *GGUFBuilder) WriteFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, b.Build(), 0644); err != nil {
		t.Fatalf("write gguf fixture: %v", err)
	}
	return path
}

func (b *GGUFBuilder) add(key string, data []byte) *GGUFBuilder {
	b.kvs = append(b.kvs, ggufKV{key: key, data: data})
	return b
}

func writeGGUFString(buf *bytes.Buffer, s string) {
	writeLE(buf, uint64(len(s)))
	buf.WriteString(s)
}

func writeLE(buf *bytes.Buffer, v any) {
	_ = binary.Write(buf, binary.LittleEndian, v)
}
