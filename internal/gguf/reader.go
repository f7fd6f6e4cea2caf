// Package gguf decodes the metadata section of GGUF model containers.
//
// The reader streams key/value records in container order without
// loading tensor data. Only the header and metadata portions of the
// format are parsed; anything past the last metadata record is ignored.
package gguf

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// GGUF wire type tags.
const (
	typeUint8   = 0
	typeInt8    = 1
	typeUint16  = 2
	typeInt16   = 3
	typeUint32  = 4
	typeInt32   = 5
	typeFloat32 = 6
	typeBool    = 7
	typeString  = 8
	typeArray   = 9
	typeUint64  = 10
	typeInt64   = 11
	typeFloat64 = 12
)

// Sanity caps on length prefixes. A corrupt container must fail fast
// instead of triggering a multi-gigabyte allocation.
const (
	maxStringLen = 1 << 30
	maxArrayLen  = 1 << 28
)

var (
	// ErrBadMagic indicates the file does not start with the GGUF signature.
	ErrBadMagic = errors.New("not a GGUF file (bad magic)")
	// ErrUnsupportedVersion indicates a container version this reader cannot decode.
	ErrUnsupportedVersion = errors.New("unsupported GGUF version")
)

// Header holds the fixed-size GGUF file header.
type Header struct {
	Version     uint32
	TensorCount uint64
	KVCount     uint64
}

// Records returns the header fields as pseudo-records, so consumers see
// version, tensor_count and kv_count as ordinary metadata entries ahead
// of the real records.
func (h Header) Records() []Record {
	return []Record{
		{Key: "version", Value: UintValue(uint64(h.Version))},
		{Key: "tensor_count", Value: UintValue(h.TensorCount)},
		{Key: "kv_count", Value: UintValue(h.KVCount)},
	}
}

// Reader streams metadata records from an open GGUF file.
type Reader struct {
	f         *os.File
	br        *bufio.Reader
	header    Header
	remaining uint64
}

// Open opens path and decodes the GGUF header. The returned reader is
// positioned at the first metadata record.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open container: %w", err)
	}

	br := bufio.NewReaderSize(f, 256*1024)

	var magic [4]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if string(magic[:]) != "GGUF" {
		f.Close()
		return nil, ErrBadMagic
	}

	var h Header
	if err := readLE(br, &h.Version); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read version: %w", err)
	}
	if h.Version < 2 || h.Version > 3 {
		f.Close()
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}
	if err := readLE(br, &h.TensorCount); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read tensor count: %w", err)
	}
	if err := readLE(br, &h.KVCount); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read kv count: %w", err)
	}

	return &Reader{f: f, br: br, header: h, remaining: h.KVCount}, nil
}

// Header returns the decoded file header.
func (r *Reader) Header() Header { return r.header }

// Count returns the number of metadata records declared by the header.
func (r *Reader) Count() uint64 { return r.header.KVCount }

// Next returns the next metadata record in container order. It returns
// io.EOF after the last record.
func (r *Reader) Next() (Record, error) {
	if r.remaining == 0 {
		return Record{}, io.EOF
	}

	key, err := r.readString()
	if err != nil {
		return Record{}, fmt.Errorf("failed to read record key: %w", err)
	}

	var tag uint32
	if err := readLE(r.br, &tag); err != nil {
		return Record{}, fmt.Errorf("failed to read value type for %q: %w", key, err)
	}

	v, err := r.readValue(tag)
	if err != nil {
		return Record{}, fmt.Errorf("failed to read value for %q: %w", key, err)
	}

	r.remaining--
	return Record{Key: key, Value: v}, nil
}

// Close releases the underlying file.
func (r *Reader) Close() error { return r.f.Close() }

func (r *Reader) readValue(tag uint32) (Value, error) {
	switch tag {
	case typeUint8:
		var v uint8
		if err := readLE(r.br, &v); err != nil {
			return Value{}, err
		}
		return UintValue(uint64(v)), nil
	case typeInt8:
		var v int8
		if err := readLE(r.br, &v); err != nil {
			return Value{}, err
		}
		return IntValue(int64(v)), nil
	case typeUint16:
		var v uint16
		if err := readLE(r.br, &v); err != nil {
			return Value{}, err
		}
		return UintValue(uint64(v)), nil
	case typeInt16:
		var v int16
		if err := readLE(r.br, &v); err != nil {
			return Value{}, err
		}
		return IntValue(int64(v)), nil
	case typeUint32:
		var v uint32
		if err := readLE(r.br, &v); err != nil {
			return Value{}, err
		}
		return UintValue(uint64(v)), nil
	case typeInt32:
		var v int32
		if err := readLE(r.br, &v); err != nil {
			return Value{}, err
		}
		return IntValue(int64(v)), nil
	case typeFloat32:
		var v float32
		if err := readLE(r.br, &v); err != nil {
			return Value{}, err
		}
		return FloatValue(float64(v)), nil
	case typeBool:
		var v uint8
		if err := readLE(r.br, &v); err != nil {
			return Value{}, err
		}
		return BoolValue(v != 0), nil
	case typeString:
		s, err := r.readString()
		if err != nil {
			return Value{}, err
		}
		return StringValue(s), nil
	case typeArray:
		return r.readArray()
	case typeUint64:
		var v uint64
		if err := readLE(r.br, &v); err != nil {
			return Value{}, err
		}
		return UintValue(v), nil
	case typeInt64:
		var v int64
		if err := readLE(r.br, &v); err != nil {
			return Value{}, err
		}
		return IntValue(v), nil
	case typeFloat64:
		var v float64
		if err := readLE(r.br, &v); err != nil {
			return Value{}, err
		}
		return FloatValue(v), nil
	default:
		return Value{}, fmt.Errorf("unknown value type tag %d", tag)
	}
}

func (r *Reader) readArray() (Value, error) {
	var elem uint32
	if err := readLE(r.br, &elem); err != nil {
		return Value{}, err
	}
	var count uint64
	if err := readLE(r.br, &count); err != nil {
		return Value{}, err
	}
	if count > maxArrayLen {
		return Value{}, fmt.Errorf("array length %d exceeds limit", count)
	}

	// Byte-wide arrays are raw payloads (chat templates, binary blobs),
	// not lists to iterate per element.
	if elem == typeUint8 || elem == typeInt8 {
		b := make([]byte, count)
		if _, err := io.ReadFull(r.br, b); err != nil {
			return Value{}, err
		}
		return BytesValue(b), nil
	}

	vals := make([]Value, 0, count)
	for i := uint64(0); i < count; i++ {
		v, err := r.readValue(elem)
		if err != nil {
			return Value{}, fmt.Errorf("array element %d: %w", i, err)
		}
		vals = append(vals, v)
	}
	return Value{Kind: KindArray, Array: vals}, nil
}

func (r *Reader) readString() (string, error) {
	var n uint64
	if err := readLE(r.br, &n); err != nil {
		return "", err
	}
	if n > maxStringLen {
		return "", fmt.Errorf("string length %d exceeds limit", n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r.br, b); err != nil {
		return "", err
	}
	return string(b), nil
}

func readLE(r io.Reader, v any) error {
	return binary.Read(r, binary.LittleEndian, v)
}
