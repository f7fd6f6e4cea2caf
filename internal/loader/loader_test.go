package loader

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"testing"
	"time"

	"ggufscope/internal/gguf"
	"ggufscope/internal/meta"
	"ggufscope/internal/testutil"
)

// stubSource feeds canned records, with optional per-record delay and
// error injection.
type stubSource struct {
	openErr error
	header  gguf.Header
	recs    []gguf.Record
	delay   time.Duration
	failAt  int // fail on the n-th Next call (1-based), 0 disables
}

func (s *stubSource) Open(path string) (RecordReader, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	return &stubReader{src: s}, nil
}

type stubReader struct {
	src *stubSource
	i   int
}

func (r *stubReader) Header() gguf.Header { return r.src.header }
func (r *stubReader) Count() uint64       { return uint64(len(r.src.recs)) }
func (r *stubReader) Close() error        { return nil }

func (r *stubReader) Next() (gguf.Record, error) {
	if r.src.delay > 0 {
		time.Sleep(r.src.delay)
	}
	r.i++
	if r.src.failAt > 0 && r.i == r.src.failAt {
		return gguf.Record{}, errors.New("corrupt record")
	}
	if r.i > len(r.src.recs) {
		return gguf.Record{}, io.EOF
	}
	return r.src.recs[r.i-1], nil
}

func newTestLoader(src Source) *Loader {
	return New(src, meta.NewTransformer(meta.DefaultLimits()), nil)
}

// awaitOutcome polls like a render loop until the outcome arrives.
func awaitOutcome(t *testing.T, ld *Loader) *Outcome {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if o, ok := ld.Poll(); ok {
			return o
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting for load outcome")
	return nil
}

func stubRecords(n int) []gguf.Record {
	recs := make([]gguf.Record, n)
	for i := range recs {
		recs[i] = gguf.Record{Key: fmt.Sprintf("key.%d", i), Value: gguf.UintValue(uint64(i))}
	}
	return recs
}

func TestLoadSuccess(t *testing.T) {
	src := &stubSource{
		header: gguf.Header{Version: 3, TensorCount: 10, KVCount: 2},
		recs: []gguf.Record{
			{Key: "general.name", Value: gguf.StringValue("Llama-2-7b")},
			{Key: "general.file_type", Value: gguf.UintValue(2)},
		},
	}
	ld := newTestLoader(src)

	if got := ld.State(); got != StateIdle {
		t.Errorf("expected idle before start, got %s", got)
	}
	if err := ld.Start("model.gguf"); err != nil {
		t.Fatalf("start: %v", err)
	}

	o := awaitOutcome(t, ld)
	if o.Err != nil {
		t.Fatalf("unexpected failure: %v", o.Err)
	}
	if got := ld.State(); got != StateSucceeded {
		t.Errorf("expected succeeded, got %s", got)
	}
	if got := ld.Progress(); got != 1.0 {
		t.Errorf("expected progress 1.0 after success, got %f", got)
	}

	// Header pseudo-entries precede the container records, in order.
	wantKeys := []string{"version", "tensor_count", "kv_count", "general.name", "general.file_type"}
	if len(o.Entries) != len(wantKeys) {
		t.Fatalf("expected %d entries, got %d", len(wantKeys), len(o.Entries))
	}
	for i, k := range wantKeys {
		if o.Entries[i].Key != k {
			t.Errorf("entry %d: expected key %q, got %q", i, k, o.Entries[i].Key)
		}
	}
	if o.Entries[3].DisplayValue != "Llama-2-7b" {
		t.Errorf("unexpected display value: %q", o.Entries[3].DisplayValue)
	}
}

func TestProgressMonotonicAcrossPolls(t *testing.T) {
	src := &stubSource{recs: stubRecords(25), delay: time.Millisecond}
	ld := newTestLoader(src)

	if err := ld.Start("model.gguf"); err != nil {
		t.Fatalf("start: %v", err)
	}

	var samples []float64
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		samples = append(samples, ld.Progress())
		if _, ok := ld.Poll(); ok {
			break
		}
		time.Sleep(time.Millisecond)
	}
	samples = append(samples, ld.Progress())

	for i := 1; i < len(samples); i++ {
		if samples[i] < samples[i-1] {
			t.Fatalf("progress decreased: %f after %f", samples[i], samples[i-1])
		}
	}
	if final := samples[len(samples)-1]; final != 1.0 {
		t.Errorf("expected final progress 1.0, got %f", final)
	}
}

func TestOpenFailure(t *testing.T) {
	src := &stubSource{openErr: errors.New("no such file")}
	ld := newTestLoader(src)

	if err := ld.Start("missing.gguf"); err != nil {
		t.Fatalf("start: %v", err)
	}

	o := awaitOutcome(t, ld)
	if o.Err == nil {
		t.Fatal("expected failure outcome")
	}
	if len(o.Entries) != 0 {
		t.Error("a failed load must not expose entries")
	}
	if got := ld.State(); got != StateFailed {
		t.Errorf("expected failed, got %s", got)
	}
	// Failure before any record: progress stays at its last value, 0.0.
	if got := ld.Progress(); got != 0.0 {
		t.Errorf("expected progress 0.0, got %f", got)
	}
}

func TestMidStreamFailureExposesNoPartialList(t *testing.T) {
	src := &stubSource{recs: stubRecords(10), failAt: 4}
	ld := newTestLoader(src)

	if err := ld.Start("model.gguf"); err != nil {
		t.Fatalf("start: %v", err)
	}

	o := awaitOutcome(t, ld)
	if o.Err == nil {
		t.Fatal("expected failure outcome")
	}
	if len(o.Entries) != 0 {
		t.Errorf("half-parsed containers must not leak entries, got %d", len(o.Entries))
	}
	if got := ld.Progress(); got >= 1.0 {
		t.Errorf("progress must not reach 1.0 on failure, got %f", got)
	}
}

func TestSecondStartRejectedWhileRunning(t *testing.T) {
	src := &stubSource{recs: stubRecords(50), delay: 2 * time.Millisecond}
	ld := newTestLoader(src)

	if err := ld.Start("first.gguf"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := ld.Start("second.gguf"); !errors.Is(err, ErrLoadInProgress) {
		t.Errorf("expected ErrLoadInProgress, got %v", err)
	}

	// The first load's result is still delivered intact.
	o := awaitOutcome(t, ld)
	if o.Err != nil {
		t.Fatalf("first load failed: %v", o.Err)
	}
	if len(o.Entries) != 50+3 {
		t.Errorf("expected 53 entries from the first load, got %d", len(o.Entries))
	}
}

func TestOutcomeDeliveredOnce(t *testing.T) {
	src := &stubSource{recs: stubRecords(2)}
	ld := newTestLoader(src)

	if err := ld.Start("model.gguf"); err != nil {
		t.Fatalf("start: %v", err)
	}
	awaitOutcome(t, ld)

	if _, ok := ld.Poll(); ok {
		t.Error("outcome must not be delivered twice")
	}
}

func TestRestartAfterCompletion(t *testing.T) {
	src := &stubSource{recs: stubRecords(2)}
	ld := newTestLoader(src)

	if err := ld.Start("model.gguf"); err != nil {
		t.Fatalf("start: %v", err)
	}
	first := awaitOutcome(t, ld)
	gen1 := ld.Generation()

	if err := ld.Start("model.gguf"); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if ld.Generation() == gen1 {
		t.Error("expected a fresh load generation")
	}
	second := awaitOutcome(t, ld)
	if second.Err != nil || len(second.Entries) != len(first.Entries) {
		t.Error("second load must deliver a complete fresh outcome")
	}
}

func TestFileSourceEndToEnd(t *testing.T) {
	dir := t.TempDir()
	path := testutil.NewGGUF().
		TensorCount(291).
		String("general.name", "Qwen3-0.6B").
		Strings("tokenizer.ggml.tokens", []string{"<s>", "</s>", "a", "b", "c", "d", "e", "f", "g", "h"}).
		Bytes("custom.blob", []byte{0xde, 0xad, 0xbe, 0xef}).
		WriteFile(t, dir, "model.gguf")

	ld := newTestLoader(FileSource{})
	if err := ld.Start(path); err != nil {
		t.Fatalf("start: %v", err)
	}

	o := awaitOutcome(t, ld)
	if o.Err != nil {
		t.Fatalf("load failed: %v", o.Err)
	}
	if len(o.Entries) != 6 {
		t.Fatalf("expected 6 entries (3 header + 3 records), got %d", len(o.Entries))
	}
	if o.Entries[1].Key != "tensor_count" || o.Entries[1].DisplayValue != "291" {
		t.Errorf("unexpected tensor_count entry: %+v", o.Entries[1])
	}
	tokens := o.Entries[4]
	if tokens.Key != "tokenizer.ggml.tokens" || tokens.DisplayValue != meta.SpecialDisplayMarker {
		t.Errorf("unexpected tokens entry: %+v", tokens)
	}
	if tokens.FullValue == nil {
		t.Error("token list must carry its full content")
	}
	blob := o.Entries[5]
	if blob.FullValue == nil {
		t.Fatal("binary blob must carry an encoded full value")
	}
	if decoded, err := meta.DecodeBinary(*blob.FullValue); err != nil || len(decoded) != 4 {
		t.Errorf("blob full value must decode back to the original bytes")
	}
}

func TestFileSourceMissingPath(t *testing.T) {
	ld := newTestLoader(FileSource{})
	if err := ld.Start(filepath.Join(t.TempDir(), "nope.gguf")); err != nil {
		t.Fatalf("start: %v", err)
	}

	o := awaitOutcome(t, ld)
	if o.Err == nil {
		t.Fatal("expected failure for a nonexistent path")
	}
	if got := ld.Progress(); got != 0.0 {
		t.Errorf("expected progress to stay at 0.0, got %f", got)
	}
}
