// Package runtime is linked into the instrumented program. It owns the
// trace file and the test-results file and exposes the emitters the
// instrumenter injects calls to: write_stmt, write_expr, write_value,
// aardwolf_iter, write_external and write_test_status.
//
// The package-level functions delegate to a process-wide default Handle,
// preserving the global-singleton wire contract for instrumented code;
// tests construct isolated Handles instead.
package runtime

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"sync"

	"github.com/viant/aardwolf/ids"
	"github.com/viant/aardwolf/wire"
)

// DataDestEnv selects the output directory for the trace and results
// files; unset means the current working directory.
const DataDestEnv = "AARDWOLF_DATA_DEST"

// TraceFilename and ResultFilename are fixed names inside the
// destination directory.
const (
	TraceFilename  = "aard.trace"
	ResultFilename = "aard.result"
)

// Enabled reports whether the process runs inside an aardwolf
// environment, i.e. trace data should be generated at all.
func Enabled() bool {
	_, ok := os.LookupEnv(DataDestEnv)
	return ok
}

// Handle owns one trace/results file pair. Emissions are serialized by
// an internal mutex; within a single goroutine they appear in program
// order.
type Handle struct {
	dir string

	mu          sync.Mutex
	traceOnce   sync.Once
	resultsOnce sync.Once
	trace       *os.File
	results     *os.File
	err         error
}

// NewHandle creates a Handle writing into dir; an empty dir resolves
// through DataDestEnv and then the working directory. Files are opened
// lazily on first emission.
func NewHandle(dir string) *Handle {
	if dir == "" {
		dir = os.Getenv(DataDestEnv)
	}
	if dir == "" {
		dir, _ = os.Getwd()
	}
	return &Handle{dir: dir}
}

// initTrace opens the trace file and writes the magic. os.File writes
// are unbuffered — each Write is a single syscall — so a crashing
// program still leaves a readable prefix, matching the buffering=0
// contract of the format.
func (h *Handle) initTrace() {
	h.traceOnce.Do(func() {
		f, err := os.OpenFile(filepath.Join(h.dir, TraceFilename), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			h.err = fmt.Errorf("failed to open trace file: %w", err)
			return
		}
		h.trace = f
		_, h.err = f.WriteString(wire.TraceMagic)
	})
}

func (h *Handle) initResults() {
	h.resultsOnce.Do(func() {
		f, err := os.OpenFile(filepath.Join(h.dir, ResultFilename), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			h.err = fmt.Errorf("failed to open results file: %w", err)
			return
		}
		h.results = f
	})
}

// Err returns the first I/O failure seen by any emitter. Emitters never
// interrupt the traced program; the trace is simply truncated at the
// last successful write.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Close flushes and closes both files.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	var err error
	if h.trace != nil {
		err = h.trace.Close()
		h.trace = nil
	}
	if h.results != nil {
		if cerr := h.results.Close(); err == nil {
			err = cerr
		}
		h.results = nil
	}
	return err
}

func (h *Handle) write(p []byte) {
	if h.trace == nil {
		return
	}
	if _, err := h.trace.Write(p); err != nil && h.err == nil {
		h.err = err
	}
}

func (h *Handle) writeU64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	h.write(b[:])
}

// WriteStmt emits a statement-execution event.
func (h *Handle) WriteStmt(id ids.StmtID) {
	h.initTrace()
	h.mu.Lock()
	defer h.mu.Unlock()
	h.writeStmtLocked(id)
}

func (h *Handle) writeStmtLocked(id ids.StmtID) {
	h.write([]byte{wire.TokenStatement})
	h.writeU64(id.FileID)
	h.writeU64(id.Stmt)
}

// WriteExpr emits the statement event for id and passes result through
// unchanged. The statement is logged before the result flows into its
// consumer.
func (h *Handle) WriteExpr(result any, id ids.StmtID) any {
	h.WriteStmt(id)
	return result
}

// WriteValue decomposes value along tree and emits one data token per
// observable leaf, then passes value through unchanged. A nil tree
// observes the value itself.
func (h *Handle) WriteValue(value any, tree *AccTree) any {
	h.initTrace()
	h.mu.Lock()
	defer h.mu.Unlock()
	h.writeValueLocked(value, tree)
	return value
}

func (h *Handle) writeValueLocked(value any, tree *AccTree) {
	for _, v := range UnpackValues(value, tree) {
		h.writeDatum(v)
	}
}

// writeDatum emits a single typed data token. Booleans are tested
// before integers: a bool must never degrade to I64.
func (h *Handle) writeDatum(v any) {
	switch val := v.(type) {
	case bool:
		b := byte(0)
		if val {
			b = 1
		}
		h.write([]byte{wire.TokenDataBool, b})
	case int:
		h.writeI64(int64(val))
	case int8:
		h.writeI64(int64(val))
	case int16:
		h.writeI64(int64(val))
	case int32:
		h.writeI64(int64(val))
	case int64:
		h.writeI64(val)
	case uint:
		h.writeUintDatum(uint64(val))
	case uint8:
		h.writeI64(int64(val))
	case uint16:
		h.writeI64(int64(val))
	case uint32:
		h.writeI64(int64(val))
	case uint64:
		h.writeUintDatum(val)
	case float64:
		h.write([]byte{wire.TokenDataF64})
		h.writeU64(math.Float64bits(val))
	case float32:
		var b [5]byte
		b[0] = wire.TokenDataF32
		binary.LittleEndian.PutUint32(b[1:], math.Float32bits(val))
		h.write(b[:])
	default:
		h.write([]byte{wire.TokenDataUnsupported})
	}
}

func (h *Handle) writeI64(v int64) {
	h.write([]byte{wire.TokenDataI64})
	h.writeU64(uint64(v))
}

// writeUintDatum rejects unsigned values that do not fit a signed
// 8-byte integer instead of silently wrapping them.
func (h *Handle) writeUintDatum(v uint64) {
	if v > math.MaxInt64 {
		h.write([]byte{wire.TokenDataUnsupported})
		return
	}
	h.writeI64(int64(v))
}

// WriteExternal emits a named trace marker; test drivers use it to mark
// test-case boundaries.
func (h *Handle) WriteExternal(name string) {
	h.initTrace()
	h.mu.Lock()
	defer h.mu.Unlock()
	h.write([]byte{wire.TokenExternal})
	h.write(append([]byte(name), 0))
}

// WriteTestStatus appends "PASS: <name>" or "FAIL: <name>" to the
// results file.
func (h *Handle) WriteTestStatus(name string, passed bool) {
	h.initResults()
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.results == nil {
		return
	}
	status := "FAIL"
	if passed {
		status = "PASS"
	}
	if _, err := fmt.Fprintf(h.results, "%s: %s\n", status, name); err != nil && h.err == nil {
		h.err = err
	}
}

// UnpackValues descends tree over value and returns the flat sequence
// of observable leaves, depth-first left-to-right. When value cannot be
// indexed the way the tree expects, every leaf below that point yields
// nil so the expected number of value events is preserved.
func UnpackValues(value any, tree *AccTree) []any {
	if tree == nil || tree.Kind == AccLeaf {
		return []any{value}
	}
	if tree.Kind == AccStarred {
		// *rest bindings are not observed element by element.
		return []any{nil}
	}

	out := make([]any, 0, len(tree.Children))
	rv := reflect.ValueOf(value)
	indexable := rv.IsValid() && (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array)
	for i, child := range tree.Children {
		var elem any
		if indexable && i < rv.Len() {
			elem = rv.Index(i).Interface()
		}
		out = append(out, UnpackValues(elem, child)...)
	}
	return out
}

var (
	defaultOnce   sync.Once
	defaultHandle *Handle
)

// Default returns the process-wide Handle, created lazily from
// DataDestEnv on first use.
func Default() *Handle {
	defaultOnce.Do(func() {
		defaultHandle = NewHandle("")
	})
	return defaultHandle
}

// WriteStmt emits a statement event through the default Handle.
func WriteStmt(id ids.StmtID) { Default().WriteStmt(id) }

// WriteExpr emits the statement event and returns result unchanged.
func WriteExpr(result any, id ids.StmtID) any { return Default().WriteExpr(result, id) }

// WriteValue observes value through tree and returns it unchanged.
func WriteValue(value any, tree *AccTree) any { return Default().WriteValue(value, tree) }

// WriteExternal emits a test-boundary marker.
func WriteExternal(name string) { Default().WriteExternal(name) }

// WriteTestStatus records a test verdict in the results file.
func WriteTestStatus(name string, passed bool) { Default().WriteTestStatus(name, passed) }

// Close closes the default Handle's files.
func Close() error { return Default().Close() }
