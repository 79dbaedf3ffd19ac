// Package staticfile serializes the analysis output into the .aard
// static file: per-function statement records with successors, def/use
// accesses, source locations and the trailing filename table.
package staticfile

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"path/filepath"

	"github.com/viant/afs"
	"github.com/viant/afs/file"

	"github.com/viant/aardwolf/access"
	"github.com/viant/aardwolf/analysis"
	"github.com/viant/aardwolf/wire"
)

// Writer emits static files for analysis results. The zero-dependency
// encoding itself lives in Encode; Writer adds the afs-backed output
// placement so the file can land on any storage backend.
type Writer struct {
	fs afs.Service
}

// New creates a Writer backed by the default afs service.
func New() *Writer {
	return &Writer{fs: afs.New()}
}

// Write encodes res and stores it as <outdir>/<basename(sourcePath)>.aard.
// It returns the destination the file was written to.
func (w *Writer) Write(ctx context.Context, res *analysis.Result, sourcePath, outdir string) (string, error) {
	data, err := Encode(res, sourcePath)
	if err != nil {
		return "", err
	}
	dest := filepath.Join(outdir, filepath.Base(sourcePath)+".aard")
	if err := w.fs.Upload(ctx, dest, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("failed to write static file %s: %w", dest, err)
	}
	return dest, nil
}

// Encode renders res into the static wire format. Value ids are
// assigned here, on first encounter of each structurally distinct
// access, in emission order.
func Encode(res *analysis.Result, sourcePath string) ([]byte, error) {
	e := &encoder{res: res}
	e.buf.WriteString(wire.StaticMagic)

	for _, ctx := range res.Contexts {
		blocks := res.Blocks[ctx]
		if len(blocks) == 0 || blocks[0].Empty() {
			continue
		}
		e.buf.WriteByte(wire.TokenFunction)
		e.cstr(ctx)
		for _, blk := range blocks {
			for _, id := range blk.Stmts {
				st, ok := res.Statement(id)
				if !ok {
					return nil, fmt.Errorf("block references unknown statement %d in %s", id, ctx)
				}
				e.statement(st)
			}
		}
	}

	e.buf.WriteByte(wire.TokenFilenames)
	e.u32(1)
	e.u64(res.FileID)
	e.cstr(sourcePath)

	return e.buf.Bytes(), nil
}

type encoder struct {
	res *analysis.Result
	buf bytes.Buffer
}

func (e *encoder) statement(st *analysis.Statement) {
	e.buf.WriteByte(wire.TokenStatement)
	e.u64(st.ID.FileID)
	e.u64(st.ID.Stmt)

	e.buf.WriteByte(byte(len(st.Succ)))
	for _, succ := range st.Succ {
		e.u64(succ.FileID)
		e.u64(succ.Stmt)
	}

	e.buf.WriteByte(byte(len(st.Defs)))
	for _, def := range st.Defs {
		e.access(def)
	}

	e.buf.WriteByte(byte(len(st.Uses)))
	for _, use := range st.Uses {
		e.access(use)
	}

	e.u64(st.Loc.FileID)
	e.u32(uint32(st.Loc.StartLine))
	e.u32(uint32(st.Loc.StartCol))
	e.u32(uint32(st.Loc.EndLine))
	e.u32(uint32(st.Loc.EndCol))

	e.buf.WriteByte(st.Meta)
}

func (e *encoder) access(a *access.Access) {
	switch a.Kind {
	case access.KindScalar:
		e.buf.WriteByte(wire.TokenScalar)
		e.u64(e.res.Values.Get(a))
	case access.KindStructural:
		e.buf.WriteByte(wire.TokenStructural)
		e.access(a.Base)
		e.access(a.Field)
	case access.KindArrayLike:
		e.buf.WriteByte(wire.TokenArrayLike)
		e.access(a.Base)
		e.u32(uint32(len(a.Indices)))
		for _, idx := range a.Indices {
			e.access(idx)
		}
	}
}

func (e *encoder) u32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.buf.Write(b[:])
}

func (e *encoder) u64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	e.buf.Write(b[:])
}

func (e *encoder) cstr(s string) {
	e.buf.WriteString(s)
	e.buf.WriteByte(0)
}
