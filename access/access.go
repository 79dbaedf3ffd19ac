// Package access implements the value-access algebra used as the
// universal def/use unit across analysis, staticfile and instrumenter:
// a Scalar names a symbol (or a call-site tagged temporary), Structural
// names a field off a base access, and ArrayLike names an indexed
// element off a base access.
package access

import (
	"fmt"

	"github.com/minio/highwayhash"
)

type Kind int

const (
	KindScalar Kind = iota
	KindStructural
	KindArrayLike
)

// Pos is a call-site tag (line, col) attached to Scalar accesses that
// stand in for an expression result rather than a named symbol.
type Pos struct {
	Line int
	Col  int
}

// Access is a tagged-variant node. Only the fields relevant to Kind are
// populated; the rest are zero. CallSite applies regardless of Kind: a
// call's function expression may itself be a Scalar (`foo()`) or a
// Structural (`obj.method()`), and either is tagged the same way so two
// calls through the same base at different sites stay distinguishable.
type Access struct {
	Kind     Kind
	CallSite *Pos // non-nil when this access tags a call-site value

	// Scalar
	Value string // symbol name, or a synthetic name for call results

	// Structural
	Base  *Access
	Field *Access

	// ArrayLike
	Indices []*Access
}

// Scalar builds a named-symbol access.
func Scalar(name string) *Access {
	return &Access{Kind: KindScalar, Value: name}
}

// Call tags base (a Scalar or Structural produced by visiting a call's
// function expression) with its call site's source position, so two
// calls through the same name/field at different sites are
// distinguishable accesses.
func Call(base *Access, line, col int) *Access {
	tagged := *base
	tagged.CallSite = &Pos{Line: line, Col: col}
	return &tagged
}

// Structural builds a field access: base.field.
func Structural(base, field *Access) *Access {
	return &Access{Kind: KindStructural, Base: base, Field: field}
}

// ArrayLike builds an indexed access: base[indices...].
func ArrayLike(base *Access, indices ...*Access) *Access {
	return &Access{Kind: KindArrayLike, Base: base, Indices: indices}
}

func (a *Access) IsScalar() bool     { return a.Kind == KindScalar }
func (a *Access) IsStructural() bool { return a.Kind == KindStructural }
func (a *Access) IsArrayLike() bool  { return a.Kind == KindArrayLike }

func (a *Access) String() string {
	if a == nil {
		return "<nil>"
	}
	var out string
	switch a.Kind {
	case KindScalar:
		out = a.Value
	case KindStructural:
		out = fmt.Sprintf("%s.%s", a.Base, a.Field)
	case KindArrayLike:
		out = a.Base.String()
		for _, idx := range a.Indices {
			out += "[" + idx.String() + "]"
		}
	default:
		return "<invalid access>"
	}
	if a.CallSite != nil {
		out += fmt.Sprintf(":%d:%d", a.CallSite.Line, a.CallSite.Col)
	}
	return out
}

// Equal reports structural equality: same kind, same value and
// call-site tag, recursively equal base/field/indices.
func (a *Access) Equal(other *Access) bool {
	if a == nil || other == nil {
		return a == other
	}
	if a.Kind != other.Kind {
		return false
	}
	if (a.CallSite == nil) != (other.CallSite == nil) {
		return false
	}
	if a.CallSite != nil && *a.CallSite != *other.CallSite {
		return false
	}
	switch a.Kind {
	case KindScalar:
		return a.Value == other.Value
	case KindStructural:
		return a.Base.Equal(other.Base) && a.Field.Equal(other.Field)
	case KindArrayLike:
		if !a.Base.Equal(other.Base) || len(a.Indices) != len(other.Indices) {
			return false
		}
		for i := range a.Indices {
			if !a.Indices[i].Equal(other.Indices[i]) {
				return false
			}
		}
		return true
	}
	return false
}

var hashKey = []byte("AARDWOLF-ACCESS-HASH-KEY-0123456")

// Fingerprint produces a stable uint64 digest of the access's canonical
// byte encoding, used by Map as a fast pre-check before falling back to
// the full structural Equal.
func (a *Access) Fingerprint() uint64 {
	h, err := highwayhash.New64(hashKey)
	if err != nil {
		// highwayhash.New64 only fails on a malformed key; hashKey is a
		// fixed 32-byte literal above, so this cannot happen.
		panic(err)
	}
	a.writeDigest(h)
	return h.Sum64()
}

type byteWriter interface {
	Write(p []byte) (int, error)
}

func (a *Access) writeDigest(w byteWriter) {
	if a == nil {
		w.Write([]byte{0})
		return
	}
	switch a.Kind {
	case KindScalar:
		w.Write([]byte{1})
		w.Write([]byte(a.Value))
	case KindStructural:
		w.Write([]byte{2})
		a.Base.writeDigest(w)
		a.Field.writeDigest(w)
	case KindArrayLike:
		w.Write([]byte{3})
		a.Base.writeDigest(w)
		for _, idx := range a.Indices {
			idx.writeDigest(w)
		}
	}
	if a.CallSite != nil {
		w.Write([]byte{1, byte(a.CallSite.Line), byte(a.CallSite.Line >> 8), byte(a.CallSite.Col), byte(a.CallSite.Col >> 8)})
	} else {
		w.Write([]byte{0})
	}
}

// Location is a statement/expression's source span, tied to a FileID
// assigned by ids.FileID.
type Location struct {
	FileID    uint64
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
}
