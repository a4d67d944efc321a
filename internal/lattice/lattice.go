// Package lattice implements the abstract-interpretation domain used by
// the type inference engine: Bottom ⊑ Const ⊑ Concrete ⊑
// Union ⊑ Top, plus the per-operation Effects tuple.
package lattice

import (
	"fmt"
	"sort"
	"strings"

	"subsetjulia/internal/types"
)

// MaxUnionLength and MaxUnionComplexity bound how large a union can
// grow before it is widened to something coarser.
const (
	MaxUnionLength     = 8
	MaxUnionComplexity = 24
)

type Kind int

const (
	KindBottom Kind = iota
	KindConst
	KindConcrete
	KindUnion
	KindTop
)

func (k Kind) String() string {
	switch k {
	case KindBottom:
		return "Bottom"
	case KindConst:
		return "Const"
	case KindConcrete:
		return "Concrete"
	case KindUnion:
		return "Union"
	case KindTop:
		return "Top"
	}
	return "?"
}

// Type is one element of the lattice. Only the fields relevant to Kind are
// populated; the rest are zero.
type Type struct {
	Kind      Kind
	ConstVal  interface{}     // KindConst
	ConstType types.JuliaType // KindConst: typeof(ConstVal)
	Concrete  types.JuliaType // KindConcrete
	Union     []types.JuliaType // KindUnion, sorted by Name for determinism
}

func Bottom() Type { return Type{Kind: KindBottom} }
func Top() Type    { return Type{Kind: KindTop} }

func Const(v interface{}, ty types.JuliaType) Type {
	return Type{Kind: KindConst, ConstVal: v, ConstType: ty}
}

func ConcreteT(ty types.JuliaType) Type {
	return Type{Kind: KindConcrete, Concrete: ty}
}

// UnionOf builds a (possibly widened) union from a set of concrete types.
// Deduplicates and sorts for a canonical representation.
func UnionOf(ts ...types.JuliaType) Type {
	set := dedup(ts)
	if len(set) == 0 {
		return Bottom()
	}
	if len(set) == 1 {
		return ConcreteT(set[0])
	}
	return widenUnion(Type{Kind: KindUnion, Union: set})
}

func dedup(ts []types.JuliaType) []types.JuliaType {
	seen := map[string]bool{}
	var out []types.JuliaType
	for _, t := range ts {
		k := t.String()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func (t Type) String() string {
	switch t.Kind {
	case KindBottom:
		return "Bottom"
	case KindTop:
		return "Any"
	case KindConst:
		return fmt.Sprintf("Const(%v::%s)", t.ConstVal, t.ConstType)
	case KindConcrete:
		return t.Concrete.String()
	case KindUnion:
		names := make([]string, len(t.Union))
		for i, u := range t.Union {
			names[i] = u.String()
		}
		return "Union{" + strings.Join(names, ", ") + "}"
	}
	return "?"
}

// typeOf returns the Concrete type this lattice element's values have,
// collapsing Const to its underlying type.
func (t Type) typeOf() (types.JuliaType, bool) {
	switch t.Kind {
	case KindConst:
		return t.ConstType, true
	case KindConcrete:
		return t.Concrete, true
	}
	return types.JuliaType{}, false
}

// LessEq implements the partial order: Bottom ⊑ Const ⊑ Concrete ⊑ Union ⊑ Top.
func LessEq(a, b Type) bool {
	if a.Kind == KindBottom || b.Kind == KindTop {
		return true
	}
	if a.Kind == KindTop {
		return b.Kind == KindTop
	}
	switch a.Kind {
	case KindConst:
		switch b.Kind {
		case KindConst:
			return a.ConstType.Equal(b.ConstType) && a.ConstVal == b.ConstVal
		case KindConcrete:
			return a.ConstType.Equal(b.Concrete)
		case KindUnion:
			return containsType(b.Union, a.ConstType)
		}
	case KindConcrete:
		switch b.Kind {
		case KindConcrete:
			return a.Concrete.Equal(b.Concrete)
		case KindUnion:
			return containsType(b.Union, a.Concrete)
		}
	case KindUnion:
		if b.Kind == KindUnion {
			return isSubsetOf(a.Union, b.Union)
		}
	}
	return false
}

func containsType(set []types.JuliaType, t types.JuliaType) bool {
	for _, s := range set {
		if s.Equal(t) {
			return true
		}
	}
	return false
}

func isSubsetOf(a, b []types.JuliaType) bool {
	for _, x := range a {
		if !containsType(b, x) {
			return false
		}
	}
	return true
}

// Join computes the least upper bound. Const joins to Concrete on any
// mismatch (including two distinct constants of the same type); Concrete
// ∪ Concrete becomes a Union of the two; Union ∪ anything is set union
// followed by widening.
func Join(a, b Type) Type {
	if a.Kind == KindBottom {
		return b
	}
	if b.Kind == KindBottom {
		return a
	}
	if a.Kind == KindTop || b.Kind == KindTop {
		return Top()
	}

	// Const + Const with identical value: stays Const.
	if a.Kind == KindConst && b.Kind == KindConst {
		if a.ConstType.Equal(b.ConstType) && a.ConstVal == b.ConstVal {
			return a
		}
		return Join(ConcreteT(a.ConstType), ConcreteT(b.ConstType))
	}

	at, aIsScalar := a.typeOf()
	bt, bIsScalar := b.typeOf()
	if aIsScalar && bIsScalar {
		if at.Equal(bt) {
			return ConcreteT(at)
		}
		return UnionOf(at, bt)
	}

	// At least one side is already a Union.
	var members []types.JuliaType
	if a.Kind == KindUnion {
		members = append(members, a.Union...)
	} else if aIsScalar {
		members = append(members, at)
	}
	if b.Kind == KindUnion {
		members = append(members, b.Union...)
	} else if bIsScalar {
		members = append(members, bt)
	}
	return UnionOf(members...)
}

// Meet computes the intersection (greatest lower bound).
func Meet(a, b Type) Type {
	if a.Kind == KindTop {
		return b
	}
	if b.Kind == KindTop {
		return a
	}
	if a.Kind == KindBottom || b.Kind == KindBottom {
		return Bottom()
	}
	at, aIsScalar := a.typeOf()
	bt, bIsScalar := b.typeOf()
	if aIsScalar && bIsScalar {
		if at.Equal(bt) {
			if a.Kind == KindConst {
				return a
			}
			return ConcreteT(at)
		}
		return Bottom()
	}
	if a.Kind == KindUnion && bIsScalar {
		if containsType(a.Union, bt) {
			return b
		}
		return Bottom()
	}
	if b.Kind == KindUnion && aIsScalar {
		if containsType(b.Union, at) {
			return a
		}
		return Bottom()
	}
	if a.Kind == KindUnion && b.Kind == KindUnion {
		var common []types.JuliaType
		for _, x := range a.Union {
			if containsType(b.Union, x) {
				common = append(common, x)
			}
		}
		return UnionOf(common...)
	}
	return Bottom()
}

// Subtract removes t from a union — used by the negative branch of an
// isa-check during union splitting.
func Subtract(a Type, t types.JuliaType) Type {
	switch a.Kind {
	case KindTop:
		return Top()
	case KindConcrete:
		if a.Concrete.Equal(t) {
			return Bottom()
		}
		return a
	case KindConst:
		if a.ConstType.Equal(t) {
			return Bottom()
		}
		return a
	case KindUnion:
		var rest []types.JuliaType
		for _, m := range a.Union {
			if !m.Equal(t) {
				rest = append(rest, m)
			}
		}
		return UnionOf(rest...)
	}
	return Bottom()
}

// WideningObserver is notified every time a union widens to something
// coarser; nil disables the hook. Nothing in this module assigns it, so
// widening is not reported to the diagnostics collector unless an embedder
// sets it.
var WideningObserver func(reason string, n int)

// widenUnion applies the widening rule: once a union exceeds
// MaxUnionLength members or MaxUnionComplexity type-tree complexity, it
// collapses to Concrete(Float64) if every member is a float, Concrete(Int64)
// if every member is an integer, else Top.
func widenUnion(u Type) Type {
	if len(u.Union) <= MaxUnionLength && totalComplexity(u.Union) <= MaxUnionComplexity {
		return u
	}
	if allFloat(u.Union) {
		notify("UnionTooLarge", len(u.Union))
		return ConcreteT(types.Float64)
	}
	if allInt(u.Union) {
		notify("UnionTooLarge", len(u.Union))
		return ConcreteT(types.Int64)
	}
	notify("UnionTooComplex", len(u.Union))
	return Top()
}

func notify(reason string, n int) {
	if WideningObserver != nil {
		WideningObserver(reason, n)
	}
}

func totalComplexity(ts []types.JuliaType) int {
	c := 0
	for _, t := range ts {
		c += t.Complexity()
	}
	return c
}

func allFloat(ts []types.JuliaType) bool {
	for _, t := range ts {
		if !types.IsFloat(t) {
			return false
		}
	}
	return len(ts) > 0
}

func allInt(ts []types.JuliaType) bool {
	for _, t := range ts {
		if !types.IsInteger(t) {
			return false
		}
	}
	return len(ts) > 0
}
