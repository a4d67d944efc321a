package infer

import (
	"subsetjulia/internal/lattice"
	"subsetjulia/internal/types"
)

// Context carries whatever a transfer function needs beyond the argument
// types — currently just the struct table, for struct-table-aware
// resolution.
type Context struct {
	Structs *types.StructTable
}

// TFunc is a transfer function: (arg_types[, context]) -> result. Every
// registration takes the context parameter; functions that don't need it
// simply ignore it.
type TFunc func(args []lattice.Type, ctx *Context) (lattice.Type, lattice.Effects, bool)

type Registry struct {
	fns map[string]TFunc
}

func NewRegistry() *Registry {
	r := &Registry{fns: make(map[string]TFunc)}
	r.registerBuiltins()
	return r
}

func (r *Registry) Register(name string, f TFunc) { r.fns[name] = f }

func (r *Registry) Lookup(name string) (TFunc, bool) {
	f, ok := r.fns[name]
	return f, ok
}

func concreteOf(t lattice.Type) (types.JuliaType, bool) {
	switch t.Kind {
	case lattice.KindConst:
		return t.ConstType, true
	case lattice.KindConcrete:
		return t.Concrete, true
	}
	return types.JuliaType{}, false
}

// promote implements Int×Float→Float, small-int preservation when both
// sides match, and Union/Top propagation for the arithmetic family.
func promote(a, b lattice.Type) (lattice.Type, bool) {
	at, aok := concreteOf(a)
	bt, bok := concreteOf(b)
	if !aok || !bok {
		if a.Kind == lattice.KindTop || b.Kind == lattice.KindTop {
			return lattice.Top(), true
		}
		return lattice.Type{}, false
	}
	if at.Equal(bt) {
		return lattice.ConcreteT(at), true
	}
	if types.IsFloat(at) && types.IsInteger(bt) {
		return lattice.ConcreteT(at), true
	}
	if types.IsInteger(at) && types.IsFloat(bt) {
		return lattice.ConcreteT(bt), true
	}
	if types.IsFloat(at) && types.IsFloat(bt) {
		return lattice.ConcreteT(types.Float64), true
	}
	if types.IsInteger(at) && types.IsInteger(bt) {
		return lattice.ConcreteT(types.Int64), true
	}
	return lattice.Type{}, false
}

func arith(name string) TFunc {
	return func(args []lattice.Type, _ *Context) (lattice.Type, lattice.Effects, bool) {
		if len(args) != 2 {
			return lattice.Type{}, lattice.Effects{}, false
		}
		result, ok := promote(args[0], args[1])
		if !ok {
			return lattice.Type{}, lattice.Effects{}, false
		}
		return result, lattice.PureArithmetic(), true
	}
}

func cmp() TFunc {
	return func(args []lattice.Type, _ *Context) (lattice.Type, lattice.Effects, bool) {
		if len(args) != 2 {
			return lattice.Type{}, lattice.Effects{}, false
		}
		return lattice.ConcreteT(types.Bool), lattice.PureArithmetic(), true
	}
}

func (r *Registry) registerBuiltins() {
	r.Register("+", arith("+"))
	r.Register("-", arith("-"))
	r.Register("*", arith("*"))
	r.Register("⊻", arith("⊻"))

	// Division always promotes to float — true division, never integer.
	r.Register("/", func(args []lattice.Type, _ *Context) (lattice.Type, lattice.Effects, bool) {
		if len(args) != 2 {
			return lattice.Type{}, lattice.Effects{}, false
		}
		at, aok := concreteOf(args[0])
		bt, bok := concreteOf(args[1])
		if !aok || !bok {
			return lattice.Top(), lattice.Arbitrary(), true
		}
		if at.Name == "Float32" && bt.Name == "Float32" {
			return lattice.ConcreteT(types.Float32), lattice.PureArithmetic(), true
		}
		return lattice.ConcreteT(types.Float64), lattice.PureArithmetic(), true
	})

	// `%` — Julia's truncated remainder; same promotion as the rest of
	// the arithmetic family but never throws on its own in this model
	// (division by zero is checked at the VM).
	r.Register("%", arith("%"))

	// Integer base with an integer exponent stays integer; either side
	// float promotes the whole expression to float.
	r.Register("^", func(args []lattice.Type, _ *Context) (lattice.Type, lattice.Effects, bool) {
		if len(args) != 2 {
			return lattice.Type{}, lattice.Effects{}, false
		}
		at, aok := concreteOf(args[0])
		bt, bok := concreteOf(args[1])
		if !aok || !bok {
			return lattice.Top(), lattice.Arbitrary(), true
		}
		if types.IsInteger(at) && types.IsInteger(bt) {
			return lattice.ConcreteT(at), lattice.PureArithmetic(), true
		}
		return lattice.ConcreteT(types.Float64), lattice.PureArithmetic(), true
	})

	for _, op := range []string{"==", "!=", "<", "<=", ">", ">="} {
		r.Register(op, cmp())
	}

	r.Register("length", func(args []lattice.Type, _ *Context) (lattice.Type, lattice.Effects, bool) {
		if len(args) != 1 {
			return lattice.Type{}, lattice.Effects{}, false
		}
		return lattice.ConcreteT(types.Int64), lattice.PureArithmetic(), true
	})

	r.Register("eltype", func(args []lattice.Type, _ *Context) (lattice.Type, lattice.Effects, bool) {
		if len(args) != 1 {
			return lattice.Type{}, lattice.Effects{}, false
		}
		t, ok := concreteOf(args[0])
		if !ok || len(t.Params) == 0 {
			return lattice.Top(), lattice.PureArithmetic(), true
		}
		return lattice.ConcreteT(t.Params[0]), lattice.PureArithmetic(), true
	})

	r.Register("getfield", func(args []lattice.Type, ctx *Context) (lattice.Type, lattice.Effects, bool) {
		if len(args) != 2 || ctx == nil || ctx.Structs == nil {
			return lattice.Top(), lattice.ArrayGetIndex(), true
		}
		recv, ok := concreteOf(args[0])
		if !ok {
			return lattice.Top(), lattice.ArrayGetIndex(), true
		}
		fieldName, ok := concreteOf(args[1])
		_ = fieldName
		if !ok {
			return lattice.Top(), lattice.ArrayGetIndex(), true
		}
		def, ok := ctx.Structs.Get(recv.Name)
		if !ok {
			return lattice.Top(), lattice.ArrayGetIndex(), true
		}
		name, _ := args[1].ConstVal.(string)
		for _, f := range def.Fields {
			if f.Name == name {
				if f.Type != nil && f.Type.Kind == types.TEConcrete {
					return lattice.ConcreteT(f.Type.Concrete), lattice.ArrayGetIndex(), true
				}
				return lattice.Top(), lattice.ArrayGetIndex(), true
			}
		}
		return lattice.Top(), lattice.ArrayGetIndex(), true
	})

	// Complex{T} accessors extract the element type from the struct name.
	for _, name := range []string{"real", "imag", "conj", "abs2", "angle", "reim"} {
		n := name
		r.Register(n, func(args []lattice.Type, _ *Context) (lattice.Type, lattice.Effects, bool) {
			if len(args) != 1 {
				return lattice.Type{}, lattice.Effects{}, false
			}
			t, ok := concreteOf(args[0])
			if !ok || t.Name != "Complex" || len(t.Params) != 1 {
				return lattice.Top(), lattice.PureArithmetic(), true
			}
			switch n {
			case "conj":
				return lattice.ConcreteT(t), lattice.PureArithmetic(), true
			case "angle", "abs2":
				return lattice.ConcreteT(types.Float64), lattice.PureArithmetic(), true
			default:
				return lattice.ConcreteT(t.Params[0]), lattice.PureArithmetic(), true
			}
		})
	}
}
