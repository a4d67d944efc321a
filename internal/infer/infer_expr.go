package infer

import (
	"subsetjulia/internal/diagnostics"
	"subsetjulia/internal/ir"
	"subsetjulia/internal/lattice"
	"subsetjulia/internal/types"
)

// inferExpr is the recursive expression-level abstract interpreter. It
// returns the inferred lattice type and
// records it (plus effects) into the TypedProgram's per-expression maps so
// the bytecode compiler can look both up by AST identity later.
func (eng *Engine) inferExpr(e ir.Expr, e2 env) lattice.Type {
	t, eff := eng.inferExprEffects(e, e2)
	eng.typed.ExprTypes[e] = t
	eng.typed.ExprEffects[e] = eff
	return t
}

func (eng *Engine) inferExprEffects(e ir.Expr, en env) (lattice.Type, lattice.Effects) {
	switch x := e.(type) {
	case *ir.LitInt:
		return lattice.Const(x.Val, types.Int64), lattice.Total()
	case *ir.LitFloat:
		return lattice.Const(x.Val, types.Float64), lattice.Total()
	case *ir.LitBool:
		return lattice.Const(x.Val, types.Bool), lattice.Total()
	case *ir.LitString:
		return lattice.Const(x.Val, types.String), lattice.Total()
	case *ir.LitChar:
		return lattice.Const(x.Val, types.Char), lattice.Total()
	case *ir.LitNothing:
		return lattice.ConcreteT(types.Nothing), lattice.Total()

	case *ir.Var:
		if t, ok := en[x.Name]; ok {
			return t, lattice.Total()
		}
		eng.emit(diagnostics.ReasonUnknownFunction, x.Name, 0, nil)
		return lattice.Top(), lattice.Arbitrary()

	case *ir.Binary:
		lt := eng.inferExpr(x.Left, en)
		rt := eng.inferExpr(x.Right, en)
		if x.Op == "&&" || x.Op == "||" {
			return lattice.ConcreteT(types.Bool), lattice.PureArithmetic()
		}
		if tf, ok := eng.Registry.Lookup(x.Op); ok {
			res, eff, ok2 := tf([]lattice.Type{lt, rt}, &Context{Structs: eng.structs})
			if ok2 {
				return res, eff
			}
		}
		return lattice.Top(), lattice.Arbitrary()

	case *ir.Unary:
		ot := eng.inferExpr(x.Operand, en)
		if x.Op == "!" {
			return lattice.ConcreteT(types.Bool), lattice.PureArithmetic()
		}
		if t, ok := concreteOf(ot); ok {
			return lattice.ConcreteT(t), lattice.PureArithmetic()
		}
		return lattice.Top(), lattice.Arbitrary()

	case *ir.Call:
		argTypes := make([]lattice.Type, len(x.Args))
		for i, a := range x.Args {
			argTypes[i] = eng.inferExpr(a, en)
		}
		for _, a := range x.Kwargs {
			eng.inferExpr(a, en)
		}
		if tf, ok := eng.Registry.Lookup(x.Callee); ok {
			res, eff, ok2 := tf(argTypes, &Context{Structs: eng.structs})
			if ok2 {
				return res, eff
			}
		}
		if s, ok := eng.summaries[x.Callee]; ok {
			return s.ReturnType, s.Effects
		}
		eng.emit(diagnostics.ReasonUnknownFunction, x.Callee, 0, nil)
		return lattice.Top(), lattice.Arbitrary()

	case *ir.GetField:
		objType := eng.inferExpr(x.Obj, en)
		recv, ok := concreteOf(objType)
		if !ok || eng.structs == nil {
			return lattice.Top(), lattice.ArrayGetIndex()
		}
		def, ok := eng.structs.Get(recv.Name)
		if !ok {
			eng.emit(diagnostics.ReasonUnknownStruct, recv.Name, 0, nil)
			return lattice.Top(), lattice.ArrayGetIndex()
		}
		for _, f := range def.Fields {
			if f.Name == x.Field {
				if f.Type != nil && f.Type.Kind == types.TEConcrete {
					return lattice.ConcreteT(f.Type.Concrete), lattice.ArrayGetIndex()
				}
				return lattice.Top(), lattice.ArrayGetIndex()
			}
		}
		eng.emit(diagnostics.ReasonUnknownField, recv.Name, 0, nil)
		return lattice.Top(), lattice.ArrayGetIndex()

	case *ir.Index:
		eng.inferExpr(x.Obj, en)
		for _, i := range x.Indices {
			eng.inferExpr(i, en)
		}
		eng.emit(diagnostics.ReasonUnknownArrayElement, "", 0, nil)
		return lattice.Top(), lattice.ArrayGetIndex()

	case *ir.IsaCheck:
		eng.inferExpr(x.Obj, en)
		return lattice.ConcreteT(types.Bool), lattice.PureArithmetic()

	case *ir.ArrayLit:
		var elemUnion lattice.Type = lattice.Bottom()
		for _, el := range x.Elems {
			t := eng.inferExpr(el, en)
			elemUnion = lattice.Join(elemUnion, t)
		}
		return lattice.Top(), lattice.PureArithmetic() // array element type is tracked separately at the AOT/VM layer (StaticType), not in this scalar lattice
	case *ir.TupleLit:
		for _, el := range x.Elems {
			eng.inferExpr(el, en)
		}
		return lattice.ConcreteT(types.Tuple), lattice.PureArithmetic()
	case *ir.NamedTupleLit:
		for _, v := range x.Values {
			eng.inferExpr(v, en)
		}
		return lattice.ConcreteT(types.NamedTuple), lattice.PureArithmetic()
	case *ir.StructNew:
		for _, a := range x.Args {
			eng.inferExpr(a, en)
		}
		if eng.structs != nil {
			if _, ok := eng.structs.Get(x.TypeName); ok {
				return lattice.ConcreteT(types.Concrete(x.TypeName)), lattice.WithSideEffects()
			}
		}
		return lattice.ConcreteT(types.Concrete(x.TypeName)), lattice.WithSideEffects()

	case *ir.HOFCall:
		return eng.inferHOF(x, en)
	}
	return lattice.Top(), lattice.Arbitrary()
}

// inferHOF types map/filter/reduce call sites from the function argument
// alone: the per-element result is the named function's summary, or its
// registry transfer function applied to Top. The collection's element type
// is not used. map returns the per-element type itself (no array type is
// built), filter returns the collection's type, and reduce over + applies
// +'s transfer function to two per-element types; any other reduce
// returns the per-element type.
func (eng *Engine) inferHOF(x *ir.HOFCall, en env) (lattice.Type, lattice.Effects) {
	eng.inferExpr(x.Collection, en)
	for _, extra := range x.Extra {
		eng.inferExpr(extra, en)
	}

	funcName, ok := calleeName(x.Func)
	var elemResult lattice.Type = lattice.Top()
	var eff lattice.Effects = lattice.Arbitrary()
	if ok {
		if s, sok := eng.summaries[funcName]; sok {
			elemResult, eff = s.ReturnType, s.Effects
		} else if tf, tok := eng.Registry.Lookup(funcName); tok {
			res, e2, ok2 := tf([]lattice.Type{lattice.Top()}, &Context{Structs: eng.structs})
			if ok2 {
				elemResult, eff = res, e2
			}
		}
	}

	switch x.Kind {
	case ir.HOFMap:
		// ArrayOf(...) is represented at this lattice layer by the scalar
		// element type — the AOT/VM layer carries the full array shape.
		return elemResult, eff
	case ir.HOFFilter:
		return eng.inferExpr(x.Collection, en), eff
	case ir.HOFReduce:
		if tf, tok := eng.Registry.Lookup("+"); tok && funcName == "+" {
			res, e2, ok2 := tf([]lattice.Type{elemResult, elemResult}, &Context{Structs: eng.structs})
			if ok2 {
				return res, e2
			}
		}
		return elemResult, eff
	}
	return lattice.Top(), lattice.Arbitrary()
}

func calleeName(e ir.Expr) (string, bool) {
	switch x := e.(type) {
	case *ir.Var:
		return x.Name, true
	case *ir.Call:
		return x.Callee, true
	}
	return "", false
}
