package infer

import (
	"subsetjulia/internal/diagnostics"
	"subsetjulia/internal/ir"
	"subsetjulia/internal/lattice"
	"subsetjulia/internal/types"
)

// inferBlock infers every statement in b, threading and mutating env as
// assignments are seen; it returns the exit environment (used when joining
// branches at a merge point).
func (eng *Engine) inferBlock(b *ir.Block, en env) env {
	if b == nil {
		return en
	}
	cur := en
	for _, s := range b.Stmts {
		cur = eng.inferStmt(s, cur)
	}
	return cur
}

// inferBlockReturn infers a function body and returns the join of every
// return statement's value type, falling back to Nothing for a body with
// no explicit return (Julia
// semantics: the last expression's value, approximated here as Nothing since
// the core doesn't track expression-statement fallthrough values).
func (eng *Engine) inferBlockReturn(b *ir.Block, en env) (lattice.Type, lattice.Effects) {
	ret := lattice.Bottom()
	eff := lattice.Total()
	eng.inferBlockCollectingReturns(b, en, &ret, &eff)
	if ret.Kind == lattice.KindBottom {
		return lattice.ConcreteT(types.Nothing), eff
	}
	return ret, eff
}

func (eng *Engine) inferBlockCollectingReturns(b *ir.Block, en env, ret *lattice.Type, eff *lattice.Effects) env {
	if b == nil {
		return en
	}
	cur := en
	for _, s := range b.Stmts {
		switch st := s.(type) {
		case *ir.Return:
			var t lattice.Type = lattice.ConcreteT(types.Nothing)
			if st.Value != nil {
				t = eng.inferExpr(st.Value, cur)
			}
			*ret = lattice.Join(*ret, t)
		case *ir.If:
			eng.inferExpr(st.Cond, cur)
			thenEnv, elseEnv := eng.splitOnCondition(st.Cond, cur)
			thenExit := eng.inferBlockCollectingReturns(st.Then, thenEnv, ret, eff)
			var elseExit env
			if st.Else != nil {
				elseExit = eng.inferBlockCollectingReturns(st.Else, elseEnv, ret, eff)
			} else {
				elseExit = elseEnv
			}
			cur = joinEnvs(thenExit, elseExit)
		case *ir.While:
			eng.inferExpr(st.Cond, cur)
			cur = eng.inferBlockCollectingReturns(st.Body, cur, ret, eff)
		case *ir.Try:
			cur = eng.inferBlockCollectingReturns(st.Body, cur, ret, eff)
			if st.Catch != nil {
				catchEnv := cur.clone()
				catchEnv[st.CatchVar] = lattice.Top()
				cur = eng.inferBlockCollectingReturns(st.Catch, catchEnv, ret, eff)
			}
			if st.Finally != nil {
				cur = eng.inferBlockCollectingReturns(st.Finally, cur, ret, eff)
			}
		default:
			cur = eng.inferStmt(s, cur)
		}
	}
	return cur
}

func (eng *Engine) inferStmt(s ir.Stmt, en env) env {
	switch st := s.(type) {
	case *ir.ExprStmt:
		eng.inferExpr(st.Expr, en)
		return en
	case *ir.Assign:
		t := eng.inferExpr(st.Value, en)
		out := en.clone()
		out[st.Name] = t
		return out
	case *ir.If:
		eng.inferExpr(st.Cond, en)
		thenEnv, elseEnv := eng.splitOnCondition(st.Cond, en)
		thenExit := eng.inferBlock(st.Then, thenEnv)
		var elseExit env
		if st.Else != nil {
			elseExit = eng.inferBlock(st.Else, elseEnv)
		} else {
			elseExit = elseEnv
		}
		return joinEnvs(thenExit, elseExit)
	case *ir.While:
		eng.inferExpr(st.Cond, en)
		return eng.inferBlock(st.Body, en)
	case *ir.Return:
		if st.Value != nil {
			eng.inferExpr(st.Value, en)
		}
		return en
	case *ir.Try:
		bodyExit := eng.inferBlock(st.Body, en)
		if st.Catch != nil {
			catchEnv := bodyExit.clone()
			catchEnv[st.CatchVar] = lattice.Top()
			bodyExit = eng.inferBlock(st.Catch, catchEnv)
		}
		if st.Finally != nil {
			bodyExit = eng.inferBlock(st.Finally, bodyExit)
		}
		return bodyExit
	case *ir.Throw:
		eng.inferExpr(st.Value, en)
		return en
	}
	return en
}

// splitOnCondition implements union splitting: when cond has
// the shape `x isa T`, `typeof(x) == T`, or `x === nothing` / `x !==
// nothing`, the environment clones into a then-branch narrowed by meet
// with T (or Nothing) and an else-branch narrowed by subtract. Any other
// condition shape leaves both branches identical to the input environment
// (no narrowing possible).
func (eng *Engine) splitOnCondition(cond ir.Expr, en env) (env, env) {
	isa, ok := cond.(*ir.IsaCheck)
	if !ok {
		return en.clone(), en.clone()
	}
	varName, ok := isa.Obj.(*ir.Var)
	if !ok {
		return en.clone(), en.clone()
	}
	cur, ok := en[varName.Name]
	if !ok {
		cur = lattice.Top()
	}

	var target types.JuliaType
	switch isa.Type.Kind {
	case types.TEConcrete:
		target = isa.Type.Concrete
	default:
		return en.clone(), en.clone()
	}

	thenEnv := en.clone()
	elseEnv := en.clone()

	if isa.NotNil {
		// `x !== nothing`: then-branch narrows away Nothing, else-branch
		// narrows to Nothing.
		thenEnv[varName.Name] = lattice.Subtract(cur, target)
		elseEnv[varName.Name] = lattice.Meet(cur, lattice.ConcreteT(target))
	} else {
		thenEnv[varName.Name] = lattice.Meet(cur, lattice.ConcreteT(target))
		elseEnv[varName.Name] = lattice.Subtract(cur, target)
	}
	eng.emit(diagnostics.ReasonConditionalTypeJoin, varName.Name, 0, nil)
	return thenEnv, elseEnv
}

// joinEnvs merges two branch-exit environments at a control-flow merge
// point: each variable's type is the lattice join of its type on either
// path.
func joinEnvs(a, b env) env {
	out := make(env, len(a))
	for k, v := range a {
		if bv, ok := b[k]; ok {
			out[k] = lattice.Join(v, bv)
		} else {
			out[k] = v
		}
	}
	for k, v := range b {
		if _, ok := out[k]; !ok {
			out[k] = v
		}
	}
	return out
}
