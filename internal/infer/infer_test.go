package infer

import (
	"testing"

	"subsetjulia/internal/diagnostics"
	"subsetjulia/internal/ir"
	"subsetjulia/internal/lattice"
	"subsetjulia/internal/types"
)

func concreteParam(name string, jt types.JuliaType) ir.Param {
	return ir.Param{Name: name, Type: &types.TypeExpr{Kind: types.TEConcrete, Concrete: jt}}
}

func TestInferSquareReturnsConcreteInt64(t *testing.T) {
	fn := &ir.Function{
		Name:   "square",
		Params: []ir.Param{concreteParam("x", types.Int64)},
		Body: &ir.Block{Stmts: []ir.Stmt{
			&ir.Return{Value: &ir.Binary{Op: "*", Left: &ir.Var{Name: "x"}, Right: &ir.Var{Name: "x"}}},
		}},
	}
	prog := &ir.Program{Functions: []*ir.Function{fn}}

	eng := NewEngine(types.NewStructTable(), nil)
	typed := eng.Infer(prog)

	summary, ok := typed.Summaries["square"]
	if !ok {
		t.Fatal("expected a summary for square")
	}
	if summary.ReturnType.Kind != lattice.KindConcrete || summary.ReturnType.Concrete.Name != "Int64" {
		t.Fatalf("expected a concrete Int64 return type, got %s", summary.ReturnType)
	}
	if !summary.Effects.IsPure() {
		t.Fatal("expected pure-arithmetic effects for square")
	}
}

func TestInferDivisionAlwaysPromotesToFloat(t *testing.T) {
	fn := &ir.Function{
		Name:   "halve",
		Params: []ir.Param{concreteParam("x", types.Int64)},
		Body: &ir.Block{Stmts: []ir.Stmt{
			&ir.Return{Value: &ir.Binary{Op: "/", Left: &ir.Var{Name: "x"}, Right: &ir.LitInt{Val: 2}}},
		}},
	}
	prog := &ir.Program{Functions: []*ir.Function{fn}}

	eng := NewEngine(types.NewStructTable(), nil)
	typed := eng.Infer(prog)

	summary := typed.Summaries["halve"]
	if summary.ReturnType.Kind != lattice.KindConcrete || summary.ReturnType.Concrete.Name != "Float64" {
		t.Fatalf("expected Float64 from true division, got %s", summary.ReturnType)
	}
}

func TestInferJoinsBranchReturnsIntoUnion(t *testing.T) {
	fn := &ir.Function{
		Name:   "pick",
		Params: []ir.Param{concreteParam("flag", types.Bool)},
		Body: &ir.Block{Stmts: []ir.Stmt{
			&ir.If{
				Cond: &ir.Var{Name: "flag"},
				Then: &ir.Block{Stmts: []ir.Stmt{&ir.Return{Value: &ir.LitInt{Val: 1}}}},
				Else: &ir.Block{Stmts: []ir.Stmt{&ir.Return{Value: &ir.LitFloat{Val: 1.5}}}},
			},
		}},
	}
	prog := &ir.Program{Functions: []*ir.Function{fn}}

	eng := NewEngine(types.NewStructTable(), nil)
	typed := eng.Infer(prog)

	summary := typed.Summaries["pick"]
	if summary.ReturnType.Kind != lattice.KindUnion {
		t.Fatalf("expected a Union{Int64,Float64} return type, got %s", summary.ReturnType)
	}
}

func TestInferRecursiveCycleWidensAfterIterationCap(t *testing.T) {
	fn := &ir.Function{
		Name:   "loopy",
		Params: []ir.Param{concreteParam("n", types.Int64)},
		Body: &ir.Block{Stmts: []ir.Stmt{
			&ir.Return{Value: &ir.Call{Callee: "loopy", Args: []ir.Expr{&ir.Var{Name: "n"}}}},
		}},
	}
	prog := &ir.Program{Functions: []*ir.Function{fn}}

	collector := diagnostics.NewCollector()
	collector.Enable()
	eng := NewEngine(types.NewStructTable(), collector)
	eng.Limits.MaxSCCIterations = 1
	typed := eng.Infer(prog)

	summary := typed.Summaries["loopy"]
	if summary.ReturnType.Kind != lattice.KindTop {
		t.Fatalf("expected the recursive cycle to widen to Top, got %s", summary.ReturnType)
	}
	found := false
	for _, d := range collector.Take() {
		if d.Reason == diagnostics.ReasonFixedPointDivergence {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a FixedPointDivergence diagnostic")
	}
}

func TestInferUnknownFunctionEmitsDiagnostic(t *testing.T) {
	fn := &ir.Function{
		Name: "caller",
		Body: &ir.Block{Stmts: []ir.Stmt{
			&ir.Return{Value: &ir.Call{Callee: "doesNotExist", Args: nil}},
		}},
	}
	prog := &ir.Program{Functions: []*ir.Function{fn}}

	collector := diagnostics.NewCollector()
	collector.Enable()
	eng := NewEngine(types.NewStructTable(), collector)
	typed := eng.Infer(prog)

	summary := typed.Summaries["caller"]
	if summary.ReturnType.Kind != lattice.KindTop {
		t.Fatalf("expected Top for a call to an unknown function, got %s", summary.ReturnType)
	}
	diags := collector.Take()
	if len(diags) == 0 || diags[0].Reason != diagnostics.ReasonUnknownFunction {
		t.Fatalf("expected an UnknownFunction diagnostic, got %v", diags)
	}
}

func TestInferIsaCheckNarrowsThenBranch(t *testing.T) {
	fn := &ir.Function{
		Name:   "describe",
		Params: []ir.Param{{Name: "x"}}, // untyped -> Top
		Body: &ir.Block{Stmts: []ir.Stmt{
			&ir.If{
				Cond: &ir.IsaCheck{
					Obj:  &ir.Var{Name: "x"},
					Type: types.TypeExpr{Kind: types.TEConcrete, Concrete: types.Int64},
				},
				Then: &ir.Block{Stmts: []ir.Stmt{
					&ir.Return{Value: &ir.Binary{Op: "+", Left: &ir.Var{Name: "x"}, Right: &ir.LitInt{Val: 1}}},
				}},
			},
			&ir.Return{Value: &ir.LitNothing{}},
		}},
	}
	prog := &ir.Program{Functions: []*ir.Function{fn}}

	eng := NewEngine(types.NewStructTable(), nil)
	typed := eng.Infer(prog)

	summary := typed.Summaries["describe"]
	// The then-branch's `x + 1` is well-typed only because x narrowed to
	// Int64 inside the isa check; if narrowing failed the join would widen
	// to Top instead of Union{Int64,Nothing}.
	if summary.ReturnType.Kind == lattice.KindTop {
		t.Fatalf("expected narrowing to keep the return type precise, got %s", summary.ReturnType)
	}
}
