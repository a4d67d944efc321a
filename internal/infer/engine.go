// Package infer implements expression-level abstract interpretation over
// the core IR: the transfer-function registry (registry.go), union
// splitting on isa-checks, higher-order call-site specialization, and
// interprocedural fixed-point iteration over the call graph's
// strongly-connected components.
package infer

import (
	"subsetjulia/internal/diagnostics"
	"subsetjulia/internal/ir"
	"subsetjulia/internal/lattice"
	"subsetjulia/internal/types"
)

// Limits bounds the engine's iteration and widening behavior, following
// a constructor-with-defaults idiom rather than a flag/env layer.
type Limits struct {
	MaxUnionLength   int
	MaxUnionComplexity int
	MaxSCCIterations int
}

func DefaultLimits() Limits {
	return Limits{
		MaxUnionLength:     lattice.MaxUnionLength,
		MaxUnionComplexity: lattice.MaxUnionComplexity,
		MaxSCCIterations:   100,
	}
}

// FuncSummary is one function's inferred interprocedural summary: its
// return type and merged effects across every method variant sharing its
// name (the engine infers per-Function, but callers resolve by name, so a
// multi-method name's summary is the join of all its variants').
type FuncSummary struct {
	ReturnType lattice.Type
	Effects    lattice.Effects
}

// TypedProgram is the engine's output: the original Program, an
// expression-keyed type/effects map, and the function summary table the
// bytecode compiler's call-site scoring consults.
type TypedProgram struct {
	Program     *ir.Program
	ExprTypes   map[ir.Expr]lattice.Type
	ExprEffects map[ir.Expr]lattice.Effects
	Summaries   map[string]FuncSummary
	Structs     *types.StructTable
}

func (tp *TypedProgram) TypeOf(e ir.Expr) lattice.Type {
	if t, ok := tp.ExprTypes[e]; ok {
		return t
	}
	return lattice.Top()
}

// Engine runs the abstract interpretation over a Program's functions.
type Engine struct {
	Registry *Registry
	Limits   Limits
	Diag     *diagnostics.Collector
	structs  *types.StructTable

	typed *TypedProgram
	// summary table under construction during fixed-point iteration.
	summaries map[string]FuncSummary
}

func NewEngine(structs *types.StructTable, diag *diagnostics.Collector) *Engine {
	return &Engine{
		Registry:  NewRegistry(),
		Limits:    DefaultLimits(),
		Diag:      diag,
		structs:   structs,
		summaries: make(map[string]FuncSummary),
	}
}

// env is the abstract environment mapping local names to lattice types,
// threaded through statement/expression inference and cloned at branch
// points for union splitting.
type env map[string]lattice.Type

func (e env) clone() env {
	out := make(env, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// Infer runs the full pipeline: build the call graph, find its SCCs, and
// fixed-point-iterate each SCC's summaries (innermost/leaf SCCs first,
// the order tarjanSCCs naturally produces) until stable or the per-SCC
// iteration cap is hit, at which point the cycle's return type widens to
// Top with a RecursiveCycle diagnostic.
func (eng *Engine) Infer(prog *ir.Program) *TypedProgram {
	eng.typed = &TypedProgram{
		Program:     prog,
		ExprTypes:   make(map[ir.Expr]lattice.Type),
		ExprEffects: make(map[ir.Expr]lattice.Effects),
		Summaries:   eng.summaries,
		Structs:     eng.structs,
	}

	byName := map[string][]*ir.Function{}
	for _, fn := range prog.Functions {
		byName[fn.Name] = append(byName[fn.Name], fn)
		if _, ok := eng.summaries[fn.Name]; !ok {
			eng.summaries[fn.Name] = FuncSummary{ReturnType: lattice.Bottom(), Effects: lattice.Total()}
		}
	}

	graph := buildCallGraph(prog)
	sccs := tarjanSCCs(graph)

	for _, comp := range sccs {
		eng.fixedPointSCC(comp, byName)
	}

	// Infer the top-level block against the now-stable summary table, with
	// an empty initial environment.
	if prog.TopLevel != nil {
		eng.inferBlock(prog.TopLevel, env{})
	}

	return eng.typed
}

func (eng *Engine) fixedPointSCC(names []string, byName map[string][]*ir.Function) {
	iter := 0
	for {
		iter++
		changed := false
		for _, name := range names {
			for _, fn := range byName[name] {
				prevSummary := eng.summaries[name]
				ret, eff := eng.inferFunction(fn)
				merged := lattice.Join(prevSummary.ReturnType, ret)
				mergedEff := prevSummary.Effects.Merge(eff)
				if !lattice.LessEq(merged, prevSummary.ReturnType) || !lattice.LessEq(prevSummary.ReturnType, merged) {
					changed = true
				}
				eng.summaries[name] = FuncSummary{ReturnType: merged, Effects: mergedEff}
			}
		}
		if !changed {
			return
		}
		if iter >= eng.Limits.MaxSCCIterations {
			for _, name := range names {
				eng.summaries[name] = FuncSummary{ReturnType: lattice.Top(), Effects: lattice.Arbitrary()}
			}
			eng.emit(diagnostics.ReasonRecursiveCycle, "", 0, names)
			eng.emit(diagnostics.ReasonFixedPointDivergence, "", iter, names)
			return
		}
	}
}

func (eng *Engine) inferFunction(fn *ir.Function) (lattice.Type, lattice.Effects) {
	e := env{}
	for _, p := range fn.Params {
		e[p.Name] = eng.typeExprToLattice(p.Type)
	}
	for _, kp := range fn.KwParams {
		e[kp.Name] = eng.typeExprToLattice(kp.Type)
	}
	return eng.inferBlockReturn(fn.Body, e)
}

func (eng *Engine) typeExprToLattice(te *types.TypeExpr) lattice.Type {
	if te == nil {
		return lattice.Top()
	}
	switch te.Kind {
	case types.TEConcrete:
		return lattice.ConcreteT(te.Concrete)
	default:
		return lattice.Top()
	}
}

func (eng *Engine) emit(reason diagnostics.Reason, ctx string, n int, names []string) {
	if eng.Diag == nil {
		return
	}
	eng.Diag.Emit(diagnostics.Diagnostic{
		Reason:    reason,
		Context:   ctx,
		N:         n,
		Names:     names,
		WidenedTo: "Top",
	})
}
