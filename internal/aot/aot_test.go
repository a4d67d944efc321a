package aot

import (
	"strings"
	"testing"

	"subsetjulia/internal/infer"
	"subsetjulia/internal/ir"
	"subsetjulia/internal/lattice"
	"subsetjulia/internal/types"
)

func concreteParam(name string, jt types.JuliaType) ir.Param {
	return ir.Param{Name: name, Type: &types.TypeExpr{Kind: types.TEConcrete, Concrete: jt}}
}

func addFunction() *ir.Function {
	return &ir.Function{
		Name:   "add",
		Params: []ir.Param{concreteParam("x", types.Float64), concreteParam("y", types.Int64)},
		Body: &ir.Block{Stmts: []ir.Stmt{
			&ir.Return{Value: &ir.Binary{Op: "+", Left: &ir.Var{Name: "x"}, Right: &ir.Var{Name: "y"}}},
		}},
	}
}

func typedProgramFor(fns ...*ir.Function) *infer.TypedProgram {
	summaries := map[string]infer.FuncSummary{}
	for _, fn := range fns {
		summaries[fn.Name] = infer.FuncSummary{ReturnType: lattice.ConcreteT(types.Float64), Effects: lattice.Total()}
	}
	return &infer.TypedProgram{
		Program:   &ir.Program{Functions: fns},
		Summaries: summaries,
	}
}

func TestConvertLowersConcreteFunction(t *testing.T) {
	typed := typedProgramFor(addFunction())
	conv := NewIrConverter(typed)

	prog, err := conv.Convert()
	if err != nil {
		t.Fatalf("unexpected conversion error: %v", err)
	}
	if len(prog.Functions) != 1 {
		t.Fatalf("expected 1 lowered function, got %d", len(prog.Functions))
	}
	af := prog.Functions[0]
	if af.IsGeneric {
		t.Fatal("did not expect add to be flagged generic")
	}
	if af.ReturnType != TyFloat64 {
		t.Fatalf("expected Float64 return type, got %s", af.ReturnType)
	}
	if af.Params[0].Type != TyFloat64 || af.Params[1].Type != TyInt64 {
		t.Fatalf("expected [Float64, Int64] params, got %+v", af.Params)
	}
	if len(af.Body) != 1 {
		t.Fatalf("expected a single return statement, got %d", len(af.Body))
	}
	ret, ok := af.Body[0].(ASReturn)
	if !ok {
		t.Fatalf("expected an ASReturn statement, got %T", af.Body[0])
	}
	bin, ok := ret.Expr.(AEBinOp)
	if !ok {
		t.Fatalf("expected an AEBinOp return expression, got %T", ret.Expr)
	}
	if bin.Type != TyFloat64 {
		t.Fatalf("expected the promoted binop type to be Float64, got %s", bin.Type)
	}
}

func TestConvertFlagsAnyParamAsGenericAndSkipsBody(t *testing.T) {
	fn := &ir.Function{
		Name:   "identity",
		Params: []ir.Param{{Name: "x"}}, // no declared type => Any
		Body: &ir.Block{Stmts: []ir.Stmt{
			&ir.Return{Value: &ir.Var{Name: "x"}},
		}},
	}
	typed := typedProgramFor(fn)
	conv := NewIrConverter(typed)

	prog, err := conv.Convert()
	if err != nil {
		t.Fatalf("unexpected conversion error: %v", err)
	}
	af := prog.Functions[0]
	if !af.IsGeneric {
		t.Fatal("expected identity to be flagged generic due to its untyped parameter")
	}
	if af.Body != nil {
		t.Fatalf("expected a generic function's body to stay unconverted, got %v", af.Body)
	}
}

func TestConvertRejectsUnresolvedVariable(t *testing.T) {
	fn := &ir.Function{
		Name:   "bad",
		Params: []ir.Param{concreteParam("x", types.Int64)},
		Body: &ir.Block{Stmts: []ir.Stmt{
			&ir.Return{Value: &ir.Var{Name: "y"}},
		}},
	}
	typed := typedProgramFor(fn)
	conv := NewIrConverter(typed)

	if _, err := conv.Convert(); err == nil {
		t.Fatal("expected a CompileError for a reference to an undeclared variable")
	}
}

func TestPreludeStructsAreElidedFromConversion(t *testing.T) {
	typed := typedProgramFor(addFunction())
	typed.Program.Structs = []*types.StructDef{
		{Name: "Point"},
		{Name: PreludeStructs[0]},
	}
	conv := NewIrConverter(typed)

	prog, err := conv.Convert()
	if err != nil {
		t.Fatalf("unexpected conversion error: %v", err)
	}
	if len(prog.Structs) != 1 || prog.Structs[0] != "Point" {
		t.Fatalf("expected only the user struct Point to survive, got %v", prog.Structs)
	}
}

func TestMangleNameProducesTypeSuffixedIdentifiers(t *testing.T) {
	if got := MangleName("*", []StaticType{TyBool, TyBool}); got != "op_mul_bool_bool" {
		t.Fatalf("expected op_mul_bool_bool, got %q", got)
	}
	if got := MangleName("==", []StaticType{TyInt64, TyFloat64}); got != "op_eq_int64_float64" {
		t.Fatalf("expected op_eq_int64_float64, got %q", got)
	}
	if got := MangleName("⊻", []StaticType{TyBool}); got != "op_xor_bool" {
		t.Fatalf("expected op_xor_bool, got %q", got)
	}
}

func TestEmitLowersNonGenericFunctionToLLVMIR(t *testing.T) {
	typed := typedProgramFor(addFunction())
	conv := NewIrConverter(typed)
	prog, err := conv.Convert()
	if err != nil {
		t.Fatalf("unexpected conversion error: %v", err)
	}

	emitter := NewLLVMEmitter()
	text, cerr := emitter.Emit(prog)
	if cerr != nil {
		t.Fatalf("unexpected codegen error: %v", cerr)
	}
	if !strings.Contains(text, "define") || !strings.Contains(text, "@add") {
		t.Fatalf("expected emitted IR to define @add, got:\n%s", text)
	}
	if !strings.Contains(text, "fadd") {
		t.Fatalf("expected a promoted float add instruction, got:\n%s", text)
	}
}

func TestEmitSkipsGenericFunctions(t *testing.T) {
	fn := &ir.Function{
		Name:   "identity",
		Params: []ir.Param{{Name: "x"}},
		Body:   &ir.Block{Stmts: []ir.Stmt{&ir.Return{Value: &ir.Var{Name: "x"}}}},
	}
	typed := typedProgramFor(fn)
	conv := NewIrConverter(typed)
	prog, err := conv.Convert()
	if err != nil {
		t.Fatalf("unexpected conversion error: %v", err)
	}

	emitter := NewLLVMEmitter()
	text, cerr := emitter.Emit(prog)
	if cerr != nil {
		t.Fatalf("unexpected codegen error: %v", cerr)
	}
	if strings.Contains(text, "@identity") {
		t.Fatalf("expected the generic function to be skipped entirely, got:\n%s", text)
	}
}
