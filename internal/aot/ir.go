// Package aot lowers a TypedProgram into a monomorphic, fully-concrete-
// typed IR suitable for native codegen:
// IrConverter does the lowering, LLVMEmitter walks the result and emits an
// llir/llvm/ir module. A function with an Any-typed or undeclared
// parameter is flagged is_generic, keeps no body and is skipped by the
// emitter. Reading a variable whose static type is Any, or any statement
// or expression shape the converter does not handle, fails the conversion
// with a CompileError. Call results whose inferred return type is not
// Concrete, and binary operations over two different non-float operand
// types, lower with the Any static type instead of failing.
package aot

// StaticType names a concrete runtime type in AOT IR — a plain string
// rather than a *types.JuliaType, since AOT IR only ever carries fully
// resolved concrete names.
type StaticType string

const (
	TyBool    StaticType = "Bool"
	TyInt64   StaticType = "Int64"
	TyFloat64 StaticType = "Float64"
	TyComplex StaticType = "Complex"
	TyString  StaticType = "String"
)

// AotParam is one function parameter's name and derived static type.
type AotParam struct {
	Name string
	Type StaticType
}

// AotFunction is one lowered function. is_generic is set when
// any parameter is Any — such functions still convert, with IsGeneric set,
// so the emitter can skip them rather than failing the whole program.
type AotFunction struct {
	Name       string
	Params     []AotParam
	ReturnType StaticType
	IsGeneric  bool
	Body       []AotStmt
}

// AotProgram is IrConverter's output: every convertible function plus the
// struct prelude.
type AotProgram struct {
	Functions []*AotFunction
	Structs   []string // user structs retained after eliding prelude duplicates
}

// PreludeStructs are predefined by the AOT backend; duplicates from the
// input program are elided rather than redefined.
var PreludeStructs = []string{
	"ErrorException", "LinRange", "StepRangeLen", "OneTo", "Broadcasted", "Rational",
}

// AotExpr is the lowered expression sum — a small, fully concrete subset
// of core IR (scalar literals, variables, binary ops, and calls to other
// AOT-convertible functions or mangled primitive ops).
type AotExpr interface{ aotExpr() }

type AELitInt struct{ Val int64 }
type AELitFloat struct{ Val float64 }
type AELitBool struct{ Val bool }
type AEVar struct {
	Name string
	Type StaticType
}
type AEBinOp struct {
	Op          string
	Left, Right AotExpr
	Type        StaticType
}
type AECall struct {
	Callee string
	Args   []AotExpr
	Type   StaticType
}

func (AELitInt) aotExpr()   {}
func (AELitFloat) aotExpr() {}
func (AELitBool) aotExpr()  {}
func (AEVar) aotExpr()      {}
func (AEBinOp) aotExpr()    {}
func (AECall) aotExpr()     {}

// AotStmt is the lowered statement sum: assignment and return are the only
// shapes AOT functions need, since control flow beyond straight-line
// arithmetic falls outside the monomorphic numeric subset this backend
// targets.
type AotStmt interface{ aotStmt() }

type ASAssign struct {
	Name string
	Type StaticType
	Expr AotExpr
}
type ASReturn struct{ Expr AotExpr }

func (ASAssign) aotStmt() {}
func (ASReturn) aotStmt() {}
