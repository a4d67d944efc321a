package ir

import "subsetjulia/internal/types"

// Expr is any core-IR expression node. Each concrete node implements
// Accept by calling back into the matching ExprVisitor method — a
// double-dispatch shape applied here to the lowerer's post-desugaring IR.
type Expr interface {
	Accept(v ExprVisitor) interface{}
}

type ExprVisitor interface {
	VisitLitInt(*LitInt) interface{}
	VisitLitFloat(*LitFloat) interface{}
	VisitLitBool(*LitBool) interface{}
	VisitLitString(*LitString) interface{}
	VisitLitChar(*LitChar) interface{}
	VisitLitNothing(*LitNothing) interface{}
	VisitVar(*Var) interface{}
	VisitBinary(*Binary) interface{}
	VisitUnary(*Unary) interface{}
	VisitCall(*Call) interface{}
	VisitGetField(*GetField) interface{}
	VisitIndex(*Index) interface{}
	VisitIsaCheck(*IsaCheck) interface{}
	VisitArrayLit(*ArrayLit) interface{}
	VisitTupleLit(*TupleLit) interface{}
	VisitNamedTupleLit(*NamedTupleLit) interface{}
	VisitStructNew(*StructNew) interface{}
	VisitHOFCall(*HOFCall) interface{}
}

type LitInt struct{ Val int64 }
type LitFloat struct{ Val float64 }
type LitBool struct{ Val bool }
type LitString struct{ Val string }
type LitChar struct{ Val rune }
type LitNothing struct{}

func (e *LitInt) Accept(v ExprVisitor) interface{}     { return v.VisitLitInt(e) }
func (e *LitFloat) Accept(v ExprVisitor) interface{}   { return v.VisitLitFloat(e) }
func (e *LitBool) Accept(v ExprVisitor) interface{}    { return v.VisitLitBool(e) }
func (e *LitString) Accept(v ExprVisitor) interface{}  { return v.VisitLitString(e) }
func (e *LitChar) Accept(v ExprVisitor) interface{}    { return v.VisitLitChar(e) }
func (e *LitNothing) Accept(v ExprVisitor) interface{} { return v.VisitLitNothing(e) }

// Var references a local, a captured binding, or (failing both) a global.
type Var struct{ Name string }

func (e *Var) Accept(v ExprVisitor) interface{} { return v.VisitVar(e) }

// Binary covers arithmetic, comparison and boolean connective operators:
// + - * / ÷ % ^ ⊻ == != < <= > >= && ||. Broadcast marks the dotted
// elementwise form (.+ .- .* ./) applied across arrays rather than the
// scalar operator named by Op.
type Binary struct {
	Op        string
	Left      Expr
	Right     Expr
	Broadcast bool
}

func (e *Binary) Accept(v ExprVisitor) interface{} { return v.VisitBinary(e) }

type Unary struct {
	Op      string
	Operand Expr
}

func (e *Unary) Accept(v ExprVisitor) interface{} { return v.VisitUnary(e) }

// Call is a dynamic-by-default function call; the bytecode compiler
// decides (via method-table scoring) whether it lowers to a direct
// Call or one of the CallDynamic* shapes.
type Call struct {
	Callee string
	Args   []Expr
	Kwargs map[string]Expr
}

func (e *Call) Accept(v ExprVisitor) interface{} { return v.VisitCall(e) }

// GetField is `obj.field` — getfield(Struct,:name) or a NamedTuple lookup.
type GetField struct {
	Obj   Expr
	Field string
}

func (e *GetField) Accept(v ExprVisitor) interface{} { return v.VisitGetField(e) }

// Index is `obj[i, j, ...]`.
type Index struct {
	Obj     Expr
	Indices []Expr
}

func (e *Index) Accept(v ExprVisitor) interface{} { return v.VisitIndex(e) }

// IsaCheck is `x isa T`, `typeof(x) == T`, or (Type == Nothing) `x === nothing`
// / `x !== nothing`; NotNil distinguishes `!==`/`!= `from `===`/`==`.
type IsaCheck struct {
	Obj   Expr
	Type  types.TypeExpr
	NotNil bool // true for `x !== nothing` style negated identity checks against Nothing
}

func (e *IsaCheck) Accept(v ExprVisitor) interface{} { return v.VisitIsaCheck(e) }

type ArrayLit struct{ Elems []Expr }

func (e *ArrayLit) Accept(v ExprVisitor) interface{} { return v.VisitArrayLit(e) }

type TupleLit struct{ Elems []Expr }

func (e *TupleLit) Accept(v ExprVisitor) interface{} { return v.VisitTupleLit(e) }

type NamedTupleLit struct {
	Names  []string
	Values []Expr
}

func (e *NamedTupleLit) Accept(v ExprVisitor) interface{} { return v.VisitNamedTupleLit(e) }

// StructNew is `TypeName(args...)` construction.
type StructNew struct {
	TypeName string
	Args     []Expr
}

func (e *StructNew) Accept(v ExprVisitor) interface{} { return v.VisitStructNew(e) }

type HOFKind int

const (
	HOFMap HOFKind = iota
	HOFFilter
	HOFReduce
)

// HOFCall models the higher-order call-site shapes the inference engine
// specializes: map(f,arr), filter(p,arr), reduce(op,arr).
type HOFCall struct {
	Kind       HOFKind
	Func       Expr
	Collection Expr
	Extra      []Expr // e.g. reduce's init accumulator, if present
}

func (e *HOFCall) Accept(v ExprVisitor) interface{} { return v.VisitHOFCall(e) }
