package aot

import (
	"strings"

	"subsetjulia/internal/infer"
	"subsetjulia/internal/ir"
	"subsetjulia/internal/lattice"
	"subsetjulia/internal/verrors"
)

// IrConverter maps core IR to AOT IR using the TypedProgram the inference
// engine produced. Bodies lower from literals, variables, binary
// operators, calls, assignments and returns; any other shape, or a read of
// a variable without a concrete static type, returns a CompileError
// instead of a partial AotFunction.
type IrConverter struct {
	typed *infer.TypedProgram
}

func NewIrConverter(typed *infer.TypedProgram) *IrConverter {
	return &IrConverter{typed: typed}
}

// Convert lowers every function in the typed program: for each
// function it derives the (param_name, StaticType) vector and the
// StaticType return type; is_generic is set when any parameter is Any.
func (c *IrConverter) Convert() (*AotProgram, *verrors.CompileError) {
	prog := &AotProgram{}

	seen := map[string]bool{}
	for _, s := range PreludeStructs {
		seen[s] = true
	}
	for _, s := range c.typed.Program.Structs {
		if !seen[s.Name] {
			prog.Structs = append(prog.Structs, s.Name)
			seen[s.Name] = true
		}
	}

	for _, fn := range c.typed.Program.Functions {
		af, err := c.convertFunction(fn)
		if err != nil {
			return nil, err
		}
		prog.Functions = append(prog.Functions, af)
	}
	return prog, nil
}

func (c *IrConverter) convertFunction(fn *ir.Function) (*AotFunction, *verrors.CompileError) {
	af := &AotFunction{Name: fn.Name}
	locals := map[string]StaticType{}

	for _, p := range fn.Params {
		ty := TyGeneric
		if p.Type != nil {
			ty = staticTypeOf(p.Type.String())
		}
		if ty == TyGeneric {
			af.IsGeneric = true
		}
		af.Params = append(af.Params, AotParam{Name: p.Name, Type: ty})
		locals[p.Name] = ty
	}

	af.ReturnType = staticTypeOfLattice(c.typed.Summaries[fn.Name].ReturnType)

	if af.IsGeneric {
		// Still a structurally valid AotFunction — the emitter skips
		// is_generic functions rather than the whole conversion failing;
		// generic functions stay interpreted.
		return af, nil
	}

	body, err := c.convertBlock(fn.Body, locals)
	if err != nil {
		return nil, err
	}
	af.Body = body
	return af, nil
}

// TyGeneric marks a parameter whose declared type is Any (or undeclared);
// such a function is flagged IsGeneric and skipped by the emitter.
const TyGeneric StaticType = "Any"

func staticTypeOf(name string) StaticType {
	switch name {
	case "Bool":
		return TyBool
	case "Int64", "Int32", "Int16", "Int8", "UInt64", "UInt32", "UInt16", "UInt8":
		return TyInt64
	case "Float64", "Float32":
		return TyFloat64
	case "Complex":
		return TyComplex
	case "String":
		return TyString
	}
	return TyGeneric
}

func staticTypeOfLattice(t lattice.Type) StaticType {
	switch t.Kind {
	case lattice.KindConcrete:
		return staticTypeOf(t.Concrete.String())
	case lattice.KindConst:
		return staticTypeOf(t.ConstType.String())
	}
	return TyGeneric
}

func (c *IrConverter) convertBlock(b *ir.Block, locals map[string]StaticType) ([]AotStmt, *verrors.CompileError) {
	var out []AotStmt
	if b == nil {
		return out, nil
	}
	for _, s := range b.Stmts {
		st, err := c.convertStmt(s, locals)
		if err != nil {
			return nil, err
		}
		if st != nil {
			out = append(out, st)
		}
	}
	return out, nil
}

func (c *IrConverter) convertStmt(s ir.Stmt, locals map[string]StaticType) (AotStmt, *verrors.CompileError) {
	switch st := s.(type) {
	case *ir.Assign:
		e, ty, err := c.convertExpr(st.Value, locals)
		if err != nil {
			return nil, err
		}
		locals[st.Name] = ty
		return ASAssign{Name: st.Name, Type: ty, Expr: e}, nil
	case *ir.Return:
		if st.Value == nil {
			return ASReturn{}, nil
		}
		e, _, err := c.convertExpr(st.Value, locals)
		if err != nil {
			return nil, err
		}
		return ASReturn{Expr: e}, nil
	}
	return nil, verrors.NewCompileError("AOT lowering only supports assignment and return statements")
}

func (c *IrConverter) convertExpr(e ir.Expr, locals map[string]StaticType) (AotExpr, StaticType, *verrors.CompileError) {
	switch x := e.(type) {
	case *ir.LitInt:
		return AELitInt{Val: x.Val}, TyInt64, nil
	case *ir.LitFloat:
		return AELitFloat{Val: x.Val}, TyFloat64, nil
	case *ir.LitBool:
		return AELitBool{Val: x.Val}, TyBool, nil
	case *ir.Var:
		ty, ok := locals[x.Name]
		if !ok {
			return nil, "", verrors.NewCompileError("AOT lowering: undeclared variable " + x.Name)
		}
		if ty == TyGeneric {
			return nil, "", verrors.NewCompileError("AOT lowering: " + x.Name + " has no concrete static type")
		}
		return AEVar{Name: x.Name, Type: ty}, ty, nil
	case *ir.Binary:
		l, lt, err := c.convertExpr(x.Left, locals)
		if err != nil {
			return nil, "", err
		}
		r, rt, err := c.convertExpr(x.Right, locals)
		if err != nil {
			return nil, "", err
		}
		rty := promote(lt, rt)
		return AEBinOp{Op: x.Op, Left: l, Right: r, Type: rty}, rty, nil
	case *ir.Call:
		var args []AotExpr
		for _, a := range x.Args {
			ae, _, err := c.convertExpr(a, locals)
			if err != nil {
				return nil, "", err
			}
			args = append(args, ae)
		}
		retTy := staticTypeOfLattice(c.typed.Summaries[x.Callee].ReturnType)
		return AECall{Callee: x.Callee, Args: args, Type: retTy}, retTy, nil
	}
	return nil, "", verrors.NewCompileError("AOT lowering: unsupported expression shape")
}

// promote implements the rule that when either side is Float, the result
// is Float, generalized to the binary-op result type.
func promote(l, r StaticType) StaticType {
	if l == TyFloat64 || r == TyFloat64 {
		return TyFloat64
	}
	if l == r {
		return l
	}
	return TyGeneric
}

// MangleName sanitizes an operator symbol into an identifier and appends
// type suffixes derived from each argument's StaticType: `*` → `op_mul`,
// `==` → `op_eq`, so `*(Bool,Bool)` becomes `op_mul_bool_bool`.
func MangleName(op string, argTypes []StaticType) string {
	base, ok := operatorNames[op]
	if !ok {
		base = "op_" + sanitizeSymbol(op)
	}
	parts := []string{base}
	for _, t := range argTypes {
		parts = append(parts, strings.ToLower(string(t)))
	}
	return strings.Join(parts, "_")
}

var operatorNames = map[string]string{
	"+": "op_add", "-": "op_sub", "*": "op_mul", "/": "op_div",
	"%": "op_mod", "^": "op_pow", "÷": "op_idiv", "⊻": "op_xor",
	"==": "op_eq", "!=": "op_ne", "<": "op_lt", "<=": "op_le",
	">": "op_gt", ">=": "op_ge", "===": "op_is", "!==": "op_isnot",
}

func sanitizeSymbol(op string) string {
	var b strings.Builder
	for _, r := range op {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}
