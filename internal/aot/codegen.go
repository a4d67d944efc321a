package aot

import (
	"subsetjulia/internal/verrors"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

// LLVMEmitter walks an AotProgram and builds an llir/llvm/ir.Module.
// Functions flagged IsGeneric are
// skipped — they stay interpreted, keeping the rule of
// only ever emitting monomorphized code.
type LLVMEmitter struct {
	module *ir.Module
	funcs  map[string]*ir.Func
}

func NewLLVMEmitter() *LLVMEmitter {
	return &LLVMEmitter{funcs: map[string]*ir.Func{}}
}

// Emit lowers every non-generic AotFunction into an LLVM function
// definition and returns the module's textual IR.
func (e *LLVMEmitter) Emit(prog *AotProgram) (string, *verrors.CompileError) {
	e.module = ir.NewModule()

	// Pass 1: declare every non-generic function so forward/mutual calls
	// resolve to the right signature (mirrors bytecode.Compiler's
	// two-pass registration).
	for _, fn := range prog.Functions {
		if fn.IsGeneric {
			continue
		}
		params := make([]*ir.Param, len(fn.Params))
		for i, p := range fn.Params {
			params[i] = ir.NewParam(p.Name, llvmType(p.Type))
		}
		f := e.module.NewFunc(fn.Name, llvmType(fn.ReturnType), params...)
		e.funcs[fn.Name] = f
	}

	for _, fn := range prog.Functions {
		if fn.IsGeneric {
			continue
		}
		if err := e.emitFunction(fn); err != nil {
			return "", err
		}
	}

	return e.module.String(), nil
}

func llvmType(t StaticType) types.Type {
	switch t {
	case TyBool:
		return types.I1
	case TyInt64:
		return types.I64
	case TyFloat64:
		return types.Double
	case TyString:
		return types.NewPointer(types.I8)
	}
	return types.I64
}

func (e *LLVMEmitter) emitFunction(fn *AotFunction) *verrors.CompileError {
	f := e.funcs[fn.Name]
	block := f.NewBlock("entry")

	locals := map[string]value.Value{}
	for i, p := range fn.Params {
		locals[p.Name] = f.Params[i]
	}

	for _, st := range fn.Body {
		switch s := st.(type) {
		case ASAssign:
			v, err := e.emitExpr(block, s.Expr, locals)
			if err != nil {
				return err
			}
			locals[s.Name] = v
		case ASReturn:
			if s.Expr == nil {
				block.NewRet(nil)
				continue
			}
			v, err := e.emitExpr(block, s.Expr, locals)
			if err != nil {
				return err
			}
			block.NewRet(v)
		}
	}
	// Every AOT function must end in a terminator; a missing explicit
	// return falls through to a zero-value ret of the declared type.
	if block.Term == nil {
		block.NewRet(zeroValue(llvmType(fn.ReturnType)))
	}
	return nil
}

func zeroValue(t types.Type) value.Value {
	switch tt := t.(type) {
	case *types.IntType:
		return constant.NewInt(tt, 0)
	case *types.FloatType:
		return constant.NewFloat(tt, 0)
	}
	return constant.NewInt(types.I64, 0)
}

func (e *LLVMEmitter) emitExpr(block *ir.Block, ex AotExpr, locals map[string]value.Value) (value.Value, *verrors.CompileError) {
	switch x := ex.(type) {
	case AELitInt:
		return constant.NewInt(types.I64, x.Val), nil
	case AELitFloat:
		return constant.NewFloat(types.Double, x.Val), nil
	case AELitBool:
		return constant.NewBool(x.Val), nil
	case AEVar:
		if v, ok := locals[x.Name]; ok {
			return v, nil
		}
		return nil, verrors.NewCompileError("AOT codegen: unbound variable " + x.Name)
	case AEBinOp:
		l, err := e.emitExpr(block, x.Left, locals)
		if err != nil {
			return nil, err
		}
		r, err := e.emitExpr(block, x.Right, locals)
		if err != nil {
			return nil, err
		}
		return e.emitBinOp(block, x.Op, x.Type, l, r)
	case AECall:
		callee, ok := e.funcs[x.Callee]
		if !ok {
			return nil, verrors.NewCompileError("AOT codegen: call to unresolved/generic function " + x.Callee)
		}
		var args []value.Value
		for _, a := range x.Args {
			av, err := e.emitExpr(block, a, locals)
			if err != nil {
				return nil, err
			}
			args = append(args, av)
		}
		return block.NewCall(callee, args...), nil
	}
	return nil, verrors.NewCompileError("AOT codegen: unsupported expression")
}

// emitBinOp maps a core-IR operator to the matching int/float LLVM
// instruction pair, picking the family from the operands' promoted
// StaticType. Only the primitive-type fast path is covered: an operator
// with no int/float mapping returns a CompileError, and no mangled-name
// call is emitted.
func (e *LLVMEmitter) emitBinOp(block *ir.Block, op string, ty StaticType, l, r value.Value) (value.Value, *verrors.CompileError) {
	isFloat := ty == TyFloat64
	switch op {
	case "+":
		if isFloat {
			return block.NewFAdd(l, r), nil
		}
		return block.NewAdd(l, r), nil
	case "-":
		if isFloat {
			return block.NewFSub(l, r), nil
		}
		return block.NewSub(l, r), nil
	case "*":
		if isFloat {
			return block.NewFMul(l, r), nil
		}
		return block.NewMul(l, r), nil
	case "/":
		return block.NewFDiv(l, r), nil
	case "÷":
		return block.NewSDiv(l, r), nil
	case "%":
		if isFloat {
			return block.NewFRem(l, r), nil
		}
		return block.NewSRem(l, r), nil
	case "==":
		if isFloat {
			return block.NewFCmp(enum.FPredOEQ, l, r), nil
		}
		return block.NewICmp(enum.IPredEQ, l, r), nil
	case "!=":
		if isFloat {
			return block.NewFCmp(enum.FPredONE, l, r), nil
		}
		return block.NewICmp(enum.IPredNE, l, r), nil
	case "<":
		if isFloat {
			return block.NewFCmp(enum.FPredOLT, l, r), nil
		}
		return block.NewICmp(enum.IPredSLT, l, r), nil
	case "<=":
		if isFloat {
			return block.NewFCmp(enum.FPredOLE, l, r), nil
		}
		return block.NewICmp(enum.IPredSLE, l, r), nil
	case ">":
		if isFloat {
			return block.NewFCmp(enum.FPredOGT, l, r), nil
		}
		return block.NewICmp(enum.IPredSGT, l, r), nil
	case ">=":
		if isFloat {
			return block.NewFCmp(enum.FPredOGE, l, r), nil
		}
		return block.NewICmp(enum.IPredSGE, l, r), nil
	}
	return nil, verrors.NewCompileError("AOT codegen: unsupported operator " + op)
}
