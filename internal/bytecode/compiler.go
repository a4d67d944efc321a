// Package bytecode's compiler walks core IR and emits the instruction
// stream Chunk holds. Call sites are annotated
// with dispatch candidates drawn from the method table; a singleton
// candidate that equals the static fallback is devirtualized into a
// direct Call at compile time rather than carrying a CallDynamic* through
// to the VM.
package bytecode

import (
	"subsetjulia/internal/infer"
	"subsetjulia/internal/ir"
	"subsetjulia/internal/types"
)

// Compiler holds compile-time state shared across every function being
// compiled: the chunk under construction, the struct table for field and
// supertype resolution, and the typed program the inference engine
// produced (used to decide static-vs-dynamic call shapes per site).
type Compiler struct {
	chunk   *Chunk
	structs *types.StructTable
	typed   *infer.TypedProgram

	// per-function compile-time state, reset at the start of each function
	slots      map[string]int
	nextSlot   int
	funcIndex  map[string]int // name -> first declared func_index (used when a name has exactly one variant)
	paramTypes map[string][]string
}

func NewCompiler(structs *types.StructTable) *Compiler {
	return &Compiler{
		chunk:      NewChunk(),
		structs:    structs,
		funcIndex:  make(map[string]int),
		paramTypes: make(map[string][]string),
	}
}

// Compile lowers a type-inferred program into a Chunk ready for execution.
func (c *Compiler) Compile(tp *infer.TypedProgram) *Chunk {
	c.typed = tp
	prog := tp.Program

	// Pass 1: register every function variant in the method table before
	// compiling any body, so forward/mutually-recursive calls resolve.
	for i, fn := range prog.Functions {
		paramTypes := make([]string, len(fn.Params))
		for j, p := range fn.Params {
			paramTypes[j] = paramTypeName(p.Type)
		}
		c.chunk.Methods.Add(fn.Name, MethodVariant{FuncIndex: i, ParamTypes: paramTypes})
		if _, seen := c.funcIndex[fn.Name]; !seen {
			c.funcIndex[fn.Name] = i
		}
		c.paramTypes[fn.Name] = paramTypes
		c.chunk.Functions = append(c.chunk.Functions, FunctionInfo{
			Name:       fn.Name,
			ParamCount: len(fn.Params),
			IsGeneric:  isGenericFunc(fn),
		})
	}

	// Pass 2: compile each body now that the full method table exists.
	for i, fn := range prog.Functions {
		start := c.chunk.Len()
		c.compileFunctionBody(fn)
		c.chunk.Emit(Instruction{Op: OpReturn}, DebugInfo{Function: fn.Name})
		end := c.chunk.Len()
		c.chunk.Functions[i].CodeStart = start
		c.chunk.Functions[i].CodeEnd = end
		c.chunk.Functions[i].SlotCount = c.nextSlot
	}

	// Top-level statement block compiles last so every function is
	// resolvable by the time main-line calls are emitted.
	c.slots = map[string]int{}
	c.nextSlot = 0
	entryStart := c.chunk.Len()
	if prog.TopLevel != nil {
		c.compileBlock(prog.TopLevel)
	}
	c.chunk.Emit(Instruction{Op: OpReturn}, DebugInfo{Function: "<top-level>"})
	c.chunk.EntryStart = entryStart
	c.chunk.EntryEnd = c.chunk.Len()

	return c.chunk
}

func isGenericFunc(fn *ir.Function) bool {
	for _, p := range fn.Params {
		if p.Type == nil || paramTypeName(p.Type) == "Any" {
			return true
		}
	}
	return false
}

func paramTypeName(te *types.TypeExpr) string {
	if te == nil {
		return "Any"
	}
	switch te.Kind {
	case types.TEConcrete:
		return te.Concrete.String()
	case types.TEParameterized:
		return te.Base
	default:
		return "Any"
	}
}

func (c *Compiler) compileFunctionBody(fn *ir.Function) {
	c.slots = map[string]int{}
	c.nextSlot = 0
	for _, p := range fn.Params {
		c.allocSlot(p.Name)
	}
	for _, kp := range fn.KwParams {
		c.allocSlot(kp.Name)
	}
	c.compileBlock(fn.Body)
}

func (c *Compiler) allocSlot(name string) int {
	if s, ok := c.slots[name]; ok {
		return s
	}
	s := c.nextSlot
	c.slots[name] = s
	c.nextSlot++
	return s
}

func (c *Compiler) emit(instr Instruction) int {
	return c.chunk.Emit(instr, DebugInfo{})
}

func (c *Compiler) compileBlock(b *ir.Block) {
	if b == nil {
		return
	}
	for _, s := range b.Stmts {
		c.compileStmt(s)
	}
}

func (c *Compiler) compileStmt(s ir.Stmt) {
	switch st := s.(type) {
	case *ir.ExprStmt:
		c.compileExpr(st.Expr)
		c.emit(Instruction{Op: OpPop})
	case *ir.Assign:
		c.compileExpr(st.Value)
		if _, known := c.slots[st.Name]; known {
			c.emit(Instruction{Op: OpStoreSlot, A: c.slots[st.Name]})
		} else {
			slot := c.allocSlot(st.Name)
			c.emit(Instruction{Op: OpStoreSlot, A: slot})
		}
	case *ir.If:
		c.compileExpr(st.Cond)
		jumpToElse := c.emit(Instruction{Op: OpJumpIfFalse, A: UnpatchedJump})
		c.compileBlock(st.Then)
		jumpToEnd := c.emit(Instruction{Op: OpJump, A: UnpatchedJump})
		c.chunk.Patch(jumpToElse, c.chunk.Len())
		if st.Else != nil {
			c.compileBlock(st.Else)
		}
		c.chunk.Patch(jumpToEnd, c.chunk.Len())
	case *ir.While:
		loopStart := c.chunk.Len()
		c.compileExpr(st.Cond)
		exitJump := c.emit(Instruction{Op: OpJumpIfFalse, A: UnpatchedJump})
		c.compileBlock(st.Body)
		c.emit(Instruction{Op: OpJump, A: loopStart})
		c.chunk.Patch(exitJump, c.chunk.Len())
	case *ir.Return:
		if st.Value != nil {
			c.compileExpr(st.Value)
		} else {
			c.emit(Instruction{Op: OpPushNothing})
		}
		c.emit(Instruction{Op: OpReturn})
	case *ir.Try:
		c.compileTry(st)
	case *ir.Throw:
		c.compileExpr(st.Value)
		c.emit(Instruction{Op: OpThrowValue})
	}
}

// compileTry emits PushHandler(catch_ip, finally_ip) ahead of the
// protected body and PopHandler after it, matching the frame/handler
// bookkeeping the VM's exception unwinding walks.
func (c *Compiler) compileTry(st *ir.Try) {
	pushIdx := c.emit(Instruction{Op: OpPushHandler, A: UnpatchedJump, B: UnpatchedJump})
	c.compileBlock(st.Body)
	c.emit(Instruction{Op: OpPopHandler})
	endJump := c.emit(Instruction{Op: OpJump, A: UnpatchedJump})

	catchIP := c.chunk.Len()
	if st.Catch != nil {
		if st.CatchVar != "" {
			slot := c.allocSlot(st.CatchVar)
			c.emit(Instruction{Op: OpPushExceptionValue})
			c.emit(Instruction{Op: OpStoreSlot, A: slot})
		}
		c.compileBlock(st.Catch)
	}
	finallyIP := c.chunk.Len()
	if st.Finally != nil {
		c.compileBlock(st.Finally)
	}
	c.chunk.Code[pushIdx].A = catchIP
	c.chunk.Code[pushIdx].B = finallyIP
	c.chunk.Patch(endJump, c.chunk.Len())
}

func (c *Compiler) compileExpr(e ir.Expr) {
	switch x := e.(type) {
	case *ir.LitInt:
		c.emit(Instruction{Op: OpPushInt, IntVal: x.Val})
	case *ir.LitFloat:
		c.emit(Instruction{Op: OpPushFloat, FloatVal: x.Val})
	case *ir.LitBool:
		c.emit(Instruction{Op: OpPushBool, BoolVal: x.Val})
	case *ir.LitString:
		c.emit(Instruction{Op: OpPushString, StrVal: x.Val})
	case *ir.LitChar:
		c.emit(Instruction{Op: OpPushChar, CharVal: x.Val})
	case *ir.LitNothing:
		c.emit(Instruction{Op: OpPushNothing})
	case *ir.Var:
		if slot, ok := c.slots[x.Name]; ok {
			c.emit(Instruction{Op: OpLoadSlot, A: slot})
		} else {
			c.emit(Instruction{Op: OpLoad, StrVal: x.Name})
		}
	case *ir.Binary:
		c.compileBinary(x)
	case *ir.Unary:
		c.compileExpr(x.Operand)
		if x.Op == "-" {
			c.emit(Instruction{Op: OpDynamicNeg})
		} else {
			c.emit(Instruction{Op: OpDynamicToBool})
		}
	case *ir.Call:
		c.compileCall(x)
	case *ir.GetField:
		c.compileExpr(x.Obj)
		c.compileGetField(x)
	case *ir.Index:
		c.compileExpr(x.Obj)
		for _, i := range x.Indices {
			c.compileExpr(i)
		}
		if len(x.Indices) == 1 {
			c.emit(Instruction{Op: OpIndexGet})
		} else {
			c.emit(Instruction{Op: OpIndexSlice, A: len(x.Indices)})
		}
	case *ir.IsaCheck:
		c.compileExpr(x.Obj)
		ty := "Any"
		if x.Type.Kind == types.TEConcrete {
			ty = x.Type.Concrete.String()
		}
		c.emit(Instruction{Op: OpCallIntrinsic, StrVal: "isa:" + ty, BoolVal: x.NotNil})
	case *ir.ArrayLit:
		for _, el := range x.Elems {
			c.compileExpr(el)
		}
		c.emit(Instruction{Op: OpNewArray, A: len(x.Elems)})
	case *ir.TupleLit:
		for _, el := range x.Elems {
			c.compileExpr(el)
		}
		c.emit(Instruction{Op: OpNewTuple, A: len(x.Elems)})
	case *ir.NamedTupleLit:
		for _, v := range x.Values {
			c.compileExpr(v)
		}
		c.emit(Instruction{Op: OpNewDict, A: len(x.Values), Kwnames: x.Names})
	case *ir.StructNew:
		for _, a := range x.Args {
			c.compileExpr(a)
		}
		typeID := 0
		if c.structs != nil {
			typeID = c.structs.EnsureTypeID(x.TypeName)
		}
		c.emit(Instruction{Op: OpNewStruct, A: typeID, B: len(x.Args), StrVal: x.TypeName})
	case *ir.HOFCall:
		c.compileHOF(x)
	}
}

func (c *Compiler) compileGetField(x *ir.GetField) {
	// Static field index when the receiver's concrete type is known and
	// resolves in the struct table; falls back to name-indexed lookup for
	// Any-typed receivers.
	if c.typed != nil && c.structs != nil {
		rt := c.typed.TypeOf(x.Obj)
		if recvName, ok := concreteTypeName(rt); ok {
			if def, ok := c.structs.Get(recvName); ok {
				if idx, ok := def.FieldIndex(x.Field); ok {
					c.emit(Instruction{Op: OpGetField, A: idx, StrVal: x.Field})
					return
				}
			}
		}
	}
	c.emit(Instruction{Op: OpGetFieldByName, StrVal: x.Field})
}

func concreteTypeName(t interface{ String() string }) (string, bool) {
	s := t.String()
	if s == "" || s == "Any" {
		return "", false
	}
	return s, true
}

func (c *Compiler) compileBinary(x *ir.Binary) {
	c.compileExpr(x.Left)
	c.compileExpr(x.Right)
	if x.Broadcast {
		c.emit(Instruction{Op: OpCallBuiltin, StrVal: "broadcast:" + x.Op, A: 2})
		return
	}
	switch x.Op {
	case "+":
		c.emit(Instruction{Op: OpAdd})
	case "-":
		c.emit(Instruction{Op: OpSub})
	case "*":
		c.emit(Instruction{Op: OpMul})
	case "/":
		c.emit(Instruction{Op: OpDivFloat})
	case "%":
		c.emit(Instruction{Op: OpDynamicMod})
	case "^":
		c.emit(Instruction{Op: OpDynamicPow})
	case "÷":
		c.emit(Instruction{Op: OpDynamicIntDiv})
	default:
		c.emit(Instruction{Op: OpCallIntrinsic, StrVal: x.Op})
	}
}

// compileCall decides the call-site shape from the callee's variants in
// the method table. With at most one variant it emits a direct Call (or
// CallBuiltin when the name has no compiled function); otherwise it emits
// CallDynamic with every variant as a candidate, keyed on its first
// parameter type, and the name's function index as the fallback. No
// candidate is filtered out at compile time.
func (c *Compiler) compileCall(x *ir.Call) {
	for _, a := range x.Args {
		c.compileExpr(a)
	}
	variants := c.chunk.Methods.Variants(x.Callee)
	fallback, hasFallback := c.funcIndex[x.Callee]

	if len(variants) <= 1 {
		if hasFallback {
			c.emit(Instruction{Op: OpCall, A: fallback, B: len(x.Args), StrVal: x.Callee})
		} else {
			c.emit(Instruction{Op: OpCallBuiltin, StrVal: x.Callee, A: len(x.Args)})
		}
		return
	}

	if !hasFallback {
		fallback = NoFallback
	}

	var candidates []DispatchCandidate
	for _, v := range variants {
		sig := "Any"
		if len(v.ParamTypes) > 0 {
			sig = v.ParamTypes[0]
		}
		candidates = append(candidates, DispatchCandidate{FuncIndex: v.FuncIndex, ExpectedType: sig})
	}

	// Devirtualization: a singleton candidate equal to the fallback needs
	// no runtime dispatch at all.
	if len(candidates) == 1 && candidates[0].FuncIndex == fallback {
		c.emit(Instruction{Op: OpCall, A: fallback, B: len(x.Args), StrVal: x.Callee})
		return
	}

	c.emit(Instruction{
		Op:         OpCallDynamic,
		Fallback:   fallback,
		CheckPos:   0,
		Candidates: candidates,
		StrVal:     x.Callee,
		B:          len(x.Args),
	})
}

func (c *Compiler) compileHOF(x *ir.HOFCall) {
	c.compileExpr(x.Func)
	c.compileExpr(x.Collection)
	for _, extra := range x.Extra {
		c.compileExpr(extra)
	}
	name := "map"
	switch x.Kind {
	case ir.HOFFilter:
		name = "filter"
	case ir.HOFReduce:
		name = "reduce"
	}
	c.emit(Instruction{Op: OpCallBuiltin, StrVal: name, A: 2 + len(x.Extra)})
}
