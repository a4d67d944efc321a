package vm

import (
	"fmt"
	"strings"

	"subsetjulia/internal/bytecode"
	"subsetjulia/internal/types"
	"subsetjulia/internal/verrors"
)

// VM is the stack-based interpreter for a compiled Chunk. A
// single operand stack and a single handler stack are shared across every
// nested call; function activations are modelled with real *Frame records
// pushed onto vm.frames, but control transfer between an OpCall and its
// callee's OpReturn is implemented with an ordinary recursive Go call
// (loop calls itself for the callee and returns the result) rather than a
// hand-rolled trampoline — Go's own call stack
// supplies the "jump back to caller" half of the machinery.
type VM struct {
	Chunk   *bytecode.Chunk
	Structs *types.StructTable
	Heap    *StructHeap
	Cache   *DispatchCache
	Config  Config

	stack     []Value
	frames    []*Frame
	returnIPs []int
	handlers  []Handler

	pendingError          *verrors.VmError
	pendingExceptionValue *Value
	cancelled             bool
}

func New(chunk *bytecode.Chunk, structs *types.StructTable) *VM {
	return &VM{
		Chunk:   chunk,
		Structs: structs,
		Heap:    NewStructHeap(),
		Cache:   NewDispatchCache(),
		Config:  DefaultConfig(),
	}
}

func (vm *VM) Cancel()        { vm.cancelled = true }
func (vm *VM) IsCancelled() bool { return vm.cancelled }

func (vm *VM) push(v Value) { vm.stack = append(vm.stack, v) }

func (vm *VM) pop() Value {
	if len(vm.stack) == 0 {
		return Nothing()
	}
	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v
}

func (vm *VM) peek() Value {
	if len(vm.stack) == 0 {
		return Nothing()
	}
	return vm.stack[len(vm.stack)-1]
}

func (vm *VM) popN(n int) []Value {
	if n <= 0 {
		return nil
	}
	if n > len(vm.stack) {
		n = len(vm.stack)
	}
	start := len(vm.stack) - n
	out := make([]Value, n)
	copy(out, vm.stack[start:])
	vm.stack = vm.stack[:start]
	return out
}

// Run executes the top-level entry range and
// returns the value of the final expression, or the uncaught error.
func (vm *VM) Run() (Value, *verrors.VmError) {
	frame := NewFrame(0, -1)
	return vm.loop(frame, vm.Chunk.EntryStart, vm.Chunk.EntryEnd)
}

// CallFunction invokes a compiled function directly with already-evaluated
// arguments (used by HOF/broadcast driving and by builtins that call back
// into user code).
func (vm *VM) CallFunction(funcIndex int, args []Value) (Value, *verrors.VmError) {
	fi, ok := vm.Chunk.FunctionByIndex(funcIndex)
	if !ok {
		return Nothing(), verrors.NewInternalError("unknown function index")
	}
	if len(vm.frames) >= vm.Config.MaxFrames {
		return Nothing(), &verrors.VmError{Kind: verrors.StackOverflow}
	}
	slotCount := fi.SlotCount
	if slotCount < len(args) {
		slotCount = len(args)
	}
	frame := NewFrame(slotCount, funcIndex)
	for i, a := range args {
		frame.SetSlot(i, a)
	}
	return vm.loop(frame, fi.CodeStart, fi.CodeEnd)
}

// loop runs one frame's instruction range to completion: it owns the
// frame's slice of the (VM-wide) handler stack and its own fetch-dispatch
// cursor, recursing into itself for nested calls.
func (vm *VM) loop(frame *Frame, startIP, endIP int) (Value, *verrors.VmError) {
	vm.frames = append(vm.frames, frame)
	handlerBase := len(vm.handlers)
	ip := startIP

	exit := func(v Value, err *verrors.VmError) (Value, *verrors.VmError) {
		vm.frames = vm.frames[:len(vm.frames)-1]
		vm.handlers = vm.handlers[:handlerBase]
		return v, err
	}

	for {
		if vm.cancelled {
			return exit(Nothing(), &verrors.VmError{Kind: verrors.Cancelled})
		}
		if ip < 0 || ip >= len(vm.Chunk.Code) {
			return exit(Nothing(), verrors.NewInternalError("instruction pointer out of range"))
		}
		instr := vm.Chunk.Code[ip]
		siteIP := ip
		ip++

		var stepErr *verrors.VmError

		switch instr.Op {
		case bytecode.OpReturn:
			v := vm.pop()
			return exit(v, nil)

		case bytecode.OpPop:
			vm.pop()
		case bytecode.OpDup:
			vm.push(vm.peek())

		case bytecode.OpPushInt:
			vm.push(Int(64, instr.IntVal))
		case bytecode.OpPushFloat:
			vm.push(Float(64, instr.FloatVal))
		case bytecode.OpPushBool:
			vm.push(Bool(instr.BoolVal))
		case bytecode.OpPushString:
			vm.push(Str(instr.StrVal))
		case bytecode.OpPushChar:
			vm.push(Char(instr.CharVal))
		case bytecode.OpPushNothing:
			vm.push(Nothing())
		case bytecode.OpPushMissing:
			vm.push(Missing())
		case bytecode.OpPushStdout:
			vm.push(Value{Kind: KIO, IO: &IOValue{Kind: IOStdout}})
		case bytecode.OpPushStderr:
			vm.push(Value{Kind: KIO, IO: &IOValue{Kind: IOStderr}})
		case bytecode.OpPushStdin:
			vm.push(Value{Kind: KIO, IO: &IOValue{Kind: IOStdin}})
		case bytecode.OpPushDevnull:
			vm.push(Value{Kind: KIO, IO: &IOValue{Kind: IODevnull}})
		case bytecode.OpPushSymbol:
			vm.push(Symbol(instr.StrVal))

		case bytecode.OpLoadSlot:
			vm.push(frame.GetSlot(instr.A))
		case bytecode.OpStoreSlot:
			frame.SetSlot(instr.A, vm.pop())
		case bytecode.OpLoad:
			if v, ok := frame.GetName(instr.StrVal); ok {
				vm.push(v)
			} else {
				return exit(Nothing(), verrors.NewUndefVarError(instr.StrVal))
			}
		case bytecode.OpStore:
			frame.SetName(instr.StrVal, vm.pop())
		case bytecode.OpLoadCaptured:
			if v, ok := frame.Captured[instr.StrVal]; ok {
				vm.push(v)
			} else {
				return exit(Nothing(), verrors.NewUndefVarError(instr.StrVal))
			}

		case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul,
			bytecode.OpAddFloat, bytecode.OpSubFloat, bytecode.OpMulFloat, bytecode.OpDivFloat, bytecode.OpRemFloat,
			bytecode.OpDynamicMod, bytecode.OpDynamicPow, bytecode.OpDynamicIntDiv:
			b := vm.pop()
			a := vm.pop()
			res, err := arith(instr.Op, a, b)
			if err != nil {
				stepErr = err
				break
			}
			vm.push(res)

		case bytecode.OpNeg, bytecode.OpDynamicNeg:
			a := vm.pop()
			vm.push(negate(a))
		case bytecode.OpNegFloat:
			a := vm.pop()
			vm.push(Float(64, -a.AsFloat64()))
		case bytecode.OpDynamicToBool:
			a := vm.pop()
			vm.push(Bool(truthy(a)))
		case bytecode.OpDynamicToF32:
			a := vm.pop()
			vm.push(Float(32, a.AsFloat64()))
		case bytecode.OpDynamicToF16:
			a := vm.pop()
			vm.push(Float(16, a.AsFloat64()))

		case bytecode.OpJump:
			ip = instr.A
		case bytecode.OpJumpIfZero:
			if vm.pop().I == 0 {
				ip = instr.A
			}
		case bytecode.OpJumpIfTrue:
			if truthy(vm.pop()) {
				ip = instr.A
			}
		case bytecode.OpJumpIfFalse:
			if !truthy(vm.pop()) {
				ip = instr.A
			}

		case bytecode.OpCall:
			args := vm.popN(instr.B)
			res, err := vm.CallFunction(instr.A, args)
			if err != nil {
				stepErr = err
				break
			}
			vm.push(res)

		case bytecode.OpCallBuiltin:
			args := vm.popN(instr.A)
			res, err := vm.callBuiltin(instr.StrVal, args)
			if err != nil {
				stepErr = err
				break
			}
			vm.push(res)

		case bytecode.OpCallDynamic, bytecode.OpCallDynamicBinary, bytecode.OpCallDynamicBinaryBoth,
			bytecode.OpCallDynamicBinaryNoFallback, bytecode.OpCallDynamicOrBuiltin:
			args := vm.popN(instr.B)
			funcIndex, err := vm.resolveDynamicCall(siteIP, instr, args)
			if err != nil {
				stepErr = err
				break
			}
			if funcIndex == NoMatch {
				stepErr = verrors.NewMethodError(fmt.Sprintf("%s(%s)", instr.StrVal, strings.Join(runtimeTypeNames(args), ", ")))
				break
			}
			res, cerr := vm.CallFunction(funcIndex, args)
			if cerr != nil {
				stepErr = cerr
				break
			}
			vm.push(res)

		case bytecode.OpCallTypedDispatch:
			args := vm.popN(len(instr.TypedCands))
			funcIndex := NoMatch
			if len(instr.TypedCands) > 0 {
				funcIndex = instr.TypedCands[0].FuncIndex
			}
			if funcIndex == NoMatch {
				stepErr = verrors.NewMethodError(fmt.Sprintf("%s(%s)", instr.StrVal, strings.Join(runtimeTypeNames(args), ", ")))
				break
			}
			res, cerr := vm.CallFunction(funcIndex, args)
			if cerr != nil {
				stepErr = cerr
				break
			}
			vm.push(res)

		case bytecode.OpCallIntrinsic:
			stepErr = vm.callIntrinsic(instr)

		case bytecode.OpNewArray:
			elems := vm.popN(instr.A)
			vm.push(newArrayValue(elems))
		case bytecode.OpNewTuple:
			elems := vm.popN(instr.A)
			vm.push(Value{Kind: KTuple, Tuple: elems})
		case bytecode.OpNewDict:
			if instr.Kwnames != nil {
				values := vm.popN(instr.A)
				nt := &NamedTupleValue{Names: instr.Kwnames, Values: values}
				vm.push(Value{Kind: KNamedTuple, NamedTup: nt})
				break
			}
			pairs := vm.popN(instr.A * 2)
			d := &DictValue{}
			for i := 0; i+1 < len(pairs); i += 2 {
				d.Keys = append(d.Keys, pairs[i])
				d.Values = append(d.Values, pairs[i+1])
			}
			vm.push(Value{Kind: KDict, Dict: d})
		case bytecode.OpNewSet:
			elems := vm.popN(instr.A)
			vm.push(Value{Kind: KSet, Set: &SetValue{Elems: elems}})
		case bytecode.OpNewStruct:
			args := vm.popN(instr.B)
			vm.push(Value{Kind: KStruct, StructV: &StructValue{TypeName: instr.StrVal, Fields: args}})
		case bytecode.OpNewRange:
			stop := vm.pop()
			step := vm.pop()
			start := vm.pop()
			vm.push(newRange(start, step, stop))

		case bytecode.OpIndexGet:
			idx := vm.pop()
			obj := vm.pop()
			res, err := indexGet(obj, []Value{idx})
			if err != nil {
				stepErr = err
				break
			}
			vm.push(res)
		case bytecode.OpIndexSlice:
			idxs := vm.popN(instr.A)
			obj := vm.pop()
			res, err := indexGet(obj, idxs)
			if err != nil {
				stepErr = err
				break
			}
			vm.push(res)
		case bytecode.OpIndexSet:
			val := vm.pop()
			idx := vm.pop()
			obj := vm.pop()
			stepErr = indexSet(obj, []Value{idx}, val)

		case bytecode.OpGetField:
			obj := vm.pop()
			res, err := vm.getFieldByIndex(obj, instr.A, instr.StrVal)
			if err != nil {
				stepErr = err
				break
			}
			vm.push(res)
		case bytecode.OpGetFieldByName:
			obj := vm.pop()
			res, err := vm.getFieldByName(obj, instr.StrVal)
			if err != nil {
				stepErr = err
				break
			}
			vm.push(res)
		case bytecode.OpSetField:
			val := vm.pop()
			obj := vm.pop()
			stepErr = vm.setFieldByIndex(obj, instr.A, val)

		case bytecode.OpPushHandler:
			vm.handlers = append(vm.handlers, Handler{
				CatchIP:     instr.A,
				FinallyIP:   instr.B,
				StackLen:    len(vm.stack),
				FrameLen:    len(vm.frames),
				ReturnIPLen: len(vm.returnIPs),
			})
			frame.HandlerPush++
		case bytecode.OpPopHandler:
			if len(vm.handlers) > handlerBase {
				vm.handlers = vm.handlers[:len(vm.handlers)-1]
			}
		case bytecode.OpThrowValue:
			v := vm.pop()
			vm.pendingExceptionValue = &v
			stepErr = valueToError(v)
		case bytecode.OpThrowError:
			msg := vm.pop()
			stepErr = verrors.NewErrorException(msg.Str)
		case bytecode.OpRethrow, bytecode.OpRethrowCurrent:
			if vm.pendingError != nil {
				stepErr = vm.pendingError
			} else {
				stepErr = verrors.NewInternalError("rethrow with no pending error")
			}
		case bytecode.OpPushErrorMessage:
			if vm.pendingError != nil {
				vm.push(Str(vm.pendingError.Error()))
			} else {
				vm.push(Nothing())
			}
		case bytecode.OpPushExceptionValue:
			if vm.pendingExceptionValue != nil {
				vm.push(*vm.pendingExceptionValue)
			} else {
				vm.push(Nothing())
			}
		case bytecode.OpClearError:
			vm.pendingError = nil
			vm.pendingExceptionValue = nil

		default:
			stepErr = &verrors.VmError{Kind: verrors.NotImplemented, Msg: "opcode not implemented"}
		}

		if stepErr != nil {
			newIP, handled := vm.raiseLocal(stepErr, handlerBase)
			if !handled {
				return exit(Nothing(), stepErr)
			}
			ip = newIP
		}
	}
}

// raiseLocal searches this frame's own slice of the handler stack (indices
// [handlerBase, len)) from the top down; handlers belonging to outer frames sit below
// handlerBase and are found by the caller's own loop() once the error
// propagates up through the ordinary Go return.
func (vm *VM) raiseLocal(err *verrors.VmError, handlerBase int) (int, bool) {
	for i := len(vm.handlers) - 1; i >= handlerBase; i-- {
		h := vm.handlers[i]
		vm.handlers = vm.handlers[:i]
		if len(vm.stack) > h.StackLen {
			vm.stack = vm.stack[:h.StackLen]
		}
		vm.pendingError = err
		if h.CatchIP != bytecode.UnpatchedJump {
			return h.CatchIP, true
		}
		if h.FinallyIP != bytecode.UnpatchedJump {
			return h.FinallyIP, true
		}
	}
	return 0, false
}
