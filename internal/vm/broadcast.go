package vm

import (
	"subsetjulia/internal/bytecode"
	"subsetjulia/internal/verrors"
)

// HOFKind tags which higher-order driver a BroadcastState is running.
type HOFKind int

const (
	OpMap HOFKind = iota
	OpFilter
	OpReduce
	OpMapReduce
	OpMapFoldr
	OpSum
	OpCount
	OpNTuple
	OpMapInPlace
	OpFilterInPlace
)

// BroadcastResults accumulates the output of an in-progress HOF/broadcast
// call: F64 while UseF64 is set, Values otherwise. No driver in this
// package sets UseF64, so results always collect in Values.
type BroadcastResults struct {
	F64    []float64
	Values []Value
	UseF64 bool
}

func (r *BroadcastResults) Push(v Value) {
	if r.UseF64 && v.IsFloat() {
		r.F64 = append(r.F64, v.AsFloat64())
		return
	}
	if r.UseF64 {
		// A non-float result arrived after the fast path was chosen —
		// demote in place rather than losing precision silently.
		for _, f := range r.F64 {
			r.Values = append(r.Values, Float(64, f))
		}
		r.F64 = nil
		r.UseF64 = false
	}
	r.Values = append(r.Values, v)
}

func (r *BroadcastResults) Len() int {
	if r.UseF64 {
		return len(r.F64)
	}
	return len(r.Values)
}

// BroadcastState holds the progress of one map/filter/reduce/broadcast
// call: the inputs, the current index, and the accumulator or collected
// results. The drivers step it synchronously, one worker call per element,
// through NextInput and Advance, and finish with Finalize; it is never
// installed on the VM, and HOFFrameDepth and ResumeIP stay zero.
type BroadcastState struct {
	OpKind        HOFKind
	FuncIndex     int
	Input         []Value
	InputShape    []int
	Second        []Value // second input for binary broadcasts (.+  etc.)
	SecondShape   []int
	Accumulator   Value
	HasAccum      bool
	ExtraArgs     []Value
	ReduceFunc    int // for mapreduce
	HOFFrameDepth int
	IsValueMode   bool // not set by any driver; always false
	CurrentIndex  int
	Results       BroadcastResults
	ResumeIP      int // IP to resume at once the whole broadcast completes
	DestSlot      int // -1 in every driver; map!/filter! write through the destination Array value
}

// NextInput returns the arguments to pass the worker for the current
// index, or ok=false once every input element has been consumed.
func (b *BroadcastState) NextInput() ([]Value, bool) {
	if b.CurrentIndex >= len(b.Input) {
		return nil, false
	}
	args := []Value{b.Input[b.CurrentIndex]}
	if b.Second != nil {
		args = append(args, b.Second[b.CurrentIndex])
	}
	args = append(args, b.ExtraArgs...)
	return args, true
}

// Advance records the worker's result for the current element and moves
// the index forward; it returns true while elements remain.
func (b *BroadcastState) Advance(result Value) bool {
	switch b.OpKind {
	case OpMap, OpMapInPlace:
		b.Results.Push(result)
	case OpFilter, OpFilterInPlace:
		keep := result.Kind == KBool && result.AsBool()
		if keep {
			b.Results.Push(b.Input[b.CurrentIndex])
		}
	case OpReduce, OpMapReduce, OpSum:
		b.Accumulator = result
		b.HasAccum = true
	case OpCount:
		if result.Kind == KBool && result.AsBool() {
			if !b.HasAccum {
				b.Accumulator = Int(64, 0)
				b.HasAccum = true
			}
			b.Accumulator = Int(64, b.Accumulator.I+1)
		}
	case OpMapFoldr:
		b.Accumulator = result
		b.HasAccum = true
	case OpNTuple:
		b.Results.Push(result)
	}
	b.CurrentIndex++
	return b.CurrentIndex < len(b.Input)
}

// Finalize constructs the output value once every element has been
// processed: an Array for map/filter, a scalar for reduce/sum/count, or
// nothing for in-place variants (the destination array was mutated as
// results arrived).
func (b *BroadcastState) Finalize() Value {
	switch b.OpKind {
	case OpMap, OpFilter:
		if b.Results.UseF64 {
			data := &ArrayData{Kind: ElemFloat64, F64: b.Results.F64}
			return Value{Kind: KArray, Array: &ArrayValue{Data: data, Shape: []int{len(b.Results.F64)}}}
		}
		data := &ArrayData{Kind: ElemAny, Any: b.Results.Values}
		return Value{Kind: KArray, Array: &ArrayValue{Data: data, Shape: []int{len(b.Results.Values)}}}
	case OpNTuple:
		if b.Results.UseF64 {
			vals := make([]Value, len(b.Results.F64))
			for i, f := range b.Results.F64 {
				vals[i] = Float(64, f)
			}
			return Value{Kind: KTuple, Tuple: vals}
		}
		return Value{Kind: KTuple, Tuple: b.Results.Values}
	case OpCount:
		if b.HasAccum {
			return b.Accumulator
		}
		return Int(64, 0)
	case OpReduce, OpMapReduce, OpSum, OpMapFoldr:
		if b.HasAccum {
			return b.Accumulator
		}
		return Nothing()
	case OpMapInPlace, OpFilterInPlace:
		return Nothing()
	}
	return Nothing()
}

// runBinaryBroadcast implements elementwise .+ .- .* ./ across two arrays
// (or an array and a scalar, which is repeated to match): it populates
// Second/SecondShape on a BroadcastState and drives arith directly rather
// than through CallFunction, since the "worker" here is an arithmetic
// intrinsic rather than a user-compiled function.
func (vm *VM) runBinaryBroadcast(op string, a, b Value) (Value, *verrors.VmError) {
	opcode, ok := broadcastOpcode(op)
	if !ok {
		return Value{}, verrors.NoMethodMatchingOp(a.TypeName(), b.TypeName())
	}

	aElems, aShape := arrayElems(a)
	bElems, bShape := arrayElems(b)
	switch {
	case aElems != nil && bElems != nil:
		if len(aElems) != len(bElems) {
			return Value{}, verrors.NewInternalError("broadcast shape mismatch")
		}
	case aElems != nil:
		bElems = make([]Value, len(aElems))
		for i := range bElems {
			bElems[i] = b
		}
		bShape = aShape
	case bElems != nil:
		aElems = make([]Value, len(bElems))
		for i := range aElems {
			aElems[i] = a
		}
		aShape = bShape
	default:
		return arith(opcode, a, b)
	}

	state := &BroadcastState{
		OpKind: OpMap, FuncIndex: -1,
		Input: aElems, InputShape: aShape,
		Second: bElems, SecondShape: bShape,
	}
	for {
		workerArgs, more := state.NextInput()
		if !more {
			break
		}
		res, err := arith(opcode, workerArgs[0], workerArgs[1])
		if err != nil {
			return Value{}, err
		}
		state.Advance(res)
	}
	return state.Finalize(), nil
}

func broadcastOpcode(op string) (bytecode.OpCode, bool) {
	switch op {
	case "+":
		return bytecode.OpAdd, true
	case "-":
		return bytecode.OpSub, true
	case "*":
		return bytecode.OpMul, true
	case "/":
		return bytecode.OpDivFloat, true
	}
	return 0, false
}

// arrayElems returns an Array's elements and shape, or (nil, nil) for any
// non-Array value (the scalar side of a broadcast).
func arrayElems(v Value) ([]Value, []int) {
	if v.Kind != KArray {
		return nil, nil
	}
	n := v.Array.Data.Len()
	out := make([]Value, n)
	for i := 0; i < n; i++ {
		out[i], _ = indexGet(v, []Value{Int(64, int64(i+1))})
	}
	return out, v.Array.Shape
}
