package vm

import (
	"fmt"
	"strings"

	"subsetjulia/internal/bytecode"
	"subsetjulia/internal/verrors"
)

// callBuiltin dispatches the base-module functions the compiler falls
// back to CallBuiltin for when a name doesn't resolve: collection/
// reflection primitives plus the HOF family (map/filter/reduce), which
// drive the callee through CallFunction one element at a time while
// assembling a BroadcastState for introspection.
func (vm *VM) callBuiltin(name string, args []Value) (Value, *verrors.VmError) {
	switch name {
	case "length":
		return Int(64, int64(collectionLength(args[0]))), nil
	case "eltype":
		return Symbol(elemTypeName(args[0])), nil
	case "typeof":
		return Value{Kind: KDataType, DataType: &DataTypeValue{Name: args[0].TypeName()}}, nil
	case "string":
		var b strings.Builder
		for _, a := range args {
			if a.Kind == KStr {
				b.WriteString(a.Str)
			} else {
				b.WriteString(displayValue(a))
			}
		}
		return Str(b.String()), nil
	case "println":
		parts := make([]string, len(args))
		for i, a := range args {
			if a.Kind == KStr {
				parts[i] = a.Str
			} else {
				parts[i] = displayValue(a)
			}
		}
		fmt.Println(strings.Join(parts, ""))
		return Nothing(), nil
	case "print":
		parts := make([]string, len(args))
		for i, a := range args {
			if a.Kind == KStr {
				parts[i] = a.Str
			} else {
				parts[i] = displayValue(a)
			}
		}
		fmt.Print(strings.Join(parts, ""))
		return Nothing(), nil
	case "error":
		msg := ""
		if len(args) > 0 {
			msg = args[0].Str
			if args[0].Kind != KStr {
				msg = displayValue(args[0])
			}
		}
		return Value{}, verrors.NewErrorException(msg)
	case "push!":
		return vm.pushBang(args)
	case "pop!":
		return vm.popBang(args[0])
	case "first":
		return vm.firstOf(args[0])
	case "last":
		return vm.lastOf(args[0])
	case "map":
		return vm.runBroadcast(OpMap, args)
	case "filter":
		return vm.runBroadcast(OpFilter, args)
	case "reduce":
		return vm.runBroadcast(OpReduce, args)
	case "sum":
		if len(args) >= 2 {
			return vm.runSumWithFunc(args)
		}
		return vm.builtinSum(args[0])
	case "count":
		return vm.runBroadcast(OpCount, args)
	case "map!":
		return vm.runMapInPlace(args)
	case "filter!":
		return vm.runFilterInPlace(args)
	case "mapreduce":
		return vm.runMapReduce(args, OpMapReduce)
	case "mapfoldr":
		return vm.runMapReduce(args, OpMapFoldr)
	case "ntuple":
		return vm.runNTuple(args)
	case "broadcast:+", "broadcast:-", "broadcast:*", "broadcast:/":
		return vm.runBinaryBroadcast(name[len("broadcast:"):], args[0], args[1])
	}
	return Value{}, &verrors.VmError{Kind: verrors.NotImplemented, Msg: "builtin " + name}
}

func collectionLength(v Value) int {
	switch v.Kind {
	case KArray:
		return v.Array.Data.Len()
	case KTuple:
		return len(v.Tuple)
	case KNamedTuple:
		return len(v.NamedTup.Names)
	case KDict:
		return len(v.Dict.Keys)
	case KSet:
		return len(v.Set.Elems)
	case KStr:
		return len([]rune(v.Str))
	case KRange:
		return int(rangeLen(v.Range))
	}
	return 0
}

func elemTypeName(v Value) string {
	if v.Kind != KArray {
		return "Any"
	}
	switch v.Array.Data.Kind {
	case ElemFloat64:
		return "Float64"
	case ElemFloat32:
		return "Float32"
	case ElemInt64:
		return "Int64"
	case ElemBool:
		return "Bool"
	case ElemStr:
		return "String"
	case ElemChar:
		return "Char"
	}
	return "Any"
}

func (vm *VM) pushBang(args []Value) (Value, *verrors.VmError) {
	arr := args[0]
	if arr.Kind != KArray {
		return Value{}, verrors.TypeErrorExpected("push!", "Array", arr.TypeName())
	}
	if arr.Array.Data.Kind != ElemAny {
		// appended through the boxed path; demote to Any first so the new
		// elements stay visible (a specialized re-widen is possible but
		// not needed for correctness here).
		widened := materializeAny(arr.Array.Data)
		*arr.Array.Data = ArrayData{Kind: ElemAny, Any: widened}
	}
	for _, v := range args[1:] {
		arr.Array.Data.Any = append(arr.Array.Data.Any, v)
	}
	arr.Array.Shape = []int{arr.Array.Data.Len()}
	return arr, nil
}

func materializeAny(d *ArrayData) []Value {
	n := d.Len()
	out := make([]Value, 0, n)
	for i := 0; i < n; i++ {
		switch d.Kind {
		case ElemFloat64:
			out = append(out, Float(64, d.F64[i]))
		case ElemInt64:
			out = append(out, Int(64, d.I64[i]))
		case ElemBool:
			out = append(out, Bool(d.Bool[i]))
		case ElemStr:
			out = append(out, Str(d.Str[i]))
		case ElemChar:
			out = append(out, Char(d.Char[i]))
		default:
			out = append(out, d.Any[i])
		}
	}
	return out
}

func (vm *VM) popBang(arr Value) (Value, *verrors.VmError) {
	if arr.Kind != KArray || arr.Array.Data.Len() == 0 {
		return Value{}, &verrors.VmError{Kind: verrors.EmptyArrayPop}
	}
	n := arr.Array.Data.Len()
	last, _ := indexGet(arr, []Value{Int(64, int64(n))})
	d := arr.Array.Data
	switch d.Kind {
	case ElemFloat64:
		d.F64 = d.F64[:n-1]
	case ElemInt64:
		d.I64 = d.I64[:n-1]
	case ElemBool:
		d.Bool = d.Bool[:n-1]
	case ElemStr:
		d.Str = d.Str[:n-1]
	case ElemChar:
		d.Char = d.Char[:n-1]
	default:
		d.Any = d.Any[:n-1]
	}
	arr.Array.Shape = []int{n - 1}
	return last, nil
}

func (vm *VM) firstOf(v Value) (Value, *verrors.VmError) {
	if collectionLength(v) == 0 {
		return Value{}, &verrors.VmError{Kind: verrors.EmptyArrayPop}
	}
	return indexGet(v, []Value{Int(64, 1)})
}

func (vm *VM) lastOf(v Value) (Value, *verrors.VmError) {
	n := collectionLength(v)
	if n == 0 {
		return Value{}, &verrors.VmError{Kind: verrors.EmptyArrayPop}
	}
	return indexGet(v, []Value{Int(64, int64(n))})
}

func (vm *VM) builtinSum(v Value) (Value, *verrors.VmError) {
	n := collectionLength(v)
	total := 0.0
	allInt := true
	var itotal int64
	for i := 1; i <= n; i++ {
		e, err := indexGet(v, []Value{Int(64, int64(i))})
		if err != nil {
			return Value{}, err
		}
		total += e.AsFloat64()
		if e.IsInt() {
			itotal += e.I
		} else {
			allInt = false
		}
	}
	if allInt {
		return Int(64, itotal), nil
	}
	return Float(64, total), nil
}

// funcValue resolves a Value naming a callable (Function/Closure) to the
// compiled function index the worker call targets.
func (vm *VM) funcValue(v Value) (int, bool) {
	name := ""
	switch v.Kind {
	case KFunction:
		name = v.Function.Name
	case KClosure:
		name = v.Closure.Name
	default:
		return 0, false
	}
	for i, fi := range vm.Chunk.Functions {
		if fi.Name == name {
			return i, true
		}
	}
	return 0, false
}

// runBroadcast drives map/filter/reduce/count: it builds a BroadcastState
// so the driver's progress stays introspectable, but steps it with a
// synchronous CallFunction per element rather than re-entering the main
// fetch loop — behaviorally equivalent, and considerably simpler, since
// every element/worker-result pair is independent.
func (vm *VM) runBroadcast(kind HOFKind, args []Value) (Value, *verrors.VmError) {
	if len(args) < 2 {
		return Value{}, verrors.NewInternalError("HOF called with too few arguments")
	}
	funcIndex, ok := vm.funcValue(args[0])
	if !ok {
		return Value{}, verrors.NewMethodError("callable expected as first argument")
	}
	coll := args[1]
	n := collectionLength(coll)
	input := make([]Value, n)
	for i := 0; i < n; i++ {
		e, err := indexGet(coll, []Value{Int(64, int64(i+1))})
		if err != nil {
			return Value{}, err
		}
		input[i] = e
	}

	state := &BroadcastState{OpKind: kind, FuncIndex: funcIndex, Input: input, DestSlot: -1}

	if kind == OpReduce {
		start := 0
		if len(args) > 2 {
			state.HasAccum = true
			state.Accumulator = args[2]
		} else if n > 0 {
			state.HasAccum = true
			state.Accumulator = input[0]
			start = 1
		}
		for i := start; i < n; i++ {
			res, err := vm.CallFunction(funcIndex, []Value{state.Accumulator, input[i]})
			if err != nil {
				return Value{}, err
			}
			state.Accumulator = res
		}
		return state.Finalize(), nil
	}

	for {
		workerArgs, more := state.NextInput()
		if !more {
			break
		}
		res, err := vm.CallFunction(funcIndex, workerArgs)
		if err != nil {
			return Value{}, err
		}
		state.Advance(res)
	}
	return state.Finalize(), nil
}

// runMapInPlace implements map!(f, dest, src): dest and src must both be
// Arrays of the same length; each result is written into dest as it
// arrives rather than collected into a fresh Array.
func (vm *VM) runMapInPlace(args []Value) (Value, *verrors.VmError) {
	if len(args) < 3 {
		return Value{}, verrors.NewInternalError("map! called with too few arguments")
	}
	funcIndex, ok := vm.funcValue(args[0])
	if !ok {
		return Value{}, verrors.NewMethodError("callable expected as first argument to map!")
	}
	dest, src := args[1], args[2]
	if dest.Kind != KArray || src.Kind != KArray {
		return Value{}, verrors.TypeErrorExpected("map!", "Array", src.TypeName())
	}
	input, _ := arrayElems(src)
	state := &BroadcastState{OpKind: OpMapInPlace, FuncIndex: funcIndex, Input: input, DestSlot: -1}
	for {
		workerArgs, more := state.NextInput()
		if !more {
			break
		}
		res, err := vm.CallFunction(funcIndex, workerArgs)
		if err != nil {
			return Value{}, err
		}
		if serr := indexSet(dest, []Value{Int(64, int64(state.CurrentIndex+1))}, res); serr != nil {
			return Value{}, serr
		}
		state.Advance(res)
	}
	return dest, nil
}

// runFilterInPlace implements filter!(pred, arr): arr is overwritten with
// only the elements pred keeps.
func (vm *VM) runFilterInPlace(args []Value) (Value, *verrors.VmError) {
	if len(args) < 2 {
		return Value{}, verrors.NewInternalError("filter! called with too few arguments")
	}
	funcIndex, ok := vm.funcValue(args[0])
	if !ok {
		return Value{}, verrors.NewMethodError("callable expected as first argument to filter!")
	}
	arr := args[1]
	if arr.Kind != KArray {
		return Value{}, verrors.TypeErrorExpected("filter!", "Array", arr.TypeName())
	}
	input, _ := arrayElems(arr)
	state := &BroadcastState{OpKind: OpFilterInPlace, FuncIndex: funcIndex, Input: input, DestSlot: -1}
	for {
		workerArgs, more := state.NextInput()
		if !more {
			break
		}
		res, err := vm.CallFunction(funcIndex, workerArgs)
		if err != nil {
			return Value{}, err
		}
		state.Advance(res)
	}
	kept := append([]Value{}, state.Results.Values...)
	for _, f := range state.Results.F64 {
		kept = append(kept, Float(64, f))
	}
	*arr.Array.Data = ArrayData{Kind: ElemAny, Any: kept}
	arr.Array.Shape = []int{len(kept)}
	return arr, nil
}

// runMapReduce drives mapreduce/mapfoldr: apply the map function to every
// element, then fold the mapped values with the reduce function. mapfoldr
// walks the collection in reverse and swaps the reduce function's argument
// order, matching foldr's right-associativity.
func (vm *VM) runMapReduce(args []Value, kind HOFKind) (Value, *verrors.VmError) {
	if len(args) < 3 {
		return Value{}, verrors.NewInternalError("mapreduce called with too few arguments")
	}
	mapFunc, ok := vm.funcValue(args[0])
	if !ok {
		return Value{}, verrors.NewMethodError("callable expected as first argument to mapreduce")
	}
	reduceFunc, ok := vm.funcValue(args[1])
	if !ok {
		return Value{}, verrors.NewMethodError("callable expected as second argument to mapreduce")
	}
	coll := args[2]
	input, _ := arrayElems(coll)
	if input == nil {
		n := collectionLength(coll)
		input = make([]Value, n)
		for i := 0; i < n; i++ {
			e, err := indexGet(coll, []Value{Int(64, int64(i+1))})
			if err != nil {
				return Value{}, err
			}
			input[i] = e
		}
	}
	if kind == OpMapFoldr {
		for i, j := 0, len(input)-1; i < j; i, j = i+1, j-1 {
			input[i], input[j] = input[j], input[i]
		}
	}

	state := &BroadcastState{OpKind: kind, FuncIndex: mapFunc, ReduceFunc: reduceFunc, Input: input, DestSlot: -1}
	if len(args) > 3 {
		state.HasAccum = true
		state.Accumulator = args[3]
	}
	for {
		workerArgs, more := state.NextInput()
		if !more {
			break
		}
		mapped, err := vm.CallFunction(mapFunc, workerArgs)
		if err != nil {
			return Value{}, err
		}
		if !state.HasAccum {
			state.Advance(mapped)
			continue
		}
		var reduced Value
		var rerr *verrors.VmError
		if kind == OpMapFoldr {
			reduced, rerr = vm.CallFunction(reduceFunc, []Value{mapped, state.Accumulator})
		} else {
			reduced, rerr = vm.CallFunction(reduceFunc, []Value{state.Accumulator, mapped})
		}
		if rerr != nil {
			return Value{}, rerr
		}
		state.Advance(reduced)
	}
	return state.Finalize(), nil
}

// runSumWithFunc implements the two-argument form sum(f, collection):
// apply f to each element and sum the results.
func (vm *VM) runSumWithFunc(args []Value) (Value, *verrors.VmError) {
	funcIndex, ok := vm.funcValue(args[0])
	if !ok {
		return Value{}, verrors.NewMethodError("callable expected as first argument to sum")
	}
	coll := args[1]
	input, _ := arrayElems(coll)
	if input == nil {
		n := collectionLength(coll)
		input = make([]Value, n)
		for i := 0; i < n; i++ {
			e, err := indexGet(coll, []Value{Int(64, int64(i+1))})
			if err != nil {
				return Value{}, err
			}
			input[i] = e
		}
	}
	state := &BroadcastState{
		OpKind: OpSum, FuncIndex: funcIndex, Input: input, DestSlot: -1,
		HasAccum: true, Accumulator: Int(64, 0),
	}
	for {
		workerArgs, more := state.NextInput()
		if !more {
			break
		}
		res, err := vm.CallFunction(funcIndex, workerArgs)
		if err != nil {
			return Value{}, err
		}
		summed, serr := arith(bytecode.OpAdd, state.Accumulator, res)
		if serr != nil {
			return Value{}, serr
		}
		state.Advance(summed)
	}
	return state.Finalize(), nil
}

// runNTuple implements ntuple(f, n): apply f to 1..n and collect the
// results into a Tuple.
func (vm *VM) runNTuple(args []Value) (Value, *verrors.VmError) {
	if len(args) < 2 {
		return Value{}, verrors.NewInternalError("ntuple called with too few arguments")
	}
	funcIndex, ok := vm.funcValue(args[0])
	if !ok {
		return Value{}, verrors.NewMethodError("callable expected as first argument to ntuple")
	}
	n := int(args[1].I)
	input := make([]Value, n)
	for i := 0; i < n; i++ {
		input[i] = Int(64, int64(i+1))
	}
	state := &BroadcastState{OpKind: OpNTuple, FuncIndex: funcIndex, Input: input, DestSlot: -1}
	for {
		workerArgs, more := state.NextInput()
		if !more {
			break
		}
		res, err := vm.CallFunction(funcIndex, workerArgs)
		if err != nil {
			return Value{}, err
		}
		state.Advance(res)
	}
	return state.Finalize(), nil
}
