package vm

import (
	"math"

	"subsetjulia/internal/bytecode"
	"subsetjulia/internal/verrors"
)

func truthy(v Value) bool {
	switch v.Kind {
	case KBool:
		return v.AsBool()
	case KNothing, KMissing:
		return false
	}
	return true
}

// arith implements the dynamic arithmetic intrinsics: int family stays
// in int64 when both
// operands are integral, float family promotes otherwise, mirroring the
// lattice's int/float promotion rule.
func arith(op bytecode.OpCode, a, b Value) (Value, *verrors.VmError) {
	bothInt := a.IsInt() && b.IsInt()

	switch op {
	case bytecode.OpAdd:
		if bothInt {
			return Int(64, a.I+b.I), nil
		}
		return Float(64, a.AsFloat64()+b.AsFloat64()), nil
	case bytecode.OpSub:
		if bothInt {
			return Int(64, a.I-b.I), nil
		}
		return Float(64, a.AsFloat64()-b.AsFloat64()), nil
	case bytecode.OpMul:
		if bothInt {
			return Int(64, a.I*b.I), nil
		}
		return Float(64, a.AsFloat64()*b.AsFloat64()), nil
	case bytecode.OpAddFloat:
		return Float(64, a.AsFloat64()+b.AsFloat64()), nil
	case bytecode.OpSubFloat:
		return Float(64, a.AsFloat64()-b.AsFloat64()), nil
	case bytecode.OpMulFloat:
		return Float(64, a.AsFloat64()*b.AsFloat64()), nil
	case bytecode.OpDivFloat:
		return Float(64, a.AsFloat64()/b.AsFloat64()), nil
	case bytecode.OpRemFloat:
		return Float(64, math.Mod(a.AsFloat64(), b.AsFloat64())), nil
	case bytecode.OpDynamicMod:
		if bothInt {
			if b.I == 0 {
				return Value{}, verrors.NewDivisionByZero()
			}
			return Int(64, a.I%b.I), nil
		}
		return Float(64, math.Mod(a.AsFloat64(), b.AsFloat64())), nil
	case bytecode.OpDynamicIntDiv:
		if bothInt {
			if b.I == 0 {
				return Value{}, verrors.NewDivisionByZero()
			}
			return Int(64, a.I/b.I), nil
		}
		return Int(64, int64(math.Floor(a.AsFloat64()/b.AsFloat64()))), nil
	case bytecode.OpDynamicPow:
		if bothInt && b.I >= 0 {
			r := int64(1)
			base := a.I
			n := b.I
			for n > 0 {
				if n&1 == 1 {
					r *= base
				}
				base *= base
				n >>= 1
			}
			return Int(64, r), nil
		}
		return Float(64, math.Pow(a.AsFloat64(), b.AsFloat64())), nil
	}
	return Value{}, verrors.NewInternalError("unhandled arithmetic opcode")
}

func negate(v Value) Value {
	if v.IsFloat() {
		return Float(v.Width, -v.F)
	}
	return Int(v.Width, -v.I)
}

// newArrayValue picks the numeric fast path when every element is a
// uniform-width float or int, else
// falls back to a boxed Any array.
func newArrayValue(elems []Value) Value {
	if len(elems) == 0 {
		return Value{Kind: KArray, Array: &ArrayValue{Data: &ArrayData{Kind: ElemAny}, Shape: []int{0}}}
	}
	allFloat := true
	allInt := true
	for _, e := range elems {
		if !e.IsFloat() {
			allFloat = false
		}
		if !e.IsInt() {
			allInt = false
		}
	}
	data := &ArrayData{Kind: ElemAny, Any: elems}
	if allFloat {
		f64 := make([]float64, len(elems))
		for i, e := range elems {
			f64[i] = e.AsFloat64()
		}
		data = &ArrayData{Kind: ElemFloat64, F64: f64}
	} else if allInt {
		i64 := make([]int64, len(elems))
		for i, e := range elems {
			i64[i] = e.I
		}
		data = &ArrayData{Kind: ElemInt64, I64: i64}
	}
	return Value{Kind: KArray, Array: &ArrayValue{Data: data, Shape: []int{len(elems)}}}
}

func newRange(start, step, stop Value) Value {
	isFloat := start.IsFloat() || step.IsFloat() || stop.IsFloat()
	return Value{Kind: KRange, Range: &RangeValue{
		Start: start.AsFloat64(), Step: step.AsFloat64(), Stop: stop.AsFloat64(), IsFloat: isFloat,
	}}
}

func rangeLen(r *RangeValue) int64 {
	if r.Step == 0 {
		return 0
	}
	n := int64(math.Floor((r.Stop-r.Start)/r.Step)) + 1
	if n < 0 {
		n = 0
	}
	return n
}

func rangeAt(r *RangeValue, i int64) Value {
	v := r.Start + float64(i)*r.Step
	if r.IsFloat {
		return Float(64, v)
	}
	return Int(64, int64(v))
}

func indexGet(obj Value, idxs []Value) (Value, *verrors.VmError) {
	switch obj.Kind {
	case KArray:
		ints := make([]int, len(idxs))
		for i, v := range idxs {
			ints[i] = int(v.I)
		}
		lin := LinearIndex(obj.Array.Shape, ints)
		d := obj.Array.Data
		if lin < 0 || lin >= d.Len() {
			idx64 := make([]int64, len(ints))
			for i, v := range ints {
				idx64[i] = int64(v)
			}
			return Value{}, verrors.NewIndexOutOfBounds(idx64, obj.Array.Shape)
		}
		switch d.Kind {
		case ElemFloat64:
			return Float(64, d.F64[lin]), nil
		case ElemFloat32:
			return Float(32, float64(d.F32[lin])), nil
		case ElemInt64:
			return Int(64, d.I64[lin]), nil
		case ElemBool:
			return Bool(d.Bool[lin]), nil
		case ElemStr:
			return Str(d.Str[lin]), nil
		case ElemChar:
			return Char(d.Char[lin]), nil
		default:
			return d.Any[lin], nil
		}
	case KTuple:
		i := idxs[0].I - 1
		if i < 0 || int(i) >= len(obj.Tuple) {
			return Value{}, &verrors.VmError{Kind: verrors.TupleIndexOutOfBounds, Index: idxs[0].I, Length: int64(len(obj.Tuple))}
		}
		return obj.Tuple[i], nil
	case KDict:
		for i, k := range obj.Dict.Keys {
			if valuesEqual(k, idxs[0]) {
				return obj.Dict.Values[i], nil
			}
		}
		return Value{}, &verrors.VmError{Kind: verrors.DictKeyNotFound, Msg: displayValue(idxs[0])}
	case KRange:
		i := idxs[0].I
		n := rangeLen(obj.Range)
		if n == 0 {
			return Value{}, &verrors.VmError{Kind: verrors.EmptyRange}
		}
		if i < 1 || i > n {
			return Value{}, &verrors.VmError{Kind: verrors.RangeIndexOutOfBounds, Index: i, Length: n}
		}
		return rangeAt(obj.Range, i-1), nil
	case KStr:
		i := int(idxs[0].I) - 1
		runes := []rune(obj.Str)
		if i < 0 || i >= len(runes) {
			return Value{}, &verrors.VmError{Kind: verrors.StringIndexError, Index: idxs[0].I}
		}
		return Char(runes[i]), nil
	}
	return Value{}, verrors.TypeErrorExpected("IndexGet", "indexable collection", obj.TypeName())
}

func indexSet(obj Value, idxs []Value, val Value) *verrors.VmError {
	if obj.Kind != KArray {
		return verrors.TypeErrorExpected("IndexSet", "Array", obj.TypeName())
	}
	ints := make([]int, len(idxs))
	for i, v := range idxs {
		ints[i] = int(v.I)
	}
	lin := LinearIndex(obj.Array.Shape, ints)
	d := obj.Array.Data
	if lin < 0 || lin >= d.Len() {
		idx64 := make([]int64, len(ints))
		for i, v := range ints {
			idx64[i] = int64(v)
		}
		return verrors.NewIndexOutOfBounds(idx64, obj.Array.Shape)
	}
	switch d.Kind {
	case ElemFloat64:
		d.F64[lin] = val.AsFloat64()
	case ElemFloat32:
		d.F32[lin] = float32(val.AsFloat64())
	case ElemInt64:
		d.I64[lin] = val.I
	case ElemBool:
		d.Bool[lin] = truthy(val)
	case ElemStr:
		d.Str[lin] = val.Str
	case ElemChar:
		d.Char[lin] = rune(val.I)
	default:
		d.Any[lin] = val
	}
	return nil
}

func valuesEqual(a, b Value) bool {
	if a.Kind != b.Kind {
		if a.IsNumeric() && b.IsNumeric() {
			return a.AsFloat64() == b.AsFloat64()
		}
		return false
	}
	switch a.Kind {
	case KStr, KSymbol:
		return a.Str == b.Str
	default:
		if a.IsNumeric() {
			return a.AsFloat64() == b.AsFloat64()
		}
		return a.I == b.I
	}
}

func runtimeTypeNames(vals []Value) []string {
	names := make([]string, len(vals))
	for i, v := range vals {
		names[i] = v.TypeName()
	}
	return names
}
