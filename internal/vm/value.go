// Package vm implements the stack-based virtual machine: the
// fetch-dispatch execution loop, frames, the struct heap, the two-level
// dispatch cache, exception unwinding, and the HOF/broadcast state
// machine. Value is the tagged runtime value sum.
package vm

import "subsetjulia/internal/types"

// Kind tags which variant of the Value sum a Value currently
// holds.
type Kind int

const (
	KNothing Kind = iota
	KMissing
	KUndef
	KBool
	KChar
	KStr
	KInt8
	KInt16
	KInt32
	KInt64
	KInt128
	KUInt8
	KUInt16
	KUInt32
	KUInt64
	KUInt128
	KBigInt
	KBigFloat
	KFloat16
	KFloat32
	KFloat64
	KIO
	KSymbol
	KExpr
	KQuoteNode
	KLineNumberNode
	KGlobalRef
	KDataType
	KModule
	KFunction
	KClosure
	KComposedFunction
	KArray
	KMemory
	KTuple
	KNamedTuple
	KDict
	KSet
	KRange
	KPairs
	KRegex
	KRegexMatch
	KEnum
	KStruct
	KStructRef
	KRng
	KGenerator
	KSliceAll
)

// Value is the runtime tagged-sum value. Only the fields
// relevant to Kind are populated. Ownership: plain scalar fields are
// value-copied on assignment; Array/Memory/IO
// alias through the pointer-held *ArrayData/*IOValue cells.
type Value struct {
	Kind Kind

	I      int64   // all signed/unsigned/char fixed-width ints, Bool (0/1)
	U      uint64  // unsigned ints beyond int64 range (U64/U128 high half unused here)
	F      float64 // Float16/32/64 (stored widened; width tracked for display/AOT only)
	Str    string  // Str, Symbol name, GlobalRef name
	Width  int     // bit width for ints/floats (8/16/32/64/128)

	Array    *ArrayValue
	Memory   *MemoryValue
	Tuple    []Value
	NamedTup *NamedTupleValue
	Dict     *DictValue
	Set      *SetValue
	Range    *RangeValue
	Pairs    *PairsValue
	Regex    *RegexValue
	RegexM   *RegexMatchValue
	Enum     *EnumValue
	IO       *IOValue
	DataType *DataTypeValue
	Module   *ModuleValue
	Function *FunctionValue
	Closure  *ClosureValue
	Composed *ComposedValue
	ExprV    *ExprValue
	QuoteN   *QuoteNodeValue
	LineN    *LineNumberNodeValue
	GlobalR  *GlobalRefValue
	Gen      *GeneratorValue

	StructV    *StructValue // stack-resident struct value, by-value with no alias
	StructRef  int          // index into the VM's struct heap (by-reference)
}

// --- constructors -----------------------------------------------------

func Nothing() Value  { return Value{Kind: KNothing} }
func Missing() Value  { return Value{Kind: KMissing} }
func Undef() Value    { return Value{Kind: KUndef} }
func SliceAll() Value { return Value{Kind: KSliceAll} }

func Bool(b bool) Value {
	i := int64(0)
	if b {
		i = 1
	}
	return Value{Kind: KBool, I: i}
}

func (v Value) AsBool() bool { return v.I != 0 }

func Int(width int, val int64) Value {
	k := KInt64
	switch width {
	case 8:
		k = KInt8
	case 16:
		k = KInt16
	case 32:
		k = KInt32
	case 128:
		k = KInt128
	}
	return Value{Kind: k, I: val, Width: width}
}

func UInt(width int, val uint64) Value {
	k := KUInt64
	switch width {
	case 8:
		k = KUInt8
	case 16:
		k = KUInt16
	case 32:
		k = KUInt32
	case 128:
		k = KUInt128
	}
	return Value{Kind: k, I: int64(val), U: val, Width: width}
}

func Float(width int, val float64) Value {
	k := KFloat64
	switch width {
	case 16:
		k = KFloat16
	case 32:
		k = KFloat32
	}
	return Value{Kind: k, F: val, Width: width}
}

func Char(r rune) Value { return Value{Kind: KChar, I: int64(r)} }
func Str(s string) Value { return Value{Kind: KStr, Str: s} }
func Symbol(s string) Value { return Value{Kind: KSymbol, Str: s} }

func (v Value) IsInt() bool {
	switch v.Kind {
	case KInt8, KInt16, KInt32, KInt64, KInt128, KUInt8, KUInt16, KUInt32, KUInt64, KUInt128, KBigInt:
		return true
	}
	return false
}

func (v Value) IsFloat() bool {
	switch v.Kind {
	case KFloat16, KFloat32, KFloat64, KBigFloat:
		return true
	}
	return false
}

func (v Value) IsNumeric() bool { return v.IsInt() || v.IsFloat() }

// AsFloat64 widens any numeric value to float64 for arithmetic that needs
// a common representation (e.g. the dynamic '/' operator).
func (v Value) AsFloat64() float64 {
	if v.IsFloat() {
		return v.F
	}
	if v.Kind == KUInt64 || v.Kind == KUInt128 {
		return float64(v.U)
	}
	return float64(v.I)
}

// TypeName returns the runtime type name used by dispatch scoring and
// struct-table lookups.
func (v Value) TypeName() string {
	switch v.Kind {
	case KNothing:
		return "Nothing"
	case KMissing:
		return "Missing"
	case KUndef:
		return "Undef"
	case KBool:
		return "Bool"
	case KChar:
		return "Char"
	case KStr:
		return "String"
	case KInt8:
		return "Int8"
	case KInt16:
		return "Int16"
	case KInt32:
		return "Int32"
	case KInt64:
		return "Int64"
	case KInt128:
		return "Int128"
	case KUInt8:
		return "UInt8"
	case KUInt16:
		return "UInt16"
	case KUInt32:
		return "UInt32"
	case KUInt64:
		return "UInt64"
	case KUInt128:
		return "UInt128"
	case KBigInt:
		return "BigInt"
	case KBigFloat:
		return "BigFloat"
	case KFloat16:
		return "Float16"
	case KFloat32:
		return "Float32"
	case KFloat64:
		return "Float64"
	case KIO:
		return "IO"
	case KSymbol:
		return "Symbol"
	case KExpr:
		return "Expr"
	case KQuoteNode:
		return "QuoteNode"
	case KLineNumberNode:
		return "LineNumberNode"
	case KGlobalRef:
		return "GlobalRef"
	case KDataType:
		return "DataType"
	case KModule:
		return "Module"
	case KFunction:
		return "Function"
	case KClosure:
		return "Function"
	case KComposedFunction:
		return "ComposedFunction"
	case KArray:
		return "Array"
	case KMemory:
		return "Memory"
	case KTuple:
		return "Tuple"
	case KNamedTuple:
		return "NamedTuple"
	case KDict:
		return "Dict"
	case KSet:
		return "Set"
	case KRange:
		return "Range"
	case KPairs:
		return "Pairs"
	case KRegex:
		return "Regex"
	case KRegexMatch:
		return "RegexMatch"
	case KEnum:
		if v.Enum != nil {
			return v.Enum.TypeName
		}
		return "Enum"
	case KStruct:
		if v.StructV != nil {
			return v.StructV.TypeName
		}
		return "Struct"
	case KStructRef:
		return "StructRef"
	case KRng:
		return "Rng"
	case KGenerator:
		return "Generator"
	case KSliceAll:
		return "Colon"
	}
	return "Any"
}

// --- composite payload types -------------------------------------------

// ArrayData is the discriminated union of typed vectors backing an Array.
// Exactly one of the typed slices is populated,
// selected by Kind; Any carries boxed Values for Kind==ElemAny.
type ArrayElemKind int

const (
	ElemAny ArrayElemKind = iota
	ElemFloat64
	ElemFloat32
	ElemInt8
	ElemInt16
	ElemInt32
	ElemInt64
	ElemInt128
	ElemUInt8
	ElemUInt16
	ElemUInt32
	ElemUInt64
	ElemUInt128
	ElemBool
	ElemStr
	ElemChar
	ElemStruct
	ElemComplex64
	ElemComplex128
)

// ArrayData owns the flat, typed, column-major backing storage. It is
// reference-counted via the wrapping *ArrayValue so multiple Values can
// alias the same buffer.
type ArrayData struct {
	Kind    ArrayElemKind
	F64     []float64
	F32     []float32
	I64     []int64
	Bool    []bool
	Str     []string
	Char    []rune
	Any     []Value
}

func (d *ArrayData) Len() int {
	switch d.Kind {
	case ElemFloat64:
		return len(d.F64)
	case ElemFloat32:
		return len(d.F32)
	case ElemBool:
		return len(d.Bool)
	case ElemStr:
		return len(d.Str)
	case ElemChar:
		return len(d.Char)
	default:
		if d.I64 != nil {
			return len(d.I64)
		}
		return len(d.Any)
	}
}

// ArrayValue pairs ArrayData with a shape vector and an optional
// element-type override. Column-major linearization is the
// invariant for ≥2-dimensional access.
type ArrayValue struct {
	Data    *ArrayData
	Shape   []int
	ElemType *types.JuliaType
}

// LinearIndex implements the column-major invariant: for shape [r,c] and
// 1-based (i,j), linear = (i-1) + (j-1)*r. Generalized to N dims by
// accumulating the stride as the product of preceding dimension sizes.
func LinearIndex(shape []int, indices []int) int {
	idx := 0
	stride := 1
	for d := 0; d < len(indices); d++ {
		idx += (indices[d] - 1) * stride
		if d < len(shape) {
			stride *= shape[d]
		}
	}
	return idx
}

type MemoryValue struct {
	Data *ArrayData
}

type NamedTupleValue struct {
	Names  []string
	Values []Value
}

func (n *NamedTupleValue) Get(name string) (Value, bool) {
	for i, nm := range n.Names {
		if nm == name {
			return n.Values[i], true
		}
	}
	return Value{}, false
}

type DictValue struct {
	Keys   []Value
	Values []Value
}

type SetValue struct {
	Elems []Value
}

type RangeValue struct {
	Start, Step, Stop float64
	IsFloat           bool
}

type PairsValue struct {
	Keys   []Value
	Values []Value
}

type RegexValue struct{ Pattern string }
type RegexMatchValue struct {
	Match  string
	Groups []string
}

type EnumValue struct {
	TypeName string
	Value    int64
}

type StructValue struct {
	TypeName string
	Fields   []Value
	Mutable  bool
}

type IOKind int

const (
	IOStdout IOKind = iota
	IOStderr
	IOStdin
	IODevnull
	IOBuffer
	IOFile
)

// IOValue owns reference-counted interior file/buffer state: closing is
// explicit rather than tied to garbage collection.
type IOValue struct {
	Kind   IOKind
	Path   string
	Buffer *[]byte
	Closed *bool
}

type DataTypeValue struct {
	Name string
}

type ModuleValue struct {
	Name    string
	Exports []string
	Publics []string
}

type FunctionValue struct {
	Name string
}

type ClosureValue struct {
	Name     string
	Captured map[string]Value
}

type ComposedValue struct {
	Outer, Inner Value
}

type ExprValue struct {
	Head string
	Args []Value
}

type QuoteNodeValue struct{ Value Value }
type LineNumberNodeValue struct {
	Line int
	File string
}
type GlobalRefValue struct {
	Module string
	Name   string
}

type GeneratorValue struct {
	Source Value
	Body   string
}
