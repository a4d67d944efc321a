// Package verrors defines the two error families the core raises:
// VmError, the closed sum of runtime faults the stack VM can produce,
// and CompileError, for failures during lowering/bytecode compilation that
// never reach the VM. Both carry an optional source location in the same
// shape, pairing every error with "where in the source did this happen".
package verrors

import "fmt"

// SourceLocation pins an error to a place in the original source text.
// The lowerer is the only component that actually has source spans; the
// core treats this as opaque passthrough data.
type SourceLocation struct {
	File   string
	Line   int
	Column int
}

func (l SourceLocation) IsZero() bool { return l.File == "" && l.Line == 0 && l.Column == 0 }

// Kind enumerates the closed VmError sum.
type Kind int

const (
	ErrorException Kind = iota
	AssertionFailed
	Cancelled
	DivisionByZero
	StackOverflow
	StackUnderflow
	InvalidInstruction
	IndexOutOfBounds
	DimensionMismatch
	MatMulDimensionMismatch
	BroadcastDimensionMismatch
	EmptyArrayPop
	RangeIndexOutOfBounds
	EmptyRange
	TypeError
	InexactError
	DomainError
	OverflowError
	UnknownBroadcastOp
	FieldIndexOutOfBounds
	ImmutableFieldAssign
	NotImplemented
	InternalError
	TupleIndexOutOfBounds
	EmptyTuple
	TupleDestructuringMismatch
	NamedTupleFieldNotFound
	NamedTupleLengthMismatch
	DictKeyNotFound
	InvalidDictKey
	UndefVarError
	UndefKeywordError
	MethodError
	StringIndexError
)

func (k Kind) String() string {
	switch k {
	case ErrorException:
		return "ErrorException"
	case AssertionFailed:
		return "AssertionFailed"
	case Cancelled:
		return "Cancelled"
	case DivisionByZero:
		return "DivisionByZero"
	case StackOverflow:
		return "StackOverflow"
	case StackUnderflow:
		return "StackUnderflow"
	case InvalidInstruction:
		return "InvalidInstruction"
	case IndexOutOfBounds:
		return "IndexOutOfBounds"
	case DimensionMismatch:
		return "DimensionMismatch"
	case MatMulDimensionMismatch:
		return "MatMulDimensionMismatch"
	case BroadcastDimensionMismatch:
		return "BroadcastDimensionMismatch"
	case EmptyArrayPop:
		return "EmptyArrayPop"
	case RangeIndexOutOfBounds:
		return "RangeIndexOutOfBounds"
	case EmptyRange:
		return "EmptyRange"
	case TypeError:
		return "TypeError"
	case InexactError:
		return "InexactError"
	case DomainError:
		return "DomainError"
	case OverflowError:
		return "OverflowError"
	case UnknownBroadcastOp:
		return "UnknownBroadcastOp"
	case FieldIndexOutOfBounds:
		return "FieldIndexOutOfBounds"
	case ImmutableFieldAssign:
		return "ImmutableFieldAssign"
	case NotImplemented:
		return "NotImplemented"
	case InternalError:
		return "InternalError"
	case TupleIndexOutOfBounds:
		return "TupleIndexOutOfBounds"
	case EmptyTuple:
		return "EmptyTuple"
	case TupleDestructuringMismatch:
		return "TupleDestructuringMismatch"
	case NamedTupleFieldNotFound:
		return "NamedTupleFieldNotFound"
	case NamedTupleLengthMismatch:
		return "NamedTupleLengthMismatch"
	case DictKeyNotFound:
		return "DictKeyNotFound"
	case InvalidDictKey:
		return "InvalidDictKey"
	case UndefVarError:
		return "UndefVarError"
	case UndefKeywordError:
		return "UndefKeywordError"
	case MethodError:
		return "MethodError"
	case StringIndexError:
		return "StringIndexError"
	}
	return "Unknown"
}

// VmError is the closed error sum a running VM can raise.
// Internal-invariant kinds (StackOverflow/StackUnderflow/InternalError) are
// not meant to be user-catchable by design intent, but they still unwind
// through handlers like every other kind — the VM does not special-case
// them in the raise path.
type VmError struct {
	Kind Kind

	Msg string // ErrorException, AssertionFailed, TypeError, InexactError, DomainError,
	// OverflowError, UnknownBroadcastOp, ImmutableFieldAssign, NotImplemented,
	// InternalError, NamedTupleFieldNotFound, DictKeyNotFound, InvalidDictKey,
	// UndefVarError, UndefKeywordError, MethodError

	Indices []int64 // IndexOutOfBounds
	Shape   []int   // IndexOutOfBounds, MatMulDimensionMismatch (A), BroadcastDimensionMismatch (A)
	BShape  []int   // MatMulDimensionMismatch (B), BroadcastDimensionMismatch (B)

	Expected int // DimensionMismatch, TupleDestructuringMismatch
	Got      int // DimensionMismatch, TupleDestructuringMismatch

	Index  int64 // RangeIndexOutOfBounds, TupleIndexOutOfBounds, StringIndexError
	Length int64 // RangeIndexOutOfBounds, TupleIndexOutOfBounds

	FieldIdx   int // FieldIndexOutOfBounds
	FieldCount int // FieldIndexOutOfBounds

	NamesCount  int // NamedTupleLengthMismatch
	ValuesCount int // NamedTupleLengthMismatch

	PrevValid int64 // StringIndexError
	NextValid int64 // StringIndexError
}

func (e *VmError) Error() string {
	switch e.Kind {
	case ErrorException:
		return "ErrorException: " + e.Msg
	case AssertionFailed:
		return "AssertionError: " + e.Msg
	case Cancelled:
		return "Execution cancelled"
	case DivisionByZero:
		return "Division by zero"
	case StackOverflow:
		return "Stack overflow"
	case StackUnderflow:
		return "Stack underflow"
	case InvalidInstruction:
		return "Invalid instruction"
	case IndexOutOfBounds:
		return fmt.Sprintf("Index %v out of bounds for array with shape %v", e.Indices, e.Shape)
	case DimensionMismatch:
		return fmt.Sprintf("Dimension mismatch: expected %d dimensions, got %d", e.Expected, e.Got)
	case MatMulDimensionMismatch:
		return fmt.Sprintf("Matrix multiplication dimension mismatch: %v * %v", e.Shape, e.BShape)
	case BroadcastDimensionMismatch:
		return fmt.Sprintf("Broadcast dimension mismatch: %v .op %v", e.Shape, e.BShape)
	case EmptyArrayPop:
		return "Cannot pop from empty array"
	case RangeIndexOutOfBounds:
		return fmt.Sprintf("BoundsError: attempt to access %d element range at index [%d]", e.Length, e.Index)
	case EmptyRange:
		return "Cannot access element of empty range"
	case TypeError:
		return "TypeError: " + e.Msg
	case InexactError:
		return "InexactError: " + e.Msg
	case DomainError:
		return "DomainError: " + e.Msg
	case OverflowError:
		return "OverflowError: " + e.Msg
	case UnknownBroadcastOp:
		return "Unknown broadcast operator: " + e.Msg
	case FieldIndexOutOfBounds:
		return fmt.Sprintf("Field index %d out of bounds (%d fields)", e.FieldIdx, e.FieldCount)
	case ImmutableFieldAssign:
		return "Cannot assign field of immutable struct: " + e.Msg
	case NotImplemented:
		return "Not implemented: " + e.Msg
	case InternalError:
		return "Internal error: " + e.Msg
	case TupleIndexOutOfBounds:
		return fmt.Sprintf("Tuple index %d out of bounds (length %d)", e.Index, e.Length)
	case EmptyTuple:
		return "Cannot access element of empty tuple"
	case TupleDestructuringMismatch:
		return fmt.Sprintf("Tuple destructuring mismatch: expected %d, got %d", e.Expected, e.Got)
	case NamedTupleFieldNotFound:
		return "NamedTuple has no field " + e.Msg
	case NamedTupleLengthMismatch:
		return fmt.Sprintf("NamedTuple length mismatch: %d names, %d values", e.NamesCount, e.ValuesCount)
	case DictKeyNotFound:
		return "Key not found: " + e.Msg
	case InvalidDictKey:
		return "Invalid dict key: " + e.Msg
	case UndefVarError:
		return "UndefVarError: " + e.Msg + " not defined"
	case UndefKeywordError:
		return "UndefKeywordError: keyword argument " + e.Msg + " not assigned"
	case MethodError:
		return "MethodError: " + e.Msg
	case StringIndexError:
		return fmt.Sprintf("StringIndexError: invalid index %d (valid: %d, %d)", e.Index, e.PrevValid, e.NextValid)
	}
	return "unknown VM error"
}

func NewErrorException(msg string) *VmError        { return &VmError{Kind: ErrorException, Msg: msg} }
func NewAssertionFailed(msg string) *VmError        { return &VmError{Kind: AssertionFailed, Msg: msg} }
func NewCancelled() *VmError                        { return &VmError{Kind: Cancelled} }
func NewDivisionByZero() *VmError                   { return &VmError{Kind: DivisionByZero} }
func NewTypeError(msg string) *VmError              { return &VmError{Kind: TypeError, Msg: msg} }
func NewMethodError(msg string) *VmError            { return &VmError{Kind: MethodError, Msg: msg} }
func NewUndefVarError(name string) *VmError         { return &VmError{Kind: UndefVarError, Msg: name} }
func NewUndefKeywordError(name string) *VmError     { return &VmError{Kind: UndefKeywordError, Msg: name} }
func NewInternalError(msg string) *VmError          { return &VmError{Kind: InternalError, Msg: msg} }
func NewImmutableFieldAssign(field string) *VmError { return &VmError{Kind: ImmutableFieldAssign, Msg: field} }

func NewIndexOutOfBounds(indices []int64, shape []int) *VmError {
	return &VmError{Kind: IndexOutOfBounds, Indices: indices, Shape: shape}
}

func NewFieldIndexOutOfBounds(idx, count int) *VmError {
	return &VmError{Kind: FieldIndexOutOfBounds, FieldIdx: idx, FieldCount: count}
}

// TypeErrorExpected formats a "{instruction}: expected {expected}, got
// {value}" type mismatch.
func TypeErrorExpected(instruction, expected string, got interface{}) *VmError {
	return NewTypeError(fmt.Sprintf("%s: expected %s, got %v", instruction, expected, got))
}

func NoMethodMatchingOp(leftType, rightType string) *VmError {
	return NewMethodError(fmt.Sprintf("no method matching operator(%s, %s)", leftType, rightType))
}

// SpannedVmError pairs a VmError with an optional source span for
// reporting.
type SpannedVmError struct {
	Err      *VmError
	Location SourceLocation
}

func (s *SpannedVmError) Error() string {
	if s.Location.IsZero() {
		return s.Err.Error()
	}
	return fmt.Sprintf("%s at %s:%d:%d", s.Err.Error(), s.Location.File, s.Location.Line, s.Location.Column)
}

func (s *SpannedVmError) Unwrap() error { return s.Err }

func Spanned(err *VmError, loc SourceLocation) *SpannedVmError {
	return &SpannedVmError{Err: err, Location: loc}
}

// CompileError is raised by the lowerer/bytecode compiler for unsupported
// syntax, unresolved dispatch, or other failures that must never reach the
// VM: these terminate compilation without producing a compiled program.
type CompileError struct {
	Msg      string
	Location SourceLocation
}

func (e *CompileError) Error() string {
	if e.Location.IsZero() {
		return "CompileError: " + e.Msg
	}
	return fmt.Sprintf("CompileError: %s at %s:%d:%d", e.Msg, e.Location.File, e.Location.Line, e.Location.Column)
}

func NewCompileError(msg string) *CompileError { return &CompileError{Msg: msg} }
