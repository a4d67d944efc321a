// Package bytecode defines the instruction set compiled from core IR and
// the per-function code ranges a CompiledProgram is made of. Instructions
// are a tagged enum (OpCode) — but because several shapes here carry a
// variable list of dispatch candidates rather than a couple of byte
// operands, each Instruction is a small struct instead of a packed byte
// stream; a flat []byte encoding doesn't have anywhere to put a
// []DispatchCandidate, and these call sites need one.
package bytecode

// OpCode tags every instruction shape the compiler can emit.
type OpCode int

const (
	// Stack pushes
	OpPushInt OpCode = iota
	OpPushFloat
	OpPushBool
	OpPushString
	OpPushChar
	OpPushNothing
	OpPushMissing
	OpPushModule
	OpPushDataType
	OpPushFunction
	OpPushStdout
	OpPushStderr
	OpPushStdin
	OpPushDevnull

	// Variable access
	OpLoadSlot
	OpStoreSlot
	OpLoadCaptured
	OpLoad  // legacy name-indexed load (NamedTuple / captured paths)
	OpStore // legacy name-indexed store

	// Arithmetic intrinsics — Int family
	OpAdd
	OpSub
	OpMul
	OpSdiv
	OpSrem
	OpNeg
	// Arithmetic intrinsics — Float family
	OpAddFloat
	OpSubFloat
	OpMulFloat
	OpDivFloat
	OpRemFloat
	OpNegFloat
	// Dynamic variants (operand type unknown until runtime)
	OpDynamicPow
	OpDynamicMod
	OpDynamicIntDiv
	OpDynamicNeg
	OpDynamicToF32
	OpDynamicToF16
	OpDynamicToBool

	// Control flow
	OpJump
	OpJumpIfZero
	OpJumpIfTrue
	OpJumpIfFalse

	// Calls
	OpCall               // Call(idx, argc)
	OpCallWithKwargs      // CallWithKwargs(idx, argc, kwnames)
	OpCallWithSplat       // CallWithSplat(idx, argc)
	OpCallIntrinsic       // CallIntrinsic(intrinsic)
	OpCallBuiltin         // CallBuiltin(name, argc)
	OpCallDynamic         // CallDynamic(fallback, check_pos, candidates)
	OpCallDynamicBinary   // CallDynamicBinary(fallback, check_pos, candidates)
	OpCallDynamicBinaryBoth
	OpCallDynamicBinaryNoFallback
	OpCallDynamicOrBuiltin
	OpCallTypedDispatch // CallTypedDispatch(name, sig, fallback, candidates)
	OpCallFunctionVariable
	OpCallGlobalRef
	OpCallSpecialize
	OpIterateDynamic

	// Collection construction
	OpNewArray
	OpNewTuple
	OpNewDict
	OpNewSet
	OpNewStruct // NewStruct(type_id, argc)
	OpNewRange

	// Indexing
	OpIndexGet
	OpIndexSet
	OpIndexSlice // IndexSlice(n)
	OpGetField   // GetField(i)
	OpSetField   // SetField(i)
	OpGetFieldByName
	OpGetExprField
	OpGetLineNumberNodeField
	OpGetQuoteNodeValue
	OpGetGlobalRefField
	OpNamedTupleGetField

	// Iteration
	OpIterNext
	OpIterDone

	// Exception handling
	OpPushHandler // PushHandler(catch_ip, finally_ip)
	OpPopHandler
	OpThrowError
	OpThrowValue
	OpRethrow
	OpRethrowCurrent
	OpRethrowOther
	OpPushErrorCode
	OpPushErrorMessage
	OpPushExceptionValue
	OpClearError

	// Testing
	OpTest
	OpTestSetBegin
	OpTestSetEnd
	OpTestThrowsBegin
	OpTestThrowsEnd

	// Reference protection
	OpMakeRef
	OpUnwrapRef

	// Metaprogramming
	OpPushSymbol
	OpCreateExpr // CreateExpr(head, arg_count)
	OpCreateQuoteNode
	OpPushLineNumberNode
	OpPushRegex
	OpPushEnum
	OpDefineFunction
	OpCreateClosure

	// Stack bookkeeping
	OpPop
	OpDup
	OpReturn
)

// UnpatchedJump is the sentinel written into a jump target before the
// compiler's backpatching pass fills it in.
const UnpatchedJump = int(^uint(0) >> 1)

// NoFallback marks a CallDynamic* site with no statically-known fallback
// function — distinct from func_index 0, which is a real function.
const NoFallback = -1

// DispatchCandidate is one (function_index, expected_type) pair emitted at
// a call site for runtime scoring.
type DispatchCandidate struct {
	FuncIndex    int
	ExpectedType string
}

// TypedDispatchCandidate additionally carries the candidate's declared
// arity, as CallTypedDispatch needs it to devirtualize without re-deriving
// arity from the function table.
type TypedDispatchCandidate struct {
	FuncIndex int
	Argc      int
}

// Instruction is one bytecode op plus whichever operand fields its shape
// uses; unused fields stay zero. The instruction stream plus debug info
// form the unit of compilation the method-table scorer and the VM fetch
// loop both walk.
type Instruction struct {
	Op OpCode

	// Generic integer operands, meaning depends on Op:
	//   OpPushInt: IntVal         OpLoadSlot/OpStoreSlot: A=slot
	//   OpJump*: A=target        OpCall: A=func_index, B=argc
	//   OpNewStruct: A=type_id, B=argc     OpGetField/OpSetField: A=field_index
	//   OpIndexSlice: A=n        OpCreateExpr: A=arg_count
	//   OpPushHandler: A=catch_ip, B=finally_ip
	A, B int

	IntVal    int64
	FloatVal  float64
	BoolVal   bool
	StrVal    string // strings, names, symbols, intrinsic/builtin names, field names
	CharVal   rune

	Kwnames []string // OpCallWithKwargs

	Fallback   int                  // CallDynamic*/CallTypedDispatch
	CheckPos   int                  // CallDynamic*: which argument position determines dispatch
	Candidates []DispatchCandidate  // CallDynamic*
	TypedCands []TypedDispatchCandidate // CallTypedDispatch

	Head string // CreateExpr head
}

// DebugInfo is a per-instruction source-location record, so error
// reporting and the optional diagnostics stream can point back into the
// original source text.
type DebugInfo struct {
	Line     int
	Column   int
	File     string
	Function string
}
