package vm

import (
	"testing"

	"subsetjulia/internal/bytecode"
)

func chunkWithEntry(code ...bytecode.Instruction) *bytecode.Chunk {
	c := bytecode.NewChunk()
	for _, in := range code {
		c.Emit(in, bytecode.DebugInfo{})
	}
	c.EntryStart = 0
	c.EntryEnd = len(code)
	return c
}

func runEntry(t *testing.T, c *bytecode.Chunk) Value {
	t.Helper()
	m := New(c, nil)
	v, err := m.Run()
	if err != nil {
		t.Fatalf("unexpected VM error: %v", err)
	}
	return v
}

func TestArithmeticIntFastPath(t *testing.T) {
	c := chunkWithEntry(
		bytecode.Instruction{Op: bytecode.OpPushInt, IntVal: 2},
		bytecode.Instruction{Op: bytecode.OpPushInt, IntVal: 3},
		bytecode.Instruction{Op: bytecode.OpAdd},
		bytecode.Instruction{Op: bytecode.OpReturn},
	)
	v := runEntry(t, c)
	if v.Kind != KInt64 || v.I != 5 {
		t.Fatalf("expected Int64(5), got %+v", v)
	}
}

func TestArithmeticFloatPromotion(t *testing.T) {
	c := chunkWithEntry(
		bytecode.Instruction{Op: bytecode.OpPushInt, IntVal: 2},
		bytecode.Instruction{Op: bytecode.OpPushFloat, FloatVal: 0.5},
		bytecode.Instruction{Op: bytecode.OpAdd},
		bytecode.Instruction{Op: bytecode.OpReturn},
	)
	v := runEntry(t, c)
	if v.Kind != KFloat64 || v.F != 2.5 {
		t.Fatalf("expected Float64(2.5), got %+v", v)
	}
}

func TestDivisionByZeroRaises(t *testing.T) {
	c := chunkWithEntry(
		bytecode.Instruction{Op: bytecode.OpPushInt, IntVal: 1},
		bytecode.Instruction{Op: bytecode.OpPushInt, IntVal: 0},
		bytecode.Instruction{Op: bytecode.OpDynamicIntDiv},
		bytecode.Instruction{Op: bytecode.OpReturn},
	)
	m := New(c, nil)
	_, err := m.Run()
	if err == nil {
		t.Fatal("expected division-by-zero error")
	}
}

func TestCallFunctionByIndex(t *testing.T) {
	c := bytecode.NewChunk()
	// double(x) = x + x
	c.Emit(bytecode.Instruction{Op: bytecode.OpLoadSlot, A: 0}, bytecode.DebugInfo{})
	c.Emit(bytecode.Instruction{Op: bytecode.OpLoadSlot, A: 0}, bytecode.DebugInfo{})
	c.Emit(bytecode.Instruction{Op: bytecode.OpAdd}, bytecode.DebugInfo{})
	c.Emit(bytecode.Instruction{Op: bytecode.OpReturn}, bytecode.DebugInfo{})
	c.Functions = append(c.Functions, bytecode.FunctionInfo{
		Name: "double", CodeStart: 0, CodeEnd: 4, SlotCount: 1, ParamCount: 1,
	})

	entryStart := c.Len()
	c.Emit(bytecode.Instruction{Op: bytecode.OpPushInt, IntVal: 21}, bytecode.DebugInfo{})
	c.Emit(bytecode.Instruction{Op: bytecode.OpCall, A: 0, B: 1}, bytecode.DebugInfo{})
	c.Emit(bytecode.Instruction{Op: bytecode.OpReturn}, bytecode.DebugInfo{})
	c.EntryStart = entryStart
	c.EntryEnd = c.Len()

	v := runEntry(t, c)
	if v.Kind != KInt64 || v.I != 42 {
		t.Fatalf("expected Int64(42), got %+v", v)
	}
}

func TestTryCatchRecoversFromThrow(t *testing.T) {
	c := bytecode.NewChunk()
	// try { throw(ErrorException) } catch; 99 end
	c.Emit(bytecode.Instruction{Op: bytecode.OpPushHandler, A: 3, B: bytecode.UnpatchedJump}, bytecode.DebugInfo{})
	c.Emit(bytecode.Instruction{Op: bytecode.OpPushString, StrVal: "boom"}, bytecode.DebugInfo{})
	c.Emit(bytecode.Instruction{Op: bytecode.OpThrowError}, bytecode.DebugInfo{})
	// catch lands here (ip 3)
	c.Emit(bytecode.Instruction{Op: bytecode.OpPushInt, IntVal: 99}, bytecode.DebugInfo{})
	c.Emit(bytecode.Instruction{Op: bytecode.OpReturn}, bytecode.DebugInfo{})
	c.EntryStart = 0
	c.EntryEnd = c.Len()

	v := runEntry(t, c)
	if v.Kind != KInt64 || v.I != 99 {
		t.Fatalf("expected the catch branch's Int64(99), got %+v", v)
	}
}

func TestDispatchCacheHitAvoidsRescoring(t *testing.T) {
	cache := NewDispatchCache()
	cache.Store(7, "Int64", 3)
	if idx, ok := cache.Lookup(7, "Int64"); !ok || idx != 3 {
		t.Fatalf("expected cache hit with func_index 3, got %d, %v", idx, ok)
	}
	if _, ok := cache.Lookup(7, "Float64"); ok {
		t.Fatal("did not expect a hit for an unrecorded runtime type")
	}
}

func TestResolveDynamicCallScoresAndCaches(t *testing.T) {
	c := bytecode.NewChunk()
	m := New(c, nil)
	instr := bytecode.Instruction{
		Op:       bytecode.OpCallDynamic,
		CheckPos: 0,
		Fallback: 0,
		Candidates: []bytecode.DispatchCandidate{
			{FuncIndex: 5, ExpectedType: "Int64"},
		},
	}
	args := []Value{Int(64, 1)}
	fi, err := m.resolveDynamicCall(10, instr, args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fi != 5 {
		t.Fatalf("expected func_index 5, got %d", fi)
	}
	if m.Cache.ScoringCalls() != 1 {
		t.Fatalf("expected exactly one scoring pass, got %d", m.Cache.ScoringCalls())
	}
	if _, err := m.resolveDynamicCall(10, instr, args); err != nil {
		t.Fatalf("unexpected error on cached lookup: %v", err)
	}
	if m.Cache.ScoringCalls() != 1 {
		t.Fatalf("expected the second call to hit cache without rescoring, got %d scoring calls", m.Cache.ScoringCalls())
	}
}

func TestResolveDynamicCallHonorsFuncIndexZeroAsFallback(t *testing.T) {
	c := bytecode.NewChunk()
	m := New(c, nil)
	instr := bytecode.Instruction{
		Op:       bytecode.OpCallDynamic,
		CheckPos: 0,
		Fallback: 0, // a real function at index 0, not "no fallback"
	}
	fi, err := m.resolveDynamicCall(20, instr, []Value{Str("unmatched")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fi != 0 {
		t.Fatalf("expected func_index 0 to be honored as a real fallback, got %d", fi)
	}
}

func TestResolveDynamicCallReturnsNoMatchWithoutFallback(t *testing.T) {
	c := bytecode.NewChunk()
	m := New(c, nil)
	instr := bytecode.Instruction{
		Op:       bytecode.OpCallDynamic,
		CheckPos: 0,
		Fallback: bytecode.NoFallback,
	}
	fi, err := m.resolveDynamicCall(21, instr, []Value{Str("unmatched")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fi != NoMatch {
		t.Fatalf("expected NoMatch with no candidates and no fallback, got %d", fi)
	}
}

func TestDisplayValueFormatsFloatsWithDecimalPoint(t *testing.T) {
	if got := displayValue(Float(64, 1.0)); got != "1.0" {
		t.Fatalf("expected \"1.0\", got %q", got)
	}
	if got := displayValue(Int(64, 7)); got != "7" {
		t.Fatalf("expected \"7\", got %q", got)
	}
}
