package bytecode

import (
	"testing"

	"subsetjulia/internal/types"
)

func TestChunkEmitAndPatch(t *testing.T) {
	c := NewChunk()
	jump := c.Emit(Instruction{Op: OpJump, A: UnpatchedJump}, DebugInfo{Line: 1})
	c.Emit(Instruction{Op: OpPushInt, IntVal: 1}, DebugInfo{Line: 2})
	target := c.Len()
	c.Patch(jump, target)

	if c.Code[jump].A != target {
		t.Fatalf("expected patched jump target %d, got %d", target, c.Code[jump].A)
	}
	if c.Len() != 2 {
		t.Fatalf("expected chunk length 2, got %d", c.Len())
	}
	if c.DebugAt(1).Line != 2 {
		t.Fatalf("expected debug line 2 at ip 1, got %d", c.DebugAt(1).Line)
	}
	if got := c.DebugAt(99); got != (DebugInfo{}) {
		t.Fatalf("expected zero DebugInfo for out-of-range ip, got %+v", got)
	}
}

func TestChunkFunctionByIndex(t *testing.T) {
	c := NewChunk()
	c.Functions = append(c.Functions, FunctionInfo{Name: "f", CodeStart: 0, CodeEnd: 3, SlotCount: 1, ParamCount: 1})

	fi, ok := c.FunctionByIndex(0)
	if !ok || fi.Name != "f" {
		t.Fatalf("expected function 0 named f, got %+v, %v", fi, ok)
	}
	if _, ok := c.FunctionByIndex(1); ok {
		t.Fatal("expected no function at out-of-range index")
	}
	if _, ok := c.FunctionByIndex(-1); ok {
		t.Fatal("expected no function at negative index")
	}
}

func TestMethodTableScoreExactBeatsSubtype(t *testing.T) {
	structs := types.NewStructTable()
	structs.Define(&types.StructDef{Name: "Dog", Supertype: "Animal"})
	structs.Define(&types.StructDef{Name: "Animal"})

	if s := Score("Dog", "Dog", structs); s <= 0 {
		t.Fatalf("expected a positive score for an exact match, got %d", s)
	}
	if exact, sub := Score("Dog", "Dog", structs), Score("Animal", "Dog", structs); exact <= sub {
		t.Fatalf("expected exact match (%d) to outscore subtype match (%d)", exact, sub)
	}
	if s := Score("Animal", "Dog", structs); s <= 0 {
		t.Fatalf("expected a positive score for a subtype match, got %d", s)
	}
	if s := Score("Cat", "Dog", structs); s != 0 {
		t.Fatalf("expected zero score for an unrelated type, got %d", s)
	}
	if s := Score("Any", "Dog", structs); s != 1 {
		t.Fatalf("expected Any to score 1, got %d", s)
	}
}

func TestMethodTableBestMatchBreaksTiesByDeclarationOrder(t *testing.T) {
	mt := NewMethodTable()
	mt.Add("area", MethodVariant{FuncIndex: 0, ParamTypes: []string{"Any"}})
	mt.Add("area", MethodVariant{FuncIndex: 1, ParamTypes: []string{"Any"}})

	fi, ok := mt.BestMatch("area", "Int64", nil)
	if !ok || fi != 0 {
		t.Fatalf("expected the earliest-declared variant (0) to win a tie, got %d, %v", fi, ok)
	}
}

func TestMethodTableBestMatchNoVariants(t *testing.T) {
	mt := NewMethodTable()
	if _, ok := mt.BestMatch("missing", "Int64", nil); ok {
		t.Fatal("expected no match for an undeclared name")
	}
}

func TestMethodTableDictParametricExcludesBuiltinDict(t *testing.T) {
	if s := Score("Dict{String, Int64}", "Dict", nil); s != 0 {
		t.Fatalf("expected the builtin Dict to never match a parametric Dict{K,V} candidate, got %d", s)
	}
}
