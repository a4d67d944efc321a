package lattice

import (
	"testing"

	"subsetjulia/internal/types"
)

func TestJoinConstMismatchBecomesConcrete(t *testing.T) {
	a := Const(int64(1), types.Int64)
	b := Const(int64(2), types.Int64)
	got := Join(a, b)
	if got.Kind != KindConcrete || !got.Concrete.Equal(types.Int64) {
		t.Fatalf("expected Concrete(Int64), got %s", got)
	}
}

func TestJoinConcreteConcreteBecomesUnion(t *testing.T) {
	got := Join(ConcreteT(types.Int64), ConcreteT(types.Float64))
	if got.Kind != KindUnion {
		t.Fatalf("expected Union, got %s", got)
	}
}

func TestJoinSameConcreteStaysConcrete(t *testing.T) {
	got := Join(ConcreteT(types.Int64), ConcreteT(types.Int64))
	if got.Kind != KindConcrete {
		t.Fatalf("expected Concrete, got %s", got)
	}
}

func TestUnionWideningToFloat(t *testing.T) {
	var floats []types.JuliaType
	for i := 0; i < MaxUnionLength+2; i++ {
		floats = append(floats, types.Float32)
	}
	floats = append(floats, types.Float64)
	got := widenUnion(Type{Kind: KindUnion, Union: floats})
	if got.Kind != KindConcrete || !got.Concrete.Equal(types.Float64) {
		t.Fatalf("expected widening to Concrete(Float64), got %s", got)
	}
}

func TestUnionWideningToTop(t *testing.T) {
	var mixed []types.JuliaType
	for i := 0; i < MaxUnionLength+2; i++ {
		mixed = append(mixed, types.Concrete("Struct"+string(rune('A'+i))))
	}
	got := UnionOf(mixed...)
	if got.Kind != KindTop {
		t.Fatalf("expected widening to Top, got %s", got)
	}
}

func TestUnionWithinBoundsStaysUnion(t *testing.T) {
	got := UnionOf(types.Int64, types.String, types.Bool)
	if got.Kind != KindUnion || len(got.Union) != 3 {
		t.Fatalf("expected a 3-member union, got %s", got)
	}
}

func TestSubtractNarrowsUnion(t *testing.T) {
	u := UnionOf(types.Int64, types.Nothing)
	got := Subtract(u, types.Nothing)
	if got.Kind != KindConcrete || !got.Concrete.Equal(types.Int64) {
		t.Fatalf("expected Concrete(Int64) after subtracting Nothing, got %s", got)
	}
}

func TestMeetIntersectsUnions(t *testing.T) {
	a := UnionOf(types.Int64, types.Float64, types.Bool)
	b := UnionOf(types.Int64, types.Bool, types.String)
	got := Meet(a, b)
	if got.Kind != KindUnion || len(got.Union) != 2 {
		t.Fatalf("expected 2-member intersection, got %s", got)
	}
}

// Monotonicity: a ⊑ b implies join(a,c) ⊑ join(b,c) and meet(a,c) ⊑ meet(b,c).
func TestLatticeMonotonicity(t *testing.T) {
	a := Const(int64(1), types.Int64)
	b := ConcreteT(types.Int64)
	c := ConcreteT(types.Float64)

	if !LessEq(a, b) {
		t.Fatal("precondition failed: Const(1) should be ⊑ Concrete(Int64)")
	}
	if !LessEq(Join(a, c), Join(b, c)) {
		t.Fatalf("monotonicity violated for join: join(a,c)=%s join(b,c)=%s", Join(a, c), Join(b, c))
	}
	if !LessEq(Meet(a, c), Meet(b, c)) {
		t.Fatalf("monotonicity violated for meet: meet(a,c)=%s meet(b,c)=%s", Meet(a, c), Meet(b, c))
	}
}

func TestBottomAndTopIdentities(t *testing.T) {
	x := ConcreteT(types.Int64)
	if Join(Bottom(), x).Kind != KindConcrete {
		t.Fatal("join with Bottom should return the other operand")
	}
	if Join(Top(), x).Kind != KindTop {
		t.Fatal("join with Top should be Top")
	}
	if Meet(Top(), x).Kind != KindConcrete {
		t.Fatal("meet with Top should return the other operand")
	}
	if Meet(Bottom(), x).Kind != KindBottom {
		t.Fatal("meet with Bottom should be Bottom")
	}
}

func TestEffectBitMerge(t *testing.T) {
	if AlwaysTrue.Merge(AlwaysTrue) != AlwaysTrue {
		t.Fatal("AlwaysTrue merge AlwaysTrue should stay AlwaysTrue")
	}
	if AlwaysFalse.Merge(AlwaysFalse) != AlwaysFalse {
		t.Fatal("AlwaysFalse merge AlwaysFalse should stay AlwaysFalse")
	}
	if AlwaysTrue.Merge(AlwaysFalse) != Conditional {
		t.Fatal("mixed merge should be Conditional")
	}
}

func TestEffectsPresets(t *testing.T) {
	if !Total().IsPure() || !Total().IsTotal() || !Total().IsRemovable() || !Total().IsFoldable() {
		t.Fatal("Total() must satisfy every predicate")
	}
	if Arbitrary().IsPure() || Arbitrary().IsTotal() || Arbitrary().IsRemovable() || Arbitrary().IsFoldable() {
		t.Fatal("Arbitrary() must satisfy no predicate")
	}
	ai := ArrayGetIndex()
	if ai.IsPure() {
		t.Fatal("array_getindex is not pure: nothrow=false")
	}
	if !ai.Consistent.IsAlwaysTrue() || !ai.EffectFree.IsAlwaysTrue() {
		t.Fatal("array_getindex should still be consistent and effect_free")
	}
	as := ArraySetIndex()
	if as.IsPure() || as.IsRemovable() {
		t.Fatal("array_setindex must not be pure or removable")
	}
}

func TestEffectsMergePessimism(t *testing.T) {
	merged := PureArithmetic().Merge(WithSideEffects())
	if merged.IsPure() {
		t.Fatal("pure.merge(side_effect) must not be pure")
	}
	if merged.Nothrow {
		t.Fatal("merge with a throwing operation must not be nothrow")
	}
	two := PureArithmetic().Merge(PureArithmetic())
	if !two.IsPure() || !two.IsTotal() {
		t.Fatal("two pure_arithmetic operations should merge to a pure, total result")
	}
}
