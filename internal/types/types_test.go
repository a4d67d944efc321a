package types

import "testing"

func TestParseSingleTypeExprConcrete(t *testing.T) {
	got, ok := ParseSingleTypeExpr("Float64")
	if !ok || got.Kind != TEConcrete || got.Concrete.Name != "Float64" {
		t.Fatalf("got %+v, ok=%v", got, ok)
	}
}

func TestParseSingleTypeExprEmpty(t *testing.T) {
	if _, ok := ParseSingleTypeExpr(""); ok {
		t.Fatal("expected empty string to fail")
	}
	if _, ok := ParseSingleTypeExpr("   "); ok {
		t.Fatal("expected whitespace-only string to fail")
	}
}

func TestParseSingleTypeExprTypeVar(t *testing.T) {
	got, ok := ParseSingleTypeExpr("T")
	if !ok || got.Kind != TETypeVar || got.TypeVar != "T" {
		t.Fatalf("got %+v, ok=%v", got, ok)
	}
}

func TestParseSingleTypeExprParameterized(t *testing.T) {
	got, ok := ParseSingleTypeExpr("Array{Float64}")
	if !ok || got.Kind != TEParameterized || got.Base != "Array" {
		t.Fatalf("got %+v, ok=%v", got, ok)
	}
	if len(got.Params) != 1 || !got.Params[0].Equal(TypeExpr{Kind: TEConcrete, Concrete: Float64}) {
		t.Fatalf("unexpected params: %+v", got.Params)
	}
}

func TestParseSingleTypeExprNestedParameterized(t *testing.T) {
	got, ok := ParseSingleTypeExpr("Container{Point{Float64}}")
	if !ok || got.Base != "Container" {
		t.Fatalf("got %+v, ok=%v", got, ok)
	}
	inner := got.Params[0]
	if inner.Kind != TEParameterized || inner.Base != "Point" {
		t.Fatalf("unexpected inner: %+v", inner)
	}
}

func TestParseSingleTypeExprRuntimeExpr(t *testing.T) {
	got, ok := ParseSingleTypeExpr("Symbol(s)")
	if !ok || got.Kind != TERuntimeExpr || got.Runtime != "Symbol(s)" {
		t.Fatalf("got %+v, ok=%v", got, ok)
	}
}

func TestParseSingleTypeExprUnclosedBrace(t *testing.T) {
	if _, ok := ParseSingleTypeExpr("Point{"); ok {
		t.Fatal("expected unclosed brace to fail")
	}
}

func TestParseSingleTypeExprWhitespaceTrimmed(t *testing.T) {
	got, ok := ParseSingleTypeExpr("  Float64  ")
	if !ok || got.Concrete.Name != "Float64" {
		t.Fatalf("got %+v, ok=%v", got, ok)
	}
}

func TestParseTypeArgsRecursiveNestedCommaNotSplit(t *testing.T) {
	args, ok := ParseTypeArgsRecursive("Point{Int64, Float64}, T")
	if !ok || len(args) != 2 {
		t.Fatalf("got %+v, ok=%v", args, ok)
	}
	if args[0].Kind != TEParameterized || len(args[0].Params) != 2 {
		t.Fatalf("unexpected first arg: %+v", args[0])
	}
	if args[1].Kind != TETypeVar || args[1].TypeVar != "T" {
		t.Fatalf("unexpected second arg: %+v", args[1])
	}
}

func TestParseParametricCall(t *testing.T) {
	base, args, ok := ParseParametricCall("Pair{Int64, String}")
	if !ok || base != "Pair" || len(args) != 2 {
		t.Fatalf("got base=%q args=%+v ok=%v", base, args, ok)
	}
	if _, _, ok := ParseParametricCall("Int64"); ok {
		t.Fatal("expected non-parametric name to fail")
	}
}

func TestComplexity(t *testing.T) {
	if Float64.Complexity() != 1 {
		t.Fatalf("expected simple type complexity 1, got %d", Float64.Complexity())
	}
	nested := Parameterized("Container", Parameterized("Point", Float64))
	if got := nested.Complexity(); got != 3 {
		t.Fatalf("expected complexity 3, got %d", got)
	}
}

func TestStructTableTypeIDStable(t *testing.T) {
	st := NewStructTable()
	st.Define(&StructDef{Name: "Point", Fields: []FieldDef{{Name: "x"}, {Name: "y"}}})
	id1 := st.EnsureTypeID("Point")
	id2 := st.EnsureTypeID("Point")
	if id1 != id2 {
		t.Fatalf("type_id not stable: %d != %d", id1, id2)
	}
	st.Define(&StructDef{Name: "Circle", Supertype: "Shape"})
	id3 := st.EnsureTypeID("Circle")
	if id3 == id1 {
		t.Fatal("distinct struct names must get distinct type ids")
	}
}

func TestStructTableIsSubtype(t *testing.T) {
	st := NewStructTable()
	st.Define(&StructDef{Name: "Shape"})
	st.Define(&StructDef{Name: "Circle", Supertype: "Shape"})
	st.Define(&StructDef{Name: "Unrelated"})
	if !st.IsSubtype("Circle", "Shape") {
		t.Fatal("Circle should be a subtype of Shape")
	}
	if !st.IsSubtype("Circle", "Circle") {
		t.Fatal("a type is its own subtype")
	}
	if st.IsSubtype("Circle", "Unrelated") {
		t.Fatal("Circle must not be a subtype of Unrelated")
	}
}
