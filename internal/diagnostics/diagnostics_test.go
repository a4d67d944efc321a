package diagnostics

import "testing"

func TestEmitNoopWhenDisabled(t *testing.T) {
	c := NewCollector()
	c.Emit(Diagnostic{Reason: ReasonUnknownFunction})
	if c.Count() != 0 {
		t.Fatalf("expected disabled collector to drop diagnostics, got %d", c.Count())
	}
}

func TestEmitBufferedWhenEnabled(t *testing.T) {
	c := NewCollector()
	c.Enable()
	c.Emit(Diagnostic{Reason: ReasonUnionTooLarge, N: 9})
	c.Emit(Diagnostic{Reason: ReasonRecursiveCycle, Names: []string{"f", "g"}})
	if c.Count() != 2 {
		t.Fatalf("expected 2 buffered diagnostics, got %d", c.Count())
	}
	items := c.Take()
	if len(items) != 2 {
		t.Fatalf("expected Take to drain 2 items, got %d", len(items))
	}
	if c.Count() != 0 {
		t.Fatal("expected Take to clear the buffer")
	}
}

func TestClear(t *testing.T) {
	c := NewCollector()
	c.Enable()
	c.Emit(Diagnostic{Reason: ReasonOther, Msg: "x"})
	c.Clear()
	if c.Count() != 0 {
		t.Fatal("expected Clear to empty the buffer")
	}
}

func TestDiagnosticString(t *testing.T) {
	d := Diagnostic{Reason: ReasonUnknownField, Target: "Point", Field: "z"}
	if got := d.String(); got != "UnknownField(Point.z)" {
		t.Fatalf("unexpected string: %q", got)
	}
}
