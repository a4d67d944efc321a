package persist

import (
	"testing"

	"subsetjulia/internal/ir"
)

func sampleProgram() *ir.Program {
	return &ir.Program{
		Functions: []*ir.Function{
			{
				Name:   "double",
				Params: []ir.Param{{Name: "x"}},
				Body: &ir.Block{Stmts: []ir.Stmt{
					&ir.Return{Value: &ir.Binary{Op: "*", Left: &ir.Var{Name: "x"}, Right: &ir.LitInt{Val: 2}}},
				}},
			},
		},
		TopLevel: &ir.Block{},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	prog := sampleProgram()
	data, err := SaveToBytes(prog, DefaultFlags())
	if err != nil {
		t.Fatalf("SaveToBytes: %v", err)
	}

	got, header, lerr := LoadFromBytes(data)
	if lerr != nil {
		t.Fatalf("LoadFromBytes: %v", lerr)
	}
	if header.Version != Version {
		t.Fatalf("expected version %d, got %d", Version, header.Version)
	}
	if !header.HasDebugInfo() || !header.HasSpans() {
		t.Fatal("DefaultFlags should set both HasDebugInfo and HasSpans")
	}
	if len(got.Functions) != 1 || got.Functions[0].Name != "double" {
		t.Fatalf("round trip lost the function definition: %+v", got.Functions)
	}
}

func TestLoadRejectsBadMagic(t *testing.T) {
	data, _ := SaveToBytes(sampleProgram(), DefaultFlags())
	data[0] = 'X'
	_, _, err := LoadFromBytes(data)
	if err == nil || err.Kind != ErrInvalidMagic {
		t.Fatalf("expected ErrInvalidMagic, got %v", err)
	}
}

func TestLoadRejectsShortBuffer(t *testing.T) {
	_, _, err := LoadFromBytes([]byte{'S', 'J'})
	if err == nil || err.Kind != ErrInvalidMagic {
		t.Fatalf("expected ErrInvalidMagic for a too-short buffer, got %v", err)
	}
}

func TestLoadRejectsFutureVersion(t *testing.T) {
	data, _ := SaveToBytes(sampleProgram(), DefaultFlags())
	// version field is bytes [4:8], little-endian
	data[4] = 99
	_, _, err := LoadFromBytes(data)
	if err == nil || err.Kind != ErrUnsupportedVersion {
		t.Fatalf("expected ErrUnsupportedVersion, got %v", err)
	}
	if err.Version != 99 {
		t.Fatalf("expected reported version 99, got %d", err.Version)
	}
}

func TestLoadRejectsTruncatedPayload(t *testing.T) {
	data, _ := SaveToBytes(sampleProgram(), DefaultFlags())
	truncated := data[:len(data)-4]
	_, _, err := LoadFromBytes(truncated)
	if err == nil || err.Kind != ErrDeserialize {
		t.Fatalf("expected ErrDeserialize for truncated payload, got %v", err)
	}
}

func TestContentHashStableAcrossEquivalentPrograms(t *testing.T) {
	a, err := ContentHash(sampleProgram(), DefaultFlags())
	if err != nil {
		t.Fatalf("ContentHash: %v", err)
	}
	b, err := ContentHash(sampleProgram(), DefaultFlags())
	if err != nil {
		t.Fatalf("ContentHash: %v", err)
	}
	if a != b {
		t.Fatalf("expected identical hashes for structurally identical programs, got %s vs %s", a, b)
	}
}

func TestContentHashDiffersOnFlagChange(t *testing.T) {
	a, _ := ContentHash(sampleProgram(), DefaultFlags())
	b, _ := ContentHash(sampleProgram(), 0)
	if a == b {
		t.Fatal("expected different hashes for different flag bits, since flags are part of the framed payload")
	}
}
