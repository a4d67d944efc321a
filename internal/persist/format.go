// Package persist implements the versioned binary bytecode format and a
// pluggable SQL-backed cache store keyed by content hash. The on-disk
// shape is a fixed 16-byte header — magic "SJBC", a little-endian u32
// version, u32 flags, u32 payload length — followed by the serialized
// Program.
//
// No third-party library in reach of this module provides a compact
// binary codec for arbitrary Go structs, so the payload is encoded with
// the standard library's encoding/gob instead (see DESIGN.md for the
// full justification — this is the one persist component built on the
// standard library).
package persist

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"os"

	"subsetjulia/internal/ir"
)

// Magic identifies a SubsetJuliaVM bytecode file.
var Magic = [4]byte{'S', 'J', 'B', 'C'}

// Version is the current bytecode format version.
const Version uint32 = 2

// Flags bits.
const (
	FlagHasDebugInfo uint32 = 1 << 0
	FlagHasSpans     uint32 = 1 << 1
)

// ErrorKind distinguishes the bytecode format's error variants: truncation,
// bad magic, a future version, or a deserialization failure each produce
// a distinct variant.
type ErrorKind int

const (
	ErrInvalidMagic ErrorKind = iota
	ErrUnsupportedVersion
	ErrDeserialize
	ErrSerialize
	ErrIO
)

type FormatError struct {
	Kind    ErrorKind
	Version uint32 // ErrUnsupportedVersion
	Msg     string
	Cause   error
}

func (e *FormatError) Error() string {
	switch e.Kind {
	case ErrInvalidMagic:
		return "Invalid magic bytes - not a valid .sjbc file"
	case ErrUnsupportedVersion:
		return fmt.Sprintf("Unsupported bytecode version: %d (current: %d)", e.Version, Version)
	case ErrDeserialize:
		return "Failed to deserialize: " + e.Msg
	case ErrSerialize:
		return "Failed to serialize: " + e.Msg
	case ErrIO:
		return "I/O error: " + e.Msg
	}
	return "unknown bytecode format error"
}

func (e *FormatError) Unwrap() error { return e.Cause }

// Header is the fixed 16-byte prefix preceding the payload.
type Header struct {
	Version  uint32
	Flags    uint32
	IRLength uint32
}

func (h Header) HasDebugInfo() bool { return h.Flags&FlagHasDebugInfo != 0 }
func (h Header) HasSpans() bool     { return h.Flags&FlagHasSpans != 0 }

// DefaultFlags enables every optional payload feature, for maximum
// compatibility with tooling that expects debug info and spans present.
func DefaultFlags() uint32 { return FlagHasDebugInfo | FlagHasSpans }

func init() {
	// Core IR's Expr/Stmt sums are interface-typed; gob needs every
	// concrete variant registered once at package init so Encode/Decode
	// can round-trip them.
	gob.Register(&ir.LitInt{})
	gob.Register(&ir.LitFloat{})
	gob.Register(&ir.LitBool{})
	gob.Register(&ir.LitString{})
	gob.Register(&ir.LitChar{})
	gob.Register(&ir.LitNothing{})
	gob.Register(&ir.Var{})
	gob.Register(&ir.Binary{})
	gob.Register(&ir.Unary{})
	gob.Register(&ir.Call{})
	gob.Register(&ir.GetField{})
	gob.Register(&ir.Index{})
	gob.Register(&ir.IsaCheck{})
	gob.Register(&ir.ArrayLit{})
	gob.Register(&ir.TupleLit{})
	gob.Register(&ir.NamedTupleLit{})
	gob.Register(&ir.StructNew{})
	gob.Register(&ir.HOFCall{})
	gob.Register(&ir.ExprStmt{})
	gob.Register(&ir.Assign{})
	gob.Register(&ir.If{})
	gob.Register(&ir.While{})
	gob.Register(&ir.Return{})
	gob.Register(&ir.Try{})
	gob.Register(&ir.Throw{})
}

// SaveToBytes serializes a Program with the given flags into the full
// framed bytecode payload.
func SaveToBytes(program *ir.Program, flags uint32) ([]byte, *FormatError) {
	var payload bytes.Buffer
	if err := gob.NewEncoder(&payload).Encode(program); err != nil {
		return nil, &FormatError{Kind: ErrSerialize, Msg: err.Error(), Cause: err}
	}

	var out bytes.Buffer
	out.Write(Magic[:])
	binary.Write(&out, binary.LittleEndian, Version)
	binary.Write(&out, binary.LittleEndian, flags)
	binary.Write(&out, binary.LittleEndian, uint32(payload.Len()))
	out.Write(payload.Bytes())
	return out.Bytes(), nil
}

// Save writes program to path with the default flags.
func Save(program *ir.Program, path string) *FormatError {
	return SaveWithFlags(program, path, DefaultFlags())
}

// SaveWithFlags writes program to path with custom flags.
func SaveWithFlags(program *ir.Program, path string, flags uint32) *FormatError {
	data, err := SaveToBytes(program, flags)
	if err != nil {
		return err
	}
	if werr := os.WriteFile(path, data, 0o644); werr != nil {
		return &FormatError{Kind: ErrIO, Msg: werr.Error(), Cause: werr}
	}
	return nil
}

// LoadFromBytes parses a framed bytecode payload: a magic mismatch ->
// InvalidMagic; version > current -> UnsupportedVersion; a buffer under
// 16 bytes -> InvalidMagic; a truncated payload -> a deserialize error.
func LoadFromBytes(data []byte) (*ir.Program, Header, *FormatError) {
	if len(data) < 16 {
		return nil, Header{}, &FormatError{Kind: ErrInvalidMagic}
	}
	if !bytes.Equal(data[0:4], Magic[:]) {
		return nil, Header{}, &FormatError{Kind: ErrInvalidMagic}
	}
	version := binary.LittleEndian.Uint32(data[4:8])
	if version > Version {
		return nil, Header{}, &FormatError{Kind: ErrUnsupportedVersion, Version: version}
	}
	flags := binary.LittleEndian.Uint32(data[8:12])
	irLen := binary.LittleEndian.Uint32(data[12:16])

	if uint32(len(data)-16) < irLen {
		return nil, Header{}, &FormatError{Kind: ErrDeserialize, Msg: "Truncated data"}
	}

	payload := data[16 : 16+irLen]
	var program ir.Program
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&program); err != nil {
		return nil, Header{}, &FormatError{Kind: ErrDeserialize, Msg: err.Error(), Cause: err}
	}
	return &program, Header{Version: version, Flags: flags, IRLength: irLen}, nil
}

// Load reads and deserializes a Program from path.
func Load(path string) (*ir.Program, *FormatError) {
	program, _, err := LoadWithHeader(path)
	return program, err
}

// LoadWithHeader reads a Program and its Header from path.
func LoadWithHeader(path string) (*ir.Program, Header, *FormatError) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Header{}, &FormatError{Kind: ErrIO, Msg: err.Error(), Cause: err}
	}
	return LoadFromBytes(data)
}
