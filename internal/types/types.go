// Package types defines the concrete type vocabulary shared by the
// inference engine, the bytecode compiler and the AOT pipeline: concrete
// JuliaType tags, the TypeExpr grammar used for parsing source-level type
// annotations, and the struct table that backs field/method resolution.
package types

import (
	"strings"

	"github.com/dolthub/swiss"
)

// JuliaType is a concrete (fully resolved) type tag. Parametric types
// (Array{Float64}, Point{Float64}) carry their type arguments in Params;
// simple types leave Params empty.
type JuliaType struct {
	Name   string
	Params []JuliaType
}

func Concrete(name string) JuliaType { return JuliaType{Name: name} }

func Parameterized(name string, params ...JuliaType) JuliaType {
	return JuliaType{Name: name, Params: params}
}

func (t JuliaType) String() string {
	if len(t.Params) == 0 {
		return t.Name
	}
	parts := make([]string, len(t.Params))
	for i, p := range t.Params {
		parts[i] = p.String()
	}
	return t.Name + "{" + strings.Join(parts, ", ") + "}"
}

func (t JuliaType) Equal(o JuliaType) bool {
	if t.Name != o.Name || len(t.Params) != len(o.Params) {
		return false
	}
	for i := range t.Params {
		if !t.Params[i].Equal(o.Params[i]) {
			return false
		}
	}
	return true
}

// Complexity is the type-tree size used by the lattice widening rule:
// a union whose combined complexity exceeds the configured bound widens
// to a coarser type rather than growing without limit.
func (t JuliaType) Complexity() int {
	c := 1
	for _, p := range t.Params {
		c += p.Complexity()
	}
	return c
}

// Well-known concrete base types. Only the base name matters for equality;
// Params stays nil for all of these.
var (
	Int8    = Concrete("Int8")
	Int16   = Concrete("Int16")
	Int32   = Concrete("Int32")
	Int64   = Concrete("Int64")
	Int128  = Concrete("Int128")
	UInt8   = Concrete("UInt8")
	UInt16  = Concrete("UInt16")
	UInt32  = Concrete("UInt32")
	UInt64  = Concrete("UInt64")
	UInt128 = Concrete("UInt128")
	BigInt  = Concrete("BigInt")
	BigFloat = Concrete("BigFloat")
	Float16 = Concrete("Float16")
	Float32 = Concrete("Float32")
	Float64 = Concrete("Float64")
	Bool    = Concrete("Bool")
	Char    = Concrete("Char")
	String  = Concrete("String")
	Nothing = Concrete("Nothing")
	Missing = Concrete("Missing")
	Undef   = Concrete("Undef")
	Any     = Concrete("Any")
	Symbol  = Concrete("Symbol")
	Module  = Concrete("Module")
	DataType = Concrete("DataType")
	Function = Concrete("Function")
	Tuple   = Concrete("Tuple")
	NamedTuple = Concrete("NamedTuple")
	Dict    = Concrete("Dict")
	Set     = Concrete("Set")
	Range   = Concrete("Range")
	Regex   = Concrete("Regex")
	RegexMatch = Concrete("RegexMatch")
)

var baseTypes = map[string]JuliaType{
	"Int8": Int8, "Int16": Int16, "Int32": Int32, "Int64": Int64, "Int128": Int128,
	"UInt8": UInt8, "UInt16": UInt16, "UInt32": UInt32, "UInt64": UInt64, "UInt128": UInt128,
	"BigInt": BigInt, "BigFloat": BigFloat,
	"Float16": Float16, "Float32": Float32, "Float64": Float64,
	"Bool": Bool, "Char": Char, "String": String,
	"Nothing": Nothing, "Missing": Missing, "Undef": Undef, "Any": Any,
	"Symbol": Symbol, "Module": Module, "DataType": DataType, "Function": Function,
	"Tuple": Tuple, "NamedTuple": NamedTuple, "Dict": Dict, "Set": Set,
	"Range": Range, "Regex": Regex, "RegexMatch": RegexMatch,
}

// FromName resolves a bare (non-parametric) type name to its concrete
// JuliaType. Unknown names are not base types — the caller should treat
// them as a type variable or a user struct name.
func FromName(name string) (JuliaType, bool) {
	t, ok := baseTypes[name]
	return t, ok
}

func IsFloat(t JuliaType) bool {
	switch t.Name {
	case "Float16", "Float32", "Float64", "BigFloat":
		return true
	}
	return false
}

func IsInteger(t JuliaType) bool {
	switch t.Name {
	case "Int8", "Int16", "Int32", "Int64", "Int128",
		"UInt8", "UInt16", "UInt32", "UInt64", "UInt128", "BigInt":
		return true
	}
	return false
}

// ---------------------------------------------------------------------
// TypeExpr — the pre-resolution grammar for source-level type annotations.
// ---------------------------------------------------------------------

type TypeExprKind int

const (
	TEConcrete TypeExprKind = iota
	TETypeVar
	TEParameterized
	TERuntimeExpr
)

type TypeExpr struct {
	Kind     TypeExprKind
	Concrete JuliaType  // TEConcrete
	TypeVar  string     // TETypeVar
	Base     string     // TEParameterized
	Params   []TypeExpr // TEParameterized
	Runtime  string     // TERuntimeExpr
}

func (e TypeExpr) Equal(o TypeExpr) bool {
	if e.Kind != o.Kind {
		return false
	}
	switch e.Kind {
	case TEConcrete:
		return e.Concrete.Equal(o.Concrete)
	case TETypeVar:
		return e.TypeVar == o.TypeVar
	case TERuntimeExpr:
		return e.Runtime == o.Runtime
	case TEParameterized:
		if e.Base != o.Base || len(e.Params) != len(o.Params) {
			return false
		}
		for i := range e.Params {
			if !e.Params[i].Equal(o.Params[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// ParseSingleTypeExpr parses one type annotation: a concrete name
// ("Float64"), a type variable ("T"), a parameterized type
// ("Array{Float64}", "Container{Point{Float64}}") or a runtime expression
// ("Symbol(s)" — parentheses appear before any brace).
func ParseSingleTypeExpr(s string) (TypeExpr, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return TypeExpr{}, false
	}

	if openParen := strings.IndexByte(s, '('); openParen >= 0 {
		openBrace := strings.IndexByte(s, '{')
		if openBrace < 0 || openParen < openBrace {
			return TypeExpr{Kind: TERuntimeExpr, Runtime: s}, true
		}
	}

	if open := strings.IndexByte(s, '{'); open >= 0 {
		close := strings.LastIndexByte(s, '}')
		if close <= open {
			return TypeExpr{}, false
		}
		base := strings.TrimSpace(s[:open])
		args, ok := ParseTypeArgsRecursive(s[open+1 : close])
		if !ok {
			return TypeExpr{}, false
		}
		return TypeExpr{Kind: TEParameterized, Base: base, Params: args}, true
	}

	if jt, ok := FromName(s); ok {
		return TypeExpr{Kind: TEConcrete, Concrete: jt}, true
	}
	return TypeExpr{Kind: TETypeVar, TypeVar: s}, true
}

// ParseTypeArgsRecursive splits a comma-separated type-argument list,
// treating commas nested inside `{}` as part of the enclosing argument.
func ParseTypeArgsRecursive(s string) ([]TypeExpr, bool) {
	var args []TypeExpr
	var current strings.Builder
	depth := 0

	flush := func() bool {
		trimmed := strings.TrimSpace(current.String())
		current.Reset()
		if trimmed == "" {
			return true
		}
		te, ok := ParseSingleTypeExpr(trimmed)
		if !ok {
			return false
		}
		args = append(args, te)
		return true
	}

	for _, c := range s {
		switch c {
		case '{':
			depth++
			current.WriteRune(c)
		case '}':
			depth--
			current.WriteRune(c)
		case ',':
			if depth == 0 {
				if !flush() {
					return nil, false
				}
				continue
			}
			current.WriteRune(c)
		default:
			current.WriteRune(c)
		}
	}
	if !flush() {
		return nil, false
	}
	return args, true
}

// ParseParametricCall splits "Point{Float64}" into ("Point", [Float64]).
// Returns ok=false for non-parametric names ("Int64").
func ParseParametricCall(name string) (string, []TypeExpr, bool) {
	open := strings.IndexByte(name, '{')
	if open < 0 {
		return "", nil, false
	}
	closeIdx := strings.LastIndexByte(name, '}')
	if closeIdx <= open {
		return "", nil, false
	}
	base := name[:open]
	args, ok := ParseTypeArgsRecursive(name[open+1 : closeIdx])
	if !ok {
		return "", nil, false
	}
	return base, args, true
}

// ---------------------------------------------------------------------
// Struct table — keyed by name for sources, by monotone type_id at
// the VM level.
// ---------------------------------------------------------------------

type FieldDef struct {
	Name string
	Type *TypeExpr
}

type StructDef struct {
	Name       string
	Mutable    bool
	Fields     []FieldDef
	TypeParams []string
	Supertype  string
}

func (d *StructDef) FieldIndex(name string) (int, bool) {
	for i, f := range d.Fields {
		if f.Name == name {
			return i, true
		}
	}
	return 0, false
}

// StructTable resolves struct definitions by name and assigns each a
// stable, monotonically increasing type_id the first time it is seen.
type StructTable struct {
	defs    map[string]*StructDef
	typeIDs *swiss.Map[string, int]
	nextID  int
}

func NewStructTable() *StructTable {
	return &StructTable{
		defs:    make(map[string]*StructDef),
		typeIDs: swiss.NewMap[string, int](16),
	}
}

func (t *StructTable) Define(def *StructDef) {
	t.defs[def.Name] = def
	t.EnsureTypeID(def.Name)
}

func (t *StructTable) Get(name string) (*StructDef, bool) {
	d, ok := t.defs[name]
	return d, ok
}

// EnsureTypeID returns the existing type_id for name, or assigns the next
// monotone id if this is the first time name is seen. Stable within one
// compilation.
func (t *StructTable) EnsureTypeID(name string) int {
	if id, ok := t.typeIDs.Get(name); ok {
		return id
	}
	id := t.nextID
	t.nextID++
	t.typeIDs.Put(name, id)
	return id
}

func (t *StructTable) TypeID(name string) (int, bool) {
	return t.typeIDs.Get(name)
}

// IsSubtype reports whether child is child==parent or declares parent as
// its (possibly transitive) Supertype. Used by method-table scoring
// and the VM's isa checks.
func (t *StructTable) IsSubtype(child, parent string) bool {
	if child == parent {
		return true
	}
	seen := map[string]bool{}
	cur := child
	for {
		if seen[cur] {
			return false
		}
		seen[cur] = true
		d, ok := t.defs[cur]
		if !ok || d.Supertype == "" {
			return false
		}
		if d.Supertype == parent {
			return true
		}
		cur = d.Supertype
	}
}
