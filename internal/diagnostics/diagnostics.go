// Package diagnostics implements the widening-event collector used by the
// type inference engine. Each VM/inference run is single-threaded, so a
// mutex-guarded collector plays the role of thread-local storage without
// needing real goroutine-local storage.
package diagnostics

import (
	"fmt"
	"sync"

	"github.com/dustin/go-humanize"
)

type Reason int

const (
	ReasonUnknownFunction Reason = iota
	ReasonUnionTooLarge
	ReasonUnionTooComplex
	ReasonRecursiveCycle
	ReasonFixedPointDivergence
	ReasonUnknownStruct
	ReasonUnknownField
	ReasonUnknownArrayElement
	ReasonConditionalTypeJoin
	ReasonConversionUnknown
	ReasonOther
)

func (r Reason) String() string {
	switch r {
	case ReasonUnknownFunction:
		return "UnknownFunction"
	case ReasonUnionTooLarge:
		return "UnionTooLarge"
	case ReasonUnionTooComplex:
		return "UnionTooComplex"
	case ReasonRecursiveCycle:
		return "RecursiveCycle"
	case ReasonFixedPointDivergence:
		return "FixedPointDivergence"
	case ReasonUnknownStruct:
		return "UnknownStruct"
	case ReasonUnknownField:
		return "UnknownField"
	case ReasonUnknownArrayElement:
		return "UnknownArrayElement"
	case ReasonConditionalTypeJoin:
		return "ConditionalTypeJoin"
	case ReasonConversionUnknown:
		return "ConversionUnknown"
	default:
		return "Other"
	}
}

// Location is a minimal source-span reference; the lowerer populates this
// in production but the core treats it as opaque.
type Location struct {
	File   string
	Line   int
	Column int
}

// Diagnostic records one widening or resolution-failure event the type
// inference engine observed during a run.
type Diagnostic struct {
	Reason    Reason
	Location  *Location
	Context   string
	WidenedTo string // stringified widened LatticeType, kept untyped here to avoid a dependency on internal/lattice
	N         int      // payload for UnionTooLarge(n) / UnionTooComplex(n) / FixedPointDivergence(iters)
	Names     []string // payload for RecursiveCycle([names])
	Target    string   // payload for UnknownStruct(name?) / ConversionUnknown(target?)
	Field     string   // payload for UnknownField(struct,field)
	Msg       string   // payload for Other(msg)
}

func (d Diagnostic) String() string {
	s := d.Reason.String()
	switch d.Reason {
	case ReasonUnionTooLarge, ReasonUnionTooComplex:
		s = fmt.Sprintf("%s(%s members)", s, humanize.Comma(int64(d.N)))
	case ReasonFixedPointDivergence:
		s = fmt.Sprintf("%s(%s iterations)", s, humanize.Comma(int64(d.N)))
	case ReasonRecursiveCycle:
		s = fmt.Sprintf("%s(%v)", s, d.Names)
	case ReasonUnknownStruct, ReasonConversionUnknown:
		s = fmt.Sprintf("%s(%s)", s, d.Target)
	case ReasonUnknownField:
		s = fmt.Sprintf("%s(%s.%s)", s, d.Target, d.Field)
	case ReasonOther:
		s = fmt.Sprintf("%s(%s)", s, d.Msg)
	}
	if d.WidenedTo != "" {
		s += " -> " + d.WidenedTo
	}
	return s
}

// Collector buffers diagnostics while enabled; disabled by default so a
// production inference run pays no bookkeeping cost.
type Collector struct {
	mu      sync.Mutex
	enabled bool
	items   []Diagnostic
	stream  *Stream
}

func NewCollector() *Collector { return &Collector{} }

func (c *Collector) Enable()  { c.mu.Lock(); c.enabled = true; c.mu.Unlock() }
func (c *Collector) Disable() { c.mu.Lock(); c.enabled = false; c.mu.Unlock() }

// Emit is a no-op when the collector is disabled.
func (c *Collector) Emit(d Diagnostic) {
	c.mu.Lock()
	if !c.enabled {
		c.mu.Unlock()
		return
	}
	c.items = append(c.items, d)
	stream := c.stream
	c.mu.Unlock()
	if stream != nil {
		stream.broadcast(d)
	}
}

// Take drains and clears the buffered diagnostics.
func (c *Collector) Take() []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.items
	c.items = nil
	return out
}

func (c *Collector) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Collector) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
}

// Default is the package-level collector shared by internal/infer unless
// the embedder constructs its own via NewCollector.
var Default = NewCollector()

func Enable()             { Default.Enable() }
func Disable()            { Default.Disable() }
func Emit(d Diagnostic)    { Default.Emit(d) }
func Take() []Diagnostic   { return Default.Take() }
func Count() int           { return Default.Count() }
func Clear()               { Default.Clear() }
