package vm

import "subsetjulia/internal/types"

// StructRef indexes into the VM's struct heap.
// Structs the compiler considers by-reference live here instead of on the
// operand stack, so two holders of the same StructRef observe each
// other's field writes.
type StructHeap struct {
	entries []*StructValue
}

func NewStructHeap() *StructHeap { return &StructHeap{} }

// Intern moves a stack-resident struct value into the heap and returns
// its index, used when an argument is a stack-resident struct but the
// callee expects a reference-bound slot.
func (h *StructHeap) Intern(sv *StructValue) int {
	h.entries = append(h.entries, sv)
	return len(h.entries) - 1
}

func (h *StructHeap) Get(ref int) (*StructValue, bool) {
	if ref < 0 || ref >= len(h.entries) {
		return nil, false
	}
	return h.entries[ref], true
}

func (h *StructHeap) Len() int { return len(h.entries) }

// Resolve dereferences a Value that may be either a stack-resident struct
// or a StructRef, returning the underlying *StructValue either way.
func (vm *VM) Resolve(v Value) (*StructValue, bool) {
	switch v.Kind {
	case KStruct:
		return v.StructV, true
	case KStructRef:
		return vm.Heap.Get(v.StructRef)
	}
	return nil, false
}

// structTable is a thin adapter so the VM can reuse types.StructTable's
// IsSubtype/Get logic for runtime field resolution without importing
// vm-level cycles.
type structTable = types.StructTable
