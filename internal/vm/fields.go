package vm

import "subsetjulia/internal/verrors"

// getFieldByIndex reads a struct field using the compile-time-resolved
// index; by-reference structs are resolved through the heap first.
func (vm *VM) getFieldByIndex(obj Value, idx int, name string) (Value, *verrors.VmError) {
	sv, err := vm.structValueOf(obj)
	if err != nil {
		return Value{}, err
	}
	if idx < 0 || idx >= len(sv.Fields) {
		return Value{}, verrors.NewFieldIndexOutOfBounds(idx, len(sv.Fields))
	}
	return sv.Fields[idx], nil
}

// getFieldByName is the dynamic fallback used when the receiver's static
// type is Any: it also understands NamedTuple field access,
// since NamedTupleLit compiles through the same GetField expression shape
// as struct field access.
func (vm *VM) getFieldByName(obj Value, name string) (Value, *verrors.VmError) {
	if obj.Kind == KNamedTuple {
		if v, ok := obj.NamedTup.Get(name); ok {
			return v, nil
		}
		return Value{}, &verrors.VmError{Kind: verrors.NamedTupleFieldNotFound, Msg: name}
	}
	sv, err := vm.structValueOf(obj)
	if err != nil {
		return Value{}, err
	}
	if vm.Structs != nil {
		if def, ok := vm.Structs.Get(sv.TypeName); ok {
			if idx, ok := def.FieldIndex(name); ok {
				return sv.Fields[idx], nil
			}
		}
	}
	return Value{}, &verrors.VmError{Kind: verrors.FieldIndexOutOfBounds, FieldIdx: -1, FieldCount: len(sv.Fields)}
}

func (vm *VM) setFieldByIndex(obj Value, idx int, val Value) *verrors.VmError {
	sv, err := vm.structValueOf(obj)
	if err != nil {
		return err
	}
	if !sv.Mutable {
		return verrors.NewImmutableFieldAssign(sv.TypeName)
	}
	if idx < 0 || idx >= len(sv.Fields) {
		return verrors.NewFieldIndexOutOfBounds(idx, len(sv.Fields))
	}
	sv.Fields[idx] = val
	return nil
}

func (vm *VM) structValueOf(obj Value) (*StructValue, *verrors.VmError) {
	switch obj.Kind {
	case KStruct:
		return obj.StructV, nil
	case KStructRef:
		if sv, ok := vm.Heap.Get(obj.StructRef); ok {
			return sv, nil
		}
		return nil, verrors.NewInternalError("dangling struct reference")
	}
	return nil, verrors.TypeErrorExpected("GetField", "struct", obj.TypeName())
}
