package vm

import (
	"subsetjulia/internal/bytecode"
	"subsetjulia/internal/types"
	"subsetjulia/internal/verrors"
)

// resolveDynamicCall implements the call-site dispatch-cache lookup:
// the instruction's own index (captured before the
// fetch-increment) is the call_site_ip cache key; a miss falls through to
// MethodTable scoring over the candidate list, then stores the winner
// before returning it. NoMatch is returned (not an error) when every
// candidate scores zero and there is no fallback, so the caller can decide
// how to report it.
func (vm *VM) resolveDynamicCall(siteIP int, instr bytecode.Instruction, args []Value) (int, *verrors.VmError) {
	if len(args) <= instr.CheckPos {
		if instr.Fallback == bytecode.NoFallback {
			return NoMatch, nil
		}
		return instr.Fallback, nil
	}
	runtimeType := args[instr.CheckPos].TypeName()

	if fi, ok := vm.Cache.Lookup(siteIP, runtimeType); ok {
		return fi, nil
	}

	vm.Cache.RecordScoring()
	best := NoMatch
	bestScore := 0
	for _, cand := range instr.Candidates {
		score := scoreCandidate(cand.ExpectedType, runtimeType, vm.Structs)
		if score > bestScore {
			bestScore = score
			best = cand.FuncIndex
		}
	}
	if best == NoMatch && instr.Fallback != bytecode.NoFallback {
		best = instr.Fallback
	}
	vm.Cache.Store(siteIP, runtimeType, best)
	return best, nil
}

// scoreCandidate rates a single (expected, runtime) pair with
// bytecode.Score, the same tiering the method table uses; dynamic call
// sites score DispatchCandidate (expected type only) rather than full
// MethodVariant parameter lists.
func scoreCandidate(expected, runtimeType string, structs *types.StructTable) int {
	return bytecode.Score(expected, runtimeType, structs)
}

// callIntrinsic implements the type-inference registry's comparison/
// collection operators and the isa: pseudo-intrinsic the compiler emits
// for IsaCheck.
func (vm *VM) callIntrinsic(instr bytecode.Instruction) *verrors.VmError {
	name := instr.StrVal
	if len(name) > 4 && name[:4] == "isa:" {
		ty := name[4:]
		v := vm.pop()
		is := ty == "Any" || v.TypeName() == ty || (vm.Structs != nil && vm.Structs.IsSubtype(v.TypeName(), ty))
		if instr.BoolVal { // NotNil flag reused for `x !== nothing` style checks
			is = v.Kind != KNothing
		}
		vm.push(Bool(is))
		return nil
	}

	b := vm.pop()
	a := vm.pop()
	switch name {
	case "==":
		vm.push(Bool(valuesEqual(a, b)))
	case "!=":
		vm.push(Bool(!valuesEqual(a, b)))
	case "<":
		vm.push(Bool(compareValues(a, b) < 0))
	case "<=":
		vm.push(Bool(compareValues(a, b) <= 0))
	case ">":
		vm.push(Bool(compareValues(a, b) > 0))
	case ">=":
		vm.push(Bool(compareValues(a, b) >= 0))
	case "&&":
		vm.push(Bool(truthy(a) && truthy(b)))
	case "||":
		vm.push(Bool(truthy(a) || truthy(b)))
	case "===":
		vm.push(Bool(valuesEqual(a, b)))
	case "!==":
		vm.push(Bool(!valuesEqual(a, b)))
	default:
		return verrors.NoMethodMatchingOp(a.TypeName(), b.TypeName())
	}
	return nil
}

func compareValues(a, b Value) int {
	if a.IsNumeric() || b.IsNumeric() {
		af, bf := a.AsFloat64(), b.AsFloat64()
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	if a.Kind == KStr {
		switch {
		case a.Str < b.Str:
			return -1
		case a.Str > b.Str:
			return 1
		default:
			return 0
		}
	}
	return 0
}
