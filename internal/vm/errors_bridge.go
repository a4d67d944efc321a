package vm

import "subsetjulia/internal/verrors"

// valueToError converts a thrown Value into the
// VmError the unwinder propagates. ErrorException, AssertionError and
// DomainError struct values keep their kind and message; anything else is
// wrapped as an ErrorException so arbitrary thrown values still unwind.
func valueToError(v Value) *verrors.VmError {
	if v.Kind == KStruct && v.StructV != nil {
		switch v.StructV.TypeName {
		case "ErrorException":
			if len(v.StructV.Fields) > 0 {
				return verrors.NewErrorException(v.StructV.Fields[0].Str)
			}
			return verrors.NewErrorException("")
		case "AssertionError":
			if len(v.StructV.Fields) > 0 {
				return verrors.NewAssertionFailed(v.StructV.Fields[0].Str)
			}
			return verrors.NewAssertionFailed("")
		case "DomainError":
			msg := ""
			if len(v.StructV.Fields) > 0 {
				msg = v.StructV.Fields[0].Str
			}
			return &verrors.VmError{Kind: verrors.DomainError, Msg: msg}
		}
	}
	if v.Kind == KStr {
		return verrors.NewErrorException(v.Str)
	}
	return verrors.NewErrorException(displayValue(v))
}
