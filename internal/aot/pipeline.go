package aot

import (
	"subsetjulia/internal/infer"
	"subsetjulia/internal/verrors"
)

// Lower runs the full AOT pipeline: convert the type-inferred program to
// AOT IR, then emit LLVM textual IR for every monomorphic function.
func Lower(typed *infer.TypedProgram) (*AotProgram, string, *verrors.CompileError) {
	prog, err := NewIrConverter(typed).Convert()
	if err != nil {
		return nil, "", err
	}
	text, err := NewLLVMEmitter().Emit(prog)
	if err != nil {
		return prog, "", err
	}
	return prog, text, nil
}
