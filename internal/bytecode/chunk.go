package bytecode

// FunctionInfo records one compiled function's code_start/code_end range
// inside the shared global code vector, plus the slot count the
// VM must size its frame to.
type FunctionInfo struct {
	Name      string
	CodeStart int
	CodeEnd   int // exclusive
	SlotCount int
	ParamCount int
	IsGeneric bool
}

// Chunk is a CompiledProgram: one global instruction stream shared by every
// function, the constant pool, per-instruction debug info, the compiled
// function table, and the method table used for dispatch-candidate scoring.
type Chunk struct {
	Code      []Instruction
	Debug     []DebugInfo
	Functions []FunctionInfo
	Methods   *MethodTable

	// EntryStart/EntryEnd bound the top-level statement block, compiled
	// after every function (so forward references resolve).
	EntryStart int
	EntryEnd   int
}

func NewChunk() *Chunk {
	return &Chunk{
		Methods: NewMethodTable(),
	}
}

// Emit appends an instruction and returns its index (used as a jump
// target or a call-site key for the dispatch cache).
func (c *Chunk) Emit(instr Instruction, debug DebugInfo) int {
	c.Code = append(c.Code, instr)
	c.Debug = append(c.Debug, debug)
	return len(c.Code) - 1
}

// Patch rewrites the target of a previously emitted jump instruction —
// used by the backpatching pass once a jump's destination is known.
func (c *Chunk) Patch(ip int, target int) {
	c.Code[ip].A = target
}

func (c *Chunk) Len() int { return len(c.Code) }

func (c *Chunk) DebugAt(ip int) DebugInfo {
	if ip >= 0 && ip < len(c.Debug) {
		return c.Debug[ip]
	}
	return DebugInfo{}
}

// FunctionByIndex returns the FunctionInfo for the given func_index, the
// same index CallDynamic* candidates and Call(idx,argc) operands use.
func (c *Chunk) FunctionByIndex(idx int) (*FunctionInfo, bool) {
	if idx < 0 || idx >= len(c.Functions) {
		return nil, false
	}
	return &c.Functions[idx], true
}
