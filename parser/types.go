package parser

// Payload carries command-specific fields parsed at load time.
// Concrete payload types are registered with encoding/gob by the cache
// package so compiled scripts round-trip.
type Payload interface {
	payload()
}

// VariableDecl is attached to variable declaration lines and their
// indented continuations.
type VariableDecl struct {
	Name string
	// Value is this line's own contribution to the variable body; the
	// engine appends it when the line executes. Empty for bare
	// declarations.
	Value string
	// DeclIndent is the indent of the declaring line. Continuation lines
	// must be indented strictly deeper.
	DeclIndent int
	// Continuation marks a folded multi-line body line.
	Continuation bool
}

func (VariableDecl) payload() {}

// ReconveyArgs is attached to reconvey lines carrying explicit parameters.
type ReconveyArgs struct {
	Name string // speaker, "name reconvey" only
	Text string // literal text or variable holding it
	File string // optional audio file or variable holding a path
}

func (ReconveyArgs) payload() {}

// FuncCall is attached to bare variable-function command lines.
type FuncCall struct {
	Name string
}

func (FuncCall) payload() {}

// Instruction is one compiled, executable unit corresponding to a source
// line. Instructions are immutable once parsing completes.
type Instruction struct {
	LineNumber int
	Indent     int
	Text       string
	Command    CommandKind
	// ParentCaseIndents is the stack of indent levels at which enclosing
	// case blocks were opened, oldest first. Each instruction holds its
	// own snapshot; closing a case block produces a shorter copy rather
	// than mutating earlier snapshots.
	ParentCaseIndents []int
	Data              Payload
}

// Loop records the boundaries of a named loop and its optional end
// condition. Line numbers are source lines, not instruction indexes.
type Loop struct {
	Start       int
	End         int
	EndVariable string
	EndValue    string
}

// Speaker describes who delivers spoken lines.
type Speaker struct {
	Name         string
	Language     string
	Gender       string
	OverrideUser bool
}

// Meta is the compiler metadata record appended to compiled scripts.
type Meta struct {
	CompilerVersion string
	CompiledAt      int64
	Title           string
	Author          string
	Description     string
	RawSource       string
}

// Diagnostic is a recoverable parse problem located at a source line.
type Diagnostic struct {
	Line    int
	Message string
}

// Script is the parsed, immutable form of a conversation script.
type Script struct {
	Instructions []Instruction
	// Variables lists declared variable names in source order. Values are
	// populated only at execution time.
	Variables      []string
	Loops          map[string]Loop
	Tags           map[string]int
	Speaker        Speaker
	TimeoutSeconds int
	TimeoutAction  string
	Synonyms       []string
	Claps          map[string]string
	Meta           Meta
	Diagnostics    []Diagnostic
}

// HasVariable reports whether name was declared in the script.
func (s *Script) HasVariable(name string) bool {
	for _, v := range s.Variables {
		if v == name {
			return true
		}
	}
	return false
}

// IndexForLine resolves an original source line number to an instruction
// index. Jump targets are recorded as line numbers at parse time, so the
// engine goes through here for every goto, loop, and tag jump.
func (s *Script) IndexForLine(line int) (int, bool) {
	for i := range s.Instructions {
		if s.Instructions[i].LineNumber == line {
			return i, true
		}
	}
	return 0, false
}
