package parser

import "strings"

// CommandKind identifies the operation a script line performs. Every
// instruction resolves to exactly one kind; lines that cannot be resolved
// keep CmdNone and are skipped at runtime.
type CommandKind int

const (
	CmdNone CommandKind = iota

	// Header commands, valid before executable code.
	CmdScript
	CmdAuthor
	CmdDescription
	CmdTimeout
	CmdLanguage
	CmdSynonym
	CmdClaps

	// Declarations and control flow.
	CmdVariable
	CmdLoop
	CmdCase
	CmdIf
	CmdElse
	CmdGoto
	CmdTag
	CmdSet

	// Actions.
	CmdExecute
	CmdSpeak
	CmdNameSpeak
	CmdReconvey
	CmdNameReconvey
	CmdSubValues
	CmdSubKey
	CmdPython
	CmdEmail
	CmdRun
	CmdExit

	// A bare variable-function call (voice_input, select_one, ...).
	// The function name lives in the FuncCall payload.
	CmdVarFunc
)

var kindNames = map[CommandKind]string{
	CmdNone:         "none",
	CmdScript:       "script",
	CmdAuthor:       "author",
	CmdDescription:  "description",
	CmdTimeout:      "timeout",
	CmdLanguage:     "language",
	CmdSynonym:      "synonym",
	CmdClaps:        "claps",
	CmdVariable:     "variable",
	CmdLoop:         "loop",
	CmdCase:         "case",
	CmdIf:           "if",
	CmdElse:         "else",
	CmdGoto:         "goto",
	CmdTag:          "tag",
	CmdSet:          "set",
	CmdExecute:      "execute",
	CmdSpeak:        "speak",
	CmdNameSpeak:    "name speak",
	CmdReconvey:     "reconvey",
	CmdNameReconvey: "name reconvey",
	CmdSubValues:    "sub_values",
	CmdSubKey:       "sub_key",
	CmdPython:       "python",
	CmdEmail:        "email",
	CmdRun:          "run",
	CmdExit:         "exit",
	CmdVarFunc:      "varfunc",
}

func (k CommandKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// keywordEntry maps a literal keyword at line start to a command kind.
// Entries are matched in order, so longer keywords ("name speak") must
// precede their prefixes ("speak" would otherwise shadow them).
type keywordEntry struct {
	word string
	kind CommandKind
}

var keywords = []keywordEntry{
	{"description", CmdDescription},
	{"name speak", CmdNameSpeak},
	{"neon speak", CmdSpeak},
	{"name reconvey", CmdNameReconvey},
	{"sub_values", CmdSubValues},
	{"sub_key", CmdSubKey},
	{"voice_input", CmdVarFunc},
	{"reconvey", CmdReconvey},
	{"language", CmdLanguage},
	{"variable", CmdVariable},
	{"synonym", CmdSynonym},
	{"timeout", CmdTimeout},
	{"execute", CmdExecute},
	{"script", CmdScript},
	{"author", CmdAuthor},
	{"python", CmdPython},
	{"claps", CmdClaps},
	{"speak", CmdSpeak},
	{"email", CmdEmail},
	{"case", CmdCase},
	{"loop", CmdLoop},
	{"goto", CmdGoto},
	{"else", CmdElse},
	{"exit", CmdExit},
	{"tag", CmdTag},
	{"run", CmdRun},
	{"set", CmdSet},
	{"if", CmdIf},
	{"@", CmdTag},
}

// VariableFunctions are the built-in value-producing functions that may
// appear as bare commands or inside variable assignments.
var VariableFunctions = []string{
	"select_one", "voice_input", "table_scrape", "random", "closest", "profile",
}

// IsVariableFunction reports whether name is a built-in variable function.
func IsVariableFunction(name string) bool {
	for _, f := range VariableFunctions {
		if f == name {
			return true
		}
	}
	return false
}

// noImplicitMultiline lists commands that never carry over to subsequent
// lines through indentation alone.
var noImplicitMultiline = map[CommandKind]bool{
	CmdIf:   true,
	CmdElse: true,
	CmdCase: true,
	CmdLoop: true,
	CmdGoto: true,
	CmdTag:  true,
}

// headerKinds are commands that may appear before executable code; the
// engine skips past them when a conversation starts.
var headerKinds = map[CommandKind]bool{
	CmdScript:      true,
	CmdDescription: true,
	CmdAuthor:      true,
	CmdTimeout:     true,
	CmdClaps:       true,
	CmdSynonym:     true,
}

// IsHeader reports whether k is a header command.
func (k CommandKind) IsHeader() bool { return headerKinds[k] }

// matchKeyword resolves an explicit keyword at the start of a line.
// A keyword only counts as a command when the line shape supports it:
// a colon somewhere on the line, a bare @tag, nothing but the keyword,
// a function-call remainder, or (for loop) the literal LOOP marker.
func matchKeyword(line string) (CommandKind, string, bool) {
	txt := strings.TrimSpace(strings.TrimLeft(strings.ToLower(line), "."))
	for _, kw := range keywords {
		if !strings.HasPrefix(txt, kw.word) {
			continue
		}
		rest := strings.TrimSpace(strings.TrimPrefix(txt, kw.word))
		switch {
		case strings.Contains(txt, ":"),
			strings.HasPrefix(txt, "@"),
			rest == "",
			kw.kind == CmdLoop && strings.Contains(line, "LOOP"),
			strings.HasPrefix(rest, "("),
			strings.HasPrefix(rest, "{"):
			return kw.kind, kw.word, true
		}
	}
	return CmdNone, "", false
}
