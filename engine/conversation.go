// Package engine executes parsed conversation scripts. Each user gets an
// isolated session holding a stack of Conversation records; the engine
// advances the top of the stack one instruction at a time, suspending
// whenever a script waits on outside input.
package engine

import (
	"time"

	"github.com/convolang/convo/parser"
)

// Conversation is the mutable runtime state of one running script. A new
// record is pushed when a script starts (directly or through run) and
// popped when it exits. Only the stack top is ever mutated.
type Conversation struct {
	Script     *parser.Script
	ScriptName string

	// CurrentIndex addresses Script.Instructions, not source lines.
	CurrentIndex int
	LastIndent   int

	// Variables holds per-variable value history, newest first.
	Variables map[string][]string
	// Links holds label-to-URL tables produced by table_scrape, kept
	// apart from plain string histories.
	Links map[string]map[string]string
	// AudioResponses maps variable names to recorded audio paths for
	// reconvey, newest first.
	AudioResponses map[string][]string

	// VariableToFill names the variable the next utterance is assigned
	// to while suspended on voice input. It may carry a ",list" suffix
	// constraining acceptable values.
	VariableToFill string
	// LastRequest correlates an in-flight execute request with its
	// eventual response.
	LastRequest string
	// SubCounters drives round-robin response selection in sub_key,
	// keyed by the raw pattern entry.
	SubCounters map[string]int

	Speaker        parser.Speaker
	TimeoutSeconds int
	TimeoutAction  string
	StartedAt      time.Time
}

// NewConversation builds the runtime record for a parsed script.
// Declared variables start with empty histories.
func NewConversation(script *parser.Script, name string) *Conversation {
	vars := make(map[string][]string, len(script.Variables))
	for _, v := range script.Variables {
		vars[v] = nil
	}
	return &Conversation{
		Script:         script,
		ScriptName:     name,
		Variables:      vars,
		Links:          make(map[string]map[string]string),
		AudioResponses: make(map[string][]string),
		SubCounters:    make(map[string]int),
		Speaker:        script.Speaker,
		TimeoutSeconds: script.TimeoutSeconds,
		TimeoutAction:  script.TimeoutAction,
		StartedAt:      time.Now(),
	}
}

// PushValue prepends a value to a variable's history so index zero is
// always the most recent.
func (c *Conversation) PushValue(name, value string) {
	c.Variables[name] = append([]string{value}, c.Variables[name]...)
}

// Value returns the most recent value of a variable and whether the
// variable holds one.
func (c *Conversation) Value(name string) (string, bool) {
	vals := c.Variables[name]
	if len(vals) == 0 {
		return "", false
	}
	return vals[0], true
}

// PushAudio records an audio file path alongside a variable's spoken
// value.
func (c *Conversation) PushAudio(name, path string) {
	c.AudioResponses[name] = append([]string{path}, c.AudioResponses[name]...)
}

// Instruction returns the instruction at CurrentIndex. ok is false when
// the index has run past the end of the script.
func (c *Conversation) Instruction() (parser.Instruction, bool) {
	if c.CurrentIndex < 0 || c.CurrentIndex >= len(c.Script.Instructions) {
		return parser.Instruction{}, false
	}
	return c.Script.Instructions[c.CurrentIndex], true
}
