package engine

import (
	"errors"
	"strings"
)

// ErrEmptyStack is returned when a pop is attempted with no active
// conversation.
var ErrEmptyStack = errors.New("conversation stack is empty")

// Stack is the call stack of nested script invocations for one user.
// The top is the running conversation; entries beneath it are callers
// suspended on a run command.
type Stack struct {
	conversations []*Conversation

	// userScope holds "script.variable" values promoted from popped
	// conversations. It outlives the conversations themselves.
	userScope map[string]string
}

// NewStack returns an empty conversation stack.
func NewStack() *Stack {
	return &Stack{userScope: make(map[string]string)}
}

// Push makes c the running conversation.
func (s *Stack) Push(c *Conversation) {
	s.conversations = append(s.conversations, c)
}

// Pop removes and returns the running conversation.
func (s *Stack) Pop() (*Conversation, error) {
	if len(s.conversations) == 0 {
		return nil, ErrEmptyStack
	}
	top := s.conversations[len(s.conversations)-1]
	s.conversations = s.conversations[:len(s.conversations)-1]
	return top, nil
}

// Current returns the running conversation, or nil when idle.
func (s *Stack) Current() *Conversation {
	if len(s.conversations) == 0 {
		return nil
	}
	return s.conversations[len(s.conversations)-1]
}

// Len reports the number of active conversations.
func (s *Stack) Len() int { return len(s.conversations) }

// PromoteToUserScope stores the newest value of every variable in c
// under its qualified "script.variable" name, overwriting prior values.
// Called when c is popped so later scripts can still read its results.
func (s *Stack) PromoteToUserScope(c *Conversation) {
	for name, vals := range c.Variables {
		if len(vals) == 0 {
			continue
		}
		s.userScope[c.ScriptName+"."+name] = vals[0]
	}
}

// LookupQualified resolves a "script.variable" name, preferring a live
// suspended conversation over the promoted user scope.
func (s *Stack) LookupQualified(name string) (string, bool) {
	script, variable, ok := strings.Cut(name, ".")
	if !ok {
		return "", false
	}
	for i := len(s.conversations) - 1; i >= 0; i-- {
		c := s.conversations[i]
		if c.ScriptName != script {
			continue
		}
		if val, ok := c.Value(variable); ok {
			return val, true
		}
	}
	val, ok := s.userScope[name]
	return val, ok
}

// LookupEnclosing scans suspended callers beneath the top for an
// unqualified variable and returns its history.
func (s *Stack) LookupEnclosing(name string) ([]string, bool) {
	for i := len(s.conversations) - 2; i >= 0; i-- {
		vals, ok := s.conversations[i].Variables[name]
		if ok && len(vals) > 0 {
			return vals, true
		}
	}
	return nil, false
}

// UserScope exposes the promoted variable map for inspection.
func (s *Stack) UserScope() map[string]string { return s.userScope }
