package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convolang/convo/parser"
)

func substInst() parser.Instruction {
	return parser.Instruction{Command: parser.CmdSpeak, Text: "Speak:", LineNumber: 1}
}

func TestSubstitutePromotesBareVariables(t *testing.T) {
	e, ses, conv, _ := fixtureConv(t, map[string][]string{"mood": {"cheerful"}})
	got := e.substitute(ses, conv, substInst(), "you sound mood today", false)
	assert.Equal(t, "you sound cheerful today", got)
}

func TestSubstituteQuotedLiteralKeepsQuotes(t *testing.T) {
	e, ses, conv, _ := fixtureConv(t, map[string][]string{"mood": {"cheerful"}})
	got := e.substitute(ses, conv, substInst(), `"mood is just a word"`, false)
	assert.Equal(t, `"mood is just a word"`, got)
}

func TestSubstituteBracedInsideQuotes(t *testing.T) {
	e, ses, conv, _ := fixtureConv(t, map[string][]string{"mood": {"cheerful"}})
	got := e.substitute(ses, conv, substInst(), `"you sound {mood} today"`, false)
	assert.Equal(t, `"you sound cheerful today"`, got)
}

func TestSubstituteHistoryIndexing(t *testing.T) {
	e, ses, conv, _ := fixtureConv(t, map[string][]string{
		"answer": {"blue", "red"},
	})
	assert.Equal(t, `"red"`, e.substitute(ses, conv, substInst(), `"{answer[1]}"`, false))
	assert.Equal(t, `"blue, red"`, e.substitute(ses, conv, substInst(), `"{answer[*]}"`, false))
	assert.Equal(t, `"blue"`, e.substitute(ses, conv, substInst(), `"{answer}"`, false))
}

func TestSubstituteUndeclaredReadsEmpty(t *testing.T) {
	e, ses, conv, h := fixtureConv(t, nil)
	got := e.substitute(ses, conv, substInst(), `"hello {nobody}"`, false)
	assert.Equal(t, `"hello "`, got)
	require.Len(t, h.errors, 1)
	assert.Equal(t, "undeclared variable", h.errors[0].Kind)
	assert.Equal(t, "nobody", h.errors[0].Detail)
}

func TestSubstituteSkipsAssignmentTargets(t *testing.T) {
	e, ses, conv, _ := fixtureConv(t, map[string][]string{
		"score": {"1"},
		"bonus": {"5"},
	})
	got := e.substitute(ses, conv, substInst(), "score = bonus", false)
	assert.Equal(t, "score = 5", got)
}

func TestSubstitutePromotesComparisons(t *testing.T) {
	e, ses, conv, _ := fixtureConv(t, map[string][]string{"score": {"3"}})
	got := e.substitute(ses, conv, substInst(), "score == 3", false)
	assert.Equal(t, "3 == 3", got)
}

func TestSubstituteEnclosingScope(t *testing.T) {
	e, ses, outer, _ := fixtureConv(t, map[string][]string{"topic": {"tides"}})
	inner := NewConversation(parser.New(parser.Options{}).Parse("Script: Inner\nExit\n"), "inner")
	ses.stack.Push(inner)
	got := e.substitute(ses, inner, substInst(), `"about {topic}"`, false)
	assert.Equal(t, `"about tides"`, got)
	_ = outer
}

func TestSplitCallAware(t *testing.T) {
	got := splitCallAware("pick select_one(choices, 3) now")
	assert.Equal(t, []string{"pick", "select_one(choices, 3)", "now"}, got)
}
