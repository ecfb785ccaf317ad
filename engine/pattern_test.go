package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convolang/convo/parser"
)

func patternFixture(t *testing.T, vars map[string][]string) (*Engine, *session, *Conversation) {
	t.Helper()
	e, ses, conv, _ := fixtureConv(t, vars)
	return e, ses, conv
}

func subKeyInst() parser.Instruction {
	return parser.Instruction{Command: parser.CmdSubKey, Text: "sub_key(input, patterns):", LineNumber: 1}
}

func TestSubKeyWildcardBinding(t *testing.T) {
	e, ses, conv := patternFixture(t, map[string][]string{
		"input":    {"hello world"},
		"patterns": {`"hello *" "hi {_wildcard_1}"`},
	})
	require.NoError(t, e.runSubKey(ses, conv, subKeyInst()))
	assert.Equal(t, "world", conv.Variables["_wildcard_1"][0])
	assert.Equal(t, "hi world", conv.Variables["input"][0])
}

func TestSubKeyRoundRobin(t *testing.T) {
	e, ses, conv := patternFixture(t, map[string][]string{
		"input":    {"hello there"},
		"patterns": {`"hello" "hey" "good day"`},
	})
	require.NoError(t, e.runSubKey(ses, conv, subKeyInst()))
	assert.Equal(t, "hey", conv.Variables["input"][0])

	conv.Variables["input"] = []string{"hello again"}
	require.NoError(t, e.runSubKey(ses, conv, subKeyInst()))
	assert.Equal(t, "good day", conv.Variables["input"][0])

	conv.Variables["input"] = []string{"hello once more"}
	require.NoError(t, e.runSubKey(ses, conv, subKeyInst()))
	assert.Equal(t, "hey", conv.Variables["input"][0])
}

func TestSubKeyPerspectiveFlip(t *testing.T) {
	e, ses, conv := patternFixture(t, map[string][]string{
		"input":    {"my job makes me sad"},
		"patterns": {`"{x} makes me sad" "why does {x} make you sad"`},
	})
	require.NoError(t, e.runSubKey(ses, conv, subKeyInst()))
	assert.Equal(t, "your job", conv.Variables["x"][0])
	assert.Equal(t, "why does your job make you sad", conv.Variables["input"][0])
}

func TestSubKeyTrailingCaptureKeepsPerspective(t *testing.T) {
	e, ses, conv := patternFixture(t, map[string][]string{
		"input":    {"i dreamed about my garden"},
		"patterns": {`"i dreamed about {dream}" "tell me more about {dream}"`},
	})
	require.NoError(t, e.runSubKey(ses, conv, subKeyInst()))
	assert.Equal(t, "my garden", conv.Variables["dream"][0])
	assert.Equal(t, "tell me more about my garden", conv.Variables["input"][0])
}

func TestSubKeyListSegment(t *testing.T) {
	e, ses, conv := patternFixture(t, map[string][]string{
		"input":     {"hello friend"},
		"greetings": {`"hi"`, `"hello"`},
		"patterns":  {`"[greetings] friend" "well met"`},
	})
	require.NoError(t, e.runSubKey(ses, conv, subKeyInst()))
	assert.Equal(t, "hello", conv.Variables["_greetings_"][0])
	assert.Equal(t, "well met", conv.Variables["input"][0])
}

func TestSubKeyNoMatchLeavesInput(t *testing.T) {
	e, ses, conv := patternFixture(t, map[string][]string{
		"input":    {"tell me a joke"},
		"patterns": {`"weather" "it is sunny"`},
	})
	require.NoError(t, e.runSubKey(ses, conv, subKeyInst()))
	assert.Equal(t, []string{"tell me a joke"}, conv.Variables["input"])
}

func TestSubValues(t *testing.T) {
	e, ses, conv := patternFixture(t, map[string][]string{
		"input": {"how r u"},
		"subs":  {`"r" "are"`, `"u" "you"`},
	})
	inst := parser.Instruction{Command: parser.CmdSubValues, Text: "sub_values(input, subs):", LineNumber: 1}
	require.NoError(t, e.runSubValues(ses, conv, inst))
	assert.Equal(t, "how are you", conv.Variables["input"][0])
	assert.Len(t, conv.Variables["input"], 1)
}

func TestSubValuesWholeWordsOnly(t *testing.T) {
	e, ses, conv := patternFixture(t, map[string][]string{
		"input": {"rural area"},
		"subs":  {`"r" "are"`},
	})
	inst := parser.Instruction{Command: parser.CmdSubValues, Text: "sub_values(input, subs):", LineNumber: 1}
	require.NoError(t, e.runSubValues(ses, conv, inst))
	assert.Equal(t, "rural area", conv.Variables["input"][0])
}

func TestSegmentize(t *testing.T) {
	segs := segmentize("i dreamed about {dream} last [timewords]")
	require.Len(t, segs, 4)
	assert.Equal(t, segLiteral, segs[0].kind)
	assert.Equal(t, "i dreamed about ", segs[0].text)
	assert.Equal(t, segVariable, segs[1].kind)
	assert.Equal(t, "dream", segs[1].capture)
	assert.Equal(t, segLiteral, segs[2].kind)
	assert.Equal(t, segList, segs[3].kind)
	assert.Equal(t, "timewords", segs[3].capture)
}

func TestFlipPerspective(t *testing.T) {
	assert.Equal(t, "you are talking about your dog", flipPerspective("i am talking about my dog"))
	assert.Equal(t, "nothing changes here", flipPerspective("nothing changes here"))
}
