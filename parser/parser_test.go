package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"kr.dev/diff"
)

const sampleScript = `Script: Demo Quiz
Author: tester
Description: A small quiz
Timeout: 30 "time is up"
Synonym: demo quiz, the quiz
Claps: 2 start the quiz
Language: en-us male

Variable: answer
Variable: greeting = "hello there"
Variable: lines
    first line
    second line

@start
Speak: Welcome to the quiz
voice_input(answer)
Case {answer}:
    "red":
        Speak: Warm choice
    "blue"
        Speak: Cool choice
LOOP ask START
    Speak: Again?
    voice_input(answer)
LOOP ask UNTIL answer IS no
Exit
`

func parseSample(t *testing.T) *Script {
	t.Helper()
	return New(Options{}).Parse(sampleScript)
}

func TestParseHeaders(t *testing.T) {
	s := parseSample(t)
	assert.Equal(t, "Demo Quiz", s.Meta.Title)
	assert.Equal(t, "tester", s.Meta.Author)
	assert.Equal(t, "A small quiz", s.Meta.Description)
	assert.Equal(t, 30, s.TimeoutSeconds)
	assert.Equal(t, "time is up", s.TimeoutAction)
	assert.Equal(t, []string{"demo quiz", "the quiz"}, s.Synonyms)
	assert.Equal(t, map[string]string{"2": "start the quiz"}, s.Claps)
}

func TestParseLanguage(t *testing.T) {
	s := parseSample(t)
	diff.Test(t, t.Errorf, s.Speaker, Speaker{
		Name:         "Convo",
		Language:     "en-us",
		Gender:       "male",
		OverrideUser: true,
	})
}

func TestParseVariables(t *testing.T) {
	s := parseSample(t)
	assert.Equal(t, []string{"answer", "greeting", "lines"}, s.Variables)

	var decls []VariableDecl
	for _, inst := range s.Instructions {
		if d, ok := inst.Data.(VariableDecl); ok {
			decls = append(decls, d)
		}
	}
	require.Len(t, decls, 5)
	assert.Equal(t, VariableDecl{Name: "answer"}, decls[0])
	assert.Equal(t, VariableDecl{Name: "greeting", Value: `"hello there"`}, decls[1])
	assert.Equal(t, VariableDecl{Name: "lines"}, decls[2])
	assert.Equal(t, VariableDecl{Name: "lines", Value: "first line", Continuation: true}, decls[3])
	assert.Equal(t, VariableDecl{Name: "lines", Value: "second line", Continuation: true}, decls[4])
}

func TestParseTagsAndLoops(t *testing.T) {
	s := parseSample(t)
	require.Contains(t, s.Tags, "start")

	lp, ok := s.Loops["ask"]
	require.True(t, ok)
	assert.Greater(t, lp.End, lp.Start)
	assert.Equal(t, "answer", lp.EndVariable)
	assert.Equal(t, "no", lp.EndValue)
}

func TestParseCaseStructure(t *testing.T) {
	s := parseSample(t)

	byLine := func(line int) Instruction {
		idx, ok := s.IndexForLine(line)
		require.True(t, ok, "line %d not parsed", line)
		return s.Instructions[idx]
	}

	caseLine := byLine(18)
	assert.Equal(t, CmdCase, caseLine.Command)
	assert.Equal(t, []int{0}, caseLine.ParentCaseIndents)

	// Branch conditions sit one level under the case, with or without
	// an explicit trailing colon.
	red := byLine(19)
	assert.Equal(t, CmdCase, red.Command)
	blue := byLine(21)
	assert.Equal(t, CmdCase, blue.Command)

	// Speak lines inside branches still carry the case snapshot.
	warm := byLine(20)
	assert.Equal(t, CmdSpeak, warm.Command)
	assert.Equal(t, []int{0}, warm.ParentCaseIndents)

	// Outdenting past the branches closes the case.
	loopStart := byLine(23)
	assert.Equal(t, CmdLoop, loopStart.Command)
	assert.Empty(t, loopStart.ParentCaseIndents)
}

func TestParseCommandResolution(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []CommandKind
	}{
		{
			name: "implicit speak continuation",
			src:  "Speak: first\n    second\n    third\n",
			want: []CommandKind{CmdSpeak, CmdSpeak, CmdSpeak},
		},
		{
			name: "assignment to declared variable",
			src:  "Variable: x\nx = 5\n",
			want: []CommandKind{CmdVariable, CmdSet},
		},
		{
			name: "keyword requires command shape",
			src:  "Speak: exit is down the hall\n",
			want: []CommandKind{CmdSpeak},
		},
		{
			name: "bare exit",
			src:  "Exit\n",
			want: []CommandKind{CmdExit},
		},
		{
			name: "at sign tag",
			src:  "@here\nGoto: here\n",
			want: []CommandKind{CmdTag, CmdGoto},
		},
		{
			name: "variable function call",
			src:  "select_one(x)\n",
			want: []CommandKind{CmdVarFunc},
		},
		{
			name: "neon speak alias",
			src:  "Neon speak: hello\n",
			want: []CommandKind{CmdSpeak},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(Options{}).Parse(tt.src)
			var got []CommandKind
			for _, inst := range s.Instructions {
				got = append(got, inst.Command)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDotIndent(t *testing.T) {
	src := "Speak: top\n....indented line\n"
	s := New(Options{}).Parse(src)
	require.Len(t, s.Instructions, 2)
	assert.Equal(t, 1, s.Instructions[1].Indent)
	assert.Equal(t, "indented line", s.Instructions[1].Text)
	assert.Equal(t, CmdSpeak, s.Instructions[1].Command)
}

func TestParseCommentsAndBlanks(t *testing.T) {
	src := "# comment\nSpeak: hello\n\n\"\"\"\nblock comment\n\"\"\"\nSpeak: goodbye\n"
	s := New(Options{}).Parse(src)
	require.Len(t, s.Instructions, 2)
	assert.Equal(t, "hello", s.Instructions[0].Text)
	assert.Equal(t, "goodbye", s.Instructions[1].Text)
}

func TestParseIndentDiagnostic(t *testing.T) {
	src := "Speak: hi\n   ragged indent\n"
	s := New(Options{}).Parse(src)
	require.NotEmpty(t, s.Diagnostics)
	assert.Equal(t, 2, s.Diagnostics[0].Line)
	// The line still parses.
	require.Len(t, s.Instructions, 2)
}

func TestParseDuplicateTag(t *testing.T) {
	src := "@again\nSpeak: one\n@again\n"
	s := New(Options{}).Parse(src)
	assert.Equal(t, 1, s.Tags["again"])
	require.NotEmpty(t, s.Diagnostics)
}

func TestParseUnresolvedLine(t *testing.T) {
	s := New(Options{}).Parse("Goto: nowhere\nmystery line\n")
	require.Len(t, s.Instructions, 2)
	assert.Equal(t, CmdNone, s.Instructions[1].Command)
	assert.NotEmpty(t, s.Diagnostics)
}

func TestParseStable(t *testing.T) {
	a := New(Options{}).Parse(sampleScript)
	b := New(Options{}).Parse(sampleScript)
	b.Meta.CompiledAt = a.Meta.CompiledAt
	diff.Test(t, t.Errorf, a, b)
}

func TestSplitParams(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{`a, b, c`, []string{"a", "b", "c"}},
		{`"hello, there", file`, []string{`"hello, there"`, "file"}},
		{`"one"`, []string{`"one"`}},
		{`'single', "double"`, []string{`'single'`, `"double"`}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SplitParams(tt.text, ","), "text=%q", tt.text)
	}
}
