package cache

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convolang/convo/parser"
)

const sampleSource = `
Script: Cached Sample
Variable: answer
Variable: choices = "tea", "coffee"

Speak: What would you like?
voice_input(answer)
Exit
`

func TestWriteReadFileRoundTrip(t *testing.T) {
	script := parser.New(parser.Options{}).Parse(sampleSource)
	require.NotEmpty(t, script.Instructions)

	path := filepath.Join(t.TempDir(), "sample.cvc")
	require.NoError(t, WriteFile(path, script))

	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, script.Meta.Title, got.Meta.Title)
	assert.Equal(t, script.Variables, got.Variables)
	require.Len(t, got.Instructions, len(script.Instructions))
	for i, inst := range script.Instructions {
		assert.Equal(t, inst.Command, got.Instructions[i].Command, "instruction %d", i)
		assert.Equal(t, inst.Text, got.Instructions[i].Text, "instruction %d", i)
		assert.Equal(t, inst.Indent, got.Instructions[i].Indent, "instruction %d", i)
	}
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "absent.cvc"))
	assert.Error(t, err)
}

func TestKeyStability(t *testing.T) {
	k := Key(sampleSource)
	assert.Len(t, k, 16)
	assert.Equal(t, k, Key(sampleSource))
	assert.NotEqual(t, k, Key(sampleSource+"\nSpeak: more"))
}
