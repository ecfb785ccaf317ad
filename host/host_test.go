package host

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convolang/convo/parser"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, "Convo", cfg.SpeakerName)
	assert.Equal(t, "en-us", cfg.DefaultLanguage)
	assert.Equal(t, 10*time.Second, cfg.ResponseTimeout())
}

func TestLoadConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
speaker_name = "Mira"
wake_word = "hey mira"
response_timeout_seconds = 3

[profile.user]
email = "mira@example.com"
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "Mira", cfg.SpeakerName)
	assert.Equal(t, "hey mira", cfg.WakeWord)
	assert.Equal(t, 3*time.Second, cfg.ResponseTimeout())
	assert.Equal(t, "mira@example.com", cfg.Profile["user"]["email"])
	// Unset keys keep their defaults.
	assert.Equal(t, "en-us", cfg.DefaultLanguage)
}

func TestLoadConfigMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("speaker_name = [broken"), 0o644))
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestFindScriptByName(t *testing.T) {
	dir := t.TempDir()
	src := "Script: Hello Test\nSpeak: hi\nExit\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello_test.cv"), []byte(src), 0o644))

	cfg := DefaultConfig()
	cfg.ScriptDirs = []string{dir}
	h := New(cfg, nil, os.Stdout)

	path, err := h.findScript("Hello Test")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "hello_test.cv"), path)

	_, err = h.findScript("no such script")
	assert.Error(t, err)
}

func TestLoadParsesSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "greet.cv")
	require.NoError(t, os.WriteFile(path, []byte("Script: Greet\nSpeak: hello\nExit\n"), 0o644))

	h := New(DefaultConfig(), nil, os.Stdout)
	script, err := h.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Greet", script.Meta.Title)
	require.NotEmpty(t, script.Instructions)
}

func TestSpeakFormatsSpeaker(t *testing.T) {
	var buf strings.Builder
	h := New(DefaultConfig(), nil, &buf)
	h.Speak("u", "hello there", parser.Speaker{Name: "Mira"})
	assert.Equal(t, "Mira: hello there\n", buf.String())

	buf.Reset()
	h.Speak("u", "hi", parser.Speaker{})
	assert.Equal(t, "Convo: hi\n", buf.String())
}

func TestLookupPreference(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Profile = map[string]map[string]string{"user": {"email": "a@b.c"}}
	h := New(cfg, nil, os.Stdout)

	v, ok := h.LookupPreference("u", "user", "email")
	assert.True(t, ok)
	assert.Equal(t, "a@b.c", v)

	_, ok = h.LookupPreference("u", "user", "phone")
	assert.False(t, ok)
	_, ok = h.LookupPreference("u", "speech", "rate")
	assert.False(t, ok)
}
