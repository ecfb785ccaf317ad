// Package host wires the engine to the outside world: it loads
// configuration, resolves script names to parsed scripts through the
// compiled cache, and provides console-backed collaborator defaults so
// the CLI can run scripts without a full voice stack.
package host

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the on-disk configuration, read from
// ~/.config/convo/config.toml unless another path is given.
type Config struct {
	// ScriptDirs are searched in order when resolving a script name.
	ScriptDirs []string `toml:"script_dirs"`
	// AudioDir holds per-script audio subdirectories for reconvey.
	AudioDir string `toml:"audio_dir"`

	DefaultLanguage string `toml:"default_language"`
	DefaultGender   string `toml:"default_gender"`
	SpeakerName     string `toml:"speaker_name"`
	WakeWord        string `toml:"wake_word"`

	// ResponseTimeoutSeconds bounds how long execute waits for the
	// host to answer.
	ResponseTimeoutSeconds int `toml:"response_timeout_seconds"`

	// Profile holds per-section user preferences served to the
	// profile() function, e.g. [profile.user] email = "...".
	Profile map[string]map[string]string `toml:"profile"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		ScriptDirs:             []string{filepath.Join(home, ".local", "share", "convo", "scripts"), "."},
		AudioDir:               filepath.Join(home, ".local", "share", "convo", "audio"),
		DefaultLanguage:        "en-us",
		DefaultGender:          "female",
		SpeakerName:            "Convo",
		WakeWord:               "convo",
		ResponseTimeoutSeconds: 10,
	}
}

// DefaultConfigPath is where LoadConfig looks when given no path.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.toml"
	}
	return filepath.Join(home, ".config", "convo", "config.toml")
}

// LoadConfig reads a config file over the defaults. A missing file is
// not an error; a malformed one is.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = DefaultConfigPath()
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("loading config %s: %w", path, err)
	}
	return cfg, nil
}

// ResponseTimeout returns the configured execute timeout as a duration.
func (c Config) ResponseTimeout() time.Duration {
	if c.ResponseTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.ResponseTimeoutSeconds) * time.Second
}
