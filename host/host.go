package host

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/convolang/convo/cache"
	"github.com/convolang/convo/engine"
	"github.com/convolang/convo/parser"
	"github.com/convolang/convo/scrape"
)

// Host is the console implementation of the engine's collaborator and
// loader contracts. Speech goes to a writer, preferences come from the
// config, and scraping uses the real network.
type Host struct {
	cfg Config
	log *log.Logger
	out io.Writer

	// resolver, when set, receives execute responses back. The CLI
	// points this at the engine so execute never waits out its full
	// timeout.
	resolver func(user, request, response string)
}

// New builds a host around a config. Output defaults to stdout.
func New(cfg Config, logger *log.Logger, out io.Writer) *Host {
	if logger == nil {
		logger = log.Default()
	}
	if out == nil {
		out = os.Stdout
	}
	return &Host{cfg: cfg, log: logger, out: out}
}

// SetResolver installs the callback that answers execute requests.
func (h *Host) SetResolver(fn func(user, request, response string)) {
	h.resolver = fn
}

func (h *Host) Speak(user, text string, speaker parser.Speaker) {
	name := speaker.Name
	if name == "" {
		name = h.cfg.SpeakerName
	}
	fmt.Fprintf(h.out, "%s: %s\n", name, text)
}

// ExecuteUtterance has no second skill to delegate to on the console;
// it echoes the request and resolves it immediately so scripts keep
// moving.
func (h *Host) ExecuteUtterance(user, text string) {
	h.log.Info("execute", "user", user, "utterance", text)
	fmt.Fprintf(h.out, "[execute] %s\n", text)
	if h.resolver != nil {
		go h.resolver(user, text, "")
	}
}

func (h *Host) LookupPreference(user, section, key string) (string, bool) {
	vals, ok := h.cfg.Profile[section]
	if !ok {
		return "", false
	}
	v, ok := vals[key]
	return v, ok
}

func (h *Host) ScrapeLinks(url string) (map[string]string, error) {
	return scrape.Links(url)
}

func (h *Host) PlayAudio(user, path string) error {
	fmt.Fprintf(h.out, "[audio] %s\n", path)
	return nil
}

func (h *Host) SendEmail(user, title, body string) error {
	h.log.Info("email", "user", user, "title", title, "bytes", len(body))
	fmt.Fprintf(h.out, "[email] %s\n%s\n", title, body)
	return nil
}

func (h *Host) ReportError(user string, err *engine.LineError) {
	fmt.Fprintln(h.out, err.Spoken())
}

// Load resolves a script name or path to a parsed script. Compiled
// .cvc files load directly; source goes through the hash-keyed cache so
// repeat runs skip the parser.
func (h *Host) Load(name string) (*parser.Script, error) {
	path, err := h.findScript(name)
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(path, ".cvc") {
		return cache.ReadFile(path)
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading script %s: %w", path, err)
	}
	if !strings.Contains(strings.ToLower(string(src)), "script:") {
		h.log.Warn("source has no Script header", "path", path)
	}
	key := cache.Key(string(src))
	if script, ok := cache.Lookup(key); ok {
		h.log.Debug("script cache hit", "script", name, "key", key)
		return script, nil
	}
	p := parser.New(parser.Options{
		DefaultLanguage: h.cfg.DefaultLanguage,
		DefaultGender:   h.cfg.DefaultGender,
		SpeakerName:     h.cfg.SpeakerName,
		Logger:          h.log,
	})
	script := p.Parse(string(src))
	cache.Store(key, script)
	return script, nil
}

// findScript tries the name as a path first, then searches the script
// directories for source and compiled variants.
func (h *Host) findScript(name string) (string, error) {
	if _, err := os.Stat(name); err == nil {
		return name, nil
	}
	base := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
	for _, dir := range h.cfg.ScriptDirs {
		for _, candidate := range []string{
			filepath.Join(dir, base+".cv"),
			filepath.Join(dir, base+".cvc"),
			filepath.Join(dir, base),
		} {
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate, nil
			}
		}
	}
	return "", fmt.Errorf("no script named %q in %v", name, h.cfg.ScriptDirs)
}
