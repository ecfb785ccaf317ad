package engine

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/convolang/convo/parser"
)

// Collaborators is everything the engine needs from the host: speech
// output, utterance dispatch, user preferences, web scraping, audio
// playback and mail. The engine never talks to the outside world any
// other way.
type Collaborators interface {
	// Speak utters text to the user with the given speaker settings.
	Speak(user, text string, speaker parser.Speaker)
	// ExecuteUtterance hands text to the host as if the user had said
	// it. The eventual response comes back through ResolveRequest.
	ExecuteUtterance(user, text string)
	// LookupPreference reads one value from the user's profile.
	LookupPreference(user, section, key string) (string, bool)
	// ScrapeLinks fetches a page and returns its labeled links.
	ScrapeLinks(url string) (map[string]string, error)
	// PlayAudio plays a local file or URL to the user.
	PlayAudio(user, path string) error
	// SendEmail sends mail on the user's behalf.
	SendEmail(user, title, body string) error
	// ReportError announces a script error to the user.
	ReportError(user string, err *LineError)
}

// ScriptLoader resolves script names to parsed scripts.
type ScriptLoader interface {
	Load(name string) (*parser.Script, error)
}

// Config carries engine construction options. Zero values fall back to
// sensible defaults.
type Config struct {
	Collaborators Collaborators
	Loader        ScriptLoader

	// ResponseTimeout bounds how long an execute instruction waits for
	// its response before giving up and moving on.
	ResponseTimeout time.Duration
	// WakeWord is stripped from the front of incoming utterances.
	WakeWord string
	// AudioDir is the base directory reconvey searches for relative
	// audio paths, under a per-script subdirectory.
	AudioDir string

	Logger *log.Logger
}

// Engine runs conversations for any number of users. Each user has an
// isolated session; a session is only ever advanced by one goroutine at
// a time.
type Engine struct {
	collab  Collaborators
	loader  ScriptLoader
	log     *log.Logger
	timeout time.Duration
	wake    string
	audio   string

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	user string

	// mu serializes all script execution for this user.
	mu    sync.Mutex
	stack *Stack

	// awaitingInput is true while the top conversation is suspended on
	// voice input; the variable to fill lives on the conversation.
	awaitingInput bool

	// timeoutGen invalidates a pending timer; AfterFunc callbacks check
	// their generation before doing anything.
	timeoutGen int
	timer      *time.Timer

	// execCh carries the response to an in-flight execute request.
	execCh chan string
}

// errSuspend stops the execution loop without error: the conversation
// is waiting on outside input and resumes on the next utterance.
var errSuspend = errors.New("conversation suspended")

// New builds an engine. Collaborators and Loader are required.
func New(cfg Config) *Engine {
	if cfg.ResponseTimeout <= 0 {
		cfg.ResponseTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Engine{
		collab:   cfg.Collaborators,
		loader:   cfg.Loader,
		log:      cfg.Logger,
		timeout:  cfg.ResponseTimeout,
		wake:     strings.ToLower(strings.TrimSpace(cfg.WakeWord)),
		audio:    cfg.AudioDir,
		sessions: make(map[string]*session),
	}
}

func (e *Engine) session(user string) *session {
	e.mu.Lock()
	defer e.mu.Unlock()
	ses, ok := e.sessions[user]
	if !ok {
		ses = &session{
			user:   user,
			stack:  NewStack(),
			execCh: make(chan string, 1),
		}
		e.sessions[user] = ses
	}
	return ses
}

func (e *Engine) lookup(user string) *session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessions[user]
}

// Active reports whether the user has a running conversation.
func (e *Engine) Active(user string) bool {
	ses := e.lookup(user)
	if ses == nil {
		return false
	}
	ses.mu.Lock()
	defer ses.mu.Unlock()
	return ses.stack.Current() != nil
}

// scriptKey normalizes a spoken script name to its stored form.
func scriptKey(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

// displayName is the inverse of scriptKey, used when speaking about a
// script.
func displayName(key string) string {
	return strings.ReplaceAll(key, "_", " ")
}

// StartScript loads a script and begins executing it for the user. An
// optional startTag names a tag to begin at instead of the top.
// Header instructions are never executed.
func (e *Engine) StartScript(user, name, startTag string) error {
	key := scriptKey(name)
	script, err := e.loader.Load(key)
	if err != nil {
		return err
	}
	ses := e.session(user)
	ses.mu.Lock()
	defer ses.mu.Unlock()

	conv := NewConversation(script, key)
	ses.stack.Push(conv)
	e.positionAtStart(conv, startTag)
	e.log.Info("starting script", "user", user, "script", key, "index", conv.CurrentIndex)
	e.runLoop(ses)
	return nil
}

// positionAtStart moves past the header block, or to a named tag when
// one is requested and exists.
func (e *Engine) positionAtStart(conv *Conversation, startTag string) {
	if tag := strings.ToLower(strings.TrimSpace(startTag)); tag != "" {
		if line, ok := conv.Script.Tags[tag]; ok {
			if idx, ok := conv.Script.IndexForLine(line); ok {
				conv.CurrentIndex = idx
				conv.LastIndent = conv.Script.Instructions[idx].Indent
				return
			}
		}
	}
	for conv.CurrentIndex < len(conv.Script.Instructions) {
		if !conv.Script.Instructions[conv.CurrentIndex].Command.IsHeader() {
			break
		}
		conv.CurrentIndex++
	}
	conv.LastIndent = 0
}

// HandleUtterance offers an utterance to the user's running
// conversation. It returns true when the conversation consumed it.
func (e *Engine) HandleUtterance(user, utterance string) bool {
	return e.HandleUtteranceAudio(user, utterance, "")
}

// HandleUtteranceAudio is HandleUtterance for hosts that also captured
// the utterance as a recording. When the utterance fills a variable the
// audio path is kept with it so reconvey can replay the user's own
// voice.
func (e *Engine) HandleUtteranceAudio(user, utterance, audio string) bool {
	ses := e.lookup(user)
	if ses == nil {
		return false
	}
	ses.mu.Lock()
	defer ses.mu.Unlock()
	conv := ses.stack.Current()
	if conv == nil {
		return false
	}

	utterance = strings.TrimSpace(utterance)
	if e.wake != "" && strings.HasPrefix(strings.ToLower(utterance), e.wake+" ") {
		utterance = strings.TrimSpace(utterance[len(e.wake)+1:])
	}

	if strings.EqualFold(utterance, "exit") {
		e.escapeOrExit(ses, conv)
		return true
	}

	if !ses.awaitingInput {
		// Not waiting on anything. The utterance still belongs to the
		// conversation so outer handlers leave it alone.
		e.scheduleTimeout(ses, conv)
		return true
	}

	name, list, hasList := strings.Cut(conv.VariableToFill, ",")
	value := utterance
	if hasList {
		match := ""
		for _, opt := range conv.Variables[strings.TrimSpace(list)] {
			opt = parser.Unquote(strings.TrimSpace(opt))
			if opt != "" && strings.Contains(strings.ToLower(utterance), strings.ToLower(opt)) {
				match = opt
				break
			}
		}
		if match == "" {
			// Keep waiting for something on the list.
			e.scheduleTimeout(ses, conv)
			return true
		}
		value = match
	}
	ses.awaitingInput = false
	conv.VariableToFill = ""
	name = strings.TrimSpace(name)
	conv.PushValue(name, value)
	if audio != "" {
		conv.PushAudio(name, audio)
	}
	e.log.Debug("utterance filled variable", "user", user, "variable", name, "value", value)
	e.scheduleTimeout(ses, conv)
	e.runLoop(ses)
	return true
}

// escapeOrExit handles a spoken "exit": inside a loop it jumps past the
// loop's end line, otherwise it exits the whole conversation.
func (e *Engine) escapeOrExit(ses *session, conv *Conversation) {
	inst, ok := conv.Instruction()
	if ok {
		for _, lp := range conv.Script.Loops {
			if lp.Start >= inst.LineNumber || inst.LineNumber >= lp.End {
				continue
			}
			endIdx, ok := conv.Script.IndexForLine(lp.End)
			if !ok {
				continue
			}
			ses.awaitingInput = false
			conv.VariableToFill = ""
			conv.CurrentIndex = endIdx + 1
			conv.LastIndent = conv.Script.Instructions[endIdx].Indent
			e.runLoop(ses)
			return
		}
	}
	e.exitConversation(ses)
	e.runLoop(ses)
}

// ResolveRequest delivers the host's response to an execute request.
// Unmatched responses are dropped.
func (e *Engine) ResolveRequest(user, request, response string) {
	ses := e.lookup(user)
	if ses == nil {
		return
	}
	select {
	case ses.execCh <- response:
	default:
		e.log.Debug("dropping unsolicited execute response", "user", user, "request", request)
	}
}

// scheduleTimeout arms (or re-arms) the conversation's input timeout.
func (e *Engine) scheduleTimeout(ses *session, conv *Conversation) {
	e.cancelTimeout(ses)
	if conv.TimeoutSeconds <= 0 {
		return
	}
	gen := ses.timeoutGen
	ses.timer = time.AfterFunc(time.Duration(conv.TimeoutSeconds)*time.Second, func() {
		e.fireTimeout(ses, gen)
	})
}

// cancelTimeout invalidates any pending timer. Safe to call repeatedly.
func (e *Engine) cancelTimeout(ses *session) {
	ses.timeoutGen++
	if ses.timer != nil {
		ses.timer.Stop()
		ses.timer = nil
	}
}

func (e *Engine) fireTimeout(ses *session, gen int) {
	ses.mu.Lock()
	defer ses.mu.Unlock()
	if gen != ses.timeoutGen {
		return
	}
	ses.timer = nil
	conv := ses.stack.Current()
	if conv == nil {
		return
	}
	e.log.Info("conversation timed out", "user", ses.user, "script", conv.ScriptName)
	ses.awaitingInput = false
	conv.VariableToFill = ""
	if action := strings.TrimSpace(conv.TimeoutAction); action != "" {
		// The action names a tag, optionally written as "goto <tag>" or
		// run together like "goToFallback".
		if lower := strings.ToLower(action); strings.HasPrefix(lower, "goto") {
			if stripped := strings.TrimSpace(action[len("goto"):]); stripped != "" && e.jumpTo(ses, conv, stripped) {
				e.runLoop(ses)
				return
			}
		}
		if e.jumpTo(ses, conv, action) {
			e.runLoop(ses)
			return
		}
	}
	e.collab.Speak(ses.user, "No input received. Exiting "+displayName(conv.ScriptName)+".", conv.Speaker)
	e.exitConversation(ses)
	e.runLoop(ses)
}

// exitConversation pops the top conversation, promotes its variables to
// user scope and leaves the caller (if any) ready to resume. The caller
// was advanced past its run instruction before being suspended, so no
// index adjustment happens here.
func (e *Engine) exitConversation(ses *session) {
	e.cancelTimeout(ses)
	ses.awaitingInput = false
	popped, err := ses.stack.Pop()
	if err != nil {
		return
	}
	ses.stack.PromoteToUserScope(popped)
	e.log.Info("conversation exited", "user", ses.user, "script", popped.ScriptName, "depth", ses.stack.Len())
	if next := ses.stack.Current(); next != nil {
		e.scheduleTimeout(ses, next)
	}
}

// runLoop drives the top conversation forward until it suspends on
// input, exits, or the stack drains. This is the single place
// instructions are stepped; handlers signal suspension with errSuspend
// and anything else fatal unwinds exactly one conversation.
func (e *Engine) runLoop(ses *session) {
	for {
		conv := ses.stack.Current()
		if conv == nil {
			return
		}
		inst, ok := conv.Instruction()
		if !ok {
			e.reportError(ses, conv, &LineError{
				Kind:   "end of script",
				Line:   lastLine(conv.Script),
				Script: conv.ScriptName,
			})
			e.exitConversation(ses)
			continue
		}
		if inst.Indent < conv.LastIndent {
			handled, done := e.replayCaseExit(ses, conv, inst)
			if done {
				continue
			}
			if handled {
				continue
			}
		}
		conv.LastIndent = inst.Indent
		err := e.dispatch(ses, conv, inst)
		switch {
		case err == nil:
		case errors.Is(err, errSuspend):
			return
		default:
			le := &LineError{}
			if !errors.As(err, &le) {
				le = &LineError{
					Kind:   "unhandled",
					Line:   inst.LineNumber,
					Script: conv.ScriptName,
					Detail: err.Error(),
				}
			}
			e.reportError(ses, conv, le)
			e.exitConversation(ses)
		}
	}
}

// replayCaseExit decides what an indent decrease means relative to the
// enclosing case groups. Walking the instruction's parent case indents
// innermost out: a line one level under a parent is a sibling branch of
// that case, so the rest of the group is skipped; a deeper line is
// still inside a branch body and runs normally.
func (e *Engine) replayCaseExit(ses *session, conv *Conversation, inst parser.Instruction) (handled, done bool) {
	for i := len(inst.ParentCaseIndents) - 1; i >= 0; i-- {
		parent := inst.ParentCaseIndents[i]
		if inst.Indent == parent+1 {
			for {
				conv.CurrentIndex++
				next, ok := conv.Instruction()
				if !ok {
					e.exitConversation(ses)
					return false, true
				}
				if next.Indent <= parent {
					break
				}
			}
			return true, false
		}
		if inst.Indent > parent+1 {
			return false, false
		}
	}
	return false, false
}

// dispatch runs one instruction. Most handlers see their text with
// variables already substituted; the pattern commands work on raw text
// because their operands are variable names, not values.
func (e *Engine) dispatch(ses *session, conv *Conversation, inst parser.Instruction) error {
	cmd := inst.Command
	if cmd == parser.CmdNone || cmd == parser.CmdTag || cmd.IsHeader() {
		conv.CurrentIndex++
		return nil
	}

	text := inst.Text
	switch cmd {
	case parser.CmdSubKey, parser.CmdSubValues, parser.CmdVariable,
		parser.CmdSet, parser.CmdVarFunc, parser.CmdReconvey, parser.CmdNameReconvey:
	default:
		if cmd == parser.CmdIf {
			text = prepConditionText(text)
		}
		text = e.substitute(ses, conv, inst, text, false)
	}

	switch cmd {
	case parser.CmdVariable:
		return e.runVariable(ses, conv, inst)
	case parser.CmdSet:
		return e.runSet(ses, conv, inst)
	case parser.CmdIf:
		return e.runIf(conv, inst, text)
	case parser.CmdElse:
		return e.runElse(ses, conv, inst)
	case parser.CmdCase:
		return e.runCase(ses, conv, inst, text)
	case parser.CmdLoop:
		return e.runLoopCmd(conv, inst, text)
	case parser.CmdGoto:
		return e.runGoto(ses, conv, inst, text)
	case parser.CmdSpeak:
		return e.runSpeak(ses, conv, text)
	case parser.CmdNameSpeak:
		return e.runNameSpeak(ses, conv, text)
	case parser.CmdExecute:
		return e.runExecute(ses, conv, text)
	case parser.CmdReconvey, parser.CmdNameReconvey:
		return e.runReconvey(ses, conv, inst)
	case parser.CmdSubValues:
		return e.runSubValues(ses, conv, inst)
	case parser.CmdSubKey:
		return e.runSubKey(ses, conv, inst)
	case parser.CmdPython:
		return e.runPython(ses, conv, inst, text)
	case parser.CmdEmail:
		return e.runEmail(ses, conv, text)
	case parser.CmdLanguage:
		return e.runLanguage(conv, text)
	case parser.CmdRun:
		return e.runScript(ses, conv, text)
	case parser.CmdExit:
		e.collab.Speak(ses.user, "Exiting "+displayName(conv.ScriptName)+".", conv.Speaker)
		e.exitConversation(ses)
		return nil
	case parser.CmdVarFunc:
		return e.runVarFunc(ses, conv, inst)
	default:
		conv.CurrentIndex++
		return nil
	}
}

// jumpTo moves the conversation to a tag or numeric line destination.
// Returns false when the destination does not exist.
func (e *Engine) jumpTo(ses *session, conv *Conversation, dest string) bool {
	dest = strings.TrimSpace(strings.TrimSuffix(dest, ":"))
	line, ok := conv.Script.Tags[strings.ToLower(dest)]
	if !ok {
		n, err := parseLineNumber(dest)
		if err != nil {
			return false
		}
		line = n
	}
	idx, ok := conv.Script.IndexForLine(line)
	if !ok {
		return false
	}
	conv.CurrentIndex = idx
	conv.LastIndent = conv.Script.Instructions[idx].Indent
	return true
}

func (e *Engine) reportError(ses *session, conv *Conversation, le *LineError) {
	e.log.Error("script error", "user", ses.user, "script", le.Script, "line", le.Line, "kind", le.Kind, "detail", le.Detail)
	e.collab.ReportError(ses.user, le)
}

func lastLine(script *parser.Script) int {
	if n := len(script.Instructions); n > 0 {
		return script.Instructions[n-1].LineNumber
	}
	return 0
}
