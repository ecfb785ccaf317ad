package engine

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/convolang/convo/parser"
)

// runSpeak utters one line. The index moves first so a slow speech
// backend never stalls script position.
func (e *Engine) runSpeak(ses *session, conv *Conversation, text string) error {
	conv.CurrentIndex++
	text = parser.Unquote(strings.TrimSpace(text))
	if text == "" || strings.HasSuffix(strings.ToLower(text), "speak:") {
		return nil
	}
	e.collab.Speak(ses.user, text, conv.Speaker)
	return nil
}

// runNameSpeak speaks as a named character. The prefix before the colon
// carries the name and optionally a gender and a language code, in any
// order.
func (e *Engine) runNameSpeak(ses *session, conv *Conversation, text string) error {
	conv.CurrentIndex++
	head, body, ok := strings.Cut(text, ":")
	if !ok {
		text = parser.Unquote(strings.TrimSpace(text))
		if text != "" {
			e.collab.Speak(ses.user, text, conv.Speaker)
		}
		return nil
	}
	speaker := conv.Speaker
	speaker.OverrideUser = true
	for _, part := range strings.Split(head, ",") {
		part = strings.TrimSpace(part)
		switch {
		case part == "":
		case isGender(part):
			speaker.Gender = strings.ToLower(part)
		case isLanguageCode(part):
			speaker.Language = strings.ToLower(part)
		default:
			speaker.Name = part
		}
	}
	body = parser.Unquote(strings.TrimSpace(body))
	if body != "" {
		e.collab.Speak(ses.user, body, speaker)
	}
	return nil
}

func isGender(s string) bool {
	l := strings.ToLower(s)
	return l == "male" || l == "female"
}

func isLanguageCode(s string) bool {
	return len(s) == 5 && s[2] == '-'
}

// runLanguage changes the speaking voice mid-script. Header language
// lines were already folded into the script's speaker at parse time.
func (e *Engine) runLanguage(conv *Conversation, text string) error {
	conv.CurrentIndex++
	for _, part := range strings.Split(text, ",") {
		part = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(part), ":"))
		switch {
		case part == "":
		case isGender(part):
			conv.Speaker.Gender = strings.ToLower(part)
		case isLanguageCode(part):
			conv.Speaker.Language = strings.ToLower(part)
		}
	}
	conv.Speaker.OverrideUser = true
	return nil
}

// runExecute hands an utterance to the host as if the user had spoken
// it, then waits a bounded time for the matching response so the script
// does not race ahead of its own side effects.
func (e *Engine) runExecute(ses *session, conv *Conversation, text string) error {
	text = parser.Unquote(strings.TrimSpace(text))
	conv.LastRequest = text
	conv.CurrentIndex++
	if text == "" {
		return nil
	}

	// Drop any stale response left from an earlier request.
	select {
	case <-ses.execCh:
	default:
	}
	e.collab.ExecuteUtterance(ses.user, text)
	select {
	case resp := <-ses.execCh:
		e.log.Debug("execute resolved", "user", ses.user, "request", text, "response", resp)
	case <-time.After(e.timeout):
		e.log.Warn("execute response timed out", "user", ses.user, "request", text)
	}
	conv.LastRequest = ""
	return nil
}

// runReconvey replays recorded audio for a variable when there is any,
// speaking the text form otherwise. Explicit quoted text and file
// arguments override what the variable holds.
func (e *Engine) runReconvey(ses *session, conv *Conversation, inst parser.Instruction) error {
	conv.CurrentIndex++

	var name, textArg, fileArg string
	if args, ok := inst.Data.(parser.ReconveyArgs); ok {
		name, textArg, fileArg = args.Name, args.Text, args.File
	} else {
		name = strings.Trim(strings.TrimSpace(inst.Text), "{}")
	}

	spoken := ""
	switch {
	case strings.HasPrefix(textArg, `"`):
		spoken = e.resolveBraced(ses, conv, inst, parser.Unquote(textArg))
	case textArg != "":
		if v, ok := conv.Value(strings.Trim(textArg, "{}")); ok {
			spoken = parser.Unquote(v)
		}
	default:
		if v, ok := conv.Value(name); ok {
			spoken = parser.Unquote(v)
		}
	}

	audio := ""
	switch {
	case strings.HasPrefix(fileArg, `"`):
		audio = e.resolveAudio(conv, parser.Unquote(fileArg))
	case fileArg != "":
		if paths := conv.AudioResponses[strings.Trim(fileArg, "{}")]; len(paths) > 0 {
			audio = e.resolveAudio(conv, paths[0])
		} else if v, ok := conv.Value(strings.Trim(fileArg, "{}")); ok {
			audio = e.resolveAudio(conv, parser.Unquote(v))
		}
	default:
		if paths := conv.AudioResponses[name]; len(paths) > 0 {
			audio = e.resolveAudio(conv, paths[0])
		}
	}

	speaker := conv.Speaker
	if inst.Command == parser.CmdNameReconvey {
		if args, ok := inst.Data.(parser.ReconveyArgs); ok && args.Name != "" && !strings.HasPrefix(args.Name, "{") {
			speaker.Name = parser.Unquote(args.Name)
			speaker.OverrideUser = true
		}
	}

	if audio != "" {
		if err := e.collab.PlayAudio(ses.user, audio); err == nil {
			return nil
		}
		e.log.Warn("audio playback failed, speaking instead", "user", ses.user, "file", audio)
	}
	if spoken != "" {
		e.collab.Speak(ses.user, spoken, speaker)
	}
	return nil
}

// resolveAudio turns a reconvey file argument into something the host
// can play: URLs pass through, then an absolute or home-relative path,
// then a path under the script's audio directory, then a match by bare
// name with any extension.
func (e *Engine) resolveAudio(conv *Conversation, path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if strings.HasPrefix(path, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	if filepath.IsAbs(path) {
		if _, err := os.Stat(path); err == nil {
			return path
		}
		return ""
	}
	dir := filepath.Join(e.audio, conv.ScriptName)
	full := filepath.Join(dir, path)
	if _, err := os.Stat(full); err == nil {
		return full
	}
	// No extension given: take any file with that stem.
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	for _, entry := range entries {
		stem := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		if stem == path {
			return filepath.Join(dir, entry.Name())
		}
	}
	return ""
}

// runEmail sends the script's composed message to the user's own
// address from their profile.
func (e *Engine) runEmail(ses *session, conv *Conversation, text string) error {
	conv.CurrentIndex++
	parts := parser.SplitParams(text, ",")
	if len(parts) < 2 {
		return nil
	}
	title := parser.Unquote(parts[0])
	body := strings.ReplaceAll(parser.Unquote(strings.Join(parts[1:], ", ")), `\n`, "\n")
	if _, ok := e.collab.LookupPreference(ses.user, "user", "email"); !ok {
		e.collab.Speak(ses.user, "I don't know your email address. Add one to your profile and try again.", conv.Speaker)
		return nil
	}
	if err := e.collab.SendEmail(ses.user, title, body); err != nil {
		e.log.Error("sending email failed", "user", ses.user, "title", title, "err", err)
		e.collab.Speak(ses.user, "I couldn't send your email.", conv.Speaker)
	}
	return nil
}

// runScript suspends the current conversation one instruction ahead and
// starts the named script on top of it; when the callee exits, the
// caller resumes exactly there.
func (e *Engine) runScript(ses *session, conv *Conversation, text string) error {
	name := scriptKey(parser.Unquote(strings.TrimSpace(text)))
	script, err := e.loader.Load(name)
	if err != nil {
		e.collab.Speak(ses.user, "I couldn't find a script called "+displayName(name)+".", conv.Speaker)
		conv.CurrentIndex++
		return nil
	}
	conv.CurrentIndex++
	e.cancelTimeout(ses)
	child := NewConversation(script, name)
	ses.stack.Push(child)
	e.positionAtStart(child, "")
	e.log.Info("script called", "user", ses.user, "caller", conv.ScriptName, "script", name, "depth", ses.stack.Len())
	return nil
}
