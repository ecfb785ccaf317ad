package parser

import (
	"strconv"
	"strings"
)

// applyHook runs any load-time parsing a command needs before the
// instruction is appended. full is the line text before the
// "Command: " prefix was stripped.
func (p *Parser) applyHook(s *Script, st *parseState, inst *Instruction, full string) {
	switch inst.Command {
	case CmdScript, CmdAuthor, CmdDescription, CmdTimeout:
		p.parseHeader(s, inst)
	case CmdGoto, CmdTag:
		p.parseTag(s, inst)
	case CmdLanguage:
		p.parseLanguage(s, inst)
	case CmdVariable:
		p.parseVariable(s, st, inst)
	case CmdLoop:
		p.parseLoop(s, inst, full)
	case CmdSynonym:
		p.parseSynonym(s, inst)
	case CmdClaps:
		p.parseClaps(s, inst)
	case CmdReconvey, CmdNameReconvey:
		p.parseReconvey(s, inst)
	case CmdSpeak, CmdNameSpeak, CmdExecute:
		if strings.TrimSpace(inst.Text) == "" {
			p.warnf(s, inst.LineNumber, "empty %s line", inst.Command)
		}
	}
}

func (p *Parser) parseHeader(s *Script, inst *Instruction) {
	value := strings.TrimSpace(inst.Text)
	switch inst.Command {
	case CmdScript:
		s.Meta.Title = value
	case CmdAuthor:
		s.Meta.Author = value
	case CmdDescription:
		if s.Meta.Description == "" {
			s.Meta.Description = value
		} else {
			s.Meta.Description += "\n" + value
		}
	case CmdTimeout:
		secs, action, _ := strings.Cut(value, " ")
		n, err := strconv.Atoi(secs)
		if err != nil {
			p.warnf(s, inst.LineNumber, "invalid timeout %q", secs)
			return
		}
		s.TimeoutSeconds = n
		s.TimeoutAction = Unquote(action)
	}
}

// parseTag registers tag lines so goto can resolve them at runtime.
// Goto lines pass through here too but register nothing. The first
// occurrence of a tag name wins.
func (p *Parser) parseTag(s *Script, inst *Instruction) {
	text := strings.TrimSpace(inst.Text)
	var tag string
	switch {
	case strings.HasPrefix(text, "@"):
		tag = text[1:]
	case strings.HasPrefix(strings.ToLower(text), "tag:"):
		tag = strings.TrimSpace(strings.SplitN(text, ":", 2)[1])
	case inst.Command == CmdTag:
		tag = text
	}
	tag = strings.ToLower(strings.TrimSuffix(tag, ":"))
	if tag == "" {
		return
	}
	if _, ok := s.Tags[tag]; ok {
		p.warnf(s, inst.LineNumber, "duplicate tag %q ignored", tag)
		return
	}
	s.Tags[tag] = inst.LineNumber
}

// parseLanguage records speaker data from the first Language line;
// later ones are handled at runtime and do not change the script
// default.
func (p *Parser) parseLanguage(s *Script, inst *Instruction) {
	if s.Speaker.Name != "" {
		return
	}
	gender := p.opts.DefaultGender
	language := p.opts.DefaultLanguage

	params := SplitParams(inst.Text, " ")
	kept := params[:0]
	for _, param := range params {
		switch strings.ToLower(param) {
		case "male":
			gender = "male"
		case "female":
			gender = "female"
		default:
			kept = append(kept, param)
		}
	}
	if len(kept) > 0 && kept[0] != "" {
		language = strings.ToLower(kept[0])
	}
	s.Speaker = Speaker{
		Name:         p.opts.SpeakerName,
		Language:     language,
		Gender:       gender,
		OverrideUser: true,
	}
}

// parseVariable declares a variable and attaches its declaration
// payload. Values are populated at runtime; only names are recorded on
// the script. Continuation lines already carry their payload and need
// nothing here.
func (p *Parser) parseVariable(s *Script, st *parseState, inst *Instruction) {
	if d, ok := inst.Data.(VariableDecl); ok && d.Continuation {
		return
	}
	text := inst.Text
	var name, value string
	head, _, _ := strings.Cut(text, ":")
	switch {
	case strings.Contains(text, ":") && strings.Contains(head, "{") && strings.Contains(head, "}"):
		// Old "{name}: value" form.
		p.warnf(s, inst.LineNumber, "braces in variable names are no longer supported")
		name = between(text, "{", "}")
	case strings.Contains(text, "="):
		k, v, _ := strings.Cut(text, "=")
		switch {
		case strings.Contains(k, "{"):
			name = between(k, "{", "}")
		case strings.Contains(k, ":"):
			_, after, _ := strings.Cut(k, ":")
			name = strings.TrimSpace(after)
		default:
			name = strings.TrimSpace(strings.Trim(strings.TrimSpace(k), `"`))
		}
		value = strings.TrimSpace(v)
	default:
		cleaned := strings.TrimSpace(strings.ReplaceAll(text, ":", ""))
		if n, rest, ok := strings.Cut(cleaned, " "); ok {
			// "name value" with no separator.
			name = n
			value = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(rest), "=:"))
		} else {
			name = cleaned
		}
	}
	if strings.Contains(name, "{") || strings.Contains(name, "}") {
		p.warnf(s, inst.LineNumber, "braces are not allowed in variable names")
		name = between(name, "{", "}")
	}

	st.lastVariable = name
	if !s.HasVariable(name) {
		s.Variables = append(s.Variables, name)
	}
	inst.Data = VariableDecl{Name: name, Value: value, DeclIndent: inst.Indent}
}

// parseLoop records loop boundaries. Only literal "LOOP name ..." lines
// define them; a plain Loop command jump is resolved at runtime.
func (p *Parser) parseLoop(s *Script, inst *Instruction, full string) {
	if !strings.HasPrefix(full, "LOOP ") {
		return
	}
	parts := strings.Fields(full)
	if len(parts) < 2 {
		p.warnf(s, inst.LineNumber, "loop line names no loop")
		return
	}
	name := parts[1]
	lp := s.Loops[name]
	switch {
	case contains(parts, "END"):
		lp.End = inst.LineNumber
	case contains(parts, "UNTIL"):
		lp.End = inst.LineNumber
		if len(parts) < 4 {
			p.warnf(s, inst.LineNumber, "loop UNTIL names no variable")
			return
		}
		lp.EndVariable = parts[3]
		lp.EndValue = "True"
		if len(parts) >= 6 {
			lp.EndValue = parts[5]
		}
	default:
		lp.Start = inst.LineNumber
	}
	s.Loops[name] = lp
}

// parseSynonym extends the list of phrases that launch this script.
func (p *Parser) parseSynonym(s *Script, inst *Instruction) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '!', '@', '#', '$', '"':
			return -1
		}
		return r
	}, inst.Text)
	for _, syn := range strings.Split(cleaned, ",") {
		if syn = strings.TrimSpace(syn); syn != "" {
			s.Synonyms = append(s.Synonyms, syn)
		}
	}
}

func (p *Parser) parseClaps(s *Script, inst *Instruction) {
	num, action, ok := strings.Cut(strings.TrimSpace(inst.Text), " ")
	if !ok {
		p.warnf(s, inst.LineNumber, "clap line names no action")
		return
	}
	s.Claps[num] = strings.TrimSpace(action)
}

func (p *Parser) parseReconvey(s *Script, inst *Instruction) {
	params := SplitParams(inst.Text, ",")
	switch inst.Command {
	case CmdReconvey:
		// Single-param reconvey replays by variable name; nothing to
		// record ahead of time.
		if len(params) > 1 {
			inst.Data = ReconveyArgs{
				Text: strings.TrimSpace(params[0]),
				File: strings.TrimSpace(params[1]),
			}
		}
	case CmdNameReconvey:
		if len(params) < 3 {
			p.warnf(s, inst.LineNumber, "name reconvey needs speaker, text and file")
			return
		}
		inst.Data = ReconveyArgs{
			Name: strings.TrimSpace(params[0]),
			Text: strings.TrimSpace(params[1]),
			File: strings.TrimSpace(params[2]),
		}
	}
}

// between returns the text between the first open and the following
// close marker, or s unchanged when the pair is absent.
func between(s, open, end string) string {
	_, rest, ok := strings.Cut(s, open)
	if !ok {
		return s
	}
	body, _, ok := strings.Cut(rest, end)
	if !ok {
		return s
	}
	return body
}

func contains(parts []string, want string) bool {
	for _, part := range parts {
		if part == want {
			return true
		}
	}
	return false
}
