package engine

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/convolang/convo/parser"
)

// funcResult is what a built-in variable function produces: a plain
// string, or a label-to-URL table for table_scrape.
type funcResult struct {
	value string
	links map[string]string
}

// runSet assigns a variable. The right-hand side may be a literal, a
// comma list, a reference to other variables, or a built-in function
// call; new values go to the front of the history so index zero stays
// the most recent.
func (e *Engine) runSet(ses *session, conv *Conversation, inst parser.Instruction) error {
	text := strings.TrimSpace(inst.Text)
	if after, ok := strings.CutPrefix(strings.ToLower(text), "set "); ok {
		text = strings.TrimSpace(text[len(text)-len(after):])
	}
	lhs, rhs, ok := strings.Cut(text, "=")
	if !ok {
		conv.CurrentIndex++
		return nil
	}
	name := strings.Trim(strings.TrimSpace(lhs), "{}: ")
	value := strings.TrimSpace(rhs)

	if fn, arg, isCall := splitFuncCall(value); isCall {
		if fn == "voice_input" {
			conv.VariableToFill = voiceInputTarget(name, arg)
			conv.CurrentIndex++
			ses.awaitingInput = true
			e.scheduleTimeout(ses, conv)
			return errSuspend
		}
		res, err := e.callFunction(ses, conv, fn, strings.Trim(arg, "{}"))
		if err != nil {
			e.reportError(ses, conv, &LineError{
				Kind:   "function",
				Line:   inst.LineNumber,
				Script: conv.ScriptName,
				Detail: err.Error(),
			})
			conv.CurrentIndex++
			return nil
		}
		if res.links != nil {
			conv.Links[name] = res.links
			conv.CurrentIndex++
			return nil
		}
		value = res.value
	} else {
		value = strings.TrimSpace(e.substitute(ses, conv, inst, value, false))
	}

	var fresh []string
	switch {
	case strings.HasPrefix(value, `"`):
		for _, part := range splitQuotedList(value) {
			fresh = append(fresh, parser.Unquote(part))
		}
	case strings.Contains(value, ","):
		for _, part := range strings.Split(value, ",") {
			fresh = append(fresh, strings.TrimSpace(part))
		}
	default:
		fresh = []string{value}
	}
	for _, old := range conv.Variables[name] {
		if old != "" {
			fresh = append(fresh, old)
		}
	}
	conv.Variables[name] = fresh
	conv.CurrentIndex++
	return nil
}

// runVariable applies a declaration or continuation line at runtime.
// Declared list values keep their source quoting because the pattern
// commands match against the raw entries.
func (e *Engine) runVariable(ses *session, conv *Conversation, inst parser.Instruction) error {
	decl, ok := inst.Data.(parser.VariableDecl)
	if !ok {
		conv.CurrentIndex++
		return nil
	}
	if _, declared := conv.Variables[decl.Name]; !declared {
		conv.Variables[decl.Name] = nil
	}
	value := strings.TrimSpace(decl.Value)
	if value == "" {
		conv.CurrentIndex++
		return nil
	}
	if decl.Continuation {
		conv.Variables[decl.Name] = append(conv.Variables[decl.Name], value)
		conv.CurrentIndex++
		return nil
	}
	if fn, arg, isCall := splitFuncCall(value); isCall && fn != "voice_input" {
		res, err := e.callFunction(ses, conv, fn, strings.Trim(arg, "{}"))
		if err != nil {
			e.reportError(ses, conv, &LineError{
				Kind:   "function",
				Line:   inst.LineNumber,
				Script: conv.ScriptName,
				Detail: err.Error(),
			})
			conv.CurrentIndex++
			return nil
		}
		if res.links != nil {
			conv.Links[decl.Name] = res.links
		} else {
			conv.Variables[decl.Name] = append(conv.Variables[decl.Name], res.value)
		}
		conv.CurrentIndex++
		return nil
	}
	if strings.HasPrefix(value, `"`) {
		conv.Variables[decl.Name] = append(conv.Variables[decl.Name], splitQuotedList(value)...)
	} else {
		for _, part := range strings.Split(value, ",") {
			conv.Variables[decl.Name] = append(conv.Variables[decl.Name], strings.TrimSpace(part))
		}
	}
	conv.CurrentIndex++
	return nil
}

// splitQuotedList breaks `"a", "b", "c"` into one quoted entry per
// item. Anything without a quote-comma-quote seam stays whole, which
// keeps pattern entries like `"key" "response"` intact.
func splitQuotedList(value string) []string {
	value = strings.ReplaceAll(value, `","`, `", "`)
	if !strings.Contains(value, `", "`) {
		return []string{value}
	}
	parts := strings.Split(value, `", "`)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, `"`+strings.Trim(strings.TrimSpace(p), `"`)+`"`)
	}
	return out
}

// runVarFunc executes a bare function-call instruction. voice_input
// suspends the conversation; the other functions run for their side
// effects and their return value is discarded.
func (e *Engine) runVarFunc(ses *session, conv *Conversation, inst parser.Instruction) error {
	fn, arg := bareCall(inst.Text)
	target, _, _ := strings.Cut(arg, ",")
	target = strings.TrimSpace(target)
	if target != "" {
		if _, declared := conv.Variables[target]; !declared && !strings.Contains(target, ".") {
			conv.Variables[target] = nil
		}
	}

	if fn == "voice_input" {
		conv.VariableToFill = normalizeFill(arg)
		conv.CurrentIndex++
		ses.awaitingInput = true
		e.scheduleTimeout(ses, conv)
		return errSuspend
	}

	res, err := e.callFunction(ses, conv, fn, arg)
	if err != nil {
		e.reportError(ses, conv, &LineError{
			Kind:   "function",
			Line:   inst.LineNumber,
			Script: conv.ScriptName,
			Detail: err.Error(),
		})
	} else if res.links != nil && target != "" {
		conv.Links[target] = res.links
	}
	conv.CurrentIndex++
	return nil
}

// bareCall splits "name(args)" or "name {arg}" instruction text.
func bareCall(text string) (fn, arg string) {
	text = strings.TrimSpace(text)
	switch {
	case strings.Contains(text, "("):
		fn, _, _ = strings.Cut(text, "(")
		arg = between(text, "(", ")")
	case strings.Contains(text, "{"):
		fn, _, _ = strings.Cut(text, "{")
		arg = between(text, "{", "}")
	default:
		fields := strings.Fields(text)
		fn = fields[0]
		if len(fields) > 1 {
			arg = strings.Join(fields[1:], " ")
		}
	}
	return strings.TrimSpace(fn), strings.Trim(strings.TrimSpace(arg), "{}")
}

func normalizeFill(arg string) string {
	parts := strings.Split(arg, ",")
	for i, p := range parts {
		parts[i] = strings.Trim(strings.TrimSpace(p), "{}")
	}
	return strings.Join(parts, ",")
}

func voiceInputTarget(name, arg string) string {
	if _, list, ok := strings.Cut(arg, ","); ok {
		return name + "," + strings.Trim(strings.TrimSpace(list), "{}")
	}
	return name
}

// callFunction dispatches a built-in variable function by name.
// voice_input never reaches here; it suspends at the call site.
func (e *Engine) callFunction(ses *session, conv *Conversation, fn, arg string) (funcResult, error) {
	arg = strings.TrimSpace(arg)
	switch fn {
	case "select_one":
		return funcResult{value: selectOne(conv, arg)}, nil
	case "random":
		return funcResult{value: randomChoice(conv, arg)}, nil
	case "closest":
		return funcResult{value: closestMatch(conv, arg)}, nil
	case "profile":
		return e.profileValue(ses, arg)
	case "table_scrape":
		url := arg
		if v, ok := conv.Value(arg); ok {
			url = parser.Unquote(v)
		}
		links, err := e.collab.ScrapeLinks(url)
		if err != nil {
			return funcResult{}, fmt.Errorf("table_scrape %s: %w", url, err)
		}
		return funcResult{links: links}, nil
	case "voice_input":
		return funcResult{}, fmt.Errorf("voice_input cannot be used as a value")
	}
	return funcResult{}, fmt.Errorf("unknown function %q", fn)
}

// selectOne phrases a list variable as a spoken choice.
func selectOne(conv *Conversation, key string) string {
	return phraseChoice(cleanValues(conv.Variables[key]))
}

// randomChoice offers up to three random options from a list or link
// table.
func randomChoice(conv *Conversation, key string) string {
	if links, ok := conv.Links[key]; ok && len(links) > 0 {
		var short []string
		for label := range links {
			if len(strings.Fields(label)) <= 3 {
				short = append(short, label)
			}
		}
		rand.Shuffle(len(short), func(i, j int) { short[i], short[j] = short[j], short[i] })
		if len(short) > 3 {
			short = short[:3]
		}
		return phraseChoice(short)
	}
	vals := cleanValues(conv.Variables[key])
	if len(vals) > 3 {
		rand.Shuffle(len(vals), func(i, j int) { vals[i], vals[j] = vals[j], vals[i] })
		vals = vals[:3]
	}
	return phraseChoice(vals)
}

func cleanValues(vals []string) []string {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		v = parser.Unquote(strings.TrimSpace(v))
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func phraseChoice(vals []string) string {
	switch len(vals) {
	case 0:
		return ""
	case 1:
		return vals[0]
	case 2:
		return vals[0] + " or " + vals[1]
	}
	return "one of the following: " + strings.Join(vals[:len(vals)-1], ", ") + ", or " + vals[len(vals)-1]
}

// closestMatch finds the list option nearest to a variable's newest
// value. Below the similarity cutoff nothing matches and "none" comes
// back; a link table match returns the linked URL instead of the label.
func closestMatch(conv *Conversation, arg string) string {
	varName, listName, ok := strings.Cut(arg, ",")
	if !ok {
		return "none"
	}
	varName = strings.Trim(strings.TrimSpace(varName), "{}")
	listName = strings.Trim(strings.TrimSpace(listName), "{}")
	target, ok := conv.Value(varName)
	if !ok {
		return "none"
	}
	target = strings.ToLower(parser.Unquote(target))

	links, isTable := conv.Links[listName]
	var options []string
	if isTable {
		for label := range links {
			options = append(options, label)
		}
	} else {
		options = cleanValues(conv.Variables[listName])
	}

	const cutoff = 0.4
	best, bestScore := "", cutoff
	for _, opt := range options {
		score := similarity(target, strings.ToLower(opt))
		if score >= bestScore {
			best, bestScore = opt, score
		}
	}
	if best == "" {
		return "none"
	}
	if isTable {
		return links[best]
	}
	return best
}

func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := max(len(a), len(b))
	if longest == 0 {
		return 0
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

// profileValue reads "section.key" from the user's profile.
func (e *Engine) profileValue(ses *session, arg string) (funcResult, error) {
	section, key, ok := strings.Cut(strings.Trim(arg, "{}"), ".")
	if !ok {
		return funcResult{}, fmt.Errorf("profile wants section.key, got %q", arg)
	}
	val, found := e.collab.LookupPreference(ses.user, section, key)
	if !found {
		return funcResult{}, fmt.Errorf("no profile value for %s", arg)
	}
	return funcResult{value: val}, nil
}
