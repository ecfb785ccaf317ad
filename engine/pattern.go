package engine

import (
	"fmt"
	"strings"

	"github.com/convolang/convo/parser"
)

// perspective maps first-person words in captured user speech to the
// second person so responses read back naturally.
var perspective = map[string]string{
	"am":     "are",
	"my":     "your",
	"me":     "you",
	"i":      "you",
	"myself": "yourself",
}

// patternArgs pulls the watched string variable and the pattern list
// out of a sub_values or sub_key instruction.
func patternArgs(text string) (stringName, listName string, ok bool) {
	text = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), ":"))
	for _, kw := range []string{"sub_values", "sub_key"} {
		text = strings.TrimSpace(strings.TrimPrefix(text, kw))
	}
	text = strings.Trim(text, "(): ")
	first, second, found := strings.Cut(text, ",")
	if !found {
		return "", "", false
	}
	return strings.Trim(strings.TrimSpace(first), "{}"), strings.Trim(strings.TrimSpace(second), "{}"), true
}

// runSubValues rewrites the newest value of a string variable by
// applying word-for-word replacements from a substitution list. The
// rewritten text replaces the newest value instead of extending the
// history.
func (e *Engine) runSubValues(ses *session, conv *Conversation, inst parser.Instruction) error {
	conv.CurrentIndex++
	stringName, listName, ok := patternArgs(inst.Text)
	if !ok {
		return nil
	}
	current, has := conv.Value(stringName)
	if !has {
		return nil
	}
	input := " " + strings.ToLower(parser.Unquote(current)) + " "
	for _, entry := range conv.Variables[listName] {
		raw, sub, ok := splitPair(entry)
		if !ok {
			continue
		}
		if !containsWord(input, raw) {
			continue
		}
		input = strings.ReplaceAll(input, " "+raw+" ", " "+sub+" ")
	}
	conv.Variables[stringName][0] = strings.TrimSpace(input)
	return nil
}

// splitPair breaks one substitution entry into the word to replace and
// its replacement. Entries are quoted pairs, with an unquoted
// first-space fallback.
func splitPair(entry string) (raw, sub string, ok bool) {
	entry = strings.TrimSpace(entry)
	if first, rest, found := strings.Cut(entry, `" "`); found {
		return strings.ToLower(strings.Trim(first, `" `)), strings.Trim(rest, `" `), true
	}
	first, rest, found := strings.Cut(entry, " ")
	if !found {
		return "", "", false
	}
	return strings.ToLower(strings.Trim(first, `" `)), strings.Trim(rest, `" `), true
}

func containsWord(padded, word string) bool {
	for _, f := range strings.Fields(padded) {
		if f == word {
			return true
		}
	}
	return false
}

// segment is one piece of a sub_key pattern: literal text, a {variable}
// capture, or a [list] alternative set.
type segment struct {
	kind    segKind
	text    string
	capture string
}

type segKind int

const (
	segLiteral segKind = iota
	segVariable
	segList
)

// runSubKey matches the newest value of a string variable against a
// pattern list and pushes the first matching entry's next response. A
// pattern entry is a quoted pattern followed by one or more quoted
// responses, rotated per entry across invocations. Wildcards and
// braced variables capture pieces of the input; captured speech aimed
// at the assistant is flipped to second person. No match leaves the
// variable untouched.
func (e *Engine) runSubKey(ses *session, conv *Conversation, inst parser.Instruction) error {
	conv.CurrentIndex++
	stringName, listName, ok := patternArgs(inst.Text)
	if !ok {
		return nil
	}
	current, has := conv.Value(stringName)
	if !has {
		return nil
	}
	input := strings.ToLower(parser.Unquote(strings.TrimSpace(current)))

	for _, rawEntry := range conv.Variables[listName] {
		pattern, responses, ok := splitPatternEntry(rawEntry)
		if !ok {
			continue
		}
		segs := segmentize(numberWildcards(pattern))
		if !patternMatches(conv, segs, input) {
			continue
		}

		capturePattern(conv, segs, input)

		n := conv.SubCounters[rawEntry]
		conv.SubCounters[rawEntry] = n + 1
		response := responses[n%len(responses)]
		result := parser.Unquote(strings.TrimSpace(e.substitute(ses, conv, inst, response, true)))
		conv.PushValue(stringName, result)
		return nil
	}
	return nil
}

// splitPatternEntry separates the quoted pattern from its quoted
// responses. The quote-space-quote seam between fields is tolerated
// with or without the space.
func splitPatternEntry(entry string) (pattern string, responses []string, ok bool) {
	entry = strings.ReplaceAll(entry, `" "`, `""`)
	parts := strings.Split(entry, `"`)
	var fields []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			fields = append(fields, p)
		}
	}
	if len(fields) < 2 {
		return "", nil, false
	}
	return fields[0], fields[1:], true
}

// numberWildcards rewrites bare * placeholders as numbered wildcard
// variables so they capture like any other braced reference.
func numberWildcards(pattern string) string {
	fields := strings.Fields(pattern)
	n := 0
	for i, f := range fields {
		if strings.Contains(f, "*") {
			n++
			fields[i] = fmt.Sprintf("{_wildcard_%d}", n)
		}
	}
	return strings.Join(fields, " ")
}

// segmentize splits a pattern into literals, {variable} captures and
// [list] sets, in order.
func segmentize(pattern string) []segment {
	var segs []segment
	for pattern != "" {
		bi := strings.IndexAny(pattern, "{[")
		if bi < 0 {
			segs = append(segs, segment{kind: segLiteral, text: pattern})
			break
		}
		if bi > 0 {
			segs = append(segs, segment{kind: segLiteral, text: pattern[:bi]})
		}
		open := pattern[bi]
		rest := pattern[bi+1:]
		var name, after string
		if open == '{' {
			name, after, _ = strings.Cut(rest, "}")
			segs = append(segs, segment{kind: segVariable, capture: strings.TrimSpace(name)})
		} else {
			name, after, _ = strings.Cut(rest, "]")
			segs = append(segs, segment{kind: segList, capture: strings.TrimSpace(name)})
		}
		pattern = after
	}
	return segs
}

// patternMatches applies the containment test: every literal segment
// must appear in the input and every list segment must have at least
// one value present. Substring containment is deliberate; scripts
// depend on loose matching.
func patternMatches(conv *Conversation, segs []segment, input string) bool {
	for _, seg := range segs {
		switch seg.kind {
		case segLiteral:
			lit := strings.ToLower(strings.TrimSpace(seg.text))
			if lit != "" && !strings.Contains(input, lit) {
				return false
			}
		case segList:
			if listMatch(conv, seg.capture, input) == "" {
				return false
			}
		}
	}
	return true
}

func listMatch(conv *Conversation, listName, input string) string {
	for _, v := range conv.Variables[listName] {
		v = strings.ToLower(parser.Unquote(strings.TrimSpace(v)))
		if v != "" && strings.Contains(input, v) {
			return v
		}
	}
	return ""
}

// capturePattern walks the segments against the input and stores what
// each variable or list segment consumed. A trailing variable takes the
// rest of the input verbatim; a variable closed off by a following
// literal takes the text before that literal with its perspective
// flipped.
func capturePattern(conv *Conversation, segs []segment, input string) {
	remaining := input
	pending := ""
	for i, seg := range segs {
		switch seg.kind {
		case segLiteral:
			lit := strings.ToLower(strings.TrimSpace(seg.text))
			if lit == "" {
				continue
			}
			before, after, found := strings.Cut(remaining, lit)
			if !found {
				continue
			}
			if pending != "" {
				conv.PushValue(pending, flipPerspective(strings.TrimSpace(before)))
				pending = ""
			}
			remaining = after
		case segList:
			v := listMatch(conv, seg.capture, remaining)
			if v == "" {
				continue
			}
			conv.PushValue("_"+seg.capture+"_", v)
			if _, after, found := strings.Cut(remaining, v); found {
				remaining = after
			}
		case segVariable:
			if i == len(segs)-1 {
				conv.PushValue(seg.capture, strings.TrimSpace(remaining))
				remaining = ""
			} else {
				pending = seg.capture
			}
		}
	}
	if pending != "" {
		conv.PushValue(pending, flipPerspective(strings.TrimSpace(remaining)))
	}
}

// flipPerspective rewrites captured first-person speech into the second
// person, word by word.
func flipPerspective(text string) string {
	fields := strings.Fields(text)
	for i, f := range fields {
		if flipped, ok := perspective[strings.ToLower(f)]; ok {
			fields[i] = flipped
		}
	}
	return strings.Join(fields, " ")
}
