package engine

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/convolang/convo/parser"
)

// substitute resolves variable and function references in one line of
// script text. Three shapes are recognized: an unquoted line has its
// bare tokens promoted to {token} references first; a quoted line with
// braces resolves only what is braced; a quoted line without braces is
// literal. With doWildcards set, * placeholders become numbered
// wildcard references before anything else, which is how pattern
// responses pick up their captures.
func (e *Engine) substitute(ses *session, conv *Conversation, inst parser.Instruction, line string, doWildcards bool) string {
	line = strings.TrimSpace(line)
	if doWildcards {
		fields := strings.Fields(line)
		n := 0
		for i, f := range fields {
			if strings.Contains(f, "*") {
				n++
				fields[i] = fmt.Sprintf("{_wildcard_%d}", n)
			}
		}
		line = `"` + strings.Join(fields, " ") + `"`
	}

	switch {
	case !strings.Contains(line, `"`):
		line = promoteTokens(conv, line)
	case strings.Contains(line, "{"):
	default:
		return line
	}
	return e.resolveBraced(ses, conv, inst, line)
}

// promoteTokens wraps bare tokens that name a declared variable or a
// built-in function call in braces. Tokens left of an assignment stay
// untouched so set targets are not replaced with their own values.
func promoteTokens(conv *Conversation, line string) string {
	tokens := splitCallAware(line)
	for i, tok := range tokens {
		if strings.HasPrefix(tok, "{") {
			continue
		}
		rest := strings.Join(tokens[i+1:], " ")
		if strings.Contains(rest, "=") && !strings.Contains(rest, "==") {
			continue
		}
		base, _, _ := strings.Cut(tok, "[")
		fn, _, hasCall := strings.Cut(tok, "(")
		if _, ok := conv.Variables[base]; ok || (hasCall && parser.IsVariableFunction(fn)) {
			tokens[i] = "{" + tok + "}"
		}
	}
	return strings.Join(tokens, " ")
}

// splitCallAware splits on spaces but keeps a parenthesized call
// together as one token even when its arguments contain spaces.
func splitCallAware(line string) []string {
	fields := strings.Fields(line)
	var out []string
	for i := 0; i < len(fields); i++ {
		tok := fields[i]
		if strings.Contains(tok, "(") && !strings.Contains(tok, ")") {
			for i+1 < len(fields) {
				i++
				tok += " " + fields[i]
				if strings.Contains(fields[i], ")") {
					break
				}
			}
		}
		out = append(out, tok)
	}
	return out
}

// resolveBraced replaces every {reference} in line with its value.
func (e *Engine) resolveBraced(ses *session, conv *Conversation, inst parser.Instruction, line string) string {
	var b strings.Builder
	for {
		pre, rest, ok := strings.Cut(line, "{")
		b.WriteString(pre)
		if !ok {
			break
		}
		token, after, ok := strings.Cut(rest, "}")
		if !ok {
			b.WriteString("{")
			b.WriteString(rest)
			break
		}
		b.WriteString(e.resolveReference(ses, conv, inst, token))
		line = after
	}
	return b.String()
}

// resolveReference resolves one braced token: a function call, or a
// variable with an optional [index] suffix. [*] joins the whole
// history. Undeclared references are reported and read as empty.
func (e *Engine) resolveReference(ses *session, conv *Conversation, inst parser.Instruction, token string) string {
	token = strings.TrimSpace(token)
	if fn, arg, ok := splitFuncCall(token); ok {
		res, err := e.callFunction(ses, conv, fn, arg)
		if err != nil {
			e.reportError(ses, conv, &LineError{
				Kind:   "function",
				Line:   inst.LineNumber,
				Script: conv.ScriptName,
				Detail: err.Error(),
			})
			return ""
		}
		if res.links != nil {
			return joinKeys(res.links)
		}
		return res.value
	}

	name, idxSpec, hasIdx := strings.Cut(token, "[")
	name = strings.TrimSpace(name)
	hist, ok := conv.Variables[name]
	if !ok {
		if strings.Contains(name, ".") {
			if v, qok := ses.stack.LookupQualified(name); qok {
				hist, ok = []string{v}, true
			}
		} else if vals, eok := ses.stack.LookupEnclosing(name); eok {
			hist, ok = vals, true
		}
	}
	if !ok {
		e.reportError(ses, conv, &LineError{
			Kind:   "undeclared variable",
			Line:   inst.LineNumber,
			Script: conv.ScriptName,
			Detail: name,
		})
		return ""
	}
	if len(hist) == 0 {
		return ""
	}

	if hasIdx {
		idxSpec = strings.TrimSuffix(strings.TrimSpace(idxSpec), "]")
		if idxSpec == "*" {
			parts := make([]string, len(hist))
			for i, v := range hist {
				parts[i] = parser.Unquote(strings.TrimSpace(v))
			}
			return strings.Join(parts, ", ")
		}
		if n, err := strconv.Atoi(idxSpec); err == nil && n >= 0 && n < len(hist) {
			return parser.Unquote(strings.TrimSpace(hist[n]))
		}
	}
	return parser.Unquote(strings.TrimSpace(hist[0]))
}

// splitFuncCall recognizes a built-in function call token and returns
// its name and raw argument text.
func splitFuncCall(token string) (fn, arg string, ok bool) {
	fn, rest, found := strings.Cut(token, "(")
	if !found || !parser.IsVariableFunction(strings.TrimSpace(fn)) {
		return "", "", false
	}
	arg, _, _ = strings.Cut(rest, ")")
	return strings.TrimSpace(fn), strings.TrimSpace(arg), true
}

func joinKeys(links map[string]string) string {
	keys := make([]string, 0, len(links))
	for k := range links {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}
