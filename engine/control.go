package engine

import (
	"strconv"
	"strings"

	"github.com/convolang/convo/parser"
)

// comparators recognized inside if conditions, checked as standalone
// tokens after substitution.
var comparators = []string{
	"!IN", "IN", "!CONTAINS", "CONTAINS",
	"!STARTSWITH", "STARTSWITH", "!ENDSWITH", "ENDSWITH",
	"==", "!=", ">=", "<=", ">", "<",
}

// prepConditionText normalizes an if line before substitution: word
// comparators are uppercased so they survive lowercasing later, and a
// braced variable without an explicit index is widened to its whole
// history so membership tests see every value.
func prepConditionText(text string) string {
	fields := strings.Fields(text)
	for i, f := range fields {
		switch strings.ToLower(f) {
		case "in", "!in", "contains", "!contains",
			"startswith", "!startswith", "endswith", "!endswith":
			fields[i] = strings.ToUpper(f)
		}
	}
	out := strings.Join(fields, " ")
	if strings.Contains(out, "{") && !strings.Contains(out, "[") {
		out = strings.ReplaceAll(out, "}", "[*]}")
	}
	return out
}

func (e *Engine) runIf(conv *Conversation, inst parser.Instruction, text string) error {
	if evalCondition(text) {
		conv.CurrentIndex++
		return nil
	}
	// Skip the body: land right after a matching else, or on the first
	// real instruction back at or above this indent.
	for i := conv.CurrentIndex + 1; i < len(conv.Script.Instructions); i++ {
		next := conv.Script.Instructions[i]
		if next.Command == parser.CmdElse && next.Indent == inst.Indent {
			conv.CurrentIndex = i + 1
			conv.LastIndent = next.Indent
			return nil
		}
		if next.Indent <= inst.Indent && next.Command != parser.CmdNone {
			conv.CurrentIndex = i
			return nil
		}
	}
	conv.CurrentIndex = len(conv.Script.Instructions)
	return nil
}

// runElse is only reached when the if branch ran, so the whole else
// body is skipped.
func (e *Engine) runElse(ses *session, conv *Conversation, inst parser.Instruction) error {
	for i := conv.CurrentIndex + 1; i < len(conv.Script.Instructions); i++ {
		if conv.Script.Instructions[i].Indent <= inst.Indent {
			conv.CurrentIndex = i
			return nil
		}
	}
	conv.CurrentIndex = len(conv.Script.Instructions)
	return nil
}

// evalCondition judges a fully substituted condition. A single operand
// is truthy unless it reads as an empty or false-ish literal; two
// operands are compared with the comparator token between them,
// numerically when both sides parse as numbers.
func evalCondition(text string) bool {
	text = strings.NewReplacer(":", "", `"`, "").Replace(text)
	fields := strings.Fields(text)
	if len(fields) > 0 && strings.EqualFold(fields[0], "if") {
		fields = fields[1:]
	}
	if len(fields) == 0 {
		return false
	}
	cmpIdx, cmp := -1, ""
	for i, f := range fields {
		for _, c := range comparators {
			if f == c {
				cmpIdx, cmp = i, c
				break
			}
		}
		if cmpIdx >= 0 {
			break
		}
	}
	if cmpIdx < 0 {
		switch strings.ToLower(strings.Join(fields, " ")) {
		case "0", "false", "none", "null", "", "no":
			return false
		}
		return true
	}

	left := strings.ToLower(strings.Join(fields[:cmpIdx], " "))
	right := strings.ToLower(strings.Join(fields[cmpIdx+1:], " "))
	left = strings.ReplaceAll(left, ", ", ",")
	right = strings.ReplaceAll(right, ", ", ",")
	leftList := strings.Split(left, ",")
	rightList := strings.Split(right, ",")

	negate := strings.HasPrefix(cmp, "!")
	base := strings.TrimPrefix(cmp, "!")
	var result bool
	switch base {
	case "IN":
		for _, r := range rightList {
			if strings.TrimSpace(r) == strings.TrimSpace(leftList[0]) {
				result = true
				break
			}
		}
	case "CONTAINS":
		for _, r := range rightList {
			if strings.Contains(" "+left+" ", " "+strings.TrimSpace(r)+" ") {
				result = true
				break
			}
		}
	case "STARTSWITH":
		result = strings.HasPrefix(leftList[0], rightList[0])
	case "ENDSWITH":
		result = strings.HasSuffix(leftList[0], rightList[0])
	default:
		result = compareOperands(base, leftList[0], rightList[0])
		if cmp == "!=" {
			return result
		}
	}
	if negate && cmp != "!=" {
		return !result
	}
	return result
}

func compareOperands(op, left, right string) bool {
	lf, lerr := strconv.ParseFloat(left, 64)
	rf, rerr := strconv.ParseFloat(right, 64)
	numeric := lerr == nil && rerr == nil
	switch op {
	case "==":
		if numeric {
			return lf == rf
		}
		return left == right
	case "!=", "=":
		if numeric {
			return lf != rf
		}
		return left != right
	case ">":
		return numeric && lf > rf
	case "<":
		return numeric && lf < rf
	case ">=":
		return numeric && lf >= rf
	case "<=":
		return numeric && lf <= rf
	}
	return false
}

// runCase picks the branch whose text matches the case value. When no
// branch matches and the value came from a variable, the conversation
// suspends awaiting fresh input for that variable and the case is
// re-evaluated on resume; a literal value with no match falls past the
// whole group.
func (e *Engine) runCase(ses *session, conv *Conversation, inst parser.Instruction, text string) error {
	name, value := caseOperand(conv, inst.Text, text)
	valLower := strings.ToLower(parser.Unquote(value))

	insts := conv.Script.Instructions
	i := conv.CurrentIndex + 1
	for i < len(insts) {
		next := insts[i]
		if next.Indent <= inst.Indent {
			break
		}
		if next.Indent == inst.Indent+1 && branchMatches(next.Text, valLower) {
			conv.CurrentIndex = i + 1
			return nil
		}
		i++
	}
	if name != "" {
		conv.VariableToFill = name
		ses.awaitingInput = true
		e.scheduleTimeout(ses, conv)
		return errSuspend
	}
	conv.CurrentIndex = i
	return nil
}

// caseOperand splits a case instruction into the variable it watches
// (when there is one) and the value to match. The substituted text
// carries the value; the raw text still names the variable.
func caseOperand(conv *Conversation, raw, substituted string) (name, value string) {
	value = extractCaseValue(substituted)
	if _, ok := conv.Variables[value]; ok {
		// Unsubstituted form like Case(answer): the operand is still
		// the variable name.
		name = value
		if v, ok := conv.Value(value); ok {
			value = v
		} else {
			value = ""
		}
		return name, value
	}
	if inner := extractCaseValue(raw); inner != "" {
		if _, ok := conv.Variables[inner]; ok {
			name = inner
		}
	}
	return name, value
}

func extractCaseValue(text string) string {
	var value string
	switch {
	case strings.Contains(text, "("):
		value = between(text, "(", ")")
	case strings.Contains(text, "{"):
		value = between(text, "{", "}")
	case strings.Contains(text, " "):
		value = strings.Fields(text)[1]
	default:
		value = text
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(value), ":"))
}

func between(s, open, end string) string {
	_, after, ok := strings.Cut(s, open)
	if !ok {
		return ""
	}
	inner, _, _ := strings.Cut(after, end)
	return inner
}

// branchMatches tests one candidate branch line against the lowered
// case value. Alternatives joined with " or " each count.
func branchMatches(text, value string) bool {
	opt := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), ":"))
	for _, alt := range strings.Split(strings.ToLower(opt), " or ") {
		if parser.Unquote(strings.TrimSpace(alt)) == value {
			return true
		}
	}
	return false
}

// runLoopCmd advances through a loop start and decides at the end line
// whether to repeat. An UNTIL condition compares the watched variable's
// newest value against the target; a bare END repeats until a spoken
// exit escapes it.
func (e *Engine) runLoopCmd(conv *Conversation, inst parser.Instruction, text string) error {
	fields := strings.Fields(inst.Text)
	if len(fields) < 3 || (fields[2] != "END" && fields[2] != "UNTIL") {
		conv.CurrentIndex++
		return nil
	}
	lp, ok := conv.Script.Loops[fields[1]]
	if !ok || loopDone(conv, lp) {
		conv.CurrentIndex++
		return nil
	}
	idx, ok := conv.Script.IndexForLine(lp.Start)
	if !ok {
		conv.CurrentIndex++
		return nil
	}
	conv.CurrentIndex = idx
	conv.LastIndent = conv.Script.Instructions[idx].Indent
	return nil
}

func loopDone(conv *Conversation, lp parser.Loop) bool {
	if lp.EndVariable == "" {
		return false
	}
	name := strings.Trim(lp.EndVariable, "{}")
	val, ok := conv.Value(name)
	if !ok {
		return false
	}
	want := parser.Unquote(strings.TrimSpace(lp.EndValue))
	return strings.EqualFold(parser.Unquote(val), want)
}

// runGoto jumps to a tag or a literal line number. A missing
// destination is recoverable: it is reported and execution moves on.
func (e *Engine) runGoto(ses *session, conv *Conversation, inst parser.Instruction, text string) error {
	if e.jumpTo(ses, conv, text) {
		return nil
	}
	e.reportError(ses, conv, &LineError{
		Kind:   "missing tag",
		Line:   inst.LineNumber,
		Script: conv.ScriptName,
		Detail: strings.TrimSpace(text),
	})
	conv.CurrentIndex++
	return nil
}

func parseLineNumber(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}
