package engine

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/convolang/convo/parser"
)

// mathFuncs are the only callable names inside a python instruction.
// The command name is historical; the evaluator accepts arithmetic and
// these functions, nothing else.
var mathFuncs = map[string]func(float64) float64{
	"sqrt": math.Sqrt,
	"ln":   math.Log,
	"log":  math.Log10,
	"sin":  math.Sin,
	"cos":  math.Cos,
	"tan":  math.Tan,
	"sinh": math.Sinh,
	"cosh": math.Cosh,
	"tanh": math.Tanh,
	"asin": math.Asin,
	"acos": math.Acos,
	"atan": math.Atan,
}

var mathConsts = map[string]float64{
	"e":  math.E,
	"pi": math.Pi,
}

// runPython evaluates a math expression, optionally assigning the
// result to a variable. A malformed expression is recoverable.
func (e *Engine) runPython(ses *session, conv *Conversation, inst parser.Instruction, text string) error {
	conv.CurrentIndex++
	name := ""
	expr := strings.TrimSpace(text)
	if lhs, rhs, ok := strings.Cut(expr, "="); ok && !strings.Contains(expr, "==") {
		name = strings.Trim(strings.TrimSpace(lhs), "{}")
		expr = strings.TrimSpace(rhs)
	}
	val, err := evalMath(expr)
	if err != nil {
		e.reportError(ses, conv, &LineError{
			Kind:   "expression",
			Line:   inst.LineNumber,
			Script: conv.ScriptName,
			Detail: err.Error(),
		})
		return nil
	}
	if name != "" {
		conv.PushValue(name, formatNumber(val))
	}
	return nil
}

// formatNumber renders whole results as integers and everything else
// rounded to three decimal places.
func formatNumber(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(math.Round(v*1000)/1000, 'f', -1, 64)
}

type exprLexer struct {
	tokens []string
	pos    int
}

// evalMath evaluates a restricted arithmetic expression: numbers, the
// constants e and pi, the functions in mathFuncs, parentheses and
// + - * /.
func evalMath(src string) (float64, error) {
	tokens, err := lexMath(src)
	if err != nil {
		return 0, err
	}
	if len(tokens) == 0 {
		return 0, fmt.Errorf("empty expression")
	}
	p := &exprLexer{tokens: tokens}
	v, err := p.sum()
	if err != nil {
		return 0, err
	}
	if p.pos != len(p.tokens) {
		return 0, fmt.Errorf("unexpected %q", p.tokens[p.pos])
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("result is not a number")
	}
	return v, nil
}

func lexMath(src string) ([]string, error) {
	var tokens []string
	runes := []rune(src)
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case unicode.IsDigit(r) || r == '.':
			j := i
			for j < len(runes) && (unicode.IsDigit(runes[j]) || runes[j] == '.') {
				j++
			}
			tokens = append(tokens, string(runes[i:j]))
			i = j
		case unicode.IsLetter(r) || r == '_':
			j := i
			for j < len(runes) && (unicode.IsLetter(runes[j]) || unicode.IsDigit(runes[j]) || runes[j] == '_') {
				j++
			}
			tokens = append(tokens, string(runes[i:j]))
			i = j
		case strings.ContainsRune("+-*/()", r):
			tokens = append(tokens, string(r))
			i++
		default:
			return nil, fmt.Errorf("bad character %q", r)
		}
	}
	return tokens, nil
}

func (p *exprLexer) peek() string {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	return ""
}

func (p *exprLexer) sum() (float64, error) {
	v, err := p.product()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek() {
		case "+":
			p.pos++
			w, err := p.product()
			if err != nil {
				return 0, err
			}
			v += w
		case "-":
			p.pos++
			w, err := p.product()
			if err != nil {
				return 0, err
			}
			v -= w
		default:
			return v, nil
		}
	}
}

func (p *exprLexer) product() (float64, error) {
	v, err := p.unary()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek() {
		case "*":
			p.pos++
			w, err := p.unary()
			if err != nil {
				return 0, err
			}
			v *= w
		case "/":
			p.pos++
			w, err := p.unary()
			if err != nil {
				return 0, err
			}
			if w == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			v /= w
		default:
			return v, nil
		}
	}
}

func (p *exprLexer) unary() (float64, error) {
	if p.peek() == "-" {
		p.pos++
		v, err := p.unary()
		return -v, err
	}
	return p.primary()
}

func (p *exprLexer) primary() (float64, error) {
	tok := p.peek()
	switch {
	case tok == "":
		return 0, fmt.Errorf("unexpected end of expression")
	case tok == "(":
		p.pos++
		v, err := p.sum()
		if err != nil {
			return 0, err
		}
		if p.peek() != ")" {
			return 0, fmt.Errorf("missing closing parenthesis")
		}
		p.pos++
		return v, nil
	case unicode.IsDigit(rune(tok[0])) || tok[0] == '.':
		p.pos++
		return strconv.ParseFloat(tok, 64)
	default:
		p.pos++
		if c, ok := mathConsts[strings.ToLower(tok)]; ok {
			return c, nil
		}
		fn, ok := mathFuncs[strings.ToLower(tok)]
		if !ok {
			return 0, fmt.Errorf("unknown name %q", tok)
		}
		if p.peek() != "(" {
			return 0, fmt.Errorf("%s needs an argument", tok)
		}
		p.pos++
		v, err := p.sum()
		if err != nil {
			return 0, err
		}
		if p.peek() != ")" {
			return 0, fmt.Errorf("missing closing parenthesis")
		}
		p.pos++
		return fn(v), nil
	}
}
