// Package parser turns conversation script source into an immutable
// Script ready for execution or caching. Parsing is best effort:
// problems are collected as Diagnostics and the parser keeps going, so
// a script with a bad line still loads with everything around it
// intact.
package parser

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Version identifies the compiler that produced a cached script.
const Version = "0.3.0"

// Options configure defaults applied when a script leaves them unset.
type Options struct {
	// DefaultLanguage is used when a Language line names no locale.
	DefaultLanguage string
	// DefaultGender is used when a Language line names no gender.
	DefaultGender string
	// SpeakerName is the name attached to scripted speech.
	SpeakerName string
	Logger      *log.Logger
}

// Parser parses conversation scripts.
type Parser struct {
	opts Options
	log  *log.Logger
}

// New returns a Parser with any unset options filled with defaults.
func New(opts Options) *Parser {
	if opts.DefaultLanguage == "" {
		opts.DefaultLanguage = "en-us"
	}
	if opts.DefaultGender == "" {
		opts.DefaultGender = "female"
	}
	if opts.SpeakerName == "" {
		opts.SpeakerName = "Convo"
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Parser{opts: opts, log: opts.Logger}
}

// ParseFile reads and parses the script at path.
func (p *Parser) ParseFile(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	return p.Parse(string(data)), nil
}

// parseState carries load-time bookkeeping that does not survive into
// the Script.
type parseState struct {
	lastVariable string
}

// Parse parses src into a Script. It never fails outright; lines that
// cannot be resolved are recorded as Diagnostics and kept with
// CmdNone so line numbering stays intact.
func (p *Parser) Parse(src string) *Script {
	s := &Script{
		Loops:          make(map[string]Loop),
		Tags:           make(map[string]int),
		Claps:          make(map[string]string),
		TimeoutSeconds: -1,
		Meta: Meta{
			CompilerVersion: Version,
			CompiledAt:      time.Now().Unix(),
			RawSource:       src,
		},
	}
	st := &parseState{}

	var cls lineClassifier
	for i, raw := range strings.Split(src, "\n") {
		lineNum := i + 1
		info := cls.classify(raw)
		if info.skip {
			continue
		}
		if info.indentUnits%indentUnit != 0 {
			p.warnf(s, lineNum, "indent is not a multiple of %d", indentUnit)
		}

		inst := Instruction{LineNumber: lineNum, Indent: info.indent}

		// The text recorded for a line is its content with any
		// leading "Command: " prefix removed.
		content := info.text
		if idx := strings.Index(content, ": "); idx >= 0 {
			content = strings.TrimSpace(content[idx+2:])
		}
		inst.Text = content

		var last *Instruction
		if n := len(s.Instructions); n > 0 {
			last = &s.Instructions[n-1]
		}

		// Relate this line to any case block the previous line was
		// inside. An outdent below the innermost branch level closes
		// that case; landing exactly one level under it marks a new
		// branch condition.
		var exitCases []int
		caseExit := false
		if last != nil {
			pci := last.ParentCaseIndents
			switch {
			case inst.Indent < last.Indent && len(pci) > 0 &&
				inst.Indent != pci[len(pci)-1]+1:
				exitCases = append([]int(nil), pci[:len(pci)-1]...)
				caseExit = true
			case len(pci) > 0 && inst.Indent == pci[len(pci)-1]+1:
				inst.Command = CmdCase
			}
		}

		// An explicit keyword always wins over inference.
		if kind, word, ok := matchKeyword(info.text); ok {
			inst.Command = kind
			if kind == CmdVarFunc {
				inst.Data = FuncCall{Name: word}
			}
		} else if inst.Command == CmdNone {
			lower := strings.ToLower(info.text)
			for _, fn := range VariableFunctions {
				if strings.HasPrefix(lower, fn) {
					inst.Command = CmdVarFunc
					inst.Data = FuncCall{Name: fn}
					break
				}
			}
		}

		// After closing an inner case we may land on a branch of an
		// outer one.
		if inst.Command == CmdNone && caseExit {
			for _, ind := range exitCases {
				if inst.Indent == ind+1 {
					inst.Command = CmdCase
					break
				}
			}
		}

		if inst.Command == CmdNone && last != nil {
			decl, inVariable := last.Data.(VariableDecl)
			lhs, _, assigns := strings.Cut(inst.Text, "=")
			lhs = strings.TrimSpace(lhs)
			if after, found := strings.CutPrefix(strings.ToLower(lhs), "set "); found {
				lhs = strings.TrimSpace(after)
			}
			switch {
			case last.Command == CmdVariable && inVariable && inst.Indent > decl.DeclIndent:
				// Folded continuation of a multi-line variable body.
				inst.Data = VariableDecl{
					Name:         decl.Name,
					Value:        inst.Text,
					DeclIndent:   decl.DeclIndent,
					Continuation: true,
				}
				inst.Command = CmdVariable
			case assigns && s.HasVariable(lhs):
				inst.Command = CmdSet
			case inst.Indent >= last.Indent && !noImplicitMultiline[last.Command]:
				inst.Command = last.Command
			case assigns:
				p.warnf(s, lineNum, "no explicit command, assuming assignment")
				inst.Command = CmdSet
			default:
				p.warnf(s, lineNum, "no command found for %q", info.text)
			}
		} else if inst.Command == CmdNone && last == nil {
			p.warnf(s, lineNum, "no command found for %q", info.text)
		}

		if caseExit {
			inst.ParentCaseIndents = exitCases
		} else {
			if last != nil {
				inst.ParentCaseIndents = append([]int(nil), last.ParentCaseIndents...)
			}
			if inst.Command == CmdCase &&
				strings.HasPrefix(strings.ToLower(info.text), "case") {
				inst.ParentCaseIndents = append(inst.ParentCaseIndents, inst.Indent)
			}
		}

		p.applyHook(s, st, &inst, info.text)
		s.Instructions = append(s.Instructions, inst)
	}
	return s
}

func (p *Parser) warnf(s *Script, line int, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	s.Diagnostics = append(s.Diagnostics, Diagnostic{Line: line, Message: msg})
	p.log.Warn(msg, "line", line)
}
