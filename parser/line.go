package parser

import "strings"

// indentUnit is the number of leading spaces (or dots) per indent level.
const indentUnit = 4

// lineInfo is the output of classifying one physical line.
type lineInfo struct {
	text        string // trimmed content, leading indent dots removed
	indent      int    // floor(indentUnits / indentUnit)
	indentUnits int    // raw count of leading indent characters
	skip        bool   // blank or comment line
}

// lineClassifier strips structural decoration from physical lines. It is
// stateful only for the triple-quote block-comment toggle, which persists
// across lines.
type lineClassifier struct {
	inBlockComment bool
}

// classify computes indentation and content for one raw line.
// Lines inside (or delimiting) block comments, blank lines, and
// #-comment lines come back with skip set.
func (c *lineClassifier) classify(raw string) lineInfo {
	stripped := strings.TrimSpace(raw)

	// Track triple-quote block comments; the delimiter lines themselves
	// are part of the comment.
	if strings.HasPrefix(stripped, `"""`) || strings.HasSuffix(stripped, `"""`) {
		c.inBlockComment = !c.inBlockComment
		return lineInfo{skip: true}
	}
	if c.inBlockComment || stripped == "" ||
		strings.HasPrefix(strings.TrimLeft(stripped, "."), "#") {
		return lineInfo{skip: true}
	}

	// Dot-indent dialect: a line starting with '.' counts leading dots.
	// Otherwise tabs expand to one indent unit each and leading
	// whitespace is counted.
	var units int
	if strings.HasPrefix(raw, ".") {
		units = len(raw) - len(strings.TrimLeft(raw, "."))
	} else {
		expanded := strings.ReplaceAll(raw, "\t", strings.Repeat(" ", indentUnit))
		units = len(expanded) - len(strings.TrimLeft(expanded, " "))
	}

	return lineInfo{
		text:        strings.TrimSpace(strings.TrimLeft(stripped, ".")),
		indent:      units / indentUnit,
		indentUnits: units,
	}
}
