package parser

import "strings"

// SplitParams splits a parameter list on delim while keeping quoted
// segments intact. A quoted segment keeps its surrounding quotes so
// callers can tell literals from variable names. When the text does not
// open with a quote the whole string is split naively on delim.
func SplitParams(text, delim string) []string {
	var quote string
	switch {
	case strings.HasPrefix(text, `"`):
		quote = `"`
	case strings.HasPrefix(text, "'"):
		quote = "'"
	default:
		parts := strings.Split(text, delim)
		params := make([]string, 0, len(parts))
		for _, p := range parts {
			params = append(params, strings.TrimSpace(p))
		}
		return params
	}

	var params []string
	remainder := text
	inQuote := true
	for remainder != "" {
		if inQuote {
			body := strings.TrimLeft(remainder, quote)
			param, rest, found := strings.Cut(body, quote)
			params = append(params, quote+param+quote)
			if !found {
				break
			}
			remainder = rest
			inQuote = false
			continue
		}
		param, rest, found := strings.Cut(remainder, delim)
		if strings.TrimSpace(param) != "" {
			params = append(params, param)
		}
		if !found {
			break
		}
		remainder = strings.TrimSpace(rest)
		if strings.HasPrefix(remainder, quote) {
			inQuote = true
		}
	}
	return params
}

// Unquote strips one layer of matching surrounding quotes.
func Unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
