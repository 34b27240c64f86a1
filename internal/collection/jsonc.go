package collection

import "strings"

// StripJSONC removes // line comments and /* */ block comments from JSONC
// content while preserving string literals and escapes.
func StripJSONC(content string) string {
	var b strings.Builder
	b.Grow(len(content))

	inString := false
	inLine := false
	inBlock := false

	runes := []rune(content)
	for i := 0; i < len(runes); i++ {
		c := runes[i]

		if inLine {
			if c == '\n' {
				inLine = false
				b.WriteRune(c)
			}
			continue
		}
		if inBlock {
			if c == '*' && i+1 < len(runes) && runes[i+1] == '/' {
				i++
				inBlock = false
			}
			continue
		}
		if inString {
			b.WriteRune(c)
			if c == '\\' && i+1 < len(runes) {
				i++
				b.WriteRune(runes[i])
			} else if c == '"' {
				inString = false
			}
			continue
		}

		switch {
		case c == '"':
			inString = true
			b.WriteRune(c)
		case c == '/' && i+1 < len(runes) && runes[i+1] == '/':
			i++
			inLine = true
		case c == '/' && i+1 < len(runes) && runes[i+1] == '*':
			i++
			inBlock = true
		default:
			b.WriteRune(c)
		}
	}

	return b.String()
}
