package index

import "strings"

// StripMarkdown removes heading, emphasis, code-fence, and link syntax from
// body, collapsing links to their link-text content, so the full-text index
// stores prose rather than markup noise (§4.8).
func StripMarkdown(body string) string {
	s := body
	for _, tok := range []string{"```", "**", "__", "`", "#", "*", "_"} {
		s = strings.ReplaceAll(s, tok, " ")
	}
	s = stripLinkSyntax(s)
	return s
}

// stripLinkSyntax collapses `[[target|alias]]`, `[[target]]`, and
// `[text](url)` down to their visible text.
func stripLinkSyntax(s string) string {
	var b strings.Builder
	i := 0
	for i < len(s) {
		switch {
		case strings.HasPrefix(s[i:], "[["):
			end := strings.Index(s[i+2:], "]]")
			if end < 0 {
				b.WriteString(s[i:])
				i = len(s)
				continue
			}
			inner := s[i+2 : i+2+end]
			if idx := strings.Index(inner, "|"); idx >= 0 {
				inner = inner[idx+1:]
			}
			b.WriteString(inner)
			i += 2 + end + 2
		case s[i] == '[':
			closeBracket := strings.Index(s[i:], "]")
			if closeBracket < 0 {
				b.WriteByte(s[i])
				i++
				continue
			}
			text := s[i+1 : i+closeBracket]
			rest := s[i+closeBracket+1:]
			if strings.HasPrefix(rest, "(") {
				closeParen := strings.Index(rest, ")")
				if closeParen >= 0 {
					b.WriteString(text)
					i += closeBracket + 1 + closeParen + 1
					continue
				}
			}
			b.WriteByte(s[i])
			i++
		default:
			b.WriteByte(s[i])
			i++
		}
	}
	return b.String()
}

// tokenize lowercases and splits into terms of at least 2 characters,
// treating ASCII letters, digits, hyphen, underscore, and any non-ASCII rune
// as word characters.
func tokenize(text string) []string {
	cleaned := StripMarkdown(text)
	fields := strings.FieldsFunc(strings.ToLower(cleaned), func(r rune) bool {
		return !isWordChar(r)
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) >= 2 {
			out = append(out, f)
		}
	}
	return out
}

func isWordChar(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '-' || r == '_':
		return true
	case r > 127:
		return true
	default:
		return false
	}
}
