package ruledsl

import (
	"strings"
)

var keywords = []string{
	"RULE", "WHEN", "FOR", "DO", "END",
	"NOTIFY", "EXECUTE", "LOG", "SET", "DELAY",
	"ALERT", "HTTP", "DESCRIPTION", "TAGS",
}

// preprocess normalizes common LLM output quirks before parsing: markdown
// code fences, JSON-string wrapping/escaping, lowercase keywords, and
// single-line rules.
func preprocess(input string) string {
	processed := splitSingleLineRules(input)
	processed = stripCodeFences(processed)
	processed = unwrapJSONString(processed)
	processed = strings.ReplaceAll(processed, `\"`, `"`)
	processed = strings.ReplaceAll(processed, `\n`, "\n")
	processed = strings.ReplaceAll(processed, `\t`, "\t")
	processed = strings.ReplaceAll(processed, `\r`, "\r")

	lines := strings.Split(processed, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(normalizeKeywords(l))
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func stripCodeFences(input string) string {
	if !strings.Contains(input, "```") {
		return input
	}
	var b strings.Builder
	inBlock := false
	wrote := false
	for _, line := range strings.Split(input, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inBlock = !inBlock
			continue
		}
		if inBlock {
			b.WriteString(line)
			b.WriteByte('\n')
			wrote = true
		}
	}
	if wrote {
		return b.String()
	}
	return input
}

func unwrapJSONString(input string) string {
	trimmed := strings.TrimSpace(input)
	if len(trimmed) < 2 {
		return input
	}
	quoted := (strings.HasPrefix(trimmed, `"`) && strings.HasSuffix(trimmed, `"`)) ||
		(strings.HasPrefix(trimmed, "'") && strings.HasSuffix(trimmed, "'"))
	if !quoted {
		return input
	}
	inner := trimmed[1 : len(trimmed)-1]
	return strings.ReplaceAll(inner, `\"`, `"`)
}

// normalizeKeywords upper-cases a recognized leading keyword on a line
// while leaving the rest of the line (names, conditions, strings) intact.
func normalizeKeywords(line string) string {
	start := 0
	for start < len(line) && (line[start] == ' ' || line[start] == '\t') {
		start++
	}
	indent, rest := line[:start], line[start:]
	upper := strings.ToUpper(rest)

	for _, kw := range keywords {
		if upper == kw || strings.HasPrefix(upper, kw+" ") {
			remainder := rest[len(kw):]
			return indent + kw + remainder
		}
	}
	return line
}

// splitSingleLineRules turns `RULE "x" WHEN c DO a END` into the
// multi-line form the parser expects, leaving already-multi-line input
// untouched.
func splitSingleLineRules(input string) string {
	var out strings.Builder
	for _, line := range strings.Split(input, "\n") {
		trimmed := strings.TrimSpace(line)
		upper := strings.ToUpper(trimmed)
		if !strings.HasPrefix(upper, "RULE") {
			out.WriteString(trimmed)
			out.WriteByte('\n')
			continue
		}

		hasWhen := strings.Contains(upper, " WHEN ")
		hasDo := strings.Contains(upper, " DO ")
		hasEnd := strings.HasSuffix(upper, " END") || strings.Contains(upper, " END ")
		if !hasWhen && !hasDo && !hasEnd {
			out.WriteString(trimmed)
			out.WriteByte('\n')
			continue
		}

		remaining := trimmed
		var parts []string

		if idx := findKeywordEnd(remaining, "RULE"); idx >= 0 {
			rulePart := remaining[:idx]
			after := strings.TrimSpace(remaining[idx:])
			// Pull the quoted rule name along with the RULE keyword so it
			// isn't dropped from the split.
			if strings.HasPrefix(after, `"`) {
				if end := strings.IndexByte(after[1:], '"'); end >= 0 {
					nameEnd := end + 2
					rulePart = rulePart + " " + after[:nameEnd]
					after = strings.TrimSpace(after[nameEnd:])
				}
			}
			parts = append(parts, strings.TrimSpace(rulePart))
			remaining = after
		}

		remUpper := strings.ToUpper(remaining)
		if pos := strings.Index(remUpper, " WHEN "); pos >= 0 {
			afterWhen := strings.TrimSpace(remaining[pos+6:])
			remaining = strings.TrimSpace(remaining[:pos])
			end := findClauseEnd(strings.ToUpper(afterWhen))
			parts = append(parts, "WHEN "+strings.TrimSpace(afterWhen[:end]))
			if end < len(afterWhen) {
				remaining = strings.TrimSpace(afterWhen[end:])
			} else {
				remaining = ""
			}
		}

		remUpper = strings.ToUpper(remaining)
		if pos := strings.Index(remUpper, " FOR "); pos >= 0 {
			afterFor := strings.TrimSpace(remaining[pos+5:])
			remaining = strings.TrimSpace(remaining[:pos])
			end := findClauseEnd(strings.ToUpper(afterFor))
			parts = append(parts, "FOR "+strings.TrimSpace(afterFor[:end]))
			if end < len(afterFor) {
				remaining = strings.TrimSpace(afterFor[end:])
			} else {
				remaining = ""
			}
		}

		remUpper = strings.ToUpper(remaining)
		if pos := strings.Index(remUpper, " DO "); pos >= 0 {
			afterDo := strings.TrimSpace(remaining[pos+4:])
			remaining = strings.TrimSpace(remaining[:pos])
			afterDoUpper := strings.ToUpper(afterDo)
			end := strings.Index(afterDoUpper, " END")
			if end < 0 {
				end = len(afterDo)
			}
			parts = append(parts, "DO "+strings.TrimSpace(afterDo[:end]))
			if end+4 < len(afterDo) {
				remaining = strings.TrimSpace(afterDo[end+4:])
			} else {
				remaining = ""
			}
		}

		if remaining != "" && strings.HasPrefix(strings.ToUpper(remaining), "END") {
			parts = append(parts, "END")
		}

		out.WriteString(strings.Join(parts, "\n"))
		out.WriteByte('\n')
	}
	return strings.TrimSpace(out.String())
}

func findKeywordEnd(s, keyword string) int {
	upper := strings.ToUpper(s)
	if !strings.HasPrefix(upper, keyword) {
		return -1
	}
	if len(s) == len(keyword) {
		return len(keyword)
	}
	next := s[len(keyword)]
	if next == ' ' || next == '\t' || next == '"' {
		return len(keyword)
	}
	return -1
}

// findClauseEnd returns the offset (in upper, the upper-cased haystack)
// of whichever of DO/FOR/END appears first, or len(upper) if none do.
func findClauseEnd(upper string) int {
	min := len(upper)
	for _, kw := range []string{" DO ", " FOR ", " END"} {
		if pos := strings.Index(upper, kw); pos >= 0 && pos < min {
			min = pos
		}
	}
	return min
}
