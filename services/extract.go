package services

import (
	"regexp"
	"strings"
)

var codeFenceRule = regexp.MustCompile("(?s)```[a-zA-Z0-9_-]*[ \t]*\\r?\\n?(.*?)```")

// ExtractJSON recovers the JSON object embedded in raw model output. It tolerates
// markdown fences, prose around the payload and responses truncated by token limits.
// When nothing JSON-like is found the trimmed input is returned so that decoding
// reports a clear error instead of silently dropping content.
func ExtractJSON(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return text
	}

	if match := codeFenceRule.FindStringSubmatch(text); match != nil {
		inner := strings.TrimSpace(match[1])
		if inner != "" {
			return repairTruncated(inner)
		}
	}

	start := strings.Index(text, "{")
	if start < 0 {
		return text
	}
	end := strings.LastIndex(text, "}")
	if end < start {
		// cut off before the first object ever closed
		return repairTruncated(text[start:])
	}
	return repairTruncated(text[start : end+1])
}

// repairTruncated appends the closers missing from span: a dangling string quote,
// then `]` runs, then `}` runs. Brackets inside string literals are not counted.
func repairTruncated(span string) string {
	var openBraces, closeBraces, openBrackets, closeBrackets int
	inString, escaped := false, false

	for _, r := range span {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}
		switch r {
		case '"':
			inString = true
		case '{':
			openBraces++
		case '}':
			closeBraces++
		case '[':
			openBrackets++
		case ']':
			closeBrackets++
		}
	}

	if openBraces <= closeBraces && openBrackets <= closeBrackets && !inString {
		return span
	}

	var b strings.Builder
	b.WriteString(span)
	if inString {
		if escaped {
			b.WriteString("\\")
		}
		b.WriteString(`"`)
	}
	if missing := openBrackets - closeBrackets; missing > 0 {
		b.WriteString(strings.Repeat("]", missing))
	}
	if missing := openBraces - closeBraces; missing > 0 {
		b.WriteString(strings.Repeat("}", missing))
	}
	return b.String()
}
