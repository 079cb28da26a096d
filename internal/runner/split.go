package runner

import (
	"strings"
	"unicode"
)

// SplitStatements splits a script on top-level semicolons. Semicolons inside
// quoted strings, quoted identifiers and comments do not split. Statements that
// hold nothing but whitespace and comments are dropped.
func SplitStatements(script string) []string {
	var (
		out     []string
		current strings.Builder
	)
	runes := []rune(script)
	flush := func() {
		stmt := strings.TrimSpace(current.String())
		current.Reset()
		if stripLeadingComments(stmt) == "" {
			return
		}
		out = append(out, stmt)
	}

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '\'' || r == '"' || r == '`':
			end := closingIndex(runes, i+1, r)
			current.WriteString(string(runes[i:end]))
			i = end - 1
		case r == '[':
			end := closingIndex(runes, i+1, ']')
			current.WriteString(string(runes[i:end]))
			i = end - 1
		case r == '-' && i+1 < len(runes) && runes[i+1] == '-':
			end := i
			for end < len(runes) && runes[end] != '\n' {
				end++
			}
			current.WriteString(string(runes[i:end]))
			i = end - 1
		case r == '/' && i+1 < len(runes) && runes[i+1] == '*':
			end := blockCommentEnd(runes, i+2)
			current.WriteString(string(runes[i:end]))
			i = end - 1
		case r == ';':
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return out
}

// closingIndex returns the index just past the rune that closes a quoted
// section starting at from. An unterminated section runs to the end.
func closingIndex(runes []rune, from int, closing rune) int {
	for j := from; j < len(runes); j++ {
		if runes[j] == closing {
			return j + 1
		}
	}
	return len(runes)
}

func blockCommentEnd(runes []rune, from int) int {
	for j := from; j+1 < len(runes); j++ {
		if runes[j] == '*' && runes[j+1] == '/' {
			return j + 2
		}
	}
	return len(runes)
}

// LeadingKeyword returns the first keyword of a statement in upper case,
// skipping whitespace and comments. It returns "" for empty input.
func LeadingKeyword(stmt string) string {
	rest := strings.TrimLeftFunc(stripLeadingComments(stmt), unicode.IsSpace)
	if rest == "" {
		return ""
	}
	end := strings.IndexFunc(rest, func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	if end < 0 {
		end = len(rest)
	}
	return strings.ToUpper(rest[:end])
}

func stripLeadingComments(stmt string) string {
	rest := stmt
	for {
		rest = strings.TrimLeftFunc(rest, unicode.IsSpace)
		switch {
		case strings.HasPrefix(rest, "--"):
			idx := strings.IndexByte(rest, '\n')
			if idx < 0 {
				return ""
			}
			rest = rest[idx+1:]
		case strings.HasPrefix(rest, "/*"):
			idx := strings.Index(rest[2:], "*/")
			if idx < 0 {
				return ""
			}
			rest = rest[idx+4:]
		default:
			return rest
		}
	}
}

var rowKeywords = map[string]bool{
	"SELECT":  true,
	"WITH":    true,
	"VALUES":  true,
	"PRAGMA":  true,
	"EXPLAIN": true,
}

// ReturnsRows reports whether a statement is expected to produce a row set.
// It is a keyword heuristic.
func ReturnsRows(stmt string) bool {
	return rowKeywords[LeadingKeyword(stmt)]
}
