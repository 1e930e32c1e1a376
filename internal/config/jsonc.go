// Package config implements the comment-tolerant JSON + variable expander
// (spec §4.1) and the config loader (spec §4.10). No ecosystem JSON5/HJSON
// library implements this exact grammar (backtick multi-line strings with
// a fixed escape table, plus @{VAR:-default} expansion layered on top), so
// the stripping and expansion passes are hand-rolled; the result is
// decoded with the standard library's encoding/json.
package config

import (
	"strings"

	"github.com/anandb/mockrelay/internal/apperrors"
)

// LooksCommentTolerant applies the loader's auto-detection rule from spec
// §4.1: a ".jsonmc" filename, a file that begins with "/*", or a file that
// contains "//" is treated as comment-tolerant.
func LooksCommentTolerant(filename string, content []byte) bool {
	if strings.HasSuffix(filename, ".jsonmc") {
		return true
	}
	trimmed := strings.TrimSpace(string(content))
	if strings.HasPrefix(trimmed, "/*") {
		return true
	}
	return strings.Contains(string(content), "//")
}

// StripComments runs the stripping pass of spec §4.1: it removes //
// line comments and /* */ block comments, and rewrites backtick-delimited
// multi-line strings into standard JSON string literals, while leaving the
// interiors of ordinary double-quoted strings untouched.
func StripComments(src []byte) ([]byte, error) {
	runes := []rune(string(src))
	var out strings.Builder
	i := 0
	n := len(runes)

	for i < n {
		c := runes[i]
		switch {
		case c == '"':
			start := i
			i++
			closed := false
			for i < n {
				if runes[i] == '\\' && i+1 < n {
					i += 2
					continue
				}
				if runes[i] == '"' {
					i++
					closed = true
					break
				}
				i++
			}
			if !closed {
				return nil, apperrors.ParseError("unclosed string starting at offset %d", start)
			}
			out.WriteString(string(runes[start:i]))

		case c == '`':
			i++
			rewritten, newPos, err := rewriteBacktickString(runes, i)
			if err != nil {
				return nil, err
			}
			out.WriteByte('"')
			out.WriteString(rewritten)
			out.WriteByte('"')
			i = newPos

		case c == '/' && i+1 < n && runes[i+1] == '/':
			for i < n && runes[i] != '\n' {
				i++
			}
			// line terminator itself is preserved by the outer loop

		case c == '/' && i+1 < n && runes[i+1] == '*':
			start := i
			i += 2
			closed := false
			for i+1 < n {
				if runes[i] == '*' && runes[i+1] == '/' {
					i += 2
					closed = true
					break
				}
				i++
			}
			if !closed {
				return nil, apperrors.ParseError("unclosed /* */ comment starting at offset %d", start)
			}

		default:
			out.WriteRune(c)
			i++
		}
	}
	return []byte(out.String()), nil
}

// rewriteBacktickString consumes runes from pos (just after the opening
// backtick) up to and including the closing backtick, applying the
// character mapping from spec §4.1, and returns the rewritten (not yet
// quoted) contents plus the position just after the closing backtick.
func rewriteBacktickString(runes []rune, pos int) (string, int, error) {
	start := pos
	var sb strings.Builder
	n := len(runes)
	for pos < n {
		c := runes[pos]
		switch c {
		case '`':
			return sb.String(), pos + 1, nil
		case '\n':
			sb.WriteString(`\n`)
			pos++
		case '\r':
			if pos+1 < n && runes[pos+1] == '\n' {
				pos++ // swallow the CR, the following LF is handled next iteration
				continue
			}
			sb.WriteString(`\n`)
			pos++
		case '\t':
			sb.WriteString(`\t`)
			pos++
		case '\b':
			sb.WriteString(`\b`)
			pos++
		case '\f':
			sb.WriteString(`\f`)
			pos++
		case '"':
			sb.WriteString(`\"`)
			pos++
		case '\\':
			sb.WriteString(`\\`)
			pos++
		default:
			sb.WriteRune(c)
			pos++
		}
	}
	return "", 0, apperrors.ParseError("unclosed backtick string starting at offset %d", start)
}
