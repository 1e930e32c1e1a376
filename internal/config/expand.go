package config

import (
	"strings"

	"github.com/anandb/mockrelay/internal/apperrors"
)

// Environment abstracts the variable source for ExpandVariables so tests
// don't need to mutate process environment variables.
type Environment interface {
	Lookup(name string) (string, bool)
}

// MapEnvironment is an Environment backed by a plain map, useful for tests
// and for callers that have already snapshotted os.Environ().
type MapEnvironment map[string]string

func (m MapEnvironment) Lookup(name string) (string, bool) {
	v, ok := m[name]
	return v, ok
}

// ExpandVariables runs the variable-expansion pass of spec §4.1: each
// "@{NAME}" or "@{NAME:-DEFAULT}" occurrence is replaced by NAME's value
// from env, or DEFAULT if NAME is absent, or a VariableNotFoundError if
// neither is available.
func ExpandVariables(src []byte, env Environment) ([]byte, error) {
	s := string(src)
	var out strings.Builder
	i := 0
	for i < len(s) {
		if i+1 < len(s) && s[i] == '@' && s[i+1] == '{' {
			close := strings.IndexByte(s[i+2:], '}')
			if close < 0 {
				return nil, apperrors.ParseError("unterminated @{...} reference starting at offset %d", i)
			}
			body := s[i+2 : i+2+close]
			name, defaultVal, hasDefault := splitNameDefault(body)
			if strings.ContainsAny(name, "}:") {
				return nil, apperrors.ParseError("invalid variable name %q", name)
			}
			val, found := env.Lookup(name)
			switch {
			case found:
				out.WriteString(val)
			case hasDefault:
				out.WriteString(defaultVal)
			default:
				return nil, apperrors.VariableNotFoundError(name)
			}
			i = i + 2 + close + 1
			continue
		}
		out.WriteByte(s[i])
		i++
	}
	return []byte(out.String()), nil
}

// splitNameDefault splits "NAME:-DEFAULT" into ("NAME", "DEFAULT", true),
// or returns ("NAME", "", false) when there is no ":-" separator.
func splitNameDefault(body string) (name, defaultVal string, hasDefault bool) {
	idx := strings.Index(body, ":-")
	if idx < 0 {
		return body, "", false
	}
	return body[:idx], body[idx+2:], true
}
