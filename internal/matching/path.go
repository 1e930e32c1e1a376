// Package matching implements the two path-matching modes spec §4.3 needs:
// {name}-segment variable extraction for expectation paths, and ant-style
// glob prefix matching for relay rule prefixes.
package matching

import "strings"

// ExtractVariables matches an expectation path pattern (which may contain
// "{name}" segments) against a request path. ok is false if the segment
// counts differ; on success vars maps each pattern variable name to the
// corresponding request path segment.
func ExtractVariables(pattern, path string) (vars map[string]string, ok bool) {
	patternSegs := splitPath(pattern)
	pathSegs := splitPath(path)
	if len(patternSegs) != len(pathSegs) {
		return nil, false
	}
	vars = make(map[string]string, len(patternSegs))
	for i, seg := range patternSegs {
		if len(seg) >= 2 && seg[0] == '{' && seg[len(seg)-1] == '}' {
			vars[seg[1:len(seg)-1]] = pathSegs[i]
			continue
		}
		if seg != pathSegs[i] {
			return nil, false
		}
	}
	return vars, true
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return []string{}
	}
	return strings.Split(p, "/")
}

// MatchPrefix reports whether the ant-style glob prefix matches the start
// of path, and if so how many bytes of path it matched. "?" matches any
// single character other than "/"; "*" matches any run of characters other
// than "/"; "**" matches any run of characters including "/".
//
// Because prefixes are meant to be matched as a *prefix* rather than a
// whole-string pattern, matching is done by trying successively longer
// leading substrings of path against the full glob until one matches
// wholly; this lets "**" and "*" both consume exactly up to the longest
// position the glob can account for.
func MatchPrefix(glob, path string) (matchedLen int, ok bool) {
	best := -1
	for l := len(path); l >= 0; l-- {
		if matchesWhole(glob, path[:l]) {
			best = l
			break
		}
	}
	if best < 0 {
		return 0, false
	}
	return best, true
}

// matchesWhole reports whether glob matches s in its entirety.
func matchesWhole(glob, s string) bool {
	return matchHere([]rune(glob), []rune(s))
}

func matchHere(g, s []rune) bool {
	for len(g) > 0 {
		switch {
		case len(g) >= 2 && g[0] == '*' && g[1] == '*':
			g = g[2:]
			if len(g) == 0 {
				return true
			}
			for i := 0; i <= len(s); i++ {
				if matchHere(g, s[i:]) {
					return true
				}
			}
			return false
		case g[0] == '*':
			g = g[1:]
			if len(g) == 0 {
				return !containsSlash(s)
			}
			for i := 0; i <= len(s); i++ {
				if containsSlash(s[:i]) {
					break
				}
				if matchHere(g, s[i:]) {
					return true
				}
			}
			return false
		case g[0] == '?':
			if len(s) == 0 || s[0] == '/' {
				return false
			}
			g, s = g[1:], s[1:]
		default:
			if len(s) == 0 || s[0] != g[0] {
				return false
			}
			g, s = g[1:], s[1:]
		}
	}
	return len(s) == 0
}

func containsSlash(s []rune) bool {
	for _, r := range s {
		if r == '/' {
			return true
		}
	}
	return false
}

// Candidate is one rule whose glob list matched a path, with the length it
// is ranked by. SelectLongest picks the candidate with the greatest
// MatchedLen; ties keep the earlier candidate in the slice, as required by
// spec's "ties broken by insertion order".
type Candidate struct {
	Index      int
	MatchedLen int
}

// SelectLongest returns the winning candidate's index from a slice of
// (index, matchedLen) pairs gathered by the caller, or ok=false if empty.
func SelectLongest(candidates []Candidate) (winner int, ok bool) {
	bestLen := -1
	bestIdx := -1
	for _, c := range candidates {
		if c.MatchedLen > bestLen {
			bestLen = c.MatchedLen
			bestIdx = c.Index
		}
	}
	if bestIdx < 0 {
		return 0, false
	}
	return bestIdx, true
}
