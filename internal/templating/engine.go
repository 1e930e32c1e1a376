// Package templating implements the template-engine contract spec §4.2
// requires of the core: render(templateSource, dataTree) -> string and
// looksLikeTemplate(s) -> bool. No ecosystem templating library speaks the
// exact multi-syntax-detection / ${...} interpolation / <# #> directive
// contract described in the spec (see DESIGN.md), so this is a small
// hand-rolled recursive-descent renderer.
package templating

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/anandb/mockrelay/internal/apperrors"
)

// markers are the delimiter families looksLikeTemplate must recognize.
var markers = []string{"${", "<#", "[#", "<@", "[@"}

// unimplementedMarkers are marker families looksLikeTemplate detects but
// parseUntil has no directive support for. A construct that opens with one
// of these is a detection-only marker per spec §4.2: rendering it surfaces
// TemplateError rather than being echoed back as literal text.
var unimplementedMarkers = []string{"[#", "<@", "[@"}

// LooksLikeTemplate reports whether s contains any recognized template
// marker.
func LooksLikeTemplate(s string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// Context is the dataTree passed to Render: headers, body, cookies and
// pathVariables, per spec §4.2.
type Context struct {
	Headers       map[string]string
	Body          any // JSON tree: nil/bool/float64/string/[]any/map[string]any
	Cookies       map[string]string
	PathVariables map[string]string
}

func (c Context) root() map[string]any {
	return map[string]any{
		"headers":       stringMapToAny(c.Headers),
		"body":          c.Body,
		"cookies":       stringMapToAny(c.Cookies),
		"pathVariables": stringMapToAny(c.PathVariables),
	}
}

func stringMapToAny(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Render evaluates templateSource against ctx. Any syntax error or
// reference to a missing key without a default surfaces as a
// *apperrors.Error with KindTemplate.
func Render(templateSource string, ctx Context) (string, error) {
	p := &parser{src: []rune(templateSource), root: ctx.root()}
	out, err := p.parseUntil(nil)
	if err != nil {
		return "", apperrors.TemplateError(err, "failed to render template")
	}
	return out, nil
}

type parser struct {
	src  []rune
	pos  int
	root map[string]any
}

// parseUntil consumes output text and directives until it sees one of the
// stop tags (e.g. "<#else>", "<#/if>") at the top level, or EOF if stop is
// nil. It returns the rendered text and, via p.pos, is left positioned at
// the start of whichever stop tag was found.
func (p *parser) parseUntil(stop []string) (string, error) {
	var sb strings.Builder
	for p.pos < len(p.src) {
		if stop != nil {
			for _, s := range stop {
				if p.hasPrefix(s) {
					return sb.String(), nil
				}
			}
		}
		switch {
		case p.hasPrefix("${"):
			val, err := p.parseInterpolation()
			if err != nil {
				return "", err
			}
			sb.WriteString(val)
		case p.hasPrefix("<#if"):
			val, err := p.parseIf()
			if err != nil {
				return "", err
			}
			sb.WriteString(val)
		case p.hasPrefix("<#list"):
			val, err := p.parseList()
			if err != nil {
				return "", err
			}
			sb.WriteString(val)
		case p.hasAnyPrefix(unimplementedMarkers):
			return "", fmt.Errorf("template marker %q is recognized by looksLikeTemplate but not implemented by this renderer", p.markerAt())
		default:
			sb.WriteRune(p.src[p.pos])
			p.pos++
		}
	}
	if stop != nil {
		return "", fmt.Errorf("unexpected end of template, expected one of %v", stop)
	}
	return sb.String(), nil
}

func (p *parser) hasPrefix(s string) bool {
	rs := []rune(s)
	if p.pos+len(rs) > len(p.src) {
		return false
	}
	for i, r := range rs {
		if p.src[p.pos+i] != r {
			return false
		}
	}
	return true
}

// hasAnyPrefix reports whether the parser is positioned at one of candidates.
func (p *parser) hasAnyPrefix(candidates []string) bool {
	for _, c := range candidates {
		if p.hasPrefix(c) {
			return true
		}
	}
	return false
}

// markerAt returns the delimiter that matched at the current position, for
// error messages. Only meaningful right after hasAnyPrefix returned true.
func (p *parser) markerAt() string {
	for _, c := range unimplementedMarkers {
		if p.hasPrefix(c) {
			return c
		}
	}
	return ""
}

func (p *parser) consume(s string) error {
	if !p.hasPrefix(s) {
		return fmt.Errorf("expected %q at position %d", s, p.pos)
	}
	p.pos += len([]rune(s))
	return nil
}

// parseInterpolation parses "${" expr "}" and returns its string value.
func (p *parser) parseInterpolation() (string, error) {
	if err := p.consume("${"); err != nil {
		return "", err
	}
	start := p.pos
	for p.pos < len(p.src) && p.src[p.pos] != '}' {
		p.pos++
	}
	if p.pos >= len(p.src) {
		return "", fmt.Errorf("unterminated ${...} expression")
	}
	expr := string(p.src[start:p.pos])
	p.pos++ // consume "}"
	val, err := p.evalExpr(strings.TrimSpace(expr))
	if err != nil {
		return "", err
	}
	return toDisplayString(val), nil
}

// parseIf parses "<#if" expr ">" body ["<#else>" body] "<#/if>".
func (p *parser) parseIf() (string, error) {
	if err := p.consume("<#if"); err != nil {
		return "", err
	}
	cond, err := p.readTagExpr()
	if err != nil {
		return "", err
	}
	truthy, err := p.evalBool(cond)
	if err != nil {
		return "", err
	}
	thenBody, err := p.parseUntil([]string{"<#else>", "<#/if>"})
	if err != nil {
		return "", err
	}
	var elseBody string
	if p.hasPrefix("<#else>") {
		p.consume("<#else>")
		elseBody, err = p.parseUntil([]string{"<#/if>"})
		if err != nil {
			return "", err
		}
	}
	if err := p.consume("<#/if>"); err != nil {
		return "", err
	}
	if truthy {
		return thenBody, nil
	}
	return elseBody, nil
}

// parseList parses "<#list" expr "as" name ">" body "<#/list>".
func (p *parser) parseList() (string, error) {
	if err := p.consume("<#list"); err != nil {
		return "", err
	}
	header, err := p.readTagExpr()
	if err != nil {
		return "", err
	}
	parts := strings.SplitN(header, " as ", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("malformed <#list> header %q, expected \"<source> as <name>\"", header)
	}
	srcExpr := strings.TrimSpace(parts[0])
	varName := strings.TrimSpace(parts[1])

	items, err := p.evalExpr(srcExpr)
	if err != nil {
		return "", err
	}
	slice, ok := items.([]any)
	if !ok {
		return "", fmt.Errorf("<#list> source %q is not an array", srcExpr)
	}

	body, err := p.captureRawUntil([]string{"<#/list>"})
	if err != nil {
		return "", err
	}
	if err := p.consume("<#/list>"); err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, item := range slice {
		sub := &parser{src: []rune(body), root: p.root}
		withLoopVar := cloneRoot(p.root)
		withLoopVar[varName] = item
		sub.root = withLoopVar
		rendered, err := sub.parseUntil(nil)
		if err != nil {
			return "", err
		}
		sb.WriteString(rendered)
	}
	return sb.String(), nil
}

// captureRawUntil scans forward without evaluating anything, tracking
// <#if>/<#list> nesting depth so a nested directive's own closing tag
// isn't mistaken for the stop tag being searched for. It returns the raw
// template source up to (not including) the stop tag, leaving p.pos at
// its start. Used by parseList, whose body must be re-evaluated once per
// iteration with the loop variable bound rather than rendered eagerly.
func (p *parser) captureRawUntil(stop []string) (string, error) {
	start := p.pos
	depth := 0
	for p.pos < len(p.src) {
		if depth == 0 {
			for _, s := range stop {
				if p.hasPrefix(s) {
					return string(p.src[start:p.pos]), nil
				}
			}
		}
		switch {
		case p.hasPrefix("<#if"):
			depth++
			p.pos += len("<#if")
		case p.hasPrefix("<#list"):
			depth++
			p.pos += len("<#list")
		case p.hasPrefix("<#/if>"):
			depth--
			p.pos += len("<#/if>")
		case p.hasPrefix("<#/list>"):
			depth--
			p.pos += len("<#/list>")
		default:
			p.pos++
		}
	}
	return "", fmt.Errorf("unexpected end of template, expected one of %v", stop)
}

func cloneRoot(root map[string]any) map[string]any {
	out := make(map[string]any, len(root)+1)
	for k, v := range root {
		out[k] = v
	}
	return out
}

// readTagExpr reads the remainder of an opening tag up to ">" and returns
// its trimmed text, leaving p.pos just after ">".
func (p *parser) readTagExpr() (string, error) {
	start := p.pos
	for p.pos < len(p.src) && p.src[p.pos] != '>' {
		p.pos++
	}
	if p.pos >= len(p.src) {
		return "", fmt.Errorf("unterminated tag")
	}
	expr := strings.TrimSpace(string(p.src[start:p.pos]))
	p.pos++ // consume ">"
	return expr, nil
}

func (p *parser) evalBool(expr string) (bool, error) {
	val, err := p.evalExpr(expr)
	if err != nil {
		return false, err
	}
	return truthy(val), nil
}

func truthy(val any) bool {
	switch v := val.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case float64:
		return v != 0
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	default:
		return true
	}
}

// evalExpr evaluates a dotted/bracketed path expression with an optional
// "!default" fallback, e.g. pathVariables.id, headers['X-Who'],
// body.items[0].name, missing.key!"fallback".
func (p *parser) evalExpr(expr string) (any, error) {
	expr = strings.TrimSpace(expr)
	var defaultVal any
	hasDefault := false
	if idx := strings.Index(expr, "!"); idx >= 0 {
		hasDefault = true
		defaultLiteral := strings.TrimSpace(expr[idx+1:])
		expr = strings.TrimSpace(expr[:idx])
		defaultVal = parseLiteral(defaultLiteral)
	}

	segs, err := splitPathExpr(expr)
	if err != nil {
		return nil, err
	}

	var cur any = p.root
	for _, seg := range segs {
		if arr, isArr := cur.([]any); isArr {
			idx, convErr := strconv.Atoi(seg)
			if convErr != nil || idx < 0 || idx >= len(arr) {
				if hasDefault {
					return defaultVal, nil
				}
				return nil, fmt.Errorf("no value for %q", expr)
			}
			cur = arr[idx]
			continue
		}
		m, ok := cur.(map[string]any)
		if !ok {
			if hasDefault {
				return defaultVal, nil
			}
			return nil, fmt.Errorf("cannot index into non-object value while resolving %q", expr)
		}
		next, present := m[seg]
		if !present {
			if hasDefault {
				return defaultVal, nil
			}
			return nil, fmt.Errorf("no value for %q", expr)
		}
		cur = next
	}
	return cur, nil
}

func parseLiteral(lit string) any {
	lit = strings.TrimSpace(lit)
	if len(lit) >= 2 {
		if (lit[0] == '"' && lit[len(lit)-1] == '"') || (lit[0] == '\'' && lit[len(lit)-1] == '\'') {
			return lit[1 : len(lit)-1]
		}
	}
	if lit == "true" || lit == "false" {
		return lit == "true"
	}
	if n, err := strconv.ParseFloat(lit, 64); err == nil {
		return n
	}
	return lit
}

// splitPathExpr turns "a.b['c'].d" into ["a","b","c","d"].
func splitPathExpr(expr string) ([]string, error) {
	var segs []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			segs = append(segs, cur.String())
			cur.Reset()
		}
	}
	i := 0
	r := []rune(expr)
	for i < len(r) {
		switch r[i] {
		case '.':
			flush()
			i++
		case '[':
			flush()
			j := i + 1
			for j < len(r) && r[j] != ']' {
				j++
			}
			if j >= len(r) {
				return nil, fmt.Errorf("unterminated [ in expression %q", expr)
			}
			key := strings.TrimSpace(string(r[i+1 : j]))
			key = strings.Trim(key, `'"`)
			segs = append(segs, key)
			i = j + 1
		default:
			cur.WriteRune(r[i])
			i++
		}
	}
	flush()
	return segs, nil
}

func toDisplayString(val any) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}
