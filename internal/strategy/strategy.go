// Package strategy implements the four response strategies from spec
// §4.7: static, dynamic file/template, SSE, and relay. Each is a concrete
// type satisfying the Strategy interface; the dispatcher (internal/
// dispatch) sorts them once by descending priority and picks the first
// whose Supports returns true, following the "tagged-variant over class
// hierarchy" guidance in spec §9.
package strategy

import (
	"net/http"

	"github.com/anandb/mockrelay/internal/model"
	"github.com/anandb/mockrelay/internal/templating"
)

// RequestContext is the request-scoped data the dispatcher builds once per
// request and passes to whichever strategy handles it.
type RequestContext struct {
	Method        string
	Path          string
	Headers       http.Header
	Body          []byte
	Cookies       map[string]string
	PathVariables map[string]string
	Query         map[string]string
}

// TemplateContext builds the §4.2 dataTree for the template engine out of
// this request's data.
func (c RequestContext) TemplateContext() templating.Context {
	headers := make(map[string]string, len(c.Headers))
	for name := range c.Headers {
		headers[name] = c.Headers.Get(name)
	}
	return templating.Context{
		Headers:       headers,
		Body:          parseJSONBodyOrEmptyObject(c.Body),
		Cookies:       c.Cookies,
		PathVariables: c.PathVariables,
	}
}

// HttpResponse is the strategy-produced response, before global-header
// merging by the dispatcher.
type HttpResponse struct {
	StatusCode int
	Headers    []model.Header
	Body       []byte
}

// Strategy is the common contract every response mode implements.
type Strategy interface {
	// Supports reports whether this strategy should handle the given
	// expectation (on a non-relay listener) or every request (relay,
	// which ignores expectations entirely — see Handle's exp parameter
	// being allowed to be the zero value for relay).
	Supports(exp model.Expectation) bool
	Priority() int
	Handle(req *http.Request, exp model.Expectation, ctx RequestContext) HttpResponse
}

// SortByPriorityDescending returns a new slice of strategies ordered from
// highest to lowest priority, stable on ties (so earlier-registered
// strategies keep precedence on an exact tie, though in practice every
// built-in strategy has a distinct priority).
func SortByPriorityDescending(strategies []Strategy) []Strategy {
	out := make([]Strategy, len(strategies))
	copy(out, strategies)
	for i := 1; i < len(out); i++ {
		j := i
		for j > 0 && out[j-1].Priority() < out[j].Priority() {
			out[j-1], out[j] = out[j], out[j-1]
			j--
		}
	}
	return out
}
