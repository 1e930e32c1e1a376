package listener

import (
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/anandb/mockrelay/internal/matching"
	"github.com/anandb/mockrelay/internal/model"
)

// expectationSnapshot is an immutable view of one listener's expectation
// list. Request handling always reads a single snapshot, so a concurrent
// Append/Clear never produces a torn read (spec §5: "the registry
// observes a consistent snapshot per request").
type expectationSnapshot struct {
	entries []model.Expectation
}

// ExpectationRegistry is the per-listener expectation list from spec §3.
// Mutations replace the snapshot pointer atomically; readers never block
// on writers and never see a partially-updated list.
type ExpectationRegistry struct {
	snap atomic.Pointer[expectationSnapshot]
}

func NewExpectationRegistry() *ExpectationRegistry {
	r := &ExpectationRegistry{}
	r.snap.Store(&expectationSnapshot{})
	return r
}

// Append adds exp to the registry. Per spec §3, prior entries matching
// the exact (method, path) pair are removed first, so re-declaring an
// expectation overwrites rather than shadows the earlier one.
func (r *ExpectationRegistry) Append(exp model.Expectation) {
	old := r.snap.Load()
	next := make([]model.Expectation, 0, len(old.entries)+1)
	for _, e := range old.entries {
		if e.Request.Method == exp.Request.Method && e.Request.Path == exp.Request.Path {
			continue
		}
		next = append(next, e)
	}
	next = append(next, exp)
	r.snap.Store(&expectationSnapshot{entries: next})
}

// Clear empties the registry.
func (r *ExpectationRegistry) Clear() {
	r.snap.Store(&expectationSnapshot{})
}

// Snapshot returns the current expectation list, in insertion order.
func (r *ExpectationRegistry) Snapshot() []model.Expectation {
	return r.snap.Load().entries
}

// Match implements dispatch.ExpectationMatcher: the first expectation (in
// insertion order) whose method, path pattern and predicates all match
// wins (first-match semantics, per spec §3).
func (r *ExpectationRegistry) Match(method, path string, headers http.Header, query map[string]string, body []byte) (model.Expectation, map[string]string, bool) {
	for _, exp := range r.snap.Load().entries {
		if !strings.EqualFold(exp.Request.Method, method) {
			continue
		}
		vars, ok := matching.ExtractVariables(exp.Request.Path, path)
		if !ok {
			continue
		}
		if !matchesPredicates(exp.Request, headers, query, body) {
			continue
		}
		return exp, vars, true
	}
	return model.Expectation{}, nil, false
}

func matchesPredicates(rm model.RequestMatcher, headers http.Header, query map[string]string, body []byte) bool {
	for name, want := range rm.Headers {
		if headers.Get(name) != want {
			return false
		}
	}
	for name, want := range rm.QueryParams {
		if query[name] != want {
			return false
		}
	}
	if rm.BodyMatch != "" && !strings.Contains(string(body), rm.BodyMatch) {
		return false
	}
	return true
}
