package dispatch

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anandb/mockrelay/internal/model"
	"github.com/anandb/mockrelay/internal/strategy"
)

type stubMatcher struct {
	exp  model.Expectation
	vars map[string]string
	ok   bool
}

func (s stubMatcher) Match(method, path string, headers http.Header, query map[string]string, body []byte) (model.Expectation, map[string]string, bool) {
	return s.exp, s.vars, s.ok
}

func TestDispatcherReturns401WhenBasicAuthMismatches(t *testing.T) {
	d := &Dispatcher{BasicAuth: &model.BasicAuth{Username: "u", Password: "p"}}
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	w := httptest.NewRecorder()
	d.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Basic", w.Header().Get("WWW-Authenticate"))
}

func TestDispatcherAllowsCorrectBasicAuth(t *testing.T) {
	exp := model.Expectation{Response: model.ResponseSpec{StatusCode: 200, Body: "ok"}}
	d := &Dispatcher{
		BasicAuth:    &model.BasicAuth{Username: "u", Password: "p"},
		Expectations: stubMatcher{exp: exp, ok: true},
		Strategies:   strategy.SortByPriorityDescending([]strategy.Strategy{strategy.Static{}}),
	}
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("u:p")))
	w := httptest.NewRecorder()
	d.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestDispatcherSelectsHighestPriorityStrategy(t *testing.T) {
	exp := model.Expectation{
		Request:  model.RequestMatcher{SSE: true},
		Response: model.ResponseSpec{Messages: []string{"a"}},
	}
	d := &Dispatcher{
		Expectations: stubMatcher{exp: exp, ok: true},
		Strategies:   strategy.SortByPriorityDescending([]strategy.Strategy{strategy.Static{}, strategy.SSE{}}),
	}
	req := httptest.NewRequest(http.MethodGet, "/stream", nil)
	w := httptest.NewRecorder()
	d.ServeHTTP(w, req)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "data: a\n\n", w.Body.String())
}

func TestDispatcherNoMatchReturns404(t *testing.T) {
	d := &Dispatcher{
		Expectations: stubMatcher{ok: false},
		Strategies:   []strategy.Strategy{strategy.Static{}},
	}
	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	w := httptest.NewRecorder()
	d.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDispatcherMergesGlobalHeadersWithoutOverwriting(t *testing.T) {
	exp := model.Expectation{Response: model.ResponseSpec{
		StatusCode: 200,
		Headers:    []model.Header{{Name: "X-Custom", Value: "expectation"}},
	}}
	d := &Dispatcher{
		Expectations:  stubMatcher{exp: exp, ok: true},
		Strategies:    []strategy.Strategy{strategy.Static{}},
		GlobalHeaders: []model.Header{{Name: "X-Custom", Value: "global"}, {Name: "X-Global-Only", Value: "g"}},
	}
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	w := httptest.NewRecorder()
	d.ServeHTTP(w, req)
	assert.Equal(t, "expectation", w.Header().Get("X-Custom"))
	assert.Equal(t, "g", w.Header().Get("X-Global-Only"))
}

func TestDispatcherRecoversPanicAsCallbackError(t *testing.T) {
	exp := model.Expectation{Response: model.ResponseSpec{StatusCode: 200}}
	d := &Dispatcher{
		Expectations: stubMatcher{exp: exp, ok: true},
		Strategies:   []strategy.Strategy{panickyStrategy{}},
	}
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	w := httptest.NewRecorder()
	d.ServeHTTP(w, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "CALLBACK_ERROR")
}

func TestDispatcherRelayListenerSkipsExpectationMatch(t *testing.T) {
	d := &Dispatcher{
		IsRelay:      true,
		Expectations: nil,
		Strategies:   []strategy.Strategy{fixedStrategy{resp: strategy.HttpResponse{StatusCode: 200, Body: []byte("relayed")}}},
	}
	req := httptest.NewRequest(http.MethodGet, "/anything", nil)
	w := httptest.NewRecorder()
	d.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "relayed", w.Body.String())
}

type panickyStrategy struct{}

func (panickyStrategy) Priority() int                    { return 0 }
func (panickyStrategy) Supports(model.Expectation) bool  { return true }
func (panickyStrategy) Handle(*http.Request, model.Expectation, strategy.RequestContext) strategy.HttpResponse {
	panic("boom")
}

type fixedStrategy struct{ resp strategy.HttpResponse }

func (fixedStrategy) Priority() int                   { return 0 }
func (fixedStrategy) Supports(model.Expectation) bool { return true }
func (f fixedStrategy) Handle(*http.Request, model.Expectation, strategy.RequestContext) strategy.HttpResponse {
	return f.resp
}
