package listener

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anandb/mockrelay/internal/model"
)

func TestExpectationRegistryMatchesMethodAndPath(t *testing.T) {
	r := NewExpectationRegistry()
	r.Append(model.Expectation{
		Request:  model.RequestMatcher{Method: "GET", Path: "/users/{id}"},
		Response: model.ResponseSpec{StatusCode: 200, Body: "user"},
	})

	exp, vars, ok := r.Match("GET", "/users/42", http.Header{}, nil, nil)
	require.True(t, ok)
	assert.Equal(t, "user", exp.Response.Body)
	assert.Equal(t, "42", vars["id"])

	_, _, ok = r.Match("POST", "/users/42", http.Header{}, nil, nil)
	assert.False(t, ok)
}

func TestExpectationRegistryOverwritesSamePair(t *testing.T) {
	r := NewExpectationRegistry()
	r.Append(model.Expectation{Request: model.RequestMatcher{Method: "GET", Path: "/x"}, Response: model.ResponseSpec{Body: "first"}})
	r.Append(model.Expectation{Request: model.RequestMatcher{Method: "GET", Path: "/x"}, Response: model.ResponseSpec{Body: "second"}})

	assert.Len(t, r.Snapshot(), 1)
	exp, _, ok := r.Match("GET", "/x", http.Header{}, nil, nil)
	require.True(t, ok)
	assert.Equal(t, "second", exp.Response.Body)
}

func TestExpectationRegistryHeaderAndQueryPredicates(t *testing.T) {
	r := NewExpectationRegistry()
	r.Append(model.Expectation{
		Request: model.RequestMatcher{
			Method:      "GET",
			Path:        "/x",
			Headers:     map[string]string{"X-Tenant": "acme"},
			QueryParams: map[string]string{"mode": "fast"},
		},
		Response: model.ResponseSpec{Body: "matched"},
	})

	h := http.Header{}
	h.Set("X-Tenant", "acme")
	_, _, ok := r.Match("GET", "/x", h, map[string]string{"mode": "fast"}, nil)
	assert.True(t, ok)

	_, _, ok = r.Match("GET", "/x", h, map[string]string{"mode": "slow"}, nil)
	assert.False(t, ok)

	_, _, ok = r.Match("GET", "/x", http.Header{}, map[string]string{"mode": "fast"}, nil)
	assert.False(t, ok)
}

func TestExpectationRegistryBodyMatchPredicate(t *testing.T) {
	r := NewExpectationRegistry()
	r.Append(model.Expectation{
		Request:  model.RequestMatcher{Method: "POST", Path: "/x", BodyMatch: "hello"},
		Response: model.ResponseSpec{Body: "ok"},
	})

	_, _, ok := r.Match("POST", "/x", http.Header{}, nil, []byte("say hello world"))
	assert.True(t, ok)
	_, _, ok = r.Match("POST", "/x", http.Header{}, nil, []byte("nope"))
	assert.False(t, ok)
}

func TestExpectationRegistryClear(t *testing.T) {
	r := NewExpectationRegistry()
	r.Append(model.Expectation{Request: model.RequestMatcher{Method: "GET", Path: "/x"}})
	r.Clear()
	assert.Empty(t, r.Snapshot())
}
