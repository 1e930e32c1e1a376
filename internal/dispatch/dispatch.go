// Package dispatch implements the per-request callback from spec §4.8: the
// basic-auth gate, expectation match, strategy selection, and
// global-header merge that every listener runs for every inbound request.
package dispatch

import (
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/anandb/mockrelay/internal/model"
	"github.com/anandb/mockrelay/internal/strategy"
)

// ExpectationMatcher resolves an incoming request to the expectation that
// should handle it, per spec §3's "method + path + optional
// headers/body/query" matcher. ok is false when nothing matches.
type ExpectationMatcher interface {
	Match(method, path string, headers http.Header, query map[string]string, body []byte) (exp model.Expectation, pathVars map[string]string, ok bool)
}

// Dispatcher is the C8 callback, parameterized per listener.
type Dispatcher struct {
	Log           *zap.Logger
	BasicAuth     *model.BasicAuth
	Expectations  ExpectationMatcher
	Strategies    []strategy.Strategy // already sorted descending by priority
	GlobalHeaders []model.Header
	// IsRelay listeners have no expectation registry to consult: every
	// request goes straight to the relay strategy with a zero-value
	// Expectation, per spec §4.7.4.
	IsRelay bool
}

// ServeHTTP implements the full C8 algorithm.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if d.BasicAuth != nil && !d.checkBasicAuth(r) {
		w.Header().Set("WWW-Authenticate", "Basic")
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		d.writeCallbackError(w, err)
		return
	}

	query := queryMap(r)

	var exp model.Expectation
	var pathVars map[string]string
	if !d.IsRelay {
		var ok bool
		exp, pathVars, ok = d.Expectations.Match(r.Method, r.URL.Path, r.Header, query, body)
		if !ok {
			writeRaw(w, http.StatusNotFound, "application/json", []byte(`{"errorCode":"NO_EXPECTATION_MATCHED","message":"no expectation matches this request"}`))
			return
		}
	}

	ctx := strategy.RequestContext{
		Method:        r.Method,
		Path:          r.URL.Path,
		Headers:       r.Header,
		Body:          body,
		Cookies:       cookieMap(r),
		PathVariables: pathVars,
		Query:         query,
	}

	chosen := d.selectStrategy(exp)
	if chosen == nil {
		writeRaw(w, http.StatusInternalServerError, "text/plain", []byte("No strategy found for configuration"))
		return
	}

	resp, ok := d.invoke(w, chosen, r, exp, ctx)
	if !ok {
		return
	}

	resp.Headers = mergeGlobalHeaders(resp.Headers, d.GlobalHeaders)
	for _, h := range resp.Headers {
		w.Header().Add(h.Name, h.Value)
	}
	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	w.Write(resp.Body)
}

// invoke calls strategy.Handle, recovering from a panic the way spec
// §4.8 step 4 treats any handler error: mapped to a 500 CALLBACK_ERROR
// body. On a recovered panic it writes the error response itself and
// returns ok=false so ServeHTTP does not write a second time.
func (d *Dispatcher) invoke(w http.ResponseWriter, s strategy.Strategy, r *http.Request, exp model.Expectation, ctx strategy.RequestContext) (resp strategy.HttpResponse, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			d.writeCallbackErrorResponse(w, rec)
			ok = false
		}
	}()
	return s.Handle(r, exp, ctx), true
}

func (d *Dispatcher) selectStrategy(exp model.Expectation) strategy.Strategy {
	for _, s := range d.Strategies {
		if s.Supports(exp) {
			return s
		}
	}
	return nil
}

func (d *Dispatcher) checkBasicAuth(r *http.Request) bool {
	want := "Basic " + base64.StdEncoding.EncodeToString([]byte(d.BasicAuth.Username+":"+d.BasicAuth.Password))
	got := r.Header.Get("Authorization")
	return subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}

func (d *Dispatcher) writeCallbackError(w http.ResponseWriter, err error) {
	d.writeCallbackErrorResponse(w, err)
}

func (d *Dispatcher) writeCallbackErrorResponse(w http.ResponseWriter, err any) {
	msg := "internal error"
	if e, ok := err.(error); ok {
		msg = e.Error()
	} else if s, ok := err.(string); ok {
		msg = s
	}
	if d.Log != nil {
		d.Log.Error("dispatch callback error", zap.Any("error", err))
	}
	body, _ := json.Marshal(map[string]string{"errorCode": "CALLBACK_ERROR", "message": msg})
	writeRaw(w, http.StatusInternalServerError, "application/json", body)
}

func writeRaw(w http.ResponseWriter, status int, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	w.Write(body)
}

// mergeGlobalHeaders adds each global header whose name is not already
// present among resp headers (expectation headers win, global headers
// fill gaps only — spec §2 data-flow diagram and §4.8 step 5).
func mergeGlobalHeaders(respHeaders []model.Header, global []model.Header) []model.Header {
	present := make(map[string]bool, len(respHeaders))
	for _, h := range respHeaders {
		present[strings.ToLower(h.Name)] = true
	}
	out := respHeaders
	for _, h := range global {
		if present[strings.ToLower(h.Name)] {
			continue
		}
		out = append(out, h)
		present[strings.ToLower(h.Name)] = true
	}
	return out
}

func cookieMap(r *http.Request) map[string]string {
	out := map[string]string{}
	for _, c := range r.Cookies() {
		out[c.Name] = c.Value
	}
	return out
}

func queryMap(r *http.Request) map[string]string {
	out := map[string]string{}
	for k := range r.URL.Query() {
		out[k] = r.URL.Query().Get(k)
	}
	return out
}
