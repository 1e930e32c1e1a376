package strategy

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/anandb/mockrelay/internal/apperrors"
	"github.com/anandb/mockrelay/internal/matching"
	"github.com/anandb/mockrelay/internal/model"
	"github.com/anandb/mockrelay/internal/oauth2cache"
)

const relayTimeout = 30 * time.Second

// hopByHopHeaders are stripped from the forwarded request per spec §4.7.4
// step 3.
var hopByHopHeaders = map[string]bool{
	"Host":           true,
	"Content-Length": true,
	"Connection":     true,
	"Upgrade":        true,
}

// Relay is the priority-30 strategy (spec §4.7.4), installed only on
// listeners with a non-empty relay-rule list. It ignores expectations
// entirely and forwards every request to the best-matching rule's target.
type Relay struct {
	Rules      []model.RelayRule
	TokenCache *oauth2cache.Cache
}

func (Relay) Priority() int { return 30 }

func (Relay) Supports(exp model.Expectation) bool { return true }

func (r Relay) Handle(req *http.Request, exp model.Expectation, ctx RequestContext) HttpResponse {
	rule, ok := r.selectRule(ctx.Path)
	if !ok {
		return HttpResponse{StatusCode: 502, Body: []byte("No matching relay")}
	}

	targetURL := buildTargetURL(rule, req)
	outReq, err := http.NewRequest(req.Method, targetURL, bodyReader(req.Method, ctx.Body))
	if err != nil {
		return HttpResponse{StatusCode: 502, Body: []byte("Error relaying request to remote server: " + err.Error())}
	}

	for name, values := range ctx.Headers {
		if hopByHopHeaders[http.CanonicalHeaderKey(name)] {
			continue
		}
		for _, v := range values {
			outReq.Header.Add(name, v)
		}
	}
	for _, h := range rule.Headers {
		outReq.Header.Set(h.Name, h.Value)
	}
	if rule.OAuth2 != nil {
		reqCtx, cancel := context.WithTimeout(context.Background(), relayTimeout)
		defer cancel()
		token, err := r.TokenCache.GetAccessToken(reqCtx, rule.OAuth2)
		if err != nil {
			return HttpResponse{StatusCode: 502, Body: []byte("Error relaying request to remote server: " + err.Error())}
		}
		outReq.Header.Set("Authorization", "Bearer "+token)
	}

	client := clientFor(rule)
	reqCtx, cancel := context.WithTimeout(req.Context(), relayTimeout)
	defer cancel()
	outReq = outReq.WithContext(reqCtx)

	resp, err := client.Do(outReq)
	if err != nil {
		wrapped := apperrors.RelayTransportError(err, "relaying request")
		return HttpResponse{StatusCode: 502, Body: []byte("Error relaying request to remote server: " + wrapped.Error())}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return HttpResponse{StatusCode: 502, Body: []byte("Error relaying request to remote server: " + err.Error())}
	}

	var headers []model.Header
	for name, values := range resp.Header {
		for _, v := range values {
			headers = append(headers, model.Header{Name: name, Value: v})
		}
	}
	return HttpResponse{StatusCode: resp.StatusCode, Headers: headers, Body: body}
}

func (r Relay) selectRule(path string) (model.RelayRule, bool) {
	var candidates []matching.Candidate
	for i, rule := range r.Rules {
		// A rule is ranked by the length of its longest prefix glob that
		// matches path, so "/api/v1/*" outranks a catch-all "/**".
		best := -1
		for _, glob := range rule.Prefixes {
			if _, ok := matching.MatchPrefix(glob, path); ok && len(glob) > best {
				best = len(glob)
			}
		}
		if best >= 0 {
			candidates = append(candidates, matching.Candidate{Index: i, MatchedLen: best})
		}
	}
	winner, ok := matching.SelectLongest(candidates)
	if !ok {
		return model.RelayRule{}, false
	}
	return r.Rules[winner], true
}

func buildTargetURL(rule model.RelayRule, req *http.Request) string {
	base := rule.RemoteURL
	if rule.HasTunnel() && rule.AssignedHostPort != 0 {
		base = "http://localhost:" + strconv.Itoa(rule.AssignedHostPort)
	}
	base = strings.TrimSuffix(base, "/")

	path := req.URL.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	url := base + path
	if req.URL.RawQuery != "" {
		url += "?" + req.URL.RawQuery
	}
	return url
}

func bodyReader(method string, body []byte) io.Reader {
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return nil
	default:
		if len(body) == 0 {
			return nil
		}
		return strings.NewReader(string(body))
	}
}

func clientFor(rule model.RelayRule) *http.Client {
	if !rule.IgnoreTLSErrors {
		return &http.Client{Timeout: relayTimeout}
	}
	// Scoped to this single outbound call only, never to the inbound
	// listener's TLS configuration (spec §4.7.4 step 6).
	return &http.Client{
		Timeout: relayTimeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec
		},
	}
}
