// Package model holds the runtime domain types described in spec §3. These
// are distinct from the wire-format structs in internal/config: the config
// loader translates one into the other so JSON tags never leak into the
// types the strategy and listener packages operate on.
package model

import "time"

// Header is one ordered name/value pair. Global headers and relay-rule
// headers both preserve insertion order, so a slice is used rather than a
// map.
type Header struct {
	Name  string
	Value string
}

// MtlsConfig describes client-certificate verification for a listener.
type MtlsConfig struct {
	CACert            string
	RequireClientAuth bool
}

// TlsConfig is the declarative TLS block of a ListenerConfig, before
// materialization by certstore.Store.
type TlsConfig struct {
	Cert string
	Key  string
	Mtls *MtlsConfig
}

// BasicAuth is a listener's basic-auth gate credentials.
type BasicAuth struct {
	Username string
	Password string
}

// TunnelTarget names the pod a relay rule should be tunneled to.
type TunnelTarget struct {
	Namespace string
	PodPrefix string
	PodPort   int
}

// OAuth2Config is the client-credentials triple (plus optional scope) a
// relay rule may carry. grantType is validated at config translation time
// (internal/config/translate.go) rather than carried here: the token cache
// only ever performs a client_credentials exchange, so any other value is
// rejected before a listener is built instead of being silently ignored.
type OAuth2Config struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scope        string
}

// RelayRule is one expectation-free forwarding policy, per spec §3.
type RelayRule struct {
	RemoteURL       string
	Tunnel          *TunnelTarget
	Prefixes        []string // ant-style globs, default ["/**"]
	OAuth2          *OAuth2Config
	Headers         []Header
	IgnoreTLSErrors bool

	// AssignedHostPort is populated exactly once, at listener creation,
	// when Tunnel is non-nil. Zero means "no tunnel assigned".
	AssignedHostPort int
}

// HasTunnel reports whether the rule names a pod to tunnel to.
func (r *RelayRule) HasTunnel() bool { return r.Tunnel != nil }

// RequestMatcher is the httpRequest half of an Expectation.
type RequestMatcher struct {
	Method string
	Path   string // may contain {name} segments
	SSE    bool

	// Header/query/body predicates understood by the matching layer.
	// Values are exact-match unless noted otherwise; a nil map means
	// "no constraint".
	Headers     map[string]string
	QueryParams map[string]string
	BodyMatch   string // substring match against the raw request body
}

// ResponseSpec is the httpResponse half of an Expectation. Which strategy
// handles it is decided dynamically by each strategy's Supports method
// (spec §4.7), not precomputed here — File/Messages/Body are just data.
type ResponseSpec struct {
	StatusCode int
	Headers    []Header
	Body       string
	File       string   // template source for the dynamic-file strategy
	Messages   []string // SSE messages, in order
	Interval   int      // informational only, never scheduled
}

// Expectation pairs a request matcher with a response specification.
type Expectation struct {
	Request  RequestMatcher
	Response ResponseSpec
}

// ListenerConfig is immutable after creation (spec §3).
type ListenerConfig struct {
	ListenerID    string
	Port          int
	Description   string
	TLS           *TlsConfig
	BasicAuth     *BasicAuth
	GlobalHeaders []Header
	Relays        []RelayRule
}

// TokenCacheEntry is one cached OAuth2 client-credentials token.
type TokenCacheEntry struct {
	Token         string
	ExpiryInstant time.Time
}

// Expired reports whether the entry is no longer usable at instant now.
func (e TokenCacheEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiryInstant)
}
