package config

// This file defines the wire-format structs decoded directly from the
// (stripped + expanded) JSON document, per spec §6. They are translated
// into internal/model domain types by ServerConfig.ToListenerConfig and
// ExpectationDoc.ToExpectation (translate.go) so json tags never leak
// into the domain model.

type Document []Entry

type Entry struct {
	Server       ServerConfig   `json:"server"`
	Expectations []ExpectationDoc `json:"expectations,omitempty"`
}

type ServerConfig struct {
	ServerID      string          `json:"serverId"`
	Port          int             `json:"port"`
	Description   string          `json:"description,omitempty"`
	TLSConfig     *TLSConfigDoc   `json:"tlsConfig,omitempty"`
	GlobalHeaders []HeaderDoc     `json:"globalHeaders,omitempty"`
	BasicAuth     *BasicAuthDoc   `json:"basicAuthConfig,omitempty"`
	Relays        []RelayRuleDoc  `json:"relays,omitempty"`
}

type HeaderDoc struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type TLSConfigDoc struct {
	Certificate string      `json:"certificate"`
	PrivateKey  string      `json:"privateKey"`
	Mtls        *MtlsDoc    `json:"mtlsConfig,omitempty"`
}

type MtlsDoc struct {
	CACertificate     string `json:"caCertificate"`
	RequireClientAuth bool   `json:"requireClientAuth,omitempty"`
}

type BasicAuthDoc struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RelayRuleDoc struct {
	RemoteURL       string         `json:"remoteUrl,omitempty"`
	Prefixes        []string       `json:"prefixes,omitempty"`
	TokenURL        string         `json:"tokenUrl,omitempty"`
	ClientID        string         `json:"clientId,omitempty"`
	ClientSecret    string         `json:"clientSecret,omitempty"`
	Scope           string         `json:"scope,omitempty"`
	// GrantType defaults to "client_credentials" and is rejected by
	// RelayRuleDoc.toModel if set to anything else: the token cache
	// (internal/oauth2cache) only implements a client_credentials
	// exchange, so no other value can be honored.
	GrantType       string         `json:"grantType,omitempty"`
	Headers         map[string]string `json:"headers,omitempty"`
	TunnelConfig    *TunnelConfigDoc  `json:"tunnelConfig,omitempty"`
	IgnoreSSLErrors bool           `json:"ignoreSSLErrors,omitempty"`
}

type TunnelConfigDoc struct {
	Namespace string `json:"namespace"`
	PodPrefix string `json:"podPrefix"`
	PodPort   int    `json:"podPort"`
}

type ExpectationDoc struct {
	HTTPRequest  HTTPRequestDoc  `json:"httpRequest"`
	HTTPResponse HTTPResponseDoc `json:"httpResponse"`
}

type HTTPRequestDoc struct {
	Method      string            `json:"method"`
	Path        string            `json:"path"`
	SSE         bool              `json:"sse,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	QueryParams map[string]string `json:"queryParams,omitempty"`
	BodyMatch   string            `json:"bodyMatch,omitempty"`
}

type HTTPResponseDoc struct {
	StatusCode int         `json:"statusCode,omitempty"`
	Headers    []HeaderDoc `json:"headers,omitempty"`
	Body       string      `json:"body,omitempty"`
	File       string      `json:"file,omitempty"`
	Messages   []string    `json:"messages,omitempty"`
	Interval   int         `json:"interval,omitempty"`
}
