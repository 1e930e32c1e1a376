package config

import (
	"strings"

	"github.com/anandb/mockrelay/internal/apperrors"
	"github.com/anandb/mockrelay/internal/model"
)

// ToListenerConfig translates the wire-format server block into a domain
// ListenerConfig, validating the invariants from spec §3.
func (s ServerConfig) ToListenerConfig() (model.ListenerConfig, error) {
	if s.ServerID == "" {
		return model.ListenerConfig{}, apperrors.InvalidExpectationError("server.serverId is required")
	}
	if s.Port < 1024 || s.Port > 65535 {
		return model.ListenerConfig{}, apperrors.InvalidExpectationError("server.port %d out of range 1024-65535", s.Port)
	}

	lc := model.ListenerConfig{
		ListenerID:  s.ServerID,
		Port:        s.Port,
		Description: s.Description,
	}
	for _, h := range s.GlobalHeaders {
		lc.GlobalHeaders = append(lc.GlobalHeaders, model.Header{Name: h.Name, Value: h.Value})
	}
	if s.BasicAuth != nil {
		lc.BasicAuth = &model.BasicAuth{Username: s.BasicAuth.Username, Password: s.BasicAuth.Password}
	}
	if s.TLSConfig != nil {
		tls, err := s.TLSConfig.toModel()
		if err != nil {
			return model.ListenerConfig{}, err
		}
		lc.TLS = tls
	}
	for i, r := range s.Relays {
		rule, err := r.toModel()
		if err != nil {
			return model.ListenerConfig{}, apperrors.InvalidExpectationError("relays[%d]: %v", i, err)
		}
		lc.Relays = append(lc.Relays, rule)
	}
	return lc, nil
}

func (t *TLSConfigDoc) toModel() (*model.TlsConfig, error) {
	if t.Certificate == "" || t.PrivateKey == "" {
		return nil, apperrors.InvalidCertificateError("tlsConfig requires non-empty certificate and privateKey")
	}
	out := &model.TlsConfig{Cert: t.Certificate, Key: t.PrivateKey}
	if t.Mtls != nil {
		if t.Mtls.CACertificate == "" {
			return nil, apperrors.InvalidCertificateError("mtlsConfig requires a non-empty caCertificate")
		}
		out.Mtls = &model.MtlsConfig{CACert: t.Mtls.CACertificate, RequireClientAuth: t.Mtls.RequireClientAuth}
	}
	return out, nil
}

func (r RelayRuleDoc) toModel() (model.RelayRule, error) {
	prefixes := r.Prefixes
	if len(prefixes) == 0 {
		prefixes = []string{"/**"}
	}

	hasTunnel := r.TunnelConfig != nil
	if r.RemoteURL == "" && !hasTunnel {
		return model.RelayRule{}, apperrors.InvalidExpectationError("relay rule needs remoteUrl or tunnelConfig")
	}
	if hasTunnel && (r.TunnelConfig.Namespace == "" || r.TunnelConfig.PodPrefix == "" || r.TunnelConfig.PodPort == 0) {
		return model.RelayRule{}, apperrors.InvalidExpectationError("tunnelConfig requires namespace, podPrefix and podPort")
	}

	anyOAuth := r.TokenURL != "" || r.ClientID != "" || r.ClientSecret != ""
	allOAuth := r.TokenURL != "" && r.ClientID != "" && r.ClientSecret != ""
	if anyOAuth && !allOAuth {
		return model.RelayRule{}, apperrors.InvalidExpectationError("oauth2 fields tokenUrl/clientId/clientSecret must all be present together")
	}

	rule := model.RelayRule{
		RemoteURL:       r.RemoteURL,
		Prefixes:        prefixes,
		IgnoreTLSErrors: r.IgnoreSSLErrors,
	}
	if hasTunnel {
		rule.Tunnel = &model.TunnelTarget{
			Namespace: r.TunnelConfig.Namespace,
			PodPrefix: r.TunnelConfig.PodPrefix,
			PodPort:   r.TunnelConfig.PodPort,
		}
	}
	if allOAuth {
		grantType := r.GrantType
		if grantType == "" {
			grantType = "client_credentials"
		}
		if grantType != "client_credentials" {
			return model.RelayRule{}, apperrors.InvalidExpectationError("oauth2 grantType %q is not supported: the token cache only implements client_credentials", grantType)
		}
		rule.OAuth2 = &model.OAuth2Config{
			TokenURL:     r.TokenURL,
			ClientID:     r.ClientID,
			ClientSecret: r.ClientSecret,
			Scope:        r.Scope,
		}
	}
	for name, value := range r.Headers {
		rule.Headers = append(rule.Headers, model.Header{Name: name, Value: value})
	}
	return rule, nil
}

// ToExpectation translates a wire-format expectation into the domain
// type. Which strategy eventually handles it is decided later, at
// dispatch time, by each strategy's own Supports check.
func (e ExpectationDoc) ToExpectation() (model.Expectation, error) {
	if e.HTTPRequest.Method == "" || e.HTTPRequest.Path == "" {
		return model.Expectation{}, apperrors.InvalidExpectationError("httpRequest.method and httpRequest.path are required")
	}
	exp := model.Expectation{
		Request: model.RequestMatcher{
			Method:      strings.ToUpper(e.HTTPRequest.Method),
			Path:        e.HTTPRequest.Path,
			SSE:         e.HTTPRequest.SSE,
			Headers:     e.HTTPRequest.Headers,
			QueryParams: e.HTTPRequest.QueryParams,
			BodyMatch:   e.HTTPRequest.BodyMatch,
		},
	}

	status := e.HTTPResponse.StatusCode
	if status == 0 {
		status = 200
	}
	resp := model.ResponseSpec{
		StatusCode: status,
		Body:       e.HTTPResponse.Body,
		File:       e.HTTPResponse.File,
		Messages:   e.HTTPResponse.Messages,
		Interval:   e.HTTPResponse.Interval,
	}
	for _, h := range e.HTTPResponse.Headers {
		resp.Headers = append(resp.Headers, model.Header{Name: h.Name, Value: h.Value})
	}

	exp.Response = resp
	return exp, nil
}
