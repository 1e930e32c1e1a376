package listener

import (
	"crypto/tls"
	"crypto/x509"

	"github.com/anandb/mockrelay/internal/apperrors"
	"github.com/anandb/mockrelay/internal/certstore"
	"github.com/anandb/mockrelay/internal/model"
)

// buildTLSConfig validates cfg's PEM material, materializes it into the
// scratch store (so it can be released on listener teardown, per spec
// §4.4), and returns the *tls.Config this listener's server should use.
// TLS is always configured per listener — there is no process-wide TLS
// config (spec §5's "terminate TLS" step is local to the owning server).
func buildTLSConfig(listenerID string, cfg *model.TlsConfig, store *certstore.Store) (*tls.Config, error) {
	if err := certstore.ValidateKeyPair(cfg.Cert, cfg.Key); err != nil {
		return nil, err
	}
	if _, err := store.WriteMaterial(listenerID, cfg.Cert, certstore.KindCert); err != nil {
		return nil, err
	}
	if _, err := store.WriteMaterial(listenerID, cfg.Key, certstore.KindKey); err != nil {
		return nil, err
	}

	keyPair, err := tls.X509KeyPair([]byte(cfg.Cert), []byte(cfg.Key))
	if err != nil {
		return nil, apperrors.InvalidCertificateError("loading certificate/key pair: %v", err)
	}
	tlsCfg := &tls.Config{Certificates: []tls.Certificate{keyPair}}

	if cfg.Mtls != nil {
		if err := certstore.ValidateCA(cfg.Mtls.CACert); err != nil {
			return nil, err
		}
		if _, err := store.WriteMaterial(listenerID, cfg.Mtls.CACert, certstore.KindCA); err != nil {
			return nil, err
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM([]byte(cfg.Mtls.CACert)) {
			return nil, apperrors.InvalidCertificateError("failed to add CA certificate to pool")
		}
		tlsCfg.ClientCAs = pool
		if cfg.Mtls.RequireClientAuth {
			tlsCfg.ClientAuth = tls.RequireAndVerifyClientCert
		} else {
			tlsCfg.ClientAuth = tls.VerifyClientCertIfGiven
		}
	}

	return tlsCfg, nil
}
