// Package certstore implements certificate validation and the per-listener
// TLS material store (spec §4.4).
package certstore

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"strings"

	"github.com/anandb/mockrelay/internal/apperrors"
)

// ValidateCertificate checks that pemContent is a well-formed, parseable
// X.509 certificate in PEM form.
func ValidateCertificate(pemContent string) error {
	if strings.TrimSpace(pemContent) == "" {
		return apperrors.InvalidCertificateError("certificate is empty")
	}
	if !strings.Contains(pemContent, "-----BEGIN CERTIFICATE-----") {
		return apperrors.InvalidCertificateError("missing BEGIN CERTIFICATE marker")
	}
	block, _ := pem.Decode([]byte(pemContent))
	if block == nil || block.Type != "CERTIFICATE" {
		return apperrors.InvalidCertificateError("could not decode a CERTIFICATE PEM block")
	}
	if _, err := x509.ParseCertificate(block.Bytes); err != nil {
		return apperrors.InvalidCertificateError("failed to parse certificate: %v", err)
	}
	return nil
}

// recognizedKeyTypes are the PEM header families spec §4.4 accepts for a
// private key.
var recognizedKeyTypes = map[string]bool{
	"PRIVATE KEY":     true,
	"RSA PRIVATE KEY": true,
	"EC PRIVATE KEY":  true,
}

// ValidateKeyPair checks that certPEM/keyPEM are both well-formed and that
// keyPEM parses into a private key compatible with certPEM's public key.
func ValidateKeyPair(certPEM, keyPEM string) error {
	if err := ValidateCertificate(certPEM); err != nil {
		return err
	}
	if strings.TrimSpace(keyPEM) == "" {
		return apperrors.InvalidCertificateError("private key is empty")
	}
	block, _ := pem.Decode([]byte(keyPEM))
	if block == nil || !recognizedKeyTypes[block.Type] {
		return apperrors.InvalidCertificateError("private key PEM header %q is not a recognized key type", blockType(block))
	}
	if _, err := tls.X509KeyPair([]byte(certPEM), []byte(keyPEM)); err != nil {
		return apperrors.InvalidCertificateError("certificate/key do not form a valid pair: %v", err)
	}
	return nil
}

// ValidateCA checks a CA certificate the same way as a leaf certificate.
func ValidateCA(pemContent string) error {
	if err := ValidateCertificate(pemContent); err != nil {
		return apperrors.InvalidCertificateError("invalid CA certificate: %v", err)
	}
	return nil
}

func blockType(block *pem.Block) string {
	if block == nil {
		return "<none>"
	}
	return block.Type
}
