// Package apperrors defines the named error kinds used across the config
// loader, listener manager and strategy set. All kinds share the one Error
// type, which carries a Kind, so callers can get the *Error with errors.As
// and check its kind with Is or ErrorCode instead of matching strings.
package apperrors

import "fmt"

// Kind identifies one of the error families from the system's error design.
type Kind string

const (
	KindParse                Kind = "PARSE_ERROR"
	KindVariableNotFound     Kind = "VARIABLE_NOT_FOUND"
	KindInvalidCertificate   Kind = "INVALID_CERTIFICATE"
	KindListenerAlreadyExist Kind = "LISTENER_ALREADY_EXISTS"
	KindListenerNotFound     Kind = "LISTENER_NOT_FOUND"
	KindListenerCreation     Kind = "LISTENER_CREATION_ERROR"
	KindInvalidExpectation   Kind = "INVALID_EXPECTATION"
	KindTokenAcquisition     Kind = "TOKEN_ACQUISITION_ERROR"
	KindTunnelStartup        Kind = "TUNNEL_STARTUP_ERROR"
	KindTemplate             Kind = "TEMPLATE_ERROR"
	KindRelayTransport       Kind = "RELAY_TRANSPORT_ERROR"
)

// Error is the common shape for every named error kind in the system.
type Error struct {
	kind    Kind
	message string
	cause   error
}

func New(kind Kind, format string, args ...any) *Error {
	return &Error{kind: kind, message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{kind: kind, message: fmt.Sprintf(format, args...), cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *Error) Unwrap() error { return e.cause }

// ErrorCode reports the semantic kind, for collaborators (e.g. the
// out-of-scope REST management layer) that map kinds to transport codes.
func (e *Error) ErrorCode() string { return string(e.kind) }

func (e *Error) Is(kind Kind) bool { return e.kind == kind }

func ParseError(format string, args ...any) *Error {
	return New(KindParse, format, args...)
}

func VariableNotFoundError(name string) *Error {
	return New(KindVariableNotFound, "variable %q has no value and no default", name)
}

func InvalidCertificateError(format string, args ...any) *Error {
	return New(KindInvalidCertificate, format, args...)
}

func ListenerAlreadyExistsError(id string) *Error {
	return New(KindListenerAlreadyExist, "listener %q already exists", id)
}

func ListenerNotFoundError(id string) *Error {
	return New(KindListenerNotFound, "listener %q not found", id)
}

func ListenerCreationError(cause error, format string, args ...any) *Error {
	return Wrap(KindListenerCreation, cause, format, args...)
}

func InvalidExpectationError(format string, args ...any) *Error {
	return New(KindInvalidExpectation, format, args...)
}

func TokenAcquisitionError(cause error, format string, args ...any) *Error {
	return Wrap(KindTokenAcquisition, cause, format, args...)
}

func TunnelStartupError(format string, args ...any) *Error {
	return New(KindTunnelStartup, format, args...)
}

func TemplateError(cause error, format string, args ...any) *Error {
	return Wrap(KindTemplate, cause, format, args...)
}

func RelayTransportError(cause error, format string, args ...any) *Error {
	return Wrap(KindRelayTransport, cause, format, args...)
}
