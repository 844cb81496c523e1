// Package errors defines the coded domain errors of the rule engine and
// their mapping onto gRPC statuses with localized messages.
package errors

import stderrors "errors"

// Domain is the ErrorInfo domain attached to every status this package builds.
const Domain = "github.com/louisbranch/ruleforge"

// Error is a domain error. Message is for logs; the user-facing text is
// rendered from Code and Metadata by the i18n catalogs.
type Error struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Cause }

// Is matches any *Error carrying the same code, so a zero-message sentinel
// such as New(CodeRuleNotFound, "") works with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.Code == t.Code
}

func build(code Code, message string, metadata map[string]string, cause error) *Error {
	return &Error{Code: code, Message: message, Metadata: metadata, Cause: cause}
}

// New returns an error with code and message.
func New(code Code, message string) *Error {
	return build(code, message, nil, nil)
}

// WithMetadata returns an error whose metadata feeds message templates.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return build(code, message, metadata, nil)
}

// Wrap returns an error with cause in its chain.
func Wrap(code Code, message string, cause error) *Error {
	return build(code, message, nil, cause)
}

// WrapWithMetadata combines WithMetadata and Wrap.
func WrapWithMetadata(code Code, message string, metadata map[string]string, cause error) *Error {
	return build(code, message, metadata, cause)
}

// CodeOf returns the code of the first domain error in err's chain, or
// CodeUnknown.
func CodeOf(err error) Code {
	var domainErr *Error
	if stderrors.As(err, &domainErr) {
		return domainErr.Code
	}
	return CodeUnknown
}

// IsKind reports whether err carries a code of kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && CodeOf(err).Kind() == kind
}
