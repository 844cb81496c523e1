package errors

import (
	stderrors "errors"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/louisbranch/ruleforge/internal/platform/errors/i18n"
)

// DefaultLocale is used when the caller did not state a preference.
const DefaultLocale = i18n.BaseLocale

// ToGRPCStatus returns a status error for e. The status message is the
// internal message; ErrorInfo carries the code and metadata, and
// LocalizedMessage carries userMessage.
func (e *Error) ToGRPCStatus(locale string, userMessage string) error {
	base := status.New(e.Code.GRPCCode(), e.Message)
	detailed, err := base.WithDetails(
		&errdetails.ErrorInfo{Reason: string(e.Code), Domain: Domain, Metadata: e.Metadata},
		&errdetails.LocalizedMessage{Locale: locale, Message: userMessage},
	)
	if err != nil {
		return base.Err()
	}
	return detailed.Err()
}

// HandleError converts err to a gRPC status error with a message localized
// for locale. Status errors pass through unchanged and anything else
// becomes Internal.
func HandleError(err error, locale string) error {
	if err == nil {
		return nil
	}
	var domainErr *Error
	if stderrors.As(err, &domainErr) {
		userMessage := i18n.GetCatalog(locale).Format(string(domainErr.Code), domainErr.Metadata)
		return domainErr.ToGRPCStatus(locale, userMessage)
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Errorf(codes.Internal, "%v", err)
}

// ReasonFromStatus extracts the domain code carried by a status error.
func ReasonFromStatus(err error) (Code, bool) {
	st, ok := status.FromError(err)
	if !ok {
		return "", false
	}
	for _, detail := range st.Details() {
		if info, ok := detail.(*errdetails.ErrorInfo); ok && info.GetDomain() == Domain {
			return Code(info.GetReason()), true
		}
	}
	return "", false
}
