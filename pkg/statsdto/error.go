package statsdto

import "errors"

// ErrorKind discriminates every failure shape a query can produce. Callers
// switch on the kind instead of fishing for sentinel errors or nil results.
type ErrorKind string

const (
	KindNotFound            ErrorKind = "not_found"
	KindRateLimited         ErrorKind = "rate_limited"
	KindUpstreamUnavailable ErrorKind = "upstream_unavailable"
	KindInvalidRange        ErrorKind = "invalid_range"
	KindNoData              ErrorKind = "no_data"
	KindCancelled           ErrorKind = "cancelled"
)

// QueryError is the typed outcome carried back to the front-end contract.
type QueryError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *QueryError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Cause != nil {
		return string(e.Kind) + ": " + e.Cause.Error()
	}
	return string(e.Kind)
}

func (e *QueryError) Unwrap() error { return e.Cause }

func NotFound(msg string) *QueryError {
	return &QueryError{Kind: KindNotFound, Message: msg}
}

func RateLimited(msg string) *QueryError {
	return &QueryError{Kind: KindRateLimited, Message: msg}
}

func Unavailable(msg string, cause error) *QueryError {
	return &QueryError{Kind: KindUpstreamUnavailable, Message: msg, Cause: cause}
}

func InvalidRange(msg string) *QueryError {
	return &QueryError{Kind: KindInvalidRange, Message: msg}
}

func NoData(msg string) *QueryError {
	return &QueryError{Kind: KindNoData, Message: msg}
}

func Cancelled(cause error) *QueryError {
	return &QueryError{Kind: KindCancelled, Message: "request cancelled", Cause: cause}
}

// KindOf extracts the kind from an error chain. Unknown errors classify as
// upstream unavailability so nothing escapes the taxonomy.
func KindOf(err error) ErrorKind {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Kind
	}
	return KindUpstreamUnavailable
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
