package domain

import "errors"

var (
	// ErrUnsupportedQuery means no provider URL can be built for the query.
	ErrUnsupportedQuery = errors.New("unsupported query")

	// ErrEmptyResult means the provider answered without a usable candidate.
	ErrEmptyResult = errors.New("geocode result is empty")

	// ErrCancelled means the lookup was cancelled before it produced a result.
	ErrCancelled = errors.New("cancelled")

	// ErrTransportFailure wraps network and HTTP status failures.
	ErrTransportFailure = errors.New("transport failure")
)

// ErrorKind returns a short label for err, suitable for metrics and logs.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrUnsupportedQuery):
		return "unsupported"
	case errors.Is(err, ErrEmptyResult):
		return "empty"
	case errors.Is(err, ErrCancelled):
		return "cancelled"
	case errors.Is(err, ErrTransportFailure):
		return "transport"
	default:
		return "error"
	}
}
