package domain

import "io"

// OutcomeKind classifies the result of a single upstream attempt.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeRateLimited
	OutcomeUnauthorized
	OutcomeTimeout
	OutcomeTransportError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeUnauthorized:
		return "unauthorized"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeTransportError:
		return "transport_error"
	}
	return "unknown"
}

// Recoverable reports whether the failure class warrants rotating to the
// next key and retrying.
func (k OutcomeKind) Recoverable() bool {
	return k != OutcomeSuccess
}

// AttemptOutcome is the classified result of one upstream attempt. Stream is
// non-nil only for OutcomeSuccess; closing it releases the attempt's
// connection and timers.
type AttemptOutcome struct {
	Stream  io.ReadCloser
	Message string
	Kind    OutcomeKind
}
