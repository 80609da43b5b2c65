package domain

import "errors"

// Sentinel errors shared across the pipeline stages. Handlers translate
// these into transport responses; stages wrap them with context. None of
// them is fatal to the process.
var (
	ErrIntegrityViolation  = errors.New("integrity proof verification failed")
	ErrTimestampDrift      = errors.New("submission timestamp outside drift bound")
	ErrRateLimited         = errors.New("submitter rate limited")
	ErrMalformedSubmission = errors.New("malformed submission")
	ErrTargetNotFound      = errors.New("target not found")
	ErrAlertNotFound       = errors.New("alert not found")
	ErrSignalNotFound      = errors.New("reward signal not found")
	ErrStoreUnavailable    = errors.New("store unavailable")
	ErrNotLeader           = errors.New("instance is not the leader")
)

// RejectReason is the external taxonomy for turned-away submissions. The
// values double as metric labels and wire payload fields, so they stay
// short and stable.
type RejectReason string

const (
	ReasonRateLimited        RejectReason = "RateLimited"
	ReasonIntegrityViolation RejectReason = "IntegrityViolation"
	ReasonTimestampDrift     RejectReason = "TimestampDrift"
)

// String implements fmt.Stringer.
func (r RejectReason) String() string {
	return string(r)
}

// ReasonFor maps a rejection error to its external taxonomy label.
// Anything unrecognized is reported as an integrity violation, the
// conservative bucket.
func ReasonFor(err error) RejectReason {
	switch {
	case errors.Is(err, ErrRateLimited):
		return ReasonRateLimited
	case errors.Is(err, ErrTimestampDrift):
		return ReasonTimestampDrift
	default:
		return ReasonIntegrityViolation
	}
}
