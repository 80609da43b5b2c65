package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// FeedbackType is the polarity of a submission.
type FeedbackType string

const (
	FeedbackSupport FeedbackType = "support"
	FeedbackDissent FeedbackType = "dissent"
)

// ParseFeedbackType validates the wire form of a feedback type.
func ParseFeedbackType(s string) (FeedbackType, error) {
	switch FeedbackType(s) {
	case FeedbackSupport:
		return FeedbackSupport, nil
	case FeedbackDissent:
		return FeedbackDissent, nil
	default:
		return "", fmt.Errorf("unknown feedback type %q", s)
	}
}

// Tier is the verification level of a submitter.
type Tier string

const (
	TierBasic    Tier = "T1"
	TierVerified Tier = "T2"
	TierCivic    Tier = "T3"
)

var tierWeights = map[Tier]int64{
	TierBasic:    1,
	TierVerified: 2,
	TierCivic:    3,
}

// Weight returns the multiplier applied to a submission's intensity.
// Unknown tiers weigh zero so they never move an aggregate.
func (t Tier) Weight() int64 {
	return tierWeights[t]
}

// Valid reports whether the tier is one of the known levels.
func (t Tier) Valid() bool {
	_, ok := tierWeights[t]
	return ok
}

// ParseTier validates the wire form of a tier.
func ParseTier(s string) (Tier, error) {
	t := Tier(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown tier %q", s)
	}
	return t, nil
}

// Tiers lists all known tiers in ascending order of weight.
func Tiers() []Tier {
	return []Tier{TierBasic, TierVerified, TierCivic}
}

const (
	// MinIntensity and MaxIntensity bound the declared strength of a submission.
	MinIntensity = 1
	MaxIntensity = 5
)

// Submission is one piece of trust feedback after gateway admission.
// ID doubles as the idempotency key for delta accumulation.
type Submission struct {
	ID          uuid.UUID
	SubmitterID string
	Target      TargetID
	Feedback    FeedbackType
	Intensity   int64
	Tier        Tier
	Proof       string
	SubmittedAt time.Time
}

// WeightedValue is the tier-weighted contribution of this submission,
// positive for support and negative for dissent.
func (s Submission) WeightedValue() int64 {
	v := s.Intensity * s.Tier.Weight()
	if s.Feedback == FeedbackDissent {
		return -v
	}
	return v
}

// Validate checks the structural invariants every admitted submission holds.
func (s Submission) Validate() error {
	if s.ID == uuid.Nil {
		return fmt.Errorf("%w: missing submission id", ErrMalformedSubmission)
	}
	if s.SubmitterID == "" {
		return fmt.Errorf("%w: missing submitter id", ErrMalformedSubmission)
	}
	if s.Target.IsZero() {
		return fmt.Errorf("%w: missing target", ErrMalformedSubmission)
	}
	if s.Feedback != FeedbackSupport && s.Feedback != FeedbackDissent {
		return fmt.Errorf("%w: unknown feedback type %q", ErrMalformedSubmission, s.Feedback)
	}
	if s.Intensity < MinIntensity || s.Intensity > MaxIntensity {
		return fmt.Errorf("%w: intensity %d outside [%d,%d]", ErrMalformedSubmission, s.Intensity, MinIntensity, MaxIntensity)
	}
	if !s.Tier.Valid() {
		return fmt.Errorf("%w: unknown tier %q", ErrMalformedSubmission, s.Tier)
	}
	return nil
}
