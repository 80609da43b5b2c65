package domain

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTargetID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    TargetID
		wantErr bool
	}{
		{name: "full path", input: "governance/feedback/form", want: TargetID{Group: "governance", Sub: "feedback", Item: "form"}},
		{name: "group and sub", input: "education/quiz", want: TargetID{Group: "education", Sub: "quiz"}},
		{name: "group only", input: "privacy", want: TargetID{Group: "privacy"}},
		{name: "empty", input: "", wantErr: true},
		{name: "too many segments", input: "a/b/c/d", wantErr: true},
		{name: "empty segment", input: "a//c", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTargetID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.input, got.String())
		})
	}
}

func TestTargetID_Category(t *testing.T) {
	target := TargetID{Group: "governance", Sub: "feedback", Item: "form"}
	assert.Equal(t, "governance", target.Category())
}

func TestTier_Weight(t *testing.T) {
	assert.EqualValues(t, 1, TierBasic.Weight())
	assert.EqualValues(t, 2, TierVerified.Weight())
	assert.EqualValues(t, 3, TierCivic.Weight())
	assert.EqualValues(t, 0, Tier("T9").Weight())
}

func TestSubmission_WeightedValue(t *testing.T) {
	support := Submission{Feedback: FeedbackSupport, Intensity: 4, Tier: TierCivic}
	assert.EqualValues(t, 12, support.WeightedValue())

	dissent := Submission{Feedback: FeedbackDissent, Intensity: 3, Tier: TierVerified}
	assert.EqualValues(t, -6, dissent.WeightedValue())
}

func TestSubmission_Validate(t *testing.T) {
	valid := Submission{
		ID:          uuid.New(),
		SubmitterID: "did:civic:abc",
		Target:      TargetID{Group: "governance"},
		Feedback:    FeedbackSupport,
		Intensity:   3,
		Tier:        TierVerified,
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Submission)
	}{
		{name: "missing id", mutate: func(s *Submission) { s.ID = uuid.Nil }},
		{name: "missing submitter", mutate: func(s *Submission) { s.SubmitterID = "" }},
		{name: "missing target", mutate: func(s *Submission) { s.Target = TargetID{} }},
		{name: "bad feedback", mutate: func(s *Submission) { s.Feedback = "meh" }},
		{name: "intensity too low", mutate: func(s *Submission) { s.Intensity = 0 }},
		{name: "intensity too high", mutate: func(s *Submission) { s.Intensity = 6 }},
		{name: "bad tier", mutate: func(s *Submission) { s.Tier = "T7" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid
			tt.mutate(&s)
			err := s.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedSubmission)
		})
	}
}

func TestTrustDelta_Apply(t *testing.T) {
	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	d := NewTrustDelta(TargetID{Group: "governance"})

	d.Apply(Submission{Feedback: FeedbackSupport, Intensity: 5, Tier: TierVerified}, now)
	d.Apply(Submission{Feedback: FeedbackDissent, Intensity: 2, Tier: TierBasic}, now)

	assert.EqualValues(t, 10, d.NetSupport)
	assert.EqualValues(t, 2, d.NetDissent)
	assert.EqualValues(t, 8, d.NetSentiment())
	assert.EqualValues(t, 2, d.TotalSubmissions)
	assert.InDelta(t, 3.5, d.AverageIntensity(), 1e-9)
	assert.EqualValues(t, 1, d.TierSubmissions[TierVerified])
	assert.EqualValues(t, 1, d.TierSubmissions[TierBasic])
	assert.Equal(t, now, d.LastUpdated)
}

func TestTrustDelta_CloneIsIndependent(t *testing.T) {
	now := time.Now()
	d := NewTrustDelta(TargetID{Group: "privacy"})
	d.Apply(Submission{Feedback: FeedbackSupport, Intensity: 1, Tier: TierBasic}, now)

	c := d.Clone()
	c.Apply(Submission{Feedback: FeedbackSupport, Intensity: 1, Tier: TierBasic}, now)

	assert.EqualValues(t, 1, d.TotalSubmissions)
	assert.EqualValues(t, 2, c.TotalSubmissions)
	assert.EqualValues(t, 1, d.TierSubmissions[TierBasic])
}

func TestThrottleState_Expired(t *testing.T) {
	start := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)
	state := ThrottleState{SubmitterID: "anon-1", WindowStart: start, Count: 1}

	assert.False(t, state.Expired(start.Add(time.Hour), 2*time.Hour))
	assert.False(t, state.Expired(start.Add(2*time.Hour), 2*time.Hour))
	assert.True(t, state.Expired(start.Add(2*time.Hour+time.Second), 2*time.Hour))
}

func TestReasonFor(t *testing.T) {
	assert.Equal(t, ReasonRateLimited, ReasonFor(ErrRateLimited))
	assert.Equal(t, ReasonTimestampDrift, ReasonFor(ErrTimestampDrift))
	assert.Equal(t, ReasonIntegrityViolation, ReasonFor(ErrIntegrityViolation))
	assert.Equal(t, ReasonRateLimited, ReasonFor(fmt.Errorf("wrapped: %w", ErrRateLimited)))
	assert.Equal(t, ReasonIntegrityViolation, ReasonFor(ErrMalformedSubmission))
}

func TestAlert_PendingBroadcast(t *testing.T) {
	a := Alert{BroadcastRequired: true}
	assert.True(t, a.PendingBroadcast())

	a.BroadcastDone = true
	assert.False(t, a.PendingBroadcast())

	quiet := Alert{BroadcastRequired: false}
	assert.False(t, quiet.PendingBroadcast())
}

func TestHealthLevel_Degraded(t *testing.T) {
	assert.False(t, HealthExcellent.Degraded())
	assert.False(t, HealthGood.Degraded())
	assert.True(t, HealthConcerning.Degraded())
	assert.True(t, HealthCritical.Degraded())
}
