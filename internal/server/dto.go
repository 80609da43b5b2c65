package server

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/app"
	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/domain"
)

// Domain types carry no JSON tags; this file owns the wire shapes and
// the conversions in both directions.

type submissionRequest struct {
	ID          string    `json:"id" validate:"required,uuid4"`
	SubmitterID string    `json:"submitter_id" validate:"required,max=128"`
	TargetID    string    `json:"target_id" validate:"required,max=256"`
	Feedback    string    `json:"feedback" validate:"required,oneof=support dissent"`
	Intensity   int64     `json:"intensity" validate:"required,min=1,max=5"`
	Tier        string    `json:"tier" validate:"required,oneof=T1 T2 T3"`
	Proof       string    `json:"proof" validate:"required"`
	SubmittedAt time.Time `json:"submitted_at" validate:"required"`
}

func (r submissionRequest) toDomain() (domain.Submission, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return domain.Submission{}, fmt.Errorf("invalid submission id: %w", err)
	}
	target, err := domain.ParseTargetID(r.TargetID)
	if err != nil {
		return domain.Submission{}, fmt.Errorf("invalid target id: %w", err)
	}
	feedback, err := domain.ParseFeedbackType(r.Feedback)
	if err != nil {
		return domain.Submission{}, err
	}
	tier, err := domain.ParseTier(r.Tier)
	if err != nil {
		return domain.Submission{}, err
	}
	return domain.Submission{
		ID:          id,
		SubmitterID: r.SubmitterID,
		Target:      target,
		Feedback:    feedback,
		Intensity:   r.Intensity,
		Tier:        tier,
		Proof:       r.Proof,
		SubmittedAt: r.SubmittedAt,
	}, nil
}

type admissionResponse struct {
	DeltaID          string  `json:"delta_id"`
	ProofDigest      string  `json:"proof_digest"`
	Duplicate        bool    `json:"duplicate"`
	ProcessingTimeMS float64 `json:"processing_time_ms"`
}

type deltaResponse struct {
	Target           string           `json:"target"`
	NetSupport       int64            `json:"net_support"`
	NetDissent       int64            `json:"net_dissent"`
	NetSentiment     int64            `json:"net_sentiment"`
	TotalSubmissions int64            `json:"total_submissions"`
	AverageIntensity float64          `json:"average_intensity"`
	TierBreakdown    map[string]int64 `json:"tier_breakdown"`
	IntegrityDigest  string           `json:"integrity_digest"`
	LastUpdated      time.Time        `json:"last_updated"`
}

func deltaFromDomain(d *domain.TrustDelta) deltaResponse {
	return deltaResponse{
		Target:           d.Target.String(),
		NetSupport:       d.NetSupport,
		NetDissent:       d.NetDissent,
		NetSentiment:     d.NetSentiment(),
		TotalSubmissions: d.TotalSubmissions,
		AverageIntensity: d.AverageIntensity(),
		TierBreakdown:    tierBreakdown(d.TierSubmissions),
		IntegrityDigest:  d.IntegrityDigest,
		LastUpdated:      d.LastUpdated,
	}
}

type snapshotResponse struct {
	Target           string           `json:"target"`
	NetSentiment     int64            `json:"net_sentiment"`
	AverageIntensity float64          `json:"average_intensity"`
	TotalSubmissions int64            `json:"total_submissions"`
	TierBreakdown    map[string]int64 `json:"tier_breakdown"`
	Trend            string           `json:"trend"`
	Volatile         bool             `json:"volatile"`
	ChangePercent    float64          `json:"change_percent"`
	CycleSeq         uint64           `json:"cycle_seq"`
	CycleTime        time.Time        `json:"cycle_time"`
}

func snapshotFromDomain(s domain.SentimentSnapshot) snapshotResponse {
	return snapshotResponse{
		Target:           s.Target.String(),
		NetSentiment:     s.NetSentiment,
		AverageIntensity: s.AverageIntensity,
		TotalSubmissions: s.TotalSubmissions,
		TierBreakdown:    tierBreakdown(s.TierBreakdown),
		Trend:            string(s.Trend),
		Volatile:         s.Volatile,
		ChangePercent:    s.ChangePercent,
		CycleSeq:         s.CycleSeq,
		CycleTime:        s.CycleTime,
	}
}

type alertResponse struct {
	ID                string             `json:"id"`
	Type              string             `json:"type"`
	Severity          string             `json:"severity"`
	Target            string             `json:"target,omitempty"`
	Metrics           map[string]float64 `json:"metrics"`
	BroadcastRequired bool               `json:"broadcast_required"`
	BroadcastDone     bool               `json:"broadcast_done"`
	CreatedAt         time.Time          `json:"created_at"`
}

func alertFromDomain(a domain.Alert) alertResponse {
	target := ""
	if !a.Target.IsZero() {
		target = a.Target.String()
	}
	return alertResponse{
		ID:                a.ID,
		Type:              string(a.Type),
		Severity:          string(a.Severity),
		Target:            target,
		Metrics:           a.Metrics,
		BroadcastRequired: a.BroadcastRequired,
		BroadcastDone:     a.BroadcastDone,
		CreatedAt:         a.CreatedAt,
	}
}

type signalResponse struct {
	ID          string     `json:"id"`
	SubmitterID string     `json:"submitter_id"`
	Target      string     `json:"target"`
	Tier        string     `json:"tier"`
	Amount      float64    `json:"amount"`
	Reason      string     `json:"reason"`
	CreatedAt   time.Time  `json:"created_at"`
	Processed   bool       `json:"processed"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

func signalFromDomain(sig domain.RewardSignal) signalResponse {
	resp := signalResponse{
		ID:          sig.ID,
		SubmitterID: sig.SubmitterID,
		Target:      sig.Target.String(),
		Tier:        string(sig.Tier),
		Amount:      sig.Amount,
		Reason:      sig.Reason,
		CreatedAt:   sig.CreatedAt,
		Processed:   sig.Processed,
	}
	if !sig.ProcessedAt.IsZero() {
		t := sig.ProcessedAt
		resp.ProcessedAt = &t
	}
	return resp
}

type fusionEntryResponse struct {
	Target       string `json:"target"`
	NetSentiment int64  `json:"net_sentiment"`
	Eligible     bool   `json:"eligible"`
	Dampened     bool   `json:"dampened"`
}

type ledgerSyncResponse struct {
	EntriesSynced   int       `json:"entries_synced"`
	TargetsAffected int       `json:"targets_affected"`
	RewardCount     int       `json:"reward_count"`
	SyncedAt        time.Time `json:"synced_at"`
}

type fusionSummaryResponse struct {
	GeneratedAt       time.Time             `json:"generated_at"`
	CycleSeq          uint64                `json:"cycle_seq"`
	Entries           []fusionEntryResponse `json:"entries"`
	EligibleCount     int                   `json:"eligible_count"`
	EffectiveEligible float64               `json:"effective_eligible"`
	Dampened          bool                  `json:"dampened"`
	Health            string                `json:"health"`
	LedgerSync        ledgerSyncResponse    `json:"ledger_sync"`
}

func fusionSummaryFromDomain(sum domain.FusionSummary) fusionSummaryResponse {
	entries := make([]fusionEntryResponse, 0, len(sum.Entries))
	for _, e := range sum.Entries {
		entries = append(entries, fusionEntryResponse{
			Target:       e.Target.String(),
			NetSentiment: e.NetSentiment,
			Eligible:     e.Eligible,
			Dampened:     e.Dampened,
		})
	}
	return fusionSummaryResponse{
		GeneratedAt:       sum.GeneratedAt,
		CycleSeq:          sum.CycleSeq,
		Entries:           entries,
		EligibleCount:     sum.EligibleCount,
		EffectiveEligible: sum.EffectiveEligible,
		Dampened:          sum.Dampened,
		Health:            string(sum.Health),
		LedgerSync: ledgerSyncResponse{
			EntriesSynced:   sum.Ledger.EntriesSynced,
			TargetsAffected: sum.Ledger.TargetsAffected,
			RewardCount:     sum.Ledger.RewardCount,
			SyncedAt:        sum.Ledger.SyncedAt,
		},
	}
}

type settingsResponse struct {
	VolatilityThreshold     float64 `json:"volatility_threshold"`
	FusionThreshold         int64   `json:"fusion_threshold"`
	RewardCooldownSeconds   int64   `json:"reward_cooldown_seconds"`
	MaxMintsPerHour         int64   `json:"max_mints_per_hour"`
	SubmissionWindowSeconds int64   `json:"submission_window_seconds"`
	MaxPerWindow            int64   `json:"max_per_window"`
}

func settingsFromApp(s app.Settings) settingsResponse {
	return settingsResponse{
		VolatilityThreshold:     s.VolatilityThreshold,
		FusionThreshold:         s.FusionThreshold,
		RewardCooldownSeconds:   int64(s.RewardCooldown.Seconds()),
		MaxMintsPerHour:         s.MaxMintsPerHour,
		SubmissionWindowSeconds: int64(s.SubmissionWindow.Seconds()),
		MaxPerWindow:            s.MaxPerWindow,
	}
}

type configUpdateRequest struct {
	VolatilityThreshold     *float64 `json:"volatility_threshold"`
	FusionThreshold         *int64   `json:"fusion_threshold"`
	RewardCooldownSeconds   *int64   `json:"reward_cooldown_seconds"`
	MaxMintsPerHour         *int64   `json:"max_mints_per_hour"`
	SubmissionWindowSeconds *int64   `json:"submission_window_seconds"`
	MaxPerWindow            *int64   `json:"max_per_window"`
}

func (r configUpdateRequest) toUpdate() app.ConfigUpdate {
	u := app.ConfigUpdate{
		VolatilityThreshold: r.VolatilityThreshold,
		FusionThreshold:     r.FusionThreshold,
		MaxMintsPerHour:     r.MaxMintsPerHour,
		MaxPerWindow:        r.MaxPerWindow,
	}
	if r.RewardCooldownSeconds != nil {
		d := time.Duration(*r.RewardCooldownSeconds) * time.Second
		u.RewardCooldown = &d
	}
	if r.SubmissionWindowSeconds != nil {
		d := time.Duration(*r.SubmissionWindowSeconds) * time.Second
		u.SubmissionWindow = &d
	}
	return u
}

type impactWeightRequest struct {
	Weight float64 `json:"weight" validate:"required,gt=0"`
}

type impactWeightsResponse struct {
	Weights map[string]float64 `json:"weights"`
}

type exportResponse struct {
	GeneratedAt time.Time          `json:"generated_at"`
	Version     string             `json:"version"`
	Deltas      []deltaResponse    `json:"deltas"`
	Snapshots   []snapshotResponse `json:"snapshots"`
	Alerts      []alertResponse    `json:"alerts"`
	Signals     []signalResponse   `json:"reward_signals"`
}

func exportFromApp(ex *app.Export) exportResponse {
	deltas := make([]deltaResponse, 0, len(ex.Deltas))
	for _, d := range ex.Deltas {
		deltas = append(deltas, deltaFromDomain(d))
	}
	snapshots := make([]snapshotResponse, 0, len(ex.Snapshots))
	for _, s := range ex.Snapshots {
		snapshots = append(snapshots, snapshotFromDomain(s))
	}
	alerts := make([]alertResponse, 0, len(ex.Alerts))
	for _, a := range ex.Alerts {
		alerts = append(alerts, alertFromDomain(a))
	}
	signals := make([]signalResponse, 0, len(ex.Signals))
	for _, sig := range ex.Signals {
		signals = append(signals, signalFromDomain(sig))
	}
	return exportResponse{
		GeneratedAt: ex.GeneratedAt,
		Version:     ex.Version,
		Deltas:      deltas,
		Snapshots:   snapshots,
		Alerts:      alerts,
		Signals:     signals,
	}
}

type statusResponse struct {
	Status string `json:"status"`
}

var statusOK = statusResponse{Status: "ok"}

func tierBreakdown(counts map[domain.Tier]int64) map[string]int64 {
	out := make(map[string]int64, len(counts))
	for tier, n := range counts {
		out[string(tier)] = n
	}
	return out
}
