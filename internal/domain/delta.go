package domain

import "time"

// TrustDelta is the cumulative tier-weighted ledger for one target.
// NetSupport and NetDissent only ever grow; nothing resets them except an
// explicit administrative purge of the whole target.
type TrustDelta struct {
	Target           TargetID
	NetSupport       int64
	NetDissent       int64
	TotalSubmissions int64
	IntensitySum     int64
	TierSubmissions  map[Tier]int64
	IntegrityDigest  string
	LastUpdated      time.Time
}

// NewTrustDelta returns an empty ledger for the given target.
func NewTrustDelta(target TargetID) *TrustDelta {
	return &TrustDelta{
		Target:          target,
		TierSubmissions: make(map[Tier]int64),
	}
}

// NetSentiment is the signed balance of weighted support over weighted dissent.
func (d *TrustDelta) NetSentiment() int64 {
	return d.NetSupport - d.NetDissent
}

// AverageIntensity is the mean raw intensity across admitted submissions,
// zero when nothing has been recorded yet.
func (d *TrustDelta) AverageIntensity() float64 {
	if d.TotalSubmissions == 0 {
		return 0
	}
	return float64(d.IntensitySum) / float64(d.TotalSubmissions)
}

// Apply folds one admitted submission into the ledger.
// Idempotence is the store's responsibility, not the ledger's.
func (d *TrustDelta) Apply(s Submission, now time.Time) {
	weighted := s.Intensity * s.Tier.Weight()
	if s.Feedback == FeedbackSupport {
		d.NetSupport += weighted
	} else {
		d.NetDissent += weighted
	}
	d.TotalSubmissions++
	d.IntensitySum += s.Intensity
	if d.TierSubmissions == nil {
		d.TierSubmissions = make(map[Tier]int64)
	}
	d.TierSubmissions[s.Tier]++
	d.LastUpdated = now
}

// Clone returns a deep copy safe to hand across goroutine boundaries.
func (d *TrustDelta) Clone() *TrustDelta {
	if d == nil {
		return nil
	}
	c := *d
	c.TierSubmissions = make(map[Tier]int64, len(d.TierSubmissions))
	for k, v := range d.TierSubmissions {
		c.TierSubmissions[k] = v
	}
	return &c
}

// IsEmpty reports whether the ledger has seen no submissions.
func (d *TrustDelta) IsEmpty() bool {
	return d == nil || d.TotalSubmissions == 0
}
