package domain

import "context"

// ProofVerifier validates the integrity proof carried by a submission.
// Implementations are stateless and safe for concurrent use.
type ProofVerifier interface {
	VerifyProof(ctx context.Context, s Submission) error
}

// DigestFunc computes the tamper-evidence digest over a delta's counters.
// The digest binds the target, the weighted totals, the submission count,
// and the last verified proof, so any out-of-band mutation is detectable.
type DigestFunc func(d *TrustDelta, lastProof string) string
