// Package integrity verifies the anti-replay fingerprint each submission
// carries. The proof is an HMAC-SHA256 over the submission's identity
// fields, keyed on a shared service secret; it is a lightweight
// tamper-evidence contract, not a commitment scheme.
package integrity

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/domain"
)

// Validator checks proof fingerprints and timestamp freshness.
// It is stateless and safe for concurrent use.
type Validator struct {
	secret     []byte
	driftBound time.Duration
	clock      clockwork.Clock
}

// NewValidator creates a validator keyed on secret. driftBound is the
// symmetric freshness window: submissions stamped further than that from
// now, in either direction, are rejected.
func NewValidator(secret string, driftBound time.Duration, clock clockwork.Clock) *Validator {
	return &Validator{
		secret:     []byte(secret),
		driftBound: driftBound,
		clock:      clock,
	}
}

// VerifyProof implements domain.ProofVerifier. The drift check runs first
// so stale submissions never pay for MAC verification.
func (v *Validator) VerifyProof(_ context.Context, s domain.Submission) error {
	drift := v.clock.Now().Sub(s.SubmittedAt)
	if drift > v.driftBound || -drift > v.driftBound {
		return fmt.Errorf("%w: submitted_at off by %s", domain.ErrTimestampDrift, drift)
	}

	expected := v.fingerprint(s)
	given, err := hex.DecodeString(s.Proof)
	if err != nil {
		return fmt.Errorf("%w: proof is not hex", domain.ErrIntegrityViolation)
	}
	if !hmac.Equal(expected, given) {
		return fmt.Errorf("%w: fingerprint mismatch", domain.ErrIntegrityViolation)
	}
	return nil
}

func (v *Validator) fingerprint(s domain.Submission) []byte {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(canonicalForm(s)))
	return mac.Sum(nil)
}

// canonicalForm is the exact byte sequence both prover and validator MAC:
// target, feedback type, tier, and the millisecond timestamp.
func canonicalForm(s domain.Submission) string {
	parts := []string{
		s.Target.String(),
		string(s.Feedback),
		string(s.Tier),
		strconv.FormatInt(s.SubmittedAt.UnixMilli(), 10),
	}
	return strings.Join(parts, "|")
}

// Prover mints valid proofs. Trusted upstream intake clients hold the same
// secret; tests use it to build admissible submissions.
type Prover struct {
	secret []byte
}

// NewProver creates a prover keyed on secret.
func NewProver(secret string) *Prover {
	return &Prover{secret: []byte(secret)}
}

// Mint returns the hex proof for the submission's current field values.
func (p *Prover) Mint(s domain.Submission) string {
	mac := hmac.New(sha256.New, p.secret)
	mac.Write([]byte(canonicalForm(s)))
	return hex.EncodeToString(mac.Sum(nil))
}

// ProofDigest is the content address of a proof, reported back to the
// submitter on acceptance and folded into the delta digest.
func ProofDigest(proof string) string {
	sum := sha256.Sum256([]byte(proof))
	return hex.EncodeToString(sum[:])
}

// DeltaDigest implements domain.DigestFunc: a deterministic digest over
// the ledger totals and the last admitted proof, recomputed on every
// apply so out-of-band mutation of a stored delta is detectable.
func DeltaDigest(d *domain.TrustDelta, lastProof string) string {
	payload := strings.Join([]string{
		d.Target.String(),
		strconv.FormatInt(d.NetSupport, 10),
		strconv.FormatInt(d.NetDissent, 10),
		strconv.FormatInt(d.TotalSubmissions, 10),
		lastProof,
	}, "|")
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}
