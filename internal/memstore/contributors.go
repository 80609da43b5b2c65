package memstore

import (
	"context"
	"sync"

	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/domain"
)

type contributorKey struct {
	Target      domain.TargetID
	Tier        domain.Tier
	SubmitterID string
}

// ContributorIndex remembers which submitters fed a target at each tier,
// in first-seen order so reward sweeps are deterministic.
type ContributorIndex struct {
	mu      sync.RWMutex
	ordered map[domain.TargetID]map[domain.Tier][]string
	seen    map[contributorKey]struct{}
}

// NewContributorIndex creates an empty index.
func NewContributorIndex() *ContributorIndex {
	return &ContributorIndex{
		ordered: make(map[domain.TargetID]map[domain.Tier][]string),
		seen:    make(map[contributorKey]struct{}),
	}
}

// RecordContributor implements domain.ContributorIndex.
func (c *ContributorIndex) RecordContributor(_ context.Context, s domain.Submission) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := contributorKey{Target: s.Target, Tier: s.Tier, SubmitterID: s.SubmitterID}
	if _, ok := c.seen[key]; ok {
		return nil
	}
	c.seen[key] = struct{}{}

	tiers := c.ordered[s.Target]
	if tiers == nil {
		tiers = make(map[domain.Tier][]string)
		c.ordered[s.Target] = tiers
	}
	tiers[s.Tier] = append(tiers[s.Tier], s.SubmitterID)
	return nil
}

// Contributors implements domain.ContributorIndex.
func (c *ContributorIndex) Contributors(_ context.Context, target domain.TargetID, tier domain.Tier) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tiers := c.ordered[target]
	if tiers == nil {
		return nil, nil
	}
	out := make([]string, len(tiers[tier]))
	copy(out, tiers[tier])
	return out, nil
}
