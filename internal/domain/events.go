package domain

import "context"

// CyclePublisher hands finished cycle results to downstream consumers.
// Implementations must never block the aggregation loop.
type CyclePublisher interface {
	PublishCycle(result CycleResult)
}

// CycleSubscriber receives cycle results from a publisher. The returned
// cancel func detaches the subscription and closes the channel.
type CycleSubscriber interface {
	Subscribe() (<-chan CycleResult, func())
}

// Bus couples both halves of the cycle-event fan-out.
type Bus interface {
	CyclePublisher
	CycleSubscriber
}

// BroadcastSink fans escalated alerts out to federated downstream systems.
// Delivery is at-least-once; sinks are expected to be idempotent.
type BroadcastSink interface {
	BroadcastAlert(ctx context.Context, a Alert) error
}
