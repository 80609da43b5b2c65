package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/domain"
)

const alertChannel = "alerts:broadcast"

// relayedAlert is the instance-to-instance wire form of a broadcast alert.
type relayedAlert struct {
	AlertID           string             `json:"alert_id"`
	AlertType         string             `json:"alert_type"`
	Severity          string             `json:"severity"`
	Target            string             `json:"target,omitempty"`
	Metrics           map[string]float64 `json:"metrics,omitempty"`
	BroadcastRequired bool               `json:"broadcast_required"`
	CreatedAt         time.Time          `json:"created_at"`
}

func (m relayedAlert) toDomain() (domain.Alert, error) {
	alert := domain.Alert{
		ID:                m.AlertID,
		Type:              domain.AlertType(m.AlertType),
		Severity:          domain.AlertSeverity(m.Severity),
		Metrics:           m.Metrics,
		BroadcastRequired: m.BroadcastRequired,
		CreatedAt:         m.CreatedAt,
	}
	if m.Target != "" {
		target, err := domain.ParseTargetID(m.Target)
		if err != nil {
			return domain.Alert{}, fmt.Errorf("relayed alert carries target %q: %w", m.Target, err)
		}
		alert.Target = target
	}
	return alert, nil
}

// AlertRelay fans broadcast alerts out across pipeline instances over Redis
// pub/sub. The alerting engine publishes through it instead of writing to
// the local federation hub directly; every instance's subscriber, the
// publisher's included, then delivers to its own connected peers.
type AlertRelay struct {
	rdb  *goredis.Client
	sink domain.BroadcastSink
}

var _ domain.BroadcastSink = (*AlertRelay)(nil)

// NewAlertRelay creates a relay delivering into the given local sink.
func NewAlertRelay(client *Client, sink domain.BroadcastSink) *AlertRelay {
	return &AlertRelay{
		rdb:  client.Underlying(),
		sink: sink,
	}
}

// BroadcastAlert implements domain.BroadcastSink by publishing the alert
// to every subscribed instance.
func (r *AlertRelay) BroadcastAlert(ctx context.Context, alert domain.Alert) error {
	msg := relayedAlert{
		AlertID:           alert.ID,
		AlertType:         string(alert.Type),
		Severity:          string(alert.Severity),
		Target:            alert.Target.String(),
		Metrics:           alert.Metrics,
		BroadcastRequired: alert.BroadcastRequired,
		CreatedAt:         alert.CreatedAt,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal relayed alert: %w", err)
	}

	if err := r.rdb.Publish(ctx, alertChannel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish alert broadcast: %w", err)
	}
	return nil
}

// Run subscribes to the broadcast channel and forwards each alert into the
// local sink. Blocks until ctx is cancelled.
func (r *AlertRelay) Run(ctx context.Context) {
	pubsub := r.rdb.Subscribe(ctx, alertChannel)
	defer func() {
		_ = pubsub.Close()
	}()

	ch := pubsub.Channel()
	for {
		select {
		case msg := <-ch:
			if msg == nil {
				return
			}
			r.handleMessage(ctx, msg.Payload)
		case <-ctx.Done():
			return
		}
	}
}

// handleMessage processes a single relayed alert. Malformed payloads are
// dropped; local fan-out failure is logged, since the publisher already
// counted the broadcast as queued.
func (r *AlertRelay) handleMessage(ctx context.Context, payload string) {
	var msg relayedAlert
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		slog.WarnContext(ctx, "dropping malformed relayed alert", "error", err)
		return
	}

	alert, err := msg.toDomain()
	if err != nil {
		slog.WarnContext(ctx, "dropping relayed alert", "alert_id", msg.AlertID, "error", err)
		return
	}

	if err := r.sink.BroadcastAlert(ctx, alert); err != nil {
		slog.ErrorContext(ctx, "failed to fan out relayed alert", "alert_id", msg.AlertID, "error", err)
	}
}
