package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/domain"
)

// Archiver writes pipeline records into the archive tables. Inserts are
// idempotent on their natural keys, so an at-least-once caller never
// duplicates a record.
type Archiver struct {
	pool *pgxpool.Pool
}

// NewArchiver creates an archiver on the shared pool.
func NewArchiver(pool *pgxpool.Pool) *Archiver {
	return &Archiver{pool: pool}
}

// Ping reports archive reachability for readiness probes.
func (a *Archiver) Ping(ctx context.Context) error {
	return a.pool.Ping(ctx)
}

const insertSnapshotSQL = `
	INSERT INTO archived_snapshots (
		target, net_sentiment, average_intensity, total_submissions,
		tier_breakdown, trend, volatile, change_percent, cycle_seq, cycle_time
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (target, cycle_seq) DO NOTHING`

// ArchiveSnapshots copies one cycle's snapshots out in a single batch.
func (a *Archiver) ArchiveSnapshots(ctx context.Context, snaps []domain.SentimentSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, s := range snaps {
		breakdown, err := json.Marshal(s.TierBreakdown)
		if err != nil {
			return fmt.Errorf("failed to encode tier breakdown: %w", err)
		}
		batch.Queue(insertSnapshotSQL,
			s.Target.String(), s.NetSentiment, s.AverageIntensity, s.TotalSubmissions,
			breakdown, string(s.Trend), s.Volatile, s.ChangePercent, s.CycleSeq, s.CycleTime,
		)
	}

	if err := a.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to archive snapshots: %w", err)
	}
	return nil
}

// ArchiveAlert copies one alert out. System-wide alerts carry no target.
func (a *Archiver) ArchiveAlert(ctx context.Context, alert domain.Alert) error {
	metrics, err := json.Marshal(alert.Metrics)
	if err != nil {
		return fmt.Errorf("failed to encode alert metrics: %w", err)
	}

	var target *string
	if !alert.Target.IsZero() {
		s := alert.Target.String()
		target = &s
	}

	_, err = a.pool.Exec(ctx, `
		INSERT INTO archived_alerts (
			id, alert_type, severity, target, metrics,
			broadcast_required, broadcast_done, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`,
		alert.ID, string(alert.Type), string(alert.Severity), target, metrics,
		alert.BroadcastRequired, alert.BroadcastDone, alert.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to archive alert: %w", err)
	}
	return nil
}

// MarkAlertAcknowledged mirrors the broadcast acknowledgment. Unknown IDs
// are ignored: the alert may predate the archive.
func (a *Archiver) MarkAlertAcknowledged(ctx context.Context, id string, at time.Time) error {
	_, err := a.pool.Exec(ctx, `
		UPDATE archived_alerts
		SET broadcast_done = true, acked_at = $2
		WHERE id = $1 AND NOT broadcast_done`,
		id, at,
	)
	if err != nil {
		return fmt.Errorf("failed to mark archived alert acknowledged: %w", err)
	}
	return nil
}

// ArchiveSignal copies one reward signal out.
func (a *Archiver) ArchiveSignal(ctx context.Context, sig domain.RewardSignal) error {
	var processedAt *time.Time
	if !sig.ProcessedAt.IsZero() {
		processedAt = &sig.ProcessedAt
	}

	_, err := a.pool.Exec(ctx, `
		INSERT INTO archived_signals (
			id, submitter_id, target, tier, amount, reason,
			processed, processed_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING`,
		sig.ID, sig.SubmitterID, sig.Target.String(), string(sig.Tier), sig.Amount,
		sig.Reason, sig.Processed, processedAt, sig.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to archive signal: %w", err)
	}
	return nil
}

// MarkSignalProcessed mirrors the processed transition. Unknown IDs are
// ignored: the signal may predate the archive.
func (a *Archiver) MarkSignalProcessed(ctx context.Context, id string, at time.Time) error {
	_, err := a.pool.Exec(ctx, `
		UPDATE archived_signals
		SET processed = true, processed_at = $2
		WHERE id = $1 AND NOT processed`,
		id, at,
	)
	if err != nil {
		return fmt.Errorf("failed to mark archived signal processed: %w", err)
	}
	return nil
}
