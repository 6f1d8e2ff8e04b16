package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/ignite/send-tracker/internal/domain"
	"github.com/ignite/send-tracker/internal/service/tracking"
)

// TrackingRepo implements tracking.Repository against PostgreSQL.
//
// Per-address counters live in tracking_sends keyed by
// (business_id, email); the business-level totals live in
// tracking_records. Both are updated by in-database increments inside one
// transaction, so concurrent RecordBatch calls for the same business never
// lose counts. Campaign history is a plain append-only table.
type TrackingRepo struct {
	db           *sql.DB
	queryTimeout time.Duration
}

const defaultQueryTimeout = 5 * time.Second

// NewTrackingRepo creates a Postgres-backed tracking repository. Every
// call runs under queryTimeout so a hung connection fails the request
// instead of wedging it; zero gets the 5s default.
func NewTrackingRepo(db *sql.DB, queryTimeout time.Duration) *TrackingRepo {
	if queryTimeout <= 0 {
		queryTimeout = defaultQueryTimeout
	}
	return &TrackingRepo{db: db, queryTimeout: queryTimeout}
}

func (r *TrackingRepo) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.queryTimeout)
}

func (r *TrackingRepo) ExistingKeys(ctx context.Context, businessID string, keys []string) (map[string]bool, error) {
	if len(keys) == 0 {
		return map[string]bool{}, nil
	}
	ctx, cancel := r.bound(ctx)
	defer cancel()
	rows, err := r.db.QueryContext(ctx,
		`SELECT email FROM tracking_sends WHERE business_id = $1 AND email = ANY($2)`,
		businessID, pq.Array(keys),
	)
	if err != nil {
		return nil, fmt.Errorf("existing keys: %w", err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("scan existing key: %w", err)
		}
		out[email] = true
	}
	return out, rows.Err()
}

func (r *TrackingRepo) GetEntry(ctx context.Context, businessID, key string) (*domain.EmailEntry, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	var e domain.EmailEntry
	err := r.db.QueryRowContext(ctx, `
		SELECT email, first_sent, last_sent, last_status, send_count
		FROM tracking_sends
		WHERE business_id = $1 AND email = $2
	`, businessID, key).Scan(&e.Email, &e.FirstSent, &e.LastSent, &e.LastStatus, &e.SendCount)
	if err == sql.ErrNoRows {
		return nil, tracking.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return &e, nil
}

func (r *TrackingRepo) RecordBatch(ctx context.Context, businessID string, recipients []domain.Recipient, now time.Time) error {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin record batch: %w", err)
	}
	defer tx.Rollback()

	for _, rec := range recipients {
		// first_sent is set on insert only; send_count increments
		// in-database so racing batches cannot clobber each other.
		_, err := tx.ExecContext(ctx, `
			INSERT INTO tracking_sends (business_id, email, first_sent, last_sent, last_status, send_count)
			VALUES ($1, $2, $3, $3, $4, 1)
			ON CONFLICT (business_id, email) DO UPDATE
			SET last_sent = $3, last_status = $4, send_count = tracking_sends.send_count + 1
		`, businessID, rec.Email, now, rec.Status)
		if err != nil {
			return fmt.Errorf("upsert send entry: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tracking_records (business_id, total_sends, last_updated)
		VALUES ($1, $2, $3)
		ON CONFLICT (business_id) DO UPDATE
		SET total_sends = tracking_records.total_sends + $2, last_updated = $3
	`, businessID, len(recipients), now)
	if err != nil {
		return fmt.Errorf("update record totals: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit record batch: %w", err)
	}
	return nil
}

func (r *TrackingRepo) AppendCampaign(ctx context.Context, c *domain.Campaign) error {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	recipients, err := json.Marshal(c.Recipients)
	if err != nil {
		return fmt.Errorf("marshal recipients: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO tracking_campaigns (id, business_id, campaign_id, subject, sent_at, recipients, total, sent, failed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, c.ID, c.BusinessID, c.CampaignID, c.Subject, c.SentAt, recipients,
		c.Stats.Total, c.Stats.Sent, c.Stats.Failed)
	if err != nil {
		return fmt.Errorf("append campaign: %w", err)
	}
	return nil
}

func (r *TrackingRepo) History(ctx context.Context, businessID string, limit, skip int) ([]domain.Campaign, int, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tracking_campaigns WHERE business_id = $1`,
		businessID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count campaigns: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, business_id, campaign_id, subject, sent_at, recipients, total, sent, failed
		FROM tracking_campaigns
		WHERE business_id = $1
		ORDER BY sent_at DESC
		LIMIT $2 OFFSET $3
	`, businessID, limit, skip)
	if err != nil {
		return nil, 0, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		var c domain.Campaign
		var recipients []byte
		if err := rows.Scan(&c.ID, &c.BusinessID, &c.CampaignID, &c.Subject, &c.SentAt,
			&recipients, &c.Stats.Total, &c.Stats.Sent, &c.Stats.Failed); err != nil {
			return nil, 0, fmt.Errorf("scan campaign: %w", err)
		}
		if err := json.Unmarshal(recipients, &c.Recipients); err != nil {
			return nil, 0, fmt.Errorf("unmarshal recipients: %w", err)
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func (r *TrackingRepo) Totals(ctx context.Context, businessID string) (tracking.Totals, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	var t tracking.Totals
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tracking_sends WHERE business_id = $1`,
		businessID,
	).Scan(&t.UniqueEmails); err != nil {
		return t, fmt.Errorf("count unique emails: %w", err)
	}

	var lastUpdated time.Time
	err := r.db.QueryRowContext(ctx,
		`SELECT total_sends, last_updated FROM tracking_records WHERE business_id = $1`,
		businessID,
	).Scan(&t.TotalSends, &lastUpdated)
	if err == sql.ErrNoRows {
		return t, nil
	}
	if err != nil {
		return t, fmt.Errorf("record totals: %w", err)
	}
	t.LastUpdated = &lastUpdated
	return t, nil
}

func (r *TrackingRepo) Reset(ctx context.Context, businessID string) error {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reset: %w", err)
	}
	defer tx.Rollback()

	// Campaign history is intentionally left in place.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM tracking_sends WHERE business_id = $1`, businessID); err != nil {
		return fmt.Errorf("delete send entries: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM tracking_records WHERE business_id = $1`, businessID); err != nil {
		return fmt.Errorf("delete tracking record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reset: %w", err)
	}
	return nil
}
