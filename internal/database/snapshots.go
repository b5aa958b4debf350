package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/frostdev-ops/adpilot-backend-go/internal/core/campaigns"
	"github.com/jmoiron/sqlx"
)

// DefaultSnapshotRetention is the number of snapshots kept when none is configured
const DefaultSnapshotRetention = 48

type snapshotRow struct {
	ID            int64     `db:"id"`
	TakenAt       time.Time `db:"taken_at"`
	CampaignCount int       `db:"campaign_count"`
}

type snapshotItemRow struct {
	CampaignID string `db:"campaign_id"`
	Payload    string `db:"payload"`
}

// SnapshotInfo describes one stored snapshot
type SnapshotInfo struct {
	ID            int64     `json:"id"`
	TakenAt       time.Time `json:"taken_at"`
	CampaignCount int       `json:"campaign_count"`
}

// SnapshotRepository implements campaigns.SnapshotStore on SQLite
type SnapshotRepository struct {
	db        *sqlx.DB
	retention int
}

var _ campaigns.SnapshotStore = (*SnapshotRepository)(nil)

// NewSnapshotRepository creates a repository keeping at most retention snapshots
func NewSnapshotRepository(db *sqlx.DB, retention int) *SnapshotRepository {
	if retention <= 0 {
		retention = DefaultSnapshotRetention
	}
	return &SnapshotRepository{db: db, retention: retention}
}

// SaveSnapshot stores the campaign list and prunes snapshots beyond the retention
func (r *SnapshotRepository) SaveSnapshot(ctx context.Context, list []campaigns.Campaign, takenAt time.Time) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin snapshot transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	result, err := tx.ExecContext(ctx,
		`INSERT INTO campaign_snapshots (taken_at, campaign_count) VALUES (?, ?)`,
		takenAt.UTC(), len(list))
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	snapshotID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get snapshot ID: %w", err)
	}

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO campaign_snapshot_items (snapshot_id, campaign_id, name, status, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(snapshot_id, campaign_id) DO UPDATE SET payload = excluded.payload
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare snapshot insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range list {
		payload, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("failed to encode campaign %s: %w", c.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, snapshotID, c.ID, c.Name, string(c.Status), string(payload)); err != nil {
			return fmt.Errorf("failed to insert campaign %s: %w", c.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM campaign_snapshots
		WHERE id NOT IN (SELECT id FROM campaign_snapshots ORDER BY taken_at DESC, id DESC LIMIT ?)
	`, r.retention); err != nil {
		return fmt.Errorf("failed to prune snapshots: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot returns the newest snapshot. An empty store yields a zero time and no error.
func (r *SnapshotRepository) LoadSnapshot(ctx context.Context) ([]campaigns.Campaign, time.Time, error) {
	var header snapshotRow
	err := r.db.GetContext(ctx, &header, `
		SELECT id, taken_at, campaign_count FROM campaign_snapshots
		ORDER BY taken_at DESC, id DESC LIMIT 1
	`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to load snapshot: %w", err)
	}

	list, err := r.loadItems(ctx, header.ID)
	if err != nil {
		return nil, time.Time{}, err
	}
	return list, header.TakenAt, nil
}

func (r *SnapshotRepository) loadItems(ctx context.Context, snapshotID int64) ([]campaigns.Campaign, error) {
	var rows []snapshotItemRow
	if err := r.db.SelectContext(ctx, &rows, `
		SELECT campaign_id, payload FROM campaign_snapshot_items
		WHERE snapshot_id = ? ORDER BY campaign_id
	`, snapshotID); err != nil {
		return nil, fmt.Errorf("failed to load snapshot campaigns: %w", err)
	}

	list := make([]campaigns.Campaign, 0, len(rows))
	for _, row := range rows {
		var c campaigns.Campaign
		if err := json.Unmarshal([]byte(row.Payload), &c); err != nil {
			return nil, fmt.Errorf("failed to decode campaign %s: %w", row.CampaignID, err)
		}
		list = append(list, c)
	}
	return list, nil
}

// ListSnapshots returns stored snapshot headers, newest first
func (r *SnapshotRepository) ListSnapshots(ctx context.Context) ([]SnapshotInfo, error) {
	var rows []snapshotRow
	if err := r.db.SelectContext(ctx, &rows, `
		SELECT id, taken_at, campaign_count FROM campaign_snapshots
		ORDER BY taken_at DESC, id DESC
	`); err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	infos := make([]SnapshotInfo, 0, len(rows))
	for _, row := range rows {
		infos = append(infos, SnapshotInfo(row))
	}
	return infos, nil
}

// Ping checks the connection for the health endpoint
func (r *SnapshotRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
