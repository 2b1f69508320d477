package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/gqlcache/internal/gql"
)

// ErrNotFound is returned when a snapshot does not exist.
var ErrNotFound = errors.New("snapshot not found")

// Snapshot describes a stored cache.
type Snapshot struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	Seq       int64     `json:"seq"`
	CreatedAt time.Time `json:"created_at"`
	Entries   int       `json:"entries"`
	Bytes     int64     `json:"bytes"`
}

// WriteSnapshot stores cache under label and returns its metadata.
// Entries are written in one transaction. Rewriting an existing
// (snapshot, fingerprint) pair is a no-op.
func (s *Store) WriteSnapshot(ctx context.Context, label string, cache gql.Cache) (Snapshot, error) {
	snap := Snapshot{
		ID:        s.ids.Generate(),
		Label:     label,
		CreatedAt: s.now().UTC().Truncate(time.Millisecond),
		Entries:   len(cache),
	}

	rows := make([]string, 0, len(cache))
	keys := cache.Keys()
	for _, fp := range keys {
		text, err := marshalResult(cache[fp])
		if err != nil {
			return Snapshot{}, fmt.Errorf("write snapshot: %w", err)
		}
		rows = append(rows, text)
		snap.Bytes += int64(len(text))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Snapshot{}, fmt.Errorf("write snapshot: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	res, err := tx.ExecContext(ctx, `
		INSERT INTO snapshots (id, label, created_at, entry_count, byte_size)
		VALUES (?, ?, ?, ?, ?)
	`, snap.ID, snap.Label, snap.CreatedAt.UnixMilli(), snap.Entries, snap.Bytes)
	if err != nil {
		return Snapshot{}, fmt.Errorf("write snapshot: %w", err)
	}
	if snap.Seq, err = res.LastInsertId(); err != nil {
		return Snapshot{}, fmt.Errorf("write snapshot: seq: %w", err)
	}

	for i, fp := range keys {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO snapshot_entries (snapshot_id, fingerprint, result)
			VALUES (?, ?, ?)
			ON CONFLICT(snapshot_id, fingerprint) DO NOTHING
		`, snap.ID, fp, rows[i])
		if err != nil {
			return Snapshot{}, fmt.Errorf("write snapshot entry %s: %w", fp, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Snapshot{}, fmt.Errorf("write snapshot: commit: %w", err)
	}
	return snap, nil
}

// GetSnapshot returns the metadata of snapshot id.
func (s *Store) GetSnapshot(ctx context.Context, id string) (Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT seq, id, label, created_at, entry_count, byte_size
		FROM snapshots
		WHERE id = ?
	`, id)
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return snap, err
}

// ReadSnapshot returns the cache stored as snapshot id.
func (s *Store) ReadSnapshot(ctx context.Context, id string) (gql.Cache, error) {
	if _, err := s.GetSnapshot(ctx, id); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT fingerprint, result
		FROM snapshot_entries
		WHERE snapshot_id = ?
		ORDER BY fingerprint COLLATE BINARY ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query snapshot entries: %w", err)
	}
	defer rows.Close()

	cache := gql.Cache{}
	for rows.Next() {
		var fp, text string
		if err := rows.Scan(&fp, &text); err != nil {
			return nil, fmt.Errorf("scan snapshot entry: %w", err)
		}
		r, err := unmarshalResult(text)
		if err != nil {
			return nil, fmt.Errorf("snapshot entry %s: %w", fp, err)
		}
		cache[fp] = r
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot entries: %w", err)
	}
	return cache, nil
}

// LatestSnapshot returns the most recently written snapshot for label.
func (s *Store) LatestSnapshot(ctx context.Context, label string) (Snapshot, gql.Cache, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT seq, id, label, created_at, entry_count, byte_size
		FROM snapshots
		WHERE label = ?
		ORDER BY seq DESC
		LIMIT 1
	`, label)
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, nil, fmt.Errorf("%w: label %q", ErrNotFound, label)
	}
	if err != nil {
		return Snapshot{}, nil, err
	}

	cache, err := s.ReadSnapshot(ctx, snap.ID)
	if err != nil {
		return Snapshot{}, nil, err
	}
	return snap, cache, nil
}

// ListSnapshots returns all snapshots in write order.
// Returns an empty slice (not nil) if there are none.
func (s *Store) ListSnapshots(ctx context.Context) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, id, label, created_at, entry_count, byte_size
		FROM snapshots
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	snaps := []Snapshot{}
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return snaps, nil
}

// DeleteSnapshot removes snapshot id and its entries.
func (s *Store) DeleteSnapshot(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scanner) (Snapshot, error) {
	var (
		snap    Snapshot
		created int64
	)
	err := row.Scan(&snap.Seq, &snap.ID, &snap.Label, &created, &snap.Entries, &snap.Bytes)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, err
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("scan snapshot: %w", err)
	}
	snap.CreatedAt = time.UnixMilli(created).UTC()
	return snap, nil
}
