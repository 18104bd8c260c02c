package repo

import (
    "context"
    "time"

    "github.com/jackc/pgx/v5"
    "github.com/rodri-oliveira/pmo-backend/internal/domain"
)

// ReplaceSnapshot swaps all rows for one (section, category) in a single
// transaction. Sections never share rows, so concurrent replaces for
// different sections cannot interfere.
func (r *Repository) ReplaceSnapshot(ctx context.Context, section, category string, rows []domain.SnapshotRow) error {
    tx, err := r.db.Pool.Begin(ctx)
    if err != nil { return err }
    defer tx.Rollback(ctx)
    if _, err := tx.Exec(ctx, `DELETE FROM dashboard_snapshots WHERE section=$1 AND category=$2`, section, category); err != nil {
        return err
    }
    if len(rows) > 0 {
        batch := &pgx.Batch{}
        const q = `INSERT INTO dashboard_snapshots(section, category, status, count, percent, taken_at, filter_raw)
            VALUES($1,$2,$3,$4,$5,$6,$7)`
        for _, s := range rows {
            batch.Queue(q, s.Section, s.Category, s.Status, s.Count, s.Percent, s.TakenAt, s.FilterRaw)
        }
        br := tx.SendBatch(ctx, batch)
        for range rows {
            if _, err := br.Exec(); err != nil { br.Close(); return err }
        }
        if err := br.Close(); err != nil { return err }
    }
    return tx.Commit(ctx)
}

func (r *Repository) SnapshotAge(ctx context.Context, section string) (time.Duration, int, error) {
    const q = `SELECT coalesce(max(taken_at), 'epoch'::timestamptz), count(*)
        FROM dashboard_snapshots WHERE section=$1`
    var latest time.Time
    var n int
    if err := r.db.Pool.QueryRow(ctx, q, section).Scan(&latest, &n); err != nil { return 0, 0, err }
    if n == 0 { return 0, 0, nil }
    return time.Since(latest), n, nil
}

func (r *Repository) PruneSnapshots(ctx context.Context, olderThan time.Duration) (int64, error) {
    tag, err := r.db.Pool.Exec(ctx, `DELETE FROM dashboard_snapshots WHERE taken_at < now() - make_interval(secs => $1)`,
        olderThan.Seconds())
    if err != nil { return 0, err }
    return tag.RowsAffected(), nil
}

func (r *Repository) ListSnapshot(ctx context.Context, section, category string) ([]domain.SnapshotRow, error) {
    const q = `SELECT id, section, category, status, count, percent, taken_at, coalesce(filter_raw,'')
        FROM dashboard_snapshots WHERE section=$1 AND category=$2 ORDER BY status`
    rows, err := r.db.Pool.Query(ctx, q, section, category)
    if err != nil { return nil, err }
    defer rows.Close()
    var out []domain.SnapshotRow
    for rows.Next() {
        var s domain.SnapshotRow
        if err := rows.Scan(&s.ID, &s.Section, &s.Category, &s.Status, &s.Count, &s.Percent, &s.TakenAt, &s.FilterRaw); err != nil {
            return nil, err
        }
        out = append(out, s)
    }
    return out, rows.Err()
}
