package repo

import (
    "context"

    "github.com/jackc/pgx/v5"
    "github.com/rodri-oliveira/pmo-backend/internal/domain"
)

func (r *Repository) AllocationExists(ctx context.Context, id int64) (bool, error) {
    var ok bool
    err := r.db.Pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM allocations WHERE id=$1)`, id).Scan(&ok)
    return ok, err
}

// UpsertPlannedHours applies a validated batch on (allocation_id, year, month).
func (r *Repository) UpsertPlannedHours(ctx context.Context, entries []domain.PlannedHoursEntry) error {
    if len(entries) == 0 { return nil }
    batch := &pgx.Batch{}
    const q = `INSERT INTO planned_hours(allocation_id, year, month, hours)
        VALUES($1,$2,$3,$4)
        ON CONFLICT (allocation_id, year, month) DO UPDATE SET hours=EXCLUDED.hours`
    for _, e := range entries {
        batch.Queue(q, e.AllocationID, e.Year, e.Month, e.Hours)
    }
    br := r.db.Pool.SendBatch(ctx, batch)
    defer br.Close()
    for range entries { if _, err := br.Exec(); err != nil { return err } }
    return nil
}
