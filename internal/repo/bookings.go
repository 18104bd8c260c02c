package repo

import (
    "context"
    "errors"
    "fmt"

    "github.com/jackc/pgx/v5"
    "github.com/rodri-oliveira/pmo-backend/internal/domain"
)

// ErrPipelineOwned guards pipeline-sourced bookings against manual edit paths.
var ErrPipelineOwned = errors.New("repo: booking is pipeline-sourced and cannot be edited manually")

func (r *Repository) BookingByWorklogID(ctx context.Context, worklogID string) (*domain.Booking, error) {
    const q = `SELECT id, worklog_id, resource_id, project_id, issue_key,
        coalesce(parent_issue_key,''), issue_type, parent_project_id,
        hours, work_date, source, synced_at
        FROM bookings WHERE worklog_id=$1`
    b := &domain.Booking{}
    err := r.db.Pool.QueryRow(ctx, q, worklogID).Scan(&b.ID, &b.WorklogID, &b.ResourceID, &b.ProjectID,
        &b.IssueKey, &b.ParentIssueKey, &b.IssueType, &b.ParentProjectID,
        &b.Hours, &b.WorkDate, &b.Source, &b.SyncedAt)
    if errors.Is(err, pgx.ErrNoRows) { return nil, ErrNotFound }
    if err != nil { return nil, err }
    return b, nil
}

// UpsertBooking applies one booking keyed on the upstream worklog id.
// Insert on first sight, update hours/date/sync timestamp on re-sync.
func (r *Repository) UpsertBooking(ctx context.Context, b domain.Booking) (int64, error) {
    const q = `
        INSERT INTO bookings(worklog_id, resource_id, project_id, issue_key,
            parent_issue_key, issue_type, parent_project_id, hours, work_date, source, synced_at)
        VALUES($1,$2,$3,$4,nullif($5,''),$6,$7,$8,$9,$10,now())
        ON CONFLICT(worklog_id) DO UPDATE SET
            resource_id=EXCLUDED.resource_id,
            project_id=EXCLUDED.project_id,
            parent_issue_key=EXCLUDED.parent_issue_key,
            parent_project_id=EXCLUDED.parent_project_id,
            hours=EXCLUDED.hours,
            work_date=EXCLUDED.work_date,
            synced_at=now()
        RETURNING id`
    var id int64
    err := r.db.Pool.QueryRow(ctx, q, b.WorklogID, b.ResourceID, b.ProjectID, b.IssueKey,
        b.ParentIssueKey, b.IssueType, b.ParentProjectID, b.Hours, b.WorkDate, b.Source).Scan(&id)
    if err != nil { return 0, err }
    return id, nil
}

// UpdateBookingManual is the manual edit path. It refuses to touch
// pipeline-sourced rows; only re-sync may update those.
func (r *Repository) UpdateBookingManual(ctx context.Context, id int64, hours float64) error {
    b, err := r.bookingSource(ctx, id)
    if err != nil { return err }
    if b == domain.SourceJira { return ErrPipelineOwned }
    const q = `UPDATE bookings SET hours=$2, synced_at=now() WHERE id=$1`
    _, err = r.db.Pool.Exec(ctx, q, id, hours)
    return err
}

func (r *Repository) DeleteBookingManual(ctx context.Context, id int64) error {
    b, err := r.bookingSource(ctx, id)
    if err != nil { return err }
    if b == domain.SourceJira { return ErrPipelineOwned }
    _, err = r.db.Pool.Exec(ctx, `DELETE FROM bookings WHERE id=$1`, id)
    return err
}

func (r *Repository) bookingSource(ctx context.Context, id int64) (string, error) {
    var src string
    err := r.db.Pool.QueryRow(ctx, `SELECT source FROM bookings WHERE id=$1`, id).Scan(&src)
    if errors.Is(err, pgx.ErrNoRows) { return "", fmt.Errorf("%w: booking id=%d", ErrNotFound, id) }
    return src, err
}
