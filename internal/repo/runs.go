package repo

import (
    "context"
    "errors"
    "time"

    "github.com/jackc/pgx/v5"
)

func (r *Repository) StartSyncRun(ctx context.Context, actor string) (int64, error) {
    const q = `INSERT INTO sync_runs(started_at, status, actor) VALUES(now(), 'running', $1) RETURNING id`
    var id int64
    if err := r.db.Pool.QueryRow(ctx, q, actor).Scan(&id); err != nil { return 0, err }
    return id, nil
}

func (r *Repository) FinishSyncRun(ctx context.Context, id int64, status string, processed, projectsNew, errCount int, message string) error {
    const q = `UPDATE sync_runs SET finished_at=now(), status=$2, processed=$3,
        projects_new=$4, errors=$5, message=$6 WHERE id=$1`
    _, err := r.db.Pool.Exec(ctx, q, id, status, processed, projectsNew, errCount, message)
    return err
}

type LastRun struct {
    ID          int64      `json:"id"`
    StartedAt   time.Time  `json:"started_at"`
    FinishedAt  *time.Time `json:"finished_at"`
    Status      string     `json:"status"`
    Processed   int        `json:"processed"`
    ProjectsNew int        `json:"projects_new"`
    Errors      int        `json:"errors"`
    Message     string     `json:"message"`
    Actor       string     `json:"actor"`
}

func (r *Repository) GetLastRun(ctx context.Context) (*LastRun, error) {
    const q = `SELECT id, started_at, finished_at, status,
        coalesce(processed,0), coalesce(projects_new,0), coalesce(errors,0),
        coalesce(message,''), coalesce(actor,'')
        FROM sync_runs ORDER BY id DESC LIMIT 1`
    row := r.db.Pool.QueryRow(ctx, q)
    lr := &LastRun{}
    err := row.Scan(&lr.ID, &lr.StartedAt, &lr.FinishedAt, &lr.Status,
        &lr.Processed, &lr.ProjectsNew, &lr.Errors, &lr.Message, &lr.Actor)
    if errors.Is(err, pgx.ErrNoRows) { return nil, ErrNotFound }
    if err != nil { return nil, err }
    return lr, nil
}
