package repo

import (
    "context"
    "errors"

    "github.com/jackc/pgx/v5"
    "github.com/rodri-oliveira/pmo-backend/internal/domain"
)

var ErrNotFound = errors.New("repo: not found")

func (r *Repository) SectionByPrefix(ctx context.Context, prefix string) (*domain.Section, error) {
    const q = `SELECT id, name, prefix, active FROM sections WHERE prefix=$1 AND active`
    s := &domain.Section{}
    err := r.db.Pool.QueryRow(ctx, q, prefix).Scan(&s.ID, &s.Name, &s.Prefix, &s.Active)
    if errors.Is(err, pgx.ErrNoRows) { return nil, ErrNotFound }
    if err != nil { return nil, err }
    return s, nil
}

func (r *Repository) ListSections(ctx context.Context) ([]domain.Section, error) {
    const q = `SELECT id, name, prefix, active FROM sections WHERE active ORDER BY name`
    rows, err := r.db.Pool.Query(ctx, q)
    if err != nil { return nil, err }
    defer rows.Close()
    var out []domain.Section
    for rows.Next() {
        var s domain.Section
        if err := rows.Scan(&s.ID, &s.Name, &s.Prefix, &s.Active); err != nil { return nil, err }
        out = append(out, s)
    }
    return out, rows.Err()
}

func (r *Repository) ProjectByUpstreamKey(ctx context.Context, key string) (*domain.Project, error) {
    const q = `SELECT id, name, upstream_key, section_id, status, active
        FROM projects WHERE upstream_key=$1`
    p := &domain.Project{}
    err := r.db.Pool.QueryRow(ctx, q, key).Scan(&p.ID, &p.Name, &p.UpstreamKey, &p.SectionID, &p.Status, &p.Active)
    if errors.Is(err, pgx.ErrNoRows) { return nil, ErrNotFound }
    if err != nil { return nil, err }
    return p, nil
}

func (r *Repository) CreateProject(ctx context.Context, p domain.Project) (int64, error) {
    const q = `INSERT INTO projects(name, upstream_key, section_id, status, active)
        VALUES($1,$2,$3,$4,$5) RETURNING id`
    var id int64
    err := r.db.Pool.QueryRow(ctx, q, p.Name, p.UpstreamKey, p.SectionID, p.Status, p.Active).Scan(&id)
    if err != nil { return 0, err }
    return id, nil
}

func (r *Repository) ResourceByUpstreamID(ctx context.Context, upstreamID string) (*domain.Resource, error) {
    const q = `SELECT id, name, email, upstream_id, active
        FROM resources WHERE upstream_id=$1 AND active`
    res := &domain.Resource{}
    err := r.db.Pool.QueryRow(ctx, q, upstreamID).Scan(&res.ID, &res.Name, &res.Email, &res.UpstreamID, &res.Active)
    if errors.Is(err, pgx.ErrNoRows) { return nil, ErrNotFound }
    if err != nil { return nil, err }
    return res, nil
}

func (r *Repository) ResourceByEmail(ctx context.Context, email string) (*domain.Resource, error) {
    const q = `SELECT id, name, email, upstream_id, active
        FROM resources WHERE lower(email)=lower($1) AND active`
    res := &domain.Resource{}
    err := r.db.Pool.QueryRow(ctx, q, email).Scan(&res.ID, &res.Name, &res.Email, &res.UpstreamID, &res.Active)
    if errors.Is(err, pgx.ErrNoRows) { return nil, ErrNotFound }
    if err != nil { return nil, err }
    return res, nil
}
