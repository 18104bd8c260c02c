package jobs

import (
    "context"
    "time"

    "github.com/robfig/cron/v3"
    "github.com/rodri-oliveira/pmo-backend/internal/config"
    "github.com/rodri-oliveira/pmo-backend/internal/repo"
    "github.com/rodri-oliveira/pmo-backend/internal/services"
    "github.com/rs/zerolog"
)

type service interface {
    RunSync(ctx context.Context, opts services.SyncOptions) (*services.SyncOutcome, error)
    RunSnapshots(ctx context.Context, opts services.SnapshotOptions) (*services.SnapshotOutcome, error)
}

const (
    syncLockKey     int64 = 424310
    snapshotLockKey int64 = 424311
)

type Cron struct {
    cfg  config.Config
    log  zerolog.Logger
    svc  service
    repo *repo.Repository
    c    *cron.Cron
}

func NewCron(cfg config.Config, log zerolog.Logger, svc service, r *repo.Repository) *Cron {
    loc, _ := time.LoadLocation(cfg.TZ)
    c := cron.New(cron.WithLocation(loc), cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow)))
    cr := &Cron{cfg: cfg, log: log, svc: svc, repo: r, c: c}
    _, _ = c.AddFunc(cfg.SyncCron, cr.sync)
    _, _ = c.AddFunc(cfg.SnapshotCron, cr.snapshots)
    return cr
}

func (cr *Cron) Start() { cr.c.Start() }
func (cr *Cron) Stop()  { cr.c.Stop() }

func (cr *Cron) sync() {
    ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute); defer cancel()
    ok, err := cr.repo.TryAdvisoryLock(ctx, syncLockKey)
    if err != nil { cr.log.Error().Err(err).Msg("cron: sync lock error"); return }
    if !ok { cr.log.Info().Msg("cron: sync already running elsewhere"); return }
    defer func(){ _ = cr.repo.AdvisoryUnlock(context.Background(), syncLockKey) }()
    end := time.Now().UTC()
    opts := services.SyncOptions{Start: end.AddDate(0, 0, -cr.cfg.SyncDays), End: end, Actor: "cron"}
    cr.log.Info().Msg("cron: worklog sync")
    if _, err := cr.svc.RunSync(ctx, opts); err != nil { cr.log.Error().Err(err).Msg("cron: sync failed") }
}

func (cr *Cron) snapshots() {
    ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute); defer cancel()
    ok, err := cr.repo.TryAdvisoryLock(ctx, snapshotLockKey)
    if err != nil { cr.log.Error().Err(err).Msg("cron: snapshot lock error"); return }
    if !ok { cr.log.Info().Msg("cron: snapshots already running elsewhere"); return }
    defer func(){ _ = cr.repo.AdvisoryUnlock(context.Background(), snapshotLockKey) }()
    cr.log.Info().Msg("cron: dashboard snapshots")
    out, err := cr.svc.RunSnapshots(ctx, services.SnapshotOptions{})
    if err != nil { cr.log.Error().Err(err).Msg("cron: snapshots failed"); return }
    if out.Status != "completed" { cr.log.Warn().Str("status", out.Status).Msg("cron: snapshots finished with failures") }
}
