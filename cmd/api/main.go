/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package main

import (
    "context"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/rodri-oliveira/pmo-backend/internal/adapters/jira"
    "github.com/rodri-oliveira/pmo-backend/internal/config"
    httpx "github.com/rodri-oliveira/pmo-backend/internal/http"
    "github.com/rodri-oliveira/pmo-backend/internal/jobs"
    "github.com/rodri-oliveira/pmo-backend/internal/logger"
    "github.com/rodri-oliveira/pmo-backend/internal/repo"
    "github.com/rodri-oliveira/pmo-backend/internal/services"
)

func main() {
    cfg := config.Load()
    log := logger.New(cfg)
    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()

    db := repo.MustOpen(ctx, cfg, log)
    defer db.Close()

    jc := jira.NewClient(cfg, log)
    repository := repo.NewRepository(db, log)
    svc := services.New(cfg, log, repository, jc)

    router := httpx.NewRouter(cfg, log, svc)

    cron := jobs.NewCron(cfg, log, svc, repository)
    cron.Start()
    defer cron.Stop()

    errCh := make(chan error, 1)
    go func() { errCh <- router.Run(cfg.HTTPAddr) }()

    sigCh := make(chan os.Signal, 1)
    signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

    select {
    case <-sigCh:
        log.Info().Msg("shutting down...")
    case err := <-errCh:
        if err != nil { log.Error().Err(err).Msg("http server error") }
    }

    time.Sleep(500 * time.Millisecond)
}
