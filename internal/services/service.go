/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
    "context"
    "fmt"
    "time"

    "github.com/rodri-oliveira/pmo-backend/internal/adapters/jira"
    "github.com/rodri-oliveira/pmo-backend/internal/config"
    "github.com/rodri-oliveira/pmo-backend/internal/domain"
    "github.com/rodri-oliveira/pmo-backend/internal/repo"
    "github.com/rs/zerolog"
)

type JiraClient interface {
    Search(ctx context.Context, jql string, startAt, max int, fields []string) (jira.SearchPage, error)
    SearchAll(ctx context.Context, jql string, fields []string, limit int) ([]jira.Issue, error)
    Worklogs(ctx context.Context, key string) ([]jira.Worklog, error)
    Issue(ctx context.Context, key string) (jira.Issue, error)
}

type Store interface {
    SectionByPrefix(ctx context.Context, prefix string) (*domain.Section, error)
    ListSections(ctx context.Context) ([]domain.Section, error)
    ProjectByUpstreamKey(ctx context.Context, key string) (*domain.Project, error)
    CreateProject(ctx context.Context, p domain.Project) (int64, error)
    ResourceByUpstreamID(ctx context.Context, upstreamID string) (*domain.Resource, error)
    ResourceByEmail(ctx context.Context, email string) (*domain.Resource, error)
    UpsertBooking(ctx context.Context, b domain.Booking) (int64, error)
    UpdateBookingManual(ctx context.Context, id int64, hours float64) error
    DeleteBookingManual(ctx context.Context, id int64) error

    StartSyncRun(ctx context.Context, actor string) (int64, error)
    FinishSyncRun(ctx context.Context, id int64, status string, processed, projectsNew, errCount int, message string) error
    GetLastRun(ctx context.Context) (*repo.LastRun, error)

    ReplaceSnapshot(ctx context.Context, section, category string, rows []domain.SnapshotRow) error
    SnapshotAge(ctx context.Context, section string) (time.Duration, int, error)
    PruneSnapshots(ctx context.Context, olderThan time.Duration) (int64, error)

    AllocationExists(ctx context.Context, id int64) (bool, error)
    UpsertPlannedHours(ctx context.Context, entries []domain.PlannedHoursEntry) error
}

type Service struct {
    cfg   config.Config
    log   zerolog.Logger
    store Store
    jira  JiraClient
}

func New(cfg config.Config, log zerolog.Logger, store Store, jc JiraClient) *Service {
    return &Service{cfg: cfg, log: log, store: store, jira: jc}
}

func (s *Service) LastRun(ctx context.Context) (*repo.LastRun, error) { return s.store.GetLastRun(ctx) }

// UpdateManualBooking edits a manually entered booking. Pipeline-sourced
// rows are refused at the storage layer; only re-sync may touch them.
func (s *Service) UpdateManualBooking(ctx context.Context, id int64, hours float64) error {
    if hours <= 0 || hours > 24 {
        return fmt.Errorf("hours %.2f outside (0, 24]", hours)
    }
    return s.store.UpdateBookingManual(ctx, id, hours)
}

func (s *Service) DeleteManualBooking(ctx context.Context, id int64) error {
    return s.store.DeleteBookingManual(ctx, id)
}
