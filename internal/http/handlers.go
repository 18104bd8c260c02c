/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package http

import (
    "context"
    "errors"
    "net/http"
    "strconv"
    "time"

    "github.com/gin-gonic/gin"
    "github.com/rodri-oliveira/pmo-backend/internal/config"
    "github.com/rodri-oliveira/pmo-backend/internal/domain"
    "github.com/rodri-oliveira/pmo-backend/internal/repo"
    "github.com/rodri-oliveira/pmo-backend/internal/services"
    "github.com/rs/zerolog"
)

type service interface {
    RunSync(ctx context.Context, opts services.SyncOptions) (*services.SyncOutcome, error)
    RunSnapshots(ctx context.Context, opts services.SnapshotOptions) (*services.SnapshotOutcome, error)
    Freshness(ctx context.Context) ([]services.SectionFreshness, error)
    ApplyPlan(ctx context.Context, entries []domain.PlannedHoursEntry) error
    LastRun(ctx context.Context) (*repo.LastRun, error)
    UpdateManualBooking(ctx context.Context, id int64, hours float64) error
    DeleteManualBooking(ctx context.Context, id int64) error
}

type Handlers struct {
    cfg config.Config
    log zerolog.Logger
    svc service
}

func NewHandlers(cfg config.Config, log zerolog.Logger, svc any) *Handlers {
    return &Handlers{cfg: cfg, log: log, svc: svc.(service)}
}

func (h *Handlers) Healthz(c *gin.Context) {
    c.JSON(http.StatusOK, gin.H{"ok": true})
}

type syncRequest struct {
    Start    string   `json:"start"`
    End      string   `json:"end"`
    Sections []string `json:"sections"`
}

func (h *Handlers) SyncNow(c *gin.Context) {
    var req syncRequest
    _ = c.ShouldBindJSON(&req)
    end := time.Now().UTC()
    start := end.AddDate(0, 0, -h.cfg.SyncDays)
    if req.Start != "" {
        t, err := time.Parse("2006-01-02", req.Start)
        if err != nil { c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start date"}); return }
        start = t
    }
    if req.End != "" {
        t, err := time.Parse("2006-01-02", req.End)
        if err != nil { c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end date"}); return }
        end = t
    }
    if end.Before(start) { c.JSON(http.StatusBadRequest, gin.H{"error": "end before start"}); return }
    opts := services.SyncOptions{Start: start, End: end, Sections: req.Sections, Actor: "api"}
    // Run in background detached from the HTTP request to avoid context cancellation
    go func(){ _, _ = h.svc.RunSync(context.Background(), opts) }()
    c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}

func (h *Handlers) LastRun(c *gin.Context) {
    lr, err := h.svc.LastRun(c.Request.Context())
    if err != nil {
        c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
        return
    }
    c.JSON(http.StatusOK, lr)
}

type snapshotRequest struct {
    Sections   []string `json:"sections"`
    Categories []string `json:"categories"`
    Force      bool     `json:"force"`
    Wait       bool     `json:"wait"`
}

func (h *Handlers) SnapshotsNow(c *gin.Context) {
    var req snapshotRequest
    _ = c.ShouldBindJSON(&req)
    opts := services.SnapshotOptions{Sections: req.Sections, Categories: req.Categories, Force: req.Force}
    if req.Wait {
        out, err := h.svc.RunSnapshots(c.Request.Context(), opts)
        if err != nil {
            c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
            return
        }
        c.JSON(http.StatusOK, out)
        return
    }
    go func(){ _, _ = h.svc.RunSnapshots(context.Background(), opts) }()
    c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}

func (h *Handlers) SnapshotStatus(c *gin.Context) {
    fr, err := h.svc.Freshness(c.Request.Context())
    if err != nil {
        c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
        return
    }
    c.JSON(http.StatusOK, gin.H{"sections": fr})
}

func (h *Handlers) UpdateBooking(c *gin.Context) {
    id, err := strconv.ParseInt(c.Param("id"), 10, 64)
    if err != nil { c.JSON(http.StatusBadRequest, gin.H{"error": "invalid booking id"}); return }
    var req struct {
        Hours float64 `json:"hours"`
    }
    if err := c.ShouldBindJSON(&req); err != nil {
        c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
        return
    }
    if err := h.svc.UpdateManualBooking(c.Request.Context(), id, req.Hours); err != nil {
        c.JSON(bookingErrStatus(err), gin.H{"error": err.Error()})
        return
    }
    c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handlers) DeleteBooking(c *gin.Context) {
    id, err := strconv.ParseInt(c.Param("id"), 10, 64)
    if err != nil { c.JSON(http.StatusBadRequest, gin.H{"error": "invalid booking id"}); return }
    if err := h.svc.DeleteManualBooking(c.Request.Context(), id); err != nil {
        c.JSON(bookingErrStatus(err), gin.H{"error": err.Error()})
        return
    }
    c.JSON(http.StatusOK, gin.H{"ok": true})
}

func bookingErrStatus(err error) int {
    switch {
    case errors.Is(err, repo.ErrPipelineOwned):
        return http.StatusConflict
    case errors.Is(err, repo.ErrNotFound):
        return http.StatusNotFound
    default:
        return http.StatusBadRequest
    }
}

type plannedHoursRequest struct {
    Entries []struct {
        AllocationID int64   `json:"allocation_id"`
        Year         int     `json:"year"`
        Month        int     `json:"month"`
        Hours        float64 `json:"hours"`
    } `json:"entries"`
}

func (h *Handlers) ApplyPlan(c *gin.Context) {
    var req plannedHoursRequest
    if err := c.ShouldBindJSON(&req); err != nil {
        c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
        return
    }
    entries := make([]domain.PlannedHoursEntry, 0, len(req.Entries))
    for _, e := range req.Entries {
        entries = append(entries, domain.PlannedHoursEntry{
            AllocationID: e.AllocationID, Year: e.Year, Month: e.Month, Hours: e.Hours,
        })
    }
    if err := h.svc.ApplyPlan(c.Request.Context(), entries); err != nil {
        c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
        return
    }
    c.JSON(http.StatusOK, gin.H{"applied": len(entries)})
}
