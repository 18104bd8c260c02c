/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package http

import (
    "github.com/gin-gonic/gin"
    "github.com/rodri-oliveira/pmo-backend/internal/config"
    "github.com/rs/zerolog"
)

func NewRouter(cfg config.Config, log zerolog.Logger, svc any) *gin.Engine {
    if cfg.AppEnv != "dev" { gin.SetMode(gin.ReleaseMode) }
    r := gin.New()
    r.Use(gin.Recovery())
    r.Use(func(c *gin.Context){
        c.Next()
        log.Info().Str("m", c.Request.Method).Str("p", c.FullPath()).Int("s", c.Writer.Status()).Msg("http")
    })

    h := NewHandlers(cfg, log, svc)

    r.GET("/healthz", h.Healthz)
    r.POST("/admin/sync", h.SyncNow)
    r.GET("/admin/sync/last", h.LastRun)
    r.POST("/admin/snapshots", h.SnapshotsNow)
    r.GET("/admin/snapshots/status", h.SnapshotStatus)
    r.POST("/admin/planned-hours", h.ApplyPlan)
    r.PUT("/bookings/:id", h.UpdateBooking)
    r.DELETE("/bookings/:id", h.DeleteBooking)

    return r
}
