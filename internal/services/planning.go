/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
    "context"
    "fmt"

    "github.com/rodri-oliveira/pmo-backend/internal/domain"
)

// ApplyPlan validates and applies a planned-hours batch. The whole
// batch is validated before any write; conflicts on
// (allocation, year, month) update hours in place.
func (s *Service) ApplyPlan(ctx context.Context, entries []domain.PlannedHoursEntry) error {
    seen := map[[3]int64]struct{}{}
    for i, e := range entries {
        if e.AllocationID <= 0 {
            return fmt.Errorf("entry %d: allocation id is required", i)
        }
        if e.Month < 1 || e.Month > 12 {
            return fmt.Errorf("entry %d: month %d out of range", i, e.Month)
        }
        if e.Year < 2000 || e.Year > 2100 {
            return fmt.Errorf("entry %d: year %d out of range", i, e.Year)
        }
        if e.Hours < 0 {
            return fmt.Errorf("entry %d: negative hours", i)
        }
        k := [3]int64{e.AllocationID, int64(e.Year), int64(e.Month)}
        if _, dup := seen[k]; dup {
            return fmt.Errorf("entry %d: duplicate allocation=%d %d-%02d in batch", i, e.AllocationID, e.Year, e.Month)
        }
        seen[k] = struct{}{}
        ok, err := s.store.AllocationExists(ctx, e.AllocationID)
        if err != nil { return err }
        if !ok {
            return fmt.Errorf("entry %d: allocation %d not found", i, e.AllocationID)
        }
    }
    if err := s.store.UpsertPlannedHours(ctx, entries); err != nil { return err }
    s.log.Info().Int("entries", len(entries)).Msg("planned hours applied")
    return nil
}
