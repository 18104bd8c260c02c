/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
    "context"
    "encoding/json"
    "fmt"
    "sort"
    "sync"
    "time"

    "github.com/rodri-oliveira/pmo-backend/internal/domain"
    "golang.org/x/sync/errgroup"
)

const (
    CategoryDemands      = "demands"
    CategoryImprovements = "improvements"
    CategoryResources    = "resources"
)

const snapshotRetention = 7 * 24 * time.Hour

type SnapshotOptions struct {
    Sections   []string
    Categories []string
    Force      bool
}

type SectionResult struct {
    Section string        `json:"section"`
    Rows    int           `json:"rows"`
    Elapsed time.Duration `json:"elapsed_ms"`
    Skipped bool          `json:"skipped"`
    Err     error         `json:"-"`
}

type SnapshotOutcome struct {
    Status   string          `json:"status"`
    Sections []SectionResult `json:"sections"`
}

// RunSnapshots refreshes the dashboard cache, one pass per section.
// Sections run concurrently up to the configured limit; each section's
// replace touches disjoint rows. A section failure is isolated and
// reported, the others keep going.
func (s *Service) RunSnapshots(ctx context.Context, opts SnapshotOptions) (*SnapshotOutcome, error) {
    sections := opts.Sections
    if len(sections) == 0 {
        secs, err := s.store.ListSections(ctx)
        if err != nil { return nil, fmt.Errorf("list sections: %w", err) }
        for _, sec := range secs { sections = append(sections, sec.Prefix) }
    }
    categories := opts.Categories
    if len(categories) == 0 { categories = s.cfg.SnapshotCategories }

    results := make([]SectionResult, len(sections))
    g, gctx := errgroup.WithContext(ctx)
    limit := s.cfg.SnapshotConcurrency
    if limit <= 0 { limit = 1 }
    g.SetLimit(limit)
    var mu sync.Mutex
    for i, sec := range sections {
        i, sec := i, sec
        g.Go(func() error {
            r := s.snapshotSection(gctx, sec, categories, opts.Force)
            mu.Lock()
            results[i] = r
            mu.Unlock()
            return nil
        })
    }
    _ = g.Wait()

    if n, err := s.store.PruneSnapshots(ctx, snapshotRetention); err != nil {
        s.log.Warn().Err(err).Msg("snapshot prune failed")
    } else if n > 0 {
        s.log.Info().Int64("pruned", n).Msg("old snapshots pruned")
    }

    out := &SnapshotOutcome{Sections: results}
    failed := 0
    for _, r := range results { if r.Err != nil { failed++ } }
    switch {
    case failed == 0:
        out.Status = "completed"
    case failed == len(results):
        out.Status = "failed"
    default:
        out.Status = "partial"
    }
    return out, nil
}

func (s *Service) snapshotSection(ctx context.Context, section string, categories []string, force bool) SectionResult {
    start := time.Now()
    r := SectionResult{Section: section}

    if !force {
        age, n, err := s.store.SnapshotAge(ctx, section)
        if err == nil && n > 0 && age < s.cfg.SnapshotMaxAge {
            r.Skipped = true
            r.Rows = n
            r.Elapsed = time.Since(start)
            s.log.Debug().Str("section", section).Dur("age", age).Msg("snapshot fresh, skipping")
            return r
        }
    }

    for _, cat := range categories {
        rows, err := s.aggregateCategory(ctx, section, cat)
        if err != nil {
            r.Err = fmt.Errorf("section %s category %s: %w", section, cat, err)
            break
        }
        if err := s.store.ReplaceSnapshot(ctx, section, cat, rows); err != nil {
            r.Err = fmt.Errorf("section %s category %s replace: %w", section, cat, err)
            break
        }
        r.Rows += len(rows)
    }
    r.Elapsed = time.Since(start)
    if r.Err != nil {
        s.log.Error().Str("section", section).Dur("elapsed", r.Elapsed).Err(r.Err).Msg("snapshot section failed")
    } else {
        s.log.Info().Str("section", section).Int("rows", r.Rows).Dur("elapsed", r.Elapsed).Msg("snapshot section done")
    }
    return r
}

// aggregateCategory queries the upstream for one (section, category),
// groups counts by status and computes percentages.
func (s *Service) aggregateCategory(ctx context.Context, section, category string) ([]domain.SnapshotRow, error) {
    jql := categoryJQL(section, category)
    issues, err := s.jira.SearchAll(ctx, jql, []string{"status", "issuetype", "assignee"}, s.cfg.SnapshotMaxResults)
    if err != nil { return nil, err }

    counts := map[string]int{}
    for _, is := range issues {
        st := is.Status
        if st == "" { st = "unknown" }
        counts[st]++
    }
    statuses := make([]string, 0, len(counts))
    for st := range counts { statuses = append(statuses, st) }
    sort.Strings(statuses)

    filter, _ := json.Marshal(map[string]any{"jql": jql, "max_results": s.cfg.SnapshotMaxResults})
    now := time.Now().UTC()
    total := len(issues)
    rows := make([]domain.SnapshotRow, 0, len(statuses))
    for _, st := range statuses {
        pct := 0.0
        if total > 0 { pct = float64(counts[st]) * 100 / float64(total) }
        rows = append(rows, domain.SnapshotRow{
            Section:   section,
            Category:  category,
            Status:    st,
            Count:     counts[st],
            Percent:   pct,
            TakenAt:   now,
            FilterRaw: string(filter),
        })
    }
    return rows, nil
}

func categoryJQL(section, category string) string {
    switch category {
    case CategoryImprovements:
        return fmt.Sprintf("project = %s AND issuetype in (Improvement, Task) AND labels = improvement ORDER BY created DESC", section)
    case CategoryResources:
        return fmt.Sprintf("project = %s AND assignee is not EMPTY ORDER BY created DESC", section)
    default:
        return fmt.Sprintf("project = %s AND issuetype in (Epic, Story, Task) ORDER BY created DESC", section)
    }
}

type SectionFreshness struct {
    Section string        `json:"section"`
    Rows    int           `json:"rows"`
    Age     time.Duration `json:"age_seconds"`
    Stale   bool          `json:"stale"`
}

// Freshness answers "is the cache fresh" per section from the persisted
// snapshot rows alone.
func (s *Service) Freshness(ctx context.Context) ([]SectionFreshness, error) {
    secs, err := s.store.ListSections(ctx)
    if err != nil { return nil, err }
    out := make([]SectionFreshness, 0, len(secs))
    for _, sec := range secs {
        age, n, err := s.store.SnapshotAge(ctx, sec.Prefix)
        if err != nil { return nil, err }
        out = append(out, SectionFreshness{
            Section: sec.Prefix,
            Rows:    n,
            Age:     age,
            Stale:   n == 0 || age >= s.cfg.SnapshotMaxAge,
        })
    }
    return out, nil
}
