/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
    "context"
    "fmt"
    "strings"
    "time"

    "github.com/rodri-oliveira/pmo-backend/internal/adapters/jira"
    "github.com/rodri-oliveira/pmo-backend/internal/domain"
)

var issueFields = []string{"issuetype", "summary", "status", "project", "parent",
    "assignee", "reporter", "creator", "created", "updated", "timespent"}

// ItemError is one issue's (or worklog's) failure, recorded on the run
// without aborting it.
type ItemError struct {
    IssueKey string
    Reason   string
}

func (e ItemError) Error() string { return e.IssueKey + ": " + e.Reason }

type SyncOptions struct {
    Start    time.Time
    End      time.Time
    Sections []string
    Actor    string
}

type SyncOutcome struct {
    RunID       int64
    Status      string
    Processed   int
    ProjectsNew int
    Errors      []ItemError
}

// RunSync executes one full ingestion pass: open the audit row, walk
// the paginated result set, reconcile each issue's worklogs into
// bookings, close the run. Item failures are recorded and skipped;
// only setup or page-fetch failures mark the run failed.
func (s *Service) RunSync(ctx context.Context, opts SyncOptions) (*SyncOutcome, error) {
    actor := opts.Actor
    if actor == "" { actor = "system" }
    runID, err := s.store.StartSyncRun(ctx, actor)
    if err != nil { return nil, fmt.Errorf("open sync run: %w", err) }

    out := &SyncOutcome{RunID: runID, Status: domain.RunRunning}
    jql := s.syncJQL(opts)
    s.log.Info().Int64("run_id", runID).Str("jql", jql).Msg("sync started")

    issues, err := s.jira.SearchAll(ctx, jql, issueFields, 0)
    if err != nil {
        msg := "search failed: " + err.Error()
        out.Status = domain.RunFailed
        if ferr := s.store.FinishSyncRun(ctx, runID, domain.RunFailed, 0, 0, 0, msg); ferr != nil {
            s.log.Error().Err(ferr).Int64("run_id", runID).Msg("close sync run failed")
        }
        return out, err
    }

    rc := newRunCache()
    for _, is := range issues {
        if ctx.Err() != nil {
            out.Status = domain.RunFailed
            msg := "cancelled: " + ctx.Err().Error()
            if ferr := s.store.FinishSyncRun(context.WithoutCancel(ctx), runID, domain.RunFailed,
                out.Processed, rc.created, len(out.Errors), msg); ferr != nil {
                s.log.Error().Err(ferr).Int64("run_id", runID).Msg("close sync run failed")
            }
            return out, ctx.Err()
        }
        n, errs := s.processIssue(ctx, rc, is, opts)
        out.Processed += n
        out.Errors = append(out.Errors, errs...)
        for _, e := range errs {
            s.log.Warn().Str("issue", e.IssueKey).Str("reason", e.Reason).Msg("sync item error")
        }
    }

    out.Status = domain.RunCompleted
    out.ProjectsNew = rc.created
    msg := s.runMessage(len(issues), out)
    if err := s.store.FinishSyncRun(ctx, runID, domain.RunCompleted, out.Processed, rc.created, len(out.Errors), msg); err != nil {
        s.log.Error().Err(err).Int64("run_id", runID).Msg("close sync run failed")
    }
    s.log.Info().Int64("run_id", runID).Int("processed", out.Processed).
        Int("errors", len(out.Errors)).Int("projects_new", rc.created).Msg("sync finished")
    return out, nil
}

func (s *Service) syncJQL(opts SyncOptions) string {
    var b strings.Builder
    fmt.Fprintf(&b, "worklogDate >= %q AND worklogDate <= %q",
        opts.Start.Format("2006-01-02"), opts.End.Format("2006-01-02"))
    if len(opts.Sections) > 0 {
        b.WriteString(" AND project in (")
        b.WriteString(strings.Join(opts.Sections, ", "))
        b.WriteString(")")
    }
    b.WriteString(" ORDER BY updated ASC")
    return b.String()
}

// processIssue reconciles one issue fully: hierarchy, project identity,
// then each worklog into a booking. Returns bookings applied plus the
// item errors encountered; never aborts the batch.
func (s *Service) processIssue(ctx context.Context, rc *runCache, is jira.Issue, opts SyncOptions) (int, []ItemError) {
    proj, err := s.resolveProject(ctx, rc, is.ProjectKey, is.Summary)
    if err != nil {
        return 0, []ItemError{{IssueKey: is.Key, Reason: "project: " + err.Error()}}
    }
    rc.issueProject[is.Key] = proj.ID

    var parentProjectID *int64
    if is.Subtask || is.ParentKey != "" {
        if id, ok := s.resolveParentProject(ctx, rc, is); ok {
            parentProjectID = &id
        }
        // unresolvable parent degrades the sub-task to top-level
    }

    worklogs, err := s.jira.Worklogs(ctx, is.Key)
    if err != nil {
        return 0, []ItemError{{IssueKey: is.Key, Reason: "worklogs: " + err.Error()}}
    }
    // a consolidated entry is exempt from the window filter below: the
    // JQL window already selected the issue, its updated timestamp may
    // lag behind
    itemized := len(worklogs) > 0
    if !itemized {
        worklogs = consolidated(is)
    }

    applied := 0
    var errs []ItemError
    for _, wl := range worklogs {
        if itemized && wl.Started != nil && !inWindow(*wl.Started, opts.Start, opts.End) { continue }
        hours := float64(wl.Seconds) / 3600
        if hours <= 0 { continue }
        if hours > 24 {
            errs = append(errs, ItemError{IssueKey: is.Key, Reason: fmt.Sprintf("worklog %s: %.2f hours exceeds 24h bound", wl.ID, hours)})
            continue
        }
        res, err := s.resolveResource(ctx, wl.Author.AccountID, wl.Author.Email)
        if err != nil {
            errs = append(errs, ItemError{IssueKey: is.Key, Reason: "worklog " + wl.ID + ": " + err.Error()})
            continue
        }
        workDate := time.Now().UTC()
        if wl.Started != nil { workDate = *wl.Started }
        b := domain.Booking{
            WorklogID:       wl.ID,
            ResourceID:      res.ID,
            ProjectID:       proj.ID,
            IssueKey:        is.Key,
            ParentIssueKey:  is.ParentKey,
            IssueType:       is.Type,
            ParentProjectID: parentProjectID,
            Hours:           hours,
            WorkDate:        workDate,
            Source:          domain.SourceJira,
        }
        if _, err := s.store.UpsertBooking(ctx, b); err != nil {
            errs = append(errs, ItemError{IssueKey: is.Key, Reason: "worklog " + wl.ID + ": " + err.Error()})
            continue
        }
        applied++
    }
    return applied, errs
}

// resolveParentProject attributes a sub-task to its parent's project:
// parents seen earlier in this batch, then the local store, then a
// single fetch of the parent stub. One hop only.
func (s *Service) resolveParentProject(ctx context.Context, rc *runCache, is jira.Issue) (int64, bool) {
    if is.ParentKey == "" { return 0, false }
    if id, ok := rc.issueProject[is.ParentKey]; ok { return id, true }

    parentKey := is.ParentKey
    if i := strings.Index(parentKey, "-"); i > 0 {
        if p, err := s.store.ProjectByUpstreamKey(ctx, parentKey[:i]); err == nil {
            rc.issueProject[parentKey] = p.ID
            return p.ID, true
        }
    }

    parent, err := s.jira.Issue(ctx, parentKey)
    if err != nil {
        s.log.Debug().Str("issue", is.Key).Str("parent", parentKey).Err(err).Msg("parent fetch failed, degrading to top-level")
        return 0, false
    }
    name := parent.Summary
    if name == "" { name = is.ParentSummary }
    p, err := s.resolveProject(ctx, rc, parent.ProjectKey, name)
    if err != nil {
        s.log.Debug().Str("issue", is.Key).Str("parent", parentKey).Err(err).Msg("parent project unresolvable, degrading to top-level")
        return 0, false
    }
    rc.issueProject[parentKey] = p.ID
    return p.ID, true
}

// consolidated synthesizes one booking from the issue's aggregate
// timespent when no itemized worklogs exist. The stable key keeps
// re-syncs idempotent.
func consolidated(is jira.Issue) []jira.Worklog {
    if is.TimeSpentSeconds <= 0 { return nil }
    author := is.Assignee
    if author.AccountID == "" && author.Email == "" { author = is.Reporter }
    return []jira.Worklog{{
        ID:      "consolidated-" + is.Key,
        Author:  author,
        Started: is.Updated,
        Seconds: is.TimeSpentSeconds,
    }}
}

func inWindow(t, start, end time.Time) bool {
    if !start.IsZero() && t.Before(start) { return false }
    if !end.IsZero() && t.After(end.Add(24*time.Hour)) { return false }
    return true
}

func (s *Service) runMessage(total int, out *SyncOutcome) string {
    var b strings.Builder
    fmt.Fprintf(&b, "issues=%d bookings=%d projects_new=%d errors=%d",
        total, out.Processed, out.ProjectsNew, len(out.Errors))
    n := s.cfg.ErrorSampleSize
    if n <= 0 { n = 10 }
    for i, e := range out.Errors {
        if i >= n {
            fmt.Fprintf(&b, "; (+%d more)", len(out.Errors)-n)
            break
        }
        b.WriteString("; ")
        b.WriteString(e.Error())
    }
    return b.String()
}
