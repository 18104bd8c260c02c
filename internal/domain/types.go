package domain

import "time"

type Section struct {
    ID     int64
    Name   string
    Prefix string
    Active bool
}

type Project struct {
    ID          int64
    Name        string
    UpstreamKey string
    SectionID   int64
    Status      string
    Active      bool
}

type Resource struct {
    ID         int64
    Name       string
    Email      string
    UpstreamID string
    Active     bool
}

// Booking is one persisted time entry. WorklogID is the idempotency key.
type Booking struct {
    ID              int64
    WorklogID       string
    ResourceID      int64
    ProjectID       int64
    IssueKey        string
    ParentIssueKey  string
    IssueType       string
    ParentProjectID *int64
    Hours           float64
    WorkDate        time.Time
    Source          string
    SyncedAt        time.Time
}

const (
    SourceJira   = "JIRA"
    SourceManual = "MANUAL"
)

type SyncRun struct {
    ID          int64
    StartedAt   time.Time
    FinishedAt  *time.Time
    Status      string
    Message     string
    Processed   int
    ProjectsNew int
    Errors      int
    Actor       string
}

const (
    RunRunning   = "running"
    RunCompleted = "completed"
    RunFailed    = "failed"
)

type SnapshotRow struct {
    ID        int64
    Section   string
    Category  string
    Status    string
    Count     int
    Percent   float64
    TakenAt   time.Time
    FilterRaw string
}

type PlannedHoursEntry struct {
    AllocationID int64
    Year         int
    Month        int
    Hours        float64
}
