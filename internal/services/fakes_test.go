package services

import (
    "context"
    "errors"
    "fmt"
    "sync"
    "time"

    "github.com/rodri-oliveira/pmo-backend/internal/adapters/jira"
    "github.com/rodri-oliveira/pmo-backend/internal/config"
    "github.com/rodri-oliveira/pmo-backend/internal/domain"
    "github.com/rodri-oliveira/pmo-backend/internal/repo"
)

type fakeJira struct {
    issues    []jira.Issue
    worklogs  map[string][]jira.Worklog
    byKey     map[string]jira.Issue
    searchErr error
    searchFn  func(jql string) ([]jira.Issue, error)
}

func (f *fakeJira) Search(ctx context.Context, jql string, startAt, max int, fields []string) (jira.SearchPage, error) {
    if f.searchErr != nil { return jira.SearchPage{}, f.searchErr }
    return jira.SearchPage{Total: len(f.issues), Issues: f.issues}, nil
}

func (f *fakeJira) SearchAll(ctx context.Context, jql string, fields []string, limit int) ([]jira.Issue, error) {
    if f.searchFn != nil {
        out, err := f.searchFn(jql)
        if err != nil { return nil, err }
        if limit > 0 && len(out) > limit { out = out[:limit] }
        return out, nil
    }
    if f.searchErr != nil { return nil, f.searchErr }
    out := f.issues
    if limit > 0 && len(out) > limit { out = out[:limit] }
    return out, nil
}

func (f *fakeJira) Worklogs(ctx context.Context, key string) ([]jira.Worklog, error) {
    return f.worklogs[key], nil
}

func (f *fakeJira) Issue(ctx context.Context, key string) (jira.Issue, error) {
    if is, ok := f.byKey[key]; ok { return is, nil }
    return jira.Issue{}, errors.New("issue not found: " + key)
}

type runRecord struct {
    id        int64
    status    string
    processed int
    created   int
    errs      int
    message   string
    actor     string
    finished  bool
}

type fakeStore struct {
    mu sync.Mutex

    sections  map[string]domain.Section
    projects  map[string]domain.Project
    resources []domain.Resource
    bookings  map[string]domain.Booking

    runs []*runRecord

    snapshots   map[string][]domain.SnapshotRow
    snapAge     map[string]time.Duration
    failReplace map[string]bool

    allocations map[int64]bool
    planned     map[string]float64

    onUpsert func()

    nextID int64
}

func newFakeStore() *fakeStore {
    return &fakeStore{
        sections:    map[string]domain.Section{},
        projects:    map[string]domain.Project{},
        bookings:    map[string]domain.Booking{},
        snapshots:   map[string][]domain.SnapshotRow{},
        snapAge:     map[string]time.Duration{},
        failReplace: map[string]bool{},
        allocations: map[int64]bool{},
        planned:     map[string]float64{},
    }
}

func (f *fakeStore) id() int64 { f.nextID++; return f.nextID }

func (f *fakeStore) addSection(name, prefix string) {
    f.mu.Lock(); defer f.mu.Unlock()
    f.sections[prefix] = domain.Section{ID: f.id(), Name: name, Prefix: prefix, Active: true}
}

func (f *fakeStore) addResource(name, email, upstreamID string) domain.Resource {
    f.mu.Lock(); defer f.mu.Unlock()
    r := domain.Resource{ID: f.id(), Name: name, Email: email, UpstreamID: upstreamID, Active: true}
    f.resources = append(f.resources, r)
    return r
}

func (f *fakeStore) SectionByPrefix(ctx context.Context, prefix string) (*domain.Section, error) {
    f.mu.Lock(); defer f.mu.Unlock()
    if s, ok := f.sections[prefix]; ok { return &s, nil }
    return nil, repo.ErrNotFound
}

func (f *fakeStore) ListSections(ctx context.Context) ([]domain.Section, error) {
    f.mu.Lock(); defer f.mu.Unlock()
    var out []domain.Section
    for _, s := range f.sections { out = append(out, s) }
    return out, nil
}

func (f *fakeStore) ProjectByUpstreamKey(ctx context.Context, key string) (*domain.Project, error) {
    f.mu.Lock(); defer f.mu.Unlock()
    if p, ok := f.projects[key]; ok { return &p, nil }
    return nil, repo.ErrNotFound
}

func (f *fakeStore) CreateProject(ctx context.Context, p domain.Project) (int64, error) {
    f.mu.Lock(); defer f.mu.Unlock()
    if _, exists := f.projects[p.UpstreamKey]; exists {
        return 0, fmt.Errorf("unique violation on upstream_key=%s", p.UpstreamKey)
    }
    p.ID = f.id()
    f.projects[p.UpstreamKey] = p
    return p.ID, nil
}

func (f *fakeStore) ResourceByUpstreamID(ctx context.Context, upstreamID string) (*domain.Resource, error) {
    f.mu.Lock(); defer f.mu.Unlock()
    for _, r := range f.resources {
        if r.UpstreamID == upstreamID { return &r, nil }
    }
    return nil, repo.ErrNotFound
}

func (f *fakeStore) ResourceByEmail(ctx context.Context, email string) (*domain.Resource, error) {
    f.mu.Lock(); defer f.mu.Unlock()
    for _, r := range f.resources {
        if r.Email == email { return &r, nil }
    }
    return nil, repo.ErrNotFound
}

func (f *fakeStore) UpsertBooking(ctx context.Context, b domain.Booking) (int64, error) {
    f.mu.Lock()
    if old, ok := f.bookings[b.WorklogID]; ok {
        b.ID = old.ID
        b.Source = old.Source
    } else {
        b.ID = f.id()
    }
    f.bookings[b.WorklogID] = b
    f.mu.Unlock()
    if f.onUpsert != nil { f.onUpsert() }
    return b.ID, nil
}

func (f *fakeStore) UpdateBookingManual(ctx context.Context, id int64, hours float64) error {
    f.mu.Lock(); defer f.mu.Unlock()
    for k, b := range f.bookings {
        if b.ID == id {
            if b.Source == domain.SourceJira { return repo.ErrPipelineOwned }
            b.Hours = hours
            f.bookings[k] = b
            return nil
        }
    }
    return repo.ErrNotFound
}

func (f *fakeStore) DeleteBookingManual(ctx context.Context, id int64) error {
    f.mu.Lock(); defer f.mu.Unlock()
    for k, b := range f.bookings {
        if b.ID == id {
            if b.Source == domain.SourceJira { return repo.ErrPipelineOwned }
            delete(f.bookings, k)
            return nil
        }
    }
    return repo.ErrNotFound
}

func (f *fakeStore) StartSyncRun(ctx context.Context, actor string) (int64, error) {
    f.mu.Lock(); defer f.mu.Unlock()
    r := &runRecord{id: f.id(), status: domain.RunRunning, actor: actor}
    f.runs = append(f.runs, r)
    return r.id, nil
}

func (f *fakeStore) FinishSyncRun(ctx context.Context, id int64, status string, processed, projectsNew, errCount int, message string) error {
    f.mu.Lock(); defer f.mu.Unlock()
    for _, r := range f.runs {
        if r.id == id {
            r.status = status
            r.processed = processed
            r.created = projectsNew
            r.errs = errCount
            r.message = message
            r.finished = true
            return nil
        }
    }
    return repo.ErrNotFound
}

func (f *fakeStore) GetLastRun(ctx context.Context) (*repo.LastRun, error) {
    f.mu.Lock(); defer f.mu.Unlock()
    if len(f.runs) == 0 { return nil, repo.ErrNotFound }
    r := f.runs[len(f.runs)-1]
    return &repo.LastRun{ID: r.id, Status: r.status, Processed: r.processed,
        ProjectsNew: r.created, Errors: r.errs, Message: r.message, Actor: r.actor}, nil
}

func snapKey(section, category string) string { return section + "/" + category }

func (f *fakeStore) ReplaceSnapshot(ctx context.Context, section, category string, rows []domain.SnapshotRow) error {
    f.mu.Lock(); defer f.mu.Unlock()
    if f.failReplace[section] { return errors.New("replace failed") }
    f.snapshots[snapKey(section, category)] = rows
    return nil
}

func (f *fakeStore) SnapshotAge(ctx context.Context, section string) (time.Duration, int, error) {
    f.mu.Lock(); defer f.mu.Unlock()
    n := 0
    for k, rows := range f.snapshots {
        if len(k) > len(section) && k[:len(section)] == section && k[len(section)] == '/' {
            n += len(rows)
        }
    }
    return f.snapAge[section], n, nil
}

func (f *fakeStore) PruneSnapshots(ctx context.Context, olderThan time.Duration) (int64, error) {
    return 0, nil
}

func (f *fakeStore) AllocationExists(ctx context.Context, id int64) (bool, error) {
    f.mu.Lock(); defer f.mu.Unlock()
    return f.allocations[id], nil
}

func (f *fakeStore) UpsertPlannedHours(ctx context.Context, entries []domain.PlannedHoursEntry) error {
    f.mu.Lock(); defer f.mu.Unlock()
    for _, e := range entries {
        f.planned[fmt.Sprintf("%d/%d/%d", e.AllocationID, e.Year, e.Month)] = e.Hours
    }
    return nil
}

func testConfig() config.Config {
    return config.Config{
        SectionPrefixes:     []string{"SEG", "SGI", "TIN"},
        SectionAliases:      map[string]string{"DTIN": "TIN"},
        SnapshotCategories:  []string{CategoryDemands, CategoryImprovements, CategoryResources},
        SnapshotConcurrency: 2,
        SnapshotMaxResults:  2000,
        SnapshotMaxAge:      6 * time.Hour,
        ErrorSampleSize:     10,
        SyncDays:            7,
    }
}
