package services

import (
    "context"
    "strings"
    "testing"

    "github.com/rodri-oliveira/pmo-backend/internal/domain"
    "github.com/rs/zerolog"
)

func TestApplyPlan_UpsertAndMerge(t *testing.T) {
    store := newFakeStore()
    store.allocations[7] = true
    svc := New(testConfig(), zerolog.Nop(), store, &fakeJira{})

    batch := []domain.PlannedHoursEntry{
        {AllocationID: 7, Year: 2026, Month: 1, Hours: 160},
        {AllocationID: 7, Year: 2026, Month: 2, Hours: 152},
    }
    if err := svc.ApplyPlan(context.Background(), batch); err != nil { t.Fatalf("apply failed: %v", err) }
    if store.planned["7/2026/1"] != 160 { t.Fatalf("missing january entry") }

    // re-apply with a changed value updates in place
    batch[0].Hours = 140
    if err := svc.ApplyPlan(context.Background(), batch); err != nil { t.Fatalf("re-apply failed: %v", err) }
    if store.planned["7/2026/1"] != 140 { t.Fatalf("expected updated hours, got %v", store.planned["7/2026/1"]) }
    if len(store.planned) != 2 { t.Fatalf("re-apply must not grow the table: %d", len(store.planned)) }
}

func TestApplyPlan_Validation(t *testing.T) {
    store := newFakeStore()
    store.allocations[7] = true
    svc := New(testConfig(), zerolog.Nop(), store, &fakeJira{})

    cases := []struct {
        name    string
        entries []domain.PlannedHoursEntry
        wantErr string
    }{
        {"missing allocation id", []domain.PlannedHoursEntry{{Year: 2026, Month: 1, Hours: 8}}, "allocation id"},
        {"month zero", []domain.PlannedHoursEntry{{AllocationID: 7, Year: 2026, Month: 0, Hours: 8}}, "month"},
        {"month thirteen", []domain.PlannedHoursEntry{{AllocationID: 7, Year: 2026, Month: 13, Hours: 8}}, "month"},
        {"negative hours", []domain.PlannedHoursEntry{{AllocationID: 7, Year: 2026, Month: 1, Hours: -1}}, "negative"},
        {"unknown allocation", []domain.PlannedHoursEntry{{AllocationID: 99, Year: 2026, Month: 1, Hours: 8}}, "not found"},
        {"duplicate in batch", []domain.PlannedHoursEntry{
            {AllocationID: 7, Year: 2026, Month: 1, Hours: 8},
            {AllocationID: 7, Year: 2026, Month: 1, Hours: 9},
        }, "duplicate"},
    }
    for _, c := range cases {
        err := svc.ApplyPlan(context.Background(), c.entries)
        if err == nil || !strings.Contains(err.Error(), c.wantErr) {
            t.Fatalf("%s: expected error containing %q, got %v", c.name, c.wantErr, err)
        }
        if len(store.planned) != 0 { t.Fatalf("%s: invalid batch must not write", c.name) }
    }
}
