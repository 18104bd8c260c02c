package services

import (
    "context"
    "errors"
    "testing"
    "time"

    "github.com/rodri-oliveira/pmo-backend/internal/domain"
    "github.com/rodri-oliveira/pmo-backend/internal/repo"
    "github.com/rs/zerolog"
)

func TestManualBooking_PipelineRowsImmutable(t *testing.T) {
    store := newFakeStore()
    svc := New(testConfig(), zerolog.Nop(), store, &fakeJira{})

    jiraID, err := store.UpsertBooking(context.Background(), domain.Booking{
        WorklogID: "w1", Hours: 2, WorkDate: time.Now(), Source: domain.SourceJira,
    })
    if err != nil { t.Fatalf("seed: %v", err) }
    manualID, err := store.UpsertBooking(context.Background(), domain.Booking{
        WorklogID: "m1", Hours: 4, WorkDate: time.Now(), Source: domain.SourceManual,
    })
    if err != nil { t.Fatalf("seed: %v", err) }

    if err := svc.UpdateManualBooking(context.Background(), jiraID, 3); !errors.Is(err, repo.ErrPipelineOwned) {
        t.Fatalf("pipeline booking must refuse manual edit, got %v", err)
    }
    if err := svc.DeleteManualBooking(context.Background(), jiraID); !errors.Is(err, repo.ErrPipelineOwned) {
        t.Fatalf("pipeline booking must refuse manual delete, got %v", err)
    }
    if store.bookings["w1"].Hours != 2 { t.Fatalf("pipeline booking mutated") }

    if err := svc.UpdateManualBooking(context.Background(), manualID, 6); err != nil {
        t.Fatalf("manual booking should be editable: %v", err)
    }
    if store.bookings["m1"].Hours != 6 { t.Fatalf("manual edit not applied") }

    if err := svc.UpdateManualBooking(context.Background(), manualID, 30); err == nil {
        t.Fatalf("hours bound must apply to manual edits too")
    }

    if err := svc.DeleteManualBooking(context.Background(), manualID); err != nil {
        t.Fatalf("manual booking should be deletable: %v", err)
    }
    if _, ok := store.bookings["m1"]; ok { t.Fatalf("manual booking not deleted") }
}
