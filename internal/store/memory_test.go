package store

import (
	"context"
	"testing"
	"time"
)

func TestMemoryRepositoryRoundTrip(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	rec := &Record{
		Code:      "ABC123",
		WhiteID:   7,
		WhiteName: "alice",
		BlackID:   -1,
		BlackName: "Stockfish AI",
		EndReason: "checkmate",
		Winner:    "white",
		VsAI:      true,
		StartedAt: time.Now().Add(-time.Minute),
		EndedAt:   time.Now(),
	}
	if err := repo.SaveFinished(ctx, rec); err != nil {
		t.Fatalf("SaveFinished: %v", err)
	}

	got, err := repo.GetByCode(ctx, "ABC123")
	if err != nil {
		t.Fatalf("GetByCode: %v", err)
	}
	if got == nil || got.EndReason != "checkmate" || !got.VsAI {
		t.Fatalf("GetByCode = %+v", got)
	}

	// Saving again overwrites, it never duplicates.
	rec.EndReason = "abandoned"
	if err := repo.SaveFinished(ctx, rec); err != nil {
		t.Fatalf("SaveFinished again: %v", err)
	}
	list, err := repo.ListByUser(ctx, 7, 10)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(list) != 1 || list[0].EndReason != "abandoned" {
		t.Fatalf("ListByUser = %+v", list)
	}
}

func TestMemoryRepositoryListOrderAndLimit(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	base := time.Now()
	for i, code := range []string{"AAA111", "BBB222", "CCC333"} {
		rec := &Record{Code: code, WhiteID: 7, BlackID: 8, EndedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := repo.SaveFinished(ctx, rec); err != nil {
			t.Fatalf("SaveFinished(%s): %v", code, err)
		}
	}

	list, err := repo.ListByUser(ctx, 7, 2)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(list) != 2 || list[0].Code != "CCC333" || list[1].Code != "BBB222" {
		t.Fatalf("ListByUser order = %+v", list)
	}

	if list, _ := repo.ListByUser(ctx, 99, 10); len(list) != 0 {
		t.Fatalf("unrelated user got %d records", len(list))
	}
}
