package history

import (
	"testing"
	"time"

	"ggufscope/internal/testutil"
)

func TestRecordAndRecent(t *testing.T) {
	db := testutil.OpenTestDB(t)

	base := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	failMsg := "not a GGUF file (bad magic)"

	loads := []Load{
		{Path: "/models/a.gguf", FileSize: 1024, EntryCount: 25, Status: StatusSucceeded, Duration: 120 * time.Millisecond, CreatedAt: base},
		{Path: "/models/b.gguf", Status: StatusFailed, Error: &failMsg, CreatedAt: base.Add(time.Minute)},
		{Path: "/models/c.gguf", FileSize: 2048, EntryCount: 40, Status: StatusSucceeded, Duration: 300 * time.Millisecond, CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, l := range loads {
		if _, err := Record(db, l); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	got, err := Recent(db, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}
	if got[0].Path != "/models/c.gguf" {
		t.Errorf("expected newest first, got %s", got[0].Path)
	}
	if got[1].Status != StatusFailed {
		t.Errorf("expected failed row second, got %s", got[1].Status)
	}
	if got[1].Error == nil || *got[1].Error != failMsg {
		t.Error("expected error text to roundtrip")
	}
	if got[0].EntryCount != 40 || got[0].FileSize != 2048 {
		t.Errorf("unexpected fields: %+v", got[0])
	}
	if got[0].Duration != 300*time.Millisecond {
		t.Errorf("expected duration 300ms, got %s", got[0].Duration)
	}
}

func TestRecordAssignsID(t *testing.T) {
	db := testutil.OpenTestDB(t)

	id, err := Record(db, Load{Path: "/models/a.gguf", Status: StatusSucceeded})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if id == "" {
		t.Error("expected a generated id")
	}

	got, err := Recent(db, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 1 || got[0].ID != id {
		t.Errorf("expected the generated id back, got %+v", got)
	}
	if got[0].CreatedAt.IsZero() {
		t.Error("expected a default created_at")
	}
}

func TestRecentEmpty(t *testing.T) {
	db := testutil.OpenTestDB(t)

	got, err := Recent(db, 5)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no rows, got %d", len(got))
	}
}
