package feedback

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "feedback.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.Record(ctx, Entry{
		SessionID: "s1",
		Query:     "when is my dentist appointment?",
		Response:  "Tuesday at 3pm.",
		ModelKey:  "1.5b",
		Rating:    1,
	}, 0.72)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	err = s.Record(ctx, Entry{
		SessionID: "s1",
		Query:     "summarize my week",
		Response:  "I'm not sure.",
		ModelKey:  "1.5b",
		Rating:    -1,
	}, 0.31)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	entries, err := s.List(ctx, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len = %d, want 2", len(entries))
	}
	for _, e := range entries {
		if e.ID == "" || e.CreatedAt.IsZero() {
			t.Errorf("entry missing generated fields: %+v", e)
		}
	}
}

func TestCalibrationBins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Three results near 0.7: two correct, one wrong.
	for _, correct := range []bool{true, true, false} {
		if err := s.UpdateBin(ctx, 0.72, correct); err != nil {
			t.Fatalf("UpdateBin: %v", err)
		}
	}
	if err := s.UpdateBin(ctx, 0.31, false); err != nil {
		t.Fatal(err)
	}

	stats, err := s.BinStats(ctx)
	if err != nil {
		t.Fatalf("BinStats: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("bins = %d, want 2", len(stats))
	}

	// Ordered by bin: 3 before 7.
	if stats[0].Bin != 3 || stats[0].Total != 1 || stats[0].Correct != 0 {
		t.Errorf("bin 3 = %+v", stats[0])
	}
	if stats[1].Bin != 7 || stats[1].Total != 3 || stats[1].Correct != 2 {
		t.Errorf("bin 7 = %+v", stats[1])
	}
	if acc := stats[1].Accuracy; acc < 0.66 || acc > 0.67 {
		t.Errorf("bin 7 accuracy = %f", acc)
	}
}

func TestBinForClamps(t *testing.T) {
	if binFor(-0.5) != 0 {
		t.Error("negative confidence should land in bin 0")
	}
	if binFor(1.0) != 9 {
		t.Error("confidence 1.0 should land in bin 9")
	}
}

func TestApprovalQueueLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id1, err := s.Enqueue(ctx, "escalation", `{"query":"book the flight"}`)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	id2, err := s.Enqueue(ctx, "escalation", `{"query":"email the landlord"}`)
	if err != nil {
		t.Fatal(err)
	}

	pending, err := s.Queue(ctx, StatusPending)
	if err != nil {
		t.Fatalf("Queue: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending = %d, want 2", len(pending))
	}

	if err := s.Approve(ctx, id1); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if err := s.Reject(ctx, id2); err != nil {
		t.Fatalf("Reject: %v", err)
	}

	pending, err = s.Queue(ctx, StatusPending)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("pending after decisions = %d, want 0", len(pending))
	}

	all, err := s.Queue(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("all = %d, want 2", len(all))
	}
	for _, item := range all {
		if item.Status == StatusPending {
			t.Errorf("item %s still pending", item.ID)
		}
		if item.DecidedAt == nil {
			t.Errorf("item %s missing decided_at", item.ID)
		}
	}
}

func TestDecideRejectsUnknownOrDecided(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Approve(ctx, "missing"); err == nil {
		t.Error("approving a missing item should error")
	}

	id, err := s.Enqueue(ctx, "escalation", "{}")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Approve(ctx, id); err != nil {
		t.Fatal(err)
	}
	if err := s.Reject(ctx, id); err == nil {
		t.Error("re-deciding an item should error")
	}
}
