package progress

import (
	"context"
	"testing"
)

type fakeSource struct {
	done     int
	personas int
	traits   int
}

func (f *fakeSource) CountDistinctCompleted(ctx context.Context, runID int64) (int, error) {
	return f.done, nil
}

func (f *fakeSource) CountDatasetPersonas(ctx context.Context, datasetID int64) (int, error) {
	return f.personas, nil
}

func (f *fakeSource) ActiveTraitCount(ctx context.Context) (int, error) {
	return f.traits, nil
}

func TestRegistry_StartAndGet(t *testing.T) {
	reg := New(&fakeSource{})
	reg.Start(1, 10, 0)

	snap, ok := reg.Get(1)
	if !ok {
		t.Fatal("expected tracked run")
	}
	if snap.Status != StatusQueued {
		t.Errorf("expected queued status, got %s", snap.Status)
	}
}

func TestRegistry_RefreshComputesTotalAndPercent(t *testing.T) {
	src := &fakeSource{done: 5, personas: 10, traits: 2}
	reg := New(src)
	reg.Start(1, 10, 0)
	reg.SetStatus(1, StatusRunning)

	if err := reg.Refresh(context.Background(), 1); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	snap, _ := reg.Get(1)
	if snap.Done != 5 {
		t.Errorf("expected done 5, got %d", snap.Done)
	}
	if snap.Total != 20 {
		t.Errorf("expected total 20 (10 personas * 2 traits), got %d", snap.Total)
	}
	if snap.Percent != 25.0 {
		t.Errorf("expected 25%%, got %v", snap.Percent)
	}
}

func TestRegistry_RefreshAppliesDualFraction(t *testing.T) {
	src := &fakeSource{done: 0, personas: 10, traits: 2}
	reg := New(src)
	reg.Start(1, 10, 0.5)
	reg.SetStatus(1, StatusRunning)

	if err := reg.Refresh(context.Background(), 1); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	snap, _ := reg.Get(1)
	// base = 10*2 = 20, extra = round(20*0.5) = 10, total = 30
	if snap.Total != 30 {
		t.Errorf("expected total 30 with dual fraction, got %d", snap.Total)
	}
}

func TestRegistry_CancelRequestFlipsStatus(t *testing.T) {
	reg := New(&fakeSource{})
	reg.Start(1, 10, 0)
	reg.SetStatus(1, StatusRunning)

	reg.RequestCancel(1)

	snap, _ := reg.Get(1)
	if snap.Status != StatusCancelling {
		t.Errorf("expected cancelling status, got %s", snap.Status)
	}
	if !reg.CancelRequested(1) {
		t.Error("expected cancel requested to be true")
	}
}

func TestRegistry_DoneExceedingTotalClampsTotal(t *testing.T) {
	src := &fakeSource{done: 25, personas: 10, traits: 2}
	reg := New(src)
	reg.Start(1, 10, 0)
	reg.SetStatus(1, StatusPartial)

	if err := reg.Refresh(context.Background(), 1); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	snap, _ := reg.Get(1)
	if snap.Total < snap.Done {
		t.Errorf("expected total >= done, got total=%d done=%d", snap.Total, snap.Done)
	}
}

func TestRegistry_ClearRemovesEntry(t *testing.T) {
	reg := New(&fakeSource{})
	reg.Start(1, 10, 0)
	reg.Clear(1)

	if _, ok := reg.Get(1); ok {
		t.Error("expected run to be cleared from registry")
	}
}
