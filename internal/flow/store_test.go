package flow

import (
	"context"
	"testing"
	"time"

	"github.com/treelogistics/driverdesk/internal/models"
)

func TestMemoryStorePutGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	state := &models.ConversationState{Step: models.StepDataCollection}
	if err := store.Put(ctx, "+4915551234", state); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := store.Get(ctx, "+4915551234")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got == nil {
		t.Fatal("Get() returned nil for stored state")
	}
	if got.Step != models.StepDataCollection {
		t.Errorf("Get() Step = %q, want %q", got.Step, models.StepDataCollection)
	}
	if got.StartedAt.IsZero() || got.LastActivityAt.IsZero() {
		t.Error("Get() timestamps should be stamped on Put")
	}
}

func TestMemoryStoreGetAbsent(t *testing.T) {
	store := NewMemoryStore()
	got, err := store.Get(context.Background(), "+4915550000")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != nil {
		t.Errorf("Get() = %+v, want nil for absent id", got)
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStoreWithTTL(30 * time.Minute)

	now := time.Now()
	store.now = func() time.Time { return now }

	if err := store.Put(ctx, "+4915551234", &models.ConversationState{Step: models.StepRequestCollection}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	store.now = func() time.Time { return now.Add(31 * time.Minute) }
	got, err := store.Get(ctx, "+4915551234")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != nil {
		t.Errorf("Get() after TTL = %+v, want nil", got)
	}

	count, err := store.ActiveCount(ctx)
	if err != nil {
		t.Fatalf("ActiveCount() error = %v", err)
	}
	if count != 0 {
		t.Errorf("ActiveCount() after expiry = %d, want 0", count)
	}
}

func TestMemoryStorePutPreservesStartedAt(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	now := time.Now()
	store.now = func() time.Time { return now }
	if err := store.Put(ctx, "id", &models.ConversationState{Step: models.StepDataCollection}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	store.now = func() time.Time { return now.Add(5 * time.Minute) }
	if err := store.Put(ctx, "id", &models.ConversationState{Step: models.StepRequestCollection}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, _ := store.Get(ctx, "id")
	if !got.StartedAt.Equal(now) {
		t.Errorf("StartedAt = %v, want preserved %v", got.StartedAt, now)
	}
	if !got.LastActivityAt.Equal(now.Add(5 * time.Minute)) {
		t.Errorf("LastActivityAt = %v, want refreshed", got.LastActivityAt)
	}
}

func TestMemoryStoreMerge(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if err := store.Put(ctx, "id", &models.ConversationState{Step: models.StepDataCollection}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	step := models.StepRequestCollection
	retries := 1
	patch := models.StatePatch{
		Step:              &step,
		Profile:           &models.Profile{FirstName: "Maria", LastName: "Popescu", Station: "DBE3"},
		RequestRetryCount: &retries,
	}
	if err := store.Merge(ctx, "id", patch); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	got, _ := store.Get(ctx, "id")
	if got.Step != models.StepRequestCollection {
		t.Errorf("Step = %q, want %q", got.Step, models.StepRequestCollection)
	}
	if got.Profile == nil || got.Profile.FirstName != "Maria" {
		t.Errorf("Profile = %+v, want Maria", got.Profile)
	}
	if got.RequestRetryCount != 1 {
		t.Errorf("RequestRetryCount = %d, want 1", got.RequestRetryCount)
	}
}

func TestMemoryStoreMergeAbsentIsNoop(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	step := models.StepRequestCollection
	if err := store.Merge(ctx, "ghost", models.StatePatch{Step: &step}); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	got, _ := store.Get(ctx, "ghost")
	if got != nil {
		t.Errorf("Merge() into absent id created state %+v", got)
	}
}

func TestMemoryStoreDeleteIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if err := store.Put(ctx, "id", &models.ConversationState{Step: models.StepDataCollection}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := store.Delete(ctx, "id"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := store.Delete(ctx, "id"); err != nil {
		t.Fatalf("second Delete() error = %v", err)
	}
}

func TestMemoryStoreClearAll(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	for _, id := range []string{"a", "b", "c"} {
		if err := store.Put(ctx, id, &models.ConversationState{Step: models.StepDataCollection}); err != nil {
			t.Fatalf("Put(%s) error = %v", id, err)
		}
	}
	if err := store.ClearAll(ctx); err != nil {
		t.Fatalf("ClearAll() error = %v", err)
	}
	count, _ := store.ActiveCount(ctx)
	if count != 0 {
		t.Errorf("ActiveCount() after ClearAll = %d, want 0", count)
	}
}

func TestMemoryStoreGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if err := store.Put(ctx, "id", &models.ConversationState{Step: models.StepDataCollection}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	first, _ := store.Get(ctx, "id")
	first.Step = models.StepSatisfactionRating

	second, _ := store.Get(ctx, "id")
	if second.Step != models.StepDataCollection {
		t.Errorf("stored state mutated through Get() copy: Step = %q", second.Step)
	}
}
