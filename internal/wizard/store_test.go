package wizard

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreCRUD(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()

	if err := store.Update(ctx, Session{UserID: "a"}); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected update of missing session to fail, got %v", err)
	}

	if err := store.Create(ctx, Session{UserID: "a", Step: StepStart}); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if err := store.Create(ctx, Session{UserID: "b", Step: StepStart}); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if err := store.Update(ctx, Session{UserID: "a", Step: StepConsignor}); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}

	session, err := store.Get(ctx, "a")
	if err != nil || session.Step != StepConsignor {
		t.Fatalf("expected updated session, got %+v, %v", session, err)
	}

	count, err := store.Count(ctx)
	if err != nil || count != 2 {
		t.Fatalf("expected 2 sessions, got %d, %v", count, err)
	}

	if err := store.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if _, err := store.Get(ctx, "a"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession after delete, got %v", err)
	}
}

func TestMemoryStoreRequiresUserID(t *testing.T) {
	store := NewMemoryStore(0)

	if err := store.Create(context.Background(), Session{}); err == nil {
		t.Fatalf("expected missing user id to error")
	}
}

func TestMemoryStoreTTL(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	_ = store.Create(ctx, Session{UserID: "old", UpdatedAt: now.Add(-2 * time.Hour)})
	_ = store.Create(ctx, Session{UserID: "fresh", UpdatedAt: now.Add(-time.Minute)})

	count, _ := store.Count(ctx)
	if count != 1 {
		t.Fatalf("expected only the fresh session to count, got %d", count)
	}
	if _, err := store.Get(ctx, "old"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected expired session to be hidden, got %v", err)
	}
	if _, err := store.Get(ctx, "fresh"); err != nil {
		t.Fatalf("expected fresh session, got %v", err)
	}
}

func TestSessionExpiredNeverWithoutTTL(t *testing.T) {
	session := Session{UpdatedAt: time.Unix(0, 0)}
	if session.Expired(time.Now(), 0) {
		t.Fatalf("expected zero ttl to never expire")
	}
}
