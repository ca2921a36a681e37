package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"truck_notify_bot/internal/domain"
	"truck_notify_bot/internal/wizard"
)

func TestSessionStoreRoundTrip(t *testing.T) {
	coll := newFakeSessionCollection(t)
	store := NewSessionStore(coll, 0)
	ctx := context.Background()

	session := wizard.Session{
		UserID:    "42",
		Step:      wizard.StepComp1,
		Entry:     domain.SheetEntry{Truck: "KAA123A", Target: domain.SheetSCT, Entry: "EN-1"},
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
		UpdatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}

	if err := store.Create(ctx, session); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if !coll.lastUpsert {
		t.Fatalf("expected create to upsert")
	}

	got, err := store.Get(ctx, "42")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got.Step != wizard.StepComp1 || got.Entry.Truck != "KAA123A" || got.Entry.Target != domain.SheetSCT {
		t.Fatalf("unexpected session: %+v", got)
	}

	session.Step = wizard.StepComp2
	if err := store.Update(ctx, session); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if coll.lastUpsert {
		t.Fatalf("expected update not to upsert")
	}

	count, err := store.Count(ctx)
	if err != nil || count != 1 {
		t.Fatalf("expected one session, got %d, %v", count, err)
	}

	if err := store.Delete(ctx, "42"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if _, err := store.Get(ctx, "42"); !errors.Is(err, wizard.ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

func TestSessionStoreUpdateMissing(t *testing.T) {
	store := NewSessionStore(newFakeSessionCollection(t), 0)

	err := store.Update(context.Background(), wizard.Session{UserID: "missing"})
	if !errors.Is(err, wizard.ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

func TestSessionStoreHidesExpired(t *testing.T) {
	coll := newFakeSessionCollection(t)
	store := NewSessionStore(coll, time.Hour)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	stale := wizard.Session{UserID: "7", Step: wizard.StepStart, UpdatedAt: now.Add(-2 * time.Hour)}
	if err := store.Create(ctx, stale); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if _, err := store.Get(ctx, "7"); !errors.Is(err, wizard.ErrNoSession) {
		t.Fatalf("expected expired session to be hidden, got %v", err)
	}
	if _, ok := coll.docs["7"]; ok {
		t.Fatalf("expected expired session to be deleted")
	}

	if _, err := store.Count(ctx); err != nil {
		t.Fatalf("Count returned error: %v", err)
	}
	filter, ok := coll.lastCountFilter.(bson.M)
	if !ok || filter["updated_at"] == nil {
		t.Fatalf("expected count to filter on updated_at, got %v", coll.lastCountFilter)
	}
}

func TestSessionStoreValidates(t *testing.T) {
	store := NewSessionStore(newFakeSessionCollection(t), 0)

	if err := store.Create(context.Background(), wizard.Session{}); err == nil {
		t.Fatalf("expected missing user id to error")
	}
	if _, err := store.Get(nil, "1"); err == nil {
		t.Fatalf("expected nil context to error")
	}

	var uninitialized *SessionStore
	if _, err := uninitialized.Count(context.Background()); err == nil {
		t.Fatalf("expected nil store to error")
	}
}

type fakeSessionCollection struct {
	t               *testing.T
	docs            map[string]bson.M
	lastUpsert      bool
	lastCountFilter interface{}
}

func newFakeSessionCollection(t *testing.T) *fakeSessionCollection {
	t.Helper()
	return &fakeSessionCollection{t: t, docs: make(map[string]bson.M)}
}

func (f *fakeSessionCollection) userID(filter interface{}) string {
	f.t.Helper()
	doc, ok := filter.(bson.M)
	if !ok {
		f.t.Fatalf("unexpected filter type %T", filter)
	}
	return fmt.Sprint(doc["user_id"])
}

func (f *fakeSessionCollection) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult {
	doc, ok := f.docs[f.userID(filter)]
	if !ok {
		return mongo.NewSingleResultFromDocument(nil, mongo.ErrNoDocuments, nil)
	}
	return mongo.NewSingleResultFromDocument(doc, nil, nil)
}

func (f *fakeSessionCollection) ReplaceOne(ctx context.Context, filter interface{}, replacement interface{}, opts ...*options.ReplaceOptions) (*mongo.UpdateResult, error) {
	id := f.userID(filter)

	upsert := false
	for _, opt := range opts {
		if opt != nil && opt.Upsert != nil && *opt.Upsert {
			upsert = true
		}
	}
	f.lastUpsert = upsert

	if _, exists := f.docs[id]; !exists && !upsert {
		return &mongo.UpdateResult{}, nil
	}

	raw, err := bson.Marshal(replacement)
	if err != nil {
		return nil, err
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	f.docs[id] = doc

	return &mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil
}

func (f *fakeSessionCollection) DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error) {
	id := f.userID(filter)
	if _, ok := f.docs[id]; !ok {
		return &mongo.DeleteResult{}, nil
	}
	delete(f.docs, id)
	return &mongo.DeleteResult{DeletedCount: 1}, nil
}

func (f *fakeSessionCollection) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	f.lastCountFilter = filter
	return int64(len(f.docs)), nil
}
