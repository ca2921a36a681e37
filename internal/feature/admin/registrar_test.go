package admin

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"truck_notify_bot/internal/domain"
)

func TestEnsureAdminDemotesPreviousAndUpsertsConfiguredAdmin(t *testing.T) {
	hookLogger, hook := logtest.NewNullLogger()
	fake := &fakeUsers{
		updateManyResult: &mongo.UpdateResult{ModifiedCount: 2},
		updateOneResult:  &mongo.UpdateResult{MatchedCount: 0, UpsertedCount: 1},
	}

	registrar := NewRegistrar(fake, logrus.NewEntry(hookLogger))

	ctx := context.Background()
	adminID := int64(999)
	if err := registrar.EnsureAdmin(ctx, adminID); err != nil {
		t.Fatalf("EnsureAdmin returned error: %v", err)
	}

	if len(fake.updateManyCalls) != 1 {
		t.Fatalf("expected one demotion call, got %d", len(fake.updateManyCalls))
	}

	demoteCall := fake.updateManyCalls[0]
	filter, ok := demoteCall.filter.(bson.M)
	if !ok {
		t.Fatalf("expected demote filter bson.M, got %T", demoteCall.filter)
	}
	if filter["role"] != domain.RoleAdmin {
		t.Fatalf("expected demote filter role %s, got %v", domain.RoleAdmin, filter["role"])
	}
	userFilter, ok := filter["user_id"].(bson.M)
	if !ok || userFilter["$ne"] != adminID {
		t.Fatalf("expected demote filter user_id $ne %d, got %v", adminID, filter["user_id"])
	}

	update, ok := demoteCall.update.(bson.M)
	if !ok {
		t.Fatalf("expected demote update bson.M, got %T", demoteCall.update)
	}
	setFields, ok := update["$set"].(bson.M)
	if !ok {
		t.Fatalf("expected demote update $set, got %v", update)
	}
	if setFields["role"] != domain.RoleUser {
		t.Fatalf("expected demoted role %s, got %v", domain.RoleUser, setFields["role"])
	}
	if _, ok := setFields["updated_at"].(time.Time); !ok {
		t.Fatalf("expected updated_at timestamp in demote update, got %v", setFields["updated_at"])
	}

	if len(fake.updateOneCalls) != 1 {
		t.Fatalf("expected one upsert call, got %d", len(fake.updateOneCalls))
	}
	upsertCall := fake.updateOneCalls[0]

	upsertFilter, ok := upsertCall.filter.(bson.M)
	if !ok {
		t.Fatalf("expected upsert filter bson.M, got %T", upsertCall.filter)
	}
	if upsertFilter["user_id"] != adminID {
		t.Fatalf("expected upsert filter user_id %d, got %v", adminID, upsertFilter["user_id"])
	}

	upsertUpdate, ok := upsertCall.update.(bson.M)
	if !ok {
		t.Fatalf("expected upsert update bson.M, got %T", upsertCall.update)
	}
	setClause, ok := upsertUpdate["$set"].(bson.M)
	if !ok {
		t.Fatalf("expected $set clause in upsert update, got %v", upsertUpdate)
	}
	if setClause["role"] != domain.RoleAdmin {
		t.Fatalf("expected upsert role %s, got %v", domain.RoleAdmin, setClause["role"])
	}
	if setClause["user_id"] != adminID {
		t.Fatalf("expected upsert user_id %d, got %v", adminID, setClause["user_id"])
	}
	if _, ok := setClause["updated_at"].(time.Time); !ok {
		t.Fatalf("expected upsert updated_at timestamp, got %v", setClause["updated_at"])
	}

	setOnInsert, ok := upsertUpdate["$setOnInsert"].(bson.M)
	if !ok {
		t.Fatalf("expected $setOnInsert clause, got %v", upsertUpdate)
	}
	if _, ok := setOnInsert["created_at"].(time.Time); !ok {
		t.Fatalf("expected created_at timestamp on insert, got %v", setOnInsert["created_at"])
	}

	if len(upsertCall.opts) != 1 || upsertCall.opts[0].Upsert == nil || !*upsertCall.opts[0].Upsert {
		t.Fatalf("expected upsert option to be enabled, got %v", upsertCall.opts)
	}

	entry := findLogEvent(hook.AllEntries(), "admin_bootstrap")
	if entry == nil {
		t.Fatalf("expected admin_bootstrap log entry")
	}
	if entry.Data["admin_id"] != adminID {
		t.Fatalf("expected log admin_id %d, got %v", adminID, entry.Data["admin_id"])
	}
	if entry.Data["demoted_admins"] != int64(2) {
		t.Fatalf("expected demoted_admins=2, got %v", entry.Data["demoted_admins"])
	}
	if entry.Data["upserted_admin"] != int64(1) {
		t.Fatalf("expected upserted_admin=1, got %v", entry.Data["upserted_admin"])
	}
}

func TestEnsureAdminValidatesAndPropagatesErrors(t *testing.T) {
	hookLogger, _ := logtest.NewNullLogger()
	tests := []struct {
		name      string
		registrar *Registrar
		ctx       context.Context
		adminID   int64
		expectErr string
	}{
		{
			name:      "nil registrar",
			registrar: nil,
			ctx:       context.Background(),
			adminID:   1,
			expectErr: "admin registrar",
		},
		{
			name:      "nil collection",
			registrar: NewRegistrar(nil, logrus.NewEntry(hookLogger)),
			ctx:       context.Background(),
			adminID:   1,
			expectErr: "registrar is not initialized",
		},
		{
			name:      "nil context",
			registrar: NewRegistrar(&fakeUsers{}, logrus.NewEntry(hookLogger)),
			ctx:       nil,
			adminID:   1,
			expectErr: "context is required",
		},
		{
			name:      "zero admin id",
			registrar: NewRegistrar(&fakeUsers{}, logrus.NewEntry(hookLogger)),
			ctx:       context.Background(),
			adminID:   0,
			expectErr: "admin id is required",
		},
		{
			name: "demote error",
			registrar: NewRegistrar(&fakeUsers{
				updateManyErr: errors.New("demote fail"),
			}, logrus.NewEntry(hookLogger)),
			ctx:       context.Background(),
			adminID:   99,
			expectErr: "demote fail",
		},
		{
			name: "upsert error",
			registrar: NewRegistrar(&fakeUsers{
				updateOneErr: errors.New("upsert fail"),
			}, logrus.NewEntry(hookLogger)),
			ctx:       context.Background(),
			adminID:   99,
			expectErr: "upsert fail",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			err := tt.registrar.EnsureAdmin(tt.ctx, tt.adminID)
			if err == nil || !strings.Contains(err.Error(), tt.expectErr) {
				t.Fatalf("expected error containing %q, got %v", tt.expectErr, err)
			}
		})
	}
}

type updateManyCall struct {
	filter interface{}
	update interface{}
}

type updateOneCall struct {
	filter interface{}
	update interface{}
	opts   []*options.UpdateOptions
}

type fakeUsers struct {
	updateManyCalls  []updateManyCall
	updateOneCalls   []updateOneCall
	updateManyErr    error
	updateOneErr     error
	updateManyResult *mongo.UpdateResult
	updateOneResult  *mongo.UpdateResult
}

func (f *fakeUsers) UpdateMany(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	f.updateManyCalls = append(f.updateManyCalls, updateManyCall{filter: filter, update: update})
	return f.updateManyResult, f.updateManyErr
}

func (f *fakeUsers) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	f.updateOneCalls = append(f.updateOneCalls, updateOneCall{filter: filter, update: update, opts: opts})
	return f.updateOneResult, f.updateOneErr
}

func findLogEvent(entries []*logrus.Entry, event string) *logrus.Entry {
	for _, entry := range entries {
		if entry.Data["event"] == event {
			return entry
		}
	}
	return nil
}
