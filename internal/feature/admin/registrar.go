// Package admin bootstraps the operator account named by ADMIN_CHAT_ID.
package admin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"truck_notify_bot/internal/domain"
	"truck_notify_bot/internal/logging"
)

type userCollection interface {
	UpdateMany(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
}

// Registrar promotes the configured admin and demotes stale ones.
type Registrar struct {
	users  userCollection
	logger *logrus.Entry
}

// NewRegistrar constructs a Registrar for the provided users collection.
func NewRegistrar(users userCollection, logger *logrus.Entry) *Registrar {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Registrar{
		users:  users,
		logger: logger,
	}
}

// EnsureAdmin upserts adminID with role=admin and demotes any other admin
// to user, so changing ADMIN_CHAT_ID moves operator rights on restart.
func (r *Registrar) EnsureAdmin(ctx context.Context, adminID int64) error {
	if r == nil || r.users == nil {
		return errors.New("admin registrar is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	if adminID == 0 {
		return errors.New("admin id is required")
	}

	now := time.Now().UTC()

	// Roles are admin and user only, so a stale admin drops straight to user
	// and keeps no operator rights once ADMIN_CHAT_ID points elsewhere.
	demoteResult, err := r.users.UpdateMany(ctx,
		bson.M{"role": domain.RoleAdmin, "user_id": bson.M{"$ne": adminID}},
		bson.M{"$set": bson.M{
			"role":       domain.RoleUser,
			"updated_at": now,
		}},
	)
	if err != nil {
		return fmt.Errorf("demote previous admins: %w", err)
	}

	upsertResult, err := r.users.UpdateOne(ctx,
		bson.M{"user_id": adminID},
		bson.M{
			"$set": bson.M{
				"user_id":    adminID,
				"role":       domain.RoleAdmin,
				"updated_at": now,
			},
			"$setOnInsert": bson.M{
				"created_at": now,
			},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("ensure admin: %w", err)
	}

	r.logger.WithFields(logging.Fields{
		"event":          "admin_bootstrap",
		"admin_id":       adminID,
		"demoted_admins": modifiedCount(demoteResult),
		"matched_admin":  matchedCount(upsertResult),
		"upserted_admin": upsertedCount(upsertResult),
	}).Info("ensured bot admin")

	return nil
}

func modifiedCount(result *mongo.UpdateResult) int64 {
	if result == nil {
		return 0
	}
	return result.ModifiedCount
}

func matchedCount(result *mongo.UpdateResult) int64 {
	if result == nil {
		return 0
	}
	return result.MatchedCount
}

func upsertedCount(result *mongo.UpdateResult) int64 {
	if result == nil {
		return 0
	}
	return result.UpsertedCount
}
