package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"truck_notify_bot/internal/wizard"
)

type sessionCollection interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
	ReplaceOne(ctx context.Context, filter interface{}, replacement interface{}, opts ...*options.ReplaceOptions) (*mongo.UpdateResult, error)
	DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
}

// SessionStore persists wizard sessions so they survive restarts. Expired
// sessions are hidden on read; the TTL index removes them eventually.
type SessionStore struct {
	collection sessionCollection
	ttl        time.Duration
	now        func() time.Time
}

var _ wizard.Store = (*SessionStore)(nil)

// NewSessionStore constructs a SessionStore; ttl <= 0 disables expiry.
func NewSessionStore(collection sessionCollection, ttl time.Duration) *SessionStore {
	return &SessionStore{
		collection: collection,
		ttl:        ttl,
		now:        time.Now,
	}
}

// Get returns the user's live session or wizard.ErrNoSession.
func (s *SessionStore) Get(ctx context.Context, userID string) (wizard.Session, error) {
	if err := s.ready(ctx); err != nil {
		return wizard.Session{}, err
	}

	result := s.collection.FindOne(ctx, bson.M{"user_id": userID})
	if result == nil {
		return wizard.Session{}, errors.New("find session returned no result")
	}
	if err := result.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return wizard.Session{}, wizard.ErrNoSession
		}
		return wizard.Session{}, fmt.Errorf("find session: %w", err)
	}

	var session wizard.Session
	if err := result.Decode(&session); err != nil {
		return wizard.Session{}, fmt.Errorf("decode session: %w", err)
	}

	if session.Expired(s.now(), s.ttl) {
		if err := s.Delete(ctx, userID); err != nil {
			return wizard.Session{}, err
		}
		return wizard.Session{}, wizard.ErrNoSession
	}

	return session, nil
}

// Create upserts the session, replacing any previous one for the user.
func (s *SessionStore) Create(ctx context.Context, session wizard.Session) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(session.UserID) == "" {
		return errors.New("user id is required")
	}

	_, err := s.collection.ReplaceOne(ctx, bson.M{"user_id": session.UserID}, session, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	return nil
}

// Update replaces an existing session.
func (s *SessionStore) Update(ctx context.Context, session wizard.Session) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(session.UserID) == "" {
		return errors.New("user id is required")
	}

	result, err := s.collection.ReplaceOne(ctx, bson.M{"user_id": session.UserID}, session)
	if err != nil {
		return fmt.Errorf("replace session: %w", err)
	}
	if result != nil && result.MatchedCount == 0 {
		return wizard.ErrNoSession
	}

	return nil
}

// Delete removes the user's session; deleting a missing session is not an error.
func (s *SessionStore) Delete(ctx context.Context, userID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	if _, err := s.collection.DeleteOne(ctx, bson.M{"user_id": userID}); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	return nil
}

// Count returns the number of live sessions.
func (s *SessionStore) Count(ctx context.Context) (int64, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}

	filter := bson.M{}
	if s.ttl > 0 {
		filter["updated_at"] = bson.M{"$gte": s.now().Add(-s.ttl)}
	}

	count, err := s.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}

	return count, nil
}

func (s *SessionStore) ready(ctx context.Context) error {
	if s == nil || s.collection == nil {
		return errors.New("session store is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	return nil
}
