package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrReportNotFound is returned when a report log entry does not exist.
var ErrReportNotFound = errors.New("report not found")

type insertFindCollection interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
}

type reportCollection interface {
	insertFindCollection
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
}

// newReportID is overridable for tests.
var newReportID = func() string {
	return uuid.NewString()
}

// UserRepository persists and retrieves users in MongoDB.
type UserRepository struct {
	collection insertFindCollection
}

// NewUserRepository constructs a UserRepository.
func NewUserRepository(collection insertFindCollection) *UserRepository {
	return &UserRepository{collection: collection}
}

// Create inserts a user with populated timestamps, defaulting the role to
// RoleUser when omitted.
func (r *UserRepository) Create(ctx context.Context, user User) (User, error) {
	if r == nil || r.collection == nil {
		return User{}, errors.New("user repository is not initialized")
	}
	if ctx == nil {
		return User{}, errors.New("context is required")
	}
	if user.UserID == 0 {
		return User{}, errors.New("user_id is required")
	}
	if user.Role == "" {
		user.Role = RoleUser
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	if user.LastSeenAt.IsZero() {
		user.LastSeenAt = now
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = user.CreatedAt

	if _, err := r.collection.InsertOne(ctx, user); err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}

	return user, nil
}

// GetByID fetches a user by Telegram user_id.
func (r *UserRepository) GetByID(ctx context.Context, userID int64) (User, error) {
	if r == nil || r.collection == nil {
		return User{}, errors.New("user repository is not initialized")
	}
	if ctx == nil {
		return User{}, errors.New("context is required")
	}
	if userID == 0 {
		return User{}, errors.New("user_id is required")
	}

	result := r.collection.FindOne(ctx, bson.M{"user_id": userID})
	if result == nil {
		return User{}, errors.New("find user returned no result")
	}
	if err := result.Err(); err != nil {
		return User{}, fmt.Errorf("find user: %w", err)
	}

	var user User
	if err := result.Decode(&user); err != nil {
		return User{}, fmt.Errorf("decode user: %w", err)
	}

	return user, nil
}

// ReportRepository keeps the audit log of generated reports.
type ReportRepository struct {
	collection reportCollection
}

// NewReportRepository constructs a ReportRepository.
func NewReportRepository(collection reportCollection) *ReportRepository {
	return &ReportRepository{collection: collection}
}

// Create inserts a report record, assigning an ID, a pending status and
// timestamps when they are not set.
func (r *ReportRepository) Create(ctx context.Context, record ReportRecord) (ReportRecord, error) {
	if r == nil || r.collection == nil {
		return ReportRecord{}, errors.New("report repository is not initialized")
	}
	if ctx == nil {
		return ReportRecord{}, errors.New("context is required")
	}
	if strings.TrimSpace(record.Kind) == "" {
		return ReportRecord{}, errors.New("report kind is required")
	}
	if record.ID == "" {
		record.ID = newReportID()
	}
	if record.Status == "" {
		record.Status = ReportStatusPending
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = record.CreatedAt

	if _, err := r.collection.InsertOne(ctx, record); err != nil {
		return ReportRecord{}, fmt.Errorf("insert report: %w", err)
	}

	return record, nil
}

// GetByID fetches a report record by its ID.
func (r *ReportRepository) GetByID(ctx context.Context, id string) (ReportRecord, error) {
	if r == nil || r.collection == nil {
		return ReportRecord{}, errors.New("report repository is not initialized")
	}
	if ctx == nil {
		return ReportRecord{}, errors.New("context is required")
	}
	if id == "" {
		return ReportRecord{}, errors.New("report_id is required")
	}

	result := r.collection.FindOne(ctx, bson.M{"report_id": id})
	if result == nil {
		return ReportRecord{}, errors.New("find report returned no result")
	}
	if err := result.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ReportRecord{}, ErrReportNotFound
		}
		return ReportRecord{}, fmt.Errorf("find report: %w", err)
	}

	var record ReportRecord
	if err := result.Decode(&record); err != nil {
		return ReportRecord{}, fmt.Errorf("decode report: %w", err)
	}

	return record, nil
}

// UpdateStatus records the delivery outcome of a report. An empty errText
// clears any previous error.
func (r *ReportRepository) UpdateStatus(ctx context.Context, id, status, errText string) error {
	if r == nil || r.collection == nil {
		return errors.New("report repository is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	if id == "" {
		return errors.New("report_id is required")
	}
	if status == "" {
		return errors.New("status is required")
	}

	update := bson.M{
		"$set": bson.M{
			"status":     status,
			"error":      errText,
			"updated_at": time.Now().UTC().Truncate(time.Millisecond),
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"report_id": id}, update)
	if err != nil {
		return fmt.Errorf("update report status: %w", err)
	}
	if result != nil && result.MatchedCount == 0 {
		return ErrReportNotFound
	}

	return nil
}
