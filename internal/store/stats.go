package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"truck_notify_bot/internal/domain"
)

type countCollection interface {
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
}

// StatsProvider exposes collection counts for the /system command without
// leaking MongoDB internals to callers.
type StatsProvider struct {
	users   countCollection
	reports countCollection
}

// NewStatsProvider constructs a StatsProvider backed by the users and report
// log collections.
func NewStatsProvider(users, reports countCollection) *StatsProvider {
	return &StatsProvider{
		users:   users,
		reports: reports,
	}
}

// CountUsers returns the number of known users.
func (p *StatsProvider) CountUsers(ctx context.Context) (int64, error) {
	if p == nil {
		return 0, errors.New("stats provider is not initialized")
	}
	return count(ctx, p.users, bson.D{}, "users")
}

// CountReports returns the number of logged reports.
func (p *StatsProvider) CountReports(ctx context.Context) (int64, error) {
	if p == nil {
		return 0, errors.New("stats provider is not initialized")
	}
	return count(ctx, p.reports, bson.D{}, "reports")
}

// CountFailedReports returns the number of reports whose email was not delivered.
func (p *StatsProvider) CountFailedReports(ctx context.Context) (int64, error) {
	if p == nil {
		return 0, errors.New("stats provider is not initialized")
	}
	filter := bson.D{{Key: "status", Value: bson.D{{Key: "$in", Value: bson.A{domain.ReportStatusEmailFailed, domain.ReportStatusError}}}}}
	return count(ctx, p.reports, filter, "failed reports")
}

func count(ctx context.Context, coll countCollection, filter bson.D, what string) (int64, error) {
	if ctx == nil {
		return 0, errors.New("context is required")
	}
	if coll == nil {
		return 0, errors.New("stats provider is not initialized")
	}

	n, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", what, err)
	}

	return n, nil
}
