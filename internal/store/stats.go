package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type countCollection interface {
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
}

// ArchiveStats reports how many runs the archive holds.
type ArchiveStats struct {
	reports countCollection
}

// NewArchiveStats constructs ArchiveStats over the reports collection.
func NewArchiveStats(reports countCollection) *ArchiveStats {
	return &ArchiveStats{reports: reports}
}

// CountReports returns the number of archived runs.
func (s *ArchiveStats) CountReports(ctx context.Context) (int64, error) {
	return s.count(ctx, bson.D{})
}

// CountReportsSince returns the number of runs started at or after since.
func (s *ArchiveStats) CountReportsSince(ctx context.Context, since time.Time) (int64, error) {
	return s.count(ctx, bson.D{{Key: "started_at", Value: bson.M{"$gte": since.UTC()}}})
}

func (s *ArchiveStats) count(ctx context.Context, filter bson.D) (int64, error) {
	if ctx == nil {
		return 0, errors.New("context is required")
	}
	if s == nil || s.reports == nil {
		return 0, errors.New("archive stats are not initialized")
	}

	count, err := s.reports.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("count reports: %w", err)
	}

	return count, nil
}
