package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type insertFindCollection interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
}

// ReportRepository persists and retrieves finished run reports in MongoDB.
type ReportRepository struct {
	collection insertFindCollection
}

// NewReportRepository constructs a ReportRepository.
func NewReportRepository(collection insertFindCollection) *ReportRepository {
	return &ReportRepository{collection: collection}
}

// Create inserts a report, recomputing totals from its rows and defaulting
// the finish time to now.
func (r *ReportRepository) Create(ctx context.Context, report Report) (Report, error) {
	if r == nil || r.collection == nil {
		return Report{}, errors.New("report repository is not initialized")
	}
	if ctx == nil {
		return Report{}, errors.New("context is required")
	}
	if strings.TrimSpace(report.RunID) == "" {
		return Report{}, errors.New("run_id is required")
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	if report.FinishedAt.IsZero() {
		report.FinishedAt = now
	}
	if report.StartedAt.IsZero() {
		report.StartedAt = report.FinishedAt
	}
	if report.Rows == nil {
		report.Rows = []OutcomeRow{}
	}
	report.Totals = Summarize(report.Rows)

	if _, err := r.collection.InsertOne(ctx, report); err != nil {
		return Report{}, fmt.Errorf("insert report: %w", err)
	}

	return report, nil
}

// GetByRunID fetches a report by its run identifier.
func (r *ReportRepository) GetByRunID(ctx context.Context, runID string) (Report, error) {
	if r == nil || r.collection == nil {
		return Report{}, errors.New("report repository is not initialized")
	}
	if ctx == nil {
		return Report{}, errors.New("context is required")
	}
	if strings.TrimSpace(runID) == "" {
		return Report{}, errors.New("run_id is required")
	}

	result := r.collection.FindOne(ctx, bson.M{"run_id": runID})
	if result == nil {
		return Report{}, errors.New("find report returned no result")
	}
	if err := result.Err(); err != nil {
		return Report{}, fmt.Errorf("find report: %w", err)
	}

	var report Report
	if err := result.Decode(&report); err != nil {
		return Report{}, fmt.Errorf("decode report: %w", err)
	}

	return report, nil
}
