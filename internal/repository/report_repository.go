package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"deviation-service/internal/model"
	"deviation-service/internal/workflow"
)

type ReportRepository struct {
	db *gorm.DB
}

func NewReportRepository(db *gorm.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// StatusCounts folds the raw status breakdown into the dashboard buckets:
// the three mid-stage statuses count as in-progress.
func (r *ReportRepository) StatusCounts(ctx context.Context) (model.StatusCounts, error) {
	rows, err := r.CountByStatus(ctx)
	if err != nil {
		return model.StatusCounts{}, err
	}

	var counts model.StatusCounts
	for _, row := range rows {
		counts.Total += row.Count
		switch workflow.Status(row.Key) {
		case workflow.StatusPending:
			counts.Pending += row.Count
		case workflow.StatusRDApproved, workflow.StatusQualityApproved, workflow.StatusProductionApproved:
			counts.InProgress += row.Count
		case workflow.StatusFinalApproved:
			counts.Approved += row.Count
		case workflow.StatusRejected:
			counts.Rejected += row.Count
		}
	}
	return counts, nil
}

func (r *ReportRepository) CountByStatus(ctx context.Context) ([]model.CountByKey, error) {
	return r.countBy(ctx, "status")
}

func (r *ReportRepository) CountByDepartment(ctx context.Context) ([]model.CountByKey, error) {
	return r.countBy(ctx, "department")
}

func (r *ReportRepository) CountByRisk(ctx context.Context) ([]model.CountByKey, error) {
	return r.countBy(ctx, "quality_risk")
}

// MonthlyTrend returns record-creation counts for the trailing 12 months,
// oldest first. Months with no records are absent.
func (r *ReportRepository) MonthlyTrend(ctx context.Context) ([]model.MonthlyCount, error) {
	since := time.Now().AddDate(0, -11, 0)
	var trend []model.MonthlyCount
	err := r.db.WithContext(ctx).
		Model(&model.DeviationApproval{}).
		Select("to_char(date_trunc('month', created_at), 'YYYY-MM') AS month, COUNT(*) AS count").
		Where("created_at >= date_trunc('month', ?::timestamptz)", since).
		Group("date_trunc('month', created_at)").
		Order("date_trunc('month', created_at)").
		Scan(&trend).Error
	if err != nil {
		return nil, err
	}
	return trend, nil
}

// AvgApprovalTime averages total_approval_time_hours across completed
// records. Zero when nothing has completed yet.
func (r *ReportRepository) AvgApprovalTime(ctx context.Context) (float64, error) {
	var avg *float64
	err := r.db.WithContext(ctx).
		Model(&model.DeviationApproval{}).
		Select("AVG(total_approval_time_hours)").
		Where("status = ?", workflow.StatusFinalApproved).
		Scan(&avg).Error
	if err != nil {
		return 0, err
	}
	if avg == nil {
		return 0, nil
	}
	return *avg, nil
}

func (r *ReportRepository) countBy(ctx context.Context, column string) ([]model.CountByKey, error) {
	var rows []model.CountByKey
	err := r.db.WithContext(ctx).
		Model(&model.DeviationApproval{}).
		Select(column + "::text AS key, COUNT(*) AS count").
		Group(column).
		Order("count DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
