package service

import (
	"context"
	"time"

	"deviation-service/internal/model"
	"deviation-service/internal/repository"
	"deviation-service/internal/workflow"
)

type deviationLister interface {
	List(ctx context.Context, filter repository.DeviationFilter) ([]model.DeviationApproval, int64, error)
}

type reportStore interface {
	StatusCounts(ctx context.Context) (model.StatusCounts, error)
	CountByStatus(ctx context.Context) ([]model.CountByKey, error)
	CountByDepartment(ctx context.Context) ([]model.CountByKey, error)
	CountByRisk(ctx context.Context) ([]model.CountByKey, error)
	MonthlyTrend(ctx context.Context) ([]model.MonthlyCount, error)
	AvgApprovalTime(ctx context.Context) (float64, error)
}

type ReportService struct {
	deviations      deviationLister
	reports         reportStore
	defaultPageSize int
	maxPageSize     int
}

func NewReportService(deviations deviationLister, reports reportStore, defaultPageSize, maxPageSize int) *ReportService {
	return &ReportService{
		deviations:      deviations,
		reports:         reports,
		defaultPageSize: defaultPageSize,
		maxPageSize:     maxPageSize,
	}
}

type ListOptions struct {
	Statuses    []workflow.Status
	Departments []string
	Types       []model.DeviationType
	Risks       []model.QualityRisk
	Search      string
	Sort        string
	Page        int
	Limit       int
}

func (s *ReportService) List(ctx context.Context, opts ListOptions) (*model.DeviationPage, error) {
	page := opts.Page
	if page < 1 {
		page = 1
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = s.defaultPageSize
	}
	if limit > s.maxPageSize {
		limit = s.maxPageSize
	}

	filter := repository.DeviationFilter{
		Statuses:    opts.Statuses,
		Departments: opts.Departments,
		Types:       opts.Types,
		Risks:       opts.Risks,
		Search:      opts.Search,
		Sort:        opts.Sort,
		Limit:       limit,
		Offset:      (page - 1) * limit,
	}

	items, total, err := s.deviations.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	counts, err := s.reports.StatusCounts(ctx)
	if err != nil {
		return nil, err
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))

	return &model.DeviationPage{
		Items: items,
		Pagination: model.Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: totalPages,
		},
		Stats: counts,
	}, nil
}

func (s *ReportService) Dashboard(ctx context.Context) (*model.DashboardStats, error) {
	byStatus, err := s.reports.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	byDepartment, err := s.reports.CountByDepartment(ctx)
	if err != nil {
		return nil, err
	}
	byRisk, err := s.reports.CountByRisk(ctx)
	if err != nil {
		return nil, err
	}
	trend, err := s.reports.MonthlyTrend(ctx)
	if err != nil {
		return nil, err
	}
	avg, err := s.reports.AvgApprovalTime(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := s.reports.StatusCounts(ctx)
	if err != nil {
		return nil, err
	}

	return &model.DashboardStats{
		ByStatus:           byStatus,
		ByDepartment:       byDepartment,
		ByRisk:             byRisk,
		MonthlyTrend:       trend,
		AvgApprovalTimeHrs: avg,
		Counts:             counts,
		GeneratedAt:        time.Now().UTC(),
	}, nil
}
