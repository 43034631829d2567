package model

import "time"

// StatusCounts is the breakdown returned alongside every list page.
// InProgress sums the three mid-stage statuses.
type StatusCounts struct {
	Pending    int64 `json:"pending"`
	InProgress int64 `json:"inProgress"`
	Approved   int64 `json:"approved"`
	Rejected   int64 `json:"rejected"`
	Total      int64 `json:"total"`
}

type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

type DeviationPage struct {
	Items      []DeviationApproval `json:"items"`
	Pagination Pagination          `json:"pagination"`
	Stats      StatusCounts        `json:"stats"`
}

type CountByKey struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

type MonthlyCount struct {
	Month string `json:"month"` // YYYY-MM
	Count int64  `json:"count"`
}

type DashboardStats struct {
	ByStatus           []CountByKey   `json:"by_status"`
	ByDepartment       []CountByKey   `json:"by_department"`
	ByRisk             []CountByKey   `json:"by_risk"`
	MonthlyTrend       []MonthlyCount `json:"monthly_trend"`
	AvgApprovalTimeHrs float64        `json:"avg_approval_time_hours"`
	Counts             StatusCounts   `json:"counts"`
	GeneratedAt        time.Time      `json:"generated_at"`
}
