package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"deviation-service/internal/model"
	"deviation-service/internal/workflow"
)

// ErrStaleVersion is returned when an optimistic-concurrency write matches
// no row: either the record is gone or another writer got there first.
var ErrStaleVersion = errors.New("record version is stale")

type DeviationRepository struct {
	db *gorm.DB
}

func NewDeviationRepository(db *gorm.DB) *DeviationRepository {
	return &DeviationRepository{db: db}
}

type DeviationFilter struct {
	Statuses    []workflow.Status
	Departments []string
	Types       []model.DeviationType
	Risks       []model.QualityRisk
	Search      string
	Sort        string
	Limit       int
	Offset      int
}

var sortColumns = map[string]string{
	"created_at":       "deviation_approvals.created_at",
	"request_date":     "deviation_approvals.request_date",
	"deviation_number": "deviation_approvals.deviation_number",
	"status":           "deviation_approvals.status",
	"quality_risk":     "deviation_approvals.quality_risk",
}

func (r *DeviationRepository) Create(ctx context.Context, deviation *model.DeviationApproval) error {
	return r.db.WithContext(ctx).Create(deviation).Error
}

func (r *DeviationRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.DeviationApproval, error) {
	var deviation model.DeviationApproval
	err := r.db.WithContext(ctx).
		Preload("Vehicles").
		Preload("Attachments").
		First(&deviation, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &deviation, nil
}

func (r *DeviationRepository) List(ctx context.Context, filter DeviationFilter) ([]model.DeviationApproval, int64, error) {
	query := r.applyFilter(r.db.WithContext(ctx).Model(&model.DeviationApproval{}), filter)

	var total int64
	if err := query.Session(&gorm.Session{}).Distinct("deviation_approvals.id").Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "deviation_approvals.created_at DESC"
	if col, ok := sortColumns[filter.Sort]; ok {
		order = col + " DESC"
	}

	var deviations []model.DeviationApproval
	err := query.Session(&gorm.Session{}).
		Distinct("deviation_approvals.*").
		Order(order).
		Offset(filter.Offset).
		Limit(filter.Limit).
		Preload("Vehicles").
		Preload("Attachments").
		Find(&deviations).Error
	if err != nil {
		return nil, 0, err
	}

	return deviations, total, nil
}

// Patch applies a partial field update guarded by the record version.
func (r *DeviationRepository) Patch(ctx context.Context, id uuid.UUID, version int, fields map[string]interface{}) error {
	fields["version"] = gorm.Expr("version + 1")
	return r.guardedUpdate(ctx, id, version, fields)
}

// UpdateApproval persists one stage sign-off plus the recomputed status.
func (r *DeviationRepository) UpdateApproval(ctx context.Context, deviation *model.DeviationApproval, stage workflow.Stage) error {
	record := deviation.StageRecord(stage)
	if record == nil {
		return workflow.ErrUnknownStage
	}

	prefix := stageColumnPrefix(stage)
	fields := map[string]interface{}{
		prefix + "_approved":      record.Approved,
		prefix + "_approver":      record.Approver,
		prefix + "_approval_date": record.ApprovalDate,
		prefix + "_comments":      record.Comments,
		"status":                  deviation.Status,
		"last_modified_by":        deviation.LastModifiedBy,
		"version":                 gorm.Expr("version + 1"),
	}
	if deviation.CompletedDate != nil {
		fields["completed_date"] = deviation.CompletedDate
		fields["total_approval_time_hours"] = deviation.TotalApprovalTime
	}

	return r.guardedUpdate(ctx, deviation.ID, deviation.Version, fields)
}

func (r *DeviationRepository) UpdateRejection(ctx context.Context, deviation *model.DeviationApproval) error {
	return r.guardedUpdate(ctx, deviation.ID, deviation.Version, map[string]interface{}{
		"status":           deviation.Status,
		"rejection_reason": deviation.RejectionReason,
		"last_modified_by": deviation.LastModifiedBy,
		"version":          gorm.Expr("version + 1"),
	})
}

func (r *DeviationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&model.DeviationApproval{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// BulkUpdateStatus sets status directly on a batch of records, bypassing the
// workflow. Returns the number of rows touched.
func (r *DeviationRepository) BulkUpdateStatus(ctx context.Context, ids []uuid.UUID, status workflow.Status, reason, modifiedBy string) (int64, error) {
	fields := map[string]interface{}{
		"status":           status,
		"last_modified_by": modifiedBy,
		"version":          gorm.Expr("version + 1"),
	}
	if status == workflow.StatusRejected {
		fields["rejection_reason"] = reason
	}
	result := r.db.WithContext(ctx).
		Model(&model.DeviationApproval{}).
		Where("id IN ?", ids).
		Updates(fields)
	return result.RowsAffected, result.Error
}

func (r *DeviationRepository) LogStatusChange(ctx context.Context, entry *model.DeviationStatusLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *DeviationRepository) guardedUpdate(ctx context.Context, id uuid.UUID, version int, fields map[string]interface{}) error {
	result := r.db.WithContext(ctx).
		Model(&model.DeviationApproval{}).
		Where("id = ? AND version = ?", id, version).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleVersion
	}
	return nil
}

func (r *DeviationRepository) applyFilter(query *gorm.DB, filter DeviationFilter) *gorm.DB {
	if len(filter.Statuses) > 0 {
		query = query.Where("deviation_approvals.status IN ?", filter.Statuses)
	}
	if len(filter.Departments) > 0 {
		query = query.Where("deviation_approvals.department IN ?", filter.Departments)
	}
	if len(filter.Types) > 0 {
		query = query.Where("deviation_approvals.deviation_type IN ?", filter.Types)
	}
	if len(filter.Risks) > 0 {
		query = query.Where("deviation_approvals.quality_risk IN ?", filter.Risks)
	}
	if filter.Search != "" {
		search := "%" + filter.Search + "%"
		query = query.
			Joins("LEFT JOIN deviation_vehicles dv ON dv.deviation_id = deviation_approvals.id").
			Where(`(deviation_approvals.deviation_number ILIKE ?
				OR deviation_approvals.part_name ILIKE ?
				OR deviation_approvals.part_number ILIKE ?
				OR deviation_approvals.description ILIKE ?
				OR deviation_approvals.requested_by ILIKE ?
				OR dv.model ILIKE ?
				OR dv.serial_number ILIKE ?)`,
				search, search, search, search, search, search, search)
	}
	return query
}

func stageColumnPrefix(stage workflow.Stage) string {
	switch stage {
	case workflow.StageRD:
		return "rd"
	case workflow.StageQuality:
		return "quality"
	case workflow.StageProduction:
		return "production"
	case workflow.StageGeneralManager:
		return "gm"
	default:
		return ""
	}
}
