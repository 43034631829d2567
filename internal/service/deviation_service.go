package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"deviation-service/internal/model"
	"deviation-service/internal/repository"
	"deviation-service/internal/workflow"
)

type deviationStore interface {
	Create(ctx context.Context, deviation *model.DeviationApproval) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.DeviationApproval, error)
	Patch(ctx context.Context, id uuid.UUID, version int, fields map[string]interface{}) error
	UpdateApproval(ctx context.Context, deviation *model.DeviationApproval, stage workflow.Stage) error
	UpdateRejection(ctx context.Context, deviation *model.DeviationApproval) error
	Delete(ctx context.Context, id uuid.UUID) error
	BulkUpdateStatus(ctx context.Context, ids []uuid.UUID, status workflow.Status, reason, modifiedBy string) (int64, error)
	LogStatusChange(ctx context.Context, entry *model.DeviationStatusLog) error
}

type sequenceStore interface {
	NextNumber(ctx context.Context, year int) (string, error)
}

type DeviationService struct {
	deviations     deviationStore
	sequences      sequenceStore
	maxAttachments int
	now            func() time.Time
}

func NewDeviationService(deviations deviationStore, sequences sequenceStore, maxAttachments int) *DeviationService {
	return &DeviationService{
		deviations:     deviations,
		sequences:      sequences,
		maxAttachments: maxAttachments,
		now:            time.Now,
	}
}

type VehicleInput struct {
	Model         string
	SerialNumber  string
	ChassisNumber string
}

type AttachmentInput struct {
	Name        string
	ContentType string
	Data        []byte
}

type CreateDeviationInput struct {
	PartName           string
	PartNumber         string
	DeviationType      model.DeviationType
	QualityRisk        model.QualityRisk
	Description        string
	ReasonForDeviation string
	ProposedSolution   string
	RequestDate        time.Time
	RequestedBy        string
	Department         string
	Vehicles           []VehicleInput
	Attachments        []AttachmentInput
}

func (s *DeviationService) Create(ctx context.Context, principal model.Principal, input CreateDeviationInput) (*model.DeviationApproval, error) {
	if err := validateCreate(input); err != nil {
		return nil, err
	}
	if len(input.Attachments) > s.maxAttachments {
		return nil, fmt.Errorf("%w: at most %d attachments", ErrInvalidInput, s.maxAttachments)
	}

	number, err := s.sequences.NextNumber(ctx, input.RequestDate.Year())
	if err != nil {
		return nil, fmt.Errorf("issue deviation number: %w", err)
	}

	actor := principal.Actor()
	deviation := &model.DeviationApproval{
		DeviationNumber:    number,
		PartName:           input.PartName,
		PartNumber:         input.PartNumber,
		DeviationType:      input.DeviationType,
		QualityRisk:        input.QualityRisk,
		Description:        input.Description,
		ReasonForDeviation: input.ReasonForDeviation,
		ProposedSolution:   input.ProposedSolution,
		RequestDate:        input.RequestDate,
		RequestedBy:        input.RequestedBy,
		Department:         input.Department,
		Status:             workflow.StatusPending,
		CreatedBy:          actor.DisplayName(),
		LastModifiedBy:     actor.DisplayName(),
		Version:            1,
	}
	for _, v := range input.Vehicles {
		deviation.Vehicles = append(deviation.Vehicles, model.DeviationVehicle{
			Model:         v.Model,
			SerialNumber:  v.SerialNumber,
			ChassisNumber: v.ChassisNumber,
		})
	}
	for _, a := range input.Attachments {
		deviation.Attachments = append(deviation.Attachments, model.DeviationAttachment{
			Name:        a.Name,
			ContentType: a.ContentType,
			Data:        a.Data,
			UploadedBy:  actor.DisplayName(),
		})
	}

	if err := s.deviations.Create(ctx, deviation); err != nil {
		return nil, err
	}

	if err := s.deviations.LogStatusChange(ctx, &model.DeviationStatusLog{
		DeviationID: deviation.ID,
		NewStatus:   workflow.StatusPending,
		Note:        "deviation created",
		ChangedBy:   actor.DisplayName(),
	}); err != nil {
		return nil, err
	}

	return s.deviations.GetByID(ctx, deviation.ID)
}

func (s *DeviationService) Get(ctx context.Context, id uuid.UUID) (*model.DeviationApproval, error) {
	deviation, err := s.deviations.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return deviation, nil
}

type UpdateDeviationInput struct {
	PartName           *string
	PartNumber         *string
	DeviationType      *model.DeviationType
	QualityRisk        *model.QualityRisk
	Description        *string
	ReasonForDeviation *string
	ProposedSolution   *string
	RequestDate        *time.Time
	Department         *string
}

// Update applies a partial patch to the request fields. Workflow state is
// only reachable through Approve, Reject and the bulk override.
func (s *DeviationService) Update(ctx context.Context, principal model.Principal, id uuid.UUID, input UpdateDeviationInput) (*model.DeviationApproval, error) {
	deviation, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	if input.PartName != nil {
		if strings.TrimSpace(*input.PartName) == "" {
			return nil, fmt.Errorf("%w: part_name cannot be empty", ErrInvalidInput)
		}
		fields["part_name"] = *input.PartName
	}
	if input.PartNumber != nil {
		if strings.TrimSpace(*input.PartNumber) == "" {
			return nil, fmt.Errorf("%w: part_number cannot be empty", ErrInvalidInput)
		}
		fields["part_number"] = *input.PartNumber
	}
	if input.DeviationType != nil {
		if !model.ValidDeviationType(*input.DeviationType) {
			return nil, fmt.Errorf("%w: invalid deviation_type", ErrInvalidInput)
		}
		fields["deviation_type"] = *input.DeviationType
	}
	if input.QualityRisk != nil {
		if !model.ValidQualityRisk(*input.QualityRisk) {
			return nil, fmt.Errorf("%w: invalid quality_risk", ErrInvalidInput)
		}
		fields["quality_risk"] = *input.QualityRisk
	}
	if input.Description != nil {
		fields["description"] = *input.Description
	}
	if input.ReasonForDeviation != nil {
		fields["reason_for_deviation"] = *input.ReasonForDeviation
	}
	if input.ProposedSolution != nil {
		fields["proposed_solution"] = *input.ProposedSolution
	}
	if input.RequestDate != nil {
		fields["request_date"] = *input.RequestDate
	}
	if input.Department != nil {
		fields["department"] = *input.Department
	}
	if len(fields) == 0 {
		return deviation, nil
	}
	fields["last_modified_by"] = principal.Actor().DisplayName()

	if err := s.deviations.Patch(ctx, deviation.ID, deviation.Version, fields); err != nil {
		if errors.Is(err, repository.ErrStaleVersion) {
			return nil, fmt.Errorf("%w: record was modified concurrently", ErrConflict)
		}
		return nil, err
	}

	return s.deviations.GetByID(ctx, deviation.ID)
}

// Delete is the administrative removal that bypasses the workflow.
func (s *DeviationService) Delete(ctx context.Context, principal model.Principal, id uuid.UUID) error {
	if !principal.IsAdmin() {
		return ErrPermissionDenied
	}
	if err := s.deviations.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (s *DeviationService) Approve(ctx context.Context, principal model.Principal, id uuid.UUID, stageRaw, comments string) (*model.DeviationApproval, error) {
	stage, err := workflow.ParseStage(stageRaw)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid approval type %q", ErrInvalidInput, stageRaw)
	}
	if !principal.CanSignOff(stage) {
		return nil, ErrPermissionDenied
	}

	deviation, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	next, err := workflow.Approve(deviation.Status, stage)
	if err != nil {
		return nil, mapWorkflowError(err)
	}

	actor := principal.Actor()
	now := s.now()

	record := deviation.StageRecord(stage)
	record.Approved = true
	record.Approver = actor.DisplayName()
	record.ApprovalDate = &now
	record.Comments = comments

	oldStatus := deviation.Status
	deviation.Status = next
	deviation.LastModifiedBy = actor.DisplayName()

	// Completion bookkeeping fires once, on the first transition into
	// final-approved.
	if next == workflow.StatusFinalApproved && deviation.CompletedDate == nil {
		completed := now
		total := int(math.Round(completed.Sub(deviation.CreatedAt).Hours()))
		deviation.CompletedDate = &completed
		deviation.TotalApprovalTime = &total
	}

	if err := s.deviations.UpdateApproval(ctx, deviation, stage); err != nil {
		if errors.Is(err, repository.ErrStaleVersion) {
			return nil, fmt.Errorf("%w: record was modified concurrently", ErrConflict)
		}
		return nil, err
	}

	if err := s.deviations.LogStatusChange(ctx, &model.DeviationStatusLog{
		DeviationID: deviation.ID,
		OldStatus:   &oldStatus,
		NewStatus:   next,
		Note:        fmt.Sprintf("stage %s approved", stage),
		ChangedBy:   actor.DisplayName(),
	}); err != nil {
		return nil, err
	}

	return s.deviations.GetByID(ctx, deviation.ID)
}

func (s *DeviationService) Reject(ctx context.Context, principal model.Principal, id uuid.UUID, reason string) (*model.DeviationApproval, error) {
	if !principal.IsApprover() {
		return nil, ErrPermissionDenied
	}
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("%w: rejection reason is required", ErrInvalidInput)
	}

	deviation, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	next, err := workflow.Reject(deviation.Status)
	if err != nil {
		return nil, mapWorkflowError(err)
	}

	actor := principal.Actor()
	oldStatus := deviation.Status
	deviation.Status = next
	deviation.RejectionReason = reason
	deviation.LastModifiedBy = actor.DisplayName()

	if err := s.deviations.UpdateRejection(ctx, deviation); err != nil {
		if errors.Is(err, repository.ErrStaleVersion) {
			return nil, fmt.Errorf("%w: record was modified concurrently", ErrConflict)
		}
		return nil, err
	}

	if err := s.deviations.LogStatusChange(ctx, &model.DeviationStatusLog{
		DeviationID: deviation.ID,
		OldStatus:   &oldStatus,
		NewStatus:   next,
		Note:        reason,
		ChangedBy:   actor.DisplayName(),
	}); err != nil {
		return nil, err
	}

	return s.deviations.GetByID(ctx, deviation.ID)
}

// BulkUpdateStatus is the privileged override that sets status directly,
// bypassing the state machine. Rejecting in bulk still requires a reason,
// which is stamped on every record.
func (s *DeviationService) BulkUpdateStatus(ctx context.Context, principal model.Principal, ids []uuid.UUID, statusRaw, reason string) (int64, error) {
	if !principal.IsAdmin() {
		return 0, ErrPermissionDenied
	}
	if len(ids) == 0 {
		return 0, fmt.Errorf("%w: ids are required", ErrInvalidInput)
	}
	if !workflow.ValidStatus(statusRaw) {
		return 0, fmt.Errorf("%w: invalid status %q", ErrInvalidInput, statusRaw)
	}
	status := workflow.Status(statusRaw)
	if status == workflow.StatusRejected && strings.TrimSpace(reason) == "" {
		return 0, fmt.Errorf("%w: rejection reason is required", ErrInvalidInput)
	}

	actor := principal.Actor()
	modified, err := s.deviations.BulkUpdateStatus(ctx, ids, status, reason, actor.DisplayName())
	if err != nil {
		return 0, err
	}

	for _, id := range ids {
		if err := s.deviations.LogStatusChange(ctx, &model.DeviationStatusLog{
			DeviationID: id,
			NewStatus:   status,
			Note:        "bulk status override",
			ChangedBy:   actor.DisplayName(),
		}); err != nil {
			return modified, err
		}
	}

	return modified, nil
}

func validateCreate(input CreateDeviationInput) error {
	switch {
	case strings.TrimSpace(input.PartName) == "":
		return fmt.Errorf("%w: part_name is required", ErrInvalidInput)
	case strings.TrimSpace(input.PartNumber) == "":
		return fmt.Errorf("%w: part_number is required", ErrInvalidInput)
	case strings.TrimSpace(input.Description) == "":
		return fmt.Errorf("%w: description is required", ErrInvalidInput)
	case input.RequestDate.IsZero():
		return fmt.Errorf("%w: request_date is required", ErrInvalidInput)
	case strings.TrimSpace(input.RequestedBy) == "":
		return fmt.Errorf("%w: requested_by is required", ErrInvalidInput)
	case strings.TrimSpace(input.Department) == "":
		return fmt.Errorf("%w: department is required", ErrInvalidInput)
	case !model.ValidDeviationType(input.DeviationType):
		return fmt.Errorf("%w: invalid deviation_type", ErrInvalidInput)
	case !model.ValidQualityRisk(input.QualityRisk):
		return fmt.Errorf("%w: invalid quality_risk", ErrInvalidInput)
	}
	return nil
}

func mapWorkflowError(err error) error {
	switch {
	case errors.Is(err, workflow.ErrTerminalState):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	case errors.Is(err, workflow.ErrAlreadyApproved):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	case errors.Is(err, workflow.ErrStageOrder):
		return fmt.Errorf("%w: %v", ErrInvalidStatus, err)
	default:
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
}
