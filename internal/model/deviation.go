package model

import (
	"time"

	"github.com/google/uuid"

	"deviation-service/internal/workflow"
)

type DeviationType string

const (
	DeviationTypeInputControl   DeviationType = "input-control"
	DeviationTypeProcessControl DeviationType = "process-control"
	DeviationTypeFinalControl   DeviationType = "final-control"
)

func ValidDeviationType(t DeviationType) bool {
	switch t {
	case DeviationTypeInputControl, DeviationTypeProcessControl, DeviationTypeFinalControl:
		return true
	}
	return false
}

type QualityRisk string

const (
	QualityRiskLow      QualityRisk = "low"
	QualityRiskMedium   QualityRisk = "medium"
	QualityRiskHigh     QualityRisk = "high"
	QualityRiskCritical QualityRisk = "critical"
)

func ValidQualityRisk(r QualityRisk) bool {
	switch r {
	case QualityRiskLow, QualityRiskMedium, QualityRiskHigh, QualityRiskCritical:
		return true
	}
	return false
}

// StageApproval is one department's sign-off slot. Embedded four times on
// DeviationApproval with per-stage column prefixes.
type StageApproval struct {
	Approved     bool       `gorm:"not null;default:false" json:"approved"`
	Approver     string     `gorm:"type:varchar(255)" json:"approver"`
	ApprovalDate *time.Time `json:"approval_date,omitempty"`
	Comments     string     `gorm:"type:text" json:"comments,omitempty"`
}

type DeviationApproval struct {
	ID                 uuid.UUID       `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	DeviationNumber    string          `gorm:"type:varchar(16);not null;uniqueIndex" json:"deviation_number"`
	PartName           string          `gorm:"type:varchar(255);not null" json:"part_name"`
	PartNumber         string          `gorm:"type:varchar(128);not null" json:"part_number"`
	DeviationType      DeviationType   `gorm:"type:deviation_type;not null" json:"deviation_type"`
	QualityRisk        QualityRisk     `gorm:"type:quality_risk;not null;default:'low'" json:"quality_risk"`
	Description        string          `gorm:"type:text;not null" json:"description"`
	ReasonForDeviation string          `gorm:"type:text" json:"reason_for_deviation"`
	ProposedSolution   string          `gorm:"type:text" json:"proposed_solution"`
	RequestDate        time.Time       `gorm:"not null" json:"request_date"`
	RequestedBy        string          `gorm:"type:varchar(255);not null" json:"requested_by"`
	Department         string          `gorm:"type:varchar(128);not null" json:"department"`
	Status             workflow.Status `gorm:"type:deviation_status;not null;default:'pending'" json:"status"`
	RejectionReason    string          `gorm:"type:text" json:"rejection_reason,omitempty"`

	RDApproval         StageApproval `gorm:"embedded;embeddedPrefix:rd_" json:"rd_approval"`
	QualityApproval    StageApproval `gorm:"embedded;embeddedPrefix:quality_" json:"quality_approval"`
	ProductionApproval StageApproval `gorm:"embedded;embeddedPrefix:production_" json:"production_approval"`
	GMApproval         StageApproval `gorm:"embedded;embeddedPrefix:gm_" json:"general_manager_approval"`

	CompletedDate     *time.Time `json:"completed_date,omitempty"`
	TotalApprovalTime *int       `gorm:"column:total_approval_time_hours" json:"total_approval_time,omitempty"`
	CreatedBy         string     `gorm:"type:varchar(255)" json:"created_by"`
	LastModifiedBy    string     `gorm:"type:varchar(255)" json:"last_modified_by"`
	Version           int        `gorm:"not null;default:1" json:"version"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	Vehicles    []DeviationVehicle    `gorm:"foreignKey:DeviationID" json:"vehicles"`
	Attachments []DeviationAttachment `gorm:"foreignKey:DeviationID" json:"attachments"`
}

func (DeviationApproval) TableName() string {
	return "deviation_approvals"
}

// StageRecord returns the sign-off slot for a workflow stage.
func (d *DeviationApproval) StageRecord(stage workflow.Stage) *StageApproval {
	switch stage {
	case workflow.StageRD:
		return &d.RDApproval
	case workflow.StageQuality:
		return &d.QualityApproval
	case workflow.StageProduction:
		return &d.ProductionApproval
	case workflow.StageGeneralManager:
		return &d.GMApproval
	default:
		return nil
	}
}

type DeviationVehicle struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	DeviationID   uuid.UUID `gorm:"type:uuid;not null" json:"deviation_id"`
	Model         string    `gorm:"type:varchar(128);not null" json:"model"`
	SerialNumber  string    `gorm:"type:varchar(128);not null" json:"serial_number"`
	ChassisNumber string    `gorm:"type:varchar(128)" json:"chassis_number,omitempty"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (DeviationVehicle) TableName() string {
	return "deviation_vehicles"
}

type DeviationAttachment struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	DeviationID uuid.UUID `gorm:"type:uuid;not null" json:"deviation_id"`
	Name        string    `gorm:"type:varchar(255);not null" json:"name"`
	ContentType string    `gorm:"type:varchar(128)" json:"content_type"`
	Data        []byte    `gorm:"type:bytea" json:"data,omitempty"`
	UploadedBy  string    `gorm:"type:varchar(255)" json:"uploaded_by"`
	UploadDate  time.Time `gorm:"autoCreateTime" json:"upload_date"`
}

func (DeviationAttachment) TableName() string {
	return "deviation_attachments"
}
