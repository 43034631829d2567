package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"deviation-service/internal/workflow"
)

type DeviationStatusLog struct {
	ID          uuid.UUID        `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	DeviationID uuid.UUID        `gorm:"type:uuid;not null" json:"deviation_id"`
	OldStatus   *workflow.Status `gorm:"type:deviation_status" json:"old_status"`
	NewStatus   workflow.Status  `gorm:"type:deviation_status;not null" json:"new_status"`
	Note        string           `gorm:"type:text" json:"note"`
	ChangedBy   string           `gorm:"type:varchar(255);not null" json:"changed_by"`
	CreatedAt   time.Time        `gorm:"autoCreateTime" json:"created_at"`
}

func (DeviationStatusLog) TableName() string {
	return "deviation_status_log"
}

func (l *DeviationStatusLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
