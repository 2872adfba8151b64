package entities

import (
	"time"

	"consult-worker/constant"
)

type Recording struct {
	ID               string                   `json:"id" gorm:"type:varchar(64);primary_key"`
	Status           constant.RecordingStatus `json:"status" gorm:"type:varchar(20);not null;index:idx_recordings_status"`
	PatientName      *string                  `json:"patient_name" gorm:"type:varchar(255)"`
	PatientID        *string                  `json:"patient_id" gorm:"type:varchar(64)"`
	VisitType        *string                  `json:"visit_type" gorm:"type:varchar(64)"`
	TotalChunks      int                      `json:"total_chunks" gorm:"type:integer;default:0"`
	TranscriptLength *int                     `json:"transcript_length" gorm:"type:integer"`
	CompletedAt      *time.Time               `json:"completed_at" gorm:"type:timestamptz"`
	CreatedAt        time.Time                `json:"created_at" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time                `json:"updated_at" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
}

func (Recording) TableName() string {
	return "recordings"
}
