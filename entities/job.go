package entities

import (
	"time"

	"github.com/google/uuid"

	"consult-worker/constant"
)

type Job struct {
	ID          uuid.UUID          `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	RecordingId string             `json:"recording_id" gorm:"type:varchar(64);not null;index:idx_jobs_recording"`
	Status      constant.JobStatus `json:"status" gorm:"type:varchar(20);not null"`
	Progress    int                `json:"progress" gorm:"type:integer;default:0"`
	Attempts    int                `json:"attempts" gorm:"type:integer;default:0"`
	LastError   *string            `json:"last_error" gorm:"type:text"`
	CreatedAt   time.Time          `json:"created_at" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time          `json:"updated_at" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
}

func (Job) TableName() string {
	return "jobs"
}
