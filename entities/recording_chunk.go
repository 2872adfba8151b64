package entities

import (
	"time"

	"github.com/google/uuid"

	"consult-worker/constant"
)

type RecordingChunk struct {
	ID          uuid.UUID            `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	RecordingId string               `json:"recording_id" gorm:"type:varchar(64);not null;index:idx_recording_chunks_recording"`
	SequenceNum int                  `json:"sequence_num" gorm:"not null"`
	ObjectName  string               `json:"object_name" gorm:"type:varchar(500);not null"`
	FileSize    *int64               `json:"file_size" gorm:"type:bigint"`
	Status      constant.ChunkStatus `json:"status" gorm:"type:varchar(20);not null"`
	CreatedAt   time.Time            `json:"created_at" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
}

func (RecordingChunk) TableName() string {
	return "recording_chunks"
}
