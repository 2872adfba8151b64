package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"consult-worker/constant"
	"consult-worker/entities"
)

type Repository interface {
	Transaction(ctx context.Context, callback func(ctx context.Context) error, opts ...*sql.TxOptions) error
	GetDB() *gorm.DB

	CreateRecording(ctx context.Context, rec *entities.Recording) error
	FindRecordingById(ctx context.Context, id string) (*entities.Recording, error)
	UpdateRecordingStatus(ctx context.Context, id string, status constant.RecordingStatus) error
	MarkRecordingCompleted(ctx context.Context, id string, transcriptLength int, completedAt time.Time) error
	DeleteRecording(ctx context.Context, id string) error
	ListRecordings(ctx context.Context, status constant.RecordingStatus) ([]*entities.Recording, error)

	CreateRecordingChunk(ctx context.Context, chunk *entities.RecordingChunk) error
	GetRecordingChunks(ctx context.Context, recordingId string) ([]*entities.RecordingChunk, error)
	UpdateRecordingChunksStatus(ctx context.Context, recordingId string, status constant.ChunkStatus) error
	DeleteRecordingChunks(ctx context.Context, recordingId string) error

	CreateJob(ctx context.Context, job *entities.Job) error
	FindJobById(ctx context.Context, id uuid.UUID) (*entities.Job, error)
	UpdateStatusJob(ctx context.Context, status constant.JobStatus, id uuid.UUID) error
	UpdateJobProgress(ctx context.Context, id uuid.UUID, progress int) error
	RecordJobFailure(ctx context.Context, id uuid.UUID, cause string) error
}

type repo struct {
	db *gorm.DB
}

func NewRepo(db *sql.DB) Repository {
	gormDB, _ := gorm.Open(postgres.New(postgres.Config{
		Conn: db}),
		&gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		},
	)
	return &repo{
		db: gormDB,
	}
}

func (r *repo) GetDB() *gorm.DB {
	return r.db
}

func (r *repo) Transaction(ctx context.Context, callback func(ctx context.Context) error, opts ...*sql.TxOptions) error {
	return r.GetDB().Transaction(func(tx *gorm.DB) error {
		return callback(ctx)
	}, opts...)
}

func (r *repo) CreateRecording(ctx context.Context, rec *entities.Recording) error {
	return r.GetDB().WithContext(ctx).Create(rec).Error
}

func (r *repo) FindRecordingById(ctx context.Context, id string) (*entities.Recording, error) {
	rec := &entities.Recording{}
	err := r.GetDB().WithContext(ctx).First(rec, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *repo) UpdateRecordingStatus(ctx context.Context, id string, status constant.RecordingStatus) error {
	return r.GetDB().WithContext(ctx).Model(&entities.Recording{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now()}).Error
}

func (r *repo) MarkRecordingCompleted(ctx context.Context, id string, transcriptLength int, completedAt time.Time) error {
	return r.GetDB().WithContext(ctx).Model(&entities.Recording{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":            constant.RecordingStatusCompleted,
			"transcript_length": transcriptLength,
			"completed_at":      completedAt,
			"updated_at":        time.Now(),
		}).Error
}

func (r *repo) DeleteRecording(ctx context.Context, id string) error {
	return r.GetDB().WithContext(ctx).Delete(&entities.Recording{}, "id = ?", id).Error
}

func (r *repo) ListRecordings(ctx context.Context, status constant.RecordingStatus) ([]*entities.Recording, error) {
	var recordings []*entities.Recording
	q := r.GetDB().WithContext(ctx).Order("created_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Find(&recordings).Error; err != nil {
		return nil, err
	}
	return recordings, nil
}

func (r *repo) CreateRecordingChunk(ctx context.Context, chunk *entities.RecordingChunk) error {
	return r.GetDB().WithContext(ctx).Create(chunk).Error
}

func (r *repo) GetRecordingChunks(ctx context.Context, recordingId string) ([]*entities.RecordingChunk, error) {
	var chunks []*entities.RecordingChunk
	err := r.GetDB().WithContext(ctx).
		Where("recording_id = ?", recordingId).
		Order("sequence_num ASC").
		Find(&chunks).Error
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

func (r *repo) UpdateRecordingChunksStatus(ctx context.Context, recordingId string, status constant.ChunkStatus) error {
	return r.GetDB().WithContext(ctx).Model(&entities.RecordingChunk{}).
		Where("recording_id = ?", recordingId).
		Update("status", status).Error
}

func (r *repo) DeleteRecordingChunks(ctx context.Context, recordingId string) error {
	return r.GetDB().WithContext(ctx).
		Delete(&entities.RecordingChunk{}, "recording_id = ?", recordingId).Error
}

func (r *repo) CreateJob(ctx context.Context, job *entities.Job) error {
	return r.GetDB().WithContext(ctx).Create(job).Error
}

func (r *repo) FindJobById(ctx context.Context, id uuid.UUID) (*entities.Job, error) {
	job := &entities.Job{}
	err := r.GetDB().WithContext(ctx).First(job, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (r *repo) UpdateStatusJob(ctx context.Context, status constant.JobStatus, id uuid.UUID) error {
	return r.GetDB().WithContext(ctx).Model(&entities.Job{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now()}).Error
}

func (r *repo) UpdateJobProgress(ctx context.Context, id uuid.UUID, progress int) error {
	return r.GetDB().WithContext(ctx).Model(&entities.Job{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"progress": progress, "updated_at": time.Now()}).Error
}

func (r *repo) RecordJobFailure(ctx context.Context, id uuid.UUID, cause string) error {
	return r.GetDB().WithContext(ctx).Model(&entities.Job{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_error": cause,
			"attempts":   gorm.Expr("attempts + 1"),
			"updated_at": time.Now(),
		}).Error
}
