package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"consult-worker/apperrors"
	"consult-worker/constant"
	"consult-worker/dto"
	"consult-worker/entities"
	"consult-worker/pkg/cache"
	"consult-worker/pkg/rabbitmq"
	"consult-worker/repository"
	"consult-worker/storage"
)

type RecordingService interface {
	Start(ctx context.Context, req dto.StartRecordingRequest) (string, error)
	UploadChunk(ctx context.Context, recordingId string, sequence int, data []byte) error
	Stop(ctx context.Context, recordingId string, capability dto.Capability, session dto.SessionInfo) (uuid.UUID, error)
	Results(ctx context.Context, recordingId string) (*dto.ResultsResponse, error)
	Delete(ctx context.Context, recordingId string) error
	List(ctx context.Context, status constant.RecordingStatus) ([]dto.RecordingSummary, error)
}

type recordingService struct {
	repo      repository.Repository
	store     storage.Store
	cache     cache.Cache
	publisher rabbitmq.Publisher
	lockTTL   time.Duration
	lockWait  time.Duration
}

func NewRecordingService(
	repo repository.Repository,
	store storage.Store,
	c cache.Cache,
	publisher rabbitmq.Publisher,
	lockTTL, lockWait time.Duration,
) RecordingService {
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	if lockWait <= 0 {
		lockWait = 5 * time.Second
	}
	return &recordingService{
		repo:      repo,
		store:     store,
		cache:     c,
		publisher: publisher,
		lockTTL:   lockTTL,
		lockWait:  lockWait,
	}
}

func folderLockKey(prefix string) string {
	return "lock:folder:" + prefix
}

func folderMarkerKey(prefix string) string {
	return prefix + "/.keep"
}

func (s *recordingService) Start(ctx context.Context, req dto.StartRecordingRequest) (string, error) {
	recordingId := uuid.New().String()

	rec := &entities.Recording{
		ID:     recordingId,
		Status: constant.RecordingStatusRecording,
	}
	if req.PatientName != "" {
		rec.PatientName = &req.PatientName
	}
	if req.PatientID != "" {
		rec.PatientID = &req.PatientID
	}
	if req.VisitType != "" {
		rec.VisitType = &req.VisitType
	}
	if err := s.repo.CreateRecording(ctx, rec); err != nil {
		return "", err
	}

	if err := s.ensureFolder(ctx, storage.RecordingPrefix(recordingId)); err != nil {
		return "", err
	}

	zerolog.Ctx(ctx).Info().Str("recording_id", recordingId).Msg("recording started")
	return recordingId, nil
}

// ensureFolder creates the recording's root folder exactly once even
// under concurrent first use. The multi-step check-then-create sequence
// is protected by the distributed lock.
func (s *recordingService) ensureFolder(ctx context.Context, prefix string) error {
	marker := folderMarkerKey(prefix)

	token, locked := s.cache.AcquireLock(ctx, folderLockKey(prefix), s.lockTTL, s.lockWait)
	if !locked {
		// Lock service degraded; fall through unguarded rather than
		// refuse the recording.
		zerolog.Ctx(ctx).Warn().Str("prefix", prefix).Msg("proceeding without folder lock")
	} else {
		defer s.cache.ReleaseLock(ctx, folderLockKey(prefix), token)
	}

	exists, err := s.store.Exists(ctx, marker)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return s.store.Put(ctx, marker, []byte{}, "application/octet-stream")
}

func (s *recordingService) UploadChunk(ctx context.Context, recordingId string, sequence int, data []byte) error {
	rec, err := s.repo.FindRecordingById(ctx, recordingId)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: recording %s", apperrors.ErrNotFound, recordingId)
		}
		return err
	}
	if rec.Status != constant.RecordingStatusRecording && rec.Status != constant.RecordingStatusInitialized {
		return fmt.Errorf("recording %s is %s, not accepting chunks", recordingId, rec.Status)
	}

	key := storage.ChunkKey(recordingId, sequence)
	if err := s.store.Put(ctx, key, data, "audio/wav"); err != nil {
		return err
	}

	size := int64(len(data))
	chunk := &entities.RecordingChunk{
		ID:          uuid.New(),
		RecordingId: recordingId,
		SequenceNum: sequence,
		ObjectName:  key,
		FileSize:    &size,
		Status:      constant.ChunkStatusUploaded,
	}
	if err := s.repo.CreateRecordingChunk(ctx, chunk); err != nil {
		return err
	}

	zerolog.Ctx(ctx).Debug().
		Str("recording_id", recordingId).
		Int("sequence", sequence).
		Int64("size_bytes", size).
		Msg("chunk stored")
	return nil
}

func (s *recordingService) Stop(ctx context.Context, recordingId string, capability dto.Capability, session dto.SessionInfo) (uuid.UUID, error) {
	rec, err := s.repo.FindRecordingById(ctx, recordingId)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return uuid.Nil, fmt.Errorf("%w: recording %s", apperrors.ErrNotFound, recordingId)
		}
		return uuid.Nil, err
	}
	if rec.Status != constant.RecordingStatusRecording && rec.Status != constant.RecordingStatusInitialized {
		return uuid.Nil, fmt.Errorf("recording %s is %s, cannot stop", recordingId, rec.Status)
	}

	job := &entities.Job{
		ID:          uuid.New(),
		RecordingId: recordingId,
		Status:      constant.JobStatusPending,
	}
	if err := s.repo.CreateJob(ctx, job); err != nil {
		return uuid.Nil, err
	}
	if err := s.repo.UpdateRecordingStatus(ctx, recordingId, constant.RecordingStatusQueued); err != nil {
		return uuid.Nil, err
	}

	msg := dto.TranscriptionJobMessage{
		JobId:       job.ID,
		RecordingId: recordingId,
		Capability:  capability,
		Session:     session,
	}
	if err := s.publisher.Publish(ctx, msg); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("recording_id", recordingId).Msg("failed to enqueue transcription job")
		// Roll the transition back so a later stop can retry; a QUEUED
		// recording with no queue message would be stuck forever.
		if updateErr := s.repo.UpdateStatusJob(ctx, constant.JobStatusFailed, job.ID); updateErr != nil {
			zerolog.Ctx(ctx).Error().Err(updateErr).Str("job_id", job.ID.String()).Msg("failed to mark unpublished job failed")
		}
		if updateErr := s.repo.UpdateRecordingStatus(ctx, recordingId, constant.RecordingStatusRecording); updateErr != nil {
			zerolog.Ctx(ctx).Error().Err(updateErr).Str("recording_id", recordingId).Msg("failed to roll back recording status")
		}
		return uuid.Nil, err
	}

	zerolog.Ctx(ctx).Info().
		Str("recording_id", recordingId).
		Str("job_id", job.ID.String()).
		Msg("transcription job enqueued")
	return job.ID, nil
}

// Results reads the cache first and falls back to the newest result set
// in the blob store.
func (s *recordingService) Results(ctx context.Context, recordingId string) (*dto.ResultsResponse, error) {
	if payload, ok := s.cache.Get(ctx, ResultsCacheKey(recordingId)); ok {
		var entry cachedResults
		if err := json.Unmarshal(payload, &entry); err == nil {
			return &dto.ResultsResponse{
				Transcript: entry.Transcript,
				Summary:    entry.Summary,
				Patient:    entry.Patient,
			}, nil
		}
		zerolog.Ctx(ctx).Warn().Str("recording_id", recordingId).Msg("corrupt cache entry, falling back to store")
	}

	rec, err := s.repo.FindRecordingById(ctx, recordingId)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: recording %s", apperrors.ErrNotFound, recordingId)
		}
		return nil, err
	}

	switch rec.Status {
	case constant.RecordingStatusCompleted:
	case constant.RecordingStatusFailed:
		return nil, fmt.Errorf("%w: recording %s processing failed", apperrors.ErrNotFound, recordingId)
	default:
		return nil, fmt.Errorf("%w: recording %s is %s", apperrors.ErrNotReady, recordingId, rec.Status)
	}

	transcript, err := s.latestResult(ctx, recordingId, "transcript")
	if err != nil {
		return nil, err
	}
	summary, err := s.latestResult(ctx, recordingId, "summary")
	if err != nil {
		return nil, err
	}

	resp := &dto.ResultsResponse{Transcript: transcript, Summary: summary}
	if rec.PatientName != nil || rec.PatientID != nil || rec.VisitType != nil {
		session := &dto.SessionInfo{}
		if rec.PatientName != nil {
			session.PatientName = *rec.PatientName
		}
		if rec.PatientID != nil {
			session.PatientID = *rec.PatientID
		}
		if rec.VisitType != nil {
			session.VisitType = *rec.VisitType
		}
		resp.Patient = session
	}
	return resp, nil
}

// latestResult picks the newest plain-text artifact of the given kind.
// Result keys sort lexicographically by their timestamp suffix.
func (s *recordingService) latestResult(ctx context.Context, recordingId, kind string) (string, error) {
	entries, err := s.store.List(ctx, fmt.Sprintf("%s/%s-", storage.ResultsPrefix(recordingId), kind))
	if err != nil {
		return "", err
	}
	var newest string
	for _, entry := range entries {
		if len(entry.Key) > 4 && entry.Key[len(entry.Key)-4:] == ".txt" && entry.Key > newest {
			newest = entry.Key
		}
	}
	if newest == "" {
		return "", fmt.Errorf("%w: no %s for recording %s", apperrors.ErrNotFound, kind, recordingId)
	}
	data, err := s.store.Get(ctx, newest)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *recordingService) Delete(ctx context.Context, recordingId string) error {
	if err := s.store.DeleteFolder(ctx, storage.RecordingPrefix(recordingId)); err != nil {
		return err
	}
	if err := s.repo.DeleteRecordingChunks(ctx, recordingId); err != nil {
		return err
	}
	if err := s.repo.DeleteRecording(ctx, recordingId); err != nil {
		return err
	}
	_ = s.cache.Delete(ctx, ResultsCacheKey(recordingId), ProgressCacheKey(recordingId))

	zerolog.Ctx(ctx).Info().Str("recording_id", recordingId).Msg("recording deleted")
	return nil
}

func (s *recordingService) List(ctx context.Context, status constant.RecordingStatus) ([]dto.RecordingSummary, error) {
	recordings, err := s.repo.ListRecordings(ctx, status)
	if err != nil {
		return nil, err
	}
	summaries := make([]dto.RecordingSummary, 0, len(recordings))
	for _, rec := range recordings {
		summary := dto.RecordingSummary{
			RecordingId: rec.ID,
			Status:      string(rec.Status),
			CreatedAt:   rec.CreatedAt,
		}
		if rec.PatientName != nil {
			summary.PatientName = *rec.PatientName
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}
