package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"consult-worker/apperrors"
	"consult-worker/audio"
	"consult-worker/constant"
	"consult-worker/dto"
	"consult-worker/format"
	"consult-worker/pkg/cache"
	"consult-worker/repository"
	"consult-worker/speech"
	"consult-worker/storage"
	"consult-worker/summarize"
)

// CapabilityRefresher refreshes an expired capability before the
// pipeline calls out on the user's behalf.
type CapabilityRefresher interface {
	Refresh(ctx context.Context, cap dto.Capability) (dto.Capability, error)
}

// AudioOptimizer canonicalizes raw audio into a temporary optimized
// resource. Satisfied by audio.Optimizer.
type AudioOptimizer interface {
	Optimize(ctx context.Context, raw []byte) (*audio.Optimized, error)
}

type PipelineOptions struct {
	SpeakerRoles     []string
	PhraseHints      []string
	ResultsTTL       time.Duration
	LockTTL          time.Duration
	LockWait         time.Duration
	StagingURIPrefix string
}

// Pipeline drives one queued transcription job through its stage
// sequence: fetch, optimize, upload, transcribe, summarize, persist,
// cache, cleanup. Stages run strictly in order; only cleanup failures
// are absorbed.
type Pipeline struct {
	repo       repository.Repository
	store      storage.Store
	cache      cache.Cache
	speech     speech.Client
	summarizer summarize.Summarizer
	fallback   summarize.Summarizer
	optimizer  AudioOptimizer
	refresher  CapabilityRefresher
	opts       PipelineOptions
}

func NewPipeline(
	repo repository.Repository,
	store storage.Store,
	c cache.Cache,
	speechClient speech.Client,
	summarizer summarize.Summarizer,
	fallback summarize.Summarizer,
	optimizer AudioOptimizer,
	refresher CapabilityRefresher,
	opts PipelineOptions,
) *Pipeline {
	if len(opts.SpeakerRoles) == 0 {
		opts.SpeakerRoles = []string{"Doctor", "Patient"}
	}
	if len(opts.PhraseHints) == 0 {
		opts.PhraseHints = speech.MedicalPhrases
	}
	if opts.ResultsTTL <= 0 {
		opts.ResultsTTL = time.Hour
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 30 * time.Second
	}
	if opts.StagingURIPrefix == "" {
		opts.StagingURIPrefix = "store://"
	}
	return &Pipeline{
		repo:       repo,
		store:      store,
		cache:      c,
		speech:     speechClient,
		summarizer: summarizer,
		fallback:   fallback,
		optimizer:  optimizer,
		refresher:  refresher,
		opts:       opts,
	}
}

func ResultsCacheKey(recordingId string) string {
	return "results:" + recordingId
}

func ProgressCacheKey(recordingId string) string {
	return "progress:" + recordingId
}

func pipelineLockKey(recordingId string) string {
	return "lock:pipeline:" + recordingId
}

type cachedResults struct {
	Transcript string           `json:"transcript"`
	Summary    string           `json:"summary"`
	Patient    *dto.SessionInfo `json:"patient,omitempty"`
}

func (p *Pipeline) Process(ctx context.Context, msg dto.TranscriptionJobMessage) (err error) {
	log := zerolog.Ctx(ctx)
	log.Info().
		Str("job_id", msg.JobId.String()).
		Str("recording_id", msg.RecordingId).
		Msg("processing transcription job")

	job, err := p.repo.FindJobById(ctx, msg.JobId)
	if err != nil {
		log.Error().Err(err).Msg("failed to find job by id")
		return err
	}

	if job.Status != constant.JobStatusPending {
		log.Info().Str("job_id", msg.JobId.String()).Str("status", string(job.Status)).Msg("job is not pending")
		return nil
	}

	// Single-flight per recording: a duplicate submission waits briefly,
	// then bounces back to the queue as retryable.
	token, locked := p.cache.AcquireLock(ctx, pipelineLockKey(msg.RecordingId), p.opts.LockTTL, p.opts.LockWait)
	if !locked {
		log.Warn().Str("recording_id", msg.RecordingId).Msg("another worker holds the pipeline lock")
		return fmt.Errorf("%w: recording %s", apperrors.ErrLockHeld, msg.RecordingId)
	}
	defer p.cache.ReleaseLock(ctx, pipelineLockKey(msg.RecordingId), token)

	if err := p.repo.UpdateStatusJob(ctx, constant.JobStatusProcessing, msg.JobId); err != nil {
		log.Error().Err(err).Msg("failed to update job status")
		return err
	}
	if err := p.repo.UpdateRecordingStatus(ctx, msg.RecordingId, constant.RecordingStatusProcessing); err != nil {
		log.Error().Err(err).Msg("failed to update recording status")
	}

	defer func() {
		if err == nil {
			return
		}
		if updateErr := p.repo.RecordJobFailure(ctx, msg.JobId, err.Error()); updateErr != nil {
			log.Error().Err(updateErr).Msg("failed to record job failure")
		}
		if apperrors.Retryable(err) {
			// Back to pending so the next delivery attempt is accepted.
			if updateErr := p.repo.UpdateStatusJob(ctx, constant.JobStatusPending, msg.JobId); updateErr != nil {
				log.Error().Err(updateErr).Msg("failed to update job status")
			}
			return
		}
		if updateErr := p.repo.UpdateStatusJob(ctx, constant.JobStatusFailed, msg.JobId); updateErr != nil {
			log.Error().Err(updateErr).Msg("failed to update job status")
		}
		if updateErr := p.repo.UpdateRecordingStatus(ctx, msg.RecordingId, constant.RecordingStatusFailed); updateErr != nil {
			log.Error().Err(updateErr).Msg("failed to update recording status")
		}
	}()

	capability, err := p.freshCapability(ctx, msg.Capability)
	if err != nil {
		return err
	}

	p.reportProgress(ctx, msg, constant.StageDispatched)

	// Fetch.
	combined, err := p.fetchAudio(ctx, msg.RecordingId)
	if err != nil {
		return err
	}
	p.reportProgress(ctx, msg, constant.StageFetched)

	// Optimize. The temporary resource is released on every exit path.
	optimized, err := p.optimizer.Optimize(ctx, combined)
	if err != nil {
		return err
	}
	defer optimized.Release(ctx)
	p.reportProgress(ctx, msg, constant.StageOptimized)

	// Upload to staging; key embeds a timestamp so a retry never reuses a
	// stale object.
	stagingKey := storage.StagingKey(msg.RecordingId, time.Now())
	optimizedBytes, err := os.ReadFile(optimized.Path)
	if err != nil {
		return fmt.Errorf("read optimized audio: %w", err)
	}
	if err := p.store.Put(ctx, stagingKey, optimizedBytes, optimized.ContentType); err != nil {
		return fmt.Errorf("upload staging audio: %w", err)
	}
	defer p.cleanupStaging(ctx, stagingKey)
	p.reportProgress(ctx, msg, constant.StageUploaded)

	// Transcribe. The client enforces the operation-level timeout.
	result, err := p.speech.Transcribe(ctx, capability.AccessToken, p.opts.StagingURIPrefix+stagingKey, p.opts.PhraseHints)
	if err != nil {
		return err
	}

	transcript := format.RenderTranscript(result.Words, p.opts.SpeakerRoles)
	if transcript == "" {
		transcript = format.NormalizeWhitespace(result.Transcript)
	}
	log.Info().
		Int("transcript_length", len(transcript)).
		Int("word_count", len(result.Words)).
		Float64("confidence", result.Confidence).
		Msg("transcription completed")
	p.reportProgress(ctx, msg, constant.StageTranscribed)

	// Summarize with fallback. A summarization failure never fails the
	// job and never yields an empty summary.
	summary := p.summarizeWithFallback(ctx, capability.AccessToken, transcript, msg.Session)
	p.reportProgress(ctx, msg, constant.StageSummarized)

	// Persist all four result artifacts under one shared timestamp.
	if err := p.persistResults(ctx, msg, transcript, summary); err != nil {
		return err
	}
	if err := p.repo.MarkRecordingCompleted(ctx, msg.RecordingId, len(transcript), time.Now()); err != nil {
		log.Error().Err(err).Msg("failed to mark recording completed")
		return err
	}
	p.reportProgress(ctx, msg, constant.StagePersisted)

	p.populateCache(ctx, msg, transcript, summary)
	p.reportProgress(ctx, msg, constant.StageCached)

	// Cleanup failures are logged and absorbed: a leaked temporary object
	// is acceptable, a lost result is not.
	p.cleanupChunks(ctx, msg.RecordingId)
	p.reportProgress(ctx, msg, constant.StageCleanedUp)

	if err := p.repo.UpdateStatusJob(ctx, constant.JobStatusCompleted, msg.JobId); err != nil {
		log.Error().Err(err).Msg("failed to update job status")
		return err
	}
	p.reportProgress(ctx, msg, constant.StageDone)

	log.Info().
		Str("job_id", msg.JobId.String()).
		Str("recording_id", msg.RecordingId).
		Int("transcript_length", len(transcript)).
		Msg("transcription job completed")

	return nil
}

func (p *Pipeline) freshCapability(ctx context.Context, capability dto.Capability) (dto.Capability, error) {
	if p.refresher == nil || capability.Expiry.IsZero() || capability.Expiry.After(time.Now()) {
		return capability, nil
	}
	zerolog.Ctx(ctx).Info().Msg("capability expired, refreshing")
	return p.refresher.Refresh(ctx, capability)
}

// fetchAudio returns the recording's combined audio, building it from
// the chunk namespace on first run. A retry after cleanup finds the
// combined object instead; with neither present the job fails cleanly
// with NotFound rather than producing empty audio.
func (p *Pipeline) fetchAudio(ctx context.Context, recordingId string) ([]byte, error) {
	audioKey := storage.AudioKey(recordingId)
	combined, err := p.store.Get(ctx, audioKey)
	if err == nil {
		return combined, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		// Transient storage trouble must stay retryable; only a genuinely
		// absent object sends us down the chunk path.
		return nil, fmt.Errorf("fetch combined audio: %w", err)
	}

	entries, err := p.store.List(ctx, storage.ChunksPrefix(recordingId)+"/")
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no audio for recording %s", apperrors.ErrNotFound, recordingId)
	}

	chunkRows, err := p.repo.GetRecordingChunks(ctx, recordingId)
	if err != nil {
		return nil, err
	}
	sequences := make(map[string]int, len(chunkRows))
	for _, row := range chunkRows {
		sequences[row.ObjectName] = row.SequenceNum
	}

	chunks := make([]audio.Chunk, 0, len(entries))
	for _, entry := range entries {
		data, err := p.store.Get(ctx, entry.Key)
		if err != nil {
			return nil, fmt.Errorf("download chunk %s: %w", entry.Key, err)
		}
		seq, ok := sequences[entry.Key]
		if !ok {
			zerolog.Ctx(ctx).Warn().Str("chunk", entry.Key).Msg("chunk object has no metadata row, skipping")
			continue
		}
		chunks = append(chunks, audio.Chunk{Sequence: seq, Data: data})
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no usable chunks for recording %s", apperrors.ErrNotFound, recordingId)
	}

	combined, err = audio.Combine(chunks)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrAudioOptimizationFailed, err)
	}

	if err := p.store.Put(ctx, audioKey, combined, "audio/wav"); err != nil {
		return nil, fmt.Errorf("persist combined audio: %w", err)
	}
	if err := p.repo.UpdateRecordingChunksStatus(ctx, recordingId, constant.ChunkStatusCombined); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("failed to update chunk statuses")
	}
	return combined, nil
}

func (p *Pipeline) summarizeWithFallback(ctx context.Context, accessToken, transcript string, session dto.SessionInfo) string {
	log := zerolog.Ctx(ctx)
	summary, err := p.summarizer.Summarize(ctx, accessToken, transcript, session)
	if err == nil && summary != "" {
		return summary
	}
	log.Warn().Err(err).Msg("generative summarization failed, using rule-based fallback")

	summary, err = p.fallback.Summarize(ctx, accessToken, transcript, session)
	if err != nil || summary == "" {
		log.Error().Err(err).Msg("fallback summarizer produced nothing")
		return summarize.FailureNotice
	}
	return summary
}

func (p *Pipeline) persistResults(ctx context.Context, msg dto.TranscriptionJobMessage, transcript, summary string) error {
	ts := time.Now().UTC()
	transcriptHTML := format.TranscriptHTML(transcript, msg.Session, p.opts.SpeakerRoles)
	summaryHTML := format.SummaryHTML(summary, msg.Session)

	artifacts := []struct {
		key         string
		data        []byte
		contentType string
	}{
		{storage.ResultKey(msg.RecordingId, "transcript", ts, "txt"), []byte(transcript), "text/plain; charset=utf-8"},
		{storage.ResultKey(msg.RecordingId, "transcript", ts, "html"), []byte(transcriptHTML), "text/html; charset=utf-8"},
		{storage.ResultKey(msg.RecordingId, "summary", ts, "txt"), []byte(summary), "text/plain; charset=utf-8"},
		{storage.ResultKey(msg.RecordingId, "summary", ts, "html"), []byte(summaryHTML), "text/html; charset=utf-8"},
	}

	// The four artifacts have no ordering dependency on each other, only
	// on the summarize stage, so they are written concurrently.
	var wg sync.WaitGroup
	errs := make([]error, len(artifacts))
	for i, artifact := range artifacts {
		wg.Add(1)
		go func(i int, key string, data []byte, contentType string) {
			defer wg.Done()
			errs[i] = p.store.Put(ctx, key, data, contentType)
		}(i, artifact.key, artifact.data, artifact.contentType)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return fmt.Errorf("persist result %s: %w", artifacts[i].key, err)
		}
	}
	return nil
}

func (p *Pipeline) populateCache(ctx context.Context, msg dto.TranscriptionJobMessage, transcript, summary string) {
	entry := cachedResults{Transcript: transcript, Summary: summary}
	if msg.Session != (dto.SessionInfo{}) {
		session := msg.Session
		entry.Patient = &session
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("failed to marshal results for cache")
		return
	}
	if err := p.cache.Set(ctx, ResultsCacheKey(msg.RecordingId), payload, p.opts.ResultsTTL); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("failed to populate results cache")
	}
}

func (p *Pipeline) cleanupStaging(ctx context.Context, stagingKey string) {
	if err := p.store.Delete(ctx, stagingKey); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("staging_key", stagingKey).
			Msgf("%v: staging object leaked", apperrors.ErrCleanupFailed)
	}
}

func (p *Pipeline) cleanupChunks(ctx context.Context, recordingId string) {
	log := zerolog.Ctx(ctx)
	if err := p.store.DeleteFolder(ctx, storage.ChunksPrefix(recordingId)); err != nil {
		log.Warn().Err(err).Str("recording_id", recordingId).
			Msgf("%v: chunk namespace leaked", apperrors.ErrCleanupFailed)
		return
	}
	if err := p.repo.DeleteRecordingChunks(ctx, recordingId); err != nil {
		log.Warn().Err(err).Str("recording_id", recordingId).Msg("failed to delete chunk rows")
	}
}

// reportProgress is advisory telemetry: failures are logged, never fatal.
func (p *Pipeline) reportProgress(ctx context.Context, msg dto.TranscriptionJobMessage, stage constant.Stage) {
	percent := constant.Progress[stage]
	zerolog.Ctx(ctx).Debug().
		Str("recording_id", msg.RecordingId).
		Str("stage", string(stage)).
		Int("percent", percent).
		Msg("pipeline progress")
	if err := p.repo.UpdateJobProgress(ctx, msg.JobId, percent); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("failed to persist job progress")
	}
	_ = p.cache.Set(ctx, ProgressCacheKey(msg.RecordingId), []byte(strconv.Itoa(percent)), p.opts.ResultsTTL)
}
