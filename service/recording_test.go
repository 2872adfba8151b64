package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"consult-worker/apperrors"
	"consult-worker/constant"
	"consult-worker/dto"
	"consult-worker/entities"
	"consult-worker/pkg/cache"
	"consult-worker/storage"
)

type fakePublisher struct {
	published []any
	err       error
}

func (f *fakePublisher) Publish(ctx context.Context, payload any) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, payload)
	return nil
}

func newRecordingService(t *testing.T) (*fakeRepo, *storage.MemoryStore, *cache.MemoryCache, *fakePublisher, RecordingService) {
	t.Helper()
	repo := newFakeRepo()
	store := storage.NewMemoryStore()
	c := cache.NewMemoryCache()
	pub := &fakePublisher{}
	svc := NewRecordingService(repo, store, c, pub, time.Second, 100*time.Millisecond)
	return repo, store, c, pub, svc
}

func TestStartCreatesRecordingAndFolder(t *testing.T) {
	ctx := context.Background()
	repo, store, _, _, svc := newRecordingService(t)

	id, err := svc.Start(ctx, dto.StartRecordingRequest{PatientName: "Jane Doe", VisitType: "intake"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	rec, err := repo.FindRecordingById(ctx, id)
	if err != nil {
		t.Fatalf("recording row missing: %v", err)
	}
	if rec.Status != constant.RecordingStatusRecording {
		t.Fatalf("status %s", rec.Status)
	}
	if rec.PatientName == nil || *rec.PatientName != "Jane Doe" {
		t.Fatalf("patient name: %+v", rec.PatientName)
	}
	if ok, _ := store.Exists(ctx, id+"/.keep"); !ok {
		t.Fatal("folder marker not created")
	}
}

func TestUploadChunkPersistsObjectAndRow(t *testing.T) {
	ctx := context.Background()
	repo, store, _, _, svc := newRecordingService(t)
	id, _ := svc.Start(ctx, dto.StartRecordingRequest{})

	if err := svc.UploadChunk(ctx, id, 4, []byte("riff-bytes")); err != nil {
		t.Fatalf("upload chunk: %v", err)
	}

	if ok, _ := store.Exists(ctx, storage.ChunkKey(id, 4)); !ok {
		t.Fatal("chunk object missing")
	}
	rows, _ := repo.GetRecordingChunks(ctx, id)
	if len(rows) != 1 || rows[0].SequenceNum != 4 || rows[0].Status != constant.ChunkStatusUploaded {
		t.Fatalf("chunk rows: %+v", rows)
	}
}

func TestUploadChunkUnknownRecording(t *testing.T) {
	_, _, _, _, svc := newRecordingService(t)
	err := svc.UploadChunk(context.Background(), "no-such-recording", 0, []byte("x"))
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestUploadChunkRejectedAfterStop(t *testing.T) {
	ctx := context.Background()
	_, _, _, _, svc := newRecordingService(t)
	id, _ := svc.Start(ctx, dto.StartRecordingRequest{})
	if _, err := svc.Stop(ctx, id, dto.Capability{AccessToken: "tok"}, dto.SessionInfo{}); err != nil {
		t.Fatalf("stop: %v", err)
	}

	if err := svc.UploadChunk(ctx, id, 0, []byte("late")); err == nil {
		t.Fatal("chunks after stop must be rejected")
	}
}

func TestStopQueuesJobAndPublishes(t *testing.T) {
	ctx := context.Background()
	repo, _, _, pub, svc := newRecordingService(t)
	id, _ := svc.Start(ctx, dto.StartRecordingRequest{})

	session := dto.SessionInfo{PatientName: "Jane Doe"}
	jobId, err := svc.Stop(ctx, id, dto.Capability{AccessToken: "tok"}, session)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if jobId == uuid.Nil {
		t.Fatal("stop returned nil job id")
	}

	job, err := repo.FindJobById(ctx, jobId)
	if err != nil || job.Status != constant.JobStatusPending {
		t.Fatalf("job row: %+v, %v", job, err)
	}
	if got := repo.recordingStatus(id); got != constant.RecordingStatusQueued {
		t.Fatalf("recording status %s", got)
	}

	if len(pub.published) != 1 {
		t.Fatalf("published %d messages", len(pub.published))
	}
	msg, ok := pub.published[0].(dto.TranscriptionJobMessage)
	if !ok {
		t.Fatalf("published payload %T", pub.published[0])
	}
	if msg.JobId != jobId || msg.RecordingId != id || msg.Capability.AccessToken != "tok" {
		t.Fatalf("message: %+v", msg)
	}
	if msg.Session != session {
		t.Fatalf("session not forwarded: %+v", msg.Session)
	}
}

func TestStopPublishFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	repo, _, _, pub, svc := newRecordingService(t)
	id, _ := svc.Start(ctx, dto.StartRecordingRequest{})

	pub.err = errors.New("broker unavailable")
	if _, err := svc.Stop(ctx, id, dto.Capability{}, dto.SessionInfo{}); err == nil {
		t.Fatal("stop must fail when publish fails")
	}
	if got := repo.recordingStatus(id); got != constant.RecordingStatusRecording {
		t.Fatalf("recording should roll back to RECORDING, got %s", got)
	}
	for _, job := range repo.jobs {
		if job.RecordingId == id && job.Status != constant.JobStatusFailed {
			t.Fatalf("unpublished job should be FAILED, got %s", job.Status)
		}
	}

	// Once the broker recovers a retried stop must go through.
	pub.err = nil
	jobId, err := svc.Stop(ctx, id, dto.Capability{}, dto.SessionInfo{})
	if err != nil {
		t.Fatalf("retried stop: %v", err)
	}
	if jobId == uuid.Nil || len(pub.published) != 1 {
		t.Fatalf("retried stop did not enqueue: jobId=%s published=%d", jobId, len(pub.published))
	}
	if got := repo.recordingStatus(id); got != constant.RecordingStatusQueued {
		t.Fatalf("recording status %s", got)
	}
}

func TestStopTwiceFails(t *testing.T) {
	ctx := context.Background()
	_, _, _, _, svc := newRecordingService(t)
	id, _ := svc.Start(ctx, dto.StartRecordingRequest{})
	if _, err := svc.Stop(ctx, id, dto.Capability{}, dto.SessionInfo{}); err != nil {
		t.Fatalf("first stop: %v", err)
	}
	if _, err := svc.Stop(ctx, id, dto.Capability{}, dto.SessionInfo{}); err == nil {
		t.Fatal("second stop must fail")
	}
}

func TestResultsServedFromCache(t *testing.T) {
	ctx := context.Background()
	_, _, c, _, svc := newRecordingService(t)

	c.Set(ctx, ResultsCacheKey("rec-c"), []byte(`{"transcript":"Doctor: hi","summary":"# Plan\n- rest"}`), time.Minute)

	resp, err := svc.Results(ctx, "rec-c")
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if resp.Transcript != "Doctor: hi" || resp.Summary != "# Plan\n- rest" {
		t.Fatalf("response: %+v", resp)
	}
}

func TestResultsNotReadyWhileProcessing(t *testing.T) {
	ctx := context.Background()
	repo, _, _, _, svc := newRecordingService(t)
	repo.CreateRecording(ctx, &entities.Recording{ID: "rec-p", Status: constant.RecordingStatusProcessing})

	_, err := svc.Results(ctx, "rec-p")
	if !errors.Is(err, apperrors.ErrNotReady) {
		t.Fatalf("want ErrNotReady, got %v", err)
	}
}

func TestResultsUnknownRecording(t *testing.T) {
	_, _, _, _, svc := newRecordingService(t)
	_, err := svc.Results(context.Background(), "rec-missing")
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestResultsFailedRecordingReportsNotFound(t *testing.T) {
	ctx := context.Background()
	repo, _, _, _, svc := newRecordingService(t)
	repo.CreateRecording(ctx, &entities.Recording{ID: "rec-f", Status: constant.RecordingStatusFailed})

	_, err := svc.Results(ctx, "rec-f")
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestResultsFallsBackToNewestStoredSet(t *testing.T) {
	ctx := context.Background()
	repo, store, _, _, svc := newRecordingService(t)
	name := "Jane Doe"
	repo.CreateRecording(ctx, &entities.Recording{
		ID: "rec-s", Status: constant.RecordingStatusCompleted, PatientName: &name,
	})

	older := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)
	store.Put(ctx, storage.ResultKey("rec-s", "transcript", older, "txt"), []byte("old transcript"), "text/plain")
	store.Put(ctx, storage.ResultKey("rec-s", "transcript", newer, "txt"), []byte("new transcript"), "text/plain")
	store.Put(ctx, storage.ResultKey("rec-s", "summary", newer, "txt"), []byte("new summary"), "text/plain")
	store.Put(ctx, storage.ResultKey("rec-s", "summary", newer, "html"), []byte("<html>"), "text/html")

	resp, err := svc.Results(ctx, "rec-s")
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if resp.Transcript != "new transcript" || resp.Summary != "new summary" {
		t.Fatalf("response: %+v", resp)
	}
	if resp.Patient == nil || resp.Patient.PatientName != "Jane Doe" {
		t.Fatalf("patient: %+v", resp.Patient)
	}
}

func TestDeleteRemovesEverything(t *testing.T) {
	ctx := context.Background()
	repo, store, c, _, svc := newRecordingService(t)
	id, _ := svc.Start(ctx, dto.StartRecordingRequest{})
	svc.UploadChunk(ctx, id, 0, []byte("chunk"))
	c.Set(ctx, ResultsCacheKey(id), []byte("{}"), time.Minute)

	if err := svc.Delete(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := repo.FindRecordingById(ctx, id); err == nil {
		t.Fatal("recording row should be gone")
	}
	if entries, _ := store.List(ctx, id+"/"); len(entries) != 0 {
		t.Fatalf("blob namespace should be empty, got %v", entries)
	}
	if _, ok := c.Get(ctx, ResultsCacheKey(id)); ok {
		t.Fatal("results cache entry should be gone")
	}
}

func TestListFiltersByStatus(t *testing.T) {
	ctx := context.Background()
	repo, _, _, _, svc := newRecordingService(t)
	repo.CreateRecording(ctx, &entities.Recording{ID: "a", Status: constant.RecordingStatusCompleted})
	repo.CreateRecording(ctx, &entities.Recording{ID: "b", Status: constant.RecordingStatusRecording})

	all, err := svc.List(ctx, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("want 2 recordings, got %d", len(all))
	}

	done, err := svc.List(ctx, constant.RecordingStatusCompleted)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(done) != 1 || done[0].RecordingId != "a" {
		t.Fatalf("filtered list: %+v", done)
	}
}
