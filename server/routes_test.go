package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"consult-worker/apperrors"
	"consult-worker/constant"
	"consult-worker/dto"
)

type stubRecordings struct {
	startId    string
	startErr   error
	uploadErr  error
	stopJobId  uuid.UUID
	stopErr    error
	results    *dto.ResultsResponse
	resultsErr error
	deleteErr  error
	list       []dto.RecordingSummary

	lastChunk    []byte
	lastSequence int
	lastCap      dto.Capability
	lastStatus   constant.RecordingStatus
}

func (s *stubRecordings) Start(ctx context.Context, req dto.StartRecordingRequest) (string, error) {
	return s.startId, s.startErr
}

func (s *stubRecordings) UploadChunk(ctx context.Context, recordingId string, sequence int, data []byte) error {
	s.lastSequence = sequence
	s.lastChunk = data
	return s.uploadErr
}

func (s *stubRecordings) Stop(ctx context.Context, recordingId string, capability dto.Capability, session dto.SessionInfo) (uuid.UUID, error) {
	s.lastCap = capability
	return s.stopJobId, s.stopErr
}

func (s *stubRecordings) Results(ctx context.Context, recordingId string) (*dto.ResultsResponse, error) {
	return s.results, s.resultsErr
}

func (s *stubRecordings) Delete(ctx context.Context, recordingId string) error {
	return s.deleteErr
}

func (s *stubRecordings) List(ctx context.Context, status constant.RecordingStatus) ([]dto.RecordingSummary, error) {
	s.lastStatus = status
	return s.list, nil
}

func newTestRouter(stub *stubRecordings) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	addRecordingRoutes(context.Background(), r, stub)
	return r
}

func TestStartEndpoint(t *testing.T) {
	stub := &stubRecordings{startId: "rec-1"}
	r := newTestRouter(stub)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/recordings", strings.NewReader(`{"patientName":"Jane Doe"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var resp dto.StartRecordingResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.RecordingId != "rec-1" {
		t.Fatalf("response: %+v", resp)
	}
}

func TestUploadChunkEndpoint(t *testing.T) {
	stub := &stubRecordings{}
	r := newTestRouter(stub)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/v1/recordings/rec-1/chunks/7", bytes.NewReader([]byte("wav-bytes")))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	if stub.lastSequence != 7 || string(stub.lastChunk) != "wav-bytes" {
		t.Fatalf("service saw seq=%d data=%q", stub.lastSequence, stub.lastChunk)
	}
}

func TestUploadChunkRejectsBadSequence(t *testing.T) {
	r := newTestRouter(&stubRecordings{})

	for _, seq := range []string{"abc", "-1"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPut, "/api/v1/recordings/rec-1/chunks/"+seq, bytes.NewReader([]byte("x")))
		r.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("seq %q: status %d", seq, w.Code)
		}
	}
}

func TestUploadChunkRejectsEmptyBody(t *testing.T) {
	r := newTestRouter(&stubRecordings{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/v1/recordings/rec-1/chunks/0", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d", w.Code)
	}
}

func TestStopEndpointForwardsCapability(t *testing.T) {
	stub := &stubRecordings{stopJobId: uuid.New()}
	r := newTestRouter(stub)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/recordings/rec-1/stop", strings.NewReader(`{"session":{"patientName":"Jane Doe"}}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer access-123")
	req.Header.Set("X-Refresh-Token", "refresh-456")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	if stub.lastCap.AccessToken != "access-123" || stub.lastCap.RefreshToken != "refresh-456" {
		t.Fatalf("capability: %+v", stub.lastCap)
	}
	if !strings.Contains(w.Body.String(), stub.stopJobId.String()) {
		t.Fatalf("body missing job id: %s", w.Body.String())
	}
}

func TestResultsEndpointStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("%w: recording x", apperrors.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: recording x is PROCESSING", apperrors.ErrNotReady), http.StatusConflict},
		{fmt.Errorf("%w: token expired", apperrors.ErrUnauthorized), http.StatusUnauthorized},
		{fmt.Errorf("disk on fire"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		r := newTestRouter(&stubRecordings{resultsErr: c.err})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/recordings/rec-1/results", nil))
		if w.Code != c.code {
			t.Errorf("%v: status %d, want %d", c.err, w.Code, c.code)
		}
	}
}

func TestResultsEndpointSuccess(t *testing.T) {
	stub := &stubRecordings{results: &dto.ResultsResponse{Transcript: "Doctor: hi", Summary: "# Plan"}}
	r := newTestRouter(stub)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/recordings/rec-1/results", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	var resp dto.ResultsResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Transcript != "Doctor: hi" {
		t.Fatalf("response: %+v", resp)
	}
}

func TestListEndpointUppercasesStatusFilter(t *testing.T) {
	stub := &stubRecordings{list: []dto.RecordingSummary{{RecordingId: "a", Status: "COMPLETED"}}}
	r := newTestRouter(stub)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/recordings?status=completed", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if stub.lastStatus != constant.RecordingStatusCompleted {
		t.Fatalf("status filter %q", stub.lastStatus)
	}
}

func TestUploadChunkEndpointMultipart(t *testing.T) {
	stub := &stubRecordings{}
	r := newTestRouter(stub)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("chunk", "chunk-000002.wav")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	part.Write([]byte("wav-bytes"))
	mw.Close()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/v1/recordings/rec-1/chunks/2", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	if stub.lastSequence != 2 || string(stub.lastChunk) != "wav-bytes" {
		t.Fatalf("service saw seq=%d data=%q", stub.lastSequence, stub.lastChunk)
	}
}
