package dto

import (
	"time"

	"github.com/google/uuid"
)

// Capability is the token pair scoping storage and AI calls to the
// recording's owner.
type Capability struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
}

// SessionInfo carries optional patient and visit metadata supplied at
// start or stop time.
type SessionInfo struct {
	PatientName string `json:"patientName,omitempty"`
	PatientID   string `json:"patientId,omitempty"`
	VisitType   string `json:"visitType,omitempty"`
}

// TranscriptionJobMessage is the unit of queued work.
type TranscriptionJobMessage struct {
	JobId       uuid.UUID   `json:"jobId"`
	RecordingId string      `json:"recordingId"`
	Capability  Capability  `json:"capability"`
	Session     SessionInfo `json:"session"`
}

type StartRecordingRequest struct {
	PatientName string `json:"patientName"`
	PatientID   string `json:"patientId"`
	VisitType   string `json:"visitType"`
}

type StartRecordingResponse struct {
	RecordingId string `json:"recordingId"`
}

type StopRecordingRequest struct {
	Session SessionInfo `json:"session"`
}

type ResultsResponse struct {
	Transcript string       `json:"transcript"`
	Summary    string       `json:"summary"`
	Patient    *SessionInfo `json:"patient,omitempty"`
}

type RecordingSummary struct {
	RecordingId string    `json:"recordingId"`
	Status      string    `json:"status"`
	PatientName string    `json:"patientName,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}
