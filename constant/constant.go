package constant

type RecordingStatus string

const (
	RecordingStatusInitialized RecordingStatus = "INITIALIZED"
	RecordingStatusRecording   RecordingStatus = "RECORDING"
	RecordingStatusQueued      RecordingStatus = "QUEUED"
	RecordingStatusProcessing  RecordingStatus = "PROCESSING"
	RecordingStatusCompleted   RecordingStatus = "COMPLETED"
	RecordingStatusFailed      RecordingStatus = "FAILED"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusFailed     JobStatus = "FAILED"
	JobStatusCompleted  JobStatus = "COMPLETED"
)

type ChunkStatus string

const (
	ChunkStatusUploaded ChunkStatus = "UPLOADED"
	ChunkStatusCombined ChunkStatus = "COMBINED"
	ChunkStatusFailed   ChunkStatus = "FAILED"
)

// Stage identifies one step of the transcription pipeline. Stages run
// strictly in the order listed; Progress maps each to the percentage
// reported once the stage completes.
type Stage string

const (
	StageDispatched  Stage = "dispatched"
	StageFetched     Stage = "fetched"
	StageOptimized   Stage = "optimized"
	StageUploaded    Stage = "uploaded"
	StageTranscribed Stage = "transcribed"
	StageSummarized  Stage = "summarized"
	StagePersisted   Stage = "persisted"
	StageCached      Stage = "cached"
	StageCleanedUp   Stage = "cleaned_up"
	StageDone        Stage = "done"
)

var Progress = map[Stage]int{
	StageDispatched:  5,
	StageFetched:     20,
	StageOptimized:   30,
	StageUploaded:    40,
	StageTranscribed: 70,
	StageSummarized:  90,
	StagePersisted:   95,
	StageCached:      97,
	StageCleanedUp:   99,
	StageDone:        100,
}

// Storage categories under each recording's prefix.
const (
	CategoryChunks  = "chunks"
	CategoryAudio   = "audio"
	CategoryResults = "results"
	CategoryStaging = "staging"
)

type Environment string

const (
	EnvironmentProduction Environment = "production"
	EnvironmentStaging    Environment = "staging"
	EnvironmentDevelop    Environment = "develop"
)

func (e Environment) String() string {
	return string(e)
}
