package handler

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"consult-worker/apperrors"
	"consult-worker/dto"
	"consult-worker/service"
)

type ServiceDependencies struct {
	Pipeline *service.Pipeline
}

func TranscriptionJobHandler(ctx context.Context, msg amqp.Delivery, deps ServiceDependencies) error {
	var job dto.TranscriptionJobMessage
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to unmarshal transcription job message")
		return apperrors.NonRetryable(err)
	}

	zerolog.Ctx(ctx).Info().
		Str("job_id", job.JobId.String()).
		Str("recording_id", job.RecordingId).
		Msg("received transcription job message")

	return deps.Pipeline.Process(ctx, job)
}
