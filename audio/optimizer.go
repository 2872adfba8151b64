package audio

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/rs/zerolog"

	"consult-worker/apperrors"
)

// Optimizer canonicalizes raw consultation audio for transcription:
// mono, resampled to 16kHz, band-passed to the speech band, loudness
// normalized, silence trimmed, FLAC compressed. The filter chain is
// fixed, so output is deterministic for identical input.
type Optimizer struct {
	Binary string
}

func NewOptimizer(binary string) *Optimizer {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &Optimizer{Binary: binary}
}

// Optimized is a scoped temporary resource. Callers must invoke Release
// on every exit path.
type Optimized struct {
	Path        string
	ContentType string
	dir         string
}

func (o *Optimized) Release(ctx context.Context) {
	if o == nil || o.dir == "" {
		return
	}
	if err := os.RemoveAll(o.dir); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("dir", o.dir).Msg("failed to remove optimizer temp dir")
	}
	o.dir = ""
}

const filterChain = "highpass=f=200,lowpass=f=3000,dynaudnorm=f=150,silenceremove=start_periods=1:start_threshold=-50dB:stop_periods=-1:stop_threshold=-50dB:stop_duration=2"

// Optimize runs the canonicalization. Failures are fatal to the job and
// never retried: malformed input does not get better on redelivery.
func (o *Optimizer) Optimize(ctx context.Context, raw []byte) (*Optimized, error) {
	dir, err := os.MkdirTemp("", "optimize-*")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrAudioOptimizationFailed, err)
	}

	inputPath := filepath.Join(dir, "input.wav")
	outputPath := filepath.Join(dir, "optimized.flac")

	if err := os.WriteFile(inputPath, raw, 0644); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("%w: %w", apperrors.ErrAudioOptimizationFailed, err)
	}

	args := []string{
		"-i", inputPath,
		"-ac", "1",
		"-ar", "16000",
		"-af", filterChain,
		"-c:a", "flac",
		"-y",
		outputPath,
	}

	cmd := exec.CommandContext(ctx, o.Binary, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		zerolog.Ctx(ctx).Error().
			Err(err).
			Str("ffmpeg_output", string(output)).
			Msg("audio optimization failed")
		os.RemoveAll(dir)
		return nil, fmt.Errorf("%w: %w", apperrors.ErrAudioOptimizationFailed, err)
	}

	return &Optimized{
		Path:        outputPath,
		ContentType: "audio/flac",
		dir:         dir,
	}, nil
}
