// Package speech wraps the long-running speech-recognition service. A
// job submits the staging object URI plus domain phrase hints, then
// polls the returned operation until it completes, fails, or exceeds the
// configured hard timeout.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"consult-worker/apperrors"
)

// Word is one recognized token. SpeakerTag is an opaque integer
// identifying a distinct voice in the diarized output.
type Word struct {
	Word       string  `json:"word"`
	StartSec   float64 `json:"startSec"`
	EndSec     float64 `json:"endSec"`
	SpeakerTag int     `json:"speakerTag"`
}

type Result struct {
	Transcript string  `json:"transcript"`
	Words      []Word  `json:"words"`
	Confidence float64 `json:"confidence"`
}

type Client interface {
	Transcribe(ctx context.Context, accessToken, mediaURI string, hints []string) (*Result, error)
}

type Config struct {
	URL              string
	APIKey           string
	OperationTimeout time.Duration
	PollInterval     time.Duration
}

type httpClient struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) Client {
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = 10 * time.Minute
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 3 * time.Second
	}
	return &httpClient{
		cfg:  cfg,
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

type submitRequest struct {
	URI               string   `json:"uri"`
	LanguageCode      string   `json:"languageCode"`
	EnableDiarization bool     `json:"enableDiarization"`
	EnableWordOffsets bool     `json:"enableWordOffsets"`
	PhraseHints       []string `json:"phraseHints,omitempty"`
}

type submitResponse struct {
	OperationId string `json:"operationId"`
}

type operationResponse struct {
	Done   bool    `json:"done"`
	Error  string  `json:"error,omitempty"`
	Result *Result `json:"result,omitempty"`
}

func (c *httpClient) Transcribe(ctx context.Context, accessToken, mediaURI string, hints []string) (*Result, error) {
	log := zerolog.Ctx(ctx)

	opId, err := c.submit(ctx, accessToken, mediaURI, hints)
	if err != nil {
		return nil, err
	}
	log.Info().Str("operation_id", opId).Str("media_uri", mediaURI).Msg("transcription operation submitted")

	deadline := time.Now().Add(c.cfg.OperationTimeout)
	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", apperrors.ErrTranscriptionFailed, ctx.Err())
		case <-time.After(c.cfg.PollInterval):
		}

		op, err := c.poll(ctx, accessToken, opId)
		if err != nil {
			return nil, err
		}
		if op.Done {
			if op.Error != "" {
				return nil, fmt.Errorf("%w: %s", apperrors.ErrTranscriptionFailed, op.Error)
			}
			if op.Result == nil {
				return nil, fmt.Errorf("%w: operation finished without a result", apperrors.ErrTranscriptionFailed)
			}
			return op.Result, nil
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: operation %s exceeded %s", apperrors.ErrTranscriptionTimeout, opId, c.cfg.OperationTimeout)
		}
	}
}

func (c *httpClient) submit(ctx context.Context, accessToken, mediaURI string, hints []string) (string, error) {
	body, _ := json.Marshal(submitRequest{
		URI:               mediaURI,
		LanguageCode:      "en-US",
		EnableDiarization: true,
		EnableWordOffsets: true,
		PhraseHints:       hints,
	})

	endpoint := strings.TrimRight(c.cfg.URL, "/") + "/v1/speech:longrunningrecognize"
	var resp submitResponse
	if err := c.doJSON(ctx, http.MethodPost, endpoint, accessToken, body, &resp); err != nil {
		return "", err
	}
	if resp.OperationId == "" {
		return "", fmt.Errorf("%w: empty operation id", apperrors.ErrTranscriptionFailed)
	}
	return resp.OperationId, nil
}

func (c *httpClient) poll(ctx context.Context, accessToken, opId string) (*operationResponse, error) {
	endpoint := fmt.Sprintf("%s/v1/operations/%s", strings.TrimRight(c.cfg.URL, "/"), opId)
	var resp operationResponse
	if err := c.doJSON(ctx, http.MethodGet, endpoint, accessToken, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// doJSON performs one request with retries on transient server errors.
// 401/403 surface as Unauthorized immediately so the caller can refresh.
func (c *httpClient) doJSON(ctx context.Context, method, endpoint, accessToken string, body []byte, target any) error {
	operation := func() (struct{}, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+accessToken)
		if c.cfg.APIKey != "" {
			req.Header.Set("X-Api-Key", c.cfg.APIKey)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return struct{}{}, err
		}
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return struct{}{}, backoff.Permanent(fmt.Errorf("%w: speech service returned %d", apperrors.ErrUnauthorized, resp.StatusCode))
		case resp.StatusCode >= 500:
			return struct{}{}, fmt.Errorf("speech server error %d: %s", resp.StatusCode, string(respBody))
		case resp.StatusCode >= 300:
			return struct{}{}, backoff.Permanent(fmt.Errorf("%w: http %d: %s", apperrors.ErrTranscriptionFailed, resp.StatusCode, string(respBody)))
		}

		if err := json.Unmarshal(respBody, target); err != nil {
			return struct{}{}, fmt.Errorf("decode speech response: %w", err)
		}
		return struct{}{}, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = 5 * time.Second
	_, err := backoff.Retry(ctx, operation, backoff.WithBackOff(bo), backoff.WithMaxTries(4))
	if err != nil {
		if apperrors.Retryable(err) {
			return fmt.Errorf("%w: %w", apperrors.ErrTranscriptionFailed, err)
		}
		return err
	}
	return nil
}
