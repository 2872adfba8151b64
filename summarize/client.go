// Package summarize produces the structured consultation summary: a
// generative model when it cooperates, a deterministic keyword extractor
// when it does not.
package summarize

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

	"consult-worker/apperrors"
	"consult-worker/dto"
)

type Summarizer interface {
	Summarize(ctx context.Context, accessToken, transcript string, session dto.SessionInfo) (string, error)
}

type Config struct {
	URL      string
	APIKey   string
	Model    string
	Sections []string
}

type client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) Summarizer {
	return &client{
		cfg:  cfg,
		http: &http.Client{Timeout: 60 * time.Second},
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *client) Summarize(ctx context.Context, accessToken, transcript string, session dto.SessionInfo) (string, error) {
	prompt := BuildPrompt(transcript, session, c.cfg.Sections)
	body, _ := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
		Temperature: 0.0,
	})

	operation := func() (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
		if err != nil {
			return "", backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		if accessToken != "" {
			req.Header.Set("Authorization", "Bearer "+accessToken)
		} else {
			req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return "", backoff.Permanent(fmt.Errorf("%w: model service returned %d", apperrors.ErrUnauthorized, resp.StatusCode))
		case resp.StatusCode >= 500:
			return "", fmt.Errorf("model server error %d: %s", resp.StatusCode, string(respBody))
		case resp.StatusCode >= 300:
			return "", backoff.Permanent(fmt.Errorf("model http %d: %s", resp.StatusCode, string(respBody)))
		}

		var parsed chatResponse
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			return "", fmt.Errorf("decode model response: %w", err)
		}
		if len(parsed.Choices) == 0 {
			return "", backoff.Permanent(fmt.Errorf("model returned no choices"))
		}
		content := strings.TrimSpace(parsed.Choices[0].Message.Content)
		if content == "" {
			return "", backoff.Permanent(fmt.Errorf("model returned empty content"))
		}
		return content, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = 5 * time.Second
	content, err := backoff.Retry(ctx, operation, backoff.WithBackOff(bo), backoff.WithMaxTries(3))
	if err != nil {
		return "", fmt.Errorf("%w: %w", apperrors.ErrSummarizationFailed, err)
	}
	return content, nil
}
