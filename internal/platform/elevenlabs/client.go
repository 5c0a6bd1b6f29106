package elevenlabs

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/lectoria/storyforge-backend/internal/pkg/httpx"
	"github.com/lectoria/storyforge-backend/internal/platform/logger"
	"github.com/lectoria/storyforge-backend/internal/story"
)

// SynthesisResult is one chunk's worth of narrated audio plus the timing
// metadata the service reports for it. Alignment follows the raw input text,
// NormalizedAlignment the service's normalized rendition of it.
type SynthesisResult struct {
	Audio               []byte
	Alignment           story.Alignment
	NormalizedAlignment story.Alignment
}

// Client synthesizes speech for text chunks. Input per call is capped at
// story.SynthesisChunkLimit characters; callers chunk above that.
type Client interface {
	Synthesize(ctx context.Context, text string) (SynthesisResult, error)
}

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	voiceID    string
	modelID    string
	httpClient *http.Client
	maxRetries int
}

func NewClient(log *logger.Logger) (Client, error) {
	apiKey := strings.TrimSpace(os.Getenv("ELEVENLABS_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("missing ELEVENLABS_API_KEY")
	}

	baseURL := strings.TrimSpace(os.Getenv("ELEVENLABS_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://api.elevenlabs.io"
	}
	baseURL = strings.TrimRight(baseURL, "/")

	voiceID := strings.TrimSpace(os.Getenv("ELEVENLABS_VOICE_ID"))
	if voiceID == "" {
		return nil, fmt.Errorf("missing ELEVENLABS_VOICE_ID")
	}
	modelID := strings.TrimSpace(os.Getenv("ELEVENLABS_MODEL_ID"))
	if modelID == "" {
		modelID = "eleven_multilingual_v2"
	}

	return &client{
		log:        log.With("service", "ElevenLabsClient"),
		baseURL:    baseURL,
		apiKey:     apiKey,
		voiceID:    voiceID,
		modelID:    modelID,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		maxRetries: 2,
	}, nil
}

type ttsHTTPError struct {
	StatusCode int
	Body       string
}

func (e *ttsHTTPError) Error() string {
	return fmt.Sprintf("elevenlabs http %d: %s", e.StatusCode, e.Body)
}

func (e *ttsHTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

type synthesizeRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

type wireAlignment struct {
	Characters     []string  `json:"characters"`
	CharStartTimes []float64 `json:"character_start_times_seconds"`
	CharEndTimes   []float64 `json:"character_end_times_seconds"`
}

type synthesizeResponse struct {
	AudioBase64         string         `json:"audio_base64"`
	Alignment           *wireAlignment `json:"alignment"`
	NormalizedAlignment *wireAlignment `json:"normalized_alignment"`
}

func (c *client) Synthesize(ctx context.Context, text string) (SynthesisResult, error) {
	var out SynthesisResult
	text = strings.TrimSpace(text)
	if text == "" {
		return out, fmt.Errorf("synthesis text required")
	}
	if len(text) > story.SynthesisChunkLimit {
		return out, fmt.Errorf("synthesis text is %d chars, service limit is %d", len(text), story.SynthesisChunkLimit)
	}

	path := fmt.Sprintf("/v1/text-to-speech/%s/with-timestamps?output_format=mp3_44100_128", c.voiceID)
	reqBody := synthesizeRequest{Text: text, ModelID: c.modelID}

	var resp synthesizeResponse
	if err := c.do(ctx, "POST", path, reqBody, &resp); err != nil {
		return out, err
	}

	audio, err := base64.StdEncoding.DecodeString(resp.AudioBase64)
	if err != nil {
		return out, fmt.Errorf("decode audio base64: %w", err)
	}
	if len(audio) == 0 {
		return out, fmt.Errorf("response contains no audio")
	}
	out.Audio = audio
	if resp.Alignment != nil {
		out.Alignment = story.Alignment(*resp.Alignment)
	}
	if resp.NormalizedAlignment != nil {
		out.NormalizedAlignment = story.Alignment(*resp.NormalizedAlignment)
	}
	if out.Alignment.Len() == 0 {
		return out, fmt.Errorf("response missing alignment data")
	}
	if out.NormalizedAlignment.Len() == 0 {
		out.NormalizedAlignment = out.Alignment
	}
	return out, nil
}

func (c *client) do(ctx context.Context, method, path string, body any, out any) error {
	backoff := 1 * time.Second

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		resp, raw, err := c.doOnce(ctx, method, path, body)
		if err == nil {
			if out == nil {
				return nil
			}
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("elevenlabs decode error: %w", uErr)
			}
			return nil
		}

		if !httpx.IsRetryableError(err) || attempt == c.maxRetries {
			return err
		}

		sleepFor := httpx.JitterSleep(httpx.RetryAfterDuration(resp, backoff, 15*time.Second))
		c.log.Warn("ElevenLabs request retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)
		time.Sleep(sleepFor)
		backoff *= 2
	}

	return fmt.Errorf("unreachable retry loop")
}

func (c *client) doOnce(ctx context.Context, method, path string, body any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}

	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &ttsHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}
