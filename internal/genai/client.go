// Package genai talks to the Gemini REST surface: synchronous image edits and
// long-running video generation. It deliberately speaks plain HTTP so tests
// can fake the wire through the injected client.
package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"clearmark/internal/domain"
	"clearmark/internal/infra"
)

// cleanInstruction is the fixed edit prompt sent with every image. The model
// is asked for the image alone so the first inline part is the result.
const cleanInstruction = "Remove all watermarks, overlay text, logos, and timestamps from this image. " +
	"Reconstruct the background naturally where they were. Return ONLY the edited image."

const (
	defaultBaseURL    = "https://generativelanguage.googleapis.com/v1beta"
	defaultImageModel = "gemini-2.5-flash-image"
	defaultVideoModel = "veo-2.0-generate-001"

	defaultPollInterval    = 5 * time.Second
	defaultPollMaxAttempts = 120
	defaultPollDeadline    = 10 * time.Minute
)

// Options controls how the Gemini client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	ImageModel string
	VideoModel string
	HTTPClient *http.Client
	Logger     *infra.Logger

	// Bounds for the video job poll loop. Zero values take the defaults.
	PollInterval    time.Duration
	PollMaxAttempts int
	PollDeadline    time.Duration
}

// Client is a lightweight facade over the Gemini REST API.
type Client struct {
	apiKey     string
	baseURL    string
	imageModel string
	videoModel string
	httpClient *http.Client
	logger     *infra.Logger

	pollInterval    time.Duration
	pollMaxAttempts int
	pollDeadline    time.Duration
}

// InlinePayload is base64 media ready for submission. Data must already be
// stripped of any data URI header.
type InlinePayload struct {
	Data string
	MIME string
}

// EditedImage is the first inline binary part of an edit response.
type EditedImage struct {
	Data []byte
	MIME string
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts,omitempty"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type geminiGenerateContentRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

type geminiGenerateContentResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error"`
}

// NewClient constructs a Gemini client with sane defaults. Callers may provide
// a nil HTTP client; a reusable one with sensible timeouts will be created.
func NewClient(opts Options) (*Client, error) {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	imageModel := opts.ImageModel
	if imageModel == "" {
		imageModel = defaultImageModel
	}
	videoModel := opts.VideoModel
	if videoModel == "" {
		videoModel = defaultVideoModel
	}

	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}

	interval := opts.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	attempts := opts.PollMaxAttempts
	if attempts <= 0 {
		attempts = defaultPollMaxAttempts
	}
	deadline := opts.PollDeadline
	if deadline <= 0 {
		deadline = defaultPollDeadline
	}

	return &Client{
		apiKey:          strings.TrimSpace(opts.APIKey),
		baseURL:         baseURL,
		imageModel:      imageModel,
		videoModel:      videoModel,
		httpClient:      client,
		logger:          logger,
		pollInterval:    interval,
		pollMaxAttempts: attempts,
		pollDeadline:    deadline,
	}, nil
}

// ImageModel returns the configured edit model identifier.
func (c *Client) ImageModel() string {
	return c.imageModel
}

// VideoModel returns the configured video model identifier.
func (c *Client) VideoModel() string {
	return c.videoModel
}

// CleanImage submits the media with the fixed cleaning instruction and
// returns the first inline binary part of the response. A response without
// one fails with domain.ErrNoImageData.
func (c *Client) CleanImage(ctx context.Context, src InlinePayload) (*EditedImage, error) {
	payload := geminiGenerateContentRequest{
		Contents: []geminiContent{{
			Role: "user",
			Parts: []geminiPart{
				{InlineData: &geminiInlineData{MimeType: src.MIME, Data: src.Data}},
				{Text: cleanInstruction},
			},
		}},
	}

	var response geminiGenerateContentResponse
	path := fmt.Sprintf("/models/%s:generateContent", url.PathEscape(c.imageModel))
	if err := c.postJSON(ctx, path, payload, &response); err != nil {
		return nil, err
	}

	for _, candidate := range response.Candidates {
		for _, part := range candidate.Content.Parts {
			inline := part.InlineData
			if inline == nil || inline.Data == "" {
				continue
			}
			data, err := base64.StdEncoding.DecodeString(inline.Data)
			if err != nil {
				return nil, fmt.Errorf("genai: decode inline data: %w", err)
			}
			mime := inline.MimeType
			if mime == "" {
				mime = "image/png"
			}
			c.logger.Debug().
				Str("model", c.imageModel).
				Int("bytes", len(data)).
				Msg("genai: image cleaned")
			return &EditedImage{Data: data, MIME: mime}, nil
		}
	}

	return nil, fmt.Errorf("genai: %w", domain.ErrNoImageData)
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("genai: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("genai: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path), nil)
	if err != nil {
		return fmt.Errorf("genai: create request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	q := req.URL.Query()
	if c.apiKey != "" {
		q.Set("key", c.apiKey)
	}
	req.URL.RawQuery = q.Encode()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("genai: call %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return c.statusError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("genai: decode response: %w", err)
	}
	return nil
}

// statusError surfaces the remote message untouched so callers can propagate
// it verbatim.
func (c *Client) statusError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
	var apiErr geminiErrorResponse
	if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error.Message != "" {
		return fmt.Errorf("genai: status %d: %s", resp.StatusCode, apiErr.Error.Message)
	}
	if text := strings.TrimSpace(string(data)); text != "" {
		return fmt.Errorf("genai: status %d: %s", resp.StatusCode, text)
	}
	return fmt.Errorf("genai: status %d", resp.StatusCode)
}

func (c *Client) endpoint(path string) string {
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}
