package genai

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"clearmark/internal/domain"
)

// animateInstruction is the fixed prompt submitted with the cleaned reference
// frame.
const animateInstruction = "animate this scene naturally, cinematic movement"

// VideoOperation is the handle of a long-running video job. Polling replaces
// it with a refreshed copy each round; URI is populated once the remote side
// reports a rendered sample.
type VideoOperation struct {
	Name string
	Done bool
	URI  string
}

// VideoResult is the downloaded rendering.
type VideoResult struct {
	Data []byte
	MIME string
}

type veoPredictRequest struct {
	Instances  []veoInstance `json:"instances"`
	Parameters veoParameters `json:"parameters"`
}

type veoInstance struct {
	Prompt string    `json:"prompt"`
	Image  *veoImage `json:"image,omitempty"`
}

type veoImage struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
	MimeType           string `json:"mimeType"`
}

type veoParameters struct {
	NumberOfVideos int    `json:"numberOfVideos"`
	Resolution     string `json:"resolution,omitempty"`
	AspectRatio    string `json:"aspectRatio,omitempty"`
}

type veoOperation struct {
	Name     string             `json:"name"`
	Done     bool               `json:"done"`
	Error    *veoOperationError `json:"error,omitempty"`
	Response *veoOperationBody  `json:"response,omitempty"`
}

type veoOperationError struct {
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

type veoOperationBody struct {
	GenerateVideoResponse *veoGenerateVideoResponse `json:"generateVideoResponse,omitempty"`
}

type veoGenerateVideoResponse struct {
	GeneratedSamples []veoGeneratedSample `json:"generatedSamples,omitempty"`
}

type veoGeneratedSample struct {
	Video *veoVideo `json:"video,omitempty"`
}

type veoVideo struct {
	URI string `json:"uri,omitempty"`
}

// SubmitVideoJob starts a one-output SD landscape rendering animated from the
// reference image and returns the operation handle to poll.
func (c *Client) SubmitVideoJob(ctx context.Context, ref InlinePayload) (*VideoOperation, error) {
	payload := veoPredictRequest{
		Instances: []veoInstance{{
			Prompt: animateInstruction,
			Image:  &veoImage{BytesBase64Encoded: ref.Data, MimeType: ref.MIME},
		}},
		Parameters: veoParameters{
			NumberOfVideos: 1,
			Resolution:     "720p",
			AspectRatio:    "16:9",
		},
	}

	var op veoOperation
	path := fmt.Sprintf("/models/%s:predictLongRunning", url.PathEscape(c.videoModel))
	if err := c.postJSON(ctx, path, payload, &op); err != nil {
		return nil, err
	}
	if op.Name == "" {
		return nil, fmt.Errorf("genai: video job submission returned no operation name")
	}
	c.logger.Info().Str("operation", op.Name).Msg("genai: video job submitted")
	return fromWireOperation(op), nil
}

// PollVideoJob performs a single status fetch and returns the refreshed
// operation. A remote error on the operation surfaces with its message.
func (c *Client) PollVideoJob(ctx context.Context, name string) (*VideoOperation, error) {
	var op veoOperation
	if err := c.getJSON(ctx, "/"+strings.TrimLeft(name, "/"), &op); err != nil {
		return nil, err
	}
	if op.Error != nil {
		return nil, fmt.Errorf("genai: video job failed: %s", op.Error.Message)
	}
	refreshed := fromWireOperation(op)
	if refreshed.Name == "" {
		refreshed.Name = name
	}
	return refreshed, nil
}

// AwaitVideoJob polls the job on the configured interval, replacing the
// handle with the refreshed operation every round, until it reports done.
// The loop is bounded by both the attempt cap and the deadline; exceeding
// either yields domain.ErrPollTimeout. onPoll, when set, fires after every
// status fetch. A done operation without a result URI fails with
// domain.ErrMissingVideoURI.
func (c *Client) AwaitVideoJob(ctx context.Context, op *VideoOperation, onPoll func(attempt int)) (*VideoOperation, error) {
	if op == nil {
		return nil, fmt.Errorf("genai: nil video operation")
	}
	if op.Done {
		return locateResult(op)
	}

	ctx, cancel := context.WithTimeout(ctx, c.pollDeadline)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	current := op
	for attempt := 1; attempt <= c.pollMaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("genai: %w after %d polls: %w", domain.ErrPollTimeout, attempt-1, ctx.Err())
		case <-ticker.C:
		}

		refreshed, err := c.PollVideoJob(ctx, current.Name)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("genai: %w after %d polls: %w", domain.ErrPollTimeout, attempt, ctx.Err())
			}
			return nil, err
		}
		current = refreshed
		if onPoll != nil {
			onPoll(attempt)
		}
		if current.Done {
			return locateResult(current)
		}
		c.logger.Debug().
			Str("operation", current.Name).
			Int("attempt", attempt).
			Msg("genai: video job pending")
	}

	return nil, fmt.Errorf("genai: %w after %d polls", domain.ErrPollTimeout, c.pollMaxAttempts)
}

// FetchVideo downloads the rendered asset with the API credential attached.
func (c *Client) FetchVideo(ctx context.Context, uri string) (*VideoResult, error) {
	target := uri
	if !strings.HasPrefix(uri, "http://") && !strings.HasPrefix(uri, "https://") {
		target = c.endpoint(uri)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("genai: create download request: %w", err)
	}
	q := req.URL.Query()
	if c.apiKey != "" {
		q.Set("key", c.apiKey)
	}
	req.URL.RawQuery = q.Encode()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("genai: download video: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return nil, fmt.Errorf("genai: download video status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	blob, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("genai: read video body: %w", err)
	}
	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		mime = "video/mp4"
	}
	c.logger.Info().Int("bytes", len(blob)).Msg("genai: video downloaded")
	return &VideoResult{Data: blob, MIME: mime}, nil
}

func fromWireOperation(op veoOperation) *VideoOperation {
	out := &VideoOperation{Name: op.Name, Done: op.Done}
	if op.Response != nil && op.Response.GenerateVideoResponse != nil {
		for _, sample := range op.Response.GenerateVideoResponse.GeneratedSamples {
			if sample.Video != nil && sample.Video.URI != "" {
				out.URI = sample.Video.URI
				break
			}
		}
	}
	return out
}

func locateResult(op *VideoOperation) (*VideoOperation, error) {
	if op.URI == "" {
		return nil, fmt.Errorf("genai: %w", domain.ErrMissingVideoURI)
	}
	return op, nil
}
