// Package generator provides music generation backends.
//
// HTTPClient talks to a standalone MusicGen service over HTTP. Subprocess runs
// a local generation binary. Both implement core.Generator.
package generator

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/book-expert/automuse/internal/core"
)

// API endpoints and paths.
const (
	apiGenerateMusic = "/v1/generate/music"
	apiHealth        = "/health"
)

// HTTP headers.
const (
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	headerSampleRate  = "X-Sample-Rate"
	headerChannels    = "X-Channels"
	contentTypeJSON   = "application/json"
	contentTypePCM    = "application/octet-stream"
)

// Default values.
const (
	DefaultModel           = "facebook/musicgen-small"
	DefaultDurationSeconds = 20
	defaultChannels        = 1
	bytesPerSample         = 4
)

// Error messages.
const (
	errFmtServiceErrorWithCode = "generation service error (%s): %s (code: %s)"
	errFmtServiceNonOKStatus   = "generation service returned non-OK status: %s, body: %s"
)

var (
	// ErrPromptEmpty is returned when Generate is called without a prompt.
	ErrPromptEmpty = errors.New("prompt cannot be empty")
	// ErrUnexpectedContentType is returned when the service does not answer with raw PCM.
	ErrUnexpectedContentType = errors.New("unexpected content type")
	// ErrEmptyAudio is returned when the service answers with no samples.
	ErrEmptyAudio = errors.New("received empty audio data")
	// ErrMalformedAudio is returned when the response metadata or body cannot be decoded.
	ErrMalformedAudio = errors.New("malformed audio response")
)

// HTTPClient represents a client for the standalone generation service.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	model      string
}

// MusicRequest defines the JSON payload of a generation request.
type MusicRequest struct {
	Prompt          string `json:"prompt"`
	DurationSeconds int    `json:"duration_seconds"`
	Model           string `json:"model"`
}

// ErrorResponse represents a structured error response from the service.
type ErrorResponse struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code,omitempty"`
}

// NewHTTPClient creates a client for the service at baseURL (e.g.
// "http://localhost:8000"). The timeout applies to each request.
func NewHTTPClient(baseURL, model string, timeout time.Duration) *HTTPClient {
	if model == "" {
		model = DefaultModel
	}

	return &HTTPClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Generate requests durationSeconds of music for prompt. The service answers
// with little-endian float32 interleaved PCM and describes it in the
// X-Sample-Rate and X-Channels headers.
func (c *HTTPClient) Generate(ctx context.Context, prompt string, durationSeconds int) (*core.Audio, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrPromptEmpty
	}

	if durationSeconds <= 0 {
		durationSeconds = DefaultDurationSeconds
	}

	requestBody, err := json.Marshal(MusicRequest{
		Prompt:          prompt,
		DurationSeconds: durationSeconds,
		Model:           c.model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+apiGenerateMusic,
		bytes.NewReader(requestBody),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set(headerContentType, contentTypeJSON)
	httpReq.Header.Set(headerAccept, contentTypePCM)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to generation service at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	contentType := resp.Header.Get(headerContentType)
	if contentType != contentTypePCM {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrUnexpectedContentType, contentTypePCM, contentType)
	}

	sampleRate, channels, err := parseFormat(resp.Header)
	if err != nil {
		return nil, err
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}

	samples, err := decodePCM(payload)
	if err != nil {
		return nil, err
	}

	return &core.Audio{Samples: samples, SampleRate: sampleRate, Channels: channels}, nil
}

// HealthCheck verifies that the generation service is running.
func (c *HTTPClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+apiHealth, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed for service at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status: %s", resp.Status)
	}

	return nil
}

// parseErrorResponse decodes a structured JSON error, falling back to the raw body.
func (c *HTTPClient) parseErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errorResp ErrorResponse

	err := json.Unmarshal(body, &errorResp)
	if err == nil && errorResp.Detail != "" {
		return fmt.Errorf(errFmtServiceErrorWithCode, resp.Status, errorResp.Detail, errorResp.ErrorCode)
	}

	return fmt.Errorf(errFmtServiceNonOKStatus, resp.Status, string(body))
}

func parseFormat(header http.Header) (int, int, error) {
	sampleRate, err := strconv.Atoi(header.Get(headerSampleRate))
	if err != nil || sampleRate <= 0 {
		return 0, 0, fmt.Errorf("%w: bad %s header %q", ErrMalformedAudio, headerSampleRate, header.Get(headerSampleRate))
	}

	channels := defaultChannels

	if raw := header.Get(headerChannels); raw != "" {
		channels, err = strconv.Atoi(raw)
		if err != nil || channels <= 0 {
			return 0, 0, fmt.Errorf("%w: bad %s header %q", ErrMalformedAudio, headerChannels, raw)
		}
	}

	return sampleRate, channels, nil
}

func decodePCM(payload []byte) ([]float32, error) {
	if len(payload) == 0 {
		return nil, ErrEmptyAudio
	}

	if len(payload)%bytesPerSample != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a whole number of float32 samples", ErrMalformedAudio, len(payload))
	}

	samples := make([]float32, len(payload)/bytesPerSample)
	for i := range samples {
		bits := binary.LittleEndian.Uint32(payload[i*bytesPerSample:])
		samples[i] = math.Float32frombits(bits)
	}

	return samples, nil
}

// EncodePCM is the inverse of the response body decoding, used by fakes of the service.
func EncodePCM(samples []float32) []byte {
	payload := make([]byte, len(samples)*bytesPerSample)
	for i, sample := range samples {
		binary.LittleEndian.PutUint32(payload[i*bytesPerSample:], math.Float32bits(sample))
	}

	return payload
}
