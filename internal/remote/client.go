package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"vozchat/internal/domain"
	"vozchat/internal/observability"
	"vozchat/internal/ports"
)

const (
	opSetup   = "setup"
	opReceive = "receive"
	opAudio   = "audio"

	// Multipart field and file naming expected by the assistant service.
	audioFieldName   = "file"
	audioFilename    = "audio.wav"
	audioContentType = "audio/wav"

	maxJSONBytes = 1 << 20
)

// Config controls the assistant service client.
type Config struct {
	BaseURL       string
	Timeout       time.Duration
	MaxAudioBytes int64
	SessionID     string
	UserAgent     string
}

// Client implements ports.AssistantClient over HTTP.
type Client struct {
	cfg        Config
	base       *url.URL
	httpClient *http.Client
	observer   ports.RequestObserver

	// Reply audio is fetched by call order, so fetches never overlap.
	fetchMu sync.Mutex
}

func NewClient(cfg Config, observer ports.RequestObserver) (*Client, error) {
	raw := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if raw == "" {
		return nil, errors.New("assistant base URL cannot be empty")
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid assistant base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid assistant base URL %q: scheme must be http or https", raw)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("invalid assistant base URL %q: missing host", raw)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxAudioBytes <= 0 {
		cfg.MaxAudioBytes = 32 << 20
	}
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "vozchat/1.0"
	}
	if observer == nil {
		observer = noopObserver{}
	}

	return &Client{
		cfg:  cfg,
		base: base,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		observer: observer,
	}, nil
}

// SessionID is sent with every request for log correlation.
func (c *Client) SessionID() string {
	return c.cfg.SessionID
}

// SubmitProfile posts the user profile and returns the welcome message.
func (c *Client) SubmitProfile(ctx context.Context, profile domain.ProfileData) (domain.WelcomeResult, error) {
	payload, err := json.Marshal(profile)
	if err != nil {
		return domain.WelcomeResult{}, fmt.Errorf("encode profile: %w", err)
	}

	resp, err := c.do(ctx, opSetup, http.MethodPost, "/setup", bytes.NewReader(payload), "application/json", maxJSONBytes)
	if err != nil {
		return domain.WelcomeResult{}, err
	}
	if !resp.ok() {
		c.observe(opSetup, "service_error", resp.elapsed)
		return domain.WelcomeResult{}, resp.serviceError(opSetup)
	}

	var result domain.WelcomeResult
	if err := json.Unmarshal(resp.body, &result); err != nil {
		c.observe(opSetup, "invalid_response", resp.elapsed)
		return domain.WelcomeResult{}, resp.invalidBody(opSetup, err)
	}
	c.observe(opSetup, "ok", resp.elapsed)
	return result, nil
}

// UploadAudio sends a finished capture and returns its transcription and reply.
func (c *Client) UploadAudio(ctx context.Context, audio domain.CapturedAudio) (domain.UploadResult, error) {
	if len(audio.Data) == 0 {
		return domain.UploadResult{}, fmt.Errorf("upload audio: %w", domain.ErrEmptyCapture)
	}

	body, contentType, err := createMultipartBody(audio)
	if err != nil {
		return domain.UploadResult{}, fmt.Errorf("failed to create multipart request: %w", err)
	}

	resp, err := c.do(ctx, opReceive, http.MethodPost, "/receive", body, contentType, maxJSONBytes)
	if err != nil {
		return domain.UploadResult{}, err
	}
	if !resp.ok() {
		c.observe(opReceive, "service_error", resp.elapsed)
		return domain.UploadResult{}, resp.serviceError(opReceive)
	}

	var result domain.UploadResult
	if err := json.Unmarshal(resp.body, &result); err != nil {
		c.observe(opReceive, "invalid_response", resp.elapsed)
		return domain.UploadResult{}, resp.invalidBody(opReceive, err)
	}
	c.observe(opReceive, "ok", resp.elapsed)
	return result, nil
}

// FetchReplyAudio downloads the audio prepared by the last setup or receive call.
func (c *Client) FetchReplyAudio(ctx context.Context) (io.ReadCloser, error) {
	c.fetchMu.Lock()
	defer c.fetchMu.Unlock()

	resp, err := c.do(ctx, opAudio, http.MethodGet, "/audio", nil, "", c.cfg.MaxAudioBytes)
	if err != nil {
		return nil, err
	}
	if !resp.ok() || len(resp.body) == 0 {
		c.observe(opAudio, "not_available", resp.elapsed)
		return nil, fmt.Errorf("%w: status %d", domain.ErrAudioNotAvailable, resp.status)
	}
	c.observe(opAudio, "ok", resp.elapsed)
	return io.NopCloser(bytes.NewReader(resp.body)), nil
}

type response struct {
	status  int
	body    []byte
	elapsed time.Duration
}

func (r response) ok() bool {
	return r.status >= 200 && r.status < 300
}

func (r response) serviceError(op string) error {
	return &domain.ServiceError{Op: op, StatusCode: r.status, Body: strings.TrimSpace(string(r.body))}
}

func (r response) invalidBody(op string, err error) error {
	return &domain.ServiceError{Op: op, StatusCode: r.status, Body: fmt.Sprintf("invalid response body: %v", err)}
}

// do performs one bounded request and reads the whole body before the deadline is released.
func (c *Client) do(ctx context.Context, op, method, path string, body io.Reader, contentType string, limit int64) (response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	requestID := uuid.NewString()
	ctx = observability.WithSessionID(ctx, c.cfg.SessionID)
	logger := observability.LoggerFromContext(ctx).With("component", "remote", "op", op, "request_id", requestID)

	endpoint := c.base.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return response{}, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("X-Session-ID", c.cfg.SessionID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		elapsed := time.Since(start)
		c.observe(op, "network_error", elapsed)
		logger.Warn("request failed", "error", err, "elapsed", elapsed)
		return response{}, &domain.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	elapsed := time.Since(start)
	if err != nil {
		c.observe(op, "network_error", elapsed)
		logger.Warn("reading response failed", "error", err, "elapsed", elapsed)
		return response{}, &domain.NetworkError{Op: op, Err: fmt.Errorf("failed to read response body: %w", err)}
	}
	if int64(len(data)) > limit {
		c.observe(op, "too_large", elapsed)
		return response{}, &domain.ServiceError{Op: op, StatusCode: resp.StatusCode, Body: fmt.Sprintf("response body exceeds %d bytes", limit)}
	}

	logger.Debug("request completed", "status", resp.StatusCode, "bytes", len(data), "elapsed", elapsed)
	return response{status: resp.StatusCode, body: data, elapsed: elapsed}, nil
}

func (c *Client) observe(op, outcome string, elapsed time.Duration) {
	c.observer.ObserveRequest(op, outcome, elapsed)
}

// createMultipartBody builds the single-file form the receive endpoint
// expects. The part is always named audio.wav and typed audio/wav.
func createMultipartBody(audio domain.CapturedAudio) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, audioFieldName, audioFilename))
	header.Set("Content-Type", audioContentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(audio.Data); err != nil {
		return nil, "", fmt.Errorf("failed to write audio data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}
	return &buf, writer.FormDataContentType(), nil
}

type noopObserver struct{}

func (noopObserver) ObserveRequest(string, string, time.Duration) {}
