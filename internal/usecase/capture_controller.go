package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"vozchat/internal/audio"
	"vozchat/internal/domain"
	"vozchat/internal/observability"
	"vozchat/internal/ports"
)

// ErrCaptureAborted is returned by a Start that Abort cancelled.
var ErrCaptureAborted = errors.New("capture aborted before it started")

// CaptureConfig controls microphone capture.
type CaptureConfig struct {
	Audio       ports.AudioConfig
	ChunkSize   int
	MinDuration time.Duration
}

// AudioCaptureController owns the microphone for one recording at a time.
type AudioCaptureController struct {
	capture     ports.AudioCapture
	permissions ports.PermissionRequester
	cfg         CaptureConfig
	logger      *slog.Logger

	mu       sync.Mutex
	current  *activeCapture
	pending  *pendingStart
	granted  bool
	disposed bool
}

func NewAudioCaptureController(capture ports.AudioCapture, permissions ports.PermissionRequester, cfg CaptureConfig) *AudioCaptureController {
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = 4096
	}
	if cfg.MinDuration <= 0 {
		cfg.MinDuration = 150 * time.Millisecond
	}
	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	return &AudioCaptureController{
		capture:     capture,
		permissions: permissions,
		cfg:         cfg,
		logger:      observability.WithFields("component", "capture"),
	}
}

// Start acquires the microphone and begins buffering audio.
func (c *AudioCaptureController) Start(ctx context.Context) (domain.RecordingSession, error) {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return domain.RecordingSession{}, fmt.Errorf("%w: capture controller disposed", domain.ErrInvalidState)
	}
	if c.current != nil || c.pending != nil {
		c.mu.Unlock()
		return domain.RecordingSession{}, fmt.Errorf("%w: already capturing", domain.ErrInvalidState)
	}
	// The device outlives the intent that started it; Stop or Dispose ends it.
	requestCtx, cancelRequest := context.WithCancel(ctx)
	deviceCtx, cancelDevice := context.WithCancel(context.WithoutCancel(ctx))
	pending := &pendingStart{
		cancel: func() {
			cancelRequest()
			cancelDevice()
		},
		done: make(chan struct{}),
	}
	c.pending = pending
	granted := c.granted
	c.mu.Unlock()
	defer close(pending.done)

	active, err := c.acquire(requestCtx, deviceCtx, cancelDevice, granted)
	cancelRequest()

	c.mu.Lock()
	c.pending = nil
	aborted := pending.aborted
	disposed := c.disposed
	if err == nil && !aborted && !disposed {
		c.granted = true
		c.current = active
	}
	c.mu.Unlock()

	if err == nil && (aborted || disposed) {
		_ = active.release()
		if disposed {
			return domain.RecordingSession{}, fmt.Errorf("%w: capture controller disposed", domain.ErrInvalidState)
		}
		return domain.RecordingSession{}, ErrCaptureAborted
	}
	if err != nil {
		if aborted {
			return domain.RecordingSession{}, ErrCaptureAborted
		}
		cancelDevice()
		return domain.RecordingSession{}, err
	}

	c.logger.Debug("capture started", "recording_id", active.recording.ID)
	return active.recording, nil
}

func (c *AudioCaptureController) acquire(ctx, deviceCtx context.Context, cancelDevice context.CancelFunc, granted bool) (*activeCapture, error) {
	if !granted && c.permissions != nil {
		if err := c.permissions.RequestMicrophone(ctx, c.cfg.Audio); err != nil {
			return nil, asDeviceError(err)
		}
	}

	session, err := c.capture.Start(deviceCtx, c.cfg.Audio)
	if err != nil {
		return nil, asDeviceError(err)
	}

	active := &activeCapture{
		recording: domain.RecordingSession{ID: uuid.NewString(), StartedAt: time.Now()},
		cancel:    cancelDevice,
		audio:     session,
		buffer:    &captureBuffer{},
		audioDone: make(chan struct{}),
	}
	go pumpAudioChunks(active.audio, active.buffer, c.cfg.ChunkSize, active.audioDone)
	return active, nil
}

// Abort cancels a Start still acquiring the device and waits for it to
// return. The device, if it was opened, is released. Abort does nothing once
// the recording is live.
func (c *AudioCaptureController) Abort() {
	c.mu.Lock()
	pending := c.pending
	if pending != nil {
		pending.aborted = true
	}
	c.mu.Unlock()

	if pending != nil {
		pending.cancel()
		<-pending.done
	}
}

// Stop releases the microphone and returns the recording as a WAV file.
func (c *AudioCaptureController) Stop() (domain.CapturedAudio, error) {
	c.mu.Lock()
	active := c.current
	c.current = nil
	c.mu.Unlock()

	if active == nil {
		return domain.CapturedAudio{}, fmt.Errorf("%w: not capturing", domain.ErrInvalidState)
	}

	if err := active.release(); err != nil {
		c.logger.Warn("capture device did not stop cleanly", "recording_id", active.recording.ID, "error", err)
	}

	pcm, readErr := active.buffer.snapshot()
	if len(pcm) == 0 {
		if readErr != nil {
			return domain.CapturedAudio{}, fmt.Errorf("%w: %v", domain.ErrDeviceUnavailable, readErr)
		}
		return domain.CapturedAudio{}, domain.ErrEmptyCapture
	}

	length := audio.PCMDuration(len(pcm), c.cfg.Audio.SampleRate, c.cfg.Audio.Channels)
	if length < c.cfg.MinDuration {
		c.logger.Debug("capture too short", "recording_id", active.recording.ID, "duration", length)
		return domain.CapturedAudio{}, fmt.Errorf("%w: %s captured", domain.ErrEmptyCapture, length)
	}

	wav, err := audio.EncodeWAV(pcm, c.cfg.Audio.SampleRate, c.cfg.Audio.Channels)
	if err != nil {
		return domain.CapturedAudio{}, fmt.Errorf("%w: %v", domain.ErrEmptyCapture, err)
	}

	c.logger.Debug("capture finished", "recording_id", active.recording.ID, "bytes", len(wav), "duration", length)
	return domain.CapturedAudio{
		Data:     wav,
		Duration: length,
	}, nil
}

// Dispose releases any live recording, including one still being acquired,
// before it returns. Later Start calls fail.
func (c *AudioCaptureController) Dispose() {
	c.mu.Lock()
	c.disposed = true
	active := c.current
	c.current = nil
	pending := c.pending
	c.mu.Unlock()

	if pending != nil {
		pending.cancel()
		<-pending.done
	}
	if active != nil {
		_ = active.release()
		c.logger.Debug("capture released on dispose", "recording_id", active.recording.ID)
	}
}

// Capturing reports whether a recording holds the microphone.
func (c *AudioCaptureController) Capturing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil
}

func asDeviceError(err error) error {
	if errors.Is(err, domain.ErrPermissionDenied) || errors.Is(err, domain.ErrDeviceUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrDeviceUnavailable, err)
}
