package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"vozchat/internal/domain"
	"vozchat/internal/observability"
	"vozchat/internal/ports"
)

var ErrSessionClosed = fmt.Errorf("%w: session closed", domain.ErrInvalidState)

// ChatSession drives one conversation: capture, upload, history and reply playback.
type ChatSession struct {
	capture  *AudioCaptureController
	playback *PlaybackController
	client   ports.AssistantClient
	events   ports.EventSink
	observer ports.SessionObserver
	logger   *slog.Logger

	// lifetime is cancelled by Dispose and bounds every remote call.
	lifetime context.Context
	cancel   context.CancelFunc

	mu         sync.Mutex
	state      domain.SessionState
	submitting bool
	starting   bool
	// stopPending records a release that arrived while the microphone was
	// still being acquired.
	stopPending bool
	history     []domain.ChatMessage
}

func NewChatSession(
	capture *AudioCaptureController,
	playback *PlaybackController,
	client ports.AssistantClient,
	events ports.EventSink,
	observer ports.SessionObserver,
) *ChatSession {
	if observer == nil {
		observer = noopSessionObserver{}
	}
	lifetime, cancel := context.WithCancel(context.Background())
	s := &ChatSession{
		capture:  capture,
		playback: playback,
		client:   client,
		events:   events,
		observer: observer,
		logger:   observability.WithFields("component", "chat_session"),
		lifetime: lifetime,
		cancel:   cancel,
		state:    domain.SessionStateIdle,
	}
	playback.OnChange(s.playbackChanged)
	return s
}

// SubmitProfile sends the profile and opens a fresh conversation with the
// welcome message it yields.
func (s *ChatSession) SubmitProfile(ctx context.Context, profile domain.ProfileData) (string, error) {
	if err := profile.Validate(); err != nil {
		s.mu.Lock()
		if s.state != domain.SessionStateClosed {
			s.notifyLocked(err)
		}
		s.mu.Unlock()
		return "", err
	}

	s.mu.Lock()
	if s.state == domain.SessionStateClosed {
		s.mu.Unlock()
		return "", ErrSessionClosed
	}
	if s.state != domain.SessionStateIdle || s.submitting || s.starting {
		s.mu.Unlock()
		return "", fmt.Errorf("%w: profile can only be submitted while idle", domain.ErrInvalidState)
	}
	s.submitting = true
	s.events.SessionStateChanged(s.state, domain.SessionReasonProfileSubmitting)
	s.mu.Unlock()

	callCtx, release := s.bind(ctx)
	result, err := s.client.SubmitProfile(callCtx, profile)
	release()

	s.mu.Lock()
	s.submitting = false
	if s.state == domain.SessionStateClosed {
		s.mu.Unlock()
		return "", ErrSessionClosed
	}
	if err != nil {
		s.events.SessionStateChanged(s.state, domain.SessionReasonProfileFailed)
		s.notifyLocked(err)
		s.mu.Unlock()
		s.logger.Warn("profile submission failed", "error", err)
		return "", err
	}
	fetch := s.openLocked(result.WelcomeMessage)
	s.mu.Unlock()

	if fetch {
		_, _ = s.playReply(ctx)
	}
	return result.WelcomeMessage, nil
}

// Bootstrap replaces the history with welcome and plays its audio.
func (s *ChatSession) Bootstrap(ctx context.Context, welcome string) error {
	s.mu.Lock()
	if s.state == domain.SessionStateClosed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.state != domain.SessionStateIdle || s.submitting || s.starting {
		s.mu.Unlock()
		return fmt.Errorf("%w: bootstrap requires an idle session", domain.ErrInvalidState)
	}
	fetch := s.openLocked(welcome)
	s.mu.Unlock()

	if fetch {
		_, _ = s.playReply(ctx)
	}
	return nil
}

// openLocked resets the history to the welcome message and reports whether
// its audio should be fetched.
func (s *ChatSession) openLocked(welcome string) bool {
	s.history = nil
	if welcome != "" {
		s.history = append(s.history, domain.Received(welcome))
	}
	s.events.HistoryReset(s.historyLocked())
	if welcome == "" {
		return false
	}
	if err := s.advanceLocked(eventWelcome, domain.SessionReasonFetchingAudio); err != nil {
		return false
	}
	return true
}

// StartRecording acquires the microphone. Recording only starts from idle.
func (s *ChatSession) StartRecording(ctx context.Context) error {
	s.mu.Lock()
	if s.submitting || s.starting {
		s.mu.Unlock()
		return fmt.Errorf("%w: another intent is pending", domain.ErrInvalidState)
	}
	if _, err := transition(s.state, eventRecord); err != nil {
		s.mu.Unlock()
		return err
	}
	s.starting = true
	s.mu.Unlock()

	callCtx, release := s.bind(ctx)
	recording, err := s.capture.Start(callCtx)
	release()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.starting = false
	stopRequested := s.stopPending
	s.stopPending = false
	if s.state == domain.SessionStateClosed {
		return ErrSessionClosed
	}
	if stopRequested {
		// Released before the device was ready: nothing was said.
		if err == nil {
			_, _ = s.capture.Stop()
		}
		s.events.SessionStateChanged(s.state, domain.SessionReasonEmptyCapture)
		s.logger.Debug("recording released while starting")
		return nil
	}
	if err != nil {
		s.events.SessionStateChanged(s.state, domain.SessionReasonCaptureFailed)
		s.notifyLocked(err)
		s.logger.Warn("recording failed to start", "error", err)
		return err
	}
	s.logger.Debug("recording started", "recording_id", recording.ID)
	return s.advanceLocked(eventRecord, domain.SessionReasonRecordingStarted)
}

// StopRecording finishes the capture and runs one upload round trip. A
// release while the microphone is still starting cancels the start and counts
// as an empty capture.
func (s *ChatSession) StopRecording(ctx context.Context) (domain.RoundTrip, error) {
	started := time.Now()

	s.mu.Lock()
	if s.starting {
		s.stopPending = true
		s.mu.Unlock()
		s.capture.Abort()
		s.observer.ObserveRoundTrip("empty", time.Since(started))
		return domain.RoundTrip{Empty: true, Duration: time.Since(started)}, nil
	}
	if err := s.advanceLocked(eventRelease, domain.SessionReasonUploading); err != nil {
		s.mu.Unlock()
		return domain.RoundTrip{}, err
	}
	s.mu.Unlock()

	captured, err := s.capture.Stop()
	if err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.state == domain.SessionStateClosed {
			return domain.RoundTrip{}, ErrSessionClosed
		}
		if errors.Is(err, domain.ErrEmptyCapture) {
			_ = s.advanceLocked(eventCaptureEmpty, domain.SessionReasonEmptyCapture)
			s.observer.ObserveRoundTrip("empty", time.Since(started))
			return domain.RoundTrip{Empty: true, Duration: time.Since(started)}, nil
		}
		_ = s.advanceLocked(eventCaptureFailed, domain.SessionReasonCaptureFailed)
		s.notifyLocked(err)
		s.observer.ObserveRoundTrip("capture_failed", time.Since(started))
		return domain.RoundTrip{}, err
	}

	callCtx, release := s.bind(ctx)
	result, err := s.client.UploadAudio(callCtx, captured)
	release()

	s.mu.Lock()
	if s.state == domain.SessionStateClosed {
		s.mu.Unlock()
		return domain.RoundTrip{}, ErrSessionClosed
	}
	if err != nil {
		_ = s.advanceLocked(eventUploadFailed, domain.SessionReasonUploadFailed)
		s.notifyLocked(err)
		s.mu.Unlock()
		s.observer.ObserveRoundTrip("upload_failed", time.Since(started))
		s.logger.Warn("upload failed", "error", err, "audio_duration", captured.Duration)
		return domain.RoundTrip{}, err
	}

	// The transcription always precedes the reply.
	s.appendLocked(domain.Sent(result.Transcription))
	s.appendLocked(domain.Received(result.Reply))
	_ = s.advanceLocked(eventReplied, domain.SessionReasonFetchingAudio)
	s.mu.Unlock()

	trip := domain.RoundTrip{Transcription: result.Transcription, Reply: result.Reply}
	played, audioErr := s.playReply(ctx)
	trip.Played = played
	trip.Duration = time.Since(started)
	if errors.Is(audioErr, ErrSessionClosed) {
		return trip, audioErr
	}
	if audioErr != nil {
		trip.AudioError = audioErr.Error()
	}
	s.observer.ObserveRoundTrip("ok", trip.Duration)
	return trip, nil
}

// playReply fetches the audio prepared by the last resolved call and plays it,
// settling the session back to idle. Audio failures never touch the history.
func (s *ChatSession) playReply(ctx context.Context) (bool, error) {
	callCtx, release := s.bind(ctx)
	stream, err := s.client.FetchReplyAudio(callCtx)
	if err == nil {
		err = s.playback.Play(callCtx, stream)
	}
	release()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == domain.SessionStateClosed {
		return false, ErrSessionClosed
	}

	switch {
	case err == nil:
		_ = s.advanceLocked(eventAudioSettled, domain.SessionReasonPlaybackStarted)
		s.observer.ObservePlayback("started")
		return true, nil
	case errors.Is(err, domain.ErrAudioNotAvailable):
		_ = s.advanceLocked(eventAudioSettled, domain.SessionReasonAudioUnavailable)
		s.observer.ObservePlayback("unavailable")
		return false, err
	default:
		_ = s.advanceLocked(eventAudioSettled, domain.SessionReasonPlaybackFailed)
		s.notifyLocked(err)
		s.observer.ObservePlayback("failed")
		s.logger.Warn("reply audio failed", "error", err)
		return false, err
	}
}

// Dispose cancels in-flight work and releases the microphone and playback
// output before returning. The session emits nothing afterwards.
func (s *ChatSession) Dispose() {
	s.mu.Lock()
	previous := s.state
	if err := s.advanceLocked(eventDispose, domain.SessionReasonClosed); err != nil {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.cancel()
	s.capture.Dispose()
	s.playback.Dispose()
	s.logger.Info("session disposed", "previous_state", previous)
}

// History returns a copy of the chat thread.
func (s *ChatSession) History() []domain.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.historyLocked()
}

func (s *ChatSession) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *ChatSession) Status() domain.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.Status{
		State:             s.state,
		SubmittingProfile: s.submitting,
		Playing:           s.playback.Active(),
		Messages:          len(s.history),
	}
}

func (s *ChatSession) advanceLocked(event sessionEvent, reason domain.SessionStateReason) error {
	next, err := transition(s.state, event)
	if err != nil {
		return err
	}
	s.logger.Debug("state transition", "from", s.state, "to", next, "reason", reason)
	s.state = next
	s.events.SessionStateChanged(next, reason)
	return nil
}

func (s *ChatSession) appendLocked(message domain.ChatMessage) {
	s.history = append(s.history, message)
	s.events.MessageAppended(message)
}

func (s *ChatSession) historyLocked() []domain.ChatMessage {
	out := make([]domain.ChatMessage, len(s.history))
	copy(out, s.history)
	return out
}

func (s *ChatSession) notifyLocked(err error) {
	s.events.SessionError(domain.ErrorCodeOf(err), err.Error())
}

func (s *ChatSession) playbackChanged(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == domain.SessionStateClosed {
		return
	}
	s.events.PlaybackChanged(active)
}

// bind derives a context that also ends when the session is disposed.
func (s *ChatSession) bind(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.lifetime, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

type noopSessionObserver struct{}

func (noopSessionObserver) ObserveRoundTrip(string, time.Duration) {}
func (noopSessionObserver) ObservePlayback(string)                 {}
