package ports

import (
	"context"
	"io"
	"time"

	"vozchat/internal/domain"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live capture session producing s16le PCM.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// PermissionRequester asks the platform for microphone access.
type PermissionRequester interface {
	RequestMicrophone(ctx context.Context, cfg AudioConfig) error
}

// PlaybackSession is a live playback resource.
type PlaybackSession interface {
	Done() <-chan struct{}
	Stop() error
}

// AudioPlayer loads and starts playing an encoded audio stream.
type AudioPlayer interface {
	Start(ctx context.Context, audio io.Reader) (PlaybackSession, error)
}

// AssistantClient is the remote assistant service contract.
type AssistantClient interface {
	SubmitProfile(ctx context.Context, profile domain.ProfileData) (domain.WelcomeResult, error)
	UploadAudio(ctx context.Context, audio domain.CapturedAudio) (domain.UploadResult, error)
	FetchReplyAudio(ctx context.Context) (io.ReadCloser, error)
}

// RequestObserver records remote call outcomes.
type RequestObserver interface {
	ObserveRequest(op string, outcome string, elapsed time.Duration)
}

// SessionObserver records chat session outcomes.
type SessionObserver interface {
	ObserveRoundTrip(outcome string, elapsed time.Duration)
	ObservePlayback(outcome string)
}

// EventSink emits session state and chat updates to the UI.
type EventSink interface {
	SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason)
	MessageAppended(message domain.ChatMessage)
	HistoryReset(messages []domain.ChatMessage)
	PlaybackChanged(active bool)
	SessionError(code domain.ErrorCode, detail string)
}
