package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SessionState models the chat session lifecycle.
type SessionState string

const (
	SessionStateIdle          SessionState = "idle"
	SessionStateCapturing     SessionState = "capturing"
	SessionStateUploading     SessionState = "uploading"
	SessionStateFetchingAudio SessionState = "fetching_audio"
	SessionStateClosed        SessionState = "closed"
)

// SessionStateReason provides a structured reason for state transitions.
type SessionStateReason string

const (
	SessionReasonReady             SessionStateReason = "ready"
	SessionReasonRecordingStarted  SessionStateReason = "recording_started"
	SessionReasonCaptureFailed     SessionStateReason = "capture_failed"
	SessionReasonUploading         SessionStateReason = "uploading"
	SessionReasonEmptyCapture      SessionStateReason = "empty_capture"
	SessionReasonUploadFailed      SessionStateReason = "upload_failed"
	SessionReasonFetchingAudio     SessionStateReason = "fetching_audio"
	SessionReasonPlaybackStarted   SessionStateReason = "playback_started"
	SessionReasonAudioUnavailable  SessionStateReason = "audio_unavailable"
	SessionReasonPlaybackFailed    SessionStateReason = "playback_failed"
	SessionReasonProfileSubmitting SessionStateReason = "profile_submitting"
	SessionReasonProfileFailed     SessionStateReason = "profile_failed"
	SessionReasonClosed            SessionStateReason = "closed"
)

// ErrorCode identifies the kind of failure surfaced to the presentation layer.
type ErrorCode string

const (
	ErrorCodeStartup           ErrorCode = "startup"
	ErrorCodePermissionDenied  ErrorCode = "permission_denied"
	ErrorCodeDeviceUnavailable ErrorCode = "device_unavailable"
	ErrorCodeInvalidState      ErrorCode = "invalid_state"
	ErrorCodeNetwork           ErrorCode = "network"
	ErrorCodeService           ErrorCode = "service"
	ErrorCodeDecode            ErrorCode = "decode"
	ErrorCodePlaybackDevice    ErrorCode = "playback_device"
	ErrorCodeProfileInvalid    ErrorCode = "profile_invalid"
	ErrorCodeUnknown           ErrorCode = "unknown"
)

// MessageOrigin tells who produced a chat message.
type MessageOrigin string

const (
	OriginSent     MessageOrigin = "sent"
	OriginReceived MessageOrigin = "received"
)

// ChatMessage is one entry of the chat thread.
type ChatMessage struct {
	Origin MessageOrigin `json:"origin"`
	Text   string        `json:"text"`
}

func Sent(text string) ChatMessage {
	return ChatMessage{Origin: OriginSent, Text: text}
}

func Received(text string) ChatMessage {
	return ChatMessage{Origin: OriginReceived, Text: text}
}

// ProfileData is the user profile submitted once to open a session.
type ProfileData struct {
	FullName   string `json:"nombre" yaml:"nombre"`
	Age        string `json:"edad" yaml:"edad"`
	Birthplace string `json:"lugarNacimiento" yaml:"lugarNacimiento"`
	Relatives  string `json:"familiares" yaml:"familiares"`
	Interests  string `json:"gustos" yaml:"gustos"`
}

var ErrInvalidProfile = errors.New("invalid profile")

// Validate checks the only field the form constrains: age, when given, is a
// whole number. Every other field is sent as typed, empty or not.
func (p ProfileData) Validate() error {
	age := strings.TrimSpace(p.Age)
	if age == "" {
		return nil
	}
	if n, err := strconv.Atoi(age); err != nil || n < 0 {
		return fmt.Errorf("%w: age must be a whole number", ErrInvalidProfile)
	}
	return nil
}

// RecordingSession identifies an in-progress capture.
type RecordingSession struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"startedAt"`
}

// CapturedAudio is a finished capture ready to upload. Data is always a WAV
// file; the upload names it audio.wav.
type CapturedAudio struct {
	Data     []byte
	Duration time.Duration
}

// UploadResult is the service answer to an uploaded utterance.
type UploadResult struct {
	Transcription string `json:"transcription"`
	Reply         string `json:"response"`
}

// WelcomeResult is the service answer to a profile submission.
type WelcomeResult struct {
	WelcomeMessage string `json:"welcome_msg"`
}

// RoundTrip summarises one StopRecording call.
type RoundTrip struct {
	Empty         bool          `json:"empty"`
	Transcription string        `json:"transcription,omitempty"`
	Reply         string        `json:"reply,omitempty"`
	Played        bool          `json:"played"`
	AudioError    string        `json:"audioError,omitempty"`
	Duration      time.Duration `json:"duration"`
}

// Status summarises the current runtime status.
type Status struct {
	State             SessionState `json:"state"`
	SubmittingProfile bool         `json:"submittingProfile"`
	Playing           bool         `json:"playing"`
	Messages          int          `json:"messages"`
	Message           string       `json:"message,omitempty"`
}
