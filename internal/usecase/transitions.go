package usecase

import (
	"fmt"

	"vozchat/internal/domain"
)

// sessionEvent is an input to the chat session state machine.
type sessionEvent string

const (
	eventRecord        sessionEvent = "record"
	eventRelease       sessionEvent = "release"
	eventCaptureEmpty  sessionEvent = "capture_empty"
	eventCaptureFailed sessionEvent = "capture_failed"
	eventUploadFailed  sessionEvent = "upload_failed"
	eventReplied       sessionEvent = "replied"
	eventWelcome       sessionEvent = "welcome"
	eventAudioSettled  sessionEvent = "audio_settled"
	eventDispose       sessionEvent = "dispose"
)

type transitionKey struct {
	from  domain.SessionState
	event sessionEvent
}

var transitions = map[transitionKey]domain.SessionState{
	{domain.SessionStateIdle, eventRecord}:                domain.SessionStateCapturing,
	{domain.SessionStateIdle, eventWelcome}:               domain.SessionStateFetchingAudio,
	{domain.SessionStateCapturing, eventRelease}:          domain.SessionStateUploading,
	{domain.SessionStateUploading, eventCaptureEmpty}:     domain.SessionStateIdle,
	{domain.SessionStateUploading, eventCaptureFailed}:    domain.SessionStateIdle,
	{domain.SessionStateUploading, eventUploadFailed}:     domain.SessionStateIdle,
	{domain.SessionStateUploading, eventReplied}:          domain.SessionStateFetchingAudio,
	{domain.SessionStateFetchingAudio, eventAudioSettled}: domain.SessionStateIdle,
}

// transition returns the state reached from state on event. Every live state
// accepts eventDispose; closed accepts nothing.
func transition(state domain.SessionState, event sessionEvent) (domain.SessionState, error) {
	if state == domain.SessionStateClosed {
		return state, fmt.Errorf("%w: session closed", domain.ErrInvalidState)
	}
	if event == eventDispose {
		return domain.SessionStateClosed, nil
	}
	next, ok := transitions[transitionKey{from: state, event: event}]
	if !ok {
		return state, fmt.Errorf("%w: %s not allowed while %s", domain.ErrInvalidState, event, state)
	}
	return next, nil
}
