package domain

import (
	"errors"
	"fmt"
)

var (
	ErrPermissionDenied  = errors.New("microphone permission denied")
	ErrDeviceUnavailable = errors.New("capture device unavailable")
	ErrInvalidState      = errors.New("invalid state")
	ErrEmptyCapture      = errors.New("empty capture")
	ErrAudioNotAvailable = errors.New("reply audio not available")
	ErrDecode            = errors.New("audio decode failed")
	ErrPlaybackDevice    = errors.New("playback device error")
)

// NetworkError is a transport-level failure, including timeouts.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ServiceError is a non-2xx answer from the assistant service.
type ServiceError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *ServiceError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: service error %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: service error %d: %s", e.Op, e.StatusCode, e.Body)
}

// ErrorCodeOf maps an error onto the code reported to the presentation layer.
func ErrorCodeOf(err error) ErrorCode {
	var netErr *NetworkError
	var svcErr *ServiceError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &svcErr):
		return ErrorCodeService
	case errors.As(err, &netErr):
		return ErrorCodeNetwork
	case errors.Is(err, ErrPermissionDenied):
		return ErrorCodePermissionDenied
	case errors.Is(err, ErrDeviceUnavailable):
		return ErrorCodeDeviceUnavailable
	case errors.Is(err, ErrInvalidState):
		return ErrorCodeInvalidState
	case errors.Is(err, ErrDecode):
		return ErrorCodeDecode
	case errors.Is(err, ErrPlaybackDevice):
		return ErrorCodePlaybackDevice
	case errors.Is(err, ErrInvalidProfile):
		return ErrorCodeProfileInvalid
	default:
		return ErrorCodeUnknown
	}
}

// IsBenign reports outcomes that end a transition without a user-visible error.
func IsBenign(err error) bool {
	return errors.Is(err, ErrEmptyCapture) || errors.Is(err, ErrAudioNotAvailable)
}
