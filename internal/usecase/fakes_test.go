package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"vozchat/internal/domain"
	"vozchat/internal/ports"
)

// pcmFor returns silent 16 kHz mono s16le audio of the given length.
func pcmFor(length time.Duration) []byte {
	return make([]byte, int(length/time.Millisecond)*16*2)
}

type fakeAudioCapture struct {
	mu       sync.Mutex
	sessions []*fakeAudioSession
	err      error
	calls    int

	// gate, when set, holds Start like a device that takes a while to open
	// and does not notice cancellation meanwhile.
	gate    chan struct{}
	entered chan struct{}
}

func (f *fakeAudioCapture) Start(_ context.Context, _ ports.AudioConfig) (ports.AudioSession, error) {
	if f.gate != nil {
		if f.entered != nil {
			f.entered <- struct{}{}
		}
		<-f.gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.calls >= len(f.sessions) {
		return nil, errors.New("no audio session configured")
	}
	session := f.sessions[f.calls]
	f.calls++
	return session, nil
}

func (f *fakeAudioCapture) startCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeAudioSession yields data once, then blocks like a live device until Stop.
type fakeAudioSession struct {
	mu        sync.Mutex
	data      []byte
	readErr   error
	sent      bool
	stopped   chan struct{}
	stopOnce  sync.Once
	stopCalls int
}

func newFakeAudioSession(data []byte) *fakeAudioSession {
	return &fakeAudioSession{data: data, stopped: make(chan struct{})}
}

func (f *fakeAudioSession) Read(p []byte) (int, error) {
	f.mu.Lock()
	if f.readErr != nil {
		err := f.readErr
		f.mu.Unlock()
		return 0, err
	}
	if !f.sent && len(f.data) > 0 {
		n := copy(p, f.data)
		f.data = f.data[n:]
		if len(f.data) == 0 {
			f.sent = true
		}
		f.mu.Unlock()
		return n, nil
	}
	f.mu.Unlock()

	<-f.stopped
	return 0, io.EOF
}

func (f *fakeAudioSession) Close() error { return nil }

func (f *fakeAudioSession) Stop() error {
	f.mu.Lock()
	f.stopCalls++
	f.mu.Unlock()
	f.stopOnce.Do(func() { close(f.stopped) })
	return nil
}

func (f *fakeAudioSession) stops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopCalls
}

// fakePermissions holds each request on gate, when set, until the gate is
// closed or the context ends.
type fakePermissions struct {
	mu      sync.Mutex
	err     error
	calls   int
	gate    chan struct{}
	entered chan struct{}
}

func (f *fakePermissions) RequestMicrophone(ctx context.Context, _ ports.AudioConfig) error {
	f.mu.Lock()
	f.calls++
	err := f.err
	f.mu.Unlock()

	if f.gate != nil {
		if f.entered != nil {
			f.entered <- struct{}{}
		}
		select {
		case <-f.gate:
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", domain.ErrDeviceUnavailable, ctx.Err())
		}
	}
	return err
}

func (f *fakePermissions) requests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakePlayer struct {
	mu          sync.Mutex
	err         error
	sessions    []*fakePlaybackSession
	live        int
	maxLive     int
	liveAtStart []int

	// gate, when set, holds Start like a slow output device. With
	// ignoreCancel the device opens even after the context ends.
	gate         chan struct{}
	entered      chan struct{}
	ignoreCancel bool
}

func (f *fakePlayer) Start(ctx context.Context, audio io.Reader) (ports.PlaybackSession, error) {
	if f.gate != nil {
		if f.entered != nil {
			f.entered <- struct{}{}
		}
		if f.ignoreCancel {
			<-f.gate
		} else {
			select {
			case <-f.gate:
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", domain.ErrPlaybackDevice, ctx.Err())
			}
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.liveAtStart = append(f.liveAtStart, f.live)
	if f.err != nil {
		return nil, f.err
	}
	data, _ := io.ReadAll(audio)
	session := &fakePlaybackSession{player: f, data: data, done: make(chan struct{})}
	f.sessions = append(f.sessions, session)
	f.live++
	if f.live > f.maxLive {
		f.maxLive = f.live
	}
	return session, nil
}

func (f *fakePlayer) snapshot() (starts int, live int, maxLive int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.liveAtStart), f.live, f.maxLive
}

func (f *fakePlayer) session(i int) *fakePlaybackSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions[i]
}

type fakePlaybackSession struct {
	player *fakePlayer
	data   []byte
	done   chan struct{}
	once   sync.Once
}

func (s *fakePlaybackSession) Done() <-chan struct{} { return s.done }

// finish simulates the clip playing to its end.
func (s *fakePlaybackSession) finish() {
	s.once.Do(func() {
		s.player.mu.Lock()
		s.player.live--
		s.player.mu.Unlock()
		close(s.done)
	})
}

func (s *fakePlaybackSession) Stop() error {
	s.finish()
	return nil
}

type trackedStream struct {
	io.Reader
	mu     sync.Mutex
	closed int
}

func newTrackedStream(data string) *trackedStream {
	return &trackedStream{Reader: bytes.NewReader([]byte(data))}
}

func (s *trackedStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func (s *trackedStream) closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// fakeClient records call order. A non-nil gate blocks the matching call
// until the gate is closed or the context ends.
type fakeClient struct {
	mu sync.Mutex

	welcome    string
	welcomeErr error
	result     domain.UploadResult
	uploadErr  error
	audio      []byte
	audioErr   error

	uploadGate chan struct{}
	fetchGate  chan struct{}
	entered    chan string

	calls    []string
	uploaded []domain.CapturedAudio
}

func (f *fakeClient) SubmitProfile(ctx context.Context, _ domain.ProfileData) (domain.WelcomeResult, error) {
	f.record("setup")
	if f.welcomeErr != nil {
		return domain.WelcomeResult{}, f.welcomeErr
	}
	return domain.WelcomeResult{WelcomeMessage: f.welcome}, nil
}

func (f *fakeClient) UploadAudio(ctx context.Context, audio domain.CapturedAudio) (domain.UploadResult, error) {
	f.record("receive")
	f.mu.Lock()
	f.uploaded = append(f.uploaded, audio)
	f.mu.Unlock()
	if err := f.wait(ctx, f.uploadGate, "receive"); err != nil {
		return domain.UploadResult{}, err
	}
	if f.uploadErr != nil {
		return domain.UploadResult{}, f.uploadErr
	}
	return f.result, nil
}

func (f *fakeClient) FetchReplyAudio(ctx context.Context) (io.ReadCloser, error) {
	f.record("audio")
	if err := f.wait(ctx, f.fetchGate, "audio"); err != nil {
		return nil, err
	}
	if f.audioErr != nil {
		return nil, f.audioErr
	}
	return io.NopCloser(bytes.NewReader(f.audio)), nil
}

func (f *fakeClient) wait(ctx context.Context, gate chan struct{}, op string) error {
	if gate == nil {
		return nil
	}
	if f.entered != nil {
		f.entered <- op
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return &domain.NetworkError{Op: op, Err: ctx.Err()}
	}
}

func (f *fakeClient) record(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op)
}

func (f *fakeClient) snapshotCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fakeEventSink struct {
	mu sync.Mutex

	states   []stateEvent
	messages []domain.ChatMessage
	resets   [][]domain.ChatMessage
	playback []bool
	errors   []errEvent
}

type stateEvent struct {
	state  domain.SessionState
	reason domain.SessionStateReason
}

type errEvent struct {
	code   domain.ErrorCode
	detail string
}

func (f *fakeEventSink) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, stateEvent{state: state, reason: reason})
}

func (f *fakeEventSink) MessageAppended(message domain.ChatMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, message)
}

func (f *fakeEventSink) HistoryReset(messages []domain.ChatMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets = append(f.resets, messages)
}

func (f *fakeEventSink) PlaybackChanged(active bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playback = append(f.playback, active)
}

func (f *fakeEventSink) SessionError(code domain.ErrorCode, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, errEvent{code: code, detail: detail})
}

func (f *fakeEventSink) snapshotStates() []stateEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]stateEvent, len(f.states))
	copy(out, f.states)
	return out
}

func (f *fakeEventSink) snapshotErrors() []errEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]errEvent, len(f.errors))
	copy(out, f.errors)
	return out
}

func (f *fakeEventSink) snapshotMessages() []domain.ChatMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ChatMessage(nil), f.messages...)
}

func (f *fakeEventSink) eventCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.states) + len(f.messages) + len(f.resets) + len(f.playback) + len(f.errors)
}

type fakeSessionObserver struct {
	mu        sync.Mutex
	trips     []string
	playbacks []string
}

func (f *fakeSessionObserver) ObserveRoundTrip(outcome string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trips = append(f.trips, outcome)
}

func (f *fakeSessionObserver) ObservePlayback(outcome string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playbacks = append(f.playbacks, outcome)
}
