package usecase

import (
	"bytes"
	"context"
	"io"
	"sync"

	"vozchat/internal/domain"
	"vozchat/internal/ports"
)

type activeCapture struct {
	recording domain.RecordingSession
	cancel    func()
	audio     ports.AudioSession
	buffer    *captureBuffer
	audioDone chan struct{}
}

// release stops the device and waits for the pump to drain.
func (a *activeCapture) release() error {
	stopErr := a.audio.Stop()
	<-a.audioDone
	a.cancel()
	_ = a.audio.Close()
	return stopErr
}

// pendingStart is a device acquisition in flight. done closes once the
// acquiring call has returned and released anything it no longer owns.
type pendingStart struct {
	cancel  context.CancelFunc
	done    chan struct{}
	aborted bool
}

// captureBuffer accumulates PCM written by the pump goroutine.
type captureBuffer struct {
	mu      sync.Mutex
	data    bytes.Buffer
	readErr error
}

func (b *captureBuffer) write(p []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data.Write(p)
}

func (b *captureBuffer) fail(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.readErr = err
}

func (b *captureBuffer) snapshot() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]byte, b.data.Len())
	copy(out, b.data.Bytes())
	return out, b.readErr
}

type playbackHandle struct {
	id      uint64
	session ports.PlaybackSession
	stream  io.Closer
}
