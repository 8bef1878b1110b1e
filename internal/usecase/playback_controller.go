package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"vozchat/internal/domain"
	"vozchat/internal/observability"
	"vozchat/internal/ports"
)

// PlaybackController is a single-slot owner of reply audio playback.
type PlaybackController struct {
	player ports.AudioPlayer
	logger *slog.Logger

	// playMu serializes Play so release-before-acquire holds across callers.
	playMu sync.Mutex

	mu       sync.Mutex
	current  *playbackHandle
	pending  *pendingStart
	nextID   uint64
	disposed bool
	onChange func(active bool)
}

func NewPlaybackController(player ports.AudioPlayer) *PlaybackController {
	return &PlaybackController{
		player: player,
		logger: observability.WithFields("component", "playback"),
	}
}

// OnChange registers a hook called whenever a handle is acquired or released.
func (p *PlaybackController) OnChange(fn func(active bool)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onChange = fn
}

// Play releases the current handle and starts stream. stream is closed once
// playback ends or fails.
func (p *PlaybackController) Play(ctx context.Context, stream io.ReadCloser) error {
	p.playMu.Lock()
	defer p.playMu.Unlock()

	p.mu.Lock()
	if p.disposed {
		p.mu.Unlock()
		_ = stream.Close()
		return fmt.Errorf("%w: playback controller disposed", domain.ErrInvalidState)
	}
	previous := p.current
	p.current = nil
	startCtx, cancel := context.WithCancel(ctx)
	pending := &pendingStart{cancel: cancel, done: make(chan struct{})}
	p.pending = pending
	p.mu.Unlock()
	defer close(pending.done)
	defer cancel()

	if previous != nil {
		p.release(previous)
		p.notify(false)
	}

	session, err := p.player.Start(startCtx, stream)
	if err != nil {
		p.mu.Lock()
		p.pending = nil
		p.mu.Unlock()
		_ = stream.Close()
		if !errors.Is(err, domain.ErrDecode) && !errors.Is(err, domain.ErrPlaybackDevice) {
			err = fmt.Errorf("%w: %v", domain.ErrPlaybackDevice, err)
		}
		p.logger.Warn("playback failed to start", "error", err)
		return err
	}

	p.mu.Lock()
	p.pending = nil
	if p.disposed {
		p.mu.Unlock()
		_ = session.Stop()
		_ = stream.Close()
		return fmt.Errorf("%w: playback controller disposed", domain.ErrInvalidState)
	}
	p.nextID++
	handle := &playbackHandle{id: p.nextID, session: session, stream: stream}
	p.current = handle
	p.mu.Unlock()

	p.logger.Debug("playback started", "handle", handle.id)
	p.notify(true)
	go p.watch(handle)
	return nil
}

// watch frees handle when playback ends on its own. A handle that was
// already replaced or released is left alone.
func (p *PlaybackController) watch(handle *playbackHandle) {
	<-handle.session.Done()

	p.mu.Lock()
	owned := p.current == handle
	if owned {
		p.current = nil
	}
	p.mu.Unlock()

	if !owned {
		return
	}
	p.release(handle)
	p.logger.Debug("playback finished", "handle", handle.id)
	p.notify(false)
}

// Stop releases the current handle, if any.
func (p *PlaybackController) Stop() {
	p.mu.Lock()
	handle := p.current
	p.current = nil
	p.mu.Unlock()

	if handle != nil {
		p.release(handle)
		p.notify(false)
	}
}

// Dispose releases the current handle, waiting for a Play that is still
// starting the player. Later Play calls fail.
func (p *PlaybackController) Dispose() {
	p.mu.Lock()
	if p.disposed {
		p.mu.Unlock()
		return
	}
	p.disposed = true
	handle := p.current
	p.current = nil
	pending := p.pending
	p.mu.Unlock()

	if pending != nil {
		pending.cancel()
		<-pending.done
	}

	if handle != nil {
		p.release(handle)
		p.notify(false)
	}
}

// Active reports whether a handle is held.
func (p *PlaybackController) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current != nil
}

func (p *PlaybackController) release(handle *playbackHandle) {
	if err := handle.session.Stop(); err != nil {
		p.logger.Debug("playback stop returned error", "handle", handle.id, "error", err)
	}
	_ = handle.stream.Close()
}

func (p *PlaybackController) notify(active bool) {
	p.mu.Lock()
	fn := p.onChange
	p.mu.Unlock()
	if fn != nil {
		fn(active)
	}
}
