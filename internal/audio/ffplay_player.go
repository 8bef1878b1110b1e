package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"vozchat/internal/domain"
	"vozchat/internal/ports"
)

// FFPlayPlayer plays encoded audio streams through ffplay.
type FFPlayPlayer struct {
	command string
}

func NewFFPlayPlayer(command string) *FFPlayPlayer {
	if command == "" {
		command = "ffplay"
	}
	return &FFPlayPlayer{command: command}
}

// Start feeds audio to ffplay on stdin. The process outlives ctx; ctx only bounds startup.
func (p *FFPlayPlayer) Start(ctx context.Context, audio io.Reader) (ports.PlaybackSession, error) {
	cmd := exec.Command(p.command,
		"-nodisp",
		"-autoexit",
		"-hide_banner",
		"-loglevel", "error",
		"-i", "pipe:0",
	)
	cmd.Stdin = audio
	stderr := &lockedBuffer{}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: failed to start ffplay: %v", domain.ErrPlaybackDevice, err)
	}

	waitErr := make(chan error, 1)
	done := make(chan struct{})
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
		close(done)
	}()

	session := &ffplaySession{process: cmd.Process, waitErr: waitErr, done: done, stderr: stderr}

	select {
	case <-done:
		err, ok := <-waitErr
		if !ok || err == nil {
			// Clip shorter than the startup window; it already played.
			session.finished = true
			return session, nil
		}
		return nil, classifyPlaybackError(err, stringsTrimSpaceSafe(stderr.String()))
	case <-ctx.Done():
		_ = session.Stop()
		return nil, fmt.Errorf("%w: playback start cancelled: %v", domain.ErrPlaybackDevice, ctx.Err())
	case <-time.After(startupWindow):
	}

	return session, nil
}

type ffplaySession struct {
	process  *os.Process
	waitErr  <-chan error
	done     chan struct{}
	stderr   *lockedBuffer
	finished bool

	stopOnce sync.Once
	stopErr  error
}

func (s *ffplaySession) Done() <-chan struct{} {
	return s.done
}

func (s *ffplaySession) Stop() error {
	s.stopOnce.Do(func() {
		if s.finished {
			return
		}
		select {
		case <-s.done:
			return
		default:
		}
		s.stopErr = stopProcess(s.process, s.waitErr, 500*time.Millisecond)
		<-s.done
	})
	return s.stopErr
}

// classifyPlaybackError separates undecodable input from output device trouble.
func classifyPlaybackError(err error, stderr string) error {
	if stderr != "" {
		err = fmt.Errorf("%w: %s", err, stderr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && !bytes.Contains(bytes.ToLower([]byte(stderr)), []byte("audio device")) {
		return fmt.Errorf("%w: %v", domain.ErrDecode, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrPlaybackDevice, err)
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
