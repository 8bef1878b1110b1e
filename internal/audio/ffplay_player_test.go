package audio

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"vozchat/internal/domain"
)

func TestFFPlayPlayerStartAndStop(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "play.sh", "#!/usr/bin/env bash\ncat >/dev/null\nsleep 2\n")
	player := NewFFPlayPlayer(script)

	session, err := player.Start(context.Background(), bytes.NewReader([]byte("mp3 bytes")))
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	select {
	case <-session.Done():
		t.Fatalf("expected playback to still be running")
	default:
	}

	if err := session.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	select {
	case <-session.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("expected playback to be released after stop")
	}
	if err := session.Stop(); err != nil {
		t.Fatalf("second stop should be a no-op, got %v", err)
	}
}

func TestFFPlayPlayerShortClipFinishes(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "short.sh", "#!/usr/bin/env bash\ncat >/dev/null\nexit 0\n")
	player := NewFFPlayPlayer(script)

	session, err := player.Start(context.Background(), bytes.NewReader([]byte("x")))
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	select {
	case <-session.Done():
	default:
		t.Fatalf("expected finished session")
	}
	if err := session.Stop(); err != nil {
		t.Fatalf("stop of finished session failed: %v", err)
	}
}

func TestFFPlayPlayerDecodeError(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "bad.sh", "#!/usr/bin/env bash\ncat >/dev/null\necho 'pipe:0: Invalid data found when processing input' 1>&2\nexit 1\n")
	player := NewFFPlayPlayer(script)

	_, err := player.Start(context.Background(), bytes.NewReader([]byte("garbage")))
	if !errors.Is(err, domain.ErrDecode) {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestFFPlayPlayerMissingCommand(t *testing.T) {
	t.Parallel()

	player := NewFFPlayPlayer(filepath.Join(t.TempDir(), "missing-ffplay"))
	_, err := player.Start(context.Background(), bytes.NewReader(nil))
	if !errors.Is(err, domain.ErrPlaybackDevice) {
		t.Fatalf("expected playback device error, got %v", err)
	}
}

func TestClassifyPlaybackErrorAudioDevice(t *testing.T) {
	t.Parallel()

	err := classifyPlaybackError(errors.New("exit"), "Could not open audio device")
	if !errors.Is(err, domain.ErrPlaybackDevice) {
		t.Fatalf("expected playback device error, got %v", err)
	}
}
