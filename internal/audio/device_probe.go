package audio

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"vozchat/internal/ports"
)

// DeviceProbe checks microphone access by reading a few milliseconds of audio.
type DeviceProbe struct {
	command string
	timeout time.Duration
}

func NewDeviceProbe(command string) *DeviceProbe {
	if command == "" {
		command = "ffmpeg"
	}
	return &DeviceProbe{command: command, timeout: 3 * time.Second}
}

func (p *DeviceProbe) RequestMicrophone(ctx context.Context, cfg ports.AudioConfig) error {
	cfg = withCaptureDefaults(cfg)

	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(probeCtx, p.command,
		"-nostdin",
		"-hide_banner",
		"-loglevel", "error",
		"-f", cfg.InputFormat,
		"-i", cfg.InputDevice,
		"-t", "0.05",
		"-f", "null",
		"-",
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if probeCtx.Err() != nil {
			return classifyDeviceError(fmt.Errorf("microphone probe timed out: %w", probeCtx.Err()), stringsTrimSpaceSafe(stderr.String()))
		}
		return classifyDeviceError(fmt.Errorf("microphone probe failed: %w", err), stringsTrimSpaceSafe(stderr.String()))
	}
	return nil
}

// GrantedPermissions is used where the platform has no permission prompt.
type GrantedPermissions struct{}

func (GrantedPermissions) RequestMicrophone(context.Context, ports.AudioConfig) error { return nil }
