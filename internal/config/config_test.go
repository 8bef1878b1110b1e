package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var configKeys = []string{
	"VOZCHAT_CONFIG",
	"VOZCHAT_BASE_URL",
	"VOZCHAT_HTTP_TIMEOUT_MS",
	"VOZCHAT_MAX_AUDIO_BYTES",
	"VOZCHAT_FFMPEG_COMMAND",
	"VOZCHAT_FFPLAY_COMMAND",
	"VOZCHAT_AUDIO_INPUT_FORMAT",
	"VOZCHAT_AUDIO_INPUT_DEVICE",
	"PULSE_SOURCE",
	"VOZCHAT_SAMPLE_RATE",
	"VOZCHAT_CHANNELS",
	"VOZCHAT_PROBE_MICROPHONE",
	"VOZCHAT_AUDIO_CHUNK_SIZE",
	"VOZCHAT_MIN_CAPTURE_MS",
	"VOZCHAT_LOG_LEVEL",
	"VOZCHAT_LOG_FORMAT",
	"VOZCHAT_METRICS_ADDR",
	"VOZCHAT_DEVSERVER_ADDR",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg != Defaults() {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
	if cfg.Remote.BaseURL != "http://127.0.0.1:5000" || cfg.Remote.Timeout != 30*time.Second {
		t.Fatalf("unexpected remote defaults: %+v", cfg.Remote)
	}
}

func TestLoadRespectsOverridesAndFallbacks(t *testing.T) {
	clearEnv(t)
	t.Setenv("VOZCHAT_BASE_URL", "https://assistant.example.com")
	t.Setenv("VOZCHAT_HTTP_TIMEOUT_MS", "1500")
	t.Setenv("VOZCHAT_MAX_AUDIO_BYTES", "1024")
	t.Setenv("VOZCHAT_FFMPEG_COMMAND", "my-ffmpeg")
	t.Setenv("VOZCHAT_FFPLAY_COMMAND", "my-ffplay")
	t.Setenv("VOZCHAT_AUDIO_INPUT_FORMAT", "alsa")
	t.Setenv("PULSE_SOURCE", "mic1")
	t.Setenv("VOZCHAT_SAMPLE_RATE", "22050")
	t.Setenv("VOZCHAT_CHANNELS", "2")
	t.Setenv("VOZCHAT_PROBE_MICROPHONE", "off")
	t.Setenv("VOZCHAT_AUDIO_CHUNK_SIZE", "512")
	t.Setenv("VOZCHAT_MIN_CAPTURE_MS", "300")
	t.Setenv("VOZCHAT_LOG_LEVEL", "debug")
	t.Setenv("VOZCHAT_LOG_FORMAT", "json")
	t.Setenv("VOZCHAT_METRICS_ADDR", ":9464")
	t.Setenv("VOZCHAT_DEVSERVER_ADDR", ":5001")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Remote.BaseURL != "https://assistant.example.com" || cfg.Remote.Timeout != 1500*time.Millisecond || cfg.Remote.MaxAudioBytes != 1024 {
		t.Fatalf("unexpected remote config: %+v", cfg.Remote)
	}
	if cfg.Audio.RecorderCommand != "my-ffmpeg" || cfg.Audio.PlayerCommand != "my-ffplay" || cfg.Audio.InputFormat != "alsa" {
		t.Fatalf("unexpected audio commands: %+v", cfg.Audio)
	}
	if cfg.Audio.InputDevice != "mic1" {
		t.Fatalf("expected PULSE_SOURCE fallback, got %q", cfg.Audio.InputDevice)
	}
	if cfg.Audio.SampleRate != 22050 || cfg.Audio.Channels != 2 || cfg.Audio.ProbeMicrophone {
		t.Fatalf("unexpected audio format: %+v", cfg.Audio)
	}
	if cfg.Session.ChunkSize != 512 || cfg.Session.MinCapture != 300*time.Millisecond {
		t.Fatalf("unexpected session config: %+v", cfg.Session)
	}
	if cfg.Observability.LogLevel != "debug" || cfg.Observability.LogFormat != "json" || cfg.Observability.MetricsAddr != ":9464" {
		t.Fatalf("unexpected observability config: %+v", cfg.Observability)
	}
	if cfg.DevServer.Addr != ":5001" {
		t.Fatalf("unexpected devserver addr: %q", cfg.DevServer.Addr)
	}

	t.Setenv("VOZCHAT_AUDIO_INPUT_DEVICE", "mic0")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Audio.InputDevice != "mic0" {
		t.Fatalf("expected explicit device priority, got %q", cfg.Audio.InputDevice)
	}
}

func TestLoadInvalidNumericValuesFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv("VOZCHAT_HTTP_TIMEOUT_MS", "bad")
	t.Setenv("VOZCHAT_MAX_AUDIO_BYTES", "-5")
	t.Setenv("VOZCHAT_SAMPLE_RATE", "bad")
	t.Setenv("VOZCHAT_CHANNELS", "-1")
	t.Setenv("VOZCHAT_AUDIO_CHUNK_SIZE", "5")
	t.Setenv("VOZCHAT_MIN_CAPTURE_MS", "-10")
	t.Setenv("VOZCHAT_PROBE_MICROPHONE", "not-bool")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg != Defaults() {
		t.Fatalf("expected every invalid value to fall back, got %+v", cfg)
	}
}

func TestLoadYAMLFileWithEnvOverride(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "vozchat.yaml")
	content := `remote:
  base_url: http://10.0.0.5:5000
  timeout: 12s
audio:
  input_format: alsa
  probe_microphone: false
session:
  min_capture: 250ms
observability:
  metrics_addr: 127.0.0.1:9100
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	t.Setenv("VOZCHAT_CONFIG", path)
	t.Setenv("VOZCHAT_BASE_URL", "http://override:5000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Remote.BaseURL != "http://override:5000" {
		t.Fatalf("environment must win over file, got %q", cfg.Remote.BaseURL)
	}
	if cfg.Remote.Timeout != 12*time.Second || cfg.Audio.InputFormat != "alsa" || cfg.Audio.ProbeMicrophone {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Session.MinCapture != 250*time.Millisecond || cfg.Observability.MetricsAddr != "127.0.0.1:9100" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Audio.RecorderCommand != "ffmpeg" || cfg.Audio.SampleRate != 16000 {
		t.Fatalf("unset file keys must keep defaults: %+v", cfg.Audio)
	}
}

func TestLoadRejectsBrokenYAML(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("remote: [unterminated"), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	t.Setenv("VOZCHAT_CONFIG", path)

	if _, err := Load(); err == nil {
		t.Fatalf("expected parse error")
	}

	t.Setenv("VOZCHAT_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatalf("expected missing file error")
	}
}
