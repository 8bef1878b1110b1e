package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config stores runtime configuration for the voice chat client.
type Config struct {
	Remote        RemoteConfig        `yaml:"remote"`
	Audio         AudioConfig         `yaml:"audio"`
	Session       SessionConfig       `yaml:"session"`
	Observability ObservabilityConfig `yaml:"observability"`
	DevServer     DevServerConfig     `yaml:"devserver"`
}

type RemoteConfig struct {
	BaseURL       string        `yaml:"base_url"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxAudioBytes int64         `yaml:"max_audio_bytes"`
}

type AudioConfig struct {
	RecorderCommand string `yaml:"ffmpeg_command"`
	PlayerCommand   string `yaml:"ffplay_command"`
	InputFormat     string `yaml:"input_format"`
	InputDevice     string `yaml:"input_device"`
	SampleRate      int    `yaml:"sample_rate"`
	Channels        int    `yaml:"channels"`
	ProbeMicrophone bool   `yaml:"probe_microphone"`
}

type SessionConfig struct {
	ChunkSize  int           `yaml:"chunk_size"`
	MinCapture time.Duration `yaml:"min_capture"`
}

type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	MetricsAddr string `yaml:"metrics_addr"`
}

type DevServerConfig struct {
	Addr string `yaml:"addr"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Remote: RemoteConfig{
			BaseURL:       "http://127.0.0.1:5000",
			Timeout:       30 * time.Second,
			MaxAudioBytes: 32 << 20,
		},
		Audio: AudioConfig{
			RecorderCommand: "ffmpeg",
			PlayerCommand:   "ffplay",
			InputFormat:     "pulse",
			InputDevice:     "default",
			SampleRate:      16000,
			Channels:        1,
			ProbeMicrophone: true,
		},
		Session: SessionConfig{
			ChunkSize:  4096,
			MinCapture: 150 * time.Millisecond,
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "text",
		},
		DevServer: DevServerConfig{
			Addr: "127.0.0.1:5000",
		},
	}
}

// Load resolves configuration from a .env file, an optional YAML file named by
// VOZCHAT_CONFIG, and environment variables, in increasing priority.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Defaults()
	if path := strings.TrimSpace(os.Getenv("VOZCHAT_CONFIG")); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	cfg.Remote.BaseURL = envOrDefault("VOZCHAT_BASE_URL", cfg.Remote.BaseURL)
	cfg.Remote.Timeout = envOrDefaultMillis("VOZCHAT_HTTP_TIMEOUT_MS", cfg.Remote.Timeout)
	cfg.Remote.MaxAudioBytes = int64(envOrDefaultInt("VOZCHAT_MAX_AUDIO_BYTES", int(cfg.Remote.MaxAudioBytes)))

	cfg.Audio.RecorderCommand = envOrDefault("VOZCHAT_FFMPEG_COMMAND", cfg.Audio.RecorderCommand)
	cfg.Audio.PlayerCommand = envOrDefault("VOZCHAT_FFPLAY_COMMAND", cfg.Audio.PlayerCommand)
	cfg.Audio.InputFormat = envOrDefault("VOZCHAT_AUDIO_INPUT_FORMAT", cfg.Audio.InputFormat)
	cfg.Audio.InputDevice = firstNonEmpty(
		os.Getenv("VOZCHAT_AUDIO_INPUT_DEVICE"),
		os.Getenv("PULSE_SOURCE"),
		cfg.Audio.InputDevice,
	)
	cfg.Audio.SampleRate = envOrDefaultInt("VOZCHAT_SAMPLE_RATE", cfg.Audio.SampleRate)
	cfg.Audio.Channels = envOrDefaultInt("VOZCHAT_CHANNELS", cfg.Audio.Channels)
	cfg.Audio.ProbeMicrophone = envOrDefaultBool("VOZCHAT_PROBE_MICROPHONE", cfg.Audio.ProbeMicrophone)

	cfg.Session.ChunkSize = envOrDefaultInt("VOZCHAT_AUDIO_CHUNK_SIZE", cfg.Session.ChunkSize)
	cfg.Session.MinCapture = envOrDefaultMillis("VOZCHAT_MIN_CAPTURE_MS", cfg.Session.MinCapture)

	cfg.Observability.LogLevel = envOrDefault("VOZCHAT_LOG_LEVEL", cfg.Observability.LogLevel)
	cfg.Observability.LogFormat = envOrDefault("VOZCHAT_LOG_FORMAT", cfg.Observability.LogFormat)
	cfg.Observability.MetricsAddr = envOrDefault("VOZCHAT_METRICS_ADDR", cfg.Observability.MetricsAddr)

	cfg.DevServer.Addr = envOrDefault("VOZCHAT_DEVSERVER_ADDR", cfg.DevServer.Addr)

	normalize(&cfg)
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func normalize(cfg *Config) {
	defaults := Defaults()
	if cfg.Remote.Timeout <= 0 {
		cfg.Remote.Timeout = defaults.Remote.Timeout
	}
	if cfg.Remote.MaxAudioBytes <= 0 {
		cfg.Remote.MaxAudioBytes = defaults.Remote.MaxAudioBytes
	}
	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = defaults.Audio.SampleRate
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = defaults.Audio.Channels
	}
	if cfg.Session.ChunkSize < 256 {
		cfg.Session.ChunkSize = defaults.Session.ChunkSize
	}
	if cfg.Session.MinCapture < 0 {
		cfg.Session.MinCapture = defaults.Session.MinCapture
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func envOrDefaultMillis(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return fallback
	}
	return time.Duration(parsed) * time.Millisecond
}
