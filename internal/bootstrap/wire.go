package bootstrap

import (
	"context"
	"os"

	"vozchat/internal/audio"
	"vozchat/internal/config"
	"vozchat/internal/metrics"
	"vozchat/internal/observability"
	"vozchat/internal/ports"
	"vozchat/internal/remote"
	"vozchat/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Session *usecase.ChatSession
	Client  *remote.Client
	Metrics *metrics.Metrics
	Config  config.Config
}

// Build wires all backend dependencies for the current runtime.
func Build(eventSink ports.EventSink) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}
	return BuildWithConfig(cfg, eventSink)
}

// BuildWithConfig wires the runtime graph from an already resolved configuration.
func BuildWithConfig(cfg config.Config, eventSink ports.EventSink) (Services, error) {
	observability.Configure(os.Stderr, cfg.Observability.LogLevel, cfg.Observability.LogFormat)

	collectors := metrics.NewMetrics()

	client, err := remote.NewClient(remote.Config{
		BaseURL:       cfg.Remote.BaseURL,
		Timeout:       cfg.Remote.Timeout,
		MaxAudioBytes: cfg.Remote.MaxAudioBytes,
	}, collectors)
	if err != nil {
		return Services{}, err
	}

	var permissions ports.PermissionRequester = audio.GrantedPermissions{}
	if cfg.Audio.ProbeMicrophone {
		permissions = audio.NewDeviceProbe(cfg.Audio.RecorderCommand)
	}

	capture := usecase.NewAudioCaptureController(
		audio.NewFFMPEGCapture(cfg.Audio.RecorderCommand),
		permissions,
		usecase.CaptureConfig{
			Audio: ports.AudioConfig{
				SampleRate:  cfg.Audio.SampleRate,
				Channels:    cfg.Audio.Channels,
				InputFormat: cfg.Audio.InputFormat,
				InputDevice: cfg.Audio.InputDevice,
			},
			ChunkSize:   cfg.Session.ChunkSize,
			MinDuration: cfg.Session.MinCapture,
		},
	)
	playback := usecase.NewPlaybackController(audio.NewFFPlayPlayer(cfg.Audio.PlayerCommand))

	session := usecase.NewChatSession(capture, playback, client, eventSink, collectors)

	observability.WithFields("component", "bootstrap").Info("runtime assembled",
		"base_url", cfg.Remote.BaseURL,
		"session_id", client.SessionID(),
		"input_format", cfg.Audio.InputFormat,
		"input_device", cfg.Audio.InputDevice,
	)

	return Services{Session: session, Client: client, Metrics: collectors, Config: cfg}, nil
}

// StartMetrics serves /metrics in the background when an address is configured.
func (s Services) StartMetrics(ctx context.Context) {
	addr := s.Config.Observability.MetricsAddr
	if addr == "" || s.Metrics == nil {
		return
	}
	logger := observability.WithFields("component", "metrics", "addr", addr)
	go func() {
		if err := s.Metrics.Serve(ctx, addr); err != nil {
			logger.Error("metrics listener stopped", "error", err)
		}
	}()
	logger.Info("metrics listener started")
}
