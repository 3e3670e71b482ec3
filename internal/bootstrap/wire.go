// Package bootstrap assembles the runtime graph.
package bootstrap

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"voicecap/internal/audio"
	"voicecap/internal/config"
	"voicecap/internal/control"
	"voicecap/internal/endpoint"
	"voicecap/internal/metrics"
	"voicecap/internal/ports"
	"voicecap/internal/session"
)

// Services is the assembled runtime graph.
type Services struct {
	Session  *session.Session
	Config   config.Config
	Registry *prometheus.Registry
}

// Build wires a capture session from resolved configuration.
func Build(cfg config.Config, events ports.EventSink, log *slog.Logger) Services {
	registry := prometheus.NewRegistry()

	sess := session.New(
		audio.NewFFmpegCapture(cfg.Audio.RecorderCommand),
		control.NewDialer(log),
		events,
		metrics.New(registry),
		log,
		session.Config{
			Endpoint: endpoint.Config{
				BackendURL:   cfg.Backend.URL,
				DemoHostname: cfg.Backend.DemoHostname,
				LocalHosts:   cfg.Backend.LocalHosts,
				LocalBackend: cfg.Backend.LocalBackend,
			},
			Location: endpoint.Location{
				Hostname: cfg.Backend.Hostname,
				Port:     cfg.Backend.Port,
				Secure:   cfg.Backend.Secure,
			},
			Audio: ports.AudioConfig{
				SampleRate:  cfg.Audio.SampleRate,
				Channels:    cfg.Audio.Channels,
				InputFormat: cfg.Audio.InputFormat,
				InputDevice: cfg.Audio.InputDevice,
				Denoise:     cfg.Audio.Denoise,
			},
			ChunkInterval: cfg.Session.ChunkInterval,
			MeterInterval: cfg.Session.MeterInterval,
			ReadSize:      cfg.Session.ReadSize,
		},
	)

	return Services{Session: sess, Config: cfg, Registry: registry}
}
