package bootstrap

import (
	"testing"

	"voicecap/internal/config"
	"voicecap/internal/domain"
)

func TestBuildAssemblesGraph(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config load failed: %v", err)
	}

	services := Build(cfg, noopEventSink{}, nil)
	if services.Session == nil {
		t.Fatalf("expected session")
	}
	if services.Registry == nil {
		t.Fatalf("expected metrics registry")
	}
	if got := services.Session.Snapshot().Phase; got != domain.PhaseIdle {
		t.Fatalf("fresh session must be idle, got %s", got)
	}
}

func TestBuildKeepsConfig(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config load failed: %v", err)
	}
	cfg.Backend.URL = "wss://voice.example.com"

	services := Build(cfg, noopEventSink{}, nil)
	if services.Config.Backend.URL != "wss://voice.example.com" {
		t.Fatalf("config not carried through: %+v", services.Config.Backend)
	}
}

type noopEventSink struct{}

func (noopEventSink) PhaseChanged(_ domain.Phase) {}
func (noopEventSink) TranscriptChanged(_ string)  {}
func (noopEventSink) VolumeChanged(_ float64)     {}
func (noopEventSink) ConnectionChanged(_ bool)    {}
