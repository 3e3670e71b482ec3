package ports

import (
	"context"
	"io"

	"voicecap/internal/domain"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
	Denoise     bool
}

// AudioSession is a live microphone capture.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// ControlChannel is an open connection to the voice-processing backend.
// Outbound traffic is opaque binary audio chunks; inbound traffic is
// typed JSON messages surfaced on Messages.
type ControlChannel interface {
	SendAudio(chunk []byte) error
	Messages() <-chan domain.ServerMessage
	CloseSend() error
	Wait() error
	Close() error
}

// ControlDialer opens control channels.
type ControlDialer interface {
	Dial(ctx context.Context, url string) (ControlChannel, error)
}

// EventSink receives observable-state changes for the embedding UI.
type EventSink interface {
	PhaseChanged(phase domain.Phase)
	TranscriptChanged(text string)
	VolumeChanged(level float64)
	ConnectionChanged(connected bool)
}
