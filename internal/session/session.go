// Package session implements the voice capture session: microphone
// acquisition, volume metering, chunked audio transmission over a
// control channel, and the lifecycle phase machine with its demo-mode
// fallback.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"voicecap/internal/audio"
	"voicecap/internal/domain"
	"voicecap/internal/endpoint"
	"voicecap/internal/metrics"
	"voicecap/internal/ports"
	"voicecap/internal/transcript"
)

// ErrSessionActive is returned by Start while a capture is already
// running or starting.
var ErrSessionActive = errors.New("capture session already active")

// Config controls capture behavior.
type Config struct {
	Endpoint endpoint.Config
	Location endpoint.Location
	Audio    ports.AudioConfig

	// ChunkInterval is the cadence at which accumulated audio is
	// flushed and transmitted as one binary frame.
	ChunkInterval time.Duration
	// MeterInterval is the cadence at which the volume level is
	// published to the event sink.
	MeterInterval time.Duration
	// ReadSize is the capture read buffer size.
	ReadSize int
}

// Session owns every resource of one voice capture at a time: the
// microphone, the metering and flush loops, and the control channel.
// All resources acquired by Start have exactly one release path, which
// runs on Stop regardless of phase.
type Session struct {
	capture ports.AudioCapture
	dialer  ports.ControlDialer
	events  ports.EventSink
	stats   *metrics.Recorder
	log     *slog.Logger
	cfg     Config

	mu            sync.Mutex
	phase         domain.Phase
	transcript    string
	volume        float64
	connected     bool
	demo          bool
	starting      bool
	stopRequested bool
	active        *activeCapture
}

type activeCapture struct {
	id        string
	startedAt time.Time
	audio     ports.AudioSession
	channel   ports.ControlChannel // nil in demo mode
	chunks    *audio.ChunkBuffer

	level atomic.Uint64 // math.Float64bits of the latest meter reading

	quit      chan struct{}
	pumpDone  chan struct{}
	meterDone chan struct{}
	flushDone chan struct{}
	msgDone   chan struct{}
}

func (a *activeCapture) setLevel(v float64) {
	a.level.Store(math.Float64bits(v))
}

func (a *activeCapture) getLevel() float64 {
	return math.Float64frombits(a.level.Load())
}

func New(
	capture ports.AudioCapture,
	dialer ports.ControlDialer,
	events ports.EventSink,
	stats *metrics.Recorder,
	log *slog.Logger,
	cfg Config,
) *Session {
	if log == nil {
		log = slog.Default()
	}
	if cfg.ChunkInterval <= 0 {
		cfg.ChunkInterval = time.Second
	}
	if cfg.MeterInterval <= 0 {
		cfg.MeterInterval = 33 * time.Millisecond
	}
	if cfg.ReadSize < 256 {
		cfg.ReadSize = 4096
	}
	return &Session{
		capture: capture,
		dialer:  dialer,
		events:  events,
		stats:   stats,
		log:     log,
		cfg:     cfg,
		phase:   domain.PhaseIdle,
	}
}

// Snapshot returns the current observable state.
func (s *Session) Snapshot() domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.Snapshot{
		Phase:      s.phase,
		Transcript: s.transcript,
		Volume:     s.volume,
		Connected:  s.connected,
		Demo:       s.demo,
	}
}

// Start acquires the control channel and the microphone and begins
// capturing. It may be called only from the idle phase; re-entrant
// calls return ErrSessionActive without touching the running capture.
// A Stop issued while Start is still acquiring resources is honored
// once the acquisition settles.
//
// A server-initiated clean disconnect returns the phase to idle but the
// session still holds the microphone, so Start keeps returning
// ErrSessionActive until Stop releases it.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.phase != domain.PhaseIdle || s.active != nil || s.starting {
		s.mu.Unlock()
		return ErrSessionActive
	}
	s.starting = true
	s.stopRequested = false
	s.demo = false
	s.mu.Unlock()

	err := s.begin(ctx)

	s.mu.Lock()
	s.starting = false
	stopNow := s.stopRequested
	s.stopRequested = false
	s.mu.Unlock()

	if stopNow {
		s.Stop()
	}
	return err
}

func (s *Session) begin(ctx context.Context) error {
	s.setPhase(domain.PhaseConnecting)

	resolution := endpoint.Resolve(s.cfg.Endpoint, s.cfg.Location)

	var channel ports.ControlChannel
	if resolution.Demo {
		s.log.Info("session_demo_mode", "hostname", s.cfg.Location.Hostname)
		s.setDemo(true)
		s.setPhase(domain.PhaseDemoMode)
		s.setTranscript(transcript.DemoMode)
	} else {
		ch, err := s.dialer.Dial(ctx, resolution.URL)
		if err != nil {
			s.log.Error("session_dial_failed", "url", resolution.URL, "error", err)
			s.stats.TransportError()
			s.stats.SessionFailed()
			s.setTranscript(transcript.ConnectFailed)
			s.setPhase(domain.PhaseError)
			return fmt.Errorf("control channel: %w", err)
		}
		channel = ch
		s.setConnected(true)
		s.setTranscript(transcript.Ready)
	}

	s.setPhase(domain.PhaseRequestingMic)
	audioSession, err := s.capture.Start(ctx, s.cfg.Audio)
	if err != nil {
		// A partially-opened control channel must not outlive the
		// failed acquisition.
		if channel != nil {
			_ = channel.Close()
			s.setConnected(false)
		}
		s.log.Error("session_mic_failed", "error", err)
		s.stats.SessionFailed()
		s.setTranscript(transcript.MicrophoneFailed(err))
		s.setPhase(domain.PhaseError)
		return fmt.Errorf("microphone: %w", err)
	}

	active := &activeCapture{
		id:        uuid.NewString(),
		startedAt: time.Now(),
		audio:     audioSession,
		channel:   channel,
		chunks:    audio.NewChunkBuffer(),
		quit:      make(chan struct{}),
		pumpDone:  make(chan struct{}),
		meterDone: make(chan struct{}),
		flushDone: make(chan struct{}),
		msgDone:   make(chan struct{}),
	}

	s.mu.Lock()
	s.active = active
	s.mu.Unlock()

	go s.pump(active)
	go s.meterLoop(active)
	if channel != nil {
		go s.flushLoop(active)
		go s.consumeMessages(active)
		s.setPhase(domain.PhaseListening)
	} else {
		close(active.flushDone)
		close(active.msgDone)
		s.setPhase(domain.PhaseDemoListening)
	}

	s.stats.SessionStarted()
	s.log.Info("session_started", "session_id", active.id, "demo", channel == nil)
	return nil
}

// Stop tears the session down. It is idempotent and safe from any
// phase, including before Start has ever run; it always ends at phase
// idle with an empty transcript and zero volume.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.starting {
		// Start will see the flag once the pending acquisition
		// settles and perform the teardown itself.
		s.stopRequested = true
		s.mu.Unlock()
		return
	}
	active := s.active
	s.active = nil
	s.mu.Unlock()

	if active != nil {
		s.setPhase(domain.PhaseStopping)
		s.teardown(active)
	}

	s.mu.Lock()
	s.phase = domain.PhaseIdle
	s.transcript = ""
	s.volume = 0
	s.connected = false
	s.demo = false
	s.mu.Unlock()

	s.events.PhaseChanged(domain.PhaseIdle)
	s.events.TranscriptChanged("")
	s.events.VolumeChanged(0)
	s.events.ConnectionChanged(false)
}

func (s *Session) teardown(active *activeCapture) {
	// Cancel the metering and flush timers first so nothing races the
	// final flush below.
	close(active.quit)
	<-active.meterDone
	<-active.flushDone

	// Releasing the microphone ends the read pump.
	if err := active.audio.Stop(); err != nil {
		s.log.Warn("session_mic_stop", "session_id", active.id, "error", err)
	}
	<-active.pumpDone

	if active.channel != nil {
		// Flush the final partial chunk through the normal transmit
		// path before the socket goes away.
		s.transmitChunk(active)
		_ = active.channel.CloseSend()
		_ = active.channel.Close()
		<-active.msgDone
	}

	s.stats.SessionStopped(time.Since(active.startedAt))
	s.log.Info("session_stopped", "session_id", active.id, "duration", time.Since(active.startedAt))
}

// pump reads live PCM from the microphone, feeding the volume meter
// and, when a backend is connected, the chunk accumulator. It ends when
// the capture is stopped.
func (s *Session) pump(active *activeCapture) {
	defer close(active.pumpDone)

	buf := make([]byte, s.cfg.ReadSize)
	for {
		n, err := active.audio.Read(buf)
		if n > 0 {
			active.setLevel(audio.Level(buf[:n]))
			if active.channel != nil {
				active.chunks.Append(buf[:n])
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.log.Warn("session_audio_read", "session_id", active.id, "error", err)
			}
			active.setLevel(0)
			return
		}
	}
}

// meterLoop publishes the latest meter reading at a fixed cadence until
// the session stops.
func (s *Session) meterLoop(active *activeCapture) {
	defer close(active.meterDone)

	ticker := time.NewTicker(s.cfg.MeterInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.setVolume(active.getLevel())
		case <-active.quit:
			return
		}
	}
}

// flushLoop transmits one accumulated chunk per interval.
func (s *Session) flushLoop(active *activeCapture) {
	defer close(active.flushDone)

	ticker := time.NewTicker(s.cfg.ChunkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.transmitChunk(active)
		case <-active.quit:
			return
		}
	}
}

func (s *Session) transmitChunk(active *activeCapture) {
	chunk := active.chunks.Flush()
	if len(chunk) == 0 {
		return
	}

	s.mu.Lock()
	connected := s.connected
	s.mu.Unlock()
	if !connected {
		return
	}

	if err := active.channel.SendAudio(chunk); err != nil {
		s.log.Warn("session_chunk_send", "session_id", active.id, "bytes", len(chunk), "error", err)
		return
	}
	s.stats.ChunkSent(len(chunk))
}

// consumeMessages dispatches inbound control-channel messages, then
// translates the channel's terminal condition into phase and transcript
// updates unless a teardown already owns the session.
func (s *Session) consumeMessages(active *activeCapture) {
	defer close(active.msgDone)

	for msg := range active.channel.Messages() {
		s.handleMessage(active, msg)
	}

	err := active.channel.Wait()

	s.mu.Lock()
	if s.active != active {
		// Stop already detached this capture; it owns the shutdown.
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.setConnected(false)
	if err != nil {
		s.log.Warn("session_transport_error", "session_id", active.id, "error", err)
		s.stats.TransportError()
		s.setTranscript(transcript.ConnectFailed)
		s.setPhase(domain.PhaseError)
		return
	}
	s.log.Info("session_disconnected", "session_id", active.id)
	s.setTranscript(transcript.Disconnected)
	s.setPhase(domain.PhaseIdle)
}

func (s *Session) handleMessage(active *activeCapture, msg domain.ServerMessage) {
	switch domain.MessageType(msg.Type) {
	case domain.MessageConnectionEstablished:
		s.setTranscript(transcript.Ready)
	case domain.MessageTranscription:
		s.setTranscript(transcript.Transcription(msg.Text, msg.Confidence))
	case domain.MessageResponse:
		s.setTranscript(transcript.Response(msg.Text, msg.RequiresHumanTransfer))
	case domain.MessageError:
		s.log.Warn("session_backend_error", "session_id", active.id, "message", msg.Message)
		s.setTranscript(msg.Message)
		s.setPhase(domain.PhaseError)
	default:
		s.log.Warn("session_unknown_message", "session_id", active.id, "type", msg.Type)
		s.stats.ProtocolError()
	}
}

func (s *Session) setPhase(phase domain.Phase) {
	s.mu.Lock()
	if s.phase == phase {
		s.mu.Unlock()
		return
	}
	s.phase = phase
	s.mu.Unlock()
	s.events.PhaseChanged(phase)
}

func (s *Session) setTranscript(text string) {
	s.mu.Lock()
	if s.transcript == text {
		s.mu.Unlock()
		return
	}
	s.transcript = text
	s.mu.Unlock()
	s.events.TranscriptChanged(text)
}

func (s *Session) setVolume(level float64) {
	if level < 0 {
		level = 0
	}
	if level > 1 {
		level = 1
	}
	s.mu.Lock()
	if s.volume == level {
		s.mu.Unlock()
		return
	}
	s.volume = level
	s.mu.Unlock()
	s.events.VolumeChanged(level)
}

func (s *Session) setConnected(connected bool) {
	s.mu.Lock()
	if s.connected == connected {
		s.mu.Unlock()
		return
	}
	s.connected = connected
	s.mu.Unlock()
	s.events.ConnectionChanged(connected)
}

func (s *Session) setDemo(demo bool) {
	s.mu.Lock()
	s.demo = demo
	s.mu.Unlock()
}
