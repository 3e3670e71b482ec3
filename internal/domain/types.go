package domain

// Phase models the capture session lifecycle.
type Phase string

const (
	PhaseIdle          Phase = "idle"
	PhaseConnecting    Phase = "connecting"
	PhaseRequestingMic Phase = "requesting_mic"
	PhaseListening     Phase = "listening"
	PhaseStopping      Phase = "stopping"
	PhaseDemoMode      Phase = "demo_mode"
	PhaseDemoListening Phase = "demo_listening"
	PhaseError         Phase = "error"
)

// MessageType tags inbound control-channel messages.
type MessageType string

const (
	MessageConnectionEstablished MessageType = "connection_established"
	MessageTranscription         MessageType = "transcription"
	MessageResponse              MessageType = "response"
	MessageError                 MessageType = "error"
)

// ServerMessage is a decoded control-channel text frame.
type ServerMessage struct {
	Type                  string  `json:"type"`
	Text                  string  `json:"text,omitempty"`
	Confidence            float64 `json:"confidence,omitempty"`
	RequiresHumanTransfer bool    `json:"requires_human_transfer,omitempty"`
	Message               string  `json:"message,omitempty"`
}

// Snapshot is the observable state surface exposed to the embedding UI.
type Snapshot struct {
	Phase      Phase   `json:"phase"`
	Transcript string  `json:"transcript"`
	Volume     float64 `json:"volume"`
	Connected  bool    `json:"connected"`
	Demo       bool    `json:"demo"`
}

// Active reports whether the snapshot describes a session holding
// capture resources.
func (s Snapshot) Active() bool {
	switch s.Phase {
	case PhaseConnecting, PhaseRequestingMic, PhaseListening, PhaseDemoListening, PhaseStopping:
		return true
	default:
		return false
	}
}
