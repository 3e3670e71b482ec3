// Package transcript renders protocol and lifecycle events into the
// user-visible transcript strings.
package transcript

import (
	"fmt"
	"strings"
)

const (
	// Ready is shown once the control channel is established.
	Ready = "Connected. Start speaking when you're ready."
	// DemoMode explains that no backend is reachable and only the
	// visual meter will work.
	DemoMode = "Demo mode: no voice backend is configured, so audio stays on this device. The meter below reacts to your microphone."
	// Disconnected is shown when the backend closes the connection.
	Disconnected = "Disconnected from the voice service."
	// ConnectFailed is shown for any transport-level failure.
	ConnectFailed = "Could not reach the voice service. Please try again."
	// TransferWarning is appended to responses flagged for human handoff.
	TransferWarning = "This conversation will be transferred to a team member."
)

// MicrophoneFailed surfaces the platform error for a denied or failed
// microphone acquisition.
func MicrophoneFailed(err error) string {
	if err == nil {
		return "Microphone unavailable."
	}
	return fmt.Sprintf("Microphone unavailable: %s", err.Error())
}

// Transcription renders recognized text with its confidence to one
// decimal place, e.g. `hello (87.3%)`.
func Transcription(text string, confidence float64) string {
	return fmt.Sprintf("%s (%.1f%%)", strings.TrimSpace(text), confidence*100)
}

// Response renders a backend reply, appending the transfer warning when
// the exchange requires human handoff.
func Response(text string, requiresTransfer bool) string {
	text = strings.TrimSpace(text)
	if !requiresTransfer {
		return text
	}
	if text == "" {
		return TransferWarning
	}
	return text + "\n" + TransferWarning
}
