// Package endpoint resolves the backend control-channel address from
// configuration and the application's own location. Resolution is a
// pure function: no network access, same inputs produce the same answer.
package endpoint

import "strings"

// ControlPath is appended to every resolved backend address.
const ControlPath = "/ws/voice"

// Location identifies where the embedding application is running.
type Location struct {
	Hostname string
	Port     string
	Secure   bool
}

// Config holds the resolution inputs that come from configuration.
type Config struct {
	// BackendURL, when set, wins over every other rule.
	BackendURL string
	// DemoHostname marks the public demo deployment, which has no backend.
	DemoHostname string
	// LocalHosts are hostnames treated as local development.
	LocalHosts []string
	// LocalBackend is the fixed host:port used for local development.
	LocalBackend string
}

// Resolution is the outcome: either a dialable URL or demo mode.
type Resolution struct {
	URL  string
	Demo bool
}

// Resolve picks the control-channel address for a location.
func Resolve(cfg Config, loc Location) Resolution {
	if configured := strings.TrimSpace(cfg.BackendURL); configured != "" {
		return Resolution{URL: normalize(configured, loc.Secure)}
	}

	host := strings.ToLower(strings.TrimSpace(loc.Hostname))
	if host != "" && host == strings.ToLower(strings.TrimSpace(cfg.DemoHostname)) {
		return Resolution{Demo: true}
	}

	for _, local := range cfg.LocalHosts {
		if host == strings.ToLower(strings.TrimSpace(local)) {
			return Resolution{URL: "ws://" + strings.TrimSpace(cfg.LocalBackend) + ControlPath}
		}
	}

	scheme := "ws"
	if loc.Secure {
		scheme = "wss"
	}
	hostPort := host
	if loc.Port != "" {
		hostPort += ":" + loc.Port
	}
	return Resolution{URL: scheme + "://" + hostPort + ControlPath}
}

// normalize maps an http(s) base to its ws(s) equivalent, trims the
// trailing slash, and appends the control path. A bare host inherits
// the location's transport security.
func normalize(base string, secure bool) string {
	base = strings.TrimRight(base, "/")

	switch {
	case strings.HasPrefix(base, "wss://"), strings.HasPrefix(base, "ws://"):
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	case secure:
		base = "wss://" + base
	default:
		base = "ws://" + base
	}

	if strings.HasSuffix(base, ControlPath) {
		return base
	}
	return base + ControlPath
}
