package events

import (
	"github.com/asaskevich/EventBus"

	"groucho/internal/eventbus"
)

// Process carries process-level signals between goroutines (signal handler,
// command goroutine, main). Handlers receive a reason string.
var Process EventBus.Bus

func init() {
	Process = EventBus.New()
}

// Process signal topics
const (
	ShutdownRequested = "app:shutdown:requested"
	CleanupRequested  = "app:cleanup:requested"
)

// RequestShutdown publishes a shutdown request and waits for async handlers.
func RequestShutdown(reason string) {
	Process.Publish(ShutdownRequested, reason)
	Process.WaitAsync()
}

// RequestCleanup asks open resources to release themselves before a forced
// exit and waits for async handlers.
func RequestCleanup(reason string) {
	Process.Publish(CleanupRequested, reason)
	Process.WaitAsync()
}

// Tooling namespaces on the event bus. Subscribe to eventbus.Wildcard(ns) to
// follow everything below one of them.
const (
	NamespaceDocker  = "docker"
	NamespaceChrome  = "chrome"
	NamespaceGame    = "game"
	NamespaceCompose = "compose"
)

// Docker lifecycle verbs
const (
	Started   = "started"
	Stopped   = "stopped"
	Restarted = "restarted"
	Built     = "built"
	Cleaned   = "cleaned"
	Executed  = "exec"
)

// Chrome events
const (
	ChromeStarted         = "chrome.started"
	ChromeStopped         = "chrome.stopped"
	ChromeProfileCreated  = "chrome.profile.created"
	ChromeProfileDeleted  = "chrome.profile.deleted"
	ChromeProfileReset    = "chrome.profile.reset"
	ChromeProfileBackedUp = "chrome.profile.backedup"
	ChromeProfileRestored = "chrome.profile.restored"
)

// EnvName maps the dev flag used throughout the CLI to its event segment.
func EnvName(dev bool) string {
	if dev {
		return "dev"
	}
	return "prod"
}

// Docker returns "docker.<env>.<verb>".
func Docker(dev bool, verb string) string {
	return NamespaceDocker + "." + EnvName(dev) + "." + verb
}

// GameHealth returns "game.<env>.healthy" or "game.<env>.unhealthy".
func GameHealth(dev, healthy bool) string {
	state := "unhealthy"
	if healthy {
		state = "healthy"
	}
	return NamespaceGame + "." + EnvName(dev) + "." + state
}

// ComposeChanged returns "compose.<env>.changed".
func ComposeChanged(dev bool) string {
	return NamespaceCompose + "." + EnvName(dev) + ".changed"
}

// ToolingPatterns are the wildcard keys that cover every tooling event.
func ToolingPatterns() []string {
	return []string{
		eventbus.Wildcard(NamespaceDocker),
		eventbus.Wildcard(NamespaceChrome),
		eventbus.Wildcard(NamespaceGame),
		eventbus.Wildcard(NamespaceCompose),
	}
}

// Payload is the common payload of tooling events.
type Payload struct {
	Env     string            `json:"env,omitempty"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}
