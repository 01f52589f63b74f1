package eventbus

import "sync"

var (
	defaultMu  sync.Mutex
	defaultBus *Bus
)

// Default returns the shared bus, creating it on first use. Code that needs
// isolation, tests in particular, should build its own bus with New.
func Default() *Bus {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultBus == nil {
		defaultBus = New()
	}
	return defaultBus
}

// SetDefault installs b as the shared bus. The composition root uses it to
// share a bus configured with its own options.
func SetDefault(b *Bus) {
	defaultMu.Lock()
	defaultBus = b
	defaultMu.Unlock()
}

// Dispose clears the shared bus, if any, and releases it.
func Dispose() {
	defaultMu.Lock()
	b := defaultBus
	defaultBus = nil
	defaultMu.Unlock()

	if b != nil {
		b.Clear()
	}
}

func releaseDefault(b *Bus) {
	defaultMu.Lock()
	if defaultBus == b {
		defaultBus = nil
	}
	defaultMu.Unlock()
}
