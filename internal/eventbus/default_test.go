package eventbus_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"groucho/internal/eventbus"
)

func TestDefaultIsLazyAndDisposable(t *testing.T) {
	t.Cleanup(eventbus.Dispose)

	first := eventbus.Default()
	assert.Same(t, first, eventbus.Default())

	first.SubscribeFunc("game.init", func(any) {})
	eventbus.Dispose()

	assert.Empty(t, first.Events())
	second := eventbus.Default()
	assert.NotSame(t, first, second)
	assert.Empty(t, second.Events())
}

func TestBusDisposeReleasesDefault(t *testing.T) {
	t.Cleanup(eventbus.Dispose)

	b := eventbus.Default()
	b.SubscribeFunc("game.stop", func(any) {})
	b.Dispose()

	assert.Equal(t, 0, b.ListenerCount("game.stop"))
	assert.NotSame(t, b, eventbus.Default())
}

func TestDisposeOnPrivateBusKeepsDefault(t *testing.T) {
	t.Cleanup(eventbus.Dispose)

	shared := eventbus.Default()
	private := eventbus.New()
	private.Dispose()

	assert.Same(t, shared, eventbus.Default())
}

func TestSetDefault(t *testing.T) {
	t.Cleanup(eventbus.Dispose)

	custom := eventbus.New()
	eventbus.SetDefault(custom)
	assert.Same(t, custom, eventbus.Default())
}
