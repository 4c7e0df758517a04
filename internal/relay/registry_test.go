package relay

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterAndLookup(t *testing.T) {
	registry := NewRegistry()
	client := newClient(nil, nil, "user-1")

	prev := registry.Register("user-1", client)
	assert.Nil(t, prev, "first registration should not supersede anything")

	found, ok := registry.Lookup("user-1")
	require.True(t, ok)
	assert.Same(t, client, found)

	_, ok = registry.Lookup("user-2")
	assert.False(t, ok)
}

func TestRegistry_RegisterSupersedes(t *testing.T) {
	registry := NewRegistry()
	first := newClient(nil, nil, "user-1")
	second := newClient(nil, nil, "user-1")

	registry.Register("user-1", first)
	prev := registry.Register("user-1", second)

	require.NotNil(t, prev)
	assert.Same(t, first, prev, "register should return the superseded connection")

	found, ok := registry.Lookup("user-1")
	require.True(t, ok)
	assert.Same(t, second, found, "lookup should return the new connection")
}

func TestRegistry_UnregisterCompareAndRemove(t *testing.T) {
	registry := NewRegistry()
	stale := newClient(nil, nil, "user-1")
	fresh := newClient(nil, nil, "user-1")

	registry.Register("user-1", stale)
	registry.Register("user-1", fresh)

	// The stale connection closes late; it must not clobber the fresh entry.
	removed := registry.Unregister("user-1", stale)
	assert.False(t, removed)

	found, ok := registry.Lookup("user-1")
	require.True(t, ok)
	assert.Same(t, fresh, found)

	removed = registry.Unregister("user-1", fresh)
	assert.True(t, removed)

	_, ok = registry.Lookup("user-1")
	assert.False(t, ok)
}

func TestRegistry_UnregisterMissingUser(t *testing.T) {
	registry := NewRegistry()
	client := newClient(nil, nil, "user-1")

	assert.False(t, registry.Unregister("user-1", client))
}

func TestRegistry_ConcurrentSupersede(t *testing.T) {
	registry := NewRegistry()

	const goroutines = 50
	clients := make([]*Client, goroutines)
	for i := range clients {
		clients[i] = newClient(nil, nil, "user-1")
	}

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			if prev := registry.Register("user-1", c); prev != nil {
				// Losing connections unregister late, like a real teardown.
				registry.Unregister("user-1", prev)
			}
		}(clients[i])
	}
	wg.Wait()

	found, ok := registry.Lookup("user-1")
	require.True(t, ok, "exactly one connection must survive")
	assert.Equal(t, 1, registry.Len())

	// The survivor must be one of the registered clients.
	matched := false
	for _, c := range clients {
		if c == found {
			matched = true
			break
		}
	}
	assert.True(t, matched)
}

func TestRegistry_ManyUsers(t *testing.T) {
	registry := NewRegistry()

	for i := 0; i < 10; i++ {
		userID := fmt.Sprintf("user-%d", i)
		registry.Register(userID, newClient(nil, nil, userID))
	}

	assert.Equal(t, 10, registry.Len())
}
