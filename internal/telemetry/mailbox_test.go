package telemetry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMailboxTakeReturnsLatest(t *testing.T) {
	mb := NewMailbox()

	_, ok := mb.Take()
	assert.False(t, ok, "empty mailbox has nothing to take")

	// Rapid puts while nothing drains: only the last survives.
	for i := 0; i < 10; i++ {
		mb.Put([]byte(fmt.Sprintf("frame-%d", i)))
	}

	frame, ok := mb.Take()
	require.True(t, ok)
	assert.Equal(t, "frame-9", string(frame))
	assert.Equal(t, uint64(9), mb.Drops(), "nine frames were overwritten unconsumed")

	_, ok = mb.Take()
	assert.False(t, ok, "take empties the slot")
}

func TestMailboxReadySignal(t *testing.T) {
	mb := NewMailbox()

	select {
	case <-mb.Ready():
		t.Fatal("ready fired before any put")
	default:
	}

	mb.Put([]byte("a"))
	mb.Put([]byte("b"))

	// Coalesced signal: consume it, drain, and the channel is quiet again.
	select {
	case <-mb.Ready():
	default:
		t.Fatal("ready did not fire after put")
	}

	frame, ok := mb.Take()
	require.True(t, ok)
	assert.Equal(t, "b", string(frame))

	select {
	case <-mb.Ready():
		t.Fatal("ready fired with nothing pending")
	default:
	}
}

func TestMailboxPutDuringDrain(t *testing.T) {
	mb := NewMailbox()

	mb.Put([]byte("old"))
	frame, ok := mb.Take()
	require.True(t, ok)
	assert.Equal(t, "old", string(frame))

	// A frame arriving while the previous one renders is picked up next.
	mb.Put([]byte("new"))
	select {
	case <-mb.Ready():
	default:
		t.Fatal("ready did not fire for the frame put mid-drain")
	}
	frame, ok = mb.Take()
	require.True(t, ok)
	assert.Equal(t, "new", string(frame))
}

func TestMailboxConcurrentPuts(t *testing.T) {
	mb := NewMailbox()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				mb.Put([]byte{byte(n)})
			}
		}(i)
	}
	wg.Wait()

	frame, ok := mb.Take()
	require.True(t, ok)
	assert.Len(t, frame, 1)
	assert.Equal(t, uint64(799), mb.Drops())
}
