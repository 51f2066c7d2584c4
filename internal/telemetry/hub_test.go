package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rover-control/rover/internal/drive"
)

// stubSource returns a fixed snapshot.
type stubSource struct {
	status drive.Status
}

func (s *stubSource) Snapshot() drive.Status { return s.status }

// recordingMirror captures mirrored snapshots.
type recordingMirror struct {
	statuses chan drive.Status
}

func (m *recordingMirror) PublishStatus(s drive.Status) {
	select {
	case m.statuses <- s:
	default:
	}
}

func TestHubAttachDetach(t *testing.T) {
	hub := NewHub(&stubSource{}, time.Minute, 4)

	v1 := hub.Attach()
	v2 := hub.Attach()
	assert.Equal(t, 2, hub.ViewerCount())
	assert.NotEqual(t, v1.ID(), v2.ID())

	hub.Detach(v1.ID())
	assert.Equal(t, 1, hub.ViewerCount())

	select {
	case <-v1.Done():
	case <-time.After(time.Second):
		t.Fatal("detached viewer was not cancelled")
	}

	// Detaching twice is harmless.
	hub.Detach(v1.ID())
	assert.Equal(t, 1, hub.ViewerCount())
}

func TestHubPublishDropsOnSlowViewer(t *testing.T) {
	hub := NewHub(&stubSource{}, time.Minute, 2)

	slow := hub.Attach()
	fast := hub.Attach()

	// Fill the slow viewer's buffer and keep publishing.
	for i := 0; i < 5; i++ {
		hub.Publish(Event{Type: "status", Data: i})
		// Drain the fast viewer so it never falls behind.
		select {
		case <-fast.Events():
		case <-time.After(time.Second):
			t.Fatal("fast viewer missed a delivery")
		}
	}

	// The slow viewer kept only its buffer's worth; nothing blocked.
	assert.Len(t, slow.Events(), 2)
}

func TestHubBroadcastFrameLatestWins(t *testing.T) {
	hub := NewHub(&stubSource{}, time.Minute, 4)
	viewer := hub.Attach()

	hub.BroadcastFrame([]byte("first"))
	hub.BroadcastFrame([]byte("second"))

	frame, ok := viewer.Frames().Take()
	require.True(t, ok)
	assert.Equal(t, "second", string(frame))
}

func TestHubRunBroadcastsStatus(t *testing.T) {
	source := &stubSource{status: drive.Status{SpeedLimit: 0.3}}
	hub := NewHub(source, 5*time.Millisecond, 4)
	viewer := hub.Attach()

	mirror := &recordingMirror{statuses: make(chan drive.Status, 1)}
	hub.SetMirror(mirror)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = hub.Run(ctx)
		close(done)
	}()

	select {
	case ev := <-viewer.Events():
		assert.Equal(t, "status", ev.Type)
		status, ok := ev.Data.(drive.Status)
		require.True(t, ok)
		assert.Equal(t, 0.3, status.SpeedLimit)
	case <-time.After(time.Second):
		t.Fatal("no status broadcast arrived")
	}

	select {
	case status := <-mirror.statuses:
		assert.Equal(t, 0.3, status.SpeedLimit)
	case <-time.After(time.Second):
		t.Fatal("mirror received no status")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}

	// Shutdown detaches every viewer.
	select {
	case <-viewer.Done():
	case <-time.After(time.Second):
		t.Fatal("viewer not cancelled on shutdown")
	}
	assert.Equal(t, 0, hub.ViewerCount())
}
