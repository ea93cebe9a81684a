package stream

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textEnvelope(i int) QueuedMessage {
	return envelope(KindTextChunk, TextChunk{Text: fmt.Sprintf("chunk-%d", i), MessageID: "m1"}, "m1")
}

func chunkRecorder(into *[]string) *ClientCallbacks {
	return &ClientCallbacks{
		OnTextChunk: func(text, _ string) { *into = append(*into, text) },
	}
}

func TestStoreReplayOrderAndQueueCleared(t *testing.T) {
	store := NewStore(10)
	store.RegisterClient("session:1", "ws-1", &ClientCallbacks{})
	store.UnregisterClient("session:1")

	for i := 0; i < 3; i++ {
		store.DispatchOrQueue("session:1", textEnvelope(i))
	}
	view, ok := store.Get("session:1")
	require.True(t, ok)
	assert.Equal(t, 3, view.QueueLength)

	var got []string
	store.RegisterClient("session:1", "", chunkRecorder(&got))
	assert.Equal(t, []string{"chunk-0", "chunk-1", "chunk-2"}, got)

	view, _ = store.Get("session:1")
	assert.Equal(t, 0, view.QueueLength)
	assert.True(t, view.Connected)

	// live delivery after replay
	store.DispatchOrQueue("session:1", textEnvelope(9))
	assert.Equal(t, "chunk-9", got[len(got)-1])
	view, _ = store.Get("session:1")
	assert.Equal(t, 0, view.QueueLength)
}

func TestStoreQueueTrim(t *testing.T) {
	limit := 5
	store := NewStore(limit)
	store.RegisterClient("session:1", "ws-1", &ClientCallbacks{})
	store.UnregisterClient("session:1")

	for i := 0; i < 2*limit+1; i++ {
		store.DispatchOrQueue("session:1", textEnvelope(i))
	}
	view, _ := store.Get("session:1")
	assert.Equal(t, limit, view.QueueLength)

	var got []string
	store.RegisterClient("session:1", "", chunkRecorder(&got))
	require.Len(t, got, limit)
	// oldest entries were dropped, newest survive in order
	assert.Equal(t, "chunk-6", got[0])
	assert.Equal(t, "chunk-10", got[len(got)-1])
}

func TestStoreRegisterPlaceholder(t *testing.T) {
	store := NewStore(0)

	// without a workspace id there is nothing to attach to
	store.RegisterClient("session:1", "", &ClientCallbacks{})
	_, ok := store.Get("session:1")
	assert.False(t, ok)

	store.RegisterClient("session:1", "ws-1", &ClientCallbacks{})
	view, ok := store.Get("session:1")
	require.True(t, ok)
	assert.Equal(t, StatusIdle, view.Status)
	assert.Equal(t, "ws-1", view.WorkspaceID)
	assert.True(t, view.Connected)
}

func TestStoreDispatchUnknownSessionIsDropped(t *testing.T) {
	store := NewStore(0)
	store.DispatchOrQueue("nope", textEnvelope(1))
	_, ok := store.Get("nope")
	assert.False(t, ok)
}

func TestStoreRunLifecycle(t *testing.T) {
	store := NewStore(0)

	ctx, err := store.beginRun(context.Background(), "session:1", 7, "ws-1")
	require.NoError(t, err)
	view, _ := store.Get("session:1")
	assert.Equal(t, StatusRunning, view.Status)
	require.NotNil(t, view.StartedAt)

	// concurrent start is rejected with the sentinel error
	_, err = store.beginRun(context.Background(), "session:1", 7, "ws-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ERR_SESSION_RUNNING:session:1")

	store.finishRun("session:1", nil)
	view, _ = store.Get("session:1")
	assert.Equal(t, StatusIdle, view.Status)
	assert.Error(t, ctx.Err())

	// error outcome is not sticky: a new run may start
	runCtx, err := store.beginRun(context.Background(), "session:1", 7, "ws-1")
	require.NoError(t, err)
	store.finishRun("session:1", fmt.Errorf("boom"))
	view, _ = store.Get("session:1")
	assert.Equal(t, StatusError, view.Status)
	assert.Error(t, runCtx.Err())

	_, err = store.beginRun(context.Background(), "session:1", 7, "ws-1")
	assert.NoError(t, err)
}

func TestStoreAbortIdempotent(t *testing.T) {
	store := NewStore(0)

	// aborting an unknown or idle session is a no-op
	store.AbortSession("session:1")
	store.RegisterClient("session:1", "ws-1", &ClientCallbacks{})
	store.AbortSession("session:1")
	view, _ := store.Get("session:1")
	assert.Equal(t, StatusIdle, view.Status)

	ctx, err := store.beginRun(context.Background(), "session:1", 0, "")
	require.NoError(t, err)
	store.AbortSession("session:1")
	assert.Error(t, ctx.Err())
	view, _ = store.Get("session:1")
	assert.Equal(t, StatusIdle, view.Status)

	store.AbortSession("session:1")
	view, _ = store.Get("session:1")
	assert.Equal(t, StatusIdle, view.Status)

	// the finished goroutine settling later must not clobber the reset
	store.finishRun("session:1", fmt.Errorf("late failure"))
	view, _ = store.Get("session:1")
	assert.Equal(t, StatusIdle, view.Status)
}

func TestStoreDelete(t *testing.T) {
	store := NewStore(0)
	store.RegisterClient("session:1", "ws-1", &ClientCallbacks{})
	store.Delete("session:1")
	_, ok := store.Get("session:1")
	assert.False(t, ok)
}
