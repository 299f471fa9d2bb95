package realtime

import (
	"encoding/json"
	"testing"

	"OpenCollab/internal/modules/notification/infrastructure/metrics"
	"OpenCollab/pkg/ws"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedDispatch struct {
	event  string
	result string
}

type fakeRecorder struct {
	dispatches []recordedDispatch
}

func (f *fakeRecorder) RecordDispatch(event, result string) {
	f.dispatches = append(f.dispatches, recordedDispatch{event: event, result: result})
}

func (f *fakeRecorder) RecordToken(string, int) {}

func readFrame(t *testing.T, c *ws.Client) Envelope {
	t.Helper()
	select {
	case b := <-c.Pending():
		var env Envelope
		require.NoError(t, json.Unmarshal(b, &env))
		return env
	default:
		t.Fatal("expected a pending frame")
		return Envelope{}
	}
}

func assertNoFrame(t *testing.T, c *ws.Client) {
	t.Helper()
	select {
	case b := <-c.Pending():
		t.Fatalf("unexpected frame: %s", b)
	default:
	}
}

func TestDispatcher_SendToUser(t *testing.T) {
	hub := ws.NewHub()
	rec := &fakeRecorder{}
	d := NewDispatcher(hub, rec)
	u1 := ws.NewClient("u1", nil)
	u2 := ws.NewClient("u2", nil)
	hub.Register(u1)
	hub.Register(u2)

	require.NoError(t, d.SendToUser("u1", map[string]string{"id": "n1"}))

	env := readFrame(t, u1)
	assert.Equal(t, EventNotification, env.Event)
	assert.Equal(t, "n1", env.Data.(map[string]interface{})["id"])
	assertNoFrame(t, u2)
	assert.Equal(t, []recordedDispatch{{EventNotification, metrics.ResultDelivered}}, rec.dispatches)
}

func TestDispatcher_SendUpdateToUserUsesDistinctEvent(t *testing.T) {
	hub := ws.NewHub()
	d := NewDispatcher(hub, nil)
	u1 := ws.NewClient("u1", nil)
	hub.Register(u1)

	require.NoError(t, d.SendUpdateToUser("u1", map[string]string{"id": "n1"}))
	assert.Equal(t, EventNotificationUpdate, readFrame(t, u1).Event)
}

func TestDispatcher_OfflineIsSilentlyDropped(t *testing.T) {
	hub := ws.NewHub()
	rec := &fakeRecorder{}
	d := NewDispatcher(hub, rec)

	assert.NoError(t, d.SendToUser("ghost", map[string]string{"id": "n1"}))
	assert.Equal(t, 0, hub.Len())
	assert.Equal(t, []recordedDispatch{{EventNotification, metrics.ResultOffline}}, rec.dispatches)
}

func TestDispatcher_SlowClientIsDroppedFromRegistry(t *testing.T) {
	hub := ws.NewHub()
	rec := &fakeRecorder{}
	d := NewDispatcher(hub, rec)
	slow := ws.NewClient("u1", nil, ws.WithSendBuffer(1))
	hub.Register(slow)

	require.NoError(t, d.SendToUser("u1", "first"))
	err := d.SendToUser("u1", "second")
	assert.ErrorIs(t, err, ws.ErrSendBufferFull)

	_, ok := hub.Lookup("u1")
	assert.False(t, ok)
	select {
	case <-slow.Done():
	default:
		t.Fatal("slow client should be closed")
	}
	assert.Equal(t, metrics.ResultFailed, rec.dispatches[1].result)
}

func TestDispatcher_ClosedClientReportsError(t *testing.T) {
	hub := ws.NewHub()
	d := NewDispatcher(hub, nil)
	c := ws.NewClient("u1", nil)
	hub.Register(c)
	c.Close()

	assert.ErrorIs(t, d.SendToUser("u1", "x"), ws.ErrClientClosed)
}

func TestDispatcher_EncodeFailure(t *testing.T) {
	hub := ws.NewHub()
	d := NewDispatcher(hub, nil)
	hub.Register(ws.NewClient("u1", nil))

	assert.Error(t, d.SendToUser("u1", make(chan int)))
}

func TestDispatcher_BroadcastRaw(t *testing.T) {
	hub := ws.NewHub()
	d := NewDispatcher(hub, nil)
	clients := []*ws.Client{ws.NewClient("u1", nil), ws.NewClient("u2", nil), ws.NewClient("u3", nil)}
	for _, c := range clients {
		hub.Register(c)
	}
	clients[2].Close()

	assert.Equal(t, 2, d.BroadcastRaw(map[string]string{"text": "hello"}))
	for _, c := range clients[:2] {
		assert.Equal(t, EventMessage, readFrame(t, c).Event)
	}
}
