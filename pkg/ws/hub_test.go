package ws

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_RegisterLookupUnregister(t *testing.T) {
	h := NewHub()
	c := NewClient("u1", nil)

	assert.Nil(t, h.Register(c))
	got, ok := h.Lookup("u1")
	require.True(t, ok)
	assert.Same(t, c, got)

	h.Unregister("u1")
	_, ok = h.Lookup("u1")
	assert.False(t, ok)

	// 不存在时为空操作
	h.Unregister("u1")
	assert.Equal(t, 0, h.Len())
}

func TestHub_RegisterSupersedesWithoutClosing(t *testing.T) {
	h := NewHub()
	old := NewClient("u1", nil)
	newer := NewClient("u1", nil)

	h.Register(old)
	prev := h.Register(newer)

	assert.Same(t, old, prev)
	got, _ := h.Lookup("u1")
	assert.Same(t, newer, got)
	assert.Equal(t, 1, h.Len())

	select {
	case <-old.Done():
		t.Fatal("registry must not close the superseded client")
	default:
	}
}

func TestHub_ReleaseOnlyRemovesCurrent(t *testing.T) {
	h := NewHub()
	old := NewClient("u1", nil)
	newer := NewClient("u1", nil)
	h.Register(old)
	h.Register(newer)

	assert.False(t, h.Release(old))
	got, ok := h.Lookup("u1")
	require.True(t, ok)
	assert.Same(t, newer, got)

	assert.True(t, h.Release(newer))
	_, ok = h.Lookup("u1")
	assert.False(t, ok)
}

func TestHub_RegisterIgnoresAnonymous(t *testing.T) {
	h := NewHub()
	assert.Nil(t, h.Register(nil))
	assert.Nil(t, h.Register(NewClient("", nil)))
	assert.Equal(t, 0, h.Len())
}

func TestHub_ConcurrentAccess(t *testing.T) {
	h := NewHub()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("u%d", i%10)
			c := NewClient(id, nil)
			h.Register(c)
			h.Lookup(id)
			_ = h.Snapshot()
			h.Release(c)
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, h.Len(), 10)
}

func TestClient_Enqueue(t *testing.T) {
	c := NewClient("u1", nil, WithSendBuffer(1))

	require.NoError(t, c.Enqueue([]byte("a")))
	assert.ErrorIs(t, c.Enqueue([]byte("b")), ErrSendBufferFull)
	assert.Equal(t, []byte("a"), <-c.Pending())

	c.Close()
	c.Close()
	assert.ErrorIs(t, c.Enqueue([]byte("c")), ErrClientClosed)
}
