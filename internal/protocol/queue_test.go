package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/universal-console/dgdconsole/internal/interfaces"
)

func TestCommandQueueIDWraps(t *testing.T) {
	q := NewCommandQueue()
	q.Resync(MaxCommandID - 2)

	assert.Equal(t, MaxCommandID-1, q.Allocate())
	assert.Equal(t, MaxCommandID, q.Allocate())
	assert.Equal(t, 0, q.Allocate())
	assert.Equal(t, 1, q.Allocate())
}

func TestCommandQueueResyncWraps(t *testing.T) {
	q := NewCommandQueue()
	q.Resync(MaxCommandID)
	assert.Equal(t, 0, q.NextID())

	q.Resync(41)
	assert.Equal(t, 42, q.NextID())
}

func TestCommandQueueFIFO(t *testing.T) {
	q := NewCommandQueue()
	q.Push(&Command{Payload: "admin"})
	q.Push(&Command{Payload: "secret"})

	assert.Equal(t, "admin", q.Peek().Payload)
	assert.Equal(t, "admin", q.Shift().Payload)
	assert.Equal(t, "secret", q.Shift().Payload)
	assert.Nil(t, q.Shift())
	assert.Nil(t, q.Peek())
}

func TestCommandQueueTakeByID(t *testing.T) {
	q := NewCommandQueue()
	for i := 0; i < 4; i++ {
		q.Push(&Command{ID: q.Allocate(), Phase: PhaseEvaluate})
	}

	cmd, ok := q.Take(2)
	require.True(t, ok)
	assert.Equal(t, 2, cmd.ID)
	assert.Equal(t, 3, q.Len())

	_, ok = q.Take(2)
	assert.False(t, ok)

	for _, id := range []int{3, 0, 1} {
		cmd, ok := q.Take(id)
		require.True(t, ok)
		assert.Equal(t, id, cmd.ID)
	}
	assert.Equal(t, 0, q.Len())
}

func TestCommandQueueTakeSkipsLoginCommands(t *testing.T) {
	q := NewCommandQueue()
	q.Push(&Command{ID: 0, Phase: PhaseLogin})

	_, ok := q.Take(0)
	assert.False(t, ok)
	assert.Equal(t, 1, q.Len())
}

func TestCommandQueueAbandon(t *testing.T) {
	q := NewCommandQueue()
	notified := false
	q.Push(&Command{callback: func(interfaces.CodeResult) { notified = true }})
	q.Push(&Command{})

	assert.Equal(t, 2, q.Abandon())
	assert.Equal(t, 0, q.Len())
	assert.False(t, notified)
}
