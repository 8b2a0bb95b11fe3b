package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	t.Run("pipeline edges are legal", func(t *testing.T) {
		legal := [][2]SessionStatus{
			{StatusReceiving, StatusQueuedBuilding},
			{StatusQueuedBuilding, StatusBuilding},
			{StatusBuilding, StatusQueuedArchiving},
			{StatusBuilding, StatusError},
			{StatusQueuedArchiving, StatusArchiving},
			{StatusArchiving, StatusError},
		}
		for _, edge := range legal {
			assert.True(t, CanTransition(edge[0], edge[1]), "%s -> %s", edge[0], edge[1])
		}
	})

	t.Run("recovery edges are legal", func(t *testing.T) {
		legal := [][2]SessionStatus{
			{StatusError, StatusReceiving},
			{StatusQueuedBuilding, StatusReceiving},
			{StatusQueuedArchiving, StatusReceiving},
			{StatusBuilding, StatusQueuedBuilding},
			{StatusArchiving, StatusQueuedArchiving},
		}
		for _, edge := range legal {
			assert.True(t, CanTransition(edge[0], edge[1]), "%s -> %s", edge[0], edge[1])
		}
	})

	t.Run("skipping stages is illegal", func(t *testing.T) {
		illegal := [][2]SessionStatus{
			{StatusReceiving, StatusBuilding},
			{StatusReceiving, StatusQueuedArchiving},
			{StatusReceiving, StatusError},
			{StatusQueuedBuilding, StatusQueuedArchiving},
			{StatusQueuedBuilding, StatusError},
			{StatusBuilding, StatusArchiving},
			{StatusError, StatusQueuedBuilding},
			{StatusArchiving, StatusReceiving},
		}
		for _, edge := range illegal {
			assert.False(t, CanTransition(edge[0], edge[1]), "%s -> %s", edge[0], edge[1])
		}
	})

	t.Run("self transitions are illegal", func(t *testing.T) {
		for _, s := range []SessionStatus{
			StatusReceiving, StatusQueuedBuilding, StatusBuilding,
			StatusQueuedArchiving, StatusArchiving, StatusError,
		} {
			assert.False(t, CanTransition(s, s), "%s -> %s", s, s)
		}
	})
}

func TestStatusHelpers(t *testing.T) {
	assert.True(t, StatusBuilding.IsRunning())
	assert.True(t, StatusArchiving.IsRunning())
	assert.False(t, StatusQueuedBuilding.IsRunning())

	assert.True(t, StatusQueuedBuilding.IsQueued())
	assert.True(t, StatusQueuedArchiving.IsQueued())
	assert.False(t, StatusError.IsQueued())

	assert.Equal(t, StatusQueuedBuilding, StatusBuilding.QueuedState())
	assert.Equal(t, StatusQueuedArchiving, StatusArchiving.QueuedState())
	assert.Equal(t, StatusReceiving, StatusReceiving.QueuedState())
}

func TestParseSessionStatus(t *testing.T) {
	assert.Equal(t, StatusBuilding, ParseSessionStatus("_BUILDING"))
	assert.Equal(t, StatusReceiving, ParseSessionStatus("RECEIVING"))
	assert.Equal(t, SessionStatus(""), ParseSessionStatus("BUILDING"))
	assert.Equal(t, SessionStatus(""), ParseSessionStatus(""))
}
