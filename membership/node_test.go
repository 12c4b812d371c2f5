package membership

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNode_TickDownReachesZero(t *testing.T) {
	n := newNode("10.0.0.1:5250", 3)
	assert.False(t, n.tickDown())
	assert.False(t, n.tickDown())
	assert.True(t, n.tickDown())
}

func TestNode_HeartbeatHeardSpendsOneTickInsteadOfDecrementing(t *testing.T) {
	n := newNode("10.0.0.1:5250", 3)
	n.tickDown()
	assert.Equal(t, 2, n.TicksLeft)

	n.heartbeatHeard(3)
	assert.False(t, n.tickDown(), "a heard-from tick must hold the budget, not decrement it")
	assert.Equal(t, 3, n.TicksLeft)

	// heartbeatSeen was consumed by the tick above; the next silent tick
	// decrements again.
	assert.False(t, n.tickDown())
	assert.Equal(t, 2, n.TicksLeft)
}
