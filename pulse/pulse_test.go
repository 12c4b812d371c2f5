package pulse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPulse_BeatFalseBeforeTimeout(t *testing.T) {
	p := New(50 * time.Millisecond)
	assert.False(t, p.Beat())
}

func TestPulse_BeatTrueAfterTimeoutAndResets(t *testing.T) {
	p := New(10 * time.Millisecond)
	time.Sleep(15 * time.Millisecond)
	assert.True(t, p.Beat())
	assert.False(t, p.Beat())
}

func TestPulse_Interval(t *testing.T) {
	p := New(7 * time.Second)
	assert.Equal(t, 7*time.Second, p.Interval())
}
