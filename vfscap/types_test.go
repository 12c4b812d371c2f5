package vfscap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTimespec_SecondsNormalizesNegative(t *testing.T) {
	assert.Equal(t, int64(-4), Timespec{Sec: -5, Nsec: 500000000}.Seconds())
	assert.Equal(t, int64(-5), Timespec{Sec: -5, Nsec: 0}.Seconds())
	assert.Equal(t, int64(5), Timespec{Sec: 5, Nsec: 500000000}.Seconds())
}

func TestClampBlockSize(t *testing.T) {
	assert.Equal(t, MinBlockSize, ClampBlockSize(100))
	assert.Equal(t, MaxBlockSize, ClampBlockSize(10*1024*1024))
	assert.Equal(t, 65536, ClampBlockSize(65536))
}
