package rendezvous

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRing_CandidatesOrderedAndStable(t *testing.T) {
	r := New()
	r.Add("10.0.0.1:5250")
	r.Add("10.0.0.2:5250")
	r.Add("10.0.0.3:5250")

	c1 := r.Candidates("/export/some/path")
	c2 := r.Candidates("/export/some/path")
	require.Len(t, c1, 3)
	assert.Equal(t, c1, c2, "same ring and key must produce the same ranking every call")
}

func TestRing_OwnerFallsBackWhenTopCandidateLeaves(t *testing.T) {
	r := New()
	r.Add("10.0.0.1:5250")
	r.Add("10.0.0.2:5250")
	r.Add("10.0.0.3:5250")

	top, ok := r.Owner("/export/some/path")
	require.True(t, ok)

	before := r.Candidates("/export/some/path")
	require.Len(t, before, 3)

	r.Remove(top)
	after, ok := r.Owner("/export/some/path")
	require.True(t, ok)

	assert.Equal(t, before[1], after, "second-ranked candidate must inherit ownership")
}

func TestRing_EmptyRingHasNoOwner(t *testing.T) {
	r := New()
	_, ok := r.Owner("/anything")
	assert.False(t, ok)
	assert.Empty(t, r.Candidates("/anything"))
}

func TestRing_DifferentKeysCanDifferInOwner(t *testing.T) {
	r := New()
	for i := 0; i < 8; i++ {
		r.Add(string(rune('a' + i)))
	}
	distinctOwners := map[string]struct{}{}
	for i := 0; i < 50; i++ {
		owner, ok := r.Owner(string(rune('A' + i%26)))
		require.True(t, ok)
		distinctOwners[owner] = struct{}{}
	}
	assert.Greater(t, len(distinctOwners), 1, "hashing should spread ownership across more than one node")
}

func TestRing_AddIsIdempotent(t *testing.T) {
	r := New()
	r.Add("x")
	r.Add("x")
	assert.Equal(t, 1, r.Len())
}
