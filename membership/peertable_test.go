package membership

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeerTable_SeededWithSelf(t *testing.T) {
	tbl := NewPeerTable("10.0.0.1:5250", 3)
	assert.Equal(t, 1, tbl.Len())
	assert.True(t, tbl.Contains("10.0.0.1:5250"))
}

func TestPeerTable_AddIsIdempotent(t *testing.T) {
	tbl := NewPeerTable("10.0.0.1:5250", 3)
	assert.True(t, tbl.Add("10.0.0.2:5250", false))
	assert.False(t, tbl.Add("10.0.0.2:5250", false))
	assert.Equal(t, 2, tbl.Len())
}

func TestPeerTable_TickDownRemovesDeadPeers(t *testing.T) {
	tbl := NewPeerTable("10.0.0.1:5250", 2)
	tbl.Add("10.0.0.2:5250", false)

	assert.Empty(t, tbl.TickDownAll())
	dead := tbl.TickDownAll()
	require.Len(t, dead, 1)
	assert.Equal(t, "10.0.0.2:5250", dead[0])
	assert.False(t, tbl.Contains("10.0.0.2:5250"))
}

func TestPeerTable_TickDownNeverKillsSelf(t *testing.T) {
	tbl := NewPeerTable("10.0.0.1:5250", 1)
	for i := 0; i < 5; i++ {
		tbl.TickDownAll()
	}
	assert.True(t, tbl.Contains("10.0.0.1:5250"))
}

func TestPeerTable_HeartbeatHeardAddsUnknownPeer(t *testing.T) {
	tbl := NewPeerTable("10.0.0.1:5250", 3)
	tbl.HeartbeatHeard("10.0.0.9:5250")
	assert.True(t, tbl.Contains("10.0.0.9:5250"))
}

func TestPeerTable_OwnsAgreesWithCandidates(t *testing.T) {
	tbl := NewPeerTable("10.0.0.1:5250", 3)
	tbl.Add("10.0.0.2:5250", false)
	tbl.Add("10.0.0.3:5250", false)

	cands := tbl.Candidates("/export/path/a")
	require.NotEmpty(t, cands)
	owns := tbl.Owns("/export/path/a")
	assert.Equal(t, cands[0] == "10.0.0.1:5250", owns)
}

func TestPeerTable_AddressesSorted(t *testing.T) {
	tbl := NewPeerTable("10.0.0.3:5250", 3)
	tbl.Add("10.0.0.1:5250", false)
	tbl.Add("10.0.0.2:5250", false)
	assert.Equal(t, []string{"10.0.0.1:5250", "10.0.0.2:5250", "10.0.0.3:5250"}, tbl.Addresses())
}
