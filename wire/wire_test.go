package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// nodeListVector is the literal byte-for-byte NODELIST frame from spec.md
// §8 scenario 3 (originally `test_parse_nodelist_message` in main.rs).
var nodeListVector = []byte{
	12, 0, 0, 0, 8, 0, 12, 0, 7, 0, 8, 0, 8, 0, 0, 0, 0, 0, 0, 1, 4, 0, 0, 0, 3, 0, 0, 0, 12,
	0, 0, 0, 32, 0, 0, 0, 52, 0, 0, 0, 16, 0, 0, 0, 49, 57, 50, 46, 49, 54, 56, 46, 49, 46, 49,
	58, 53, 50, 53, 48, 0, 0, 0, 0, 16, 0, 0, 0, 49, 55, 50, 46, 49, 49, 49, 46, 50, 46, 50,
	58, 53, 53, 53, 53, 0, 0, 0, 0, 14, 0, 0, 0, 55, 50, 46, 49, 50, 46, 56, 46, 56, 58, 56,
	48, 56, 48, 0, 0,
}

func TestDecode_NodelistVector(t *testing.T) {
	kind, body := Decode(nodeListVector)
	assert.Equal(t, NODELIST, kind)
	assert.Equal(t, []string{
		"192.168.1.1:5250",
		"172.111.2.2:5555",
		"72.12.8.8:8080",
	}, body)
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	cases := []struct {
		name string
		kind Kind
		body []string
	}{
		{"getlist", GETLIST, []string{"10.0.0.1:5250"}},
		{"heartbeat", HEARTBEAT, []string{"10.0.0.2:5250"}},
		{"nodelist-empty", NODELIST, []string{}},
		{"nodelist-many", NODELIST, []string{
			"192.168.1.1:5250",
			"172.111.2.2:5555",
			"72.12.8.8:8080",
			"10.10.10.10:1",
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			buf := Encode(tc.kind, tc.body)
			require.NotEmpty(t, buf)
			kind, body := Decode(buf)
			assert.Equal(t, tc.kind, kind)
			if len(tc.body) == 0 {
				assert.Empty(t, body)
			} else {
				assert.Equal(t, tc.body, body)
			}
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	kind, body := Decode([]byte{1, 2, 3})
	assert.Equal(t, Kind(0), kind)
	assert.Nil(t, body)

	kind, body = Decode(nil)
	assert.Equal(t, Kind(0), kind)
	assert.Nil(t, body)
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "GETLIST", GETLIST.String())
	assert.Equal(t, "NODELIST", NODELIST.String())
	assert.Equal(t, "HEARTBEAT", HEARTBEAT.String())
	assert.Equal(t, "UNKNOWN", Kind(99).String())
}
