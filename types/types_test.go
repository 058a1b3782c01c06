package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCycles_Seconds(t *testing.T) {
	c := Cycles(2_000_000)
	assert.InDelta(t, 1.0, c.Seconds(2.0), 1e-9)
	assert.Equal(t, 0.0, c.Seconds(0))
}

func TestCycleDelta_String(t *testing.T) {
	assert.Equal(t, "+5 cycles", CycleDelta(5).String())
	assert.Equal(t, "-5 cycles", CycleDelta(-5).String())
}

func TestSectors_Bytes(t *testing.T) {
	assert.Equal(t, uint64(4096), Sectors(8).Bytes())
	assert.Equal(t, Sectors(8), SectorsOf(4096))
}

func TestBytes_Humanized(t *testing.T) {
	cases := []struct {
		b    Bytes
		want string
	}{
		{500, "500 B"},
		{2048, "2.00 KB"},
		{5 * 1024 * 1024, "5.00 MB"},
		{3 * 1024 * 1024 * 1024, "3.00 GB"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.b.Humanized())
	}
}
