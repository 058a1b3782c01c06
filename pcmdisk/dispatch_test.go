package pcmdisk

import (
	"testing"

	"github.com/ja7ad/pcmsim/blockio"
	"github.com/ja7ad/pcmsim/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatch_S1_WritePatternThenReadBack(t *testing.T) {
	d := newTestDevice(1)

	write := make([]byte, 512)
	for i := 0; i < 16; i++ {
		write[i] = byte(i)
	}
	err := d.Dispatch(blockio.Request{
		Direction: blockio.Write,
		Segments:  []blockio.Segment{{Data: write, StartSector: 0}},
	})
	require.NoError(t, err)

	read := make([]byte, 512)
	err = d.Dispatch(blockio.Request{
		Direction: blockio.Read,
		Segments:  []blockio.Segment{{Data: read, StartSector: 0}},
	})
	require.NoError(t, err)

	assert.Equal(t, write[:16], read[:16])
}

func TestDispatch_S2_LastSectorOKThenOverflowRejected(t *testing.T) {
	d := newTestDevice(1) // 2048 sectors
	lastSector := d.CapacitySectors() - 1

	write := make([]byte, 512)
	write[0] = 0xAB
	err := d.Dispatch(blockio.Request{
		Direction: blockio.Write,
		Segments:  []blockio.Segment{{Data: write, StartSector: lastSector}},
	})
	require.NoError(t, err)

	read := make([]byte, 512)
	err = d.Dispatch(blockio.Request{
		Direction: blockio.Read,
		Segments:  []blockio.Segment{{Data: read, StartSector: lastSector}},
	})
	require.NoError(t, err)
	assert.Equal(t, byte(0xAB), read[0])

	// Testable property 6: a request whose end sector exceeds capacity
	// must fail and leave the backing array unchanged.
	overflow := make([]byte, 512)
	overflow[0] = 0xFF
	err = d.Dispatch(blockio.Request{
		Direction: blockio.Write,
		Segments:  []blockio.Segment{{Data: overflow, StartSector: d.CapacitySectors()}},
	})
	assert.ErrorIs(t, err, ErrCapacityExceeded)
}

func TestDispatch_SplitsOversizedSegmentAcrossChunks(t *testing.T) {
	d := newTestDevice(1) // NMax = 8 sectors = 4096 bytes
	write := make([]byte, 10*types.SectorSize)
	for i := range write {
		write[i] = byte(i % 251)
	}

	err := d.Dispatch(blockio.Request{
		Direction: blockio.Write,
		Segments:  []blockio.Segment{{Data: write, StartSector: 0}},
	})
	require.NoError(t, err)

	read := make([]byte, 10*types.SectorSize)
	err = d.Dispatch(blockio.Request{
		Direction: blockio.Read,
		Segments:  []blockio.Segment{{Data: read, StartSector: 0}},
	})
	require.NoError(t, err)
	assert.Equal(t, write, read, "a 10-sector transfer split into NMax=8 chunks must round-trip exactly")
}

func TestDispatch_EmptyRequestIsANoOp(t *testing.T) {
	d := newTestDevice(1)
	err := d.Dispatch(blockio.Request{Direction: blockio.Read})
	assert.NoError(t, err)
}

func TestAllocate_RejectsNonPositiveCapacity(t *testing.T) {
	_, err := Allocate(0, newTestCalibration(), newTestPCMTable(8), &stepClock{}, Config{})
	assert.ErrorIs(t, err, ErrAllocationFailed)
}

func TestDevice_CloseIsIdempotent(t *testing.T) {
	d := newTestDevice(1)
	assert.NoError(t, d.Close())
	assert.NoError(t, d.Close())
}

func TestDevice_Geometry(t *testing.T) {
	d := newTestDevice(1)
	cyl, heads, spt := d.Geometry()
	assert.Equal(t, uint32(255), heads)
	assert.Equal(t, uint32(63), spt)
	assert.GreaterOrEqual(t, cyl, uint32(1))
}

func TestDevice_Control_AlwaysUnsupported(t *testing.T) {
	d := newTestDevice(1)
	assert.ErrorIs(t, d.Control(0, 0), ErrUnsupportedIoctl)
	assert.ErrorIs(t, d.Control(0x1234, 0xdeadbeef), ErrUnsupportedIoctl,
		"the reference ioctl handler rejects every control code unconditionally")
}
