package pcmdisk

import (
	"fmt"

	"github.com/ja7ad/pcmsim/blockio"
	"github.com/ja7ad/pcmsim/types"
)

// Dispatch maps one incoming block-layer request to sector offsets,
// splitting oversized segments into NMax-sector chunks and invoking the
// read or write stall loop for each chunk under the device lock, per §4.8.
// It reports success iff every chunk succeeds; on the first failure it
// returns the corresponding error and aborts further chunks, leaving the
// backing array untouched by any chunk it never reached.
func (d *Device) Dispatch(req blockio.Request) error {
	if err := d.checkCapacity(req); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, seg := range req.Segments {
		if err := d.dispatchSegment(seg, req.Direction); err != nil {
			return err
		}
	}
	return nil
}

func (d *Device) checkCapacity(req blockio.Request) error {
	if len(req.Segments) == 0 {
		return nil
	}
	start := req.Segments[0].StartSector
	total := req.TotalSectors()
	if uint64(start)+uint64(total) > uint64(d.capacitySectors) {
		return ErrCapacityExceeded
	}
	return nil
}

// dispatchSegment splits one segment into chunks of at most NMax sectors,
// preserving sector alignment, and runs each chunk through the
// appropriate stall loop. Caller must hold d.mu.
func (d *Device) dispatchSegment(seg blockio.Segment, dir blockio.Direction) error {
	nMax := d.cal.NMax
	maxChunkBytes := nMax * types.SectorSize

	sector := seg.StartSector
	data := seg.Data

	for len(data) > 0 {
		chunkLen := len(data)
		if chunkLen > maxChunkBytes {
			chunkLen = maxChunkBytes
		}
		if chunkLen%types.SectorSize != 0 {
			return fmt.Errorf("pcmdisk: chunk length %d is not sector-aligned", chunkLen)
		}
		n := chunkLen / types.SectorSize

		chunk := data[:chunkLen]
		switch dir {
		case blockio.Read:
			d.stallRead(chunk, sector, n)
		case blockio.Write:
			d.stallWrite(chunk, sector, n)
		}

		data = data[chunkLen:]
		sector += types.Sectors(n)
	}
	return nil
}
