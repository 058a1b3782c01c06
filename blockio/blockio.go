// Package blockio is the capability-set boundary between the PCM core and
// whatever Linux block-layer registration a host program wires up. The
// core never touches a major number, a request_queue, or a gendisk
// directly; it only calls Queue.Next/Complete and reports Geometry.
package blockio

import (
	"context"
	"errors"

	"github.com/ja7ad/pcmsim/types"
)

// Direction distinguishes a read request from a write request.
type Direction int

const (
	Read Direction = iota
	Write
)

func (d Direction) String() string {
	if d == Write {
		return "write"
	}
	return "read"
}

// Segment is a CPU-addressable view of one page-sized region of a request,
// anchored at StartSector.
type Segment struct {
	Data        []byte
	StartSector types.Sectors
}

// Request is the unit of work a Queue hands the dispatcher: a list of
// segments sharing one direction.
type Request struct {
	Segments  []Segment
	Direction Direction
}

// TotalSectors returns the combined sector length of every segment in the
// request, in dispatch order.
func (r Request) TotalSectors() types.Sectors {
	var total uint64
	for _, seg := range r.Segments {
		total += uint64(len(seg.Data)) / types.SectorSize
	}
	return types.Sectors(total)
}

// Geometry is the cylinders/heads/sectors-per-track triple a host reports
// to its own block-layer registration; the core only computes it, it never
// registers a disk itself (out of scope, see package doc).
type Geometry struct {
	Cylinders       uint32
	Heads           uint32
	SectorsPerTrack uint32
}

// GeometryFor derives a plausible CHS geometry from a sector count, using
// the conventional 255 heads / 63 sectors-per-track assumption so existing
// partitioning tools see reasonable numbers.
func GeometryFor(capacity types.Sectors) Geometry {
	const heads, spt = 255, 63
	cylinders := uint64(capacity) / (heads * spt)
	if cylinders == 0 {
		cylinders = 1
	}
	return Geometry{Cylinders: uint32(cylinders), Heads: heads, SectorsPerTrack: spt}
}

// ErrQueueClosed is returned by Next once no further requests will arrive.
var ErrQueueClosed = errors.New("blockio: queue closed")

// Queue is the capability set a host supplies so the core can pull
// requests and report completions without knowing anything about the real
// block layer's request_queue/bio machinery.
type Queue interface {
	// Next blocks until a request is available, ctx is cancelled, or the
	// queue is permanently closed (ErrQueueClosed).
	Next(ctx context.Context) (Request, error)
	// Complete reports the outcome of a request previously returned by
	// Next. err is nil on success.
	Complete(req Request, err error)
}
