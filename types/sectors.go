package types

import "fmt"

// SectorSize is the fixed block-layer sector size in bytes.
const SectorSize = 512

// Sectors is a count of 512-byte sectors.
type Sectors uint64

// Bytes returns the byte length of s sectors.
func (s Sectors) Bytes() uint64 { return uint64(s) * SectorSize }

// SectorsOf returns the number of whole sectors spanned by n bytes.
// n must be a multiple of SectorSize; callers that split transfers are
// responsible for alignment (see pcmdisk's dispatcher).
func SectorsOf(n int) Sectors { return Sectors(n / SectorSize) }

func (s Sectors) String() string { return fmt.Sprintf("%d sectors (%d B)", uint64(s), s.Bytes()) }

// Bytes is a uint64 wrapper representing a size in bytes.
type Bytes uint64

// Humanized returns a human-readable string with automatic unit (B, KB, MB, GB, TB).
func (b Bytes) Humanized() string {
	v := float64(b)
	switch {
	case b >= 1<<40:
		return fmt.Sprintf("%.2f TB", v/(1<<40))
	case b >= 1<<30:
		return fmt.Sprintf("%.2f GB", v/(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.2f MB", v/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.2f KB", v/(1<<10))
	default:
		return fmt.Sprintf("%d B", uint64(b))
	}
}

// MB returns the number of megabytes (1024 base).
func (b Bytes) MB() float64 { return float64(b) / (1024 * 1024) }
