package formats

import (
	"fmt"
	"os"
	"sort"
)

// Header is the fixed 0x50 byte table at the start of a level binary.
type Header struct {
	TexturesOffset  uint32
	SegmentsOffset  uint32
	BoundsOffset    uint32
	AdjacencyOffset uint32
	BitfieldsOffset uint32
	BSPOffset       uint32
	TextureCount    uint16
	SegmentCount    uint16
	Boundaries      [3]uint32
	FileSize        uint32
}

// ReadHeader parses and bounds-checks the header of a level binary.
func ReadHeader(data []byte) (*Header, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: header needs %d bytes, have %d", ErrTruncatedLevelData, HeaderSize, len(data))
	}
	h := &Header{
		TexturesOffset:  be.Uint32(data[0x00:]),
		SegmentsOffset:  be.Uint32(data[0x04:]),
		BoundsOffset:    be.Uint32(data[0x08:]),
		AdjacencyOffset: be.Uint32(data[0x0C:]),
		BitfieldsOffset: be.Uint32(data[0x10:]),
		BSPOffset:       be.Uint32(data[0x14:]),
		TextureCount:    be.Uint16(data[0x18:]),
		SegmentCount:    be.Uint16(data[0x1A:]),
		Boundaries: [3]uint32{
			be.Uint32(data[0x3C:]),
			be.Uint32(data[0x40:]),
			be.Uint32(data[0x44:]),
		},
		FileSize: be.Uint32(data[0x48:]),
	}

	for _, off := range h.offsets() {
		if off.value < HeaderSize || int64(off.value) > int64(len(data)) {
			return nil, fmt.Errorf("%w: %s offset 0x%X outside [0x%X, 0x%X]",
				ErrInvalidOffset, off.name, off.value, HeaderSize, len(data))
		}
	}
	if int64(h.FileSize) > int64(len(data)) {
		return nil, fmt.Errorf("%w: header declares 0x%X bytes, have 0x%X", ErrTruncatedLevelData, h.FileSize, len(data))
	}
	return h, nil
}

// ReadHeaderFile reads the header of a level binary on disk.
func ReadHeaderFile(path string) (*Header, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading level file: %w", err)
	}
	return ReadHeader(data)
}

type namedOffset struct {
	name  string
	value uint32
}

func (h *Header) offsets() []namedOffset {
	return []namedOffset{
		{"textures", h.TexturesOffset},
		{"segments", h.SegmentsOffset},
		{"bounding boxes", h.BoundsOffset},
		{"adjacency", h.AdjacencyOffset},
		{"bitfields", h.BitfieldsOffset},
		{"BSP", h.BSPOffset},
	}
}

// Layout guesses which version wrote the file from the section order.
func (h *Header) Layout() Version {
	if h.BSPOffset < h.AdjacencyOffset {
		return V2
	}
	return V1
}

// sectionEnd returns the end of the section starting at start: the next
// larger section offset, or the end of the data.
func (h *Header) sectionEnd(start uint32, dataLen int) int {
	offs := h.offsets()
	ends := make([]int, 0, len(offs)+1)
	for _, o := range offs {
		if o.value > start {
			ends = append(ends, int(o.value))
		}
	}
	end := dataLen
	if h.FileSize > start && int(h.FileSize) < end {
		end = int(h.FileSize)
	}
	ends = append(ends, end)
	sort.Ints(ends)
	return ends[0]
}

// String summarises the header for diagnostics.
func (h *Header) String() string {
	return fmt.Sprintf("textures=%d@0x%X segments=%d@0x%X bboxes@0x%X adjacency@0x%X bitfields@0x%X bsp@0x%X size=0x%X",
		h.TextureCount, h.TexturesOffset, h.SegmentCount, h.SegmentsOffset,
		h.BoundsOffset, h.AdjacencyOffset, h.BitfieldsOffset, h.BSPOffset, h.FileSize)
}
