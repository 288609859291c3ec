package camera

import (
	"fmt"
	"io"
)

// SyntheticSource produces a well-formed packed SBGGR10 frame stream:
// a diagonal gradient that drifts over time so consecutive frames differ.
// It backs the gen-stream tool, the mock camera in tests and demos.
type SyntheticSource struct {
	width   uint32
	height  uint32
	frameID uint32
	pixels  []uint16
}

// NewSyntheticSource creates a generator for width x height frames. The
// pixel count must be a multiple of 4 so frames pack into whole groups.
func NewSyntheticSource(width, height uint32) (*SyntheticSource, error) {
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("invalid synthetic frame size %dx%d", width, height)
	}
	if width*height%pixelsPerGroup != 0 {
		return nil, fmt.Errorf("synthetic frame size %dx%d is not a multiple of %d pixels",
			width, height, pixelsPerGroup)
	}
	return &SyntheticSource{
		width:  width,
		height: height,
		pixels: make([]uint16, width*height),
	}, nil
}

// NextFrame returns the header and packed payload of the next frame.
// timestamp is the sender capture clock in nanoseconds.
func (g *SyntheticSource) NextFrame(timestamp uint64) (FrameHeader, []byte) {
	offset := g.frameID * 3
	for y := uint32(0); y < g.height; y++ {
		row := g.pixels[y*g.width:]
		for x := uint32(0); x < g.width; x++ {
			row[x] = uint16((x + y + offset) & sampleMask)
		}
	}
	payload := PackSBGGR10(g.pixels)

	h := FrameHeader{
		Magic:     FrameMagic,
		FrameID:   g.frameID,
		Width:     g.width,
		Height:    g.height,
		PixFmt:    PixFmtSBGGR10,
		Size:      uint32(len(payload)),
		Timestamp: timestamp,
	}
	g.frameID++
	return h, payload
}

// WriteFrame emits the next frame onto w in wire format.
func (g *SyntheticSource) WriteFrame(w io.Writer, timestamp uint64) error {
	h, payload := g.NextFrame(timestamp)
	if _, err := w.Write(EncodeFrameHeader(h)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}
	return nil
}
