package camera

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Wire protocol constants shared with the embedded camera server.
// The sender is a V4L2 capture daemon that prefixes every frame payload
// with a fixed packed header in little-endian (sender-native) byte order.
const (
	// FrameMagic marks the start of every frame header on the wire.
	FrameMagic = 0xDEADBEEF

	// HeaderSize is the fixed header length in bytes:
	// magic, frame_id, width, height, pixfmt, size (u32 each),
	// timestamp (u64), reserved (2 x u32).
	HeaderSize = 40

	// PixFmtSBGGR10 is the V4L2 fourcc "BG10": 10-bit packed Bayer BGGR.
	PixFmtSBGGR10 = 0x30314742

	// AbsoluteMaxFrameBytes is the hard upper bound on a payload length.
	// Anything larger is a framing violation, not a plausible frame.
	AbsoluteMaxFrameBytes = 50 * 1024 * 1024
)

// Framing and decode errors. A magic or size violation means the byte
// stream is desynchronized and cannot be safely resynchronized, so the
// receive loop treats these as session-fatal. ErrDecode covers per-frame
// payload problems that leave the stream itself correctly framed.
var (
	ErrInvalidMagic = errors.New("invalid frame magic")
	ErrProtocol     = errors.New("frame protocol violation")
	ErrDecode       = errors.New("frame decode failed")
)

// FrameHeader is the fixed 40-byte record preceding every frame payload.
type FrameHeader struct {
	Magic     uint32
	FrameID   uint32
	Width     uint32
	Height    uint32
	PixFmt    uint32
	Size      uint32 // payload byte length following the header
	Timestamp uint64 // sender capture clock, nanoseconds
	Reserved  [2]uint32
}

// ParseFrameHeader decodes the fixed header layout and validates the magic.
// A magic mismatch returns ErrInvalidMagic; the remaining fields are not
// trusted in that case.
func ParseFrameHeader(b []byte) (FrameHeader, error) {
	if len(b) < HeaderSize {
		return FrameHeader{}, fmt.Errorf("%w: short header (%d of %d bytes)", ErrProtocol, len(b), HeaderSize)
	}
	h := FrameHeader{
		Magic:     binary.LittleEndian.Uint32(b[0:4]),
		FrameID:   binary.LittleEndian.Uint32(b[4:8]),
		Width:     binary.LittleEndian.Uint32(b[8:12]),
		Height:    binary.LittleEndian.Uint32(b[12:16]),
		PixFmt:    binary.LittleEndian.Uint32(b[16:20]),
		Size:      binary.LittleEndian.Uint32(b[20:24]),
		Timestamp: binary.LittleEndian.Uint64(b[24:32]),
	}
	h.Reserved[0] = binary.LittleEndian.Uint32(b[32:36])
	h.Reserved[1] = binary.LittleEndian.Uint32(b[36:40])

	if h.Magic != FrameMagic {
		return FrameHeader{}, fmt.Errorf("%w: 0x%08x", ErrInvalidMagic, h.Magic)
	}
	return h, nil
}

// EncodeFrameHeader renders h in the wire layout. Used by the synthetic
// stream generator and by tests.
func EncodeFrameHeader(h FrameHeader) []byte {
	b := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(b[0:4], h.Magic)
	binary.LittleEndian.PutUint32(b[4:8], h.FrameID)
	binary.LittleEndian.PutUint32(b[8:12], h.Width)
	binary.LittleEndian.PutUint32(b[12:16], h.Height)
	binary.LittleEndian.PutUint32(b[16:20], h.PixFmt)
	binary.LittleEndian.PutUint32(b[20:24], h.Size)
	binary.LittleEndian.PutUint64(b[24:32], h.Timestamp)
	binary.LittleEndian.PutUint32(b[32:36], h.Reserved[0])
	binary.LittleEndian.PutUint32(b[36:40], h.Reserved[1])
	return b
}

// Validate checks the declared payload length before any bytes are read off
// the wire. maxBytes is the session's negotiated maximum (pool buffer size);
// zero-length and oversized payloads are framing violations.
func (h FrameHeader) Validate(maxBytes uint32) error {
	if h.Size == 0 {
		return fmt.Errorf("%w: zero payload size (frame %d)", ErrProtocol, h.FrameID)
	}
	if maxBytes == 0 || maxBytes > AbsoluteMaxFrameBytes {
		maxBytes = AbsoluteMaxFrameBytes
	}
	if h.Size > maxBytes {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d (frame %d)",
			ErrProtocol, h.Size, maxBytes, h.FrameID)
	}
	return nil
}

// PixelCount returns the number of samples a full frame carries.
func (h FrameHeader) PixelCount() int {
	return int(h.Width) * int(h.Height)
}

// FourCC renders the pixel format as its four-character code, with
// non-printable bytes replaced so the result is always loggable.
func (h FrameHeader) FourCC() string {
	c := [4]byte{
		byte(h.PixFmt), byte(h.PixFmt >> 8),
		byte(h.PixFmt >> 16), byte(h.PixFmt >> 24),
	}
	for i, ch := range c {
		if ch < 0x20 || ch > 0x7e {
			c[i] = '.'
		}
	}
	return string(c[:])
}

// PackedSize returns the expected payload length for a full SBGGR10 frame of
// the given dimensions: every 4 pixels occupy 5 bytes.
func PackedSize(width, height uint32) uint32 {
	return width * height / 4 * 5
}
