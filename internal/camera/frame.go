package camera

// DecodedFrame is one fully decoded Bayer frame: width*height 16-bit
// samples, each constrained to 10 significant bits, plus the header
// metadata that identifies it. Pixels is a view into a pool buffer; the
// frame is consumed exactly once and then Release returns the buffer.
type DecodedFrame struct {
	FrameID   uint32
	Width     uint32
	Height    uint32
	PixFmt    uint32
	Timestamp uint64 // sender capture clock, nanoseconds
	RawSize   int    // packed payload length on the wire

	Pixels []uint16 // row-major, len == Width*Height

	buf *Buffer
}

// Release returns the backing buffer to the pool. The frame and its Pixels
// slice must not be touched afterwards. Calling Release twice reports
// ErrBufferReleased from the pool; a frame without a backing buffer is a
// no-op.
func (f *DecodedFrame) Release() error {
	if f.buf == nil {
		return nil
	}
	b := f.buf
	f.buf = nil
	f.Pixels = nil
	return b.Release()
}
