package camera

// SBGGR10 packs four 10-bit Bayer samples into five bytes. The five bytes
// (b0..b4) form a 40-bit value with b4 as the most significant byte and b0
// the least; slicing that value into four 10-bit fields from
// most significant to least significant yields pixels 1 through 4 of the
// group. The byte concatenation order is the wire contract of the sender and
// is preserved exactly; do not "correct" it to natural byte order.
const (
	packedGroupBytes = 5
	pixelsPerGroup   = 4
	sampleMask       = 0x3FF
)

// MaxSample is the largest value a decoded 10-bit sample can take.
const MaxSample = sampleMask

// UnpackedLen returns the number of samples produced from n payload bytes.
// Trailing bytes short of a full 5-byte group contribute nothing.
func UnpackedLen(n int) int {
	return n / packedGroupBytes * pixelsPerGroup
}

// UnpackSBGGR10 decodes a packed payload into dst and returns the number of
// samples written. A trailing partial group is discarded, never emitted as a
// partial pixel. If dst is too small only whole groups that fit are decoded.
func UnpackSBGGR10(payload []byte, dst []uint16) int {
	groups := len(payload) / packedGroupBytes
	if max := len(dst) / pixelsPerGroup; groups > max {
		groups = max
	}
	for g := 0; g < groups; g++ {
		b := payload[g*packedGroupBytes : g*packedGroupBytes+packedGroupBytes]
		v := uint64(b[4])<<32 | uint64(b[3])<<24 | uint64(b[2])<<16 |
			uint64(b[1])<<8 | uint64(b[0])
		o := dst[g*pixelsPerGroup:]
		o[0] = uint16(v >> 30 & sampleMask)
		o[1] = uint16(v >> 20 & sampleMask)
		o[2] = uint16(v >> 10 & sampleMask)
		o[3] = uint16(v & sampleMask)
	}
	return groups * pixelsPerGroup
}

// UnpackSBGGR10Alloc is the allocating form of UnpackSBGGR10.
func UnpackSBGGR10Alloc(payload []byte) []uint16 {
	dst := make([]uint16, UnpackedLen(len(payload)))
	UnpackSBGGR10(payload, dst)
	return dst
}

// PackSBGGR10 is the encoder inverse, used by the synthetic stream generator
// and round-trip tests. Samples beyond the last full group of four are
// dropped, mirroring the decoder.
func PackSBGGR10(samples []uint16) []byte {
	groups := len(samples) / pixelsPerGroup
	out := make([]byte, groups*packedGroupBytes)
	for g := 0; g < groups; g++ {
		s := samples[g*pixelsPerGroup:]
		v := uint64(s[0]&sampleMask)<<30 | uint64(s[1]&sampleMask)<<20 |
			uint64(s[2]&sampleMask)<<10 | uint64(s[3]&sampleMask)
		b := out[g*packedGroupBytes:]
		b[0] = byte(v)
		b[1] = byte(v >> 8)
		b[2] = byte(v >> 16)
		b[3] = byte(v >> 24)
		b[4] = byte(v >> 32)
	}
	return out
}
