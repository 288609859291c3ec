package camera

import (
	"encoding/binary"
	"errors"
	"testing"
)

func validHeader() FrameHeader {
	return FrameHeader{
		Magic:     FrameMagic,
		FrameID:   42,
		Width:     1920,
		Height:    1080,
		PixFmt:    PixFmtSBGGR10,
		Size:      PackedSize(1920, 1080),
		Timestamp: 1234567890,
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	want := validHeader()
	want.Reserved = [2]uint32{7, 9}

	got, err := ParseFrameHeader(EncodeFrameHeader(want))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if got != want {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestHeaderWireLayout(t *testing.T) {
	b := EncodeFrameHeader(validHeader())
	if len(b) != HeaderSize {
		t.Fatalf("encoded %d bytes, want %d", len(b), HeaderSize)
	}
	if magic := binary.LittleEndian.Uint32(b[0:4]); magic != FrameMagic {
		t.Errorf("magic at offset 0: got 0x%08x", magic)
	}
	if size := binary.LittleEndian.Uint32(b[20:24]); size != PackedSize(1920, 1080) {
		t.Errorf("size at offset 20: got %d", size)
	}
	if ts := binary.LittleEndian.Uint64(b[24:32]); ts != 1234567890 {
		t.Errorf("timestamp at offset 24: got %d", ts)
	}
}

func TestParseRejectsBadMagic(t *testing.T) {
	h := validHeader()
	h.Magic = 0xCAFEBABE
	_, err := ParseFrameHeader(EncodeFrameHeader(h))
	if !errors.Is(err, ErrInvalidMagic) {
		t.Fatalf("got %v, want ErrInvalidMagic", err)
	}
}

func TestParseRejectsShortHeader(t *testing.T) {
	_, err := ParseFrameHeader(make([]byte, HeaderSize-1))
	if !errors.Is(err, ErrProtocol) {
		t.Fatalf("got %v, want ErrProtocol", err)
	}
}

func TestHeaderValidate(t *testing.T) {
	cases := []struct {
		name     string
		size     uint32
		maxBytes uint32
		wantErr  bool
	}{
		{"normal", 2592000, 8 << 20, false},
		{"zero size", 0, 8 << 20, true},
		{"at limit", 8 << 20, 8 << 20, false},
		{"over limit", (8 << 20) + 1, 8 << 20, true},
		{"zero max falls back to absolute", AbsoluteMaxFrameBytes, 0, false},
		{"over absolute", AbsoluteMaxFrameBytes + 1, 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := validHeader()
			h.Size = tc.size
			err := h.Validate(tc.maxBytes)
			if tc.wantErr && !errors.Is(err, ErrProtocol) {
				t.Errorf("got %v, want ErrProtocol", err)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestFourCC(t *testing.T) {
	h := validHeader()
	if got := h.FourCC(); got != "BG10" {
		t.Errorf("FourCC() = %q, want BG10", got)
	}
	h.PixFmt = 0x00000001
	if got := h.FourCC(); got != "...." {
		t.Errorf("FourCC() with unprintable bytes = %q", got)
	}
}

func TestPackedSize(t *testing.T) {
	if got := PackedSize(1920, 1080); got != 2592000 {
		t.Errorf("PackedSize(1920, 1080) = %d, want 2592000", got)
	}
	if got := PackedSize(4, 1); got != 5 {
		t.Errorf("PackedSize(4, 1) = %d, want 5", got)
	}
}
