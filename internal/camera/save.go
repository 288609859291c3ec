package camera

import (
	"encoding/binary"
	"fmt"
	"path/filepath"

	"github.com/polarisvision/camlink/internal/fsutil"
)

// SavedFrame describes one persisted artifact set for the frame index.
type SavedFrame struct {
	SessionID    string
	FrameID      uint32
	Width        uint32
	Height       uint32
	Timestamp    uint64
	RawPath      string
	UnpackedPath string // empty when conversion is disabled
	RawBytes     int
}

// FrameStore records persisted frames. internal/db satisfies it; a nil
// store means the saver only writes files.
type FrameStore interface {
	RecordFrame(rec SavedFrame) error
}

// FrameSaver writes each selected frame's packed payload to the output
// directory and, when conversion is enabled, the decoded samples alongside
// it as a row-major 16-bit little-endian array. File names carry the frame
// id and dimensions so captures are self-describing:
//
//	frame_000042_1920x1080.BG10
//	frame_000042_1920x1080_unpacked.raw
type FrameSaver struct {
	fs        fsutil.FileSystem
	dir       string
	convert   bool
	store     FrameStore
	sessionID string

	scratch []byte
}

// NewFrameSaver creates the output directory if absent. A nil filesystem
// uses the real one.
func NewFrameSaver(fsys fsutil.FileSystem, dir string, convert bool, store FrameStore) (*FrameSaver, error) {
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	if dir == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory %s: %w", dir, err)
	}
	return &FrameSaver{fs: fsys, dir: dir, convert: convert, store: store}, nil
}

// BindSession tags subsequent index records with the session id.
func (s *FrameSaver) BindSession(id string) { s.sessionID = id }

// Dir returns the output directory.
func (s *FrameSaver) Dir() string { return s.dir }

// Save persists one frame. payload is the packed wire payload; f.Pixels the
// decoded samples. Both artifacts are written before the index record.
func (s *FrameSaver) Save(f *DecodedFrame, payload []byte) error {
	ext := "raw"
	if f.PixFmt == PixFmtSBGGR10 {
		ext = "BG10"
	}
	rawName := fmt.Sprintf("frame_%06d_%dx%d.%s", f.FrameID, f.Width, f.Height, ext)
	rawPath := filepath.Join(s.dir, rawName)
	if err := s.fs.WriteFile(rawPath, payload, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", rawName, err)
	}

	rec := SavedFrame{
		SessionID: s.sessionID,
		FrameID:   f.FrameID,
		Width:     f.Width,
		Height:    f.Height,
		Timestamp: f.Timestamp,
		RawPath:   rawPath,
		RawBytes:  len(payload),
	}

	if s.convert && f.PixFmt == PixFmtSBGGR10 {
		name := fmt.Sprintf("frame_%06d_%dx%d_unpacked.raw", f.FrameID, f.Width, f.Height)
		path := filepath.Join(s.dir, name)
		if err := s.fs.WriteFile(path, s.encodeSamples(f.Pixels), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		rec.UnpackedPath = path
	}

	if s.store != nil {
		if err := s.store.RecordFrame(rec); err != nil {
			return fmt.Errorf("record frame %d: %w", f.FrameID, err)
		}
	}
	return nil
}

func (s *FrameSaver) encodeSamples(pixels []uint16) []byte {
	if cap(s.scratch) < len(pixels)*2 {
		s.scratch = make([]byte, len(pixels)*2)
	}
	out := s.scratch[:len(pixels)*2]
	for i, p := range pixels {
		binary.LittleEndian.PutUint16(out[i*2:], p)
	}
	return out
}
