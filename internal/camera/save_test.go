package camera

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polarisvision/camlink/internal/fsutil"
)

type recordingStore struct {
	recs []SavedFrame
	err  error
}

func (s *recordingStore) RecordFrame(rec SavedFrame) error {
	if s.err != nil {
		return s.err
	}
	s.recs = append(s.recs, rec)
	return nil
}

func testFrame() (*DecodedFrame, []byte) {
	pixels := []uint16{0, 1, 2, 3, 1020, 1021, 1022, 1023}
	payload := PackSBGGR10(pixels)
	return &DecodedFrame{
		FrameID:   42,
		Width:     4,
		Height:    2,
		PixFmt:    PixFmtSBGGR10,
		Timestamp: 987654321,
		RawSize:   len(payload),
		Pixels:    pixels,
	}, payload
}

func TestSaverRequiresDirectory(t *testing.T) {
	t.Parallel()

	_, err := NewFrameSaver(fsutil.NewMemoryFileSystem(), "", false, nil)
	assert.Error(t, err)
}

func TestSaverCreatesOutputDirectory(t *testing.T) {
	t.Parallel()

	mem := fsutil.NewMemoryFileSystem()
	_, err := NewFrameSaver(mem, "out/frames", false, nil)
	require.NoError(t, err)
	assert.True(t, mem.Exists("out/frames"))
}

func TestSaveWritesRawPayload(t *testing.T) {
	t.Parallel()

	mem := fsutil.NewMemoryFileSystem()
	saver, err := NewFrameSaver(mem, "out", false, nil)
	require.NoError(t, err)

	f, payload := testFrame()
	require.NoError(t, saver.Save(f, payload))

	data, err := mem.ReadFile("out/frame_000042_4x2.BG10")
	require.NoError(t, err)
	assert.Equal(t, payload, data)

	// Conversion is off: only the packed artifact exists.
	assert.Len(t, mem.Files(), 1)
}

func TestSaveWritesUnpackedConversion(t *testing.T) {
	t.Parallel()

	mem := fsutil.NewMemoryFileSystem()
	store := &recordingStore{}
	saver, err := NewFrameSaver(mem, "out", true, store)
	require.NoError(t, err)
	saver.BindSession("sess-1")

	f, payload := testFrame()
	require.NoError(t, saver.Save(f, payload))

	data, err := mem.ReadFile("out/frame_000042_4x2_unpacked.raw")
	require.NoError(t, err)
	require.Len(t, data, len(f.Pixels)*2)
	for i, p := range f.Pixels {
		assert.Equal(t, p, binary.LittleEndian.Uint16(data[i*2:]), "sample %d", i)
	}

	require.Len(t, store.recs, 1)
	rec := store.recs[0]
	assert.Equal(t, "sess-1", rec.SessionID)
	assert.Equal(t, uint32(42), rec.FrameID)
	assert.Equal(t, "out/frame_000042_4x2.BG10", rec.RawPath)
	assert.Equal(t, "out/frame_000042_4x2_unpacked.raw", rec.UnpackedPath)
	assert.Equal(t, len(payload), rec.RawBytes)
}

func TestSaveForeignFormatSkipsConversion(t *testing.T) {
	t.Parallel()

	mem := fsutil.NewMemoryFileSystem()
	saver, err := NewFrameSaver(mem, "out", true, nil)
	require.NoError(t, err)

	f, payload := testFrame()
	f.PixFmt = 0x56595559 // YUYV
	require.NoError(t, saver.Save(f, payload))

	// Foreign formats get the generic extension and no unpacked copy.
	assert.True(t, mem.Exists("out/frame_000042_4x2.raw"))
	assert.Len(t, mem.Files(), 1)
}

func TestSaveSurfacesStoreError(t *testing.T) {
	t.Parallel()

	storeErr := errors.New("disk full")
	saver, err := NewFrameSaver(fsutil.NewMemoryFileSystem(), "out", false, &recordingStore{err: storeErr})
	require.NoError(t, err)

	f, payload := testFrame()
	assert.ErrorIs(t, saver.Save(f, payload), storeErr)
}
