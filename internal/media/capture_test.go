package media

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/krishangoyal12/Video-Chat-Application/internal/logging"
)

// writeIVFHeader writes a 32 byte IVF file header with no frames.
func writeIVFHeader(t *testing.T, fourcc string) string {
	t.Helper()

	header := make([]byte, 32)
	copy(header[0:4], "DKIF")
	binary.LittleEndian.PutUint16(header[4:6], 0)
	binary.LittleEndian.PutUint16(header[6:8], 32)
	copy(header[8:12], fourcc)
	binary.LittleEndian.PutUint16(header[12:14], 640)
	binary.LittleEndian.PutUint16(header[14:16], 480)
	binary.LittleEndian.PutUint32(header[16:20], 30)
	binary.LittleEndian.PutUint32(header[20:24], 1)
	binary.LittleEndian.PutUint32(header[24:28], 0)

	path := filepath.Join(t.TempDir(), "video.ivf")
	require.NoError(t, os.WriteFile(path, header, 0o600))
	return path
}

func captureOptions(t *testing.T) CaptureOptions {
	return CaptureOptions{Logger: logging.NewTestLogger(t).WithField("component", "capture")}
}

func TestCaptureWithoutFilesOnlyReceives(t *testing.T) {
	m, err := Capture(context.Background(), captureOptions(t))
	require.NoError(t, err)
	require.Nil(t, m.Audio)
	require.Nil(t, m.Video)

	m.Stop()
	m.Stop()
}

func TestCaptureMissingFile(t *testing.T) {
	opts := captureOptions(t)
	opts.VideoFile = filepath.Join(t.TempDir(), "missing.ivf")

	_, err := Capture(context.Background(), opts)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestCaptureRejectsNonVP8(t *testing.T) {
	opts := captureOptions(t)
	opts.VideoFile = writeIVFHeader(t, "AV01")

	_, err := Capture(context.Background(), opts)
	require.ErrorContains(t, err, "unsupported video codec")
}

func TestCaptureRejectsInvalidOgg(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audio.ogg")
	require.NoError(t, os.WriteFile(path, []byte("not an ogg stream"), 0o600))

	opts := captureOptions(t)
	opts.AudioFile = path

	_, err := Capture(context.Background(), opts)
	require.ErrorContains(t, err, "audio capture")
}

func TestCaptureStopsOnCancel(t *testing.T) {
	opts := captureOptions(t)
	opts.VideoFile = writeIVFHeader(t, "VP80")

	ctx, cancel := context.WithCancel(context.Background())
	m, err := Capture(ctx, opts)
	require.NoError(t, err)
	require.NotNil(t, m.Video)
	require.Equal(t, "video", m.Video.Kind().String())

	cancel()
	m.Stop()
}
