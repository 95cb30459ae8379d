package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/ivfreader"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"
	"github.com/sirupsen/logrus"
)

// CaptureOptions name the files played as local media. An empty path
// leaves that kind out, so a participant with neither only receives.
type CaptureOptions struct {
	// VideoFile is an IVF container with VP8 frames.
	VideoFile string

	// AudioFile is an Ogg container with Opus pages.
	AudioFile string

	Logger *logrus.Entry
}

// LocalMedia is local capture shared by every session of a call. It
// satisfies mesh.LocalMedia.
type LocalMedia struct {
	Audio *webrtc.TrackLocalStaticSample
	Video *webrtc.TrackLocalStaticSample

	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// Stop ends playback and waits for the feeders to exit.
func (m *LocalMedia) Stop() {
	m.once.Do(func() {
		m.cancel()
		m.wg.Wait()
	})
}

// Capture validates the files and starts looping them into local tracks.
// Any error here must stop the call before a connection is opened.
func Capture(ctx context.Context, opts CaptureOptions) (*LocalMedia, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}

	ctx, cancel := context.WithCancel(ctx)
	m := &LocalMedia{cancel: cancel}

	if opts.VideoFile != "" {
		if err := probeIVF(opts.VideoFile); err != nil {
			cancel()
			return nil, fmt.Errorf("video capture: %w", err)
		}
		track, err := webrtc.NewTrackLocalStaticSample(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", "videochat")
		if err != nil {
			cancel()
			return nil, fmt.Errorf("video track: %w", err)
		}
		m.Video = track
		m.start(func() { loop(ctx, logger, "video", func() error { return playIVF(ctx, opts.VideoFile, track) }) })
	}

	if opts.AudioFile != "" {
		if err := probeOgg(opts.AudioFile); err != nil {
			cancel()
			return nil, fmt.Errorf("audio capture: %w", err)
		}
		track, err := webrtc.NewTrackLocalStaticSample(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", "videochat")
		if err != nil {
			cancel()
			return nil, fmt.Errorf("audio track: %w", err)
		}
		m.Audio = track
		m.start(func() { loop(ctx, logger, "audio", func() error { return playOgg(ctx, opts.AudioFile, track) }) })
	}

	return m, nil
}

func (m *LocalMedia) start(fn func()) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		fn()
	}()
}

// loop replays a file until ctx is done.
func loop(ctx context.Context, logger *logrus.Entry, kind string, play func() error) {
	for ctx.Err() == nil {
		if err := play(); err != nil && !errors.Is(err, context.Canceled) {
			logger.WithError(err).WithField("kind", kind).Warn("playback stopped")
			return
		}
	}
}

func probeIVF(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, header, err := ivfreader.NewWith(f)
	if err != nil {
		return fmt.Errorf("read ivf header: %w", err)
	}
	if header.FourCC != "VP80" {
		return fmt.Errorf("unsupported video codec %q, want VP80", header.FourCC)
	}
	return nil
}

func probeOgg(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, _, err := oggreader.NewWith(f); err != nil {
		return fmt.Errorf("read ogg header: %w", err)
	}
	return nil
}

func playIVF(ctx context.Context, path string, track *webrtc.TrackLocalStaticSample) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	reader, header, err := ivfreader.NewWith(f)
	if err != nil {
		return err
	}

	frameDuration := time.Second / 30
	if header.TimebaseDenominator > 0 && header.TimebaseNumerator > 0 {
		frameDuration = time.Second * time.Duration(header.TimebaseNumerator) / time.Duration(header.TimebaseDenominator)
	}

	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		frame, _, err := reader.ParseNextFrame()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := track.WriteSample(pionmedia.Sample{Data: frame, Duration: frameDuration}); err != nil {
			return err
		}
	}
}

// oggPageDuration matches the 20ms Opus frames produced by common encoders.
const oggPageDuration = 20 * time.Millisecond

func playOgg(ctx context.Context, path string, track *webrtc.TrackLocalStaticSample) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	reader, _, err := oggreader.NewWith(f)
	if err != nil {
		return err
	}

	ticker := time.NewTicker(oggPageDuration)
	defer ticker.Stop()

	var lastGranule uint64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		page, header, err := reader.ParseNextPage()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		samples := header.GranulePosition - lastGranule
		lastGranule = header.GranulePosition
		duration := time.Duration(float64(samples)/48000*1000) * time.Millisecond

		if err := track.WriteSample(pionmedia.Sample{Data: page, Duration: duration}); err != nil {
			return err
		}
	}
}
