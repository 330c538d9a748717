package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"diesel-manager-web/internal/backend"
)

// MaxStillBytes bounds an uploaded frame.
const MaxStillBytes = 10 << 20

// Decoded frames are bounded too: a small compressed upload can describe a
// huge bitmap.
const (
	MaxStillSide   = 8000
	MaxStillPixels = 40_000_000
)

// ErrFrameTooLarge reports an upload whose dimensions exceed the limits.
var ErrFrameTooLarge = errors.New("frame dimensions too large")

// StillDevices serves a single uploaded frame as if it came from a camera.
// The browser keeps the live preview; the server only sees the frame it
// posts, which goes through the same capture and encode path.
type StillDevices struct {
	data []byte
}

// NewStillDevices wraps raw image bytes (JPEG or PNG).
func NewStillDevices(data []byte) *StillDevices {
	return &StillDevices{data: data}
}

// GetUserMedia decodes the frame. The facing mode is ignored.
func (d *StillDevices) GetUserMedia(_ context.Context, _ Constraints) (Stream, error) {
	if len(d.data) > MaxStillBytes {
		return nil, fmt.Errorf("frame exceeds %d bytes", MaxStillBytes)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(d.data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > MaxStillSide || cfg.Height > MaxStillSide ||
		int64(cfg.Width)*int64(cfg.Height) > MaxStillPixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrFrameTooLarge, cfg.Width, cfg.Height)
	}
	img, _, err := image.Decode(bytes.NewReader(d.data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	return &stillStream{img: img, track: &stillTrack{}}, nil
}

type stillStream struct {
	img   image.Image
	track *stillTrack
}

func (s *stillStream) Tracks() []Track { return []Track{s.track} }

func (s *stillStream) Frame() (image.Image, error) {
	if s.track.Stopped() {
		return nil, ErrNoFrame
	}
	return s.img, nil
}

type stillTrack struct {
	mu      sync.Mutex
	stopped bool
}

func (t *stillTrack) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

func (t *stillTrack) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// PhotoFromUpload runs uploaded image bytes through a camera capture so
// every stored photo is a re-encoded JPEG.
func PhotoFromUpload(ctx context.Context, name string, data []byte) (*backend.Photo, error) {
	cam := NewCamera(NewStillDevices(data))
	defer cam.Close()
	if err := cam.Open(ctx); err != nil {
		return nil, err
	}
	return cam.Capture(name)
}
