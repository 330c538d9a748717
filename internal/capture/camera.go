// Package capture implements the photo and signature capture widgets that
// feed the entry forms.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"sync"

	"diesel-manager-web/internal/backend"
)

// FacingMode selects the front or rear camera.
type FacingMode string

const (
	FacingRear  FacingMode = "environment"
	FacingFront FacingMode = "user"
)

// Opposite returns the other facing mode.
func (f FacingMode) Opposite() FacingMode {
	if f == FacingFront {
		return FacingRear
	}
	return FacingFront
}

// Constraints are the stream parameters requested from the device.
type Constraints struct {
	Facing FacingMode
	Width  int
	Height int
}

// Track is one acquired media track.
type Track interface {
	Stop()
}

// Stream is a live video stream.
type Stream interface {
	Tracks() []Track
	// Frame grabs the current frame.
	Frame() (image.Image, error)
}

// MediaDevices acquires streams.
type MediaDevices interface {
	GetUserMedia(ctx context.Context, c Constraints) (Stream, error)
}

var (
	ErrNotOpen = errors.New("camera is not open")
	ErrNoFrame = errors.New("no frame available")
)

// JPEGQuality is used for every encoded photo.
const JPEGQuality = 85

// Camera holds at most one stream at a time. Every path that drops the
// stream stops its tracks.
type Camera struct {
	mu      sync.Mutex
	devices MediaDevices
	facing  FacingMode
	stream  Stream
}

// NewCamera creates a closed camera defaulting to the rear lens.
func NewCamera(devices MediaDevices) *Camera {
	return &Camera{devices: devices, facing: FacingRear}
}

// Facing returns the current facing mode.
func (c *Camera) Facing() FacingMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.facing
}

// Active reports whether a stream is held.
func (c *Camera) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream != nil
}

// Open acquires a stream with the current facing mode, replacing any open one.
func (c *Camera) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.acquireLocked(ctx, c.facing)
}

// Flip re-acquires the stream with the opposite facing mode. The old stream
// is stopped only after the new one is live; on failure the old one is kept.
func (c *Camera) Flip(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.acquireLocked(ctx, c.facing.Opposite())
}

func (c *Camera) acquireLocked(ctx context.Context, facing FacingMode) error {
	s, err := c.devices.GetUserMedia(ctx, Constraints{Facing: facing})
	if err != nil {
		return fmt.Errorf("failed to acquire %s camera: %w", facing, err)
	}
	stopAll(c.stream)
	c.stream = s
	c.facing = facing
	return nil
}

// Capture grabs the current frame as a JPEG photo and releases the stream.
func (c *Camera) Capture(name string) (*backend.Photo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream == nil {
		return nil, ErrNotOpen
	}
	defer func() {
		stopAll(c.stream)
		c.stream = nil
	}()

	frame, err := c.stream.Frame()
	if err != nil {
		return nil, fmt.Errorf("failed to grab frame: %w", err)
	}
	if frame == nil {
		return nil, ErrNoFrame
	}
	return EncodePhoto(frame, name)
}

// Close releases the stream. It is safe to call on a closed camera.
func (c *Camera) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	stopAll(c.stream)
	c.stream = nil
}

func stopAll(s Stream) {
	if s == nil {
		return
	}
	for _, t := range s.Tracks() {
		t.Stop()
	}
}

// EncodePhoto encodes img as a JPEG photo.
func EncodePhoto(img image.Image, name string) (*backend.Photo, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode photo: %w", err)
	}
	if name == "" {
		name = "photo.jpg"
	}
	return &backend.Photo{Name: name, ContentType: "image/jpeg", Data: buf.Bytes()}, nil
}
