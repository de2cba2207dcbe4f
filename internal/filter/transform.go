package filter

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"sync"

	// Registered so frames extracted as PNG are accepted too.
	_ "image/png"
)

// DefaultQuality is the JPEG quality used when none is configured.
const DefaultQuality = 90

// Transformer decodes a frame, applies the cinematic filter, and re-encodes
// it as JPEG. Filter tables are built lazily per frame size and reused.
type Transformer struct {
	Quality int

	mu      sync.Mutex
	filters map[image.Point]*Cinematic
}

// NewTransformer returns a Transformer encoding at quality (1-100).
func NewTransformer(quality int) *Transformer {
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}
	return &Transformer{Quality: quality, filters: make(map[image.Point]*Cinematic)}
}

// Transform returns the filtered JPEG for an encoded image.
func (t *Transformer) Transform(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	bounds := src.Bounds()
	if bounds.Empty() {
		return nil, fmt.Errorf("decode frame: empty image")
	}
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), src, bounds.Min, draw.Src)

	t.filterFor(bounds.Dx(), bounds.Dy()).Apply(rgba)

	var out bytes.Buffer
	out.Grow(len(data))
	if err := jpeg.Encode(&out, rgba, &jpeg.Options{Quality: t.quality()}); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return out.Bytes(), nil
}

// Sizes reports how many distinct frame sizes have cached tables.
func (t *Transformer) Sizes() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.filters)
}

func (t *Transformer) filterFor(width, height int) *Cinematic {
	key := image.Pt(width, height)
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.filters == nil {
		t.filters = make(map[image.Point]*Cinematic)
	}
	if f, ok := t.filters[key]; ok {
		return f
	}
	f := NewCinematic(width, height)
	t.filters[key] = f
	return f
}

func (t *Transformer) quality() int {
	if t.Quality < 1 || t.Quality > 100 {
		return DefaultQuality
	}
	return t.Quality
}
