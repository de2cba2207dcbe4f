package filter

import (
	"image"
	"math"
)

const (
	blueGain     = 1.15
	greenGain    = 0.95
	redGain      = 1.15
	curveMid     = 128.0
	curveSpread  = 32.0
	vignetteRate = 0.6
	barFraction  = 0.12
)

// Cinematic holds the precomputed tables for one frame size.
type Cinematic struct {
	width  int
	height int
	bar    int
	lut    [256]uint8
	grade  [3][256]uint8
	mask   []float64
}

// NewCinematic precomputes the contrast curve, colour grade, and vignette
// for width x height frames.
func NewCinematic(width, height int) *Cinematic {
	c := &Cinematic{
		width:  width,
		height: height,
		bar:    int(float64(height) * barFraction),
	}
	for i := range 256 {
		c.lut[i] = uint8(255.0 / (1 + math.Exp(-(float64(i)-curveMid)/curveSpread)))
	}
	for i := range 256 {
		// Grade then contrast, folded into one table per channel.
		c.grade[0][i] = c.lut[clampByte(float64(i)*redGain)]
		c.grade[1][i] = c.lut[clampByte(float64(i)*greenGain)]
		c.grade[2][i] = c.lut[clampByte(float64(i)*blueGain)]
	}
	gx := gaussian(width, float64(width)*vignetteRate)
	gy := gaussian(height, float64(height)*vignetteRate)
	c.mask = make([]float64, width*height)
	for y := range height {
		for x := range width {
			c.mask[y*width+x] = gy[y] * gx[x]
		}
	}
	return c
}

// Size returns the frame dimensions the tables were built for.
func (c *Cinematic) Size() image.Point {
	return image.Pt(c.width, c.height)
}

// Apply transforms img in place. img must match Size and have its origin at
// (0,0).
func (c *Cinematic) Apply(img *image.RGBA) {
	for y := range c.height {
		row := img.Pix[y*img.Stride : y*img.Stride+c.width*4]
		if y < c.bar || y >= c.height-c.bar {
			for x := 0; x < len(row); x += 4 {
				row[x], row[x+1], row[x+2] = 0, 0, 0
			}
			continue
		}
		maskRow := c.mask[y*c.width : (y+1)*c.width]
		for x := range c.width {
			px := row[x*4 : x*4+3 : x*4+3]
			m := maskRow[x]
			px[0] = uint8(float64(c.grade[0][px[0]]) * m)
			px[1] = uint8(float64(c.grade[1][px[1]]) * m)
			px[2] = uint8(float64(c.grade[2][px[2]]) * m)
		}
	}
}

// gaussian returns an n-point gaussian window with the given sigma, scaled
// so its peak is 1.
func gaussian(n int, sigma float64) []float64 {
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	if sigma <= 0 {
		for i := range out {
			out[i] = 1
		}
		return out
	}
	center := float64(n-1) / 2
	peak := 0.0
	for i := range n {
		d := float64(i) - center
		out[i] = math.Exp(-(d * d) / (2 * sigma * sigma))
		peak = max(peak, out[i])
	}
	for i := range out {
		out[i] /= peak
	}
	return out
}

func clampByte(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v)
	}
}
