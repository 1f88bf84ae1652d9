// Package image synthesizes pixel data for generated instances. Each
// buffer starts as Gaussian noise, gains bright and dark structures
// according to an anatomical region recipe, and is then mapped into the
// intensity range typical for the modality.
package image

import (
	"fmt"
	"math/rand/v2"

	"github.com/pacslab/dicomsynth/internal/util"
)

// Config selects what to synthesize.
type Config struct {
	Width    int
	Height   int
	Modality string
	// Region names the anatomical recipe. Unrecognized regions fall
	// back to a generic pattern.
	Region string
	// RNG drives all randomness in the buffer. Nil seeds from system
	// entropy.
	RNG *rand.Rand
}

// Buffer is a synthesized grayscale image, row-major, 16 bits per pixel.
type Buffer struct {
	Width  int
	Height int
	Pix    []uint16
}

// Synthesize produces a pixel buffer per cfg.
//
// Returns an error if dimensions are invalid (zero, negative, or would
// overflow).
func Synthesize(cfg Config) (*Buffer, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("invalid dimensions: %dx%d", cfg.Width, cfg.Height)
	}
	maxSize := int(^uint(0) >> 1)
	if cfg.Width > maxSize/cfg.Height {
		return nil, fmt.Errorf("dimensions %dx%d overflow", cfg.Width, cfg.Height)
	}

	rng := cfg.RNG
	if rng == nil {
		rng = util.NewRNG(0)
	}

	c := newCanvas(cfg.Width, cfg.Height)
	paintRegion(c, cfg.Region, rng)

	buf := &Buffer{
		Width:  cfg.Width,
		Height: cfg.Height,
		Pix:    make([]uint16, cfg.Width*cfg.Height),
	}
	for i, v := range c.pix {
		buf.Pix[i] = quantize(v, cfg.Modality)
	}
	return buf, nil
}

// quantize maps a raw canvas value into the modality's intensity range.
// CT and MR occupy a 12-bit window stretched to 16 bits, ultrasound an
// 8-bit window, everything else the full 16-bit range.
func quantize(v int32, modality string) uint16 {
	switch modality {
	case "CT", "MR":
		if v < 0 {
			v = 0
		} else if v > 4095 {
			v = 4095
		}
		return uint16(float64(v) / 4095 * 65535)
	case "US":
		if v < 0 {
			v = 0
		} else if v > 255 {
			v = 255
		}
		return uint16(v * 257)
	default:
		if v < 0 {
			v = 0
		} else if v > 65535 {
			v = 65535
		}
		return uint16(v)
	}
}

// canvas is the working surface recipes paint on. Values live in int32
// so additions saturate instead of wrapping.
type canvas struct {
	w, h int
	pix  []int32
}

func newCanvas(w, h int) *canvas {
	return &canvas{w: w, h: h, pix: make([]int32, w*h)}
}

// add applies delta at (x, y), clamping the result to the 16-bit range.
// Coordinates outside the canvas are ignored.
func (c *canvas) add(x, y int, delta int32) {
	if x < 0 || x >= c.w || y < 0 || y >= c.h {
		return
	}
	v := c.pix[y*c.w+x] + delta
	if v < 0 {
		v = 0
	} else if v > 65535 {
		v = 65535
	}
	c.pix[y*c.w+x] = v
}

// addDisk applies delta inside the disk of radius r centered at
// (cx, cy), boundary included.
func (c *canvas) addDisk(cx, cy, r int, delta int32) {
	for y := cy - r; y <= cy+r; y++ {
		for x := cx - r; x <= cx+r; x++ {
			dx, dy := x-cx, y-cy
			if dx*dx+dy*dy <= r*r {
				c.add(x, y, delta)
			}
		}
	}
}

// addRect applies delta to the half-open rectangle [x0,x1)x[y0,y1).
func (c *canvas) addRect(x0, y0, x1, y1 int, delta int32) {
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			c.add(x, y, delta)
		}
	}
}

// fillNoise seeds every pixel with a Gaussian sample.
func (c *canvas) fillNoise(rng *rand.Rand, mean, sigma float64) {
	for i := range c.pix {
		v := int32(rng.NormFloat64()*sigma + mean)
		if v < 0 {
			v = 0
		} else if v > 65535 {
			v = 65535
		}
		c.pix[i] = v
	}
}

// randBetween returns a uniform integer in [lo, hi], both ends included.
func randBetween(rng *rand.Rand, lo, hi int) int {
	return lo + rng.IntN(hi-lo+1)
}
