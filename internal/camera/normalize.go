package camera

import (
	"fmt"
	"image"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Normalizer maps decoded 10-bit samples onto an 8-bit presentable image
// using a 1st/99th percentile contrast stretch. It is safe for use by a
// single goroutine; the scratch buffer is reused across frames.
type Normalizer struct {
	// FalseColor selects the blue-to-red palette instead of replicating
	// the grey value across channels.
	FalseColor bool

	scratch []float64
}

// Normalize8 computes the contrast-stretched 8-bit plane for the given
// samples. Constant images produce an all-zero plane; there is no input for
// which this divides by zero.
func (n *Normalizer) Normalize8(pixels []uint16) []uint8 {
	out := make([]uint8, len(pixels))
	if len(pixels) == 0 {
		return out
	}

	if cap(n.scratch) < len(pixels) {
		n.scratch = make([]float64, len(pixels))
	}
	vals := n.scratch[:len(pixels)]
	for i, p := range pixels {
		vals[i] = float64(p)
	}
	sort.Float64s(vals)

	lo := stat.Quantile(0.01, stat.Empirical, vals, nil)
	hi := stat.Quantile(0.99, stat.Empirical, vals, nil)
	if hi <= lo {
		// Degenerate percentiles: fall back to the full range.
		lo = vals[0]
		hi = vals[len(vals)-1]
	}
	if hi <= lo {
		return out // constant image
	}

	scale := 255.0 / (hi - lo)
	for i, p := range pixels {
		v := (float64(p) - lo) * scale
		if v < 0 {
			v = 0
		} else if v > 255 {
			v = 255
		}
		out[i] = uint8(v)
	}
	return out
}

// Image renders a decoded frame as a displayable image: greyscale by
// default, RGB in false-colour mode.
func (n *Normalizer) Image(f *DecodedFrame) (image.Image, error) {
	w, h := int(f.Width), int(f.Height)
	if w <= 0 || h <= 0 || len(f.Pixels) < w*h {
		return nil, fmt.Errorf("%w: %dx%d frame with %d samples", ErrDecode, w, h, len(f.Pixels))
	}
	grey := n.Normalize8(f.Pixels[:w*h])

	if !n.FalseColor {
		return &image.Gray{Pix: grey, Stride: w, Rect: image.Rect(0, 0, w, h)}, nil
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i, v := range grey {
		r, g, b := falseColorRGB(v)
		o := i * 4
		img.Pix[o] = r
		img.Pix[o+1] = g
		img.Pix[o+2] = b
		img.Pix[o+3] = 0xFF
	}
	return img, nil
}

// falseColorRGB maps a grey level onto the blue-to-red palette used by the
// desktop viewer: low values render blue, mid-range green, high values red.
func falseColorRGB(v uint8) (uint8, uint8, uint8) {
	g := float64(v)
	d := g - 128
	if d < 0 {
		d = -d
	}
	return clamp255(1.5*g - 128), clamp255(d * 2), clamp255(255 - 1.5*g)
}

func clamp255(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
