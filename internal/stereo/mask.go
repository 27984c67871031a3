package stereo

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
)

// ErrViewport is the configuration error for a malformed viewport size.
var ErrViewport = errors.New("viewport size must be positive and finite")

// Circle is one lens cutout of the cardboard mask, in viewport pixels.
type Circle struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	R float64 `json:"r"`
}

func (c Circle) contains(x, y float64) bool {
	dx, dy := x-c.X, y-c.Y
	return dx*dx+dy*dy <= c.R*c.R
}

// Mask is the lens-mask geometry for a stereo viewport: an opaque
// full-viewport shape with two circular cutouts, one per viewport half
// (even-odd fill). It is a pure function of the viewport size and must be
// rebuilt on every size change, never cached across one.
type Mask struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Left   Circle  `json:"left"`
	Right  Circle  `json:"right"`
}

// BuildMask derives the mask for a viewport. Each half of the viewport is
// width/2 wide; the cutouts are centred per half at mid height, with radius
// 0.45 * min(width/2, height).
func BuildMask(width, height float64) (Mask, error) {
	if !(width > 0) || !(height > 0) || math.IsInf(width, 0) || math.IsInf(height, 0) {
		return Mask{}, fmt.Errorf("%w: got %vx%v", ErrViewport, width, height)
	}
	r := 0.45 * math.Min(width/2, height)
	return Mask{
		Width:  width,
		Height: height,
		Left:   Circle{X: width / 4, Y: height / 2, R: r},
		Right:  Circle{X: 3 * width / 4, Y: height / 2, R: r},
	}, nil
}

// Render rasterizes the mask: opaque black outside the cutouts,
// transparent inside. Used by the web viewer; the scene graph itself only
// consumes the geometry.
func (m Mask) Render() *image.NRGBA {
	w, h := int(math.Round(m.Width)), int(math.Round(m.Height))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	opaque := color.NRGBA{A: 0xFF}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			fx, fy := float64(x)+0.5, float64(y)+0.5
			if m.Left.contains(fx, fy) || m.Right.contains(fx, fy) {
				continue // cutout, leave transparent
			}
			img.SetNRGBA(x, y, opaque)
		}
	}
	return img
}
