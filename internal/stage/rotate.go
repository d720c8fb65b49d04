package stage

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/draw"
	"math"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/argus-io/ingest-agent/internal/frame"
)

func init() {
	Default.Register("stages.rotate.Rotate", newRotateStage)
}

type rotateConfig struct {
	Degrees int `json:"degrees"`
}

// RotateStage applies an additional rotation mid-pipeline, distinct from
// the canonical rotation the frame source already applies on capture. A
// descriptor uses this when a stage downstream of the detector needs a
// different orientation than the one persisted as the raw artifact (e.g.
// a plotted preview rotated for a particular display).
type RotateStage struct {
	name    string
	degrees int
}

func newRotateStage(name string, rawConfig json.RawMessage, _ Deps) (Stage, error) {
	var cfg rotateConfig
	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, &cfg); err != nil {
			return nil, fmt.Errorf("rotate stage %s: %w", name, err)
		}
	}
	return &RotateStage{name: name, degrees: cfg.Degrees}, nil
}

func (s *RotateStage) Name() string { return s.name }

func (s *RotateStage) Process(_ context.Context, p *frame.Payload) frame.Outcome {
	if s.degrees%360 == 0 {
		return frame.Continue(p)
	}
	p.Current.Pixels = rotateNearest(p.Current.Pixels, s.degrees)
	return frame.Continue(p)
}

func (s *RotateStage) Close() error { return nil }

// rotateNearest rotates src by degrees using nearest-neighbor sampling,
// cheaper than the source package's bilinear rotation and adequate for a
// display-only preview rotation applied after detection has already run on
// the canonical orientation.
func rotateNearest(src image.Image, degrees int) *image.YCbCr {
	degrees = ((degrees % 360) + 360) % 360
	sb := src.Bounds()

	dw, dh := sb.Dx(), sb.Dy()
	if degrees == 90 || degrees == 270 {
		dw, dh = dh, dw
	}
	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))

	theta := -float64(degrees) * math.Pi / 180
	cos, sin := math.Cos(theta), math.Sin(theta)
	scx, scy := float64(sb.Dx())/2, float64(sb.Dy())/2
	dcx, dcy := float64(dw)/2, float64(dh)/2

	s2d := f64.Aff3{
		cos, -sin, dcx - cos*scx + sin*scy,
		sin, cos, dcy - sin*scx - cos*scy,
	}
	xdraw.NearestNeighbor.Transform(dst, s2d, src, sb, draw.Src, nil)

	b := dst.Bounds()
	out := image.NewYCbCr(image.Rect(0, 0, b.Dx(), b.Dy()), image.YCbCrSubsampleRatio420)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bch, _ := dst.At(x, y).RGBA()
			yy, cb, cr := image.RGBToYCbCr(uint8(r>>8), uint8(g>>8), uint8(bch>>8))
			dstX, dstY := x-b.Min.X, y-b.Min.Y
			out.Y[out.YOffset(dstX, dstY)] = yy
			ci := out.COffset(dstX, dstY)
			out.Cb[ci] = cb
			out.Cr[ci] = cr
		}
	}
	return out
}
