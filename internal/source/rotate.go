package source

import (
	"image"
	"image/draw"
	"math"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// rotateFrame applies a 0/90/180/270-degree rotation to an image so every
// consumer of internal/source always sees the canonical orientation,
// adjusting the reported dimensions to the post-rotation shape. Rotation
// runs inside the reader goroutine.
func rotateFrame(src image.Image, degrees int) *image.YCbCr {
	degrees = ((degrees % 360) + 360) % 360
	sb := src.Bounds()

	dw, dh := sb.Dx(), sb.Dy()
	if degrees == 90 || degrees == 270 {
		dw, dh = dh, dw
	}
	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))

	if degrees == 0 {
		xdraw.Draw(dst, dst.Bounds(), src, sb.Min, xdraw.Src)
		return toYCbCr(dst)
	}

	// Affine transform mapping destination pixel coordinates back to
	// source coordinates, rotating about the source center.
	theta := -float64(degrees) * math.Pi / 180
	cos, sin := math.Cos(theta), math.Sin(theta)
	scx, scy := float64(sb.Dx())/2, float64(sb.Dy())/2
	dcx, dcy := float64(dw)/2, float64(dh)/2

	s2d := f64.Aff3{
		cos, -sin, dcx - cos*scx + sin*scy,
		sin, cos, dcy - sin*scx - cos*scy,
	}
	xdraw.BiLinear.Transform(dst, s2d, src, sb, draw.Src, nil)

	return toYCbCr(dst)
}

// toYCbCr re-encodes an arbitrary image.Image into YCbCr so downstream
// health checks keep operating directly on the Y plane.
func toYCbCr(src image.Image) *image.YCbCr {
	b := src.Bounds()
	dst := image.NewYCbCr(image.Rect(0, 0, b.Dx(), b.Dy()), image.YCbCrSubsampleRatio420)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bch, _ := src.At(x, y).RGBA()
			yy, cb, cr := rgbToYCbCr(uint8(r>>8), uint8(g>>8), uint8(bch>>8))
			dstX, dstY := x-b.Min.X, y-b.Min.Y
			dst.Y[dst.YOffset(dstX, dstY)] = yy
			ci := dst.COffset(dstX, dstY)
			dst.Cb[ci] = cb
			dst.Cr[ci] = cr
		}
	}
	return dst
}

func rgbToYCbCr(r, g, b uint8) (y, cb, cr uint8) {
	return image.RGBToYCbCr(r, g, b)
}
