package frame

import (
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFrame(seq uint64) *Frame {
	rect := image.Rect(0, 0, 4, 4)
	img := image.NewYCbCr(rect, image.YCbCrSubsampleRatio420)
	for i := range img.Y {
		img.Y[i] = byte(i)
	}
	return &Frame{
		Pixels:     img,
		CapturedAt: time.Unix(1000, 0),
		SeqNum:     seq,
		Source:     "cam-1",
	}
}

func TestFrameCloneIsIndependent(t *testing.T) {
	orig := newTestFrame(1)
	clone := orig.Clone()

	require.NotNil(t, clone)
	assert.Equal(t, orig.SeqNum, clone.SeqNum)
	assert.Equal(t, orig.CapturedAt, clone.CapturedAt)

	clone.Pixels.Y[0] = 255
	assert.NotEqual(t, orig.Pixels.Y[0], clone.Pixels.Y[0], "mutating clone must not affect original")
}

func TestFrameCloneNil(t *testing.T) {
	var f *Frame
	assert.Nil(t, f.Clone())
}

func TestFrameCropReturnsRequestedRegion(t *testing.T) {
	orig := newTestFrame(1)
	crop := orig.Crop([4]int{1, 1, 3, 3})

	require.NotNil(t, crop)
	assert.Equal(t, 2, crop.Pixels.Bounds().Dx())
	assert.Equal(t, 2, crop.Pixels.Bounds().Dy())
	assert.NotSame(t, &orig.Pixels.Y[orig.Pixels.YOffset(1, 1)], &crop.Pixels.Y[0])
}

func TestFrameCropClampsToBounds(t *testing.T) {
	orig := newTestFrame(1)
	crop := orig.Crop([4]int{2, 2, 100, 100})

	require.NotNil(t, crop)
	assert.Equal(t, 2, crop.Pixels.Bounds().Dx())
	assert.Equal(t, 2, crop.Pixels.Bounds().Dy())
}

func TestFrameCropOutsideBoundsIsNil(t *testing.T) {
	orig := newTestFrame(1)
	assert.Nil(t, orig.Crop([4]int{10, 10, 20, 20}))
}

func TestNewPayloadCopiesOriginal(t *testing.T) {
	f := newTestFrame(7)
	p := NewPayload(f)

	require.NotNil(t, p.Original)
	assert.Equal(t, f.SeqNum, p.SeqNum)
	assert.Same(t, f, p.Current, "current should reference the captured frame directly")
	assert.NotSame(t, f.Pixels, p.Original.Pixels, "original must be an independent copy")
	assert.Empty(t, p.Meta)
}

func TestOutcomeContinueAndAbort(t *testing.T) {
	p := NewPayload(newTestFrame(1))
	cont := Continue(p)
	assert.False(t, cont.Aborted())
	assert.Same(t, p, cont.Payload())

	ab := Abort("empty frame")
	assert.True(t, ab.Aborted())
	assert.Equal(t, "empty frame", ab.Reason())
	assert.Nil(t, ab.Payload())
}
