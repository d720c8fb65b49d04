// Package frame defines the types threaded between the frame source and the
// pipeline: the decoded Frame, the per-frame Payload carried through every
// stage, and the tagged Outcome each stage returns.
package frame

import (
	"image"
	"time"
)

// Frame is one decoded image off the video source. Pixels is held as YCbCr
// so the Y plane can be used directly as the luminance plane the health
// checks need, with no separate grayscale conversion.
type Frame struct {
	Pixels     *image.YCbCr
	CapturedAt time.Time
	SeqNum     uint64
	Source     string
}

// Clone returns an independent deep copy of f. The frame source hands this
// out to every reader so mutating a returned frame never affects the
// buffered original or any other reader's copy.
func (f *Frame) Clone() *Frame {
	if f == nil {
		return nil
	}
	cloned := &image.YCbCr{
		Y:              append([]byte(nil), f.Pixels.Y...),
		Cb:             append([]byte(nil), f.Pixels.Cb...),
		Cr:             append([]byte(nil), f.Pixels.Cr...),
		YStride:        f.Pixels.YStride,
		CStride:        f.Pixels.CStride,
		SubsampleRatio: f.Pixels.SubsampleRatio,
		Rect:           f.Pixels.Rect,
	}
	return &Frame{
		Pixels:     cloned,
		CapturedAt: f.CapturedAt,
		SeqNum:     f.SeqNum,
		Source:     f.Source,
	}
}

// Bounds reports the pixel rectangle of the frame, post-rotation.
func (f *Frame) Bounds() image.Rectangle {
	if f == nil || f.Pixels == nil {
		return image.Rectangle{}
	}
	return f.Pixels.Rect
}

// Crop returns an independent Frame holding just the region bbox ([x1, y1,
// x2, y2]) of f, clamped to f's bounds. The caller gets its own backing
// array, safe to hand to an encoder running concurrently with the rest of
// the pipeline.
func (f *Frame) Crop(bbox [4]int) *Frame {
	region := image.Rect(bbox[0], bbox[1], bbox[2], bbox[3]).Intersect(f.Pixels.Rect)
	if region.Empty() {
		return nil
	}
	sub, ok := f.Pixels.SubImage(region).(*image.YCbCr)
	if !ok {
		return nil
	}
	cropped := &image.YCbCr{
		Y:              append([]byte(nil), sub.Y...),
		Cb:             append([]byte(nil), sub.Cb...),
		Cr:             append([]byte(nil), sub.Cr...),
		YStride:        sub.YStride,
		CStride:        sub.CStride,
		SubsampleRatio: sub.SubsampleRatio,
		Rect:           sub.Rect,
	}
	return &Frame{
		Pixels:     cropped,
		CapturedAt: f.CapturedAt,
		SeqNum:     f.SeqNum,
		Source:     f.Source,
	}
}

// Track is one predictor output for a single tracked object within a frame.
type Track struct {
	TrackID    string
	BBox       [4]int
	Confidence float64
	ClassID    int
	ClassName  string
	Zones      map[string]ZoneAttribution
	CropPath   string // set once the detector stage submits this track's crop artifact
}

// ZoneAttribution records whether a track sits inside or outside a named
// polygonal zone at the moment of the check.
type ZoneAttribution struct {
	Location string // "inside" or "outside"
}

const (
	LocationInside  = "inside"
	LocationOutside = "outside"
)

// Payload is the packet threaded through the pipeline. Each stage receives
// one and must return either a (possibly mutated) Payload wrapped in
// Continue, or an Abort — never a bare nil.
type Payload struct {
	Current    *Frame
	Original   *Frame
	CapturedAt time.Time
	SeqNum     uint64
	Meta       map[string]any
}

// NewPayload builds a fresh payload for a just-captured frame: an
// independent original copy and an empty extension map.
func NewPayload(f *Frame) *Payload {
	return &Payload{
		Current:    f,
		Original:   f.Clone(),
		CapturedAt: f.CapturedAt,
		SeqNum:     f.SeqNum,
		Meta:       make(map[string]any),
	}
}
