package health

import "math"

// Thresholds configures the four image-quality checks.
type Thresholds struct {
	EntropyMin    float64
	WhiteRatioMax float64
	BlackMeanMax  float64
	BlurVarMin    float64
}

// DefaultThresholds returns conservative defaults for every check.
func DefaultThresholds() Thresholds {
	return Thresholds{
		EntropyMin:    4.0,
		WhiteRatioMax: 0.6,
		BlackMeanMax:  10.0,
		BlurVarMin:    100.0,
	}
}

// CheckFrame runs every image check against a luminance plane (width x
// height bytes, row-major, stride == width) and returns the reasons that
// fired. An empty plane returns ReasonEmptyFrame alone.
func CheckFrame(y []byte, width, height int, th Thresholds) []ReasonCode {
	if len(y) == 0 || width == 0 || height == 0 {
		return []ReasonCode{ReasonEmptyFrame}
	}

	var reasons []ReasonCode

	if entropy(y) < th.EntropyMin {
		reasons = append(reasons, ReasonLowEntropy)
	}
	if whiteRatio(y) > th.WhiteRatioMax {
		reasons = append(reasons, ReasonWhiteScreen)
	}
	if meanIntensity(y) < th.BlackMeanMax {
		reasons = append(reasons, ReasonBlackScreen)
	}
	if laplacianVariance(y, width, height) < th.BlurVarMin {
		reasons = append(reasons, ReasonBlurry)
	}

	return reasons
}

// entropy computes the Shannon entropy of the 256-bin intensity histogram.
func entropy(y []byte) float64 {
	var hist [256]int
	for _, v := range y {
		hist[v]++
	}
	total := float64(len(y))
	if total <= 0 {
		return 0
	}

	var h float64
	for _, count := range hist {
		if count == 0 {
			continue
		}
		p := float64(count) / total
		h -= p * math.Log2(p)
	}
	return h
}

// whiteRatio returns the fraction of pixels with intensity strictly above 220.
func whiteRatio(y []byte) float64 {
	var white int
	for _, v := range y {
		if v > 220 {
			white++
		}
	}
	return float64(white) / float64(len(y))
}

// meanIntensity returns the mean pixel intensity.
func meanIntensity(y []byte) float64 {
	var sum int
	for _, v := range y {
		sum += int(v)
	}
	return float64(sum) / float64(len(y))
}

// laplacianVariance computes the variance of the discrete Laplacian
// (4-neighbor kernel: -1,-1,-1,-1,4 at center) over interior pixels, used as
// a blur proxy: a sharp image has high-variance edge responses, a blurry
// one does not.
func laplacianVariance(y []byte, width, height int) float64 {
	if width < 3 || height < 3 {
		return 0
	}

	at := func(x, yy int) float64 { return float64(y[yy*width+x]) }

	var values []float64
	for row := 1; row < height-1; row++ {
		for col := 1; col < width-1; col++ {
			lap := 4*at(col, row) - at(col-1, row) - at(col+1, row) - at(col, row-1) - at(col, row+1)
			values = append(values, lap)
		}
	}
	if len(values) == 0 {
		return 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sqDiff float64
	for _, v := range values {
		d := v - mean
		sqDiff += d * d
	}
	return sqDiff / float64(len(values))
}
