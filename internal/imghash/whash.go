package imghash

import (
	"image"
	"image/color"
	"sort"

	"github.com/nfnt/resize"
)

// Wavelet hash parameters. The image is reduced to a waveletScale square,
// then three Haar decomposition levels leave a hashSize x hashSize
// low-frequency band whose coefficients become the 64 hash bits.
const (
	waveletScale = 64
	hashSize     = 8
	haarLevels   = 3
)

// waveletHash computes an 8x8 Haar wavelet hash of the image.
//
// The construction follows the usual recipe: scale down, convert to
// grayscale, keep only the low-low band of a multi-level Haar transform,
// and threshold each coefficient against the band median. Visually
// similar images produce bit strings with a low Hamming distance.
func waveletHash(img image.Image) uint64 {
	scaled := resize.Resize(waveletScale, waveletScale, img, resize.Bilinear)

	// Grayscale intensity matrix.
	pixels := make([][]float64, waveletScale)
	for y := range waveletScale {
		pixels[y] = make([]float64, waveletScale)
		for x := range waveletScale {
			gray := color.GrayModel.Convert(scaled.At(
				scaled.Bounds().Min.X+x,
				scaled.Bounds().Min.Y+y,
			))
			r, _, _, _ := gray.RGBA()
			pixels[y][x] = float64(r) / 0xffff
		}
	}

	// Haar low-low band: each level halves both dimensions by averaging
	// 2x2 blocks. Three levels take 64x64 down to 8x8.
	size := waveletScale
	for range haarLevels {
		half := size / 2
		next := make([][]float64, half)
		for y := range half {
			next[y] = make([]float64, half)
			for x := range half {
				next[y][x] = (pixels[2*y][2*x] + pixels[2*y][2*x+1] +
					pixels[2*y+1][2*x] + pixels[2*y+1][2*x+1]) / 4
			}
		}
		pixels = next
		size = half
	}

	// Threshold against the median so roughly half the bits are set
	// regardless of overall brightness.
	flat := make([]float64, 0, hashSize*hashSize)
	for y := range hashSize {
		flat = append(flat, pixels[y]...)
	}
	median := medianOf(flat)

	var bits uint64
	for y := range hashSize {
		for x := range hashSize {
			bits <<= 1
			if pixels[y][x] > median {
				bits |= 1
			}
		}
	}
	return bits
}

// medianOf returns the median of the values. The input slice is not modified.
func medianOf(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
