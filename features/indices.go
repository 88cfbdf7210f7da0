// Package features derives spectral index bands from optical imagery patches.
// All functions operate element-wise on flattened bands of equal length and
// return newly allocated slices.
package features

import "math"

// NormalizedDifference computes (a-b)/(a+b) per pixel.
// Where the ratio is not finite (a+b == 0) it falls back to the plain
// difference a-b, so fully masked pixels stay bounded.
func NormalizedDifference(a, b []float32) []float32 {
	out := make([]float32, len(a))
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		v := (x - y) / (x + y)
		if !isFinite(v) {
			v = x - y
		}
		out[i] = float32(v)
	}
	return out
}

// EVI computes the enhanced vegetation index 2.5*((nir-red)/(nir+6*red-7.5*blue+1)).
func EVI(nir, red, blue []float32) []float32 {
	out := make([]float32, len(nir))
	for i := range nir {
		n, r, b := float64(nir[i]), float64(red[i]), float64(blue[i])
		out[i] = float32(2.5 * ((n - r) / (n + 6*r - 7.5*b + 1)))
	}
	return out
}

// SAVI computes the soil-adjusted vegetation index with L=0.5.
func SAVI(nir, red []float32) []float32 {
	out := make([]float32, len(nir))
	for i := range nir {
		n, r := float64(nir[i]), float64(red[i])
		out[i] = float32(((n - r) / (n + r + 0.5)) * 1.5)
	}
	return out
}

// MSAVI computes the modified soil-adjusted vegetation index.
func MSAVI(nir, red []float32) []float32 {
	out := make([]float32, len(nir))
	for i := range nir {
		n, r := float64(nir[i]), float64(red[i])
		out[i] = float32(((2*n + 1) - math.Sqrt((2*n+1)*(2*n+1)-8*(n-r))) / 2)
	}
	return out
}

// MTVI2 computes the modified triangular vegetation index 2.
func MTVI2(nir, red, green []float32) []float32 {
	out := make([]float32, len(nir))
	for i := range nir {
		n, r, g := float64(nir[i]), float64(red[i]), float64(green[i])
		num := 1.5 * (1.2*(n-g) - 2.5*(r-g))
		den := math.Sqrt((2*n+1)*(2*n+1) - (6*n - 5*math.Sqrt(r)) - 0.5)
		out[i] = float32(num / den)
	}
	return out
}

// VARI computes the visible atmospherically resistant index (g-r)/(g+r-b).
func VARI(green, red, blue []float32) []float32 {
	out := make([]float32, len(green))
	for i := range green {
		g, r, b := float64(green[i]), float64(red[i]), float64(blue[i])
		out[i] = float32((g - r) / (g + r - b))
	}
	return out
}

// TGI computes the triangular greenness index ((120*(r-b)) - (190*(r-g)))/2.
func TGI(green, red, blue []float32) []float32 {
	out := make([]float32, len(green))
	for i := range green {
		g, r, b := float64(green[i]), float64(red[i]), float64(blue[i])
		out[i] = float32(((120 * (r - b)) - (190 * (r - g))) / 2)
	}
	return out
}

// Ratio computes a/b per pixel, falling back to a where b is zero.
func Ratio(a, b []float32) []float32 {
	out := make([]float32, len(a))
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		v := x / y
		if !isFinite(v) {
			v = x
		}
		out[i] = float32(v)
	}
	return out
}

// NVI computes a/(a+b) per pixel, falling back to a where a+b is zero.
func NVI(a, b []float32) []float32 {
	out := make([]float32, len(a))
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		v := x / (x + y)
		if !isFinite(v) {
			v = x
		}
		out[i] = float32(v)
	}
	return out
}

// Diff computes a-b per pixel.
func Diff(a, b []float32) []float32 {
	out := make([]float32, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
