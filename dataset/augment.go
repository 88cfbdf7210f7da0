package dataset

import "math/rand"

// Transform is one of the random orientation transforms applied to training
// patches and their labels.
type Transform uint8

// Orientation transforms. Identity leaves the patch untouched.
const (
	Identity Transform = iota
	FlipLeftRight
	FlipUpDown
	FlipBoth
	Rotate90
	Rotate180
	Rotate270
	Rotate180FlipLR
)

// String returns the transform name.
func (t Transform) String() string {
	switch t {
	case FlipLeftRight:
		return "flip_left_right"
	case FlipUpDown:
		return "flip_up_down"
	case FlipBoth:
		return "flip_both"
	case Rotate90:
		return "rotate_90"
	case Rotate180:
		return "rotate_180"
	case Rotate270:
		return "rotate_270"
	case Rotate180FlipLR:
		return "rotate_180_flip_lr"
	default:
		return "identity"
	}
}

// PickTransform draws a transform with the training-time distribution: each
// non-identity transform has probability 0.10, identity takes the rest.
func PickTransform(rng *rand.Rand) Transform {
	x := rng.Float64()
	switch {
	case x < 0.10:
		return FlipLeftRight
	case x < 0.20:
		return FlipUpDown
	case x < 0.30:
		return FlipBoth
	case x < 0.40:
		return Rotate90
	case x < 0.50:
		return Rotate180
	case x < 0.60:
		return Rotate270
	case x < 0.70:
		return Rotate180FlipLR
	default:
		return Identity
	}
}

// ApplyBand applies the transform to one square band of side size pixels,
// returning a new slice. Returns the input unchanged for Identity.
func (t Transform) ApplyBand(band []float32, size int) []float32 {
	switch t {
	case FlipLeftRight:
		return flipLR(band, size)
	case FlipUpDown:
		return flipUD(band, size)
	case FlipBoth:
		return flipLR(flipUD(band, size), size)
	case Rotate90:
		return rot90(band, size, 1)
	case Rotate180:
		return rot90(band, size, 2)
	case Rotate270:
		return rot90(band, size, 3)
	case Rotate180FlipLR:
		return flipLR(rot90(band, size, 2), size)
	default:
		return band
	}
}

// Apply applies the transform to every band of the patch and to its label,
// keeping the two aligned.
func (t Transform) Apply(p *Patch) {
	if t == Identity {
		return
	}
	for i := range p.Bands {
		p.Bands[i] = t.ApplyBand(p.Bands[i], p.Size)
	}
	if p.Label != nil {
		p.Label = t.ApplyBand(p.Label, p.Size)
	}
}

func flipLR(band []float32, size int) []float32 {
	out := make([]float32, len(band))
	for row := 0; row < size; row++ {
		for col := 0; col < size; col++ {
			out[row*size+col] = band[row*size+(size-1-col)]
		}
	}
	return out
}

func flipUD(band []float32, size int) []float32 {
	out := make([]float32, len(band))
	for row := 0; row < size; row++ {
		copy(out[row*size:(row+1)*size], band[(size-1-row)*size:(size-row)*size])
	}
	return out
}

// rot90 rotates the band counter-clockwise k quarter turns.
func rot90(band []float32, size, k int) []float32 {
	out := band
	for i := 0; i < k%4; i++ {
		rotated := make([]float32, len(out))
		for row := 0; row < size; row++ {
			for col := 0; col < size; col++ {
				rotated[(size-1-col)*size+row] = out[row*size+col]
			}
		}
		out = rotated
	}
	return out
}
