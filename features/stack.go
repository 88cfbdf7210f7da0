package features

import "fmt"

// Input band order expected by the stacking functions: red, green, blue and
// near-infrared for the before-season composite, then the same four bands for
// the during-season composite.
const (
	idxRedBefore = iota
	idxGreenBefore
	idxBlueBefore
	idxNirBefore
	idxRedDuring
	idxGreenDuring
	idxBlueDuring
	idxNirDuring

	// NumInputBands is the number of raw input bands the stackers consume.
	NumInputBands = 8
)

// CNNBandNames lists the derived band names produced by StackForCNN, in order.
var CNNBandNames = []string{
	"ndvi_before", "ndvi_during",
	"evi_before", "evi_during",
	"ndwi_before", "ndwi_during",
	"savi_before", "savi_during",
	"msavi_before", "msavi_during",
	"mtvi2_before", "mtvi2_during",
	"vari_before", "vari_during",
	"tgi_before", "tgi_during",
	"red_diff", "green_diff", "blue_diff", "nir_diff",
}

// DNNBandNames lists the derived band names produced by StackForDNN, in order.
var DNNBandNames = CNNBandNames[:16]

// StackForCNN derives the 20-band input feature stack used by the patch-based
// models: eight vegetation indices for both seasonal composites plus the four
// raw band differences.
func StackForCNN(bands [][]float32) ([][]float32, error) {
	if err := checkInput(bands); err != nil {
		return nil, err
	}
	out := stackIndices(bands)
	out = append(out,
		Diff(bands[idxRedBefore], bands[idxRedDuring]),
		Diff(bands[idxGreenBefore], bands[idxGreenDuring]),
		Diff(bands[idxBlueBefore], bands[idxBlueDuring]),
		Diff(bands[idxNirBefore], bands[idxNirDuring]),
	)
	return out, nil
}

// StackForDNN derives the 16-band feature stack used by the pixel-wise models.
// It is the CNN stack without the raw band differences.
func StackForDNN(bands [][]float32) ([][]float32, error) {
	if err := checkInput(bands); err != nil {
		return nil, err
	}
	return stackIndices(bands), nil
}

func stackIndices(bands [][]float32) [][]float32 {
	rb, gb, bb, nb := bands[idxRedBefore], bands[idxGreenBefore], bands[idxBlueBefore], bands[idxNirBefore]
	rd, gd, bd, nd := bands[idxRedDuring], bands[idxGreenDuring], bands[idxBlueDuring], bands[idxNirDuring]

	return [][]float32{
		NormalizedDifference(nb, rb), NormalizedDifference(nd, rd),
		EVI(nb, rb, bb), EVI(nd, rd, bd),
		NormalizedDifference(gb, nb), NormalizedDifference(gd, nd),
		SAVI(nb, rb), SAVI(nd, rd),
		MSAVI(nb, rb), MSAVI(nd, rd),
		MTVI2(nb, rb, gb), MTVI2(nd, rd, gd),
		VARI(gb, rb, bb), VARI(gd, rd, bd),
		TGI(gb, rb, bb), TGI(gd, rd, bd),
	}
}

func checkInput(bands [][]float32) error {
	if len(bands) != NumInputBands {
		return fmt.Errorf("expected %d input bands, got %d", NumInputBands, len(bands))
	}
	n := len(bands[0])
	for i, b := range bands {
		if len(b) != n {
			return fmt.Errorf("band %d has %d pixels, band 0 has %d", i, len(b), n)
		}
	}
	return nil
}
