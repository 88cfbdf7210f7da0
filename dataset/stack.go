package dataset

import (
	"fmt"
	"math/rand"

	"github.com/servir/aces/dataset/tfrecord"
	"github.com/servir/aces/features"
)

// ModelKind selects the feature layout to derive.
type ModelKind string

// Model kinds understood by Stack.
const (
	ModelCNN ModelKind = "cnn"
	ModelDNN ModelKind = "dnn"
)

// StackOptions configures a Stack run.
type StackOptions struct {
	// Parse describes the input shard layout. It must name exactly the
	// eight raw bands the stackers consume, in channel order.
	Parse ParseConfig

	// Model selects the derived layout (cnn or dnn).
	Model ModelKind

	// Augment applies a random orientation transform to each patch before
	// stacking, using Rand.
	Augment bool

	// Rand is the randomness source for augmentation. Required when
	// Augment is set.
	Rand *rand.Rand
}

// StackResult reports what a Stack run produced.
type StackResult struct {
	Patches int    `json:"patches"`
	Bands   int    `json:"bands"`
	Output  string `json:"output"`
}

// Stack reads raw patches matching pattern, derives the spectral-index
// feature stack for the selected model kind, and writes the derived patches
// plus labels to a new shard at outPath.
func Stack(pattern, outPath string, opts StackOptions) (*StackResult, error) {
	if len(opts.Parse.Features) != features.NumInputBands {
		return nil, fmt.Errorf("stacking requires %d input bands, config has %d",
			features.NumInputBands, len(opts.Parse.Features))
	}

	var names []string
	var derive func([][]float32) ([][]float32, error)
	switch opts.Model {
	case ModelCNN:
		names, derive = features.CNNBandNames, features.StackForCNN
	case ModelDNN:
		names, derive = features.DNNBandNames, features.StackForDNN
	default:
		return nil, fmt.Errorf("unknown model kind: %q", opts.Model)
	}

	if opts.Augment && opts.Rand == nil {
		return nil, fmt.Errorf("augmentation requires a randomness source")
	}

	w, err := tfrecord.Create(outPath)
	if err != nil {
		return nil, err
	}

	result := &StackResult{Bands: len(names), Output: outPath}
	err = EachPatch(pattern, opts.Parse, func(shard string, index int, p *Patch) error {
		if opts.Augment {
			PickTransform(opts.Rand).Apply(p)
		}

		derived, err := derive(p.Bands)
		if err != nil {
			return fmt.Errorf("%s record %d: %w", shard, index, err)
		}

		out := &Patch{
			Size:      p.Size,
			Names:     names,
			Bands:     derived,
			LabelName: p.LabelName,
			Label:     p.Label,
		}
		if err := w.Write(out.Marshal()); err != nil {
			return err
		}
		result.Patches++
		return nil
	})
	if err != nil {
		w.Close()
		return nil, err
	}

	if err := w.Close(); err != nil {
		return nil, err
	}
	return result, nil
}
