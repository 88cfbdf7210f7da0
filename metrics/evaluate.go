package metrics

import (
	"fmt"

	"github.com/servir/aces/dataset"
)

// EvalOptions configures a shard-driven evaluation.
type EvalOptions struct {
	// Classes is the segmentation class count.
	Classes int

	// PatchSize is the square patch side length, zero for scalar samples.
	PatchSize int

	// LabelBand is the class band name in the truth shards.
	LabelBand string

	// PredBand is the class band name in the prediction shards. Defaults
	// to LabelBand.
	PredBand string
}

// EvalResult pairs the confusion summary with the patch count evaluated.
type EvalResult struct {
	Patches int     `json:"patches"`
	Summary Summary `json:"summary"`
}

// EvaluateShards reads truth and prediction shard patterns in lockstep and
// accumulates a confusion matrix over their class bands. The patterns must
// yield the same number of patches in the same order.
func EvaluateShards(truthPattern, predPattern string, opts EvalOptions) (*EvalResult, error) {
	if opts.Classes < 2 {
		return nil, fmt.Errorf("at least 2 classes are required, got %d", opts.Classes)
	}
	if opts.LabelBand == "" {
		return nil, fmt.Errorf("label band name is required")
	}
	predBand := opts.PredBand
	if predBand == "" {
		predBand = opts.LabelBand
	}

	truth, err := collectLabels(truthPattern, opts.PatchSize, opts.LabelBand)
	if err != nil {
		return nil, fmt.Errorf("read truth shards: %w", err)
	}
	pred, err := collectLabels(predPattern, opts.PatchSize, predBand)
	if err != nil {
		return nil, fmt.Errorf("read prediction shards: %w", err)
	}
	if len(truth) != len(pred) {
		return nil, fmt.Errorf("truth has %d patches, prediction has %d", len(truth), len(pred))
	}

	confusion := NewConfusion(opts.Classes)
	for i := range truth {
		if err := confusion.AddLabels(truth[i], pred[i]); err != nil {
			return nil, fmt.Errorf("patch %d: %w", i, err)
		}
	}

	return &EvalResult{
		Patches: len(truth),
		Summary: confusion.Summarize(),
	}, nil
}

// collectLabels extracts the class band of every patch matched by the
// pattern, in shard-then-record order.
func collectLabels(pattern string, patchSize int, band string) ([][]float32, error) {
	cfg := dataset.ParseConfig{
		PatchSize: patchSize,
		Features:  []string{band},
		Labels:    []string{band},
	}

	var labels [][]float32
	err := dataset.EachPatch(pattern, cfg, func(shard string, index int, p *dataset.Patch) error {
		labels = append(labels, p.Label)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return labels, nil
}
