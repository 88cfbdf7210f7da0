// Package dataset reads Earth Engine TFRecord exports into patches for
// training-data preparation, counting and inspection.
package dataset

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/servir/aces/dataset/tfrecord"
)

// ParseConfig describes how examples in a shard are laid out.
type ParseConfig struct {
	// PatchSize is the square patch side length in pixels. A patch size of
	// zero or one selects scalar (pixel-wise) parsing.
	PatchSize int

	// Features are the input band names, in channel order.
	Features []string

	// Labels are the label band names. The first label is the class band.
	Labels []string
}

// Validate checks the parse configuration.
func (c ParseConfig) Validate() error {
	if len(c.Features) == 0 {
		return fmt.Errorf("at least one feature band is required")
	}
	if len(c.Labels) == 0 {
		return fmt.Errorf("at least one label band is required")
	}
	if c.PatchSize < 0 {
		return fmt.Errorf("patch size must not be negative, got %d", c.PatchSize)
	}
	return nil
}

// pixels returns the expected value count per band.
func (c ParseConfig) pixels() int {
	if c.PatchSize <= 1 {
		return 1
	}
	return c.PatchSize * c.PatchSize
}

// Patch is a parsed example: named input bands plus the class label band.
type Patch struct {
	// Size is the side length in pixels (1 for scalar samples).
	Size int

	// Names are the band names in channel order.
	Names []string

	// Bands holds one flattened size×size slice per name.
	Bands [][]float32

	// LabelName is the class band name the patch was parsed with.
	LabelName string

	// Label is the flattened class band.
	Label []float32
}

// Band returns the named band, or nil if absent.
func (p *Patch) Band(name string) []float32 {
	for i, n := range p.Names {
		if n == name {
			return p.Bands[i]
		}
	}
	return nil
}

// ParsePatch decodes a serialized example into a patch according to the
// parse configuration. Every configured feature and label must be present
// as a float list of the expected length.
func ParsePatch(data []byte, cfg ParseConfig) (*Patch, error) {
	example, err := tfrecord.ParseExample(data)
	if err != nil {
		return nil, fmt.Errorf("parse example: %w", err)
	}

	pixels := cfg.pixels()
	patch := &Patch{
		Size:  sizeFromPixels(pixels),
		Names: append([]string(nil), cfg.Features...),
		Bands: make([][]float32, 0, len(cfg.Features)),
	}

	for _, name := range cfg.Features {
		band, err := bandValues(example, name, pixels)
		if err != nil {
			return nil, err
		}
		patch.Bands = append(patch.Bands, band)
	}

	label, err := bandValues(example, cfg.Labels[0], pixels)
	if err != nil {
		return nil, err
	}
	patch.LabelName = cfg.Labels[0]
	patch.Label = label

	return patch, nil
}

func bandValues(example tfrecord.Example, name string, pixels int) ([]float32, error) {
	feature, ok := example[name]
	if !ok {
		return nil, fmt.Errorf("example is missing band %q (has %v)", name, example.Keys())
	}
	if feature.Floats == nil {
		return nil, fmt.Errorf("band %q is not a float list", name)
	}
	if len(feature.Floats) != pixels {
		return nil, fmt.Errorf("band %q has %d values, expected %d", name, len(feature.Floats), pixels)
	}
	return feature.Floats, nil
}

func sizeFromPixels(pixels int) int {
	if pixels == 1 {
		return 1
	}
	size := 1
	for size*size < pixels {
		size++
	}
	return size
}

// Marshal encodes the patch back into a serialized example, including the
// label band under the name it was parsed with.
func (p *Patch) Marshal() []byte {
	example := make(tfrecord.Example, len(p.Names)+1)
	for i, name := range p.Names {
		example[name] = tfrecord.Feature{Floats: p.Bands[i]}
	}
	if p.Label != nil {
		name := p.LabelName
		if name == "" {
			name = "label"
		}
		example[name] = tfrecord.Feature{Floats: p.Label}
	}
	return example.Marshal()
}

// OneHot expands a class band into depth per-class bands. Class values are
// truncated to int before encoding; out-of-range classes produce all zeros.
func OneHot(label []float32, depth int) [][]float32 {
	out := make([][]float32, depth)
	for i := range out {
		out[i] = make([]float32, len(label))
	}
	for i, v := range label {
		class := int(v)
		if class >= 0 && class < depth {
			out[class][i] = 1
		}
	}
	return out
}

// ListShards expands a glob pattern (with ** support) to shard paths in
// sorted order.
func ListShards(pattern string) ([]string, error) {
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", pattern, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no shards match pattern: %s", pattern)
	}
	sort.Strings(matches)
	return matches, nil
}

// CountRecords counts records in one shard file.
func CountRecords(path string) (int, error) {
	r, err := tfrecord.Open(path)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	count := 0
	for {
		if _, err := r.Next(); err != nil {
			if errors.Is(err, io.EOF) {
				return count, nil
			}
			return count, fmt.Errorf("%s: %w", path, err)
		}
		count++
	}
}

// Count counts records across all shards matching the pattern.
func Count(pattern string) (int, error) {
	shards, err := ListShards(pattern)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, shard := range shards {
		n, err := CountRecords(shard)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// SplitCounts holds the record counts of the three dataset splits.
type SplitCounts struct {
	Training   int `json:"training"`
	Testing    int `json:"testing"`
	Validation int `json:"validation"`
}

// CountSplits counts training, testing and validation records from their
// shard patterns.
func CountSplits(trainingPattern, testingPattern, validationPattern string) (SplitCounts, error) {
	var counts SplitCounts
	var err error

	if counts.Training, err = Count(trainingPattern); err != nil {
		return counts, fmt.Errorf("count training records: %w", err)
	}
	if counts.Testing, err = Count(testingPattern); err != nil {
		return counts, fmt.Errorf("count testing records: %w", err)
	}
	if counts.Validation, err = Count(validationPattern); err != nil {
		return counts, fmt.Errorf("count validation records: %w", err)
	}
	return counts, nil
}

// EachPatch reads every shard matching the pattern and calls fn for each
// parsed patch. Iteration stops on the first error from fn.
func EachPatch(pattern string, cfg ParseConfig, fn func(shard string, index int, p *Patch) error) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	shards, err := ListShards(pattern)
	if err != nil {
		return err
	}

	for _, shard := range shards {
		if err := eachPatchInShard(shard, cfg, fn); err != nil {
			return err
		}
	}
	return nil
}

func eachPatchInShard(shard string, cfg ParseConfig, fn func(shard string, index int, p *Patch) error) error {
	r, err := tfrecord.Open(shard)
	if err != nil {
		return err
	}
	defer r.Close()

	for index := 0; ; index++ {
		data, err := r.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("%s record %d: %w", shard, index, err)
		}

		patch, err := ParsePatch(data, cfg)
		if err != nil {
			return fmt.Errorf("%s record %d: %w", shard, index, err)
		}
		if err := fn(shard, index, patch); err != nil {
			return err
		}
	}
}
