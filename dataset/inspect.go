package dataset

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/servir/aces/dataset/tfrecord"
)

// BandSummary describes one feature observed in a shard.
type BandSummary struct {
	Name   string  `json:"name"`
	Values int     `json:"values"`
	Min    float32 `json:"min"`
	Max    float32 `json:"max"`
}

// ShardInfo summarizes the contents of one shard file.
type ShardInfo struct {
	Path    string        `json:"path"`
	Records int           `json:"records"`
	Bands   []BandSummary `json:"bands,omitempty"`
}

// Inspect reads a shard and reports its record count and per-band value
// counts and ranges. Band statistics come from the first record; counts
// cover the whole file.
func Inspect(path string) (*ShardInfo, error) {
	r, err := tfrecord.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	info := &ShardInfo{Path: path}
	for {
		data, err := r.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return info, nil
			}
			return nil, fmt.Errorf("%s record %d: %w", path, info.Records, err)
		}

		if info.Records == 0 {
			example, err := tfrecord.ParseExample(data)
			if err != nil {
				return nil, fmt.Errorf("%s record 0: %w", path, err)
			}
			info.Bands = summarizeBands(example)
		}
		info.Records++
	}
}

func summarizeBands(example tfrecord.Example) []BandSummary {
	bands := make([]BandSummary, 0, len(example))
	for name, feature := range example {
		summary := BandSummary{Name: name}
		switch {
		case feature.Floats != nil:
			summary.Values = len(feature.Floats)
			summary.Min, summary.Max = floatRange(feature.Floats)
		case feature.Ints != nil:
			summary.Values = len(feature.Ints)
			summary.Min, summary.Max = intRange(feature.Ints)
		default:
			summary.Values = len(feature.Bytes)
		}
		bands = append(bands, summary)
	}
	sort.Slice(bands, func(i, j int) bool { return bands[i].Name < bands[j].Name })
	return bands
}

func floatRange(values []float32) (float32, float32) {
	lo, hi := float32(math.Inf(1)), float32(math.Inf(-1))
	for _, v := range values {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if len(values) == 0 {
		return 0, 0
	}
	return lo, hi
}

func intRange(values []int64) (float32, float32) {
	if len(values) == 0 {
		return 0, 0
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return float32(lo), float32(hi)
}
