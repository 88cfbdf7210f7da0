package dataset

import (
	"fmt"
	"math/rand"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/servir/aces/dataset/tfrecord"
	"github.com/servir/aces/features"
)

// writeShard writes n synthetic patches with the given band names to path.
func writeShard(t *testing.T, path string, bands []string, patchSize, n int) {
	t.Helper()

	w, err := tfrecord.Create(path)
	if err != nil {
		t.Fatalf("create shard: %v", err)
	}

	pixels := patchSize * patchSize
	for i := 0; i < n; i++ {
		example := make(tfrecord.Example, len(bands))
		for bi, name := range bands {
			values := make([]float32, pixels)
			for p := range values {
				values[p] = float32(bi)*0.1 + float32(i)
			}
			example[name] = tfrecord.Feature{Floats: values}
		}
		if err := w.Write(example.Marshal()); err != nil {
			t.Fatalf("write example: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close shard: %v", err)
	}
}

var testBands = []string{
	"red_before", "green_before", "blue_before", "nir_before",
	"red_during", "green_during", "blue_during", "nir_during",
	"class",
}

func testParseConfig(patchSize int) ParseConfig {
	return ParseConfig{
		PatchSize: patchSize,
		Features:  testBands[:8],
		Labels:    testBands[8:],
	}
}

func TestParsePatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "train-00000.tfrecord.gz")
	writeShard(t, path, testBands, 4, 1)

	cfg := testParseConfig(4)
	var parsed *Patch
	err := EachPatch(filepath.Join(dir, "*.tfrecord.gz"), cfg, func(_ string, _ int, p *Patch) error {
		parsed = p
		return nil
	})
	if err != nil {
		t.Fatalf("each patch: %v", err)
	}

	if parsed.Size != 4 {
		t.Errorf("expected size 4, got %d", parsed.Size)
	}
	if len(parsed.Bands) != 8 {
		t.Errorf("expected 8 bands, got %d", len(parsed.Bands))
	}
	if len(parsed.Label) != 16 {
		t.Errorf("expected 16 label pixels, got %d", len(parsed.Label))
	}
	if band := parsed.Band("nir_before"); band == nil || band[0] != 0.3 {
		t.Errorf("unexpected nir_before band: %v", band)
	}
	if parsed.Band("missing") != nil {
		t.Error("expected nil for unknown band")
	}
}

func TestPatchMarshalKeepsLabelName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "train-00000.tfrecord.gz")
	writeShard(t, path, testBands, 2, 1)

	r, err := tfrecord.Open(path)
	if err != nil {
		t.Fatalf("open shard: %v", err)
	}
	defer r.Close()
	data, err := r.Next()
	if err != nil {
		t.Fatalf("read record: %v", err)
	}

	p, err := ParsePatch(data, testParseConfig(2))
	if err != nil {
		t.Fatalf("parse patch: %v", err)
	}
	if p.LabelName != "class" {
		t.Fatalf("expected label name %q, got %q", "class", p.LabelName)
	}

	example, err := tfrecord.ParseExample(p.Marshal())
	if err != nil {
		t.Fatalf("parse marshaled example: %v", err)
	}
	if _, ok := example["class"]; !ok {
		t.Errorf("expected marshaled label under %q, keys %v", "class", example.Keys())
	}
	if _, ok := example["label"]; ok {
		t.Error("marshaled example should not rename the label band")
	}

	// Round trip with the original parse config stays lossless.
	again, err := ParsePatch(p.Marshal(), testParseConfig(2))
	if err != nil {
		t.Fatalf("reparse marshaled patch: %v", err)
	}
	if !reflect.DeepEqual(again.Label, p.Label) {
		t.Error("label values changed across marshal round trip")
	}
}

func TestParsePatchMissingBand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.tfrecord")
	writeShard(t, path, testBands[:5], 2, 1)

	err := EachPatch(path, testParseConfig(2), func(_ string, _ int, _ *Patch) error { return nil })
	if err == nil {
		t.Fatal("expected error for shard missing configured bands")
	}
}

func TestParseConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ParseConfig
		wantErr bool
	}{
		{"valid", ParseConfig{PatchSize: 64, Features: []string{"red"}, Labels: []string{"class"}}, false},
		{"scalar", ParseConfig{Features: []string{"red"}, Labels: []string{"class"}}, false},
		{"no features", ParseConfig{Labels: []string{"class"}}, true},
		{"no labels", ParseConfig{Features: []string{"red"}}, true},
		{"negative size", ParseConfig{PatchSize: -1, Features: []string{"red"}, Labels: []string{"class"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("expected error=%v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestCountSplits(t *testing.T) {
	dir := t.TempDir()
	for split, n := range map[string]int{"training": 3, "testing": 2, "validation": 1} {
		for shard := 0; shard < 2; shard++ {
			path := filepath.Join(dir, fmt.Sprintf("%s-%05d.tfrecord", split, shard))
			writeShard(t, path, testBands, 2, n)
		}
	}

	counts, err := CountSplits(
		filepath.Join(dir, "training-*"),
		filepath.Join(dir, "testing-*"),
		filepath.Join(dir, "validation-*"),
	)
	if err != nil {
		t.Fatalf("count splits: %v", err)
	}

	want := SplitCounts{Training: 6, Testing: 4, Validation: 2}
	if counts != want {
		t.Errorf("expected %+v, got %+v", want, counts)
	}
}

func TestListShardsNoMatch(t *testing.T) {
	if _, err := ListShards(filepath.Join(t.TempDir(), "*.tfrecord")); err == nil {
		t.Fatal("expected error for empty pattern match")
	}
}

func TestOneHot(t *testing.T) {
	got := OneHot([]float32{0, 1, 2, 1}, 3)
	want := [][]float32{
		{1, 0, 0, 0},
		{0, 1, 0, 1},
		{0, 0, 1, 0},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	// Out-of-range classes encode to all zeros.
	got = OneHot([]float32{5}, 2)
	if got[0][0] != 0 || got[1][0] != 0 {
		t.Errorf("expected zeros for out-of-range class, got %v", got)
	}
}

func TestInspect(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shard.tfrecord.gz")
	writeShard(t, path, testBands, 2, 5)

	info, err := Inspect(path)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if info.Records != 5 {
		t.Errorf("expected 5 records, got %d", info.Records)
	}
	if len(info.Bands) != len(testBands) {
		t.Errorf("expected %d bands, got %d", len(testBands), len(info.Bands))
	}
	for _, band := range info.Bands {
		if band.Values != 4 {
			t.Errorf("band %s: expected 4 values, got %d", band.Name, band.Values)
		}
	}
}

func TestStack(t *testing.T) {
	dir := t.TempDir()
	writeShard(t, filepath.Join(dir, "raw.tfrecord.gz"), testBands, 4, 3)

	outPath := filepath.Join(dir, "stacked.tfrecord.gz")
	result, err := Stack(filepath.Join(dir, "raw.tfrecord.gz"), outPath, StackOptions{
		Parse: testParseConfig(4),
		Model: ModelCNN,
	})
	if err != nil {
		t.Fatalf("stack: %v", err)
	}
	if result.Patches != 3 {
		t.Errorf("expected 3 patches, got %d", result.Patches)
	}
	if result.Bands != len(features.CNNBandNames) {
		t.Errorf("expected %d bands, got %d", len(features.CNNBandNames), result.Bands)
	}

	// The stacked shard parses with the derived layout; the label band
	// keeps its configured name.
	stackedCfg := ParseConfig{PatchSize: 4, Features: features.CNNBandNames, Labels: []string{"class"}}
	n := 0
	err = EachPatch(outPath, stackedCfg, func(_ string, _ int, p *Patch) error {
		n++
		if len(p.Bands) != len(features.CNNBandNames) {
			t.Errorf("expected %d derived bands, got %d", len(features.CNNBandNames), len(p.Bands))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("read stacked shard: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 stacked patches, got %d", n)
	}
}

func TestStackAugmentRequiresRand(t *testing.T) {
	_, err := Stack("unused", "unused", StackOptions{
		Parse:   testParseConfig(4),
		Model:   ModelCNN,
		Augment: true,
	})
	if err == nil {
		t.Fatal("expected error when augmenting without a randomness source")
	}

	dir := t.TempDir()
	writeShard(t, filepath.Join(dir, "raw.tfrecord"), testBands, 2, 1)
	_, err = Stack(filepath.Join(dir, "raw.tfrecord"), filepath.Join(dir, "out.tfrecord"), StackOptions{
		Parse:   testParseConfig(2),
		Model:   ModelDNN,
		Augment: true,
		Rand:    rand.New(rand.NewSource(1)),
	})
	if err != nil {
		t.Fatalf("augmented stack: %v", err)
	}
}
