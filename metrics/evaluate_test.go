package metrics

import (
	"path/filepath"
	"testing"

	"github.com/servir/aces/dataset/tfrecord"
)

// writeLabelShard writes one TFRecord shard holding class bands only.
func writeLabelShard(t *testing.T, path, band string, patches [][]float32) {
	t.Helper()
	w, err := tfrecord.Create(path)
	if err != nil {
		t.Fatalf("create shard: %v", err)
	}
	for _, labels := range patches {
		example := tfrecord.Example{
			band: {Floats: labels},
		}
		if err := w.Write(example.Marshal()); err != nil {
			t.Fatalf("write record: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close shard: %v", err)
	}
}

func TestEvaluateShards(t *testing.T) {
	dir := t.TempDir()
	truthPath := filepath.Join(dir, "truth.tfrecord.gz")
	predPath := filepath.Join(dir, "pred.tfrecord.gz")

	// 2x2 patches, two classes. Second patch has one misclassified pixel.
	writeLabelShard(t, truthPath, "class", [][]float32{
		{0, 0, 1, 1},
		{1, 1, 0, 0},
	})
	writeLabelShard(t, predPath, "class", [][]float32{
		{0, 0, 1, 1},
		{1, 0, 0, 0},
	})

	result, err := EvaluateShards(truthPath, predPath, EvalOptions{
		Classes:   2,
		PatchSize: 2,
		LabelBand: "class",
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	if result.Patches != 2 {
		t.Errorf("expected 2 patches, got %d", result.Patches)
	}
	if result.Summary.Total != 8 {
		t.Errorf("expected 8 pixels, got %d", result.Summary.Total)
	}
	if got := result.Summary.Accuracy; got != 7.0/8.0 {
		t.Errorf("accuracy: got %v, want %v", got, 7.0/8.0)
	}

	// Class 1: 3 TP, 0 FP, 1 FN.
	cs := result.Summary.PerClass[1]
	if cs.TP != 3 || cs.FP != 0 || cs.FN != 1 {
		t.Errorf("unexpected class 1 counts: %+v", cs)
	}
	if cs.Precision != 1.0 || cs.Recall != 0.75 {
		t.Errorf("unexpected class 1 scores: %+v", cs)
	}
}

func TestEvaluateShardsPatchCountMismatch(t *testing.T) {
	dir := t.TempDir()
	truthPath := filepath.Join(dir, "truth.tfrecord.gz")
	predPath := filepath.Join(dir, "pred.tfrecord.gz")

	writeLabelShard(t, truthPath, "class", [][]float32{{0}, {1}})
	writeLabelShard(t, predPath, "class", [][]float32{{0}})

	_, err := EvaluateShards(truthPath, predPath, EvalOptions{
		Classes:   2,
		LabelBand: "class",
	})
	if err == nil {
		t.Fatal("expected error for mismatched patch counts")
	}
}

func TestEvaluateShardsOptions(t *testing.T) {
	if _, err := EvaluateShards("a", "b", EvalOptions{Classes: 1, LabelBand: "class"}); err == nil {
		t.Error("expected error for a single class")
	}
	if _, err := EvaluateShards("a", "b", EvalOptions{Classes: 2}); err == nil {
		t.Error("expected error for missing label band")
	}
}
