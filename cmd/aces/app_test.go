package main

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/servir/aces/config"
	"github.com/servir/aces/dataset"
	"github.com/servir/aces/metrics"
	"github.com/servir/aces/storage"
)

func TestParseModelKind(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    dataset.ModelKind
		wantErr bool
	}{
		{name: "cnn", input: "cnn", want: dataset.ModelCNN},
		{name: "unet alias", input: "unet", want: dataset.ModelCNN},
		{name: "dnn", input: "dnn", want: dataset.ModelDNN},
		{name: "case insensitive", input: "CNN", want: dataset.ModelCNN},
		{name: "unknown", input: "transformer", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseModelKind(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplitForPath(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.Data.TrainingDir = filepath.Join(tmpDir, "training")
	cfg.Data.TestingDir = filepath.Join(tmpDir, "testing")
	cfg.Data.ValidationDir = filepath.Join(tmpDir, "validation")

	app := NewApp(cfg, slog.Default())

	tests := []struct {
		name string
		path string
		want storage.Split
	}{
		{
			name: "training shard",
			path: filepath.Join(tmpDir, "training", "shard-00000.tfrecord.gz"),
			want: storage.SplitTraining,
		},
		{
			name: "testing shard in subdirectory",
			path: filepath.Join(tmpDir, "testing", "batch1", "shard.tfrecord"),
			want: storage.SplitTesting,
		},
		{
			name: "validation shard",
			path: filepath.Join(tmpDir, "validation", "shard.tfrecord.gz"),
			want: storage.SplitValidation,
		},
		{
			name: "outside configured splits",
			path: filepath.Join(tmpDir, "misc", "shard.tfrecord.gz"),
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, app.splitForPath(tt.path))
		})
	}
}

func TestEvaluationRecord(t *testing.T) {
	result := &metrics.EvalResult{
		Patches: 4,
		Summary: metrics.Summary{
			Classes:  2,
			Total:    64,
			Accuracy: 0.875,
			PerClass: []metrics.ClassScores{
				{Class: 0, Precision: 0.9, Recall: 0.8, F1: 0.847, IoU: 0.735},
				{Class: 1, Precision: 0.7, Recall: 0.85, F1: 0.767, IoU: 0.622},
			},
		},
	}

	record := evaluationRecord("truth/*.gz", "pred/*.gz", result)

	assert.Equal(t, "truth/*.gz", record.TruthPattern)
	assert.Equal(t, "pred/*.gz", record.PredPattern)
	assert.Equal(t, 2, record.Classes)
	assert.Equal(t, int64(64), record.Pixels)
	assert.Equal(t, 0.875, record.Accuracy)
	assert.Equal(t, 0.9, record.Scores["precision.0"])
	assert.Equal(t, 0.85, record.Scores["recall.1"])
	assert.Equal(t, 0.767, record.Scores["f1.1"])
	assert.Equal(t, 0.735, record.Scores["iou.0"])
}

func TestStoreEvaluationRequiresURL(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.NATS.URL = ""

	_, err := storeEvaluation(t.Context(), cfg, "t", "p", &metrics.EvalResult{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nats.url")
}

func TestNewAppValidatorConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Paper.RequireORCID = true
	cfg.Paper.DTDVersion = "1.3"

	app := NewApp(cfg, slog.Default())

	require.NotNil(t, app.validator)
	require.NotNil(t, app.metrics)
	assert.Nil(t, app.natsConn)
}
