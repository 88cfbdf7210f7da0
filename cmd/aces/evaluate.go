package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/spf13/cobra"

	"github.com/servir/aces/config"
	"github.com/servir/aces/export"
	"github.com/servir/aces/metrics"
	"github.com/servir/aces/storage"
)

func evaluateCmd(flags *rootFlags) *cobra.Command {
	var (
		truthPattern string
		predPattern  string
		classes      int
		patchSize    int
		band         string
		formatName   string
		store        bool
	)

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score predicted shards against ground truth",
		Long: `Evaluate reads truth and prediction shards in lockstep, accumulates a
per-class confusion matrix over their label bands, and reports precision,
recall, F1, dice, and IoU for each class.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}

			format, err := export.ParseFormat(formatName)
			if err != nil {
				return err
			}

			if truthPattern == "" || predPattern == "" {
				return fmt.Errorf("both --truth and --pred patterns are required")
			}
			if classes == 0 {
				classes = cfg.Data.OutClassNum
			}
			if patchSize == 0 {
				patchSize = cfg.Data.PatchSize
			}
			if band == "" && len(cfg.Data.Labels) > 0 {
				band = cfg.Data.Labels[0]
			}

			result, err := metrics.EvaluateShards(truthPattern, predPattern, metrics.EvalOptions{
				Classes:   classes,
				PatchSize: patchSize,
				LabelBand: band,
			})
			if err != nil {
				return err
			}

			if store {
				id, err := storeEvaluation(cmd.Context(), cfg, truthPattern, predPattern, result)
				if err != nil {
					return err
				}
				fmt.Fprintf(os.Stderr, "stored evaluation %s\n", id)
			}

			return export.WriteEvalResult(os.Stdout, result, format)
		},
	}

	cmd.Flags().StringVar(&truthPattern, "truth", "", "Ground-truth shard glob pattern")
	cmd.Flags().StringVar(&predPattern, "pred", "", "Prediction shard glob pattern")
	cmd.Flags().IntVar(&classes, "classes", 0, "Class count (default: configured out_class_num)")
	cmd.Flags().IntVar(&patchSize, "patch-size", 0, "Patch side length (default: configured patch_size)")
	cmd.Flags().StringVar(&band, "band", "", "Label band name (default: first configured label)")
	cmd.Flags().StringVarP(&formatName, "format", "f", "markdown", "Output format (markdown, json, csv)")
	cmd.Flags().BoolVar(&store, "store", false, "Persist the evaluation record to the configured NATS store")

	return cmd
}

// storeEvaluation persists the evaluation record to the configured NATS
// KV store. An external NATS URL is required so the record outlives the
// command.
func storeEvaluation(ctx context.Context, cfg *config.Config, truth, pred string, result *metrics.EvalResult) (storage.EntityID, error) {
	if cfg.NATS.URL == "" {
		return storage.EntityID{}, fmt.Errorf("storing evaluations requires nats.url to be configured")
	}

	nc, err := nats.Connect(cfg.NATS.URL)
	if err != nil {
		return storage.EntityID{}, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATS.URL, err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return storage.EntityID{}, fmt.Errorf("failed to create JetStream context: %w", err)
	}
	st, err := storage.NewStore(ctx, js)
	if err != nil {
		return storage.EntityID{}, fmt.Errorf("failed to create entity store: %w", err)
	}

	return st.CreateEvaluation(ctx, evaluationRecord(truth, pred, result))
}

// evaluationRecord flattens an EvalResult into a stored Evaluation.
func evaluationRecord(truth, pred string, result *metrics.EvalResult) *storage.Evaluation {
	scores := make(map[string]float64, len(result.Summary.PerClass)*4)
	for _, c := range result.Summary.PerClass {
		k := strconv.Itoa(c.Class)
		scores["precision."+k] = c.Precision
		scores["recall."+k] = c.Recall
		scores["f1."+k] = c.F1
		scores["iou."+k] = c.IoU
	}

	return &storage.Evaluation{
		TruthPattern: truth,
		PredPattern:  pred,
		Classes:      result.Summary.Classes,
		Pixels:       result.Summary.Total,
		Accuracy:     result.Summary.Accuracy,
		Scores:       scores,
	}
}
