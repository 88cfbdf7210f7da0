package main

import (
	"fmt"
	"math/rand"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/servir/aces/dataset"
)

func datasetCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dataset",
		Short: "TFRecord shard inspection and preparation",
	}
	cmd.AddCommand(
		datasetInspectCmd(),
		datasetCountCmd(flags),
		datasetStackCmd(flags),
		datasetFetchCmd(flags),
	)
	return cmd
}

func datasetInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <pattern>",
		Short: "Report record counts and band structure for matched shards",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			shards, err := dataset.ListShards(args[0])
			if err != nil {
				return err
			}
			if len(shards) == 0 {
				return fmt.Errorf("no shards match %q", args[0])
			}

			total := 0
			for _, shard := range shards {
				info, err := dataset.Inspect(shard)
				if err != nil {
					return fmt.Errorf("inspect %s: %w", shard, err)
				}

				fmt.Printf("%s\n", shard)
				fmt.Printf("  records: %d\n", info.Records)
				for _, band := range info.Bands {
					fmt.Printf("  band %-24s %6d values  min %.4f  max %.4f\n",
						band.Name, band.Values, band.Min, band.Max)
				}
				total += info.Records
			}

			if len(shards) > 1 {
				fmt.Printf("total: %d records in %d shards\n", total, len(shards))
			}
			return nil
		},
	}
}

func datasetCountCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Count records in the configured training, testing, and validation splits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}

			data := &cfg.Data
			counts, err := dataset.CountSplits(
				data.SplitPattern(data.TrainingDir),
				data.SplitPattern(data.TestingDir),
				data.SplitPattern(data.ValidationDir),
			)
			if err != nil {
				return err
			}

			fmt.Printf("training:   %d\n", counts.Training)
			fmt.Printf("testing:    %d\n", counts.Testing)
			fmt.Printf("validation: %d\n", counts.Validation)
			return nil
		},
	}
}

func datasetStackCmd(flags *rootFlags) *cobra.Command {
	var (
		pattern string
		outPath string
		model   string
		augment bool
		seed    int64
	)

	cmd := &cobra.Command{
		Use:   "stack",
		Short: "Derive spectral-index bands from input patches and write a stacked shard",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}

			kind, err := parseModelKind(model)
			if err != nil {
				return err
			}

			if pattern == "" {
				pattern = cfg.Data.SplitPattern(cfg.Data.TrainingDir)
			}
			if outPath == "" {
				name := "stacked.tfrecord"
				if cfg.Data.Compress {
					name += ".gz"
				}
				outPath = filepath.Join(cfg.Data.OutputDir, name)
			}

			opts := dataset.StackOptions{
				Parse: dataset.ParseConfig{
					PatchSize: cfg.Data.PatchSize,
					Features:  cfg.Data.Features,
					Labels:    cfg.Data.Labels,
				},
				Model: kind,
			}
			if augment {
				if seed == 0 {
					seed = time.Now().UnixNano()
				}
				opts.Augment = true
				opts.Rand = rand.New(rand.NewSource(seed))
			}

			result, err := dataset.Stack(pattern, outPath, opts)
			if err != nil {
				return err
			}

			fmt.Printf("stacked %d patches into %s (%d bands)\n",
				result.Patches, result.Output, result.Bands)
			return nil
		},
	}

	cmd.Flags().StringVar(&pattern, "pattern", "", "Input shard glob pattern (default: configured training split)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output shard path (default: <output_dir>/stacked.tfrecord.gz)")
	cmd.Flags().StringVarP(&model, "model", "m", "cnn", "Band layout (cnn or dnn)")
	cmd.Flags().BoolVar(&augment, "augment", false, "Apply a random flip/rotation to each patch")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Augmentation seed (0 = time-based)")

	return cmd
}

func parseModelKind(name string) (dataset.ModelKind, error) {
	switch strings.ToLower(name) {
	case "cnn", "unet":
		return dataset.ModelCNN, nil
	case "dnn":
		return dataset.ModelDNN, nil
	default:
		return "", fmt.Errorf("unknown model kind %q (supported: cnn, dnn)", name)
	}
}

func datasetFetchCmd(flags *rootFlags) *cobra.Command {
	var destDir string

	cmd := &cobra.Command{
		Use:   "fetch <url> [url ...]",
		Short: "Download exported TFRecord shards into the data directory",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if destDir == "" {
				cfg, err := loadConfig(flags)
				if err != nil {
					return err
				}
				destDir = cfg.Data.OutputDir
			}

			results, err := dataset.Fetch(cmd.Context(), destDir, args)
			for _, r := range results {
				if r.Err != nil {
					fmt.Printf("failed  %s: %v\n", r.URL, r.Err)
				} else {
					fmt.Printf("fetched %s -> %s (%d bytes)\n", r.URL, r.Path, r.Size)
				}
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&destDir, "dest", "d", "", "Destination directory (default: configured output dir)")

	return cmd
}
