package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/servir/aces/config"
)

func configCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage aces configuration",
	}
	cmd.AddCommand(configInitCmd(), configShowCmd(flags))
	return cmd
}

func configInitCmd() *cobra.Command {
	var project bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if project {
				if _, err := os.Stat(config.ProjectConfigFile); err == nil {
					return fmt.Errorf("%s already exists", config.ProjectConfigFile)
				}
				cfg := config.DefaultConfig()
				if err := cfg.SaveToFile(config.ProjectConfigFile); err != nil {
					return err
				}
				fmt.Printf("wrote %s\n", config.ProjectConfigFile)
				return nil
			}

			loader := config.NewLoader(slog.Default())
			if err := loader.EnsureUserConfig(); err != nil {
				return err
			}
			fmt.Println("user config ready")
			return nil
		},
	}

	cmd.Flags().BoolVar(&project, "project", false, "Write aces.yaml in the current directory instead of the user config")

	return cmd
}

func configShowCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			fmt.Print(string(out))
			return nil
		},
	}
}
