package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/philipparndt/gosection/internal/config"
	"github.com/philipparndt/gosection/internal/logging"
	"github.com/philipparndt/gosection/version"
)

var (
	configPath string
	envFiles   []string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "gosection",
	Short: "Cutting planes and sections for STL and OpenSCAD models",
	Long: `gosection manages cutting sections of 3D models. It generates plane
reference quads, cuts models, runs scripted cutting sessions and keeps a
session in sync while the model file changes.`,
	Version:       version.GetFullVersion(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configPath, envFiles...)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevel
		}

		level := logging.ParseLevel(cfg.LogLevel)
		logger := logging.NewLogger(os.Stderr, level)
		ctx := logging.WithLogger(cmd.Context(), logger)
		cmd.SetContext(withConfig(ctx, cfg))
		logger.Debug("logger initialized", "level", level.String(), "config", configPath)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to gosection.yaml configuration file")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "Read GOSECTION_* variables from .env files")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
