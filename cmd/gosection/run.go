package main

import (
	"github.com/spf13/cobra"

	"github.com/philipparndt/gosection/internal/loader"
	"github.com/philipparndt/gosection/internal/logging"
	"github.com/philipparndt/gosection/internal/script"
)

var runPrint bool

var runCmd = &cobra.Command{
	Use:   "run [script]",
	Short: "Run a cutting session script",
	Long: `Run a YAML session script. Every step is applied to an in-memory viewer
through the cutting service and its mirror; expectations in the script are
checked against the mirrored state. The command fails at the first step
that does not behave as the script expects.`,
	Args: cobra.ExactArgs(1),
	RunE: runScript,
}

func init() {
	runCmd.Flags().BoolVar(&runPrint, "print", false, "Print the final cutting state")
	rootCmd.AddCommand(runCmd)
}

func runScript(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := configFrom(ctx)
	logger := logging.FromContext(ctx)

	sc, err := script.Load(args[0])
	if err != nil {
		return err
	}

	session, err := script.NewSession(cfg, logger)
	if err != nil {
		return err
	}
	session.Start(ctx)
	defer session.Close()

	runner := script.NewRunner(session, loader.New(cfg.OpenSCAD.Binary, logger), cmd.OutOrStdout(), logger)
	defer runner.Close()

	if err := runner.Run(ctx, sc); err != nil {
		return err
	}
	if runPrint {
		script.Print(cmd.OutOrStdout(), session.Mirror.Snapshot())
	}
	return nil
}
