package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"

	"github.com/decibelcooper/fakerate/config"
	"github.com/decibelcooper/fakerate/internal/logging"
)

var (
	configPath string
	outPath    string
	logLevel   string
	jobs       int
	profMode   string
	noProgress bool
)

var (
	logger   *slog.Logger
	profiler interface{ Stop() }
)

var rootCmd = &cobra.Command{
	Use:   "fakerate",
	Short: "Measure jet→tau fake rates in Z→ll events",
	Long: `fakerate measures the rate at which jets are identified as hadronic tau
decays, in simulation and data, with their scale factors and systematic
uncertainties. Stored fake rates of a quark-enriched and a gluon-enriched
region can then be separated into quark and gluon fake rates.

The analysis is described by a YAML file given with --config.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logging.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		logger = logging.New(cmd.ErrOrStderr(), level)

		switch profMode {
		case "":
		case "cpu":
			profiler = profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.Quiet)
		case "mem":
			profiler = profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.Quiet)
		default:
			return fmt.Errorf("unknown profile %q, want cpu or mem", profMode)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		stopProfiler()
	},
}

// stopProfiler writes the profile, if one is running. Cobra skips
// PersistentPostRun when a command fails, so execute calls it too.
func stopProfiler() {
	if profiler != nil {
		profiler.Stop()
		profiler = nil
	}
}

func execute(ctx context.Context) error {
	defer stopProfiler()
	return rootCmd.ExecuteContext(ctx)
}

// Execute runs the command line and exits with status 1 on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := execute(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "analysis.yaml", "analysis configuration file")
	rootCmd.PersistentFlags().StringVarP(&outPath, "out", "o", "", "output directory (default plots/<command>_<date>)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	rootCmd.PersistentFlags().IntVarP(&jobs, "jobs", "j", 4, "working points measured concurrently")
	rootCmd.PersistentFlags().StringVar(&profMode, "profile", "", "write a cpu or mem profile to the current directory")
	rootCmd.PersistentFlags().BoolVar(&noProgress, "no-progress", false, "don't show progress bar")
}

// loadAnalysis reads and resolves the configuration.
func loadAnalysis() (*config.Analysis, error) {
	c, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return c.Resolve()
}
