package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/attrisk/attrition"
	"github.com/YuminosukeSato/attrisk/pkg/log"
)

// Version is set at build time with -ldflags.
var Version = "dev"

// Execute runs the attrisk command and exits 1 on error.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.GetLogger().Error("attrisk failed", err)
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

type runOptions struct {
	configPath string
	logLevel   string
	input      string
	output     string
	model      string
}

func newRootCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "attrisk",
		Short: "Train attrition models and write per-employee risk scores",
		Long: "attrisk reads an employee spreadsheet, trains logistic regression and random forest\n" +
			"classifiers, prints their holdout metrics and writes the spreadsheet back with an\n" +
			"AttritionRisk column. With no flags it uses the built-in defaults.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return setupLogging(opts.logLevel, cmd.ErrOrStderr())
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.config()
			if err != nil {
				return err
			}
			p, err := attrition.NewPipeline(cfg, attrition.WithOutput(cmd.OutOrStdout()))
			if err != nil {
				return err
			}
			_, err = p.Run(cmd.Context())
			return err
		},
	}

	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "structured log level: "+log.LevelNames())
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "YAML file overriding the default configuration")
	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "input spreadsheet (overrides config)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output workbook (overrides config)")
	cmd.Flags().StringVar(&opts.model, "scoring-model", "", "model used for risk scores: random_forest|logistic_regression")

	cmd.AddCommand(sampleCmd())
	return cmd
}

// config builds the run configuration: defaults, then the config file,
// then command-line overrides.
func (o runOptions) config() (attrition.Config, error) {
	cfg := attrition.DefaultConfig()
	if o.configPath != "" {
		var err error
		if cfg, err = attrition.LoadConfig(o.configPath); err != nil {
			return attrition.Config{}, err
		}
	}
	if o.input != "" {
		cfg.Input = o.input
	}
	if o.output != "" {
		cfg.Output = o.output
	}
	if o.model != "" {
		cfg.ScoringModel = o.model
	}
	return cfg, cfg.Validate()
}

// setupLogging writes JSON logs to w, or human-readable lines when w is a terminal.
func setupLogging(level string, w io.Writer) error {
	console := false
	if f, ok := w.(*os.File); ok {
		console = isatty.IsTerminal(f.Fd())
	}
	return log.SetupLogger(level, w, console)
}
