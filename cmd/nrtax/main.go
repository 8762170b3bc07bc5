package main

import (
	"fmt"
	"os"
	"runtime/debug"
	"strconv"

	"github.com/rgehrsitz/nrtax/internal/aggregate"
	"github.com/rgehrsitz/nrtax/internal/batch"
	"github.com/rgehrsitz/nrtax/internal/calculation"
	"github.com/rgehrsitz/nrtax/internal/config"
	"github.com/rgehrsitz/nrtax/internal/output"
	"github.com/rgehrsitz/nrtax/internal/ruleset"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	rulesetFile string
	debug       bool
}

// formatExtensions maps a formatter name to the extension used by --save.
var formatExtensions = map[string]string{
	"console":      "txt",
	"console-lite": "txt",
	"json":         "json",
	"yaml":         "yaml",
	"csv":          "csv",
	"html":         "html",
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:   "nrtax",
		Short: "Non-resident U.S. tax calculator",
		Long: "Determines residency for U.S. tax purposes, sources income, applies treaty " +
			"benefits and computes federal and state tax for non-resident aliens.",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.rulesetFile, "ruleset", "", "Path to a ruleset YAML file (default: bundled ruleset for the tax year)")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging on stderr")

	root.AddCommand(
		computeCmd(opts),
		aggregateCmd(opts),
		residencyCmd(opts),
		validateCmd(opts),
		rulesCmd(opts),
		batchCmd(opts),
		versionCmd(),
	)
	return root
}

// newPipeline builds the pipeline every command computes through, logging to
// the command's stderr.
func newPipeline(cmd *cobra.Command, opts *globalOptions, extra ...batch.Option) (*batch.Pipeline, error) {
	reg, err := ruleset.Default()
	if err != nil {
		return nil, fmt.Errorf("failed to load bundled rulesets: %w", err)
	}
	pipelineOpts := []batch.Option{batch.WithLogger(newLogger(cmd.ErrOrStderr(), opts.debug))}
	if opts.rulesetFile != "" {
		rs, err := ruleset.LoadFile(opts.rulesetFile)
		if err != nil {
			return nil, err
		}
		pipelineOpts = append(pipelineOpts, batch.WithRuleset(rs))
	}
	return batch.NewPipeline(reg, append(pipelineOpts, extra...)...), nil
}

func loadInput(path string) (*config.ReturnInput, error) {
	return config.NewInputParser().LoadFromFile(path)
}

func computeCmd(opts *globalOptions) *cobra.Command {
	var format string
	var save bool
	cmd := &cobra.Command{
		Use:   "compute [input-file]",
		Short: "Compute a complete non-resident return",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := output.GetFormatterByName(format)
			if f == nil {
				return fmt.Errorf("unknown format %q (available: %v)", format, output.AvailableFormatterNames())
			}
			p, err := newPipeline(cmd, opts)
			if err != nil {
				return err
			}
			in, err := loadInput(args[0])
			if err != nil {
				return err
			}
			report, err := p.Compute(cmd.Context(), in)
			if err != nil {
				return err
			}

			if save {
				filename, err := output.WriteFormatted(f, report.Result, formatExtensions[f.Name()])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", filename)
				return nil
			}
			data, err := f.Format(report.Result)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "console", "Output format (console, console-lite, json, yaml, csv, html)")
	cmd.Flags().BoolVar(&save, "save", false, "Write the report to nrtax_<year>_<id>.<ext> instead of stdout")
	return cmd
}

func aggregateCmd(opts *globalOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "aggregate [input-file]",
		Short: "Print income and withholding aggregates and document findings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newPipeline(cmd, opts)
			if err != nil {
				return err
			}
			in, err := loadInput(args[0])
			if err != nil {
				return err
			}
			report, err := p.Aggregate(in)
			if err != nil {
				return err
			}
			data, err := output.FormatAggregateReport(format, output.AggregateReport{
				Income:      report.Income,
				Withholding: report.Withholding,
				Findings:    report.Findings,
			})
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "console", "Output format (console, json, yaml)")
	return cmd
}

func residencyCmd(opts *globalOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "residency [input-file]",
		Short: "Determine residency status only",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newPipeline(cmd, opts)
			if err != nil {
				return err
			}
			in, err := loadInput(args[0])
			if err != nil {
				return err
			}
			rs, err := p.RulesetFor(in.Facts.TaxYear)
			if err != nil {
				return err
			}
			determination, err := calculation.DetermineResidencyForFiler(rs, in.Facts, in.Days)
			if err != nil {
				return err
			}
			data, err := output.FormatResidency(format, determination)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "console", "Output format (console, json, yaml)")
	return cmd
}

func validateCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [input-file]",
		Short: "Validate a return input file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := loadInput(args[0])
			if err != nil {
				return err
			}
			p, err := newPipeline(cmd, opts)
			if err != nil {
				return err
			}
			report, err := p.Aggregate(in)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			errorCount := 0
			for _, f := range report.Findings {
				if f.Severity == aggregate.SeverityError {
					errorCount++
				}
				fmt.Fprintf(out, "[%s] %s %s: %s\n", f.Severity, f.DocumentID, f.Rule, f.Message)
			}
			if errorCount > 0 {
				return fmt.Errorf("input file %s has %d document error(s)", args[0], errorCount)
			}
			fmt.Fprintf(out, "Input file %s is valid\n", args[0])
			return nil
		},
	}
}

func rulesCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rules [year]",
		Short: "Print a ruleset summary",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rs, err := selectRuleset(opts, args)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(output.FormatRulesetSummary(rs))
			return err
		},
	}
}

func selectRuleset(opts *globalOptions, args []string) (*ruleset.Ruleset, error) {
	if opts.rulesetFile != "" {
		return ruleset.LoadFile(opts.rulesetFile)
	}
	reg, err := ruleset.Default()
	if err != nil {
		return nil, fmt.Errorf("failed to load bundled rulesets: %w", err)
	}
	if len(args) == 0 {
		return reg.Latest()
	}
	year, err := strconv.Atoi(args[0])
	if err != nil {
		return nil, fmt.Errorf("invalid tax year %q: %w", args[0], err)
	}
	return reg.ForYear(year)
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "nrtax %s (commit %s, built %s)\n", version, commit, date)
			if info := buildInfo(); info != "" {
				fmt.Fprintln(cmd.OutOrStdout(), info)
			}
		},
	}
}

func buildInfo() string {
	if bi, ok := debug.ReadBuildInfo(); ok && bi != nil {
		return bi.String()
	}
	return ""
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
