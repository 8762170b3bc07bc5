package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rgehrsitz/nrtax/internal/batch"
	"github.com/rgehrsitz/nrtax/internal/config"
	"github.com/rgehrsitz/nrtax/internal/output"
	"github.com/spf13/cobra"
)

func batchCmd(opts *globalOptions) *cobra.Command {
	var workers int
	var metricsOut string
	cmd := &cobra.Command{
		Use:   "batch [dir | input-file...]",
		Short: "Compute many returns concurrently",
		Long: "Computes every input file given, or every .yaml, .yml and .json file in a " +
			"directory, and prints one summary line per return.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := expandInputs(args)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				return fmt.Errorf("no input files found in %v", args)
			}

			metrics := batch.NewMetrics()
			p, err := newPipeline(cmd, opts, batch.WithMetrics(metrics))
			if err != nil {
				return err
			}
			outcomes, runErr := batch.NewRunner(p, workers).Run(cmd.Context(), batch.LoadJobs(files))

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "INPUT\tRESIDENCY\tTAX\tSETTLEMENT\tCOMPUTATION ID")
			for _, o := range outcomes {
				if o.Err != nil {
					fmt.Fprintf(w, "%s\terror\t\t%v\t\n", o.Name, o.Err)
					continue
				}
				r := o.Report.Result
				fmt.Fprintf(w, "%s\t%s\t%s\t%s %s\t%s\n", o.Name, r.Residency.Status,
					output.FormatCurrency(r.Final.TotalTax), r.Final.RefundOrOwed,
					output.FormatCurrency(r.Final.Amount), r.ComputationID)
			}
			w.Flush()

			if metricsOut != "" {
				if err := metrics.WriteTextfile(metricsOut); err != nil {
					return err
				}
			}
			if runErr != nil {
				return runErr
			}
			if failed := batch.Failed(outcomes); failed > 0 {
				return fmt.Errorf("%d of %d returns failed", failed, len(outcomes))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&workers, "workers", "w", batch.DefaultWorkers, "Maximum concurrent computations")
	cmd.Flags().StringVar(&metricsOut, "metrics-out", "", "Write batch metrics in Prometheus text format to this file")
	return cmd
}

// expandInputs replaces each directory argument with the input files it
// contains.
func expandInputs(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", arg, err)
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		found, err := config.FindInputFiles(arg)
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}
	return files, nil
}
