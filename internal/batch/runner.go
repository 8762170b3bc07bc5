package batch

import (
	"context"
	"time"

	"github.com/rgehrsitz/nrtax/internal/config"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers bounds concurrency when none is configured.
const DefaultWorkers = 4

// Job is one return to compute. A job whose input failed to load carries the
// load error instead.
type Job struct {
	Name  string
	Input *config.ReturnInput
	Err   error
}

// Outcome is the result of one Job, at the job's index in the input.
type Outcome struct {
	Name     string
	Report   *Report
	Err      error
	Duration time.Duration
}

// LoadJobs parses every file. Files that fail to parse become failed jobs so
// one bad input does not stop the batch.
func LoadJobs(files []string) []Job {
	parser := config.NewInputParser()
	jobs := make([]Job, len(files))
	for i, f := range files {
		in, err := parser.LoadFromFile(f)
		jobs[i] = Job{Name: f, Input: in, Err: err}
	}
	return jobs
}

// Runner computes jobs concurrently through a Pipeline.
type Runner struct {
	pipeline *Pipeline
	workers  int
	metrics  *Metrics
}

// NewRunner creates a runner with at most workers concurrent computations.
func NewRunner(p *Pipeline, workers int) *Runner {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Runner{pipeline: p, workers: workers, metrics: p.metrics}
}

// Run computes every job and returns outcomes in job order. Per-job failures
// are reported in their Outcome; the returned error is set only when ctx ends
// before the batch completes.
func (r *Runner) Run(ctx context.Context, jobs []Job) ([]Outcome, error) {
	r.metrics.SetWorkers(r.workers)
	outcomes := make([]Outcome, len(jobs))

	var g errgroup.Group
	g.SetLimit(r.workers)
	for i, job := range jobs {
		outcomes[i].Name = job.Name
		if job.Err != nil {
			outcomes[i].Err = job.Err
			r.metrics.ObserveComputation(outcomeOf(job.Err), "", 0)
			continue
		}
		if ctx.Err() != nil {
			outcomes[i].Err = ctx.Err()
			continue
		}
		g.Go(func() error {
			start := time.Now()
			report, err := r.pipeline.Compute(ctx, job.Input)
			outcomes[i].Report = report
			outcomes[i].Err = err
			outcomes[i].Duration = time.Since(start)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes, ctx.Err()
}

// Failed counts outcomes that carry an error.
func Failed(outcomes []Outcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}
