package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/ea-integrations/process-sync/internal/bootstrap"
	"github.com/ea-integrations/process-sync/internal/process_sync/domain"
)

func jobArg(app *bootstrap.App, args []string) (domain.Job, error) {
	if len(args) == 0 {
		if len(app.Jobs) == 1 {
			return app.Jobs[0], nil
		}
		return domain.Job{}, errors.New("a job name is required when several jobs are configured")
	}
	return app.Job(args[0])
}

// RunJob runs a job in the foreground and prints its summary.
func RunJob(ctx context.Context, app *bootstrap.App, args []string) error {
	job, err := jobArg(app, args)
	if err != nil {
		return err
	}
	summary, err := app.Runner.Run(ctx, job)
	if summary != nil {
		printSummary(os.Stdout, summary)
	}
	return err
}

// BuildTree rebuilds the tree of a job, replacing the cached copy when the
// build is complete.
func BuildTree(ctx context.Context, app *bootstrap.App, args []string) error {
	job, err := jobArg(app, args)
	if err != nil {
		return err
	}
	tree, report, err := app.Runner.Build(ctx, job)
	if err != nil {
		return err
	}
	fmt.Printf("root=%s nodes=%d ok=%d skipped=%d failed=%d cached=%t\n",
		job.RootProcessID, tree.Len(),
		report.Count(domain.OutcomeOK), report.Count(domain.OutcomeSkipped), report.Count(domain.OutcomeFailed),
		report.Complete())
	return nil
}

// SyncCached synchronizes the cached tree of a job without touching the
// process modeler.
func SyncCached(ctx context.Context, app *bootstrap.App, args []string) error {
	job, err := jobArg(app, args)
	if err != nil {
		return err
	}
	report, err := app.Runner.SyncOnly(ctx, job)
	if err != nil {
		if errors.Is(err, domain.ErrCacheMiss) {
			return fmt.Errorf("%w: run `worker build %s` first", err, job.Name)
		}
		return err
	}
	fmt.Printf("created=%d reused=%d skipped=%d failed=%d archived=%d\n",
		report.Created, report.Reused, report.Skipped, report.Failed, report.Archived)
	return nil
}

// ClearCache drops the cached tree of a job.
func ClearCache(ctx context.Context, app *bootstrap.App, args []string) error {
	job, err := jobArg(app, args)
	if err != nil {
		return err
	}
	if err := app.Runner.ClearCache(ctx, job); err != nil {
		return err
	}
	fmt.Printf("cache cleared for job %s (root %s)\n", job.Name, job.RootProcessID)
	return nil
}

// PrintDiagram writes the BPMN markup of a diagram to stdout.
func PrintDiagram(ctx context.Context, app *bootstrap.App, args []string) error {
	if len(args) == 0 {
		return errors.New("a diagram ID is required")
	}
	markup, err := app.Source.FetchDiagram(ctx, args[0])
	if err != nil {
		return err
	}
	_, err = io.WriteString(os.Stdout, markup)
	return err
}

// ListJobs prints the configured jobs.
func ListJobs(app *bootstrap.App, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tROOT\tDEPTH\tLINKS\tSCHEDULE")
	for _, j := range app.Jobs {
		schedule := j.Schedule
		if schedule == "" {
			schedule = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%t\t%s\n", j.Name, j.RootProcessID, j.MaxDepth, j.AttachLinks, schedule)
	}
	return tw.Flush()
}

func printSummary(w io.Writer, s *domain.RunSummary) {
	fmt.Fprintf(w, "run=%s job=%s status=%s source=%s tree=%d created=%d reused=%d skipped=%d failed=%d archived=%d\n",
		s.RunID, s.Job, s.Status, s.TreeSource, s.TreeSize, s.Created, s.Reused, s.Skipped, s.Failed, s.Archived)
	if s.Error != "" {
		fmt.Fprintf(w, "error: %s\n", s.Error)
	}
}
