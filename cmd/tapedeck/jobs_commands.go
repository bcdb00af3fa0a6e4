package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tapedeck/internal/jobs"
	"tapedeck/internal/project"
	"tapedeck/internal/queue"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and cancel background jobs",
	}
	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	jobsCmd.AddCommand(newJobsCancelCommand(ctx))
	return jobsCmd
}

// jobFacade reads and cancels job rows; it never enqueues work.
func jobFacade(p *project.Project) *jobs.Service {
	return jobs.NewService(p, nil)
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List recent jobs, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withProject(cmd, func(c context.Context, p *project.Project) error {
				list, err := jobFacade(p).Recent(c, limit)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, list)
				}
				out := cmd.OutOrStdout()
				if len(list) == 0 {
					fmt.Fprintln(out, "No jobs")
					return nil
				}
				fmt.Fprintln(out, renderTable([]column{
					{header: "ID", align: alignRight},
					{header: "Type"},
					{header: "Status"},
					{header: "Progress", align: alignRight},
					{header: "Tape", align: alignRight},
					{header: "Step"},
					{header: "Created"},
				}, buildJobRows(list)))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Number of jobs to show (defaults to jobs.recent_limit)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show one job's progress, result or error",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "job id")
			if err != nil {
				return err
			}
			return ctx.withProject(cmd, func(c context.Context, p *project.Project) error {
				job, err := jobFacade(p).Status(c, id)
				if err != nil {
					return err
				}
				return printJob(cmd, job)
			})
		},
	}
}

func printJob(cmd *cobra.Command, job *queue.Job) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Job %d (%s)\n", job.ID, job.Type)
	fmt.Fprintf(out, "  Status:   %s\n", formatStatusLabel(string(job.Status)))
	fmt.Fprintf(out, "  Progress: %d%% %s\n", job.Percent, strings.TrimSpace(job.CurrentStep+" "+job.Detail))
	if job.TapeID > 0 {
		fmt.Fprintf(out, "  Tape:     %d\n", job.TapeID)
	}
	fmt.Fprintf(out, "  Created:  %s\n", formatAge(job.CreatedAt))
	if job.FinishedAt != "" {
		fmt.Fprintf(out, "  Finished: %s\n", formatAge(job.FinishedAt))
	}
	if job.ErrorText != "" {
		fmt.Fprintf(out, "  Error:    %s\n", strings.ReplaceAll(job.ErrorText, "\n", "\n            "))
	}
	result, err := job.ResultMap()
	if err != nil {
		return err
	}
	if result != nil {
		fmt.Fprintln(out, "  Result:")
		return writeJSON(cmd, result)
	}
	return nil
}

func newJobsCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Mark a queued or running job canceled",
		Long: "Cancel is soft: a running pipeline step finishes, but its outcome is " +
			"discarded and the job stays canceled.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "job id")
			if err != nil {
				return err
			}
			return ctx.withProject(cmd, func(c context.Context, p *project.Project) error {
				job, err := jobFacade(p).Cancel(c, id)
				if errors.Is(err, jobs.ErrNotCancelable) {
					return fmt.Errorf("job %d is %s and can no longer be canceled", id, job.Status)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %d canceled\n", id)
				return nil
			})
		},
	}
}
