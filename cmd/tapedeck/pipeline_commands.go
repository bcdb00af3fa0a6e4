package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"tapedeck/internal/ingest"
	"tapedeck/internal/library"
	"tapedeck/internal/logging"
	"tapedeck/internal/project"
	"tapedeck/internal/worker"
)

// progressPrinter reports pipeline progress on w, one line per step or
// quarter of progress.
func progressPrinter(w io.Writer) worker.Progress {
	sampler := logging.NewProgressSampler(25)
	return worker.ProgressFunc(func(percent int, step, detail string) {
		if !sampler.ShouldLog(percent, step) {
			return
		}
		line := fmt.Sprintf("  [%3d%%] %s", percent, step)
		if detail != "" {
			line += ": " + detail
		}
		fmt.Fprintln(w, line)
	})
}

func newIngestCommand(ctx *commandContext) *cobra.Command {
	var all bool
	var tapeID int64
	cmd := &cobra.Command{
		Use:   "ingest [file]",
		Short: "Copy an inbox capture into the project and create or attach its tape",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) == 1) {
				return errors.New("pass either a file name or --all")
			}
			if all && tapeID != 0 {
				return errors.New("--tape cannot be combined with --all")
			}
			out := cmd.OutOrStdout()
			return ctx.withSession(cmd, true, func(c context.Context, p *project.Project, sess *library.Session) error {
				if all {
					report, err := p.Ingest.IngestEach(c, sess)
					if err != nil {
						return err
					}
					for _, fe := range report.Errors {
						fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %s\n", fe.Name, fe.Message)
					}
					fmt.Fprintln(out, report.Message())
					return nil
				}
				res, err := p.Ingest.IngestFile(c, sess, args[0], tapeID, progressPrinter(cmd.ErrOrStderr()))
				if err != nil {
					return err
				}
				if res.Status == ingest.StatusError {
					return errors.New(res.Message)
				}
				fmt.Fprintln(out, res.Message)
				if res.BackupStatus != "" && res.BackupStatus != string(library.BackupBackedUp) {
					fmt.Fprintf(out, "Backup: %s\n", formatStatusLabel(res.BackupStatus))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Ingest every new file in the inbox")
	cmd.Flags().Int64Var(&tapeID, "tape", 0, "Attach the capture to an existing tape id")
	return cmd
}

func newProcessCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "process <tape-id>",
		Short: "Probe a tape's raw capture, render its thumbnail and suggest scene cuts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "tape id")
			if err != nil {
				return err
			}
			return ctx.withSession(cmd, true, func(c context.Context, p *project.Project, sess *library.Session) error {
				res, err := p.Processing.ProcessMedia(c, sess, id, progressPrinter(cmd.ErrOrStderr()))
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, res.Message)
				fmt.Fprintf(out, "Duration: %s  Size: %s  Suggestions: %d\n",
					formatSeconds(res.DurationSeconds), formatSize(res.FileSizeBytes), res.Suggestions)
				return nil
			})
		},
	}
}

func newAcceptCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "accept <tape-id>",
		Short: "Turn a tape's open scene suggestions into segments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "tape id")
			if err != nil {
				return err
			}
			return ctx.withSession(cmd, false, func(c context.Context, p *project.Project, sess *library.Session) error {
				outcome, err := p.Processing.AcceptSuggestions(c, sess, id)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), outcome.Message)
				return nil
			})
		},
	}
}

func newIgnoreCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "ignore <tape-id>",
		Short: "Dismiss a tape's open scene suggestions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "tape id")
			if err != nil {
				return err
			}
			return ctx.withSession(cmd, false, func(c context.Context, p *project.Project, sess *library.Session) error {
				n, err := p.Processing.IgnoreSuggestions(c, sess, id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Ignored %d suggestion(s).\n", n)
				return nil
			})
		},
	}
}

func newExportCommand(ctx *commandContext) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "export <tape-id>",
		Short: "Export a tape's segments as individual clips",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "tape id")
			if err != nil {
				return err
			}
			return ctx.withSession(cmd, true, func(c context.Context, p *project.Project, sess *library.Session) error {
				res, err := p.Export.Export(c, sess, id, force, progressPrinter(cmd.ErrOrStderr()))
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, res.Message)
				fmt.Fprintf(out, "Output: %s\n", res.OutputDir)
				if res.Failed > 0 {
					fmt.Fprintln(out, "Failed clips were added to the review queue.")
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Re-export clips that already exist")
	return cmd
}
