package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tapedeck/internal/library"
	"tapedeck/internal/project"
	"tapedeck/internal/review"
)

func newReviewCommand(ctx *commandContext) *cobra.Command {
	reviewCmd := &cobra.Command{
		Use:   "review",
		Short: "Work through items that need a human",
	}
	reviewCmd.AddCommand(newReviewListCommand(ctx))
	reviewCmd.AddCommand(newReviewResolveCommand(ctx))
	reviewCmd.AddCommand(newReviewRetryBackupCommand(ctx))
	return reviewCmd
}

func newReviewListCommand(ctx *commandContext) *cobra.Command {
	var (
		all      bool
		itemType string
		tapeID   int64
	)
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List open review items, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := library.ReviewFilter{
				Type:   library.ReviewType(strings.TrimSpace(itemType)),
				TapeID: tapeID,
			}
			if !all {
				filter.Status = library.ReviewOpen
			}
			return ctx.withProject(cmd, func(c context.Context, p *project.Project) error {
				items, err := p.Reviews.List(c, p.DB, filter)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(items) == 0 {
					fmt.Fprintln(out, "Nothing to review")
					return nil
				}
				fmt.Fprintln(out, renderTable([]column{
					{header: "ID", align: alignRight},
					{header: "Type"},
					{header: "Tape"},
					{header: "Status"},
					{header: "Message"},
					{header: "Created"},
				}, buildReviewRows(items)))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Include resolved items")
	cmd.Flags().StringVar(&itemType, "type", "", "Only items of this type (e.g. needs_backup)")
	cmd.Flags().Int64Var(&tapeID, "tape", 0, "Only items for this tape id")
	return cmd
}

func newReviewResolveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <item-id>",
		Short: "Mark a review item resolved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "review item id")
			if err != nil {
				return err
			}
			return ctx.withSession(cmd, false, func(c context.Context, p *project.Project, sess *library.Session) error {
				if err := p.Reviews.Resolve(c, sess, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Review item %d resolved\n", id)
				return nil
			})
		},
	}
}

func newReviewRetryBackupCommand(ctx *commandContext) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "retry-backup [item-id]",
		Short: "Retry the NAS copy for a needs_backup item",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) == 1) {
				return errors.New("pass either an item id or --all")
			}
			out := cmd.OutOrStdout()
			if all {
				return ctx.withSession(cmd, false, func(c context.Context, p *project.Project, sess *library.Session) error {
					summary, err := p.Reviews.RetryAllOpen(c, sess)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Attempted %d, backed up %d, failed %d\n", summary.Attempted, summary.BackedUp, summary.Failed)
					return nil
				})
			}
			id, err := parseID(args[0], "review item id")
			if err != nil {
				return err
			}
			var outcome review.RetryOutcome
			err = ctx.withSession(cmd, false, func(c context.Context, p *project.Project, sess *library.Session) error {
				outcome, err = p.Reviews.RetryBackup(c, sess, id)
				return err
			})
			if err != nil {
				return err
			}
			if outcome.Status != review.StatusBackedUp {
				return errors.New(outcome.Message)
			}
			fmt.Fprintln(out, outcome.Message)
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Retry every open needs_backup item")
	return cmd
}
