package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"tapedeck/internal/library"
	"tapedeck/internal/project"
)

func newInboxCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "List capture files waiting in the project inbox",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withProject(cmd, func(c context.Context, p *project.Project) error {
				files, err := p.Ingest.ListInbox(c, p.DB)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, files)
				}
				out := cmd.OutOrStdout()
				if len(files) == 0 {
					fmt.Fprintf(out, "Inbox is empty (%s)\n", p.Paths.InboxDir)
					return nil
				}
				fmt.Fprintln(out, renderTable([]column{
					{header: "File"},
					{header: "Size", align: alignRight},
					{header: "Modified"},
					{header: "Status"},
				}, buildInboxRows(files)))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newTapesCommand(ctx *commandContext) *cobra.Command {
	var unassigned bool
	cmd := &cobra.Command{
		Use:   "tapes",
		Short: "List tapes in the project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withProject(cmd, func(c context.Context, p *project.Project) error {
				var (
					tapes []library.Tape
					err   error
				)
				if unassigned {
					tapes, err = p.Ingest.ListUnassigned(c, p.DB)
				} else {
					tapes, err = library.NewTapes(p.DB).List(c)
				}
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(tapes) == 0 {
					fmt.Fprintln(out, "No tapes")
					return nil
				}
				fmt.Fprintln(out, renderTable([]column{
					{header: "ID", align: alignRight},
					{header: "Code"},
					{header: "Title"},
					{header: "Status"},
					{header: "Backup"},
					{header: "Duration", align: alignRight},
					{header: "Size", align: alignRight},
				}, buildTapeRows(tapes)))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&unassigned, "unassigned", false, "Only tapes still waiting for a raw capture")
	return cmd
}
