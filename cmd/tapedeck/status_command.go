package main

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"tapedeck/internal/library"
	"tapedeck/internal/preflight"
	"tapedeck/internal/project"
	"tapedeck/internal/queue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show tool availability, NAS state, job and review counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withProject(cmd, func(c context.Context, p *project.Project) error {
				return renderStatus(c, cmd.OutOrStdout(), p, shouldColorize(cmd.OutOrStdout()))
			})
		},
	}
}

func renderStatus(ctx context.Context, out io.Writer, p *project.Project, colorize bool) error {
	jobCounts, err := p.Jobs.CountByStatus(ctx)
	if err != nil {
		return err
	}
	reviewCounts, err := library.NewReviewItems(p.DB).CountOpenByType(ctx)
	if err != nil {
		return err
	}
	tapeCounts, err := library.NewTapes(p.DB).CountByStatus(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, renderSectionHeader("Project "+p.Paths.Slug, colorize))
	fmt.Fprintln(out, renderStatusLine("Root", statusInfo, p.Paths.Root, colorize))
	if p.Locked() {
		fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, "running, API on "+p.Config.Paths.APIBind, colorize))
	} else {
		fmt.Fprintln(out, renderStatusLine("Daemon", statusInfo, "not running", colorize))
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, renderSectionHeader("Checks", colorize))
	for _, result := range preflight.RunAll(ctx, p.Config, p.Paths) {
		kind := statusOK
		if !result.Passed {
			kind = statusError
			if result.Optional {
				kind = statusWarn
			}
		}
		fmt.Fprintln(out, renderStatusLine(result.Name, kind, result.Detail, colorize))
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, renderSectionHeader("Tapes", colorize))
	writeCounts(out, colorize, tapeCounts, func(s library.TapeStatus) string { return string(s) }, statusInfo)

	fmt.Fprintln(out)
	fmt.Fprintln(out, renderSectionHeader("Jobs", colorize))
	for _, status := range []queue.Status{
		queue.StatusQueued, queue.StatusRunning, queue.StatusSuccess,
		queue.StatusFailed, queue.StatusCanceled, queue.StatusStale,
	} {
		kind := statusInfo
		if n := jobCounts[status]; n > 0 && (status == queue.StatusFailed || status == queue.StatusStale) {
			kind = statusWarn
		}
		fmt.Fprintln(out, renderStatusLine(formatStatusLabel(string(status)), kind, fmt.Sprint(jobCounts[status]), colorize))
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, renderSectionHeader("Open review items", colorize))
	writeCounts(out, colorize, reviewCounts, func(t library.ReviewType) string { return formatStatusLabel(string(t)) }, statusWarn)
	return nil
}

func writeCounts[K ~string](out io.Writer, colorize bool, counts map[K]int, label func(K) string, kind statusKind) {
	if len(counts) == 0 {
		fmt.Fprintln(out, renderStatusLine("None", statusOK, "", colorize))
		return
	}
	keys := make([]K, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, k := range keys {
		fmt.Fprintln(out, renderStatusLine(label(k), kind, fmt.Sprint(counts[k]), colorize))
	}
}
