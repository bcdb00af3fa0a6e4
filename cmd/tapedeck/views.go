package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"tapedeck/internal/database"
	"tapedeck/internal/fileutil"
	"tapedeck/internal/ingest"
	"tapedeck/internal/library"
	"tapedeck/internal/queue"
)

var titleCaser = cases.Title(language.English)

// formatStatusLabel turns snake_case identifiers into "Title Case" labels.
func formatStatusLabel(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		return ""
	}
	return titleCaser.String(strings.ReplaceAll(status, "_", " "))
}

// formatAge renders a stored timestamp as a relative age.
func formatAge(ts string) string {
	if ts == "" {
		return "-"
	}
	parsed, err := time.Parse(database.TimeFormat, ts)
	if err != nil {
		return ts
	}
	return humanize.Time(parsed)
}

func formatSeconds(v *float64) string {
	if v == nil {
		return "-"
	}
	return (time.Duration(*v) * time.Second).String()
}

func formatSize(v *int64) string {
	if v == nil {
		return "-"
	}
	return fileutil.FormatBytes(*v)
}

func buildInboxRows(files []ingest.InboxFile) [][]string {
	rows := make([][]string, 0, len(files))
	for _, f := range files {
		status := formatStatusLabel(string(f.Status))
		if f.Error != "" {
			status += ": " + f.Error
		}
		rows = append(rows, []string{
			f.Name,
			fileutil.FormatBytes(f.SizeBytes),
			humanize.Time(f.Modified),
			status,
		})
	}
	return rows
}

func buildTapeRows(tapes []library.Tape) [][]string {
	rows := make([][]string, 0, len(tapes))
	for i := range tapes {
		t := &tapes[i]
		rows = append(rows, []string{
			strconv.FormatInt(t.ID, 10),
			t.Code(),
			t.Title,
			string(t.Status),
			formatStatusLabel(string(t.BackupStatus)),
			formatSeconds(t.Duration),
			formatSize(t.FileSizeBytes),
		})
	}
	return rows
}

func buildJobRows(jobs []*queue.Job) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		tape := "-"
		if job.TapeID > 0 {
			tape = strconv.FormatInt(job.TapeID, 10)
		}
		step := job.CurrentStep
		if job.Status == queue.StatusFailed || job.Status == queue.StatusStale {
			step = firstLine(job.ErrorText)
		}
		rows = append(rows, []string{
			strconv.FormatInt(job.ID, 10),
			string(job.Type),
			formatStatusLabel(string(job.Status)),
			fmt.Sprintf("%d%%", job.Percent),
			tape,
			step,
			formatAge(job.CreatedAt),
		})
	}
	return rows
}

func buildReviewRows(items []library.ReviewItem) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		tape := "-"
		if item.TapeCode != "" {
			tape = item.TapeCode
		}
		rows = append(rows, []string{
			strconv.FormatInt(item.ID, 10),
			formatStatusLabel(string(item.Type)),
			tape,
			formatStatusLabel(string(item.Status)),
			item.Message,
			formatAge(item.CreatedAt),
		})
	}
	return rows
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func parseID(raw, what string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", what, raw)
	}
	return id, nil
}
