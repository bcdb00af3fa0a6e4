package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"tapedeck/internal/config"
	"tapedeck/internal/logging"
	"tapedeck/internal/queue"
	"tapedeck/internal/testsupport"
)

type cliTestEnv struct {
	cfg   *config.Config
	ctx   *commandContext
	inbox string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	cfg.Paths.DefaultProject = testsupport.ProjectSlug
	paths, err := cfg.ProjectPaths(testsupport.ProjectSlug)
	if err != nil {
		t.Fatalf("ProjectPaths: %v", err)
	}

	ctx := &commandContext{config: cfg}
	ctx.configOnce.Do(func() {})
	ctx.loggerOnce.Do(func() { ctx.logger = logging.NewNop() })
	return &cliTestEnv{cfg: cfg, ctx: ctx, inbox: paths.InboxDir}
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := buildRootCommand(e.ctx)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (e *cliTestEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	if err != nil {
		t.Fatalf("tapedeck %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func TestCLITapeLifecycle(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithFFmpegStub(testsupport.FFmpegStub{
		DurationSeconds: 600,
		Cuts:            []float64{180, 420},
	}))
	testsupport.WriteFile(t, filepath.Join(env.inbox, "birthday.mp4"), 4096)

	if out := env.mustRun(t, "inbox"); !strings.Contains(out, "birthday.mp4") || !strings.Contains(out, "New") {
		t.Fatalf("unexpected inbox output:\n%s", out)
	}
	if out := env.mustRun(t, "ingest", "birthday.mp4"); !strings.Contains(out, "Ingested birthday.mp4.") {
		t.Fatalf("unexpected ingest output:\n%s", out)
	}
	if out := env.mustRun(t, "tapes"); !strings.Contains(out, "TAPE_0001") || !strings.Contains(out, "Ingested") {
		t.Fatalf("unexpected tapes output:\n%s", out)
	}
	if out := env.mustRun(t, "process", "1"); !strings.Contains(out, "Suggestions: 3") {
		t.Fatalf("unexpected process output:\n%s", out)
	}
	if out := env.mustRun(t, "accept", "1"); !strings.Contains(out, "3 segment(s) saved") {
		t.Fatalf("unexpected accept output:\n%s", out)
	}
	if out := env.mustRun(t, "export", "1"); !strings.Contains(out, "Exported 3 segment(s)") {
		t.Fatalf("unexpected export output:\n%s", out)
	}
	if out := env.mustRun(t, "tapes"); !strings.Contains(out, "Mastered") {
		t.Fatalf("expected mastered tape:\n%s", out)
	}
	if out := env.mustRun(t, "inbox"); !strings.Contains(out, "Ingested") {
		t.Fatalf("expected ingested inbox entry:\n%s", out)
	}
}

func TestCLIIngestArguments(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, err := env.run(t, "ingest"); err == nil {
		t.Fatal("expected error without file or --all")
	}
	if _, err := env.run(t, "ingest", "--all", "--tape", "2"); err == nil {
		t.Fatal("expected error combining --all and --tape")
	}
	_, err := env.run(t, "ingest", "missing.mp4")
	if err == nil || err.Error() != "File not found: missing.mp4" {
		t.Fatalf("expected user message, got %v", err)
	}
	if _, err := env.run(t, "process", "zero"); err == nil {
		t.Fatal("expected invalid tape id")
	}
}

func TestCLIIngestAll(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.WriteFile(t, filepath.Join(env.inbox, "a.mp4"), 100)
	testsupport.WriteFile(t, filepath.Join(env.inbox, "b.mp4"), 200)

	if out := env.mustRun(t, "ingest", "--all"); !strings.Contains(out, "Ingested 2 file(s). Skipped 0.") {
		t.Fatalf("unexpected output:\n%s", out)
	}
	if out := env.mustRun(t, "ingest", "--all"); !strings.Contains(out, "Ingested 0 file(s). Skipped 2.") {
		t.Fatalf("unexpected rerun output:\n%s", out)
	}
}

func TestCLIPipelineRefusedWhileLocked(t *testing.T) {
	env := setupCLITestEnv(t)
	p := testsupport.MustOpenProject(t, env.cfg)
	if err := p.Lock(); err != nil {
		t.Fatalf("Lock: %v", err)
	}

	_, err := env.run(t, "ingest", "--all")
	if err == nil || !strings.Contains(err.Error(), "served by a running daemon") {
		t.Fatalf("expected lock refusal, got %v", err)
	}
	if _, err := env.run(t, "review", "list"); err != nil {
		t.Fatalf("read commands should work while locked: %v", err)
	}
}

func TestCLIJobs(t *testing.T) {
	env := setupCLITestEnv(t)
	p := testsupport.MustOpenProject(t, env.cfg)
	job, err := p.Jobs.Create(context.Background(), queue.ExportSegmentsPayload{TapeID: 7}, 7)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if out := env.mustRun(t, "jobs", "list"); !strings.Contains(out, "export_segments") || !strings.Contains(out, "Queued") {
		t.Fatalf("unexpected jobs list:\n%s", out)
	}
	id := strconv.FormatInt(job.ID, 10)
	if out := env.mustRun(t, "jobs", "cancel", id); !strings.Contains(out, "Job "+id+" canceled") {
		t.Fatalf("unexpected cancel output:\n%s", out)
	}
	if _, err := env.run(t, "jobs", "cancel", id); err == nil || !strings.Contains(err.Error(), "can no longer be canceled") {
		t.Fatalf("expected second cancel to fail, got %v", err)
	}
	out := env.mustRun(t, "jobs", "show", id)
	if !strings.Contains(out, "Canceled") || !strings.Contains(out, "Canceled by user.") {
		t.Fatalf("unexpected show output:\n%s", out)
	}
	if _, err := env.run(t, "jobs", "show", "99"); err == nil {
		t.Fatal("expected missing job error")
	}
}

func TestCLIReviewBackupRetry(t *testing.T) {
	nas := filepath.Join(t.TempDir(), "nas")
	env := setupCLITestEnv(t, testsupport.WithNASRoot(nas))
	testsupport.WriteFile(t, filepath.Join(env.inbox, "tape.mp4"), 512)
	env.mustRun(t, "ingest", "tape.mp4")

	out := env.mustRun(t, "review", "list", "--type", "needs_backup")
	if !strings.Contains(out, "Needs Backup") || !strings.Contains(out, "TAPE_0001") {
		t.Fatalf("unexpected review list:\n%s", out)
	}
	_, err := env.run(t, "review", "retry-backup", "1")
	if err == nil || err.Error() != "NAS not available. Backup will remain queued." {
		t.Fatalf("expected offline message, got %v", err)
	}
	if out := env.mustRun(t, "review", "retry-backup", "--all"); !strings.Contains(out, "Attempted 0") {
		t.Fatalf("unexpected sweep output:\n%s", out)
	}
}

func TestCLIStatus(t *testing.T) {
	env := setupCLITestEnv(t)
	out := env.mustRun(t, "status")
	for _, want := range []string{"== Project test ==", "Daemon:", "not running", "FFmpeg:", "[ERROR]", "Queued:"} {
		if !strings.Contains(out, want) {
			t.Fatalf("status output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatStatusLabel(t *testing.T) {
	tests := map[string]string{
		"needs_split_review": "Needs Split Review",
		"queued":             "Queued",
		"":                   "",
	}
	for in, want := range tests {
		if got := formatStatusLabel(in); got != want {
			t.Fatalf("formatStatusLabel(%q) = %q, want %q", in, got, want)
		}
	}
}
