package review_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"tapedeck/internal/library"
	"tapedeck/internal/project"
	"tapedeck/internal/review"
	"tapedeck/internal/services"
	"tapedeck/internal/testsupport"
)

// offlineProject ingests one file while the NAS root does not exist, leaving
// an open needs_backup item. It returns the NAS root so tests can bring it up.
func offlineProject(t *testing.T) (*project.Project, *library.Session, string, int64) {
	t.Helper()
	nas := filepath.Join(t.TempDir(), "nas")
	p := testsupport.MustOpenProject(t, testsupport.NewConfig(t, testsupport.WithNASRoot(nas)))
	sess := testsupport.MustSession(t, p)
	testsupport.InboxFile(t, p, "tape.mp4", 2048)
	res, err := p.Ingest.IngestFile(context.Background(), sess, "tape.mp4", 0, nil)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	return p, sess, nas, res.TapeID
}

func backupItem(t *testing.T, p *project.Project) library.ReviewItem {
	t.Helper()
	items, err := p.Reviews.List(context.Background(), p.DB, library.ReviewFilter{
		Status: library.ReviewOpen,
		Type:   library.ReviewNeedsBackup,
	})
	if err != nil || len(items) != 1 {
		t.Fatalf("expected one open needs_backup item, got %d (%v)", len(items), err)
	}
	return items[0]
}

func TestRetryBackupWaitsForNAS(t *testing.T) {
	ctx := context.Background()
	p, sess, nas, tapeID := offlineProject(t)
	item := backupItem(t, p)

	out, err := p.Reviews.RetryBackup(ctx, sess, item.ID)
	if err != nil {
		t.Fatalf("RetryBackup: %v", err)
	}
	if out.Status != review.StatusError || out.Message != "NAS not available. Backup will remain queued." {
		t.Fatalf("unexpected outcome while offline: %+v", out)
	}
	backupItem(t, p)

	if err := os.MkdirAll(nas, 0o755); err != nil {
		t.Fatalf("bring NAS online: %v", err)
	}
	out, err = p.Reviews.RetryBackup(ctx, sess, item.ID)
	if err != nil {
		t.Fatalf("RetryBackup: %v", err)
	}
	want := filepath.Join(nas, testsupport.ProjectSlug, "raw", "tape.mp4")
	if out.Status != review.StatusBackedUp || out.Path != want || out.Message != "Backup completed to "+want {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("NAS copy missing: %v", err)
	}
	tape, err := library.NewTapes(p.DB).Get(ctx, tapeID)
	if err != nil || tape.BackupStatus != library.BackupBackedUp {
		t.Fatalf("expected backed_up tape, got %+v %v", tape, err)
	}
	open, err := p.Reviews.List(ctx, p.DB, library.ReviewFilter{Status: library.ReviewOpen, Type: library.ReviewNeedsBackup})
	if err != nil || len(open) != 0 {
		t.Fatalf("expected item resolved, got %d open (%v)", len(open), err)
	}
}

func TestRetryBackupRejectsBadItems(t *testing.T) {
	ctx := context.Background()
	p, sess, _, tapeID := offlineProject(t)

	metadata, err := p.Reviews.List(ctx, p.DB, library.ReviewFilter{Type: library.ReviewNeedsMetadata})
	if err != nil || len(metadata) != 1 {
		t.Fatalf("expected a metadata item, got %d (%v)", len(metadata), err)
	}
	tape, err := library.NewTapes(p.DB).Get(ctx, tapeID)
	if err != nil {
		t.Fatalf("Get tape: %v", err)
	}
	item := backupItem(t, p)

	tests := []struct {
		name   string
		itemID int64
		setup  func(t *testing.T)
		want   string
	}{
		{name: "unknown item", itemID: 999, want: "Review item not found."},
		{name: "wrong type", itemID: metadata[0].ID, want: "Review item cannot be retried."},
		{
			name:   "raw file gone",
			itemID: item.ID,
			setup: func(t *testing.T) {
				if err := os.Remove(tape.RawPath); err != nil {
					t.Fatalf("remove raw: %v", err)
				}
			},
			want: "Raw file not found for retry.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setup != nil {
				tt.setup(t)
			}
			out, err := p.Reviews.RetryBackup(ctx, sess, tt.itemID)
			if err != nil {
				t.Fatalf("RetryBackup: %v", err)
			}
			if out.Status != review.StatusError || out.Message != tt.want {
				t.Fatalf("got %+v, want %q", out, tt.want)
			}
		})
	}
}

func TestRetryAllOpen(t *testing.T) {
	ctx := context.Background()
	p, sess, nas, _ := offlineProject(t)

	summary, err := p.Reviews.RetryAllOpen(ctx, sess)
	if err != nil || summary.Attempted != 0 {
		t.Fatalf("offline sweep should not attempt anything: %+v %v", summary, err)
	}

	if err := os.MkdirAll(nas, 0o755); err != nil {
		t.Fatalf("bring NAS online: %v", err)
	}
	summary, err = p.Reviews.RetryAllOpen(ctx, sess)
	if err != nil {
		t.Fatalf("RetryAllOpen: %v", err)
	}
	if summary.Attempted != 1 || summary.BackedUp != 1 || summary.Failed != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	p, sess, _, _ := offlineProject(t)
	item := backupItem(t, p)

	if err := p.Reviews.Resolve(ctx, sess, item.ID); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if err := p.Reviews.Resolve(ctx, sess, item.ID); err != nil {
		t.Fatalf("second Resolve should be harmless: %v", err)
	}
	if err := sess.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	open, err := p.Reviews.List(ctx, p.DB, library.ReviewFilter{Status: library.ReviewOpen, Type: library.ReviewNeedsBackup})
	if err != nil || len(open) != 0 {
		t.Fatalf("expected resolved item, got %d open (%v)", len(open), err)
	}

	err = p.Reviews.Resolve(ctx, sess, 12345)
	if !errors.Is(err, services.ErrNotFound) || services.UserMessage(err) != "Review item not found." {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSupersedeKeepsOneOpenItem(t *testing.T) {
	ctx := context.Background()
	p, sess, _, tapeID := offlineProject(t)

	for i := 0; i < 3; i++ {
		if _, err := p.Reviews.Supersede(ctx, sess, library.ReviewNeedsSplitReview, "split me", tapeID, nil); err != nil {
			t.Fatalf("Supersede: %v", err)
		}
	}
	if err := sess.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	open, err := p.Reviews.List(ctx, p.DB, library.ReviewFilter{Status: library.ReviewOpen, Type: library.ReviewNeedsSplitReview})
	if err != nil || len(open) != 1 {
		t.Fatalf("expected one open split review, got %d (%v)", len(open), err)
	}
	all, err := p.Reviews.List(ctx, p.DB, library.ReviewFilter{Type: library.ReviewNeedsSplitReview})
	if err != nil || len(all) != 3 {
		t.Fatalf("expected history kept, got %d (%v)", len(all), err)
	}
}
