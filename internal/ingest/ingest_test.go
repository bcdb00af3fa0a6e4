package ingest_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"tapedeck/internal/ingest"
	"tapedeck/internal/library"
	"tapedeck/internal/testsupport"
	"tapedeck/internal/worker"
)

func openReviews(t *testing.T, q library.Querier, itemType library.ReviewType) []library.ReviewItem {
	t.Helper()
	items, err := library.NewReviewItems(q).List(context.Background(), library.ReviewFilter{
		Status: library.ReviewOpen,
		Type:   itemType,
	})
	if err != nil {
		t.Fatalf("list reviews: %v", err)
	}
	return items
}

func TestIngestFileCreatesTape(t *testing.T) {
	ctx := context.Background()
	cfg := testsupport.NewConfig(t)
	p := testsupport.MustOpenProject(t, cfg)
	sess := testsupport.MustSession(t, p)
	testsupport.InboxFile(t, p, "birthday_1994.mp4", 8192)

	rec := &worker.Recorder{}
	res, err := p.Ingest.IngestFile(ctx, sess, "birthday_1994.mp4", 0, rec)
	if err != nil {
		t.Fatalf("IngestFile: %v", err)
	}
	if res.Status != ingest.StatusIngested || res.TapeID != 1 || res.BackupStatus != string(library.BackupBackedUp) {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Message != "Ingested birthday_1994.mp4." || res.Redirect != "/ingest" {
		t.Fatalf("unexpected message or redirect: %+v", res)
	}

	wantSteps := []string{"Validate inputs", "Copy files", "Compute checksums", "Write DB rows", "NAS backup attempt", "Done"}
	steps := rec.Steps()
	if len(steps) != len(wantSteps) {
		t.Fatalf("steps = %v, want %v", steps, wantSteps)
	}
	for i := range wantSteps {
		if steps[i] != wantSteps[i] {
			t.Fatalf("steps = %v, want %v", steps, wantSteps)
		}
	}

	tape, err := library.NewTapes(p.DB).Get(ctx, res.TapeID)
	if err != nil || tape == nil {
		t.Fatalf("Get tape: %v %v", tape, err)
	}
	if tape.TapeCode != "TAPE_0001" || tape.Title != "birthday_1994" || tape.Status != library.TapeIngested {
		t.Fatalf("unexpected tape: %+v", tape)
	}
	if tape.RawPath != filepath.Join(p.Paths.RawDir, "birthday_1994.mp4") || tape.SHA256 == "" || tape.IngestedAt == "" {
		t.Fatalf("raw fields not recorded: %+v", tape)
	}
	if _, err := os.Stat(tape.RawPath); err != nil {
		t.Fatalf("raw copy missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(p.Paths.NASRawBackupDir, "birthday_1994.mp4")); err != nil {
		t.Fatalf("NAS copy missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(p.Paths.InboxDir, "birthday_1994.mp4")); err != nil {
		t.Fatalf("inbox file should be left in place: %v", err)
	}
	if items := openReviews(t, p.DB, library.ReviewNeedsMetadata); len(items) != 1 || items[0].TapeID == nil || *items[0].TapeID != res.TapeID {
		t.Fatalf("expected one needs_metadata item, got %+v", items)
	}
}

func TestIngestFileSkipsKnownContent(t *testing.T) {
	ctx := context.Background()
	p := testsupport.MustOpenProject(t, testsupport.NewConfig(t))
	sess := testsupport.MustSession(t, p)

	content := []byte("the same capture under two names")
	testsupport.WriteBytes(t, filepath.Join(p.Paths.InboxDir, "first.mp4"), content)
	testsupport.WriteBytes(t, filepath.Join(p.Paths.InboxDir, "copy_of_first.mp4"), content)

	first, err := p.Ingest.IngestFile(ctx, sess, "first.mp4", 0, nil)
	if err != nil || first.Status != ingest.StatusIngested {
		t.Fatalf("first ingest: %+v %v", first, err)
	}
	second, err := p.Ingest.IngestFile(ctx, sess, "copy_of_first.mp4", 0, nil)
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if second.Status != ingest.StatusAlreadyIngested || second.TapeID != first.TapeID {
		t.Fatalf("expected duplicate skip, got %+v", second)
	}
	if second.Message != "Already ingested (Tape 1)." {
		t.Fatalf("unexpected message: %q", second.Message)
	}

	tapes, err := library.NewTapes(p.DB).List(ctx)
	if err != nil || len(tapes) != 1 {
		t.Fatalf("expected a single tape, got %d (%v)", len(tapes), err)
	}
	entries, err := os.ReadDir(p.Paths.RawDir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one raw file, got %d (%v)", len(entries), err)
	}
}

func TestIngestFileRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	p := testsupport.MustOpenProject(t, testsupport.NewConfig(t))
	sess := testsupport.MustSession(t, p)
	testsupport.InboxFile(t, p, "notes.txt", 10)
	testsupport.InboxFile(t, p, "tape.mp4", 10)

	cases := []struct {
		name     string
		filename string
		tapeID   int64
		want     string
	}{
		{name: "missing", filename: "nope.mp4", want: "File not found: nope.mp4"},
		{name: "traversal", filename: "../tapedeck.db", want: "File not found: ../tapedeck.db"},
		{name: "extension", filename: "notes.txt", want: "Unsupported file type: notes.txt"},
		{name: "unknown tape", filename: "tape.mp4", tapeID: 99, want: "Tape 99 not found."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := p.Ingest.IngestFile(ctx, sess, tc.filename, tc.tapeID, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Status != ingest.StatusError || res.Message != tc.want {
				t.Fatalf("got %+v, want message %q", res, tc.want)
			}
		})
	}

	entries, err := os.ReadDir(p.Paths.RawDir)
	if err != nil || len(entries) != 0 {
		t.Fatalf("rejected input must not copy anything, got %d entries (%v)", len(entries), err)
	}
}

func TestIngestFileAttachesToExistingTape(t *testing.T) {
	ctx := context.Background()
	p := testsupport.MustOpenProject(t, testsupport.NewConfig(t))
	sess := testsupport.MustSession(t, p)

	tapeID, err := library.NewTapes(p.DB).Insert(ctx, library.NewTape{
		TapeCode: "TAPE_0001",
		Title:    "Wedding",
		Status:   library.TapeNew,
	})
	if err != nil {
		t.Fatalf("insert tape: %v", err)
	}
	unassigned, err := p.Ingest.ListUnassigned(ctx, p.DB)
	if err != nil || len(unassigned) != 1 {
		t.Fatalf("expected one unassigned tape, got %d (%v)", len(unassigned), err)
	}

	testsupport.InboxFile(t, p, "wedding.mp4", 2048)
	res, err := p.Ingest.IngestFile(ctx, sess, "wedding.mp4", tapeID, nil)
	if err != nil || res.Status != ingest.StatusIngested || res.TapeID != tapeID {
		t.Fatalf("attach ingest: %+v %v", res, err)
	}
	tape, err := library.NewTapes(p.DB).Get(ctx, tapeID)
	if err != nil || tape == nil {
		t.Fatalf("Get tape: %v", err)
	}
	if tape.Title != "Wedding" || tape.RawFilename != "wedding.mp4" {
		t.Fatalf("unexpected tape after attach: %+v", tape)
	}
	if items := openReviews(t, p.DB, library.ReviewNeedsMetadata); len(items) != 0 {
		t.Fatalf("attaching must not open a metadata review, got %+v", items)
	}
}

func TestIngestFileQueuesBackupWhenNASOffline(t *testing.T) {
	ctx := context.Background()
	cfg := testsupport.NewConfig(t, testsupport.WithNASRoot(filepath.Join(t.TempDir(), "offline")))
	p := testsupport.MustOpenProject(t, cfg)
	sess := testsupport.MustSession(t, p)
	testsupport.InboxFile(t, p, "holiday.mp4", 4096)

	res, err := p.Ingest.IngestFile(ctx, sess, "holiday.mp4", 0, nil)
	if err != nil {
		t.Fatalf("IngestFile: %v", err)
	}
	if res.Status != ingest.StatusIngested || res.BackupStatus != string(library.BackupNeedsBackup) {
		t.Fatalf("expected ingest with pending backup, got %+v", res)
	}
	items := openReviews(t, p.DB, library.ReviewNeedsBackup)
	if len(items) != 1 || items[0].TapeID == nil || *items[0].TapeID != res.TapeID {
		t.Fatalf("expected one needs_backup item, got %+v", items)
	}
	tape, err := library.NewTapes(p.DB).Get(ctx, res.TapeID)
	if err != nil || tape.BackupStatus != library.BackupNeedsBackup {
		t.Fatalf("unexpected backup status: %+v %v", tape, err)
	}
}

func TestIngestFileNormalizesNames(t *testing.T) {
	ctx := context.Background()
	p := testsupport.MustOpenProject(t, testsupport.NewConfig(t))
	sess := testsupport.MustSession(t, p)

	decomposed := "Cafe\u0301.mp4"
	composed := "Caf\u00e9.mp4"
	testsupport.InboxFile(t, p, decomposed, 512)

	res, err := p.Ingest.IngestFile(ctx, sess, composed, 0, nil)
	if err != nil || res.Status != ingest.StatusIngested {
		t.Fatalf("expected NFC lookup to find the file: %+v %v", res, err)
	}
	tape, err := library.NewTapes(p.DB).Get(ctx, res.TapeID)
	if err != nil || tape == nil {
		t.Fatalf("Get tape: %v", err)
	}
	if tape.Title != "Caf\u00e9" {
		t.Fatalf("expected composed title, got %q", tape.Title)
	}
}

func TestListInboxClassifiesFiles(t *testing.T) {
	ctx := context.Background()
	p := testsupport.MustOpenProject(t, testsupport.NewConfig(t))
	sess := testsupport.MustSession(t, p)
	testsupport.InboxFile(t, p, "b.mp4", 100)
	testsupport.InboxFile(t, p, "a.MP4", 100)
	testsupport.InboxFile(t, p, "readme.txt", 100)

	if _, err := p.Ingest.IngestFile(ctx, sess, "b.mp4", 0, nil); err != nil {
		t.Fatalf("IngestFile: %v", err)
	}

	files, err := p.Ingest.ListInbox(ctx, p.DB)
	if err != nil {
		t.Fatalf("ListInbox: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected two video files, got %+v", files)
	}
	if files[0].Name != "a.MP4" || files[0].Status != ingest.FileNew {
		t.Fatalf("unexpected first entry: %+v", files[0])
	}
	if files[1].Name != "b.mp4" || files[1].Status != ingest.FileIngested || files[1].SizeBytes != 100 {
		t.Fatalf("unexpected second entry: %+v", files[1])
	}
}

func TestIsVideo(t *testing.T) {
	tests := map[string]bool{
		"tape.mp4":  true,
		"TAPE.MP4":  true,
		"tape.mov":  false,
		"tape":      false,
		"mp4":       false,
		"a.mp4.txt": false,
	}
	for name, want := range tests {
		if got := ingest.IsVideo(name); got != want {
			t.Fatalf("IsVideo(%q) = %v, want %v", name, got, want)
		}
	}
}
