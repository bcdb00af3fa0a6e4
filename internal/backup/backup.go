// Package backup copies raw tape files to the NAS mount.
//
// Backups are best effort. Nothing here returns an error to the caller; every
// failure becomes an Outcome with OK=false and a message that ingest and the
// review queue record for a later retry.
package backup

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"tapedeck/internal/config"
	"tapedeck/internal/fileutil"
	"tapedeck/internal/logging"
)

const (
	msgUnavailable = "NAS not available"
	msgNoDirs      = "NAS directories could not be created"
)

// Target is the NAS destination for one project.
type Target struct {
	root   string
	rawDir string
	logger *slog.Logger
}

// Outcome reports a single backup attempt.
type Outcome struct {
	OK bool
	// Path is the file written on the NAS; empty unless OK.
	Path  string
	Error string
}

// New builds the backup target for the project's NAS paths.
func New(paths config.ProjectPaths, logger *slog.Logger) *Target {
	return &Target{
		root:   strings.TrimSpace(paths.NASRoot),
		rawDir: paths.NASRawBackupDir,
		logger: logging.NewComponentLogger(logger, "backup"),
	}
}

// Dir returns the NAS directory raw files are copied into.
func (t *Target) Dir() string {
	return t.rawDir
}

// Available reports whether the NAS root is a mounted, writable directory.
// Any stat or permission failure counts as unavailable.
func (t *Target) Available() bool {
	if t == nil || t.root == "" {
		return false
	}
	info, err := os.Stat(t.root)
	if err != nil || !info.IsDir() {
		return false
	}
	return unix.Access(t.root, unix.R_OK|unix.W_OK|unix.X_OK) == nil
}

func (t *Target) ensureDirs() bool {
	if t.rawDir == "" {
		return false
	}
	return os.MkdirAll(t.rawDir, 0o755) == nil
}

// Copy places rawPath on the NAS under a conflict-free name.
func (t *Target) Copy(ctx context.Context, rawPath string) (outcome Outcome) {
	logger := logging.WithContext(ctx, t.logger)
	defer func() {
		if r := recover(); r != nil {
			outcome = Outcome{Error: fmt.Sprintf("backup panic: %v", r)}
		}
		if !outcome.OK {
			logging.WarnWithContext(logger, "NAS backup failed", "nas_backup_failed",
				logging.String("source", rawPath),
				logging.String("destination_dir", t.rawDir),
				logging.String("error", outcome.Error),
				logging.String(logging.FieldErrorHint, "check the NAS mount, then retry from the review queue"),
				logging.String(logging.FieldImpact, "raw file has no off-site copy yet"),
			)
		}
	}()

	if !t.Available() {
		return Outcome{Error: msgUnavailable}
	}
	if !t.ensureDirs() {
		return Outcome{Error: msgNoDirs}
	}
	if err := ctx.Err(); err != nil {
		return Outcome{Error: err.Error()}
	}
	destination := fileutil.PlaceWithoutConflict(t.rawDir, filepath.Base(rawPath))
	if err := fileutil.CopyPreservingMetadata(rawPath, destination); err != nil {
		return Outcome{Error: err.Error()}
	}
	logger.Info("NAS backup completed",
		logging.Event("nas_backup_complete"),
		logging.String("source", rawPath),
		logging.String("destination", destination),
	)
	return Outcome{OK: true, Path: destination}
}
