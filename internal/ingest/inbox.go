package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"tapedeck/internal/fileutil"
	"tapedeck/internal/library"
)

// FileStatus classifies an inbox file against the tape table.
type FileStatus string

const (
	FileNew      FileStatus = "new"
	FileIngested FileStatus = "ingested"
	FileError    FileStatus = "error"
)

// InboxFile describes one candidate capture in the inbox.
type InboxFile struct {
	Name      string
	Path      string
	SizeBytes int64
	Modified  time.Time
	Status    FileStatus
	SHA256    string
	Error     string
}

// IsVideo reports whether name carries the accepted .mp4 extension.
func IsVideo(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".mp4")
}

// ListInbox hashes every .mp4 in the inbox and reports whether each one is
// already linked to a tape. Files are sorted by name.
func (s *Service) ListInbox(ctx context.Context, q library.Querier) ([]InboxFile, error) {
	entries, err := os.ReadDir(s.paths.InboxDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read inbox: %w", err)
	}
	known, err := library.NewTapes(q).KnownDigests(ctx)
	if err != nil {
		return nil, err
	}

	files := make([]InboxFile, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !IsVideo(entry.Name()) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := filepath.Join(s.paths.InboxDir, entry.Name())
		file := InboxFile{Name: entry.Name(), Path: path, Status: FileNew}
		if info, err := entry.Info(); err == nil {
			file.SizeBytes = info.Size()
			file.Modified = info.ModTime()
		}
		digest, err := fileutil.Digest(path)
		switch {
		case err != nil:
			file.Status = FileError
			file.Error = err.Error()
		default:
			file.SHA256 = digest
			if _, ok := known[digest]; ok {
				file.Status = FileIngested
			}
		}
		files = append(files, file)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// ListUnassigned returns tapes created by hand that still wait for a raw file.
func (s *Service) ListUnassigned(ctx context.Context, q library.Querier) ([]library.Tape, error) {
	return library.NewTapes(q).ListUnassigned(ctx)
}

// resolveInboxName maps a requested filename onto the inbox entry it names.
// Names are compared after NFC normalization so a title typed on one system
// still finds a file written by another. ok is false when nothing matches.
func (s *Service) resolveInboxName(filename string) (string, bool) {
	if filename == "" || filename != filepath.Base(filename) || filename == "." || filename == ".." {
		return "", false
	}
	if info, err := os.Stat(filepath.Join(s.paths.InboxDir, filename)); err == nil && info.Mode().IsRegular() {
		return filename, true
	}
	want := norm.NFC.String(filename)
	entries, err := os.ReadDir(s.paths.InboxDir)
	if err != nil {
		return "", false
	}
	for _, entry := range entries {
		if entry.Type().IsRegular() && norm.NFC.String(entry.Name()) == want {
			return entry.Name(), true
		}
	}
	return "", false
}

// titleFromFilename derives a default tape title from the raw file stem.
func titleFromFilename(name string) string {
	return norm.NFC.String(strings.TrimSuffix(name, filepath.Ext(name)))
}
