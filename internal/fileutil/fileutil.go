package fileutil

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// digestChunkSize is the read size used while hashing.
const digestChunkSize = 1 << 20

// Digest returns the hex SHA256 of the file at path, read in fixed-size chunks.
func Digest(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open for digest: %w", err)
	}
	defer file.Close()

	hasher := sha256.New()
	buf := make([]byte, digestChunkSize)
	if _, err := io.CopyBuffer(hasher, file, buf); err != nil {
		return "", fmt.Errorf("read for digest: %w", err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// PlaceWithoutConflict returns dir/filename when nothing exists there, otherwise
// the first free dir/stem_N.ext for N = 1, 2, ...
func PlaceWithoutConflict(dir, filename string) string {
	candidate := filepath.Join(dir, filename)
	if !exists(candidate) {
		return candidate
	}
	ext := filepath.Ext(filename)
	stem := strings.TrimSuffix(filename, ext)
	for counter := 1; ; counter++ {
		candidate = filepath.Join(dir, stem+"_"+strconv.Itoa(counter)+ext)
		if !exists(candidate) {
			return candidate
		}
	}
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return !errors.Is(err, fs.ErrNotExist)
}

// CopyPreservingMetadata copies src to dst along with its permission bits and
// modification time. dst must not exist; a partial dst is removed on failure.
// Verifying the copy's digest is left to the caller.
func CopyPreservingMetadata(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return err
	}
	if err := os.Chmod(dst, info.Mode().Perm()); err != nil {
		return fmt.Errorf("preserve mode: %w", err)
	}
	if err := os.Chtimes(dst, info.ModTime(), info.ModTime()); err != nil {
		return fmt.Errorf("preserve times: %w", err)
	}
	return nil
}

// FormatBytes renders a byte count for humans, e.g. "1.2 GB".
func FormatBytes(size int64) string {
	if size < 0 {
		size = 0
	}
	return humanize.Bytes(uint64(size))
}
