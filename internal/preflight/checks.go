package preflight

import (
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"tapedeck/internal/config"
	"tapedeck/internal/deps"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckNAS reports whether the backup root is mounted. An offline NAS is
// optional: ingest continues and backups queue for review.
func CheckNAS(root string) Result {
	result := CheckDirectoryAccess("NAS backup", root)
	result.Optional = true
	if !result.Passed && strings.TrimSpace(root) != "" {
		result.Detail = fmt.Sprintf("%s (offline; backups will be queued)", root)
	}
	return result
}

// CheckSystemDeps evaluates the media tools named in the configuration.
// Both the daemon and the CLI status command use this list.
func CheckSystemDeps(_ context.Context, cfg *config.Config) []deps.Status {
	if cfg == nil {
		return nil
	}
	return deps.CheckBinaries(deps.MediaRequirements(cfg.Media.FFmpegBinary, cfg.Media.FFprobeBinary))
}
