package preflight

import (
	"context"

	"tapedeck/internal/config"
	"tapedeck/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// RunAll executes every check for one project.
func RunAll(ctx context.Context, cfg *config.Config, paths config.ProjectPaths) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Inbox", paths.InboxDir),
		CheckDirectoryAccess("Raw masters", paths.RawDir),
		CheckDirectoryAccess("Segments", paths.SegmentsDir),
		CheckNAS(paths.NASRoot),
	}
	for _, status := range CheckSystemDeps(ctx, cfg) {
		results = append(results, FromDependency(status))
	}
	return results
}

// Failed returns the required checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed && !r.Optional {
			failed = append(failed, r)
		}
	}
	return failed
}

// FromDependency converts a binary lookup into a check result.
func FromDependency(status deps.Status) Result {
	result := Result{Name: status.Name, Passed: status.Available, Optional: status.Optional}
	if status.Available {
		result.Detail = status.Path
	} else {
		result.Detail = status.Detail
	}
	return result
}
