// Package sysinfo captures the point-in-time system context recorded at the
// start and end of a collection run, plus the static CI run metadata.
package sysinfo

import (
	"os"

	"github.com/runnerscope/runnerscope/internal/models"
	"github.com/runnerscope/runnerscope/internal/reader"
)

// Initial captures the full system snapshot stored at run start: CPU count,
// memory, swap, workspace disk space, file descriptors, TCP counts, and the
// top processes.
func Initial(r reader.Reader, workspace string, topN int) models.SystemSnapshot {
	swap := r.Swap()
	space := r.DiskSpace(workspace)
	fds := r.FileDescriptors()
	tcp := r.TCPConnections()
	return models.SystemSnapshot{
		CPUCount:        r.CPUCount(),
		Memory:          r.Memory(),
		Swap:            &swap,
		DiskSpace:       &space,
		FileDescriptors: &fds,
		TCPConnections:  &tcp,
		Processes:       r.TopProcesses(topN),
	}
}

// Final captures the reduced snapshot stored at run end: memory and the top
// processes.
func Final(r reader.Reader, topN int) models.SystemSnapshot {
	return models.SystemSnapshot{
		Memory:    r.Memory(),
		Processes: r.TopProcesses(topN),
	}
}

// GitHub reads the static run metadata from the environment the CI runner
// provides. Absent variables are recorded as "N/A" so the document shape is
// stable outside CI.
func GitHub() models.GitHubContext {
	return models.GitHubContext{
		Repository:           envOr("GITHUB_REPOSITORY"),
		Workflow:             envOr("GITHUB_WORKFLOW"),
		Job:                  envOr("GITHUB_JOB"),
		RunID:                envOr("GITHUB_RUN_ID"),
		RunNumber:            envOr("GITHUB_RUN_NUMBER"),
		Actor:                envOr("GITHUB_ACTOR"),
		RunnerOS:             envOr("RUNNER_OS"),
		RunnerName:           envOr("RUNNER_NAME"),
		RepositoryVisibility: envOr("GITHUB_REPOSITORY_VISIBILITY"),
	}
}

func envOr(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return "N/A"
}
