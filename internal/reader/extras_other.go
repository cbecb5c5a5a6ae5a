//go:build !linux

// Non-Linux stubs for the procfs-only probes. These metrics are recorded as
// zeros on macOS and Windows, keeping the persisted schema identical across
// platforms.
package reader

import "github.com/runnerscope/runnerscope/internal/models"

func readFileDescriptors() (models.FileDescriptorStats, error) {
	return models.FileDescriptorStats{}, nil
}

func readContextSwitches() (uint64, error) {
	return 0, nil
}

func readThreadCount() (int, error) {
	return 0, nil
}
