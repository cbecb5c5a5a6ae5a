//go:build linux

// Linux procfs probes for metrics gopsutil does not expose: system-wide file
// descriptor usage, cumulative context switches, and the total thread count.
package reader

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/runnerscope/runnerscope/internal/models"
)

// readFileDescriptors parses /proc/sys/fs/file-nr, which holds three fields:
// allocated, free, and the system-wide maximum.
func readFileDescriptors() (models.FileDescriptorStats, error) {
	data, err := os.ReadFile("/proc/sys/fs/file-nr")
	if err != nil {
		return models.FileDescriptorStats{}, err
	}
	fields := strings.Fields(string(data))
	if len(fields) < 3 {
		return models.FileDescriptorStats{}, fmt.Errorf("unexpected file-nr format: %q", string(data))
	}

	var stats models.FileDescriptorStats
	stats.Allocated, _ = strconv.ParseUint(fields[0], 10, 64)
	stats.Free, _ = strconv.ParseUint(fields[1], 10, 64)
	stats.Max, _ = strconv.ParseUint(fields[2], 10, 64)
	if stats.Max > 0 {
		stats.Percent = round2(float64(stats.Allocated) / float64(stats.Max) * 100)
	}
	return stats, nil
}

// readContextSwitches returns the cumulative context switch count from the
// "ctxt" line of /proc/stat.
func readContextSwitches() (uint64, error) {
	f, err := os.Open("/proc/stat")
	if err != nil {
		return 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "ctxt ") {
			fields := strings.Fields(line)
			if len(fields) < 2 {
				break
			}
			return strconv.ParseUint(fields[1], 10, 64)
		}
	}
	return 0, fmt.Errorf("no ctxt line in /proc/stat")
}

// readThreadCount counts entries under /proc/<pid>/task for every process.
// Processes that exit mid-walk are skipped.
func readThreadCount() (int, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return 0, err
	}

	count := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := strconv.Atoi(entry.Name()); err != nil {
			continue
		}
		tasks, err := os.ReadDir("/proc/" + entry.Name() + "/task")
		if err != nil {
			continue
		}
		count += len(tasks)
	}
	return count, nil
}
