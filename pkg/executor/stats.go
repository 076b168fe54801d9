package executor

import "github.com/yuya-takeyama/strict-backup-sync/pkg/planner"

// Stats tracks what a run changed
type Stats struct {
	Archived    int64
	Copied      int64
	BytesCopied int64
	Deleted     int64
	DirsCreated int64
	DirsRemoved int64
	Errors      int64
}

// UpdateStats updates statistics from results
func UpdateStats(stats *Stats, results []Result) {
	for _, result := range results {
		if result.Error != nil {
			stats.Errors++
			continue
		}

		stats.DirsCreated += int64(len(result.CreatedDirs))
		stats.DirsRemoved += int64(len(result.RemovedDirs))

		switch result.Item.Action {
		case planner.ActionArchive:
			stats.Archived++
		case planner.ActionCopy:
			stats.Copied++
			stats.BytesCopied += result.Bytes
		case planner.ActionDelete:
			stats.Deleted++
		}
	}
}
