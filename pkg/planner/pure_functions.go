package planner

import (
	"sort"
)

// Diff compares two snapshots by (path, size) pairs. An entry is only in one
// side when its exact pair does not occur on the other side. A path collides
// when it occurs on both sides with different sizes; it is reported once.
func Diff(storage []FileEntry, backup []FileEntry) DiffResult {
	storagePairs := make(map[FileEntry]struct{})
	storageSizes := make(map[string]map[int64]struct{})
	for _, entry := range storage {
		storagePairs[entry] = struct{}{}
		addSize(storageSizes, entry)
	}

	backupPairs := make(map[FileEntry]struct{})
	backupSizes := make(map[string]map[int64]struct{})
	for _, entry := range backup {
		backupPairs[entry] = struct{}{}
		addSize(backupSizes, entry)
	}

	result := DiffResult{
		OnlyInStorage: []FileEntry{},
		OnlyInBackup:  []FileEntry{},
		Colliding:     []string{},
	}

	for _, entry := range storage {
		if _, exists := backupPairs[entry]; !exists {
			result.OnlyInStorage = append(result.OnlyInStorage, entry)
		}
	}

	for _, entry := range backup {
		if _, exists := storagePairs[entry]; !exists {
			result.OnlyInBackup = append(result.OnlyInBackup, entry)
		}
	}

	for path, srcSizes := range storageSizes {
		destSizes, exists := backupSizes[path]
		if !exists {
			continue
		}
		if sizesDiffer(srcSizes, destSizes) {
			result.Colliding = append(result.Colliding, path)
		}
	}

	sortDiffResult(&result)
	return result
}

func addSize(sizes map[string]map[int64]struct{}, entry FileEntry) {
	set, exists := sizes[entry.Path]
	if !exists {
		set = make(map[int64]struct{})
		sizes[entry.Path] = set
	}
	set[entry.Size] = struct{}{}
}

// sizesDiffer reports whether some size in a differs from some size in b.
func sizesDiffer(a, b map[int64]struct{}) bool {
	if len(a) != 1 || len(b) != 1 {
		return true
	}
	for size := range a {
		_, same := b[size]
		return !same
	}
	return false
}

// GeneratePlan builds the operations for mode from a diff.
func GeneratePlan(diff DiffResult, mode Mode) *Plan {
	if mode == ModeMirrorDelete {
		return GenerateMirrorPlan(diff)
	}
	return GenerateMergePlan(diff)
}

// GenerateMergePlan archives colliding backup files, then fills storage from
// backup, then fills backup from storage. Colliding paths are handled only
// by the archive phase.
func GenerateMergePlan(diff DiffResult) *Plan {
	archive := PhasePlan{Phase: PhaseArchive, Items: []Item{}}
	for _, path := range diff.Colliding {
		archived := path + ArchiveSuffix
		archive.Items = append(archive.Items,
			Item{
				Action:     ActionArchive,
				SourceTree: TreeBackup,
				SourcePath: path,
				TargetTree: TreeBackup,
				TargetPath: archived,
				Reason:     "size differs",
			},
			Item{
				Action:     ActionCopy,
				SourceTree: TreeBackup,
				SourcePath: archived,
				TargetTree: TreeStorage,
				TargetPath: archived,
				Reason:     "archived copy",
			},
			Item{
				Action:     ActionCopy,
				SourceTree: TreeStorage,
				SourcePath: path,
				TargetTree: TreeBackup,
				TargetPath: path,
				Reason:     "size differs",
			},
		)
		archive.Files++
	}

	fillStorage := fillPhase(PhaseFillStorage, diff.OnlyInBackup, TreeBackup, TreeStorage, diff)
	fillBackup := fillPhase(PhaseFillBackup, diff.OnlyInStorage, TreeStorage, TreeBackup, diff)

	return &Plan{
		Mode:   ModeMerge,
		Diff:   diff,
		Phases: []PhasePlan{archive, fillStorage, fillBackup},
	}
}

// GenerateMirrorPlan deletes backup files missing from storage, prunes
// empty backup directories, then fills backup from storage. Colliding paths
// are left as they are.
func GenerateMirrorPlan(diff DiffResult) *Plan {
	prune := PhasePlan{Phase: PhasePrune, Items: []Item{}}
	for _, entry := range diff.OnlyInBackup {
		if diff.IsColliding(entry.Path) {
			continue
		}
		prune.Items = append(prune.Items, Item{
			Action:     ActionDelete,
			TargetTree: TreeBackup,
			TargetPath: entry.Path,
			Size:       entry.Size,
			Reason:     "not in storage",
		})
		prune.Files++
	}
	prune.Items = append(prune.Items, Item{
		Action:     ActionPrune,
		TargetTree: TreeBackup,
		Reason:     "empty directories",
	})

	fillBackup := fillPhase(PhaseFillBackup, diff.OnlyInStorage, TreeStorage, TreeBackup, diff)

	return &Plan{
		Mode:   ModeMirrorDelete,
		Diff:   diff,
		Phases: []PhasePlan{prune, fillBackup},
	}
}

func fillPhase(phase Phase, entries []FileEntry, from, to Tree, diff DiffResult) PhasePlan {
	plan := PhasePlan{Phase: phase, Items: []Item{}}
	for _, entry := range entries {
		if diff.IsColliding(entry.Path) {
			continue
		}
		plan.Items = append(plan.Items, Item{
			Action:     ActionCopy,
			SourceTree: from,
			SourcePath: entry.Path,
			TargetTree: to,
			TargetPath: entry.Path,
			Size:       entry.Size,
			Reason:     "not in " + string(to),
		})
		plan.Files++
	}
	return plan
}

func sortDiffResult(result *DiffResult) {
	sortEntries := func(entries []FileEntry) {
		sort.SliceStable(entries, func(i, j int) bool {
			if entries[i].Path != entries[j].Path {
				return entries[i].Path < entries[j].Path
			}
			return entries[i].Size < entries[j].Size
		})
	}

	sortEntries(result.OnlyInStorage)
	sortEntries(result.OnlyInBackup)
	sort.Strings(result.Colliding)
}
