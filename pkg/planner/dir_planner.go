package planner

import (
	"context"
	"fmt"

	"github.com/yuya-takeyama/strict-backup-sync/internal/walker"
	"github.com/yuya-takeyama/strict-backup-sync/pkg/fsclient"
	"github.com/yuya-takeyama/strict-backup-sync/pkg/logger"
)

// ArchiveExcludePattern matches archived files anywhere in a tree.
const ArchiveExcludePattern = "**/*" + ArchiveSuffix

type DirPlanner struct {
	storage fsclient.Client
	backup  fsclient.Client
	logger  logger.Logger
}

func NewDirPlanner(storage, backup fsclient.Client, logger logger.Logger) *DirPlanner {
	return &DirPlanner{
		storage: storage,
		backup:  backup,
		logger:  logger,
	}
}

func (p *DirPlanner) Plan(ctx context.Context, opts Options) (*Plan, error) {
	if opts.Mode != ModeMerge && opts.Mode != ModeMirrorDelete {
		return nil, fmt.Errorf("unknown mode: %q", opts.Mode)
	}

	excludes := opts.Excludes
	if !opts.IncludeArchives {
		excludes = append(append([]string{}, excludes...), ArchiveExcludePattern)
	}

	storageSnapshot, err := p.scan(p.storage, excludes)
	if err != nil {
		return nil, fmt.Errorf("failed to scan storage: %w", err)
	}

	backupSnapshot, err := p.scan(p.backup, excludes)
	if err != nil {
		return nil, fmt.Errorf("failed to scan backup: %w", err)
	}

	diff := Diff(storageSnapshot.Entries, backupSnapshot.Entries)
	p.logger.Debug(fmt.Sprintf("diff: %d only in storage, %d only in backup, %d colliding",
		len(diff.OnlyInStorage), len(diff.OnlyInBackup), len(diff.Colliding)))

	return GeneratePlan(diff, opts.Mode), nil
}

func (p *DirPlanner) scan(client fsclient.Client, excludes []string) (Snapshot, error) {
	w, err := walker.NewWalker(client, excludes)
	if err != nil {
		return Snapshot{}, err
	}

	files, err := w.Walk()
	if err != nil {
		return Snapshot{}, err
	}

	snapshot := Snapshot{
		Root:    client.Path(""),
		Entries: make([]FileEntry, 0, len(files)),
	}
	for _, f := range files {
		snapshot.Entries = append(snapshot.Entries, FileEntry{
			Path: f.RelPath,
			Size: f.Size,
		})
	}

	p.logger.Debug(fmt.Sprintf("scanned %s: %d files", snapshot.Root, len(snapshot.Entries)))
	return snapshot, nil
}
