package executor

import (
	"context"
	"fmt"

	"github.com/yuya-takeyama/strict-backup-sync/pkg/fsclient"
	"github.com/yuya-takeyama/strict-backup-sync/pkg/logger"
	"github.com/yuya-takeyama/strict-backup-sync/pkg/planner"
)

// Executor applies a plan one item at a time. The first failing item stops
// the run; nothing already applied is rolled back.
type Executor struct {
	storage fsclient.Client
	backup  fsclient.Client
	logger  logger.Logger

	// DryRun logs every item without touching either tree.
	DryRun bool

	plannedDirs map[string]bool
}

func NewExecutor(storage, backup fsclient.Client, logger logger.Logger) *Executor {
	return &Executor{
		storage: storage,
		backup:  backup,
		logger:  logger,
	}
}

type Result struct {
	Item        planner.Item
	Error       error
	Bytes       int64
	CreatedDirs []string
	RemovedDirs []string
}

// Execute runs the plan and returns the results of every attempted item.
// On failure the last result carries the error, which is also returned.
func (e *Executor) Execute(ctx context.Context, plan *planner.Plan) ([]Result, error) {
	results := []Result{}
	e.plannedDirs = map[string]bool{}

	for _, phase := range plan.Phases {
		e.logger.Phase(string(phase.Phase), e.describePhase(phase))

		for _, item := range phase.Items {
			if err := ctx.Err(); err != nil {
				return results, err
			}

			result := e.executeItem(item)
			results = append(results, result)

			if result.Error != nil {
				e.logger.Error(string(item.Action), e.targetPath(item), result.Error)
				return results, result.Error
			}
		}
	}

	return results, nil
}

func (e *Executor) executeItem(item planner.Item) Result {
	result := Result{Item: item}

	switch item.Action {
	case planner.ActionArchive:
		result.Error = e.archive(item)
	case planner.ActionCopy:
		result.Bytes, result.CreatedDirs, result.Error = e.copyFile(item)
	case planner.ActionDelete:
		result.Error = e.deleteFile(item)
	case planner.ActionPrune:
		result.RemovedDirs, result.Error = e.pruneDirs(item)
	default:
		result.Error = fmt.Errorf("unknown action: %q", item.Action)
	}

	return result
}

func (e *Executor) archive(item planner.Item) error {
	client := e.client(item.SourceTree)
	e.logger.Archive(client.Path(item.SourcePath), client.Path(item.TargetPath))

	if e.DryRun {
		return nil
	}

	if err := client.Rename(item.SourcePath, item.TargetPath); err != nil {
		return &OpError{Kind: ErrRename, Path: client.Path(item.SourcePath), Err: err}
	}
	return nil
}

func (e *Executor) copyFile(item planner.Item) (int64, []string, error) {
	src := e.client(item.SourceTree)
	dst := e.client(item.TargetTree)

	var created []string
	dir := fsclient.ParentDir(item.TargetPath)
	if dir != "" {
		dirs, err := e.ensureDir(dst, dir)
		if err != nil {
			return 0, nil, &OpError{Kind: ErrMkdir, Path: dst.Path(dir), Err: err}
		}
		for _, d := range dirs {
			e.logger.Mkdir(dst.Path(d))
			created = append(created, dst.Path(d))
		}
	}

	e.logger.Copy(src.Path(item.SourcePath), dst.Path(item.TargetPath))

	if e.DryRun {
		return item.Size, created, nil
	}

	n, err := fsclient.CopyFile(src, item.SourcePath, dst, item.TargetPath)
	if err != nil {
		return n, created, &OpError{Kind: ErrCopy, Path: src.Path(item.SourcePath), Err: err}
	}
	return n, created, nil
}

// ensureDir returns the directories created for dir, outermost first. In a
// dry run it returns the ones that would be created, each only once.
func (e *Executor) ensureDir(client fsclient.Client, dir string) ([]string, error) {
	if !e.DryRun {
		return client.EnsureDir(dir, fsclient.DirPerm)
	}

	var missing []string
	for d := dir; d != ""; d = fsclient.ParentDir(d) {
		key := client.Path(d)
		if e.plannedDirs[key] {
			break
		}
		e.plannedDirs[key] = true

		if _, err := client.Stat(d); err == nil {
			break
		}
		missing = append([]string{d}, missing...)
	}
	return missing, nil
}

func (e *Executor) deleteFile(item planner.Item) error {
	client := e.client(item.TargetTree)
	e.logger.Delete(client.Path(item.TargetPath))

	if e.DryRun {
		return nil
	}

	if err := client.Remove(item.TargetPath); err != nil {
		return &OpError{Kind: ErrDelete, Path: client.Path(item.TargetPath), Err: err}
	}
	return nil
}

func (e *Executor) pruneDirs(item planner.Item) ([]string, error) {
	if e.DryRun {
		return nil, nil
	}

	client := e.client(item.TargetTree)
	removed, err := client.RemoveEmptyDirs()
	if err != nil {
		return nil, &OpError{Kind: ErrDelete, Path: client.Path(""), Err: err}
	}

	paths := make([]string, 0, len(removed))
	for _, dir := range removed {
		e.logger.Prune(client.Path(dir))
		paths = append(paths, client.Path(dir))
	}
	return paths, nil
}

func (e *Executor) describePhase(phase planner.PhasePlan) string {
	storage := e.storage.Path("")
	backup := e.backup.Path("")

	switch phase.Phase {
	case planner.PhaseArchive:
		return fmt.Sprintf("%d file(s) with same name(s) both in %s and %s have different sizes. Archiving...", phase.Files, storage, backup)
	case planner.PhaseFillStorage:
		return fmt.Sprintf("Updating storage: %s - from backup: %s - with %d file(s)...", storage, backup, phase.Files)
	case planner.PhaseFillBackup:
		return fmt.Sprintf("Updating backup: %s - from storage: %s - with %d file(s)...", backup, storage, phase.Files)
	case planner.PhasePrune:
		return fmt.Sprintf("Clearing backup: %s - %d file(s) will be deleted...", backup, phase.Files)
	default:
		return fmt.Sprintf("%s: %d file(s)", phase.Phase, phase.Files)
	}
}

func (e *Executor) targetPath(item planner.Item) string {
	if item.TargetTree == "" {
		return e.client(item.SourceTree).Path(item.SourcePath)
	}
	return e.client(item.TargetTree).Path(item.TargetPath)
}

func (e *Executor) client(tree planner.Tree) fsclient.Client {
	if tree == planner.TreeStorage {
		return e.storage
	}
	return e.backup
}
