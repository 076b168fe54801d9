package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/yuya-takeyama/strict-backup-sync/internal/logging"
	"github.com/yuya-takeyama/strict-backup-sync/pkg/executor"
	"github.com/yuya-takeyama/strict-backup-sync/pkg/fsclient"
	"github.com/yuya-takeyama/strict-backup-sync/pkg/logger"
	"github.com/yuya-takeyama/strict-backup-sync/pkg/planner"
	"go.uber.org/zap"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
	builtBy = "unknown"
)

var (
	dryRun          bool
	deleteFlag      bool
	verbose         bool
	quiet           bool
	debug           bool
	includeArchives bool
	excludes        []string
	planJSONFile    string
	resultJSONFile  string
)

// PlanResult represents the planned operations before execution
type PlanResult struct {
	Mode    string      `json:"mode"`
	Files   []PlanFile  `json:"files"`
	Summary PlanSummary `json:"summary"`
}

type PlanFile struct {
	Phase  string `json:"phase"`
	Action string `json:"action"` // "archive", "copy", "delete", "prune"
	Source string `json:"source,omitempty"`
	Target string `json:"target"`
	Reason string `json:"reason"`
}

type PlanSummary struct {
	Colliding     int `json:"colliding"`
	OnlyInStorage int `json:"only_in_storage"`
	OnlyInBackup  int `json:"only_in_backup"`
	Archive       int `json:"archive"`
	Copy          int `json:"copy"`
	Delete        int `json:"delete"`
}

// SyncResult represents the actual execution results
type SyncResult struct {
	Files   []ResultFile  `json:"files"`
	Errors  []ErrorFile   `json:"errors"`
	Summary ResultSummary `json:"summary"`
}

type ResultFile struct {
	Action string `json:"action"` // "archived", "copied", "deleted", "pruned"
	Source string `json:"source,omitempty"`
	Target string `json:"target"`
	Bytes  int64  `json:"bytes,omitempty"`
}

type ErrorFile struct {
	Action string `json:"action"`
	Source string `json:"source,omitempty"`
	Target string `json:"target"`
	Error  string `json:"error"`
}

type ResultSummary struct {
	Archived    int64 `json:"archived"`
	Copied      int64 `json:"copied"`
	BytesCopied int64 `json:"bytes_copied"`
	Deleted     int64 `json:"deleted"`
	DirsCreated int64 `json:"dirs_created"`
	DirsRemoved int64 `json:"dirs_removed"`
	Failed      int64 `json:"failed"`
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "strict-backup-sync <storage> <backup>",
		Short: "Reconcile a backup directory with a storage directory by path and size",
		Long: `strict-backup-sync brings a backup directory in line with a storage directory.
Files are identified by relative path and compared by size only.

Without --delete, files missing on either side are copied over. When a file
exists on both sides with different sizes, the backup copy is renamed to
<name>__old, that archive is copied to storage, and the storage file is
copied to backup.

With --delete, backup files missing from storage are deleted together with
directories left empty, and storage files missing from backup are copied.
Files with different sizes on both sides are left untouched.`,
		Version:      fmt.Sprintf("%s (commit: %s, built at: %s by %s)", version, commit, date, builtBy),
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE:         run,
	}

	rootCmd.Flags().BoolVarP(&deleteFlag, "delete", "d", false, "Delete backup files not in storage instead of merging")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print every file operation")
	rootCmd.Flags().BoolVar(&dryRun, "dryrun", false, "Shows operations without executing")
	rootCmd.Flags().BoolVar(&quiet, "quiet", false, "Suppress non-error output")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "Print diagnostic messages to stderr")
	rootCmd.Flags().StringSliceVar(&excludes, "exclude", nil, "Exclude patterns (multiple allowed)")
	rootCmd.Flags().BoolVar(&includeArchives, "include-archives", false, "Treat *"+planner.ArchiveSuffix+" files as ordinary files")
	rootCmd.Flags().StringVar(&planJSONFile, "plan-json-file", "", "Path to output plan as JSON file")
	rootCmd.Flags().StringVar(&resultJSONFile, "result-json-file", "", "Path to output result as JSON file")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	startTime := time.Now()
	ctx := context.Background()

	diag := logging.NewDiagnostic(os.Stderr, debug)
	defer func() { _ = diag.Sync() }()

	storage, err := fsclient.NewOSClient(args[0])
	if err != nil {
		return err
	}
	backup, err := fsclient.NewOSClient(args[1])
	if err != nil {
		return err
	}

	mode := planner.ModeMerge
	if deleteFlag {
		mode = planner.ModeMirrorDelete
	}

	diag.Debug("starting",
		zap.String("storage", storage.Path("")),
		zap.String("backup", backup.Path("")),
		zap.String("mode", string(mode)),
		zap.Bool("dryrun", dryRun))

	syncLogger := &logger.SyncLogger{
		IsDryRun:  dryRun,
		IsQuiet:   quiet,
		IsVerbose: verbose,
		Out:       os.Stdout,
		ErrOut:    os.Stderr,
		Diag:      diag,
	}

	plnr := planner.NewDirPlanner(storage, backup, syncLogger)
	plan, err := plnr.Plan(ctx, planner.Options{
		Mode:            mode,
		Excludes:        excludes,
		IncludeArchives: includeArchives,
	})
	if err != nil {
		return fmt.Errorf("failed to generate plan: %w", err)
	}

	if planJSONFile != "" {
		if err := writePlanResult(planJSONFile, plan, storage, backup); err != nil {
			return fmt.Errorf("failed to write plan JSON: %w", err)
		}
	}

	exec := executor.NewExecutor(storage, backup, syncLogger)
	exec.DryRun = dryRun
	results, execErr := exec.Execute(ctx, plan)

	var stats executor.Stats
	executor.UpdateStats(&stats, results)

	if !dryRun {
		logging.PrintSummary(os.Stdout, quiet, logging.Summary{
			Archived:    stats.Archived,
			Copied:      stats.Copied,
			BytesCopied: stats.BytesCopied,
			Deleted:     stats.Deleted,
			DirsCreated: stats.DirsCreated,
			DirsRemoved: stats.DirsRemoved,
			Errors:      stats.Errors,
			Duration:    time.Since(startTime),
		})

		if resultJSONFile != "" {
			if err := writeSyncResult(resultJSONFile, buildSyncResult(results, stats, storage, backup)); err != nil {
				return fmt.Errorf("failed to write result JSON: %w", err)
			}
		}
	}

	if execErr != nil {
		diag.Debug("run aborted", zap.Error(execErr), zap.Int("completed", len(results)-1))
		return execErr
	}

	diag.Debug("finished", zap.Duration("duration", time.Since(startTime)))
	return nil
}

func buildSyncResult(results []executor.Result, stats executor.Stats, storage, backup fsclient.Client) SyncResult {
	syncResult := SyncResult{
		Files:  []ResultFile{},
		Errors: []ErrorFile{},
		Summary: ResultSummary{
			Archived:    stats.Archived,
			Copied:      stats.Copied,
			BytesCopied: stats.BytesCopied,
			Deleted:     stats.Deleted,
			DirsCreated: stats.DirsCreated,
			DirsRemoved: stats.DirsRemoved,
			Failed:      stats.Errors,
		},
	}

	for _, result := range results {
		source, target := itemPaths(result.Item, storage, backup)

		if result.Error != nil {
			syncResult.Errors = append(syncResult.Errors, ErrorFile{
				Action: string(result.Item.Action),
				Source: source,
				Target: target,
				Error:  result.Error.Error(),
			})
			continue
		}

		if result.Item.Action == planner.ActionPrune {
			for _, dir := range result.RemovedDirs {
				syncResult.Files = append(syncResult.Files, ResultFile{
					Action: "pruned",
					Target: dir,
				})
			}
			continue
		}

		syncResult.Files = append(syncResult.Files, ResultFile{
			Action: pastTense(result.Item.Action),
			Source: source,
			Target: target,
			Bytes:  result.Bytes,
		})
	}

	return syncResult
}

func writePlanResult(path string, plan *planner.Plan, storage, backup fsclient.Client) error {
	result := PlanResult{
		Mode:  string(plan.Mode),
		Files: []PlanFile{},
		Summary: PlanSummary{
			Colliding:     len(plan.Diff.Colliding),
			OnlyInStorage: len(plan.Diff.OnlyInStorage),
			OnlyInBackup:  len(plan.Diff.OnlyInBackup),
		},
	}

	for _, phase := range plan.Phases {
		for _, item := range phase.Items {
			source, target := itemPaths(item, storage, backup)
			result.Files = append(result.Files, PlanFile{
				Phase:  string(phase.Phase),
				Action: string(item.Action),
				Source: source,
				Target: target,
				Reason: item.Reason,
			})

			switch item.Action {
			case planner.ActionArchive:
				result.Summary.Archive++
			case planner.ActionCopy:
				result.Summary.Copy++
			case planner.ActionDelete:
				result.Summary.Delete++
			}
		}
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

func writeSyncResult(path string, result SyncResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

func itemPaths(item planner.Item, storage, backup fsclient.Client) (source, target string) {
	tree := func(t planner.Tree) fsclient.Client {
		if t == planner.TreeStorage {
			return storage
		}
		return backup
	}

	if item.SourceTree != "" {
		source = tree(item.SourceTree).Path(item.SourcePath)
	}
	if item.TargetTree != "" {
		target = tree(item.TargetTree).Path(item.TargetPath)
	}
	return source, target
}

func pastTense(action planner.Action) string {
	switch action {
	case planner.ActionArchive:
		return "archived"
	case planner.ActionCopy:
		return "copied"
	case planner.ActionDelete:
		return "deleted"
	case planner.ActionPrune:
		return "pruned"
	default:
		return "unknown"
	}
}
