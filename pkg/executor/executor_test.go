package executor

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuya-takeyama/strict-backup-sync/pkg/fsclient"
	"github.com/yuya-takeyama/strict-backup-sync/pkg/logger"
	"github.com/yuya-takeyama/strict-backup-sync/pkg/planner"
)

type fixture struct {
	fs      billy.Filesystem
	storage fsclient.Client
	backup  fsclient.Client
	out     *bytes.Buffer
	log     *logger.SyncLogger
}

func newFixture(t *testing.T, files map[string]int) *fixture {
	t.Helper()
	fsys := memfs.New()
	require.NoError(t, fsys.MkdirAll("storage", 0o755))
	require.NoError(t, fsys.MkdirAll("backup", 0o755))
	for name, size := range files {
		require.NoError(t, util.WriteFile(fsys, name, bytes.Repeat([]byte("x"), size), 0o644))
	}

	out := &bytes.Buffer{}
	return &fixture{
		fs:      fsys,
		storage: fsclient.NewBillyClient(fsys, "storage"),
		backup:  fsclient.NewBillyClient(fsys, "backup"),
		out:     out,
		log:     &logger.SyncLogger{IsVerbose: true, Out: out, ErrOut: out},
	}
}

func (f *fixture) run(t *testing.T, mode planner.Mode) ([]Result, error) {
	t.Helper()
	plan, err := planner.NewDirPlanner(f.storage, f.backup, f.log).Plan(context.Background(), planner.Options{Mode: mode})
	require.NoError(t, err)
	return NewExecutor(f.storage, f.backup, f.log).Execute(context.Background(), plan)
}

func (f *fixture) plan(t *testing.T, mode planner.Mode) *planner.Plan {
	t.Helper()
	plan, err := planner.NewDirPlanner(f.storage, f.backup, f.log).Plan(context.Background(), planner.Options{Mode: mode})
	require.NoError(t, err)
	return plan
}

// snapshot lists every file of a tree, archives included, as path -> size.
func snapshot(t *testing.T, client fsclient.Client) map[string]int64 {
	t.Helper()
	files := map[string]int64{}
	err := client.Walk(func(rel string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() {
			files[rel] = info.Size()
		}
		return nil
	})
	require.NoError(t, err)
	return files
}

func TestMergeScenarioA(t *testing.T) {
	f := newFixture(t, map[string]int{"storage/a.txt": 10})

	_, err := f.run(t, planner.ModeMerge)
	require.NoError(t, err)

	assert.Equal(t, map[string]int64{"a.txt": 10}, snapshot(t, f.backup))
	assert.Equal(t, map[string]int64{"a.txt": 10}, snapshot(t, f.storage))
}

func TestMergeScenarioB(t *testing.T) {
	f := newFixture(t, map[string]int{
		"storage/a.txt": 10,
		"backup/a.txt":  20,
	})

	results, err := f.run(t, planner.ModeMerge)
	require.NoError(t, err)
	require.Len(t, results, 3)

	want := map[string]int64{"a.txt": 10, "a.txt__old": 20}
	assert.Equal(t, want, snapshot(t, f.backup))
	assert.Equal(t, want, snapshot(t, f.storage))

	var stats Stats
	UpdateStats(&stats, results)
	assert.Equal(t, int64(1), stats.Archived)
	assert.Equal(t, int64(2), stats.Copied)
	assert.Equal(t, int64(30), stats.BytesCopied)
}

func TestMergeScenarioBNested(t *testing.T) {
	f := newFixture(t, map[string]int{
		"storage/docs/a.txt": 10,
		"backup/docs/a.txt":  20,
	})

	_, err := f.run(t, planner.ModeMerge)
	require.NoError(t, err)

	want := map[string]int64{"docs/a.txt": 10, "docs/a.txt__old": 20}
	assert.Equal(t, want, snapshot(t, f.backup))
	assert.Equal(t, want, snapshot(t, f.storage))
}

func TestMergeFillsBothSides(t *testing.T) {
	f := newFixture(t, map[string]int{
		"storage/shared.txt":     4,
		"backup/shared.txt":      4,
		"storage/s/only.txt":     3,
		"backup/b/deep/only.txt": 5,
	})

	results, err := f.run(t, planner.ModeMerge)
	require.NoError(t, err)

	want := map[string]int64{"shared.txt": 4, "s/only.txt": 3, "b/deep/only.txt": 5}
	assert.Equal(t, want, snapshot(t, f.storage))
	assert.Equal(t, want, snapshot(t, f.backup))

	var stats Stats
	UpdateStats(&stats, results)
	assert.Equal(t, int64(3), stats.DirsCreated)

	output := f.out.String()
	assert.Contains(t, output, "mkdir: /storage/b\n")
	assert.Contains(t, output, "mkdir: /storage/b/deep\n")
	assert.Contains(t, output, "mkdir: /backup/s\n")
	assert.Contains(t, output, "copy: /backup/b/deep/only.txt to /storage/b/deep/only.txt")
	assert.Contains(t, output, "Updating storage: /storage - from backup: /backup - with 1 file(s)...")
}

func TestMergeIsIdempotent(t *testing.T) {
	f := newFixture(t, map[string]int{
		"storage/a.txt":     10,
		"backup/a.txt":      20,
		"storage/x/s.txt":   1,
		"backup/y/b.txt":    2,
		"storage/same.txt":  3,
		"backup/same.txt":   3,
		"backup/z/c.txt":    4,
		"storage/z/c.txt":   5,
		"storage/z/d.txt":   6,
		"backup/empty.dat":  0,
		"storage/empty.dat": 0,
	})

	_, err := f.run(t, planner.ModeMerge)
	require.NoError(t, err)

	second := f.plan(t, planner.ModeMerge)
	assert.Empty(t, second.Items())
	assert.Empty(t, second.Diff.Colliding)
	assert.Empty(t, second.Diff.OnlyInStorage)
	assert.Empty(t, second.Diff.OnlyInBackup)

	// Both sides received the same archive, so archives do not show up
	// even when treated as ordinary files.
	plan, err := planner.NewDirPlanner(f.storage, f.backup, f.log).Plan(context.Background(),
		planner.Options{Mode: planner.ModeMerge, IncludeArchives: true})
	require.NoError(t, err)
	assert.Empty(t, plan.Items())
}

func TestMirrorScenarioC(t *testing.T) {
	f := newFixture(t, map[string]int{
		"storage/a.txt": 10,
		"backup/a.txt":  20,
	})

	_, err := f.run(t, planner.ModeMirrorDelete)
	require.NoError(t, err)

	assert.Equal(t, map[string]int64{"a.txt": 20}, snapshot(t, f.backup))
	assert.Equal(t, map[string]int64{"a.txt": 10}, snapshot(t, f.storage))
}

func TestMirrorScenarioD(t *testing.T) {
	f := newFixture(t, map[string]int{
		"storage/keep.txt":    1,
		"backup/keep.txt":     1,
		"backup/dir/old.txt":  2,
		"backup/dir2/old.txt": 2,
		"backup/dir2/kept":    0,
		"storage/dir2/kept":   0,
	})

	results, err := f.run(t, planner.ModeMirrorDelete)
	require.NoError(t, err)

	assert.Equal(t, map[string]int64{"keep.txt": 1, "dir2/kept": 0}, snapshot(t, f.backup))
	_, err = f.backup.Stat("dir")
	assert.True(t, os.IsNotExist(err), "emptied directory should be removed")
	_, err = f.backup.Stat("dir2")
	assert.NoError(t, err)

	var stats Stats
	UpdateStats(&stats, results)
	assert.Equal(t, int64(2), stats.Deleted)
	assert.Equal(t, int64(1), stats.DirsRemoved)
	assert.Contains(t, f.out.String(), "Clearing backup: /backup - 2 file(s) will be deleted...")
}

func TestMirrorMatchesStorageExceptCollisions(t *testing.T) {
	f := newFixture(t, map[string]int{
		"storage/a.txt":        1,
		"storage/d/b.txt":      2,
		"storage/d/e/c.txt":    3,
		"storage/collide.txt":  4,
		"backup/collide.txt":   40,
		"backup/stale.txt":     5,
		"backup/old/deep/x.js": 6,
		"backup/a.txt":         1,
	})
	require.NoError(t, f.fs.MkdirAll("backup/already/empty", 0o755))

	_, err := f.run(t, planner.ModeMirrorDelete)
	require.NoError(t, err)

	storageFiles := snapshot(t, f.storage)
	backupFiles := snapshot(t, f.backup)
	delete(storageFiles, "collide.txt")
	assert.Equal(t, int64(40), backupFiles["collide.txt"])
	delete(backupFiles, "collide.txt")
	assert.Equal(t, storageFiles, backupFiles)

	for _, dir := range []string{"old", "already"} {
		_, err := f.backup.Stat(dir)
		assert.True(t, os.IsNotExist(err), "%s should be pruned", dir)
	}
}

func TestMirrorWithSymlinkedRoots(t *testing.T) {
	base := t.TempDir()
	write := func(name string, size int) {
		t.Helper()
		path := filepath.Join(base, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("x"), size), 0o644))
	}
	write("real-storage/a.txt", 1)
	write("real-storage/d/b.txt", 2)
	write("real-backup/a.txt", 1)
	write("real-backup/stale.txt", 3)
	write("real-backup/old/x.txt", 4)

	if err := os.Symlink(filepath.Join(base, "real-storage"), filepath.Join(base, "storage")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}
	require.NoError(t, os.Symlink(filepath.Join(base, "real-backup"), filepath.Join(base, "backup")))

	storage, err := fsclient.NewOSClient(filepath.Join(base, "storage"))
	require.NoError(t, err)
	backup, err := fsclient.NewOSClient(filepath.Join(base, "backup"))
	require.NoError(t, err)

	out := &bytes.Buffer{}
	f := &fixture{storage: storage, backup: backup, out: out, log: &logger.SyncLogger{Out: out, ErrOut: out}}

	plan := f.plan(t, planner.ModeMirrorDelete)
	assert.Equal(t, []planner.FileEntry{{Path: "d/b.txt", Size: 2}}, plan.Diff.OnlyInStorage)
	assert.Equal(t, []planner.FileEntry{{Path: "old/x.txt", Size: 4}, {Path: "stale.txt", Size: 3}}, plan.Diff.OnlyInBackup)

	_, err = f.run(t, planner.ModeMirrorDelete)
	require.NoError(t, err)

	want := map[string]int64{"a.txt": 1, "d/b.txt": 2}
	assert.Equal(t, want, snapshot(t, storage))
	assert.Equal(t, want, snapshot(t, backup))
}

type failingClient struct {
	fsclient.Client
	failOn string
}

func (c *failingClient) Create(rel string, perm os.FileMode) (io.WriteCloser, error) {
	if rel == c.failOn {
		return nil, errors.New("disk full")
	}
	return c.Client.Create(rel, perm)
}

func TestExecuteAbortsOnFirstError(t *testing.T) {
	f := newFixture(t, map[string]int{
		"storage/1.txt": 1,
		"storage/2.txt": 2,
		"storage/3.txt": 3,
	})
	f.backup = &failingClient{Client: f.backup, failOn: "2.txt"}

	results, err := f.run(t, planner.ModeMerge)
	require.Error(t, err)

	assert.True(t, errors.Is(err, ErrCopy))
	assert.False(t, errors.Is(err, ErrDelete))
	var opErr *OpError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, "/storage/2.txt", opErr.Path)

	require.Len(t, results, 2)
	assert.NoError(t, results[0].Error)
	assert.Error(t, results[1].Error)

	assert.Equal(t, map[string]int64{"1.txt": 1}, snapshot(t, f.backup))
	assert.Contains(t, f.out.String(), "ERROR: copy /backup/2.txt: ")
}

func TestExecuteDryRun(t *testing.T) {
	f := newFixture(t, map[string]int{
		"storage/a.txt":       10,
		"backup/a.txt":        20,
		"storage/new/n.txt":   1,
		"storage/new/m.txt":   1,
		"storage/nest/ed/x":   1,
		"backup/gone/old.txt": 2,
	})
	f.log.IsVerbose = false
	f.log.IsDryRun = true

	before := map[string]map[string]int64{
		"storage": snapshot(t, f.storage),
		"backup":  snapshot(t, f.backup),
	}

	for _, mode := range []planner.Mode{planner.ModeMerge, planner.ModeMirrorDelete} {
		plan := f.plan(t, mode)
		exec := NewExecutor(f.storage, f.backup, f.log)
		exec.DryRun = true
		_, err := exec.Execute(context.Background(), plan)
		require.NoError(t, err)
	}

	assert.Equal(t, before["storage"], snapshot(t, f.storage))
	assert.Equal(t, before["backup"], snapshot(t, f.backup))

	output := f.out.String()
	assert.Contains(t, output, "(dryrun) archive: /backup/a.txt to /backup/a.txt__old")
	assert.Contains(t, output, "(dryrun) delete: /backup/gone/old.txt")
	assert.Equal(t, 2, strings.Count(output, "(dryrun) mkdir: /backup/new"),
		"each run reports the missing directory once")
	assert.Equal(t, 2, strings.Count(output, "(dryrun) mkdir: /backup/nest\n"))
	assert.Equal(t, 2, strings.Count(output, "(dryrun) mkdir: /backup/nest/ed\n"))
}

func TestExecuteStopsOnCancelledContext(t *testing.T) {
	f := newFixture(t, map[string]int{"storage/a.txt": 1})
	plan := f.plan(t, planner.ModeMerge)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := NewExecutor(f.storage, f.backup, f.log).Execute(ctx, plan)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
	assert.Empty(t, snapshot(t, f.backup))
}
