package planner

// ArchiveSuffix is appended to a backup file's name when a same-named
// storage file of a different size replaces it.
const ArchiveSuffix = "__old"

type Mode string

const (
	ModeMerge        Mode = "merge"
	ModeMirrorDelete Mode = "mirror-delete"
)

// Tree names one side of a reconciliation.
type Tree string

const (
	TreeStorage Tree = "storage"
	TreeBackup  Tree = "backup"
)

// FileEntry identifies a file by its slash-separated path relative to the
// tree root and its size in bytes.
type FileEntry struct {
	Path string
	Size int64
}

type Snapshot struct {
	Root    string
	Entries []FileEntry
}

// DiffResult classifies the entries of two snapshots. OnlyInStorage and
// OnlyInBackup compare (path, size) pairs, so a path present on both sides
// with different sizes shows up in both lists as well as in Colliding.
type DiffResult struct {
	OnlyInStorage []FileEntry
	OnlyInBackup  []FileEntry
	Colliding     []string
}

// IsColliding reports whether path is in d.Colliding.
func (d DiffResult) IsColliding(path string) bool {
	for _, c := range d.Colliding {
		if c == path {
			return true
		}
	}
	return false
}

type Options struct {
	Mode            Mode
	Excludes        []string
	IncludeArchives bool
}

type Action string

const (
	ActionArchive Action = "archive"
	ActionCopy    Action = "copy"
	ActionDelete  Action = "delete"
	ActionPrune   Action = "prune"
)

type Phase string

const (
	PhaseArchive     Phase = "archive"
	PhaseFillStorage Phase = "fill-storage"
	PhaseFillBackup  Phase = "fill-backup"
	PhasePrune       Phase = "prune"
)

// Item is a single filesystem operation. Archive renames SourcePath to
// TargetPath inside SourceTree. Delete and prune only use the target fields.
type Item struct {
	Action     Action
	SourceTree Tree
	SourcePath string
	TargetTree Tree
	TargetPath string
	Size       int64
	Reason     string
}

// PhasePlan is an ordered group of items. Files counts the entries the
// phase handles, which differs from len(Items) when one entry needs several
// operations.
type PhasePlan struct {
	Phase Phase
	Files int
	Items []Item
}

type Plan struct {
	Mode   Mode
	Diff   DiffResult
	Phases []PhasePlan
}

// Items returns every item of the plan in execution order.
func (p *Plan) Items() []Item {
	var items []Item
	for _, phase := range p.Phases {
		items = append(items, phase.Items...)
	}
	return items
}
