package reconcile

import (
	"errors"
	"time"

	"duet-backup/core/exclude"
	"duet-backup/core/remote"
	"duet-backup/core/source"
)

// ErrEmptySource is returned when the source produced no files. The pass is
// skipped entirely so that a source outage never empties the backup.
var ErrEmptySource = errors.New("source returned no files")

// State is the phase a pass is in.
type State string

const (
	StateEnumerating State = "enumerating"
	StateListing     State = "listing"
	StateDiffing     State = "diffing"
	StateApplying    State = "applying"
	StateReporting   State = "reporting"
	StateDone        State = "done"
	StateAborted     State = "aborted"
)

// Op is a file operation against the remote tree.
type Op string

const (
	// OpAdd creates a file that is absent remotely.
	OpAdd Op = "add"
	// OpUpdate replaces a file whose content differs.
	OpUpdate Op = "update"
	// OpDelete removes a file that no longer exists in the source.
	OpDelete Op = "delete"
	// OpRead is a failed local read during diffing.
	OpRead Op = "read"
	// OpStatus is the status file write.
	OpStatus Op = "status"
)

// Options configures an Engine.
type Options struct {
	// Branch is the target branch.
	Branch string
	// Roots are the source directories to back up.
	Roots []string
	// Exclude filters source paths. May be nil.
	Exclude *exclude.Matcher
	// Protect lists path prefixes that are never deleted.
	Protect []string
	// Delete enables removal of remote files missing from the source.
	Delete bool
	// Reserved lists additional paths that are never deleted or overwritten
	// from the source. The status file is always reserved.
	Reserved []string
	// StatusPath overrides the status file location. Defaults to README.md.
	StatusPath string
	// Now returns the backup time. Defaults to time.Now.
	Now func() time.Time
	// Notifier is told about every file that could not be read or written.
	// Defaults to source.Nop.
	Notifier source.Notifier
}

// Action is one planned write.
type Action struct {
	// Op is OpAdd, OpUpdate or OpDelete.
	Op Op `json:"op" yaml:"op"`
	// Path is the file path relative to the branch root.
	Path string `json:"path" yaml:"path"`
	// ExpectedHash is the remote hash observed at listing time.
	// Empty for OpAdd.
	ExpectedHash string `json:"expected_hash,omitempty" yaml:"expected_hash,omitempty"`
	// LocalHash is the blob hash of the source content, when it was read.
	LocalHash string `json:"local_hash,omitempty" yaml:"local_hash,omitempty"`

	// content holds the bytes read while diffing so Update does not read twice.
	content []byte
}

// Retained is a remote file kept although it is absent from the source.
type Retained struct {
	Path   string `json:"path" yaml:"path"`
	Reason string `json:"reason" yaml:"reason"`
}

// Failure records a file-local error.
type Failure struct {
	Op    Op     `json:"op" yaml:"op"`
	Path  string `json:"path" yaml:"path"`
	Error string `json:"error" yaml:"error"`
}

// PlanSummary provides aggregate counts for a plan.
type PlanSummary struct {
	SourceFiles int `json:"source_files" yaml:"source_files"`
	RemoteFiles int `json:"remote_files" yaml:"remote_files"`
	Add         int `json:"add" yaml:"add"`
	Update      int `json:"update" yaml:"update"`
	Delete      int `json:"delete" yaml:"delete"`
	Skip        int `json:"skip" yaml:"skip"`
	Retained    int `json:"retained" yaml:"retained"`
	Failed      int `json:"failed" yaml:"failed"`
}

// Plan is the outcome of diffing the source against the remote listing.
// Add, Update and Delete are disjoint.
type Plan struct {
	Branch string `json:"branch" yaml:"branch"`
	// Actions holds adds and updates in source order followed by deletes.
	Actions  []Action    `json:"actions" yaml:"actions"`
	Skipped  []string    `json:"skipped" yaml:"skipped"`
	Retained []Retained  `json:"retained" yaml:"retained"`
	Failed   []Failure   `json:"failed" yaml:"failed"`
	Summary  PlanSummary `json:"summary" yaml:"summary"`

	remote map[string]remote.Entry
}

// Paths returns the paths planned for op, in plan order.
func (p *Plan) Paths(op Op) []string {
	var out []string
	for _, a := range p.Actions {
		if a.Op == op {
			out = append(out, a.Path)
		}
	}
	return out
}

// Remote returns the listed entry for path.
func (p *Plan) Remote(path string) (remote.Entry, bool) {
	e, ok := p.remote[path]
	return e, ok
}

// Run is the record of one pass. It lives for the duration of the pass and
// is only persisted as the status file text.
type Run struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	State      State     `json:"state"`
	Added      []string  `json:"added"`
	Updated    []string  `json:"updated"`
	Deleted    []string  `json:"deleted"`
	Skipped    []string  `json:"skipped"`
	Failed     []Failure `json:"failed"`
	Error      string    `json:"error,omitempty"`
}
