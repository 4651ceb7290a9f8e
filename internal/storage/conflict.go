package storage

import "github.com/go-omads/omads/internal/target"

// Policy selects a conflict-resolution strategy (spec §4.3, §6 conflict_policy).
type Policy uint8

const (
	// PreferLocal: on a collision, local wins; the remote command is
	// acknowledged RESOLVED_CLIENT_WINNING/ALREADY_EXISTS and the local
	// modification is preserved for upload.
	PreferLocal Policy = iota

	// PreferRemote: remote wins; the local entry is removed from
	// LocalChanges so it will not be re-sent.
	PreferRemote
)

// Op is the buffered operation kind a conflict is being resolved for.
type Op uint8

const (
	OpAdd Op = iota
	OpReplace
	OpDelete
)

// Decision is the outcome of resolving one buffered item against the local
// changes set.
type Decision struct {
	// Conflict is true if item.LocalKey collided with a local change.
	Conflict bool

	// LocalWins is true when PreferLocal resolved the collision in favor of
	// the local modification; the item must not be committed to the plugin.
	LocalWins bool

	// PreResult is the pre-commit CommitResult to report when LocalWins is
	// true (spec §4.3 "pre-commit variants... used when the local side
	// wins a conflict").
	PreResult CommitResult

	// AlreadyExists additionally marks an Add-vs-Add collision, which should
	// be reported ALREADY_EXISTS rather than RESOLVED_CLIENT_WINNING.
	AlreadyExists bool
}

// Resolver is the ConflictResolver contract (spec §4.3): for each buffered
// item it is consulted with the local-changes set.
type Resolver interface {
	Resolve(op Op, item Item, changes *target.LocalChanges) Decision
}

// PolicyResolver implements Resolver for the two recognised policies.
type PolicyResolver struct {
	Policy Policy
}

// NewResolver creates a PolicyResolver for policy.
func NewResolver(policy Policy) *PolicyResolver {
	return &PolicyResolver{Policy: policy}
}

// Resolve implements Resolver.
func (r *PolicyResolver) Resolve(op Op, item Item, changes *target.LocalChanges) Decision {
	collided, locallyAdded := localCollision(item.LocalKey, changes)
	if !collided {
		return Decision{Conflict: false}
	}

	switch r.Policy {
	case PreferLocal:
		d := Decision{Conflict: true, LocalWins: true}
		if op == OpAdd && locallyAdded {
			d.AlreadyExists = true
			d.PreResult = CommitDuplicate
			return d
		}
		switch op {
		case OpAdd:
			d.PreResult = CommitInitAdded
		case OpReplace:
			d.PreResult = CommitInitReplaced
		case OpDelete:
			d.PreResult = CommitInitDeleted
		}
		return d

	case PreferRemote:
		changes.Remove(item.LocalKey)
		return Decision{Conflict: true, LocalWins: false}

	default:
		return Decision{Conflict: true, LocalWins: false}
	}
}

// localCollision reports whether key appears in changes, and whether it was
// a local Add (as opposed to Modified/Deleted).
func localCollision(key string, changes *target.LocalChanges) (collided bool, locallyAdded bool) {
	if key == "" {
		return false, false
	}
	for _, k := range changes.Added {
		if k == key {
			return true, true
		}
	}
	for _, k := range changes.Modified {
		if k == key {
			return true, false
		}
	}
	for _, k := range changes.Deleted {
		if k == key {
			return true, false
		}
	}
	return false, false
}
