package storage

import (
	"errors"
	"fmt"
)

// ErrLargeObjectSizeMismatch is returned when the reassembled payload's
// length does not match the Meta/Size announced on the first fragment
// (spec §4.3 "size mismatch is a hard error").
var ErrLargeObjectSizeMismatch = errors.New("storage: large object size mismatch")

// ErrLargeObjectIdentityBreak is returned when a continuation fragment
// arrives for a different local/remote key than the one the assembler is
// currently reassembling (spec §4.3 "a fragment sequence must target one
// item").
var ErrLargeObjectIdentityBreak = errors.New("storage: large object fragment targets a different item")

// ErrLargeObjectInterleaved is returned when a fragment for a new item
// arrives while a different large object reassembly is already in progress.
// The prior reassembly is aborted (spec §3 "any violation of invariants...
// aborts the large object", §4.3 "only one in-progress object at a time").
var ErrLargeObjectInterleaved = errors.New("storage: large object interleaved with another item")

// largeObjectState tracks the one in-flight reassembly, identified by the
// target/source key the first fragment declared.
type largeObjectState struct {
	localKey  string
	remoteKey string
	declared  int64
	data      []byte
}

// matches reports whether localKey/remoteKey identify the same item this
// state is reassembling. An empty key on either side is treated as a
// wildcard, mirroring how SyncML items may omit Target or Source.
func (st *largeObjectState) matches(localKey, remoteKey string) bool {
	if localKey != "" && st.localKey != "" && localKey != st.localKey {
		return false
	}
	if remoteKey != "" && st.remoteKey != "" && remoteKey != st.remoteKey {
		return false
	}
	return true
}

// LargeObjectAssembler reassembles a MoreData-chunked item across multiple
// inbound messages (spec §4.3, §5 "sessions suspend across chunk
// boundaries"). It is a per-session singleton (spec §3, §4.3 "only one
// in-progress object at a time"): reassembly identity is the item's
// Target/Source key, not the command id a fragment happens to arrive under,
// since command ids reset to 1 at the start of every message and so cannot
// correlate fragments across messages.
type LargeObjectAssembler struct {
	current *largeObjectState
}

// NewLargeObjectAssembler creates an empty assembler.
func NewLargeObjectAssembler() *LargeObjectAssembler {
	return &LargeObjectAssembler{}
}

// Begin starts a new reassembly for localKey/remoteKey, declaring the total
// size from the first fragment's Meta/Size. If a different object is
// already in flight, that reassembly is aborted and ErrLargeObjectInterleaved
// is returned; the caller must not treat this fragment as accepted.
func (a *LargeObjectAssembler) Begin(localKey, remoteKey string, declaredSize int64, first []byte) error {
	if a.current != nil && !a.current.matches(localKey, remoteKey) {
		a.current = nil
		return ErrLargeObjectInterleaved
	}
	st := &largeObjectState{
		localKey:  localKey,
		remoteKey: remoteKey,
		declared:  declaredSize,
		data:      make([]byte, 0, clampCap(declaredSize)),
	}
	st.data = append(st.data, first...)
	a.current = st
	return nil
}

// Append adds a continuation fragment to the in-flight reassembly. It
// returns ErrLargeObjectIdentityBreak if localKey/remoteKey do not match the
// fragment that started the sequence, and aborts the in-flight object.
func (a *LargeObjectAssembler) Append(localKey, remoteKey string, chunk []byte) error {
	st := a.current
	if st == nil {
		return fmt.Errorf("storage: no in-flight large object")
	}
	if !st.matches(localKey, remoteKey) {
		a.current = nil
		return ErrLargeObjectIdentityBreak
	}
	st.data = append(st.data, chunk...)
	return nil
}

// Finalize completes the in-flight reassembly, appending the last fragment
// and validating the total length against the declared size. The assembler
// forgets the object whether finalization succeeds or fails, freeing it for
// the next large object.
func (a *LargeObjectAssembler) Finalize(localKey, remoteKey string, last []byte) (Item, error) {
	st := a.current
	if st == nil {
		return Item{}, fmt.Errorf("storage: no in-flight large object")
	}
	if !st.matches(localKey, remoteKey) {
		a.current = nil
		return Item{}, ErrLargeObjectIdentityBreak
	}
	a.current = nil
	st.data = append(st.data, last...)

	if st.declared > 0 && int64(len(st.data)) != st.declared {
		return Item{}, fmt.Errorf("%w: declared %d, got %d", ErrLargeObjectSizeMismatch, st.declared, len(st.data))
	}

	key := st.localKey
	if key == "" {
		key = localKey
	}
	return Item{LocalKey: key, RemoteKey: st.remoteKey, Payload: st.data}, nil
}

// Abandon discards the in-flight reassembly, if any; the next Begin starts
// a fresh object.
func (a *LargeObjectAssembler) Abandon() {
	a.current = nil
}

// InFlight reports whether localKey/remoteKey identify the object currently
// being reassembled. It returns false both when nothing is in flight and
// when a different object is in flight, so that callers route the fragment
// through Begin (which surfaces the interleaving as an error) rather than
// through Append.
func (a *LargeObjectAssembler) InFlight(localKey, remoteKey string) bool {
	return a.current != nil && a.current.matches(localKey, remoteKey)
}

func clampCap(declared int64) int {
	const max = 1 << 20
	if declared <= 0 || declared > max {
		return 0
	}
	return int(declared)
}
