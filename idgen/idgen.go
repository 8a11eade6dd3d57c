// Package idgen generates the identifiers jp hands out for workspaces
// and conversation targets (spec §6.3): a globally unique workspace id
// and a time-monotonic target id, both built on ksuid the way the
// teacher generates every entity id (api/workspace_api.go,
// llm2/chat_history.go's BlockIdGenerator). It also holds the two
// process-wide singletons spec §9 describes — the workspace id and the
// clock — behind a single set-once-at-load, overridable-in-tests handle.
package idgen

import (
	"sync"
	"time"

	"github.com/segmentio/ksuid"
)

// Generator produces a unique id string. Swappable in tests for
// deterministic ids, mirroring llm2.BlockIdGenerator.
type Generator func() string

// NewKsuidGenerator returns a Generator backed by ksuid.New, the
// teacher's default for non-workflow id generation.
func NewKsuidGenerator() Generator {
	return func() string {
		return ksuid.New().String()
	}
}

// mu guards the two process-wide singletons spec §9 calls out: the
// workspace id (embedded in every persisted id) and the clock. Both are
// set once at workspace load (cli's init/load path) and are re-settable
// through the same handle so tests can pin deterministic values.
var (
	mu          sync.Mutex
	workspaceID string
	clockFn     func() time.Time
)

// SetWorkspaceID installs id as the process workspace id. The CLI calls
// this once when a workspace is loaded; tests call it again to pin a
// known id before exercising code that reads Workspace().
func SetWorkspaceID(id string) {
	mu.Lock()
	defer mu.Unlock()
	workspaceID = id
}

// SetClock installs fn as the process clock, consumed by Now. The CLI
// calls this once at workspace load (normally to time.Now); tests call
// it again to pin a fixed or stepping time source.
func SetClock(fn func() time.Time) {
	mu.Lock()
	defer mu.Unlock()
	clockFn = fn
}

// Now returns the current time from the installed clock (spec §6.3's
// "Clock. now() → UTC timestamp, injectable for determinism"), defaulting
// to time.Now().UTC() until SetClock has been called.
func Now() time.Time {
	mu.Lock()
	fn := clockFn
	mu.Unlock()
	if fn == nil {
		return time.Now().UTC()
	}
	return fn().UTC()
}

// Workspace returns the process workspace id, minting and latching one
// lazily on first use (the same "ws_" + ksuid convention as
// api/workspace_api.go) if SetWorkspaceID was never called. Every caller
// within a process sees the same id, per spec §9's workspace-id
// singleton.
func Workspace() string {
	mu.Lock()
	defer mu.Unlock()
	if workspaceID == "" {
		workspaceID = "ws_" + ksuid.New().String()
	}
	return workspaceID
}

// Target returns a new conversation target id, "tgt_" followed by a
// ksuid. Ksuids embed a second-resolution timestamp in their first 4
// bytes, so ids sort lexicographically in creation order — that
// monotonicity is what lets a target id double as a creation-ordered
// key without a separate timestamp column.
func Target() string {
	return "tgt_" + ksuid.New().String()
}

// Block returns a new content-block id scoped under parentID, following
// the teacher's "<parent>:block:<ksuid>" convention from
// llm2/chat_history.go and temp_common2/llm2_chat_history.go.
func Block(parentID string) string {
	return parentID + ":block:" + ksuid.New().String()
}
