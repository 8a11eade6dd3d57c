package idgen

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWorkspaceIsASetOnceSingleton(t *testing.T) {
	SetWorkspaceID("")
	a, b := Workspace(), Workspace()
	require.True(t, strings.HasPrefix(a, "ws_"))
	require.Equal(t, a, b, "Workspace must return the same id within a process")
}

func TestSetWorkspaceIDOverridesForTests(t *testing.T) {
	SetWorkspaceID("ws_fixed")
	defer SetWorkspaceID("")
	require.Equal(t, "ws_fixed", Workspace())
}

func TestSetClockPinsNow(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	SetClock(func() time.Time { return fixed })
	defer SetClock(nil)
	require.Equal(t, fixed, Now())
}

func TestTargetHasPrefixAndIsUnique(t *testing.T) {
	a, b := Target(), Target()
	require.True(t, strings.HasPrefix(a, "tgt_"))
	require.NotEqual(t, a, b)
}

func TestTargetIdsSortInCreationOrder(t *testing.T) {
	first := Target()
	second := Target()
	require.LessOrEqual(t, strings.TrimPrefix(first, "tgt_"), strings.TrimPrefix(second, "tgt_"))
}

func TestBlockIncludesParentID(t *testing.T) {
	id := Block("tgt_abc")
	require.True(t, strings.HasPrefix(id, "tgt_abc:block:"))
}

func TestNewKsuidGeneratorProducesUniqueIDs(t *testing.T) {
	gen := NewKsuidGenerator()
	require.NotEqual(t, gen(), gen())
}
