package scope

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRejectsBranchWithoutOrg(t *testing.T) {
	_, err := New("", "branch-1")
	require.ErrorIs(t, err, ErrInvalidScope)

	_, err = New("   ", "branch-1")
	require.ErrorIs(t, err, ErrInvalidScope)
}

func TestNewNormalizesEmptyStrings(t *testing.T) {
	key, err := New("  ", "")
	require.NoError(t, err)
	require.True(t, key.IsGlobal())
	require.Equal(t, Global(), key)

	key, err = New(" org-1 ", " ")
	require.NoError(t, err)
	require.Equal(t, Org("org-1"), key)
}

func TestTier(t *testing.T) {
	require.Equal(t, TierGlobal, Global().Tier())
	require.Equal(t, TierOrgWide, Org("o1").Tier())
	require.Equal(t, TierBranch, Branch("o1", "b1").Tier())
}

func TestAppliesToGlobal(t *testing.T) {
	global := Global()
	for _, ctx := range []Key{Global(), Org("o1"), Branch("o1", "b1"), Branch("o2", "b9")} {
		require.True(t, global.AppliesTo(ctx), "global must apply to %s", ctx)
	}
}

func TestAppliesToOrgWide(t *testing.T) {
	orgWide := Org("o1")

	require.True(t, orgWide.AppliesTo(Org("o1")))
	require.True(t, orgWide.AppliesTo(Branch("o1", "b1")))
	require.True(t, orgWide.AppliesTo(Branch("o1", "b2")))

	require.False(t, orgWide.AppliesTo(Global()))
	require.False(t, orgWide.AppliesTo(Org("o2")))
	require.False(t, orgWide.AppliesTo(Branch("o2", "b1")))
}

func TestAppliesToBranchExact(t *testing.T) {
	branch := Branch("o1", "b1")

	require.True(t, branch.AppliesTo(Branch("o1", "b1")))

	require.False(t, branch.AppliesTo(Branch("o1", "b2")))
	require.False(t, branch.AppliesTo(Org("o1")))
	require.False(t, branch.AppliesTo(Global()))
	require.False(t, branch.AppliesTo(Branch("o2", "b1")))
}

func TestKeysAreComparable(t *testing.T) {
	seen := make(map[Key]struct{})
	seen[Global()] = struct{}{}
	seen[Org("o1")] = struct{}{}
	seen[Branch("o1", "b1")] = struct{}{}
	require.Len(t, seen, 3)

	// Global and org scopes with identical fields collapse to the same key.
	_, ok := seen[Key{}]
	require.True(t, ok)
}

func TestString(t *testing.T) {
	require.Equal(t, "global", Global().String())
	require.Equal(t, "org:o1", Org("o1").String())
	require.Equal(t, "org:o1:branch:b1", Branch("o1", "b1").String())
}
