// Package scope defines the value type identifying how broadly a role
// assignment applies: globally, to one organization, or to one branch
// within an organization.
package scope

import (
	"fmt"
	"strings"
)

// Tier names a scope level by the cardinality of its fields.
type Tier string

const (
	TierGlobal  Tier = "global"
	TierOrgWide Tier = "org-wide"
	TierBranch  Tier = "branch"
)

// Key identifies the reach of a role assignment or an access context.
// Empty fields mean "absent": a zero Key is the global scope. Keys are
// comparable with == and safe to use as map keys.
type Key struct {
	OrgID    string
	BranchID string
}

// New builds a validated Key from raw org/branch identifiers. Inputs are
// trimmed and empty strings normalized to absent before validation, so an
// empty-string org never becomes a scope distinct from global. A branch
// without an organization is rejected.
func New(orgID, branchID string) (Key, error) {
	key := Key{OrgID: strings.TrimSpace(orgID), BranchID: strings.TrimSpace(branchID)}
	if err := key.Validate(); err != nil {
		return Key{}, err
	}
	return key, nil
}

// Validate checks well-formedness: a branch requires its organization.
func (k Key) Validate() error {
	if k.BranchID != "" && k.OrgID == "" {
		return fmt.Errorf("scope: branch %q given without organization: %w", k.BranchID, ErrInvalidScope)
	}
	return nil
}

// Global returns the scope that applies to every context.
func Global() Key { return Key{} }

// Org returns an organization-wide scope.
func Org(orgID string) Key { return Key{OrgID: orgID} }

// Branch returns a branch-specific scope.
func Branch(orgID, branchID string) Key { return Key{OrgID: orgID, BranchID: branchID} }

// IsGlobal reports whether both fields are absent.
func (k Key) IsGlobal() bool { return k.OrgID == "" && k.BranchID == "" }

// IsOrgWide reports whether only the organization is set.
func (k Key) IsOrgWide() bool { return k.OrgID != "" && k.BranchID == "" }

// IsBranch reports whether both organization and branch are set.
func (k Key) IsBranch() bool { return k.OrgID != "" && k.BranchID != "" }

// Tier returns the scope level implied by the fields that are set.
func (k Key) Tier() Tier {
	switch {
	case k.OrgID == "":
		return TierGlobal
	case k.BranchID == "":
		return TierOrgWide
	default:
		return TierBranch
	}
}

// AppliesTo reports whether an assignment held at scope k is visible in the
// given access context. Global assignments apply everywhere; org-wide
// assignments apply to every branch of their organization; branch
// assignments apply only to the exact pair.
func (k Key) AppliesTo(ctx Key) bool {
	switch k.Tier() {
	case TierGlobal:
		return true
	case TierOrgWide:
		return ctx.OrgID != "" && ctx.OrgID == k.OrgID
	default:
		return ctx.OrgID != "" && ctx.BranchID != "" &&
			ctx.OrgID == k.OrgID && ctx.BranchID == k.BranchID
	}
}

// String renders the key for logs and cache keys.
func (k Key) String() string {
	switch k.Tier() {
	case TierGlobal:
		return "global"
	case TierOrgWide:
		return "org:" + k.OrgID
	default:
		return "org:" + k.OrgID + ":branch:" + k.BranchID
	}
}
