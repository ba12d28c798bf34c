package domain

import "fmt"

// Role is the physical parton a fitted jet is assigned to. The numeric value
// is the slot of the role inside a jet-index quadruple.
type Role int

// Output slots of the jet-index quadruple.
const (
	RoleLightQ Role = iota
	RoleLightQBar
	RoleHadB
	RoleLepB
)

// NumRoles is the number of partons reconstructed in a semi-leptonic decay,
// and therefore the minimum number of jets an event needs.
const NumRoles = 4

// Jet type tags written by the fit engine on each fitted jet.
const (
	TagUnassigned = 0
	TagLepB       = 11
	TagHadB       = 12
	TagLightQ     = 13
	TagLightQBar  = 14
)

var roleNames = [NumRoles]string{"light_q", "light_qbar", "had_b", "lep_b"}

// String returns the snake_case role name.
func (r Role) String() string {
	if r < 0 || int(r) >= NumRoles {
		return fmt.Sprintf("role(%d)", int(r))
	}
	return roleNames[r]
}

// RoleFromTag maps a fit-engine jet type tag to its role. The boolean is false
// for tags outside the four reconstructed partons, including TagUnassigned.
func RoleFromTag(tag int) (Role, bool) {
	switch tag {
	case TagLepB:
		return RoleLepB, true
	case TagHadB:
		return RoleHadB, true
	case TagLightQ:
		return RoleLightQ, true
	case TagLightQBar:
		return RoleLightQBar, true
	}
	return 0, false
}

// UnmappedTagPolicy decides what happens to a fitted jet whose tag is neither
// a role tag nor TagUnassigned.
type UnmappedTagPolicy string

// Supported policies.
const (
	// UnmappedIgnore skips the jet and keeps the permutation.
	UnmappedIgnore UnmappedTagPolicy = "ignore"
	// UnmappedReject marks the permutation as malformed.
	UnmappedReject UnmappedTagPolicy = "reject"
)

// JetIndices maps each Role slot to the position of its jet in the input
// jet collection. Unassigned slots hold -1.
type JetIndices [NumRoles]int

// InvalidJetIndices returns a quadruple with every slot unassigned.
func InvalidJetIndices() JetIndices { return JetIndices{-1, -1, -1, -1} }

// Complete reports whether every slot holds a distinct index in [0, jetCount).
func (ji JetIndices) Complete(jetCount int) bool {
	seen := make(map[int]struct{}, NumRoles)
	for _, idx := range ji {
		if idx < 0 || idx >= jetCount {
			return false
		}
		if _, dup := seen[idx]; dup {
			return false
		}
		seen[idx] = struct{}{}
	}
	return true
}

// Slice returns the indices as a freshly allocated slice.
func (ji JetIndices) Slice() []int {
	out := make([]int, NumRoles)
	copy(out, ji[:])
	return out
}
