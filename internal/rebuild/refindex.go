package rebuild

import (
	"fmt"

	"github.com/samwillis/solidtype-core/internal/feature"
	"github.com/samwillis/solidtype-core/internal/kernel"
)

// Location resolves a persistent face descriptor to a concrete kernel face.
type Location struct {
	BodyID    string `json:"bodyId"`
	FaceIndex int    `json:"faceIndex"`
}

// RefIndex maps persistent face descriptors to (body, kernel index) pairs.
// It is rebuilt after interpretation, before publishing; descriptors that no
// longer match simply miss, and the features depending on them fail with
// INVALID_REFERENCE.
//
// Two descriptor families resolve for each face:
//
//	face:<featureId>:<kernelIndex>   raw ordinal
//	face:<featureId>:<role><n>       geometric role plus ordinal within role
//
// Single-instance roles (top, bottom) also resolve without the ordinal.
type RefIndex map[string]Location

// BuildRefIndex derives the descriptor table from the registry.
func BuildRefIndex(reg *Registry) RefIndex {
	idx := make(RefIndex)
	for _, entry := range reg.List() {
		roleCount := map[kernel.Role]int{}
		for _, f := range entry.Body.Faces {
			loc := Location{BodyID: entry.ID, FaceIndex: f.Index}
			idx[feature.FaceRef(entry.Feature, f.Index)] = loc
			n := roleCount[f.Role]
			roleCount[f.Role]++
			idx[feature.FaceRoleRef(entry.Feature, fmt.Sprintf("%s%d", f.Role, n))] = loc
		}
		// Bare role selectors for roles that occur exactly once.
		for role, n := range roleCount {
			if n == 1 {
				withOrdinal := feature.FaceRoleRef(entry.Feature, fmt.Sprintf("%s0", role))
				idx[feature.FaceRoleRef(entry.Feature, string(role))] = idx[withOrdinal]
			}
		}
	}
	return idx
}

// Lookup resolves a face descriptor. A miss returns false; callers translate
// that into INVALID_REFERENCE.
func (idx RefIndex) Lookup(descriptor string) (Location, bool) {
	loc, ok := idx[descriptor]
	return loc, ok
}

// ResolveFaceOn resolves a parsed face reference against one body, accepting
// either the raw kernel index or a role selector ("top", "side2", ...).
func ResolveFaceOn(entry *BodyEntry, ref feature.Ref) (*kernel.Face, bool) {
	if ref.HasIndex {
		return entry.Body.Face(ref.Index)
	}
	role, ordinal := splitRoleSelector(ref.Selector)
	n := 0
	for _, f := range entry.Body.Faces {
		if string(f.Role) == role {
			if n == ordinal {
				return f, true
			}
			n++
		}
	}
	return nil, false
}

func splitRoleSelector(sel string) (role string, ordinal int) {
	i := len(sel)
	for i > 0 && sel[i-1] >= '0' && sel[i-1] <= '9' {
		i--
	}
	role = sel[:i]
	for _, c := range sel[i:] {
		ordinal = ordinal*10 + int(c-'0')
	}
	return role, ordinal
}

// ResolveFace resolves a face descriptor against the live registry.
func (idx RefIndex) ResolveFace(reg *Registry, descriptor string) (*BodyEntry, *kernel.Face, bool) {
	loc, ok := idx.Lookup(descriptor)
	if !ok {
		return nil, nil, false
	}
	entry, ok := reg.Get(loc.BodyID)
	if !ok {
		return nil, nil, false
	}
	face, ok := entry.Body.Face(loc.FaceIndex)
	if !ok {
		return nil, nil, false
	}
	return entry, face, true
}
