package host

import (
	"encoding/json"
	"fmt"

	"github.com/RogersSierra/extension/pkg/core"
)

// BoneMap is a Skeleton backed by offsets the host sent once at spawn.
type BoneMap map[string]core.Vector3

// BoneOffset implements Skeleton.
func (m BoneMap) BoneOffset(name string) (core.Vector3, bool) {
	v, ok := m[name]
	return v, ok
}

// ParseBoneMap decodes {"bone":[x,y,z],...}.
func ParseBoneMap(raw string) (BoneMap, error) {
	var in map[string][3]float64
	if err := json.Unmarshal([]byte(raw), &in); err != nil {
		return nil, fmt.Errorf("failed to parse bone map: %w", err)
	}
	out := make(BoneMap, len(in))
	for name, c := range in {
		v := core.Vector3{X: c[0], Y: c[1], Z: c[2]}
		if !v.IsFinite() {
			return nil, fmt.Errorf("bone %q has non-finite offset", name)
		}
		out[name] = v
	}
	return out, nil
}
