package doc

import (
	"sort"
	"strings"
)

// leaf is a last-writer-wins register. The winner of a conflict is the write
// with the greater (lamport, site) pair.
type leaf struct {
	value   any
	lamport uint64
	site    string
	deleted bool
}

func (lf *leaf) wins(lamport uint64, site string) bool {
	if lamport != lf.lamport {
		return lamport > lf.lamport
	}
	return site > lf.site
}

// flattenValue decomposes a nested record into leaf writes. Maps recurse into
// path segments; scalars and lists are stored whole.
func flattenValue(prefix string, v any, emit func(path string, value any)) {
	if m, ok := v.(map[string]any); ok {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			flattenValue(prefix+"/"+k, m[k], emit)
		}
		return
	}
	emit(prefix, v)
}

// materialize rebuilds the nested record stored under prefix. Returns nil if
// no live leaves exist there.
func (d *Document) materialize(prefix string) map[string]any {
	full := prefix + "/"
	var root map[string]any
	for path, lf := range d.leaves {
		if lf.deleted || !strings.HasPrefix(path, full) {
			continue
		}
		if root == nil {
			root = make(map[string]any)
		}
		segs := strings.Split(path[len(full):], "/")
		m := root
		for i := 0; i < len(segs)-1; i++ {
			next, ok := m[segs[i]].(map[string]any)
			if !ok {
				next = make(map[string]any)
				m[segs[i]] = next
			}
			m = next
		}
		m[segs[len(segs)-1]] = lf.value
	}
	return root
}

// leafPathsUnder lists live leaf paths below a prefix, sorted.
func (d *Document) leafPathsUnder(prefix string) []string {
	full := prefix + "/"
	var out []string
	for path, lf := range d.leaves {
		if !lf.deleted && (path == prefix || strings.HasPrefix(path, full)) {
			out = append(out, path)
		}
	}
	sort.Strings(out)
	return out
}

// pathTouches reports whether an op path is relevant to an observed path:
// either may be an ancestor of the other.
func pathTouches(observed, opPath string) bool {
	if observed == "" || observed == opPath {
		return true
	}
	return strings.HasPrefix(opPath, observed+"/") || strings.HasPrefix(observed, opPath+"/")
}
