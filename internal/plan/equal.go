package plan

// Equal reports whether two plans have the same actions in the same shape:
// source, target, flags, ordered overrides and children.
func Equal(a, b *Tree) bool {
	if a.Len() != b.Len() {
		return false
	}
	return equalChildren(a.root, b.root)
}

func equalChildren(x, y *Action) bool {
	if len(x.children) != len(y.children) {
		return false
	}
	for i := range x.children {
		if !equalAction(x.children[i], y.children[i]) {
			return false
		}
	}
	return true
}

func equalAction(x, y *Action) bool {
	if !x.source.Equal(y.source) || !x.target.Equal(y.target) {
		return false
	}
	if x.Enabled != y.Enabled || x.DeletePrevious != y.DeletePrevious {
		return false
	}
	if len(x.preferences) != len(y.preferences) || len(x.rights) != len(y.rights) {
		return false
	}
	for i := range x.preferences {
		if x.preferences[i] != y.preferences[i] {
			return false
		}
	}
	for i := range x.rights {
		if x.rights[i] != y.rights[i] {
			return false
		}
	}
	return equalChildren(x, y)
}
