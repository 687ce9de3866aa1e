package fetchplan

// Equal reports whether two plans are structurally equal: same owners,
// same property sets and equal nested plans. Names and property order are
// ignored. Cyclic graphs compare equal when they unfold to the same tree.
func Equal(a, b *Plan) bool {
	if a == nil || b == nil {
		return a == b
	}
	return equalNodes(a.root, b.root, make(map[nodePair]bool))
}

func equalNodes(a, b *Node, seen map[nodePair]bool) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}

	key := nodePair{a: a, b: b}
	if seen[key] {
		return true
	}
	seen[key] = true

	if a.owner != b.owner || len(a.props) != len(b.props) || len(a.nested) != len(b.nested) {
		return false
	}
	for name := range a.props {
		if !b.Has(name) {
			return false
		}
	}
	for name, an := range a.nested {
		bn, ok := b.nested[name]
		if !ok || !equalNodes(an, bn, seen) {
			return false
		}
	}
	return true
}
