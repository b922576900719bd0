package discovery

// Equal implements the §4.E diff algorithm: two ServiceMaps are equal iff
// they have the same set of service names and, for every name, the same
// sorted list of ServiceIDs. Metadata/weight/scheme changes on an existing
// ServiceID are deliberately ignored — see DESIGN.md's resolution of the
// corresponding §9 open question.
func Equal(a, b ServiceMap) bool {
	if len(a.names) != len(b.names) {
		return false
	}
	for i, name := range a.names {
		if b.names[i] != name {
			return false
		}
		ai := a.instances[name]
		bi := b.instances[name]
		if len(ai) != len(bi) {
			return false
		}
		for j := range ai {
			if ai[j].ServiceID != bi[j].ServiceID {
				return false
			}
		}
	}
	return true
}
