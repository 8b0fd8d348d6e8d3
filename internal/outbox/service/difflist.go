package service

// DiffList returns the elements added to and removed from a list, in first-seen order.
// Duplicates are ignored on both sides, so the result only depends on set membership.
func DiffList(before, after []string) (added, removed []string) {
	beforeSet := make(map[string]struct{}, len(before))
	for _, v := range before {
		beforeSet[v] = struct{}{}
	}
	afterSet := make(map[string]struct{}, len(after))
	for _, v := range after {
		afterSet[v] = struct{}{}
	}

	seen := make(map[string]struct{}, len(after))
	for _, v := range after {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		if _, ok := beforeSet[v]; !ok {
			added = append(added, v)
		}
	}

	clear(seen)
	for _, v := range before {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		if _, ok := afterSet[v]; !ok {
			removed = append(removed, v)
		}
	}

	return added, removed
}
