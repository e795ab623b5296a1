package manifest

// IsSubsequence reports whether sub appears in full in the same relative
// order. On failure it returns the first identifier that breaks the
// property: either one absent from full, or one appearing out of order.
func IsSubsequence(sub, full []string) (bool, string) {
	inFull := make(map[string]bool, len(full))
	for _, id := range full {
		inFull[id] = true
	}

	fi := 0
	for _, id := range sub {
		if !inFull[id] {
			return false, id
		}
		for fi < len(full) && full[fi] != id {
			fi++
		}
		if fi == len(full) {
			// Present in full but behind the cursor: order violated.
			return false, id
		}
		fi++
	}
	return true, ""
}
