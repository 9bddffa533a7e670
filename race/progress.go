package race

// Progress returns how much of target has been correctly typed, as an
// integer percentage in [0, 100].
//
// Characters are compared position-for-position up to the shorter of
// the two strings; there is no realignment after a mismatch, so a
// single wrong character marks everything after it incorrect until the
// input once again matches the target index-for-index. Characters
// typed past the end of target are ignored. An empty target counts as
// fully typed.
func Progress(typed, target string) int {
	targetRunes := []rune(target)
	if len(targetRunes) == 0 {
		return 100
	}

	typedRunes := []rune(typed)
	limit := len(typedRunes)
	if len(targetRunes) < limit {
		limit = len(targetRunes)
	}

	correct := 0
	for i := 0; i < limit; i++ {
		if typedRunes[i] == targetRunes[i] {
			correct++
		}
	}

	percent := 100 * correct / len(targetRunes)
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}
