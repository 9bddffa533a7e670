package race

import (
	"testing"
)

func TestProgressPrefixMatch(t *testing.T) {
	// One wrong character in the middle costs exactly that position.
	if got := Progress("abXde", "abcde"); got != 80 {
		t.Fatalf("Progress(abXde, abcde) = %d, want 80", got)
	}
}

func TestProgressExact(t *testing.T) {
	target := "The quick brown fox"
	if got := Progress(target, target); got != 100 {
		t.Fatalf("Progress(target, target) = %d, want 100", got)
	}
}

func TestProgressEmptyTyped(t *testing.T) {
	if got := Progress("", "abcde"); got != 0 {
		t.Fatalf("Progress(\"\", abcde) = %d, want 0", got)
	}
}

func TestProgressEmptyTarget(t *testing.T) {
	// Nothing left to type counts as fully typed.
	if got := Progress("whatever", ""); got != 100 {
		t.Fatalf("Progress(whatever, \"\") = %d, want 100", got)
	}
}

func TestProgressOverlongTypedIgnored(t *testing.T) {
	if got := Progress("abcdeEXTRA", "abcde"); got != 100 {
		t.Fatalf("Progress with trailing extra input = %d, want 100", got)
	}
}

func TestProgressNoRealignment(t *testing.T) {
	// A dropped character shifts everything after it, so nothing past
	// the mismatch lines up index-for-index.
	if got := Progress("acde", "abcde"); got != 20 {
		t.Fatalf("Progress(acde, abcde) = %d, want 20", got)
	}
}

func TestProgressFloors(t *testing.T) {
	// 2 of 3 correct floors to 66.
	if got := Progress("ab", "abc"); got != 66 {
		t.Fatalf("Progress(ab, abc) = %d, want 66", got)
	}
}

func TestProgressIdempotent(t *testing.T) {
	typed, target := "abXde", "abcde"
	first := Progress(typed, target)
	for i := 0; i < 10; i++ {
		if got := Progress(typed, target); got != first {
			t.Fatalf("Progress changed between calls: %d then %d", first, got)
		}
	}
}

func TestProgressMonotoneUnderCorrectExtension(t *testing.T) {
	target := "the five boxing wizards jump quickly"
	prev := 0
	for i := 1; i <= len(target); i++ {
		got := Progress(target[:i], target)
		if got < prev {
			t.Fatalf("progress regressed from %d to %d at prefix length %d", prev, got, i)
		}
		prev = got
	}
	if prev != 100 {
		t.Fatalf("full prefix reached %d, want 100", prev)
	}
}
