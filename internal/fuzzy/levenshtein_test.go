package fuzzy

import "testing"

func TestDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "abc", 0},
		{"kitten", "sitting", 3},
		{"", "abc", 3},
		{"abc", "", 3},
		{"flaw", "lawn", 2},
		{"github", "gitlab", 2},
		{"über", "uber", 1},
	}
	for _, tt := range tests {
		if got := Distance(tt.a, tt.b); got != tt.want {
			t.Errorf("Distance(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestDistanceSymmetric(t *testing.T) {
	pairs := [][2]string{
		{"kitten", "sitting"},
		{"GitHub - Pull Request #42", "Github Pull Request 42"},
		{"", "x"},
		{"Gmail", "Google Mail"},
	}
	for _, p := range pairs {
		ab, ba := Distance(p[0], p[1]), Distance(p[1], p[0])
		if ab != ba {
			t.Errorf("Distance not symmetric for %q/%q: %d vs %d", p[0], p[1], ab, ba)
		}
	}
}

func TestClosest(t *testing.T) {
	candidates := []string{"gmail", "github", "github"}

	idx, d := Closest("githab", candidates)
	if idx != 1 || d != 1 {
		t.Errorf("Closest = (%d, %d), want (1, 1)", idx, d)
	}

	idx, _ = Closest("anything", nil)
	if idx != -1 {
		t.Errorf("Closest on empty candidates = %d, want -1", idx)
	}
}
