// Package fuzzy matches model-returned tab titles against live tabs.
package fuzzy

// Distance returns the Levenshtein edit distance between a and b: the minimum
// number of single-rune insertions, deletions and substitutions that turn a
// into b. It fills the full (len(a)+1)×(len(b)+1) matrix. Comparison is
// case-sensitive; callers fold case first when they need to.
func Distance(a, b string) int {
	s1, s2 := []rune(a), []rune(b)
	m, n := len(s1), len(s2)

	dp := make([][]int, m+1)
	for i := range dp {
		dp[i] = make([]int, n+1)
		dp[i][0] = i
	}
	for j := 0; j <= n; j++ {
		dp[0][j] = j
	}

	for i := 1; i <= m; i++ {
		for j := 1; j <= n; j++ {
			if s1[i-1] == s2[j-1] {
				dp[i][j] = dp[i-1][j-1]
				continue
			}
			dp[i][j] = 1 + min(dp[i-1][j], dp[i][j-1], dp[i-1][j-1])
		}
	}
	return dp[m][n]
}

// Closest returns the index of the candidate with the smallest distance to
// needle and that distance. Ties go to the earliest candidate. It returns -1
// when there are no candidates.
func Closest(needle string, candidates []string) (int, int) {
	best, bestDist := -1, 0
	for i, c := range candidates {
		d := Distance(needle, c)
		if best == -1 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, bestDist
}
