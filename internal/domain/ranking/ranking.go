// Package ranking assigns competition ranks to score-ordered rows.
package ranking

// Competition returns 1-based competition ranks for scores already sorted in
// descending order: tied scores share the position of the first tied row and
// the next distinct score takes its own position, so [100 100 90] -> [1 1 3].
func Competition(scores []float64) []int {
	ranks := make([]int, len(scores))
	for i := range scores {
		if i > 0 && scores[i] == scores[i-1] {
			ranks[i] = ranks[i-1]
			continue
		}
		ranks[i] = i + 1
	}
	return ranks
}

// Assign writes competition ranks into rows through score and set.
func Assign[T any](rows []T, score func(*T) float64, set func(*T, int)) {
	scores := make([]float64, len(rows))
	for i := range rows {
		scores[i] = score(&rows[i])
	}
	for i, r := range Competition(scores) {
		set(&rows[i], r)
	}
}
