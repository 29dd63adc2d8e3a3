package app

import "classroom-quiz-service/internal/domain"

// samplePool draws min(size, len(pool)) questions uniformly without
// replacement using a partial Fisher-Yates shuffle over indexes, so the pool
// itself is never reordered.
func samplePool(pool []domain.Question, size int, intn func(n int) int) []domain.PublicQuestion {
	n := len(pool)
	if size > n {
		size = n
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	out := make([]domain.PublicQuestion, 0, size)
	for i := 0; i < size; i++ {
		j := i + intn(n-i)
		idx[i], idx[j] = idx[j], idx[i]
		out = append(out, pool[idx[i]].Public())
	}
	return out
}
