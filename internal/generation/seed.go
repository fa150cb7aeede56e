package generation

import "anime-trivia-service/internal/domain"

// Both constants below are load-bearing: changing the hash or the LCG
// recurrence reassigns every date that has already been served.

// seedFor derives the shuffle seed for a (date, category) pair from a 32-bit
// rolling hash of "<date>-<category>", folded to a non-negative value.
func seedFor(date, category string) int64 {
	var h int32
	for _, c := range date + "-" + category {
		h = h<<5 - h + int32(c)
	}
	seed := int64(h)
	if seed < 0 {
		seed = -seed
	}
	return seed
}

// nextSeed advances the linear-congruential sequence mod 2^31.
func nextSeed(seed int64) int64 {
	return (seed*1103515245 + 12345) % (1 << 31)
}

// shuffleQuestions runs a seeded Fisher-Yates pass in place. Given the same
// seed and input order, the permutation is identical on every call.
func shuffleQuestions(questions []domain.Question, seed int64) {
	for i := len(questions) - 1; i > 0; i-- {
		seed = nextSeed(seed)
		j := seed % int64(i+1)
		questions[i], questions[j] = questions[j], questions[i]
	}
}
