// internal/match/resolver.go
package match

import (
	"strings"

	"stayprice/internal/common/logger"
)

// DefaultCandidateCap bounds how many candidates a single resolution
// inspects. Result pages are relevance-ordered, so the right answer is
// almost always near the top.
const DefaultCandidateCap = 5

// Candidate is one scored name during resolution.
type Candidate struct {
	Name  string
	Index int
	Score float64
}

// Result is the outcome of a resolution. Best is nil when no candidate
// cleared the threshold.
type Result struct {
	Best   *Candidate
	Scores []Candidate
}

// Resolver picks the best fuzzy match for a target name out of a candidate
// list using Ratcliff/Obershelp similarity.
type Resolver struct {
	threshold    float64
	candidateCap int
	logger       logger.Logger
}

// NewResolver creates a resolver with the given acceptance threshold.
// Scores range over [0, 1]; a threshold of 0.5 accepts moderate matches.
func NewResolver(threshold float64, candidateCap int, log logger.Logger) *Resolver {
	if candidateCap <= 0 {
		candidateCap = DefaultCandidateCap
	}
	return &Resolver{
		threshold:    threshold,
		candidateCap: candidateCap,
		logger:       log.WithFields(map[string]interface{}{"component": "resolver"}),
	}
}

// Resolve scores the first candidateCap candidates against the target and
// returns the best one at or above the threshold. Ties keep the earlier
// candidate; a later score must be strictly greater to displace it.
func (r *Resolver) Resolve(target string, candidates []string) Result {
	capped := candidates
	if len(capped) > r.candidateCap {
		capped = capped[:r.candidateCap]
	}

	normalizedTarget := strings.ToLower(strings.TrimSpace(target))

	result := Result{Scores: make([]Candidate, 0, len(capped))}
	bestScore := -1.0
	bestIdx := -1
	for i, name := range capped {
		score := Ratio(normalizedTarget, strings.ToLower(strings.TrimSpace(name)))
		result.Scores = append(result.Scores, Candidate{Name: name, Index: i, Score: score})
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}

	if bestIdx < 0 || bestScore < r.threshold {
		r.logger.Debug("no candidate cleared threshold", map[string]interface{}{
			"target":     target,
			"candidates": len(capped),
			"best_score": bestScore,
			"threshold":  r.threshold,
		})
		return result
	}

	result.Best = &result.Scores[bestIdx]
	r.logger.Debug("resolved target", map[string]interface{}{
		"target":  target,
		"matched": result.Best.Name,
		"score":   result.Best.Score,
	})
	return result
}

// Ratio computes the Ratcliff/Obershelp similarity of two strings: twice
// the number of matching characters over the total length, where matches
// are found by recursing around the longest common substring. Two empty
// strings are identical (1.0); disjoint strings score 0.0.
func Ratio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1.0
	}
	return 2.0 * float64(matchingChars(ra, rb)) / float64(total)
}

func matchingChars(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	ai, bi, size := longestCommonSubstring(a, b)
	if size == 0 {
		return 0
	}

	return size +
		matchingChars(a[:ai], b[:bi]) +
		matchingChars(a[ai+size:], b[bi+size:])
}

func longestCommonSubstring(a, b []rune) (ai, bi, size int) {
	// prev[j] holds the match length ending at a[i-1], b[j-1].
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
				if cur[j] > size {
					size = cur[j]
					ai = i - size
					bi = j - size
				}
			} else {
				cur[j] = 0
			}
		}
		prev, cur = cur, prev
	}
	return ai, bi, size
}
