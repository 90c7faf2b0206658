package usecase

import (
	"sort"

	"github.com/finraglab/finrag/internal/core/domain"
)

const defaultRRFK = 60

// sortHitsByScore orders hits best-first, keeping the incoming order
// for equal scores.
func sortHitsByScore(hits []domain.Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
}

type rrfCandidate struct {
	hit       domain.Hit
	score     float64
	firstSeen int
}

// fuseHitsRRF merges two ranked legs by Reciprocal Rank Fusion. Each
// appearance at rank r (1-based) contributes 1/(k+r); duplicates are
// identified by (source_doc, chunk_id) and keep the payload of their
// first appearance. Ties break toward the earlier first appearance,
// which makes the output fully deterministic for fixed inputs.
func fuseHitsRRF(vectorHits, keywordHits []domain.Hit, k float64, mergeTopK int) []domain.Hit {
	if k <= 0 {
		k = defaultRRFK
	}
	acc := make(map[string]*rrfCandidate, len(vectorHits)+len(keywordHits))
	seen := 0

	accumulate := func(hits []domain.Hit) {
		for rank, h := range hits {
			cand, ok := acc[h.Key()]
			if !ok {
				cand = &rrfCandidate{hit: h, firstSeen: seen}
				seen++
				acc[h.Key()] = cand
			}
			cand.score += 1.0 / (k + float64(rank+1))
		}
	}
	accumulate(vectorHits)
	accumulate(keywordHits)

	fused := make([]*rrfCandidate, 0, len(acc))
	for _, cand := range acc {
		fused = append(fused, cand)
	}
	sort.SliceStable(fused, func(i, j int) bool {
		if fused[i].score != fused[j].score {
			return fused[i].score > fused[j].score
		}
		return fused[i].firstSeen < fused[j].firstSeen
	})

	if mergeTopK > 0 && len(fused) > mergeTopK {
		fused = fused[:mergeTopK]
	}
	out := make([]domain.Hit, len(fused))
	for i, cand := range fused {
		out[i] = cand.hit
		out[i].Score = cand.score
	}
	return out
}
