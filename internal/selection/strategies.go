// File: internal/selection/strategies.go
package selection

import (
	"github.com/xkilldash9x/patchbench/api/schemas"
)

// Strategy names one of the interchangeable selection algorithms.
type Strategy string

const (
	StrategyWeighted   Strategy = "weighted"
	StrategyRules      Strategy = "rules"
	StrategyLearned    Strategy = "learned"
	StrategyHybrid     Strategy = "hybrid"
	StrategyUserGuided Strategy = "user"
)

// Hybrid voting weights per contributing algorithm.
const (
	hybridWeightedVote = 0.4
	hybridRulesVote    = 0.3
	hybridLearnedVote  = 0.3
)

// ranking is the outcome of one strategy pass: a winning index plus the score
// assigned to every candidate, keyed by candidate ID.
type ranking struct {
	winner    int
	scores    map[string]float64
	criteria  map[string]float64
	algorithm string
}

// argmax returns the index of the strictly highest score; ties keep the
// earlier candidate, which makes every strategy stable in input order.
func argmax(candidates []schemas.GeneratedPatch, score func(schemas.GeneratedPatch) float64) (int, map[string]float64) {
	best := 0
	bestScore := score(candidates[0])
	scores := map[string]float64{candidates[0].ID: bestScore}
	for i := 1; i < len(candidates); i++ {
		s := score(candidates[i])
		scores[candidates[i].ID] = s
		if s > bestScore {
			best, bestScore = i, s
		}
	}
	return best, scores
}

// rankWeighted scores every candidate on the four weighted criteria.
func (e *Engine) rankWeighted(candidates []schemas.GeneratedPatch, selCtx Context) ranking {
	winner, scores := argmax(candidates, func(p schemas.GeneratedPatch) float64 {
		return e.cfg.ConfidenceW*p.Confidence +
			e.cfg.ImpactW*(1-impactScore(p)) +
			e.cfg.ValidationW*validationScore(p) +
			e.cfg.ContextW*contextScore(p, selCtx)
	})

	w := candidates[winner]
	return ranking{
		winner: winner,
		scores: scores,
		criteria: map[string]float64{
			"confidence": w.Confidence,
			"impact":     1 - impactScore(w),
			"validation": validationScore(w),
			"context":    contextScore(w, selCtx),
		},
		algorithm: string(StrategyWeighted),
	}
}

// rankRules applies sequential filters, then picks the highest confidence
// among the survivors. A filter that would eliminate every remaining
// candidate is skipped, so the set is never emptied.
func (e *Engine) rankRules(candidates []schemas.GeneratedPatch, selCtx Context) ranking {
	survivors := make([]int, len(candidates))
	for i := range candidates {
		survivors[i] = i
	}

	filter := func(keep func(schemas.GeneratedPatch) bool) {
		var kept []int
		for _, idx := range survivors {
			if keep(candidates[idx]) {
				kept = append(kept, idx)
			}
		}
		if len(kept) > 0 {
			survivors = kept
		}
	}

	if !e.cfg.AllowBreaking {
		filter(func(p schemas.GeneratedPatch) bool { return !p.Impact.BreakingChange })
	}
	if e.prefersDirectFix(selCtx) {
		filter(func(p schemas.GeneratedPatch) bool { return p.Type == schemas.PatchDirectFix })
	}
	if len(selCtx.PreferredTypes) > 0 {
		filter(func(p schemas.GeneratedPatch) bool { return containsType(selCtx.PreferredTypes, p.Type) })
	}
	if len(selCtx.AvoidedTypes) > 0 {
		filter(func(p schemas.GeneratedPatch) bool { return !containsType(selCtx.AvoidedTypes, p.Type) })
	}

	// Highest confidence among survivors; filtered-out candidates score 0.
	scores := make(map[string]float64, len(candidates))
	for _, p := range candidates {
		scores[p.ID] = 0
	}
	best := survivors[0]
	for _, idx := range survivors {
		scores[candidates[idx].ID] = candidates[idx].Confidence
		if candidates[idx].Confidence > candidates[best].Confidence {
			best = idx
		}
	}

	return ranking{
		winner:    best,
		scores:    scores,
		criteria:  map[string]float64{"confidence": candidates[best].Confidence},
		algorithm: string(StrategyRules),
	}
}

// prefersDirectFix reports whether the direct-fix narrowing filter applies:
// either the operator listed it, or no preference was stated at all.
func (e *Engine) prefersDirectFix(selCtx Context) bool {
	return len(selCtx.PreferredTypes) == 0 || containsType(selCtx.PreferredTypes, schemas.PatchDirectFix)
}

// defaultPreferences approximate learned per-error-type weights before any
// history accumulates.
var defaultPreferences = map[schemas.FailureType]map[schemas.PatchType]float64{
	schemas.FailureCompilation: {
		schemas.PatchImportAddition: 0.8,
		schemas.PatchDirectFix:      0.6,
		schemas.PatchConfigChange:   0.5,
	},
	schemas.FailureRuntime: {
		schemas.PatchDirectFix: 0.8,
		schemas.PatchRefactor:  0.5,
	},
	schemas.FailureAssertion: {
		schemas.PatchDirectFix: 0.7,
		schemas.PatchRefactor:  0.4,
	},
	schemas.FailureTimeout: {
		schemas.PatchDirectFix:  0.6,
		schemas.PatchWorkaround: 0.5,
	},
}

// rankLearned adds a preference weight per (failure type, patch type) pair to
// confidence and validation bonuses. The weight comes from observed history
// when available, configured defaults otherwise.
func (e *Engine) rankLearned(candidates []schemas.GeneratedPatch, selCtx Context) ranking {
	winner, scores := argmax(candidates, func(p schemas.GeneratedPatch) float64 {
		return e.preferenceWeight(selCtx.FailureType, p.Type) +
			0.5*p.Confidence +
			0.3*validationScore(p)
	})
	w := candidates[winner]
	return ranking{
		winner: winner,
		scores: scores,
		criteria: map[string]float64{
			"preference": e.preferenceWeight(selCtx.FailureType, w.Type),
			"confidence": w.Confidence,
			"validation": validationScore(w),
		},
		algorithm: string(StrategyLearned),
	}
}

func (e *Engine) preferenceWeight(failureType schemas.FailureType, patchType schemas.PatchType) float64 {
	if weight, ok := e.history.preference(failureType, patchType); ok {
		return weight
	}
	if weights, ok := defaultPreferences[failureType]; ok {
		if weight, ok := weights[patchType]; ok {
			return weight
		}
	}
	return 0.5
}

// rankHybrid runs the three base algorithms. Unanimity wins outright;
// otherwise candidates collect weighted votes.
func (e *Engine) rankHybrid(candidates []schemas.GeneratedPatch, selCtx Context) (ranking, bool) {
	weighted := e.rankWeighted(candidates, selCtx)
	rules := e.rankRules(candidates, selCtx)
	learned := e.rankLearned(candidates, selCtx)

	if weighted.winner == rules.winner && rules.winner == learned.winner {
		return ranking{
			winner:    weighted.winner,
			scores:    weighted.scores,
			criteria:  weighted.criteria,
			algorithm: string(StrategyHybrid),
		}, true
	}

	votes := make(map[string]float64, len(candidates))
	for _, p := range candidates {
		votes[p.ID] = 0
	}
	votes[candidates[weighted.winner].ID] += hybridWeightedVote
	votes[candidates[rules.winner].ID] += hybridRulesVote
	votes[candidates[learned.winner].ID] += hybridLearnedVote

	best := 0
	for i := 1; i < len(candidates); i++ {
		if votes[candidates[i].ID] > votes[candidates[best].ID] {
			best = i
		}
	}
	return ranking{
		winner:    best,
		scores:    votes,
		criteria:  map[string]float64{"votes": votes[candidates[best].ID]},
		algorithm: string(StrategyHybrid),
	}, false
}

// rankUserGuided narrows to user-preferred types and picks the highest
// confidence; with no match it falls back to global highest confidence.
func (e *Engine) rankUserGuided(candidates []schemas.GeneratedPatch, selCtx Context) ranking {
	pool := candidates
	if len(selCtx.PreferredTypes) > 0 {
		var preferred []schemas.GeneratedPatch
		for _, p := range candidates {
			if containsType(selCtx.PreferredTypes, p.Type) {
				preferred = append(preferred, p)
			}
		}
		if len(preferred) > 0 {
			pool = preferred
		}
	}

	bestID := pool[0].ID
	bestConf := pool[0].Confidence
	for _, p := range pool[1:] {
		if p.Confidence > bestConf {
			bestID, bestConf = p.ID, p.Confidence
		}
	}

	winner := 0
	scores := make(map[string]float64, len(candidates))
	for i, p := range candidates {
		scores[p.ID] = p.Confidence
		if p.ID == bestID {
			winner = i
		}
	}
	return ranking{
		winner:    winner,
		scores:    scores,
		criteria:  map[string]float64{"confidence": bestConf},
		algorithm: string(StrategyUserGuided),
	}
}
