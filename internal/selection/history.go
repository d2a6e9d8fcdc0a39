// File: internal/selection/history.go
package selection

import (
	"sync"
	"time"

	"github.com/xkilldash9x/patchbench/api/schemas"
)

// decision is one past selection outcome, retained for the learned strategy.
type decision struct {
	FailureType schemas.FailureType
	ChosenType  schemas.PatchType
	Confidence  float64
	At          time.Time
}

// decisionHistory is a bounded, engine-owned record of past decisions. Owning
// it per engine keeps parallel engines independent; there is no ambient
// state.
type decisionHistory struct {
	mu      sync.Mutex
	cap     int
	entries []decision
}

func newDecisionHistory(capacity int) *decisionHistory {
	if capacity <= 0 {
		capacity = 256
	}
	return &decisionHistory{cap: capacity}
}

// add appends a decision, evicting the oldest entry once at capacity.
func (h *decisionHistory) add(d decision) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, d)
	if len(h.entries) > h.cap {
		h.entries = h.entries[len(h.entries)-h.cap:]
	}
}

func (h *decisionHistory) len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// preference returns the observed fraction of decisions for failureType that
// chose patchType. ok is false when no decision for failureType exists yet.
func (h *decisionHistory) preference(failureType schemas.FailureType, patchType schemas.PatchType) (weight float64, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	total, chosen := 0, 0
	for _, d := range h.entries {
		if d.FailureType != failureType {
			continue
		}
		total++
		if d.ChosenType == patchType {
			chosen++
		}
	}
	if total == 0 {
		return 0, false
	}
	return float64(chosen) / float64(total), true
}
