package domain

import "encoding/json"

// GameState is the durable tree of named sub-maps attached to a match:
// per-participant answers, per-phase score breakdowns, the current phase
// marker, option-shuffle mappings, and so on. Writers never persist a whole
// tree; they persist a delta holding only the sub-trees they touched, and the
// store merges that delta into the latest persisted value.
type GameState map[string]any

// Well-known top-level keys.
const (
	StateScores         = "scores"         // participant id -> cumulative score
	StatePreviousScores = "previousScores" // participant id -> score before last merge
	StatePhaseScores    = "phaseScores"    // phase -> participant id -> contribution
	StateEliminated     = "eliminated"     // participant id -> true
	StateCurrentPhase   = "currentPhase"   // string marker for reconnect snapshots
	StateOptionOrder    = "optionOrder"    // phase -> question id -> shuffled option ids
)

// MergeState merges delta into base, recursing into sub-maps so sibling
// sub-trees a writer did not touch survive. Non-map values overwrite.
func MergeState(base, delta GameState) GameState {
	if base == nil {
		base = GameState{}
	}
	for key, value := range delta {
		sub, okSub := toMap(value)
		existing, okExisting := toMap(base[key])
		if okSub && okExisting {
			base[key] = map[string]any(MergeState(existing, sub))
			continue
		}
		base[key] = value
	}
	return base
}

// Clone deep-copies the tree through a JSON round-trip so callers can mutate
// the copy without racing readers of the original.
func (g GameState) Clone() GameState {
	if g == nil {
		return GameState{}
	}
	raw, err := json.Marshal(g)
	if err != nil {
		return GameState{}
	}
	var out GameState
	if err := json.Unmarshal(raw, &out); err != nil {
		return GameState{}
	}
	return out
}

// IntMap reads a participant->int sub-map, tolerating the float64 values JSON
// decoding produces.
func (g GameState) IntMap(key string) map[string]int {
	out := make(map[string]int)
	sub, ok := toMap(g[key])
	if !ok {
		return out
	}
	for k, v := range sub {
		if n, ok := toInt(v); ok {
			out[k] = n
		}
	}
	return out
}

// PhaseContribution returns the recorded contribution map for a phase and
// whether one exists. Its presence is the idempotency marker for score merges.
func (g GameState) PhaseContribution(phase string) (map[string]int, bool) {
	phases, ok := toMap(g[StatePhaseScores])
	if !ok {
		return nil, false
	}
	sub, ok := toMap(phases[phase])
	if !ok {
		return nil, false
	}
	out := make(map[string]int, len(sub))
	for k, v := range sub {
		if n, ok := toInt(v); ok {
			out[k] = n
		}
	}
	return out, true
}

// Eliminated returns the per-match exclusion set.
func (g GameState) Eliminated() map[string]struct{} {
	out := make(map[string]struct{})
	sub, ok := toMap(g[StateEliminated])
	if !ok {
		return out
	}
	for k, v := range sub {
		if b, ok := v.(bool); ok && b {
			out[k] = struct{}{}
		}
	}
	return out
}

// CurrentPhase returns the persisted phase marker, empty if unset.
func (g GameState) CurrentPhase() string {
	s, _ := g[StateCurrentPhase].(string)
	return s
}

func toMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case GameState:
		return m, true
	default:
		return nil, false
	}
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
	}
	return 0, false
}
