package content

import (
	"context"
	"hash/fnv"
	"math/rand"
	"strings"

	"faceoff-match-service/internal/domain"
	"faceoff-match-service/internal/phase"
)

// StaticProvider serves questions from in-process pools, one per phase.
// Selection and option order are shuffled with a seed-derived source, so the
// same (phase, seed) pair always yields the same batch.
type StaticProvider struct {
	pools map[string][]domain.Question
}

// NewStaticProvider builds a provider over explicit pools.
func NewStaticProvider(pools map[string][]domain.Question) *StaticProvider {
	return &StaticProvider{pools: pools}
}

// NewDefaultProvider builds a provider over the stock interview pools.
func NewDefaultProvider() *StaticProvider {
	return NewStaticProvider(defaultPools())
}

func (p *StaticProvider) QuestionBatch(ctx context.Context, phaseName string, cfg domain.MatchConfig, count int, seed int64) ([]domain.Question, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pool, ok := p.pools[phaseName]
	if !ok || len(pool) == 0 {
		return nil, ErrNoQuestions
	}

	filtered := filterByRole(pool, cfg.Role)
	if len(filtered) == 0 {
		filtered = pool
	}

	rnd := rand.New(rand.NewSource(seed ^ phaseSalt(phaseName)))
	picked := make([]domain.Question, len(filtered))
	copy(picked, filtered)
	rnd.Shuffle(len(picked), func(i, j int) { picked[i], picked[j] = picked[j], picked[i] })
	if count < len(picked) {
		picked = picked[:count]
	}

	// Shuffle option order per question with the same source so all clients
	// render identical choice layouts.
	out := make([]domain.Question, len(picked))
	for i, q := range picked {
		out[i] = q
		if len(q.Options) > 1 {
			opts := make([]domain.Option, len(q.Options))
			copy(opts, q.Options)
			rnd.Shuffle(len(opts), func(a, b int) { opts[a], opts[b] = opts[b], opts[a] })
			out[i].Options = opts
		}
	}
	return out, nil
}

// filterByRole keeps questions whose prompt or keywords mention the role.
// A miss falls back to the whole pool at the call site.
func filterByRole(pool []domain.Question, role string) []domain.Question {
	if role == "" {
		return pool
	}
	role = strings.ToLower(role)
	var out []domain.Question
	for _, q := range pool {
		if strings.Contains(strings.ToLower(q.Prompt), role) {
			out = append(out, q)
			continue
		}
		for _, kw := range q.Keywords {
			if strings.Contains(strings.ToLower(kw), role) {
				out = append(out, q)
				break
			}
		}
	}
	return out
}

func phaseSalt(phaseName string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(phaseName))
	return int64(h.Sum64())
}

func defaultPools() map[string][]domain.Question {
	return map[string][]domain.Question{
		phase.Behavioural: {
			{ID: "b1", Prompt: "Tell us about a time you disagreed with a teammate. How was it resolved?", Keywords: []string{"listen", "compromise", "feedback"}},
			{ID: "b2", Prompt: "Describe a project that failed. What did you change afterwards?", Keywords: []string{"retrospective", "ownership", "learn"}},
			{ID: "b3", Prompt: "When did you last mentor someone? What worked?", Keywords: []string{"pairing", "patience", "growth"}},
			{ID: "b4", Prompt: "Walk through a deadline you could not meet and what you did about it.", Keywords: []string{"communicate", "scope", "prioritize"}},
		},
		phase.Theory: {
			{ID: "t1", Prompt: "Which data structure gives O(1) average lookup by key?", Options: []domain.Option{
				{ID: "t1a", Text: "Hash table", Correct: true},
				{ID: "t1b", Text: "Binary search tree"},
				{ID: "t1c", Text: "Linked list"},
			}},
			{ID: "t2", Prompt: "What does an index speed up in a relational database?", Options: []domain.Option{
				{ID: "t2a", Text: "Reads matching the indexed columns", Correct: true},
				{ID: "t2b", Text: "All writes"},
				{ID: "t2c", Text: "Schema migrations"},
			}},
			{ID: "t3", Prompt: "Which HTTP status signals a conflicting concurrent update?", Options: []domain.Option{
				{ID: "t3a", Text: "409", Correct: true},
				{ID: "t3b", Text: "404"},
				{ID: "t3c", Text: "502"},
			}},
			{ID: "t4", Prompt: "What does idempotency of an operation mean?", Options: []domain.Option{
				{ID: "t4a", Text: "Repeating it yields the same result", Correct: true},
				{ID: "t4b", Text: "It always succeeds"},
				{ID: "t4c", Text: "It runs in constant time"},
			}},
		},
		phase.Practical: {
			{ID: "p1", Prompt: "Sketch a rate limiter for a public API. Cover data model, algorithm, and failure mode.", Keywords: []string{"token bucket", "window", "redis"}},
			{ID: "p2", Prompt: "Design a job queue with at-least-once delivery. Cover storage, ack, and retries.", Keywords: []string{"ack", "retry", "dead letter"}},
		},
		phase.SuddenDeath: {
			{ID: "s1", Prompt: "In one sentence: why can two concurrent read-modify-write cycles lose an update?", Keywords: []string{"stale", "overwrite", "race"}},
			{ID: "s2", Prompt: "In one sentence: what does a pessimistic row lock guarantee?", Keywords: []string{"exclusive", "serial", "block"}},
		},
	}
}
