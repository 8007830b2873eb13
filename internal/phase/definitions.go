package phase

import "faceoff-match-service/internal/domain"

// Definition describes one phase variant: how many question indices it
// requires, whether every active participant must cover each of them, and how
// it nests. New phases are added by registering a definition, not by editing
// a conditional.
type Definition interface {
	Name() string
	RequiredCount() int
	AllMustSubmit() bool
	// Parent returns the composite phase this one feeds and the question
	// index submissions mirror to inside it.
	Parent() (ParentLink, bool)
	// SubPhases returns the named children of a composite phase. A composite
	// phase is complete only when all of its sub-phases are complete.
	SubPhases() []string
}

// ParentLink maps a sub-phase into its composite parent's tracker.
type ParentLink struct {
	Name  string
	Index int
}

// Def is the standard Definition implementation.
type Def struct {
	name          string
	required      int
	allMustSubmit bool
	parent        *ParentLink
	subPhases     []string
}

// New builds a leaf phase requiring the given number of question indices from
// every active participant.
func New(name string, required int) *Def {
	return &Def{name: name, required: required, allMustSubmit: true}
}

// NewOpen builds a leaf phase that only requires coverage of the question
// indices, not submissions from every participant.
func NewOpen(name string, required int) *Def {
	return &Def{name: name, required: required}
}

// Composite builds a parent phase gated by its sub-phases. Its own tracker
// holds one mirrored index per sub-phase.
func Composite(name string, subPhases ...string) *Def {
	return &Def{name: name, required: len(subPhases), allMustSubmit: true, subPhases: subPhases}
}

// Under links the phase into a composite parent at the given mirror index.
func (d *Def) Under(parent string, index int) *Def {
	d.parent = &ParentLink{Name: parent, Index: index}
	return d
}

func (d *Def) Name() string        { return d.name }
func (d *Def) RequiredCount() int  { return d.required }
func (d *Def) AllMustSubmit() bool { return d.allMustSubmit }
func (d *Def) SubPhases() []string { return d.subPhases }

func (d *Def) Parent() (ParentLink, bool) {
	if d.parent == nil {
		return ParentLink{}, false
	}
	return *d.parent, true
}

// Registry holds the phase definitions for a match type plus the top-level
// sequence order the coordinator walks.
type Registry struct {
	defs     map[string]Definition
	sequence []string
}

// NewRegistry registers definitions; sequence names the top-level phases in
// play order (sub-phases are reached through their parent).
func NewRegistry(sequence []string, defs ...Definition) *Registry {
	r := &Registry{defs: make(map[string]Definition, len(defs)), sequence: sequence}
	for _, d := range defs {
		r.defs[d.Name()] = d
	}
	return r
}

// Get returns the definition for a phase name.
func (r *Registry) Get(name string) (Definition, error) {
	d, ok := r.defs[name]
	if !ok {
		return nil, domain.ErrPhaseUnknown
	}
	return d, nil
}

// Sequence returns the top-level phase order.
func (r *Registry) Sequence() []string { return r.sequence }

// Standard phase names.
const (
	Behavioural = "behavioural"
	Technical   = "technical"
	Theory      = "theory"
	Practical   = "practical"
	SuddenDeath = "sudden_death"
)

// DefaultRegistry wires the stock interview sequence: a two-question
// behavioural phase (opener plus follow-up), then a composite technical phase
// of theory and practical sub-phases. Sudden death is registered for
// tie-breaks but sits outside the base sequence.
func DefaultRegistry() *Registry {
	return NewRegistry(
		[]string{Behavioural, Technical},
		New(Behavioural, 2),
		Composite(Technical, Theory, Practical),
		New(Theory, 3).Under(Technical, 0),
		New(Practical, 1).Under(Technical, 1),
		New(SuddenDeath, 1),
	)
}
