package services

import (
	"sort"

	"go.uber.org/zap"

	"familytree/domain/core/aggregates"
	"familytree/domain/core/valueobjects"
)

// Generations maps every person to its depth below the detected roots
type Generations map[valueobjects.PersonID]int

// Max returns the deepest generation, or -1 for an empty map
func (g Generations) Max() int {
	deepest := -1
	for _, gen := range g {
		if gen > deepest {
			deepest = gen
		}
	}
	return deepest
}

// ByGeneration groups ids per generation, each group sorted
func (g Generations) ByGeneration() map[int][]valueobjects.PersonID {
	out := make(map[int][]valueobjects.PersonID)
	for id, gen := range g {
		out[gen] = append(out[gen], id)
	}
	for gen := range out {
		sortIDs(out[gen])
	}
	return out
}

// GenerationReport is the full result of a calculation
type GenerationReport struct {
	Generations Generations
	Roots       []valueobjects.PersonID
	// FallbackRoot is set when no natural root existed and one was picked
	FallbackRoot bool
	// CycleCuts lists persons at which a re-entrant traversal was cut
	CycleCuts []valueobjects.PersonID
}

// HasCycles reports whether ancestry contained at least one cycle
func (r GenerationReport) HasCycles() bool {
	return len(r.CycleCuts) > 0
}

// GenerationCalculator derives generational depth from parent links
type GenerationCalculator struct {
	logger *zap.Logger
}

// NewGenerationCalculator creates a new generation calculator
func NewGenerationCalculator(logger *zap.Logger) *GenerationCalculator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GenerationCalculator{logger: logger}
}

// Calculate assigns exactly one generation to every person in the family
func (c *GenerationCalculator) Calculate(family *aggregates.Family) Generations {
	return c.CalculateWithReport(family).Generations
}

// CalculateWithReport is Calculate plus the roots used and any cycles cut
func (c *GenerationCalculator) CalculateWithReport(family *aggregates.Family) GenerationReport {
	run := newGenerationRun(family)
	report := GenerationReport{Generations: run.gens}
	if len(run.ids) == 0 {
		return report
	}

	report.Roots = run.findRoots()
	if len(report.Roots) == 0 {
		report.Roots = []valueobjects.PersonID{run.fallbackRoot()}
		report.FallbackRoot = true
	}

	for _, root := range report.Roots {
		run.descend(root, 0)
	}
	for _, id := range run.ids {
		if _, ok := run.gens[id]; !ok {
			run.backfill(id)
		}
	}

	report.CycleCuts = run.cuts()
	if report.HasCycles() {
		c.logger.Warn("ancestry cycle detected, branches truncated",
			zap.Int("persons", len(run.ids)),
			zap.Stringers("cut_at", report.CycleCuts))
	}
	return report
}

type generationRun struct {
	family   *aggregates.Family
	ids      []valueobjects.PersonID
	parents  map[valueobjects.PersonID][]valueobjects.PersonID
	children map[valueobjects.PersonID][]valueobjects.PersonID
	gens     Generations
	visiting map[valueobjects.PersonID]bool
	cutSet   map[valueobjects.PersonID]bool
}

func newGenerationRun(family *aggregates.Family) *generationRun {
	run := &generationRun{
		family:   family,
		ids:      family.IDs(),
		parents:  make(map[valueobjects.PersonID][]valueobjects.PersonID),
		children: make(map[valueobjects.PersonID][]valueobjects.PersonID),
		gens:     make(Generations),
		visiting: make(map[valueobjects.PersonID]bool),
		cutSet:   make(map[valueobjects.PersonID]bool),
	}

	for _, id := range run.ids {
		p, _ := family.GetPerson(id)
		for _, parent := range p.ParentIDs() {
			if !family.Has(parent) {
				continue
			}
			run.parents[id] = append(run.parents[id], parent)
			run.children[parent] = append(run.children[parent], id)
		}
	}
	return run
}

func (r *generationRun) findRoots() []valueobjects.PersonID {
	var roots []valueobjects.PersonID
	for _, id := range r.ids {
		if len(r.parents[id]) == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}

// fallbackRoot picks the person with the earliest birth year, else the first id
func (r *generationRun) fallbackRoot() valueobjects.PersonID {
	best := r.ids[0]
	bestYear, found := 0, false
	for _, id := range r.ids {
		p, _ := r.family.GetPerson(id)
		year, ok := p.BirthYear()
		if ok && (!found || year < bestYear) {
			best, bestYear, found = id, year, true
		}
	}
	return best
}

func (r *generationRun) descend(id valueobjects.PersonID, gen int) {
	if r.visiting[id] {
		r.cutSet[id] = true
		return
	}
	if current, ok := r.gens[id]; ok && current <= gen {
		return
	}

	r.gens[id] = gen
	r.visiting[id] = true
	for _, child := range r.children[id] {
		r.descend(child, gen+1)
	}
	delete(r.visiting, id)
}

// backfill resolves max(parent generations)+1 for persons the descent never reached
func (r *generationRun) backfill(id valueobjects.PersonID) int {
	if gen, ok := r.gens[id]; ok {
		return gen
	}
	if r.visiting[id] {
		r.cutSet[id] = true
		return -1
	}

	r.visiting[id] = true
	best := -1
	for _, parent := range r.parents[id] {
		if gen := r.backfill(parent); gen > best {
			best = gen
		}
	}
	delete(r.visiting, id)

	r.gens[id] = best + 1
	return best + 1
}

func (r *generationRun) cuts() []valueobjects.PersonID {
	if len(r.cutSet) == 0 {
		return nil
	}
	out := make([]valueobjects.PersonID, 0, len(r.cutSet))
	for id := range r.cutSet {
		out = append(out, id)
	}
	sortIDs(out)
	return out
}

func sortIDs(ids []valueobjects.PersonID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
}
