package aggregates

import (
	"fmt"

	"familytree/domain/core/valueobjects"
)

// DanglingRef is a relation pointing at an id that is not in the store
type DanglingRef struct {
	PersonID valueobjects.PersonID
	Relation valueobjects.RelationType
	Target   valueobjects.PersonID
}

// IntegrityReport lists data problems the store tolerates. None of them are fatal.
type IntegrityReport struct {
	Dangling          []DanglingRef
	AsymmetricSpouses []valueobjects.ConnectionKey
	ConflictSpouses   []valueobjects.PersonID
}

// Clean reports whether nothing was found
func (r IntegrityReport) Clean() bool {
	return len(r.Dangling) == 0 && len(r.AsymmetricSpouses) == 0 && len(r.ConflictSpouses) == 0
}

// Notes renders the findings as short human readable lines
func (r IntegrityReport) Notes() []string {
	var notes []string
	for _, d := range r.Dangling {
		notes = append(notes, fmt.Sprintf("%s.%sId points at missing %s", d.PersonID, d.Relation, d.Target))
	}
	for _, k := range r.AsymmetricSpouses {
		notes = append(notes, fmt.Sprintf("spouse pair %s recorded in one direction", k))
	}
	for _, id := range r.ConflictSpouses {
		notes = append(notes, fmt.Sprintf("%s is claimed as spouse by a person it does not point back to", id))
	}
	return notes
}

// Validate inspects the store for dangling references and one-sided spouses
func (f *Family) Validate() IntegrityReport {
	var report IntegrityReport
	seen := make(map[valueobjects.ConnectionKey]bool)

	for _, id := range f.IDs() {
		p := f.persons[id]
		for _, rel := range []valueobjects.RelationType{
			valueobjects.RelationMother,
			valueobjects.RelationFather,
			valueobjects.RelationSpouse,
		} {
			target := p.Relation(rel)
			if target.IsZero() || f.Has(target) {
				continue
			}
			report.Dangling = append(report.Dangling, DanglingRef{PersonID: id, Relation: rel, Target: target})
		}

		if p.SpouseID.IsZero() || !f.Has(p.SpouseID) {
			continue
		}
		partner := f.persons[p.SpouseID]
		switch {
		case partner.SpouseID.IsZero():
			key := valueobjects.NewConnectionKey(id, p.SpouseID)
			if !seen[key] {
				seen[key] = true
				report.AsymmetricSpouses = append(report.AsymmetricSpouses, key)
			}
		case partner.SpouseID != id:
			report.ConflictSpouses = append(report.ConflictSpouses, p.SpouseID)
		}
	}
	return report
}
