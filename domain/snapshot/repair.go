package snapshot

import (
	"fmt"
	"math"

	"familytree/domain/config"
	"familytree/domain/core/valueobjects"
)

// RepairReport describes what the integrity step changed
type RepairReport struct {
	DroppedPersons    int
	DroppedKeys       int
	ClearedRelations  int
	RestoredRelations int
	Notes             []string
}

// Changed reports whether the snapshot was modified
func (r RepairReport) Changed() bool {
	return r.DroppedPersons > 0 || r.DroppedKeys > 0 || r.ClearedRelations > 0 ||
		r.RestoredRelations > 0 || len(r.Notes) > 0
}

func (r *RepairReport) note(format string, args ...interface{}) {
	r.Notes = append(r.Notes, fmt.Sprintf(format, args...))
}

// Repair runs once on every loaded snapshot. It never fails: bad data is
// dropped or defaulted and recorded in the report.
func (s *Snapshot) Repair(cfg *config.DomainConfig) RepairReport {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	var report RepairReport

	s.repairPersons(cfg, &report)
	s.HiddenConnections = s.repairKeys(s.HiddenConnections, "hidden", &report)
	s.LineOnlyConnections = s.repairKeys(s.LineOnlyConnections, "line-only", &report)

	if !s.HasRelations() && len(s.RelationsBackup) > 0 {
		if n := s.RestoreRelationsFromBackup(); n > 0 {
			report.RestoredRelations = n
			report.note("restored relations of %d persons from backup", n)
			// backup data gets the same scrub
			s.repairRelations(&report)
		}
	}

	if s.NodeStyle != NodeStyleCircle && s.NodeStyle != NodeStyleRectangle {
		report.note("unknown node style %q replaced", s.NodeStyle)
		s.NodeStyle = NodeStyleCircle
	}
	if s.Camera.Scale <= 0 || math.IsNaN(s.Camera.Scale) || math.IsInf(s.Camera.Scale, 0) {
		s.Camera.Scale = 1
	}

	if floor := s.MaxSequence(cfg.IDPrefix) + 1; s.NextID < floor {
		if s.NextID > 0 {
			report.note("nextId %d raised to %d", s.NextID, floor)
		}
		s.NextID = floor
	}
	return report
}

func (s *Snapshot) repairPersons(cfg *config.DomainConfig, report *RepairReport) {
	seen := make(map[string]bool, len(s.Persons))
	kept := make([]PersonRecord, 0, len(s.Persons))

	for _, p := range s.Persons {
		id := valueobjects.PersonID(p.ID)
		if !id.IsValid() || seen[p.ID] {
			report.DroppedPersons++
			report.note("dropped person with unusable id %q", p.ID)
			continue
		}
		seen[p.ID] = true

		if g, err := valueobjects.ParseGender(p.Gender); err != nil {
			report.note("%s: unknown gender %q cleared", p.ID, p.Gender)
			p.Gender = ""
		} else {
			p.Gender = g.String()
		}
		if p.Radius <= 0 || math.IsNaN(p.Radius) {
			p.Radius = s.Settings.NodeRadius
			if p.Radius <= 0 {
				p.Radius = cfg.DefaultRadius
			}
		}
		if p.Color == "" {
			p.Color = s.Settings.DefaultColor
			if p.Color == "" {
				p.Color = cfg.DefaultColor
			}
		}
		if math.IsNaN(p.X) || math.IsInf(p.X, 0) {
			p.X = 0
		}
		if math.IsNaN(p.Y) || math.IsInf(p.Y, 0) {
			p.Y = 0
		}
		kept = append(kept, p)
	}
	s.Persons = kept
	s.repairRelations(report)
}

// repairRelations clears self relations and targets that cannot form a connection key
func (s *Snapshot) repairRelations(report *RepairReport) {
	for i := range s.Persons {
		p := &s.Persons[i]
		for _, slot := range []*string{&p.MotherID, &p.FatherID, &p.SpouseID} {
			switch {
			case *slot == "":
			case *slot == p.ID:
				*slot = ""
				report.ClearedRelations++
				report.note("%s: self relation cleared", p.ID)
			case !valueobjects.PersonID(*slot).IsValid():
				report.note("%s: unusable relation target %q cleared", p.ID, *slot)
				*slot = ""
				report.ClearedRelations++
			}
		}
	}
}

// repairKeys canonicalizes keys and drops malformed or duplicate entries
func (s *Snapshot) repairKeys(raw []string, label string, report *RepairReport) []string {
	set := valueobjects.NewKeySet(raw...)
	if dropped := len(raw) - len(set); dropped > 0 {
		report.DroppedKeys += dropped
		report.note("dropped %d malformed or duplicate %s keys", dropped, label)
	}
	return set.Strings()
}
