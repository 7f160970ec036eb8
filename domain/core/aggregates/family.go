package aggregates

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"familytree/domain/config"
	"familytree/domain/core/entities"
	"familytree/domain/core/valueobjects"
	"familytree/domain/events"
	pkgerrors "familytree/pkg/errors"
)

// Family is the relationship store: the single source of truth for who is
// related to whom. Visual data lives with the renderer, not here.
type Family struct {
	id      string
	persons map[valueobjects.PersonID]entities.Person
	config  *config.DomainConfig
	events  []events.DomainEvent
	now     func() time.Time
}

// NewFamily creates an empty relationship store
func NewFamily(cfg *config.DomainConfig) *Family {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return &Family{
		id:      uuid.New().String(),
		persons: make(map[valueobjects.PersonID]entities.Person),
		config:  cfg,
		events:  []events.DomainEvent{},
		now:     time.Now,
	}
}

// ID returns the aggregate id used on emitted events
func (f *Family) ID() string {
	return f.id
}

// SetPerson inserts or replaces the record for id
func (f *Family) SetPerson(id valueobjects.PersonID, fields entities.PersonFields) error {
	person, err := entities.NewPerson(id, fields, f.config)
	if err != nil {
		return err
	}

	_, existed := f.persons[id]
	f.persons[id] = person
	f.addEvent(events.NewPersonSaved(f.id, id, !existed, f.now()))
	return nil
}

// GetPerson returns a copy of the record for id
func (f *Family) GetPerson(id valueobjects.PersonID) (entities.Person, bool) {
	p, ok := f.persons[id]
	return p, ok
}

// Has reports whether id is in the store
func (f *Family) Has(id valueobjects.PersonID) bool {
	_, ok := f.persons[id]
	return ok
}

// DeletePerson removes the record for id. References to id held by other
// persons are left in place.
func (f *Family) DeletePerson(id valueobjects.PersonID) bool {
	if _, ok := f.persons[id]; !ok {
		return false
	}
	delete(f.persons, id)
	f.addEvent(events.NewPersonDeleted(f.id, id, f.now()))
	return true
}

// SetRelation points one relational slot of id at target. An empty target clears it.
func (f *Family) SetRelation(id valueobjects.PersonID, rel valueobjects.RelationType, target valueobjects.PersonID) error {
	if !rel.IsValid() {
		return pkgerrors.NewValidationError("unknown relation type").WithField("relation", string(rel))
	}
	person, ok := f.persons[id]
	if !ok {
		return pkgerrors.NewNotFoundError("person").WithDetail("id", id.String())
	}
	fields := person.WithRelation(rel, target).Fields()
	return f.SetPerson(id, fields)
}

// FindChildren returns the persons whose mother or father is id, sorted
func (f *Family) FindChildren(id valueobjects.PersonID) []valueobjects.PersonID {
	if id.IsZero() {
		return nil
	}
	var children []valueobjects.PersonID
	for pid, p := range f.persons {
		if p.HasParent(id) {
			children = append(children, pid)
		}
	}
	sortIDs(children)
	return children
}

// FindSiblings returns the persons sharing at least one parent with id, sorted
func (f *Family) FindSiblings(id valueobjects.PersonID) []valueobjects.PersonID {
	person, ok := f.persons[id]
	if !ok {
		return nil
	}
	parents := person.ParentIDs()
	if len(parents) == 0 {
		return nil
	}

	var siblings []valueobjects.PersonID
	for pid, p := range f.persons {
		if pid == id {
			continue
		}
		for _, parent := range parents {
			if p.HasParent(parent) {
				siblings = append(siblings, pid)
				break
			}
		}
	}
	sortIDs(siblings)
	return siblings
}

// SpouseOf resolves the spouse of id, reconstructing the inverse direction
// when only the partner records the relation.
func (f *Family) SpouseOf(id valueobjects.PersonID) (valueobjects.PersonID, bool) {
	if p, ok := f.persons[id]; ok && !p.SpouseID.IsZero() {
		return p.SpouseID, true
	}
	for _, pid := range f.IDs() {
		if f.persons[pid].SpouseID == id && !id.IsZero() {
			return pid, true
		}
	}
	return "", false
}

// IDs returns all person ids in lexicographic order
func (f *Family) IDs() []valueobjects.PersonID {
	ids := make([]valueobjects.PersonID, 0, len(f.persons))
	for id := range f.persons {
		ids = append(ids, id)
	}
	sortIDs(ids)
	return ids
}

// Each visits every person in id order until fn returns false
func (f *Family) Each(fn func(entities.Person) bool) {
	for _, id := range f.IDs() {
		if !fn(f.persons[id]) {
			return
		}
	}
}

// Len returns the number of persons
func (f *Family) Len() int {
	return len(f.persons)
}

// HasRelations reports whether any person carries a relation
func (f *Family) HasRelations() bool {
	for _, p := range f.persons {
		if p.HasRelations() {
			return true
		}
	}
	return false
}

// Records returns a copy of the underlying map
func (f *Family) Records() map[valueobjects.PersonID]entities.Person {
	out := make(map[valueobjects.PersonID]entities.Person, len(f.persons))
	for id, p := range f.persons {
		out[id] = p
	}
	return out
}

// Replace swaps in a full set of records without raising events.
// Self-relations in the input are dropped instead of rejected.
func (f *Family) Replace(records map[valueobjects.PersonID]entities.Person) {
	f.persons = make(map[valueobjects.PersonID]entities.Person, len(records))
	for id, p := range records {
		if id.IsZero() {
			continue
		}
		p.ID = id
		for _, slot := range []*valueobjects.PersonID{&p.MotherID, &p.FatherID, &p.SpouseID} {
			if *slot == id || (!slot.IsZero() && !slot.IsValid()) {
				*slot = ""
			}
		}
		f.persons[id] = p
	}
}

// Clone returns an independent copy sharing no mutable state.
// Pending events are not carried over.
func (f *Family) Clone() *Family {
	return &Family{
		id:      f.id,
		persons: f.Records(),
		config:  f.config,
		events:  []events.DomainEvent{},
		now:     f.now,
	}
}

// Clear removes every person
func (f *Family) Clear() {
	f.persons = make(map[valueobjects.PersonID]entities.Person)
}

// GetUncommittedEvents returns events that haven't been persisted
func (f *Family) GetUncommittedEvents() []events.DomainEvent {
	return f.events
}

// MarkEventsAsCommitted clears the uncommitted events
func (f *Family) MarkEventsAsCommitted() {
	f.events = []events.DomainEvent{}
}

func (f *Family) addEvent(event events.DomainEvent) {
	f.events = append(f.events, event)
}

func sortIDs(ids []valueobjects.PersonID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
}
