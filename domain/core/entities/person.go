package entities

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"familytree/domain/config"
	"familytree/domain/core/valueobjects"
	pkgerrors "familytree/pkg/errors"
)

var birthYearPattern = regexp.MustCompile(`\b(\d{4})\b`)

// PersonFields is the raw input accepted by the relationship store on upsert.
// Every field is optional; text is trimmed and bounded on the way in.
type PersonFields struct {
	Name       string
	Surname    string
	MaidenName string
	FatherName string
	DOB        string
	Gender     string
	MotherID   valueobjects.PersonID
	FatherID   valueobjects.PersonID
	SpouseID   valueobjects.PersonID
}

// Person is the canonical biographical and relational record of one individual.
// It holds only value fields, so a plain assignment is a deep copy.
type Person struct {
	ID         valueobjects.PersonID
	Name       string
	Surname    string
	MaidenName string
	FatherName string
	DOB        string
	Gender     valueobjects.Gender
	MotherID   valueobjects.PersonID
	FatherID   valueobjects.PersonID
	SpouseID   valueobjects.PersonID
}

// NewPerson builds a normalized person record from raw fields
func NewPerson(id valueobjects.PersonID, fields PersonFields, cfg *config.DomainConfig) (Person, error) {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}

	if id.IsZero() {
		return Person{}, pkgerrors.NewValidationError("person id cannot be empty")
	}
	if !id.IsValid() {
		return Person{}, pkgerrors.NewValidationError("person id cannot contain the key separator").
			WithDetail("id", id.String())
	}

	gender, err := valueobjects.ParseGender(fields.Gender)
	if err != nil {
		return Person{}, err
	}

	p := Person{
		ID:         id,
		Name:       bound(fields.Name, cfg.MaxNameLength),
		Surname:    bound(fields.Surname, cfg.MaxNameLength),
		MaidenName: bound(fields.MaidenName, cfg.MaxNameLength),
		FatherName: bound(fields.FatherName, cfg.MaxNameLength),
		DOB:        bound(fields.DOB, cfg.MaxDateLength),
		Gender:     gender,
		MotherID:   valueobjects.PersonID(strings.TrimSpace(fields.MotherID.String())),
		FatherID:   valueobjects.PersonID(strings.TrimSpace(fields.FatherID.String())),
		SpouseID:   valueobjects.PersonID(strings.TrimSpace(fields.SpouseID.String())),
	}

	if err := p.checkRelationTargets(); err != nil {
		return Person{}, err
	}
	if err := p.checkSelfRelations(); err != nil {
		return Person{}, err
	}

	return p, nil
}

// Fields returns the record as upsert input, the inverse of NewPerson
func (p Person) Fields() PersonFields {
	return PersonFields{
		Name:       p.Name,
		Surname:    p.Surname,
		MaidenName: p.MaidenName,
		FatherName: p.FatherName,
		DOB:        p.DOB,
		Gender:     p.Gender.String(),
		MotherID:   p.MotherID,
		FatherID:   p.FatherID,
		SpouseID:   p.SpouseID,
	}
}

// Relation returns the id held in a relational slot
func (p Person) Relation(rel valueobjects.RelationType) valueobjects.PersonID {
	switch rel {
	case valueobjects.RelationMother:
		return p.MotherID
	case valueobjects.RelationFather:
		return p.FatherID
	case valueobjects.RelationSpouse:
		return p.SpouseID
	}
	return ""
}

// WithRelation returns a copy with one relational slot replaced
func (p Person) WithRelation(rel valueobjects.RelationType, target valueobjects.PersonID) Person {
	switch rel {
	case valueobjects.RelationMother:
		p.MotherID = target
	case valueobjects.RelationFather:
		p.FatherID = target
	case valueobjects.RelationSpouse:
		p.SpouseID = target
	}
	return p
}

// ParentIDs returns the non-empty parent ids, mother first
func (p Person) ParentIDs() []valueobjects.PersonID {
	parents := make([]valueobjects.PersonID, 0, 2)
	if !p.MotherID.IsZero() {
		parents = append(parents, p.MotherID)
	}
	if !p.FatherID.IsZero() && p.FatherID != p.MotherID {
		parents = append(parents, p.FatherID)
	}
	return parents
}

// HasParent reports whether id is the mother or father
func (p Person) HasParent(id valueobjects.PersonID) bool {
	return !id.IsZero() && (p.MotherID == id || p.FatherID == id)
}

// HasRelations reports whether any relational slot is set
func (p Person) HasRelations() bool {
	return !p.MotherID.IsZero() || !p.FatherID.IsZero() || !p.SpouseID.IsZero()
}

// BirthYear extracts the first four-digit year from the free-text date of birth
func (p Person) BirthYear() (int, bool) {
	m := birthYearPattern.FindStringSubmatch(p.DOB)
	if m == nil {
		return 0, false
	}
	year, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return year, true
}

// DisplayName joins the given name and surname
func (p Person) DisplayName() string {
	return strings.TrimSpace(p.Name + " " + p.Surname)
}

func (p Person) checkRelationTargets() error {
	for _, rel := range []valueobjects.RelationType{
		valueobjects.RelationMother,
		valueobjects.RelationFather,
		valueobjects.RelationSpouse,
	} {
		if target := p.Relation(rel); !target.IsZero() && !target.IsValid() {
			return pkgerrors.NewValidationError(string(rel)+" id cannot contain the key separator").
				WithField(string(rel)+"Id", target.String())
		}
	}
	return nil
}

func (p Person) checkSelfRelations() error {
	for _, rel := range []valueobjects.RelationType{
		valueobjects.RelationMother,
		valueobjects.RelationFather,
		valueobjects.RelationSpouse,
	} {
		if p.Relation(rel) == p.ID {
			return pkgerrors.NewValidationError("a person cannot be their own " + string(rel)).
				WithField(string(rel)+"Id", p.ID.String())
		}
	}
	return nil
}

// bound trims s and cuts it to at most limit runes
func bound(s string, limit int) string {
	s = strings.TrimSpace(s)
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:limit]))
}
