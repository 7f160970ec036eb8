package valueobjects

// ConnectionKind defines the type of a derived visual edge
type ConnectionKind string

const (
	ConnectionParent   ConnectionKind = "parent"
	ConnectionSpouse   ConnectionKind = "spouse"
	ConnectionLineOnly ConnectionKind = "line-only"
)

// Connection is a visual edge derived from relational data.
// For parent connections From is the child and To the parent.
type Connection struct {
	From PersonID       `json:"from"`
	To   PersonID       `json:"to"`
	Kind ConnectionKind `json:"kind"`
}

// Key returns the canonical undirected key of the connection
func (c Connection) Key() ConnectionKey {
	return NewConnectionKey(c.From, c.To)
}

// RelationType names one of the relational slots on a person
type RelationType string

const (
	RelationMother RelationType = "mother"
	RelationFather RelationType = "father"
	RelationSpouse RelationType = "spouse"
)

// IsValid reports whether the relation type is known
func (r RelationType) IsValid() bool {
	switch r {
	case RelationMother, RelationFather, RelationSpouse:
		return true
	}
	return false
}
