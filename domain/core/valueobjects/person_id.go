package valueobjects

import (
	"strconv"
	"strings"
)

// PersonID is the opaque identifier of a person in the tree.
// The zero value means "no person" and is used for absent relations.
type PersonID string

// NewPersonID mints a sequential id such as "p12"
func NewPersonID(prefix string, seq int) PersonID {
	return PersonID(prefix + strconv.Itoa(seq))
}

// String returns the string representation of the PersonID
func (id PersonID) String() string {
	return string(id)
}

// IsZero checks if the PersonID is the zero value
func (id PersonID) IsZero() bool {
	return id == ""
}

// IsValid reports whether the id can take part in a connection key
func (id PersonID) IsValid() bool {
	return id != "" && !strings.Contains(string(id), KeySeparator)
}

// Sequence extracts the numeric suffix of ids minted by NewPersonID.
// Ids without a numeric suffix return false.
func (id PersonID) Sequence(prefix string) (int, bool) {
	s := string(id)
	if !strings.HasPrefix(s, prefix) {
		return 0, false
	}
	n, err := strconv.Atoi(s[len(prefix):])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Less orders ids lexicographically, the ordering every tie-break in the tree uses
func (id PersonID) Less(other PersonID) bool {
	return id < other
}
