package valueobjects

import (
	"sort"
	"strings"
)

// KeySeparator joins the two ids of a canonical connection key
const KeySeparator = "-"

// ConnectionKey identifies an undirected connection: min(a,b) + "-" + max(a,b).
type ConnectionKey string

// NewConnectionKey builds the canonical key for a pair regardless of argument order
func NewConnectionKey(a, b PersonID) ConnectionKey {
	if b < a {
		a, b = b, a
	}
	return ConnectionKey(string(a) + KeySeparator + string(b))
}

// ParseConnectionKey splits a stored key back into its endpoints.
// Keys that do not hold exactly two non-empty ids are rejected.
func ParseConnectionKey(raw string) (ConnectionKey, bool) {
	a, b, ok := strings.Cut(raw, KeySeparator)
	if !ok || a == "" || b == "" || strings.Contains(b, KeySeparator) {
		return "", false
	}
	return NewConnectionKey(PersonID(a), PersonID(b)), true
}

// Endpoints returns the two ids of the key in canonical order
func (k ConnectionKey) Endpoints() (PersonID, PersonID, bool) {
	a, b, ok := strings.Cut(string(k), KeySeparator)
	if !ok || a == "" || b == "" {
		return "", "", false
	}
	return PersonID(a), PersonID(b), true
}

// Involves reports whether id is one of the endpoints
func (k ConnectionKey) Involves(id PersonID) bool {
	a, b, ok := k.Endpoints()
	return ok && (a == id || b == id)
}

// String returns the string representation of the key
func (k ConnectionKey) String() string {
	return string(k)
}

// KeySet is a set of canonical connection keys (hidden or line-only overrides)
type KeySet map[ConnectionKey]struct{}

// NewKeySet builds a set from raw stored keys, dropping malformed entries
func NewKeySet(raw ...string) KeySet {
	set := make(KeySet, len(raw))
	for _, r := range raw {
		if key, ok := ParseConnectionKey(r); ok {
			set[key] = struct{}{}
		}
	}
	return set
}

// Add inserts a key
func (s KeySet) Add(key ConnectionKey) {
	s[key] = struct{}{}
}

// Remove deletes a key
func (s KeySet) Remove(key ConnectionKey) {
	delete(s, key)
}

// Has checks membership; a nil set contains nothing
func (s KeySet) Has(key ConnectionKey) bool {
	_, ok := s[key]
	return ok
}

// Sorted returns the keys in lexicographic order
func (s KeySet) Sorted() []ConnectionKey {
	keys := make([]ConnectionKey, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Strings returns the sorted keys as plain strings for persistence
func (s KeySet) Strings() []string {
	sorted := s.Sorted()
	out := make([]string, len(sorted))
	for i, k := range sorted {
		out[i] = string(k)
	}
	return out
}

// Clone returns an independent copy
func (s KeySet) Clone() KeySet {
	out := make(KeySet, len(s))
	for k := range s {
		out[k] = struct{}{}
	}
	return out
}

// RemoveInvolving drops every key touching id and reports how many were removed
func (s KeySet) RemoveInvolving(id PersonID) int {
	removed := 0
	for k := range s {
		if k.Involves(id) {
			delete(s, k)
			removed++
		}
	}
	return removed
}
