package services

import (
	"go.uber.org/zap"

	"familytree/domain/core/aggregates"
	"familytree/domain/core/valueobjects"
)

// ConnectionSink receives the rebuilt visual edge set. The renderer satisfies it.
type ConnectionSink interface {
	ClearConnections()
	AddConnection(from, to valueobjects.PersonID, kind valueobjects.ConnectionKind)
}

// NodeSet is the set of ids that currently have a visual node
type NodeSet map[valueobjects.PersonID]struct{}

// NewNodeSet builds a node set from ids
func NewNodeSet(ids ...valueobjects.PersonID) NodeSet {
	set := make(NodeSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// Has checks membership
func (s NodeSet) Has(id valueobjects.PersonID) bool {
	_, ok := s[id]
	return ok
}

// SynthesisResult is the outcome of one regeneration
type SynthesisResult struct {
	Connections []valueobjects.Connection
	Skipped     int
}

// Count returns how many connections of kind were emitted
func (r SynthesisResult) Count(kind valueobjects.ConnectionKind) int {
	n := 0
	for _, c := range r.Connections {
		if c.Kind == kind {
			n++
		}
	}
	return n
}

// ConnectionSynthesizer derives the visual edge set from relational data
type ConnectionSynthesizer struct {
	logger *zap.Logger
}

// NewConnectionSynthesizer creates a new connection synthesizer
func NewConnectionSynthesizer(logger *zap.Logger) *ConnectionSynthesizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConnectionSynthesizer{logger: logger}
}

// Synthesize computes the connections without touching any renderer.
// Output is grouped by kind (parent, spouse, line-only) and ordered by id.
func (s *ConnectionSynthesizer) Synthesize(
	family *aggregates.Family,
	hidden, lineOnly valueobjects.KeySet,
	existing NodeSet,
) []valueobjects.Connection {
	return s.synthesize(family, hidden, lineOnly, existing).Connections
}

// Regenerate clears the sink and writes the synthesized connections to it.
// Calling it repeatedly with the same inputs yields the same edge set.
func (s *ConnectionSynthesizer) Regenerate(
	sink ConnectionSink,
	family *aggregates.Family,
	hidden, lineOnly valueobjects.KeySet,
	existing NodeSet,
) SynthesisResult {
	result := s.synthesize(family, hidden, lineOnly, existing)
	sink.ClearConnections()
	for _, c := range result.Connections {
		sink.AddConnection(c.From, c.To, c.Kind)
	}
	return result
}

func (s *ConnectionSynthesizer) synthesize(
	family *aggregates.Family,
	hidden, lineOnly valueobjects.KeySet,
	existing NodeSet,
) SynthesisResult {
	b := &connectionBuilder{
		logger:   s.logger,
		hidden:   hidden,
		existing: existing,
		emitted:  make(map[valueobjects.Connection]bool),
	}
	if family == nil {
		return SynthesisResult{}
	}

	ids := family.IDs()

	for _, id := range ids {
		p, _ := family.GetPerson(id)
		for _, parent := range p.ParentIDs() {
			b.emit(id, parent, valueobjects.ConnectionParent)
		}
	}

	pairs := make(map[valueobjects.ConnectionKey]bool)
	for _, id := range ids {
		p, _ := family.GetPerson(id)
		if p.SpouseID.IsZero() {
			continue
		}
		key := valueobjects.NewConnectionKey(id, p.SpouseID)
		if pairs[key] {
			continue
		}
		pairs[key] = true
		a, c, _ := key.Endpoints()
		b.emit(a, c, valueobjects.ConnectionSpouse)
	}

	for _, key := range lineOnly.Sorted() {
		a, c, ok := key.Endpoints()
		if !ok {
			b.skip("malformed line-only key", a, c, valueobjects.ConnectionLineOnly)
			continue
		}
		b.emit(a, c, valueobjects.ConnectionLineOnly)
	}

	return SynthesisResult{Connections: b.out, Skipped: b.skipped}
}

type connectionBuilder struct {
	logger   *zap.Logger
	hidden   valueobjects.KeySet
	existing NodeSet
	emitted  map[valueobjects.Connection]bool
	out      []valueobjects.Connection
	skipped  int
}

func (b *connectionBuilder) emit(from, to valueobjects.PersonID, kind valueobjects.ConnectionKind) {
	conn := valueobjects.Connection{From: from, To: to, Kind: kind}
	switch {
	case b.hidden.Has(conn.Key()):
		b.skip("hidden", from, to, kind)
	case !b.existing.Has(from) || !b.existing.Has(to):
		b.skip("missing endpoint", from, to, kind)
	case b.emitted[conn]:
	default:
		b.emitted[conn] = true
		b.out = append(b.out, conn)
	}
}

func (b *connectionBuilder) skip(reason string, from, to valueobjects.PersonID, kind valueobjects.ConnectionKind) {
	b.skipped++
	b.logger.Debug("connection skipped",
		zap.String("reason", reason),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
		zap.String("kind", string(kind)))
}
