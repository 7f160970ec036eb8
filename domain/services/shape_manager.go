package services

import (
	"math"
	"strings"

	"familytree/domain/config"
	"familytree/domain/core/aggregates"
	"familytree/domain/core/valueobjects"
	pkgerrors "familytree/pkg/errors"
)

// Shape names a decorative arrangement of the whole tree
type Shape string

const (
	ShapeTree  Shape = "tree"
	ShapeSolar Shape = "solar"
	ShapeGrid  Shape = "grid"
	ShapeGrape Shape = "grape"
)

// ParseShape accepts a shape name in any case
func ParseShape(raw string) (Shape, error) {
	switch s := Shape(strings.ToLower(strings.TrimSpace(raw))); s {
	case ShapeTree, ShapeSolar, ShapeGrid, ShapeGrape:
		return s, nil
	}
	return "", pkgerrors.NewValidationError("unknown shape").WithField("shape", raw)
}

// Layout is a set of target positions keyed by person
type Layout map[valueobjects.PersonID]valueobjects.Position

// ShapeManager computes cosmetic positions. It never changes relations.
type ShapeManager struct {
	calculator *GenerationCalculator
	config     *config.DomainConfig
}

// NewShapeManager creates a new shape manager
func NewShapeManager(calculator *GenerationCalculator, cfg *config.DomainConfig) *ShapeManager {
	if calculator == nil {
		calculator = NewGenerationCalculator(nil)
	}
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return &ShapeManager{calculator: calculator, config: cfg}
}

// Arrange positions every person of the family around origin
func (m *ShapeManager) Arrange(family *aggregates.Family, shape Shape, origin valueobjects.Position) (Layout, error) {
	layout := make(Layout, family.Len())
	if family.Len() == 0 {
		return layout, nil
	}

	switch shape {
	case ShapeTree:
		m.arrangeTree(family, origin, layout)
	case ShapeSolar:
		m.arrangeSolar(family, origin, layout)
	case ShapeGrid:
		m.arrangeGrid(family.IDs(), origin, layout)
	case ShapeGrape:
		m.arrangeGrape(family, origin, layout)
	default:
		return nil, pkgerrors.NewValidationError("unknown shape").WithField("shape", string(shape))
	}
	return layout, nil
}

// arrangeTree places one row per generation with couples kept adjacent
func (m *ShapeManager) arrangeTree(family *aggregates.Family, origin valueobjects.Position, layout Layout) {
	rows := m.calculator.Calculate(family).ByGeneration()
	for gen, row := range rows {
		y := origin.Y + float64(gen)*m.config.GenerationSpacing
		m.placeRow(orderWithSpouses(family, row), origin.X, y, layout)
	}
}

// arrangeSolar places generation k on ring k around origin
func (m *ShapeManager) arrangeSolar(family *aggregates.Family, origin valueobjects.Position, layout Layout) {
	rows := m.calculator.Calculate(family).ByGeneration()
	for gen, row := range rows {
		ordered := orderWithSpouses(family, row)
		if gen == 0 && len(ordered) == 1 {
			layout[ordered[0]] = origin
			continue
		}
		radius := float64(gen+1) * m.config.GenerationSpacing
		step := 2 * math.Pi / float64(len(ordered))
		for i, id := range ordered {
			angle := float64(i)*step - math.Pi/2
			layout[id] = valueobjects.Position{
				X: origin.X + radius*math.Cos(angle),
				Y: origin.Y + radius*math.Sin(angle),
			}
		}
	}
}

// arrangeGrid places ids row by row in a square-ish grid
func (m *ShapeManager) arrangeGrid(ids []valueobjects.PersonID, origin valueobjects.Position, layout Layout) {
	cols := int(math.Ceil(math.Sqrt(float64(len(ids)))))
	spacing := m.config.SiblingSpacing
	for i, id := range ids {
		layout[id] = valueobjects.Position{
			X: origin.X + float64(i%cols)*spacing,
			Y: origin.Y + float64(i/cols)*spacing,
		}
	}
}

// arrangeGrape hangs each couple's children beneath them in shrinking rows
func (m *ShapeManager) arrangeGrape(family *aggregates.Family, origin valueobjects.Position, layout Layout) {
	clusters := grapeClusters(family)
	spacing := m.config.SiblingSpacing
	x := origin.X

	for _, cl := range clusters {
		rows := [][]valueobjects.PersonID{cl.top}
		rows = append(rows, bunch(cl.children)...)

		width := 0
		for _, row := range rows {
			if len(row) > width {
				width = len(row)
			}
		}
		center := x + float64(width-1)*spacing/2
		for depth, row := range rows {
			m.placeRow(row, center, origin.Y+float64(depth)*spacing, layout)
		}
		x += float64(width+1) * spacing
	}
}

// placeRow centers ids horizontally on cx
func (m *ShapeManager) placeRow(ids []valueobjects.PersonID, cx, y float64, layout Layout) {
	spacing := m.config.SiblingSpacing
	start := cx - float64(len(ids)-1)*spacing/2
	for i, id := range ids {
		layout[id] = valueobjects.Position{X: start + float64(i)*spacing, Y: y}
	}
}

// orderWithSpouses keeps sorted order but pulls a spouse next to its partner
func orderWithSpouses(family *aggregates.Family, row []valueobjects.PersonID) []valueobjects.PersonID {
	inRow := make(map[valueobjects.PersonID]bool, len(row))
	for _, id := range row {
		inRow[id] = true
	}
	placed := make(map[valueobjects.PersonID]bool, len(row))
	out := make([]valueobjects.PersonID, 0, len(row))
	for _, id := range row {
		if placed[id] {
			continue
		}
		out = append(out, id)
		placed[id] = true
		if spouse, ok := family.SpouseOf(id); ok && inRow[spouse] && !placed[spouse] {
			out = append(out, spouse)
			placed[spouse] = true
		}
	}
	return out
}

type grapeCluster struct {
	top      []valueobjects.PersonID
	children []valueobjects.PersonID
}

// grapeClusters groups each parent couple with its children. A person lands
// in the first cluster that claims it, parents before children.
func grapeClusters(family *aggregates.Family) []grapeCluster {
	claimed := make(map[valueobjects.PersonID]bool)
	var clusters []grapeCluster

	for _, id := range family.IDs() {
		if claimed[id] {
			continue
		}
		top := []valueobjects.PersonID{id}
		if spouse, ok := family.SpouseOf(id); ok && family.Has(spouse) && !claimed[spouse] {
			top = append(top, spouse)
		}

		var children []valueobjects.PersonID
		seen := make(map[valueobjects.PersonID]bool)
		for _, parent := range top {
			for _, child := range family.FindChildren(parent) {
				if claimed[child] || seen[child] || child == top[0] || (len(top) > 1 && child == top[1]) {
					continue
				}
				seen[child] = true
				children = append(children, child)
			}
		}
		if len(children) == 0 && hasParentInFamily(family, id) {
			// left for the cluster of its parents
			continue
		}

		for _, p := range top {
			claimed[p] = true
		}
		for _, c := range children {
			claimed[c] = true
		}
		sortIDs(children)
		clusters = append(clusters, grapeCluster{top: top, children: children})
	}

	for _, id := range family.IDs() {
		if !claimed[id] {
			claimed[id] = true
			clusters = append(clusters, grapeCluster{top: []valueobjects.PersonID{id}})
		}
	}
	return clusters
}

func hasParentInFamily(family *aggregates.Family, id valueobjects.PersonID) bool {
	p, ok := family.GetPerson(id)
	if !ok {
		return false
	}
	for _, parent := range p.ParentIDs() {
		if family.Has(parent) {
			return true
		}
	}
	return false
}

// bunch splits ids into rows of shrinking width, widest first
func bunch(ids []valueobjects.PersonID) [][]valueobjects.PersonID {
	if len(ids) == 0 {
		return nil
	}
	width := 1
	for width*(width+1)/2 < len(ids) {
		width++
	}
	var rows [][]valueobjects.PersonID
	for start := 0; start < len(ids); width-- {
		if width < 1 {
			width = 1
		}
		end := start + width
		if end > len(ids) {
			end = len(ids)
		}
		rows = append(rows, ids[start:end])
		start = end
	}
	return rows
}
