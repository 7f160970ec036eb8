package snapshot

import (
	"strings"

	"familytree/domain/core/valueobjects"
)

// CurrentVersion is the version tag written by every save
const CurrentVersion = "2.0"

// CacheFormat tells whether a snapshot carries the full state or the size-limited subset
type CacheFormat string

const (
	CacheEnhanced   CacheFormat = "enhanced"
	CacheCompressed CacheFormat = "compressed"
)

// NodeStyle is the node shape used by the renderer
type NodeStyle string

const (
	NodeStyleCircle    NodeStyle = "circle"
	NodeStyleRectangle NodeStyle = "rectangle"
)

// ParseNodeStyle falls back to circle for anything unknown
func ParseNodeStyle(raw string) NodeStyle {
	if NodeStyle(strings.ToLower(strings.TrimSpace(raw))) == NodeStyleRectangle {
		return NodeStyleRectangle
	}
	return NodeStyleCircle
}

// Settings holds the visual settings of the tree
type Settings struct {
	NodeRadius          float64 `json:"nodeRadius" validate:"gt=0,lte=500"`
	DefaultColor        string  `json:"defaultColor" validate:"color"`
	FontFamily          string  `json:"fontFamily" validate:"required,max=64"`
	FontSize            float64 `json:"fontSize" validate:"gt=0,lte=96"`
	NameColor           string  `json:"nameColor" validate:"color"`
	DateColor           string  `json:"dateColor" validate:"color"`
	ShowNodeOutline     bool    `json:"showNodeOutline"`
	OutlineColor        string  `json:"outlineColor" validate:"color"`
	OutlineThickness    float64 `json:"outlineThickness" validate:"gte=0,lte=20"`
	FamilyLineStyle     string  `json:"familyLineStyle" validate:"oneof=solid dashed dotted dash-dot"`
	FamilyLineThickness float64 `json:"familyLineThickness" validate:"gt=0,lte=20"`
	FamilyLineColor     string  `json:"familyLineColor" validate:"color"`
	SpouseLineStyle     string  `json:"spouseLineStyle" validate:"oneof=solid dashed dotted dash-dot"`
	SpouseLineThickness float64 `json:"spouseLineThickness" validate:"gt=0,lte=20"`
	SpouseLineColor     string  `json:"spouseLineColor" validate:"color"`
	LineOnlyStyle       string  `json:"lineOnlyStyle" validate:"oneof=solid dashed dotted dash-dot"`
	LineOnlyThickness   float64 `json:"lineOnlyThickness" validate:"gt=0,lte=20"`
	LineOnlyColor       string  `json:"lineOnlyColor" validate:"color"`
}

// DefaultSettings returns the settings of a fresh tree
func DefaultSettings() Settings {
	return Settings{
		NodeRadius:          50,
		DefaultColor:        "#3498db",
		FontFamily:          "Inter",
		FontSize:            11,
		NameColor:           "#ffffff",
		DateColor:           "#f0f0f0",
		ShowNodeOutline:     true,
		OutlineColor:        "#2c3e50",
		OutlineThickness:    2,
		FamilyLineStyle:     "solid",
		FamilyLineThickness: 2,
		FamilyLineColor:     "#7f8c8d",
		SpouseLineStyle:     "dashed",
		SpouseLineThickness: 2,
		SpouseLineColor:     "#e74c3c",
		LineOnlyStyle:       "dash-dot",
		LineOnlyThickness:   2,
		LineOnlyColor:       "#9b59b6",
	}
}

// DisplayPreferences toggles optional text on nodes
type DisplayPreferences struct {
	ShowMaidenName  bool `json:"showMaidenName"`
	ShowDateOfBirth bool `json:"showDateOfBirth"`
	ShowFatherName  bool `json:"showFatherName"`
}

// DefaultDisplayPreferences shows everything
func DefaultDisplayPreferences() DisplayPreferences {
	return DisplayPreferences{ShowMaidenName: true, ShowDateOfBirth: true, ShowFatherName: true}
}

// Camera is the persisted viewport
type Camera struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Scale float64 `json:"scale"`
}

// DefaultCamera is the viewport of a fresh canvas
func DefaultCamera() Camera {
	return Camera{Scale: 1}
}

// PersonRecord merges a person's relational data with its visual node
type PersonRecord struct {
	ID         string  `json:"id"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Name       string  `json:"name"`
	FatherName string  `json:"fatherName"`
	Surname    string  `json:"surname"`
	MaidenName string  `json:"maidenName"`
	DOB        string  `json:"dob"`
	Gender     string  `json:"gender"`
	Color      string  `json:"color"`
	Radius     float64 `json:"radius"`
	MotherID   string  `json:"motherId"`
	FatherID   string  `json:"fatherId"`
	SpouseID   string  `json:"spouseId"`
}

// Relations returns the relational part of the record
func (p PersonRecord) Relations() RelationRecord {
	return RelationRecord{MotherID: p.MotherID, FatherID: p.FatherID, SpouseID: p.SpouseID}
}

// RelationRecord is the redundant copy of one person's relations
type RelationRecord struct {
	MotherID string `json:"motherId,omitempty"`
	FatherID string `json:"fatherId,omitempty"`
	SpouseID string `json:"spouseId,omitempty"`
}

// IsEmpty reports whether no relation is set
func (r RelationRecord) IsEmpty() bool {
	return r.MotherID == "" && r.FatherID == "" && r.SpouseID == ""
}

// Snapshot is the complete persisted state of a tree
type Snapshot struct {
	Version             string                    `json:"version"`
	Timestamp           int64                     `json:"timestamp"`
	CacheFormat         CacheFormat               `json:"cacheFormat"`
	Settings            Settings                  `json:"settings"`
	DisplayPreferences  DisplayPreferences        `json:"displayPreferences"`
	NodeStyle           NodeStyle                 `json:"nodeStyle"`
	Camera              Camera                    `json:"camera"`
	HiddenConnections   []string                  `json:"hiddenConnections"`
	LineOnlyConnections []string                  `json:"lineOnlyConnections"`
	Persons             []PersonRecord            `json:"persons"`
	RelationsBackup     map[string]RelationRecord `json:"relationsBackup,omitempty"`
	UndoDepth           int                       `json:"undoDepth"`
	NextID              int                       `json:"nextId"`
}

// New returns an empty snapshot carrying every default
func New() *Snapshot {
	return &Snapshot{
		Version:             CurrentVersion,
		CacheFormat:         CacheEnhanced,
		Settings:            DefaultSettings(),
		DisplayPreferences:  DefaultDisplayPreferences(),
		NodeStyle:           NodeStyleCircle,
		Camera:              DefaultCamera(),
		HiddenConnections:   []string{},
		LineOnlyConnections: []string{},
		Persons:             []PersonRecord{},
		NextID:              1,
	}
}

// Compressed is the size-limited subset written when the full snapshot is too large
type Compressed struct {
	Version             string         `json:"version"`
	Timestamp           int64          `json:"timestamp"`
	CacheFormat         CacheFormat    `json:"cacheFormat"`
	HiddenConnections   []string       `json:"hiddenConnections"`
	LineOnlyConnections []string       `json:"lineOnlyConnections"`
	Persons             []PersonRecord `json:"persons"`
	NextID              int            `json:"nextId"`
}

// Compress drops camera, settings, preferences and the relations backup
func (s *Snapshot) Compress() Compressed {
	return Compressed{
		Version:             s.Version,
		Timestamp:           s.Timestamp,
		CacheFormat:         CacheCompressed,
		HiddenConnections:   nonNil(s.HiddenConnections),
		LineOnlyConnections: nonNil(s.LineOnlyConnections),
		Persons:             s.Persons,
		NextID:              s.NextID,
	}
}

// BuildRelationsBackup refreshes the redundant relations copy from the person records
func (s *Snapshot) BuildRelationsBackup() {
	s.RelationsBackup = make(map[string]RelationRecord)
	for _, p := range s.Persons {
		if rel := p.Relations(); !rel.IsEmpty() {
			s.RelationsBackup[p.ID] = rel
		}
	}
}

// HasRelations reports whether any person record carries a relation
func (s *Snapshot) HasRelations() bool {
	for _, p := range s.Persons {
		if !p.Relations().IsEmpty() {
			return true
		}
	}
	return false
}

// RestoreRelationsFromBackup copies backed-up relations onto persons that have
// none of their own and returns how many persons changed.
func (s *Snapshot) RestoreRelationsFromBackup() int {
	restored := 0
	for i := range s.Persons {
		p := &s.Persons[i]
		backup, ok := s.RelationsBackup[p.ID]
		if !ok || backup.IsEmpty() || !p.Relations().IsEmpty() {
			continue
		}
		p.MotherID, p.FatherID, p.SpouseID = backup.MotherID, backup.FatherID, backup.SpouseID
		restored++
	}
	return restored
}

// Clone returns a deep copy
func (s *Snapshot) Clone() *Snapshot {
	out := *s
	out.HiddenConnections = append([]string{}, s.HiddenConnections...)
	out.LineOnlyConnections = append([]string{}, s.LineOnlyConnections...)
	out.Persons = append([]PersonRecord{}, s.Persons...)
	if s.RelationsBackup != nil {
		out.RelationsBackup = make(map[string]RelationRecord, len(s.RelationsBackup))
		for k, v := range s.RelationsBackup {
			out.RelationsBackup[k] = v
		}
	}
	return &out
}

// MaxSequence returns the highest numeric id suffix among persons
func (s *Snapshot) MaxSequence(prefix string) int {
	highest := 0
	for _, p := range s.Persons {
		if n, ok := valueobjects.PersonID(p.ID).Sequence(prefix); ok && n > highest {
			highest = n
		}
	}
	return highest
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
