package schema

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"familytree/domain/snapshot"
	pkgerrors "familytree/pkg/errors"
)

// DetectFormat probes the raw payload for its layout without decoding it fully
func DetectFormat(raw []byte) (FormatVersion, error) {
	if len(raw) == 0 {
		return FormatUnknown, pkgerrors.NewCorruptDataError("snapshot is empty", nil)
	}
	if !gjson.ValidBytes(raw) {
		return FormatUnknown, pkgerrors.NewCorruptDataError("snapshot is not valid JSON", nil)
	}

	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return FormatUnknown, pkgerrors.NewCorruptDataError("snapshot is not a JSON object", nil)
	}

	if persons := root.Get("persons"); persons.Exists() {
		if !persons.IsArray() {
			return FormatUnknown, pkgerrors.NewCorruptDataError("persons is not an array", nil)
		}
		return versionOf(root.Get("version"))
	}
	if people := root.Get("people"); people.IsArray() {
		return FormatLegacyPeople, nil
	}
	return FormatUnknown, pkgerrors.NewCorruptDataError("unrecognized snapshot shape", nil)
}

func versionOf(v gjson.Result) (FormatVersion, error) {
	if !v.Exists() || v.Type == gjson.Null {
		return FormatV1, nil
	}

	var tag string
	switch v.Type {
	case gjson.String:
		tag = strings.TrimSpace(v.String())
	case gjson.Number:
		tag = strconv.FormatFloat(v.Float(), 'f', 1, 64)
	default:
		return FormatUnknown, pkgerrors.NewCorruptDataError("version tag has unexpected type", nil)
	}

	switch {
	case tag == string(FormatV2):
		return FormatV2, nil
	case tag == "" || tag == "1" || strings.HasPrefix(tag, "1."):
		return FormatV1, nil
	}
	return FormatUnknown, pkgerrors.NewCorruptDataError("unsupported snapshot version", nil).
		WithDetail("version", tag)
}

// DecodeResult describes how a payload was interpreted
type DecodeResult struct {
	Format     FormatVersion
	Compressed bool
	Migrations []AppliedMigration
}

// Decoder turns stored payloads of any known layout into current snapshots
type Decoder struct {
	evolution *SchemaEvolution
	logger    *zap.Logger
}

// NewDecoder creates a new decoder
func NewDecoder(evolution *SchemaEvolution, logger *zap.Logger) *Decoder {
	if evolution == nil {
		evolution = NewSchemaEvolution()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Decoder{evolution: evolution, logger: logger}
}

// Decode detects, migrates and types a payload. Every absent field is defaulted.
func (d *Decoder) Decode(raw []byte) (*snapshot.Snapshot, DecodeResult, error) {
	format, err := DetectFormat(raw)
	result := DecodeResult{Format: format}
	if err != nil {
		return nil, result, err
	}

	if format != CurrentFormat {
		var doc Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, result, pkgerrors.NewCorruptDataError("snapshot could not be decoded", err)
		}
		applied, err := d.evolution.Migrate(doc, format)
		result.Migrations = applied
		if err != nil {
			return nil, result, pkgerrors.NewCorruptDataError("snapshot migration failed", err)
		}
		if raw, err = json.Marshal(doc); err != nil {
			return nil, result, pkgerrors.NewInternalError("migrated snapshot could not be encoded").WithCause(err)
		}
		for _, m := range applied {
			d.logger.Info("snapshot migrated",
				zap.String("from", string(m.FromVersion)),
				zap.String("to", string(m.ToVersion)),
				zap.String("description", m.Description))
		}
	}

	root := gjson.ParseBytes(raw)
	snap := typed(root)
	result.Compressed = snap.CacheFormat == snapshot.CacheCompressed
	return snap, result, nil
}

// typed reads a current-layout document field by field, falling back to defaults
func typed(root gjson.Result) *snapshot.Snapshot {
	s := snapshot.New()

	s.Version = snapshot.CurrentVersion
	s.Timestamp = root.Get("timestamp").Int()
	if str(root.Get("cacheFormat"), "") == string(snapshot.CacheCompressed) {
		s.CacheFormat = snapshot.CacheCompressed
	}

	settings := root.Get("settings")
	if settings.IsObject() {
		for key, apply := range settingsFields {
			if v := settings.Get(key); v.Exists() {
				apply(&s.Settings, v)
			}
		}
	}

	prefs := root.Get("displayPreferences")
	s.DisplayPreferences.ShowMaidenName = boolean(prefs.Get("showMaidenName"), true)
	s.DisplayPreferences.ShowDateOfBirth = boolean(prefs.Get("showDateOfBirth"), true)
	s.DisplayPreferences.ShowFatherName = boolean(prefs.Get("showFatherName"), true)

	s.NodeStyle = snapshot.ParseNodeStyle(root.Get("nodeStyle").String())

	camera := root.Get("camera")
	s.Camera.X = num(camera.Get("x"), 0)
	s.Camera.Y = num(camera.Get("y"), 0)
	s.Camera.Scale = num(camera.Get("scale"), 1)

	s.HiddenConnections = stringList(root.Get("hiddenConnections"))
	s.LineOnlyConnections = stringList(root.Get("lineOnlyConnections"))

	root.Get("persons").ForEach(func(_, p gjson.Result) bool {
		if p.IsObject() {
			s.Persons = append(s.Persons, person(p))
		}
		return true
	})

	if backup := root.Get("relationsBackup"); backup.IsObject() {
		s.RelationsBackup = make(map[string]snapshot.RelationRecord)
		backup.ForEach(func(key, rel gjson.Result) bool {
			rec := snapshot.RelationRecord{
				MotherID: id(rel.Get("motherId")),
				FatherID: id(rel.Get("fatherId")),
				SpouseID: id(rel.Get("spouseId")),
			}
			if key.String() != "" && !rec.IsEmpty() {
				s.RelationsBackup[key.String()] = rec
			}
			return true
		})
	}

	s.UndoDepth = int(num(root.Get("undoDepth"), 0))
	s.NextID = int(num(root.Get("nextId"), 0))
	return s
}

func person(p gjson.Result) snapshot.PersonRecord {
	return snapshot.PersonRecord{
		ID:         id(p.Get("id")),
		X:          num(p.Get("x"), 0),
		Y:          num(p.Get("y"), 0),
		Name:       str(p.Get("name"), ""),
		FatherName: str(p.Get("fatherName"), ""),
		Surname:    str(p.Get("surname"), ""),
		MaidenName: str(p.Get("maidenName"), ""),
		DOB:        str(p.Get("dob"), ""),
		Gender:     str(p.Get("gender"), ""),
		Color:      str(p.Get("color"), ""),
		Radius:     num(p.Get("radius"), 0),
		MotherID:   id(p.Get("motherId")),
		FatherID:   id(p.Get("fatherId")),
		SpouseID:   id(p.Get("spouseId")),
	}
}

var settingsFields = map[string]func(*snapshot.Settings, gjson.Result){
	"nodeRadius":          func(s *snapshot.Settings, v gjson.Result) { s.NodeRadius = positive(v, s.NodeRadius) },
	"defaultColor":        func(s *snapshot.Settings, v gjson.Result) { s.DefaultColor = str(v, s.DefaultColor) },
	"fontFamily":          func(s *snapshot.Settings, v gjson.Result) { s.FontFamily = str(v, s.FontFamily) },
	"fontSize":            func(s *snapshot.Settings, v gjson.Result) { s.FontSize = positive(v, s.FontSize) },
	"nameColor":           func(s *snapshot.Settings, v gjson.Result) { s.NameColor = str(v, s.NameColor) },
	"dateColor":           func(s *snapshot.Settings, v gjson.Result) { s.DateColor = str(v, s.DateColor) },
	"showNodeOutline":     func(s *snapshot.Settings, v gjson.Result) { s.ShowNodeOutline = boolean(v, s.ShowNodeOutline) },
	"outlineColor":        func(s *snapshot.Settings, v gjson.Result) { s.OutlineColor = str(v, s.OutlineColor) },
	"outlineThickness":    func(s *snapshot.Settings, v gjson.Result) { s.OutlineThickness = num(v, s.OutlineThickness) },
	"familyLineStyle":     func(s *snapshot.Settings, v gjson.Result) { s.FamilyLineStyle = str(v, s.FamilyLineStyle) },
	"familyLineThickness": func(s *snapshot.Settings, v gjson.Result) { s.FamilyLineThickness = positive(v, s.FamilyLineThickness) },
	"familyLineColor":     func(s *snapshot.Settings, v gjson.Result) { s.FamilyLineColor = str(v, s.FamilyLineColor) },
	"spouseLineStyle":     func(s *snapshot.Settings, v gjson.Result) { s.SpouseLineStyle = str(v, s.SpouseLineStyle) },
	"spouseLineThickness": func(s *snapshot.Settings, v gjson.Result) { s.SpouseLineThickness = positive(v, s.SpouseLineThickness) },
	"spouseLineColor":     func(s *snapshot.Settings, v gjson.Result) { s.SpouseLineColor = str(v, s.SpouseLineColor) },
	"lineOnlyStyle":       func(s *snapshot.Settings, v gjson.Result) { s.LineOnlyStyle = str(v, s.LineOnlyStyle) },
	"lineOnlyThickness":   func(s *snapshot.Settings, v gjson.Result) { s.LineOnlyThickness = positive(v, s.LineOnlyThickness) },
	"lineOnlyColor":       func(s *snapshot.Settings, v gjson.Result) { s.LineOnlyColor = str(v, s.LineOnlyColor) },
}

func str(v gjson.Result, def string) string {
	if v.Type == gjson.String {
		if s := strings.TrimSpace(v.String()); s != "" {
			return s
		}
	}
	return def
}

// id accepts string or numeric ids
func id(v gjson.Result) string {
	switch v.Type {
	case gjson.String:
		return strings.TrimSpace(v.String())
	case gjson.Number:
		return v.Raw
	}
	return ""
}

func num(v gjson.Result, def float64) float64 {
	switch v.Type {
	case gjson.Number:
		return v.Float()
	case gjson.String:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v.String()), 64); err == nil {
			return f
		}
	}
	return def
}

func positive(v gjson.Result, def float64) float64 {
	if f := num(v, def); f > 0 {
		return f
	}
	return def
}

func boolean(v gjson.Result, def bool) bool {
	if v.IsBool() {
		return v.Bool()
	}
	return def
}

func stringList(v gjson.Result) []string {
	out := []string{}
	v.ForEach(func(_, item gjson.Result) bool {
		if item.Type == gjson.String {
			out = append(out, item.String())
		}
		return true
	})
	return out
}
