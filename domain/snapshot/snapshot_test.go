package snapshot

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_CarriesDefaults(t *testing.T) {
	s := New()
	assert.Equal(t, CurrentVersion, s.Version)
	assert.Equal(t, 50.0, s.Settings.NodeRadius)
	assert.Equal(t, "Inter", s.Settings.FontFamily)
	assert.Equal(t, "dash-dot", s.Settings.LineOnlyStyle)
	assert.True(t, s.Settings.ShowNodeOutline)
	assert.Equal(t, DefaultDisplayPreferences(), s.DisplayPreferences)
	assert.Equal(t, NodeStyleCircle, s.NodeStyle)
	assert.Equal(t, Camera{Scale: 1}, s.Camera)
	assert.Equal(t, 1, s.NextID)
}

func TestCompress_DropsOptionalState(t *testing.T) {
	s := New()
	s.Persons = []PersonRecord{{ID: "p1", Name: "A"}, {ID: "p2", MotherID: "p1"}}
	s.HiddenConnections = []string{"p1-p2"}
	s.BuildRelationsBackup()

	raw, err := json.Marshal(s.Compress())
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "compressed", doc["cacheFormat"])
	assert.Contains(t, doc, "persons")
	assert.Contains(t, doc, "nextId")
	assert.Contains(t, doc, "hiddenConnections")
	assert.Contains(t, doc, "lineOnlyConnections")
	assert.NotContains(t, doc, "settings")
	assert.NotContains(t, doc, "camera")
	assert.NotContains(t, doc, "relationsBackup")
}

func TestRelationsBackupRoundTrip(t *testing.T) {
	s := New()
	s.Persons = []PersonRecord{
		{ID: "p1"},
		{ID: "p2", MotherID: "p1", SpouseID: "p3"},
		{ID: "p3"},
	}
	s.BuildRelationsBackup()
	assert.Equal(t, map[string]RelationRecord{"p2": {MotherID: "p1", SpouseID: "p3"}}, s.RelationsBackup)

	s.Persons[1].MotherID, s.Persons[1].SpouseID = "", ""
	assert.False(t, s.HasRelations())
	assert.Equal(t, 1, s.RestoreRelationsFromBackup())
	assert.Equal(t, "p1", s.Persons[1].MotherID)
	assert.Equal(t, "p3", s.Persons[1].SpouseID)
}

func TestRepair(t *testing.T) {
	s := New()
	s.NextID = 2
	s.NodeStyle = "hexagon"
	s.Camera.Scale = 0
	s.Persons = []PersonRecord{
		{ID: "p1", Gender: "Female", Radius: 0},
		{ID: "p1", Name: "duplicate"},
		{ID: "", Name: "nameless"},
		{ID: "bad-id"},
		{ID: "p7", Gender: "robot", MotherID: "p7", FatherID: "p1"},
	}
	s.HiddenConnections = []string{"p7-p1", "p1-p7", "junk"}

	report := s.Repair(nil)
	assert.True(t, report.Changed())
	assert.Equal(t, 3, report.DroppedPersons)
	assert.Equal(t, 2, report.DroppedKeys)
	assert.Equal(t, 1, report.ClearedRelations)

	require.Len(t, s.Persons, 2)
	assert.Equal(t, "female", s.Persons[0].Gender)
	assert.Equal(t, 50.0, s.Persons[0].Radius)
	assert.Equal(t, "#3498db", s.Persons[0].Color)
	assert.Equal(t, "", s.Persons[1].Gender)
	assert.Equal(t, "", s.Persons[1].MotherID)
	assert.Equal(t, "p1", s.Persons[1].FatherID)

	assert.Equal(t, []string{"p1-p7"}, s.HiddenConnections)
	assert.Equal(t, NodeStyleCircle, s.NodeStyle)
	assert.Equal(t, 1.0, s.Camera.Scale)
	assert.Equal(t, 8, s.NextID)
}

func TestRepair_RestoresRelationsFromBackup(t *testing.T) {
	s := New()
	s.Persons = []PersonRecord{{ID: "p1"}, {ID: "p2"}}
	s.RelationsBackup = map[string]RelationRecord{
		"p2":    {MotherID: "p1"},
		"ghost": {FatherID: "p1"},
	}

	report := s.Repair(nil)
	assert.Equal(t, 1, report.RestoredRelations)
	assert.Equal(t, "p1", s.Persons[1].MotherID)
}

func TestRepair_LeavesPrimaryRelationsAlone(t *testing.T) {
	s := New()
	s.Persons = []PersonRecord{{ID: "p1"}, {ID: "p2", FatherID: "p1"}, {ID: "p3"}}
	s.RelationsBackup = map[string]RelationRecord{"p3": {MotherID: "p1"}}

	report := s.Repair(nil)
	assert.Zero(t, report.RestoredRelations)
	assert.Equal(t, "", s.Persons[2].MotherID)
}

func TestParseNodeStyle(t *testing.T) {
	assert.Equal(t, NodeStyleRectangle, ParseNodeStyle(" Rectangle"))
	assert.Equal(t, NodeStyleCircle, ParseNodeStyle("blob"))
}

func TestClone_IsIndependent(t *testing.T) {
	s := New()
	s.Persons = []PersonRecord{{ID: "p1"}}
	s.RelationsBackup = map[string]RelationRecord{"p1": {SpouseID: "p2"}}

	c := s.Clone()
	c.Persons[0].Name = "changed"
	c.RelationsBackup["p1"] = RelationRecord{}

	assert.Equal(t, "", s.Persons[0].Name)
	assert.Equal(t, "p2", s.RelationsBackup["p1"].SpouseID)
}

func TestRepair_ClearsUnusableRelationTargets(t *testing.T) {
	s := New()
	s.Persons = []PersonRecord{{ID: "p1"}, {ID: "p2", MotherID: "p1", SpouseID: "p1-p3"}}
	s.RelationsBackup = map[string]RelationRecord{"p1": {FatherID: "p2-p9"}}

	report := s.Repair(nil)
	assert.Equal(t, 1, report.ClearedRelations)
	assert.Equal(t, "p1", s.Persons[1].MotherID)
	assert.Equal(t, "", s.Persons[1].SpouseID)
	assert.Equal(t, "", s.Persons[0].FatherID, "primary relations exist, so the backup is not used")
}
