package valueobjects

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConnectionKey_IsOrderIndependent(t *testing.T) {
	assert.Equal(t, ConnectionKey("p1-p2"), NewConnectionKey("p1", "p2"))
	assert.Equal(t, ConnectionKey("p1-p2"), NewConnectionKey("p2", "p1"))
	// lexicographic, not numeric
	assert.Equal(t, ConnectionKey("p10-p9"), NewConnectionKey("p9", "p10"))
}

func TestParseConnectionKey(t *testing.T) {
	tests := []struct {
		raw    string
		want   ConnectionKey
		wantOK bool
	}{
		{raw: "p1-p2", want: "p1-p2", wantOK: true},
		{raw: "p2-p1", want: "p1-p2", wantOK: true},
		{raw: "p1", wantOK: false},
		{raw: "-p1", wantOK: false},
		{raw: "p1-", wantOK: false},
		{raw: "p1-p2-p3", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := ParseConnectionKey(tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestConnectionKey_Endpoints(t *testing.T) {
	a, b, ok := NewConnectionKey("p7", "p3").Endpoints()
	require.True(t, ok)
	assert.Equal(t, PersonID("p3"), a)
	assert.Equal(t, PersonID("p7"), b)
	assert.True(t, NewConnectionKey("p7", "p3").Involves("p7"))
	assert.False(t, NewConnectionKey("p7", "p3").Involves("p1"))
}

func TestKeySet(t *testing.T) {
	set := NewKeySet("p2-p1", "p3-p1", "garbage", "p4-p5")
	assert.Len(t, set, 3)
	assert.True(t, set.Has("p1-p2"))
	assert.Equal(t, []string{"p1-p2", "p1-p3", "p4-p5"}, set.Strings())

	clone := set.Clone()
	assert.Equal(t, 2, set.RemoveInvolving("p1"))
	assert.Len(t, set, 1)
	assert.Len(t, clone, 3, "clone must be independent")

	var empty KeySet
	assert.False(t, empty.Has("p1-p2"))
}

func TestPersonID(t *testing.T) {
	id := NewPersonID("p", 42)
	assert.Equal(t, PersonID("p42"), id)

	seq, ok := id.Sequence("p")
	require.True(t, ok)
	assert.Equal(t, 42, seq)

	_, ok = PersonID("custom").Sequence("p")
	assert.False(t, ok)

	assert.True(t, id.IsValid())
	assert.False(t, PersonID("a-b").IsValid())
	assert.False(t, PersonID("").IsValid())
}

func TestParseGender(t *testing.T) {
	tests := []struct {
		raw     string
		want    Gender
		wantErr bool
	}{
		{"male", GenderMale, false},
		{" Female ", GenderFemale, false},
		{"", GenderUnspecified, false},
		{"unspecified", GenderUnspecified, false},
		{"other", GenderUnspecified, true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseGender(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewPosition(t *testing.T) {
	p, err := NewPosition(3, 4)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, p.DistanceTo(Position{}), 1e-9)
	assert.True(t, p.Translate(1, 1).Equals(Position{X: 4, Y: 5}))

	_, err = NewPosition(math.NaN(), 0)
	assert.Error(t, err)
	_, err = NewPosition(0, math.Inf(1))
	assert.Error(t, err)
}
