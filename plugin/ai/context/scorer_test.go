package context

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"is", "the", "kitchen_light", "on"}, Tokenize("Is the Kitchen_Light on?"))
	assert.Equal(t, []string{"living-room", "22c"}, Tokenize("  Living-Room: 22°C "))
	assert.Empty(t, Tokenize("?!"))
}

func TestIdentifierTokens(t *testing.T) {
	assert.Equal(t, []string{"switch", "kitchen_kettle", "kitchen", "kettle"}, identifierTokens("switch.kitchen_kettle"))
	assert.Equal(t, []string{"light", "desk"}, identifierTokens("light.desk"))
}

func TestScorer_Weights(t *testing.T) {
	meta := &EntityMetadata{
		EntityID:    "light.kitchen",
		DisplayName: "Kitchen Light",
		AreaName:    "Kitchen",
		DeviceName:  "Hue Bulb",
	}

	tests := []struct {
		name          string
		query         string
		focusAreas    []string
		focusEntities []string
		want          int
	}{
		{"no overlap", "garage door", nil, nil, 0},
		{"domain only", "light", nil, nil, WeightIdentifier + WeightDisplayName + WeightDomain},
		{"area word", "kitchen", nil, nil, WeightIdentifier + WeightDisplayName + WeightAreaName},
		{"device word", "bulb", nil, nil, WeightDeviceName},
		{"focus entity", "", nil, []string{"light.kitchen"}, WeightFocusEntity},
		{"focus area", "", []string{"Kitchen"}, nil, WeightFocusArea},
		{"repeated query token counts once", "bulb bulb bulb", nil, nil, WeightDeviceName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewScorer(tt.query, tt.focusAreas, tt.focusEntities)
			assert.Equal(t, tt.want, s.Score(meta))
		})
	}

	assert.Equal(t, 0, NewScorer("kitchen", nil, nil).Score(nil))
}

func TestScorer_FocusEntityIgnoresCase(t *testing.T) {
	meta := &EntityMetadata{EntityID: "light.Kitchen_Main"}
	s := NewScorer("", nil, []string{"LIGHT.kitchen_main"})
	assert.Equal(t, WeightFocusEntity, s.Score(meta))
}

func TestScorer_Monotonicity(t *testing.T) {
	withLamp := &EntityMetadata{EntityID: "light.a", DisplayName: "Desk Lamp"}
	without := &EntityMetadata{EntityID: "light.a", DisplayName: "Desk Bulb"}

	base := NewScorer("desk", nil, nil)
	extended := NewScorer("desk lamp", nil, nil)

	assert.Greater(t, extended.Score(withLamp), base.Score(withLamp))
	assert.Greater(t, extended.Score(withLamp), extended.Score(without))
	assert.Equal(t, base.Score(withLamp), base.Score(without))
}

func TestScorer_KitchenScenario(t *testing.T) {
	states := []*EntityState{
		{EntityID: "sensor.outdoor_temp"},
		{EntityID: "light.kitchen"},
	}
	metadata := map[string]*EntityMetadata{
		"sensor.outdoor_temp": {EntityID: "sensor.outdoor_temp", DisplayName: "Outdoor Temperature"},
		"light.kitchen":       {EntityID: "light.kitchen", DisplayName: "Kitchen Light", AreaName: "Kitchen"},
	}
	s := NewScorer("kitchen light status", nil, nil)

	assert.Greater(t, s.Score(metadata["light.kitchen"]), s.Score(metadata["sensor.outdoor_temp"]))

	ranked := s.Rank(states, metadata)
	if assert.Len(t, ranked, 1) {
		assert.Equal(t, "light.kitchen", ranked[0].State.EntityID)
	}
}

func TestScorer_RankStableForTies(t *testing.T) {
	states := []*EntityState{{EntityID: "light.b"}, {EntityID: "light.a"}, {EntityID: "light.c"}}
	metadata := map[string]*EntityMetadata{
		"light.b": {EntityID: "light.b", DisplayName: "Lamp"},
		"light.a": {EntityID: "light.a", DisplayName: "Lamp"},
		"light.c": {EntityID: "light.c", DisplayName: "Reading Lamp"},
	}

	ranked := NewScorer("reading lamp", nil, nil).Rank(states, metadata)
	ids := make([]string, 0, len(ranked))
	for _, c := range ranked {
		ids = append(ids, c.State.EntityID)
	}
	assert.Equal(t, []string{"light.c", "light.b", "light.a"}, ids)
}
