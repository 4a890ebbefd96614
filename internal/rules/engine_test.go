package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kal/internal/model"
)

func TestApply_PrefixAndColor(t *testing.T) {
	rs := decodeRules(t, sampleRules)[:1]

	out, err := Apply([]model.Event{{Title: "HAI507I - cours"}}, rs)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Calcul formel - HAI507I - cours", out[0].Title)
	assert.Equal(t, model.Sage, out[0].Color)
	assert.Equal(t, "2", out[0].Color.ID())
}

func TestApply_RemovalAfterEarlierRuleMatched(t *testing.T) {
	rs := decodeRules(t, sampleRules)

	in := []model.Event{{Title: "HAX503X - TD", Description: "Groupe HAX504X"}}
	out, err := Apply(in, rs)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, "HAX503X - TD", in[0].Title, "input events are never mutated")
}

func TestApply_PreservesOrderAndDropsRemoved(t *testing.T) {
	rs := decodeRules(t, sampleRules)

	in := []model.Event{
		{Title: "HAX505X - cours", Location: "Amphi A"},
		{Title: "HAX504X", Description: "HAX504X"},
		{Title: "Sport"},
		{Title: "HAX503X TD", Location: "Amphi B"},
	}

	out, err := Apply(in, rs)
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.Equal(t, "Fourier - HAX505X - cours", out[0].Title)
	assert.Equal(t, model.Tomato, out[0].Color)
	assert.Equal(t, "Amphi A", out[0].Location)

	assert.Equal(t, "Sport", out[1].Title)
	assert.Equal(t, " [kal]", out[1].Description)
	assert.Equal(t, model.ColorNone, out[1].Color)

	assert.Equal(t, "Fourier - HAX503X TD", out[2].Title)
	assert.Equal(t, "Room", out[2].Location)
}

func TestApply_NoRules(t *testing.T) {
	in := []model.Event{{Title: "a"}, {Title: "b"}}
	out, err := Apply(in, nil)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	out, err = Apply(nil, decodeRules(t, sampleRules))
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestApply_ErrorAbortsRun(t *testing.T) {
	rs := []Rule{New([]Condition{Always()}, SetColor(model.Peacock)), New(nil, Remove()).Named("broken")}

	out, err := Apply([]model.Event{{Title: "x"}}, rs)
	assert.ErrorIs(t, err, ErrNoConditions)
	assert.Nil(t, out)
	assert.ErrorIs(t, Validate(rs), ErrNoConditions)
}
