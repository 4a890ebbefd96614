package rules

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"kal/internal/model"
)

const sampleRules = `
- name: calcul-formel
  when:
    - field: title
      contains: HAI507I
      case_sensitive: false
  then:
    - prefix: {field: title, value: "Calcul formel - "}
    - color: sage
- when:
    - or:
        - {field: title, contains: HAX503X, case_sensitive: false}
        - {field: summary, contains: HAX505X, case_sensitive: false}
  then:
    - prefix: {field: title, value: "Fourier - "}
    - color: tomato
- name: drop-hax504x
  when:
    - field: description
      contains: HAX504X
  then:
    - remove: true
- when:
    - always: true
  then:
    - append: {field: description, value: " [kal]"}
- when:
    - {field: location, starts_with: Amphi}
    - {field: title, ends_with: TD}
  then:
    - set: {field: location, value: Room}
`

func decodeRules(t *testing.T, src string) []Rule {
	t.Helper()
	var rs []Rule
	require.NoError(t, yaml.Unmarshal([]byte(src), &rs))
	return rs
}

func TestYAML_Decode(t *testing.T) {
	rs := decodeRules(t, sampleRules)
	require.Len(t, rs, 5)

	first := rs[0]
	assert.Equal(t, "calcul-formel", first.Name)
	want, err := Contains(model.FieldTitle, "HAI507I", false)
	require.NoError(t, err)
	assert.Equal(t, []Condition{want}, first.When)
	assert.Equal(t, SetColor(model.Sage), first.Then[1])

	assert.Equal(t, OpOr, rs[1].When[0].Op)
	assert.Len(t, rs[1].When[0].Any, 2)
	assert.Equal(t, model.FieldTitle, rs[1].When[0].Any[1].Field, "summary is an alias of title")

	assert.True(t, rs[2].When[0].CaseSensitive, "contains is case sensitive by default")
	assert.Equal(t, Remove(), rs[2].Then[0])

	assert.NoError(t, Validate(rs))
}

func TestYAML_Describe(t *testing.T) {
	rs := decodeRules(t, sampleRules)

	g := goldie.New(t)
	g.Assert(t, "describe", []byte(Describe(rs)))
}

func TestYAML_RoundTrip(t *testing.T) {
	rs := decodeRules(t, sampleRules)

	out, err := yaml.Marshal(rs)
	require.NoError(t, err)

	again := decodeRules(t, string(out))
	assert.Equal(t, rs, again)
}

func TestYAML_DecodeErrors(t *testing.T) {
	testCases := []struct {
		name string
		src  string
		want error
	}{
		{
			name: "no conditions",
			src:  "- then: [{remove: true}]\n",
			want: ErrNoConditions,
		},
		{
			name: "several operators",
			src:  "- when: [{field: title, contains: a, equals: b}]\n  then: [{remove: true}]\n",
			want: ErrInvalidRule,
		},
		{
			name: "no operator",
			src:  "- when: [{field: title}]\n  then: [{remove: true}]\n",
			want: ErrInvalidRule,
		},
		{
			name: "unknown condition key",
			src:  "- when: [{field: title, contain: a}]\n  then: [{remove: true}]\n",
			want: ErrInvalidRule,
		},
		{
			name: "unknown rule key",
			src:  "- when: [{always: true}]\n  than: [{remove: true}]\n",
			want: ErrInvalidRule,
		},
		{
			name: "case_sensitive on equals",
			src:  "- when: [{field: title, equals: a, case_sensitive: false}]\n  then: [{remove: true}]\n",
			want: ErrInvalidRule,
		},
		{
			name: "or with one operand",
			src:  "- when: [{or: [{always: true}]}]\n  then: [{remove: true}]\n",
			want: ErrInvalidRule,
		},
		{
			name: "unknown field",
			src:  "- when: [{field: organizer, contains: a}]\n  then: [{remove: true}]\n",
			want: model.ErrUnknownField,
		},
		{
			name: "string operator on time field",
			src:  "- when: [{field: start, starts_with: \"2021\"}]\n  then: [{remove: true}]\n",
			want: model.ErrFieldType,
		},
		{
			name: "unknown color",
			src:  "- when: [{always: true}]\n  then: [{color: purple}]\n",
			want: ErrInvalidRule,
		},
		{
			name: "prefix on color field",
			src:  "- when: [{always: true}]\n  then: [{prefix: {field: color, value: x}}]\n",
			want: model.ErrFieldType,
		},
		{
			name: "several actions",
			src:  "- when: [{always: true}]\n  then: [{remove: true, color: sage}]\n",
			want: ErrInvalidRule,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var rs []Rule
			err := yaml.Unmarshal([]byte(tc.src), &rs)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}
