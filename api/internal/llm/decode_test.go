package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_Strategies(t *testing.T) {
	cases := []struct {
		name     string
		raw      string
		strategy int
		want     any
	}{
		{"direct object", `{"a":1}`, StrategyDirect, map[string]any{"a": float64(1)}},
		{"direct with whitespace", "\n  [1,2]  \n", StrategyDirect, []any{float64(1), float64(2)}},
		{"tagged fence", "Here:\n```json\n{\"a\":\"b\"}\n```\nbye", StrategyFence, map[string]any{"a": "b"}},
		{"bare fence", "```\n{\"a\":true}\n```", StrategyFence, map[string]any{"a": true}},
		{"second fence parses", "```\nnope\n```\n```json\n{\"x\":2}\n```", StrategyFence, map[string]any{"x": float64(2)}},
		{"braces in prose", `Sure! {"a":1} hope that helps`, StrategyBraces, map[string]any{"a": float64(1)}},
		{"nothing", "not json at all", StrategyNone, nil},
		{"empty", "   ", StrategyNone, nil},
		{"broken", `{"a": `, StrategyNone, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := Decode(tc.raw)
			assert.Equal(t, tc.strategy, d.Strategy)
			assert.Equal(t, tc.want, d.Value)
			assert.Equal(t, tc.strategy != StrategyNone, d.OK())
		})
	}
}

func TestDecode_FencedOptics(t *testing.T) {
	raw := "Here is the classification:\n```json\n{\"topic\": \"Optics\", \"variables\": [\"f\", \"u\", \"v\"]}\n```"
	obj, ok := DecodeObject(raw)
	require.True(t, ok)
	assert.Equal(t, "Optics", obj["topic"])
	assert.Equal(t, []any{"f", "u", "v"}, obj["variables"])
}

func TestDecode_Idempotent(t *testing.T) {
	inputs := []string{
		`{"a":1}`,
		"```json\n{\"topic\":\"Optics\"}\n```",
		"prefix {\"k\": [1, 2]} suffix",
		"not json at all",
	}
	for _, in := range inputs {
		assert.Equal(t, Decode(in), Decode(in), in)
	}
}

func TestDecodeObject_RejectsNonObjects(t *testing.T) {
	_, ok := DecodeObject(`[1,2,3]`)
	assert.False(t, ok)
	_, ok = DecodeObject(`"just a string"`)
	assert.False(t, ok)
	_, ok = DecodeObject("not json at all")
	assert.False(t, ok)
}

func TestDecode_ValueTypes(t *testing.T) {
	d := Decode(`{"n":3,"ok":true,"list":["a",1.5],"obj":{"x":null}}`)
	require.True(t, d.OK())
	assert.Equal(t, map[string]any{
		"n":    float64(3),
		"ok":   true,
		"list": []any{"a", 1.5},
		"obj":  map[string]any{"x": nil},
	}, d.Value)

	d = Decode(`{"broken": [1, 2}`)
	assert.False(t, d.OK())
}
