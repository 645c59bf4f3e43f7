package llm

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// Decode strategies, in the order they are tried.
const (
	StrategyNone = iota
	StrategyDirect
	StrategyFence
	StrategyBraces
	StrategyOpenTail
)

// Decoded is the outcome of Decode. Value is nil when nothing parsed.
type Decoded struct {
	Value    any
	Strategy int
}

func (d Decoded) OK() bool { return d.Strategy != StrategyNone }

var reFence = regexp.MustCompile("(?s)```[ \t]*(?:json|JSON)?[ \t]*\r?\n?(.*?)```")

// Decode extracts a JSON value from model output that may be wrapped in
// prose or markdown fences. It is pure: equal input gives equal output.
func Decode(raw string) Decoded {
	text := strings.TrimSpace(raw)
	if text == "" {
		return Decoded{}
	}

	if v, ok := parseJSON(text); ok {
		return Decoded{Value: v, Strategy: StrategyDirect}
	}

	for _, m := range reFence.FindAllStringSubmatch(text, -1) {
		if v, ok := parseJSON(strings.TrimSpace(m[1])); ok {
			return Decoded{Value: v, Strategy: StrategyFence}
		}
	}

	first := strings.IndexByte(text, '{')
	if first < 0 {
		return Decoded{}
	}
	if last := strings.LastIndexByte(text, '}'); last > first {
		if v, ok := parseJSON(text[first : last+1]); ok {
			return Decoded{Value: v, Strategy: StrategyBraces}
		}
	}
	if v, ok := parseJSON(text[first:]); ok {
		return Decoded{Value: v, Strategy: StrategyOpenTail}
	}
	return Decoded{}
}

// DecodeObject is Decode restricted to JSON objects.
func DecodeObject(raw string) (map[string]any, bool) {
	d := Decode(raw)
	m, ok := d.Value.(map[string]any)
	return m, ok
}

func parseJSON(s string) (any, bool) {
	if s == "" || !gjson.Valid(s) {
		return nil, false
	}
	return gjson.Parse(s).Value(), true
}
