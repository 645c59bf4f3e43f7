package llm

import "strings"

const (
	LabelPrimary  = "primary"
	LabelFallback = "fallback"
	LabelSystem   = "system"
)

// CredentialSet is the ordered primary/fallback pair for one backend.
type CredentialSet struct {
	Primary  string
	Fallback string
}

// Resolve returns at most two usable credentials in priority order. Empty
// keys, keys rejected by valid and a fallback equal to the primary are
// dropped without error.
func (s CredentialSet) Resolve(valid func(string) bool) []Credential {
	out := make([]Credential, 0, 2)
	add := func(label, key string) {
		key = strings.TrimSpace(key)
		if key == "" {
			return
		}
		if valid != nil && !valid(key) {
			return
		}
		for _, c := range out {
			if c.Key == key {
				return
			}
		}
		out = append(out, Credential{Label: label, Key: key})
	}
	add(LabelPrimary, s.Primary)
	add(LabelFallback, s.Fallback)
	return out
}
