// Package fallback serves pre-authored quiz and notes content when no
// inference backend can answer.
package fallback

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed bank.yaml
var embeddedBank []byte

type Question struct {
	Question     string   `yaml:"question" json:"question"`
	Options      []string `yaml:"options" json:"options"`
	CorrectIndex int      `yaml:"correct_index" json:"correct_index"`
	Explanation  string   `yaml:"explanation" json:"explanation"`
	Takeaway     string   `yaml:"takeaway" json:"takeaway"`
}

type Quiz struct {
	Topic      string     `json:"topic"`
	Difficulty string     `json:"difficulty,omitempty"`
	Questions  []Question `json:"questions"`
	Fallback   bool       `json:"fallback,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// NotesContent is the offline part of a notes payload.
type NotesContent struct {
	Formulas          []string `yaml:"formulas"`
	Example           string   `yaml:"example"`
	Mistakes          []string `yaml:"mistakes"`
	PracticeQuestions []string `yaml:"practice_questions"`
	Summary           []string `yaml:"summary"`
	Resources         []string `yaml:"resources"`
}

type Bundle struct {
	Name       string       `yaml:"name"`
	Topic      string       `yaml:"topic"`
	Difficulty string       `yaml:"difficulty"`
	Questions  []Question   `yaml:"questions"`
	Notes      NotesContent `yaml:"notes"`
}

// KeywordRule maps any topic containing Keyword to the bucket Topic.
type KeywordRule struct {
	Keyword string `yaml:"keyword"`
	Topic   string `yaml:"topic"`
}

// Bank is read-only after Load and safe for concurrent use.
type Bank struct {
	Generic  string        `yaml:"generic"`
	Keywords []KeywordRule `yaml:"keywords"`
	Buckets  []Bundle      `yaml:"buckets"`

	byName map[string]int
}

// Default parses the embedded bank.
func Default() (*Bank, error) { return Parse(embeddedBank) }

// Load reads a bank from path, or the embedded one when path is empty.
func Load(path string) (*Bank, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fallback: read %s: %w", path, err)
	}
	return Parse(b)
}

func Parse(b []byte) (*Bank, error) {
	var bank Bank
	if err := yaml.Unmarshal(b, &bank); err != nil {
		return nil, fmt.Errorf("fallback: parse bank: %w", err)
	}
	bank.byName = make(map[string]int, len(bank.Buckets))
	for i, bu := range bank.Buckets {
		if bu.Name == "" {
			return nil, fmt.Errorf("fallback: bucket %d has no name", i)
		}
		if bu.Topic == "" {
			bank.Buckets[i].Topic = bu.Name
		}
		bank.byName[bu.Name] = i
	}
	if _, ok := bank.byName[bank.Generic]; !ok {
		return nil, fmt.Errorf("fallback: generic bucket %q not defined", bank.Generic)
	}
	for i, r := range bank.Keywords {
		if strings.TrimSpace(r.Keyword) == "" {
			return nil, fmt.Errorf("fallback: keyword rule %d is blank", i)
		}
		if _, ok := bank.byName[r.Topic]; !ok {
			return nil, fmt.Errorf("fallback: keyword %q points to unknown bucket %q", r.Keyword, r.Topic)
		}
	}
	return &bank, nil
}

// Match reports which rule picked a bucket.
type Match string

const (
	MatchExact     Match = "exact"
	MatchKeyword   Match = "keyword"
	MatchSubstring Match = "substring"
	MatchGeneric   Match = "generic"
)

// Lookup resolves a free-form topic to a bucket: exact name (case-sensitive,
// then case-insensitive), keyword rules in order, bidirectional substring
// against bucket names, then the generic bucket.
func (b *Bank) Lookup(topic string) (Bundle, Match) {
	t := strings.TrimSpace(topic)
	if i, ok := b.byName[t]; ok {
		return b.Buckets[i], MatchExact
	}
	lower := strings.ToLower(t)
	for _, bu := range b.Buckets {
		if strings.ToLower(bu.Name) == lower {
			return bu, MatchExact
		}
	}
	if lower != "" {
		for _, r := range b.Keywords {
			if strings.Contains(lower, strings.ToLower(r.Keyword)) {
				return b.Buckets[b.byName[r.Topic]], MatchKeyword
			}
		}
		for _, bu := range b.Buckets {
			name := strings.ToLower(bu.Name)
			if strings.Contains(lower, name) || strings.Contains(name, lower) {
				return bu, MatchSubstring
			}
		}
	}
	return b.Buckets[b.byName[b.Generic]], MatchGeneric
}

// Quiz returns exactly n questions for topic, repeating the bucket's
// questions in order when it has fewer than n.
func (b *Bank) Quiz(topic string, n int) Quiz {
	bu, _ := b.Lookup(topic)
	if n <= 0 {
		n = len(bu.Questions)
	}
	qs := make([]Question, 0, n)
	for i := 0; i < n && len(bu.Questions) > 0; i++ {
		q := bu.Questions[i%len(bu.Questions)]
		q.Options = append([]string(nil), q.Options...)
		qs = append(qs, q)
	}
	return Quiz{
		Topic:      bu.Topic,
		Difficulty: bu.Difficulty,
		Questions:  qs,
		Fallback:   true,
	}
}

// Notes returns a copy of the bucket's offline notes content.
func (b *Bank) Notes(topic string) NotesContent {
	bu, _ := b.Lookup(topic)
	n := bu.Notes
	return NotesContent{
		Formulas:          cloneStrings(n.Formulas),
		Example:           n.Example,
		Mistakes:          cloneStrings(n.Mistakes),
		PracticeQuestions: cloneStrings(n.PracticeQuestions),
		Summary:           cloneStrings(n.Summary),
		Resources:         cloneStrings(n.Resources),
	}
}

// Names lists bucket names in file order.
func (b *Bank) Names() []string {
	out := make([]string, 0, len(b.Buckets))
	for _, bu := range b.Buckets {
		out = append(out, bu.Name)
	}
	return out
}

func cloneStrings(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}
