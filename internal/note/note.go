// Package note defines the observations produced while checking a resource.
package note

import (
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"
)

// Category groups notes for presentation.
type Category string

// Categories a note may belong to.
const (
	General    Category = "General"
	Security   Category = "Security"
	Connection Category = "Connection"
	Conneg     Category = "Content Negotiation"
	Caching    Category = "Caching"
	Validation Category = "Validation"
	Range      Category = "Partial Content"
)

// Level orders notes by how much attention they deserve.
type Level int

// Levels, from least to most severe.
const (
	Info Level = iota
	Good
	Warn
	Bad
)

var levelNames = map[Level]string{
	Info: "info",
	Good: "good",
	Warn: "warning",
	Bad:  "bad",
}

func (l Level) String() string {
	if s, ok := levelNames[l]; ok {
		return s
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	if _, ok := levelNames[l]; !ok {
		return nil, fmt.Errorf("unknown level %d", int(l))
	}
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(text []byte) error {
	for lv, name := range levelNames {
		if name == string(text) {
			*l = lv
			return nil
		}
	}
	return fmt.Errorf("unknown level %q", text)
}

// WorseThan reports whether l is more severe than other.
func (l Level) WorseThan(other Level) bool {
	return l > other
}

// Kind identifies the observation. The text for a kind lives in a catalogue.
type Kind string

// Vars are the placeholder values substituted into the note text.
type Vars map[string]any

// Keys returns the variable names in sorted order.
func (v Vars) Keys() []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func (v Vars) String() string {
	parts := make([]string, 0, len(v))
	for _, k := range v.Keys() {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v[k]))
	}
	return strings.Join(parts, " ")
}

// Note is a single observation about a message. It is immutable once added.
type Note struct {
	Subject  string   `json:"subject"`
	Category Category `json:"category"`
	Level    Level    `json:"level"`
	Kind     Kind     `json:"kind"`
	Vars     Vars     `json:"vars,omitempty"`
	Source   string   `json:"source,omitempty"`
}

// Equal compares kind, subject and vars.
func (n Note) Equal(o Note) bool {
	if n.Kind != o.Kind || n.Subject != o.Subject {
		return false
	}
	if len(n.Vars) == 0 && len(o.Vars) == 0 {
		return true
	}
	return reflect.DeepEqual(n.Vars, o.Vars)
}

// Text renders the catalogue summary with vars substituted.
func (n Note) Text() string {
	return Summary(n.Kind, n.Vars)
}

// Adder receives notes. *List and the value returned by List.WithSource satisfy it.
type Adder interface {
	Add(subject string, kind Kind, vars Vars)
}

// Discard drops every note.
var Discard Adder = discard{}

type discard struct{}

func (discard) Add(string, Kind, Vars) {}

// List is an append-only, concurrency-safe collection of notes.
type List struct {
	mu    sync.Mutex
	notes []Note
	hook  func(Note)
}

// NewList returns an empty list. hook, if non-nil, is called for every note added.
func NewList(hook func(Note)) *List {
	return &List{hook: hook}
}

// Add appends a note, looking up its category and level in the catalogue.
func (l *List) Add(subject string, kind Kind, vars Vars) {
	l.add(subject, kind, vars, "")
}

func (l *List) add(subject string, kind Kind, vars Vars, source string) {
	def := Lookup(kind)
	n := Note{
		Subject:  subject,
		Category: def.Category,
		Level:    def.Level,
		Kind:     kind,
		Vars:     vars,
		Source:   source,
	}
	l.mu.Lock()
	l.notes = append(l.notes, n)
	l.mu.Unlock()
	if l.hook != nil {
		l.hook(n)
	}
}

// WithSource returns an Adder that tags each note with source before appending it to l.
func (l *List) WithSource(source string) Adder {
	return sourced{list: l, source: source}
}

type sourced struct {
	list   *List
	source string
}

func (s sourced) Add(subject string, kind Kind, vars Vars) {
	s.list.add(subject, kind, vars, s.source)
}

// All returns a copy of the notes in insertion order.
func (l *List) All() []Note {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.notes)
}

// Len returns the number of notes.
func (l *List) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.notes)
}

// Kinds returns the kind of every note in insertion order.
func (l *List) Kinds() []Kind {
	l.mu.Lock()
	defer l.mu.Unlock()
	kinds := make([]Kind, len(l.notes))
	for i, n := range l.notes {
		kinds[i] = n.Kind
	}
	return kinds
}

// Count returns how many notes of kind were added.
func (l *List) Count(kind Kind) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	c := 0
	for _, n := range l.notes {
		if n.Kind == kind {
			c++
		}
	}
	return c
}

// Has reports whether at least one note of kind was added.
func (l *List) Has(kind Kind) bool {
	return l.Count(kind) > 0
}

// Filter returns the notes in category.
func (l *List) Filter(category Category) []Note {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Note
	for _, n := range l.notes {
		if n.Category == category {
			out = append(out, n)
		}
	}
	return out
}

// MarshalJSON encodes the notes as an array.
func (l *List) MarshalJSON() ([]byte, error) {
	all := l.All()
	if all == nil {
		all = []Note{}
	}
	b, err := json.Marshal(all)
	if err != nil {
		return nil, fmt.Errorf("marshal notes: %w", err)
	}
	return b, nil
}
