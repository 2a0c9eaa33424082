// Package headers parses and validates HTTP header fields.
//
// A Registry maps lower-cased field names to Handlers. Processing a header
// block groups the raw lines by name, parses each occurrence and joins the
// results into one value per field. Problems are reported as notes and never
// abort processing; a field that fails to parse is treated as absent.
package headers

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/JakeFAU/redprobe/internal/note"
)

// Field is one raw header line.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Direction restricts which kind of message a field may appear in.
type Direction int

// Directions.
const (
	Both Direction = iota
	RequestOnly
	ResponseOnly
)

// Context is passed to Parse, Join and Check functions.
type Context struct {
	Name    string
	Subject string
	Request bool
	Notes   note.Adder
}

// Note records an observation about the field. It fills field_name.
func (c *Context) Note(kind note.Kind, vars note.Vars) {
	v := note.Vars{"field_name": c.Name}
	for k, val := range vars {
		v[k] = val
	}
	c.Notes.Add(c.Subject, kind, v)
}

// ParseFunc turns one field value (or list element) into a typed value.
// It returns false when the value is unusable.
type ParseFunc func(c *Context, raw string) (any, bool)

// JoinFunc combines the parsed values of every occurrence of a field.
type JoinFunc func(c *Context, values []any) any

// Handler describes how a field is parsed.
type Handler struct {
	Name       string
	Parse      ParseFunc
	Join       JoinFunc
	Check      func(c *Context, value any)
	Direction  Direction
	Repeatable bool
	List       bool
	Syntax     *regexp.Regexp
	Deprecated bool
}

// Registry holds handlers keyed by lower-cased field name.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Default returns the process-wide registry with every built-in field.
var Default = sync.OnceValue(func() *Registry {
	r := NewRegistry()
	for _, h := range builtinHandlers() {
		if err := r.Register(h); err != nil {
			panic(err)
		}
	}
	return r
})

// Register composes h's wrappers and adds it to the registry.
func (r *Registry) Register(h Handler) error {
	if h.Name == "" {
		return fmt.Errorf("register handler: empty name")
	}
	key := strings.ToLower(h.Name)
	if h.Parse == nil {
		h.Parse = parseRaw
	}
	if h.Syntax != nil {
		h.Parse = checkSyntax(h.Syntax, h.Parse)
	}
	if h.Join == nil {
		if h.Repeatable || h.List {
			h.Join = JoinList
		} else {
			h.Join = JoinLast
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.handlers[key]; ok {
		return fmt.Errorf("register handler: %s already registered", h.Name)
	}
	r.handlers[key] = h
	return nil
}

// Lookup returns the handler for name, case-insensitively.
func (r *Registry) Lookup(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[strings.ToLower(name)]
	return h, ok
}

// Process parses a header block. Unhandled fields pass through as []string.
func (r *Registry) Process(fields []Field, request bool, notes note.Adder) Parsed {
	if notes == nil {
		notes = note.Discard
	}
	var order []string
	grouped := make(map[string][]string)
	display := make(map[string]string)
	for _, f := range fields {
		key := strings.ToLower(f.Name)
		checkEncoding(f, request, notes)
		if _, ok := grouped[key]; !ok {
			order = append(order, key)
			display[key] = f.Name
		}
		grouped[key] = append(grouped[key], f.Value)
	}
	parsed := make(Parsed, len(order))
	for _, key := range order {
		values := grouped[key]
		h, ok := r.Lookup(key)
		if !ok {
			parsed[key] = values
			continue
		}
		if v, ok := r.parse(h, display[key], values, request, notes); ok {
			parsed[key] = v
		}
	}
	return parsed
}

// ParseField parses every occurrence of a single field. It returns nil when
// no occurrence was usable.
func (r *Registry) ParseField(name string, values []string, request bool, notes note.Adder) any {
	if notes == nil {
		notes = note.Discard
	}
	h, ok := r.Lookup(name)
	if !ok {
		return values
	}
	v, ok := r.parse(h, name, values, request, notes)
	if !ok {
		return nil
	}
	return v
}

func (r *Registry) parse(h Handler, name string, values []string, request bool, notes note.Adder) (any, bool) {
	c := &Context{
		Name:    h.Name,
		Subject: "header-" + strings.ToLower(name),
		Request: request,
		Notes:   notes,
	}
	switch {
	case h.Direction == RequestOnly && !request:
		c.Note(note.RequestHdrInResponse, nil)
	case h.Direction == ResponseOnly && request:
		c.Note(note.ResponseHdrInRequest, nil)
	}
	if h.Deprecated {
		c.Note(note.HeaderDeprecated, nil)
	}
	var elems []string
	for _, raw := range values {
		if h.List {
			elems = append(elems, SplitList(raw, ',')...)
			continue
		}
		elems = append(elems, strings.TrimSpace(raw))
	}
	if !h.Repeatable && !h.List && len(elems) > 1 {
		c.Note(note.SingleHeaderRepeat, nil)
	}
	out := make([]any, 0, len(elems))
	for _, e := range elems {
		if v, ok := h.Parse(c, e); ok {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil, false
	}
	joined := h.Join(c, out)
	if h.Check != nil {
		h.Check(c, joined)
	}
	return joined, true
}

func checkSyntax(re *regexp.Regexp, next ParseFunc) ParseFunc {
	return func(c *Context, raw string) (any, bool) {
		if !re.MatchString(raw) {
			c.Note(note.BadSyntax, note.Vars{"value": raw})
			return nil, false
		}
		return next(c, raw)
	}
}

func checkEncoding(f Field, request bool, notes note.Adder) {
	c := &Context{Name: f.Name, Subject: "header-" + strings.ToLower(f.Name), Request: request, Notes: notes}
	for i := 0; i < len(f.Name); i++ {
		if !isTchar[f.Name[i]] {
			c.Note(note.HeaderNameEncoding, nil)
			break
		}
	}
	for i := 0; i < len(f.Value); i++ {
		if f.Value[i] >= utf8.RuneSelf {
			c.Note(note.HeaderValueEncoding, nil)
			break
		}
	}
}

func parseRaw(_ *Context, raw string) (any, bool) {
	return raw, true
}

// JoinLast keeps the last value.
func JoinLast(_ *Context, values []any) any {
	return values[len(values)-1]
}

// JoinList keeps every value in order.
func JoinList(_ *Context, values []any) any {
	return values
}

// JoinStrings keeps every value as a string slice.
func JoinStrings(_ *Context, values []any) any {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// JoinSet keeps the distinct string values in first-seen order.
func JoinSet(_ *Context, values []any) any {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
