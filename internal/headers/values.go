package headers

import (
	"strconv"
	"strings"
	"time"
)

// Parsed maps lower-cased field names to parsed values.
type Parsed map[string]any

// Has reports whether name parsed successfully.
func (p Parsed) Has(name string) bool {
	_, ok := p[strings.ToLower(name)]
	return ok
}

// Get returns the parsed value for name or nil.
func (p Parsed) Get(name string) any {
	return p[strings.ToLower(name)]
}

// Int returns an integer-valued field.
func (p Parsed) Int(name string) (int64, bool) {
	v, ok := p.Get(name).(int64)
	return v, ok
}

// Time returns a date-valued field.
func (p Parsed) Time(name string) (time.Time, bool) {
	v, ok := p.Get(name).(time.Time)
	return v, ok
}

// String returns a single string-valued field.
func (p Parsed) String(name string) (string, bool) {
	v, ok := p.Get(name).(string)
	return v, ok
}

// Strings returns a list-valued field as strings.
func (p Parsed) Strings(name string) []string {
	switch v := p.Get(name).(type) {
	case []string:
		return v
	case string:
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Contains reports whether a list-valued field contains value, case-insensitively.
func (p Parsed) Contains(name, value string) bool {
	for _, s := range p.Strings(name) {
		if strings.EqualFold(s, value) {
			return true
		}
	}
	return false
}

// Directives returns the Cache-Control style directive set for name.
func (p Parsed) Directives(name string) Directives {
	v, _ := p.Get(name).(Directives)
	return v
}

// ETag returns an entity-tag valued field.
func (p Parsed) ETag(name string) (ETag, bool) {
	v, ok := p.Get(name).(ETag)
	return v, ok
}

// ContentType returns the parsed Content-Type.
func (p Parsed) ContentType() (ContentType, bool) {
	v, ok := p.Get("content-type").(ContentType)
	return v, ok
}

// Directives is a set of cache directives. Directives without a value map to "".
type Directives map[string]string

// Has reports whether the directive is present.
func (d Directives) Has(name string) bool {
	_, ok := d[name]
	return ok
}

// Value returns the directive's argument.
func (d Directives) Value(name string) (string, bool) {
	v, ok := d[name]
	return v, ok
}

// Seconds returns the directive's delta-seconds argument.
func (d Directives) Seconds(name string) (int64, bool) {
	v, ok := d[name]
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Directive is one parsed Cache-Control element.
type Directive struct {
	Name  string
	Value string
}

// ETag is an entity tag.
type ETag struct {
	Weak  bool   `json:"weak"`
	Value string `json:"value"`
}

// String renders the tag in wire form.
func (e ETag) String() string {
	if e.Weak {
		return `W/"` + e.Value + `"`
	}
	return `"` + e.Value + `"`
}

// ContentType is a media type with parameters.
type ContentType struct {
	Media  string `json:"media"`
	Params Params `json:"params,omitempty"`
}

// Cookie is one parsed Set-Cookie line.
type Cookie struct {
	Name  string            `json:"name"`
	Value string            `json:"value"`
	Attrs map[string]string `json:"attrs,omitempty"`
}

// Link is one Link header element.
type Link struct {
	Target string `json:"target"`
	Rel    string `json:"rel,omitempty"`
	Params Params `json:"params,omitempty"`
}

// Disposition is a parsed Content-Disposition.
type Disposition struct {
	Type   string `json:"type"`
	Params Params `json:"params,omitempty"`
}
