package headers

import (
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/vfaronov/httpheader"

	"github.com/JakeFAU/redprobe/internal/note"
)

var isTchar [256]bool

func init() {
	tchars := "!#$%&'*+-.^_`|~" +
		"0123456789" +
		"abcdefghijklmnopqrstuvwxyz" +
		"ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	for _, c := range tchars {
		isTchar[c] = true
	}
}

// IsToken reports whether s is a non-empty RFC 9110 token.
func IsToken(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isTchar[s[i]] {
			return false
		}
	}
	return true
}

// SplitList splits s on delim outside quoted strings and angle brackets.
// Elements are trimmed and empty elements are dropped.
func SplitList(s string, delim byte) []string {
	var (
		out     []string
		quoted  bool
		escaped bool
		angle   bool
		start   int
	)
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case escaped:
			escaped = false
		case quoted && ch == '\\':
			escaped = true
		case ch == '"' && !angle:
			quoted = !quoted
		case ch == '<' && !quoted:
			angle = true
		case ch == '>' && !quoted:
			angle = false
		case ch == delim && !quoted && !angle:
			if e := strings.TrimSpace(s[start:i]); e != "" {
				out = append(out, e)
			}
			start = i + 1
		}
	}
	if e := strings.TrimSpace(s[start:]); e != "" {
		out = append(out, e)
	}
	return out
}

// Unquote removes surrounding double quotes and backslash escapes.
// Values that are not quoted are returned unchanged.
func Unquote(s string) string {
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return s
	}
	s = s[1 : len(s)-1]
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// Params maps lower-cased parameter names to values. Valueless parameters map to "".
type Params map[string]string

// Has reports whether name was present.
func (p Params) Has(name string) bool {
	_, ok := p[strings.ToLower(name)]
	return ok
}

// ParseParameters parses delim-separated name=value pairs, reporting
// repeats, single-quoted values and malformed RFC 8187 extended values.
// Names listed in noStar may not use the extended form.
func ParseParameters(c *Context, raw string, delim byte, noStar ...string) Params {
	params := make(Params)
	for _, p := range SplitList(raw, delim) {
		key, val, found := strings.Cut(p, "=")
		key = strings.TrimSpace(key)
		if !found {
			params[strings.ToLower(key)] = ""
			continue
		}
		val = strings.TrimSpace(val)
		norm := strings.ToLower(key)
		if _, dup := params[norm]; dup {
			c.Note(note.ParamRepeats, note.Vars{"param": norm})
		}
		if len(val) >= 2 && val[0] == '\'' && val[len(val)-1] == '\'' {
			c.Note(note.ParamSingleQuoted, note.Vars{
				"param":              norm,
				"param_val":          val,
				"param_val_unquoted": val[1 : len(val)-1],
			})
		}
		if !strings.HasSuffix(norm, "*") {
			params[norm] = Unquote(val)
			continue
		}
		base := strings.TrimSuffix(norm, "*")
		if containsFold(noStar, base) {
			c.Note(note.ParamStarBad, note.Vars{"param": base})
			continue
		}
		if len(val) >= 2 && val[0] == '"' && val[len(val)-1] == '"' {
			c.Note(note.ParamStarQuoted, note.Vars{"param": norm})
			continue
		}
		decoded, ok := decodeStar(c, norm, val)
		if ok {
			params[norm] = decoded
		}
	}
	return params
}

func decodeStar(c *Context, name, val string) (string, bool) {
	parts := strings.SplitN(val, "'", 3)
	if len(parts) != 3 {
		c.Note(note.ParamStarError, note.Vars{"param": name})
		return "", false
	}
	enc := strings.ToLower(parts[0])
	switch {
	case enc == "":
		c.Note(note.ParamStarNoCharset, note.Vars{"param": name})
		return "", false
	case enc != "utf-8":
		c.Note(note.ParamStarCharset, note.Vars{"param": name, "enc": enc})
		return "", false
	}
	text, _, err := httpheader.DecodeExtValue(val)
	if err != nil || !utf8.ValidString(text) {
		c.Note(note.ParamStarError, note.Vars{"param": name})
		return "", false
	}
	return text, true
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// isAbsoluteURI reports whether raw parses as an absolute URI.
func isAbsoluteURI(raw string) (bool, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return false, err
	}
	return u.IsAbs(), nil
}
