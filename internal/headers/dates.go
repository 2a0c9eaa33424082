package headers

import (
	"time"

	"github.com/JakeFAU/redprobe/internal/note"
)

const (
	imfFixdate = "Mon, 02 Jan 2006 15:04:05 GMT"
	rfc850Date = "Monday, 02-Jan-06 15:04:05 GMT"
	asctime    = "Mon Jan _2 15:04:05 2006"
)

// ParseDate parses an HTTP-date. Obsolete formats are accepted with a note.
func ParseDate(c *Context, raw string) (time.Time, bool) {
	if t, err := time.Parse(imfFixdate, raw); err == nil {
		return t.UTC(), true
	}
	for _, layout := range []string{rfc850Date, asctime} {
		if t, err := time.Parse(layout, raw); err == nil {
			c.Note(note.DateObsolete, nil)
			return t.UTC(), true
		}
	}
	c.Note(note.BadDateSyntax, note.Vars{"value": raw})
	return time.Time{}, false
}

func parseDate(c *Context, raw string) (any, bool) {
	t, ok := ParseDate(c, raw)
	if !ok {
		return nil, false
	}
	return t, true
}

// FormatDate renders t as an IMF-fixdate.
func FormatDate(t time.Time) string {
	return t.UTC().Format(imfFixdate)
}
