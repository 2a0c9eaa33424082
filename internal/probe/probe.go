// Package probe implements the active checks that send a second, derived
// request and compare its response with the base response.
//
// Probes keep per-resource state, so a fresh set must be built for every
// resource with All. Probe verdicts are written to the resource's note list
// and to the tri-state support flags of the base response.
package probe

import (
	"errors"
	"slices"
	"strings"

	"github.com/JakeFAU/redprobe/internal/fetch"
	"github.com/JakeFAU/redprobe/internal/message"
	"github.com/JakeFAU/redprobe/internal/note"
)

// Probe names. They double as sub-request keys.
const (
	NameConneg = "conneg"
	NameETag   = "etag_validate"
	NameLM     = "lm_validate"
	NameRange  = "range"
)

// Base is the completed base exchange a probe is derived from.
type Base struct {
	Request  *message.Request
	Response *message.Response
}

// Probe is one active check.
type Probe interface {
	// Name identifies the probe and its sub-request.
	Name() string
	// Precondition reports whether the probe applies to base.
	Precondition(base *Base) bool
	// Skip records the outcome when Precondition is false.
	Skip(base *Base)
	// DeriveRequest builds the sub-request from the base request.
	DeriveRequest(base *Base) *message.Request
	// Done compares sub with base and records notes.
	Done(base *Base, sub *fetch.Exchange, notes note.Adder)
}

// All returns a fresh instance of every probe.
func All() []Probe {
	return []Probe{NewConneg(), NewETag(), NewLastModified(), NewRange()}
}

var problemKinds = map[string]note.Kind{
	NameConneg: note.ConnegSubreqProblem,
	NameETag:   note.ETagSubreqProblem,
	NameLM:     note.LMSubreqProblem,
	NameRange:  note.RangeSubreqProblem,
}

// ProblemKind is the note kind reporting that the named probe could not finish.
func ProblemKind(name string) note.Kind {
	if k, ok := problemKinds[name]; ok {
		return k
	}
	return note.TransportError
}

// validatedHeaders must be repeated on a 304 when the full response sent them.
var validatedHeaders = []string{"cache-control", "content-location", "etag", "expires", "vary"}

// checkMissing304 reports headers present on base but absent from the 304.
func checkMissing304(base, sub *message.Response, subreqType string, notes note.Adder) {
	var missing []string
	for _, name := range validatedHeaders {
		if base.Parsed.Has(name) && !sub.Parsed.Has(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return
	}
	notes.Add("headers", note.MissingHdrs304, note.Vars{
		"subreq_type":  subreqType,
		"missing_hdrs": strings.Join(missing, ", "),
	})
}

// failed records why sub did not complete. It reports true when sub failed.
func failed(sub *fetch.Exchange, subject string, kind note.Kind, notes note.Adder) bool {
	if sub.Response.Complete {
		return false
	}
	fe := sub.Err()
	if fe != nil && fe.Kind == fetch.ErrRobotsDisallowed {
		notes.Add(subject, note.RobotsDisallowedSubreq, note.Vars{"uri": sub.Request.URI})
		return true
	}
	notes.Add(subject, kind, note.Vars{"problem": problem(sub.Response.Err)})
	return true
}

func problem(err error) string {
	if err == nil {
		return "the response was incomplete"
	}
	var fe *fetch.Error
	if errors.As(err, &fe) {
		return fe.Error()
	}
	return err.Error()
}

func sameSet(a, b []string) bool {
	x, y := slices.Clone(a), slices.Clone(b)
	slices.Sort(x)
	slices.Sort(y)
	return slices.Equal(slices.Compact(x), slices.Compact(y))
}
