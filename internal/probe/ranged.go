package probe

import (
	"bytes"
	"fmt"

	"github.com/JakeFAU/redprobe/internal/fetch"
	"github.com/JakeFAU/redprobe/internal/message"
	"github.com/JakeFAU/redprobe/internal/note"
)

// maxRangeBytes bounds the requested range.
const maxRangeBytes = 96

// NewRange returns the partial content probe. It asks for a slice of the
// last sampled chunk and checks the bytes that come back.
func NewRange() Probe {
	return &rangeProbe{}
}

type rangeProbe struct {
	start, end int64
	target     []byte
}

func (*rangeProbe) Name() string { return NameRange }

func (p *rangeProbe) Precondition(base *Base) bool {
	r := base.Response
	if !r.Complete || r.StatusCode/100 == 3 || r.StatusCode == 206 {
		return false
	}
	if !r.Parsed.Contains("accept-ranges", "bytes") {
		return false
	}
	return len(r.Samples) > 0 && len(r.Samples[len(r.Samples)-1].Data) > 0
}

func (*rangeProbe) Skip(base *Base) {
	r := base.Response
	if !r.Complete || r.StatusCode/100 == 3 || r.StatusCode == 206 {
		return
	}
	r.PartialSupport = message.No
}

func (p *rangeProbe) DeriveRequest(base *Base) *message.Request {
	sample := base.Response.Samples[len(base.Response.Samples)-1]
	n := min(maxRangeBytes, len(sample.Data))
	p.start = sample.Offset
	p.end = sample.Offset + int64(n) - 1
	p.target = bytes.Clone(sample.Data[:n])
	return base.Request.WithHeader("Range", p.header())
}

func (p *rangeProbe) header() string {
	return fmt.Sprintf("bytes=%d-%d", p.start, p.end)
}

func (p *rangeProbe) Done(base *Base, sub *fetch.Exchange, notes note.Adder) {
	const subject = "header-accept-ranges"
	b, s := base.Response, sub.Response
	if failed(sub, subject, note.RangeSubreqProblem, notes) {
		b.PartialSupport = message.No
		return
	}
	switch {
	case s.StatusCode == 206:
		if !sameSet(b.Parsed.Strings("content-encoding"), s.Parsed.Strings("content-encoding")) {
			notes.Add(subject, note.RangeNegMismatch, nil)
			return
		}
		if bytes.Equal(s.Body, p.target) {
			b.PartialSupport = message.Yes
			notes.Add(subject, note.RangeCorrect, nil)
			return
		}
		b.PartialSupport = message.No
		notes.Add(subject, note.RangeIncorrect, note.Vars{
			"range":                p.header(),
			"range_expected":       string(p.target),
			"range_expected_bytes": len(p.target),
			"range_received":       string(s.Body),
			"range_received_bytes": s.PayloadLen,
		})
	case s.StatusCode == b.StatusCode:
		b.PartialSupport = message.No
		notes.Add(subject, note.RangeFull, nil)
	default:
		notes.Add(subject, note.RangeStatus, note.Vars{"range_status": s.StatusCode})
	}
}
