package probe

import (
	"github.com/JakeFAU/redprobe/internal/fetch"
	"github.com/JakeFAU/redprobe/internal/headers"
	"github.com/JakeFAU/redprobe/internal/message"
	"github.com/JakeFAU/redprobe/internal/note"
)

// NewETag returns the If-None-Match validation probe.
func NewETag() Probe {
	return &etagProbe{}
}

type etagProbe struct{}

func (*etagProbe) Name() string { return NameETag }

func (*etagProbe) Precondition(base *Base) bool {
	if !base.Response.Complete {
		return false
	}
	etag, ok := base.Response.Parsed.ETag("etag")
	return ok && etag.Value != ""
}

func (*etagProbe) Skip(base *Base) {
	if !base.Response.Complete {
		return
	}
	base.Response.INMSupport = message.No
}

func (*etagProbe) DeriveRequest(base *Base) *message.Request {
	etag, _ := base.Response.Parsed.ETag("etag")
	return base.Request.WithHeader("If-None-Match", etag.String())
}

func (*etagProbe) Done(base *Base, sub *fetch.Exchange, notes note.Adder) {
	const subject = "header-etag"
	b, s := base.Response, sub.Response
	if failed(sub, subject, note.ETagSubreqProblem, notes) {
		b.INMSupport = message.No
		return
	}
	switch {
	case s.StatusCode == 304:
		b.INMSupport = message.Yes
		notes.Add(subject, note.INM304, nil)
		checkMissing304(b, s, "ETag validation", notes)
	case s.StatusCode == b.StatusCode:
		if s.PayloadDigest == b.PayloadDigest {
			b.INMSupport = message.No
			notes.Add(subject, note.INMFull, nil)
			return
		}
		baseTag, _ := b.Parsed.ETag("etag")
		subTag, ok := s.Parsed.ETag("etag")
		if ok && subTag == baseTag {
			if baseTag.Weak {
				notes.Add(subject, note.INMDupETagWeak, nil)
			} else {
				notes.Add(subject, note.INMDupETagStrong, nil)
			}
			return
		}
		notes.Add(subject, note.INMUnknown, nil)
	default:
		notes.Add(subject, note.INMStatus, note.Vars{"inm_status": s.StatusCode})
	}
}

// NewLastModified returns the If-Modified-Since validation probe.
func NewLastModified() Probe {
	return &lmProbe{}
}

type lmProbe struct{}

func (*lmProbe) Name() string { return NameLM }

func (*lmProbe) Precondition(base *Base) bool {
	if !base.Response.Complete {
		return false
	}
	_, ok := base.Response.Parsed.Time("last-modified")
	return ok
}

func (*lmProbe) Skip(base *Base) {
	if !base.Response.Complete {
		return
	}
	base.Response.IMSSupport = message.No
}

func (*lmProbe) DeriveRequest(base *Base) *message.Request {
	lm, _ := base.Response.Parsed.Time("last-modified")
	return base.Request.WithHeader("If-Modified-Since", headers.FormatDate(lm))
}

func (*lmProbe) Done(base *Base, sub *fetch.Exchange, notes note.Adder) {
	const subject = "header-last-modified"
	b, s := base.Response, sub.Response
	if failed(sub, subject, note.LMSubreqProblem, notes) {
		b.IMSSupport = message.No
		return
	}
	switch {
	case s.StatusCode == 304:
		b.IMSSupport = message.Yes
		notes.Add(subject, note.IMS304, nil)
		checkMissing304(b, s, "Last-Modified validation", notes)
	case s.StatusCode == b.StatusCode:
		if s.PayloadDigest == b.PayloadDigest {
			b.IMSSupport = message.No
			notes.Add(subject, note.IMSFull, nil)
			return
		}
		notes.Add(subject, note.IMSUnknown, nil)
	default:
		notes.Add(subject, note.IMSStatus, note.Vars{"ims_status": s.StatusCode})
	}
}
