package probe

import (
	"slices"

	"github.com/JakeFAU/redprobe/internal/fetch"
	"github.com/JakeFAU/redprobe/internal/message"
	"github.com/JakeFAU/redprobe/internal/note"
)

// NewConneg returns the gzip content negotiation probe. The base request
// asks for gzip; the probe asks for identity and compares.
func NewConneg() Probe {
	return &connegProbe{}
}

type connegProbe struct{}

func (*connegProbe) Name() string { return NameConneg }

func (*connegProbe) Precondition(base *Base) bool {
	return base.Response.Complete && base.Response.IsGzip()
}

func (*connegProbe) Skip(base *Base) {
	if !base.Response.Complete {
		return
	}
	base.Response.GzipSupport = message.No
}

func (*connegProbe) DeriveRequest(base *Base) *message.Request {
	return base.Request.WithHeader("Accept-Encoding", "identity")
}

func (*connegProbe) Done(base *Base, sub *fetch.Exchange, notes note.Adder) {
	b, s := base.Response, sub.Response
	if failed(sub, "header-vary", note.ConnegSubreqProblem, notes) {
		b.GzipSupport = message.No
		return
	}
	if s.IsGzip() {
		b.GzipSupport = message.No
		notes.Add("header-content-encoding", note.ConnegGzipWithoutAsk, nil)
		return
	}

	b.GzipSupport = message.Yes
	savings := 0
	if s.PayloadLen > 0 {
		savings = int(100 * (s.PayloadLen - b.PayloadLen) / s.PayloadLen)
	}
	b.GzipSavings = savings
	if savings >= 0 {
		notes.Add("header-content-encoding", note.ConnegGzipGood, note.Vars{"savings": savings})
	} else {
		notes.Add("header-content-encoding", note.ConnegGzipBad, note.Vars{"savings": -savings})
	}

	baseVary := b.Parsed.Strings("vary")
	if !slices.Contains(baseVary, "accept-encoding") && !slices.Contains(baseVary, "*") {
		notes.Add("header-vary", note.ConnegNoVary, nil)
	}

	if s.StatusCode != b.StatusCode {
		notes.Add("status", note.VaryStatusMismatch, note.Vars{
			"neg_status":   b.StatusCode,
			"noneg_status": s.StatusCode,
		})
		return
	}

	baseCT, _ := b.Parsed.ContentType()
	subCT, _ := s.Parsed.ContentType()
	if baseCT.Media != subCT.Media {
		notes.Add("header-content-type", note.VaryHeaderMismatch, note.Vars{"header": "Content-Type"})
	}

	if !sameSet(baseVary, s.Parsed.Strings("vary")) {
		notes.Add("header-vary", note.VaryInconsistent, note.Vars{
			"conneg_vary":    baseVary,
			"no_conneg_vary": s.Parsed.Strings("vary"),
		})
	}

	if b.DecodedDigest != "" && b.DecodedDigest != s.PayloadDigest {
		notes.Add("body", note.VaryBodyMismatch, nil)
	}

	baseTag, hasBase := b.Parsed.ETag("etag")
	subTag, hasSub := s.Parsed.ETag("etag")
	if hasBase && hasSub && baseTag == subTag && !baseTag.Weak {
		notes.Add("header-etag", note.VaryETagDoesntChange, nil)
	}
}
