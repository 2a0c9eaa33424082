package headers

import (
	"net/http"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/vfaronov/httpheader"

	"github.com/JakeFAU/redprobe/internal/note"
)

var (
	digitsRE       = regexp.MustCompile(`^[0-9]+$`)
	etagRE         = regexp.MustCompile(`^(W/)?"[^"]*"$`)
	mediaTypeRE    = regexp.MustCompile(`^[!#$%&'*+\-.^_` + "`" + `|~0-9A-Za-z]+/[!#$%&'*+\-.^_` + "`" + `|~0-9A-Za-z]+(\s*;.*)?$`)
	contentRangeRE = regexp.MustCompile(`^bytes\s+(\d+-\d+|\*)/(\d+|\*)$`)
	rangeRE        = regexp.MustCompile(`^bytes=`)
	xssRE          = regexp.MustCompile(`^[01](\s*;.*)?$`)
	linkRE         = regexp.MustCompile(`^<[^>]*>`)
)

// delta-seconds valued Cache-Control directives.
var secondsDirectives = map[string]bool{
	"max-age":                true,
	"s-maxage":               true,
	"min-fresh":              true,
	"stale-while-revalidate": true,
	"stale-if-error":         true,
}

var referrerPolicies = []string{
	"no-referrer", "no-referrer-when-downgrade", "origin", "origin-when-cross-origin",
	"same-origin", "strict-origin", "strict-origin-when-cross-origin", "unsafe-url", "",
}

func builtinHandlers() []Handler {
	return []Handler{
		// General.
		{Name: "Connection", List: true, Parse: lowerToken, Join: JoinSet},
		{Name: "Date", Parse: parseDate},
		{Name: "Via", List: true, Repeatable: true, Parse: parseVia, Check: checkVia},
		{Name: "Warning", List: true, Parse: parseWarning, Deprecated: true},
		{Name: "Trailer", List: true, Parse: lowerToken, Join: JoinSet},
		{Name: "Transfer-Encoding", List: true, Parse: lowerToken, Join: JoinStrings, Check: checkTransferEncoding},
		{Name: "Upgrade", List: true, Join: JoinStrings},
		{Name: "Pragma", List: true, Parse: lowerToken, Join: JoinSet, Check: checkPragma},
		{Name: "Keep-Alive", List: true, Join: JoinStrings},
		{Name: "MIME-Version", Check: func(c *Context, _ any) { c.Note(note.MIMEVersion, nil) }},

		// Representation.
		{Name: "Content-Type", Syntax: mediaTypeRE, Parse: parseContentType, Check: checkContentType},
		{Name: "Content-Length", Syntax: digitsRE, Parse: parseInt},
		{Name: "Content-Encoding", List: true, Parse: lowerToken, Join: JoinStrings, Check: checkContentEncoding},
		{Name: "Content-Language", List: true, Parse: lowerToken, Join: JoinStrings},
		{Name: "Content-Location", Parse: parseURI},
		{Name: "Content-MD5", Deprecated: true},
		{Name: "Content-Disposition", Parse: parseDisposition},
		{Name: "Content-Range", Direction: ResponseOnly, Syntax: contentRangeRE},
		{Name: "Content-Base", Deprecated: true},

		// Response.
		{Name: "Accept-Ranges", Direction: ResponseOnly, List: true, Parse: lowerToken, Join: JoinSet, Check: checkAcceptRanges},
		{Name: "Age", Direction: ResponseOnly, Parse: parseAge},
		{Name: "Allow", Direction: ResponseOnly, List: true, Parse: token, Join: JoinStrings},
		{Name: "Cache-Control", List: true, Parse: parseDirective, Join: joinDirectives},
		{Name: "ETag", Direction: ResponseOnly, Syntax: etagRE, Parse: parseETag},
		{Name: "Expires", Direction: ResponseOnly, Parse: parseDate},
		{Name: "Last-Modified", Direction: ResponseOnly, Parse: parseDate},
		{Name: "Location", Direction: ResponseOnly, Parse: parseLocation},
		{Name: "Retry-After", Direction: ResponseOnly, Parse: parseRetryAfter},
		{Name: "Server", Direction: ResponseOnly, Parse: parseProducts},
		{Name: "Set-Cookie", Direction: ResponseOnly, Repeatable: true, Parse: parseSetCookie},
		{Name: "Vary", Direction: ResponseOnly, List: true, Parse: lowerToken, Join: JoinSet},
		{Name: "WWW-Authenticate", Direction: ResponseOnly, Repeatable: true, Parse: parseChallenges},
		{Name: "Proxy-Authenticate", Direction: ResponseOnly, Repeatable: true, Parse: parseChallenges},
		{Name: "Link", List: true, Syntax: linkRE, Parse: parseLink},
		{Name: "Alt-Svc", Direction: ResponseOnly, List: true, Join: JoinStrings},
		{Name: "P3P", Direction: ResponseOnly, Deprecated: true},

		// Security.
		{Name: "Strict-Transport-Security", Direction: ResponseOnly, Parse: parseHSTS, Check: checkHSTS},
		{Name: "X-Content-Type-Options", Direction: ResponseOnly, Parse: lowerToken, Check: checkXCTO},
		{Name: "X-Frame-Options", Direction: ResponseOnly, Check: checkFrameOptions},
		{Name: "X-XSS-Protection", Direction: ResponseOnly, Syntax: xssRE, Check: checkXSS},
		{Name: "Content-Security-Policy", Direction: ResponseOnly, Repeatable: true, Join: JoinStrings},
		{Name: "Referrer-Policy", Direction: ResponseOnly, List: true, Parse: lowerToken, Join: JoinStrings, Check: checkReferrerPolicy},
		{Name: "Access-Control-Allow-Origin", Direction: ResponseOnly, Check: checkCORS},

		// Request.
		{Name: "Host", Direction: RequestOnly},
		{Name: "Authorization", Direction: RequestOnly},
		{Name: "User-Agent", Direction: RequestOnly, Parse: parseProducts},
		{Name: "If-None-Match", Direction: RequestOnly, List: true, Join: JoinStrings},
		{Name: "If-Modified-Since", Direction: RequestOnly, Parse: parseDate},
		{Name: "Range", Direction: RequestOnly, Syntax: rangeRE},
		{Name: "Expect", Direction: RequestOnly, List: true, Parse: lowerToken, Join: JoinStrings},
		{Name: "TE", Direction: RequestOnly, List: true, Parse: lowerToken, Join: JoinStrings},
		{Name: "Accept-Encoding", Direction: RequestOnly, List: true, Parse: parseCoding, Join: JoinStrings},
	}
}

func token(c *Context, raw string) (any, bool) {
	if !IsToken(raw) {
		c.Note(note.BadSyntax, note.Vars{"value": raw})
		return nil, false
	}
	return raw, true
}

func lowerToken(c *Context, raw string) (any, bool) {
	v, ok := token(c, raw)
	if !ok {
		return nil, false
	}
	return strings.ToLower(v.(string)), true
}

func parseInt(c *Context, raw string) (any, bool) {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		c.Note(note.BadSyntax, note.Vars{"value": raw})
		return nil, false
	}
	return n, true
}

func parseAge(c *Context, raw string) (any, bool) {
	n, err := strconv.ParseInt(raw, 10, 64)
	switch {
	case err != nil:
		c.Note(note.AgeNotInt, nil)
		return nil, false
	case n < 0:
		c.Note(note.AgeNegative, nil)
		return nil, false
	}
	return n, true
}

func parseCoding(c *Context, raw string) (any, bool) {
	coding, _, _ := strings.Cut(raw, ";")
	return lowerToken(c, strings.TrimSpace(coding))
}

func parseETag(_ *Context, raw string) (any, bool) {
	weak := strings.HasPrefix(raw, "W/")
	raw = strings.TrimPrefix(raw, "W/")
	return ETag{Weak: weak, Value: raw[1 : len(raw)-1]}, true
}

func parseURI(c *Context, raw string) (any, bool) {
	if _, err := isAbsoluteURI(raw); err != nil {
		c.Note(note.BadSyntax, note.Vars{"value": raw})
		return nil, false
	}
	return raw, true
}

func parseLocation(c *Context, raw string) (any, bool) {
	abs, err := isAbsoluteURI(raw)
	if err != nil {
		c.Note(note.BadSyntax, note.Vars{"value": raw})
		return nil, false
	}
	if !abs {
		c.Note(note.LocationNotAbsolute, note.Vars{"full_uri": raw})
	}
	return raw, true
}

func parseRetryAfter(c *Context, raw string) (any, bool) {
	if digitsRE.MatchString(raw) {
		return parseInt(c, raw)
	}
	return parseDate(c, raw)
}

func parseDirective(c *Context, raw string) (any, bool) {
	name, value, hasValue := strings.Cut(raw, "=")
	name = strings.TrimSpace(name)
	if !IsToken(name) {
		c.Note(note.BadCCSyntax, note.Vars{"bad_cc_attr": name})
		return nil, false
	}
	lower := strings.ToLower(name)
	if lower != name {
		c.Note(note.CCMiscap, note.Vars{"cc": lower, "cc_string": name})
	}
	value = Unquote(strings.TrimSpace(value))
	if secondsDirectives[lower] && (!hasValue || !digitsRE.MatchString(value)) {
		c.Note(note.BadCCSyntax, note.Vars{"bad_cc_attr": lower})
		return nil, false
	}
	return Directive{Name: lower, Value: value}, true
}

func joinDirectives(c *Context, values []any) any {
	d := make(Directives, len(values))
	for _, v := range values {
		dir, ok := v.(Directive)
		if !ok {
			continue
		}
		if _, dup := d[dir.Name]; dup {
			c.Note(note.CCDup, note.Vars{"cc": dir.Name})
		}
		d[dir.Name] = dir.Value
	}
	return d
}

func parseContentType(c *Context, raw string) (any, bool) {
	media, rest, _ := strings.Cut(raw, ";")
	return ContentType{
		Media:  strings.ToLower(strings.TrimSpace(media)),
		Params: ParseParameters(c, rest, ';', "charset"),
	}, true
}

func checkContentType(c *Context, v any) {
	ct, ok := v.(ContentType)
	if !ok {
		return
	}
	if strings.HasPrefix(ct.Media, "text/") && !ct.Params.Has("charset") {
		c.Note(note.ContentTypeNoCharset, note.Vars{"media_type": ct.Media})
	}
}

func parseDisposition(c *Context, raw string) (any, bool) {
	dtype, rest, _ := strings.Cut(raw, ";")
	dtype = strings.TrimSpace(dtype)
	if !IsToken(dtype) {
		c.Note(note.BadSyntax, note.Vars{"value": raw})
		return nil, false
	}
	return Disposition{
		Type:   strings.ToLower(dtype),
		Params: ParseParameters(c, rest, ';'),
	}, true
}

func parseHSTS(c *Context, raw string) (any, bool) {
	return ParseParameters(c, raw, ';'), true
}

func checkHSTS(c *Context, v any) {
	p, ok := v.(Params)
	if !ok {
		return
	}
	maxAge, ok := p["max-age"]
	if !ok {
		c.Note(note.HSTSNoMaxAge, nil)
		return
	}
	c.Note(note.HSTSOK, note.Vars{"max_age": maxAge})
	if p.Has("includesubdomains") {
		c.Note(note.HSTSSubdomains, nil)
	}
}

func checkXCTO(c *Context, v any) {
	if v == "nosniff" {
		c.Note(note.ContentSniffingDisabled, nil)
		return
	}
	c.Note(note.XCTOBadValue, note.Vars{"value": v})
}

func checkFrameOptions(c *Context, v any) {
	s, _ := v.(string)
	switch strings.ToUpper(s) {
	case "DENY":
		c.Note(note.FrameOptionsDeny, nil)
	case "SAMEORIGIN":
		c.Note(note.FrameOptionsSameOrigin, nil)
	default:
		c.Note(note.FrameOptionsUnknown, note.Vars{"value": s})
	}
}

func checkXSS(c *Context, v any) {
	s, _ := v.(string)
	if strings.HasPrefix(s, "0") {
		c.Note(note.XSSProtectionOff, nil)
		return
	}
	_, rest, _ := strings.Cut(s, ";")
	if p := ParseParameters(c, rest, ';'); strings.EqualFold(p["mode"], "block") {
		c.Note(note.XSSProtectionBlock, nil)
		return
	}
	c.Note(note.XSSProtectionOn, nil)
}

func checkReferrerPolicy(c *Context, v any) {
	for _, p := range toStrings(v) {
		if !slices.Contains(referrerPolicies, p) {
			c.Note(note.ReferrerPolicyUnknown, note.Vars{"value": p})
		}
	}
}

func checkCORS(c *Context, v any) {
	if v == "*" {
		c.Note(note.CORSAllowAny, nil)
	}
}

func checkPragma(c *Context, v any) {
	if c.Request {
		return
	}
	for _, p := range toStrings(v) {
		if p == "no-cache" {
			c.Note(note.PragmaNoCache, nil)
			continue
		}
		c.Note(note.PragmaOther, note.Vars{"value": p})
	}
}

func checkTransferEncoding(c *Context, v any) {
	var unwanted []string
	for _, coding := range toStrings(v) {
		switch coding {
		case "chunked":
		case "identity":
			c.Note(note.TransferCodingIdentity, nil)
		default:
			unwanted = append(unwanted, coding)
		}
	}
	if len(unwanted) > 0 {
		c.Note(note.TransferCodingUnwanted, note.Vars{"unwanted_codings": strings.Join(unwanted, ", ")})
	}
}

func checkContentEncoding(c *Context, v any) {
	if slices.Contains(toStrings(v), "identity") {
		c.Note(note.EncodingIdentity, nil)
	}
}

func checkAcceptRanges(c *Context, v any) {
	for _, unit := range toStrings(v) {
		if unit != "bytes" && unit != "none" {
			c.Note(note.UnknownRange, note.Vars{"range": unit})
		}
	}
}

func parseSetCookie(c *Context, raw string) (any, bool) {
	pair, attrs, _ := strings.Cut(raw, ";")
	name, value, found := strings.Cut(pair, "=")
	if !found {
		c.Note(note.SetCookieNoVal, note.Vars{"value": raw})
		return nil, false
	}
	name = strings.TrimSpace(name)
	if name == "" {
		c.Note(note.SetCookieNoName, note.Vars{"value": raw})
		return nil, false
	}
	cookie := Cookie{Name: name, Value: strings.TrimSpace(value)}
	for _, attr := range SplitList(attrs, ';') {
		k, v, _ := strings.Cut(attr, "=")
		if cookie.Attrs == nil {
			cookie.Attrs = make(map[string]string)
		}
		cookie.Attrs[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	return cookie, true
}

func parseLink(c *Context, raw string) (any, bool) {
	end := strings.IndexByte(raw, '>')
	link := Link{
		Target: raw[1:end],
		Params: ParseParameters(c, raw[end+1:], ';', "rel", "anchor", "rev", "hreflang", "type", "media"),
	}
	if link.Params.Has("rev") {
		c.Note(note.LinkRev, nil)
	}
	if elems := httpheader.Link(http.Header{"Link": {raw}}, &url.URL{}); len(elems) > 0 {
		link.Rel = elems[0].Rel
	}
	return link, true
}

func parseVia(_ *Context, raw string) (any, bool) {
	elems := httpheader.Via(http.Header{"Via": {raw}})
	if len(elems) == 0 {
		return nil, false
	}
	return elems[0], true
}

func checkVia(c *Context, _ any) {
	c.Note(note.ViaPresent, nil)
}

func parseWarning(c *Context, raw string) (any, bool) {
	elems := httpheader.Warning(http.Header{"Warning": {raw}})
	if len(elems) == 0 || elems[0].Code == 0 {
		c.Note(note.BadSyntax, note.Vars{"value": raw})
		return nil, false
	}
	return elems[0], true
}

func parseChallenges(c *Context, raw string) (any, bool) {
	challenges := httpheader.WWWAuthenticate(http.Header{"Www-Authenticate": {raw}})
	if len(challenges) == 0 {
		c.Note(note.BadSyntax, note.Vars{"value": raw})
		return nil, false
	}
	return challenges, true
}

func parseProducts(_ *Context, raw string) (any, bool) {
	h := http.Header{"Server": {raw}}
	return httpheader.Server(h), true
}

func toStrings(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case string:
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
