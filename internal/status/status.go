// Package status applies status-code specific rules to a completed response.
package status

import (
	"strconv"

	"github.com/JakeFAU/redprobe/internal/message"
	"github.com/JakeFAU/redprobe/internal/note"
)

const subject = "status"

// Rule inspects a response with a given status code.
type Rule func(resp *message.Response, req *message.Request, notes note.Adder)

var safeMethods = map[string]bool{"GET": true, "HEAD": true, "OPTIONS": true, "TRACE": true}

func emit(kind note.Kind) Rule {
	return func(resp *message.Response, _ *message.Request, notes note.Adder) {
		notes.Add(subject, kind, vars(resp))
	}
}

func requireHeader(name string, kind note.Kind) Rule {
	return func(resp *message.Response, _ *message.Request, notes note.Adder) {
		if !resp.Parsed.Has(name) {
			notes.Add(subject, kind, vars(resp))
		}
	}
}

func vars(resp *message.Response) note.Vars {
	return note.Vars{"status": resp.StatusCode, "response": "The " + strconv.Itoa(resp.StatusCode) + " response"}
}

var rules = map[int]Rule{
	100: func(resp *message.Response, req *message.Request, notes note.Adder) {
		if req == nil || !req.Has("Expect") {
			notes.Add(subject, note.UnexpectedContinue, vars(resp))
		}
	},
	101: func(resp *message.Response, req *message.Request, notes note.Adder) {
		if req == nil || !req.Has("Upgrade") {
			notes.Add(subject, note.UpgradeNotRequested, vars(resp))
		}
	},
	102: nil,
	103: nil,
	200: nil,
	201: func(resp *message.Response, req *message.Request, notes note.Adder) {
		if req != nil && safeMethods[req.Method] {
			notes.Add(subject, note.CreatedSafeMethod, note.Vars{"method": req.Method})
		}
		if !resp.Parsed.Has("Location") {
			notes.Add(subject, note.CreatedWithoutLocation, vars(resp))
		}
	},
	202: nil,
	203: nil,
	204: nil,
	205: nil,
	206: func(resp *message.Response, req *message.Request, notes note.Adder) {
		if req != nil && !req.Has("Range") {
			notes.Add(subject, note.PartialNotRequested, vars(resp))
		}
		if !resp.Parsed.Has("Content-Range") {
			notes.Add(subject, note.PartialWithoutRange, vars(resp))
		}
	},
	207: nil,
	208: nil,
	226: nil,
	300: nil,
	301: requireHeader("Location", note.RedirectWithoutLocation),
	302: requireHeader("Location", note.RedirectWithoutLocation),
	303: requireHeader("Location", note.RedirectWithoutLocation),
	304: requireHeader("Date", note.NoDate304),
	305: emit(note.StatusDeprecated),
	306: emit(note.StatusDeprecated),
	307: requireHeader("Location", note.RedirectWithoutLocation),
	308: requireHeader("Location", note.RedirectWithoutLocation),
	400: emit(note.StatusBadRequest),
	401: requireHeader("WWW-Authenticate", note.UnauthorizedWithoutAuth),
	402: nil,
	403: emit(note.StatusForbidden),
	404: emit(note.StatusNotFound),
	405: requireHeader("Allow", note.MethodNotAllowedWithoutAllow),
	406: emit(note.StatusNotAcceptable),
	407: nil,
	408: nil,
	409: emit(note.StatusConflict),
	410: emit(note.StatusGone),
	411: nil,
	412: nil,
	413: emit(note.StatusRequestEntityTooLarge),
	414: emit(note.StatusURITooLong),
	415: emit(note.StatusUnsupportedMediaType),
	416: nil,
	417: nil,
	418: nil,
	421: nil,
	422: nil,
	423: nil,
	424: nil,
	425: nil,
	426: nil,
	428: nil,
	429: nil,
	431: nil,
	451: nil,
	500: emit(note.StatusInternalServiceError),
	501: emit(note.StatusNotImplemented),
	502: emit(note.StatusBadGateway),
	503: emit(note.StatusServiceUnavailable),
	504: emit(note.StatusGatewayTimeout),
	505: emit(note.StatusVersionNotSupported),
	506: nil,
	507: nil,
	508: nil,
	510: nil,
	511: nil,
}

// Known reports whether code is a registered status code.
func Known(code int) bool {
	_, ok := rules[code]
	return ok
}

// Check runs the rule for resp's status code. req may be nil.
func Check(resp *message.Response, req *message.Request, notes note.Adder) {
	rule, ok := rules[resp.StatusCode]
	if !ok {
		notes.Add(subject, note.NonstandardStatus, vars(resp))
		return
	}
	if rule != nil {
		rule(resp, req, notes)
	}
	code := resp.StatusCode
	if resp.Parsed.Has("Content-Range") && code != 206 && code != 416 {
		notes.Add("header-content-range", note.ContentRangeMeaningless, vars(resp))
	}
	if resp.Parsed.Has("Location") && code != 201 && (code < 300 || code > 399) {
		notes.Add("header-location", note.LocationUndefined, vars(resp))
	}
}
