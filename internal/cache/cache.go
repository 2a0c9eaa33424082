// Package cache evaluates how caches may store and reuse a completed response.
package cache

import (
	"strconv"
	"strings"
	"time"

	"github.com/JakeFAU/redprobe/internal/headers"
	"github.com/JakeFAU/redprobe/internal/message"
	"github.com/JakeFAU/redprobe/internal/note"
)

// MaxClockSkew is the tolerated difference between the server's Date and our clock.
const MaxClockSkew = 5 * time.Second

var cacheableMethods = map[string]bool{"GET": true, "HEAD": true}

// Status codes a cache may assign heuristic freshness to.
var heuristicStatus = map[int]bool{200: true, 203: true, 206: true, 300: true, 301: true, 410: true}

// Result holds the outputs of Analyze.
type Result struct {
	StoreShared       bool
	StorePrivate      bool
	Age               time.Duration
	FreshnessLifetime time.Duration
	Fresh             bool
}

// Apply copies the result onto resp.
func (r Result) Apply(resp *message.Response) {
	resp.StoreShared = r.StoreShared
	resp.StorePrivate = r.StorePrivate
	resp.Age = r.Age
	resp.FreshnessLifetime = r.FreshnessLifetime
	resp.Fresh = r.Fresh
}

// Analyze runs the caching checks against resp in a fixed order. It only
// reads resp and uses resp.Start as "now", so repeated calls give the same
// result and notes. req may be nil.
func Analyze(resp *message.Response, req *message.Request, notes note.Adder) Result {
	var res Result
	p := resp.Parsed
	cc := p.Directives("cache-control")
	date, hasDate := p.Time("date")
	_, hasLM := p.Time("last-modified")
	expires, hasExpires := p.Time("expires")
	_, hasETag := p.ETag("etag")
	ageHdr, hasAge := p.Int("age")
	authorized := req != nil && req.Has("Authorization")
	rv := note.Vars{"response": "This response"}

	// Storability.
	switch {
	case req != nil && !cacheableMethods[req.Method]:
		notes.Add("method", note.MethodUncacheable, note.Vars{"method": req.Method})
		return res
	case cc.Has("no-store"):
		notes.Add("header-cache-control", note.NoStore, rv)
		return res
	case cc.Has("private"):
		res.StorePrivate = true
		notes.Add("header-cache-control", note.PrivateCC, rv)
	case authorized && !cc.Has("public"):
		res.StorePrivate = true
		notes.Add("header-cache-control", note.PrivateAuth, rv)
	default:
		res.StoreShared = true
		res.StorePrivate = true
		notes.Add("header-cache-control", note.Storeable, rv)
	}

	if cc.Has("no-cache") {
		if !hasLM && !hasETag {
			notes.Add("header-cache-control", note.NoCacheNoValidator, rv)
		} else {
			notes.Add("header-cache-control", note.NoCache, rv)
		}
	}

	checkPrePost(cc, notes)

	vary := p.Strings("vary")
	switch {
	case containsString(vary, "*"):
		notes.Add("header-vary", note.VaryAsterisk, rv)
		res.StoreShared, res.StorePrivate = false, false
	case len(vary) > 3:
		notes.Add("header-vary", note.VaryComplex, note.Vars{"vary_count": len(vary)})
	default:
		if containsString(vary, "user-agent") {
			notes.Add("header-vary", note.VaryUserAgent, nil)
		}
		if containsString(vary, "host") {
			notes.Add("header-vary", note.VaryHost, nil)
		}
	}

	// Age and clock.
	age := time.Duration(ageHdr) * time.Second
	res.Age = age
	var apparentAge time.Duration
	if hasDate {
		apparentAge = max(0, resp.Start.Sub(date).Truncate(time.Second))
	}
	currentAge := max(apparentAge, age)
	if age >= time.Second {
		notes.Add("header-age header-date", note.CurrentAge, note.Vars{"age": age.String()})
	}
	if !hasDate {
		if hasLM || hasExpires {
			notes.Add("header-date", note.DateClocklessBadHdr, nil)
		} else {
			notes.Add("header-date", note.DateClockless, rv)
		}
	} else {
		skew := date.Sub(resp.Start).Truncate(time.Second) + age
		switch {
		case hasAge && age > MaxClockSkew && currentAge-skew < MaxClockSkew:
			notes.Add("header-date header-age", note.AgePenalty, nil)
		case skew > MaxClockSkew || skew < -MaxClockSkew:
			notes.Add("header-date", note.DateIncorrect, note.Vars{"clock_skew_string": skewString(skew)})
		default:
			notes.Add("header-date", note.DateCorrect, nil)
		}
	}

	// Freshness.
	var lifetime time.Duration
	explicit, ccFreshness := false, false
	if secs, ok := cc.Seconds("s-maxage"); ok {
		lifetime = time.Duration(secs) * time.Second
		explicit, ccFreshness = true, true
	} else if secs, ok := cc.Seconds("max-age"); ok {
		lifetime = time.Duration(secs) * time.Second
		explicit, ccFreshness = true, true
	} else if hasExpires && hasDate {
		lifetime = expires.Sub(date)
		explicit = true
	}
	left := lifetime - currentAge
	fresh := left > 0
	res.FreshnessLifetime = lifetime
	res.Fresh = fresh
	freshVars := note.Vars{
		"response":           "This response",
		"freshness_lifetime": lifetime.String(),
		"freshness_left":     left.String(),
		"current_age":        currentAge.String(),
	}
	switch {
	case explicit && fresh:
		notes.Add("header-cache-control header-expires", note.FreshnessFresh, freshVars)
	case explicit && ccFreshness && age > lifetime:
		notes.Add("header-cache-control header-expires", note.FreshnessStaleCache, freshVars)
	case explicit:
		notes.Add("header-cache-control header-expires", note.FreshnessStaleAlready, freshVars)
	case heuristicStatus[resp.StatusCode] && (res.StoreShared || res.StorePrivate):
		notes.Add("header-last-modified", note.FreshnessHeuristic, rv)
	default:
		notes.Add("header-cache-control header-expires", note.FreshnessNone, rv)
	}

	// Serving stale.
	switch {
	case cc.Has("must-revalidate"):
		if fresh {
			notes.Add("header-cache-control", note.FreshMustRevalidate, rv)
		} else if explicit {
			notes.Add("header-cache-control", note.StaleMustRevalidate, rv)
		}
	case cc.Has("proxy-revalidate") || cc.Has("s-maxage"):
		if fresh {
			notes.Add("header-cache-control", note.FreshProxyRevalidate, rv)
		} else if explicit {
			notes.Add("header-cache-control", note.StaleProxyRevalidate, rv)
		}
	default:
		if fresh {
			notes.Add("header-cache-control", note.FreshServable, rv)
		} else if explicit {
			notes.Add("header-cache-control", note.StaleServable, rv)
		}
	}

	if cc.Has("public") {
		if authorized {
			notes.Add("header-cache-control", note.PublicAuth, rv)
		} else {
			notes.Add("header-cache-control", note.Public, nil)
		}
	}
	return res
}

func checkPrePost(cc headers.Directives, notes note.Adder) {
	pre, hasPre := cc["pre-check"]
	post, hasPost := cc["post-check"]
	if !hasPre && !hasPost {
		return
	}
	if !hasPre || !hasPost {
		notes.Add("header-cache-control", note.CheckSingle, nil)
		return
	}
	preN, err1 := strconv.Atoi(pre)
	postN, err2 := strconv.Atoi(post)
	if err1 != nil || err2 != nil {
		notes.Add("header-cache-control", note.CheckNotInteger, nil)
		return
	}
	switch {
	case preN == 0 && postN == 0:
		notes.Add("header-cache-control", note.CheckAllZero, nil)
	case postN > preN:
		notes.Add("header-cache-control", note.CheckPostBigger, nil)
	case postN == 0:
		notes.Add("header-cache-control", note.CheckPostZero, nil)
	default:
		notes.Add("header-cache-control", note.CheckPostPre, note.Vars{"pre_check": preN, "post_check": postN})
	}
}

func skewString(skew time.Duration) string {
	if skew > 0 {
		return skew.String() + " ahead"
	}
	return (-skew).String() + " behind"
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
