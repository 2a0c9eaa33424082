package note

import (
	"fmt"
	"strings"
)

// Definition is the static metadata for a kind.
type Definition struct {
	Category Category
	Level    Level
	Summary  string
}

// Header and parameter syntax.
const (
	BadSyntax            Kind = "BAD_SYNTAX"
	SingleHeaderRepeat   Kind = "SINGLE_HEADER_REPEAT"
	RequestHdrInResponse Kind = "REQUEST_HDR_IN_RESPONSE"
	ResponseHdrInRequest Kind = "RESPONSE_HDR_IN_REQUEST"
	HeaderNameEncoding   Kind = "HEADER_NAME_ENCODING"
	HeaderValueEncoding  Kind = "HEADER_VALUE_ENCODING"
	HeaderDeprecated     Kind = "HEADER_DEPRECATED"
	ParamRepeats         Kind = "PARAM_REPEATS"
	ParamSingleQuoted    Kind = "PARAM_SINGLE_QUOTED"
	ParamStarQuoted      Kind = "PARAM_STAR_QUOTED"
	ParamStarError       Kind = "PARAM_STAR_ERROR"
	ParamStarNoCharset   Kind = "PARAM_STAR_NOCHARSET"
	ParamStarCharset     Kind = "PARAM_STAR_CHARSET"
	ParamStarBad         Kind = "PARAM_STAR_BAD"
)

// Field-specific observations.
const (
	BadDateSyntax           Kind = "BAD_DATE_SYNTAX"
	DateObsolete            Kind = "DATE_OBSOLETE"
	AgeNotInt               Kind = "AGE_NOT_INT"
	AgeNegative             Kind = "AGE_NEGATIVE"
	CLCorrect               Kind = "CL_CORRECT"
	CLIncorrect             Kind = "CL_INCORRECT"
	CCMiscap                Kind = "CC_MISCAP"
	CCDup                   Kind = "CC_DUP"
	BadCCSyntax             Kind = "BAD_CC_SYNTAX"
	PragmaNoCache           Kind = "PRAGMA_NO_CACHE"
	PragmaOther             Kind = "PRAGMA_OTHER"
	LocationUndefined       Kind = "LOCATION_UNDEFINED"
	LocationNotAbsolute     Kind = "LOCATION_NOT_ABSOLUTE"
	TransferCodingIdentity  Kind = "TRANSFER_CODING_IDENTITY"
	TransferCodingUnwanted  Kind = "TRANSFER_CODING_UNWANTED"
	EncodingIdentity        Kind = "ENCODING_IDENTITY"
	HSTSNoMaxAge            Kind = "HSTS_NO_MAXAGE"
	HSTSSubdomains          Kind = "HSTS_SUBDOMAINS"
	HSTSOK                  Kind = "HSTS_OK"
	ContentSniffingDisabled Kind = "CONTENT_SNIFFING_DISABLED"
	XCTOBadValue            Kind = "XCTO_BAD_VALUE"
	FrameOptionsDeny        Kind = "FRAME_OPTIONS_DENY"
	FrameOptionsSameOrigin  Kind = "FRAME_OPTIONS_SAMEORIGIN"
	FrameOptionsUnknown     Kind = "FRAME_OPTIONS_UNKNOWN"
	XSSProtectionOn         Kind = "XSS_PROTECTION_ON"
	XSSProtectionOff        Kind = "XSS_PROTECTION_OFF"
	XSSProtectionBlock      Kind = "XSS_PROTECTION_BLOCK"
	CORSAllowAny            Kind = "CORS_ALLOW_ANY"
	ReferrerPolicyUnknown   Kind = "REFERRER_POLICY_UNKNOWN"
	ViaPresent              Kind = "VIA_PRESENT"
	LinkRev                 Kind = "LINK_REV"
	SetCookieNoVal          Kind = "SET_COOKIE_NO_VAL"
	SetCookieNoName         Kind = "SET_COOKIE_NO_NAME"
	MIMEVersion             Kind = "MIME_VERSION"
	UnknownRange            Kind = "UNKNOWN_RANGE"
	ContentTypeNoCharset    Kind = "CONTENT_TYPE_NO_CHARSET"
)

// Status code rules.
const (
	NonstandardStatus            Kind = "NONSTANDARD_STATUS"
	UnexpectedContinue           Kind = "UNEXPECTED_CONTINUE"
	UpgradeNotRequested          Kind = "UPGRADE_NOT_REQUESTED"
	CreatedSafeMethod            Kind = "CREATED_SAFE_METHOD"
	CreatedWithoutLocation       Kind = "CREATED_WITHOUT_LOCATION"
	PartialWithoutRange          Kind = "PARTIAL_WITHOUT_RANGE"
	PartialNotRequested          Kind = "PARTIAL_NOT_REQUESTED"
	RedirectWithoutLocation      Kind = "REDIRECT_WITHOUT_LOCATION"
	StatusDeprecated             Kind = "STATUS_DEPRECATED"
	NoDate304                    Kind = "NO_DATE_304"
	ContentRangeMeaningless      Kind = "CONTENT_RANGE_MEANINGLESS"
	StatusBadRequest             Kind = "STATUS_BAD_REQUEST"
	StatusForbidden              Kind = "STATUS_FORBIDDEN"
	StatusNotFound               Kind = "STATUS_NOT_FOUND"
	StatusNotAcceptable          Kind = "STATUS_NOT_ACCEPTABLE"
	StatusConflict               Kind = "STATUS_CONFLICT"
	StatusGone                   Kind = "STATUS_GONE"
	StatusRequestEntityTooLarge  Kind = "STATUS_REQUEST_ENTITY_TOO_LARGE"
	StatusURITooLong             Kind = "STATUS_URI_TOO_LONG"
	StatusUnsupportedMediaType   Kind = "STATUS_UNSUPPORTED_MEDIA_TYPE"
	StatusInternalServiceError   Kind = "STATUS_INTERNAL_SERVICE_ERROR"
	StatusNotImplemented         Kind = "STATUS_NOT_IMPLEMENTED"
	StatusBadGateway             Kind = "STATUS_BAD_GATEWAY"
	StatusServiceUnavailable     Kind = "STATUS_SERVICE_UNAVAILABLE"
	StatusGatewayTimeout         Kind = "STATUS_GATEWAY_TIMEOUT"
	StatusVersionNotSupported    Kind = "STATUS_VERSION_NOT_SUPPORTED"
	UnauthorizedWithoutAuth      Kind = "UNAUTHORIZED_WITHOUT_AUTH"
	MethodNotAllowedWithoutAllow Kind = "METHOD_NOT_ALLOWED_WITHOUT_ALLOW"
)

// Cache analysis.
const (
	MethodUncacheable     Kind = "METHOD_UNCACHEABLE"
	NoStore               Kind = "NO_STORE"
	PrivateCC             Kind = "PRIVATE_CC"
	PrivateAuth           Kind = "PRIVATE_AUTH"
	Storeable             Kind = "STOREABLE"
	NoCache               Kind = "NO_CACHE"
	NoCacheNoValidator    Kind = "NO_CACHE_NO_VALIDATOR"
	CheckSingle           Kind = "CHECK_SINGLE"
	CheckNotInteger       Kind = "CHECK_NOT_INTEGER"
	CheckAllZero          Kind = "CHECK_ALL_ZERO"
	CheckPostBigger       Kind = "CHECK_POST_BIGGER"
	CheckPostZero         Kind = "CHECK_POST_ZERO"
	CheckPostPre          Kind = "CHECK_POST_PRE"
	VaryAsterisk          Kind = "VARY_ASTERISK"
	VaryComplex           Kind = "VARY_COMPLEX"
	VaryUserAgent         Kind = "VARY_USER_AGENT"
	VaryHost              Kind = "VARY_HOST"
	CurrentAge            Kind = "CURRENT_AGE"
	DateClockless         Kind = "DATE_CLOCKLESS"
	DateClocklessBadHdr   Kind = "DATE_CLOCKLESS_BAD_HDR"
	AgePenalty            Kind = "AGE_PENALTY"
	DateIncorrect         Kind = "DATE_INCORRECT"
	DateCorrect           Kind = "DATE_CORRECT"
	FreshnessFresh        Kind = "FRESHNESS_FRESH"
	FreshnessStaleCache   Kind = "FRESHNESS_STALE_CACHE"
	FreshnessStaleAlready Kind = "FRESHNESS_STALE_ALREADY"
	FreshnessHeuristic    Kind = "FRESHNESS_HEURISTIC"
	FreshnessNone         Kind = "FRESHNESS_NONE"
	FreshServable         Kind = "FRESH_SERVABLE"
	StaleServable         Kind = "STALE_SERVABLE"
	FreshMustRevalidate   Kind = "FRESH_MUST_REVALIDATE"
	StaleMustRevalidate   Kind = "STALE_MUST_REVALIDATE"
	FreshProxyRevalidate  Kind = "FRESH_PROXY_REVALIDATE"
	StaleProxyRevalidate  Kind = "STALE_PROXY_REVALIDATE"
	Public                Kind = "PUBLIC"
	PublicAuth            Kind = "PUBLIC_AUTH"
)

// Exchange outcomes.
const (
	TransportError Kind = "TRANSPORT_ERROR"
	CheckTimeout   Kind = "CHECK_TIMEOUT"
	BadGzip        Kind = "BAD_GZIP"
	BadZlib        Kind = "BAD_ZLIB"
)

// Active checks.
const (
	INM304                 Kind = "INM_304"
	INMFull                Kind = "INM_FULL"
	INMDupETagWeak         Kind = "INM_DUP_ETAG_WEAK"
	INMDupETagStrong       Kind = "INM_DUP_ETAG_STRONG"
	INMUnknown             Kind = "INM_UNKNOWN"
	INMStatus              Kind = "INM_STATUS"
	ETagSubreqProblem      Kind = "ETAG_SUBREQ_PROBLEM"
	IMS304                 Kind = "IMS_304"
	IMSFull                Kind = "IMS_FULL"
	IMSUnknown             Kind = "IMS_UNKNOWN"
	IMSStatus              Kind = "IMS_STATUS"
	LMSubreqProblem        Kind = "LM_SUBREQ_PROBLEM"
	MissingHdrs304         Kind = "MISSING_HDRS_304"
	RangeCorrect           Kind = "RANGE_CORRECT"
	RangeIncorrect         Kind = "RANGE_INCORRECT"
	RangeFull              Kind = "RANGE_FULL"
	RangeStatus            Kind = "RANGE_STATUS"
	RangeNegMismatch       Kind = "RANGE_NEG_MISMATCH"
	RangeSubreqProblem     Kind = "RANGE_SUBREQ_PROBLEM"
	ConnegGzipWithoutAsk   Kind = "CONNEG_GZIP_WITHOUT_ASKING"
	ConnegGzipGood         Kind = "CONNEG_GZIP_GOOD"
	ConnegGzipBad          Kind = "CONNEG_GZIP_BAD"
	ConnegNoVary           Kind = "CONNEG_NO_VARY"
	VaryStatusMismatch     Kind = "VARY_STATUS_MISMATCH"
	VaryHeaderMismatch     Kind = "VARY_HEADER_MISMATCH"
	VaryInconsistent       Kind = "VARY_INCONSISTENT"
	VaryBodyMismatch       Kind = "VARY_BODY_MISMATCH"
	VaryETagDoesntChange   Kind = "VARY_ETAG_DOESNT_CHANGE"
	ConnegSubreqProblem    Kind = "CONNEG_SUBREQ_PROBLEM"
	RobotsDisallowedSubreq Kind = "ROBOTS_DISALLOWED"
)

var catalog = map[Kind]Definition{
	BadSyntax:            {General, Bad, "The {field_name} header's syntax isn't valid."},
	SingleHeaderRepeat:   {General, Bad, "Only one {field_name} header is allowed in a response."},
	RequestHdrInResponse: {General, Bad, "\"{field_name}\" is a request header."},
	ResponseHdrInRequest: {General, Bad, "\"{field_name}\" is a response header."},
	HeaderNameEncoding:   {General, Bad, "The {field_name} header's name contains non-ASCII characters."},
	HeaderValueEncoding:  {General, Warn, "The {field_name} header's value contains non-ASCII characters."},
	HeaderDeprecated:     {General, Warn, "The {field_name} header is deprecated."},
	ParamRepeats:         {General, Warn, "The {param} parameter repeats in the {field_name} header."},
	ParamSingleQuoted:    {General, Warn, "The {param} parameter on the {field_name} header is single-quoted."},
	ParamStarQuoted:      {General, Bad, "The {param} parameter's value cannot be quoted."},
	ParamStarError:       {General, Bad, "The {param} parameter's value is invalid."},
	ParamStarNoCharset:   {General, Bad, "The {param} parameter's charset is not specified."},
	ParamStarCharset:     {General, Warn, "The {param} parameter's charset ({enc}) is not allowed."},
	ParamStarBad:         {General, Bad, "The {param} parameter's name is invalid."},

	BadDateSyntax:           {General, Bad, "The {field_name} header's value isn't a valid date."},
	DateObsolete:            {General, Warn, "The {field_name} header's value uses an obsolete format."},
	AgeNotInt:               {Caching, Bad, "The Age header's value should be an integer."},
	AgeNegative:             {Caching, Bad, "The Age header's value must be a positive integer."},
	CLCorrect:               {General, Good, "The Content-Length header is correct."},
	CLIncorrect:             {Connection, Bad, "The Content-Length header is {header_length} but the body was {payload_length} bytes."},
	CCMiscap:                {Caching, Warn, "The {cc} Cache-Control directive appears to have incorrect capitalisation."},
	CCDup:                   {Caching, Warn, "The {cc} Cache-Control directive appears more than once."},
	BadCCSyntax:             {Caching, Bad, "The {bad_cc_attr} Cache-Control directive's syntax is incorrect."},
	PragmaNoCache:           {Caching, Warn, "Pragma: no-cache is a request directive, not a response directive."},
	PragmaOther:             {Caching, Warn, "The Pragma header is being used in an undefined way."},
	LocationUndefined:       {General, Warn, "{response} doesn't define any meaning for the Location header."},
	LocationNotAbsolute:     {General, Info, "The Location header contains a relative URI."},
	TransferCodingIdentity:  {Connection, Info, "The identity transfer-coding isn't necessary."},
	TransferCodingUnwanted:  {Connection, Bad, "{unwanted_codings} transfer-coding was used without being asked for."},
	EncodingIdentity:        {Conneg, Info, "The identity content-coding isn't necessary."},
	HSTSNoMaxAge:            {Security, Bad, "The Strict-Transport-Security header doesn't have a max-age directive."},
	HSTSSubdomains:          {Security, Good, "Strict-Transport-Security applies to subdomains."},
	HSTSOK:                  {Security, Good, "Strict-Transport-Security is set for {max_age} seconds."},
	ContentSniffingDisabled: {Security, Info, "Content sniffing is disabled."},
	XCTOBadValue:            {Security, Warn, "The X-Content-Type-Options header value ({value}) isn't understood."},
	FrameOptionsDeny:        {Security, Info, "This response prevents framing by any site."},
	FrameOptionsSameOrigin:  {Security, Info, "This response prevents framing by other origins."},
	FrameOptionsUnknown:     {Security, Warn, "X-Frame-Options contains an unrecognised value."},
	XSSProtectionOn:         {Security, Info, "Internet Explorer's XSS filter is enabled."},
	XSSProtectionOff:        {Security, Info, "Internet Explorer's XSS filter is disabled."},
	XSSProtectionBlock:      {Security, Info, "Internet Explorer's XSS filter is blocking the page."},
	CORSAllowAny:            {Security, Info, "Any origin may read this response."},
	ReferrerPolicyUnknown:   {Security, Warn, "The Referrer-Policy value {value} isn't recognised."},
	ViaPresent:              {General, Info, "One or more intermediaries are present."},
	LinkRev:                 {General, Warn, "The 'rev' parameter on the Link header is deprecated."},
	SetCookieNoVal:          {General, Bad, "{response} has a Set-Cookie header that can't be parsed."},
	SetCookieNoName:         {General, Bad, "{response} has a Set-Cookie header without a cookie-name."},
	MIMEVersion:             {General, Info, "The MIME-Version header generally isn't necessary in HTTP."},
	UnknownRange:            {Range, Warn, "{response} advertises support for non-standard range-units."},
	ContentTypeNoCharset:    {General, Warn, "The {media_type} Content-Type does not carry a charset."},

	NonstandardStatus:            {General, Bad, "{status} is not a standard HTTP status code."},
	UnexpectedContinue:           {General, Bad, "A 100 Continue response was sent when it wasn't asked for."},
	UpgradeNotRequested:          {General, Bad, "The protocol was upgraded without being requested."},
	CreatedSafeMethod:            {General, Warn, "A new resource was created in response to a safe request."},
	CreatedWithoutLocation:       {General, Bad, "A new resource was created without its location being sent."},
	PartialWithoutRange:          {Range, Bad, "{response} doesn't have a Content-Range header."},
	PartialNotRequested:          {Range, Bad, "A partial response was sent when it wasn't requested."},
	RedirectWithoutLocation:      {General, Bad, "Redirects need to have a Location header."},
	StatusDeprecated:             {General, Bad, "The {status} status code is deprecated."},
	NoDate304:                    {Validation, Warn, "304 responses need to have a Date header."},
	ContentRangeMeaningless:      {Range, Warn, "{response} shouldn't have a Content-Range header."},
	StatusBadRequest:             {General, Warn, "{response} indicates a bad request."},
	StatusForbidden:              {General, Info, "{response} indicates that access is forbidden."},
	StatusNotFound:               {General, Info, "{response} indicates the resource isn't there."},
	StatusNotAcceptable:          {General, Info, "{response} indicates that an acceptable representation isn't available."},
	StatusConflict:               {General, Info, "{response} indicates a conflict."},
	StatusGone:                   {General, Info, "{response} indicates the resource is gone."},
	StatusRequestEntityTooLarge:  {General, Info, "{response} indicates the request body was too large."},
	StatusURITooLong:             {General, Bad, "{response} indicates the URI was too long."},
	StatusUnsupportedMediaType:   {General, Info, "{response} indicates an unsupported media type."},
	StatusInternalServiceError:   {General, Info, "{response} indicates a server error."},
	StatusNotImplemented:         {General, Info, "{response} indicates the request wasn't implemented."},
	StatusBadGateway:             {General, Info, "{response} indicates a gateway error."},
	StatusServiceUnavailable:     {General, Info, "{response} indicates the service is unavailable."},
	StatusGatewayTimeout:         {General, Info, "{response} indicates a gateway timeout."},
	StatusVersionNotSupported:    {General, Bad, "{response} indicates the HTTP version isn't supported."},
	UnauthorizedWithoutAuth:      {General, Bad, "A 401 response needs a WWW-Authenticate header."},
	MethodNotAllowedWithoutAllow: {General, Bad, "A 405 response needs an Allow header."},

	MethodUncacheable:     {Caching, Info, "Responses to the {method} method can't be stored by caches."},
	NoStore:               {Caching, Info, "{response} can't be stored by a cache."},
	PrivateCC:             {Caching, Warn, "{response} only allows a private cache to store it."},
	PrivateAuth:           {Caching, Warn, "{response} only allows a private cache to store it."},
	Storeable:             {Caching, Info, "{response} allows all caches to store it."},
	NoCache:               {Caching, Info, "{response} cannot be served from cache without validation."},
	NoCacheNoValidator:    {Caching, Warn, "{response} cannot be served from cache without validation, but has no validator."},
	CheckSingle:           {Caching, Warn, "Only one of the pre-check and post-check Cache-Control directives is present."},
	CheckNotInteger:       {Caching, Bad, "One of the pre-check/post-check Cache-Control directives has a non-integer value."},
	CheckAllZero:          {Caching, Warn, "The pre-check and post-check Cache-Control directives are both '0'."},
	CheckPostBigger:       {Caching, Warn, "The post-check Cache-control directive's value is larger than pre-check's."},
	CheckPostZero:         {Caching, Bad, "The post-check Cache-control directive's value is '0'."},
	CheckPostPre:          {Caching, Info, "Internet Explorer may refresh this response after {post_check} seconds."},
	VaryAsterisk:          {Caching, Warn, "Vary: * effectively makes this response uncacheable."},
	VaryComplex:           {Caching, Warn, "This resource varies in {vary_count} ways."},
	VaryUserAgent:         {Caching, Info, "Vary: User-Agent can cause cache inefficiency."},
	VaryHost:              {Caching, Warn, "Vary: Host is not necessary."},
	CurrentAge:            {Caching, Info, "{response} has been cached for {age}."},
	DateClockless:         {General, Warn, "{response} doesn't have a Date header."},
	DateClocklessBadHdr:   {Caching, Bad, "Responses without a Date aren't allowed to have Expires or Last-Modified values."},
	AgePenalty:            {General, Warn, "It appears that the Date header has been changed by an intermediary."},
	DateIncorrect:         {General, Bad, "The server's clock is {clock_skew_string}."},
	DateCorrect:           {General, Good, "The server's clock is correct."},
	FreshnessFresh:        {Caching, Good, "{response} is fresh until {freshness_left}."},
	FreshnessStaleCache:   {Caching, Warn, "{response} has been served stale by a cache."},
	FreshnessStaleAlready: {Caching, Info, "{response} is already stale."},
	FreshnessHeuristic:    {Caching, Warn, "{response} allows a cache to assign its own freshness lifetime."},
	FreshnessNone:         {Caching, Info, "{response} can only be served by a cache under exceptional circumstances."},
	FreshServable:         {Caching, Info, "{response} may still be served by a cache once it becomes stale."},
	StaleServable:         {Caching, Info, "{response} might be served by a cache, even though it is stale."},
	FreshMustRevalidate:   {Caching, Info, "{response} cannot be served by a cache once it becomes stale."},
	StaleMustRevalidate:   {Caching, Info, "{response} cannot be served by a cache, because it is stale."},
	FreshProxyRevalidate:  {Caching, Info, "{response} cannot be served by a shared cache once it becomes stale."},
	StaleProxyRevalidate:  {Caching, Info, "{response} cannot be served by a shared cache, because it is stale."},
	Public:                {Caching, Warn, "Cache-Control: public is rarely necessary."},
	PublicAuth:            {Caching, Info, "{response} may be stored by shared caches even though the request was authenticated."},

	TransportError: {General, Bad, "The request failed: {error}."},
	CheckTimeout:   {General, Bad, "The check did not finish within {timeout}."},
	BadGzip:        {Conneg, Bad, "{response} was compressed using GZip, but the data was corrupt."},
	BadZlib:        {Conneg, Bad, "{response} was compressed using deflate, but the data was corrupt."},

	INM304:                 {Validation, Good, "If-None-Match conditional requests are supported."},
	INMFull:                {Validation, Warn, "An If-None-Match conditional request returned the full content unchanged."},
	INMDupETagWeak:         {Validation, Info, "During validation, the ETag didn't change, even though the response body did."},
	INMDupETagStrong:       {Validation, Bad, "During validation, the ETag didn't change, even though the response body did."},
	INMUnknown:             {Validation, Info, "An If-None-Match conditional request returned the full content, but it had changed."},
	INMStatus:              {Validation, Info, "An If-None-Match conditional request returned a {inm_status} status."},
	ETagSubreqProblem:      {Validation, Bad, "There was a problem checking for ETag validation support: {problem}."},
	IMS304:                 {Validation, Good, "If-Modified-Since conditional requests are supported."},
	IMSFull:                {Validation, Warn, "An If-Modified-Since conditional request returned the full content unchanged."},
	IMSUnknown:             {Validation, Info, "An If-Modified-Since conditional request returned the full content, but it had changed."},
	IMSStatus:              {Validation, Info, "An If-Modified-Since conditional request returned a {ims_status} status."},
	LMSubreqProblem:        {Validation, Bad, "There was a problem checking for Last-Modified validation support: {problem}."},
	MissingHdrs304:         {Validation, Warn, "The {subreq_type} response is missing required headers: {missing_hdrs}."},
	RangeCorrect:           {Range, Good, "A ranged request returned the correct partial content."},
	RangeIncorrect:         {Range, Bad, "A ranged request returned partial content, but it was incorrect."},
	RangeFull:              {Range, Info, "The server ignored a ranged request and returned the full content."},
	RangeStatus:            {Range, Info, "A ranged request returned a {range_status} status."},
	RangeNegMismatch:       {Range, Bad, "Partial responses don't have the same support for compression that full ones do."},
	RangeSubreqProblem:     {Range, Bad, "There was a problem checking for partial content support: {problem}."},
	ConnegGzipWithoutAsk:   {Conneg, Warn, "A gzip-compressed response was sent when it wasn't asked for."},
	ConnegGzipGood:         {Conneg, Good, "Content negotiation for gzip compression is supported, saving {savings}%."},
	ConnegGzipBad:          {Conneg, Warn, "Content negotiation for gzip compression makes the response {savings}% larger."},
	ConnegNoVary:           {Conneg, Bad, "{response} is negotiated, but doesn't have an appropriate Vary header."},
	VaryStatusMismatch:     {Conneg, Warn, "The response status is different when content negotiation happens."},
	VaryHeaderMismatch:     {Conneg, Bad, "The {header} header is different when content negotiation happens."},
	VaryInconsistent:       {Conneg, Bad, "The resource doesn't send Vary consistently."},
	VaryBodyMismatch:       {Conneg, Bad, "The response body is different when content negotiation happens."},
	VaryETagDoesntChange:   {Conneg, Bad, "The ETag doesn't change between negotiated representations."},
	ConnegSubreqProblem:    {Conneg, Bad, "There was a problem checking for content negotiation support: {problem}."},
	RobotsDisallowedSubreq: {General, Info, "robots.txt does not allow {uri} to be checked."},
}

// Lookup returns the definition for kind. Unknown kinds map to an informational note.
func Lookup(kind Kind) Definition {
	if def, ok := catalog[kind]; ok {
		return def
	}
	return Definition{Category: General, Level: Info, Summary: string(kind)}
}

// Known reports whether kind has a catalogue entry.
func Known(kind Kind) bool {
	_, ok := catalog[kind]
	return ok
}

// Summary returns the one-line text for kind with {name} placeholders filled from vars.
func Summary(kind Kind, vars Vars) string {
	text := Lookup(kind).Summary
	if !strings.Contains(text, "{") {
		return text
	}
	pairs := make([]string, 0, len(vars)*2+2)
	for _, k := range vars.Keys() {
		pairs = append(pairs, "{"+k+"}", fmt.Sprint(vars[k]))
	}
	if _, ok := vars["response"]; !ok {
		pairs = append(pairs, "{response}", "This response")
	}
	return strings.NewReplacer(pairs...).Replace(text)
}
