// Package message models the request and response of one HTTP exchange.
package message

import (
	"slices"
	"strings"
	"time"

	"github.com/JakeFAU/redprobe/internal/headers"
)

// Tri is a three-valued flag.
type Tri int

// Tri values.
const (
	Unknown Tri = iota
	Yes
	No
)

func (t Tri) String() string {
	switch t {
	case Yes:
		return "yes"
	case No:
		return "no"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t Tri) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Bool converts b to Yes or No.
func Bool(b bool) Tri {
	if b {
		return Yes
	}
	return No
}

// Request is an outgoing request. Treat it as immutable once an exchange
// starts; derive new requests with WithHeader and WithoutHeader.
type Request struct {
	Method string          `json:"method"`
	URI    string          `json:"uri"`
	Header []headers.Field `json:"headers"`
	Body   []byte          `json:"-"`
	Start  time.Time       `json:"start"`
}

// NewRequest returns a request with a copy of hdrs.
func NewRequest(method, uri string, hdrs ...headers.Field) *Request {
	if method == "" {
		method = "GET"
	}
	return &Request{Method: method, URI: uri, Header: slices.Clone(hdrs)}
}

// Get returns the first value of name.
func (r *Request) Get(name string) string {
	return get(r.Header, name)
}

// Has reports whether name is present.
func (r *Request) Has(name string) bool {
	return has(r.Header, name)
}

// Values returns every value of name in order.
func (r *Request) Values(name string) []string {
	return values(r.Header, name)
}

// Clone returns a deep copy.
func (r *Request) Clone() *Request {
	cp := *r
	cp.Header = slices.Clone(r.Header)
	cp.Body = slices.Clone(r.Body)
	return &cp
}

// WithHeader returns a copy with name set to value, replacing earlier values.
func (r *Request) WithHeader(name, value string) *Request {
	cp := r.WithoutHeader(name)
	cp.Header = append(cp.Header, headers.Field{Name: name, Value: value})
	return cp
}

// WithoutHeader returns a copy with every occurrence of name removed.
func (r *Request) WithoutHeader(name string) *Request {
	cp := r.Clone()
	cp.Header = slices.DeleteFunc(cp.Header, func(f headers.Field) bool {
		return strings.EqualFold(f.Name, name)
	})
	return cp
}

// Sample is a chunk of the payload starting at Offset.
type Sample struct {
	Offset int64  `json:"offset"`
	Data   []byte `json:"data"`
}

// Response is the observed response. Cache and status outputs are populated
// only when Complete is true.
type Response struct {
	Version    string          `json:"version"`
	StatusCode int             `json:"status"`
	Phrase     string          `json:"phrase"`
	Header     []headers.Field `json:"headers"`
	Parsed     headers.Parsed  `json:"-"`
	Trailer    []headers.Field `json:"trailers,omitempty"`

	Samples       []Sample `json:"-"`
	Body          []byte   `json:"-"`
	Decoded       []byte   `json:"-"`
	BodyTruncated bool     `json:"body_truncated,omitempty"`

	PayloadLen    int64  `json:"payload_len"`
	DecodedLen    int64  `json:"decoded_len"`
	TransferLen   int64  `json:"transfer_len"`
	HeaderLen     int64  `json:"header_len"`
	PayloadDigest string `json:"payload_sha256,omitempty"`
	DecodedDigest string `json:"decoded_sha256,omitempty"`

	Complete bool      `json:"complete"`
	Err      error     `json:"-"`
	Start    time.Time `json:"start"`
	Done     time.Time `json:"done"`

	StoreShared       bool          `json:"store_shared"`
	StorePrivate      bool          `json:"store_private"`
	Age               time.Duration `json:"age"`
	FreshnessLifetime time.Duration `json:"freshness_lifetime"`
	Fresh             bool          `json:"fresh"`

	IMSSupport     Tri `json:"ims_support"`
	INMSupport     Tri `json:"inm_support"`
	PartialSupport Tri `json:"partial_support"`
	GzipSupport    Tri `json:"gzip_support"`
	GzipSavings    int `json:"gzip_savings"`
}

// Get returns the first raw value of name.
func (r *Response) Get(name string) string {
	return get(r.Header, name)
}

// Has reports whether name appears in the raw header block.
func (r *Response) Has(name string) bool {
	return has(r.Header, name)
}

// Values returns the raw values of name in order.
func (r *Response) Values(name string) []string {
	return values(r.Header, name)
}

// Sample concatenates the sampled chunks.
func (r *Response) Sample() []byte {
	var out []byte
	for _, s := range r.Samples {
		out = append(out, s.Data...)
	}
	return out
}

// ErrorText returns the terminal error message, if any.
func (r *Response) ErrorText() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// IsGzip reports whether the payload carries a gzip content-coding.
func (r *Response) IsGzip() bool {
	return r.Parsed.Contains("content-encoding", "gzip") || r.Parsed.Contains("content-encoding", "x-gzip")
}

func get(fields []headers.Field, name string) string {
	for _, f := range fields {
		if strings.EqualFold(f.Name, name) {
			return f.Value
		}
	}
	return ""
}

func has(fields []headers.Field, name string) bool {
	return slices.ContainsFunc(fields, func(f headers.Field) bool {
		return strings.EqualFold(f.Name, name)
	})
}

func values(fields []headers.Field, name string) []string {
	var out []string
	for _, f := range fields {
		if strings.EqualFold(f.Name, name) {
			out = append(out, f.Value)
		}
	}
	return out
}
