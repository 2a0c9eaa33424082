package fetch

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/redprobe/internal/headers"
	"github.com/JakeFAU/redprobe/internal/message"
	"github.com/JakeFAU/redprobe/internal/note"
)

const testAgent = "redprobe-test/1.0"

func newEngine(t Transport, opts ...Option) *Engine {
	opts = append([]Option{WithLogger(zap.NewNop())}, opts...)
	return New(t, Config{UserAgent: testAgent, SampleBytes: 16, MaxBodyBytes: 1 << 20}, opts...)
}

func TestRunCompletesAgainstServer(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, testAgent, r.Header.Get("User-Agent"))
		w.Header().Set("ETag", `"abc"`)
		w.Header().Set("Cache-Control", "max-age=60")
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "hello, world, this is a body")
	}))
	t.Cleanup(srv.Close)

	notes := note.NewList(nil)
	req := message.NewRequest("GET", srv.URL+"/")
	x := newEngine(NewHTTPTransport(0)).Run(context.Background(), "base", req, notes)
	resp := x.Response

	require.True(t, resp.Complete, "error: %v", resp.Err)
	assert.Equal(t, StateDone, x.State())
	assert.Nil(t, x.Err())
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "OK", resp.Phrase)
	assert.Equal(t, "HTTP/1.1", resp.Version)
	assert.Equal(t, int64(28), resp.PayloadLen)
	assert.Equal(t, resp.PayloadDigest, resp.DecodedDigest)
	assert.Len(t, resp.Sample(), 16)
	assert.Positive(t, resp.HeaderLen)
	assert.True(t, resp.StoreShared)
	assert.True(t, resp.Fresh)
	assert.True(t, notes.Has(note.CLCorrect))
	assert.True(t, notes.Has(note.FreshnessFresh))

	assert.False(t, req.Has("User-Agent"), "caller request must not be modified")
	assert.Equal(t, testAgent, x.Request.Get("User-Agent"))
	assert.False(t, x.Request.Start.IsZero())
}

func TestRunKeepsCallerUserAgent(t *testing.T) {
	t.Parallel()

	var got string
	tr := TransportFunc(func(_ context.Context, req *message.Request) (*Stream, error) {
		got = req.Get("User-Agent")
		return stream(200, nil, ""), nil
	})
	newEngine(tr).Run(context.Background(), "base",
		message.NewRequest("GET", "http://example.com/", headers.Field{Name: "User-Agent", Value: "mine"}), nil)
	assert.Equal(t, "mine", got)
}

func TestRunDecodesGzip(t *testing.T) {
	t.Parallel()

	plain := strings.Repeat("compress me ", 50)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "gzip", r.Header.Get("Accept-Encoding"))
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Set("Vary", "Accept-Encoding")
		zw := gzip.NewWriter(w)
		_, _ = io.WriteString(zw, plain)
		_ = zw.Close()
	}))
	t.Cleanup(srv.Close)

	notes := note.NewList(nil)
	req := message.NewRequest("GET", srv.URL, headers.Field{Name: "Accept-Encoding", Value: "gzip"})
	resp := newEngine(NewHTTPTransport(0)).Run(context.Background(), "base", req, notes).Response

	require.True(t, resp.Complete, "error: %v", resp.Err)
	assert.True(t, resp.IsGzip())
	assert.Equal(t, plain, string(resp.Decoded))
	assert.Equal(t, int64(len(plain)), resp.DecodedLen)
	assert.Less(t, resp.PayloadLen, resp.DecodedLen)
	assert.NotEqual(t, resp.PayloadDigest, resp.DecodedDigest)
	assert.False(t, notes.Has(note.BadGzip))
}

func TestRunDecodesDeflate(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, _ = io.WriteString(zw, "deflated body")
	_ = zw.Close()

	tr := TransportFunc(func(context.Context, *message.Request) (*Stream, error) {
		return stream(200, []headers.Field{{Name: "Content-Encoding", Value: "deflate"}}, buf.String()), nil
	})
	notes := note.NewList(nil)
	resp := newEngine(tr).Run(context.Background(), "base", message.NewRequest("GET", "http://example.com/"), notes).Response

	require.True(t, resp.Complete)
	assert.Equal(t, "deflated body", string(resp.Decoded))
	assert.False(t, notes.Has(note.BadZlib))
}

func TestRunCorruptCodings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		coding string
		want   note.Kind
	}{
		{coding: "gzip", want: note.BadGzip},
		{coding: "deflate", want: note.BadZlib},
	}
	for _, tt := range tests {
		t.Run(tt.coding, func(t *testing.T) {
			t.Parallel()
			tr := TransportFunc(func(context.Context, *message.Request) (*Stream, error) {
				return stream(200, []headers.Field{{Name: "Content-Encoding", Value: tt.coding}}, "\xff\xff\xff\xff"), nil
			})
			notes := note.NewList(nil)
			resp := newEngine(tr).Run(context.Background(), "base", message.NewRequest("GET", "http://example.com/"), notes).Response

			require.True(t, resp.Complete)
			assert.Equal(t, 1, notes.Count(tt.want))
			assert.Nil(t, resp.Decoded)
		})
	}
}

func TestRunContentLength(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		method string
		status int
		want   []note.Kind
		absent []note.Kind
	}{
		{name: "incorrect", method: "GET", status: 200, want: []note.Kind{note.CLIncorrect}},
		{name: "head skipped", method: "HEAD", status: 200, absent: []note.Kind{note.CLIncorrect, note.CLCorrect}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			body := "abc"
			if tt.method == "HEAD" {
				body = ""
			}
			tr := TransportFunc(func(context.Context, *message.Request) (*Stream, error) {
				return stream(tt.status, []headers.Field{{Name: "Content-Length", Value: "5"}}, body), nil
			})
			notes := note.NewList(nil)
			resp := newEngine(tr).Run(context.Background(), "base", message.NewRequest(tt.method, "http://example.com/"), notes).Response
			require.True(t, resp.Complete, "error: %v", resp.Err)
			for _, k := range tt.want {
				assert.True(t, notes.Has(k), "missing %s", k)
			}
			for _, k := range tt.absent {
				assert.False(t, notes.Has(k), "unexpected %s", k)
			}
		})
	}
}

func TestRunBoundsSamplesAndBody(t *testing.T) {
	t.Parallel()

	body := strings.Repeat("x", 100)
	tr := TransportFunc(func(context.Context, *message.Request) (*Stream, error) {
		return stream(200, nil, body), nil
	})
	e := New(tr, Config{SampleBytes: 10, MaxBodyBytes: 50})
	resp := e.Run(context.Background(), "base", message.NewRequest("GET", "http://example.com/"), nil).Response

	require.True(t, resp.Complete)
	assert.Equal(t, int64(100), resp.PayloadLen)
	assert.Len(t, resp.Sample(), 10)
	assert.Equal(t, int64(0), resp.Samples[0].Offset)
	assert.Len(t, resp.Body, 50)
	assert.True(t, resp.BodyTruncated)
}

func TestRunErrors(t *testing.T) {
	t.Parallel()

	closed := httptest.NewServer(http.NotFoundHandler())
	closedURL := closed.URL
	closed.Close()

	tests := []struct {
		name string
		uri  string
		tr   Transport
		opts []Option
		want ErrorKind
	}{
		{
			name: "bad scheme",
			uri:  "ftp://example.com/",
			tr:   NewHTTPTransport(0),
			want: ErrURL,
		},
		{
			name: "connection refused",
			uri:  closedURL,
			tr:   NewHTTPTransport(0),
			want: ErrConnect,
		},
		{
			name: "robots disallowed",
			uri:  "http://example.com/private",
			tr:   NewHTTPTransport(0),
			opts: []Option{WithRobots(denyAll{})},
			want: ErrRobotsDisallowed,
		},
		{
			name: "rate limit canceled",
			uri:  "http://example.com/",
			tr:   NewHTTPTransport(0),
			opts: []Option{WithLimiter(failingLimiter{err: context.Canceled})},
			want: ErrCanceled,
		},
		{
			name: "truncated body",
			uri:  "http://example.com/",
			tr: TransportFunc(func(context.Context, *message.Request) (*Stream, error) {
				s := stream(200, nil, "")
				s.Body = io.NopCloser(&errReader{data: []byte("partial"), err: io.ErrUnexpectedEOF})
				return s, nil
			}),
			want: ErrIncomplete,
		},
		{
			name: "body on 204",
			uri:  "http://example.com/",
			tr: TransportFunc(func(context.Context, *message.Request) (*Stream, error) {
				return stream(204, nil, "oops"), nil
			}),
			want: ErrBodyForbidden,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			notes := note.NewList(nil)
			x := newEngine(tt.tr, tt.opts...).Run(context.Background(), "base", message.NewRequest("GET", tt.uri), notes)
			resp := x.Response

			assert.False(t, resp.Complete)
			assert.Equal(t, StateError, x.State())
			require.NotNil(t, x.Err())
			assert.Equal(t, tt.want, x.Err().Kind)
			assert.NotEmpty(t, x.Err().Desc)
			assert.NotZero(t, x.Err().GatewayStatus)
			assert.False(t, resp.StoreShared)
			assert.Zero(t, resp.FreshnessLifetime)
			assert.Zero(t, notes.Count(note.TransportError))
		})
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	already := NewError(ErrChunk, errors.New("bad chunk"))
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{name: "canceled", err: context.Canceled, want: ErrCanceled},
		{name: "deadline", err: context.DeadlineExceeded, want: ErrTimeout},
		{name: "dns", err: &url.Error{Op: "Get", URL: "http://nope", Err: &net.DNSError{Err: "no such host", Name: "nope"}}, want: ErrDNS},
		{name: "unexpected eof", err: io.ErrUnexpectedEOF, want: ErrIncomplete},
		{name: "chunked", err: errors.New("http: invalid byte in chunk length"), want: ErrChunk},
		{name: "passthrough", err: already, want: ErrChunk},
		{name: "other", err: errors.New("boom"), want: ErrUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Classify(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Kind)
			assert.ErrorIs(t, got, tt.err)
		})
	}
	assert.Nil(t, Classify(nil))
	assert.Same(t, already, Classify(already))
}

func TestErrorKindText(t *testing.T) {
	t.Parallel()

	b, err := ErrRobotsDisallowed.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "robots_disallowed", string(b))
	assert.Equal(t, 504, ErrTimeout.GatewayStatus())
	assert.Equal(t, "unknown", ErrorKind(99).String())
	assert.Equal(t, "request-sent", StateRequestSent.String())
}

func stream(code int, fields []headers.Field, body string) *Stream {
	return &Stream{
		Version:    "HTTP/1.1",
		StatusCode: code,
		Phrase:     http.StatusText(code),
		Header:     fields,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

type denyAll struct{}

func (denyAll) Allowed(context.Context, *url.URL) bool { return false }

type failingLimiter struct{ err error }

func (f failingLimiter) Wait(context.Context, string) error { return f.err }

type errReader struct {
	data []byte
	err  error
}

func (r *errReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, r.err
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}
