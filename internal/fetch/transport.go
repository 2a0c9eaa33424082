package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/JakeFAU/redprobe/internal/headers"
	"github.com/JakeFAU/redprobe/internal/message"
)

// Stream is a response whose body has not been read yet.
type Stream struct {
	Version    string
	StatusCode int
	Phrase     string
	Header     []headers.Field
	Body       io.ReadCloser
	// Trailer returns trailer fields; it is only meaningful after Body hits EOF.
	Trailer func() []headers.Field
}

// Transport sends one request and returns the response head.
type Transport interface {
	RoundTrip(ctx context.Context, req *message.Request) (*Stream, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, req *message.Request) (*Stream, error)

// RoundTrip implements Transport.
func (f TransportFunc) RoundTrip(ctx context.Context, req *message.Request) (*Stream, error) {
	return f(ctx, req)
}

// HTTPTransport implements Transport on net/http. It never follows redirects
// and never asks for or undoes content-codings on its own.
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport builds a transport whose exchanges are bounded by timeout.
func NewHTTPTransport(timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{
		client: &http.Client{
			Timeout:   timeout,
			Transport: newHTTPTransport(),
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		DisableCompression:    true,
	}
}

// RoundTrip implements Transport.
func (t *HTTPTransport) RoundTrip(ctx context.Context, req *message.Request) (*Stream, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	hreq, err := http.NewRequestWithContext(ctx, req.Method, req.URI, body)
	if err != nil {
		return nil, NewError(ErrURL, err)
	}
	for _, f := range req.Header {
		if strings.EqualFold(f.Name, "Host") {
			hreq.Host = f.Value
			continue
		}
		hreq.Header.Add(f.Name, f.Value)
	}
	resp, err := t.client.Do(hreq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	return &Stream{
		Version:    resp.Proto,
		StatusCode: resp.StatusCode,
		Phrase:     phrase(resp.Status, resp.StatusCode),
		Header:     fields(resp.Header, resp.TransferEncoding),
		Body:       resp.Body,
		Trailer: func() []headers.Field {
			return fields(resp.Trailer, nil)
		},
	}, nil
}

// fields flattens h with names sorted and values in received order.
func fields(h http.Header, transferEncoding []string) []headers.Field {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]headers.Field, 0, len(h)+1)
	for _, name := range names {
		for _, v := range h[name] {
			out = append(out, headers.Field{Name: name, Value: v})
		}
	}
	if len(transferEncoding) > 0 {
		out = append(out, headers.Field{Name: "Transfer-Encoding", Value: strings.Join(transferEncoding, ", ")})
	}
	return out
}

func phrase(status string, code int) string {
	return strings.TrimSpace(strings.TrimPrefix(status, strconv.Itoa(code)))
}
