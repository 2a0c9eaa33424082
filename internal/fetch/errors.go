package fetch

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
)

// ErrorKind classifies why an exchange failed.
type ErrorKind int

// Error kinds.
const (
	ErrUnknown ErrorKind = iota
	ErrURL
	ErrConnect
	ErrDNS
	ErrTLS
	ErrTimeout
	ErrIncomplete
	ErrChunk
	ErrBodyForbidden
	ErrRobotsDisallowed
	ErrCanceled
)

type kindInfo struct {
	name   string
	desc   string
	status int
}

var kinds = map[ErrorKind]kindInfo{
	ErrUnknown:          {"unknown", "An unknown error occurred", 500},
	ErrURL:              {"url", "The URL is not valid", 400},
	ErrConnect:          {"connect", "Could not connect to the server", 502},
	ErrDNS:              {"dns", "The hostname could not be resolved", 502},
	ErrTLS:              {"tls", "The TLS connection failed", 502},
	ErrTimeout:          {"timeout", "The server did not respond in time", 504},
	ErrIncomplete:       {"incomplete", "The response was incomplete", 502},
	ErrChunk:            {"chunk", "The chunked encoding was malformed", 502},
	ErrBodyForbidden:    {"body_forbidden", "The response had a body that is not allowed", 502},
	ErrRobotsDisallowed: {"robots_disallowed", "robots.txt disallows fetching this URL", 502},
	ErrCanceled:         {"canceled", "The request was canceled", 499},
}

func (k ErrorKind) String() string {
	if info, ok := kinds[k]; ok {
		return info.name
	}
	return kinds[ErrUnknown].name
}

// MarshalText implements encoding.TextMarshaler.
func (k ErrorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Desc is the human readable description of k.
func (k ErrorKind) Desc() string {
	if info, ok := kinds[k]; ok {
		return info.desc
	}
	return kinds[ErrUnknown].desc
}

// GatewayStatus is the status a gateway would answer with for k.
func (k ErrorKind) GatewayStatus() int {
	if info, ok := kinds[k]; ok {
		return info.status
	}
	return kinds[ErrUnknown].status
}

// Error is a classified exchange failure.
type Error struct {
	Kind          ErrorKind `json:"kind"`
	Desc          string    `json:"desc"`
	Detail        string    `json:"detail,omitempty"`
	GatewayStatus int       `json:"gateway_status"`
	Err           error     `json:"-"`
}

// NewError builds an Error of kind wrapping err.
func NewError(kind ErrorKind, err error) *Error {
	e := &Error{
		Kind:          kind,
		Desc:          kind.Desc(),
		GatewayStatus: kind.GatewayStatus(),
		Err:           err,
	}
	if err != nil {
		e.Detail = err.Error()
	}
	return e
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return e.Desc
	}
	return fmt.Sprintf("%s (%s)", e.Desc, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Classify maps err to an Error. Errors that are already classified pass through.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}
	return NewError(classify(err), err)
}

func classify(err error) ErrorKind {
	if errors.Is(err, context.Canceled) {
		return ErrCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ErrDNS
	}
	var (
		recordErr tls.RecordHeaderError
		certErr   *tls.CertificateVerificationError
		unknownCA x509.UnknownAuthorityError
		hostErr   x509.HostnameError
	)
	if errors.As(err, &recordErr) || errors.As(err, &certErr) ||
		errors.As(err, &unknownCA) || errors.As(err, &hostErr) ||
		strings.Contains(err.Error(), "tls: ") {
		return ErrTLS
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrIncomplete
	}
	msg := err.Error()
	if strings.Contains(msg, "chunk") {
		return ErrChunk
	}
	if strings.Contains(msg, "body not allowed") {
		return ErrBodyForbidden
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnect
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if strings.Contains(msg, "unsupported protocol scheme") || strings.Contains(msg, "no Host in request URL") {
			return ErrURL
		}
	}
	if strings.Contains(msg, "connection refused") || strings.Contains(msg, "connection reset") {
		return ErrConnect
	}
	return ErrUnknown
}
