// Package fetch executes single HTTP exchanges and analyses their responses.
//
// An Engine moves each exchange through a fixed sequence of states:
// created, robots, request-sent, headers, body and finally done or error.
// A completed exchange runs the status rules and the cache analyzer; a failed
// one carries a classified *Error on the Response. The engine never panics on
// network input and never adds notes for transport failures; callers decide
// how to report them.
package fetch

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/redprobe/internal/cache"
	"github.com/JakeFAU/redprobe/internal/clock/system"
	"github.com/JakeFAU/redprobe/internal/hash/sha256"
	"github.com/JakeFAU/redprobe/internal/headers"
	"github.com/JakeFAU/redprobe/internal/message"
	"github.com/JakeFAU/redprobe/internal/metrics"
	"github.com/JakeFAU/redprobe/internal/note"
	"github.com/JakeFAU/redprobe/internal/status"
)

// State is the progress of an exchange.
type State int

// Exchange states.
const (
	StateCreated State = iota
	StateRobots
	StateRequestSent
	StateHeaders
	StateBody
	StateDone
	StateError
)

var stateNames = [...]string{"created", "robots", "request-sent", "headers", "body", "done", "error"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Clock supplies exchange timestamps.
type Clock interface {
	Now() time.Time
}

// RobotsChecker gates requests on robots.txt.
type RobotsChecker interface {
	Allowed(ctx context.Context, u *url.URL) bool
}

// Limiter spaces out requests to the same origin.
type Limiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Config controls body handling and request defaults.
type Config struct {
	// UserAgent is sent when the request carries none.
	UserAgent string
	// SampleBytes bounds the payload sample kept on the response.
	SampleBytes int
	// MaxBodyBytes bounds the payload retained for decoding and comparison.
	MaxBodyBytes int64
}

// Option customises an Engine.
type Option func(*Engine)

// WithRobots enables robots.txt checks.
func WithRobots(r RobotsChecker) Option {
	return func(e *Engine) { e.robots = r }
}

// WithLimiter enables per-origin rate limiting.
func WithLimiter(l Limiter) Option {
	return func(e *Engine) { e.limiter = l }
}

// WithClock overrides the clock.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithRegistry overrides the header registry.
func WithRegistry(r *headers.Registry) Option {
	return func(e *Engine) {
		if r != nil {
			e.registry = r
		}
	}
}

// Engine runs exchanges over a Transport.
type Engine struct {
	transport Transport
	cfg       Config
	robots    RobotsChecker
	limiter   Limiter
	clock     Clock
	logger    *zap.Logger
	registry  *headers.Registry
	hasher    *sha256.Hasher
}

// New builds an Engine.
func New(transport Transport, cfg Config, opts ...Option) *Engine {
	if cfg.SampleBytes <= 0 {
		cfg.SampleBytes = 8192
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 8 << 20
	}
	e := &Engine{
		transport: transport,
		cfg:       cfg,
		clock:     system.New(),
		logger:    zap.NewNop(),
		registry:  headers.Default(),
		hasher:    sha256.New(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Exchange is one request and the response observed for it.
type Exchange struct {
	Name     string
	Request  *message.Request
	Response *message.Response
	state    State
}

// State returns the state the exchange finished in.
func (x *Exchange) State() State {
	return x.state
}

// Err returns the classified failure, or nil.
func (x *Exchange) Err() *Error {
	var fe *Error
	if errors.As(x.Response.Err, &fe) {
		return fe
	}
	return nil
}

// Run performs an exchange for req. name labels logs and metrics. Analysis
// notes about the response are added to notes. The returned Exchange always
// carries a non-nil Response; req is never modified.
func (e *Engine) Run(ctx context.Context, name string, req *message.Request, notes note.Adder) *Exchange {
	if notes == nil {
		notes = note.Discard
	}
	sent := req.Clone()
	if !sent.Has("User-Agent") && e.cfg.UserAgent != "" {
		sent.Header = append(sent.Header, headers.Field{Name: "User-Agent", Value: e.cfg.UserAgent})
	}
	sent.Start = e.clock.Now()
	x := &Exchange{
		Name:     name,
		Request:  sent,
		Response: &message.Response{Start: sent.Start},
	}
	log := e.logger.With(zap.String("exchange", name), zap.String("method", sent.Method), zap.String("uri", sent.URI))
	log.Debug("exchange started")

	err := e.run(ctx, x, notes, log)
	resp := x.Response
	resp.Done = e.clock.Now()
	outcome := "complete"
	if err != nil {
		fe := Classify(err)
		resp.Err = fe
		x.transition(StateError, log)
		outcome = fe.Kind.String()
		log.Debug("exchange failed", zap.Stringer("kind", fe.Kind), zap.Error(err))
	} else {
		resp.Complete = true
		x.transition(StateDone, log)
		status.Check(resp, sent, notes)
		cache.Analyze(resp, sent, notes).Apply(resp)
		log.Debug("exchange finished", zap.Int("status", resp.StatusCode), zap.Int64("payload_len", resp.PayloadLen))
	}
	metrics.ObserveExchange(name, outcome, resp.Done.Sub(resp.Start))
	return x
}

func (x *Exchange) transition(s State, log *zap.Logger) {
	x.state = s
	log.Debug("exchange state", zap.Stringer("state", s))
}

func (e *Engine) run(ctx context.Context, x *Exchange, notes note.Adder, log *zap.Logger) error {
	req := x.Request
	u, err := url.Parse(req.URI)
	if err != nil {
		return NewError(ErrURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return NewError(ErrURL, fmt.Errorf("unsupported URL %q", req.URI))
	}

	x.transition(StateRobots, log)
	if e.robots != nil && !e.robots.Allowed(ctx, u) {
		return NewError(ErrRobotsDisallowed, nil)
	}
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx, req.URI); err != nil {
			return fmt.Errorf("wait for rate limit: %w", err)
		}
	}

	x.transition(StateRequestSent, log)
	stream, err := e.transport.RoundTrip(ctx, req)
	if err != nil {
		return err
	}
	if stream.Body == nil {
		stream.Body = io.NopCloser(bytes.NewReader(nil))
	}
	defer func() { _ = stream.Body.Close() }()

	x.transition(StateHeaders, log)
	resp := x.Response
	resp.Version = stream.Version
	resp.StatusCode = stream.StatusCode
	resp.Phrase = stream.Phrase
	resp.Header = stream.Header
	resp.HeaderLen = headerLen(stream.Header)
	resp.Parsed = e.registry.Process(stream.Header, false, notes)

	x.transition(StateBody, log)
	if err := e.readBody(stream.Body, resp); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	if stream.Trailer != nil {
		resp.Trailer = stream.Trailer()
	}
	if resp.PayloadLen > 0 && !bodyAllowed(req.Method, resp.StatusCode) {
		return NewError(ErrBodyForbidden, fmt.Errorf("%d response to %s carried %d bytes", resp.StatusCode, req.Method, resp.PayloadLen))
	}
	e.decode(resp, notes)
	checkContentLength(req, resp, notes)
	return nil
}

func (e *Engine) readBody(body io.Reader, resp *message.Response) error {
	digest := sha256.NewDigest()
	sampleBudget := e.cfg.SampleBytes
	var retained bytes.Buffer
	buf := make([]byte, 32*1024)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			offset := digest.Len()
			_, _ = digest.Write(chunk)
			if sampleBudget > 0 {
				take := min(sampleBudget, n)
				resp.Samples = append(resp.Samples, message.Sample{Offset: offset, Data: bytes.Clone(chunk[:take])})
				sampleBudget -= take
			}
			room := e.cfg.MaxBodyBytes - int64(retained.Len())
			if int64(n) > room {
				resp.BodyTruncated = true
			}
			if room > 0 {
				retained.Write(chunk[:min(int64(n), room)])
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			resp.PayloadLen = digest.Len()
			return fmt.Errorf("read body: %w", err)
		}
	}
	resp.PayloadLen = digest.Len()
	resp.TransferLen = resp.PayloadLen
	resp.Body = retained.Bytes()
	if resp.PayloadLen > 0 {
		resp.PayloadDigest = digest.Hex()
	}
	return nil
}

func (e *Engine) decode(resp *message.Response, notes note.Adder) {
	codings := resp.Parsed.Strings("content-encoding")
	if len(codings) == 0 || resp.PayloadLen == 0 {
		resp.Decoded = resp.Body
		resp.DecodedLen = resp.PayloadLen
		resp.DecodedDigest = resp.PayloadDigest
		return
	}
	if resp.BodyTruncated {
		return
	}
	data := resp.Body
	for i := len(codings) - 1; i >= 0; i-- {
		var err error
		switch codings[i] {
		case "gzip", "x-gzip":
			data, err = gunzip(data, e.cfg.MaxBodyBytes)
			if err != nil {
				notes.Add("body", note.BadGzip, nil)
				return
			}
		case "deflate":
			data, err = inflate(data, e.cfg.MaxBodyBytes)
			if err != nil {
				notes.Add("body", note.BadZlib, nil)
				return
			}
		case "identity":
		default:
			return
		}
	}
	resp.Decoded = data
	resp.DecodedLen = int64(len(data))
	resp.DecodedDigest, _ = e.hasher.Hash(data)
}

func gunzip(data []byte, limit int64) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open gzip: %w", err)
	}
	defer func() { _ = zr.Close() }()
	out, err := io.ReadAll(io.LimitReader(zr, limit))
	if err != nil {
		return nil, fmt.Errorf("read gzip: %w", err)
	}
	return out, nil
}

// inflate accepts zlib-wrapped deflate and falls back to raw deflate.
func inflate(data []byte, limit int64) ([]byte, error) {
	if zr, err := zlib.NewReader(bytes.NewReader(data)); err == nil {
		out, rerr := io.ReadAll(io.LimitReader(zr, limit))
		_ = zr.Close()
		if rerr == nil {
			return out, nil
		}
	}
	fr := flate.NewReader(bytes.NewReader(data))
	defer func() { _ = fr.Close() }()
	out, err := io.ReadAll(io.LimitReader(fr, limit))
	if err != nil {
		return nil, fmt.Errorf("read deflate: %w", err)
	}
	return out, nil
}

func checkContentLength(req *message.Request, resp *message.Response, notes note.Adder) {
	if strings.EqualFold(req.Method, "HEAD") || resp.StatusCode == 304 {
		return
	}
	cl, ok := resp.Parsed.Int("content-length")
	if !ok {
		return
	}
	if cl == resp.PayloadLen {
		notes.Add("header-content-length", note.CLCorrect, nil)
		return
	}
	notes.Add("header-content-length", note.CLIncorrect, note.Vars{
		"header_length":  cl,
		"payload_length": resp.PayloadLen,
	})
}

func bodyAllowed(method string, code int) bool {
	if strings.EqualFold(method, "HEAD") {
		return false
	}
	return code >= 200 && code != 204 && code != 304
}

// headerLen is the size of the header block as sent on the wire.
func headerLen(fields []headers.Field) int64 {
	var n int64
	for _, f := range fields {
		n += int64(len(f.Name) + len(": ") + len(f.Value) + len("\r\n"))
	}
	return n + int64(len("\r\n"))
}
