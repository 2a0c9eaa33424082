// Package resource checks one HTTP resource: the base exchange, the active
// probes derived from it and, optionally, the resources it links to.
package resource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/redprobe/internal/fetch"
	"github.com/JakeFAU/redprobe/internal/links"
	"github.com/JakeFAU/redprobe/internal/message"
	"github.com/JakeFAU/redprobe/internal/metrics"
	"github.com/JakeFAU/redprobe/internal/note"
	"github.com/JakeFAU/redprobe/internal/probe"
)

// Runner performs one exchange.
type Runner interface {
	Run(ctx context.Context, name string, req *message.Request, notes note.Adder) *fetch.Exchange
}

// Subrequest is the exchange made by one probe. It is written by the probe's
// task only; read it after the owning resource is done. Notes holds only what
// the fetch engine reported about this exchange (header parse problems,
// status and caching notes on the sub-response); conclusions drawn by comparing
// it with the base response go on the owning resource's list.
type Subrequest struct {
	Name     string            `json:"name"`
	Request  *message.Request  `json:"request"`
	Response *message.Response `json:"response,omitempty"`
	Error    *fetch.Error      `json:"error,omitempty"`
	Notes    *note.List        `json:"notes"`
	State    string            `json:"state"`
}

func (s *Subrequest) record(x *fetch.Exchange) {
	s.Request = x.Request
	s.Response = x.Response
	s.Error = x.Err()
	s.State = x.State().String()
}

// Resource is the result of checking one URI. Read it only after Done is closed.
type Resource struct {
	URI   string
	Notes *note.List

	mu       sync.Mutex
	request  *message.Request
	response *message.Response
	err      *fetch.Error
	subs     map[string]*Subrequest
	links    []links.Link
	children []*Resource
	join     *Join
}

func newResource(req *message.Request) *Resource {
	return &Resource{
		URI:     req.URI,
		Notes:   note.NewList(func(n note.Note) { metrics.ObserveNote(n.Level.String()) }),
		request: req,
		subs:    make(map[string]*Subrequest),
		join:    NewJoin(),
	}
}

// Done is closed when the base exchange, every probe and every child finished.
func (r *Resource) Done() <-chan struct{} {
	return r.join.Finished()
}

// Request is the base request as sent.
func (r *Resource) Request() *message.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.request
}

// Response is the base response.
func (r *Resource) Response() *message.Response {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.response
}

// Err is the classified failure of the base exchange, if any.
func (r *Resource) Err() *fetch.Error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Subrequest returns the probe exchange called name.
func (r *Resource) Subrequest(name string) (*Subrequest, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[name]
	return s, ok
}

// Subrequests returns a copy of the sub-request map.
func (r *Resource) Subrequests() map[string]*Subrequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return maps.Clone(r.subs)
}

// Links returns the links discovered in the base response.
func (r *Resource) Links() []links.Link {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.links
}

// Children returns the resources checked while descending.
func (r *Resource) Children() []*Resource {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.children
}

func (r *Resource) setBase(x *fetch.Exchange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.request = x.Request
	r.response = x.Response
	r.err = x.Err()
}

func (r *Resource) fail(err *fetch.Error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err == nil {
		r.err = err
	}
}

func (r *Resource) addSub(name string, req *message.Request) *Subrequest {
	s := &Subrequest{Name: name, Request: req, Notes: note.NewList(nil), State: fetch.StateCreated.String()}
	r.mu.Lock()
	r.subs[name] = s
	r.mu.Unlock()
	return s
}

// MarshalJSON encodes the resource and everything below it.
func (r *Resource) MarshalJSON() ([]byte, error) {
	r.mu.Lock()
	view := struct {
		URI         string                 `json:"uri"`
		Request     *message.Request       `json:"request"`
		Response    *message.Response      `json:"response,omitempty"`
		Error       *fetch.Error           `json:"error,omitempty"`
		Notes       *note.List             `json:"notes"`
		Subrequests map[string]*Subrequest `json:"subrequests"`
		Links       []links.Link           `json:"links,omitempty"`
		Children    []*Resource            `json:"children,omitempty"`
	}{
		URI:         r.URI,
		Request:     r.request,
		Response:    r.response,
		Error:       r.err,
		Notes:       r.Notes,
		Subrequests: maps.Clone(r.subs),
		Links:       r.links,
		Children:    r.children,
	}
	r.mu.Unlock()
	b, err := json.Marshal(view)
	if err != nil {
		return nil, fmt.Errorf("marshal resource: %w", err)
	}
	return b, nil
}

// Config controls a Checker.
type Config struct {
	// Timeout bounds a whole check, including probes and children.
	Timeout time.Duration
	// MaxLinks bounds the children checked when descending.
	MaxLinks int
	// Concurrency bounds the children checked at once.
	Concurrency int
}

// Option customises a Checker.
type Option func(*Checker)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Checker) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithProbes replaces the probe set. newProbes is called once per resource.
func WithProbes(newProbes func() []probe.Probe) Option {
	return func(c *Checker) {
		if newProbes != nil {
			c.probes = newProbes
		}
	}
}

// Checker orchestrates checks.
type Checker struct {
	runner Runner
	cfg    Config
	logger *zap.Logger
	probes func() []probe.Probe
}

// NewChecker builds a Checker on runner.
func NewChecker(runner Runner, cfg Config, opts ...Option) *Checker {
	if cfg.MaxLinks <= 0 {
		cfg.MaxLinks = 20
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	c := &Checker{
		runner: runner,
		cfg:    cfg,
		logger: zap.NewNop(),
		probes: probe.All,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check runs a complete check of req and waits for it. When the configured
// timeout expires first, outstanding work is canceled, a CHECK_TIMEOUT note
// is recorded and Check returns once everything has wound down.
func (c *Checker) Check(ctx context.Context, req *message.Request, descend bool) *Resource {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}
	r := c.Start(ctx, req, descend)
	outcome := "complete"
	select {
	case <-r.Done():
	case <-ctx.Done():
		select {
		case <-r.Done():
		default:
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				outcome = "timeout"
				r.Notes.Add("resource", note.CheckTimeout, note.Vars{"timeout": c.cfg.Timeout.String()})
				c.logger.Warn("check timed out", zap.String("uri", req.URI), zap.Duration("timeout", c.cfg.Timeout))
			} else {
				outcome = "canceled"
			}
			<-r.Done()
		}
	}
	if outcome == "complete" && r.Err() != nil {
		outcome = "error"
	}
	metrics.ObserveCheck(outcome)
	return r
}

// Start begins checking req and returns immediately. The returned resource's
// Done channel is closed when the check is finished.
func (c *Checker) Start(ctx context.Context, req *message.Request, descend bool) *Resource {
	if !req.Has("Accept-Encoding") {
		req = req.WithHeader("Accept-Encoding", "gzip")
	}
	r := newResource(req)
	r.join.Go(func() {
		c.runBase(ctx, r, req, descend)
	}, func(v any) {
		c.logger.Error("base exchange panicked", zap.String("uri", req.URI), zap.Any("panic", v))
		r.fail(fetch.NewError(fetch.ErrUnknown, fmt.Errorf("panic: %v", v)))
		r.Notes.Add("exchange", note.TransportError, note.Vars{"error": fmt.Sprint(v)})
	})
	r.join.Done()
	return r
}

func (c *Checker) runBase(ctx context.Context, r *Resource, req *message.Request, descend bool) {
	log := c.logger.With(zap.String("uri", req.URI))
	x := c.runner.Run(ctx, "base", req, r.Notes)
	r.setBase(x)
	if !x.Response.Complete {
		r.Notes.Add("exchange", note.TransportError, note.Vars{"error": x.Response.ErrorText()})
	}

	base := &probe.Base{Request: x.Request, Response: x.Response}
	for _, p := range c.probes() {
		if !p.Precondition(base) {
			p.Skip(base)
			log.Debug("probe skipped", zap.String("probe", p.Name()))
			continue
		}
		sub := r.addSub(p.Name(), p.DeriveRequest(base))
		r.join.Go(func() {
			c.runProbe(ctx, r, p, base, sub, log)
		}, func(v any) {
			log.Error("probe panicked", zap.String("probe", p.Name()), zap.Any("panic", v))
			r.Notes.WithSource(p.Name()).Add("subrequest", probe.ProblemKind(p.Name()), note.Vars{"problem": fmt.Sprint(v)})
		})
	}

	if descend && x.Response.Complete {
		c.descend(ctx, r, x, log)
	}
}

func (c *Checker) runProbe(ctx context.Context, r *Resource, p probe.Probe, base *probe.Base, sub *Subrequest, log *zap.Logger) {
	log.Debug("probe started", zap.String("probe", p.Name()))
	x := c.runner.Run(ctx, p.Name(), sub.Request, sub.Notes)
	sub.record(x)
	p.Done(base, x, r.Notes.WithSource(p.Name()))
	log.Debug("probe finished", zap.String("probe", p.Name()), zap.Stringer("state", x.State()))
}

func (c *Checker) descend(ctx context.Context, r *Resource, x *fetch.Exchange, log *zap.Logger) {
	ct, _ := x.Response.Parsed.ContentType()
	if !links.IsHTML(ct.Media) || x.Response.Decoded == nil {
		return
	}
	baseURL, err := url.Parse(x.Request.URI)
	if err != nil {
		return
	}
	found, err := links.New(c.cfg.MaxLinks).Extract(baseURL, x.Response.Decoded)
	if err != nil {
		log.Warn("link extraction failed", zap.Error(err))
		return
	}
	r.mu.Lock()
	r.links = found
	r.mu.Unlock()
	if len(found) == 0 {
		return
	}

	r.join.Go(func() {
		children := make([]*Resource, len(found))
		g := new(errgroup.Group)
		g.SetLimit(c.cfg.Concurrency)
		for i, l := range found {
			g.Go(func() error {
				req := message.NewRequest("GET", l.URL, r.request.Header...).WithoutHeader("User-Agent")
				child := c.Start(ctx, req, false)
				<-child.Done()
				children[i] = child
				return nil
			})
		}
		_ = g.Wait()
		r.mu.Lock()
		r.children = children
		r.mu.Unlock()
		log.Debug("descent finished", zap.Int("children", len(children)))
	}, func(v any) {
		log.Error("descent panicked", zap.Any("panic", v))
	})
}
