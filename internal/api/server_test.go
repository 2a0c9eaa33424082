package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/redprobe/internal/fetch"
	"github.com/JakeFAU/redprobe/internal/message"
	"github.com/JakeFAU/redprobe/internal/note"
	"github.com/JakeFAU/redprobe/internal/resource"
)

func newTestServer(runner *fakeRunner, opts Options) *Server {
	checker := resource.NewChecker(runner, resource.Config{})
	return NewServer(checker, &fakeIDGen{ids: []string{"req-1", "check-1"}}, opts, zap.NewNop())
}

func TestServer_Healthz(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeRunner{}, Options{})
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServer_Metrics(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeRunner{}, Options{})
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_RunCheck(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	server := newTestServer(runner, Options{})
	body := `{"url":"https://example.com/page","method":"head","headers":[{"name":"Accept","value":"text/html"}]}`
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/checks", bytes.NewBufferString(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-1", rec.Header().Get("X-Request-ID"))

	var out struct {
		ID     string `json:"id"`
		Result struct {
			URI string `json:"uri"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "check-1", out.ID)
	assert.Equal(t, "https://example.com/page", out.Result.URI)

	sent := runner.requests()
	require.Len(t, sent, 1)
	assert.Equal(t, "HEAD", sent[0].Method)
	assert.Equal(t, "text/html", sent[0].Get("Accept"))
	assert.Equal(t, "gzip", sent[0].Get("Accept-Encoding"))
}

func TestServer_RunCheck_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want string
	}{
		{"invalid json", `{invalid`, "invalid JSON"},
		{"unknown field", `{"url":"http://example.com","depth":3}`, "invalid JSON"},
		{"missing url", `{}`, "url required"},
		{"relative url", `{"url":"/just/a/path"}`, "absolute"},
		{"ftp url", `{"url":"ftp://example.com/"}`, "absolute"},
		{"bad method", `{"url":"http://example.com","method":"GE T"}`, "invalid method"},
		{"bad header name", `{"url":"http://example.com","headers":[{"name":"Bad Name","value":"x"}]}`, "invalid header name"},
		{"header name with colon", `{"url":"http://example.com","headers":[{"name":"a:b","value":"x"}]}`, "invalid header name"},
		{"header injection", `{"url":"http://example.com","headers":[{"name":"X","value":"a\r\nB: c"}]}`, "invalid value"},
		{"descend disabled", `{"url":"http://example.com","descend":true}`, "descend is disabled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			runner := &fakeRunner{}
			server := newTestServer(runner, Options{})
			rec := httptest.NewRecorder()
			server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/checks", bytes.NewBufferString(tt.body)))

			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Contains(t, rec.Body.String(), tt.want)
			require.Empty(t, runner.requests())
		})
	}
}

func TestServer_RunCheck_IDFailure(t *testing.T) {
	t.Parallel()

	checker := resource.NewChecker(&fakeRunner{}, resource.Config{})
	server := NewServer(checker, &fakeIDGen{ids: []string{"req-1"}}, Options{}, zap.NewNop())
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/checks", bytes.NewBufferString(`{"url":"http://example.com"}`)))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "generate check id")
}

func TestServer_DescribeNote(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeRunner{}, Options{})

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/notes/inm_304", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"kind":"INM_304"`)

	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/notes/NOT_A_NOTE", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

// fakeRunner answers every exchange with an empty 200 and records requests.
type fakeRunner struct {
	mu   sync.Mutex
	seen []*message.Request
}

func (f *fakeRunner) Run(_ context.Context, name string, req *message.Request, _ note.Adder) *fetch.Exchange {
	f.mu.Lock()
	f.seen = append(f.seen, req)
	f.mu.Unlock()
	return &fetch.Exchange{Name: name, Request: req, Response: &message.Response{StatusCode: 200, Complete: true}}
}

func (f *fakeRunner) requests() []*message.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*message.Request(nil), f.seen...)
}

type fakeIDGen struct {
	mu  sync.Mutex
	ids []string
}

func (f *fakeIDGen) NewID() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.ids) == 0 {
		return "", errors.New("exhausted")
	}
	id := f.ids[0]
	f.ids = f.ids[1:]
	return id, nil
}
