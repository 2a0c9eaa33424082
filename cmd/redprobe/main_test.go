package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/redprobe/internal/config"
	"github.com/JakeFAU/redprobe/internal/headers"
)

func TestParseFlags(t *testing.T) {
	t.Parallel()

	opts, err := parseFlags([]string{"-url", "http://example.com/", "-method", "head", "-H", "Accept: text/html", "-H", "X-Debug:1", "-descend"})
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/", opts.url)
	assert.Equal(t, "head", opts.method)
	assert.True(t, opts.descend)
	assert.Equal(t, headerFlags{{Name: "Accept", Value: "text/html"}, {Name: "X-Debug", Value: "1"}}, opts.headers)
}

func TestParseFlagsErrors(t *testing.T) {
	t.Parallel()

	_, err := parseFlags(nil)
	require.Error(t, err)

	_, err = parseFlags([]string{"-url", "http://example.com/", "-H", "no-colon"})
	require.Error(t, err)

	opts, err := parseFlags([]string{"-serve"})
	require.NoError(t, err)
	assert.True(t, opts.serve)
}

func TestHeaderFlagsString(t *testing.T) {
	t.Parallel()

	h := headerFlags{headers.Field{Name: "A", Value: "1"}, {Name: "B", Value: "2"}}
	assert.Equal(t, "A: 1, B: 2", h.String())
}

func TestRunPrintsResult(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Seen-Accept", r.Header.Get("Accept"))
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(srv.Close)

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Robots.Enabled = false

	var out bytes.Buffer
	opts := options{url: srv.URL + "/", method: "get", headers: headerFlags{{Name: "Accept", Value: "text/plain"}}}
	require.NoError(t, run(opts, cfg, zap.NewNop(), &out))

	var result map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	assert.Equal(t, srv.URL+"/", result["uri"])
	require.Contains(t, result, "response")
	assert.Contains(t, out.String(), "X-Seen-Accept")
}
