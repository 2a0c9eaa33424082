package server

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/redprobe/internal/config"
	"github.com/JakeFAU/redprobe/internal/fetch"
	"github.com/JakeFAU/redprobe/internal/message"
	"github.com/JakeFAU/redprobe/internal/note"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Logging.Development = false
	return cfg
}

func newSite(t *testing.T, robotsTxt string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var robotsHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, _ *http.Request) {
		robotsHits.Add(1)
		_, _ = w.Write([]byte(robotsTxt))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Header().Set("Cache-Control", "max-age=300")
		_, _ = w.Write([]byte("hello"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &robotsHits
}

func TestAppChecksWithEveryStore(t *testing.T) {
	t.Parallel()

	for _, store := range []string{config.StoreMemory, config.StoreLocal, config.StoreSQLite, config.StoreNone} {
		t.Run(store, func(t *testing.T) {
			t.Parallel()
			srv, robotsHits := newSite(t, "User-agent: *\nDisallow:\n")
			cfg := testConfig(t)
			cfg.Robots.Store = store
			cfg.Robots.Dir = filepath.Join(t.TempDir(), "robots")
			cfg.Robots.SQLitePath = filepath.Join(t.TempDir(), "robots.db")

			app, err := NewApp(context.Background(), cfg, zap.NewNop())
			require.NoError(t, err)
			t.Cleanup(func() { _ = app.Close() })

			r := app.Check(context.Background(), message.NewRequest("GET", srv.URL+"/page"), false)
			require.Nil(t, r.Err())
			assert.Equal(t, 200, r.Response().StatusCode)
			assert.True(t, r.Notes.Has(note.FreshnessFresh), "kinds: %v", r.Notes.Kinds())
			assert.EqualValues(t, 1, robotsHits.Load())
		})
	}
}

func TestAppHonoursRobots(t *testing.T) {
	t.Parallel()

	srv, _ := newSite(t, "User-agent: RED\nDisallow: /private\n")
	app, err := NewApp(context.Background(), testConfig(t), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	r := app.Check(context.Background(), message.NewRequest("GET", srv.URL+"/private/page"), false)
	require.NotNil(t, r.Err())
	assert.Equal(t, fetch.ErrRobotsDisallowed, r.Err().Kind)
}

func TestAppRejectsBadLocalStore(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Robots.Store = config.StoreLocal
	cfg.Robots.Dir = filepath.Join("/dev/null", "robots")

	_, err := NewApp(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
}

func TestAppRejectsBadPostgresDSN(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Robots.Store = config.StorePostgres
	cfg.Robots.PostgresDSN = "host=localhost port=notaport dbname=redprobe"

	_, err := NewApp(context.Background(), cfg, zap.NewNop())
	require.ErrorContains(t, err, "open postgres robots store")
}

func TestAppHandlerRunsChecks(t *testing.T) {
	t.Parallel()

	srv, _ := newSite(t, "")
	cfg := testConfig(t)
	cfg.Robots.Enabled = false
	app, err := NewApp(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	body := bytes.NewBufferString(`{"url":"` + srv.URL + `/"}`)
	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/checks", body))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"`)
	assert.Contains(t, rec.Body.String(), `"status":200`)
}
