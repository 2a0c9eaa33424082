package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/redprobe/internal/headers"
	"github.com/JakeFAU/redprobe/internal/message"
	"github.com/JakeFAU/redprobe/internal/note"
)

var start = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

func response(t *testing.T, code int, fields ...headers.Field) *message.Response {
	t.Helper()
	return &message.Response{
		StatusCode: code,
		Header:     fields,
		Parsed:     headers.Default().Process(fields, false, note.Discard),
		Start:      start,
		Complete:   true,
	}
}

func dateField(offset time.Duration) headers.Field {
	return headers.Field{Name: "Date", Value: headers.FormatDate(start.Add(offset))}
}

func analyze(resp *message.Response, req *message.Request) (Result, *note.List) {
	notes := note.NewList(nil)
	return Analyze(resp, req, notes), notes
}

func TestVaryAsterisk(t *testing.T) {
	t.Parallel()

	resp := response(t, 200, dateField(0), headers.Field{Name: "Vary", Value: "*"})
	res, notes := analyze(resp, message.NewRequest("GET", "http://example.com/"))
	assert.Equal(t, 1, notes.Count(note.VaryAsterisk))
	assert.False(t, res.StoreShared)
	assert.False(t, res.StorePrivate)
	assert.False(t, notes.Has(note.FreshnessHeuristic))
}

func TestNoCacheKeepsEvaluating(t *testing.T) {
	t.Parallel()

	resp := response(t, 200,
		dateField(-time.Hour),
		headers.Field{Name: "Cache-Control", Value: "no-cache, max-age=60"},
		headers.Field{Name: "ETag", Value: `"x"`},
		headers.Field{Name: "Vary", Value: "*"},
	)
	res, notes := analyze(resp, message.NewRequest("GET", "http://example.com/"))
	assert.True(t, notes.Has(note.NoCache), "kinds: %v", notes.Kinds())
	assert.Equal(t, 1, notes.Count(note.VaryAsterisk))
	assert.False(t, res.StoreShared)
	assert.False(t, res.StorePrivate)
	assert.Equal(t, 60*time.Second, res.FreshnessLifetime)
	assert.True(t, notes.Has(note.DateIncorrect))
}

func TestFreshnessIdempotent(t *testing.T) {
	t.Parallel()

	resp := response(t, 200,
		dateField(-10*time.Second),
		headers.Field{Name: "Cache-Control", Value: "max-age=60"},
		headers.Field{Name: "Age", Value: "5"},
	)
	req := message.NewRequest("GET", "http://example.com/")
	first, n1 := analyze(resp, req)
	second, n2 := analyze(resp, req)
	assert.Equal(t, first, second)
	assert.Equal(t, n1.Kinds(), n2.Kinds())

	assert.True(t, first.Fresh)
	assert.Equal(t, 60*time.Second, first.FreshnessLifetime)
	assert.Equal(t, 5*time.Second, first.Age)
	assert.True(t, n1.Has(note.FreshnessFresh))
	assert.True(t, n1.Has(note.FreshServable))
	assert.True(t, n1.Has(note.DateCorrect))
}

func TestStorability(t *testing.T) {
	t.Parallel()

	get := message.NewRequest("GET", "http://example.com/")
	cases := []struct {
		name    string
		req     *message.Request
		fields  []headers.Field
		shared  bool
		private bool
		kind    note.Kind
	}{
		{"post", message.NewRequest("POST", "http://example.com/"), nil, false, false, note.MethodUncacheable},
		{"no-store", get, []headers.Field{{Name: "Cache-Control", Value: "no-store"}}, false, false, note.NoStore},
		{"private", get, []headers.Field{{Name: "Cache-Control", Value: "private"}}, false, true, note.PrivateCC},
		{"authorized", get.WithHeader("Authorization", "Basic eDp5"), nil, false, true, note.PrivateAuth},
		{"authorized must-revalidate", get.WithHeader("Authorization", "Basic eDp5"), []headers.Field{{Name: "Cache-Control", Value: "must-revalidate, s-maxage=60"}}, false, true, note.PrivateAuth},
		{"authorized public", get.WithHeader("Authorization", "Basic eDp5"), []headers.Field{{Name: "Cache-Control", Value: "public"}}, true, true, note.PublicAuth},
		{"storeable", get, nil, true, true, note.Storeable},
		{"no-cache without validator", get, []headers.Field{{Name: "Cache-Control", Value: "no-cache"}}, true, true, note.NoCacheNoValidator},
		{"no-cache", get, []headers.Field{{Name: "Cache-Control", Value: "no-cache"}, {Name: "ETag", Value: `"x"`}}, true, true, note.NoCache},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			resp := response(t, 200, append([]headers.Field{dateField(0)}, tc.fields...)...)
			res, notes := analyze(resp, tc.req)
			assert.Equal(t, tc.shared, res.StoreShared)
			assert.Equal(t, tc.private, res.StorePrivate)
			assert.True(t, notes.Has(tc.kind), "kinds: %v", notes.Kinds())
		})
	}
}

func TestClock(t *testing.T) {
	t.Parallel()

	_, notes := analyze(response(t, 200), nil)
	assert.True(t, notes.Has(note.DateClockless))

	_, notes = analyze(response(t, 200, headers.Field{Name: "Last-Modified", Value: headers.FormatDate(start)}), nil)
	assert.True(t, notes.Has(note.DateClocklessBadHdr))

	_, notes = analyze(response(t, 200, dateField(-time.Hour)), nil)
	assert.True(t, notes.Has(note.DateIncorrect))

	_, notes = analyze(response(t, 200, dateField(0), headers.Field{Name: "Age", Value: "3600"}), nil)
	assert.True(t, notes.Has(note.AgePenalty))
	assert.True(t, notes.Has(note.CurrentAge))
}

func TestFreshnessSources(t *testing.T) {
	t.Parallel()

	res, notes := analyze(response(t, 200,
		dateField(0),
		headers.Field{Name: "Expires", Value: headers.FormatDate(start.Add(-time.Minute))},
	), nil)
	assert.False(t, res.Fresh)
	assert.True(t, notes.Has(note.FreshnessStaleAlready))
	assert.True(t, notes.Has(note.StaleServable))

	res, notes = analyze(response(t, 200,
		dateField(0),
		headers.Field{Name: "Cache-Control", Value: "max-age=60, s-maxage=120, must-revalidate"},
	), nil)
	assert.Equal(t, 120*time.Second, res.FreshnessLifetime)
	assert.True(t, notes.Has(note.FreshMustRevalidate))

	_, notes = analyze(response(t, 200, dateField(0)), nil)
	assert.True(t, notes.Has(note.FreshnessHeuristic))

	_, notes = analyze(response(t, 404, dateField(0)), nil)
	assert.True(t, notes.Has(note.FreshnessNone))

	res, notes = analyze(response(t, 200,
		dateField(0),
		headers.Field{Name: "Cache-Control", Value: "max-age=10"},
		headers.Field{Name: "Age", Value: "20"},
	), nil)
	require.False(t, res.Fresh)
	assert.True(t, notes.Has(note.FreshnessStaleCache))
}

func TestPrePostCheck(t *testing.T) {
	t.Parallel()

	cases := map[string]note.Kind{
		"pre-check=10":               note.CheckSingle,
		"pre-check=a, post-check=1":  note.CheckNotInteger,
		"pre-check=0, post-check=0":  note.CheckAllZero,
		"pre-check=1, post-check=5":  note.CheckPostBigger,
		"pre-check=5, post-check=0":  note.CheckPostZero,
		"pre-check=10, post-check=5": note.CheckPostPre,
	}
	for value, kind := range cases {
		_, notes := analyze(response(t, 200, dateField(0), headers.Field{Name: "Cache-Control", Value: value}), nil)
		assert.True(t, notes.Has(kind), "%s: %v", value, notes.Kinds())
	}
}
