package status

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/JakeFAU/redprobe/internal/headers"
	"github.com/JakeFAU/redprobe/internal/message"
	"github.com/JakeFAU/redprobe/internal/note"
)

func run(code int, req *message.Request, hdrs ...headers.Field) []note.Kind {
	notes := note.NewList(nil)
	parsed := headers.Default().Process(hdrs, false, note.Discard)
	Check(&message.Response{StatusCode: code, Header: hdrs, Parsed: parsed}, req, notes)
	return notes.Kinds()
}

func TestCheck(t *testing.T) {
	t.Parallel()

	get := message.NewRequest("GET", "http://example.com/")
	post := message.NewRequest("POST", "http://example.com/")
	loc := headers.Field{Name: "Location", Value: "http://example.com/new"}

	cases := []struct {
		name string
		code int
		req  *message.Request
		hdrs []headers.Field
		want []note.Kind
	}{
		{"ok", 200, get, nil, nil},
		{"created without location", 201, post, nil, []note.Kind{note.CreatedWithoutLocation}},
		{"created with location", 201, post, []headers.Field{loc}, nil},
		{"created by get", 201, get, []headers.Field{loc}, []note.Kind{note.CreatedSafeMethod}},
		{"unexpected continue", 100, get, nil, []note.Kind{note.UnexpectedContinue}},
		{"expected continue", 100, get.WithHeader("Expect", "100-continue"), nil, nil},
		{"upgrade", 101, get, nil, []note.Kind{note.UpgradeNotRequested}},
		{"partial", 206, get, nil, []note.Kind{note.PartialNotRequested, note.PartialWithoutRange}},
		{"redirect", 301, get, nil, []note.Kind{note.RedirectWithoutLocation}},
		{"redirect ok", 302, get, []headers.Field{loc}, nil},
		{"not modified", 304, get, nil, []note.Kind{note.NoDate304}},
		{"not modified with bad date", 304, get, []headers.Field{{Name: "Date", Value: "yesterday"}}, []note.Kind{note.NoDate304}},
		{"created with bad location", 201, post, []headers.Field{{Name: "Location", Value: "http://[::1"}}, []note.Kind{note.CreatedWithoutLocation}},
		{"redirect with bad location", 301, get, []headers.Field{{Name: "Location", Value: "http://[::1"}}, []note.Kind{note.RedirectWithoutLocation}},
		{"use proxy", 305, get, nil, []note.Kind{note.StatusDeprecated}},
		{"unauthorized", 401, get, nil, []note.Kind{note.UnauthorizedWithoutAuth}},
		{"not found", 404, get, nil, []note.Kind{note.StatusNotFound}},
		{"method not allowed", 405, get, nil, []note.Kind{note.MethodNotAllowedWithoutAllow}},
		{"server error", 500, nil, nil, []note.Kind{note.StatusInternalServiceError}},
		{"content-range on 200", 200, get, []headers.Field{{Name: "Content-Range", Value: "bytes 0-1/2"}}, []note.Kind{note.ContentRangeMeaningless}},
		{"location on 200", 200, get, []headers.Field{loc}, []note.Kind{note.LocationUndefined}},
		{"nonstandard", 299, get, []headers.Field{loc}, []note.Kind{note.NonstandardStatus}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := run(tc.code, tc.req, tc.hdrs...)
			if tc.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCreatedWithoutLocationExactlyOnce(t *testing.T) {
	t.Parallel()

	got := run(201, message.NewRequest("PUT", "http://example.com/x"))
	count := 0
	for _, k := range got {
		if k == note.CreatedWithoutLocation {
			count++
		}
	}
	assert.Equal(t, 1, count)
	assert.True(t, Known(418))
	assert.False(t, Known(299))
}
