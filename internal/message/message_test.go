package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/redprobe/internal/headers"
)

func TestRequestDerivationDoesNotMutate(t *testing.T) {
	t.Parallel()

	base := NewRequest("", "http://example.com/",
		headers.Field{Name: "Accept-Encoding", Value: "gzip"},
		headers.Field{Name: "X-A", Value: "1"},
	)
	require.Equal(t, "GET", base.Method)

	derived := base.WithHeader("accept-encoding", "identity")
	assert.Equal(t, "gzip", base.Get("Accept-Encoding"))
	assert.Equal(t, "identity", derived.Get("Accept-Encoding"))
	assert.Equal(t, []string{"identity"}, derived.Values("ACCEPT-ENCODING"))

	stripped := derived.WithoutHeader("x-a")
	assert.True(t, derived.Has("X-A"))
	assert.False(t, stripped.Has("X-A"))
	assert.Len(t, base.Header, 2)
}

func TestResponseHelpers(t *testing.T) {
	t.Parallel()

	resp := &Response{
		Header: []headers.Field{{Name: "Vary", Value: "a"}, {Name: "vary", Value: "b"}},
		Parsed: headers.Parsed{"content-encoding": []string{"gzip"}},
		Samples: []Sample{
			{Offset: 0, Data: []byte("ab")},
			{Offset: 2, Data: []byte("cd")},
		},
	}
	assert.Equal(t, []string{"a", "b"}, resp.Values("VARY"))
	assert.Equal(t, "a", resp.Get("vary"))
	assert.True(t, resp.IsGzip())
	assert.Equal(t, []byte("abcd"), resp.Sample())
	assert.Empty(t, resp.ErrorText())
	assert.Equal(t, "unknown", Unknown.String())
	assert.Equal(t, Yes, Bool(true))
}
