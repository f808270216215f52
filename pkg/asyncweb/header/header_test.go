package header

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeaderAddAndGet(t *testing.T) {
	var h Header
	require.NoError(t, h.Add("Content-Type", "application/json"))
	require.Equal(t, "application/json", h.Get("Content-Type"))
	require.Equal(t, "application/json", h.Get("content-type"))
	require.Equal(t, 1, h.Len())
}

func TestHeaderMultiValuePreservesOrder(t *testing.T) {
	var h Header
	require.NoError(t, h.Add("X-Forwarded-For", "a"))
	require.NoError(t, h.Add("X-Forwarded-For", "b"))
	require.NoError(t, h.Add("X-Forwarded-For", "c"))

	require.Equal(t, []string{"a", "b", "c"}, h.Values("X-Forwarded-For"))
	require.Equal(t, "a", h.Get("X-Forwarded-For"))
}

func TestHeaderSetReplacesAllValues(t *testing.T) {
	var h Header
	require.NoError(t, h.Add("Accept", "text/html"))
	require.NoError(t, h.Add("Accept", "application/json"))
	require.NoError(t, h.Set("Accept", "*/*"))
	require.Equal(t, []string{"*/*"}, h.Values("Accept"))
}

func TestHeaderRejectsCRLFInjection(t *testing.T) {
	var h Header
	require.ErrorIs(t, h.Add("Location", "http://evil\r\nX-Injected: 1"), ErrInvalidHeader)
	require.ErrorIs(t, h.Add("X-Bad\r\nName", "v"), ErrInvalidHeader)
}

func TestHeaderDel(t *testing.T) {
	var h Header
	require.NoError(t, h.Add("Host", "x"))
	h.Del("host")
	require.False(t, h.Has("Host"))
	require.Equal(t, 0, h.Len())
}

func TestHeaderContainsAndHasValue(t *testing.T) {
	var h Header
	require.NoError(t, h.Add("Accept-Encoding", "gzip, deflate, br"))
	require.True(t, h.Contains("Accept-Encoding", "gzip"))
	require.False(t, h.Contains("Accept-Encoding", "zstd"))

	var etags Header
	require.NoError(t, etags.Add("If-None-Match", `W/"3@5f"`))
	require.True(t, etags.HasValue("If-None-Match", `W/"3@5f"`))
}

func TestHeaderVisitAllOrderedAcrossMultipleValues(t *testing.T) {
	var h Header
	require.NoError(t, h.Add("A", "1"))
	require.NoError(t, h.Add("B", "2"))
	require.NoError(t, h.Add("A", "3"))

	var got [][2]string
	h.VisitAll(func(name, value string) bool {
		got = append(got, [2]string{name, value})
		return true
	})
	require.Equal(t, [][2]string{{"A", "1"}, {"A", "3"}, {"B", "2"}}, got)
}

func TestHeaderVisitAllStopsEarly(t *testing.T) {
	var h Header
	for i := 0; i < 5; i++ {
		require.NoError(t, h.Add(fmt.Sprintf("X-%d", i), "v"))
	}
	count := 0
	h.VisitAll(func(name, value string) bool {
		count++
		return count < 2
	})
	require.Equal(t, 2, count)
}

func TestHeaderReset(t *testing.T) {
	var h Header
	require.NoError(t, h.Add("X", "1"))
	h.Reset()
	require.Equal(t, 0, h.Len())
	require.False(t, h.Has("X"))
}
