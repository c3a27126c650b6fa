package crawler

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want int
		ok   bool
	}{
		{name: "plain", text: "45", want: 45, ok: true},
		{name: "thousands separator", text: "1.234", want: 1234, ok: true},
		{name: "surrounding words", text: "1.234 ilan bulundu", want: 1234, ok: true},
		{name: "no digits", text: "ilan yok", ok: false},
		{name: "empty", text: "", ok: false},
		{name: "overflow saturates", text: "9999999999999999999999999", want: math.MaxInt, ok: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, ok := ParseCount(tc.text)
			require.Equal(t, tc.ok, ok)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestPageCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		count int
		want  int
	}{
		{count: 0, want: 1},
		{count: 29, want: 1},
		{count: 30, want: 2},
		{count: 45, want: 2},
		{count: 1470, want: 50},
		{count: 1500, want: 50},
		{count: 100000, want: 50},
	}
	for _, tc := range tests {
		require.Equal(t, tc.want, PageCount(tc.count, 30, 50), "count %d", tc.count)
	}
}

func TestEstimatePages(t *testing.T) {
	t.Parallel()

	ex := lineExtractor{}

	n, err := EstimatePages([]byte("NO_RESULTS\ncount:45"), ex, 30, 50)
	require.ErrorIs(t, err, ErrNoResults)
	require.Zero(t, n)

	n, err = EstimatePages([]byte("count:45"), ex, 30, 50)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	n, err = EstimatePages([]byte("link:/a"), ex, 30, 50)
	require.NoError(t, err, "a missing marker is not an error")
	require.Zero(t, n)

	n, err = EstimatePages([]byte("count:yok"), ex, 30, 50)
	require.NoError(t, err)
	require.Zero(t, n)

	n, err = EstimatePages([]byte("count:9999999999999999999999999"), ex, 30, 50)
	require.NoError(t, err)
	require.Equal(t, 50, n)
}
