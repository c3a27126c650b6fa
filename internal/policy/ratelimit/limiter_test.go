package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiterWaitSpacesRequestsPerHost(t *testing.T) {
	t.Parallel()

	// 10 RPS with burst 1 hands out a token every 100ms.
	l := New(Config{DefaultRPS: 10, DefaultBurst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://www.emlakjet.com/ilan/1"))

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://www.emlakjet.com/ilan/2"))
	require.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)

	start = time.Now()
	require.NoError(t, l.Wait(ctx, "https://other.test/"))
	require.Less(t, time.Since(start), 50*time.Millisecond, "other hosts keep their own bucket")
}

func TestLimiterUnlimited(t *testing.T) {
	t.Parallel()

	l := New(Config{})
	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, l.Wait(context.Background(), "https://www.emlakjet.com/"))
	}
	require.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestLimiterHonorsContext(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 0.1, DefaultBurst: 1})
	require.NoError(t, l.Wait(context.Background(), "https://slow.test/"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.Error(t, l.Wait(ctx, "https://slow.test/"))
}

func TestLimiterHostOverride(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 0.1, DefaultBurst: 1, Hosts: map[string]float64{"Catalog.TEST": 0}})
	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Wait(context.Background(), "https://catalog.test/iller"))
	}
	require.Less(t, time.Since(start), 100*time.Millisecond, "override lifts the default rate")

	require.NoError(t, l.Wait(context.Background(), "https://www.emlakjet.com/"))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.Error(t, l.Wait(ctx, "https://www.emlakjet.com/"))
}

func TestHostOf(t *testing.T) {
	t.Parallel()

	require.Equal(t, "www.emlakjet.com", hostOf("https://WWW.emlakjet.com/x"))
	require.Equal(t, "unknown", hostOf("not a url"))
}
