package cachemanager

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type parseInput struct {
	Path string
}

func countingParser(calls *int) func(context.Context, parseInput) (parsed, error) {
	return func(_ context.Context, in parseInput) (parsed, error) {
		*calls++
		if in.Path == "broken" {
			return parsed{}, errors.New("cannot parse")
		}
		return parsed{Path: in.Path, Entities: map[string]any{"n": *calls}}, nil
	}
}

func TestReadThroughCache_Get_MissThenHit(t *testing.T) {
	ctx := context.Background()
	calls := 0
	manager := NewInMemoryCacheManager[fileKey, parsed]("parse", DefaultExpiration, DefaultCleanupInterval)
	rt := NewReadThroughCache[fileKey, parsed, parseInput](manager, countingParser(&calls), false)

	first, err := rt.Get(ctx, "a.nii.gz", parseInput{Path: "a.nii.gz"}, time.Minute)
	require.NoError(t, err)
	second, err := rt.Get(ctx, "a.nii.gz", parseInput{Path: "a.nii.gz"}, time.Minute)
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, 1, calls)
	require.Equal(t, Stats{Hits: 1, Misses: 1}, rt.Stats())
}

func TestReadThroughCache_Get_WithCacheDisabled(t *testing.T) {
	ctx := context.Background()
	calls := 0
	manager := NewInMemoryCacheManager[fileKey, parsed]("parse", DefaultExpiration, DefaultCleanupInterval)
	rt := NewReadThroughCache[fileKey, parsed, parseInput](manager, countingParser(&calls), true)

	_, err := rt.Get(ctx, "a", parseInput{Path: "a"}, time.Minute)
	require.NoError(t, err)
	_, err = rt.GetWithRefresh(ctx, "a", parseInput{Path: "a"}, time.Minute)
	require.NoError(t, err)

	require.Equal(t, 2, calls)
	require.Zero(t, manager.Len(), "nothing stored when the cache is skipped")
	require.Equal(t, Stats{Misses: 2}, rt.Stats())
}

func TestReadThroughCache_Get_ErrorNotCached(t *testing.T) {
	ctx := context.Background()
	calls := 0
	manager := NewInMemoryCacheManager[fileKey, parsed]("parse", DefaultExpiration, DefaultCleanupInterval)
	rt := NewReadThroughCache[fileKey, parsed, parseInput](manager, countingParser(&calls), false)

	_, err := rt.Get(ctx, "broken", parseInput{Path: "broken"}, time.Minute)
	require.Error(t, err)
	_, err = rt.Get(ctx, "broken", parseInput{Path: "broken"}, time.Minute)
	require.Error(t, err)

	require.Equal(t, 2, calls)
	require.Zero(t, manager.Len())
}

func TestReadThroughCache_GetWithRefresh_Hit(t *testing.T) {
	ctx := context.Background()
	calls := 0
	manager := NewInMemoryCacheManager[fileKey, parsed]("parse", DefaultExpiration, DefaultCleanupInterval)
	manager.Set(ctx, "a", parsed{Path: "cached"}, time.Minute)
	rt := NewReadThroughCache[fileKey, parsed, parseInput](manager, countingParser(&calls), false)

	got, err := rt.GetWithRefresh(ctx, "a", parseInput{Path: "a"}, time.Minute)
	require.NoError(t, err)

	require.Equal(t, "cached", got.Path)
	require.Zero(t, calls)
}
