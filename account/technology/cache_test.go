// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

package technology_test

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"storj.io/common/testcontext"

	"origin.energy/origin/account/accounttest"
	"origin.energy/origin/account/technology"
)

func newTestCache(t *testing.T) (*technology.Cache, technology.DB, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	db := accounttest.New().Technologies()
	cache := technology.NewCache(db, client, time.Hour)
	t.Cleanup(func() { require.NoError(t, cache.Close()) })

	return cache, db, mr
}

func TestCache_ReadThrough(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	cache, db, mr := newTestCache(t)

	wind := &technology.Technology{Label: "Wind", TechCode: "T010101", FuelCode: "F01010101"}
	require.NoError(t, db.Create(ctx, wind))

	got, err := cache.Get(ctx, "T010101", "F01010101")
	require.NoError(t, err)
	require.Equal(t, "Wind", got.Label)
	require.True(t, mr.Exists("technology:T010101:F01010101"))

	// The second read is served from the cache: a label change in the
	// store is not visible until the entry expires.
	wind.Label = "Offshore wind"
	got, err = cache.Get(ctx, "T010101", "F01010101")
	require.NoError(t, err)
	require.Equal(t, "Wind", got.Label)

	mr.FastForward(2 * time.Hour)
	got, err = cache.Get(ctx, "T010101", "F01010101")
	require.NoError(t, err)
	require.Equal(t, "Offshore wind", got.Label)
}

func TestCache_UnknownNotCached(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	cache, _, mr := newTestCache(t)

	got, err := cache.Get(ctx, "T999999", "F99999999")
	require.NoError(t, err)
	require.Nil(t, got)
	require.False(t, mr.Exists("technology:T999999:F99999999"))
}

func TestCache_CreateInvalidates(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	cache, _, mr := newTestCache(t)

	list, err := cache.List(ctx)
	require.NoError(t, err)
	require.Empty(t, list)
	require.True(t, mr.Exists("technologies"))

	require.NoError(t, cache.Create(ctx, &technology.Technology{
		Label:    "Solar",
		TechCode: "T040101",
		FuelCode: "F01050100",
	}))
	require.False(t, mr.Exists("technologies"))

	list, err = cache.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "Solar", list[0].Label)
}

func TestCache_RedisDownFallsBack(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	cache, db, mr := newTestCache(t)

	require.NoError(t, db.Create(ctx, &technology.Technology{
		Label:    "Wind",
		TechCode: "T010101",
		FuelCode: "F01010101",
	}))

	mr.Close()

	got, err := cache.Get(ctx, "T010101", "F01010101")
	require.NoError(t, err)
	require.Equal(t, "Wind", got.Label)
}
