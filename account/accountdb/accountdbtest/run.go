// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

// Package accountdbtest runs tests against a real postgres database
// when one is configured, and skips them otherwise.
package accountdbtest

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"storj.io/common/testcontext"
	"storj.io/private/dbutil/tempdb"

	"origin.energy/origin/account"
	"origin.energy/origin/account/accountdb"
)

// Run opens a unique temporary database, migrates it and hands it to
// the test. Set ORIGIN_TEST_POSTGRES to a postgres connection string
// to enable these tests.
func Run(t *testing.T, test func(ctx *testcontext.Context, t *testing.T, db account.DB)) {
	connstr := os.Getenv("ORIGIN_TEST_POSTGRES")
	if connstr == "" {
		t.Skip("postgres test database not configured, set ORIGIN_TEST_POSTGRES")
	}

	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	tempDB, err := tempdb.OpenUnique(ctx, connstr, "accountdb")
	require.NoError(t, err)
	defer ctx.Check(tempDB.Close)

	db, err := accountdb.Open(ctx, zaptest.NewLogger(t), tempDB.ConnStr,
		accountdb.Config{ApplicationName: "accountdb-test"})
	require.NoError(t, err)
	defer ctx.Check(db.Close)

	require.NoError(t, db.MigrateToLatest(ctx))

	test(ctx, t, db)
}
