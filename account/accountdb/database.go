// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

// Package accountdb implements account.DB on postgres.
package accountdb

import (
	"context"
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib" // registers pgx as a sql driver.
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"storj.io/private/dbutil"
	_ "storj.io/private/dbutil/cockroachutil" // registers the cockroach driver.
	"storj.io/private/dbutil/pgutil"
	"storj.io/private/dbutil/txutil"
	"storj.io/private/tagsql"

	"origin.energy/origin/account"
	"origin.energy/origin/account/agreement"
	"origin.energy/origin/account/ggo"
	"origin.energy/origin/account/holder"
	"origin.energy/origin/account/measurement"
	"origin.energy/origin/account/meteringpoint"
	"origin.energy/origin/account/technology"
)

var (
	mon = monkit.Package()

	// Error is the default accountdb errs class.
	Error = errs.Class("accountdb")
)

// Config holds accountdb options.
type Config struct {
	ApplicationName string `help:"application name reported to the database" default:"origin-account"`
}

// queryer is the subset of tagsql.DB and tagsql.Tx the stores run on,
// so the same store code serves both direct access and units of work.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (tagsql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// stores bundles the store implementations over one queryer.
type stores struct {
	db queryer
}

// Holders implements account.Stores.
func (s *stores) Holders() holder.DB { return &holders{s.db} }

// Meteringpoints implements account.Stores.
func (s *stores) Meteringpoints() meteringpoint.DB { return &meteringpoints{s.db} }

// Measurements implements account.Stores.
func (s *stores) Measurements() measurement.DB { return &measurements{s.db} }

// Ggos implements account.Stores.
func (s *stores) Ggos() ggo.DB { return &ggos{s.db} }

// Batches implements account.Stores.
func (s *stores) Batches() ggo.Batches { return &batches{s.db} }

// Agreements implements account.Stores.
func (s *stores) Agreements() agreement.DB { return &agreements{s.db} }

// Technologies implements account.Stores.
func (s *stores) Technologies() technology.DB { return &technologies{s.db} }

// accountDB combines the stores with the underlying connection.
//
// architecture: Master Database
type accountDB struct {
	stores

	log     *zap.Logger
	rawdb   tagsql.DB
	impl    dbutil.Implementation
	connstr string
}

// Open creates an instance of account.DB on postgres.
func Open(ctx context.Context, log *zap.Logger, databaseURL string, config Config) (account.DB, error) {
	var driverName string
	_, _, impl, err := dbutil.SplitConnStr(databaseURL)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	switch impl {
	case dbutil.Postgres:
		driverName = "pgx"
	case dbutil.Cockroach:
		driverName = "cockroach"
	default:
		return nil, Error.New("unsupported implementation: %s", databaseURL)
	}

	connstr, err := pgutil.CheckApplicationName(databaseURL, config.ApplicationName)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	rawdb, err := tagsql.Open(ctx, driverName, connstr)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	dbutil.Configure(ctx, rawdb, "accountdb", mon)

	log.Debug("Connected", zap.String("db source", connstr))

	return &accountDB{
		stores:  stores{db: rawdb},
		log:     log,
		rawdb:   rawdb,
		impl:    impl,
		connstr: connstr,
	}, nil
}

// WithTx implements account.DB.
func (db *accountDB) WithTx(ctx context.Context, fn func(ctx context.Context, tx account.Stores) error) (err error) {
	defer mon.Task()(&ctx)(&err)

	return txutil.WithTx(ctx, db.rawdb, nil, func(ctx context.Context, tx tagsql.Tx) error {
		return fn(ctx, &stores{db: tx})
	})
}

// Close implements account.DB.
func (db *accountDB) Close() error {
	return Error.Wrap(db.rawdb.Close())
}
