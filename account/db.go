// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

// Package account defines the top level database abstraction for the
// GGO account: the holders, meteringpoints, measurements, GGOs, ledger
// batches, agreements and technologies of the system, and a unit of
// work wrapping them in one transaction.
package account

import (
	"context"

	"origin.energy/origin/account/agreement"
	"origin.energy/origin/account/ggo"
	"origin.energy/origin/account/holder"
	"origin.energy/origin/account/measurement"
	"origin.energy/origin/account/meteringpoint"
	"origin.energy/origin/account/technology"
)

// Stores exposes the individual store interfaces. Inside WithTx all
// stores share one database transaction.
//
// architecture: Database
type Stores interface {
	// Holders returns the account holder store.
	Holders() holder.DB
	// Meteringpoints returns the meteringpoint store.
	Meteringpoints() meteringpoint.DB
	// Measurements returns the measurement store.
	Measurements() measurement.DB
	// Ggos returns the GGO store.
	Ggos() ggo.DB
	// Batches returns the ledger batch store.
	Batches() ggo.Batches
	// Agreements returns the trade agreement store.
	Agreements() agreement.DB
	// Technologies returns the technology registry store.
	Technologies() technology.DB
}

// DB is the master database of the GGO account.
//
// architecture: Master Database
type DB interface {
	Stores

	// WithTx runs fn inside one database transaction. The transaction
	// commits when fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Stores) error) error

	// MigrateToLatest migrates the database schema to the latest
	// version.
	MigrateToLatest(ctx context.Context) error

	// Close closes the database.
	Close() error
}
