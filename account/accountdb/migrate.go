// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

package accountdb

import (
	"context"
)

// MigrateToLatest implements account.DB.
func (db *accountDB) MigrateToLatest(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	_, err = db.rawdb.ExecContext(ctx, schema)
	return Error.Wrap(err)
}

const schema = `
	CREATE TABLE IF NOT EXISTS holders (
		id bigint GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		subject text NOT NULL UNIQUE,
		name text NOT NULL,
		active boolean NOT NULL DEFAULT true,
		created timestamptz NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS meteringpoints (
		id bigint GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		public_id uuid NOT NULL UNIQUE,
		created timestamptz NOT NULL DEFAULT now(),
		gsrn text NOT NULL UNIQUE,
		type text NOT NULL,
		sector text NOT NULL,
		tech_code text NOT NULL DEFAULT '',
		fuel_code text NOT NULL DEFAULT '',
		name text NOT NULL DEFAULT '',
		subject text NOT NULL REFERENCES holders ( subject ),
		retiring_priority integer
	);
	CREATE INDEX IF NOT EXISTS meteringpoints_subject_index
		ON meteringpoints ( subject );

	CREATE TABLE IF NOT EXISTS measurements (
		id bigint GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		created timestamptz NOT NULL DEFAULT now(),
		gsrn text NOT NULL REFERENCES meteringpoints ( gsrn ),
		begin_at timestamptz NOT NULL,
		end_at timestamptz NOT NULL,
		amount bigint NOT NULL,
		UNIQUE ( gsrn, begin_at )
	);

	CREATE TABLE IF NOT EXISTS ggos (
		id bigint GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		public_id uuid NOT NULL UNIQUE,
		created timestamptz NOT NULL DEFAULT now(),
		parent_id bigint REFERENCES ggos ( id ),
		measurement_id bigint UNIQUE REFERENCES measurements ( id ),
		issue_gsrn text NOT NULL DEFAULT '',
		subject text NOT NULL,
		issue_time timestamptz NOT NULL,
		expire_time timestamptz NOT NULL,
		begin_at timestamptz NOT NULL,
		end_at timestamptz NOT NULL,
		amount bigint NOT NULL,
		sector text NOT NULL,
		tech_code text NOT NULL DEFAULT '',
		fuel_code text NOT NULL DEFAULT '',
		emissions jsonb,
		issued boolean NOT NULL,
		stored boolean NOT NULL,
		retired boolean NOT NULL,
		retire_gsrn text,
		retire_measurement_id bigint REFERENCES measurements ( id )
	);
	CREATE INDEX IF NOT EXISTS ggos_stored_index
		ON ggos ( subject, begin_at ) WHERE stored;
	CREATE INDEX IF NOT EXISTS ggos_retired_index
		ON ggos ( subject, retire_gsrn, retire_measurement_id ) WHERE retired;

	CREATE TABLE IF NOT EXISTS batches (
		id bigint GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		created timestamptz NOT NULL DEFAULT now(),
		subject text NOT NULL,
		state text NOT NULL,
		handle text NOT NULL DEFAULT '',
		submitted timestamptz,
		poll_count integer NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS batches_state_index
		ON batches ( state, id );

	CREATE TABLE IF NOT EXISTS batch_transactions (
		id bigint GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		batch_id bigint NOT NULL REFERENCES batches ( id ),
		tx_order integer NOT NULL,
		type text NOT NULL,
		parent_ggo_id bigint NOT NULL UNIQUE REFERENCES ggos ( id ),
		begin_at timestamptz,
		retire_gsrn text NOT NULL DEFAULT '',
		meteringpoint_id bigint,
		measurement_id bigint,
		UNIQUE ( batch_id, tx_order )
	);

	CREATE TABLE IF NOT EXISTS split_targets (
		id bigint GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		transaction_id bigint NOT NULL REFERENCES batch_transactions ( id ),
		ggo_id bigint NOT NULL REFERENCES ggos ( id ),
		reference text
	);
	CREATE INDEX IF NOT EXISTS split_targets_transaction_index
		ON split_targets ( transaction_id );
	CREATE INDEX IF NOT EXISTS split_targets_reference_index
		ON split_targets ( reference ) WHERE reference IS NOT NULL;

	CREATE TABLE IF NOT EXISTS agreements (
		id bigint GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		public_id uuid NOT NULL UNIQUE,
		created timestamptz NOT NULL DEFAULT now(),
		proposed_by text NOT NULL,
		user_from text NOT NULL,
		user_to text NOT NULL,
		state text NOT NULL,
		declined timestamptz,
		cancelled timestamptz,
		date_from date NOT NULL,
		date_to date NOT NULL,
		facility_gsrn jsonb NOT NULL DEFAULT '[]',
		technologies jsonb,
		amount bigint NOT NULL DEFAULT 0,
		unit bigint NOT NULL DEFAULT 1,
		amount_percent integer NOT NULL DEFAULT 0,
		limit_to_consumption boolean NOT NULL DEFAULT false,
		transfer_priority integer,
		reference text NOT NULL DEFAULT '',
		proposal_note text NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS agreements_outbound_index
		ON agreements ( user_from, state, transfer_priority );

	CREATE TABLE IF NOT EXISTS technologies (
		id bigint GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		label text NOT NULL,
		tech_code text NOT NULL,
		fuel_code text NOT NULL,
		UNIQUE ( tech_code, fuel_code )
	);
`
