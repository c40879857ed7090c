// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

package accountdb

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/zeebo/errs"

	"origin.energy/origin/account/ggo"
)

// batches implements ggo.Batches.
//
// architecture: Database
type batches struct {
	db queryer
}

func (store *batches) Create(ctx context.Context, b *ggo.Batch) (err error) {
	defer mon.Task()(&ctx)(&err)

	row := store.db.QueryRowContext(ctx, `
		INSERT INTO batches ( subject, state, handle, submitted, poll_count )
		VALUES ( $1, $2, $3, $4, $5 )
		RETURNING id, created
	`, b.Subject, string(b.State), b.Handle, b.Submitted, b.PollCount)
	if err := row.Scan(&b.ID, &b.Created); err != nil {
		return Error.Wrap(err)
	}

	for _, t := range b.Transactions {
		t.BatchID = b.ID

		row := store.db.QueryRowContext(ctx, `
			INSERT INTO batch_transactions (
				batch_id, tx_order, type, parent_ggo_id,
				begin_at, retire_gsrn, meteringpoint_id, measurement_id
			)
			VALUES ( $1, $2, $3, $4, $5, $6, $7, $8 )
			RETURNING id
		`, b.ID, t.Order, string(t.Type), t.ParentGgoID,
			nullTime(t.Begin), t.RetireGsrn, nullID(t.MeteringpointID), nullID(t.MeasurementID))
		if err := row.Scan(&t.ID); err != nil {
			return Error.Wrap(err)
		}

		for _, target := range t.Targets {
			row := store.db.QueryRowContext(ctx, `
				INSERT INTO split_targets ( transaction_id, ggo_id, reference )
				VALUES ( $1, $2, $3 )
				RETURNING id
			`, t.ID, target.GgoID, target.Reference)
			if err := row.Scan(&target.ID); err != nil {
				return Error.Wrap(err)
			}
			target.TransactionID = t.ID
		}
	}
	return nil
}

func (store *batches) Get(ctx context.Context, id int64) (_ *ggo.Batch, err error) {
	defer mon.Task()(&ctx)(&err)

	b, err := store.scanBatch(store.db.QueryRowContext(ctx, `
		SELECT id, created, subject, state, handle, submitted, poll_count
		FROM batches
		WHERE id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, Error.Wrap(err)
	}

	if err := store.loadTransactions(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (store *batches) ListByState(ctx context.Context, state ggo.BatchState, limit int) (_ []*ggo.Batch, err error) {
	defer mon.Task()(&ctx)(&err)

	rows, err := store.db.QueryContext(ctx, `
		SELECT id, created, subject, state, handle, submitted, poll_count
		FROM batches
		WHERE state = $1
		ORDER BY id
		LIMIT $2
	`, string(state), limit)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	var list []*ggo.Batch
	err = func() (err error) {
		defer func() { err = errs.Combine(err, rows.Close()) }()
		for rows.Next() {
			b, err := store.scanBatch(rows)
			if err != nil {
				return Error.Wrap(err)
			}
			list = append(list, b)
		}
		return Error.Wrap(rows.Err())
	}()
	if err != nil {
		return nil, err
	}

	for _, b := range list {
		if err := store.loadTransactions(ctx, b); err != nil {
			return nil, err
		}
	}
	return list, nil
}

func (store *batches) UpdateState(ctx context.Context, b *ggo.Batch) (err error) {
	defer mon.Task()(&ctx)(&err)

	_, err = store.db.ExecContext(ctx, `
		UPDATE batches
		SET state = $2, handle = $3, submitted = $4, poll_count = $5
		WHERE id = $1
	`, b.ID, string(b.State), b.Handle, b.Submitted, b.PollCount)
	return Error.Wrap(err)
}

func (store *batches) Commit(ctx context.Context, b *ggo.Batch) (err error) {
	defer mon.Task()(&ctx)(&err)

	if err := store.UpdateState(ctx, b); err != nil {
		return err
	}

	ggoStore := &ggos{store.db}
	for _, t := range b.Transactions {
		if err := ggoStore.Update(ctx, t.ParentGgo); err != nil {
			return err
		}
		for _, target := range t.Targets {
			if err := ggoStore.Update(ctx, target.Ggo); err != nil {
				return err
			}
		}
	}
	return nil
}

func (store *batches) Rollback(ctx context.Context, b *ggo.Batch) (err error) {
	defer mon.Task()(&ctx)(&err)

	children := make(map[int64]bool)
	for _, t := range b.Transactions {
		for _, target := range t.Targets {
			children[target.GgoID] = true
		}
	}

	_, err = store.db.ExecContext(ctx, `
		DELETE FROM split_targets
		WHERE transaction_id IN (
			SELECT id FROM batch_transactions WHERE batch_id = $1
		)
	`, b.ID)
	if err != nil {
		return Error.Wrap(err)
	}

	_, err = store.db.ExecContext(ctx, `
		DELETE FROM batch_transactions WHERE batch_id = $1
	`, b.ID)
	if err != nil {
		return Error.Wrap(err)
	}

	ggoStore := &ggos{store.db}
	for id := range children {
		if err := ggoStore.Delete(ctx, id); err != nil {
			return err
		}
	}
	for _, t := range b.Transactions {
		if children[t.ParentGgoID] {
			continue
		}
		if err := ggoStore.Update(ctx, t.ParentGgo); err != nil {
			return err
		}
	}

	return store.UpdateState(ctx, b)
}

func (store *batches) scanBatch(row scanner) (*ggo.Batch, error) {
	var b ggo.Batch
	var state string
	var submitted sql.NullTime

	err := row.Scan(&b.ID, &b.Created, &b.Subject, &state, &b.Handle, &submitted, &b.PollCount)
	if err != nil {
		return nil, err
	}

	b.State = ggo.BatchState(state)
	if submitted.Valid {
		b.Submitted = &submitted.Time
	}
	return &b, nil
}

// loadTransactions attaches the batch's full transaction graph,
// including the parent and target GGOs.
func (store *batches) loadTransactions(ctx context.Context, b *ggo.Batch) (err error) {
	defer mon.Task()(&ctx)(&err)

	rows, err := store.db.QueryContext(ctx, `
		SELECT t.id, t.tx_order, t.type, t.parent_ggo_id,
			t.begin_at, t.retire_gsrn, t.meteringpoint_id, t.measurement_id,
			`+prefixColumns("g", ggoColumns)+`
		FROM batch_transactions t
		JOIN ggos g ON g.id = t.parent_ggo_id
		WHERE t.batch_id = $1
		ORDER BY t.tx_order
	`, b.ID)
	if err != nil {
		return Error.Wrap(err)
	}

	byID := make(map[int64]*ggo.Transaction)
	err = func() (err error) {
		defer func() { err = errs.Combine(err, rows.Close()) }()
		for rows.Next() {
			t, err := scanTransaction(rows)
			if err != nil {
				return Error.Wrap(err)
			}
			t.BatchID = b.ID
			b.Transactions = append(b.Transactions, t)
			byID[t.ID] = t
		}
		return Error.Wrap(rows.Err())
	}()
	if err != nil {
		return err
	}

	targetRows, err := store.db.QueryContext(ctx, `
		SELECT st.id, st.transaction_id, st.ggo_id, st.reference,
			`+prefixColumns("g", ggoColumns)+`
		FROM split_targets st
		JOIN batch_transactions t ON t.id = st.transaction_id
		JOIN ggos g ON g.id = st.ggo_id
		WHERE t.batch_id = $1
		ORDER BY st.id
	`, b.ID)
	if err != nil {
		return Error.Wrap(err)
	}
	defer func() { err = errs.Combine(err, targetRows.Close()) }()

	for targetRows.Next() {
		target, err := scanSplitTarget(targetRows)
		if err != nil {
			return Error.Wrap(err)
		}
		t, ok := byID[target.TransactionID]
		if !ok {
			return Error.New("split target %d references unknown transaction %d", target.ID, target.TransactionID)
		}
		t.Targets = append(t.Targets, target)
	}
	return Error.Wrap(targetRows.Err())
}

func scanTransaction(row scanner) (*ggo.Transaction, error) {
	var t ggo.Transaction
	var typ string
	var begin sql.NullTime
	var meteringpointID, measurementID sql.NullInt64

	g, err := scanGgoAfter(row, &t.ID, &t.Order, &typ, &t.ParentGgoID,
		&begin, &t.RetireGsrn, &meteringpointID, &measurementID)
	if err != nil {
		return nil, err
	}

	t.Type = ggo.TransactionType(typ)
	t.ParentGgo = g
	if begin.Valid {
		t.Begin = begin.Time
	}
	t.MeteringpointID = meteringpointID.Int64
	t.MeasurementID = measurementID.Int64
	return &t, nil
}

func scanSplitTarget(row scanner) (*ggo.SplitTarget, error) {
	var target ggo.SplitTarget
	var reference sql.NullString

	g, err := scanGgoAfter(row, &target.ID, &target.TransactionID, &target.GgoID, &reference)
	if err != nil {
		return nil, err
	}

	target.Ggo = g
	if reference.Valid {
		target.Reference = &reference.String
	}
	return &target, nil
}

// scanGgoAfter scans leading destination columns followed by a full
// set of ggo columns.
func scanGgoAfter(row scanner, leading ...interface{}) (*ggo.Ggo, error) {
	var g ggo.Ggo
	var parentID, measurementID, retireMeasurementID sql.NullInt64
	var retireGsrn sql.NullString
	var emissions []byte

	dest := append(leading,
		&g.ID, &g.PublicID, &g.Created, &parentID, &measurementID, &g.IssueGsrn,
		&g.Subject, &g.IssueTime, &g.ExpireTime, &g.Begin, &g.End, &g.Amount,
		&g.Sector, &g.TechCode, &g.FuelCode, &emissions,
		&g.Issued, &g.Stored, &g.Retired, &retireGsrn, &retireMeasurementID)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	if parentID.Valid {
		g.ParentID = &parentID.Int64
	}
	if measurementID.Valid {
		g.MeasurementID = &measurementID.Int64
	}
	if retireGsrn.Valid {
		g.RetireGsrn = &retireGsrn.String
	}
	if retireMeasurementID.Valid {
		g.RetireMeasurementID = &retireMeasurementID.Int64
	}
	g.Emissions = emissions
	return &g, nil
}

// prefixColumns qualifies a comma separated column list with a table
// alias.
func prefixColumns(prefix, columns string) string {
	parts := strings.Split(columns, ",")
	for i, part := range parts {
		parts[i] = prefix + "." + strings.TrimSpace(part)
	}
	return strings.Join(parts, ", ")
}

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

func nullID(id int64) interface{} {
	if id == 0 {
		return nil
	}
	return id
}
