// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

package ggo

import (
	"context"
	"time"

	"origin.energy/origin/account/meteringpoint"
)

// BatchState is the state of a batch on the ledger.
type BatchState string

const (
	// BatchPending means the batch has been stored but not yet
	// submitted to the ledger.
	BatchPending BatchState = "PENDING"
	// BatchSubmitted means the batch has been submitted to the ledger
	// and awaits its verdict.
	BatchSubmitted BatchState = "SUBMITTED"
	// BatchCompleted means the ledger executed the batch.
	BatchCompleted BatchState = "COMPLETED"
	// BatchDeclined means the ledger rejected the batch and its
	// effects have been rolled back.
	BatchDeclined BatchState = "DECLINED"
)

// TransactionType tags the two kinds of ledger transactions.
type TransactionType string

const (
	// TransactionSplit splits a parent GGO into children whose amounts
	// sum to the parent's.
	TransactionSplit TransactionType = "split"
	// TransactionRetire binds a GGO to a consumption measurement,
	// consuming it.
	TransactionRetire TransactionType = "retire"
)

// SplitTarget is one child GGO of a split transaction. Reference is an
// arbitrary caller string, typically a trade agreement public id, used
// for transfer bookkeeping.
type SplitTarget struct {
	ID            int64
	TransactionID int64
	GgoID         int64
	Ggo           *Ggo
	Reference     *string
}

// Transaction is one ledger operation of a batch. Type selects which
// fields are meaningful: split transactions carry Targets, retire
// transactions carry the retire link fields. A parent GGO may be spent
// by at most one transaction.
type Transaction struct {
	ID      int64
	BatchID int64
	Order   int
	Type    TransactionType

	ParentGgoID int64
	ParentGgo   *Ggo

	// Split.
	Targets []*SplitTarget

	// Retire.
	Begin           time.Time
	RetireGsrn      string
	MeteringpointID int64
	MeasurementID   int64
}

// NewSplitTransaction creates a split transaction on parent with no
// targets yet.
func NewSplitTransaction(parent *Ggo) *Transaction {
	return &Transaction{
		Type:        TransactionSplit,
		ParentGgoID: parent.ID,
		ParentGgo:   parent,
	}
}

// AddTarget adds a child GGO as a target of a split transaction.
func (tx *Transaction) AddTarget(child *Ggo, reference *string) {
	tx.Targets = append(tx.Targets, &SplitTarget{
		Ggo:       child,
		Reference: reference,
	})
}

// NewRetireTransaction creates a retire transaction binding g to the
// measurement published at the meteringpoint. The retire link is
// stamped on the GGO immediately; the flags follow via OnBegin.
func NewRetireTransaction(g *Ggo, mp *meteringpoint.Meteringpoint, measurementID int64) *Transaction {
	gsrn := mp.Gsrn
	g.RetireGsrn = &gsrn
	g.RetireMeasurementID = &measurementID

	return &Transaction{
		Type:            TransactionRetire,
		ParentGgoID:     g.ID,
		ParentGgo:       g,
		Begin:           g.Begin,
		RetireGsrn:      mp.Gsrn,
		MeteringpointID: mp.ID,
		MeasurementID:   measurementID,
	}
}

// Batch is an atomic bundle of ledger transactions belonging to one
// holder. Transactions execute on the ledger in insertion order.
//
// The lifecycle hooks keep the database synchronized with the ledger:
// OnBegin immediately after assembly, OnSubmitted once the batch left
// the process, then exactly one of OnCommit or OnRollback. OnCommit is
// idempotent with respect to the flag writes of OnBegin.
type Batch struct {
	ID      int64
	Created time.Time

	Subject string
	State   BatchState

	Handle    string
	Submitted *time.Time
	PollCount int

	Transactions []*Transaction
}

// Add appends a transaction, assigning its order.
func (b *Batch) Add(tx *Transaction) {
	tx.Order = len(b.Transactions)
	b.Transactions = append(b.Transactions, tx)
}

// AddAll appends transactions in the order given.
func (b *Batch) AddAll(txs ...*Transaction) {
	for _, tx := range txs {
		b.Add(tx)
	}
}

// OnBegin marks the batch pending and applies the initial flag writes:
// split parents lose stored, split targets gain it, retired GGOs lose
// stored and gain retired.
func (b *Batch) OnBegin() error {
	b.State = BatchPending

	for _, tx := range b.Transactions {
		if err := tx.onBegin(); err != nil {
			return err
		}
	}
	return nil
}

// OnSubmitted records that the batch has been submitted to the ledger.
func (b *Batch) OnSubmitted(handle string, now time.Time) {
	b.State = BatchSubmitted
	b.Handle = handle
	b.Submitted = &now
}

// OnCommit marks the batch completed, re-applying the flag writes of
// OnBegin. Applying them twice yields the same state.
func (b *Batch) OnCommit() {
	b.State = BatchCompleted

	for _, tx := range b.Transactions {
		tx.onCommit()
	}
}

// OnRollback marks the batch declined and reverses the flag writes in
// reverse insertion order: parents regain stored, split children are
// discarded, retire links are cleared.
func (b *Batch) OnRollback() {
	b.State = BatchDeclined

	for i := len(b.Transactions) - 1; i >= 0; i-- {
		b.Transactions[i].onRollback()
	}
}

func (tx *Transaction) onBegin() error {
	switch tx.Type {
	case TransactionSplit:
		var total int64
		for _, target := range tx.Targets {
			total += target.Ggo.Amount
		}
		if total != tx.ParentGgo.Amount {
			return Error.New("split targets sum to %d, parent amount is %d", total, tx.ParentGgo.Amount)
		}
		if !tx.ParentGgo.Stored || tx.ParentGgo.Retired {
			return Error.New("split parent is not spendable (stored=%t retired=%t)", tx.ParentGgo.Stored, tx.ParentGgo.Retired)
		}

		tx.ParentGgo.Stored = false
		for _, target := range tx.Targets {
			target.Ggo.Stored = true
		}
	case TransactionRetire:
		tx.ParentGgo.Stored = false
		tx.ParentGgo.Retired = true
	default:
		return Error.New("unknown transaction type %q", tx.Type)
	}
	return nil
}

func (tx *Transaction) onCommit() {
	switch tx.Type {
	case TransactionSplit:
		tx.ParentGgo.Stored = false
		for _, target := range tx.Targets {
			target.Ggo.Stored = true
		}
	case TransactionRetire:
		tx.ParentGgo.Stored = false
		tx.ParentGgo.Retired = true
	}
}

func (tx *Transaction) onRollback() {
	switch tx.Type {
	case TransactionSplit:
		tx.ParentGgo.Stored = true
	case TransactionRetire:
		tx.ParentGgo.Stored = true
		tx.ParentGgo.Retired = false
		tx.ParentGgo.RetireGsrn = nil
		tx.ParentGgo.RetireMeasurementID = nil
	}
}

// Batches is the interface for storing and retrieving batches.
//
// architecture: Database
type Batches interface {
	// Create inserts the batch with its transactions and split
	// targets. GGOs referenced by the transactions must exist already.
	Create(ctx context.Context, b *Batch) error
	// Get returns the batch with its full transaction graph loaded,
	// or nil when absent.
	Get(ctx context.Context, id int64) (*Batch, error)
	// ListByState returns up to limit batches in the given state,
	// oldest first, with their transaction graphs loaded.
	ListByState(ctx context.Context, state BatchState, limit int) ([]*Batch, error)
	// UpdateState persists state, handle, submitted and poll count.
	UpdateState(ctx context.Context, b *Batch) error
	// Commit persists the result of OnCommit: the batch state and the
	// idempotent flag writes on all referenced GGOs.
	Commit(ctx context.Context, b *Batch) error
	// Rollback persists the result of OnRollback: the batch state, the
	// restored parent flags and retire links, and the removal of split
	// targets and their child GGOs.
	Rollback(ctx context.Context, b *Batch) error
}
