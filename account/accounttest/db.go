// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

// Package accounttest implements an in-memory account.DB for tests.
package accounttest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/zeebo/errs"
	"storj.io/common/uuid"

	"origin.energy/origin/account"
	"origin.energy/origin/account/agreement"
	"origin.energy/origin/account/ggo"
	"origin.energy/origin/account/holder"
	"origin.energy/origin/account/measurement"
	"origin.energy/origin/account/meteringpoint"
	"origin.energy/origin/account/technology"
)

// Error is the default accounttest errs class.
var Error = errs.Class("accounttest")

// DB is an in-memory implementation of account.DB. It shares object
// pointers with the caller and does not implement transaction
// isolation; WithTx simply runs the callback.
type DB struct {
	mu sync.Mutex

	holders        []*holder.Holder
	meteringpoints []*meteringpoint.Meteringpoint
	measurements   []*measurement.Measurement
	ggos           []*ggo.Ggo
	batches        []*ggo.Batch
	agreements     []*agreement.Agreement
	technologies   []*technology.Technology

	nextID int64
}

// New creates an empty in-memory database.
func New() *DB { return &DB{} }

// Holders implements account.Stores.
func (db *DB) Holders() holder.DB { return &holders{db} }

// Meteringpoints implements account.Stores.
func (db *DB) Meteringpoints() meteringpoint.DB { return &meteringpoints{db} }

// Measurements implements account.Stores.
func (db *DB) Measurements() measurement.DB { return &measurements{db} }

// Ggos implements account.Stores.
func (db *DB) Ggos() ggo.DB { return &ggos{db} }

// Batches implements account.Stores.
func (db *DB) Batches() ggo.Batches { return &batches{db} }

// Agreements implements account.Stores.
func (db *DB) Agreements() agreement.DB { return &agreements{db} }

// Technologies implements account.Stores.
func (db *DB) Technologies() technology.DB { return &technologies{db} }

// WithTx implements account.DB without transactional semantics.
func (db *DB) WithTx(ctx context.Context, fn func(ctx context.Context, tx account.Stores) error) error {
	return fn(ctx, db)
}

// MigrateToLatest implements account.DB.
func (db *DB) MigrateToLatest(ctx context.Context) error { return nil }

// Close implements account.DB.
func (db *DB) Close() error { return nil }

func (db *DB) id() int64 {
	db.nextID++
	return db.nextID
}

type holders struct{ db *DB }

func (store *holders) Create(ctx context.Context, h *holder.Holder) error {
	store.db.mu.Lock()
	defer store.db.mu.Unlock()

	for _, existing := range store.db.holders {
		if existing.Subject == h.Subject {
			return Error.New("duplicate holder %s", h.Subject)
		}
	}
	h.ID = store.db.id()
	h.Created = time.Now().UTC()
	store.db.holders = append(store.db.holders, h)
	return nil
}

func (store *holders) Get(ctx context.Context, subject string) (*holder.Holder, error) {
	store.db.mu.Lock()
	defer store.db.mu.Unlock()

	for _, h := range store.db.holders {
		if h.Subject == subject {
			return h, nil
		}
	}
	return nil, nil
}

func (store *holders) GetActive(ctx context.Context, subject string) (*holder.Holder, error) {
	store.db.mu.Lock()
	defer store.db.mu.Unlock()

	for _, h := range store.db.holders {
		if h.Subject == subject && h.Active {
			return h, nil
		}
	}
	return nil, nil
}

type meteringpoints struct{ db *DB }

func (store *meteringpoints) Create(ctx context.Context, mp *meteringpoint.Meteringpoint) error {
	store.db.mu.Lock()
	defer store.db.mu.Unlock()

	for _, existing := range store.db.meteringpoints {
		if existing.Gsrn == mp.Gsrn {
			return Error.New("duplicate gsrn %s", mp.Gsrn)
		}
	}
	mp.ID = store.db.id()
	mp.Created = time.Now().UTC()
	if mp.PublicID.IsZero() {
		publicID, err := uuid.New()
		if err != nil {
			return Error.Wrap(err)
		}
		mp.PublicID = publicID
	}
	store.db.meteringpoints = append(store.db.meteringpoints, mp)
	return nil
}

func (store *meteringpoints) GetByGsrn(ctx context.Context, gsrn string) (*meteringpoint.Meteringpoint, error) {
	store.db.mu.Lock()
	defer store.db.mu.Unlock()
	return store.db.meteringpointByGsrn(gsrn), nil
}

func (db *DB) meteringpointByGsrn(gsrn string) *meteringpoint.Meteringpoint {
	for _, mp := range db.meteringpoints {
		if mp.Gsrn == gsrn {
			return mp
		}
	}
	return nil
}

func (store *meteringpoints) RetireReceivers(ctx context.Context, subject, sector string) ([]*meteringpoint.Meteringpoint, error) {
	store.db.mu.Lock()
	defer store.db.mu.Unlock()

	var receivers []*meteringpoint.Meteringpoint
	for _, mp := range store.db.meteringpoints {
		if mp.Subject == subject && mp.IsConsumer() && mp.Sector == sector && mp.RetiringPriority != nil {
			receivers = append(receivers, mp)
		}
	}
	sort.SliceStable(receivers, func(i, j int) bool {
		return *receivers[i].RetiringPriority < *receivers[j].RetiringPriority
	})
	return receivers, nil
}

func (store *meteringpoints) ListBySubject(ctx context.Context, subject string) ([]*meteringpoint.Meteringpoint, error) {
	store.db.mu.Lock()
	defer store.db.mu.Unlock()

	var list []*meteringpoint.Meteringpoint
	for _, mp := range store.db.meteringpoints {
		if mp.Subject == subject {
			list = append(list, mp)
		}
	}
	return list, nil
}

type measurements struct{ db *DB }

func (store *measurements) Create(ctx context.Context, m *measurement.Measurement) error {
	store.db.mu.Lock()
	defer store.db.mu.Unlock()

	for _, existing := range store.db.measurements {
		if existing.Gsrn == m.Gsrn && existing.Begin.Equal(m.Begin) {
			return Error.New("duplicate measurement for %s at %s", m.Gsrn, m.Begin)
		}
	}
	m.ID = store.db.id()
	m.Created = time.Now().UTC()
	store.db.measurements = append(store.db.measurements, m)
	return nil
}

func (store *measurements) GetByGsrnAndBegin(ctx context.Context, gsrn string, begin time.Time) (*measurement.Measurement, error) {
	store.db.mu.Lock()
	defer store.db.mu.Unlock()

	for _, m := range store.db.measurements {
		if m.Gsrn == gsrn && m.Begin.Equal(begin) {
			return m, nil
		}
	}
	return nil, nil
}

func (store *measurements) Consumption(ctx context.Context, subject, gsrn string, begin time.Time) (*measurement.Measurement, error) {
	store.db.mu.Lock()
	defer store.db.mu.Unlock()

	mp := store.db.meteringpointByGsrn(gsrn)
	if mp == nil || mp.Subject != subject || !mp.IsConsumer() {
		return nil, nil
	}
	for _, m := range store.db.measurements {
		if m.Gsrn == gsrn && m.Begin.Equal(begin) {
			return m, nil
		}
	}
	return nil, nil
}

type ggos struct{ db *DB }

func (store *ggos) Create(ctx context.Context, g *ggo.Ggo) error {
	store.db.mu.Lock()
	defer store.db.mu.Unlock()

	g.ID = store.db.id()
	g.Created = time.Now().UTC()
	store.db.ggos = append(store.db.ggos, g)
	return nil
}

func (store *ggos) Update(ctx context.Context, g *ggo.Ggo) error {
	store.db.mu.Lock()
	defer store.db.mu.Unlock()

	for _, existing := range store.db.ggos {
		if existing.ID == g.ID {
			return nil
		}
	}
	return Error.New("ggo %d does not exist", g.ID)
}

func (store *ggos) Delete(ctx context.Context, id int64) error {
	store.db.mu.Lock()
	defer store.db.mu.Unlock()
	return store.db.deleteGgo(id)
}

func (db *DB) deleteGgo(id int64) error {
	for i, g := range db.ggos {
		if g.ID == id {
			db.ggos = append(db.ggos[:i], db.ggos[i+1:]...)
			return nil
		}
	}
	return Error.New("ggo %d does not exist", id)
}

func (store *ggos) GetByPublicID(ctx context.Context, subject string, publicID uuid.UUID) (*ggo.Ggo, error) {
	store.db.mu.Lock()
	defer store.db.mu.Unlock()

	for _, g := range store.db.ggos {
		if g.Subject == subject && g.PublicID == publicID {
			return g, nil
		}
	}
	return nil, nil
}

func (store *ggos) RetiredAmount(ctx context.Context, subject, gsrn string, measurementID int64) (int64, error) {
	store.db.mu.Lock()
	defer store.db.mu.Unlock()

	var total int64
	for _, g := range store.db.ggos {
		if g.Subject != subject || !g.Retired {
			continue
		}
		if g.RetireGsrn == nil || *g.RetireGsrn != gsrn {
			continue
		}
		if g.RetireMeasurementID == nil || *g.RetireMeasurementID != measurementID {
			continue
		}
		total += g.Amount
	}
	return total, nil
}

func (store *ggos) StoredAmount(ctx context.Context, subject string, begin time.Time) (int64, error) {
	store.db.mu.Lock()
	defer store.db.mu.Unlock()

	var total int64
	for _, g := range store.db.ggos {
		if g.Subject == subject && g.Stored && g.Begin.Equal(begin) {
			total += g.Amount
		}
	}
	return total, nil
}

func (store *ggos) TransferredAmount(ctx context.Context, sender, reference string, begin time.Time) (int64, error) {
	store.db.mu.Lock()
	defer store.db.mu.Unlock()

	var total int64
	for _, b := range store.db.batches {
		for _, t := range b.Transactions {
			if t.Type != ggo.TransactionSplit || t.ParentGgo.Subject != sender {
				continue
			}
			for _, target := range t.Targets {
				if target.Reference == nil || *target.Reference != reference {
					continue
				}
				if !target.Ggo.Begin.Equal(begin) {
					continue
				}
				total += target.Ggo.Amount
			}
		}
	}
	return total, nil
}

type batches struct{ db *DB }

func (store *batches) Create(ctx context.Context, b *ggo.Batch) error {
	store.db.mu.Lock()
	defer store.db.mu.Unlock()

	b.ID = store.db.id()
	b.Created = time.Now().UTC()
	for _, t := range b.Transactions {
		t.ID = store.db.id()
		t.BatchID = b.ID
		for _, target := range t.Targets {
			target.ID = store.db.id()
			target.TransactionID = t.ID
		}
	}
	store.db.batches = append(store.db.batches, b)
	return nil
}

func (store *batches) Get(ctx context.Context, id int64) (*ggo.Batch, error) {
	store.db.mu.Lock()
	defer store.db.mu.Unlock()

	for _, b := range store.db.batches {
		if b.ID == id {
			return b, nil
		}
	}
	return nil, nil
}

func (store *batches) ListByState(ctx context.Context, state ggo.BatchState, limit int) ([]*ggo.Batch, error) {
	store.db.mu.Lock()
	defer store.db.mu.Unlock()

	var list []*ggo.Batch
	for _, b := range store.db.batches {
		if b.State != state {
			continue
		}
		list = append(list, b)
		if len(list) == limit {
			break
		}
	}
	return list, nil
}

func (store *batches) UpdateState(ctx context.Context, b *ggo.Batch) error {
	return nil
}

func (store *batches) Commit(ctx context.Context, b *ggo.Batch) error {
	return nil
}

func (store *batches) Rollback(ctx context.Context, b *ggo.Batch) error {
	store.db.mu.Lock()
	defer store.db.mu.Unlock()

	for _, t := range b.Transactions {
		if t.Type != ggo.TransactionSplit {
			continue
		}
		for _, target := range t.Targets {
			if err := store.db.deleteGgo(target.GgoID); err != nil {
				return err
			}
		}
		t.Targets = nil
	}
	return nil
}

type agreements struct{ db *DB }

func (store *agreements) Create(ctx context.Context, a *agreement.Agreement) error {
	store.db.mu.Lock()
	defer store.db.mu.Unlock()

	a.ID = store.db.id()
	a.Created = time.Now().UTC()
	store.db.agreements = append(store.db.agreements, a)
	return nil
}

func (store *agreements) Update(ctx context.Context, a *agreement.Agreement) error {
	store.db.mu.Lock()
	defer store.db.mu.Unlock()

	for _, existing := range store.db.agreements {
		if existing.ID == a.ID {
			return nil
		}
	}
	return Error.New("agreement %d does not exist", a.ID)
}

func (store *agreements) GetByPublicID(ctx context.Context, publicID uuid.UUID) (*agreement.Agreement, error) {
	store.db.mu.Lock()
	defer store.db.mu.Unlock()

	for _, a := range store.db.agreements {
		if a.PublicID == publicID {
			return a, nil
		}
	}
	return nil, nil
}

func (store *agreements) ActiveOutbound(ctx context.Context, subject string, date time.Time) ([]*agreement.Agreement, error) {
	store.db.mu.Lock()
	defer store.db.mu.Unlock()

	var list []*agreement.Agreement
	for _, a := range store.db.agreements {
		if a.State == agreement.Accepted && a.From == subject && a.OperatesAt(date) {
			list = append(list, a)
		}
	}
	sortByPriority(list)
	return list, nil
}

func (store *agreements) MaxPriority(ctx context.Context, subject string) (*int, error) {
	store.db.mu.Lock()
	defer store.db.mu.Unlock()

	var max *int
	for _, a := range store.db.agreements {
		if a.State != agreement.Accepted || a.From != subject || a.TransferPriority == nil {
			continue
		}
		if max == nil || *a.TransferPriority > *max {
			priority := *a.TransferPriority
			max = &priority
		}
	}
	return max, nil
}

func (store *agreements) ClearPriorities(ctx context.Context, subject string) error {
	store.db.mu.Lock()
	defer store.db.mu.Unlock()

	for _, a := range store.db.agreements {
		if a.State == agreement.Accepted && a.From == subject {
			a.TransferPriority = nil
		}
	}
	return nil
}

func (store *agreements) SetPriority(ctx context.Context, subject string, publicID uuid.UUID, priority int) error {
	store.db.mu.Lock()
	defer store.db.mu.Unlock()

	for _, a := range store.db.agreements {
		if a.State == agreement.Accepted && a.From == subject && a.PublicID == publicID {
			p := priority
			a.TransferPriority = &p
			return nil
		}
	}
	return nil
}

func (store *agreements) NormalizePriorities(ctx context.Context, subject string) error {
	store.db.mu.Lock()
	defer store.db.mu.Unlock()

	var accepted []*agreement.Agreement
	for _, a := range store.db.agreements {
		if a.State == agreement.Accepted && a.From == subject {
			accepted = append(accepted, a)
		}
	}
	sortByPriority(accepted)
	for i, a := range accepted {
		priority := i
		a.TransferPriority = &priority
	}
	return nil
}

// sortByPriority orders by transfer priority ascending, keeping
// agreements without a priority last in their prior order.
func sortByPriority(list []*agreement.Agreement) {
	sort.SliceStable(list, func(i, j int) bool {
		pi, pj := list[i].TransferPriority, list[j].TransferPriority
		if pi == nil {
			return false
		}
		if pj == nil {
			return true
		}
		return *pi < *pj
	})
}

func (store *agreements) PendingProposedTo(ctx context.Context, subject string) ([]*agreement.Agreement, error) {
	return store.filter(func(a *agreement.Agreement) bool {
		return a.State == agreement.Pending && a.IsParty(subject) && !a.IsProposedBy(subject)
	}), nil
}

func (store *agreements) PendingProposedBy(ctx context.Context, subject string) ([]*agreement.Agreement, error) {
	return store.filter(func(a *agreement.Agreement) bool {
		return a.State == agreement.Pending && a.IsProposedBy(subject)
	}), nil
}

func (store *agreements) AcceptedInbound(ctx context.Context, subject string) ([]*agreement.Agreement, error) {
	return store.filter(func(a *agreement.Agreement) bool {
		return a.State == agreement.Accepted && a.IsInboundTo(subject)
	}), nil
}

func (store *agreements) AcceptedOutbound(ctx context.Context, subject string) ([]*agreement.Agreement, error) {
	list := store.filter(func(a *agreement.Agreement) bool {
		return a.State == agreement.Accepted && a.IsOutboundFrom(subject)
	})
	sortByPriority(list)
	return list, nil
}

func (store *agreements) CancelledSince(ctx context.Context, subject string, since time.Time) ([]*agreement.Agreement, error) {
	return store.filter(func(a *agreement.Agreement) bool {
		return a.State == agreement.Cancelled && a.IsParty(subject) &&
			a.Cancelled != nil && !a.Cancelled.Before(since)
	}), nil
}

func (store *agreements) DeclinedSince(ctx context.Context, subject string, since time.Time) ([]*agreement.Agreement, error) {
	return store.filter(func(a *agreement.Agreement) bool {
		return a.State == agreement.Declined && a.IsParty(subject) &&
			a.Declined != nil && !a.Declined.Before(since)
	}), nil
}

func (store *agreements) filter(keep func(*agreement.Agreement) bool) []*agreement.Agreement {
	store.db.mu.Lock()
	defer store.db.mu.Unlock()

	var list []*agreement.Agreement
	for _, a := range store.db.agreements {
		if keep(a) {
			list = append(list, a)
		}
	}
	return list
}

type technologies struct{ db *DB }

func (store *technologies) Create(ctx context.Context, t *technology.Technology) error {
	store.db.mu.Lock()
	defer store.db.mu.Unlock()

	for _, existing := range store.db.technologies {
		if existing.TechCode == t.TechCode && existing.FuelCode == t.FuelCode {
			return Error.New("duplicate technology %s/%s", t.TechCode, t.FuelCode)
		}
	}
	t.ID = store.db.id()
	store.db.technologies = append(store.db.technologies, t)
	return nil
}

func (store *technologies) Get(ctx context.Context, techCode, fuelCode string) (*technology.Technology, error) {
	store.db.mu.Lock()
	defer store.db.mu.Unlock()

	for _, t := range store.db.technologies {
		if t.TechCode == techCode && t.FuelCode == fuelCode {
			return t, nil
		}
	}
	return nil, nil
}

func (store *technologies) List(ctx context.Context) ([]*technology.Technology, error) {
	store.db.mu.Lock()
	defer store.db.mu.Unlock()
	return append([]*technology.Technology(nil), store.db.technologies...), nil
}
